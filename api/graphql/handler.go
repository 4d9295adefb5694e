// Package graphql serves the wallet index over GraphQL.
package graphql

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/graphql-go/graphql"
	graphqlhandler "github.com/graphql-go/handler"
	"go.uber.org/zap"
)

// Handler handles GraphQL requests
type Handler struct {
	schema  *Schema
	handler *graphqlhandler.Handler
	logger  *zap.Logger
}

// NewHandler creates a new GraphQL handler. The playground is served on
// GET requests that accept HTML.
func NewHandler(wallet Wallet, logger *zap.Logger) (*Handler, error) {
	schema, err := NewSchema(wallet, logger)
	if err != nil {
		return nil, err
	}

	h := graphqlhandler.New(&graphqlhandler.Config{
		Schema:     &schema.schema,
		Pretty:     false,
		GraphiQL:   false,
		Playground: true,
	})

	return &Handler{
		schema:  schema,
		handler: h,
		logger:  logger,
	}, nil
}

// ServeHTTP implements http.Handler
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.handler.ServeHTTP(w, r)
}

// ExecuteQuery executes a GraphQL query directly against the schema
func (h *Handler) ExecuteQuery(ctx context.Context, query string, variables map[string]interface{}) *graphql.Result {
	return graphql.Do(graphql.Params{
		Context:        ctx,
		Schema:         h.schema.schema,
		RequestString:  query,
		VariableValues: variables,
	})
}

// ExecuteQueryJSON executes a GraphQL query and returns the JSON result
func (h *Handler) ExecuteQueryJSON(ctx context.Context, query string, variables map[string]interface{}) ([]byte, error) {
	return json.Marshal(h.ExecuteQuery(ctx, query, variables))
}

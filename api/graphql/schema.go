package graphql

import (
	"context"

	"github.com/graphql-go/graphql"
	"go.uber.org/zap"

	"github.com/0xmhha/wallet-indexer/fetch"
)

// Wallet is the indexer surface the schema resolves against
type Wallet interface {
	Scan(ctx context.Context, address string) (*fetch.ScanResult, error)
	Hashes(ctx context.Context, address string, limit int) ([]string, error)
	Details(ctx context.Context, address string, limit int) ([]fetch.TransactionRecord, error)
	History(ctx context.Context, address string, limit int) ([]fetch.TransactionRecord, *fetch.ScanResult, error)
	Tracked() []string
	Track(address string)
	Untrack(address string)
}

// Schema holds the GraphQL schema
type Schema struct {
	schema graphql.Schema
	wallet Wallet
	logger *zap.Logger
}

// NewSchema creates a new GraphQL schema
func NewSchema(wallet Wallet, logger *zap.Logger) (*Schema, error) {
	s := &Schema{
		wallet: wallet,
		logger: logger,
	}

	accountArgs := func(withScan bool) graphql.FieldConfigArgument {
		args := graphql.FieldConfigArgument{
			"address": &graphql.ArgumentConfig{Type: graphql.NewNonNull(addressType)},
			"limit":   &graphql.ArgumentConfig{Type: graphql.Int},
		}
		if withScan {
			args["scan"] = &graphql.ArgumentConfig{
				Type:         graphql.Boolean,
				DefaultValue: true,
				Description:  "Scan recent blocks before reading the index",
			}
		}
		return args
	}
	addressArg := graphql.FieldConfigArgument{
		"address": &graphql.ArgumentConfig{Type: graphql.NewNonNull(addressType)},
	}

	queryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"transactions": &graphql.Field{
				Type:    graphql.NewNonNull(graphql.NewList(graphql.NewNonNull(transactionType))),
				Args:    accountArgs(true),
				Resolve: s.resolveTransactions,
			},
			"hashes": &graphql.Field{
				Type:    graphql.NewNonNull(graphql.NewList(graphql.NewNonNull(hashType))),
				Args:    accountArgs(false),
				Resolve: s.resolveHashes,
			},
			"trackedAddresses": &graphql.Field{
				Type:    graphql.NewNonNull(graphql.NewList(graphql.NewNonNull(addressType))),
				Resolve: s.resolveTracked,
			},
			"decodeChangeRole": &graphql.Field{
				Type: graphql.NewNonNull(changeRoleType),
				Args: graphql.FieldConfigArgument{
					"data": &graphql.ArgumentConfig{
						Type:        graphql.NewNonNull(graphql.String),
						Description: "Encoded message as 0x-hex, hex or base64",
					},
				},
				Resolve: s.resolveDecodeChangeRole,
			},
		},
	})

	mutationType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Mutation",
		Fields: graphql.Fields{
			"scan": &graphql.Field{
				Type:    graphql.NewNonNull(scanResultType),
				Args:    addressArg,
				Resolve: s.resolveScan,
			},
			"track": &graphql.Field{
				Type:    graphql.NewNonNull(graphql.NewList(graphql.NewNonNull(addressType))),
				Args:    addressArg,
				Resolve: s.resolveTrack(true),
			},
			"untrack": &graphql.Field{
				Type:    graphql.NewNonNull(graphql.NewList(graphql.NewNonNull(addressType))),
				Args:    addressArg,
				Resolve: s.resolveTrack(false),
			},
			"encodeChangeRole": &graphql.Field{
				Type: graphql.NewNonNull(encodedMsgType),
				Args: graphql.FieldConfigArgument{
					"msg": &graphql.ArgumentConfig{Type: graphql.NewNonNull(changeRoleInput)},
				},
				Resolve: s.resolveEncodeChangeRole,
			},
		},
	})

	schema, err := graphql.NewSchema(graphql.SchemaConfig{
		Query:    queryType,
		Mutation: mutationType,
	})
	if err != nil {
		return nil, err
	}
	s.schema = schema

	return s, nil
}

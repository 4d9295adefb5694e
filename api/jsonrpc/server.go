package jsonrpc

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/0xmhha/wallet-indexer/internal/constants"
)

// Server handles JSON-RPC HTTP requests
type Server struct {
	handler *Handler
	logger  *zap.Logger
}

// NewServer creates a new JSON-RPC server
func NewServer(wallet Wallet, logger *zap.Logger) *Server {
	return &Server{
		handler: NewHandler(wallet, logger),
		logger:  logger,
	}
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, constants.MaxJSONRPCBodyBytes)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		s.writeResponse(w, NewErrorResponse(nil, NewError(ParseError, "request body too large or unreadable", err.Error())))
		return
	}

	trimmed := bytes.TrimLeft(body, " \t\r\n")
	if len(trimmed) > 0 && trimmed[0] == '[' {
		s.handleBatch(w, r, trimmed)
		return
	}

	var req Request
	if err := json.Unmarshal(trimmed, &req); err != nil {
		s.writeResponse(w, NewErrorResponse(nil, NewError(ParseError, "parse error", err.Error())))
		return
	}
	s.writeResponse(w, s.call(r, &req))
}

func (s *Server) handleBatch(w http.ResponseWriter, r *http.Request, body []byte) {
	var batch BatchRequest
	if err := json.Unmarshal(body, &batch); err != nil {
		s.writeResponse(w, NewErrorResponse(nil, NewError(ParseError, "parse error", err.Error())))
		return
	}
	if len(batch) == 0 {
		s.writeResponse(w, NewErrorResponse(nil, NewError(InvalidRequest, "empty batch", nil)))
		return
	}
	if len(batch) > constants.MaxJSONRPCBatchSize {
		s.logger.Warn("batch request too large", zap.Int("batch_size", len(batch)))
		s.writeResponse(w, NewErrorResponse(nil, NewError(InvalidRequest, "batch too large", constants.MaxJSONRPCBatchSize)))
		return
	}

	responses := make(BatchResponse, 0, len(batch))
	for i := range batch {
		responses = append(responses, *s.call(r, &batch[i]))
	}
	s.writeResponse(w, responses)
}

func (s *Server) call(r *http.Request, req *Request) *Response {
	if req.JSONRPC != Version {
		return NewErrorResponse(req.ID, NewError(InvalidRequest, "invalid jsonrpc version", nil))
	}
	if req.Method == "" {
		return NewErrorResponse(req.ID, NewError(InvalidRequest, "missing method", nil))
	}

	result, rpcErr := s.handler.HandleMethod(r.Context(), req.Method, req.Params)
	if rpcErr != nil {
		return NewErrorResponse(req.ID, rpcErr)
	}
	return NewResponse(req.ID, result)
}

// writeResponse always answers 200; JSON-RPC errors travel in the body
func (s *Server) writeResponse(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("failed to encode response", zap.Error(err))
	}
}

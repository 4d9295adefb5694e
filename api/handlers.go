package api

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/0xmhha/wallet-indexer/client"
	"github.com/0xmhha/wallet-indexer/codec"
	"github.com/0xmhha/wallet-indexer/fetch"
	"github.com/0xmhha/wallet-indexer/internal/constants"
	"github.com/0xmhha/wallet-indexer/storage"
)

const maxBodyBytes = constants.BytesPerMB

// ErrorResponse is the body of every non-2xx REST response
type ErrorResponse struct {
	Error string `json:"error"`
}

// TransactionsResponse is returned by GET /v1/accounts/{address}/transactions
type TransactionsResponse struct {
	Address      string                    `json:"address"`
	Transactions []fetch.TransactionRecord `json:"transactions"`
	Scan         *fetch.ScanResult         `json:"scan,omitempty"`
}

// HashesResponse is returned by GET /v1/accounts/{address}/hashes
type HashesResponse struct {
	Address string   `json:"address"`
	Hashes  []string `json:"hashes"`
}

// BroadcastRequest carries a signed transaction in base64
type BroadcastRequest struct {
	Tx string `json:"tx"`
}

// DecodeRequest carries an encoded MsgChangeRole as hex or base64
type DecodeRequest struct {
	Data string `json:"data"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}

// fail maps service errors onto HTTP statuses
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, storage.ErrInvalidKey):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, storage.ErrClosed):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	case client.IsNetwork(err) || client.IsProtocol(err):
		writeError(w, http.StatusBadGateway, "node unavailable")
	default:
		s.logger.Error("request failed",
			zap.String("path", r.URL.Path),
			zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func accountParams(r *http.Request) (string, int, error) {
	address := strings.TrimSpace(chi.URLParam(r, "address"))
	if address == "" {
		return "", 0, errors.New("address is required")
	}
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return "", 0, errors.New("limit must be a non-negative integer")
		}
		limit = n
	}
	return address, limit, nil
}

func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// handleTransactions scans unless ?scan=false and returns records newest first
func (s *Server) handleTransactions(w http.ResponseWriter, r *http.Request) {
	address, limit, err := accountParams(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	scan := true
	if v := r.URL.Query().Get("scan"); v != "" {
		if scan, err = strconv.ParseBool(v); err != nil {
			writeError(w, http.StatusBadRequest, "scan must be a boolean")
			return
		}
	}

	resp := TransactionsResponse{Address: address}
	if scan {
		resp.Transactions, resp.Scan, err = s.wallet.History(r.Context(), address, limit)
	} else {
		resp.Transactions, err = s.wallet.Details(r.Context(), address, limit)
	}
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if resp.Transactions == nil {
		resp.Transactions = []fetch.TransactionRecord{}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleHashes(w http.ResponseWriter, r *http.Request) {
	address, limit, err := accountParams(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	hashes, err := s.wallet.Hashes(r.Context(), address, limit)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if hashes == nil {
		hashes = []string{}
	}
	writeJSON(w, http.StatusOK, HashesResponse{Address: address, Hashes: hashes})
}

func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	address, _, err := accountParams(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	result, err := s.wallet.Scan(r.Context(), address)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleBroadcast(w http.ResponseWriter, r *http.Request) {
	address, _, err := accountParams(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req BroadcastRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	tx, err := base64.StdEncoding.DecodeString(req.Tx)
	if err != nil || len(tx) == 0 {
		writeError(w, http.StatusBadRequest, "tx must be non-empty base64")
		return
	}

	res, err := s.wallet.Broadcast(r.Context(), address, tx)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	status := http.StatusOK
	if res.Code != 0 {
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, status, res)
}

func (s *Server) handleTracked(w http.ResponseWriter, r *http.Request) {
	tracked := s.wallet.Tracked()
	if tracked == nil {
		tracked = []string{}
	}
	writeJSON(w, http.StatusOK, map[string][]string{"addresses": tracked})
}

func (s *Server) handleTrack(w http.ResponseWriter, r *http.Request) {
	address, _, err := accountParams(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.wallet.Track(address)
	s.handleTracked(w, r)
}

func (s *Server) handleUntrack(w http.ResponseWriter, r *http.Request) {
	address, _, err := accountParams(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.wallet.Untrack(address)
	s.handleTracked(w, r)
}

func (s *Server) handleEncodeChangeRole(w http.ResponseWriter, r *http.Request) {
	var msg codec.MsgChangeRole
	if err := decodeBody(w, r, &msg); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	enc, err := codec.Encode(&msg)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, enc)
}

func (s *Server) handleDecodeChangeRole(w http.ResponseWriter, r *http.Request) {
	var req DecodeRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	msg, err := codec.DecodeText(req.Data)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, msg)
}

package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/rpc"
)

// NetworkError reports a transport failure: the node could not be reached or
// the connection broke before a response arrived
type NetworkError struct {
	Method string
	Err    error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error calling %s: %v", e.Method, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// ProtocolError reports a response the node produced but that was unusable:
// a non-2xx status, a JSON-RPC error object or a body that is not JSON
type ProtocolError struct {
	Method     string
	StatusCode int
	Code       int
	Err        error
}

func (e *ProtocolError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("protocol error calling %s (http %d): %v", e.Method, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("protocol error calling %s: %v", e.Method, e.Err)
}

func (e *ProtocolError) Unwrap() error { return e.Err }

// NotFoundError reports that the node does not know the requested object
type NotFoundError struct {
	Method string
	Key    string
	Err    error
}

func (e *NotFoundError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s %s not found: %v", e.Method, e.Key, e.Err)
	}
	return fmt.Sprintf("%s %s not found", e.Method, e.Key)
}

func (e *NotFoundError) Unwrap() error { return e.Err }

// IsNotFound reports whether err is, or wraps, a NotFoundError
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// IsNetwork reports whether err is, or wraps, a NetworkError
func IsNetwork(err error) bool {
	var ne *NetworkError
	return errors.As(err, &ne)
}

// IsProtocol reports whether err is, or wraps, a ProtocolError
func IsProtocol(err error) bool {
	var pe *ProtocolError
	return errors.As(err, &pe)
}

// rpcErrorBody is the JSON-RPC envelope some nodes send alongside a 500
type rpcErrorBody struct {
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Data    string `json:"data"`
	} `json:"error"`
}

// classify maps a transport error into NetworkError, ProtocolError or
// NotFoundError. key identifies the requested object for not-found reports.
func classify(method, key string, err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return &NetworkError{Method: method, Err: err}
	}

	var httpErr rpc.HTTPError
	if errors.As(err, &httpErr) {
		var body rpcErrorBody
		if jsonErr := json.Unmarshal(httpErr.Body, &body); jsonErr == nil && body.Error != nil {
			msg := strings.TrimSpace(body.Error.Message + ": " + body.Error.Data)
			if isNotFoundText(msg) {
				return &NotFoundError{Method: method, Key: key, Err: errors.New(msg)}
			}
			return &ProtocolError{Method: method, StatusCode: httpErr.StatusCode, Code: body.Error.Code, Err: errors.New(msg)}
		}
		return &ProtocolError{Method: method, StatusCode: httpErr.StatusCode, Err: err}
	}

	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) {
		text := rpcErr.Error()
		var dataErr rpc.DataError
		if errors.As(err, &dataErr) {
			text = fmt.Sprintf("%s: %v", text, dataErr.ErrorData())
		}
		if isNotFoundText(text) {
			return &NotFoundError{Method: method, Key: key, Err: err}
		}
		return &ProtocolError{Method: method, Code: rpcErr.ErrorCode(), Err: err}
	}

	if errors.Is(err, rpc.ErrNoResult) {
		return &ProtocolError{Method: method, Err: err}
	}

	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
		return &ProtocolError{Method: method, Err: err}
	}

	return &NetworkError{Method: method, Err: err}
}

func isNotFoundText(s string) bool {
	return strings.Contains(strings.ToLower(s), "not found")
}

package codec

import (
	"errors"
	"fmt"
)

// ErrTruncated is wrapped by a DecodeError when a read would run past the
// end of the buffer or of a nested message
var ErrTruncated = errors.New("unexpected end of buffer")

// ErrWireType is wrapped by a DecodeError when a known field arrives with
// a wire type other than the one it is declared with
var ErrWireType = errors.New("wire type mismatch")

// DecodeError reports malformed binary input. Offset is the byte position
// in the outermost buffer where the problem was found.
type DecodeError struct {
	Message string
	Field   string
	Offset  int
	Err     error
}

func (e *DecodeError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("decode %s: field %s at offset %d: %v", e.Message, e.Field, e.Offset, e.Err)
	}
	return fmt.Sprintf("decode %s at offset %d: %v", e.Message, e.Offset, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// IsDecodeError reports whether err is or wraps a *DecodeError
func IsDecodeError(err error) bool {
	var de *DecodeError
	return errors.As(err, &de)
}

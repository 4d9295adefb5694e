// Package codec hand-encodes the ident module's MsgChangeRole using the
// protobuf wire primitives, without generated message types.
package codec

import (
	"errors"
	"fmt"
	"io"

	"google.golang.org/protobuf/encoding/protowire"
	"google.golang.org/protobuf/types/known/anypb"
)

// TypeURL identifies MsgChangeRole inside a transaction body
const TypeURL = "/volnix.ident.v1.MsgChangeRole"

const msgChangeRoleName = "MsgChangeRole"
const coinName = "Coin"

// MsgChangeRole field numbers
const (
	fieldAddress   protowire.Number = 1
	fieldNewRole   protowire.Number = 2
	fieldZkpProof  protowire.Number = 3
	fieldChangeFee protowire.Number = 4
)

// Coin field numbers
const (
	fieldDenom  protowire.Number = 1
	fieldAmount protowire.Number = 2
)

// Validation errors returned by (*MsgChangeRole).Validate
var (
	ErrEmptyAddress = errors.New("address cannot be empty")
	ErrInvalidRole  = errors.New("new role cannot be unspecified")
	ErrEmptyProof   = errors.New("zkp proof is required for role changes")
)

// Coin is the fee attached to a role change
type Coin struct {
	Denom  string `json:"denom"`
	Amount string `json:"amount"`
}

// MsgChangeRole requests a role change for a verified identity
type MsgChangeRole struct {
	Address   string `json:"address"`
	NewRole   Role   `json:"new_role"`
	ZkpProof  string `json:"zkp_proof"`
	ChangeFee *Coin  `json:"change_fee,omitempty"`
}

// Validate applies the checks the ident module runs before accepting the message
func (m *MsgChangeRole) Validate() error {
	if m.Address == "" {
		return ErrEmptyAddress
	}
	if m.NewRole == RoleUnspecified {
		return ErrInvalidRole
	}
	if m.ZkpProof == "" {
		return ErrEmptyProof
	}
	return nil
}

// Marshal encodes the message. Empty strings, the zero role and a nil fee
// are omitted.
func (m *MsgChangeRole) Marshal() []byte {
	var b []byte
	if m.Address != "" {
		b = protowire.AppendTag(b, fieldAddress, protowire.BytesType)
		b = protowire.AppendString(b, m.Address)
	}
	if m.NewRole != RoleUnspecified {
		b = protowire.AppendTag(b, fieldNewRole, protowire.VarintType)
		// int32 fields sign-extend to 64 bits on the wire
		b = protowire.AppendVarint(b, uint64(int64(m.NewRole)))
	}
	if m.ZkpProof != "" {
		b = protowire.AppendTag(b, fieldZkpProof, protowire.BytesType)
		b = protowire.AppendString(b, m.ZkpProof)
	}
	if m.ChangeFee != nil {
		b = protowire.AppendTag(b, fieldChangeFee, protowire.BytesType)
		b = protowire.AppendBytes(b, m.ChangeFee.Marshal())
	}
	return b
}

// Marshal encodes the coin as a standalone message
func (c *Coin) Marshal() []byte {
	var b []byte
	if c.Denom != "" {
		b = protowire.AppendTag(b, fieldDenom, protowire.BytesType)
		b = protowire.AppendString(b, c.Denom)
	}
	if c.Amount != "" {
		b = protowire.AppendTag(b, fieldAmount, protowire.BytesType)
		b = protowire.AppendString(b, c.Amount)
	}
	return b
}

// Unmarshal decodes a MsgChangeRole. Unknown fields are skipped. Any
// malformed input yields a *DecodeError and a nil message.
func Unmarshal(b []byte) (*MsgChangeRole, error) {
	m := &MsgChangeRole{}
	if err := m.unmarshal(b, 0); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *MsgChangeRole) unmarshal(b []byte, base int) error {
	for off := 0; off < len(b); {
		num, typ, n := protowire.ConsumeTag(b[off:])
		if n < 0 {
			return &DecodeError{Message: msgChangeRoleName, Offset: base + off, Err: parseError(n)}
		}
		fieldStart := off
		off += n

		var err error
		switch num {
		case fieldAddress:
			m.Address, n, err = consumeString(b[off:], typ)
		case fieldNewRole:
			var v uint64
			v, n, err = consumeVarint(b[off:], typ)
			m.NewRole = Role(int32(v))
		case fieldZkpProof:
			m.ZkpProof, n, err = consumeString(b[off:], typ)
		case fieldChangeFee:
			var nested []byte
			nested, n, err = consumeBytes(b[off:], typ)
			if err == nil {
				if m.ChangeFee == nil {
					m.ChangeFee = &Coin{}
				}
				// nested payload starts after its length prefix
				prefix := n - len(nested)
				if derr := m.ChangeFee.unmarshal(nested, base+off+prefix); derr != nil {
					return derr
				}
			}
		default:
			n = protowire.ConsumeFieldValue(num, typ, b[off:])
			if n < 0 {
				err = parseError(n)
			}
		}
		if err != nil {
			return &DecodeError{
				Message: msgChangeRoleName,
				Field:   fieldName(num),
				Offset:  base + fieldStart,
				Err:     err,
			}
		}
		off += n
	}
	return nil
}

func (c *Coin) unmarshal(b []byte, base int) error {
	for off := 0; off < len(b); {
		num, typ, n := protowire.ConsumeTag(b[off:])
		if n < 0 {
			return &DecodeError{Message: coinName, Offset: base + off, Err: parseError(n)}
		}
		fieldStart := off
		off += n

		var err error
		switch num {
		case fieldDenom:
			c.Denom, n, err = consumeString(b[off:], typ)
		case fieldAmount:
			c.Amount, n, err = consumeString(b[off:], typ)
		default:
			n = protowire.ConsumeFieldValue(num, typ, b[off:])
			if n < 0 {
				err = parseError(n)
			}
		}
		if err != nil {
			return &DecodeError{Message: coinName, Field: coinFieldName(num), Offset: base + fieldStart, Err: err}
		}
		off += n
	}
	return nil
}

// Any wraps the encoded message for inclusion in a transaction body
func (m *MsgChangeRole) Any() *anypb.Any {
	return &anypb.Any{TypeUrl: TypeURL, Value: m.Marshal()}
}

// UnmarshalAny decodes a MsgChangeRole packed in an Any
func UnmarshalAny(a *anypb.Any) (*MsgChangeRole, error) {
	if a == nil {
		return nil, fmt.Errorf("nil Any")
	}
	if a.GetTypeUrl() != TypeURL {
		return nil, fmt.Errorf("unexpected type url %q, want %q", a.GetTypeUrl(), TypeURL)
	}
	return Unmarshal(a.GetValue())
}

func fieldName(num protowire.Number) string {
	switch num {
	case fieldAddress:
		return "address"
	case fieldNewRole:
		return "new_role"
	case fieldZkpProof:
		return "zkp_proof"
	case fieldChangeFee:
		return "change_fee"
	default:
		return fmt.Sprintf("#%d", num)
	}
}

func coinFieldName(num protowire.Number) string {
	switch num {
	case fieldDenom:
		return "denom"
	case fieldAmount:
		return "amount"
	default:
		return fmt.Sprintf("#%d", num)
	}
}

func consumeString(b []byte, typ protowire.Type) (string, int, error) {
	if typ != protowire.BytesType {
		return "", 0, fmt.Errorf("%w: got %d, want %d", ErrWireType, typ, protowire.BytesType)
	}
	v, n := protowire.ConsumeString(b)
	if n < 0 {
		return "", 0, parseError(n)
	}
	return v, n, nil
}

func consumeBytes(b []byte, typ protowire.Type) ([]byte, int, error) {
	if typ != protowire.BytesType {
		return nil, 0, fmt.Errorf("%w: got %d, want %d", ErrWireType, typ, protowire.BytesType)
	}
	v, n := protowire.ConsumeBytes(b)
	if n < 0 {
		return nil, 0, parseError(n)
	}
	return v, n, nil
}

func consumeVarint(b []byte, typ protowire.Type) (uint64, int, error) {
	if typ != protowire.VarintType {
		return 0, 0, fmt.Errorf("%w: got %d, want %d", ErrWireType, typ, protowire.VarintType)
	}
	v, n := protowire.ConsumeVarint(b)
	if n < 0 {
		return 0, 0, parseError(n)
	}
	return v, n, nil
}

func parseError(n int) error {
	err := protowire.ParseError(n)
	if errors.Is(err, io.ErrUnexpectedEOF) {
		return ErrTruncated
	}
	return err
}

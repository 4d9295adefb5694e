package codec

import (
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Encoded is the textual form of an encoded MsgChangeRole as returned by
// the API
type Encoded struct {
	TypeURL string `json:"type_url"`
	Base64  string `json:"base64"`
	Hex     string `json:"hex"`
}

// Encode validates m and encodes it in every textual form
func Encode(m *MsgChangeRole) (*Encoded, error) {
	if m == nil {
		return nil, fmt.Errorf("nil message")
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	b := m.Marshal()
	return &Encoded{
		TypeURL: TypeURL,
		Base64:  base64.StdEncoding.EncodeToString(b),
		Hex:     hexutil.Encode(b),
	}, nil
}

// DecodeBytes parses "0x"-prefixed hex, bare hex or standard base64.
// Bare input that is valid as both hex and base64 is read as hex.
func DecodeBytes(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("empty input")
	}
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		b, err := hexutil.Decode("0x" + s[2:])
		if err != nil {
			return nil, fmt.Errorf("invalid hex: %w", err)
		}
		return b, nil
	}
	if b, err := hex.DecodeString(s); err == nil {
		return b, nil
	}
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("input is neither hex nor base64: %w", err)
	}
	return b, nil
}

// DecodeText decodes a MsgChangeRole from its hex or base64 form
func DecodeText(s string) (*MsgChangeRole, error) {
	b, err := DecodeBytes(s)
	if err != nil {
		return nil, err
	}
	return Unmarshal(b)
}

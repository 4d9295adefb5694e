package events

import (
	"encoding/json"
)

// Encoding tells how an attribute's key and value are carried on the wire
type Encoding int

const (
	// EncodingBase64 means key and value are base64 text. Attributes with
	// index=false or no index flag at all use this form.
	EncodingBase64 Encoding = iota

	// EncodingPlain means key and value are plain UTF-8 (index=true)
	EncodingPlain
)

// String implements fmt.Stringer
func (e Encoding) String() string {
	switch e {
	case EncodingPlain:
		return "plain"
	case EncodingBase64:
		return "base64"
	default:
		return "unknown"
	}
}

// Attribute is one key/value pair of an ABCI event, tagged with the
// encoding it arrived in. Use Decode to obtain plain strings.
type Attribute struct {
	Key      string
	Value    string
	Encoding Encoding
}

// Event is a typed ABCI event as reported by block_results and tx
type Event struct {
	Type       string      `json:"type"`
	Attributes []Attribute `json:"attributes"`
}

// wireAttribute mirrors the node's JSON shape. Index is a pointer so an
// absent flag can be told apart from an explicit false.
type wireAttribute struct {
	Key   string `json:"key"`
	Value string `json:"value"`
	Index *bool  `json:"index,omitempty"`
}

// UnmarshalJSON converts the node's attribute object into a typed Attribute.
// The encoding is taken from the index flag only; content is never sniffed.
func (a *Attribute) UnmarshalJSON(data []byte) error {
	var w wireAttribute
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	a.Key = w.Key
	a.Value = w.Value
	a.Encoding = EncodingBase64
	if w.Index != nil && *w.Index {
		a.Encoding = EncodingPlain
	}
	return nil
}

// MarshalJSON writes the attribute back in the node's JSON shape
func (a Attribute) MarshalJSON() ([]byte, error) {
	index := a.Encoding == EncodingPlain
	return json.Marshal(wireAttribute{
		Key:   a.Key,
		Value: a.Value,
		Index: &index,
	})
}

// Transfer holds the transfer-relevant fields extracted from one
// transaction's events. Fields left unset by the events stay empty.
type Transfer struct {
	From   string
	To     string
	Amount string
	Denom  string
}

// Coin is one parsed "<digits><denom>" amount
type Coin struct {
	Amount string `json:"amount"`
	Denom  string `json:"denom"`
}

// String renders the coin in the chain's amount grammar
func (c Coin) String() string {
	return c.Amount + c.Denom
}

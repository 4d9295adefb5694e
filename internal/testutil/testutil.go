package testutil

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/0xmhha/wallet-indexer/events"
)

// NewTestLogger creates a logger that writes through t.Log
func NewTestLogger(t *testing.T) *zap.Logger {
	t.Helper()
	return zaptest.NewLogger(t, zaptest.Level(zap.WarnLevel))
}

// TxHash returns the uppercase hex SHA-256 of raw transaction bytes
func TxHash(raw []byte) string {
	sum := sha256.Sum256(raw)
	return strings.ToUpper(hex.EncodeToString(sum[:]))
}

// TransferEvents builds the events a bank send emits, with attributes in
// the given encoding
func TransferEvents(from, to, amount string, encoding events.Encoding) []events.Event {
	attr := events.PlainAttribute
	if encoding == events.EncodingBase64 {
		attr = events.Base64Attribute
	}

	return []events.Event{
		{Type: "message", Attributes: []events.Attribute{attr("action", "/cosmos.bank.v1beta1.MsgSend")}},
		{Type: "coin_spent", Attributes: []events.Attribute{attr("spender", from), attr("amount", amount)}},
		{Type: "coin_received", Attributes: []events.Attribute{attr("receiver", to), attr("amount", amount)}},
		{Type: "transfer", Attributes: []events.Attribute{
			attr("recipient", to),
			attr("sender", from),
			attr("amount", amount),
		}},
	}
}

package events

import (
	"regexp"
	"strings"
)

// Event types that carry sender, recipient, or amount attributes
const (
	TypeTransfer     = "transfer"
	TypeCoinSpent    = "coin_spent"
	TypeCoinReceived = "coin_received"
)

// Attribute keys read by Extract
const (
	KeySender    = "sender"
	KeySpender   = "spender"
	KeyRecipient = "recipient"
	KeyReceiver  = "receiver"
	KeyAmount    = "amount"
)

var transferTypes = map[string]bool{
	TypeTransfer:     true,
	TypeCoinSpent:    true,
	TypeCoinReceived: true,
}

var coinPattern = regexp.MustCompile(`^(\d+)(\w+)$`)

// IsTransferEvent reports whether the event type can carry transfer fields
func IsTransferEvent(eventType string) bool {
	return transferTypes[eventType]
}

// Extract pulls from/to/amount/denom out of a transaction's events.
//
// Only transfer, coin_spent and coin_received events are inspected. Fields
// are overwritten in iteration order, so when several events set the same
// field the last one wins. Fields no event sets stay empty.
func Extract(evts []Event) Transfer {
	var t Transfer
	for _, ev := range evts {
		if !IsTransferEvent(ev.Type) {
			continue
		}
		for _, attr := range ev.Attributes {
			key, value := Decode(attr)
			switch key {
			case KeySender, KeySpender:
				t.From = value
			case KeyRecipient, KeyReceiver:
				t.To = value
			case KeyAmount:
				if coin, ok := ParseAmount(value); ok {
					t.Amount = coin.Amount
					t.Denom = coin.Denom
				}
			}
		}
	}
	return t
}

// ParseAmount returns the first coin in a comma-joined amount string.
// Later coins are ignored; see ParseCoins for the full list.
func ParseAmount(s string) (Coin, bool) {
	for _, part := range strings.Split(s, ",") {
		if coin, ok := parseCoin(part); ok {
			return coin, true
		}
	}
	return Coin{}, false
}

// ParseCoins returns every coin that matches the amount grammar, in order
func ParseCoins(s string) []Coin {
	var coins []Coin
	for _, part := range strings.Split(s, ",") {
		if coin, ok := parseCoin(part); ok {
			coins = append(coins, coin)
		}
	}
	return coins
}

func parseCoin(s string) (Coin, bool) {
	m := coinPattern.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return Coin{}, false
	}
	return Coin{Amount: m[1], Denom: m[2]}, true
}

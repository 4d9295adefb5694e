package graphql

import (
	"strconv"
	"time"

	"github.com/0xmhha/wallet-indexer/codec"
	"github.com/0xmhha/wallet-indexer/fetch"
)

func transactionToMap(rec *fetch.TransactionRecord) map[string]interface{} {
	var timestamp interface{}
	if !rec.Timestamp.IsZero() {
		timestamp = rec.Timestamp.UTC().Format(time.RFC3339)
	}
	return map[string]interface{}{
		"hash":      rec.Hash,
		"height":    strconv.FormatInt(rec.Height, 10),
		"timestamp": timestamp,
		"from":      rec.From,
		"to":        rec.To,
		"amount":    rec.Amount,
		"denom":     rec.Denom,
		"status":    string(rec.Status),
	}
}

func scanResultToMap(res *fetch.ScanResult) map[string]interface{} {
	failed := make([]interface{}, len(res.FailedHeights))
	for i, h := range res.FailedHeights {
		failed[i] = strconv.FormatInt(h, 10)
	}
	discovered := make([]interface{}, len(res.Discovered))
	for i, h := range res.Discovered {
		discovered[i] = h
	}

	var reason interface{}
	if res.SkipReason != fetch.SkipNone {
		reason = string(res.SkipReason)
	}
	return map[string]interface{}{
		"address":       res.Address,
		"skipped":       res.Skipped,
		"skipReason":    reason,
		"latest":        strconv.FormatInt(res.Latest, 10),
		"floor":         strconv.FormatInt(res.Floor, 10),
		"heights":       res.Heights,
		"failedHeights": failed,
		"matched":       res.Matched,
		"discovered":    discovered,
		"interrupted":   res.Interrupted,
	}
}

func changeRoleToMap(msg *codec.MsgChangeRole) map[string]interface{} {
	m := map[string]interface{}{
		"address":   msg.Address,
		"newRole":   msg.NewRole.String(),
		"zkpProof":  msg.ZkpProof,
		"changeFee": nil,
	}
	if msg.ChangeFee != nil {
		m["changeFee"] = map[string]interface{}{
			"denom":  msg.ChangeFee.Denom,
			"amount": msg.ChangeFee.Amount,
		}
	}
	return m
}

func changeRoleFromInput(in map[string]interface{}) (*codec.MsgChangeRole, error) {
	msg := &codec.MsgChangeRole{}
	msg.Address, _ = in["address"].(string)
	msg.ZkpProof, _ = in["zkpProof"].(string)
	if name, ok := in["newRole"].(string); ok {
		role, err := codec.ParseRole(name)
		if err != nil {
			return nil, err
		}
		msg.NewRole = role
	}
	if fee, ok := in["changeFee"].(map[string]interface{}); ok {
		msg.ChangeFee = &codec.Coin{}
		msg.ChangeFee.Denom, _ = fee["denom"].(string)
		msg.ChangeFee.Amount, _ = fee["amount"].(string)
	}
	return msg, nil
}

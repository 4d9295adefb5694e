package graphql

import (
	"fmt"
	"strings"

	"github.com/graphql-go/graphql"
	"go.uber.org/zap"

	"github.com/0xmhha/wallet-indexer/codec"
)

func addressArg(p graphql.ResolveParams) (string, error) {
	address, _ := p.Args["address"].(string)
	address = strings.TrimSpace(address)
	if address == "" {
		return "", fmt.Errorf("address cannot be empty")
	}
	return address, nil
}

func limitArg(p graphql.ResolveParams) (int, error) {
	limit, _ := p.Args["limit"].(int)
	if limit < 0 {
		return 0, fmt.Errorf("limit cannot be negative")
	}
	return limit, nil
}

// resolveTransactions scans (unless scan is false) and returns records newest first
func (s *Schema) resolveTransactions(p graphql.ResolveParams) (interface{}, error) {
	address, err := addressArg(p)
	if err != nil {
		return nil, err
	}
	limit, err := limitArg(p)
	if err != nil {
		return nil, err
	}

	scan := true
	if v, ok := p.Args["scan"].(bool); ok {
		scan = v
	}

	ctx := p.Context
	var records []interface{}
	if scan {
		recs, _, err := s.wallet.History(ctx, address, limit)
		if err != nil {
			s.logger.Error("failed to resolve transactions", zap.String("address", address), zap.Error(err))
			return nil, err
		}
		for i := range recs {
			records = append(records, transactionToMap(&recs[i]))
		}
	} else {
		recs, err := s.wallet.Details(ctx, address, limit)
		if err != nil {
			s.logger.Error("failed to resolve transactions", zap.String("address", address), zap.Error(err))
			return nil, err
		}
		for i := range recs {
			records = append(records, transactionToMap(&recs[i]))
		}
	}
	if records == nil {
		records = []interface{}{}
	}
	return records, nil
}

func (s *Schema) resolveHashes(p graphql.ResolveParams) (interface{}, error) {
	address, err := addressArg(p)
	if err != nil {
		return nil, err
	}
	limit, err := limitArg(p)
	if err != nil {
		return nil, err
	}
	hashes, err := s.wallet.Hashes(p.Context, address, limit)
	if err != nil {
		return nil, err
	}
	if hashes == nil {
		hashes = []string{}
	}
	return hashes, nil
}

func (s *Schema) resolveTracked(p graphql.ResolveParams) (interface{}, error) {
	tracked := s.wallet.Tracked()
	if tracked == nil {
		tracked = []string{}
	}
	return tracked, nil
}

func (s *Schema) resolveScan(p graphql.ResolveParams) (interface{}, error) {
	address, err := addressArg(p)
	if err != nil {
		return nil, err
	}
	result, err := s.wallet.Scan(p.Context, address)
	if err != nil {
		s.logger.Error("scan failed", zap.String("address", address), zap.Error(err))
		return nil, err
	}
	return scanResultToMap(result), nil
}

func (s *Schema) resolveTrack(add bool) graphql.FieldResolveFn {
	return func(p graphql.ResolveParams) (interface{}, error) {
		address, err := addressArg(p)
		if err != nil {
			return nil, err
		}
		if add {
			s.wallet.Track(address)
		} else {
			s.wallet.Untrack(address)
		}
		return s.resolveTracked(p)
	}
}

func (s *Schema) resolveEncodeChangeRole(p graphql.ResolveParams) (interface{}, error) {
	in, _ := p.Args["msg"].(map[string]interface{})
	msg, err := changeRoleFromInput(in)
	if err != nil {
		return nil, err
	}
	enc, err := codec.Encode(msg)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"typeUrl": enc.TypeURL,
		"base64":  enc.Base64,
		"hex":     enc.Hex,
	}, nil
}

func (s *Schema) resolveDecodeChangeRole(p graphql.ResolveParams) (interface{}, error) {
	data, _ := p.Args["data"].(string)
	msg, err := codec.DecodeText(data)
	if err != nil {
		return nil, err
	}
	return changeRoleToMap(msg), nil
}

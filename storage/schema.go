package storage

import (
	"encoding/binary"
	"fmt"
	"math"
	"strings"
)

// Key prefixes
const (
	prefixAddr     = "/index/addr/"
	prefixAddrHash = "/index/addrh/"
	prefixAddrSeq  = "/meta/addrseq/"
	prefixCursor   = "/meta/cursor/"
)

// AddressTransactionKeyPrefix returns the prefix shared by all hashes of address
// Format: /index/addr/{address}/
func AddressTransactionKeyPrefix(address string) []byte {
	return []byte(prefixAddr + address + "/")
}

// AddressTransactionKey returns the list key of the seq-th hash appended
// for address. The sequence is stored inverted and zero-padded so a
// forward scan yields newest first.
// Format: /index/addr/{address}/{MaxUint64-seq}
func AddressTransactionKey(address string, seq uint64) []byte {
	return []byte(fmt.Sprintf("%s%s/%020d", prefixAddr, address, math.MaxUint64-seq))
}

// AddressHashKey returns the membership key used to deduplicate appends
// Format: /index/addrh/{address}/{hash}
func AddressHashKey(address, hash string) []byte {
	return []byte(prefixAddrHash + address + "/" + hash)
}

// AddressSeqKey returns the key holding the next sequence number for address
// Format: /meta/addrseq/{address}
func AddressSeqKey(address string) []byte {
	return []byte(prefixAddrSeq + address)
}

// CursorKey returns the key holding the last scan time for address
// Format: /meta/cursor/{address}
func CursorKey(address string) []byte {
	return []byte(prefixCursor + address)
}

// ParseAddressSeqKey extracts the address from an AddressSeqKey
func ParseAddressSeqKey(key []byte) (string, error) {
	s := string(key)
	if !strings.HasPrefix(s, prefixAddrSeq) || len(s) == len(prefixAddrSeq) {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, s)
	}
	return strings.TrimPrefix(s, prefixAddrSeq), nil
}

// prefixUpperBound returns the smallest key greater than every key with prefix
func prefixUpperBound(prefix []byte) []byte {
	upper := make([]byte, len(prefix))
	copy(upper, prefix)
	for i := len(upper) - 1; i >= 0; i-- {
		upper[i]++
		if upper[i] != 0 {
			return upper[:i+1]
		}
	}
	return nil
}

// EncodeUint64 encodes a uint64 to bytes (big-endian)
func EncodeUint64(n uint64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, n)
	return buf
}

// DecodeUint64 decodes bytes to uint64 (big-endian)
func DecodeUint64(data []byte) (uint64, error) {
	if len(data) != 8 {
		return 0, fmt.Errorf("%w: expected 8 bytes, got %d", ErrInvalidData, len(data))
	}
	return binary.BigEndian.Uint64(data), nil
}

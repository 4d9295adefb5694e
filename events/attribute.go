package events

import (
	"encoding/base64"
)

// Decode returns the attribute's key and value as plain strings.
//
// Plain attributes are returned unchanged. Base64 attributes are decoded
// field by field; a field that is not valid base64 is returned raw. Decode
// never fails, so a malformed attribute cannot abort event extraction.
func Decode(attr Attribute) (key, value string) {
	if attr.Encoding == EncodingPlain {
		return attr.Key, attr.Value
	}
	return decodeBase64(attr.Key), decodeBase64(attr.Value)
}

func decodeBase64(s string) string {
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return s
	}
	return string(b)
}

// PlainAttribute builds an attribute carried as plain text
func PlainAttribute(key, value string) Attribute {
	return Attribute{Key: key, Value: value, Encoding: EncodingPlain}
}

// Base64Attribute builds an attribute carried as base64, encoding key and value
func Base64Attribute(key, value string) Attribute {
	return Attribute{
		Key:      base64.StdEncoding.EncodeToString([]byte(key)),
		Value:    base64.StdEncoding.EncodeToString([]byte(value)),
		Encoding: EncodingBase64,
	}
}

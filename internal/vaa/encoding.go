package vaa

import (
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"
)

// Encoding selects how VAA bytes are rendered to operators.
type Encoding string

const (
	EncodingBase64 Encoding = "base64"
	EncodingHex    Encoding = "hex"
)

func ParseEncoding(s string) (Encoding, error) {
	switch Encoding(strings.ToLower(s)) {
	case "", EncodingBase64:
		return EncodingBase64, nil
	case EncodingHex:
		return EncodingHex, nil
	}
	return "", fmt.Errorf("unknown encoding %q (valid: base64, hex)", s)
}

// Format renders raw VAA bytes. Hex output is 0x-prefixed.
func (e Encoding) Format(raw []byte) string {
	if e == EncodingHex {
		return "0x" + hex.EncodeToString(raw)
	}
	return base64.StdEncoding.EncodeToString(raw)
}

// DecodeString accepts either 0x-prefixed hex or standard base64.
func DecodeString(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		b, err := hex.DecodeString(s[2:])
		if err != nil {
			return nil, fmt.Errorf("invalid hex VAA: %w", err)
		}
		return b, nil
	}
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid base64 VAA: %w", err)
	}
	return b, nil
}

// Base64ToHex converts a guardian base64 payload to 0x-prefixed hex.
func Base64ToHex(s string) (string, error) {
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return "", fmt.Errorf("invalid base64 VAA: %w", err)
	}
	return EncodingHex.Format(b), nil
}

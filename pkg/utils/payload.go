package utils

import (
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"
)

// Payload encodings accepted on the command line.
const (
	EncodingText   = "text"
	EncodingHex    = "hex"
	EncodingBase64 = "base64"
)

// Encodings lists the supported payload encodings.
var Encodings = []string{EncodingText, EncodingHex, EncodingBase64}

// DecodePayload converts a command line payload to bytes. Hex input may carry
// a 0x prefix.
func DecodePayload(input, encoding string) ([]byte, error) {
	switch encoding {
	case EncodingText, "":
		return []byte(input), nil
	case EncodingHex:
		// Remove 0x prefix if present
		input = strings.TrimPrefix(strings.TrimPrefix(input, "0x"), "0X")
		b, err := hex.DecodeString(input)
		if err != nil {
			return nil, fmt.Errorf("invalid hex payload: %w", err)
		}
		return b, nil
	case EncodingBase64:
		b, err := base64.StdEncoding.DecodeString(input)
		if err != nil {
			return nil, fmt.Errorf("invalid base64 payload: %w", err)
		}
		return b, nil
	default:
		return nil, fmt.Errorf("unknown encoding %q, expected one of %s", encoding, strings.Join(Encodings, ", "))
	}
}

// EncodePayload renders payload for display. Hex output has no prefix.
func EncodePayload(payload []byte, encoding string) (string, error) {
	switch encoding {
	case EncodingText, "":
		return string(payload), nil
	case EncodingHex:
		return hex.EncodeToString(payload), nil
	case EncodingBase64:
		return base64.StdEncoding.EncodeToString(payload), nil
	default:
		return "", fmt.Errorf("unknown encoding %q, expected one of %s", encoding, strings.Join(Encodings, ", "))
	}
}

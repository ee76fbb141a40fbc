// Package xor obfuscates credentials at rest with a repeating-key XOR and
// standard base64. It keeps cookies out of casual view; it is not encryption.
package xor

import (
	"encoding/base64"
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/bnema/autoseed-cli/internal/ports"
)

const DefaultKey = "AUTOSEED_SECURE_V1_KEY"

var ErrInvalidBlob = errors.New("invalid credential blob")

type Codec struct {
	key []byte
}

var _ ports.CredentialCodec = Codec{}

func New(key string) Codec {
	if key == "" {
		key = DefaultKey
	}
	return Codec{key: []byte(key)}
}

func (c Codec) Encode(raw string) string {
	if raw == "" {
		return ""
	}
	return base64.StdEncoding.EncodeToString(c.apply([]byte(raw)))
}

func (c Codec) Decode(encoded string) (string, error) {
	if encoded == "" {
		return "", nil
	}

	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidBlob, err)
	}

	plain := c.apply(data)
	if !utf8.Valid(plain) {
		return "", fmt.Errorf("%w: decoded credential is not utf-8", ErrInvalidBlob)
	}
	return string(plain), nil
}

func (c Codec) apply(data []byte) []byte {
	key := c.key
	if len(key) == 0 {
		key = []byte(DefaultKey)
	}

	out := make([]byte, len(data))
	for i, b := range data {
		out[i] = b ^ key[i%len(key)]
	}
	return out
}

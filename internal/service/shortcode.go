package service

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"net/url"
	"strings"
)

// Base62 character set for short code generation
const base62Chars = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

// ShortCodeGenerator produces fixed-length short codes from a URL-safe
// alphabet. Each call salts the hash input with random bytes so collision
// retries yield a fresh candidate for the same target.
type ShortCodeGenerator struct {
	codeLength int
}

// NewShortCodeGenerator creates a new short code generator
func NewShortCodeGenerator(codeLength int) *ShortCodeGenerator {
	return &ShortCodeGenerator{codeLength: codeLength}
}

// Canonicalize normalizes a long URL for hashing. It lowercases the host,
// removes default ports, strips a trailing slash and removes fragments.
// The stored target is never normalized; this affects code derivation only.
func Canonicalize(longURL string) (string, error) {
	u, err := url.Parse(longURL)
	if err != nil {
		return "", err
	}
	if !u.IsAbs() || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return "", ErrInvalidURL
	}

	u.Host = strings.ToLower(u.Host)

	// u.Host might be "example.com:443" → "example.com"
	if u.Scheme == "https" && strings.HasSuffix(u.Host, ":443") {
		u.Host = strings.TrimSuffix(u.Host, ":443")
	}
	if u.Scheme == "http" && strings.HasSuffix(u.Host, ":80") {
		u.Host = strings.TrimSuffix(u.Host, ":80")
	}

	u.Path = strings.TrimSuffix(u.Path, "/")
	u.Fragment = ""

	return u.String(), nil
}

// HashURL hashes a string to a uint64 using sha256
func HashURL(s string) uint64 {
	h := sha256.Sum256([]byte(s))
	return binary.BigEndian.Uint64(h[:8])
}

// Generate creates a short code candidate for the given long URL. The
// canonicalized URL plus a random salt is hashed, Base62-encoded and
// truncated to the configured length. Uniqueness is enforced by the
// directory at insert time; callers retry on conflict.
func (g *ShortCodeGenerator) Generate(longURL string) (string, error) {
	c, err := Canonicalize(longURL)
	if err != nil {
		return "", ErrInvalidURL
	}

	var salt [8]byte
	if _, err := rand.Read(salt[:]); err != nil {
		return "", ErrShortCodeGeneration
	}

	h := HashURL(c + string(salt[:]))
	s := EncodeBase62(h)
	// Hashes below 62^(length-1) encode short; pad so the code length is
	// fixed regardless of the hash value.
	for len(s) < g.codeLength {
		s = string(base62Chars[0]) + s
	}
	return s[:g.codeLength], nil
}

// EncodeBase62 encodes a number to a Base62 string
func EncodeBase62(num uint64) string {
	if num == 0 {
		return string(base62Chars[0]) // "0"
	}
	encoded := ""
	for num > 0 {
		remainder := num % 62
		encoded = string(base62Chars[remainder]) + encoded
		num = num / 62
	}
	return encoded
}

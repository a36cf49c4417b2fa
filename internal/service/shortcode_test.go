package service

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeBase62(t *testing.T) {
	tests := []struct {
		name     string
		input    uint64
		expected string
	}{
		{"zero", 0, "0"},
		{"single digit max", 61, "z"},
		{"two digits", 62, "10"},
		{"larger number", 12345, "3D7"},
		{"max uint64", 18446744073709551615, "LygHa16AHYF"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := EncodeBase62(tt.input)
			assert.Equal(t, tt.expected, result, "EncodeBase62(%d)", tt.input)
		})
	}
}

func TestCanonicalize(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
		wantErr  bool
	}{
		{
			name:     "lowercase host",
			input:    "https://EXAMPLE.COM/page",
			expected: "https://example.com/page",
		},
		{
			name:     "remove https default port",
			input:    "https://example.com:443/page",
			expected: "https://example.com/page",
		},
		{
			name:     "remove http default port",
			input:    "http://example.com:80/page",
			expected: "http://example.com/page",
		},
		{
			name:     "keep non-default port",
			input:    "https://example.com:8080/page",
			expected: "https://example.com:8080/page",
		},
		{
			name:     "remove trailing slash",
			input:    "https://example.com/page/",
			expected: "https://example.com/page",
		},
		{
			name:     "remove fragment",
			input:    "https://example.com/page#section",
			expected: "https://example.com/page",
		},
		{
			name:     "keep query params",
			input:    "https://example.com/page?foo=bar",
			expected: "https://example.com/page?foo=bar",
		},
		{
			name:    "relative URL rejected",
			input:   "/just/a/path",
			wantErr: true,
		},
		{
			name:    "missing host rejected",
			input:   "https://",
			wantErr: true,
		},
		{
			name:    "non-http scheme rejected",
			input:   "ftp://example.com/file",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := Canonicalize(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, result, "Canonicalize(%s)", tt.input)
		})
	}
}

func TestHashURL(t *testing.T) {
	// Same input should produce same output
	url := "https://example.com/page"
	hash1 := HashURL(url)
	hash2 := HashURL(url)

	assert.Equal(t, hash1, hash2, "HashURL should be deterministic")

	// Different inputs should produce different outputs
	hash3 := HashURL("https://example.com/other")
	assert.NotEqual(t, hash1, hash3, "HashURL should produce different hashes for different URLs")

	// Should not be zero for valid URL
	assert.NotZero(t, hash1, "HashURL should not return 0 for valid URL")
}

func TestShortCodeGenerator_Generate(t *testing.T) {
	generator := NewShortCodeGenerator(7)

	tests := []struct {
		name    string
		url     string
		wantErr bool
	}{
		{
			name: "valid https URL",
			url:  "https://example.com/very/long/path/to/page",
		},
		{
			name: "valid http URL",
			url:  "http://example.com/page",
		},
		{
			name: "URL with query params",
			url:  "https://example.com/page?foo=bar&baz=qux",
		},
		{
			name:    "invalid URL",
			url:     "not a url",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, err := generator.Generate(tt.url)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidURL)
				return
			}
			require.NoError(t, err)

			// Check code length
			assert.Len(t, code, 7, "code length should be 7")

			// Check code contains only base62 characters
			for _, c := range code {
				assert.True(t, strings.ContainsRune(base62Chars, c), "code contains invalid character: %c", c)
			}
		})
	}
}

func TestShortCodeGenerator_Generate_SaltedRetries(t *testing.T) {
	generator := NewShortCodeGenerator(7)

	// Repeated generation for the same target must yield fresh candidates
	// so collision retries can make progress.
	url := "https://example.com/page"
	code1, err := generator.Generate(url)
	require.NoError(t, err)
	code2, err := generator.Generate(url)
	require.NoError(t, err)

	assert.NotEqual(t, code1, code2, "salted generation should diverge between calls")
}

func TestShortCodeGenerator_Generate_FixedLength(t *testing.T) {
	for _, length := range []int{4, 7, 10} {
		generator := NewShortCodeGenerator(length)
		for i := 0; i < 50; i++ {
			code, err := generator.Generate("https://example.com/page")
			require.NoError(t, err)
			assert.Len(t, code, length)
		}
	}
}

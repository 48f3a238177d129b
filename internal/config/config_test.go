package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewConfig(t *testing.T) {
	var (
		addr = "localhost:8080"
		dsn  = "host=localhost user=postgres password=postgres dbname=postgres sslmode=disable"
		base = "http://localhost:8080"
		orig = []string{"http://localhost:3000"}
	)

	tcases := []struct {
		name string
		addr string
		dsn  string
		base string
		orig []string
		err  bool
	}{
		{
			name: "valid config",
			addr: addr,
			dsn:  dsn,
			base: base,
			orig: orig,
			err:  false,
		},
		{
			name: "in-memory only",
			addr: addr,
			dsn:  "",
			base: base,
			orig: orig,
			err:  false,
		},
		{
			name: "empty address",
			addr: "",
			dsn:  dsn,
			base: base,
			orig: orig,
			err:  true,
		},
		{
			name: "empty base URL",
			addr: addr,
			dsn:  dsn,
			base: "",
			orig: orig,
			err:  true,
		},
		{
			name: "base URL without scheme",
			addr: addr,
			dsn:  dsn,
			base: "localhost:8080",
			orig: orig,
			err:  true,
		},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			config, err := NewConfig(tc.addr, tc.dsn, tc.base, tc.orig)
			if tc.err {
				assert.Error(t, err, "expected error for config: %s", tc.name)
				return
			}
			assert.NoError(t, err, "expected no error for config: %s", tc.name)

			assert.Equal(t, tc.addr, config.ServerAddr, "expected server address to match")
			assert.Equal(t, tc.dsn, config.DatabaseDSN, "expected database DSN to match")
			assert.Equal(t, tc.base, config.BaseURL, "expected base URL to match")
			assert.Equal(t, tc.orig, config.AllowedOrigins, "expected allowed origins to match")
		})
	}
}

func Test_parseBaseURL(t *testing.T) {
	tcases := []struct {
		name     string
		raw      string
		expected string
		err      bool
	}{
		{
			name:     "trailing slash is trimmed",
			raw:      "https://speakup.example.com/",
			expected: "https://speakup.example.com",
		},
		{
			name:     "path is kept",
			raw:      "https://example.com/speakup",
			expected: "https://example.com/speakup",
		},
		{
			name: "unsupported scheme",
			raw:  "ftp://example.com",
			err:  true,
		},
		{
			name: "missing host",
			raw:  "http://",
			err:  true,
		},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			res, err := parseBaseURL(tc.raw)
			if tc.err {
				assert.Error(t, err, "expected error for %q", tc.raw)
				return
			}
			assert.NoError(t, err, "expected no error for %q", tc.raw)
			assert.Equal(t, tc.expected, res)
		})
	}
}

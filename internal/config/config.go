package config

import (
	"fmt"
	"net/url"
	"strings"
)

type Config struct {
	ServerAddr string
	// DatabaseDSN is optional; without it meetings live in memory only.
	DatabaseDSN    string
	BaseURL        string
	AllowedOrigins []string
}

func parseBaseURL(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}

	if u.Host == "" {
		return "", fmt.Errorf("missing host")
	}

	return strings.TrimRight(u.String(), "/"), nil
}

func NewConfig(serverAddr, databaseDSN, baseURL string, allowedOrigins []string) (*Config, error) {
	if serverAddr == "" {
		return nil, fmt.Errorf("server address cannot be empty")
	}
	if baseURL == "" {
		return nil, fmt.Errorf("base URL cannot be empty")
	}

	base, err := parseBaseURL(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base URL: %w", err)
	}

	return &Config{
		ServerAddr:     serverAddr,
		DatabaseDSN:    databaseDSN,
		BaseURL:        base,
		AllowedOrigins: allowedOrigins,
	}, nil
}

package secrets

import (
	"bytes"
	"compress/gzip"
	"encoding/base64"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/aws/aws-secretsmanager-caching-go/v2/secretcache"
)

// Manager wraps the Secrets Manager cache client.
type Manager struct {
	cache *secretcache.Cache
}

// NewManager creates a new Secrets Manager cache.
func NewManager() (*Manager, error) {
	cache, err := secretcache.New()
	if err != nil {
		return nil, err
	}
	return &Manager{cache: cache}, nil
}

// GetSecretString retrieves a secret value from Secrets Manager.
func (m *Manager) GetSecretString(secretName string) (string, error) {
	if secretName == "" {
		return "", fmt.Errorf("secret name is required")
	}
	return m.cache.GetSecretString(secretName)
}

// LoadSecretFromFile reads a secret value from a local file.
func LoadSecretFromFile(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("file path is required")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// ResolveCredentials loads the directory credentials JSON. Sources are tried in
// order: inline value, Secrets Manager, local file. The value may be plain JSON
// or gzip-compressed JSON encoded as base64 (the form the account-connect
// callback hands out).
func ResolveCredentials(inline string, secretName string, filePath string) ([]byte, error) {
	var raw string
	switch {
	case inline != "":
		raw = inline
	case secretName != "":
		manager, err := NewManager()
		if err != nil {
			return nil, err
		}
		value, err := manager.GetSecretString(secretName)
		if err != nil {
			return nil, fmt.Errorf("reading secret %s: %w", secretName, err)
		}
		raw = value
	default:
		value, err := LoadSecretFromFile(filePath)
		if err != nil {
			return nil, err
		}
		raw = value
	}
	return DecodeCredentials(raw)
}

// DecodeCredentials returns JSON credentials, unwrapping base64+gzip if needed.
func DecodeCredentials(raw string) ([]byte, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, fmt.Errorf("credentials are empty")
	}
	if strings.HasPrefix(trimmed, "{") {
		return []byte(trimmed), nil
	}

	decoded, err := base64.StdEncoding.DecodeString(trimmed)
	if err != nil {
		return nil, fmt.Errorf("credentials are neither JSON nor base64: %w", err)
	}
	zr, err := gzip.NewReader(bytes.NewReader(decoded))
	if err != nil {
		return nil, fmt.Errorf("opening gzip credentials: %w", err)
	}
	defer zr.Close()

	data, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("reading gzip credentials: %w", err)
	}
	return data, nil
}

// Package secrets overlays credentials kept in a Vault KV store onto the
// process environment before configuration is loaded.
package secrets

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// ErrIncomplete is returned when the overlay is enabled but cannot locate
// the secret.
var ErrIncomplete = errors.New("vault overlay needs VAULT_ADDR, VAULT_TOKEN and VAULT_PATH")

// VaultSource locates one KV secret whose keys are environment variable
// names, e.g. DB_PASSWORD or REDIS_PASSWORD.
type VaultSource struct {
	Enabled   bool
	Addr      string
	Token     string
	Namespace string
	Mount     string
	Path      string
	KVVersion int
	Timeout   time.Duration
	// Overwrite replaces variables that are already set
	Overwrite bool
}

// OverlayResult reports what an overlay did
type OverlayResult struct {
	Path    string
	Applied []string
	Kept    []string
}

// SourceFromEnv reads the VAULT_* variables
func SourceFromEnv() VaultSource {
	src := VaultSource{
		Enabled:   strings.EqualFold(os.Getenv("VAULT_ENABLED"), "true"),
		Addr:      os.Getenv("VAULT_ADDR"),
		Token:     os.Getenv("VAULT_TOKEN"),
		Namespace: os.Getenv("VAULT_NAMESPACE"),
		Mount:     "secret",
		Path:      os.Getenv("VAULT_PATH"),
		KVVersion: 2,
		Timeout:   5 * time.Second,
		Overwrite: strings.EqualFold(os.Getenv("VAULT_OVERWRITE"), "true"),
	}
	if v := os.Getenv("VAULT_MOUNT"); v != "" {
		src.Mount = v
	}
	if v, err := strconv.Atoi(os.Getenv("VAULT_KV_VERSION")); err == nil && (v == 1 || v == 2) {
		src.KVVersion = v
	}
	if v, err := time.ParseDuration(os.Getenv("VAULT_TIMEOUT")); err == nil && v > 0 {
		src.Timeout = v
	}
	return src
}

// LoadFromEnv applies the overlay described by the VAULT_* variables. A
// disabled overlay is a no-op.
func LoadFromEnv(ctx context.Context) (OverlayResult, error) {
	src := SourceFromEnv()
	if !src.Enabled {
		return OverlayResult{}, nil
	}
	res, err := src.Overlay(ctx, http.DefaultClient)
	if err != nil {
		return res, err
	}
	log.Info().Str("path", res.Path).Int("applied", len(res.Applied)).Int("kept", len(res.Kept)).
		Msg("Loaded secrets from Vault")
	return res, nil
}

// Overlay fetches the secret and exports each key into the environment
func (s VaultSource) Overlay(ctx context.Context, client *http.Client) (OverlayResult, error) {
	res := OverlayResult{Path: s.Path}
	data, err := s.fetch(ctx, client)
	if err != nil {
		return res, err
	}

	for key, value := range data {
		if !s.Overwrite && os.Getenv(key) != "" {
			res.Kept = append(res.Kept, key)
			continue
		}
		if err := os.Setenv(key, envValue(value)); err != nil {
			return res, fmt.Errorf("exporting %s: %w", key, err)
		}
		res.Applied = append(res.Applied, key)
	}
	return res, nil
}

func (s VaultSource) fetch(ctx context.Context, client *http.Client) (map[string]any, error) {
	url, err := s.url()
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-Vault-Token", s.Token)
	if s.Namespace != "" {
		req.Header.Set("X-Vault-Namespace", s.Namespace)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("vault request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("reading vault response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("vault returned %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}

	// KV v2 nests the secret one level deeper than v1
	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("decoding vault response: %w", err)
	}
	raw := envelope.Data
	if s.KVVersion == 2 && len(raw) > 0 {
		var inner struct {
			Data json.RawMessage `json:"data"`
		}
		if err := json.Unmarshal(raw, &inner); err != nil {
			return nil, fmt.Errorf("decoding vault kv v2 payload: %w", err)
		}
		raw = inner.Data
	}

	var data map[string]any
	if len(raw) == 0 || json.Unmarshal(raw, &data) != nil || data == nil {
		return nil, fmt.Errorf("vault secret %s has no data", s.Path)
	}
	return data, nil
}

func (s VaultSource) url() (string, error) {
	addr := strings.TrimRight(s.Addr, "/")
	path := strings.Trim(s.Path, "/")
	mount := strings.Trim(s.Mount, "/")
	if addr == "" || s.Token == "" || path == "" {
		return "", ErrIncomplete
	}
	if s.KVVersion == 1 {
		return addr + "/v1/" + mount + "/" + path, nil
	}
	return addr + "/v1/" + mount + "/data/" + path, nil
}

func envValue(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprint(v)
		}
		return string(encoded)
	}
}

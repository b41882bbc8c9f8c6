// Package secrets resolves named credentials for the pipeline's
// external services (the FIRMS map key and the reverse-geocode API
// key). Credentials live in a small JSON document, mirroring the
// deployment's secret payloads, with a static in-process source for
// environments that inject them directly.
package secrets

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
)

// Well-known credential names.
const (
	MapKey = "map_key" // FIRMS area API key
	APIKey = "api_key" // reverse-geocode API key
)

// Source resolves a named credential. An empty string with a nil error
// means the credential is intentionally unset.
type Source interface {
	Get(ctx context.Context, name string) (string, error)
}

// File reads credentials from a JSON document of string fields, e.g.
// {"map_key":"...","api_key":"..."}. The file is re-read per call so a
// rotated secret is picked up by the next fetch cycle; callers that
// cache (the geocode client) do so deliberately.
type File struct {
	Path string
}

func (f File) Get(_ context.Context, name string) (string, error) {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return "", fmt.Errorf("read secrets file: %w", err)
	}
	var doc map[string]string
	if err := json.Unmarshal(data, &doc); err != nil {
		return "", fmt.Errorf("parse secrets file: %w", err)
	}
	return doc[name], nil
}

// Static serves credentials from an in-memory map, used when keys come
// straight from the environment.
type Static map[string]string

func (s Static) Get(_ context.Context, name string) (string, error) {
	return s[name], nil
}

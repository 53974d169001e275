package daemon

import (
	"encoding/base64"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/docker/docker/api/types/registry"
)

func decodeAuthHeader(t *testing.T, encoded string) registry.AuthConfig {
	t.Helper()
	raw, err := base64.URLEncoding.DecodeString(encoded)
	if err != nil {
		t.Fatalf("decoding auth header: %v", err)
	}
	var auth registry.AuthConfig
	if err := json.Unmarshal(raw, &auth); err != nil {
		t.Fatalf("unmarshalling auth header: %v", err)
	}
	return auth
}

func TestResolveAuth_InlineConfigWins(t *testing.T) {
	t.Setenv("DOCKER_AUTH_CONFIG", `{"auths":{"ghcr.io":{"username":"bot","password":"s3cret"}}}`)
	t.Setenv("DOCKER_CONFIG", t.TempDir()) // would be empty, must not be consulted

	encoded, err := ResolveAuth("ghcr.io/acme/svc:1.0")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	auth := decodeAuthHeader(t, encoded)
	if auth.Username != "bot" || auth.Password != "s3cret" {
		t.Errorf("auth = %+v", auth)
	}
}

func TestResolveAuth_ConfigDir(t *testing.T) {
	t.Setenv("DOCKER_AUTH_CONFIG", "")
	dir := t.TempDir()
	t.Setenv("DOCKER_CONFIG", dir)

	basic := base64.StdEncoding.EncodeToString([]byte("user:pass"))
	content := `{"auths":{"registry.example.com":{"auth":"` + basic + `"}}}`
	if err := os.WriteFile(filepath.Join(dir, "config.json"), []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	encoded, err := ResolveAuth("registry.example.com/app:2")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	auth := decodeAuthHeader(t, encoded)
	if auth.Username != "user" || auth.Password != "pass" {
		t.Errorf("auth = %+v, want decoded basic credentials", auth)
	}
}

func TestResolveAuth_NoMatchingRegistry(t *testing.T) {
	t.Setenv("DOCKER_AUTH_CONFIG", `{"auths":{"ghcr.io":{"username":"bot","password":"x"}}}`)

	encoded, err := ResolveAuth("quay.io/other/image:1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if encoded != "" {
		t.Errorf("expected empty auth for unknown registry, got %q", encoded)
	}
}

func TestResolveAuth_NoConfigAnywhere(t *testing.T) {
	t.Setenv("DOCKER_AUTH_CONFIG", "")
	t.Setenv("DOCKER_CONFIG", t.TempDir())

	encoded, err := ResolveAuth("alpine:3.19")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if encoded != "" {
		t.Errorf("expected empty auth, got %q", encoded)
	}
}

func TestRegistryHost(t *testing.T) {
	tests := []struct {
		ref  string
		want string
	}{
		{"alpine:3.19", indexServer},
		{"library/alpine", indexServer},
		{"ghcr.io/acme/svc:1.0", "ghcr.io"},
		{"localhost:5000/svc", "localhost:5000"},
		{"localhost/svc", "localhost"},
	}
	for _, tt := range tests {
		if got := registryHost(tt.ref); got != tt.want {
			t.Errorf("registryHost(%q) = %q, want %q", tt.ref, got, tt.want)
		}
	}
}

package daemon

import (
	"encoding/base64"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/docker/docker/api/types/registry"
)

// indexServer is the auth key Docker Hub credentials are stored under.
const indexServer = "https://index.docker.io/v1/"

// authFile mirrors the auths section of a Docker config.json.
type authFile struct {
	Auths map[string]registry.AuthConfig `json:"auths"`
}

// ResolveAuth returns the encoded X-Registry-Auth header value for pulling
// the given image reference, or "" when no credential matches.
//
// Resolution order: DOCKER_AUTH_CONFIG (inline JSON) -> DOCKER_CONFIG
// directory -> ~/.docker/config.json. The first source that parses wins,
// even if it holds no entry for the registry.
func ResolveAuth(ref string) (string, error) {
	cfg, err := loadAuthFile()
	if err != nil {
		return "", err
	}
	if cfg == nil {
		return "", nil
	}

	host := registryHost(ref)
	auth, ok := cfg.Auths[host]
	if !ok {
		// config.json sometimes keys registries with a scheme prefix
		for key, candidate := range cfg.Auths {
			if strings.TrimPrefix(strings.TrimPrefix(key, "https://"), "http://") == host ||
				strings.TrimSuffix(strings.TrimPrefix(strings.TrimPrefix(key, "https://"), "http://"), "/") == host {
				auth, ok = candidate, true
				break
			}
		}
	}
	if !ok {
		return "", nil
	}

	if auth.Username == "" && auth.Auth != "" {
		decoded, err := base64.StdEncoding.DecodeString(auth.Auth)
		if err == nil {
			if user, pass, found := strings.Cut(string(decoded), ":"); found {
				auth.Username = user
				auth.Password = pass
			}
		}
	}
	auth.ServerAddress = host

	return registry.EncodeAuthConfig(auth)
}

func loadAuthFile() (*authFile, error) {
	if inline := os.Getenv("DOCKER_AUTH_CONFIG"); inline != "" {
		var cfg authFile
		if err := json.Unmarshal([]byte(inline), &cfg); err != nil {
			return nil, err
		}
		return &cfg, nil
	}

	dir := os.Getenv("DOCKER_CONFIG")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, nil
		}
		dir = filepath.Join(home, ".docker")
	}

	data, err := os.ReadFile(filepath.Join(dir, "config.json"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var cfg authFile
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// registryHost extracts the registry component of an image reference.
// References without an explicit registry resolve to Docker Hub.
func registryHost(ref string) string {
	first, _, found := strings.Cut(ref, "/")
	if found && (strings.ContainsAny(first, ".:") || first == "localhost") {
		return first
	}
	return indexServer
}

package drydock

import (
	"errors"
	"testing"
)

func TestNewRequest_TagParsing(t *testing.T) {
	tests := []struct {
		ref  string
		want string
	}{
		{"redis:7.2.4", "redis:7.2.4"},
		{"alpine", "alpine:latest"},
		{"ghcr.io/acme/svc:1.0", "ghcr.io/acme/svc:1.0"},
		{"localhost:5000/svc", "localhost:5000/svc:latest"},
	}
	for _, tt := range tests {
		if got := NewRequest(tt.ref).Ref(); got != tt.want {
			t.Errorf("NewRequest(%q).Ref() = %q, want %q", tt.ref, got, tt.want)
		}
	}
}

func TestRequest_SettersDoNotMutateOriginal(t *testing.T) {
	base := NewRequest("alpine:3.19").WithEnv("A", "1")
	derived := base.WithEnv("A", "2").WithCmd("echo").WithExposedPorts("80")

	if base.env["A"] != "1" {
		t.Errorf("base env mutated to %q", base.env["A"])
	}
	if len(base.cmd) != 0 || len(base.exposedPorts) != 0 {
		t.Error("base request gained fields from derived request")
	}
	if derived.env["A"] != "2" {
		t.Errorf("derived env = %q, want 2", derived.env["A"])
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		req     Request
		wantErr bool
	}{
		{"valid", NewRequest("alpine:3.19"), false},
		{"empty image", Request{}, true},
		{"host port 22", NewRequest("alpine").WithExposedHostPorts(22), true},
		{"host port 0", NewRequest("alpine").WithExposedHostPorts(0), true},
		{"host ports with reuse", NewRequest("alpine").WithExposedHostPorts(8080).WithReuse("db"), true},
		{"host ports with host network", NewRequest("alpine").WithExposedHostPorts(8080).WithNetworkMode("host"), true},
		{"host ports with container network", NewRequest("alpine").WithExposedHostPorts(8080).WithNetworkMode("container:abc"), true},
		{"host ports alone", NewRequest("alpine").WithExposedHostPorts(8080), false},
		{"reuse alone", NewRequest("alpine").WithReuse("db"), false},
		{"empty mount target", NewRequest("alpine").WithMount(Mount{Kind: MountTmpfs}), true},
		{"duplicate mount target", NewRequest("alpine").
			WithMount(Mount{Kind: MountTmpfs, Target: "/tmp"}).
			WithMount(Mount{Kind: MountBind, Source: "/data", Target: "/tmp"}), true},
		{"empty copy target", NewRequest("alpine").WithCopyBytes("", []byte("x")), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() = %v, wantErr %t", err, tt.wantErr)
			}
			if err != nil {
				var invalid *InvalidRequestError
				if !errors.As(err, &invalid) {
					t.Errorf("error %v is not an InvalidRequestError", err)
				}
			}
		})
	}
}

func TestReuseHash(t *testing.T) {
	a := NewRequest("redis:7").WithEnv("A", "1").WithReuse("cache")
	b := NewRequest("redis:7").WithEnv("A", "1").WithReuse("cache")
	if a.reuseHash() != b.reuseHash() {
		t.Error("identical requests produced different reuse hashes")
	}

	c := b.WithEnv("A", "2")
	if a.reuseHash() == c.reuseHash() {
		t.Error("different requests produced the same reuse hash")
	}
}

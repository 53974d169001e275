package sshtunnel

import (
	"bytes"
	"context"
	"testing"
	"time"

	"golang.org/x/crypto/ssh"
)

func TestGenerateKeyPair(t *testing.T) {
	keys, err := GenerateKeyPair()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if keys.Signer.PublicKey().Type() != ssh.KeyAlgoED25519 {
		t.Errorf("key type = %q, want ed25519", keys.Signer.PublicKey().Type())
	}

	parsed, _, _, _, err := ssh.ParseAuthorizedKey(keys.AuthorizedKey)
	if err != nil {
		t.Fatalf("authorized key does not parse: %v", err)
	}
	if !bytes.Equal(parsed.Marshal(), keys.Signer.PublicKey().Marshal()) {
		t.Error("authorized key does not match the signer's public key")
	}
}

func TestGenerateKeyPair_Unique(t *testing.T) {
	a, err := GenerateKeyPair()
	if err != nil {
		t.Fatal(err)
	}
	b, err := GenerateKeyPair()
	if err != nil {
		t.Fatal(err)
	}
	if bytes.Equal(a.AuthorizedKey, b.AuthorizedKey) {
		t.Error("two sessions generated the same key pair")
	}
}

func TestDial_GivesUpWhenContextExpires(t *testing.T) {
	keys, err := GenerateKeyPair()
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	// Reserved port with nothing listening; dial must retry until the
	// context runs out, then fail.
	if _, err := Dial(ctx, "127.0.0.1:1", keys); err == nil {
		t.Fatal("expected error when nothing listens")
	}
}

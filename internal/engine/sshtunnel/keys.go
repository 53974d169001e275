// Package sshtunnel maintains the SSH session and reverse port-forward
// tunnels behind host-port exposure. The sidecar container itself is started
// by the lifecycle engine; this package owns everything that happens on the
// wire once the sidecar's SSH daemon is up.
package sshtunnel

import (
	"crypto/ed25519"
	"crypto/rand"
	"fmt"

	"golang.org/x/crypto/ssh"
)

// KeyPair is the one-shot credential for a sidecar session. The private key
// only ever lives in this process; the public half is written into the
// sidecar's authorized_keys before it starts.
type KeyPair struct {
	Signer ssh.Signer
	// AuthorizedKey is the public key in authorized_keys format.
	AuthorizedKey []byte
}

// GenerateKeyPair creates an ephemeral ed25519 key pair.
func GenerateKeyPair() (*KeyPair, error) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generating sidecar key: %w", err)
	}
	signer, err := ssh.NewSignerFromKey(priv)
	if err != nil {
		return nil, fmt.Errorf("wrapping sidecar key: %w", err)
	}
	return &KeyPair{
		Signer:        signer,
		AuthorizedKey: ssh.MarshalAuthorizedKey(signer.PublicKey()),
	}, nil
}

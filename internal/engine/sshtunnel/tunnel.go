package sshtunnel

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/sethvargo/go-retry"
	"golang.org/x/crypto/ssh"
	"golang.org/x/sync/errgroup"

	"github.com/irahardianto/drydock/internal/platform/logger"
)

const (
	sshUser     = "root"
	dialTimeout = 5 * time.Second
	// dialRetryInterval paces connection attempts while the sidecar's sshd
	// is still booting.
	dialRetryInterval = 100 * time.Millisecond
)

// Session is an authenticated SSH connection to the sidecar plus the reverse
// tunnels established over it. Closing the session cancels every listener
// and in-flight bridge.
type Session struct {
	client *ssh.Client

	mu        sync.Mutex
	listeners []net.Listener

	ctx    context.Context
	cancel context.CancelFunc
	group  *errgroup.Group
}

// Dial connects and authenticates against the sidecar's SSH daemon at addr
// (host:port), retrying while the daemon boots, bounded by ctx.
func Dial(ctx context.Context, addr string, keys *KeyPair) (*Session, error) {
	cfg := &ssh.ClientConfig{
		User: sshUser,
		Auth: []ssh.AuthMethod{ssh.PublicKeys(keys.Signer)},
		// The sidecar is ephemeral and generates its host key at boot, so
		// there is nothing meaningful to pin.
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         dialTimeout,
	}

	var client *ssh.Client
	err := retry.Do(ctx, retry.NewConstant(dialRetryInterval), func(ctx context.Context) error {
		conn, err := net.DialTimeout("tcp", addr, dialTimeout)
		if err != nil {
			return retry.RetryableError(err)
		}
		sshConn, chans, reqs, err := ssh.NewClientConn(conn, addr, cfg)
		if err != nil {
			_ = conn.Close()
			// sshd accepts TCP before it is ready to authenticate
			return retry.RetryableError(err)
		}
		client = ssh.NewClient(sshConn, chans, reqs)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("connecting to sshd sidecar at %s: %w", addr, err)
	}

	sessionCtx, cancel := context.WithCancel(context.Background())
	group, groupCtx := errgroup.WithContext(sessionCtx)

	return &Session{
		client: client,
		ctx:    groupCtx,
		cancel: cancel,
		group:  group,
	}, nil
}

// Forward opens a remote listener on 0.0.0.0:port inside the sidecar and
// bridges every accepted connection to 127.0.0.1:port on the host. The
// remote port equals the host port so the alias resolves consistently.
func (s *Session) Forward(ctx context.Context, port uint16) error {
	ln, err := s.client.Listen("tcp", fmt.Sprintf("0.0.0.0:%d", port))
	if err != nil {
		return fmt.Errorf("requesting remote forward for port %d: %w", port, err)
	}

	s.mu.Lock()
	s.listeners = append(s.listeners, ln)
	s.mu.Unlock()

	log := logger.FromContext(ctx)

	s.group.Go(func() error {
		for {
			remote, err := ln.Accept()
			if err != nil {
				if s.ctx.Err() == nil {
					// The tunnel died mid-run. Tests are short-lived, so the
					// anomaly is surfaced instead of papered over by a
					// reconnect.
					log.Warn("reverse tunnel closed", "port", port, "error", err)
				}
				return nil
			}
			s.group.Go(func() error {
				s.bridge(log, remote, port)
				return nil
			})
		}
	})
	return nil
}

// bridge pumps bytes between one accepted tunnel connection and a fresh
// local connection until either side closes or the session is cancelled.
func (s *Session) bridge(log *slog.Logger, remote net.Conn, port uint16) {
	defer remote.Close()

	local, err := net.DialTimeout("tcp", fmt.Sprintf("127.0.0.1:%d", port), dialTimeout)
	if err != nil {
		log.Warn("host port refused tunnel connection", "port", port, "error", err)
		return
	}
	defer local.Close()

	done := make(chan struct{}, 2)
	go func() {
		_, _ = io.Copy(local, remote)
		done <- struct{}{}
	}()
	go func() {
		_, _ = io.Copy(remote, local)
		done <- struct{}{}
	}()

	select {
	case <-done:
	case <-s.ctx.Done():
	}
}

// Close cancels all listeners and bridges, then tears the SSH session down.
// Safe to call more than once.
func (s *Session) Close() error {
	s.cancel()

	s.mu.Lock()
	listeners := s.listeners
	s.listeners = nil
	s.mu.Unlock()

	for _, ln := range listeners {
		_ = ln.Close()
	}
	err := s.client.Close()
	_ = s.group.Wait()
	return err
}

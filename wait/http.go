package wait

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/docker/go-connections/nat"
	"github.com/sethvargo/go-retry"
)

// HTTPStrategy waits for an HTTP(S) endpoint on a mapped port to return a
// matching response. Connection failures are retried until the startup
// budget runs out.
type HTTPStrategy struct {
	port         nat.Port
	path         string
	method       string
	body         []byte
	useTLS       bool
	insecureTLS  bool
	basicUser    string
	basicPass    string
	bearerToken  string
	statusMatch  func(int) bool
	bodyMatch    func([]byte) bool
	pollInterval time.Duration
	lastOutcome  string
}

// ForHTTP waits for a 200 response on GET path. The container port to probe
// must be set with WithPort; without it the strategy fails immediately.
func ForHTTP(path string) *HTTPStrategy {
	return &HTTPStrategy{
		path:         path,
		method:       http.MethodGet,
		statusMatch:  func(status int) bool { return status == http.StatusOK },
		pollInterval: DefaultPollInterval,
	}
}

// WithPort pins the container port to probe.
func (s *HTTPStrategy) WithPort(port nat.Port) *HTTPStrategy {
	s.port = port
	return s
}

// WithMethod sets the HTTP method.
func (s *HTTPStrategy) WithMethod(method string) *HTTPStrategy {
	s.method = method
	return s
}

// WithBody sets the request body.
func (s *HTTPStrategy) WithBody(body []byte) *HTTPStrategy {
	s.body = body
	return s
}

// WithTLS switches the probe to https.
func (s *HTTPStrategy) WithTLS(insecureSkipVerify bool) *HTTPStrategy {
	s.useTLS = true
	s.insecureTLS = insecureSkipVerify
	return s
}

// WithBasicAuth adds basic auth credentials to the probe request.
func (s *HTTPStrategy) WithBasicAuth(user, pass string) *HTTPStrategy {
	s.basicUser = user
	s.basicPass = pass
	return s
}

// WithBearerAuth adds a bearer token to the probe request.
func (s *HTTPStrategy) WithBearerAuth(token string) *HTTPStrategy {
	s.bearerToken = token
	return s
}

// WithStatusCodeMatcher replaces the status predicate.
func (s *HTTPStrategy) WithStatusCodeMatcher(match func(int) bool) *HTTPStrategy {
	if match != nil {
		s.statusMatch = match
	}
	return s
}

// WithBodyMatcher requires the response body to match as well.
func (s *HTTPStrategy) WithBodyMatcher(match func([]byte) bool) *HTTPStrategy {
	s.bodyMatch = match
	return s
}

// WithPollInterval overrides the poll interval, floored at 100ms.
func (s *HTTPStrategy) WithPollInterval(d time.Duration) *HTTPStrategy {
	if d >= DefaultPollInterval {
		s.pollInterval = d
	}
	return s
}

func (s *HTTPStrategy) String() string {
	return fmt.Sprintf("http(%s %s)", s.method, s.path)
}

// Progress reports the last probe outcome.
func (s *HTTPStrategy) Progress() string {
	if s.lastOutcome == "" {
		return "no request completed"
	}
	return s.lastOutcome
}

// WaitUntilReady polls the endpoint until the response matches.
func (s *HTTPStrategy) WaitUntilReady(ctx context.Context, target Target) error {
	if s.port == "" {
		return fmt.Errorf("http strategy requires a port")
	}

	host, err := target.Host(ctx)
	if err != nil {
		return err
	}

	client := &http.Client{
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: s.insecureTLS},
		},
	}
	defer client.CloseIdleConnections()

	scheme := "http"
	if s.useTLS {
		scheme = "https"
	}

	return retry.Do(ctx, retry.NewConstant(s.pollInterval), func(ctx context.Context) error {
		mapped, err := target.MappedPort(ctx, s.port)
		if err != nil {
			return retry.RetryableError(err)
		}

		url := fmt.Sprintf("%s://%s%s", scheme, net.JoinHostPort(host, mapped.Port()), s.path)
		req, err := http.NewRequestWithContext(ctx, s.method, url, bytes.NewReader(s.body))
		if err != nil {
			return err
		}
		if s.basicUser != "" {
			req.SetBasicAuth(s.basicUser, s.basicPass)
		}
		if s.bearerToken != "" {
			req.Header.Set("Authorization", "Bearer "+s.bearerToken)
		}

		resp, err := client.Do(req)
		if err != nil {
			s.lastOutcome = fmt.Sprintf("request failed: %v", err)
			return retry.RetryableError(err)
		}
		defer resp.Body.Close()

		s.lastOutcome = fmt.Sprintf("last status %d", resp.StatusCode)
		if !s.statusMatch(resp.StatusCode) {
			return retry.RetryableError(fmt.Errorf("unexpected status %d", resp.StatusCode))
		}
		if s.bodyMatch != nil {
			body, err := io.ReadAll(resp.Body)
			if err != nil {
				return retry.RetryableError(err)
			}
			if !s.bodyMatch(body) {
				s.lastOutcome = "status matched, body did not"
				return retry.RetryableError(fmt.Errorf("response body did not match"))
			}
		}
		return nil
	})
}

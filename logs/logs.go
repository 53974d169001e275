// Package logs consumes the multiplexed log stream of a container and fans
// the demultiplexed frames out to subscribers: readiness probes and
// user-declared consumers.
package logs

import (
	"bytes"
	"io"

	"github.com/docker/docker/pkg/stdcopy"
)

// Source identifies the stream a log frame was emitted on.
type Source uint8

const (
	Stdout Source = iota
	Stderr
)

func (s Source) String() string {
	if s == Stderr {
		return "stderr"
	}
	return "stdout"
}

// Frame is one demultiplexed log frame. Frames preserve the daemon's framing
// granularity; consumers wanting line semantics must buffer themselves.
type Frame struct {
	Source Source
	Bytes  []byte
}

// Consumer receives log frames in source order. Accept is called from a
// dedicated goroutine per consumer and may block without stalling the
// producer; a consumer that falls too far behind loses the oldest frames.
type Consumer interface {
	Accept(Frame)
}

// ConsumerFunc adapts a function to the Consumer interface.
type ConsumerFunc func(Frame)

func (f ConsumerFunc) Accept(frame Frame) { f(frame) }

// Demux splits a multiplexed log stream into stdout and stderr buffers.
// This is the pull-API counterpart of the Pump.
func Demux(r io.Reader) (stdout, stderr *bytes.Buffer, err error) {
	stdout = &bytes.Buffer{}
	stderr = &bytes.Buffer{}
	_, err = stdcopy.StdCopy(stdout, stderr, r)
	return stdout, stderr, err
}

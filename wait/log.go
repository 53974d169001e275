package wait

import (
	"bytes"
	"context"
	"fmt"
	"sync"

	"github.com/irahardianto/drydock/logs"
)

// LogStrategy waits for a pattern to appear on one log stream a number of
// times. The match treats the stream as a concatenated byte sequence, so
// patterns split across frame boundaries are still found.
type LogStrategy struct {
	source      logs.Source
	pattern     []byte
	occurrences int

	mu      sync.Mutex
	carry   []byte
	matched int
	found   chan struct{}
	once    sync.Once
}

// ForLog waits for pattern to appear once on stdout.
func ForLog(pattern string) *LogStrategy {
	return &LogStrategy{
		source:      logs.Stdout,
		pattern:     []byte(pattern),
		occurrences: 1,
		found:       make(chan struct{}),
	}
}

// ForLogOnStderr waits for pattern to appear once on stderr.
func ForLogOnStderr(pattern string) *LogStrategy {
	s := ForLog(pattern)
	s.source = logs.Stderr
	return s
}

// WithOccurrences requires the pattern to appear at least n times.
func (s *LogStrategy) WithOccurrences(n int) *LogStrategy {
	if n > 0 {
		s.occurrences = n
	}
	return s
}

func (s *LogStrategy) String() string {
	return fmt.Sprintf("log(%s ~ %q x%d)", s.source, s.pattern, s.occurrences)
}

// Progress reports how many occurrences were seen so far.
func (s *LogStrategy) Progress() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fmt.Sprintf("matched %d/%d", s.matched, s.occurrences)
}

// Prepare subscribes the matcher to the target's log pump so no early frame
// is missed, regardless of where this strategy sits in the sequence.
func (s *LogStrategy) Prepare(target Target) {
	target.SubscribeLogs(logs.ConsumerFunc(s.accept))
}

func (s *LogStrategy) accept(frame logs.Frame) {
	if frame.Source != s.source {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.matched >= s.occurrences {
		return
	}

	// Scan the carried tail plus the new frame so boundary-spanning matches
	// are found; keep len(pattern)-1 trailing bytes for the next frame.
	data := append(s.carry, frame.Bytes...)
	for {
		idx := bytes.Index(data, s.pattern)
		if idx < 0 {
			break
		}
		s.matched++
		data = data[idx+len(s.pattern):]
		if s.matched >= s.occurrences {
			s.once.Do(func() { close(s.found) })
			return
		}
	}

	keep := len(s.pattern) - 1
	if keep > len(data) {
		keep = len(data)
	}
	s.carry = append([]byte(nil), data[len(data)-keep:]...)
}

// WaitUntilReady blocks until the pattern occurred often enough.
func (s *LogStrategy) WaitUntilReady(ctx context.Context, _ Target) error {
	select {
	case <-s.found:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

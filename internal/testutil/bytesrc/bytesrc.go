// Package bytesrc provides scripted byte sources that behave like a serial
// port with a read timeout.
package bytesrc

import (
	"io"
	"sync"
)

// Timeout is a chunk that makes one Read return (0, nil).
var Timeout = []byte{}

// Script replays chunks in order. Each Read returns at most the rest of the
// current chunk; an empty chunk yields one timed-out read. After the last
// chunk Read returns io.EOF, or Err when set.
type Script struct {
	mu      sync.Mutex
	chunks  [][]byte
	Err     error
	Flushes int
	Reads   int
}

func New(chunks ...[]byte) *Script {
	cp := make([][]byte, 0, len(chunks))
	for _, c := range chunks {
		cp = append(cp, append([]byte(nil), c...))
	}
	return &Script{chunks: cp}
}

func (s *Script) Read(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Reads++
	if len(s.chunks) == 0 {
		if s.Err != nil {
			return 0, s.Err
		}
		return 0, io.EOF
	}
	head := s.chunks[0]
	if len(head) == 0 {
		s.chunks = s.chunks[1:]
		return 0, nil
	}
	n := copy(p, head)
	if n == len(head) {
		s.chunks = s.chunks[1:]
	} else {
		s.chunks[0] = head[n:]
	}
	return n, nil
}

// ResetInputBuffer counts the flush; scripted data is never discarded.
func (s *Script) ResetInputBuffer() error {
	s.mu.Lock()
	s.Flushes++
	s.mu.Unlock()
	return nil
}

func (s *Script) ResetOutputBuffer() error {
	return nil
}

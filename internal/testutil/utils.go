package testutil

import (
	"bytes"
	"log"
	"os"
	"sync"
	"testing"
)

func TestLogger(t *testing.T) *log.Logger {
	logger := log.New(os.Stdout, "[test] ", log.LstdFlags)
	t.Cleanup(func() {
		logger.SetOutput(os.Stderr)
	})
	return logger
}

// SyncBuffer is a bytes.Buffer that can be written by background goroutines
// while a test reads it.
type SyncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *SyncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *SyncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// BufferLogger returns a logger whose output is captured for assertions.
func BufferLogger(t *testing.T) (*log.Logger, *SyncBuffer) {
	buf := &SyncBuffer{}
	logger := log.New(buf, "[test] ", 0)
	t.Cleanup(func() {
		if t.Failed() {
			t.Log(buf.String())
		}
	})
	return logger, buf
}

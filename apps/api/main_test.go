package main

import (
	"os"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSignalShutdown(t *testing.T) {
	shutdown := make(chan os.Signal, 1)
	notify := signalShutdown(shutdown)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 3; i++ {
			notify()
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("signalShutdown() blocked on a pending shutdown")
	}
	assert.Equal(t, syscall.SIGTERM, <-shutdown)
	assert.Len(t, shutdown, 0)
}

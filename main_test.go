package main

import (
	"context"
	"net"
	"net/http"
	"os"
	"syscall"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServeUntilSignalReturnsListenerError(t *testing.T) {
	logger, _ := test.NewNullLogger()

	// Hold the port so the server cannot bind it.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	server := &http.Server{Addr: ln.Addr().String(), Handler: http.NotFoundHandler()}
	stop := make(chan os.Signal)

	done := make(chan error, 1)
	go func() { done <- serveUntilSignal(server, stop, logger) }()

	select {
	case err := <-done:
		assert.Error(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("listener failure was not reported")
	}
}

func TestServeUntilSignalStopsOnSignal(t *testing.T) {
	logger, _ := test.NewNullLogger()
	server := &http.Server{Addr: "127.0.0.1:0", Handler: http.NotFoundHandler()}
	t.Cleanup(func() { server.Shutdown(context.Background()) })

	stop := make(chan os.Signal, 1)
	stop <- syscall.SIGTERM

	assert.NoError(t, serveUntilSignal(server, stop, logger))
}

package main

import (
	"net"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShutdown_RunsAfterInflightRequests(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	var stopped, stoppedMidRequest atomic.Bool

	server := &http.Server{Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(entered)
		<-release
		stoppedMidRequest.Store(stopped.Load())
		w.WriteHeader(http.StatusNoContent)
	})}
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = server.Serve(ln) }()

	respErr := make(chan error, 1)
	go func() {
		resp, err := http.Get("http://" + ln.Addr().String())
		if err == nil {
			resp.Body.Close()
		}
		respErr <- err
	}()
	<-entered

	done := make(chan struct{})
	go func() {
		shutdown(server, 5*time.Second, func() { stopped.Store(true) })
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("shutdown returned while a request was in flight")
	case <-time.After(100 * time.Millisecond):
	}
	assert.False(t, stopped.Load())

	close(release)
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("shutdown did not return")
	}
	require.NoError(t, <-respErr)
	assert.True(t, stopped.Load())
	assert.False(t, stoppedMidRequest.Load())
}

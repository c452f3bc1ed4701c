package server_test

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-zeromq/zmq4"
	"github.com/phuslu/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MikhailWahib/caskdb"
	"github.com/MikhailWahib/caskdb/internal/protocol"
	"github.com/MikhailWahib/caskdb/internal/server"
)

func quietLogger() *log.Logger {
	return &log.Logger{Writer: &log.IOWriter{Writer: io.Discard}}
}

func newHandler(t *testing.T) *server.Handler {
	t.Helper()
	cfg := caskdb.DefaultConfig()
	cfg.Logger = quietLogger()
	cfg.SyncWrites = false
	db, err := caskdb.Open(t.TempDir(), "", cfg)
	require.NoError(t, err)

	h := server.NewHandler(db, quietLogger())
	t.Cleanup(func() { _ = h.Close() })
	return h
}

func TestHandler_Execute(t *testing.T) {
	h := newHandler(t)

	reply := h.Execute(protocol.Command{ID: "1", Op: protocol.OpSet, Key: "a", Value: "1"})
	assert.Equal(t, protocol.OK("1"), reply)

	reply = h.Execute(protocol.Command{ID: "2", Op: protocol.OpGet, Key: "a"})
	require.Equal(t, protocol.StatusOK, reply.Status)
	require.NotNil(t, reply.Value)
	assert.Equal(t, "1", *reply.Value)
	assert.Equal(t, "2", reply.ID)

	reply = h.Execute(protocol.Command{Op: protocol.OpGet, Key: "missing"})
	assert.Equal(t, protocol.StatusOK, reply.Status)
	assert.Nil(t, reply.Value)

	reply = h.Execute(protocol.Command{Op: protocol.OpRemove, Key: "a"})
	assert.Equal(t, protocol.StatusOK, reply.Status)

	reply = h.Execute(protocol.Command{Op: protocol.OpRemove, Key: "a"})
	assert.Equal(t, protocol.StatusNotFound, reply.Status)

	reply = h.Execute(protocol.Command{Op: protocol.OpPing})
	require.NotNil(t, reply.Value)
	assert.Equal(t, protocol.Pong, *reply.Value)

	reply = h.Execute(protocol.Command{Op: "flush"})
	assert.Equal(t, protocol.StatusBadRequest, reply.Status)
}

func TestHandler_EngineFailure(t *testing.T) {
	h := newHandler(t)
	require.NoError(t, h.Close())

	reply := h.Execute(protocol.Command{Op: protocol.OpSet, Key: "a", Value: "1"})
	assert.Equal(t, protocol.StatusError, reply.Status)
	assert.NotEmpty(t, reply.Error)
}

func TestHandler_SerializesConcurrentCommands(t *testing.T) {
	h := newHandler(t)

	var wg sync.WaitGroup
	for w := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range 50 {
				key := fmt.Sprintf("w%d_k%d", w, i)
				reply := h.Execute(protocol.Command{Op: protocol.OpSet, Key: key, Value: key})
				assert.Equal(t, protocol.StatusOK, reply.Status)
			}
		}()
	}
	wg.Wait()

	for w := range 8 {
		for i := range 50 {
			key := fmt.Sprintf("w%d_k%d", w, i)
			reply := h.Execute(protocol.Command{Op: protocol.OpGet, Key: key})
			require.NotNil(t, reply.Value, key)
			assert.Equal(t, key, *reply.Value)
		}
	}
}

func newHTTPServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := server.NewHTTPServer("127.0.0.1:0", newHandler(t), quietLogger())
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return ts
}

func do(t *testing.T, method, url, body string) (*http.Response, string) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, url, r)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(b)
}

func TestHTTPServer_Routes(t *testing.T) {
	ts := newHTTPServer(t)

	resp, body := do(t, http.MethodGet, ts.URL+"/health", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"pong"}`, body)
	assert.NotEmpty(t, resp.Header.Get("Content-Type"))

	resp, _ = do(t, http.MethodGet, ts.URL+"/kv/foo", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = do(t, http.MethodPut, ts.URL+"/kv/foo", `{"value":"bar"}`)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, body = do(t, http.MethodGet, ts.URL+"/kv/foo", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"value":"bar"}`, body)

	resp, _ = do(t, http.MethodDelete, ts.URL+"/kv/foo", "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, body = do(t, http.MethodDelete, ts.URL+"/kv/foo", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Contains(t, body, "key not found")
}

func TestHTTPServer_BadBody(t *testing.T) {
	ts := newHTTPServer(t)

	resp, _ := do(t, http.MethodPut, ts.URL+"/kv/foo", `not json`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHTTPServer_EscapedKey(t *testing.T) {
	ts := newHTTPServer(t)

	resp, _ := do(t, http.MethodPut, ts.URL+"/kv/a%2Fb", `{"value":"slash"}`)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, body := do(t, http.MethodGet, ts.URL+"/kv/a%2Fb", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"value":"slash"}`, body)
}

func TestHTTPServer_EmptyKey(t *testing.T) {
	ts := newHTTPServer(t)

	resp, _ := do(t, http.MethodGet, ts.URL+"/kv/", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = do(t, http.MethodPut, ts.URL+"/kv/", `{"value":"blank"}`)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, body := do(t, http.MethodGet, ts.URL+"/kv/", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"value":"blank"}`, body)

	resp, _ = do(t, http.MethodDelete, ts.URL+"/kv/", "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestHTTPServer_RequestID(t *testing.T) {
	ts := newHTTPServer(t)

	req, err := http.NewRequest(http.MethodGet, ts.URL+"/health", nil)
	require.NoError(t, err)
	req.Header.Set("X-Request-Id", "abc-123")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestHTTPServer_RunStopsOnCancel(t *testing.T) {
	srv := server.NewHTTPServer("127.0.0.1:0", newHandler(t), quietLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestZMQServer_RoundTrip(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	srv := server.NewZMQServer("tcp://127.0.0.1:0", newHandler(t), quietLogger())
	require.NoError(t, srv.Listen(ctx))
	done := make(chan error, 1)
	go func() { done <- srv.Serve() }()

	req := zmq4.NewReq(ctx)
	defer req.Close()
	require.NoError(t, req.Dial("tcp://"+srv.Addr().String()))

	send := func(payload string) protocol.Reply {
		require.NoError(t, req.Send(zmq4.NewMsg([]byte(payload))))
		msg, err := req.Recv()
		require.NoError(t, err)
		var reply protocol.Reply
		require.NoError(t, protocol.Unmarshal(msg.Bytes(), &reply))
		return reply
	}

	reply := send(`{"id":"1","op":"set","key":"k","value":"v"}`)
	assert.Equal(t, protocol.StatusOK, reply.Status)
	assert.Equal(t, "1", reply.ID)

	reply = send(`{"op":"get","key":"k"}`)
	require.NotNil(t, reply.Value)
	assert.Equal(t, "v", *reply.Value)

	reply = send(`{"op":"rm","key":"nope"}`)
	assert.Equal(t, protocol.StatusNotFound, reply.Status)

	reply = send(`garbage`)
	assert.Equal(t, protocol.StatusBadRequest, reply.Status)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("zmq server did not stop")
	}
}

package wrapper

import (
	"context"
	"encoding/json"
	"net"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zjrosen/klaude/internal/wire"
)

// echoHandler records requests and answers with the action name.
type echoHandler struct {
	mu   sync.Mutex
	seen []string
}

func (h *echoHandler) Handle(_ context.Context, req wire.Request) wire.Response {
	h.mu.Lock()
	h.seen = append(h.seen, req.Action)
	h.mu.Unlock()
	return wire.OKResponse(map[string]string{"action": req.Action})
}

func (h *echoHandler) actions() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.seen...)
}

func startTestServer(t *testing.T, handler Handler) *Server {
	t.Helper()
	// Socket paths are length-limited; keep them short.
	dir, err := os.MkdirTemp("", "klaude-sock")
	require.NoError(t, err)
	t.Cleanup(func() { _ = os.RemoveAll(dir) })

	srv := NewServer(filepath.Join(dir, "w.sock"), handler)
	require.NoError(t, srv.Start(context.Background()))
	t.Cleanup(srv.Stop)
	return srv
}

func TestServer_RoundTrip(t *testing.T) {
	h := &echoHandler{}
	srv := startTestServer(t, h)

	var result map[string]string
	client := wire.NewClient(srv.Path()).WithTimeout(2 * time.Second)
	require.NoError(t, client.CallInto("ping", nil, &result))
	assert.Equal(t, "ping", result["action"])
	assert.Equal(t, []string{"ping"}, h.actions())
}

func TestServer_OneRequestPerConnection(t *testing.T) {
	h := &echoHandler{}
	srv := startTestServer(t, h)

	conn, err := net.Dial("unix", srv.Path())
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write([]byte(`{"action":"status"}` + "\n"))
	require.NoError(t, err)

	var resp wire.Response
	require.NoError(t, json.NewDecoder(conn).Decode(&resp))
	assert.True(t, resp.OK)

	// The server answers once and closes its side.
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Second)))
	buf := make([]byte, 1)
	_, err = conn.Read(buf)
	assert.Error(t, err)
}

func TestServer_MalformedRequest(t *testing.T) {
	srv := startTestServer(t, &echoHandler{})

	conn, err := net.Dial("unix", srv.Path())
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write([]byte("{not json}\n"))
	require.NoError(t, err)

	var resp wire.Response
	require.NoError(t, json.NewDecoder(conn).Decode(&resp))
	require.False(t, resp.OK)
	require.NotNil(t, resp.Err)
	assert.Equal(t, wire.CodeInvalidJSON, resp.Err.Code)
}

func TestServer_ShorthandPayloadFields(t *testing.T) {
	done := make(chan wire.Request, 1)
	srv := startTestServer(t, handlerFunc(func(_ context.Context, req wire.Request) wire.Response {
		done <- req
		return wire.OKResponse(nil)
	}))

	conn, err := net.Dial("unix", srv.Path())
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write([]byte(`{"action":"message","sessionId":"abc","prompt":"hi"}` + "\n"))
	require.NoError(t, err)

	var resp wire.Response
	require.NoError(t, json.NewDecoder(conn).Decode(&resp))
	require.True(t, resp.OK)

	req := <-done
	var p wire.MessagePayload
	require.NoError(t, json.Unmarshal(req.Payload, &p))
	assert.Equal(t, "abc", p.SessionID)
	assert.Equal(t, "hi", p.Prompt)
}

func TestServer_ReplacesStaleSocket(t *testing.T) {
	dir, err := os.MkdirTemp("", "klaude-sock")
	require.NoError(t, err)
	t.Cleanup(func() { _ = os.RemoveAll(dir) })
	path := filepath.Join(dir, "w.sock")

	// A crashed instance leaves its socket file behind.
	stale, err := net.Listen("unix", path)
	require.NoError(t, err)
	require.NoError(t, stale.Close())
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	srv := NewServer(path, &echoHandler{})
	require.NoError(t, srv.Start(context.Background()))
	defer srv.Stop()

	_, err = wire.NewClient(path).WithTimeout(2 * time.Second).Call("ping", nil)
	require.NoError(t, err)
}

func TestServer_StopRemovesSocket(t *testing.T) {
	h := &echoHandler{}
	srv := startTestServer(t, h)
	path := srv.Path()

	_, err := os.Stat(path)
	require.NoError(t, err)

	srv.Stop()
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))

	// Idempotent.
	srv.Stop()
}

// handlerFunc adapts a function to the Handler interface.
type handlerFunc func(ctx context.Context, req wire.Request) wire.Response

func (f handlerFunc) Handle(ctx context.Context, req wire.Request) wire.Response {
	return f(ctx, req)
}

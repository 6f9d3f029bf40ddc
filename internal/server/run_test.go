package server

import (
	"bufio"
	"context"
	"io"
	"log/slog"
	"net"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kanban/internal/kanban"
	"kanban/internal/store"
)

func TestServeShutsDownWithOpenStream(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	st, err := store.Open(ctx, "sqlite", filepath.Join(t.TempDir(), "kanban.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.Migrate(ctx))

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := kanban.NewService(st, log)
	b, err := svc.CreateBoard(ctx, kanban.NewBoard{Name: "b"})
	require.NoError(t, err)

	h := NewHandler(svc, st, log, Options{CORSOrigins: []string{"http://app.test"}})
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	runCtx, stop := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() { done <- Serve(runCtx, ln, h, 5*time.Second, log) }()

	base := "http://" + ln.Addr().String()
	resp, err := http.Get(base + "/api/boards/" + itoa(b.ID) + "/events")
	require.NoError(t, err)
	defer resp.Body.Close()
	line, err := bufio.NewReader(resp.Body).ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, ": connected\n", line)

	req, err := http.NewRequest("OPTIONS", base+"/api/boards", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://app.test")
	req.Header.Set("Access-Control-Request-Method", "POST")
	pre, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	pre.Body.Close()
	assert.Equal(t, "http://app.test", pre.Header.Get("Access-Control-Allow-Origin"))

	stop()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("server did not shut down")
	}
}

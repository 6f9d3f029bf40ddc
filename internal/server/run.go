package server

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"
)

// Serve runs h on ln until ctx is cancelled, then shuts down gracefully,
// giving in-flight requests up to grace to finish. If h is an io.Closer it
// is closed when shutdown starts.
func Serve(ctx context.Context, ln net.Listener, h http.Handler, grace time.Duration, log *slog.Logger) error {
	// no WriteTimeout: event streams stay open until shutdown
	srv := &http.Server{Handler: h,
		ReadTimeout: 15 * time.Second, ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout: 120 * time.Second}
	if c, ok := h.(io.Closer); ok {
		srv.RegisterOnShutdown(func() { _ = c.Close() })
	}

	errc := make(chan error, 1)
	go func() {
		log.Info("listening", "addr", ln.Addr().String())
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	ctxSh, cancelSh := context.WithTimeout(context.Background(), grace)
	defer cancelSh()
	if err := srv.Shutdown(ctxSh); err != nil {
		log.Error("shutdown", "err", err)
		return err
	}
	return <-errc
}

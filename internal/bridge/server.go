package bridge

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/hpungsan/elclones/internal/logging"
)

// NewServer serves the bridge endpoint on addr.
func NewServer(addr string, t Toggler, log *zap.Logger) *http.Server {
	r := chi.NewRouter()
	r.Handle(Path, NewHandler(t, log))
	return &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// Run serves srv until ctx is done.
func Run(ctx context.Context, srv *http.Server, log *zap.Logger) error {
	log = logging.OrNop(log).Named("bridge")

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	log.Info("bridge listening", zap.String("url", "ws://"+srv.Addr+Path))

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
		defer cancel()
		// Shutdown does not wait for hijacked websocket connections; they end
		// on their read deadline or when the client closes.
		return srv.Shutdown(shutdownCtx)
	}
}

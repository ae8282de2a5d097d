// Package web serves the browser control surface: the extension toggle,
// the captured element list with highlight toggles, and element previews.
package web

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/hpungsan/elclones/internal/control"
	"github.com/hpungsan/elclones/internal/logging"
)

//go:embed templates/*.html templates/help.md
var templateFS embed.FS

//go:embed static/*
var staticFS embed.FS

// NewHandler builds the router for the control surface.
func NewHandler(surface *control.Surface, version string, log *zap.Logger) (http.Handler, error) {
	log = logging.OrNop(log).Named("web")

	templateSub, err := fs.Sub(templateFS, "templates")
	if err != nil {
		return nil, fmt.Errorf("template sub-FS: %w", err)
	}
	staticSub, err := fs.Sub(staticFS, "static")
	if err != nil {
		return nil, fmt.Errorf("static sub-FS: %w", err)
	}

	renderer, err := NewRenderer(templateSub, version, log)
	if err != nil {
		return nil, err
	}
	h := &Handlers{surface: surface, renderer: renderer, log: log}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(log))
	r.Use(securityHeaders)
	r.Use(crossOriginGuard(log))

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/elements", http.StatusFound)
	})
	r.Get("/elements", h.HandleList)
	r.Get("/elements/{id}", h.HandleDetail)
	r.Post("/elements/{id}/highlight", h.HandleHighlight)
	r.Post("/extension", h.HandleExtension)
	r.Get("/help", h.HandleHelp)
	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServerFS(staticSub)))

	return r, nil
}

// NewServer wraps the control surface handler in an http.Server on bind:port.
func NewServer(surface *control.Surface, version, bind string, port int, log *zap.Logger) (*http.Server, error) {
	handler, err := NewHandler(surface, version, log)
	if err != nil {
		return nil, err
	}
	return &http.Server{
		Addr:              net.JoinHostPort(bind, strconv.Itoa(port)),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}, nil
}

// Run serves srv until ctx is done, then shuts it down gracefully.
func Run(ctx context.Context, srv *http.Server, log *zap.Logger) error {
	log = logging.OrNop(log).Named("web")

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	log.Info("control surface listening", zap.String("url", "http://"+srv.Addr))
	if host, _, err := net.SplitHostPort(srv.Addr); err == nil {
		if ip := net.ParseIP(host); ip != nil && ip.IsUnspecified() {
			log.Warn("binding to all interfaces; the control surface may be reachable from the network")
		}
	}

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// securityHeaders adds security-related HTTP headers to all responses.
// Element previews are rendered markdown, so no inline script or style is needed.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Security-Policy", "default-src 'self'; script-src 'self'; style-src 'self'")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		next.ServeHTTP(w, r)
	})
}

// crossOriginGuard refuses state-changing requests sent by another site's
// page. Requests without Origin or Sec-Fetch-Site (curl, the CLI) pass.
func crossOriginGuard(log *zap.Logger) func(http.Handler) http.Handler {
	cop := http.NewCrossOriginProtection()
	cop.SetDenyHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log.Warn("cross-origin request refused",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("origin", r.Header.Get("Origin")),
		)
		http.Error(w, "cross-origin request refused", http.StatusForbidden)
	}))
	return cop.Handler
}

func requestLogger(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			log.Debug("request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("took", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())),
			)
		})
	}
}

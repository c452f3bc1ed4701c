package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/phuslu/log"

	"github.com/MikhailWahib/caskdb/internal/protocol"
)

const shutdownTimeout = 5 * time.Second

// HTTPServer serves the key-value API over HTTP.
type HTTPServer struct {
	addr    string
	handler *Handler
	logger  *log.Logger
	router  *chi.Mux
}

// NewHTTPServer creates a server for addr. Nothing listens until Run.
func NewHTTPServer(addr string, handler *Handler, logger *log.Logger) *HTTPServer {
	s := &HTTPServer{
		addr:    addr,
		handler: handler,
		logger:  logger,
		router:  chi.NewRouter(),
	}
	s.router.Use(middleware.RequestID)
	s.router.Use(requestLogger(logger))
	s.router.Use(middleware.Recoverer)
	s.registerRoutes()
	return s
}

func (s *HTTPServer) registerRoutes() {
	s.router.Get("/health", s.health)
	// "/kv/" addresses the empty key
	for _, pattern := range []string{"/kv/", "/kv/{key}"} {
		s.router.Get(pattern, s.getValue)
		s.router.Put(pattern, s.setValue)
		s.router.Delete(pattern, s.removeValue)
	}
}

// Router returns the HTTP handler with all routes and middleware.
func (s *HTTPServer) Router() http.Handler {
	return s.router
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *HTTPServer) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (s *HTTPServer) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", ln.Addr().String()).Msg("http server listening")
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server stopped: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down http server: %w", err)
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	s.logger.Info().Msg("http server stopped")
	return nil
}

func (s *HTTPServer) health(w http.ResponseWriter, r *http.Request) {
	reply := s.handler.Execute(protocol.Command{ID: middleware.GetReqID(r.Context()), Op: protocol.OpPing})
	writeJSON(w, http.StatusOK, map[string]string{"status": *reply.Value})
}

func (s *HTTPServer) getValue(w http.ResponseWriter, r *http.Request) {
	key, ok := keyParam(w, r)
	if !ok {
		return
	}
	reply := s.handler.Execute(protocol.Command{ID: middleware.GetReqID(r.Context()), Op: protocol.OpGet, Key: key})
	if reply.Status != protocol.StatusOK {
		writeReplyError(w, reply)
		return
	}
	if reply.Value == nil {
		writeJSON(w, http.StatusNotFound, protocol.ErrorBody{Error: "Key not found"})
		return
	}
	writeJSON(w, http.StatusOK, protocol.ValueBody{Value: *reply.Value})
}

func (s *HTTPServer) setValue(w http.ResponseWriter, r *http.Request) {
	key, ok := keyParam(w, r)
	if !ok {
		return
	}
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, protocol.ErrorBody{Error: err.Error()})
		return
	}
	var body protocol.ValueBody
	if err := protocol.Unmarshal(raw, &body); err != nil {
		writeJSON(w, http.StatusBadRequest, protocol.ErrorBody{Error: "invalid body: " + err.Error()})
		return
	}

	reply := s.handler.Execute(protocol.Command{ID: middleware.GetReqID(r.Context()), Op: protocol.OpSet, Key: key, Value: body.Value})
	if reply.Status != protocol.StatusOK {
		writeReplyError(w, reply)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *HTTPServer) removeValue(w http.ResponseWriter, r *http.Request) {
	key, ok := keyParam(w, r)
	if !ok {
		return
	}
	reply := s.handler.Execute(protocol.Command{ID: middleware.GetReqID(r.Context()), Op: protocol.OpRemove, Key: key})
	if reply.Status != protocol.StatusOK {
		writeReplyError(w, reply)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// keyParam returns the unescaped {key} path segment.
func keyParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	key := chi.URLParam(r, "key")
	// chi routes on the raw path when the request carried escapes such as %2F
	if r.URL.RawPath == "" {
		return key, true
	}
	key, err := url.PathUnescape(key)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, protocol.ErrorBody{Error: "invalid key: " + err.Error()})
		return "", false
	}
	return key, true
}

func writeReplyError(w http.ResponseWriter, reply protocol.Reply) {
	status := http.StatusInternalServerError
	switch reply.Status {
	case protocol.StatusNotFound:
		status = http.StatusNotFound
	case protocol.StatusBadRequest:
		status = http.StatusBadRequest
	}
	writeJSON(w, status, protocol.ErrorBody{Error: reply.Error})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	b, err := protocol.Marshal(v)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(b)
}

// requestLogger logs one line per request once the response is written.
func requestLogger(logger *log.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			defer func() {
				logger.Info().
					Str("method", r.Method).
					Str("path", r.URL.Path).
					Str("request_id", middleware.GetReqID(r.Context())).
					Int("status", ww.Status()).
					Int("bytes", ww.BytesWritten()).
					Dur("latency", time.Since(start)).
					Msg("request")
			}()
			next.ServeHTTP(ww, r)
		})
	}
}

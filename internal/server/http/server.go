package httpserver

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/rzbill/ledger/internal/runtime"
	"github.com/rzbill/ledger/internal/server/http/controllers"
	"github.com/rzbill/ledger/pkg/id"
	"github.com/rzbill/ledger/pkg/log"
)

// Server is the HTTP front of a ledger node.
type Server struct {
	rt     *runtime.Runtime
	srv    *http.Server
	lis    net.Listener
	logger log.Logger
	ids    *id.Generator
}

// New builds a Server with all v1 routes registered.
func New(rt *runtime.Runtime) *Server {
	mux := http.NewServeMux()
	s := &Server{
		rt:     rt,
		logger: rt.Logger().WithComponent("http"),
		ids:    id.NewGenerator(),
	}
	controllers.NewControllerRegistry(rt).RegisterAllRoutes(mux)
	s.srv = &http.Server{Handler: cors(s.withRequestLog(mux))}
	return s
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	s.lis = l
	s.logger.Info("http listening", log.Str("addr", l.Addr().String()))
	errCh := make(chan error, 1)
	go func() { errCh <- s.srv.Serve(l) }()
	select {
	case <-ctx.Done():
		cctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.srv.Shutdown(cctx)
		return nil
	case err := <-errCh:
		return err
	}
}

// Addr returns the bound address, empty before ListenAndServe.
func (s *Server) Addr() string {
	if s.lis == nil {
		return ""
	}
	return s.lis.Addr().String()
}

// Close force-closes the listener.
func (s *Server) Close() {
	if s.lis != nil {
		_ = s.lis.Close()
	}
}

// Handler returns the fully wired handler, for tests.
func (s *Server) Handler() http.Handler { return s.srv.Handler }

func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, If-None-Match")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// withRequestLog tags each request with a sortable ID and logs it at debug.
func (s *Server) withRequestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := s.ids.Next().String()
		w.Header().Set("X-Request-Id", reqID)
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug("request",
			log.Str(log.RequestIDKey, reqID),
			log.Str("method", r.Method),
			log.Str("path", r.URL.Path),
			log.Dur("elapsed", time.Since(start)),
		)
	})
}

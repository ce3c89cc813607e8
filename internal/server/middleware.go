package server

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/muhammadchandra19/orderbook-aggregator/pkg/logger"
	"github.com/muhammadchandra19/orderbook-aggregator/pkg/util"
)

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// Hijack lets websocket upgrades pass through the middleware.
func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer %T does not support hijacking", w.ResponseWriter)
	}
	w.status = http.StatusSwitchingProtocols
	return hj.Hijack()
}

func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// loggingMiddleware stamps every request with a request id and the client ip
// and logs it once it completes.
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ctx := util.WithRequestID(r.Context(), r.Header.Get(util.RequestIDHeader))
		ctx = util.WithClientIP(ctx, clientIP(r))
		r = r.WithContext(ctx)
		w.Header().Set(util.RequestIDHeader, util.GetRequestID(ctx))

		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)

		s.logger.InfoContext(ctx, "http request", logger.Field{
			Key:   "method",
			Value: r.Method,
		}, logger.Field{
			Key:   "path",
			Value: r.URL.Path,
		}, logger.Field{
			Key:   "status",
			Value: sw.status,
		}, logger.Field{
			Key:   "duration",
			Value: time.Since(start).String(),
		})
	})
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		return fwd
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

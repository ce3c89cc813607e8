package server

import (
	"encoding/json"
	"net/http"
	"time"

	aggregatorv1 "github.com/muhammadchandra19/orderbook-aggregator/internal/domain/aggregator/v1"
	bookv1 "github.com/muhammadchandra19/orderbook-aggregator/internal/domain/book/v1"
	"github.com/muhammadchandra19/orderbook-aggregator/pkg/errors"
	"github.com/muhammadchandra19/orderbook-aggregator/pkg/httplib/healthcheck"
	"github.com/muhammadchandra19/orderbook-aggregator/pkg/logger"
)

// Config holds the HTTP surface settings.
type Config struct {
	// PushInterval is the period of websocket book frames.
	PushInterval time.Duration
	// OriginPatterns are the cross-origin hosts allowed to open a websocket.
	OriginPatterns []string
}

// Server exposes the engine read side over HTTP and websockets.
type Server struct {
	mux     *http.ServeMux
	handler http.Handler
	reader  aggregatorv1.Reader
	logger  logger.Interface
	config  Config
}

// New creates the HTTP handler. metrics may be nil.
func New(reader aggregatorv1.Reader, metrics http.Handler, probe func() error, config Config, logger logger.Interface) *Server {
	if config.PushInterval <= 0 {
		config.PushInterval = time.Second
	}

	s := &Server{
		mux:    http.NewServeMux(),
		reader: reader,
		logger: logger,
		config: config,
	}
	s.routes(metrics)
	s.handler = healthcheck.HealthCheck{Probe: probe}.Handler(s.loggingMiddleware(s.mux))
	return s
}

func (s *Server) routes(metrics http.Handler) {
	s.mux.HandleFunc("GET /symbols", s.handleSymbols)
	s.mux.HandleFunc("GET /api/books/{symbol...}", s.handleBook)
	s.mux.HandleFunc("GET /api/health", s.handleHealth)
	s.mux.HandleFunc("GET /ws/{symbol...}", s.handleStream)
	if metrics != nil {
		s.mux.Handle("GET /metrics", metrics)
	}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Symbol  string `json:"symbol,omitempty"`
}

func (s *Server) handleSymbols(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, r, http.StatusOK, s.reader.Symbols())
}

func (s *Server) handleBook(w http.ResponseWriter, r *http.Request) {
	symbol := bookv1.NormalizeSymbol(r.PathValue("symbol"))

	snap, err := s.reader.Get(symbol)
	if err != nil {
		if bookv1.IsUnknownSymbol(err) {
			s.writeJSON(w, r, http.StatusNotFound, errorResponse{
				Code:    string(errors.UnknownSymbolError),
				Message: "unknown symbol",
				Symbol:  symbol,
			})
			return
		}
		s.logger.ErrorContext(r.Context(), err, logger.Field{Key: "action", Value: "get_book"})
		s.writeJSON(w, r, http.StatusInternalServerError, errorResponse{
			Code:    string(errors.GeneralInternalServerError),
			Message: "failed to read book",
		})
		return
	}

	s.writeJSON(w, r, http.StatusOK, snap)
}

type healthResponse struct {
	Cycle   uint64                      `json:"cycle"`
	Symbols []aggregatorv1.SymbolHealth `json:"symbols"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, r, http.StatusOK, healthResponse{
		Cycle:   s.reader.Cycle(),
		Symbols: s.reader.Health(),
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, r *http.Request, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.ErrorContext(r.Context(), err, logger.Field{Key: "action", Value: "write_response"})
	}
}

// degraded reports whether symbol is currently served from a stale snapshot.
func (s *Server) degraded(symbol string) bool {
	for _, h := range s.reader.Health() {
		if h.Symbol == symbol {
			return h.Degraded
		}
	}
	return false
}

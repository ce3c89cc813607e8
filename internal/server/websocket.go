package server

import (
	"context"
	"net/http"
	"time"

	bookv1 "github.com/muhammadchandra19/orderbook-aggregator/internal/domain/book/v1"
	"github.com/muhammadchandra19/orderbook-aggregator/pkg/logger"
	"github.com/muhammadchandra19/orderbook-aggregator/pkg/util"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

const (
	frameBook  = "book"
	frameError = "error"

	writeTimeout = 5 * time.Second
)

// Frame is one websocket message.
type Frame struct {
	Type     string           `json:"type"`
	Symbol   string           `json:"symbol"`
	Degraded *bool            `json:"degraded,omitempty"`
	Book     *bookv1.Snapshot `json:"book,omitempty"`
	Error    string           `json:"error,omitempty"`
}

// handleStream pushes the snapshot of one symbol immediately and then every PushInterval.
// An unknown symbol gets a single error frame and a policy violation close.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	symbol := bookv1.NormalizeSymbol(r.PathValue("symbol"))

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: s.config.OriginPatterns,
	})
	if err != nil {
		s.logger.ErrorContext(r.Context(), err, logger.Field{Key: "action", Value: "websocket_accept"})
		return
	}
	defer conn.CloseNow()

	// the client never sends anything we need; CloseRead handles pings and close frames
	ctx := conn.CloseRead(util.WithSubscribedSymbol(r.Context(), symbol))

	s.logger.InfoContext(ctx, "stream opened", logger.Field{Key: "action", Value: "subscribe"})
	defer s.logger.InfoContext(ctx, "stream closed", logger.Field{Key: "action", Value: "unsubscribe"})

	ticker := time.NewTicker(s.config.PushInterval)
	defer ticker.Stop()

	for {
		frame, known := s.frame(symbol)
		if err := s.write(ctx, conn, frame); err != nil {
			if websocket.CloseStatus(err) == -1 && ctx.Err() == nil {
				s.logger.WarnContext(ctx, "stream write failed", logger.Field{Key: "error", Value: err.Error()})
			}
			return
		}
		if !known {
			conn.Close(websocket.StatusPolicyViolation, "unknown symbol")
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Server) frame(symbol string) (Frame, bool) {
	snap, err := s.reader.Get(symbol)
	if err != nil {
		if bookv1.IsUnknownSymbol(err) {
			return Frame{Type: frameError, Symbol: symbol, Error: "unknown symbol"}, false
		}
		return Frame{Type: frameError, Symbol: symbol, Error: "failed to read book"}, true
	}

	degraded := s.degraded(symbol)
	return Frame{
		Type:     frameBook,
		Symbol:   symbol,
		Degraded: &degraded,
		Book:     snap,
	}, true
}

func (s *Server) write(ctx context.Context, conn *websocket.Conn, frame Frame) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return wsjson.Write(ctx, conn, frame)
}

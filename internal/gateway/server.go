// Package gateway serves decision frames to dashboard clients over
// WebSocket and exposes the journaled history.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	nanoid "github.com/matoous/go-nanoid/v2"

	"github.com/PEI-HAZARDS/gatewatch/internal/db"
	"github.com/PEI-HAZARDS/gatewatch/internal/decision"
	"github.com/PEI-HAZARDS/gatewatch/internal/events"
)

const (
	subscriberBuffer = 32
	pingInterval     = 30 * time.Second
	writeTimeout     = 10 * time.Second
	defaultHistory   = 50
	maxHistory       = 500

	idAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	idLength   = 10
)

type Config struct {
	Host      string
	Port      int
	JWTSecret string // empty disables auth
}

type subscriber struct {
	id     string
	frames chan []byte
}

type Server struct {
	store  *db.DB
	cfg    Config
	logger *slog.Logger

	mu   sync.Mutex
	subs map[string]map[*subscriber]struct{}

	upgrader websocket.Upgrader
}

// New returns a Server. store may be nil, in which case frames are not
// journaled and the history endpoint answers 503.
func New(store *db.DB, cfg Config, logger *slog.Logger) *Server {
	return &Server{
		store:  store,
		cfg:    cfg,
		logger: logger,
		subs:   make(map[string]map[*subscriber]struct{}),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Broadcast implements events.Broadcaster. Subscribers whose buffer is full
// miss the frame.
func (s *Server) Broadcast(f events.Frame) {
	if s.store != nil {
		s.journal(f)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for sub := range s.subs[f.Gate] {
		select {
		case sub.frames <- f.Data:
		default:
			s.logger.Debug("gateway: subscriber slow, frame dropped", "gate", f.Gate, "conn", sub.id)
		}
	}
}

func (s *Server) journal(f events.Frame) {
	e, err := decision.Parse(f.Data)
	if err != nil {
		s.logger.Warn("gateway: not journaling malformed frame", "gate", f.Gate, "err", err)
		return
	}
	if e.Type == decision.TypeHeartbeat {
		return
	}
	if _, err := s.store.InsertDecision(f.Gate, e); err != nil {
		s.logger.Warn("gateway: journal insert failed", "gate", f.Gate, "err", err)
		return
	}
	s.store.Touch()
}

// Subscribers returns the number of live WebSocket clients for gate.
func (s *Server) Subscribers(gate string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs[gate])
}

func (s *Server) addSubscriber(gate string, sub *subscriber) {
	s.mu.Lock()
	defer s.mu.Unlock()
	set, ok := s.subs[gate]
	if !ok {
		set = make(map[*subscriber]struct{})
		s.subs[gate] = set
	}
	set[sub] = struct{}{}
}

func (s *Server) removeSubscriber(gate string, sub *subscriber) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.subs[gate], sub)
	if len(s.subs[gate]) == 0 {
		delete(s.subs, gate)
	}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /ws/decisions/{gateId}", s.handleDecisions)
	mux.HandleFunc("GET /api/gates/{gateId}/decisions", s.handleHistory)
	if s.cfg.JWTSecret == "" {
		return mux
	}
	return jwtMiddleware(s.cfg.JWTSecret, []string{"/healthz"}, mux)
}

// Serve listens on the configured address until ctx is done.
func (s *Server) Serve(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	srv := &http.Server{Addr: addr, Handler: s.Handler(), ReadHeaderTimeout: 10 * time.Second}

	errc := make(chan error, 1)
	go func() {
		s.logger.Info("gateway: listening", "addr", addr, "auth", s.cfg.JWTSecret != "")
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	n := 0
	for _, set := range s.subs {
		n += len(set)
	}
	s.mu.Unlock()
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"status": "ok", "subscribers": n})
}

func (s *Server) handleDecisions(w http.ResponseWriter, r *http.Request) {
	gate := r.PathValue("gateId")
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("gateway: upgrade failed", "gate", gate, "err", err)
		return
	}
	defer conn.Close()

	id, err := nanoid.Generate(idAlphabet, idLength)
	if err != nil {
		id = "conn-" + strconv.FormatInt(time.Now().UnixNano(), 36)
	}
	sub := &subscriber{id: id, frames: make(chan []byte, subscriberBuffer)}
	s.addSubscriber(gate, sub)
	defer s.removeSubscriber(gate, sub)
	s.logger.Info("gateway: subscriber connected", "gate", gate, "conn", id, "subject", Subject(r.Context()))

	// Clients only listen; reading detects their close.
	done := make(chan struct{})
	go func() {
		defer close(done)
		conn.SetReadLimit(4096)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			s.logger.Info("gateway: subscriber disconnected", "gate", gate, "conn", id)
			return
		case <-r.Context().Done():
			return
		case frame := <-sub.frames:
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				s.logger.Debug("gateway: write failed", "gate", gate, "conn", id, "err", err)
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout)); err != nil {
				return
			}
		}
	}
}

type historyEntry struct {
	ID         int64           `json:"id"`
	ReceivedAt time.Time       `json:"received_at"`
	Event      json.RawMessage `json:"event"`
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		http.Error(w, "journal disabled", http.StatusServiceUnavailable)
		return
	}
	gate := r.PathValue("gateId")
	limit := defaultHistory
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = min(n, maxHistory)
	}

	recs, err := s.store.RecentDecisions(gate, limit)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	out := make([]historyEntry, 0, len(recs))
	for _, rec := range recs {
		out = append(out, historyEntry{ID: rec.ID, ReceivedAt: rec.ReceivedAt.UTC(), Event: rec.Frame})
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"gate": gate, "decisions": out})
}

package httpbridge

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type agent struct {
	id          string
	connectedAt time.Time
	outbound    chan []byte
	done        chan struct{}
	closed      bool
}

// handleEvents streams outbound envelopes to one agent until it disconnects.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	id := strings.TrimSpace(r.Header.Get("X-Agent-ID"))
	if id == "" {
		id = strings.TrimSpace(r.URL.Query().Get("agent"))
	}
	if id == "" {
		id = uuid.NewString()
	}

	a := &agent{
		id:          id,
		connectedAt: s.now(),
		outbound:    make(chan []byte, agentBuffer),
		done:        make(chan struct{}),
	}
	s.addAgent(a)
	defer s.removeAgent(a)

	fmt.Fprintf(w, "event: connected\ndata: {\"agentId\":%q}\n\n", a.id)
	flusher.Flush()

	heartbeat := time.NewTicker(s.heartbeat)
	defer heartbeat.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-a.done:
			return
		case <-heartbeat.C:
			fmt.Fprint(w, ": heartbeat\n\n")
			flusher.Flush()
		case data := <-a.outbound:
			fmt.Fprintf(w, "event: message\ndata: %s\n\n", data)
			flusher.Flush()
		}
	}
}

// Broadcast queues data for every connected agent. A full agent buffer drops
// the envelope for that agent only.
func (s *Server) Broadcast(ctx context.Context, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.agents) == 0 {
		return ErrNoAgent
	}

	payload := append([]byte(nil), data...)
	for a := range s.agents {
		select {
		case a.outbound <- payload:
		default:
			s.logger.Warn("agent buffer full, dropping envelope", zap.String("agent_id", a.id))
		}
	}
	return nil
}

func (s *Server) AgentCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.agents)
}

func (s *Server) AgentIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.agents))
	for a := range s.agents {
		ids = append(ids, a.id)
	}
	sort.Strings(ids)
	return ids
}

// WaitForAgent blocks until at least one agent is connected.
func (s *Server) WaitForAgent(ctx context.Context, poll time.Duration) error {
	if poll <= 0 {
		poll = 100 * time.Millisecond
	}
	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	for s.AgentCount() == 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return nil
}

func (s *Server) addAgent(a *agent) {
	s.mu.Lock()
	s.agents[a] = struct{}{}
	count := len(s.agents)
	s.mu.Unlock()

	s.logger.Info("agent connected", zap.String("agent_id", a.id), zap.Int("agents", count))
}

func (s *Server) removeAgent(a *agent) {
	s.mu.Lock()
	delete(s.agents, a)
	if !a.closed {
		a.closed = true
		close(a.done)
	}
	count := len(s.agents)
	s.mu.Unlock()

	s.logger.Info("agent disconnected", zap.String("agent_id", a.id), zap.Int("agents", count))
}

func (s *Server) disconnectAll() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for a := range s.agents {
		if !a.closed {
			a.closed = true
			close(a.done)
		}
	}
	s.agents = make(map[*agent]struct{})
}

// Package sse streams merged lead changes to connected boards over
// Server-Sent Events. Each connection owns a realtime session holding the
// leads it shows.
package sse

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"recruitment_backend/internal/leads/domain"
	"recruitment_backend/internal/leads/realtime"
	"recruitment_backend/platform/logger"
	"recruitment_backend/platform/metrics"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const defaultBufferSize = 32

// ErrUnknownClient is returned for a client id that is not connected or
// belongs to another user.
var ErrUnknownClient = errors.New("unknown realtime client")

// client is one connected board.
type client struct {
	id      uuid.UUID
	actor   domain.Actor
	session *realtime.Session
	updates chan realtime.Update

	mu       sync.Mutex
	viewport realtime.Viewport
}

func (c *client) currentViewport() realtime.Viewport {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.viewport
}

// Service manages SSE connections and merges change events into each
// connection's session.
type Service struct {
	mu         sync.RWMutex
	clients    map[uuid.UUID]*client
	marker     realtime.MarkReader
	bufferSize int
	log        *logger.Logger
	metrics    *metrics.Metrics
}

// New creates a hub. marker is called when a patient message lands in a
// conversation a board has open.
func New(marker realtime.MarkReader, bufferSize int, log *logger.Logger, m *metrics.Metrics) *Service {
	if bufferSize <= 0 {
		bufferSize = defaultBufferSize
	}
	if log == nil {
		log = logger.Discard()
	}
	return &Service{
		clients:    make(map[uuid.UUID]*client),
		marker:     marker,
		bufferSize: bufferSize,
		log:        log,
		metrics:    m,
	}
}

// Connect registers a board for actor holding leads. The returned id is
// used for viewport and optimistic write calls.
func (s *Service) Connect(actor domain.Actor, leads []domain.Lead) (uuid.UUID, <-chan realtime.Update) {
	session := realtime.NewSession(s.marker, realtime.WithLogger(s.log), realtime.WithMetrics(s.metrics))
	session.Load(leads...)

	cl := &client{
		id:      uuid.New(),
		actor:   actor,
		session: session,
		updates: make(chan realtime.Update, s.bufferSize),
	}
	s.mu.Lock()
	s.clients[cl.id] = cl
	s.mu.Unlock()
	return cl.id, cl.updates
}

// Disconnect removes a board and closes its update channel.
func (s *Service) Disconnect(id uuid.UUID) {
	s.mu.Lock()
	cl, ok := s.clients[id]
	delete(s.clients, id)
	s.mu.Unlock()
	if ok {
		close(cl.updates)
	}
}

// Deliver merges ev into every session allowed to read its site and
// queues the resulting update. A full buffer drops the update for that
// board only.
func (s *Service) Deliver(ctx context.Context, ev realtime.Event) {
	s.mu.RLock()
	targets := make([]*client, 0, len(s.clients))
	for _, cl := range s.clients {
		if cl.actor.CanRead(ev.SiteID) {
			targets = append(targets, cl)
		}
	}
	// The read lock is held while sending so Disconnect cannot close a
	// channel mid-send. Sends never block.
	defer s.mu.RUnlock()

	for _, cl := range targets {
		update, err := cl.session.Apply(ctx, ev, cl.currentViewport())
		if err != nil {
			s.log.Warn("realtime side effect failed", "clientId", cl.id, "leadId", ev.LeadID, "error", err)
		}
		if update.Result != realtime.ResultApplied {
			continue
		}
		select {
		case cl.updates <- update:
		default:
			s.log.RealtimeDropped(ev.SiteID, string(ev.Kind), "buffer full")
		}
	}
}

// SetViewport records the conversation a board has open and seeds its
// transcript so later messages append to it.
func (s *Service) SetViewport(clientID, userID uuid.UUID, vp realtime.Viewport, transcript []domain.Message) error {
	cl, err := s.lookup(clientID, userID)
	if err != nil {
		return err
	}
	cl.mu.Lock()
	cl.viewport = vp
	cl.mu.Unlock()
	if vp.ActiveConversation != uuid.Nil {
		cl.session.LoadTranscript(vp.ActiveConversation, transcript)
	}
	return nil
}

// Mutate shows patch on the board at once, runs write and settles the
// optimistic state with its result. On failure the board reverts to the
// last confirmed values and the error is returned.
func (s *Service) Mutate(ctx context.Context, clientID, userID, leadID uuid.UUID, patch domain.LeadPatch, write func(context.Context) (domain.Lead, error)) (domain.Lead, error) {
	cl, err := s.lookup(clientID, userID)
	if err != nil {
		return domain.Lead{}, err
	}

	token, shown, err := cl.session.BeginOptimistic(leadID, patch)
	if err != nil {
		return domain.Lead{}, err
	}
	s.push(cl, realtime.Update{Result: realtime.ResultApplied, Kind: realtime.KindLeadStatusChanged, Lead: &shown})

	stored, err := write(ctx)
	if err != nil {
		if reverted, ok := cl.session.Rollback(leadID, token); ok {
			s.push(cl, realtime.Update{Result: realtime.ResultApplied, Kind: realtime.KindLeadStatusChanged, Lead: &reverted})
		}
		return domain.Lead{}, err
	}

	settled, ok := cl.session.Confirm(token, stored)
	if !ok {
		return stored, nil
	}
	s.push(cl, realtime.Update{Result: realtime.ResultApplied, Kind: realtime.KindLeadStatusChanged, Lead: &settled})
	return settled, nil
}

func (s *Service) push(cl *client, update realtime.Update) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.clients[cl.id]; !ok {
		return
	}
	select {
	case cl.updates <- update:
	default:
		s.log.RealtimeDropped(cl.actor.Label(), string(update.Kind), "buffer full")
	}
}

func (s *Service) lookup(clientID, userID uuid.UUID) (*client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cl, ok := s.clients[clientID]
	if !ok || cl.actor.UserID != userID {
		return nil, ErrUnknownClient
	}
	return cl, nil
}

// ClientCount is the number of connected boards.
func (s *Service) ClientCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

// Stream writes the connection event and then every update until the
// request ends or the board is disconnected.
func (s *Service) Stream(c *gin.Context, clientID uuid.UUID, updates <-chan realtime.Update) {
	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no")

	c.SSEvent("connected", gin.H{"clientId": clientID})
	c.Writer.Flush()

	clientGone := c.Request.Context().Done()
	for {
		select {
		case <-clientGone:
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			data, _ := json.Marshal(update)
			c.SSEvent(string(update.Kind), string(data))
			c.Writer.Flush()
		}
	}
}

// Close disconnects every board.
func (s *Service) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, cl := range s.clients {
		close(cl.updates)
		delete(s.clients, id)
	}
}

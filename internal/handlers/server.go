package handlers

import (
	"context"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/jason-s-yu/crowdpick/internal/game"
	"github.com/jason-s-yu/crowdpick/internal/models"
	"github.com/sirupsen/logrus"
)

// persistTimeout bounds a single outcome write.
const persistTimeout = 5 * time.Second

// SessionServer owns the live sessions, their websocket hubs and the hooks
// that persist outcomes.
type SessionServer struct {
	Sessions *game.SessionStore
	Source   game.QuestionSource
	Panels   []models.Panel
	Logger   logrus.FieldLogger

	// Publisher receives each session's action log. Nil disables it.
	Publisher game.ActionPublisher

	// RegisterSession, RecordRound and RecordResult persist session data; nil skips each one.
	RegisterSession func(ctx context.Context, sessionID, ownerID uuid.UUID, totalRounds int) error
	RecordRound     func(ctx context.Context, o game.RoundOutcome) error
	RecordResult    func(ctx context.Context, o game.SessionOutcome) error

	hubsMu sync.Mutex
	hubs   map[uuid.UUID]*hub
}

func NewSessionServer(source game.QuestionSource, panels []models.Panel, logger logrus.FieldLogger) *SessionServer {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &SessionServer{
		Sessions: game.NewSessionStore(),
		Source:   source,
		Panels:   panels,
		Logger:   logger,
		hubs:     make(map[uuid.UUID]*hub),
	}
}

// Panel looks up a panel by id.
func (s *SessionServer) Panel(id string) (models.Panel, bool) {
	for _, p := range s.Panels {
		if p.ID == id {
			return p, true
		}
	}
	return models.Panel{}, false
}

// NewSession creates an engine owned by ownerID, wires its callbacks and stores it.
func (s *SessionServer) NewSession(ctx context.Context, ownerID uuid.UUID, rules game.SessionRules) *game.Session {
	sess := game.NewSession(s.Source, rules, s.Logger)
	sess.OwnerID = ownerID
	if s.Publisher != nil {
		sess.Publisher = s.Publisher
	}

	h := s.hubFor(sess.ID)
	sess.BroadcastFn = func(ev game.SessionEvent) {
		h.broadcast(game.EncodeEvent(ev))
	}

	log := s.Logger.WithField("session_id", sess.ID)
	sess.OnRoundResolved = func(o game.RoundOutcome) {
		if s.RecordRound == nil {
			return
		}
		go s.persist(log, "round outcome", func(ctx context.Context) error { return s.RecordRound(ctx, o) })
	}
	sess.OnSessionEnd = func(o game.SessionOutcome) {
		log.WithFields(logrus.Fields{"grade": o.Grade, "coins": o.Coins, "score": o.Score}).Info("session ended")
		if s.RecordResult == nil {
			return
		}
		go s.persist(log, "session result", func(ctx context.Context) error { return s.RecordResult(ctx, o) })
	}

	if s.RegisterSession != nil {
		if err := s.RegisterSession(ctx, sess.ID, ownerID, rules.TotalRounds); err != nil {
			log.WithError(err).Warn("failed to register session")
		}
	}
	s.Sessions.AddSession(sess)
	return sess
}

func (s *SessionServer) persist(log logrus.FieldLogger, what string, fn func(ctx context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	if err := fn(ctx); err != nil {
		log.WithError(err).Errorf("failed to persist %s", what)
	}
}

func (s *SessionServer) hubFor(id uuid.UUID) *hub {
	s.hubsMu.Lock()
	defer s.hubsMu.Unlock()
	h, ok := s.hubs[id]
	if !ok {
		h = newHub(s.Logger.WithField("session_id", id))
		s.hubs[id] = h
	}
	return h
}

// PruneIdle drops sessions idle for longer than maxIdle and disconnects their clients.
func (s *SessionServer) PruneIdle(maxIdle time.Duration) int {
	n := s.Sessions.PruneIdle(maxIdle)
	if n == 0 {
		return 0
	}
	s.hubsMu.Lock()
	var orphaned []*hub
	for id, h := range s.hubs {
		if _, ok := s.Sessions.GetSession(id); !ok {
			orphaned = append(orphaned, h)
			delete(s.hubs, id)
		}
	}
	s.hubsMu.Unlock()
	for _, h := range orphaned {
		h.closeAll(SessionClosedError, "session expired")
	}
	s.Logger.Infof("pruned %d idle sessions", n)
	return n
}

// Shutdown closes every session and websocket.
func (s *SessionServer) Shutdown() {
	s.hubsMu.Lock()
	hubs := s.hubs
	s.hubs = make(map[uuid.UUID]*hub)
	s.hubsMu.Unlock()
	for id, h := range hubs {
		s.Sessions.DeleteSession(id)
		h.closeAll(websocket.StatusGoingAway, "server shutting down")
	}
}

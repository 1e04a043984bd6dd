package server

import (
	"sync"
	"time"

	"github.com/matst80/slask-catalog/pkg/catalog"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sirupsen/logrus"
)

var activeSessions = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "slaskcatalog_active_sessions",
	Help: "Browse engines currently held in memory",
})

// EngineFactory builds the engine for a new session.
type EngineFactory func(sessionId string) *catalog.Engine

type sessionEntry struct {
	engine   *catalog.Engine
	lastSeen time.Time
}

// Sessions holds one engine per browser session and drops engines that have
// been idle for longer than ttl.
type Sessions struct {
	mu      sync.Mutex
	entries map[string]*sessionEntry
	factory EngineFactory
	ttl     time.Duration
	now     func() time.Time
	done    chan struct{}
	once    sync.Once
}

func NewSessions(factory EngineFactory, ttl time.Duration) *Sessions {
	return &Sessions{
		entries: make(map[string]*sessionEntry),
		factory: factory,
		ttl:     ttl,
		now:     time.Now,
		done:    make(chan struct{}),
	}
}

func (s *Sessions) Get(sessionId string) *catalog.Engine {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[sessionId]
	if !ok {
		entry = &sessionEntry{engine: s.factory(sessionId)}
		s.entries[sessionId] = entry
		activeSessions.Inc()
	}
	entry.lastSeen = s.now()
	return entry.engine
}

func (s *Sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Sweep closes and forgets engines idle for longer than the ttl.
func (s *Sessions) Sweep() int {
	if s.ttl <= 0 {
		return 0
	}
	s.mu.Lock()
	var expired []*catalog.Engine
	cutoff := s.now().Add(-s.ttl)
	for id, entry := range s.entries {
		if entry.lastSeen.Before(cutoff) {
			expired = append(expired, entry.engine)
			delete(s.entries, id)
		}
	}
	s.mu.Unlock()
	for _, engine := range expired {
		engine.Close()
		activeSessions.Dec()
	}
	if len(expired) > 0 {
		logrus.Debugf("dropped %d idle browse sessions", len(expired))
	}
	return len(expired)
}

// StartJanitor sweeps every interval until Close is called.
func (s *Sessions) StartJanitor(interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-s.done:
				return
			case <-ticker.C:
				s.Sweep()
			}
		}
	}()
}

func (s *Sessions) Close() {
	s.once.Do(func() {
		close(s.done)
	})
	s.mu.Lock()
	entries := s.entries
	s.entries = make(map[string]*sessionEntry)
	s.mu.Unlock()
	for _, entry := range entries {
		entry.engine.Close()
		activeSessions.Dec()
	}
}

package session

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/DukeRupert/soilsheet/internal/catalog"
	"github.com/DukeRupert/soilsheet/internal/form"
	"github.com/DukeRupert/soilsheet/internal/metrics"
	"github.com/DukeRupert/soilsheet/internal/submission"
	"github.com/google/uuid"
)

// =============================================================================
// Form Session
// =============================================================================

// Session is one browser's information sheet.
type Session struct {
	ID       string
	Store    *form.Store
	Pipeline *submission.Pipeline
	Catalog  *catalog.Catalog

	// mu serialises edits so each request sees the result of the previous one.
	mu sync.Mutex

	stateMu  sync.Mutex
	planURL  string
	planKey  string
	lastSeen time.Time
}

// Do runs fn while holding the session's edit lock.
func (s *Session) Do(fn func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn()
}

// Editor opens the consignment editor for index.
func (s *Session) Editor(index int) (*form.Editor, error) {
	return form.OpenEditor(s.Store, index, s.Catalog, nil)
}

// Plan returns the public URL and storage key of the current plan image.
// Both are empty when no plan has been uploaded.
func (s *Session) Plan() (url, key string) {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	return s.planURL, s.planKey
}

// SetPlan records a newly uploaded plan image and returns the key of the
// image it replaces, if any.
func (s *Session) SetPlan(url, key string) (previousKey string) {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	previousKey = s.planKey
	s.planURL, s.planKey = url, key
	return previousKey
}

func (s *Session) touch(now time.Time) {
	s.stateMu.Lock()
	s.lastSeen = now
	s.stateMu.Unlock()
}

func (s *Session) idleSince() time.Time {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	return s.lastSeen
}

// =============================================================================
// Manager
// =============================================================================

// Config configures a Manager.
type Config struct {
	TTL           time.Duration
	SweepInterval time.Duration
	SecureCookie  bool
	Catalog       *catalog.Catalog
	Generator     form.Generator
	// NewPipeline builds the submission pipeline for a new session.
	NewPipeline func() *submission.Pipeline
}

// Manager finds or creates the form session for a request.
type Manager struct {
	cfg    Config
	logger *slog.Logger
	now    func() time.Time

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewManager creates a session manager.
func NewManager(cfg Config, logger *slog.Logger) *Manager {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = DefaultSweepInterval
	}
	if cfg.Catalog == nil {
		cfg.Catalog = catalog.Default()
	}
	if cfg.NewPipeline == nil {
		cfg.NewPipeline = func() *submission.Pipeline {
			return submission.NewPipeline(nil, logger, submission.Config{})
		}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
		sessions: make(map[string]*Session),
	}
}

// Lookup returns the live session named by the request cookie, if any.
func (m *Manager) Lookup(r *http.Request) (*Session, bool) {
	cookie, err := r.Cookie(CookieName)
	if err != nil || cookie.Value == "" {
		return nil, false
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[cookie.Value]
	if !ok {
		return nil, false
	}
	now := m.now()
	if now.Sub(s.idleSince()) > m.cfg.TTL {
		m.removeLocked(s.ID)
		return nil, false
	}
	s.touch(now)
	return s, true
}

// Ensure returns the request's session, creating one and setting the cookie
// when none exists.
func (m *Manager) Ensure(w http.ResponseWriter, r *http.Request) *Session {
	if s, ok := m.Lookup(r); ok {
		return s
	}

	s := &Session{
		ID:       uuid.NewString(),
		Store:    form.NewStore(m.cfg.Generator),
		Pipeline: m.cfg.NewPipeline(),
		Catalog:  m.cfg.Catalog,
		lastSeen: m.now(),
	}
	// The first consignment exists from the start.
	if _, err := s.Editor(0); err != nil {
		m.logger.Error("failed to seed first consignment", "error", err)
	}

	m.mu.Lock()
	m.sessions[s.ID] = s
	metrics.FormSessionsActive.Set(float64(len(m.sessions)))
	m.mu.Unlock()

	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    s.ID,
		Path:     CookiePath,
		MaxAge:   int(m.cfg.TTL.Seconds()),
		HttpOnly: true,
		Secure:   m.cfg.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	})

	m.logger.Debug("form session created", "session_id", s.ID)
	return s
}

// Reset discards the request's session so the next Ensure starts afresh.
func (m *Manager) Reset(w http.ResponseWriter, r *http.Request) {
	if s, ok := m.Lookup(r); ok {
		m.mu.Lock()
		m.removeLocked(s.ID)
		m.mu.Unlock()
	}
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     CookiePath,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.cfg.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	})
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Sweep removes sessions idle for longer than the TTL and returns how many
// were removed.
func (m *Manager) Sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	removed := 0
	for id, s := range m.sessions {
		if now.Sub(s.idleSince()) > m.cfg.TTL {
			m.removeLocked(id)
			removed++
		}
	}
	return removed
}

// Run sweeps expired sessions until ctx is cancelled.
func (m *Manager) Run(ctx context.Context) {
	ticker := time.NewTicker(m.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := m.Sweep(); n > 0 {
				m.logger.Info("expired form sessions removed", "count", n, "remaining", m.Len())
			}
		}
	}
}

func (m *Manager) removeLocked(id string) {
	delete(m.sessions, id)
	metrics.FormSessionsActive.Set(float64(len(m.sessions)))
}

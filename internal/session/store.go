package session

import (
	"context"
	"sync"
	"time"
)

type Session struct {
	ChatID       int64
	Style        string
	Format       string
	LastActivity time.Time

	cancel context.CancelFunc
}

type Options struct {
	DefaultStyle  string
	DefaultFormat string
}

// Store keeps per-chat preferences and tracks the active run for each
// chat. A chat may have at most one run in flight.
type Store struct {
	mu            sync.Mutex
	sessions      map[int64]*Session
	defaultStyle  string
	defaultFormat string
}

func NewStore(opts Options) *Store {
	return &Store{
		sessions:      make(map[int64]*Session),
		defaultStyle:  opts.DefaultStyle,
		defaultFormat: opts.DefaultFormat,
	}
}

func (s *Store) Style(chatID int64) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.getOrCreateLocked(chatID).Style
}

func (s *Store) SetStyle(chatID int64, style string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.getOrCreateLocked(chatID)
	sess.Style = style
	sess.LastActivity = time.Now()
}

func (s *Store) Format(chatID int64) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.getOrCreateLocked(chatID).Format
}

func (s *Store) SetFormat(chatID int64, format string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.getOrCreateLocked(chatID)
	sess.Format = format
	sess.LastActivity = time.Now()
}

// StartRun registers a run for the chat. It returns false when another
// run is already in flight, in which case cancel is not retained.
func (s *Store) StartRun(chatID int64, cancel context.CancelFunc) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.getOrCreateLocked(chatID)
	if sess.cancel != nil {
		return false
	}
	sess.cancel = cancel
	sess.LastActivity = time.Now()
	return true
}

func (s *Store) EndRun(chatID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sess, ok := s.sessions[chatID]; ok {
		sess.cancel = nil
		sess.LastActivity = time.Now()
	}
}

// Cancel stops the chat's active run if there is one.
func (s *Store) Cancel(chatID int64) bool {
	s.mu.Lock()
	sess, ok := s.sessions[chatID]
	var cancel context.CancelFunc
	if ok && sess.cancel != nil {
		cancel = sess.cancel
		sess.cancel = nil
		sess.LastActivity = time.Now()
	}
	s.mu.Unlock()

	if cancel == nil {
		return false
	}
	cancel()
	return true
}

func (s *Store) Running(chatID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[chatID]
	return ok && sess.cancel != nil
}

func (s *Store) getOrCreateLocked(chatID int64) *Session {
	if sess, ok := s.sessions[chatID]; ok {
		return sess
	}

	sess := &Session{
		ChatID:       chatID,
		Style:        s.defaultStyle,
		Format:       s.defaultFormat,
		LastActivity: time.Now(),
	}
	s.sessions[chatID] = sess
	return sess
}

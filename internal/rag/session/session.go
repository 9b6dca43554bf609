// Package session holds per-session dialog history for the query and answer
// pipelines. The history lives here, explicitly keyed and mutex-guarded,
// rather than as a module-level conversation list: a session's memory is
// only ever read or appended to under its own key.
package session

import (
	"sync"

	"studycore/internal/rag/answer"
	"studycore/internal/rag/retrieve"
)

// Turn is one prior (question, answer) exchange.
type Turn struct {
	Question string
	Answer   string
}

// Store holds one history slice per session id.
type Store struct {
	mu       sync.RWMutex
	sessions map[string][]Turn
}

// NewStore builds an empty session store.
func NewStore() *Store {
	return &Store{sessions: make(map[string][]Turn)}
}

// History returns a copy of the session's turns in chronological order.
func (s *Store) History(sessionID string) []Turn {
	s.mu.RLock()
	defer s.mu.RUnlock()
	turns := s.sessions[sessionID]
	out := make([]Turn, len(turns))
	copy(out, turns)
	return out
}

// Append records a completed exchange for the session.
func (s *Store) Append(sessionID, question, ans string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sessionID] = append(s.sessions[sessionID], Turn{Question: question, Answer: ans})
}

// Clear resets one session's history, implementing POST /clear-history.
func (s *Store) Clear(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
}

// AsRetrieveTurns adapts history into C7's Turn boundary type.
func AsRetrieveTurns(turns []Turn) []retrieve.Turn {
	out := make([]retrieve.Turn, len(turns))
	for i, t := range turns {
		out[i] = retrieve.Turn{Question: t.Question, Answer: t.Answer}
	}
	return out
}

// AsAnswerTurns adapts history into C8's Turn boundary type.
func AsAnswerTurns(turns []Turn) []answer.Turn {
	out := make([]answer.Turn, len(turns))
	for i, t := range turns {
		out[i] = answer.Turn{Question: t.Question, Answer: t.Answer}
	}
	return out
}

package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"pod-tracker-bot/internal/game"
	"pod-tracker-bot/internal/model"
	"pod-tracker-bot/internal/pkg/lock"
)

// Errors surfaced by the manager.
var (
	// ErrNoSession is returned for events with no active session.
	ErrNoSession = errors.New("no active recording session")
	// ErrNoPlayers is returned when the pod has no members to pick from.
	ErrNoPlayers = errors.New("pod has no members")
)

// Directory provides read access to pods and their members. Reads may be
// stale relative to concurrent edits; the commit protocol re-validates
// membership authoritatively.
type Directory interface {
	GetPod(ctx context.Context, podID int64) (*model.Pod, error)
	ListMembers(ctx context.Context, podID int64) ([]model.PodPlayer, error)
}

// Committer persists a finalized draft atomically.
type Committer interface {
	Commit(ctx context.Context, draft *game.Draft) (*model.CommittedGame, error)
}

// Config holds the manager's policy and expiry settings.
type Config struct {
	Standard     game.Policy
	Custom       game.Policy
	IdleTimeout  time.Duration
	ReapInterval time.Duration
}

// Manager owns all active recording sessions. Each session is mutated
// only while its key lock is held, so events for one session are strictly
// serialized while different sessions proceed concurrently.
type Manager struct {
	dir       Directory
	committer Committer
	cfg       Config

	mu       sync.Mutex
	sessions map[Key]*Session
	locks    *lock.KeyedLock

	now func() time.Time
}

// NewManager creates a session manager.
func NewManager(dir Directory, committer Committer, cfg Config) *Manager {
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = 5 * time.Minute
	}
	if cfg.ReapInterval <= 0 {
		cfg.ReapInterval = time.Minute
	}
	return &Manager{
		dir:       dir,
		committer: committer,
		cfg:       cfg,
		sessions:  make(map[Key]*Session),
		locks:     lock.NewKeyedLock(),
		now:       time.Now,
	}
}

// policyFor returns the recording policy for a mode.
func (m *Manager) policyFor(mode Mode) game.Policy {
	if mode == ModeCustom {
		return m.cfg.Custom
	}
	return m.cfg.Standard
}

// Begin starts a recording session for the key, discarding any stale
// session for the same key first. It fails closed when the chat has no
// pod or the pod has no members.
func (m *Manager) Begin(ctx context.Context, key Key, mode Mode) (*Result, error) {
	m.locks.Lock(key.String())
	defer m.locks.Unlock(key.String())

	if _, err := m.dir.GetPod(ctx, key.ChatID); err != nil {
		return nil, fmt.Errorf("look up pod %d: %w", key.ChatID, err)
	}
	members, err := m.dir.ListMembers(ctx, key.ChatID)
	if err != nil {
		return nil, fmt.Errorf("list pod %d members: %w", key.ChatID, err)
	}
	if len(members) == 0 {
		return nil, ErrNoPlayers
	}

	var warning string
	m.mu.Lock()
	if _, exists := m.sessions[key]; exists {
		warning = "You were in the middle of recording a game. The previous draft has been discarded."
		delete(m.sessions, key)
	}

	policy := m.policyFor(mode)
	s := &Session{
		Key:          key,
		Mode:         mode,
		State:        StateCollectingPlayers,
		Draft:        game.NewDraft(key.ChatID, policy.EffectiveMinPlayers(), m.now()),
		policy:       policy,
		members:      members,
		lastActivity: m.now(),
	}
	m.sessions[key] = s
	m.mu.Unlock()

	log.Debug().
		Int64("user_id", key.UserID).
		Int64("chat_id", key.ChatID).
		Bool("custom", mode == ModeCustom).
		Msg("Recording session started")

	prompt := m.playersPrompt(s, warning)
	return &Result{Prompt: prompt}, nil
}

// Cancel discards the session for a key, if any. Returns whether a
// session existed.
func (m *Manager) Cancel(key Key) bool {
	m.locks.Lock(key.String())
	defer m.locks.Unlock(key.String())

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[key]; !ok {
		return false
	}
	delete(m.sessions, key)
	log.Debug().
		Int64("user_id", key.UserID).
		Int64("chat_id", key.ChatID).
		Msg("Recording session cancelled")
	return true
}

// HandleEvent processes one inbound event for the session. Events for the
// same key are serialized; invalid input re-prompts without state change.
func (m *Manager) HandleEvent(ctx context.Context, key Key, ev Event) (*Result, error) {
	m.locks.Lock(key.String())
	defer m.locks.Unlock(key.String())

	m.mu.Lock()
	s, ok := m.sessions[key]
	m.mu.Unlock()
	if !ok {
		return nil, ErrNoSession
	}

	now := m.now()
	if now.Sub(s.lastActivity) > m.cfg.IdleTimeout {
		m.drop(key)
		return &Result{Discarded: true, Notice: "⌛ The recording session expired. Use /game to start over."}, nil
	}
	s.lastActivity = now

	if ev.Action == ActionCancel {
		m.drop(key)
		return &Result{Discarded: true, Notice: "❌ Game has been discarded."}, nil
	}

	switch s.State {
	case StateCollectingPlayers:
		return m.handlePlayerSelection(s, ev)
	case StateSelectingWinner:
		return m.handleWinnerSelection(s, ev)
	case StateCollectingOutcomes:
		return m.handleOutcomeSelection(s, ev)
	case StateCollectingEliminations:
		return m.handleEliminationSelection(s, ev)
	case StateAwaitingConfirmation:
		return m.handleConfirmation(ctx, s, ev)
	default:
		return nil, fmt.Errorf("session %s in unknown state %d", key, s.State)
	}
}

// drop removes a session from the registry.
func (m *Manager) drop(key Key) {
	m.mu.Lock()
	delete(m.sessions, key)
	m.mu.Unlock()
}

// ActiveSessions returns the number of live sessions.
func (m *Manager) ActiveSessions() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// StartReaper runs a background loop discarding idle sessions until the
// context is cancelled.
func (m *Manager) StartReaper(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(m.cfg.ReapInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.reapIdle()
			}
		}
	}()
}

// reapIdle discards every session idle longer than the timeout.
func (m *Manager) reapIdle() {
	now := m.now()
	m.mu.Lock()
	defer m.mu.Unlock()
	for key, s := range m.sessions {
		if now.Sub(s.lastActivity) > m.cfg.IdleTimeout {
			delete(m.sessions, key)
			log.Info().
				Int64("user_id", key.UserID).
				Int64("chat_id", key.ChatID).
				Msg("Reaped idle recording session")
		}
	}
}

func (m *Manager) handlePlayerSelection(s *Session, ev Event) (*Result, error) {
	switch ev.Action {
	case ActionSelectPlayer:
		member, ok := s.member(ev.PlayerID)
		if !ok || s.Draft.HasPlayer(ev.PlayerID) {
			// Unknown or duplicate pick: re-display without change.
			return &Result{Prompt: m.playersPrompt(s, "")}, nil
		}
		if err := s.Draft.AddPlayer(member.TelegramID, member.Name); err != nil {
			return nil, fmt.Errorf("add player %d: %w", member.TelegramID, err)
		}
		return &Result{Prompt: m.playersPrompt(s, "")}, nil

	case ActionResetPlayers:
		s.Draft = game.NewDraft(s.Key.ChatID, s.policy.EffectiveMinPlayers(), m.now())
		return &Result{Prompt: m.playersPrompt(s, "")}, nil

	case ActionDonePlayers:
		if s.policy.EnforceMinPlayers && s.Draft.PlayerCount() < s.policy.MinPlayers {
			warning := fmt.Sprintf("❌ Sorry, no playing with yourself. At least %d players are required for a game.", s.policy.MinPlayers)
			return &Result{Prompt: m.playersPrompt(s, warning)}, nil
		}
		if s.Draft.PlayerCount() == 0 {
			return &Result{Prompt: m.playersPrompt(s, "❌ Add at least one player first.")}, nil
		}
		if s.Mode == ModeCustom {
			s.State = StateSelectingWinner
			return &Result{Prompt: m.winnerPrompt(s)}, nil
		}
		s.State = StateCollectingOutcomes
		s.current = 0
		return &Result{Prompt: m.outcomePrompt(s)}, nil

	default:
		return &Result{Prompt: m.playersPrompt(s, "")}, nil
	}
}

func (m *Manager) handleWinnerSelection(s *Session, ev Event) (*Result, error) {
	if ev.Action != ActionSelectWinner || !s.Draft.HasPlayer(ev.PlayerID) {
		return &Result{Prompt: m.winnerPrompt(s)}, nil
	}

	s.winner = ev.PlayerID
	for _, p := range s.Draft.Participants() {
		outcome := model.OutcomeLose
		if p.TelegramID == s.winner {
			outcome = model.OutcomeWin
		}
		if err := s.Draft.RecordOutcome(p.TelegramID, outcome); err != nil {
			return nil, fmt.Errorf("record outcome for %d: %w", p.TelegramID, err)
		}
	}

	// Eliminations start with the winner, then everyone else in the
	// order they were added.
	s.elimOrder = []int64{s.winner}
	for _, p := range s.Draft.Participants() {
		if p.TelegramID != s.winner {
			s.elimOrder = append(s.elimOrder, p.TelegramID)
		}
	}
	s.current = 0
	s.State = StateCollectingEliminations
	return &Result{Prompt: m.eliminationsPrompt(s)}, nil
}

func (m *Manager) handleOutcomeSelection(s *Session, ev Event) (*Result, error) {
	if ev.Action != ActionSelectOutcome || !ev.Outcome.Valid() {
		return &Result{Prompt: m.outcomePrompt(s)}, nil
	}

	p := s.currentOutcomePlayer()
	if err := s.Draft.RecordOutcome(p.TelegramID, ev.Outcome); err != nil {
		return nil, fmt.Errorf("record outcome for %d: %w", p.TelegramID, err)
	}

	s.current++
	if s.current < s.Draft.PlayerCount() {
		return &Result{Prompt: m.outcomePrompt(s)}, nil
	}

	// All outcomes recorded; eliminations iterate in added order.
	s.elimOrder = nil
	for _, part := range s.Draft.Participants() {
		s.elimOrder = append(s.elimOrder, part.TelegramID)
	}
	s.current = 0
	s.State = StateCollectingEliminations
	return &Result{Prompt: m.eliminationsPrompt(s)}, nil
}

func (m *Manager) handleEliminationSelection(s *Session, ev Event) (*Result, error) {
	eliminator := s.currentEliminator()

	switch ev.Action {
	case ActionEliminate:
		if !m.isEliminationCandidate(s, ev.PlayerID, eliminator.TelegramID) {
			return &Result{Prompt: m.eliminationsPrompt(s)}, nil
		}
		if err := s.Draft.RecordElimination(ev.PlayerID, eliminator.TelegramID); err != nil {
			return nil, fmt.Errorf("record elimination of %d: %w", ev.PlayerID, err)
		}
		if s.Mode == ModeCustom && s.allAccountedFor() {
			return m.enterConfirmation(s), nil
		}
		return &Result{Prompt: m.eliminationsPrompt(s)}, nil

	case ActionResetEliminations:
		s.Draft.RemoveEliminationsBy(eliminator.TelegramID)
		return &Result{Prompt: m.eliminationsPrompt(s)}, nil

	case ActionDoneEliminations:
		s.current++
		if s.current >= len(s.elimOrder) {
			return m.enterConfirmation(s), nil
		}
		if s.Mode == ModeCustom && s.allAccountedFor() {
			return m.enterConfirmation(s), nil
		}
		return &Result{Prompt: m.eliminationsPrompt(s)}, nil

	default:
		return &Result{Prompt: m.eliminationsPrompt(s)}, nil
	}
}

// enterConfirmation moves the session to the confirmation step.
func (m *Manager) enterConfirmation(s *Session) *Result {
	s.State = StateAwaitingConfirmation
	return &Result{Prompt: m.confirmPrompt(s)}
}

func (m *Manager) handleConfirmation(ctx context.Context, s *Session, ev Event) (*Result, error) {
	if ev.Action != ActionText {
		return &Result{Prompt: m.confirmPrompt(s)}, nil
	}

	switch strings.ToLower(strings.TrimSpace(ev.Text)) {
	case "confirm":
		committed, err := m.committer.Commit(ctx, s.Draft)
		if err != nil {
			// The draft survives a failed commit so the user can
			// retry "confirm" without re-entering everything.
			return nil, fmt.Errorf("commit game: %w", err)
		}
		s.Draft.MarkCommitted()
		m.drop(s.Key)
		return &Result{Committed: committed}, nil

	case "cancel":
		m.drop(s.Key)
		return &Result{Discarded: true, Notice: "❌ Game has been discarded."}, nil

	default:
		return &Result{Prompt: m.confirmPrompt(s)}, nil
	}
}

// isEliminationCandidate applies the policy filters for one elimination
// target.
func (m *Manager) isEliminationCandidate(s *Session, target, eliminator int64) bool {
	if !s.Draft.HasPlayer(target) || s.Draft.IsEliminated(target) {
		return false
	}
	if target == eliminator && !s.policy.AllowSelfElimination {
		return false
	}
	if o, ok := s.Draft.Outcome(target); ok && o == model.OutcomeWin && !s.policy.AllowWinnerElimination {
		return false
	}
	return true
}

func (m *Manager) playersPrompt(s *Session, warning string) *Prompt {
	p := &Prompt{Kind: PromptPlayers, Warning: warning}
	for _, part := range s.Draft.Participants() {
		p.Added = append(p.Added, Candidate{TelegramID: part.TelegramID, Name: part.Name})
	}
	for _, member := range s.members {
		if !s.Draft.HasPlayer(member.TelegramID) {
			p.Candidates = append(p.Candidates, Candidate{TelegramID: member.TelegramID, Name: member.Name})
		}
	}
	return p
}

func (m *Manager) winnerPrompt(s *Session) *Prompt {
	p := &Prompt{Kind: PromptWinner}
	for _, part := range s.Draft.Participants() {
		p.Candidates = append(p.Candidates, Candidate{TelegramID: part.TelegramID, Name: part.Name})
	}
	return p
}

func (m *Manager) outcomePrompt(s *Session) *Prompt {
	cur := s.currentOutcomePlayer()
	return &Prompt{
		Kind:    PromptOutcome,
		Current: Candidate{TelegramID: cur.TelegramID, Name: cur.Name},
	}
}

func (m *Manager) eliminationsPrompt(s *Session) *Prompt {
	eliminator := s.currentEliminator()
	p := &Prompt{
		Kind:    PromptEliminations,
		Current: Candidate{TelegramID: eliminator.TelegramID, Name: eliminator.Name},
	}
	for _, part := range s.Draft.Participants() {
		if m.isEliminationCandidate(s, part.TelegramID, eliminator.TelegramID) {
			p.Candidates = append(p.Candidates, Candidate{TelegramID: part.TelegramID, Name: part.Name})
		}
	}
	for _, id := range s.Draft.EliminatedBy(eliminator.TelegramID) {
		name, _ := s.Draft.PlayerName(id)
		p.EliminatedByCurrent = append(p.EliminatedByCurrent, Candidate{TelegramID: id, Name: name})
	}
	return p
}

func (m *Manager) confirmPrompt(s *Session) *Prompt {
	return &Prompt{Kind: PromptConfirm, Summary: s.Draft.Summary()}
}

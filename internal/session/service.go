package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"requirements-agent/internal/analyzer"
	"requirements-agent/internal/document"
	"requirements-agent/internal/domain"
	"requirements-agent/internal/extractor"
	"requirements-agent/internal/gateway"
	"requirements-agent/internal/knowledge"
	"requirements-agent/internal/metrics"
	"requirements-agent/internal/phase"
)

const (
	defaultMaxInput = 4000
	greeting        = "Hi! I'm here to help you describe the software you'd like to build. " +
		"No technical knowledge needed. What would you like to create?"
)

// Gateway produces the assistant reply for a turn. It never fails: problems
// are reported through its fallback text.
type Gateway interface {
	NextUtterance(ctx context.Context, req gateway.Request) string
}

// Turn is the outcome of one submitted message.
type Turn struct {
	User      domain.Message `json:"user"`
	Assistant domain.Message `json:"assistant"`
	State     State          `json:"session"`
}

// Document is an exported requirements report.
type Document struct {
	Filename string
	Body     string
}

type Service struct {
	store       Store
	gw          Gateway
	kb          *knowledge.Base
	analyzer    *analyzer.Analyzer
	metrics     *metrics.Metrics
	logger      *slog.Logger
	maxInputLen int
	now         func() time.Time
	newID       func() string

	inflightMu sync.Mutex
	inflight   map[string]struct{}
}

type Option func(*Service)

func WithKnowledge(kb *knowledge.Base) Option {
	return func(s *Service) {
		if kb != nil {
			s.kb = kb
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

func WithMaxInputLength(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxInputLen = n
		}
	}
}

func NewService(store Store, gw Gateway, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("session: store must not be nil")
	}
	if gw == nil {
		return nil, errors.New("session: gateway must not be nil")
	}
	s := &Service{
		store:       store,
		gw:          gw,
		kb:          knowledge.Default(),
		logger:      slog.Default(),
		maxInputLen: defaultMaxInput,
		now:         time.Now,
		newID:       uuid.NewString,
		inflight:    make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.analyzer = analyzer.New(s.kb)
	return s, nil
}

// Start creates a session in the introduction phase, opened by a greeting.
func (s *Service) Start(ctx context.Context) (State, error) {
	now := s.now().UTC()
	st := State{
		ID:           s.newID(),
		Phase:        domain.PhaseIntroduction,
		Context:      domain.NewProjectContext(),
		Requirements: domain.Requirements{},
		History: []domain.Message{{
			ID:        s.newID(),
			Role:      domain.RoleAssistant,
			Text:      greeting,
			Timestamp: now,
		}},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.Create(ctx, st); err != nil {
		return State{}, fmt.Errorf("session: create: %w", err)
	}
	s.metrics.SessionStarted()
	s.logger.InfoContext(ctx, "session started", "session_id", st.ID)
	return st, nil
}

func (s *Service) Get(ctx context.Context, id string) (State, error) {
	st, err := s.store.Get(ctx, id)
	if err != nil {
		return State{}, fmt.Errorf("session: get: %w", err)
	}
	return st, nil
}

// Submit processes one user message. Only one turn per session may be in
// flight; a concurrent call fails with ErrTurnInProgress. Once started, a
// turn runs to completion even if ctx is cancelled.
func (s *Service) Submit(ctx context.Context, id, text string) (Turn, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Turn{}, ErrEmptyInput
	}
	if len(text) > s.maxInputLen {
		return Turn{}, ErrInputTooLong
	}

	release, ok := s.acquire(id)
	if !ok {
		return Turn{}, ErrTurnInProgress
	}
	defer release()

	ctx = context.WithoutCancel(ctx)
	st, err := s.store.Get(ctx, id)
	if err != nil {
		return Turn{}, fmt.Errorf("session: get: %w", err)
	}
	prevVersion := st.Version

	cls := s.analyzer.Analyze(text)
	userMsg := domain.Message{
		ID:             s.newID(),
		Role:           domain.RoleUser,
		Text:           text,
		Timestamp:      s.now().UTC(),
		Classification: &cls,
	}
	st.History = append(st.History, userMsg)
	st.Context = st.Context.Merge(cls)
	st.Requirements = extractor.Extract(text, cls, st.Requirements)

	reply := s.gw.NextUtterance(ctx, gateway.Request{
		UserInput:      text,
		ProjectContext: st.Context,
		SessionPhase:   st.Phase,
		Requirements:   st.Requirements,
	})

	s.advance(ctx, &st, phase.Next(st.Phase, st.Context, st.Requirements))

	assistantMsg := domain.Message{
		ID:        s.newID(),
		Role:      domain.RoleAssistant,
		Text:      reply,
		Timestamp: s.now().UTC(),
	}
	st.History = append(st.History, assistantMsg)

	if err := s.save(ctx, &st, prevVersion); err != nil {
		return Turn{}, err
	}
	s.metrics.Turn()
	return Turn{User: userMsg, Assistant: assistantMsg, State: st}, nil
}

// SetRequirement records the answer to a clarification question. Blank
// answers are rejected so they never count as a recorded requirement.
func (s *Service) SetRequirement(ctx context.Context, id, field string, value any) (State, error) {
	if !s.kb.IsClarificationField(field) {
		return State{}, ErrUnknownField
	}
	switch v := value.(type) {
	case string:
		v = strings.TrimSpace(v)
		if v == "" {
			return State{}, ErrInvalidValue
		}
		value = v
	case bool:
	default:
		return State{}, ErrInvalidValue
	}

	return s.mutate(ctx, id, func(st *State) {
		st.Requirements[field] = value
	})
}

// Clarifications returns the questions for the session's project type that
// have not been answered yet.
func (s *Service) Clarifications(ctx context.Context, id string) ([]knowledge.Clarification, error) {
	st, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	pending := []knowledge.Clarification{}
	for _, c := range s.kb.ClarificationsFor(st.Context.ProjectType) {
		if _, answered := st.Requirements[c.Field]; !answered {
			pending = append(pending, c)
		}
	}
	return pending, nil
}

// Finish moves the session to summary on the user's request.
func (s *Service) Finish(ctx context.Context, id string) (State, error) {
	return s.mutate(ctx, id, func(st *State) {
		s.advance(ctx, st, phase.Finish(st.Phase))
	})
}

// Document renders the session's requirements report.
func (s *Service) Document(ctx context.Context, id string) (Document, error) {
	st, err := s.Get(ctx, id)
	if err != nil {
		return Document{}, err
	}
	return Document{
		Filename: document.Filename(s.now()),
		Body:     document.Render(st.Context, st.Requirements, st.Phase),
	}, nil
}

func (s *Service) mutate(ctx context.Context, id string, fn func(st *State)) (State, error) {
	release, ok := s.acquire(id)
	if !ok {
		return State{}, ErrTurnInProgress
	}
	defer release()

	st, err := s.store.Get(ctx, id)
	if err != nil {
		return State{}, fmt.Errorf("session: get: %w", err)
	}
	prevVersion := st.Version
	if st.Requirements == nil {
		st.Requirements = domain.Requirements{}
	}
	fn(&st)
	if err := s.save(ctx, &st, prevVersion); err != nil {
		return State{}, err
	}
	return st, nil
}

func (s *Service) advance(ctx context.Context, st *State, next domain.Phase) {
	if next == st.Phase || next.Before(st.Phase) {
		return
	}
	s.logger.InfoContext(ctx, "session phase advanced", "session_id", st.ID, "from", st.Phase, "to", next)
	s.metrics.PhaseTransition(string(next))
	st.Phase = next
}

func (s *Service) save(ctx context.Context, st *State, prevVersion int64) error {
	st.Version = prevVersion + 1
	st.UpdatedAt = s.now().UTC()
	if err := s.store.Save(ctx, *st, prevVersion); err != nil {
		return fmt.Errorf("session: save: %w", err)
	}
	return nil
}

func (s *Service) acquire(id string) (func(), bool) {
	s.inflightMu.Lock()
	defer s.inflightMu.Unlock()
	if _, busy := s.inflight[id]; busy {
		return nil, false
	}
	s.inflight[id] = struct{}{}
	return func() {
		s.inflightMu.Lock()
		delete(s.inflight, id)
		s.inflightMu.Unlock()
	}, true
}

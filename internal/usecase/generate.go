package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"requirements-agent/internal/domain"
	"requirements-agent/internal/integrations/openai"
)

const defaultMaxInput = 4000

type LLMClient interface {
	Chat(ctx context.Context, model string, messages []domain.ChatMessage) (string, error)
}

type httpStatusCoder interface {
	HTTPStatusCode() int
}

// GenerateInput is the conversation state forwarded by the chat client.
type GenerateInput struct {
	UserInput      string                `json:"userInput"`
	ProjectContext domain.ProjectContext `json:"projectContext"`
	SessionPhase   domain.Phase          `json:"sessionPhase"`
	Requirements   domain.Requirements   `json:"requirements"`
}

// GenerateService produces the assistant's next utterance by prompting a
// generative model with the current conversation state. It performs no
// retries: a failed upstream call is reported once to the caller.
type GenerateService struct {
	llm         LLMClient
	model       string
	maxInputLen int
	logger      *slog.Logger
	onOutcome   func(outcome string)
}

type GenerateOption func(*GenerateService)

// WithOutcomeHook is called once per Generate call with "ok" or the failure
// reason.
func WithOutcomeHook(fn func(outcome string)) GenerateOption {
	return func(s *GenerateService) {
		s.onOutcome = fn
	}
}

func NewGenerateService(llm LLMClient, model string, maxInputLen int, logger *slog.Logger, opts ...GenerateOption) (*GenerateService, error) {
	if llm == nil {
		return nil, errors.New("usecase: llm client must not be nil")
	}
	model = strings.TrimSpace(model)
	if model == "" {
		return nil, errors.New("usecase: model must not be empty")
	}
	if maxInputLen <= 0 {
		maxInputLen = defaultMaxInput
	}
	if logger == nil {
		logger = slog.Default()
	}
	s := &GenerateService{
		llm:         llm,
		model:       model,
		maxInputLen: maxInputLen,
		logger:      logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *GenerateService) Generate(ctx context.Context, in GenerateInput) (string, error) {
	text, err := s.generate(ctx, in)
	if s.onOutcome != nil {
		outcome := "ok"
		var ue *Error
		if errors.As(err, &ue) {
			outcome = ue.Reason
		} else if err != nil {
			outcome = "error"
		}
		s.onOutcome(outcome)
	}
	return text, err
}

func (s *GenerateService) generate(ctx context.Context, in GenerateInput) (string, error) {
	userInput := strings.TrimSpace(in.UserInput)
	if userInput == "" {
		return "", newError(ErrorInvalidInput, "empty_input", nil)
	}
	if len(userInput) > s.maxInputLen {
		return "", newError(ErrorInvalidInput, "input_too_long", nil)
	}
	phase := in.SessionPhase
	if phase.Rank() < 0 {
		phase = domain.PhaseIntroduction
	}

	raw, err := s.llm.Chat(ctx, s.model, buildPromptMessages(promptInput{
		userInput:    userInput,
		context:      in.ProjectContext,
		phase:        phase,
		requirements: in.Requirements,
	}))
	if err != nil {
		if errors.Is(err, openai.ErrNoAPIKey) {
			return "", newError(ErrorInternal, "missing_credential", err)
		}
		reason := "llm_error"
		if status, ok := upstreamStatusCode(err); ok {
			s.logger.WarnContext(ctx, "llm returned non-success status", "status", status)
			if status == 429 {
				reason = "llm_rate_limited"
			}
		}
		return "", newError(ErrorUpstream, reason, err)
	}

	text := strings.TrimSpace(raw)
	if text == "" {
		return "", newError(ErrorUpstream, "llm_empty_response", nil)
	}
	return text, nil
}

func upstreamStatusCode(err error) (int, bool) {
	var statusErr httpStatusCoder
	if !errors.As(err, &statusErr) {
		return 0, false
	}
	return statusErr.HTTPStatusCode(), true
}

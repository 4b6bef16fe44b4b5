// Package handler exposes the requirements agent over HTTP: the generation
// endpoint used by the response gateway and the session API used by the chat
// page and other clients.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"requirements-agent/internal/knowledge"
	"requirements-agent/internal/session"
	"requirements-agent/internal/usecase"
)

const (
	maxBodyBytes       = 64 << 10
	generateFailureMsg = "Failed to generate response"

	errorNotFound = "NOT_FOUND"
	errorConflict = "CONFLICT"
)

// Generator produces the next assistant utterance.
type Generator interface {
	Generate(ctx context.Context, in usecase.GenerateInput) (string, error)
}

// Sessions is the session operations consumed by the handler.
type Sessions interface {
	Start(ctx context.Context) (session.State, error)
	Get(ctx context.Context, id string) (session.State, error)
	Submit(ctx context.Context, id, text string) (session.Turn, error)
	SetRequirement(ctx context.Context, id, field string, value any) (session.State, error)
	Clarifications(ctx context.Context, id string) ([]knowledge.Clarification, error)
	Finish(ctx context.Context, id string) (session.State, error)
	Document(ctx context.Context, id string) (session.Document, error)
}

type Handler struct {
	gen      Generator
	sessions Sessions
	logger   *slog.Logger
}

type generateResponse struct {
	Response string `json:"response"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

type messageRequest struct {
	Text string `json:"text"`
}

type requirementRequest struct {
	Value any `json:"value"`
}

type clarificationsResponse struct {
	Clarifications []knowledge.Clarification `json:"clarifications"`
}

func NewHandler(gen Generator, sessions Sessions, logger *slog.Logger) (*Handler, error) {
	if gen == nil {
		return nil, errors.New("handler: generator must not be nil")
	}
	if sessions == nil {
		return nil, errors.New("handler: sessions must not be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{gen: gen, sessions: sessions, logger: logger}, nil
}

// RegisterRoutes mounts the API on r.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/api/generate-response", h.generate)
	r.Route("/api/sessions", func(r chi.Router) {
		r.Post("/", h.startSession)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.getSession)
			r.Post("/messages", h.submitMessage)
			r.Get("/clarifications", h.clarifications)
			r.Put("/requirements/{field}", h.setRequirement)
			r.Post("/finish", h.finish)
			r.Get("/document", h.document)
		})
	})
}

// generate answers every failure, including an undecodable body, with the
// same 500 {"error"} body; the reason is only logged.
func (h *Handler) generate(w http.ResponseWriter, r *http.Request) {
	var in usecase.GenerateInput
	if err := decodeJSON(r, &in); err != nil {
		h.generateFailed(w, r, err)
		return
	}

	text, err := h.gen.Generate(r.Context(), in)
	if err != nil {
		h.generateFailed(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, generateResponse{Response: text})
}

func (h *Handler) generateFailed(w http.ResponseWriter, r *http.Request, err error) {
	reason := "decode"
	var ue *usecase.Error
	if errors.As(err, &ue) {
		reason = ue.Reason
	} else if !errors.Is(err, errInvalidBody) {
		reason = "unexpected"
	}
	h.logger.ErrorContext(r.Context(), "generate response failed",
		"reason", reason, "err", err, "correlation_id", correlationID(r))
	writeError(w, http.StatusInternalServerError, generateFailureMsg, "")
}

func (h *Handler) startSession(w http.ResponseWriter, r *http.Request) {
	st, err := h.sessions.Start(r.Context())
	if err != nil {
		h.sessionError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, st)
}

func (h *Handler) getSession(w http.ResponseWriter, r *http.Request) {
	st, err := h.sessions.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.sessionError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (h *Handler) submitMessage(w http.ResponseWriter, r *http.Request) {
	var req messageRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, string(usecase.ErrorInvalidInput), err.Error())
		return
	}
	turn, err := h.sessions.Submit(r.Context(), chi.URLParam(r, "id"), req.Text)
	if err != nil {
		h.sessionError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, turn)
}

func (h *Handler) clarifications(w http.ResponseWriter, r *http.Request) {
	pending, err := h.sessions.Clarifications(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.sessionError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, clarificationsResponse{Clarifications: pending})
}

func (h *Handler) setRequirement(w http.ResponseWriter, r *http.Request) {
	var req requirementRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, string(usecase.ErrorInvalidInput), err.Error())
		return
	}
	st, err := h.sessions.SetRequirement(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "field"), req.Value)
	if err != nil {
		h.sessionError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (h *Handler) finish(w http.ResponseWriter, r *http.Request) {
	st, err := h.sessions.Finish(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.sessionError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (h *Handler) document(w http.ResponseWriter, r *http.Request) {
	doc, err := h.sessions.Document(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.sessionError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", doc.Filename))
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, doc.Body)
}

func (h *Handler) sessionError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, session.ErrNotFound):
		writeError(w, http.StatusNotFound, errorNotFound, err.Error())
	case errors.Is(err, session.ErrTurnInProgress), errors.Is(err, session.ErrConflict):
		writeError(w, http.StatusConflict, errorConflict, err.Error())
	case errors.Is(err, session.ErrEmptyInput),
		errors.Is(err, session.ErrInputTooLong),
		errors.Is(err, session.ErrUnknownField),
		errors.Is(err, session.ErrInvalidValue):
		writeError(w, http.StatusBadRequest, string(usecase.ErrorInvalidInput), err.Error())
	default:
		h.logger.ErrorContext(r.Context(), "session request failed", "err", err, "correlation_id", correlationID(r))
		writeError(w, http.StatusInternalServerError, string(usecase.ErrorInternal), "")
	}
}

var errInvalidBody = errors.New("invalid JSON body")

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %v", errInvalidBody, err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("handler: encode response", "err", err)
	}
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Error: code, Message: message})
}

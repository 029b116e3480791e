package interview

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/zhouzirui/visa-interview/backend/internal/catalog"
	model "github.com/zhouzirui/visa-interview/backend/internal/model/interview"
	"github.com/zhouzirui/visa-interview/backend/internal/service/advisor"
	interviewsvc "github.com/zhouzirui/visa-interview/backend/internal/service/interview"
	"github.com/zhouzirui/visa-interview/backend/pkg/utils"
)

// Handler exposes the interview over HTTP, SSE and WebSocket.
type Handler struct {
	svc      *interviewsvc.Service
	advisor  *advisor.Service
	logger   *zap.Logger
	upgrader websocket.Upgrader
}

// New creates the handler. advisor may be nil, in which case recommendations
// carry no rationale.
func New(svc *interviewsvc.Service, adv *advisor.Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		svc:     svc,
		advisor: adv,
		logger:  logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// RegisterRoutes mounts the interview routes. adminOnly guards reset.
func (h *Handler) RegisterRoutes(r chi.Router, adminOnly ...func(http.Handler) http.Handler) {
	r.Route("/interview", func(r chi.Router) {
		r.Post("/start", h.start)
		r.Post("/next-question", h.nextQuestion)
		r.Post("/answer", h.answer)
		r.Get("/history", h.history)
		r.With(adminOnly...).Post("/reset", h.reset)
		r.Get("/ws/{sessionID}", h.handleWebSocket)
		r.Get("/{sessionID}", h.progress)
		r.Get("/{sessionID}/rationale", h.rationale)
	})
}

type startRequest struct {
	CaseID    string `json:"caseId"`
	SessionID string `json:"sessionId"`
}

type startResponse struct {
	SessionID string       `json:"sessionId"`
	CaseID    string       `json:"caseId"`
	Status    model.Status `json:"status"`
	StartedAt time.Time    `json:"startedAt"`
}

type sessionRequest struct {
	SessionID string `json:"sessionId"`
}

type answerRequest struct {
	SessionID   string            `json:"sessionId"`
	QuestionKey model.QuestionKey `json:"questionKey"`
	AnswerValue model.AnswerValue `json:"answerValue"`
}

type answerResponse struct {
	SessionID string `json:"sessionId"`
	model.Answer
}

type optionView struct {
	Value model.AnswerValue `json:"value"`
	Label string            `json:"label"`
}

type questionView struct {
	Key                model.QuestionKey  `json:"key"`
	Question           string             `json:"question"`
	Type               model.QuestionType `json:"type"`
	Options            []optionView       `json:"options"`
	RemainingVisaTypes int                `json:"remainingVisaTypes"`
	RemainingVisaCodes []string           `json:"remainingVisaCodes"`
}

type recommendationView struct {
	VisaType        model.Category   `json:"visaType"`
	Name            string           `json:"name"`
	Ambiguous       bool             `json:"ambiguous"`
	Candidates      []model.Category `json:"candidates"`
	Rationale       string           `json:"rationale,omitempty"`
	RationaleSource advisor.Source   `json:"rationaleSource,omitempty"`
	DecidedAt       time.Time        `json:"decidedAt"`
}

type nextResponse struct {
	SessionID          string              `json:"sessionId"`
	IsComplete         bool                `json:"isComplete"`
	RemainingVisaTypes int                 `json:"remainingVisaTypes"`
	Question           *questionView       `json:"question,omitempty"`
	Recommendation     *recommendationView `json:"recommendation,omitempty"`
}

type progressResponse struct {
	SessionID          string              `json:"sessionId"`
	CaseID             string              `json:"caseId"`
	Status             model.Status        `json:"status"`
	Answers            []model.Answer      `json:"answers"`
	EffectiveAnswers   []model.Answer      `json:"effectiveAnswers"`
	PendingQuestion    model.QuestionKey   `json:"pendingQuestion,omitempty"`
	RemainingVisaTypes int                 `json:"remainingVisaTypes"`
	RemainingVisaCodes []string            `json:"remainingVisaCodes"`
	Recommendation     *recommendationView `json:"recommendation,omitempty"`
	CreatedAt          time.Time           `json:"createdAt"`
	UpdatedAt          time.Time           `json:"updatedAt"`
}

type historyEntry struct {
	SessionID   string            `json:"sessionId"`
	Status      model.Status      `json:"status"`
	AnswerCount int               `json:"answerCount"`
	VisaType    model.Category    `json:"visaType,omitempty"`
	Ambiguous   bool              `json:"ambiguous,omitempty"`
	PendingKey  model.QuestionKey `json:"pendingQuestion,omitempty"`
	CreatedAt   time.Time         `json:"createdAt"`
	UpdatedAt   time.Time         `json:"updatedAt"`
}

type historyResponse struct {
	CaseID   string         `json:"caseId"`
	Sessions []historyEntry `json:"sessions"`
}

func (h *Handler) start(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.CaseID == "" {
		utils.RespondError(w, http.StatusBadRequest, "caseId is required")
		return
	}

	session, err := h.svc.Start(r.Context(), req.SessionID, req.CaseID)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}

	utils.RespondJSON(w, http.StatusCreated, startResponse{
		SessionID: session.ID,
		CaseID:    session.CaseID,
		Status:    session.Status,
		StartedAt: session.CreatedAt,
	})
}

func (h *Handler) nextQuestion(w http.ResponseWriter, r *http.Request) {
	var req sessionRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.SessionID == "" {
		utils.RespondError(w, http.StatusBadRequest, "sessionId is required")
		return
	}

	resp, err := h.next(r.Context(), req.SessionID)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, resp)
}

func (h *Handler) answer(w http.ResponseWriter, r *http.Request) {
	var req answerRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.SessionID == "" || req.QuestionKey == "" || req.AnswerValue == "" {
		utils.RespondError(w, http.StatusBadRequest, "sessionId, questionKey and answerValue are required")
		return
	}

	answer, err := h.svc.SubmitAnswer(r.Context(), req.SessionID, req.QuestionKey, req.AnswerValue)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, answerResponse{SessionID: req.SessionID, Answer: answer})
}

func (h *Handler) progress(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	p, err := h.svc.Progress(r.Context(), sessionID)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}

	resp := progressResponse{
		SessionID:          p.Session.ID,
		CaseID:             p.Session.CaseID,
		Status:             p.Session.Status,
		Answers:            nonNil(p.Session.Answers),
		EffectiveAnswers:   nonNil(p.Effective),
		PendingQuestion:    p.Session.PendingKey,
		RemainingVisaTypes: p.Remaining.Len(),
		RemainingVisaCodes: p.Remaining.Strings(),
		CreatedAt:          p.Session.CreatedAt,
		UpdatedAt:          p.Session.UpdatedAt,
	}
	if p.Session.Recommendation != nil {
		resp.Recommendation = h.recommendation(r.Context(), p.Session)
	}
	utils.RespondJSON(w, http.StatusOK, resp)
}

func (h *Handler) history(w http.ResponseWriter, r *http.Request) {
	caseID := r.URL.Query().Get("caseId")
	if caseID == "" {
		utils.RespondError(w, http.StatusBadRequest, "caseId query parameter is required")
		return
	}

	sessions, err := h.svc.History(r.Context(), caseID)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}

	entries := make([]historyEntry, 0, len(sessions))
	for _, s := range sessions {
		entry := historyEntry{
			SessionID:   s.ID,
			Status:      s.Status,
			AnswerCount: len(s.Answers),
			PendingKey:  s.PendingKey,
			CreatedAt:   s.CreatedAt,
			UpdatedAt:   s.UpdatedAt,
		}
		if s.Recommendation != nil {
			entry.VisaType = s.Recommendation.Category
			entry.Ambiguous = s.Recommendation.Ambiguous
		}
		entries = append(entries, entry)
	}
	utils.RespondJSON(w, http.StatusOK, historyResponse{CaseID: caseID, Sessions: entries})
}

func (h *Handler) reset(w http.ResponseWriter, r *http.Request) {
	var req sessionRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.SessionID == "" {
		utils.RespondError(w, http.StatusBadRequest, "sessionId is required")
		return
	}

	session, err := h.svc.Reset(r.Context(), req.SessionID)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, startResponse{
		SessionID: session.ID,
		CaseID:    session.CaseID,
		Status:    session.Status,
		StartedAt: session.CreatedAt,
	})
}

// next advances the session and renders the response shared by the REST
// and WebSocket transports.
func (h *Handler) next(ctx context.Context, sessionID string) (nextResponse, error) {
	step, err := h.svc.NextQuestion(ctx, sessionID)
	if err != nil {
		return nextResponse{}, err
	}

	resp := nextResponse{
		SessionID:          sessionID,
		IsComplete:         step.Complete(),
		RemainingVisaTypes: step.Remaining.Len(),
	}
	if !step.Complete() {
		resp.Question = newQuestionView(step.Question, step.Remaining)
		return resp, nil
	}

	// The rationale needs the answer log, which the step does not carry.
	p, err := h.svc.Progress(ctx, sessionID)
	if err != nil {
		return nextResponse{}, err
	}
	resp.Recommendation = h.recommendation(ctx, p.Session)
	return resp, nil
}

func (h *Handler) recommendation(ctx context.Context, session model.Session) *recommendationView {
	rec := session.Recommendation
	view := &recommendationView{
		VisaType:   rec.Category,
		Ambiguous:  rec.Ambiguous,
		Candidates: rec.Candidates,
		DecidedAt:  rec.DecidedAt,
	}
	if info, ok := h.svc.Catalog().Category(rec.Category); ok {
		view.Name = info.Name
	}

	if h.advisor != nil {
		explanation, err := h.advisor.Explain(ctx, session)
		if err != nil {
			h.logger.Warn("explain recommendation", zap.String("session_id", session.ID), zap.Error(err))
		} else {
			view.Rationale = explanation.Text
			view.RationaleSource = explanation.Source
		}
	}
	return view
}

func newQuestionView(q *catalog.Question, remaining model.CategorySet) *questionView {
	options := make([]optionView, 0, len(q.Options))
	for _, opt := range q.Options {
		options = append(options, optionView{Value: opt.Value, Label: opt.Label})
	}
	return &questionView{
		Key:                q.Key,
		Question:           q.Prompt,
		Type:               q.Type,
		Options:            options,
		RemainingVisaTypes: remaining.Len(),
		RemainingVisaCodes: remaining.Strings(),
	}
}

func (h *Handler) respondServiceError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("interview request failed", zap.Error(err))
		utils.RespondError(w, status, "internal error")
		return
	}
	utils.RespondError(w, status, err.Error())
}

// statusFor maps service errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, model.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, model.ErrSessionAlreadyComplete),
		errors.Is(err, model.ErrDuplicateSession),
		errors.Is(err, advisor.ErrNoRecommendation):
		return http.StatusConflict
	case errors.Is(err, model.ErrUnknownQuestion),
		errors.Is(err, model.ErrInvalidAnswerValue):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func nonNil(answers []model.Answer) []model.Answer {
	if answers == nil {
		return []model.Answer{}
	}
	return answers
}

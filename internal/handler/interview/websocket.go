package interview

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	model "github.com/zhouzirui/visa-interview/backend/internal/model/interview"
)

const (
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	writeWait  = 10 * time.Second
)

type inboundMessage struct {
	Type      string          `json:"type"`
	SessionID string          `json:"sessionId"`
	Data      json.RawMessage `json:"data"`
	Timestamp int64           `json:"timestamp"`
}

// AnswerMessage is the payload of an inbound "answer" message.
type AnswerMessage struct {
	QuestionKey model.QuestionKey `json:"questionKey"`
	AnswerValue model.AnswerValue `json:"answerValue"`
}

type outgoingMessage struct {
	Type      string      `json:"type"`
	SessionID string      `json:"sessionId,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp int64       `json:"timestamp"`
}

// handleWebSocket runs an interview over one connection. The current step
// is pushed on connect and after every accepted answer.
func (h *Handler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	if _, err := h.svc.Progress(r.Context(), sessionID); err != nil {
		h.respondServiceError(w, err)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.String("session_id", sessionID), zap.Error(err))
		return
	}
	defer conn.Close()

	logger := h.logger.With(zap.String("session_id", sessionID))
	logger.Info("websocket connected")

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	go h.pingLoop(ctx, conn)

	h.pushStep(ctx, conn, sessionID)

	for {
		var msg inboundMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Warn("websocket read error", zap.Error(err))
			}
			return
		}
		conn.SetReadDeadline(time.Now().Add(pongWait))

		if msg.SessionID != "" && msg.SessionID != sessionID {
			h.sendError(conn, sessionID, "session mismatch")
			continue
		}

		h.handleMessage(ctx, conn, sessionID, &msg)
	}
}

func (h *Handler) handleMessage(ctx context.Context, conn *websocket.Conn, sessionID string, msg *inboundMessage) {
	switch msg.Type {
	case "answer":
		var payload AnswerMessage
		if err := json.Unmarshal(msg.Data, &payload); err != nil {
			h.sendError(conn, sessionID, "invalid answer payload")
			return
		}
		answer, err := h.svc.SubmitAnswer(ctx, sessionID, payload.QuestionKey, payload.AnswerValue)
		if err != nil {
			h.sendServiceError(conn, sessionID, err)
			return
		}
		h.send(conn, outgoingMessage{Type: "ack", SessionID: sessionID, Data: answer})
		h.pushStep(ctx, conn, sessionID)
	case "next":
		h.pushStep(ctx, conn, sessionID)
	case "progress":
		p, err := h.svc.Progress(ctx, sessionID)
		if err != nil {
			h.sendServiceError(conn, sessionID, err)
			return
		}
		h.send(conn, outgoingMessage{Type: "progress", SessionID: sessionID, Data: map[string]any{
			"status":             p.Session.Status,
			"answers":            nonNil(p.Effective),
			"remainingVisaTypes": p.Remaining.Len(),
			"remainingVisaCodes": p.Remaining.Strings(),
		}})
	default:
		h.sendError(conn, sessionID, "unsupported message type: "+msg.Type)
	}
}

// pushStep sends the next question, or the recommendation once the session
// is complete.
func (h *Handler) pushStep(ctx context.Context, conn *websocket.Conn, sessionID string) {
	resp, err := h.next(ctx, sessionID)
	if errors.Is(err, model.ErrSessionAlreadyComplete) {
		p, perr := h.svc.Progress(ctx, sessionID)
		if perr != nil {
			h.sendServiceError(conn, sessionID, perr)
			return
		}
		resp = nextResponse{
			SessionID:          sessionID,
			IsComplete:         true,
			RemainingVisaTypes: p.Remaining.Len(),
			Recommendation:     h.recommendation(ctx, p.Session),
		}
		err = nil
	}
	if err != nil {
		h.sendServiceError(conn, sessionID, err)
		return
	}

	if resp.IsComplete {
		h.send(conn, outgoingMessage{Type: "complete", SessionID: sessionID, Data: resp})
		return
	}
	h.send(conn, outgoingMessage{Type: "question", SessionID: sessionID, Data: resp})
}

func (h *Handler) pingLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}

func (h *Handler) send(conn *websocket.Conn, msg outgoingMessage) {
	msg.Timestamp = time.Now().UnixMilli()
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(msg); err != nil {
		h.logger.Debug("websocket write failed", zap.String("type", msg.Type), zap.Error(err))
	}
}

func (h *Handler) sendError(conn *websocket.Conn, sessionID, message string) {
	h.send(conn, outgoingMessage{Type: "error", SessionID: sessionID, Data: map[string]any{"message": message}})
}

func (h *Handler) sendServiceError(conn *websocket.Conn, sessionID string, err error) {
	status := statusFor(err)
	message := err.Error()
	if status >= http.StatusInternalServerError {
		h.logger.Error("websocket interview step failed", zap.String("session_id", sessionID), zap.Error(err))
		message = "internal error"
	}
	h.send(conn, outgoingMessage{Type: "error", SessionID: sessionID, Data: map[string]any{
		"message": message,
		"status":  status,
	}})
}

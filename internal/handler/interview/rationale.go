package interview

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/zhouzirui/visa-interview/backend/internal/service/advisor"
	"github.com/zhouzirui/visa-interview/backend/pkg/utils"
)

// rationaleEvent is one SSE frame of the rationale stream.
type rationaleEvent struct {
	Event     string         `json:"event"`
	SessionID string         `json:"sessionId"`
	Content   string         `json:"content,omitempty"`
	Source    advisor.Source `json:"source,omitempty"`
	Finished  bool           `json:"finished,omitempty"`
	Error     string         `json:"error,omitempty"`
}

// rationale streams the explanation of a completed session. Without a
// streaming model the whole text is sent as a single message.
func (h *Handler) rationale(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	if h.advisor == nil {
		utils.RespondError(w, http.StatusServiceUnavailable, "advisor unavailable")
		return
	}

	p, err := h.svc.Progress(r.Context(), sessionID)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	if p.Session.Recommendation == nil {
		h.respondServiceError(w, advisor.ErrNoRecommendation)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		utils.RespondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}
	utils.SetupSSEHeaders(w)

	send := func(ev rationaleEvent) bool {
		ev.SessionID = sessionID
		if err := utils.SendSSEEvent(w, flusher, ev.Event, ev); err != nil {
			h.logger.Debug("rationale client gone", zap.String("session_id", sessionID), zap.Error(err))
			return false
		}
		return true
	}

	if !send(rationaleEvent{Event: "start"}) {
		return
	}

	ctx := r.Context()
	if h.advisor.StreamingEnabled() {
		stream, err := h.advisor.Stream(ctx, p.Session)
		if err == nil {
			defer stream.Close()

			var full strings.Builder
			for {
				chunk, err := stream.Recv()
				if errors.Is(err, io.EOF) {
					break
				}
				if err != nil {
					h.logger.Warn("rationale stream interrupted", zap.String("session_id", sessionID), zap.Error(err))
					send(rationaleEvent{Event: "error", Error: "rationale stream interrupted"})
					send(rationaleEvent{Event: "end", Finished: true})
					return
				}
				if chunk == nil || chunk.Content == "" {
					continue
				}
				full.WriteString(chunk.Content)
				if !send(rationaleEvent{Event: "delta", Content: chunk.Content}) {
					return
				}
			}

			if text := strings.TrimSpace(full.String()); text != "" {
				send(rationaleEvent{Event: "message", Content: text, Source: advisor.SourceModel})
				send(rationaleEvent{Event: "end", Finished: true})
				return
			}
		} else {
			h.logger.Warn("rationale stream unavailable, use explain", zap.String("session_id", sessionID), zap.Error(err))
		}
	}

	explanation, err := h.advisor.Explain(ctx, p.Session)
	if err != nil {
		send(rationaleEvent{Event: "error", Error: err.Error()})
		send(rationaleEvent{Event: "end", Finished: true})
		return
	}
	send(rationaleEvent{Event: "message", Content: explanation.Text, Source: explanation.Source})
	send(rationaleEvent{Event: "end", Finished: true})
}

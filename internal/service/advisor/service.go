// Package advisor turns a finished interview into a short explanation for
// the applicant. A chat model narrates it when configured; otherwise a
// template built from the catalog is used.
package advisor

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"go.uber.org/zap"

	"github.com/zhouzirui/visa-interview/backend/internal/catalog"
	"github.com/zhouzirui/visa-interview/backend/internal/model/interview"
	"github.com/zhouzirui/visa-interview/backend/internal/service/eligibility"
)

// ErrNoRecommendation is returned for sessions that are still running.
var ErrNoRecommendation = errors.New("session has no recommendation yet")

// Source tells where an explanation came from.
type Source string

const (
	SourceModel    Source = "model"
	SourceTemplate Source = "template"
)

// Explanation is the rationale attached to a recommendation.
type Explanation struct {
	Text   string `json:"text"`
	Source Source `json:"source"`
}

// Config 控制推荐理由的生成方式。
type Config struct {
	Enabled   bool
	Streaming bool
}

// Service explains recommendations.
type Service struct {
	enabled   bool
	streaming bool
	chain     compose.Runnable[map[string]any, *schema.Message]
	catalog   *catalog.Catalog
	logger    *zap.Logger
}

// NewService builds the advisor. chatModel may be nil, in which case only
// template explanations are produced.
func NewService(ctx context.Context, cat *catalog.Catalog, chatModel model.BaseChatModel, cfg Config, logger *zap.Logger) (*Service, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &Service{
		enabled:   cfg.Enabled && chatModel != nil,
		streaming: cfg.Streaming,
		catalog:   cat,
		logger:    logger,
	}
	if !svc.enabled {
		return svc, nil
	}

	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage(advisorSystemPrompt),
		schema.UserMessage(advisorUserPrompt),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile advisor chain: %w", err)
	}
	svc.chain = runnable
	return svc, nil
}

// Enabled reports whether a chat model narrates explanations.
func (s *Service) Enabled() bool {
	return s != nil && s.enabled && s.chain != nil
}

// StreamingEnabled 指示是否可以流式输出推荐理由。
func (s *Service) StreamingEnabled() bool {
	return s.Enabled() && s.streaming
}

// Explain returns the rationale for a completed session. Model failures
// fall back to the template.
func (s *Service) Explain(ctx context.Context, session interview.Session) (Explanation, error) {
	if session.Recommendation == nil {
		return Explanation{}, ErrNoRecommendation
	}
	if !s.Enabled() {
		return s.Template(session), nil
	}

	msg, err := s.chain.Invoke(ctx, s.chainInput(session))
	if err != nil {
		s.logger.Warn("advisor invoke failed, use template", zap.String("session_id", session.ID), zap.Error(err))
		return s.Template(session), nil
	}
	if msg == nil || strings.TrimSpace(msg.Content) == "" {
		return s.Template(session), nil
	}
	return Explanation{Text: strings.TrimSpace(msg.Content), Source: SourceModel}, nil
}

// Stream streams the model rationale chunk by chunk.
func (s *Service) Stream(ctx context.Context, session interview.Session) (*schema.StreamReader[*schema.Message], error) {
	if session.Recommendation == nil {
		return nil, ErrNoRecommendation
	}
	if !s.StreamingEnabled() {
		return nil, fmt.Errorf("streaming disabled in configuration")
	}

	stream, err := s.chain.Stream(ctx, s.chainInput(session))
	if err != nil {
		return nil, fmt.Errorf("failed to stream advisor output: %w", err)
	}
	return stream, nil
}

// Template renders the deterministic rationale.
func (s *Service) Template(session interview.Session) Explanation {
	rec := session.Recommendation
	if rec == nil {
		return Explanation{Source: SourceTemplate}
	}

	var b strings.Builder
	name := s.categoryName(rec.Category)
	answers := s.describeAnswers(session)
	if answers == "" {
		fmt.Fprintf(&b, "%s (%s) is recommended.", name, rec.Category)
	} else {
		fmt.Fprintf(&b, "Based on your answers (%s), %s (%s) is recommended.", answers, name, rec.Category)
	}

	if info, ok := s.catalog.Category(rec.Category); ok && info.Description != "" {
		b.WriteString(" ")
		b.WriteString(info.Description)
	}

	if rec.Ambiguous && len(rec.Candidates) > 1 {
		others := make([]string, 0, len(rec.Candidates)-1)
		for _, c := range rec.Candidates {
			if c != rec.Category {
				others = append(others, fmt.Sprintf("%s (%s)", s.categoryName(c), c))
			}
		}
		fmt.Fprintf(&b, " Your answers do not rule out %s, so please confirm the details with an advisor.", strings.Join(others, ", "))
	}
	return Explanation{Text: b.String(), Source: SourceTemplate}
}

func (s *Service) chainInput(session interview.Session) map[string]any {
	rec := session.Recommendation
	candidates := make([]string, len(rec.Candidates))
	for i, c := range rec.Candidates {
		candidates[i] = string(c)
	}

	description := ""
	if info, ok := s.catalog.Category(rec.Category); ok {
		description = info.Description
	}

	return map[string]any{
		"category":    fmt.Sprintf("%s (%s)", s.categoryName(rec.Category), rec.Category),
		"description": description,
		"ambiguous":   fmt.Sprintf("%t", rec.Ambiguous),
		"candidates":  strings.Join(candidates, ", "),
		"answers":     s.answerLines(session),
	}
}

func (s *Service) categoryName(code interview.Category) string {
	if info, ok := s.catalog.Category(code); ok && info.Name != "" {
		return info.Name
	}
	return string(code)
}

func (s *Service) describeAnswers(session interview.Session) string {
	effective := eligibility.EffectiveAnswers(session.Answers)
	parts := make([]string, 0, len(effective))
	for _, a := range effective {
		parts = append(parts, fmt.Sprintf("%s: %s", a.Key, s.optionLabel(a)))
	}
	return strings.Join(parts, "; ")
}

func (s *Service) answerLines(session interview.Session) string {
	effective := eligibility.EffectiveAnswers(session.Answers)
	if len(effective) == 0 {
		return "(no answers)"
	}

	var b strings.Builder
	for i, a := range effective {
		question := string(a.Key)
		if q, ok := s.catalog.Lookup(a.Key); ok {
			question = q.Prompt
		}
		fmt.Fprintf(&b, "%d. %s -> %s", i+1, question, s.optionLabel(a))
		if i < len(effective)-1 {
			b.WriteString("\n")
		}
	}
	return b.String()
}

func (s *Service) optionLabel(a interview.Answer) string {
	if q, ok := s.catalog.Lookup(a.Key); ok {
		if opt, ok := q.Option(a.Value); ok && opt.Label != "" {
			return strings.ToLower(opt.Label)
		}
	}
	return string(a.Value)
}

const advisorSystemPrompt = "You are an immigration intake assistant. Given the applicant's interview answers and the category the eligibility engine selected, explain in at most four plain sentences why that category fits. Do not recommend a different category and do not give legal advice. If the result is marked ambiguous, say which alternatives remain and that a human advisor should confirm."

const advisorUserPrompt = "Recommended category: {category}\nDescription: {description}\nAmbiguous: {ambiguous}\nRemaining candidates: {candidates}\n\nInterview answers:\n{answers}"

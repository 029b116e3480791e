package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

type probe struct {
	baseURL string
	client  *http.Client
	out     io.Writer
}

type nextQuestion struct {
	IsComplete         bool `json:"isComplete"`
	RemainingVisaTypes int  `json:"remainingVisaTypes"`
	Question           *struct {
		Key                string   `json:"key"`
		Question           string   `json:"question"`
		RemainingVisaCodes []string `json:"remainingVisaCodes"`
	} `json:"question"`
	Recommendation *struct {
		VisaType   string   `json:"visaType"`
		Name       string   `json:"name"`
		Ambiguous  bool     `json:"ambiguous"`
		Candidates []string `json:"candidates"`
		Rationale  string   `json:"rationale"`
	} `json:"recommendation"`
}

// run drives one scenario through start, next-question and answer.
func (p *probe) run(ctx context.Context, sc scenario) error {
	var started struct {
		SessionID string `json:"sessionId"`
	}
	if err := p.post(ctx, "/api/interview/start", map[string]string{"caseId": "probe-" + sc.Name}, http.StatusCreated, &started); err != nil {
		return fmt.Errorf("start: %w", err)
	}
	fmt.Fprintf(p.out, "[%s] session %s\n", sc.Name, started.SessionID)

	for step := 1; step <= len(sc.Answers)+1; step++ {
		var next nextQuestion
		if err := p.post(ctx, "/api/interview/next-question", map[string]string{"sessionId": started.SessionID}, http.StatusOK, &next); err != nil {
			return fmt.Errorf("next-question: %w", err)
		}

		if next.IsComplete {
			rec := next.Recommendation
			if rec == nil {
				return fmt.Errorf("complete response without recommendation")
			}
			fmt.Fprintf(p.out, "[%s] => %s (%s) ambiguous=%t candidates=%s\n",
				sc.Name, rec.VisaType, rec.Name, rec.Ambiguous, strings.Join(rec.Candidates, ","))
			if rec.Rationale != "" {
				fmt.Fprintf(p.out, "[%s]    %s\n", sc.Name, rec.Rationale)
			}
			if rec.VisaType != sc.Want || rec.Ambiguous != sc.Ambiguous {
				return fmt.Errorf("expected %s (ambiguous=%t), got %s (ambiguous=%t)", sc.Want, sc.Ambiguous, rec.VisaType, rec.Ambiguous)
			}
			return nil
		}

		q := next.Question
		if q == nil {
			return fmt.Errorf("response has neither question nor recommendation")
		}
		value, ok := sc.Answers[q.Key]
		if !ok {
			return fmt.Errorf("unscripted question %s (%d visa types remaining)", q.Key, next.RemainingVisaTypes)
		}
		fmt.Fprintf(p.out, "[%s] %d. %s = %s (remaining %d: %s)\n",
			sc.Name, step, q.Key, value, next.RemainingVisaTypes, strings.Join(q.RemainingVisaCodes, ","))

		body := map[string]string{"sessionId": started.SessionID, "questionKey": q.Key, "answerValue": value}
		if err := p.post(ctx, "/api/interview/answer", body, http.StatusOK, nil); err != nil {
			return fmt.Errorf("answer %s: %w", q.Key, err)
		}
	}
	return fmt.Errorf("interview did not complete after %d answers", len(sc.Answers))
}

func (p *probe) post(ctx context.Context, path string, body any, want int, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(p.baseURL, "/")+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode != want {
		return fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(data, out)
}

package agents

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"unicode/utf8"
)

// MinDescriptionLength is the shortest brief, in characters, the rule-based evaluator approves.
const MinDescriptionLength = 20

type MarketInfo struct {
	TargetAudience string `json:"targetAudience,omitempty"`
	MarketSize     string `json:"marketSize,omitempty"`
	Competition    string `json:"competition,omitempty"`
}

type EvaluationInput struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Goals       []string    `json:"goals,omitempty"`
	Market      *MarketInfo `json:"marketInfo,omitempty"`
}

// Evaluation is the approval gate result. Priority is always within [1,10].
type Evaluation struct {
	Approved  bool   `json:"approved"`
	Priority  int    `json:"priority"`
	Rationale string `json:"rationale"`
}

// Evaluator decides whether a project is worth starting and how urgent it is.
type Evaluator struct {
	Base
}

func (u Evaluator) Evaluate(ctx context.Context, in EvaluationInput) (Evaluation, error) {
	return decide(ctx, u.Base, decision[Evaluation]{
		unit:        "evaluator",
		start:       fmt.Sprintf("evaluating project %q", in.Name),
		temperature: 0.7,
		prompt:      func() string { return evaluationPrompt(in) },
		parse:       parseEvaluation,
		fallback:    func() Evaluation { return evaluateByRules(in) },
	}), nil
}

func evaluationPrompt(in EvaluationInput) string {
	market, _ := json.Marshal(in.Market)
	return fmt.Sprintf(`As the CEO of a small software studio, evaluate this project.

Project name: %s
Description: %s
Goals: %s
Market info: %s

Decide whether it should be approved, give a priority from 1 to 10 and a short rationale.
Respond with JSON only: {"approved": true|false, "priority": 1-10, "rationale": "..."}`,
		in.Name, in.Description, orNone(in.Goals), market)
}

func parseEvaluation(raw string) (Evaluation, error) {
	var v struct {
		Approved  *bool    `json:"approved"`
		Priority  *float64 `json:"priority"`
		Rationale *string  `json:"rationale"`
	}
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return Evaluation{}, fmt.Errorf("decode evaluation: %w", err)
	}
	if v.Approved == nil || v.Priority == nil || v.Rationale == nil || strings.TrimSpace(*v.Rationale) == "" {
		return Evaluation{}, errors.New("evaluation missing approved, priority or rationale")
	}
	return Evaluation{
		Approved:  *v.Approved,
		Priority:  clampInt(int(math.Round(*v.Priority)), 1, 10),
		Rationale: strings.TrimSpace(*v.Rationale),
	}, nil
}

func evaluateByRules(in EvaluationInput) Evaluation {
	approved := true
	priority := 5
	var reasons []string

	if utf8.RuneCountInString(strings.TrimSpace(in.Description)) < MinDescriptionLength {
		approved = false
		reasons = append(reasons, "The project description is too thin")
	}
	if len(in.Goals) > 0 {
		priority++
		reasons = append(reasons, "Goals are clearly defined")
	} else {
		reasons = append(reasons, "Goals are vague and need to be clarified")
	}
	if in.Market != nil && in.Market.TargetAudience != "" {
		priority++
		reasons = append(reasons, "Target audience is defined")
	}
	if in.Market != nil && in.Market.MarketSize != "" {
		priority++
		reasons = append(reasons, "Market sizing has been done")
	}
	priority = clampInt(priority, 1, 10)

	var rationale string
	if approved {
		rationale = fmt.Sprintf("Project approved. Priority: %d/10. %s. It fits our strategic goals, we can move ahead.",
			priority, strings.Join(reasons, ". "))
	} else {
		rationale = fmt.Sprintf("Project not approved. %s. These points need to be clarified first.",
			strings.Join(reasons, ". "))
	}
	return Evaluation{Approved: approved, Priority: priority, Rationale: rationale}
}

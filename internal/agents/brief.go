package agents

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

const (
	ScopeSmall  = "small"
	ScopeMedium = "medium"
	ScopeLarge  = "large"
)

type ClientInfo struct {
	Name         string `json:"name,omitempty"`
	Email        string `json:"email,omitempty"`
	Company      string `json:"company,omitempty"`
	Requirements string `json:"requirements,omitempty"`
}

type BriefInput struct {
	RawBrief string      `json:"rawBrief"`
	Client   *ClientInfo `json:"clientInfo,omitempty"`
}

type Brief struct {
	RefinedDescription string   `json:"refinedDescription"`
	Goals              []string `json:"goals"`
	Requirements       []string `json:"requirements"`
	EstimatedScope     string   `json:"estimatedScope"`
}

// BriefRefiner turns a raw client brief into a description, goals and requirements.
type BriefRefiner struct {
	Base
}

func (u BriefRefiner) Refine(ctx context.Context, in BriefInput) (Brief, error) {
	return decide(ctx, u.Base, decision[Brief]{
		unit:        "brief",
		start:       "refining client brief",
		temperature: 0.6,
		prompt:      func() string { return briefPrompt(in) },
		parse:       func(raw string) (Brief, error) { return parseBrief(raw, in) },
		fallback:    func() Brief { return refineByRules(in) },
	}), nil
}

func briefPrompt(in BriefInput) string {
	client, _ := json.Marshal(in.Client)
	return fmt.Sprintf(`As a client relations manager, analyse and clean up this client brief.

Client: %s
Raw brief: %s

Produce a clear project description, a list of goals, a list of requirements and an
estimated scope (small, medium or large).
Respond with JSON only: {"refinedDescription": "...", "goals": [...], "requirements": [...], "estimatedScope": "small|medium|large"}`,
		client, in.RawBrief)
}

func parseBrief(raw string, in BriefInput) (Brief, error) {
	var v struct {
		RefinedDescription *string  `json:"refinedDescription"`
		Goals              []string `json:"goals"`
		Requirements       []string `json:"requirements"`
		EstimatedScope     string   `json:"estimatedScope"`
	}
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return Brief{}, fmt.Errorf("decode brief: %w", err)
	}
	if v.RefinedDescription == nil || strings.TrimSpace(*v.RefinedDescription) == "" || v.Goals == nil {
		return Brief{}, errors.New("brief missing refinedDescription or goals")
	}
	out := Brief{
		RefinedDescription: strings.TrimSpace(*v.RefinedDescription),
		Goals:              v.Goals,
		Requirements:       v.Requirements,
		EstimatedScope:     strings.ToLower(strings.TrimSpace(v.EstimatedScope)),
	}
	if out.Requirements == nil {
		out.Requirements = []string{}
	}
	switch out.EstimatedScope {
	case ScopeSmall, ScopeMedium, ScopeLarge:
	default:
		out.EstimatedScope = estimateScope(in.RawBrief)
	}
	return out, nil
}

func refineByRules(in BriefInput) Brief {
	description := strings.TrimSpace(in.RawBrief)
	if in.Client != nil && in.Client.Name != "" {
		who := in.Client.Name
		if in.Client.Company != "" {
			who = fmt.Sprintf("%s (%s)", who, in.Client.Company)
		}
		description = fmt.Sprintf("For %s: %s", who, description)
	}
	if in.Client != nil && strings.TrimSpace(in.Client.Requirements) != "" {
		description = fmt.Sprintf("%s Client requirements: %s", description, strings.TrimSpace(in.Client.Requirements))
	}

	lower := strings.ToLower(in.RawBrief)
	if in.Client != nil {
		lower += " " + strings.ToLower(in.Client.Requirements)
	}
	var goals []string
	if containsAny(lower, "mvp", "minimum") {
		goals = append(goals, "Build and launch an MVP")
	}
	if containsAny(lower, "user", "kullanıcı") {
		goals = append(goals, "Optimize the user experience")
	}
	if containsAny(lower, "revenue", "sales", "monetiz", "gelir", "satış") {
		goals = append(goals, "Grow revenue")
	}
	if len(goals) == 0 {
		goals = append(goals, "Deliver the project goals")
	}

	var requirements []string
	if containsAny(lower, "mobile", "app", "mobil") {
		requirements = append(requirements, "Mobile application development")
	}
	if containsAny(lower, "web", "website") {
		requirements = append(requirements, "Web platform development")
	}
	if containsAny(lower, "backend", "api") {
		requirements = append(requirements, "Backend API development")
	}
	if containsAny(lower, "design", "ui", "tasarım") {
		requirements = append(requirements, "UI/UX design")
	}
	if len(requirements) == 0 {
		requirements = append(requirements, "Requirements to be analysed")
	}

	return Brief{
		RefinedDescription: description,
		Goals:              goals,
		Requirements:       requirements,
		EstimatedScope:     estimateScope(in.RawBrief),
	}
}

func estimateScope(brief string) string {
	words := len(strings.Fields(brief))
	lower := strings.ToLower(brief)
	switch {
	case words < 50:
		return ScopeSmall
	case words > 200 || containsAny(lower, "comprehensive", "kapsamlı"):
		return ScopeLarge
	default:
		return ScopeMedium
	}
}

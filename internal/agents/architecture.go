package agents

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

type ArchitectureInput struct {
	ProjectID string    `json:"projectId"`
	Features  []Feature `json:"features"`
}

// Architecture is advisory output; nothing downstream depends on it.
type Architecture struct {
	Architecture    string   `json:"architecture"`
	TechStack       []string `json:"techStack"`
	Constraints     []string `json:"constraints"`
	Recommendations string   `json:"recommendations"`
}

type ArchitectureAdvisor struct {
	Base
}

func (u ArchitectureAdvisor) Advise(ctx context.Context, in ArchitectureInput) (Architecture, error) {
	return decide(ctx, u.Base, decision[Architecture]{
		unit:        "architecture",
		start:       fmt.Sprintf("suggesting architecture for project %s", in.ProjectID),
		temperature: 0.6,
		prompt:      func() string { return architecturePrompt(in) },
		parse:       parseArchitecture,
		fallback:    func() Architecture { return adviseByRules(in) },
	}), nil
}

func architecturePrompt(in ArchitectureInput) string {
	var lines []string
	for _, f := range in.Features {
		lines = append(lines, fmt.Sprintf("%s: %s", f.Name, f.Description))
	}
	return fmt.Sprintf(`As a CTO, propose a technical architecture for this project.

Project: %s
Features: %s

Cover the architectural approach (monolith, microservices, serverless...), the tech stack,
technical constraints to watch and general recommendations.
Respond with JSON only: {"architecture": "...", "techStack": [...], "constraints": [...], "recommendations": "..."}`,
		in.ProjectID, strings.Join(lines, "; "))
}

func parseArchitecture(raw string) (Architecture, error) {
	var v Architecture
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return Architecture{}, fmt.Errorf("decode architecture: %w", err)
	}
	if strings.TrimSpace(v.Architecture) == "" || len(v.TechStack) == 0 {
		return Architecture{}, errors.New("architecture missing approach or tech stack")
	}
	if v.Constraints == nil {
		v.Constraints = []string{}
	}
	return v, nil
}

func adviseByRules(in ArchitectureInput) Architecture {
	count := len(in.Features)
	var realtime, payments, mobile bool
	for _, f := range in.Features {
		text := strings.ToLower(f.Name + " " + f.Description)
		realtime = realtime || containsAny(text, "message", "messaging", "chat", "realtime", "real-time", "mesaj", "sohbet")
		payments = payments || containsAny(text, "payment", "payout", "checkout", "ödeme")
		mobile = mobile || containsAny(text, "mobile", "mobil")
	}

	architecture := "Modular monolith"
	switch {
	case count > 10:
		architecture = "Microservices"
	case realtime:
		architecture = "Event-driven services"
	}

	stack := []string{"TypeScript", "Node.js", "PostgreSQL"}
	if realtime {
		stack = append(stack, "WebSocket", "Redis")
	}
	if mobile {
		stack = append(stack, "React Native")
	} else {
		stack = append(stack, "React")
	}
	if payments {
		stack = append(stack, "Stripe API")
	}

	constraints := []string{}
	if payments {
		constraints = append(constraints, "Payment security is critical; PCI-DSS compliance required")
	}
	if realtime {
		constraints = append(constraints, "Low latency required; WebSocket connection management matters")
	}
	if count > 5 {
		constraints = append(constraints, "Plan for scalability; a caching strategy is needed")
	}

	notes := "Following standard best practices is enough."
	if len(constraints) > 0 {
		notes = "Watch out for: " + strings.Join(constraints, ". ") + "."
	}
	return Architecture{
		Architecture:    architecture,
		TechStack:       stack,
		Constraints:     constraints,
		Recommendations: fmt.Sprintf("The project has %d features. A %s approach fits. %s", count, strings.ToLower(architecture), notes),
	}
}

package agents

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
)

// DefaultFeatureHours is used when a feature carries no estimate.
const DefaultFeatureHours = 16.0

// Feature is a planned capability. Priority runs from 1 (highest) to 5.
type Feature struct {
	Name           string  `json:"name"`
	Description    string  `json:"description"`
	Priority       int     `json:"priority"`
	EstimatedHours float64 `json:"estimatedHours,omitempty"`
}

type PlanInput struct {
	ProjectID   string   `json:"projectId"`
	Description string   `json:"description"`
	Goals       []string `json:"goals"`
}

// FeaturePlan is never returned with an empty MVP set while Features is non-empty.
type FeaturePlan struct {
	Features    []Feature `json:"features"`
	MVPFeatures []Feature `json:"mvpFeatures"`
}

// FeaturePlanner breaks a project description into features and picks the MVP.
type FeaturePlanner struct {
	Base
}

func (u FeaturePlanner) Plan(ctx context.Context, in PlanInput) (FeaturePlan, error) {
	return decide(ctx, u.Base, decision[FeaturePlan]{
		unit:        "features",
		start:       fmt.Sprintf("planning features for project %s", in.ProjectID),
		temperature: 0.7,
		prompt:      func() string { return featuresPrompt(in) },
		parse:       parseFeatures,
		fallback:    func() FeaturePlan { return planByRules(in) },
	}), nil
}

func featuresPrompt(in PlanInput) string {
	return fmt.Sprintf(`As a product manager, list the features for this project.

Description: %s
Goals: %s

For each feature give a name, a description, a priority from 1 (highest) to 5 and an
estimate in hours. Priority 1 and 2 features make up the MVP.
Respond with a JSON array only: [{"name": "...", "description": "...", "priority": 1-5, "estimatedHours": 16}]`,
		in.Description, orNone(in.Goals))
}

func parseFeatures(raw string) (FeaturePlan, error) {
	var items []struct {
		Name           *string  `json:"name"`
		Description    string   `json:"description"`
		Priority       *float64 `json:"priority"`
		EstimatedHours float64  `json:"estimatedHours"`
	}
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return FeaturePlan{}, fmt.Errorf("decode features: %w", err)
	}
	if len(items) == 0 {
		return FeaturePlan{}, errors.New("no features generated")
	}
	features := make([]Feature, 0, len(items))
	for i, it := range items {
		if it.Name == nil || strings.TrimSpace(*it.Name) == "" || it.Priority == nil {
			return FeaturePlan{}, fmt.Errorf("feature %d missing name or priority", i)
		}
		features = append(features, Feature{
			Name:           strings.TrimSpace(*it.Name),
			Description:    it.Description,
			Priority:       clampInt(int(math.Round(*it.Priority)), 1, 5),
			EstimatedHours: math.Max(0, it.EstimatedHours),
		})
	}
	return FeaturePlan{Features: features, MVPFeatures: selectMVP(features, 3)}, nil
}

// selectMVP keeps priority 1-2 features, or the first n when none qualify.
func selectMVP(features []Feature, n int) []Feature {
	var mvp []Feature
	for _, f := range features {
		if f.Priority <= 2 {
			mvp = append(mvp, f)
		}
	}
	if len(mvp) > 0 {
		return mvp
	}
	if n > len(features) {
		n = len(features)
	}
	return append([]Feature(nil), features[:n]...)
}

func planByRules(in PlanInput) FeaturePlan {
	features := []Feature{
		{Name: "User Authentication", Description: "Sign up and sign in with email and password", Priority: 1, EstimatedHours: 16},
		{Name: "Main Dashboard", Description: "The user's home view and navigation", Priority: 1, EstimatedHours: 24},
		{Name: "Profile Management", Description: "View and edit user profile details", Priority: 2, EstimatedHours: 12},
		{Name: "Settings", Description: "Application settings and preferences", Priority: 3, EstimatedHours: 8},
	}
	lower := strings.ToLower(in.Description)
	if containsAny(lower, "social", "share", "sharing", "sosyal", "paylaş") {
		features = append(features, Feature{Name: "Content Sharing", Description: "Users share and browse content", Priority: 1, EstimatedHours: 32})
	}
	if containsAny(lower, "message", "messaging", "chat", "mesaj", "sohbet") {
		features = append(features, Feature{Name: "Messaging", Description: "Real-time chat between users", Priority: 2, EstimatedHours: 40})
	}
	if containsAny(lower, "payment", "checkout", "purchase", "ödeme") {
		features = append(features, Feature{Name: "Payments", Description: "Secure payment integration", Priority: 1, EstimatedHours: 48})
	}
	return FeaturePlan{Features: features, MVPFeatures: selectMVP(features, 2)}
}

package agents

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	"studioflow/internal/domain"
)

// ReleaseThreshold is the lowest quality score that can ship.
const ReleaseThreshold = 70

type QualityInput struct {
	Project domain.Project `json:"project"`
	Tasks   []domain.Task  `json:"tasks"`
}

type QualityReport struct {
	Assessment      string   `json:"assessment"`
	TestSuggestions []string `json:"testSuggestions"`
	QualityScore    int      `json:"qualityScore"`
	ReadyForRelease bool     `json:"readyForRelease"`
}

// QualityAssessor scores a project's task board. The score and the release
// decision are always computed from the board; the generator may only reword
// the assessment and suggestions.
type QualityAssessor struct {
	Base
}

type qualityCounts struct {
	total, done, inProgress, blocked, review int
}

func countTasks(tasks []domain.Task) qualityCounts {
	c := qualityCounts{total: len(tasks)}
	for _, t := range tasks {
		switch t.Status {
		case domain.TaskDone:
			c.done++
		case domain.TaskInProgress:
			c.inProgress++
		case domain.TaskBlocked:
			c.blocked++
		case domain.TaskReview:
			c.review++
		}
	}
	return c
}

func (u QualityAssessor) Assess(ctx context.Context, in QualityInput) (QualityReport, error) {
	c := countTasks(in.Tasks)
	if c.total == 0 {
		u.logf("quality: project %s has no tasks", in.Project.ID)
		return QualityReport{
			Assessment:      "No tasks yet, quality cannot be assessed.",
			TestSuggestions: []string{},
		}, nil
	}
	rules := assessByRules(c)
	prose := decide(ctx, u.Base, decision[QualityReport]{
		unit:        "quality",
		start:       fmt.Sprintf("assessing quality for project %s", in.Project.ID),
		temperature: 0.5,
		prompt:      func() string { return qualityPrompt(in.Project, c, rules) },
		parse:       parseQualityProse,
		fallback:    func() QualityReport { return rules },
	})
	rules.Assessment = prose.Assessment
	rules.TestSuggestions = prose.TestSuggestions
	return rules, nil
}

func qualityPrompt(p domain.Project, c qualityCounts, r QualityReport) string {
	return fmt.Sprintf(`As a QA lead, write a short quality assessment for a release candidate.

Project: %s
Tasks: %d total, %d done, %d in review, %d in progress, %d blocked
Quality score: %d/100
Ready for release: %t

Respond with JSON only: {"assessment": "...", "testSuggestions": ["..."]}`,
		p.Name, c.total, c.done, c.review, c.inProgress, c.blocked, r.QualityScore, r.ReadyForRelease)
}

func parseQualityProse(raw string) (QualityReport, error) {
	var v struct {
		Assessment      *string  `json:"assessment"`
		TestSuggestions []string `json:"testSuggestions"`
	}
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return QualityReport{}, fmt.Errorf("decode assessment: %w", err)
	}
	if v.Assessment == nil || strings.TrimSpace(*v.Assessment) == "" {
		return QualityReport{}, errors.New("assessment missing")
	}
	if v.TestSuggestions == nil {
		v.TestSuggestions = []string{}
	}
	return QualityReport{Assessment: strings.TrimSpace(*v.Assessment), TestSuggestions: v.TestSuggestions}, nil
}

func assessByRules(c qualityCounts) QualityReport {
	completion := float64(c.done) / float64(c.total) * 100
	blockedRate := float64(c.blocked) / float64(c.total) * 100
	score := clampFloat(completion-blockedRate*10, 0, 100)

	suggestions := []string{}
	if c.done > 0 {
		suggestions = append(suggestions, "Run regression tests for the completed tasks")
	}
	if c.review > 0 {
		suggestions = append(suggestions, fmt.Sprintf("%d tasks are in review; finish the code reviews", c.review))
	}
	if c.blocked > 0 {
		suggestions = append(suggestions, fmt.Sprintf("%d tasks are blocked and need to be unblocked", c.blocked))
	}
	if float64(c.inProgress) > float64(c.total)*0.5 {
		suggestions = append(suggestions, "Too many tasks are in progress at once; the team may be losing focus")
	}

	var assessment string
	switch {
	case score >= 90:
		assessment = fmt.Sprintf("Quality: excellent. %.0f%% of tasks done, nothing blocked. Looks ready for release.", completion)
	case score >= ReleaseThreshold:
		assessment = fmt.Sprintf("Quality: good. %.0f%% of tasks done. A release is possible after small fixes.", completion)
		if c.blocked > 0 {
			assessment = fmt.Sprintf("Quality: good. %.0f%% of tasks done. %d tasks are blocked, a release is possible after small fixes.", completion, c.blocked)
		}
	case score >= 50:
		assessment = fmt.Sprintf("Quality: fair. %.0f%% of tasks done. %s, evaluate carefully before releasing.", completion, gaps(c.blocked, "Gaps remain"))
	default:
		assessment = fmt.Sprintf("Quality: low. %.0f%% of tasks done. %s, a release is not recommended.", completion, gaps(c.blocked, "Significant gaps remain"))
	}

	return QualityReport{
		Assessment:      assessment,
		TestSuggestions: suggestions,
		QualityScore:    int(math.Round(score)),
		ReadyForRelease: score >= ReleaseThreshold && c.blocked == 0,
	}
}

func gaps(blocked int, otherwise string) string {
	if blocked > 0 {
		return fmt.Sprintf("%d tasks are blocked", blocked)
	}
	return otherwise
}

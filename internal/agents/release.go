package agents

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"studioflow/internal/domain"
)

type ReleaseInput struct {
	Project domain.Project `json:"project"`
	Version string         `json:"version"`
	Tasks   []domain.Task  `json:"tasks"`
	// Date is printed in the notes; zero means today.
	Date time.Time `json:"date"`
}

type ReleaseNotes struct {
	ReleaseNotes string   `json:"releaseNotes"`
	Version      string   `json:"version"`
	Changelog    []string `json:"changelog"`
}

// ReleaseComposer writes Markdown release notes from the project's task board.
type ReleaseComposer struct {
	Base
}

func (u ReleaseComposer) Compose(ctx context.Context, in ReleaseInput) (ReleaseNotes, error) {
	var done, inProgress []domain.Task
	for _, t := range in.Tasks {
		switch t.Status {
		case domain.TaskDone:
			done = append(done, t)
		case domain.TaskInProgress:
			inProgress = append(inProgress, t)
		}
	}
	changelog := make([]string, 0, len(done))
	for _, t := range done {
		changelog = append(changelog, t.Title)
	}
	template := func() ReleaseNotes {
		return ReleaseNotes{
			ReleaseNotes: releaseTemplate(in, done, inProgress),
			Version:      in.Version,
			Changelog:    changelog,
		}
	}

	b := u.Base
	if len(done) == 0 {
		// Nothing shipped; there is nothing for the generator to write about.
		b.Generator = nil
	}
	return decide(ctx, b, decision[ReleaseNotes]{
		unit:        "release",
		start:       fmt.Sprintf("writing release notes for %s v%s", in.Project.Name, in.Version),
		temperature: 0.7,
		prompt:      func() string { return releasePrompt(in, changelog) },
		extract:     strings.TrimSpace,
		parse: func(raw string) (ReleaseNotes, error) {
			if !strings.Contains(raw, in.Version) {
				return ReleaseNotes{}, errors.New("release notes do not mention the version")
			}
			return ReleaseNotes{ReleaseNotes: raw, Version: in.Version, Changelog: changelog}, nil
		},
		fallback: template,
	}), nil
}

func releasePrompt(in ReleaseInput, changelog []string) string {
	var lines []string
	for _, c := range changelog {
		lines = append(lines, "- "+c)
	}
	return fmt.Sprintf(`As a release manager, write release notes for this release.

Project: %s
Version: %s
Completed tasks:
%s

Use a friendly, professional tone. Write Markdown with these sections: a title with the version,
new features, improvements and fixes (if any).`,
		in.Project.Name, in.Version, strings.Join(lines, "\n"))
}

func releaseTemplate(in ReleaseInput, done, inProgress []domain.Task) string {
	date := in.Date
	if date.IsZero() {
		date = time.Now()
	}
	var b strings.Builder
	fmt.Fprintf(&b, "# %s v%s\n\n", in.Project.Name, in.Version)
	fmt.Fprintf(&b, "**Release date:** %s\n\n", date.Format("2006-01-02"))

	if len(done) > 0 {
		b.WriteString("## 🎉 New features\n\n")
		for i, t := range done {
			fmt.Fprintf(&b, "%d. %s\n", i+1, t.Title)
			if t.Description != "" {
				fmt.Fprintf(&b, "   - %s\n", t.Description)
			}
		}
		b.WriteString("\n")
	}

	if len(inProgress) > 0 {
		b.WriteString("## 🚧 In progress\n\n")
		b.WriteString("These are coming soon:\n\n")
		for i, t := range inProgress {
			if i == 5 {
				break
			}
			fmt.Fprintf(&b, "- %s\n", t.Title)
		}
		b.WriteString("\n")
	}

	b.WriteString("## 📝 Notes\n\n")
	fmt.Fprintf(&b, "This release brings %d new features and improvements. We'd love to hear your feedback!\n", len(done))
	return b.String()
}

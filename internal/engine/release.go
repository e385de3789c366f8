package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"studioflow/internal/agents"
	"studioflow/internal/domain"
	"studioflow/internal/repo"
)

const nameRelease = "ReleasePreparation"

type ReleaseInput struct {
	ProjectID string `json:"projectId"`
	Version   string `json:"version"`
}

type ReleaseResult struct {
	RunID             string               `json:"runId"`
	ProjectID         string               `json:"projectId"`
	Version           string               `json:"version"`
	Quality           agents.QualityReport `json:"quality"`
	QualityAssessment string               `json:"qualityAssessment"`
	ReleaseNotes      string               `json:"releaseNotes"`
	Changelog         []string             `json:"changelog"`
}

// PrepareRelease assesses a project's board and writes notes for version.
func (e Engine) PrepareRelease(ctx context.Context, in ReleaseInput) (ReleaseResult, error) {
	if strings.TrimSpace(in.ProjectID) == "" || strings.TrimSpace(in.Version) == "" {
		return ReleaseResult{}, errors.New("project and version are required")
	}
	out := ReleaseResult{ProjectID: in.ProjectID, Version: in.Version}
	run, err := e.saga(ctx, domain.RunReleasePrep, nameRelease, in, func(ctx context.Context, run domain.WorkflowRun) (string, error) {
		project, err := e.Repo.GetProject(ctx, in.ProjectID)
		if errors.Is(err, repo.ErrNotFound) {
			return "", fmt.Errorf("%w: %s", ErrProjectNotFound, in.ProjectID)
		}
		if err != nil {
			return "", err
		}
		tasks, err := e.Repo.TasksByProject(ctx, project.ID)
		if err != nil {
			return "", fmt.Errorf("project tasks: %w", err)
		}

		quality, err := e.Units.Quality.Assess(ctx, agents.QualityInput{Project: project, Tasks: tasks})
		if err != nil {
			return "", fmt.Errorf("quality assessment: %w", err)
		}
		out.Quality = quality
		out.QualityAssessment = quality.Assessment

		notes, err := e.Units.Release.Compose(ctx, agents.ReleaseInput{
			Project: project,
			Version: in.Version,
			Tasks:   tasks,
			Date:    e.now(),
		})
		if err != nil {
			return "", fmt.Errorf("release notes: %w", err)
		}
		out.ReleaseNotes = notes.ReleaseNotes
		out.Changelog = notes.Changelog

		ready := "not ready"
		if quality.ReadyForRelease {
			ready = "ready"
		}
		return fmt.Sprintf("Release preparation completed: %s v%s. Quality %d/100, %s for release.",
			project.Name, in.Version, quality.QualityScore, ready), nil
	})
	out.RunID = run.ID
	return out, err
}

package agents

import (
	"fmt"
	"strings"
	"time"

	"studioflow/internal/domain"
)

// Preview sizes of the daily summary buckets.
const (
	CompletedPreview = 10
	BucketPreview    = 5
)

// DailyStats is one day of team activity.
type DailyStats struct {
	Date           time.Time     `json:"date"`
	Completed      []domain.Task `json:"completed"`
	Started        []domain.Task `json:"started"`
	Pending        []domain.Task `json:"pending"`
	Blocked        []domain.Task `json:"blocked"`
	InProgress     []domain.Task `json:"inProgress"`
	Standups       int           `json:"standups"`
	Submitters     int           `json:"submitters"`
	ActiveProjects int           `json:"activeProjects"`
}

// FormatDailySummary renders s as chat Markdown. Completed tasks show up to
// CompletedPreview entries and every other bucket BucketPreview, followed by
// an overflow line when truncated.
func FormatDailySummary(s DailyStats) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📊 *Daily Summary - %s*\n\n", s.Date.Format("January 2, 2006"))

	fmt.Fprintf(&b, "✅ *Completed tasks* (%d)\n", len(s.Completed))
	writeBucket(&b, s.Completed, CompletedPreview, "No tasks completed today.")
	b.WriteString("\n")

	if len(s.Started) > 0 {
		fmt.Fprintf(&b, "🚀 *Started tasks* (%d)\n", len(s.Started))
		writeBucket(&b, s.Started, BucketPreview, "")
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "📋 *Pending tasks* (%d)\n", len(s.Pending))
	writeBucket(&b, s.Pending, BucketPreview, "No pending tasks.")
	b.WriteString("\n")

	if len(s.Blocked) > 0 {
		fmt.Fprintf(&b, "🚫 *Blocked tasks* (%d)\n", len(s.Blocked))
		writeBucket(&b, s.Blocked, BucketPreview, "")
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "⚙️ *In progress* (%d)\n", len(s.InProgress))
	writeBucket(&b, s.InProgress, BucketPreview, "")
	b.WriteString("\n")

	fmt.Fprintf(&b, "👥 *Standups* (%d)\n", s.Standups)
	if s.Standups > 0 {
		fmt.Fprintf(&b, "%d people submitted their standup.\n", s.Submitters)
	} else {
		b.WriteString("No standups submitted today.\n")
	}
	b.WriteString("\n")

	fmt.Fprintf(&b, "📁 *Active projects*: %d\n", s.ActiveProjects)
	return b.String()
}

func writeBucket(b *strings.Builder, tasks []domain.Task, limit int, empty string) {
	if len(tasks) == 0 {
		if empty != "" {
			b.WriteString(empty + "\n")
		}
		return
	}
	for i, t := range tasks {
		if i == limit {
			break
		}
		who := t.AssigneeName
		if who == "" {
			who = "Unassigned"
		}
		fmt.Fprintf(b, "• %s - %s\n", t.Title, who)
	}
	if len(tasks) > limit {
		fmt.Fprintf(b, "…and %d more\n", len(tasks)-limit)
	}
}

// PlainDailySummary is the one-line form of s used for chat delivery and run summaries.
func PlainDailySummary(s DailyStats) string {
	return fmt.Sprintf("Daily summary: %d tasks completed, %d pending, %d blocked, %d in progress. %d standups collected.",
		len(s.Completed), len(s.Pending), len(s.Blocked), len(s.InProgress), s.Standups)
}

package copilot

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

type Task struct {
	ID          string `json:"id,omitempty"`
	Title       string `json:"title"`
	Status      string `json:"status,omitempty"`
	CompletedAt string `json:"completedAt,omitempty"`
}

type Blocker struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

type Meeting struct {
	Title       string `json:"title"`
	ScheduledAt string `json:"scheduledAt,omitempty"`
}

type Activity struct {
	Title string `json:"title"`
	At    string `json:"at,omitempty"`
}

// TaskContext is a read-only snapshot of the task board, replaced
// wholesale on update, never merged.
type TaskContext struct {
	ActiveTasks      []Task     `json:"activeTasks"`
	CompletedTasks   []Task     `json:"completedTasks"`
	Blockers         []Blocker  `json:"blockers"`
	UpcomingMeetings []Meeting  `json:"upcomingMeetings"`
	RecentActivity   []Activity `json:"recentActivity"`
}

// LoadTaskContext reads a task-board snapshot from a JSON file.
func LoadTaskContext(path string) (TaskContext, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return TaskContext{}, fmt.Errorf("read task context: %w", err)
	}

	var ctx TaskContext
	if err := json.Unmarshal(data, &ctx); err != nil {
		return TaskContext{}, fmt.Errorf("parse task context: %w", err)
	}

	return ctx, nil
}

// Summary renders the snapshot for the prompt, capped per category to
// keep the token budget bounded: at most 5 active tasks, 3 completed,
// all blockers, 3 upcoming meetings.
func (c TaskContext) Summary() string {
	var sb strings.Builder

	if len(c.ActiveTasks) > 0 {
		fmt.Fprintf(&sb, "**Active Tasks (%d):**\n", len(c.ActiveTasks))
		for _, t := range cap5(c.ActiveTasks) {
			fmt.Fprintf(&sb, "- %s (%s)\n", t.Title, t.Status)
		}
		sb.WriteString("\n")
	}

	if len(c.CompletedTasks) > 0 {
		fmt.Fprintf(&sb, "**Recently Completed (%d):**\n", len(c.CompletedTasks))
		for _, t := range capN(c.CompletedTasks, 3) {
			fmt.Fprintf(&sb, "- %s (completed %s)\n", t.Title, t.CompletedAt)
		}
		sb.WriteString("\n")
	}

	if len(c.Blockers) > 0 {
		fmt.Fprintf(&sb, "**Current Blockers (%d):**\n", len(c.Blockers))
		for _, b := range c.Blockers {
			fmt.Fprintf(&sb, "- %s: %s\n", b.Title, b.Description)
		}
		sb.WriteString("\n")
	}

	if len(c.UpcomingMeetings) > 0 {
		fmt.Fprintf(&sb, "**Upcoming Meetings (%d):**\n", len(c.UpcomingMeetings))
		for _, m := range capN(c.UpcomingMeetings, 3) {
			fmt.Fprintf(&sb, "- %s (%s)\n", m.Title, m.ScheduledAt)
		}
	}

	if sb.Len() == 0 {
		return "No specific task data available"
	}

	return sb.String()
}

func cap5(tasks []Task) []Task { return capN(tasks, 5) }

func capN[T any](s []T, n int) []T {
	if len(s) > n {
		return s[:n]
	}
	return s
}

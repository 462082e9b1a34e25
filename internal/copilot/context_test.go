package copilot

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSummaryCapsEachCategory(t *testing.T) {
	tc := TaskContext{
		ActiveTasks: []Task{
			{Title: "a1", Status: "todo"},
			{Title: "a2", Status: "todo"},
			{Title: "a3", Status: "in_progress"},
			{Title: "a4", Status: "in_progress"},
			{Title: "a5", Status: "review"},
			{Title: "a6", Status: "review"},
			{Title: "a7", Status: "todo"},
		},
		CompletedTasks: []Task{
			{Title: "c1", CompletedAt: "2026-08-25"},
			{Title: "c2", CompletedAt: "2026-08-26"},
			{Title: "c3", CompletedAt: "2026-08-27"},
			{Title: "c4", CompletedAt: "2026-08-28"},
		},
		Blockers: []Blocker{
			{Title: "b1", Description: "waiting on infra"},
			{Title: "b2", Description: "waiting on legal"},
			{Title: "b3", Description: "waiting on design"},
			{Title: "b4", Description: "waiting on vendor"},
		},
		UpcomingMeetings: []Meeting{
			{Title: "m1", ScheduledAt: "Mon 10:00"},
			{Title: "m2", ScheduledAt: "Tue 10:00"},
			{Title: "m3", ScheduledAt: "Wed 10:00"},
			{Title: "m4", ScheduledAt: "Thu 10:00"},
		},
	}

	s := tc.Summary()

	// headings announce the full count even when the listing is capped
	assert.Contains(t, s, "**Active Tasks (7):**")
	assert.Contains(t, s, "**Recently Completed (4):**")
	assert.Contains(t, s, "**Current Blockers (4):**")
	assert.Contains(t, s, "**Upcoming Meetings (4):**")

	assert.Contains(t, s, "- a5 (review)")
	assert.NotContains(t, s, "a6")
	assert.NotContains(t, s, "a7")

	assert.Contains(t, s, "- c3 (completed 2026-08-27)")
	assert.NotContains(t, s, "c4")

	// blockers are never capped
	assert.Contains(t, s, "- b4: waiting on vendor")

	assert.Contains(t, s, "- m3 (Wed 10:00)")
	assert.NotContains(t, s, "m4")
}

func TestSummaryOmitsEmptyCategories(t *testing.T) {
	tc := TaskContext{
		Blockers: []Blocker{{Title: "ci", Description: "runners down"}},
	}

	s := tc.Summary()

	assert.Contains(t, s, "**Current Blockers (1):**")
	assert.NotContains(t, s, "Active Tasks")
	assert.NotContains(t, s, "Recently Completed")
	assert.NotContains(t, s, "Upcoming Meetings")
}

func TestSummaryEmptyBoard(t *testing.T) {
	assert.Equal(t, "No specific task data available", TaskContext{}.Summary())
}

func TestLoadTaskContext(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tasks.json")
	data := `{
		"activeTasks": [{"id": "T-1", "title": "Ship overlay", "status": "in_progress"}],
		"blockers": [{"title": "API quota", "description": "raised with provider"}],
		"upcomingMeetings": [{"title": "Standup", "scheduledAt": "09:30"}]
	}`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	tc, err := LoadTaskContext(path)
	require.NoError(t, err)

	require.Len(t, tc.ActiveTasks, 1)
	assert.Equal(t, "Ship overlay", tc.ActiveTasks[0].Title)
	require.Len(t, tc.Blockers, 1)
	assert.Equal(t, "API quota", tc.Blockers[0].Title)
	require.Len(t, tc.UpcomingMeetings, 1)
	assert.Empty(t, tc.CompletedTasks)
}

func TestLoadTaskContextErrors(t *testing.T) {
	_, err := LoadTaskContext(filepath.Join(t.TempDir(), "missing.json"))
	assert.ErrorContains(t, err, "read task context")

	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	_, err = LoadTaskContext(path)
	assert.ErrorContains(t, err, "parse task context")
}

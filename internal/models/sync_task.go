package models

import "time"

type SyncStatus string

const (
	SyncStatusPending    SyncStatus = "pending"
	SyncStatusInProgress SyncStatus = "in_progress"
	SyncStatusFailed     SyncStatus = "failed"
)

// UploadSummary is the body sent to the remote upload endpoint.
type UploadSummary struct {
	ID          string     `json:"id"`
	Solved      bool       `json:"solved"`
	Mistakes    int        `json:"mistakes"`
	TimeSeconds int        `json:"time_seconds"`
	Score       int        `json:"score"`
	Difficulty  Difficulty `json:"difficulty"`
	IsDaily     bool       `json:"is_daily"`
	DailyDate   string     `json:"daily_date,omitempty"`
}

// NewUploadSummary captures a terminal puzzle for upload.
func NewUploadSummary(p *Puzzle) UploadSummary {
	return UploadSummary{
		ID:          p.ID,
		Solved:      p.HasWon,
		Mistakes:    p.Mistakes,
		TimeSeconds: p.TimeTaken,
		Score:       p.Score,
		Difficulty:  p.Difficulty,
		IsDaily:     p.IsDaily,
		DailyDate:   p.DailyDate,
	}
}

// SyncTask is a completed puzzle waiting for upload. PuzzleID is the
// idempotency key: at most one task exists per puzzle.
type SyncTask struct {
	PuzzleID      string        `json:"puzzle_id"`
	Summary       UploadSummary `json:"summary"`
	Status        SyncStatus    `json:"status"`
	Attempts      int           `json:"attempts"`
	MaxAttempts   int           `json:"max_attempts"`
	NextAttemptAt time.Time     `json:"next_attempt_at"`
	LastError     string        `json:"last_error,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

// IsDue reports whether the task may be attempted at now.
func (t *SyncTask) IsDue(now time.Time) bool {
	return t.Status == SyncStatusPending && !t.NextAttemptAt.After(now)
}

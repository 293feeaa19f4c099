package controllers

import (
	"context"

	apperr "cryptogram/internal/errors"
	"cryptogram/internal/models"
	"cryptogram/internal/providers"
	"cryptogram/internal/services"
	"cryptogram/internal/syncer"
)

// --- local mocks (scoped to controller tests) ---

type mockLogger struct{}

func (m *mockLogger) Errorf(_ providers.TypeEnum, _ string, _ ...interface{}) {}
func (m *mockLogger) Warnf(_ providers.TypeEnum, _ string, _ ...interface{})  {}
func (m *mockLogger) Debugf(_ providers.TypeEnum, _ string, _ ...interface{}) {}
func (m *mockLogger) Infof(_ providers.TypeEnum, _ string, _ ...interface{})  {}
func (m *mockLogger) Fatalf(_ providers.TypeEnum, _ string, _ ...interface{}) {}
func (m *mockLogger) Close()                                                  {}

// mockSession records the last call and answers with state or err.
type mockSession struct {
	state      *services.SessionState
	err        error
	inProgress *models.Puzzle
	stats      *models.UserStats
	sync       syncer.Status
	syncErr    error
	count      int

	lastCall       string
	lastLetter     rune
	lastArg        string
	lastDailyCheck bool
}

func (m *mockSession) result(call string) (*services.SessionState, error) {
	m.lastCall = call
	if m.err != nil {
		return nil, m.err
	}
	return m.state, nil
}

func (m *mockSession) CheckForInProgress(_ context.Context, isDaily bool) (*models.Puzzle, error) {
	m.lastCall, m.lastDailyCheck = "in-progress", isDaily
	return m.inProgress, m.err
}
func (m *mockSession) NewCustomGame(_ context.Context, difficulty string) (*services.SessionState, error) {
	m.lastArg = difficulty
	return m.result("custom")
}
func (m *mockSession) NewDailyGame(_ context.Context, date string) (*services.SessionState, error) {
	m.lastArg = date
	return m.result("daily")
}
func (m *mockSession) ResumeGame(_ context.Context, id string) (*services.SessionState, error) {
	m.lastArg = id
	return m.result("resume")
}
func (m *mockSession) SelectLetter(_ context.Context, letter rune) (*services.SessionState, error) {
	m.lastLetter = letter
	return m.result("select")
}
func (m *mockSession) ApplyGuess(_ context.Context, letter rune) (*services.SessionState, error) {
	m.lastLetter = letter
	return m.result("guess")
}
func (m *mockSession) ApplyHint(context.Context) (*services.SessionState, error) {
	return m.result("hint")
}
func (m *mockSession) EnableInfiniteMode(context.Context) (*services.SessionState, error) {
	return m.result("infinite")
}
func (m *mockSession) Reset(context.Context) (*services.SessionState, error) {
	return m.result("reset")
}
func (m *mockSession) FinalizeIfTerminal(context.Context) (*services.SessionState, error) {
	return m.result("finalize")
}
func (m *mockSession) CurrentState() (*services.SessionState, error) {
	return m.result("state")
}
func (m *mockSession) CleanupDuplicates(context.Context) (int, error) {
	m.lastCall = "dedupe"
	return m.count, m.err
}
func (m *mockSession) Stats(context.Context) (*models.UserStats, error) {
	m.lastCall = "stats"
	return m.stats, m.err
}
func (m *mockSession) SyncStatus(context.Context) (syncer.Status, error) {
	m.lastCall = "sync"
	return m.sync, m.syncErr
}
func (m *mockSession) RetrySync(context.Context) (int, error) {
	m.lastCall = "retry"
	return m.count, m.err
}
func (m *mockSession) Close() {}

var errNoPuzzle = apperr.New(apperr.ErrInvalidState, "no active puzzle")

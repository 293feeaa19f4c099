package testutil

import (
	"sync"
	"time"

	"cryptogram/internal/providers"
)

// MockLogger implements providers.Logger and records calls.
type MockLogger struct {
	mu   sync.Mutex
	Logs []LogEntry
}

type LogEntry struct {
	Level  string
	Type   providers.TypeEnum
	Format string
	Args   []interface{}
}

func (m *MockLogger) record(level string, t providers.TypeEnum, format string, args ...interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Logs = append(m.Logs, LogEntry{Level: level, Type: t, Format: format, Args: args})
}

func (m *MockLogger) Errorf(t providers.TypeEnum, format string, args ...interface{}) {
	m.record("error", t, format, args...)
}
func (m *MockLogger) Warnf(t providers.TypeEnum, format string, args ...interface{}) {
	m.record("warn", t, format, args...)
}
func (m *MockLogger) Debugf(t providers.TypeEnum, format string, args ...interface{}) {
	m.record("debug", t, format, args...)
}
func (m *MockLogger) Infof(t providers.TypeEnum, format string, args ...interface{}) {
	m.record("info", t, format, args...)
}
func (m *MockLogger) Fatalf(t providers.TypeEnum, format string, args ...interface{}) {
	m.record("fatal", t, format, args...)
}
func (m *MockLogger) Close() {}

// Count returns how many entries were logged at level.
func (m *MockLogger) Count(level string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, e := range m.Logs {
		if e.Level == level {
			n++
		}
	}
	return n
}

// MockCache implements providers.CacheProviderInterface.
type MockCache struct {
	mu   sync.Mutex
	Data map[string][]byte
}

func NewMockCache() *MockCache {
	return &MockCache{Data: make(map[string][]byte)}
}

func (m *MockCache) Get(key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	val, ok := m.Data[key]
	return val, ok
}

func (m *MockCache) Set(key string, value []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Data[key] = value
}

func (m *MockCache) Del(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.Data, key)
}

// MockCompressor implements persistence.CompressorInterface with injectable
// behavior. The default is the identity transform.
type MockCompressor struct {
	CompressFn   func([]byte) ([]byte, error)
	DecompressFn func([]byte) ([]byte, error)
	Closed       bool
}

func (m *MockCompressor) Compress(val []byte) ([]byte, error) {
	if m.CompressFn != nil {
		return m.CompressFn(val)
	}
	out := make([]byte, len(val))
	copy(out, val)
	return out, nil
}

func (m *MockCompressor) Decompress(val []byte) ([]byte, error) {
	if m.DecompressFn != nil {
		return m.DecompressFn(val)
	}
	out := make([]byte, len(val))
	copy(out, val)
	return out, nil
}

func (m *MockCompressor) Close() {
	m.Closed = true
}

// MockMetrics implements providers.MetricsProviderInterface and counts calls
// by name and label.
type MockMetrics struct {
	mu      sync.Mutex
	Counts  map[string]int
	Pending int
}

func (m *MockMetrics) inc(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Counts == nil {
		m.Counts = make(map[string]int)
	}
	m.Counts[key]++
}

// Count returns the number of calls recorded under key, e.g. "guess:correct".
func (m *MockMetrics) Count(key string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Counts[key]
}

func (m *MockMetrics) IncRequestsTotal(endpoint string, _ int)          { m.inc("request:" + endpoint) }
func (m *MockMetrics) ObserveRequestDuration(_ string, _ time.Duration) {}
func (m *MockMetrics) IncCacheHits()                                    { m.inc("cache:hit") }
func (m *MockMetrics) IncCacheMisses()                                  { m.inc("cache:miss") }
func (m *MockMetrics) ObservePersistenceDuration(_ time.Duration)       { m.inc("persist") }
func (m *MockMetrics) IncGamesStarted(mode string)                      { m.inc("started:" + mode) }
func (m *MockMetrics) IncGamesFinished(result string)                   { m.inc("finished:" + result) }
func (m *MockMetrics) IncGuesses(result string)                         { m.inc("guess:" + result) }
func (m *MockMetrics) IncHints()                                        { m.inc("hint") }
func (m *MockMetrics) IncDailyFetch(source string)                      { m.inc("daily:" + source) }
func (m *MockMetrics) IncUploads(result string)                         { m.inc("upload:" + result) }
func (m *MockMetrics) SetPendingUploads(count int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Pending = count
}

// MockIdentity implements providers.IdentityProviderInterface.
type MockIdentity struct {
	User      string
	BearerTok string
}

func (m *MockIdentity) UserID() string {
	if m.User == "" {
		return "local"
	}
	return m.User
}

func (m *MockIdentity) Token() (string, bool) {
	return m.BearerTok, m.BearerTok != ""
}

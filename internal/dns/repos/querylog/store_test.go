package querylog

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/haukened/rr-zoned/internal/dns/domain"
)

type MockLogger struct {
	mock.Mock
}

func (m *MockLogger) Info(fields map[string]any, msg string)  { m.Called(fields, msg) }
func (m *MockLogger) Error(fields map[string]any, msg string) { m.Called(fields, msg) }
func (m *MockLogger) Debug(fields map[string]any, msg string) { m.Called(fields, msg) }
func (m *MockLogger) Warn(fields map[string]any, msg string)  { m.Called(fields, msg) }
func (m *MockLogger) Panic(fields map[string]any, msg string) { m.Called(fields, msg) }
func (m *MockLogger) Fatal(fields map[string]any, msg string) { m.Called(fields, msg) }

func tempLog(t *testing.T, retain int) *Store {
	t.Helper()
	s, err := Open(Options{Path: filepath.Join(t.TempDir(), "querylog.db"), Retain: retain})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func entry(i int) domain.QueryLogEntry {
	return domain.QueryLogEntry{
		Time:       time.Unix(int64(1700000000+i), 0).UTC(),
		Client:     "127.0.0.1",
		QName:      fmt.Sprintf("q%d.example.com.", i),
		QType:      "A",
		RCode:      "NOERROR",
		Answer:     "10.0.0.1",
		DurationMS: 0.25,
	}
}

func TestRecent_NewestFirst(t *testing.T) {
	s := tempLog(t, 0)
	for i := 1; i <= 5; i++ {
		require.NoError(t, s.Append(entry(i)))
	}

	got, err := s.Recent(3)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "q5.example.com.", got[0].QName)
	assert.Equal(t, "q4.example.com.", got[1].QName)
	assert.Equal(t, "q3.example.com.", got[2].QName)
	assert.Equal(t, uint64(5), got[0].ID)
	assert.Equal(t, entry(5).Time, got[0].Time)
	assert.Equal(t, 0.25, got[0].DurationMS)
}

func TestRecent_DefaultLimit(t *testing.T) {
	s := tempLog(t, 0)
	for i := 0; i < DefaultRecentLimit+10; i++ {
		s.Record(entry(i))
	}
	got, err := s.Recent(0)
	require.NoError(t, err)
	assert.Len(t, got, DefaultRecentLimit)
}

func TestRecent_Empty(t *testing.T) {
	s := tempLog(t, 0)
	got, err := s.Recent(10)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestAppend_RetentionTrims(t *testing.T) {
	s := tempLog(t, 3)
	for i := 1; i <= 10; i++ {
		require.NoError(t, s.Append(entry(i)))
	}
	got, err := s.Recent(100)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "q10.example.com.", got[0].QName)
	assert.Equal(t, "q8.example.com.", got[2].QName)
}

func TestRecord_SwallowsFailures(t *testing.T) {
	logger := &MockLogger{}
	logger.On("Warn", mock.Anything, "query log write failed").Once()

	s, err := Open(Options{Path: filepath.Join(t.TempDir(), "querylog.db"), Logger: logger})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	assert.NotPanics(t, func() { s.Record(entry(1)) })
	logger.AssertExpectations(t)
}

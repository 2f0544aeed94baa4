package audit

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileLoggerWritesJSONLines(t *testing.T) {
	dir := t.TempDir()
	logger, err := NewFileLogger(FileLoggerConfig{BasePath: dir})
	require.NoError(t, err)
	defer logger.Close()

	ctx := context.Background()
	require.NoError(t, logger.Log(ctx, &Event{
		Timestamp: time.Now().UTC(),
		Type:      EventEntryAdded,
		Status:    StatusSuccess,
		DN:        "uid=jdoe,ou=people,dc=example,dc=org",
	}))
	require.NoError(t, logger.Log(ctx, &Event{
		Timestamp: time.Now().UTC(),
		Type:      EventAuthFailure,
		Status:    StatusFailure,
	}))

	file, err := os.Open(filepath.Join(dir, "audit.log"))
	require.NoError(t, err)
	defer file.Close()

	var events []Event
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		var event Event
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &event))
		events = append(events, event)
	}
	require.NoError(t, scanner.Err())

	require.Len(t, events, 2)
	assert.Equal(t, EventEntryAdded, events[0].Type)
	assert.Equal(t, "uid=jdoe,ou=people,dc=example,dc=org", events[0].DN)
	assert.Equal(t, EventAuthFailure, events[1].Type)
}

func TestFileLoggerRotation(t *testing.T) {
	dir := t.TempDir()
	logger, err := NewFileLogger(FileLoggerConfig{
		BasePath: dir,
		MaxSize:  1, // rotate after every write
		MaxFiles: 2,
	})
	require.NoError(t, err)
	defer logger.Close()

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		require.NoError(t, logger.Log(ctx, &Event{
			Timestamp: time.Now().UTC(),
			Type:      EventEntryModified,
			Status:    StatusSuccess,
		}))
		// Rotated filenames carry second granularity.
		time.Sleep(1100 * time.Millisecond)
	}

	rotated, err := filepath.Glob(filepath.Join(dir, "audit-*.log"))
	require.NoError(t, err)
	assert.NotEmpty(t, rotated)
	assert.LessOrEqual(t, len(rotated), 2)

	_, err = os.Stat(filepath.Join(dir, "audit.log"))
	assert.NoError(t, err, "a fresh current file exists after rotation")
}

func TestFileLoggerCloseIdempotent(t *testing.T) {
	logger, err := NewFileLogger(FileLoggerConfig{BasePath: t.TempDir()})
	require.NoError(t, err)
	require.NoError(t, logger.Close())
	require.NoError(t, logger.Close())
}

// AngelaMos | 2026
// cleanup_test.go

package main

import (
	"bytes"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCleanupStack_ClosesInReverseOrder(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	var order []string
	track := func(name string, err error) func() error {
		return func() error {
			order = append(order, name)
			return err
		}
	}

	var cleanup cleanupStack
	cleanup.push("telemetry", track("telemetry", nil))
	cleanup.push("database", track("database", nil))
	cleanup.push("redis", track("redis", errors.New("connection reset")))

	cleanup.run(logger)

	assert.Equal(t, []string{"redis", "database", "telemetry"}, order)
	assert.Contains(t, buf.String(), "redis close error")
	assert.Contains(t, buf.String(), "connection reset")

	cleanup.run(logger)
	assert.Len(t, order, 3, "second run is a no-op")
}

func TestCleanupStack_PartialStartup(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))

	dbClosed := false
	var cleanup cleanupStack
	cleanup.push("database", func() error {
		dbClosed = true
		return nil
	})

	cleanup.run(logger)
	assert.True(t, dbClosed)
}

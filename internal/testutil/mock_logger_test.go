package testutil_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/GasTM-Consolidator/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/GasTM-Consolidator/internal/testutil"
)

func TestMockLogger(t *testing.T) {
	logger := testutil.NewMockLogger()

	logger.Info("test info", logging.String("key", "value"))

	messages := logger.GetMessages()
	require.Len(t, messages, 1)
	assert.Equal(t, "info", messages[0].Level)
	assert.Equal(t, "test info", messages[0].Message)
	v, ok := messages[0].Field("key")
	assert.True(t, ok)
	assert.Equal(t, "value", v)

	logger.Clear()
	assert.Len(t, logger.GetMessages(), 0)

	logger.Error("test error")
	assert.True(t, logger.HasMessage("error", "test error"))
	assert.False(t, logger.HasMessage("info", "test info"))
}

func TestMockLogger_ChildrenShareRecord(t *testing.T) {
	root := testutil.NewMockLogger()
	child := root.Named("worker").With(logging.RunID("r1")).Named("kafka")

	child.Warn("slow", logging.DocumentID("doc1"))

	warns := root.Filter("warn")
	require.Len(t, warns, 1)
	assert.Equal(t, "worker.kafka", warns[0].Logger)
	run, _ := warns[0].Field("run_id")
	doc, _ := warns[0].Field("document_id")
	assert.Equal(t, "r1", run)
	assert.Equal(t, "doc1", doc)

	_, ok := warns[0].Field("absent")
	assert.False(t, ok)
}

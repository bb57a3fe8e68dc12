package cache

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/biomarker-insight-server/internal/domain"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)
	return logger
}

func evalWithID(id string) *domain.ReportEvaluation {
	return &domain.ReportEvaluation{EvaluationID: id, EvaluatedAt: time.Now().UTC()}
}

func TestMemoryCache_SetGet(t *testing.T) {
	c := NewMemoryCache(testLogger(), 8, time.Minute)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k1", evalWithID("eval-1"), 0))

	got, ok, err := c.Get(ctx, "k1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "eval-1", got.EvaluationID)
}

func TestMemoryCache_Miss(t *testing.T) {
	c := NewMemoryCache(testLogger(), 8, time.Minute)

	got, ok, err := c.Get(context.Background(), "absent")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, got)
}

func TestMemoryCache_EvictsOldestAtCapacity(t *testing.T) {
	c := NewMemoryCache(testLogger(), 2, time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		key := fmt.Sprintf("k%d", i)
		require.NoError(t, c.Set(ctx, key, evalWithID(key), 0))
	}

	_, ok, _ := c.Get(ctx, "k0")
	assert.False(t, ok)
	_, ok, _ = c.Get(ctx, "k2")
	assert.True(t, ok)
}

func TestMemoryCache_Expiry(t *testing.T) {
	c := NewMemoryCache(testLogger(), 8, 20*time.Millisecond)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k1", evalWithID("eval-1"), 0))
	time.Sleep(50 * time.Millisecond)

	_, ok, err := c.Get(ctx, "k1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryCache_Overwrite(t *testing.T) {
	c := NewMemoryCache(testLogger(), 8, time.Minute)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k1", evalWithID("old"), 0))
	require.NoError(t, c.Set(ctx, "k1", evalWithID("new"), 0))

	got, ok, err := c.Get(ctx, "k1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "new", got.EvaluationID)
}

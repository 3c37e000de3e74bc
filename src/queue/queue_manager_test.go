package queue

import (
	"testing"

	"mcp/src/helpers"
	"mcp/src/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testManager() *QueueManager {
	return NewQueueManager(10, logger.NewLogger("", "test"))
}

// -----------------------------------------------------------------------------

func TestQueueManagerCreateAndGet(t *testing.T) {
	m := testManager()

	require.NoError(t, m.CreateQueue("signals", 5))
	assert.Error(t, m.CreateQueue("signals", 5))

	q, err := m.GetQueue("signals")
	require.NoError(t, err)
	assert.Equal(t, 5, q.MaxSize())

	_, err = m.GetQueue("missing")
	assert.True(t, helpers.IsNotFound(err))
}

// -----------------------------------------------------------------------------

func TestQueueManagerLazyCreation(t *testing.T) {
	m := testManager()

	require.NoError(t, m.AddToQueue("adhoc", msg(1, 1)))

	q, err := m.GetQueue("adhoc")
	require.NoError(t, err)
	assert.Equal(t, 10, q.MaxSize())
	assert.Equal(t, 1, q.Size())
}

// -----------------------------------------------------------------------------

func TestQueueManagerNamesAndStats(t *testing.T) {
	m := testManager()
	require.NoError(t, m.CreateQueue("b-topic", 5))
	require.NoError(t, m.CreateQueue("a-topic", 5))

	assert.Equal(t, []string{"a-topic", "b-topic"}, m.Names())

	m.AddToQueue("a-topic", msg(1, 1))
	stats := m.GetQueueStats()
	require.Len(t, stats, 2)
	assert.Equal(t, "a-topic", stats[0].Name)
	assert.Equal(t, 1, stats[0].Size)
	assert.Equal(t, "b-topic", stats[1].Name)
	assert.Equal(t, 0, stats[1].Size)
}

// -----------------------------------------------------------------------------

func TestQueueManagerClearAll(t *testing.T) {
	m := testManager()
	m.AddToQueue("one", msg(1, 1))
	m.AddToQueue("two", msg(2, 2))

	m.ClearAll()

	one, _ := m.GetQueue("one")
	two, _ := m.GetQueue("two")
	assert.Equal(t, 0, one.Size())
	assert.Equal(t, 0, two.Size())
}

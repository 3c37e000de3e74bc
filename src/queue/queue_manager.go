package queue

import (
	"fmt"
	"sort"
	"sync"

	"mcp/src/helpers"
	"mcp/src/logger"
	"mcp/src/models"
)

// -----------------------------------------------------------------------------
// QueueManager owns the named set of PriorityQueues. All access goes through
// the manager's methods; queues are created at startup from config or lazily
// on first use.
// -----------------------------------------------------------------------------

type QueueManager struct {
	Logger *logger.Logger

	mu             sync.RWMutex
	queues         map[string]*PriorityQueue
	defaultMaxSize int
}

// -----------------------------------------------------------------------------

func NewQueueManager(defaultMaxSize int, log *logger.Logger) *QueueManager {
	if defaultMaxSize <= 0 {
		defaultMaxSize = 1000
	}
	return &QueueManager{
		Logger:         log,
		queues:         make(map[string]*PriorityQueue),
		defaultMaxSize: defaultMaxSize,
	}
}

// -----------------------------------------------------------------------------

// CreateQueue registers a new topic queue. Fails if the name exists.
func (m *QueueManager) CreateQueue(name string, maxSize int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.queues[name]; exists {
		return fmt.Errorf("queue %s already exists", name)
	}

	m.queues[name] = NewPriorityQueue(name, maxSize)
	m.Logger.Info("Created queue: %s (max %d)", name, maxSize)
	return nil
}

// -----------------------------------------------------------------------------

// GetQueue retrieves a queue by name.
func (m *QueueManager) GetQueue(name string) (*PriorityQueue, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	q, exists := m.queues[name]
	if !exists {
		return nil, helpers.NewNotFoundError("queue %s not found", name)
	}
	return q, nil
}

// -----------------------------------------------------------------------------

// AddToQueue enqueues a message on the named topic, creating the queue with
// the default capacity on first use.
func (m *QueueManager) AddToQueue(name string, msg models.MMessage) error {
	m.mu.RLock()
	q, exists := m.queues[name]
	m.mu.RUnlock()

	if !exists {
		m.mu.Lock()
		q, exists = m.queues[name]
		if !exists {
			q = NewPriorityQueue(name, m.defaultMaxSize)
			m.queues[name] = q
			m.Logger.Info("Lazily created queue: %s (max %d)", name, m.defaultMaxSize)
		}
		m.mu.Unlock()
	}

	if !q.Enqueue(msg) {
		m.Logger.Debug("Queue %s full, message type=%s priority=%d dropped", name, msg.Type, msg.Priority)
	}
	return nil
}

// -----------------------------------------------------------------------------

// Names returns the registered queue names.
func (m *QueueManager) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.queues))
	for name := range m.queues {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// -----------------------------------------------------------------------------

// GetQueueStats returns a snapshot of every queue, sorted by name.
func (m *QueueManager) GetQueueStats() []models.MQueueStats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := make([]models.MQueueStats, 0, len(m.queues))
	for _, q := range m.queues {
		stats = append(stats, q.Stats())
	}
	sort.Slice(stats, func(i, j int) bool { return stats[i].Name < stats[j].Name })
	return stats
}

// -----------------------------------------------------------------------------

// ClearAll empties every queue. Used only at shutdown.
func (m *QueueManager) ClearAll() {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, q := range m.queues {
		q.Clear()
	}
}

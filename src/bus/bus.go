package bus

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"mcp/src/logger"
	"mcp/src/models"
	"mcp/src/queue"
)

// -----------------------------------------------------------------------------

// ProcessorFunc consumes one dequeued message and performs its side effect.
type ProcessorFunc func(ctx context.Context, msg models.MMessage) error

// -----------------------------------------------------------------------------
// MessageBus dispatches messages from topic queues to registered processors.
// An explicit, injected instance; construct one per process and pass it to
// whoever publishes.
// -----------------------------------------------------------------------------

type MessageBus struct {
	Config *models.MBusConfig
	Queues *queue.QueueManager
	Logger *logger.Logger

	mu         sync.RWMutex
	processors map[models.MessageType]ProcessorFunc

	lifecycleMu sync.Mutex
	ctx         context.Context
	cancelFunc  context.CancelFunc
	wg          sync.WaitGroup
}

// -----------------------------------------------------------------------------

// NewMessageBus creates the bus and its topic queues from config.
func NewMessageBus(cfg *models.MBusConfig, log *logger.Logger) *MessageBus {
	b := &MessageBus{
		Config:     cfg,
		Queues:     queue.NewQueueManager(cfg.DefaultMaxSize, log),
		Logger:     log,
		processors: make(map[models.MessageType]ProcessorFunc),
	}

	for _, t := range cfg.Topics {
		if err := b.Queues.CreateQueue(t.Name, t.MaxSize); err != nil {
			log.Warning("Skipping duplicate topic %s: %v", t.Name, err)
		}
	}

	return b
}

// -----------------------------------------------------------------------------

// RegisterProcessor binds one handler per message type. Re-registration
// replaces the previous handler (last-write-wins).
func (b *MessageBus) RegisterProcessor(t models.MessageType, fn ProcessorFunc) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.processors[t]; exists {
		b.Logger.Info("Replacing processor for message type %s", t)
	}
	b.processors[t] = fn
}

// -----------------------------------------------------------------------------

// Publish validates the message, stamps the timestamp if absent and forwards
// it to the topic queue.
func (b *MessageBus) Publish(topic string, msg models.MMessage) error {
	if msg.Type == "" {
		return fmt.Errorf("message type is empty")
	}
	if msg.Payload == nil {
		return fmt.Errorf("message payload is nil")
	}
	if msg.Payload.Kind() != msg.Type {
		return fmt.Errorf("payload kind %s does not match message type %s", msg.Payload.Kind(), msg.Type)
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now().UTC()
	}

	return b.Queues.AddToQueue(topic, msg)
}

// -----------------------------------------------------------------------------

// Start launches one dispatch goroutine per configured topic.
func (b *MessageBus) Start(parentCtx context.Context) error {
	b.lifecycleMu.Lock()
	defer b.lifecycleMu.Unlock()

	if b.ctx != nil {
		return fmt.Errorf("message bus is already running")
	}

	ctx, cancel := context.WithCancel(parentCtx)
	b.ctx = ctx
	b.cancelFunc = cancel

	for _, t := range b.Config.Topics {
		b.wg.Add(1)
		go b.dispatchLoop(ctx, t)
	}

	b.Logger.Info("Message bus started with %d topics", len(b.Config.Topics))
	return nil
}

// -----------------------------------------------------------------------------

// Stop cancels the dispatch loops, waits for them and clears the queues.
func (b *MessageBus) Stop() error {
	b.lifecycleMu.Lock()
	defer b.lifecycleMu.Unlock()

	if b.ctx == nil {
		return nil // Already stopped
	}

	b.cancelFunc()
	b.wg.Wait()
	b.Queues.ClearAll()
	b.ctx = nil
	b.cancelFunc = nil

	b.Logger.Info("Message bus stopped")
	return nil
}

// -----------------------------------------------------------------------------

// dispatchLoop drains up to BatchSize messages per tick for one topic.
// Signals tick faster than background tasks; the interval is per-topic
// config.
func (b *MessageBus) dispatchLoop(ctx context.Context, topic models.MTopicConfig) {
	defer b.wg.Done()

	q, err := b.Queues.GetQueue(topic.Name)
	if err != nil {
		b.Logger.Error("Dispatch loop for %s aborted: %v", topic.Name, err)
		return
	}

	ticker := time.NewTicker(time.Duration(topic.IntervalMs) * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for i := 0; i < topic.BatchSize; i++ {
				msg, ok := q.Dequeue()
				if !ok {
					break
				}
				b.dispatch(ctx, topic.Name, msg)
			}
		}
	}
}

// -----------------------------------------------------------------------------

// dispatch invokes the processor for one message. Processor errors and
// panics are logged, never propagated: one bad message must not halt the
// bus.
func (b *MessageBus) dispatch(ctx context.Context, topicName string, msg models.MMessage) {
	b.mu.RLock()
	fn, exists := b.processors[msg.Type]
	b.mu.RUnlock()

	if !exists {
		b.Logger.Warning("No processor registered for message type %s (topic %s)", msg.Type, topicName)
		return
	}

	defer func() {
		if r := recover(); r != nil {
			b.Logger.Error("Processor panic for type %s: %v", msg.Type, r)
		}
	}()

	if err := fn(ctx, msg); err != nil {
		b.Logger.Error("Processor error for type %s: %v", msg.Type, err)
	}
}

// -----------------------------------------------------------------------------

// Status returns queue stats plus the registered processor list.
func (b *MessageBus) Status() models.MBusStatus {
	b.mu.RLock()
	processors := make([]string, 0, len(b.processors))
	for t := range b.processors {
		processors = append(processors, string(t))
	}
	b.mu.RUnlock()
	sort.Strings(processors)

	b.lifecycleMu.Lock()
	running := b.ctx != nil
	b.lifecycleMu.Unlock()

	return models.MBusStatus{
		Running:    running,
		Queues:     b.Queues.GetQueueStats(),
		Processors: processors,
	}
}

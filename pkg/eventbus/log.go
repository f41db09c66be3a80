package eventbus

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// LogPublisher writes events to the application log. Used when no broker is
// configured.
type LogPublisher struct {
	log *zap.Logger
}

func NewLogPublisher(log *zap.Logger) *LogPublisher {
	return &LogPublisher{log: log.With(zap.String("publisher", "log"))}
}

func (p *LogPublisher) Publish(_ context.Context, eventType string, payload []byte, key string) error {
	p.log.Info("Settlement event",
		zap.String("event_type", eventType),
		zap.String("key", key),
		zap.ByteString("payload", payload),
	)
	return nil
}

func (p *LogPublisher) Close() error { return nil }

type Message struct {
	Type    string
	Key     string
	Payload []byte
}

// MemoryPublisher records published messages.
type MemoryPublisher struct {
	mu       sync.Mutex
	messages []Message
	err      error
	keyErrs  map[string]error
}

func NewMemoryPublisher() *MemoryPublisher {
	return &MemoryPublisher{}
}

// FailWith makes subsequent publishes return err until cleared with nil.
func (p *MemoryPublisher) FailWith(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.err = err
}

// FailKey makes publishes for one partition key return err until cleared
// with nil.
func (p *MemoryPublisher) FailKey(key string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.keyErrs == nil {
		p.keyErrs = make(map[string]error)
	}
	if err == nil {
		delete(p.keyErrs, key)
		return
	}
	p.keyErrs[key] = err
}

func (p *MemoryPublisher) Publish(_ context.Context, eventType string, payload []byte, key string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	if err := p.keyErrs[key]; err != nil {
		return err
	}
	p.messages = append(p.messages, Message{Type: eventType, Key: key, Payload: append([]byte(nil), payload...)})
	return nil
}

func (p *MemoryPublisher) Messages() []Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Message(nil), p.messages...)
}

func (p *MemoryPublisher) Types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	types := make([]string, 0, len(p.messages))
	for _, m := range p.messages {
		types = append(types, m.Type)
	}
	return types
}

func (p *MemoryPublisher) Close() error { return nil }

package pubsub

import "sync"

// Memory is an in-process PubSub for tests and single-node runs.
type Memory struct {
	mu     sync.RWMutex
	topics map[string]map[*memorySub]struct{}
}

type memorySub struct {
	mu     sync.Mutex
	closed bool
	cb     func(data []byte)
}

func NewMemory() *Memory {
	return &Memory{
		topics: map[string]map[*memorySub]struct{}{},
	}
}

func (m *Memory) Pub(topic string, data []byte) error {
	m.mu.RLock()
	subs := make([]*memorySub, 0, len(m.topics[topic]))
	for sub := range m.topics[topic] {
		subs = append(subs, sub)
	}
	m.mu.RUnlock()

	for _, sub := range subs {
		sub.deliver(data)
	}

	return nil
}

func (m *Memory) Sub(topic string, cb func(data []byte)) (func() error, error) {
	sub := &memorySub{cb: cb}

	m.mu.Lock()
	if m.topics[topic] == nil {
		m.topics[topic] = map[*memorySub]struct{}{}
	}
	m.topics[topic][sub] = struct{}{}
	m.mu.Unlock()

	return func() error {
		m.mu.Lock()
		delete(m.topics[topic], sub)
		if len(m.topics[topic]) == 0 {
			delete(m.topics, topic)
		}
		m.mu.Unlock()

		// flip under the sub lock so an in-flight deliver either
		// completes before this returns or never runs
		sub.mu.Lock()
		sub.closed = true
		sub.mu.Unlock()

		return nil
	}, nil
}

func (s *memorySub) deliver(data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}

	s.cb(data)
}

// Package pubsub is the fan-out primitive behind realtime delivery.
// Topics are opaque strings; payloads are opaque bytes. Subscribers get
// an unsubscribe func, and no delivery happens after it returns.
package pubsub

// PubSub publishes to and subscribes from named topics.
type PubSub interface {
	Pub(topic string, data []byte) error
	// Sub registers cb for the topic and returns an unsubscribe func.
	Sub(topic string, cb func(data []byte)) (func() error, error)
}

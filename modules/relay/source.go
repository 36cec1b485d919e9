package relay

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
)

// Source is a pub/sub subscription delivering raw domain-event payloads.
// Implementations own reconnect-and-resubscribe; messages lost while the
// transport is down are an accepted degradation.
type Source interface {
	// Subscribe establishes the subscription and returns the payload
	// stream. The subscription must be confirmed active before Subscribe
	// returns, so callers can sequence it ahead of accepting connections.
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
	Close() error
}

// sourceBuffer bounds how far the relay can fall behind the transport
// before messages are dropped.
const sourceBuffer = 256

// RedisSource subscribes to a Redis Pub/Sub channel. go-redis re-dials and
// re-issues SUBSCRIBE on connection loss.
type RedisSource struct {
	client *redis.Client
	sub    *redis.PubSub
}

// NewRedisSource creates a source backed by the Redis server at addr.
func NewRedisSource(addr string) *RedisSource {
	return &RedisSource{
		client: redis.NewClient(&redis.Options{
			Addr:         addr,
			DialTimeout:  5 * time.Second,
			WriteTimeout: 3 * time.Second,
		}),
	}
}

// Subscribe connects, confirms the subscription, and streams payloads.
func (s *RedisSource) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	s.sub = s.client.Subscribe(ctx, channel)
	// Wait for the subscription confirmation so no event window opens
	// between accepting connections and being subscribed.
	if _, err := s.sub.Receive(ctx); err != nil {
		_ = s.sub.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", channel, err)
	}

	out := make(chan []byte, sourceBuffer)
	go func() {
		defer close(out)
		for msg := range s.sub.Channel() {
			out <- []byte(msg.Payload)
		}
	}()
	return out, nil
}

// Close tears down the subscription and the client.
func (s *RedisSource) Close() error {
	if s.sub != nil {
		_ = s.sub.Close()
	}
	return s.client.Close()
}

// NATSSource subscribes to a NATS subject. The channel name's colons are
// mapped to NATS subject tokens ("taskflow:events" -> "taskflow.events").
type NATSSource struct {
	url string
	nc  *nats.Conn
	sub *nats.Subscription

	// mu orders deliver against Close: Unsubscribe does not wait for an
	// in-flight message callback, so out may only be closed once no
	// callback can still be sending on it.
	mu     sync.Mutex
	out    chan []byte
	closed bool
}

// NewNATSSource creates a source backed by the NATS server at url.
func NewNATSSource(url string) *NATSSource {
	return &NATSSource{url: url}
}

// deliver hands one message to the relay. Runs on the nats.go callback
// goroutine; a message arriving after Close is dropped.
func (s *NATSSource) deliver(data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.out <- data:
	default:
		// Slow consumer; at-most-once delivery allows the drop.
	}
}

// Subscribe connects, subscribes, and streams payloads. The client
// reconnects indefinitely with a one-second wait and restores the
// subscription on its own.
func (s *NATSSource) Subscribe(_ context.Context, channel string) (<-chan []byte, error) {
	nc, err := nats.Connect(s.url,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	s.nc = nc

	subject := strings.ReplaceAll(channel, ":", ".")
	s.out = make(chan []byte, sourceBuffer)
	sub, err := nc.Subscribe(subject, func(msg *nats.Msg) {
		s.deliver(msg.Data)
	})
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", subject, err)
	}
	s.sub = sub

	if err := nc.Flush(); err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to confirm subscription: %w", err)
	}
	return s.out, nil
}

// Close tears down the subscription and the connection, then closes the
// payload stream. Taking mu excludes any callback still inside deliver.
func (s *NATSSource) Close() error {
	if s.sub != nil {
		_ = s.sub.Unsubscribe()
	}
	if s.nc != nil {
		s.nc.Close()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.out != nil && !s.closed {
		s.closed = true
		close(s.out)
	}
	return nil
}

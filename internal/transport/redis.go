package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/amoylab/hublink/internal/common/cnst"
	"github.com/amoylab/hublink/internal/common/config"
)

// RedisBinding implements Binding on top of Redis pub/sub. Outbound events
// are published to <prefix>:inbox tagged with the client id; inbound
// events arrive on <prefix>:client:<id> and <prefix>:broadcast. A server
// ends the session by publishing a "disconnect" envelope to the client.
type RedisBinding struct {
	logger *zap.Logger
	cfg    config.TransportConfig
	client *redis.Client
	id     string
	prefix string
	events *emitter
	runs   *connLoop[*redis.PubSub]

	mu   sync.Mutex
	auth string
}

// redisFrame is what the client publishes to the inbox channel.
type redisFrame struct {
	Client string          `json:"client"`
	Token  string          `json:"token,omitempty"`
	Event  string          `json:"event"`
	Data   json.RawMessage `json:"data,omitempty"`
}

var _ Binding = (*RedisBinding)(nil)

// NewRedisBinding creates a Redis pub/sub binding. The server must answer
// a ping before the binding is returned.
func NewRedisBinding(logger *zap.Logger, cfg config.TransportConfig) (*RedisBinding, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Username: cfg.Redis.Username,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), cfg.HandshakeTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	prefix := cfg.Redis.Prefix
	if prefix == "" {
		prefix = "realtime"
	}
	logger = logger.Named("transport.redis")
	b := &RedisBinding{
		logger: logger,
		cfg:    cfg,
		client: client,
		id:     uuid.NewString(),
		prefix: prefix,
		events: newEmitter(),
	}
	b.runs = &connLoop[*redis.PubSub]{
		logger:   logger.With(zap.String("client", b.id)),
		events:   b.events,
		attempts: cfg.ReconnectAttempts,
		delay:    cfg.ReconnectDelay,
		open:     b.subscribe,
		serve:    b.readLoop,
		shut:     func(pubsub *redis.PubSub) { _ = pubsub.Close() },
	}
	return b, nil
}

// ClientID returns the id this binding is addressed by.
func (b *RedisBinding) ClientID() string { return b.id }

// InboxChannel is where outbound events are published.
func (b *RedisBinding) InboxChannel() string { return b.prefix + ":inbox" }

// ClientChannel is where events addressed to this client arrive.
func (b *RedisBinding) ClientChannel() string { return b.prefix + ":client:" + b.id }

// BroadcastChannel is where events for every client arrive.
func (b *RedisBinding) BroadcastChannel() string { return b.prefix + ":broadcast" }

// Connect implements Binding.Connect
func (b *RedisBinding) Connect(ctx context.Context) error {
	return b.runs.start(ctx)
}

// subscribe joins the client and broadcast channels and announces the
// client on the inbox.
func (b *RedisBinding) subscribe(ctx context.Context) (*redis.PubSub, error) {
	hctx, cancel := context.WithTimeout(ctx, b.cfg.HandshakeTimeout)
	defer cancel()

	pubsub := b.client.Subscribe(hctx, b.ClientChannel(), b.BroadcastChannel())
	for confirmed := 0; confirmed < 2; {
		msg, err := pubsub.Receive(hctx)
		if err != nil {
			_ = pubsub.Close()
			return nil, fmt.Errorf("failed to subscribe: %w", err)
		}
		if sub, ok := msg.(*redis.Subscription); ok && sub.Kind == "subscribe" {
			confirmed++
		}
	}

	if err := b.publish(hctx, cnst.EventConnect, nil); err != nil {
		_ = pubsub.Close()
		return nil, err
	}
	return pubsub, nil
}

func (b *RedisBinding) readLoop(ctx context.Context, pubsub *redis.PubSub) cnst.DisconnectReason {
	ch := pubsub.Channel()
	ticker := time.NewTicker(b.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return cnst.ReasonClientDisconnect
		case msg, ok := <-ch:
			if !ok {
				return cnst.ReasonTransportClose
			}
			event, data, err := decodeEnvelope([]byte(msg.Payload))
			if err != nil {
				b.logger.Warn("dropping inbound message",
					zap.String("channel", msg.Channel),
					zap.Error(err))
				continue
			}
			if event == cnst.EventDisconnect {
				return cnst.ReasonServerDisconnect
			}
			if cnst.IsLifecycleEvent(event) {
				b.logger.Warn("dropping inbound message with reserved event name", zap.String("event", event))
				continue
			}
			b.events.dispatch(Event{Name: event, Data: data})
		case <-ticker.C:
			pctx, cancel := context.WithTimeout(ctx, b.cfg.HandshakeTimeout)
			err := b.client.Ping(pctx).Err()
			cancel()
			if err != nil {
				if ctx.Err() != nil {
					return cnst.ReasonClientDisconnect
				}
				b.logger.Warn("health check failed", zap.Error(err))
				if errors.Is(err, context.DeadlineExceeded) {
					return cnst.ReasonPingTimeout
				}
				return cnst.ReasonTransportError
			}
		}
	}
}

func (b *RedisBinding) publish(ctx context.Context, event string, payload any) error {
	frame := redisFrame{Client: b.id, Event: event}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal %s payload: %w", event, err)
		}
		frame.Data = data
	}
	b.mu.Lock()
	frame.Token = b.auth
	b.mu.Unlock()

	body, err := json.Marshal(frame)
	if err != nil {
		return fmt.Errorf("failed to marshal %s frame: %w", event, err)
	}
	if err := b.client.Publish(ctx, b.InboxChannel(), body).Err(); err != nil {
		return fmt.Errorf("failed to publish %s: %w", event, err)
	}
	return nil
}

// Disconnect implements Binding.Disconnect
func (b *RedisBinding) Disconnect() {
	pubsub, live := b.runs.stop()
	if !live {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	if err := b.publish(ctx, cnst.EventDisconnect, nil); err != nil {
		b.logger.Debug("failed to announce disconnect", zap.Error(err))
	}
	cancel()
	_ = pubsub.Close()

	b.logger.Info("disconnected", zap.Stringer("reason", cnst.ReasonClientDisconnect))
	b.events.dispatch(Event{Name: cnst.EventDisconnect, Reason: cnst.ReasonClientDisconnect})
}

// Connected implements Binding.Connected
func (b *RedisBinding) Connected() bool {
	_, ok := b.runs.current()
	return ok
}

// SetAuth implements Binding.SetAuth
func (b *RedisBinding) SetAuth(token string) {
	b.mu.Lock()
	b.auth = token
	b.mu.Unlock()
}

// Emit implements Binding.Emit
func (b *RedisBinding) Emit(event string, payload any) error {
	if b.runs.isClosed() {
		return cnst.ErrBindingClosed
	}
	if !b.Connected() {
		return cnst.ErrNotConnected
	}

	ctx, cancel := context.WithTimeout(context.Background(), b.cfg.HandshakeTimeout)
	defer cancel()
	return b.publish(ctx, event, payload)
}

// On implements Binding.On
func (b *RedisBinding) On(event string, h Handler) ListenerID {
	return b.events.add(event, h, false)
}

// Once implements Binding.Once
func (b *RedisBinding) Once(event string, h Handler) ListenerID {
	return b.events.add(event, h, true)
}

// Off implements Binding.Off
func (b *RedisBinding) Off(event string, id ListenerID) {
	b.events.remove(event, id)
}

// Close implements Binding.Close
func (b *RedisBinding) Close() error {
	b.runs.close()
	b.Disconnect()
	return b.client.Close()
}

package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mcdev12/pooldraft/go/internal/draft/events"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog/log"
)

type JetStreamConfig struct {
	URL             string
	StreamName      string
	SubjectPrefix   string
	MaxReconnects   int
	ReconnectWait   time.Duration
	MaxAge          time.Duration // How long to keep messages
	MaxMsgs         int64         // Max number of messages to keep
	Replicas        int
	DuplicateWindow time.Duration // Window for publish dedupe by event id
	AckWait         time.Duration
	MaxDeliver      int
	MaxAckPending   int
}

func DefaultJetStreamConfig() JetStreamConfig {
	return JetStreamConfig{
		URL:             nats.DefaultURL,
		StreamName:      "DRAFT_EVENTS",
		SubjectPrefix:   "draft.events",
		MaxReconnects:   -1, // Infinite
		ReconnectWait:   2 * time.Second,
		MaxAge:          7 * 24 * time.Hour,
		MaxMsgs:         -1,
		Replicas:        1,
		DuplicateWindow: 2 * time.Hour,
		AckWait:         30 * time.Second,
		MaxDeliver:      5,
		MaxAckPending:   1,
	}
}

// JetStream is a Bus backed by a NATS JetStream stream.
type JetStream struct {
	nc     *nats.Conn
	js     jetstream.JetStream
	config JetStreamConfig
}

// ConnectJetStream connects to NATS and makes sure the draft event stream
// exists with the configured limits.
func ConnectJetStream(ctx context.Context, cfg JetStreamConfig) (*JetStream, error) {
	opts := []nats.Option{
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Error().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			log.Error().Err(err).Msg("NATS error")
		}),
	}

	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("create JetStream context: %w", err)
	}

	b := &JetStream{nc: nc, js: js, config: cfg}
	if err := b.ensureStream(ctx); err != nil {
		nc.Close()
		return nil, fmt.Errorf("ensure stream: %w", err)
	}
	return b, nil
}

func (b *JetStream) streamConfig() jetstream.StreamConfig {
	return jetstream.StreamConfig{
		Name:        b.config.StreamName,
		Description: "Draft events relayed from the outbox",
		Subjects:    []string{b.config.SubjectPrefix + ".>"},
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      b.config.MaxAge,
		MaxMsgs:     b.config.MaxMsgs,
		Storage:     jetstream.FileStorage,
		Replicas:    b.config.Replicas,
		Duplicates:  b.config.DuplicateWindow,
	}
}

func (b *JetStream) ensureStream(ctx context.Context) error {
	sc := b.streamConfig()

	stream, err := b.js.Stream(ctx, sc.Name)
	if err != nil {
		if _, err = b.js.CreateStream(ctx, sc); err != nil {
			return fmt.Errorf("create stream: %w", err)
		}
		log.Info().Str("stream", sc.Name).Msg("created JetStream stream")
		return nil
	}

	info, err := stream.Info(ctx)
	if err != nil {
		return fmt.Errorf("get stream info: %w", err)
	}
	if !sameLimits(info.Config, sc) {
		if _, err = b.js.UpdateStream(ctx, sc); err != nil {
			return fmt.Errorf("update stream: %w", err)
		}
		log.Info().Str("stream", sc.Name).Msg("updated JetStream stream")
	}
	return nil
}

// Publish writes ev to the stream. The event id is the JetStream message id,
// so a relay that republishes after a crash is deduped by the server.
func (b *JetStream) Publish(ctx context.Context, ev events.Event) error {
	if err := ev.Validate(); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	header := nats.Header{}
	for k, v := range ev.Headers {
		header.Set(k, v)
	}
	header.Set(events.HeaderEventID, ev.ID.String())
	header.Set(events.HeaderEventType, string(ev.Type))
	header.Set(events.HeaderDraftID, ev.DraftID.String())

	subject := Subject(b.config.SubjectPrefix, ev)
	ack, err := b.js.PublishMsg(ctx, &nats.Msg{Subject: subject, Data: data, Header: header},
		jetstream.WithMsgID(ev.ID.String()),
		jetstream.WithExpectStream(b.config.StreamName),
	)
	if err != nil {
		return fmt.Errorf("publish to JetStream: %w", err)
	}

	log.Debug().
		Str("subject", subject).
		Str("event_id", ev.ID.String()).
		Uint64("sequence", ack.Sequence).
		Bool("duplicate", ack.Duplicate).
		Msg("published to JetStream")
	return nil
}

// Subscribe consumes matching events. A named subscription is a durable
// consumer that replays from the start of the stream; an unnamed one is an
// ephemeral consumer that starts at new messages.
func (b *JetStream) Subscribe(ctx context.Context, name string, filter Filter, h Handler) (Subscription, error) {
	cc := jetstream.ConsumerConfig{
		FilterSubjects: filter.subjects(b.config.SubjectPrefix),
		AckPolicy:      jetstream.AckExplicitPolicy,
		AckWait:        b.config.AckWait,
		MaxDeliver:     b.config.MaxDeliver,
		MaxAckPending:  b.config.MaxAckPending,
		ReplayPolicy:   jetstream.ReplayInstantPolicy,
	}
	if name != "" {
		cc.Name = name
		cc.Durable = name
		cc.DeliverPolicy = jetstream.DeliverAllPolicy
	} else {
		cc.DeliverPolicy = jetstream.DeliverNewPolicy
		cc.InactiveThreshold = time.Minute
	}

	consumer, err := b.js.CreateOrUpdateConsumer(ctx, b.config.StreamName, cc)
	if err != nil {
		return nil, fmt.Errorf("create consumer: %w", err)
	}

	cons, err := consumer.Consume(func(msg jetstream.Msg) {
		var ev events.Event
		if err := json.Unmarshal(msg.Data(), &ev); err != nil {
			log.Error().Err(err).Str("subject", msg.Subject()).Msg("dropping undecodable event")
			_ = msg.Term()
			return
		}
		ev.Headers = make(map[string]string, len(msg.Headers()))
		for k := range msg.Headers() {
			ev.Headers[k] = msg.Headers().Get(k)
		}

		if !filter.Match(ev) {
			_ = msg.Ack()
			return
		}
		if err := h(ctx, ev); err != nil {
			log.Error().
				Err(err).
				Str("consumer", name).
				Str("event_id", ev.ID.String()).
				Msg("failed to handle event")
			_ = msg.Nak()
			return
		}
		_ = msg.Ack()
	})
	if err != nil {
		return nil, fmt.Errorf("start JetStream consumer: %w", err)
	}

	log.Info().
		Str("consumer", name).
		Strs("subjects", cc.FilterSubjects).
		Msg("JetStream consumer started")
	return cons, nil
}

// Connected reports whether the NATS connection is up.
func (b *JetStream) Connected() bool {
	return b.nc != nil && b.nc.IsConnected()
}

func (b *JetStream) Close() error {
	if b.nc != nil {
		b.nc.Close()
	}
	return nil
}

func sameLimits(a, b jetstream.StreamConfig) bool {
	return a.Name == b.Name &&
		a.MaxAge == b.MaxAge &&
		a.MaxMsgs == b.MaxMsgs &&
		a.Replicas == b.Replicas &&
		a.Duplicates == b.Duplicates
}

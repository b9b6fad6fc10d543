package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/your-org/idscan/internal/models"
)

type ScanHandler func(ctx context.Context, evt models.ScanEvent) error

type GallerySavedHandler func(msg GallerySaved)

type Consumer struct {
	nc *nats.Conn
	js jetstream.JetStream
}

func NewConsumer(natsURL string) (*Consumer, error) {
	nc, err := connect(natsURL)
	if err != nil {
		return nil, err
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("create jetstream context: %w", err)
	}

	return &Consumer{nc: nc, js: js}, nil
}

// ConsumeScans delivers new scan events to handler until ctx is done.
// Events that fail to decode are terminated; handler errors are redelivered.
func (c *Consumer) ConsumeScans(ctx context.Context, consumerName string, handler ScanHandler) error {
	stream, err := c.js.Stream(ctx, ScansStreamName)
	if err != nil {
		return fmt.Errorf("get stream %s: %w", ScansStreamName, err)
	}

	cons, err := stream.CreateOrUpdateConsumer(ctx, jetstream.ConsumerConfig{
		Name:          consumerName,
		Durable:       consumerName,
		AckPolicy:     jetstream.AckExplicitPolicy,
		AckWait:       10 * time.Second,
		MaxDeliver:    3,
		FilterSubject: ScansSubjectBase + ".>",
		DeliverPolicy: jetstream.DeliverNewPolicy,
	})
	if err != nil {
		return fmt.Errorf("create consumer %s: %w", consumerName, err)
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			default:
			}

			batch, err := cons.Fetch(10, jetstream.FetchMaxWait(5*time.Second))
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				slog.Warn("fetch scans error", "error", err)
				time.Sleep(time.Second)
				continue
			}

			for msg := range batch.Messages() {
				var evt models.ScanEvent
				if err := json.Unmarshal(msg.Data(), &evt); err != nil {
					slog.Error("decode scan event", "error", err, "subject", msg.Subject())
					_ = msg.Term()
					continue
				}
				if err := handler(ctx, evt); err != nil {
					slog.Error("process scan event", "error", err, "id", evt.ID)
					_ = msg.Nak()
				} else {
					_ = msg.Ack()
				}
			}
		}
	}()

	slog.Info("scan consumer started", "consumer", consumerName)
	return nil
}

// SubscribeGallerySaved calls handler for every gallery.saved notice.
func (c *Consumer) SubscribeGallerySaved(handler GallerySavedHandler) (*nats.Subscription, error) {
	sub, err := c.nc.Subscribe(GallerySavedSubject, func(m *nats.Msg) {
		var msg GallerySaved
		if err := json.Unmarshal(m.Data, &msg); err != nil {
			slog.Warn("decode gallery saved", "error", err)
			return
		}
		handler(msg)
	})
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", GallerySavedSubject, err)
	}
	return sub, nil
}

func (c *Consumer) Close() {
	c.nc.Close()
}

package eventbus

import (
	"context"
	"encoding/json"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/flowvector/flowvector/pkg/events"
	"github.com/flowvector/flowvector/pkg/otelhelper"
)

// WatermillEventBus routes catalog events over any watermill transport
// (gochannel in-process, kafka in deployment).
type WatermillEventBus struct {
	publisher     message.Publisher
	subscriber    message.Subscriber
	tracer        trace.Tracer
	subscriptions map[events.EventType]EventHandler
}

func NewWatermillEventBus(pub message.Publisher, sub message.Subscriber) EventBus {
	return &WatermillEventBus{
		publisher:     pub,
		subscriber:    sub,
		tracer:        otel.Tracer("flowvector/eventbus"),
		subscriptions: make(map[events.EventType]EventHandler),
	}
}

func (eb *WatermillEventBus) GenerateID() string {
	return watermill.NewULID()
}

func (eb *WatermillEventBus) Publish(ctx context.Context, key string, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	msg := message.NewMessage("msg-"+eb.GenerateID(), payload)
	msg.Metadata.Set(events.EventMetadataKey, key)
	msg.Metadata.Set(events.EventTypeMetadataKey, string(event.GetType()))

	return eb.publisher.Publish(events.Topic, msg)
}

func (eb *WatermillEventBus) Subscribe(ctx context.Context) error {
	messages, err := eb.subscriber.Subscribe(ctx, events.Topic)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			var event any

			eventType := events.EventType(msg.Metadata.Get(events.EventTypeMetadataKey))

			handler, exists := eb.subscriptions[eventType]
			if !exists {
				msg.Ack()

				continue
			}

			switch eventType {
			case events.CatalogRefreshRequestedEvent:
				event = &events.CatalogRefreshRequested{}
			case events.CatalogRefreshedEvent:
				event = &events.CatalogRefreshed{}
			default:
				msg.Nack()

				continue
			}

			spanCtx, span := otelhelper.StartSpan(ctx, eb.tracer, "eventbus consume",
				attribute.String("event.type", string(eventType)),
				attribute.String("event.key", msg.Metadata.Get(events.EventMetadataKey)),
			)

			err := json.Unmarshal(msg.Payload, event)
			if err != nil {
				otelhelper.SetError(span, err)
				span.End()
				msg.Nack()

				continue
			}

			err = handler(spanCtx, event)
			if err != nil {
				otelhelper.SetError(span, err)
				span.End()
				msg.Nack()

				continue
			}

			span.End()
			msg.Ack()
		}
	}()

	return nil
}

func (eb *WatermillEventBus) Handle(eventType events.EventType, handler EventHandler) error {
	eb.subscriptions[eventType] = handler

	return nil
}

func (eb *WatermillEventBus) Close() error {
	err := eb.publisher.Close()
	if err != nil {
		return err
	}

	return eb.subscriber.Close()
}

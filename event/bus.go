package event

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/sirupsen/logrus"
)

const (
	AuditTopic            = "docflow.audit"
	PublisherHandlerName  = "auditPublisher"
	metadataKeyAction     = "action"
	metadataKeyEntity     = "entity"
	automationHandlerName = "automationNotifier"
)

// NewAuditPubSub creates the in-process pub/sub the committed audit events are fanned out on.
func NewAuditPubSub() *gochannel.GoChannel {
	return gochannel.NewGoChannel(
		gochannel.Config{
			OutputChannelBuffer:            256,
			Persistent:                     false,
			BlockPublishUntilSubscriberAck: false,
		},
		watermill.NewStdLogger(false, false),
	)
}

// PublishHandler republishes every event on the audit topic.
func PublishHandler(publisher message.Publisher) EventHandler {
	return func(e *EventRecord) *EventHandleResult {
		payload, err := json.Marshal(e)
		if err != nil {
			return &EventHandleResult{Message: err.Error(), HandlerIdentifier: PublisherHandlerName}
		}
		msg := message.NewMessage(watermill.NewUUID(), payload)
		msg.Metadata.Set(metadataKeyAction, e.Action)
		msg.Metadata.Set(metadataKeyEntity, e.Entity)
		if err := publisher.Publish(AuditTopic, msg); err != nil {
			return &EventHandleResult{Message: fmt.Sprintf("publish event %d: %v", e.ID, err), HandlerIdentifier: PublisherHandlerName}
		}
		return &EventHandleResult{Success: true, HandlerIdentifier: PublisherHandlerName}
	}
}

// AutomationNotifier stands in for an external automation endpoint. It only logs what would be sent.
type AutomationNotifier struct {
	Endpoint string
	Actions  map[string]bool
}

func NewAutomationNotifier(endpoint string, actions ...string) *AutomationNotifier {
	n := &AutomationNotifier{Endpoint: endpoint, Actions: map[string]bool{}}
	for _, a := range actions {
		n.Actions[a] = true
	}
	return n
}

// Run consumes the audit topic until ctx is done.
func (n *AutomationNotifier) Run(ctx context.Context, subscriber message.Subscriber) error {
	messages, err := subscriber.Subscribe(ctx, AuditTopic)
	if err != nil {
		return err
	}
	go func() {
		for msg := range messages {
			if len(n.Actions) > 0 && !n.Actions[msg.Metadata.Get(metadataKeyAction)] {
				msg.Ack()
				continue
			}
			var record EventRecord
			if err := json.Unmarshal(msg.Payload, &record); err != nil {
				logrus.WithField("handler", automationHandlerName).Warn("drop malformed audit message: ", err)
				msg.Ack()
				continue
			}
			logrus.WithFields(logrus.Fields{
				"handler":  automationHandlerName,
				"endpoint": n.Endpoint,
				"entity":   record.Entity,
				"entityId": record.EntityID,
				"action":   record.Action,
			}).Info("automation notification skipped, integration is disabled")
			msg.Ack()
		}
	}()
	return nil
}

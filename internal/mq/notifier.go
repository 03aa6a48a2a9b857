package mq

import (
	"context"
	"log"
	"time"
)

// StatusNotifier implements reconcile.Notifier by publishing to RabbitMQ.
// Delivery discipline (dedup, batching, pin throttling) lives on the
// consuming side.
type StatusNotifier struct {
	pub *Publisher
}

// NewStatusNotifier creates a notifier that publishes to RabbitMQ.
func NewStatusNotifier(pub *Publisher) *StatusNotifier {
	return &StatusNotifier{pub: pub}
}

// NotifyStateChange publishes a light-state transition.
func (n *StatusNotifier) NotifyStateChange(chatID int64, lightOn bool, prevDuration time.Duration, when time.Time, detail string) {
	msg := StatusChangeMsg{
		ChatID:      chatID,
		LightOn:     lightOn,
		DurationSec: prevDuration.Seconds(),
		When:        when,
		Detail:      detail,
	}
	if err := n.pub.Publish(context.Background(), RoutingStatusChange, msg); err != nil {
		log.Printf("[mq] failed to publish status change for chat %d: %v", chatID, err)
	}
}

// RefreshPinned publishes a pinned-status refresh request.
func (n *StatusNotifier) RefreshPinned(chatID int64, text string) {
	if err := n.pub.Publish(context.Background(), RoutingPinRefresh, PinRefreshMsg{ChatID: chatID, Text: text}); err != nil {
		log.Printf("[mq] failed to publish pin refresh for chat %d: %v", chatID, err)
	}
}

package main

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"lights-watch/internal/bot"
	"lights-watch/internal/mq"
	"lights-watch/internal/notify"
)

// listener consumes queue messages from the server side and hands them to the
// dispatcher, which owns dedup, batching and pinned-message maintenance.
type listener struct {
	consumer   *mq.Consumer
	dispatcher *notify.Dispatcher
}

func newListener(consumer *mq.Consumer, dispatcher *notify.Dispatcher) *listener {
	return &listener{consumer: consumer, dispatcher: dispatcher}
}

func (l *listener) start(ctx context.Context) {
	statusCh, err := l.consumer.Consume(mq.QueueStatusChange)
	if err != nil {
		log.Fatalf("[listener] failed to consume %s: %v", mq.QueueStatusChange, err)
	}
	pinCh, err := l.consumer.Consume(mq.QueuePinRefresh)
	if err != nil {
		log.Fatalf("[listener] failed to consume %s: %v", mq.QueuePinRefresh, err)
	}

	log.Println("[listener] consuming from status_change, pin_refresh")

	for {
		select {
		case <-ctx.Done():
			log.Println("[listener] stopped")
			return
		case d, ok := <-statusCh:
			if !ok {
				return
			}
			l.handleStatusChange(d.Body)
			d.Ack(false)
		case d, ok := <-pinCh:
			if !ok {
				return
			}
			l.handlePinRefresh(ctx, d.Body)
			d.Ack(false)
		}
	}
}

func (l *listener) handleStatusChange(payload []byte) {
	var msg mq.StatusChangeMsg
	if err := json.Unmarshal(payload, &msg); err != nil {
		log.Printf("[listener] bad status_change message: %v", err)
		return
	}
	duration := time.Duration(msg.DurationSec * float64(time.Second))
	text := bot.RenderStatusChange(msg.LightOn, msg.When, duration, msg.Detail)
	l.dispatcher.Notify(msg.ChatID, text)
}

func (l *listener) handlePinRefresh(ctx context.Context, payload []byte) {
	var msg mq.PinRefreshMsg
	if err := json.Unmarshal(payload, &msg); err != nil {
		log.Printf("[listener] bad pin_refresh message: %v", err)
		return
	}
	if err := l.dispatcher.RefreshPinned(ctx, msg.ChatID, msg.Text); err != nil {
		log.Printf("[listener] pin refresh for chat %d: %v", msg.ChatID, err)
	}
}

// Package notify serializes outbound Telegram deliveries through a
// rate-limited queue with dedup and pinned-status maintenance.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"lights-watch/internal/models"
	"lights-watch/internal/ttlmap"
)

const (
	// batchSize bounds concurrent sends per batch, per the platform rate limit.
	batchSize = 25
	// batchPause separates consecutive batches.
	batchPause = time.Second
	// dedupWindow suppresses identical texts to the same chat, guarding
	// against double-fires when a pass races a manual trigger.
	dedupWindow = 10 * time.Second
	// pinThrottle bounds edit-call volume during rapid re-evaluation.
	pinThrottle = 30 * time.Second
	// queueDepth is the outbound buffer; overflow is dropped with a log line.
	queueDepth = 512
)

// ErrUnchanged is returned by Messenger.Edit when the content did not change.
// The dispatcher swallows it.
var ErrUnchanged = errors.New("message content unchanged")

// Messenger is the delivery transport contract.
type Messenger interface {
	Send(chatID int64, text string) (int, error)
	Edit(chatID int64, messageID int, text string) error
	Pin(chatID int64, messageID int) error
}

// PinStore reads and persists pinned-message handles.
type PinStore interface {
	Get(ctx context.Context, chatID int64) (*models.Subscriber, error)
	SetPinnedMessage(ctx context.Context, chatID int64, messageID int) error
}

type job struct {
	chatID int64
	text   string
}

// Dispatcher owns the outbound queue. Producers call Notify and
// RefreshPinned concurrently; one Run loop drains the queue in bounded
// batches with a fixed pause between them.
type Dispatcher struct {
	messenger Messenger
	pins      PinStore

	queue   chan job
	dedup   *ttlmap.Map[string, struct{}]
	pinSeen *ttlmap.Map[int64, struct{}]
}

func NewDispatcher(m Messenger, pins PinStore) *Dispatcher {
	return &Dispatcher{
		messenger: m,
		pins:      pins,
		queue:     make(chan job, queueDepth),
		dedup:     ttlmap.New[string, struct{}](dedupWindow),
		pinSeen:   ttlmap.New[int64, struct{}](pinThrottle),
	}
}

// Notify enqueues a message for delivery. Identical text to the same chat
// within the dedup window is suppressed; returns whether the message was
// actually queued.
func (d *Dispatcher) Notify(chatID int64, text string) bool {
	key := fmt.Sprintf("%d|%s", chatID, text)
	if !d.dedup.Allow(key) {
		return false
	}
	select {
	case d.queue <- job{chatID: chatID, text: text}:
		return true
	default:
		log.Printf("[notify] queue full, dropping message for chat %d", chatID)
		return false
	}
}

// Run drains the queue until ctx is done. Call as a goroutine.
func (d *Dispatcher) Run(ctx context.Context) {
	log.Printf("[notify] dispatcher started (batch=%d, pause=%s)", batchSize, batchPause)
	for {
		select {
		case <-ctx.Done():
			log.Println("[notify] dispatcher stopped")
			return
		case first := <-d.queue:
			batch := []job{first}
		drain:
			for len(batch) < batchSize {
				select {
				case j := <-d.queue:
					batch = append(batch, j)
				default:
					break drain
				}
			}
			d.sendBatch(batch)

			select {
			case <-ctx.Done():
				return
			case <-time.After(batchPause):
			}
		}
	}
}

func (d *Dispatcher) sendBatch(batch []job) {
	var wg sync.WaitGroup
	for _, j := range batch {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := d.messenger.Send(j.chatID, j.text); err != nil {
				log.Printf("[notify] send to chat %d failed: %v", j.chatID, err)
			}
		}()
	}
	wg.Wait()
}

// RefreshPinned keeps the single live-status message per chat current:
// edit-in-place when one exists, send-and-pin when it doesn't. Refreshes are
// throttled per chat, independent of the dedup window. Pin failures are
// non-fatal.
func (d *Dispatcher) RefreshPinned(ctx context.Context, chatID int64, text string) error {
	if !d.pinSeen.Allow(chatID) {
		return nil
	}

	sub, err := d.pins.Get(ctx, chatID)
	if err != nil {
		return fmt.Errorf("load subscriber %d: %w", chatID, err)
	}

	if sub.PinnedMessageID != 0 {
		err := d.messenger.Edit(chatID, sub.PinnedMessageID, text)
		if err == nil || errors.Is(err, ErrUnchanged) {
			return nil
		}
		// The old message may be gone (deleted by the user); fall through
		// and send a fresh one.
		log.Printf("[notify] edit pinned %d in chat %d failed: %v", sub.PinnedMessageID, chatID, err)
	}

	id, err := d.messenger.Send(chatID, text)
	if err != nil {
		return fmt.Errorf("send status to chat %d: %w", chatID, err)
	}
	if err := d.pins.SetPinnedMessage(ctx, chatID, id); err != nil {
		log.Printf("[notify] persist pinned id for chat %d: %v", chatID, err)
	}
	if err := d.messenger.Pin(chatID, id); err != nil {
		log.Printf("[notify] pin in chat %d failed: %v", chatID, err)
	}
	return nil
}

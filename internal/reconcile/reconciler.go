// Package reconcile combines liveness pings and scraped outage data into a
// single light-state timeline per subscriber and decides when to notify.
package reconcile

import (
	"context"
	"fmt"
	"log"
	"time"

	"golang.org/x/sync/errgroup"

	"lights-watch/internal/mode"
	"lights-watch/internal/models"
	"lights-watch/internal/outage"
	"lights-watch/internal/ttlmap"
)

// Store is the persistence contract the reconciler needs. The production
// implementation is the cached Postgres store.
type Store interface {
	Get(ctx context.Context, chatID int64) (*models.Subscriber, error)
	GetByToken(ctx context.Context, token string) (*models.Subscriber, error)
	GetAll(ctx context.Context) ([]*models.Subscriber, error)
	SetState(ctx context.Context, chatID int64, lightOn bool, startAt time.Time, prevDuration string) error
	SetLiveness(ctx context.Context, chatID int64, at time.Time) error
	SetMode(ctx context.Context, chatID int64, m models.Mode) error
}

// LivenessCache is the Redis fast path for ping timestamps. Errors degrade to
// the persisted column, never to a crash.
type LivenessCache interface {
	GetLiveness(ctx context.Context, chatID int64) (time.Time, error)
	SetLiveness(ctx context.Context, chatID int64, t time.Time) error
}

// Summaries is the outage summary cache contract.
type Summaries interface {
	GetOrFetch(ctx context.Context, city, street, house string) outage.Summary
}

// Notifier delivers state-change notifications and pinned-status refreshes.
// The production implementation publishes to RabbitMQ for the bot to consume.
type Notifier interface {
	NotifyStateChange(chatID int64, lightOn bool, prevDuration time.Duration, when time.Time, detail string)
	RefreshPinned(chatID int64, text string)
}

// Reconciler is the per-subscriber decision procedure. Each evaluation reads
// state, decides, writes state and notifies — strictly in that order. Across
// subscribers there is no ordering and none is needed.
type Reconciler struct {
	store     Store
	liveness  LivenessCache
	summaries Summaries
	notifier  Notifier
	modes     *mode.Ensurer

	timeout     time.Duration // liveness timeout
	concurrency int

	// outageChecked throttles outage source checks per subscriber,
	// independent of the evaluation cadence.
	outageChecked *ttlmap.Map[int64, struct{}]

	// startupAt gates stale-liveness transitions right after a restart, when
	// devices are alive but haven't pinged yet.
	startupAt time.Time

	now func() time.Time
}

func New(store Store, liveness LivenessCache, summaries Summaries, notifier Notifier,
	timeoutSec, outageCheckSec, concurrency int) *Reconciler {
	return &Reconciler{
		store:         store,
		liveness:      liveness,
		summaries:     summaries,
		notifier:      notifier,
		modes:         mode.NewEnsurer(store),
		timeout:       time.Duration(timeoutSec) * time.Second,
		concurrency:   concurrency,
		outageChecked: ttlmap.New[int64, struct{}](time.Duration(outageCheckSec) * time.Second),
		startupAt:     time.Now(),
		now:           time.Now,
	}
}

// EvaluateAll runs one reconciliation pass over all non-suppressed
// subscribers with bounded parallelism. One subscriber's failure is logged
// and never aborts the batch.
func (r *Reconciler) EvaluateAll(ctx context.Context) (int, error) {
	subs, err := r.store.GetAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("load subscribers: %w", err)
	}

	g := new(errgroup.Group)
	g.SetLimit(r.concurrency)

	evaluated := 0
	for _, s := range subs {
		if s.Suppressed {
			continue
		}
		evaluated++
		g.Go(func() error {
			if err := r.Evaluate(ctx, s); err != nil {
				log.Printf("[reconcile] chat %d: %v", s.ChatID, err)
			}
			return nil
		})
	}
	_ = g.Wait()
	return evaluated, nil
}

// Evaluate runs the decision procedure for one subscriber.
func (r *Reconciler) Evaluate(ctx context.Context, s *models.Subscriber) error {
	now := r.now()

	switch r.modes.Ensure(ctx, s) {
	case models.ModePing, models.ModeFull:
		return r.evalLiveness(ctx, s, now)
	case models.ModeOutage:
		return r.evalOutage(ctx, s, now)
	default:
		// Inert subscriber: only keep an existing pinned display current.
		if s.PinnedMessageID != 0 {
			r.notifier.RefreshPinned(s.ChatID, r.statusText(s))
		}
		return nil
	}
}

// evalLiveness handles ping_only and full modes. Liveness always governs the
// transition; in full mode outage data is advisory text on Off notifications,
// never a trigger.
func (r *Reconciler) evalLiveness(ctx context.Context, s *models.Subscriber, now time.Time) error {
	last := r.lastPing(ctx, s)
	elapsed := now.Sub(last)

	if elapsed > r.timeout && s.LightOn {
		if now.Sub(r.startupAt) < r.timeout {
			return nil // grace period after restart
		}
		prev := now.Sub(s.StateStartAt)
		if err := r.transition(ctx, s, false, now, prev); err != nil {
			return err
		}

		detail := ""
		if mode.Classify(s) == models.ModeFull {
			if sum := r.summaries.GetOrFetch(ctx, s.City, s.Street, s.House); !sum.Failed {
				detail = sum.Message
			}
		}
		r.notifier.NotifyStateChange(s.ChatID, false, prev, now, detail)
		log.Printf("[reconcile] chat %d: light OFF after %s without pings (was on for %s)",
			s.ChatID, models.FormatDuration(elapsed), s.PrevDuration)
	}

	r.notifier.RefreshPinned(s.ChatID, r.statusText(s))
	return nil
}

// evalOutage handles outage_only mode. The source check is throttled per
// subscriber because the external source is rate-limited and slow-changing.
func (r *Reconciler) evalOutage(ctx context.Context, s *models.Subscriber, now time.Time) error {
	if !r.outageChecked.Allow(s.ChatID) {
		r.notifier.RefreshPinned(s.ChatID, r.statusText(s))
		return nil
	}

	sum := r.summaries.GetOrFetch(ctx, s.City, s.Street, s.House)
	if sum.Failed {
		// No information — the most conservative interpretation is no change.
		r.notifier.RefreshPinned(s.ChatID, r.statusText(s))
		return nil
	}

	inferredOn := !sum.InferredOff
	if inferredOn != s.LightOn {
		prev := now.Sub(s.StateStartAt)
		if err := r.transition(ctx, s, inferredOn, now, prev); err != nil {
			return err
		}
		r.notifier.NotifyStateChange(s.ChatID, inferredOn, prev, now, sum.Message)
		log.Printf("[reconcile] chat %d: light %s per outage data", s.ChatID, onOff(inferredOn))
	}

	r.notifier.RefreshPinned(s.ChatID, r.statusText(s))
	return nil
}

// HandlePing processes a liveness ping for the given token. Returns false for
// unknown tokens. A ping while Off transitions to On and notifies; a ping
// while On only advances the liveness timestamp.
func (r *Reconciler) HandlePing(ctx context.Context, token string) (bool, error) {
	s, err := r.store.GetByToken(ctx, token)
	if err != nil {
		return false, err
	}

	now := r.now()
	if err := r.liveness.SetLiveness(ctx, s.ChatID, now); err != nil {
		log.Printf("[reconcile] redis liveness set for chat %d: %v", s.ChatID, err)
	}
	if err := r.store.SetLiveness(ctx, s.ChatID, now); err != nil {
		log.Printf("[reconcile] persist liveness for chat %d: %v", s.ChatID, err)
	}
	s.LastPingAt = &now

	if !s.LightOn {
		prev := now.Sub(s.StateStartAt)
		if err := r.transition(ctx, s, true, now, prev); err != nil {
			return true, err
		}
		r.notifier.NotifyStateChange(s.ChatID, true, prev, now, "")
		r.notifier.RefreshPinned(s.ChatID, r.statusText(s))
		log.Printf("[reconcile] chat %d: light ON via ping (was off for %s)", s.ChatID, s.PrevDuration)
	}
	return true, nil
}

// transition flips the stored state. The previous duration is computed from
// the old state_start_at before it is overwritten, at the transition instant.
func (r *Reconciler) transition(ctx context.Context, s *models.Subscriber, on bool, now time.Time, prev time.Duration) error {
	prevStr := models.FormatDuration(prev)
	if err := r.store.SetState(ctx, s.ChatID, on, now, prevStr); err != nil {
		return fmt.Errorf("persist state: %w", err)
	}
	s.LightOn = on
	s.StateStartAt = now
	s.PrevDuration = prevStr
	return nil
}

// lastPing prefers the Redis fast path and falls back to the persisted column.
func (r *Reconciler) lastPing(ctx context.Context, s *models.Subscriber) time.Time {
	if t, err := r.liveness.GetLiveness(ctx, s.ChatID); err == nil && !t.IsZero() {
		return t
	}
	if s.LastPingAt != nil {
		return *s.LastPingAt
	}
	return time.Time{}
}

// statusText renders the pinned live-status message.
func (r *Reconciler) statusText(s *models.Subscriber) string {
	kyiv, _ := time.LoadLocation("Europe/Kyiv")
	since := s.StateStartAt.In(kyiv).Format("15:04 02.01")

	var msg string
	if s.LightOn {
		msg = fmt.Sprintf(msgPinnedOn, since)
	} else {
		msg = fmt.Sprintf(msgPinnedOff, since)
	}
	if s.PrevDuration != "" {
		msg += fmt.Sprintf(msgPinnedPrev, s.PrevDuration)
	}
	return msg
}

func onOff(on bool) string {
	if on {
		return "ON"
	}
	return "OFF"
}

const (
	msgPinnedOn   = "🟢 Світло є (з %s)"
	msgPinnedOff  = "🔴 Світла немає (з %s)"
	msgPinnedPrev = "\nПопередній стан тривав %s"
)

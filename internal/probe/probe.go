// Package probe actively pings subscriber routers over ICMP, so households
// without a reporting device still get liveness-grade signal.
package probe

import (
	"context"
	"log"
	"time"

	probing "github.com/prometheus-community/pro-bing"
	"golang.org/x/sync/errgroup"

	"lights-watch/internal/models"
)

// probeConcurrency bounds parallel ICMP rounds.
const probeConcurrency = 10

// Store lists subscribers with a probe target configured.
type Store interface {
	GetProbed(ctx context.Context) ([]*models.Subscriber, error)
}

// PingHandler records a liveness ping; a reachable target counts exactly as
// if the device had hit the HTTP ping endpoint.
type PingHandler interface {
	HandlePing(ctx context.Context, token string) (bool, error)
}

// Checker runs periodic ICMP rounds over all probed subscribers.
type Checker struct {
	store   Store
	handler PingHandler
	pingFn  func(target string) bool
}

func NewChecker(store Store, handler PingHandler) *Checker {
	return &Checker{store: store, handler: handler, pingFn: PingHost}
}

// Start runs the probe loop until ctx is cancelled. Call as a goroutine.
func (c *Checker) Start(ctx context.Context, intervalSec int) {
	ticker := time.NewTicker(time.Duration(intervalSec) * time.Second)
	defer ticker.Stop()

	log.Printf("[probe] checker started (interval=%ds)", intervalSec)
	for {
		select {
		case <-ctx.Done():
			log.Println("[probe] checker stopped")
			return
		case <-ticker.C:
			c.run(ctx)
		}
	}
}

func (c *Checker) run(ctx context.Context) {
	subs, err := c.store.GetProbed(ctx)
	if err != nil {
		log.Printf("[probe] load probed subscribers: %v", err)
		return
	}

	g := new(errgroup.Group)
	g.SetLimit(probeConcurrency)
	for _, s := range subs {
		g.Go(func() error {
			if !c.pingFn(s.ProbeTarget) {
				return nil // unreachable is not evidence; the liveness timeout decides
			}
			if _, err := c.handler.HandlePing(ctx, s.Token); err != nil {
				log.Printf("[probe] record liveness for chat %d: %v", s.ChatID, err)
			}
			return nil
		})
	}
	_ = g.Wait()
}

// PingHost sends ICMP pings to the target and returns true if reachable.
func PingHost(target string) bool {
	pinger, err := probing.NewPinger(target)
	if err != nil {
		log.Printf("[probe] failed to create pinger for %s: %v", target, err)
		return false
	}
	pinger.Count = 3
	pinger.Timeout = 5 * time.Second
	pinger.SetPrivileged(true)
	if err := pinger.Run(); err != nil {
		return false
	}
	return pinger.Statistics().PacketsRecv > 0
}

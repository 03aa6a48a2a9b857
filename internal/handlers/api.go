package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"

	"lights-watch/internal/models"
	"lights-watch/internal/reconcile"
	"lights-watch/internal/store"
)

type Handlers struct {
	Store      reconcile.Store
	Reconciler *reconcile.Reconciler
	Scheduler  *reconcile.Scheduler

	// In-memory response cache for /api/subscribers.
	listCache   []byte
	listCacheAt time.Time
	listCacheMu sync.RWMutex
}

const (
	// ListCacheTTL is how long to cache the subscriber list response.
	ListCacheTTL = 15 * time.Second
	// ListCacheMaxAgeSec is the Cache-Control max-age header value.
	ListCacheMaxAgeSec = 15
)

// Ping handles GET /api/ping/:token — the liveness heartbeat endpoint.
// Safe to receive duplicates.
func (h *Handlers) Ping(c *fiber.Ctx) error {
	token := c.Params("token")
	if token == "" {
		return c.SendStatus(fiber.StatusBadRequest)
	}

	ok, err := h.Reconciler.HandlePing(context.Background(), token)
	if errors.Is(err, store.ErrNotFound) || !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "unknown token"})
	}
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "ping failed"})
	}
	return c.JSON(fiber.Map{"status": "ok"})
}

// Evaluate handles POST /api/evaluate — runs one full reconciliation pass
// synchronously and reports completion.
func (h *Handlers) Evaluate(c *fiber.Ctx) error {
	n, err := h.Scheduler.RunNow(c.Context())
	if errors.Is(err, reconcile.ErrPassRunning) {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "pass already running"})
	}
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "evaluation failed"})
	}
	return c.JSON(fiber.Map{"status": "ok", "evaluated": n})
}

// GetSubscribers returns all subscribers with their light state. The response
// is cached server-side so dashboards don't hit the DB on every poll.
func (h *Handlers) GetSubscribers(c *fiber.Ctx) error {
	h.listCacheMu.RLock()
	if h.listCache != nil && time.Since(h.listCacheAt) < ListCacheTTL {
		data := h.listCache
		h.listCacheMu.RUnlock()
		return sendCached(c, data)
	}
	h.listCacheMu.RUnlock()

	h.listCacheMu.Lock()
	defer h.listCacheMu.Unlock()

	// Double-check after acquiring the write lock.
	if h.listCache != nil && time.Since(h.listCacheAt) < ListCacheTTL {
		return sendCached(c, h.listCache)
	}

	subs, err := h.Store.GetAll(context.Background())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to load subscribers"})
	}

	now := time.Now()
	result := make([]fiber.Map, 0, len(subs))
	for _, s := range subs {
		result = append(result, fiber.Map{
			"chat_id":        s.ChatID,
			"light_on":       s.LightOn,
			"mode":           s.Mode,
			"suppressed":     s.Suppressed,
			"state_duration": models.FormatDuration(now.Sub(s.StateStartAt)),
			"prev_duration":  s.PrevDuration,
		})
	}

	data, err := json.Marshal(result)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "marshal error"})
	}

	h.listCache = data
	h.listCacheAt = now
	return sendCached(c, data)
}

func sendCached(c *fiber.Ctx, data []byte) error {
	c.Set("Content-Type", "application/json")
	c.Set("Cache-Control", "public, max-age="+strconv.Itoa(ListCacheMaxAgeSec))
	return c.Send(data)
}

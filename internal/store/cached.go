package store

import (
	"context"
	"time"

	"lights-watch/internal/models"

	"lights-watch/internal/ttlmap"
)

// allKey is the single key under which the full subscriber list is cached.
const allKey = 0

// Cached fronts a DB with a short-TTL in-process read cache. Every
// state-changing write invalidates the touched subscriber and the list cache
// before returning — stale reads after a write are a correctness bug in the
// reconciler. Token lookups bypass the cache: the ping path wants freshness.
type Cached struct {
	db   *DB
	byID *ttlmap.Map[int64, *models.Subscriber]
	all  *ttlmap.Map[int, []*models.Subscriber]
}

func NewCached(db *DB, ttl time.Duration) *Cached {
	return &Cached{
		db:   db,
		byID: ttlmap.New[int64, *models.Subscriber](ttl),
		all:  ttlmap.New[int, []*models.Subscriber](ttl),
	}
}

func (c *Cached) invalidate(chatID int64) {
	c.byID.Delete(chatID)
	c.all.Delete(allKey)
}

func (c *Cached) Get(ctx context.Context, chatID int64) (*models.Subscriber, error) {
	if s, ok := c.byID.Get(chatID); ok {
		return s, nil
	}
	s, err := c.db.Get(ctx, chatID)
	if err != nil {
		return nil, err
	}
	c.byID.Set(chatID, s)
	return s, nil
}

func (c *Cached) GetByToken(ctx context.Context, token string) (*models.Subscriber, error) {
	return c.db.GetByToken(ctx, token)
}

func (c *Cached) GetAll(ctx context.Context) ([]*models.Subscriber, error) {
	if subs, ok := c.all.Get(allKey); ok {
		return subs, nil
	}
	subs, err := c.db.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	c.all.Set(allKey, subs)
	return subs, nil
}

func (c *Cached) GetProbed(ctx context.Context) ([]*models.Subscriber, error) {
	return c.db.GetProbed(ctx)
}

func (c *Cached) Upsert(ctx context.Context, chatID int64, username, firstName string) (*models.Subscriber, error) {
	c.invalidate(chatID)
	return c.db.Upsert(ctx, chatID, username, firstName)
}

func (c *Cached) SetState(ctx context.Context, chatID int64, lightOn bool, startAt time.Time, prevDuration string) error {
	c.invalidate(chatID)
	return c.db.SetState(ctx, chatID, lightOn, startAt, prevDuration)
}

func (c *Cached) SetLiveness(ctx context.Context, chatID int64, at time.Time) error {
	c.invalidate(chatID)
	return c.db.SetLiveness(ctx, chatID, at)
}

func (c *Cached) SaveAddress(ctx context.Context, chatID int64, city, street, house string) error {
	c.invalidate(chatID)
	return c.db.SaveAddress(ctx, chatID, city, street, house)
}

func (c *Cached) SetSuppressed(ctx context.Context, chatID int64, suppressed bool) error {
	c.invalidate(chatID)
	return c.db.SetSuppressed(ctx, chatID, suppressed)
}

func (c *Cached) SetPinnedMessage(ctx context.Context, chatID int64, messageID int) error {
	c.invalidate(chatID)
	return c.db.SetPinnedMessage(ctx, chatID, messageID)
}

func (c *Cached) SetMode(ctx context.Context, chatID int64, mode models.Mode) error {
	c.invalidate(chatID)
	return c.db.SetMode(ctx, chatID, mode)
}

func (c *Cached) SetProbeTarget(ctx context.Context, chatID int64, target string) error {
	c.invalidate(chatID)
	return c.db.SetProbeTarget(ctx, chatID, target)
}

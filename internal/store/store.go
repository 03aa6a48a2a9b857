package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"lights-watch/internal/models"
)

// ErrNotFound is returned when no subscriber matches the lookup key.
var ErrNotFound = errors.New("subscriber not found")

type DB struct {
	Pool *pgxpool.Pool
}

func New(ctx context.Context, databaseURL string) (*DB, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &DB{Pool: pool}, nil
}

func (db *DB) Close() {
	db.Pool.Close()
}

// Migrate creates the schema if it doesn't exist.
func (db *DB) Migrate(ctx context.Context) error {
	sql := `
	CREATE TABLE IF NOT EXISTS subscribers (
		chat_id           BIGINT PRIMARY KEY,
		token             UUID UNIQUE NOT NULL DEFAULT gen_random_uuid(),
		username          TEXT NOT NULL DEFAULT '',
		first_name        TEXT NOT NULL DEFAULT '',
		last_ping_at      TIMESTAMPTZ,
		light_on          BOOLEAN NOT NULL DEFAULT TRUE,
		state_start_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		prev_duration     TEXT NOT NULL DEFAULT '',
		pinned_message_id INT NOT NULL DEFAULT 0,
		city              TEXT NOT NULL DEFAULT '',
		street            TEXT NOT NULL DEFAULT '',
		house             TEXT NOT NULL DEFAULT '',
		suppressed        BOOLEAN NOT NULL DEFAULT FALSE,
		mode              TEXT NOT NULL DEFAULT 'none',
		probe_target      TEXT NOT NULL DEFAULT '',
		created_at        TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_subscribers_token ON subscribers(token);
	`
	_, err := db.Pool.Exec(ctx, sql)
	return err
}

const subscriberCols = `chat_id, token, username, first_name, last_ping_at,
	       light_on, state_start_at, prev_duration, pinned_message_id,
	       city, street, house, suppressed, mode, probe_target, created_at`

func scanSubscriber(row pgx.Row) (*models.Subscriber, error) {
	var s models.Subscriber
	err := row.Scan(
		&s.ChatID, &s.Token, &s.Username, &s.FirstName, &s.LastPingAt,
		&s.LightOn, &s.StateStartAt, &s.PrevDuration, &s.PinnedMessageID,
		&s.City, &s.Street, &s.House, &s.Suppressed, &s.Mode, &s.ProbeTarget, &s.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &s, nil
}

// Upsert creates the subscriber on first contact or refreshes the profile fields.
func (db *DB) Upsert(ctx context.Context, chatID int64, username, firstName string) (*models.Subscriber, error) {
	row := db.Pool.QueryRow(ctx, `
		INSERT INTO subscribers (chat_id, username, first_name)
		VALUES ($1, $2, $3)
		ON CONFLICT (chat_id) DO UPDATE SET username = $2, first_name = $3
		RETURNING `+subscriberCols,
		chatID, username, firstName)
	return scanSubscriber(row)
}

// Get returns a subscriber by chat id.
func (db *DB) Get(ctx context.Context, chatID int64) (*models.Subscriber, error) {
	row := db.Pool.QueryRow(ctx, `SELECT `+subscriberCols+` FROM subscribers WHERE chat_id = $1`, chatID)
	return scanSubscriber(row)
}

// GetByToken returns a subscriber by its unique ping token.
func (db *DB) GetByToken(ctx context.Context, token string) (*models.Subscriber, error) {
	row := db.Pool.QueryRow(ctx, `SELECT `+subscriberCols+` FROM subscribers WHERE token = $1`, token)
	return scanSubscriber(row)
}

// GetAll returns every subscriber.
func (db *DB) GetAll(ctx context.Context) ([]*models.Subscriber, error) {
	rows, err := db.Pool.Query(ctx, `SELECT `+subscriberCols+` FROM subscribers ORDER BY chat_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var subs []*models.Subscriber
	for rows.Next() {
		s, err := scanSubscriber(rows)
		if err != nil {
			return nil, err
		}
		subs = append(subs, s)
	}
	return subs, rows.Err()
}

// GetProbed returns subscribers with an ICMP probe target configured.
func (db *DB) GetProbed(ctx context.Context) ([]*models.Subscriber, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT `+subscriberCols+` FROM subscribers
		WHERE probe_target != '' AND NOT suppressed
		ORDER BY chat_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var subs []*models.Subscriber
	for rows.Next() {
		s, err := scanSubscriber(rows)
		if err != nil {
			return nil, err
		}
		subs = append(subs, s)
	}
	return subs, rows.Err()
}

// SetState flips the light state, records when the new state began and how
// long the previous one lasted. Called only at transition instants.
func (db *DB) SetState(ctx context.Context, chatID int64, lightOn bool, startAt time.Time, prevDuration string) error {
	_, err := db.Pool.Exec(ctx, `
		UPDATE subscribers
		SET light_on = $2, state_start_at = $3, prev_duration = $4
		WHERE chat_id = $1
	`, chatID, lightOn, startAt, prevDuration)
	return err
}

// SetLiveness records the most recent ping time.
func (db *DB) SetLiveness(ctx context.Context, chatID int64, at time.Time) error {
	_, err := db.Pool.Exec(ctx, `
		UPDATE subscribers SET last_ping_at = $2 WHERE chat_id = $1
	`, chatID, at)
	return err
}

// SaveAddress stores the subscriber's outage address. House may be empty,
// meaning the whole street.
func (db *DB) SaveAddress(ctx context.Context, chatID int64, city, street, house string) error {
	_, err := db.Pool.Exec(ctx, `
		UPDATE subscribers SET city = $2, street = $3, house = $4 WHERE chat_id = $1
	`, chatID, city, street, house)
	return err
}

// SetSuppressed toggles the opt-out flag. Suppressed records stay in the table.
func (db *DB) SetSuppressed(ctx context.Context, chatID int64, suppressed bool) error {
	_, err := db.Pool.Exec(ctx, `
		UPDATE subscribers SET suppressed = $2 WHERE chat_id = $1
	`, chatID, suppressed)
	return err
}

// SetPinnedMessage records the handle of the live-status message.
func (db *DB) SetPinnedMessage(ctx context.Context, chatID int64, messageID int) error {
	_, err := db.Pool.Exec(ctx, `
		UPDATE subscribers SET pinned_message_id = $2 WHERE chat_id = $1
	`, chatID, messageID)
	return err
}

// SetMode persists the cached mode classification.
func (db *DB) SetMode(ctx context.Context, chatID int64, mode models.Mode) error {
	_, err := db.Pool.Exec(ctx, `
		UPDATE subscribers SET mode = $2 WHERE chat_id = $1
	`, chatID, mode)
	return err
}

// SetProbeTarget stores the IP/host the probe checker should ping.
func (db *DB) SetProbeTarget(ctx context.Context, chatID int64, target string) error {
	_, err := db.Pool.Exec(ctx, `
		UPDATE subscribers SET probe_target = $2 WHERE chat_id = $1
	`, chatID, target)
	return err
}

package reconcile

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lights-watch/internal/models"
	"lights-watch/internal/outage"
	"lights-watch/internal/store"
)

// ── Fakes ────────────────────────────────────────────────────────────

type fakeStore struct {
	mu          sync.Mutex
	subs        map[int64]*models.Subscriber
	stateWrites int
}

func newFakeStore(subs ...*models.Subscriber) *fakeStore {
	f := &fakeStore{subs: make(map[int64]*models.Subscriber)}
	for _, s := range subs {
		f.subs[s.ChatID] = s
	}
	return f
}

func (f *fakeStore) Get(_ context.Context, chatID int64) (*models.Subscriber, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.subs[chatID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return s, nil
}

func (f *fakeStore) GetByToken(_ context.Context, token string) (*models.Subscriber, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.subs {
		if s.Token == token {
			return s, nil
		}
	}
	return nil, store.ErrNotFound
}

func (f *fakeStore) GetAll(_ context.Context) ([]*models.Subscriber, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Subscriber
	for _, s := range f.subs {
		out = append(out, s)
	}
	return out, nil
}

func (f *fakeStore) SetState(_ context.Context, chatID int64, lightOn bool, startAt time.Time, prevDuration string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := f.subs[chatID]
	s.LightOn = lightOn
	s.StateStartAt = startAt
	s.PrevDuration = prevDuration
	f.stateWrites++
	return nil
}

func (f *fakeStore) SetLiveness(_ context.Context, chatID int64, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	t := at
	f.subs[chatID].LastPingAt = &t
	return nil
}

func (f *fakeStore) SetMode(_ context.Context, chatID int64, m models.Mode) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subs[chatID].Mode = m
	return nil
}

type fakeLiveness struct {
	mu    sync.Mutex
	times map[int64]time.Time
}

func newFakeLiveness() *fakeLiveness {
	return &fakeLiveness{times: make(map[int64]time.Time)}
}

func (f *fakeLiveness) GetLiveness(_ context.Context, chatID int64) (time.Time, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.times[chatID]
	if !ok {
		return time.Time{}, errors.New("no liveness")
	}
	return t, nil
}

func (f *fakeLiveness) SetLiveness(_ context.Context, chatID int64, t time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.times[chatID] = t
	return nil
}

type fakeSummaries struct {
	mu      sync.Mutex
	summary outage.Summary
	calls   int
}

func (f *fakeSummaries) GetOrFetch(_ context.Context, _, _, _ string) outage.Summary {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.summary
}

type notification struct {
	chatID  int64
	lightOn bool
	prev    time.Duration
	detail  string
}

type fakeNotifier struct {
	mu       sync.Mutex
	sent     []notification
	pinTexts []string
}

func (f *fakeNotifier) NotifyStateChange(chatID int64, lightOn bool, prev time.Duration, _ time.Time, detail string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, notification{chatID, lightOn, prev, detail})
}

func (f *fakeNotifier) RefreshPinned(_ int64, text string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pinTexts = append(f.pinTexts, text)
}

func (f *fakeNotifier) notifications() []notification {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]notification(nil), f.sent...)
}

// ── Harness ──────────────────────────────────────────────────────────

type harness struct {
	rec       *Reconciler
	store     *fakeStore
	liveness  *fakeLiveness
	summaries *fakeSummaries
	notifier  *fakeNotifier
	now       time.Time
}

func newHarness(t *testing.T, subs ...*models.Subscriber) *harness {
	t.Helper()
	h := &harness{
		store:     newFakeStore(subs...),
		liveness:  newFakeLiveness(),
		summaries: &fakeSummaries{},
		notifier:  &fakeNotifier{},
		now:       time.Date(2025, 1, 10, 12, 0, 0, 0, time.UTC),
	}
	h.rec = New(h.store, h.liveness, h.summaries, h.notifier, 180, 900, 4)
	h.rec.now = func() time.Time { return h.now }
	h.rec.startupAt = h.now.Add(-time.Hour) // past the grace period
	h.rec.outageChecked.SetClock(func() time.Time { return h.now })
	return h
}

func (h *harness) advance(d time.Duration) {
	h.now = h.now.Add(d)
}

func pingSubscriber(chatID int64) *models.Subscriber {
	return &models.Subscriber{
		ChatID:       chatID,
		Token:        "tok",
		LightOn:      true,
		StateStartAt: time.Date(2025, 1, 10, 12, 0, 0, 0, time.UTC),
		Mode:         models.ModeNone,
	}
}

func outageSubscriber(chatID int64) *models.Subscriber {
	return &models.Subscriber{
		ChatID:       chatID,
		LightOn:      true,
		StateStartAt: time.Date(2025, 1, 10, 12, 0, 0, 0, time.UTC),
		City:         "Київ",
		Street:       "Хрещатик",
		House:        "12",
		Mode:         models.ModeOutage,
	}
}

// ── Tests ────────────────────────────────────────────────────────────

func TestPingWhileOnIsIdempotent(t *testing.T) {
	s := pingSubscriber(1)
	h := newHarness(t, s)
	ctx := context.Background()

	startAt := s.StateStartAt
	for range 5 {
		h.advance(30 * time.Second)
		ok, err := h.rec.HandlePing(ctx, "tok")
		require.NoError(t, err)
		require.True(t, ok)
	}

	assert.Equal(t, startAt, s.StateStartAt, "state start must not move on pings while On")
	assert.Empty(t, h.notifier.notifications())
	assert.Zero(t, h.store.stateWrites)
}

func TestPingUnknownToken(t *testing.T) {
	h := newHarness(t, pingSubscriber(1))
	_, err := h.rec.HandlePing(context.Background(), "nope")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestLivenessTimeoutTransitionsOff(t *testing.T) {
	s := pingSubscriber(1)
	h := newHarness(t, s)
	ctx := context.Background()

	// Ping at T0, evaluate at T0+181s with a 180s timeout.
	_, err := h.rec.HandlePing(ctx, "tok")
	require.NoError(t, err)

	h.advance(181 * time.Second)
	require.NoError(t, h.rec.Evaluate(ctx, s))

	assert.False(t, s.LightOn)
	assert.Equal(t, h.now, s.StateStartAt, "new state starts at the evaluation instant")
	assert.Equal(t, models.FormatDuration(181*time.Second), s.PrevDuration)

	ns := h.notifier.notifications()
	require.Len(t, ns, 1)
	assert.False(t, ns[0].lightOn)
	assert.Equal(t, 181*time.Second, ns[0].prev)
}

func TestLivenessWithinTimeoutNoTransition(t *testing.T) {
	s := pingSubscriber(1)
	h := newHarness(t, s)
	ctx := context.Background()

	_, err := h.rec.HandlePing(ctx, "tok")
	require.NoError(t, err)

	h.advance(179 * time.Second)
	require.NoError(t, h.rec.Evaluate(ctx, s))

	assert.True(t, s.LightOn)
	assert.Empty(t, h.notifier.notifications())
}

func TestPingWhileOffTransitionsOn(t *testing.T) {
	s := pingSubscriber(1)
	s.LightOn = false
	s.StateStartAt = time.Date(2025, 1, 10, 10, 0, 0, 0, time.UTC)
	h := newHarness(t, s)

	ok, err := h.rec.HandlePing(context.Background(), "tok")
	require.NoError(t, err)
	require.True(t, ok)

	assert.True(t, s.LightOn)
	assert.Equal(t, models.FormatDuration(2*time.Hour), s.PrevDuration)

	ns := h.notifier.notifications()
	require.Len(t, ns, 1)
	assert.True(t, ns[0].lightOn)
}

func TestGracePeriodSuppressesOffTransition(t *testing.T) {
	s := pingSubscriber(1)
	past := time.Date(2025, 1, 10, 11, 0, 0, 0, time.UTC)
	s.LastPingAt = &past
	h := newHarness(t, s)
	h.rec.startupAt = h.now // just restarted

	require.NoError(t, h.rec.Evaluate(context.Background(), s))
	assert.True(t, s.LightOn, "no Off transitions during the startup grace period")
	assert.Empty(t, h.notifier.notifications())
}

func TestOutageDisagreementFlipsState(t *testing.T) {
	s := outageSubscriber(2)
	h := newHarness(t, s)
	h.summaries.summary = outage.Summary{InferredOff: true, Message: "відключення"}

	h.advance(time.Hour)
	require.NoError(t, h.rec.Evaluate(context.Background(), s))

	assert.False(t, s.LightOn)
	assert.Equal(t, models.FormatDuration(time.Hour), s.PrevDuration)

	ns := h.notifier.notifications()
	require.Len(t, ns, 1)
	assert.Equal(t, "відключення", ns[0].detail)
}

func TestOutageAgreementNoTransition(t *testing.T) {
	s := outageSubscriber(2)
	h := newHarness(t, s)
	h.summaries.summary = outage.Summary{InferredOff: false}

	startAt := s.StateStartAt
	require.NoError(t, h.rec.Evaluate(context.Background(), s))

	assert.True(t, s.LightOn)
	assert.Equal(t, startAt, s.StateStartAt, "agreement never resets the start time")
	assert.Empty(t, h.notifier.notifications())
	assert.Zero(t, h.store.stateWrites)
}

func TestOutageFetchFailureNeverFlips(t *testing.T) {
	s := outageSubscriber(2)
	s.LightOn = false
	h := newHarness(t, s)
	// A failed fetch reports InferredOff=false, which disagrees with the
	// stored Off state — but Failed summaries carry no evidence.
	h.summaries.summary = outage.Summary{InferredOff: false, Failed: true}

	require.NoError(t, h.rec.Evaluate(context.Background(), s))

	assert.False(t, s.LightOn, "fetch failure must not flip the state")
	assert.Empty(t, h.notifier.notifications())
}

func TestOutageCheckThrottled(t *testing.T) {
	s := outageSubscriber(2)
	h := newHarness(t, s)
	ctx := context.Background()

	require.NoError(t, h.rec.Evaluate(ctx, s))
	require.Equal(t, 1, h.summaries.calls)

	// Second evaluation within the 15-minute throttle skips the source.
	h.advance(time.Minute)
	require.NoError(t, h.rec.Evaluate(ctx, s))
	assert.Equal(t, 1, h.summaries.calls)

	h.advance(15 * time.Minute)
	require.NoError(t, h.rec.Evaluate(ctx, s))
	assert.Equal(t, 2, h.summaries.calls)
}

func TestFullModeLivenessGoverns(t *testing.T) {
	s := pingSubscriber(3)
	s.City, s.Street, s.House = "Київ", "Хрещатик", "12"
	h := newHarness(t, s)
	ctx := context.Background()

	_, err := h.rec.HandlePing(ctx, "tok")
	require.NoError(t, err)

	// Outage data says off, but pings are fresh: no transition in full mode.
	h.summaries.summary = outage.Summary{InferredOff: true, Message: "відключення"}
	h.advance(60 * time.Second)
	require.NoError(t, h.rec.Evaluate(ctx, s))
	assert.True(t, s.LightOn)
	assert.Empty(t, h.notifier.notifications())

	// Once pings go stale, the Off notification carries the advisory text.
	h.advance(181 * time.Second)
	require.NoError(t, h.rec.Evaluate(ctx, s))
	ns := h.notifier.notifications()
	require.Len(t, ns, 1)
	assert.False(t, ns[0].lightOn)
	assert.Equal(t, "відключення", ns[0].detail)
}

func TestEvaluateAllSkipsSuppressed(t *testing.T) {
	a := outageSubscriber(1)
	b := outageSubscriber(2)
	b.Suppressed = true
	h := newHarness(t, a, b)
	h.summaries.summary = outage.Summary{InferredOff: true, Message: "відключення"}

	n, err := h.rec.EvaluateAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	assert.True(t, b.LightOn, "suppressed subscribers are invisible to the write path")
	for _, note := range h.notifier.notifications() {
		assert.NotEqual(t, int64(2), note.chatID)
	}
}

func TestSchedulerSkipsOverlappingPass(t *testing.T) {
	h := newHarness(t, outageSubscriber(1))
	sched := NewScheduler(h.rec, 60)

	sched.running.Lock()
	_, err := sched.RunNow(context.Background())
	assert.ErrorIs(t, err, ErrPassRunning)
	sched.running.Unlock()

	n, err := sched.RunNow(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

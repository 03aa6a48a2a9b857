package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lights-watch/internal/models"
)

type sentMsg struct {
	chatID int64
	text   string
}

type mockMessenger struct {
	mu      sync.Mutex
	sent    []sentMsg
	edits   []sentMsg
	pins    []int
	nextID  int
	editErr error
	pinErr  error
}

func (m *mockMessenger) Send(chatID int64, text string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentMsg{chatID, text})
	m.nextID++
	return m.nextID, nil
}

func (m *mockMessenger) Edit(chatID int64, _ int, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.edits = append(m.edits, sentMsg{chatID, text})
	return m.editErr
}

func (m *mockMessenger) Pin(_ int64, messageID int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pins = append(m.pins, messageID)
	return m.pinErr
}

func (m *mockMessenger) sentCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

type mockPinStore struct {
	mu       sync.Mutex
	pinnedID int
	saved    []int
}

func (p *mockPinStore) Get(_ context.Context, chatID int64) (*models.Subscriber, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return &models.Subscriber{ChatID: chatID, PinnedMessageID: p.pinnedID}, nil
}

func (p *mockPinStore) SetPinnedMessage(_ context.Context, _ int64, messageID int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pinnedID = messageID
	p.saved = append(p.saved, messageID)
	return nil
}

func TestNotifyDedupWindow(t *testing.T) {
	m := &mockMessenger{}
	d := NewDispatcher(m, &mockPinStore{})

	assert.True(t, d.Notify(1, "світла немає"))
	assert.False(t, d.Notify(1, "світла немає"), "identical text within the window is suppressed")
	assert.True(t, d.Notify(1, "світло є"), "different text passes")
	assert.True(t, d.Notify(2, "світла немає"), "same text to another chat passes")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.Run(ctx)

	require.Eventually(t, func() bool { return m.sentCount() == 3 },
		2*time.Second, 10*time.Millisecond)
}

func TestRefreshPinnedEditsInPlace(t *testing.T) {
	m := &mockMessenger{}
	p := &mockPinStore{pinnedID: 77}
	d := NewDispatcher(m, p)

	require.NoError(t, d.RefreshPinned(context.Background(), 1, "🟢 Світло є"))

	assert.Len(t, m.edits, 1)
	assert.Empty(t, m.sent, "existing pinned message is edited, not resent")
}

func TestRefreshPinnedSwallowsUnchanged(t *testing.T) {
	m := &mockMessenger{editErr: ErrUnchanged}
	d := NewDispatcher(m, &mockPinStore{pinnedID: 77})

	require.NoError(t, d.RefreshPinned(context.Background(), 1, "🟢 Світло є"))
	assert.Empty(t, m.sent, "unchanged-content edit error is swallowed")
}

func TestRefreshPinnedSendsAndPinsWhenMissing(t *testing.T) {
	m := &mockMessenger{}
	p := &mockPinStore{}
	d := NewDispatcher(m, p)

	require.NoError(t, d.RefreshPinned(context.Background(), 1, "🟢 Світло є"))

	require.Len(t, m.sent, 1)
	assert.Equal(t, []int{1}, m.pins)
	assert.Equal(t, []int{1}, p.saved, "new handle recorded")
}

func TestRefreshPinnedPinFailureNonFatal(t *testing.T) {
	m := &mockMessenger{pinErr: errors.New("not enough rights")}
	p := &mockPinStore{}
	d := NewDispatcher(m, p)

	assert.NoError(t, d.RefreshPinned(context.Background(), 1, "🟢 Світло є"))
	assert.Len(t, m.sent, 1)
}

func TestRefreshPinnedResendsWhenEditFails(t *testing.T) {
	m := &mockMessenger{editErr: errors.New("message to edit not found")}
	p := &mockPinStore{pinnedID: 77}
	d := NewDispatcher(m, p)

	require.NoError(t, d.RefreshPinned(context.Background(), 1, "🟢 Світло є"))

	require.Len(t, m.sent, 1, "deleted pinned message is replaced")
	assert.Equal(t, []int{1}, p.saved)
}

func TestRefreshPinnedThrottled(t *testing.T) {
	m := &mockMessenger{}
	d := NewDispatcher(m, &mockPinStore{pinnedID: 77})
	ctx := context.Background()

	require.NoError(t, d.RefreshPinned(ctx, 1, "a"))
	require.NoError(t, d.RefreshPinned(ctx, 1, "b"))

	assert.Len(t, m.edits, 1, "second refresh within the throttle window is skipped")
}

package mode

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lights-watch/internal/models"
)

type mockWriter struct {
	calls []models.Mode
	err   error
}

func (m *mockWriter) SetMode(_ context.Context, _ int64, mode models.Mode) error {
	m.calls = append(m.calls, mode)
	return m.err
}

func sub(city, street string, pinged bool) *models.Subscriber {
	s := &models.Subscriber{ChatID: 1, City: city, Street: street, Mode: models.ModeNone}
	if pinged {
		t := time.Now()
		s.LastPingAt = &t
	}
	return s
}

func TestClassifyTotality(t *testing.T) {
	cases := []struct {
		name   string
		city   string
		street string
		pinged bool
		want   models.Mode
	}{
		{"neither", "", "", false, models.ModeNone},
		{"liveness only", "", "", true, models.ModePing},
		{"address only", "Київ", "Хрещатик", false, models.ModeOutage},
		{"both", "Київ", "Хрещатик", true, models.ModeFull},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Classify(sub(tc.city, tc.street, tc.pinged)))
		})
	}
}

func TestClassifyRequiresBothAddressFields(t *testing.T) {
	// City without street is not a usable address.
	assert.Equal(t, models.ModeNone, Classify(sub("Київ", "", false)))
	assert.Equal(t, models.ModeNone, Classify(sub("", "Хрещатик", false)))
}

func TestEnsureWritesOnlyOnChange(t *testing.T) {
	w := &mockWriter{}
	e := NewEnsurer(w)

	s := sub("Київ", "Хрещатик", false)
	got := e.Ensure(context.Background(), s)
	require.Equal(t, models.ModeOutage, got)
	require.Len(t, w.calls, 1)
	assert.Equal(t, models.ModeOutage, s.Mode, "record updated in place")

	// Mode unchanged — no further write.
	e.Ensure(context.Background(), s)
	assert.Len(t, w.calls, 1)
}

func TestEnsureDebouncesRacingWrites(t *testing.T) {
	w := &mockWriter{}
	e := NewEnsurer(w)

	// Two evaluations race over the same subscriber; the second sees the old
	// stored mode but the debounce window suppresses its write.
	a := sub("Київ", "Хрещатик", false)
	b := sub("Київ", "Хрещатик", false)

	e.Ensure(context.Background(), a)
	got := e.Ensure(context.Background(), b)

	assert.Equal(t, models.ModeOutage, got)
	assert.Len(t, w.calls, 1, "debounce window must suppress the racing write")
}

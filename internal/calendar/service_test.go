package calendar

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smileright/dental-frontdesk/internal/clinic"
	"github.com/smileright/dental-frontdesk/internal/knowledge"
)

func newTestService(t *testing.T) (*Service, *MemoryStore) {
	t.Helper()
	store := NewMemoryStore()
	svc := NewService(clinic.Default(), store, knowledge.NewCatalog(nil), Options{}, nil)
	return svc, store
}

func TestIsWithinBusinessHours(t *testing.T) {
	svc, _ := newTestService(t)

	tests := []struct {
		name     string
		date     string
		time     string
		duration int
		want     bool
	}{
		{"monday morning", "2024-01-08", "09:00", 45, true},
		{"ends at noon exactly", "2024-01-08", "11:30", 30, true},
		{"spills into lunch gap", "2024-01-08", "11:45", 30, false},
		{"inside lunch gap", "2024-01-08", "12:15", 30, false},
		{"afternoon start", "2024-01-08", "13:00", 60, true},
		{"ends at close exactly", "2024-01-08", "17:30", 30, true},
		{"spills past close", "2024-01-08", "17:45", 30, false},
		{"before open", "2024-01-08", "07:30", 30, false},
		{"saturday", "2024-01-06", "10:00", 30, false},
		{"sunday", "2024-01-07", "10:00", 30, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := svc.IsWithinBusinessHours(tt.date, tt.time, tt.duration)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestIsWithinBusinessHoursRejectsMalformed(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.IsWithinBusinessHours("tomorrow", "09:00", 30)
	assert.ErrorIs(t, err, ErrInvalidSlot)
	_, err = svc.IsWithinBusinessHours("2024-01-08", "9 o'clock", 30)
	assert.ErrorIs(t, err, ErrInvalidSlot)
	_, err = svc.IsWithinBusinessHours("2024-01-08", "09:00", 0)
	assert.ErrorIs(t, err, ErrInvalidSlot)
}

func TestCheckConflictHalfOpenIntervals(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	_, err := svc.Book(ctx, "pat-1", "2024-01-08", "09:00", 45, "")
	require.NoError(t, err)

	// Overlapping start.
	c, err := svc.CheckConflict(ctx, "2024-01-08", "09:30", 30)
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.Equal(t, "09:00", c.Time)

	// Back-to-back is not a conflict: intervals are half-open.
	c, err = svc.CheckConflict(ctx, "2024-01-08", "09:45", 30)
	require.NoError(t, err)
	assert.Nil(t, c)

	// Ending exactly at the existing start is fine too.
	c, err = svc.CheckConflict(ctx, "2024-01-08", "08:30", 30)
	require.NoError(t, err)
	assert.Nil(t, c)
}

func TestBookOutsideHours(t *testing.T) {
	svc, _ := newTestService(t)

	// Saturday is always closed.
	_, err := svc.Book(context.Background(), "pat-1", "2024-01-06", "10:00", 90, "root_canal")
	assert.ErrorIs(t, err, ErrOutsideBusinessHours)
}

func TestBookCopiesTreatmentDurationAndCost(t *testing.T) {
	svc, _ := newTestService(t)

	appt, err := svc.Book(context.Background(), "pat-1", "2024-01-08", "09:00", 0, "root_canal")
	require.NoError(t, err)
	assert.Equal(t, 90, appt.DurationMinutes)
	assert.Equal(t, "$800-$1200", appt.EstimatedCostRange)
	assert.Equal(t, StatusScheduled, appt.Status)
}

func TestBookCommitTimeConflict(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	_, err := svc.Book(ctx, "pat-1", "2024-01-08", "09:00", 45, "")
	require.NoError(t, err)

	_, err = svc.Book(ctx, "pat-2", "2024-01-08", "09:30", 30, "")
	assert.ErrorIs(t, err, ErrSlotUnavailable)
}

func TestConcurrentBookingsSameSlot(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	const callers = 8
	var wg sync.WaitGroup
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Book(ctx, "pat-x", "2024-01-08", "09:00", 45, "")
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		} else {
			assert.ErrorIs(t, err, ErrSlotUnavailable)
		}
	}
	assert.Equal(t, 1, succeeded, "exactly one concurrent booking should win the slot")
}

func TestSuggestAlternativesSkipsWeekend(t *testing.T) {
	svc, _ := newTestService(t)

	// Saturday request rolls forward to Monday slots.
	slots, err := svc.SuggestAlternatives(context.Background(), "2024-01-06", "10:00", 45, 3)
	require.NoError(t, err)
	require.Len(t, slots, 3)
	for _, s := range slots {
		assert.Equal(t, "2024-01-08", s.Date)
	}
	assert.Equal(t, "08:00", slots[0].Time)
	assert.Equal(t, "08:30", slots[1].Time)
	assert.Equal(t, "09:00", slots[2].Time)
}

func TestSuggestAlternativesAvoidsBookedSlots(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	_, err := svc.Book(ctx, "pat-1", "2024-01-08", "09:30", 30, "")
	require.NoError(t, err)

	slots, err := svc.SuggestAlternatives(ctx, "2024-01-08", "09:00", 30, 3)
	require.NoError(t, err)
	require.Len(t, slots, 3)
	assert.Equal(t, Slot{Date: "2024-01-08", Time: "09:00", DurationMinutes: 30}, slots[0])
	assert.Equal(t, "10:00", slots[1].Time, "booked 09:30 slot must be skipped")
	assert.Equal(t, "10:30", slots[2].Time)
}

func TestSuggestAlternativesDeterministic(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	first, err := svc.SuggestAlternatives(ctx, "2024-01-08", "16:00", 60, 5)
	require.NoError(t, err)
	second, err := svc.SuggestAlternatives(ctx, "2024-01-08", "16:00", 60, 5)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	// Only 16:00 and 17:00 fit a 60-minute visit on the requested afternoon;
	// the rest roll over to the next business day.
	assert.Equal(t, "16:00", first[0].Time)
	assert.Equal(t, "17:00", first[1].Time)
	assert.Equal(t, "2024-01-09", first[2].Date)
}

func TestCancelFreesSlot(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	appt, err := svc.Book(ctx, "pat-1", "2024-01-08", "09:00", 45, "")
	require.NoError(t, err)
	require.NoError(t, svc.Cancel(ctx, appt.ID))

	// The cancelled interval no longer blocks new bookings.
	_, err = svc.Book(ctx, "pat-2", "2024-01-08", "09:00", 45, "")
	assert.NoError(t, err)

	assert.ErrorIs(t, svc.Cancel(ctx, "missing"), ErrNotFound)
}

func TestScheduleSummary(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	_, err := svc.Book(ctx, "pat-1", "2024-01-08", "08:00", 30, "")
	require.NoError(t, err)

	sum, err := svc.ScheduleSummary(ctx, "2024-01-08")
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Booked)
	assert.Equal(t, "08:30", sum.NextAvailable)
}

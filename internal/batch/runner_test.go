package batch

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rallyhq/rally/internal/calendar"
	"github.com/rallyhq/rally/internal/clock"
	"github.com/rallyhq/rally/internal/model"
	"github.com/rallyhq/rally/tests/testutil"
)

func strPtr(s string) *string { return &s }

// fakeAdapter is a canned calendar.Adapter. When block is set it waits for
// ctx cancellation, simulating a hung source.
type fakeAdapter struct {
	label  string
	events []model.NormalizedEvent
	err    error
	block  bool
}

func (f *fakeAdapter) Type() model.SourceType { return model.SourceTypeICS }
func (f *fakeAdapter) Label() string          { return f.label }

func (f *fakeAdapter) FetchEvents(
	ctx context.Context,
	w calendar.Window,
) ([]model.NormalizedEvent, error) {
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return f.events, f.err
}

func testConfig() *model.AppConfig {
	return &model.AppConfig{
		Timezone:        "UTC",
		WindowDays:      7,
		FetchTimeoutSec: 1,
		Schedule:        "0 6 * * *",
	}
}

func newTestRunner(t *testing.T, adapters map[string]calendar.Adapter) *Runner {
	t.Helper()

	s := testutil.NewTestStore(t)
	fixed := clock.Fixed{Now: time.Date(2024, time.March, 15, 8, 0, 0, 0, time.UTC)}
	r := NewRunner(s, fixed, testConfig(), nil)
	if adapters != nil {
		r.newAdapter = func(src model.CalendarSource, member string) (calendar.Adapter, error) {
			a, ok := adapters[src.ID]
			if !ok {
				return nil, &calendar.ConfigError{Label: src.Label, Reason: "no adapter"}
			}
			return a, nil
		}
	}
	return r
}

func seedSource(t *testing.T, r *Runner, id, label, memberID string) {
	t.Helper()
	require.NoError(t, r.store.UpsertSource(context.Background(), model.CalendarSource{
		ID:       id,
		Label:    label,
		Type:     model.SourceTypeICS,
		URL:      "http://example.invalid/feed.ics",
		MemberID: memberID,
	}))
}

func seedMember(t *testing.T, r *Runner, id, name string) {
	t.Helper()
	require.NoError(t, r.store.CreateMember(context.Background(),
		model.FamilyMember{ID: id, Name: name}))
}

func TestRunCalendarPassAggregatesAcrossSources(t *testing.T) {
	start := time.Date(2024, time.March, 16, 14, 0, 0, 0, time.UTC)
	dentist := model.NormalizedEvent{
		Summary: "Dentist", Date: "2024-03-16", Time: "2:00 PM UTC", Start: start,
	}

	momEv := dentist
	momEv.Members = []string{"Mom"}
	dadEv := dentist
	dadEv.Members = []string{"Dad"}

	r := newTestRunner(t, map[string]calendar.Adapter{
		"src-mom": &fakeAdapter{label: "Mom's feed", events: []model.NormalizedEvent{momEv}},
		"src-dad": &fakeAdapter{label: "Dad's feed", events: []model.NormalizedEvent{dadEv}},
	})
	seedMember(t, r, "m1", "Mom")
	seedMember(t, r, "m2", "Dad")
	seedSource(t, r, "src-dad", "Dad's feed", "m2")
	seedSource(t, r, "src-mom", "Mom's feed", "m1")

	agg, results, err := r.RunCalendarPass(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 2)
	for _, res := range results {
		require.NoError(t, res.Err)
	}

	require.Len(t, agg.Merged, 1)
	require.ElementsMatch(t, []string{"Mom", "Dad"}, agg.Merged[0].Members)
}

func TestRunCalendarPassPartialFailure(t *testing.T) {
	ok := model.NormalizedEvent{
		Summary: "Soccer", Date: "2024-03-16",
		Start:   time.Date(2024, time.March, 16, 10, 0, 0, 0, time.UTC),
		Members: []string{"Mom"},
	}

	r := newTestRunner(t, map[string]calendar.Adapter{
		"src-ok": &fakeAdapter{label: "good", events: []model.NormalizedEvent{ok}},
		"src-bad": &fakeAdapter{
			label: "bad",
			err:   &calendar.FetchError{Label: "bad", Err: context.DeadlineExceeded},
		},
	})
	seedMember(t, r, "m1", "Mom")
	seedSource(t, r, "src-ok", "good", "m1")
	seedSource(t, r, "src-bad", "bad", "m1")

	agg, results, err := r.RunCalendarPass(context.Background())
	require.NoError(t, err)

	// The failed source is reported but does not hide the healthy one.
	var failed, succeeded int
	for _, res := range results {
		if res.Err != nil {
			failed++
		} else {
			succeeded++
		}
	}
	require.Equal(t, 1, failed)
	require.Equal(t, 1, succeeded)
	require.Len(t, agg.Merged, 1)
	require.Equal(t, "Soccer", agg.Merged[0].Summary)
}

func TestRunCalendarPassConfigErrorSkipsSource(t *testing.T) {
	r := newTestRunner(t, map[string]calendar.Adapter{})
	seedMember(t, r, "m1", "Mom")
	seedSource(t, r, "src-unknown", "mystery", "m1")

	agg, results, err := r.RunCalendarPass(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.True(t, calendar.IsConfigError(results[0].Err))
	require.Empty(t, agg.Merged)
}

func TestRunCalendarPassTimesOutHungSource(t *testing.T) {
	ok := model.NormalizedEvent{
		Summary: "Soccer", Date: "2024-03-16",
		Start:   time.Date(2024, time.March, 16, 10, 0, 0, 0, time.UTC),
		Members: []string{"Mom"},
	}

	r := newTestRunner(t, map[string]calendar.Adapter{
		"src-hung": &fakeAdapter{label: "hung", block: true},
		"src-ok":   &fakeAdapter{label: "good", events: []model.NormalizedEvent{ok}},
	})
	seedMember(t, r, "m1", "Mom")
	seedSource(t, r, "src-hung", "hung", "m1")
	seedSource(t, r, "src-ok", "good", "m1")

	start := time.Now()
	agg, results, err := r.RunCalendarPass(context.Background())
	require.NoError(t, err)
	require.Less(t, time.Since(start), 5*time.Second)

	require.Len(t, results, 2)
	var hungErr error
	for _, res := range results {
		if res.Label == "hung" {
			hungErr = res.Err
		}
	}
	require.ErrorIs(t, hungErr, context.DeadlineExceeded)
	require.Len(t, agg.Merged, 1)
}

func TestRunCalendarPassNoSources(t *testing.T) {
	r := newTestRunner(t, nil)

	agg, results, err := r.RunCalendarPass(context.Background())
	require.NoError(t, err)
	require.Empty(t, results)
	require.Empty(t, agg.Merged)
	require.Empty(t, agg.Groups)
}

func TestRunRecurrenceSweep(t *testing.T) {
	r := newTestRunner(t, nil)

	tpl := model.RecurringTemplate{
		ID:             "tpl-1",
		Title:          "Water plants",
		RecurrenceType: model.RecurrenceDaily,
		HasDueDate:     true,
		Active:         true,
	}
	require.NoError(t, r.store.CreateTemplate(context.Background(), tpl))

	res, err := r.RunRecurrenceSweep(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, res.Created)
	require.Empty(t, res.Skipped)

	open, err := r.store.FindOpenByTemplate(context.Background(), "tpl-1")
	require.NoError(t, err)
	require.NotNil(t, open)
	require.Equal(t, "2024-03-15", *open.DueDate)
}

func TestRunRecurrenceSweepReportsSkips(t *testing.T) {
	r := newTestRunner(t, nil)

	bad := model.RecurringTemplate{
		ID:             "tpl-bad",
		Title:          "Mystery",
		RecurrenceType: "fortnightly",
		Active:         true,
	}
	require.NoError(t, r.store.CreateTemplate(context.Background(), bad))

	res, err := r.RunRecurrenceSweep(context.Background())
	require.NoError(t, err)
	require.Equal(t, 0, res.Created)
	require.Len(t, res.Skipped, 1)
}

func TestBuildAdapterSelectsProtocol(t *testing.T) {
	r := newTestRunner(t, nil)

	a, err := r.buildAdapter(model.CalendarSource{Type: model.SourceTypeICS}, "Mom")
	require.NoError(t, err)
	require.Equal(t, model.SourceTypeICS, a.Type())

	// Sources configured before the type column existed behave as ICS.
	a, err = r.buildAdapter(model.CalendarSource{Type: ""}, "Mom")
	require.NoError(t, err)
	require.Equal(t, model.SourceTypeICS, a.Type())

	a, err = r.buildAdapter(model.CalendarSource{
		Type:     model.SourceTypeCalDAVApple,
		Username: strPtr("mom@x.com"),
		Password: strPtr("pw"),
	}, "Mom")
	require.NoError(t, err)
	require.Equal(t, model.SourceTypeCalDAVApple, a.Type())

	_, err = r.buildAdapter(model.CalendarSource{Type: "carrier-pigeon"}, "Mom")
	require.Error(t, err)
	require.True(t, calendar.IsConfigError(err))
}

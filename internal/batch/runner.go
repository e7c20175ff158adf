// Package batch orchestrates the two independent passes of a scheduling
// tick: the recurrence sweep and the calendar aggregation pass. Per-source
// fetches run concurrently with their own timeouts; aggregation waits for
// all of them, success or failure, before producing output.
package batch

import (
	"context"
	"log/slog"
	"sync"

	"github.com/rallyhq/rally/internal/calendar"
	"github.com/rallyhq/rally/internal/calendar/caldav"
	"github.com/rallyhq/rally/internal/calendar/ics"
	"github.com/rallyhq/rally/internal/clock"
	"github.com/rallyhq/rally/internal/credential"
	"github.com/rallyhq/rally/internal/model"
	"github.com/rallyhq/rally/internal/recurrence"
	"github.com/rallyhq/rally/internal/store"
)

// SourceResult is the explicit outcome of fetching one source: either
// events or the reason the source contributed nothing this cycle.
type SourceResult struct {
	Label  string
	Member string
	Events []model.NormalizedEvent
	Err    error
}

// Runner wires the store, clock, and configuration into the two batch
// passes. The configuration is resolved once and never re-read mid-run.
type Runner struct {
	store  store.Store
	clock  clock.Clock
	cfg    *model.AppConfig
	engine *recurrence.Engine
	logger *slog.Logger

	// newAdapter is swappable in tests. Defaults to the protocol factory.
	newAdapter func(src model.CalendarSource, member string) (calendar.Adapter, error)
}

// NewRunner creates a batch runner.
func NewRunner(s store.Store, c clock.Clock, cfg *model.AppConfig, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Runner{
		store:  s,
		clock:  c,
		cfg:    cfg,
		engine: recurrence.NewEngine(s, c),
		logger: logger,
	}
	r.newAdapter = r.buildAdapter
	return r
}

// RunRecurrenceSweep executes one recurrence sweep and logs its outcome.
func (r *Runner) RunRecurrenceSweep(ctx context.Context) (recurrence.SweepResult, error) {
	result, err := r.engine.GenerateDueInstances(ctx)
	if err != nil {
		return result, err
	}

	r.logger.Info("recurrence sweep finished",
		"created", result.Created, "skipped", len(result.Skipped))
	for _, s := range result.Skipped {
		if recurrence.IsDataIntegrityError(s.Err) {
			// Operator attention needed; the engine never guesses intent.
			r.logger.Error("template skipped: data integrity",
				"template", s.TemplateID, "title", s.Title, "error", s.Err)
			continue
		}
		r.logger.Warn("template skipped",
			"template", s.TemplateID, "title", s.Title, "error", s.Err)
	}
	return result, nil
}

// RunCalendarPass fetches every configured source concurrently, waits for
// all of them, and aggregates the successes. The per-source results are
// returned alongside the aggregate so partial failures stay inspectable.
func (r *Runner) RunCalendarPass(ctx context.Context) (calendar.Aggregate, []SourceResult, error) {
	sources, err := r.store.ListSources(ctx)
	if err != nil {
		return calendar.Aggregate{}, nil, err
	}

	memberNames, err := r.memberNames(ctx)
	if err != nil {
		return calendar.Aggregate{}, nil, err
	}

	window := calendar.NewWindow(r.clock.TodayUTC(), r.cfg.WindowDays)
	results := make([]SourceResult, len(sources))

	var wg sync.WaitGroup
	for i, src := range sources {
		member := memberNames[src.MemberID]
		results[i] = SourceResult{Label: src.Label, Member: member}

		adapter, err := r.newAdapter(src, member)
		if err != nil {
			results[i].Err = err
			continue
		}

		wg.Add(1)
		go func(i int, adapter calendar.Adapter) {
			defer wg.Done()

			// Each fetch carries its own timeout and no retry; a failed
			// source simply contributes nothing until the next tick.
			fetchCtx, cancel := context.WithTimeout(ctx, r.cfg.FetchTimeout())
			defer cancel()

			events, err := adapter.FetchEvents(fetchCtx, window)
			results[i].Events = events
			results[i].Err = err
		}(i, adapter)
	}
	wg.Wait()

	inputs := make([]calendar.SourceEvents, 0, len(results))
	for _, res := range results {
		if res.Err != nil {
			if calendar.IsConfigError(res.Err) {
				r.logger.Warn("source skipped: configuration",
					"source", res.Label, "error", res.Err)
			} else {
				r.logger.Warn("source fetch failed",
					"source", res.Label, "error", res.Err)
			}
			continue
		}
		r.logger.Info("source fetched",
			"source", res.Label, "events", len(res.Events))
		inputs = append(inputs, calendar.SourceEvents{
			Label:  res.Label,
			Member: res.Member,
			Events: res.Events,
		})
	}

	return calendar.AggregateEvents(inputs), results, nil
}

// buildAdapter selects the protocol variant for a source. The choice
// happens once here; no per-event branching downstream.
func (r *Runner) buildAdapter(
	src model.CalendarSource,
	member string,
) (calendar.Adapter, error) {
	loc := r.cfg.Location()

	switch src.Type {
	case model.SourceTypeICS, "":
		return ics.NewAdapter(src, member, loc), nil

	case model.SourceTypeCalDAVGoogle, model.SourceTypeCalDAVApple:
		r.resolvePassword(&src)
		return caldav.NewAdapter(src, src.Type, member, loc, r.logger), nil
	}

	return nil, &calendar.ConfigError{
		Label:  src.Label,
		Reason: "unknown source type " + string(src.Type),
	}
}

// resolvePassword falls back to the OS keyring when the source row stores
// no password. Lookup failures are fine: the adapter reports the missing
// credential as a ConfigError.
func (r *Runner) resolvePassword(src *model.CalendarSource) {
	if src.Password != nil && *src.Password != "" {
		return
	}
	pw, err := credential.SourcePassword(src.ID)
	if err != nil || pw == "" {
		return
	}
	src.Password = &pw
}

func (r *Runner) memberNames(ctx context.Context) (map[string]string, error) {
	members, err := r.store.ListMembers(ctx)
	if err != nil {
		return nil, err
	}
	names := make(map[string]string, len(members))
	for _, m := range members {
		names[m.ID] = m.Name
	}
	return names, nil
}

// Package recurrence turns recurring task templates into concrete,
// non-duplicated task instances. The sweep is idempotent: while a template
// has an open instance, or its last_generated_date already covers the
// current period, re-running creates nothing.
package recurrence

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rallyhq/rally/internal/clock"
	"github.com/rallyhq/rally/internal/model"
)

// DataIntegrityError reports a template whose recurrence_type is not one of
// the known values. The engine never guesses intent: the template is skipped
// and surfaced for operator attention.
type DataIntegrityError struct {
	TemplateID     string
	RecurrenceType string
}

func (e *DataIntegrityError) Error() string {
	return fmt.Sprintf("template %s has unknown recurrence type %q", e.TemplateID, e.RecurrenceType)
}

// IsDataIntegrityError reports whether err (or any error in its chain) is a
// DataIntegrityError.
func IsDataIntegrityError(err error) bool {
	var die *DataIntegrityError
	return errors.As(err, &die)
}

// Store is the slice of persistence the engine needs.
type Store interface {
	ListActiveTemplates(ctx context.Context) ([]model.RecurringTemplate, error)
	FindOpenByTemplate(ctx context.Context, templateID string) (*model.TaskInstance, error)
	FindLatestByTemplate(ctx context.Context, templateID string) (*model.TaskInstance, error)
	CreateGeneratedInstance(ctx context.Context, task model.TaskInstance, templateID, occurrence string) error
}

// SkippedTemplate records a template the sweep could not process, with the
// reason. Skips never abort the batch.
type SkippedTemplate struct {
	TemplateID string
	Title      string
	Err        error
}

// SweepResult is the outcome of one recurrence sweep.
type SweepResult struct {
	Created int
	Skipped []SkippedTemplate
}

// Engine computes due dates for recurring templates and creates instances.
type Engine struct {
	store Store
	clock clock.Clock

	// mu serializes sweeps. Two concurrent sweeps could both read a stale
	// last_generated_date and insert duplicate instances before either
	// advance commits.
	mu sync.Mutex
}

// NewEngine creates a recurrence engine over the given store and clock.
func NewEngine(s Store, c clock.Clock) *Engine {
	return &Engine{store: s, clock: c}
}

// ResolveReferenceDate returns the anchor date from which the next
// occurrence for a template is computed. Preference order:
// last_generated_date, then the latest instance's due date, then that
// instance's creation date. ok is false when the template has never
// generated anything.
//
// The creation-date fallback is a best-effort anchor for templates that
// predate due-date tracking, not an exact recurrence boundary.
func (e *Engine) ResolveReferenceDate(
	ctx context.Context,
	t model.RecurringTemplate,
) (ref time.Time, ok bool, err error) {
	if t.LastGeneratedDate != nil && *t.LastGeneratedDate != "" {
		parsed, perr := time.ParseInLocation(DateLayout, *t.LastGeneratedDate, time.UTC)
		if perr != nil {
			return time.Time{}, false, fmt.Errorf(
				"template %s has malformed last_generated_date %q: %w",
				t.ID, *t.LastGeneratedDate, perr)
		}
		return parsed, true, nil
	}

	latest, err := e.store.FindLatestByTemplate(ctx, t.ID)
	if err != nil {
		return time.Time{}, false, err
	}
	if latest == nil {
		return time.Time{}, false, nil
	}

	if latest.DueDate != nil && *latest.DueDate != "" {
		parsed, perr := time.ParseInLocation(DateLayout, *latest.DueDate, time.UTC)
		if perr != nil {
			return time.Time{}, false, fmt.Errorf(
				"task %s has malformed due date %q: %w", latest.ID, *latest.DueDate, perr)
		}
		return parsed, true, nil
	}

	return clock.Midnight(latest.CreatedAt), true, nil
}

// GenerateDueInstances runs one sweep over all active templates. For each
// template with no open instance, it creates the instance for the next due
// occurrence and advances last_generated_date in the same transaction.
// Returns how many instances were created plus any per-template skips.
func (e *Engine) GenerateDueInstances(ctx context.Context) (SweepResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	var result SweepResult

	templates, err := e.store.ListActiveTemplates(ctx)
	if err != nil {
		return result, fmt.Errorf("listing active templates: %w", err)
	}

	today := e.clock.TodayUTC()

	for _, t := range templates {
		created, err := e.sweepTemplate(ctx, t, today)
		if err != nil {
			result.Skipped = append(result.Skipped, SkippedTemplate{
				TemplateID: t.ID,
				Title:      t.Title,
				Err:        err,
			})
			continue
		}
		if created {
			result.Created++
		}
	}

	return result, nil
}

// sweepTemplate processes one template and reports whether an instance was
// created.
func (e *Engine) sweepTemplate(
	ctx context.Context,
	t model.RecurringTemplate,
	today time.Time,
) (bool, error) {
	// The open-instance guard fires first: it re-checks persistent state
	// freshly each run, so a crash mid-sweep cannot duplicate on retry.
	open, err := e.store.FindOpenByTemplate(ctx, t.ID)
	if err != nil {
		return false, fmt.Errorf("checking open instance: %w", err)
	}
	if open != nil {
		return false, nil
	}

	ref, hasRef, err := e.ResolveReferenceDate(ctx, t)
	if err != nil {
		return false, err
	}

	var occurrence time.Time
	if hasRef {
		occurrence, err = NextOccurrence(t, ref)
	} else {
		occurrence, err = FirstOccurrence(t, today)
	}
	if err != nil {
		return false, err
	}

	task := model.TaskInstance{
		Title:       t.Title,
		Description: t.Description,
		AssignedTo:  t.AssignedTo,
	}
	occStr := occurrence.Format(DateLayout)
	if t.HasDueDate {
		due := occStr
		task.DueDate = &due
		// A reminder window only means something relative to a due date.
		task.RemindDaysBefore = t.RemindDaysBefore
	}

	if err := e.store.CreateGeneratedInstance(ctx, task, t.ID, occStr); err != nil {
		return false, fmt.Errorf("creating instance: %w", err)
	}
	return true, nil
}

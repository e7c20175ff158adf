package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rallyhq/rally/internal/clock"
	"github.com/rallyhq/rally/internal/model"
	"github.com/rallyhq/rally/internal/recurrence"
	"github.com/rallyhq/rally/internal/store"
	"github.com/rallyhq/rally/tests/testutil"
)

func strPtr(s string) *string { return &s }
func intPtr(i int) *int       { return &i }

func newTemplate(title string) model.RecurringTemplate {
	return model.RecurringTemplate{
		Title:          title,
		RecurrenceType: model.RecurrenceWeekly,
		RecurrenceDay:  0,
		HasDueDate:     true,
		Active:         true,
	}
}

func TestTemplateCRUD(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateMember(ctx, model.FamilyMember{ID: "m-dad", Name: "Dad"}))

	tpl := newTemplate("Take out trash")
	tpl.ID = "tpl-1"
	tpl.Description = "Bins to the curb"
	tpl.AssignedTo = strPtr("m-dad")
	tpl.RemindDaysBefore = intPtr(1)
	require.NoError(t, s.CreateTemplate(ctx, tpl))

	got, err := s.GetTemplateByID(ctx, "tpl-1")
	require.NoError(t, err)
	require.Equal(t, "Take out trash", got.Title)
	require.Equal(t, model.RecurrenceWeekly, got.RecurrenceType)
	require.Equal(t, 0, got.RecurrenceDay)
	require.True(t, got.HasDueDate)
	require.True(t, got.Active)
	require.Equal(t, "m-dad", *got.AssignedTo)
	require.Equal(t, 1, *got.RemindDaysBefore)
	require.Nil(t, got.LastGeneratedDate)

	got.Title = "Take out recycling"
	got.Active = false
	require.NoError(t, s.UpdateTemplate(ctx, *got))

	got, err = s.GetTemplateByID(ctx, "tpl-1")
	require.NoError(t, err)
	require.Equal(t, "Take out recycling", got.Title)
	require.False(t, got.Active)

	require.NoError(t, s.DeleteTemplate(ctx, "tpl-1"))
	_, err = s.GetTemplateByID(ctx, "tpl-1")
	require.Error(t, err)
}

func TestTemplateValidation(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	err := s.CreateTemplate(ctx, newTemplate("   "))
	require.Error(t, err)

	err = s.UpdateTemplate(ctx, newTemplate("no such row"))
	require.Error(t, err)
}

func TestListActiveTemplates(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	active := newTemplate("Active chore")
	active.ID = "tpl-a"
	require.NoError(t, s.CreateTemplate(ctx, active))

	paused := newTemplate("Paused chore")
	paused.ID = "tpl-b"
	paused.Active = false
	require.NoError(t, s.CreateTemplate(ctx, paused))

	templates, err := s.ListActiveTemplates(ctx)
	require.NoError(t, err)
	require.Len(t, templates, 1)
	require.Equal(t, "tpl-a", templates[0].ID)
}

func TestTaskCRUD(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateMember(ctx, model.FamilyMember{ID: "m-dad", Name: "Dad"}))

	due := "2024-03-18"
	task := model.TaskInstance{
		ID:               "task-1",
		Title:            "Take out trash",
		DueDate:          &due,
		AssignedTo:       strPtr("m-dad"),
		RemindDaysBefore: intPtr(1),
	}
	require.NoError(t, s.InsertTask(ctx, task))

	got, err := s.GetTaskByID(ctx, "task-1")
	require.NoError(t, err)
	require.Equal(t, "Take out trash", got.Title)
	require.Equal(t, "2024-03-18", *got.DueDate)
	require.False(t, got.Completed)

	require.NoError(t, s.CompleteTask(ctx, "task-1"))
	got, err = s.GetTaskByID(ctx, "task-1")
	require.NoError(t, err)
	require.True(t, got.Completed)

	require.NoError(t, s.DeleteTask(ctx, "task-1"))
	_, err = s.GetTaskByID(ctx, "task-1")
	require.Error(t, err)

	require.Error(t, s.CompleteTask(ctx, "task-1"))
}

func TestGetTasksFilters(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateMember(ctx, model.FamilyMember{ID: "m-kid", Name: "Kid"}))
	require.NoError(t, s.CreateMember(ctx, model.FamilyMember{ID: "m-dad", Name: "Dad"}))

	tasks := []model.TaskInstance{
		{ID: "t1", Title: "Walk the dog", AssignedTo: strPtr("m-kid")},
		{ID: "t2", Title: "Dishes", AssignedTo: strPtr("m-dad"), Completed: true},
		{ID: "t3", Title: "Dog food run", AssignedTo: strPtr("m-kid")},
	}
	for _, task := range tasks {
		require.NoError(t, s.InsertTask(ctx, task))
	}

	open := false
	got, err := s.GetTasks(ctx, store.TaskFilter{Completed: &open})
	require.NoError(t, err)
	require.Len(t, got, 2)

	got, err = s.GetTasks(ctx, store.TaskFilter{AssignedTo: strPtr("m-dad")})
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, "t2", got[0].ID)

	got, err = s.GetTasks(ctx, store.TaskFilter{Query: strPtr("dog")})
	require.NoError(t, err)
	require.Len(t, got, 2)

	got, err = s.GetTasks(ctx, store.TaskFilter{SortBy: "title"})
	require.NoError(t, err)
	require.Equal(t, "t2", got[0].ID)
}

func TestFindOpenByTemplate(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	tpl := newTemplate("Laundry")
	tpl.ID = "tpl-1"
	require.NoError(t, s.CreateTemplate(ctx, tpl))

	open, err := s.FindOpenByTemplate(ctx, "tpl-1")
	require.NoError(t, err)
	require.Nil(t, open)

	done := model.TaskInstance{ID: "t1", Title: "Laundry", TemplateID: strPtr("tpl-1"), Completed: true}
	require.NoError(t, s.InsertTask(ctx, done))

	open, err = s.FindOpenByTemplate(ctx, "tpl-1")
	require.NoError(t, err)
	require.Nil(t, open)

	pending := model.TaskInstance{ID: "t2", Title: "Laundry", TemplateID: strPtr("tpl-1")}
	require.NoError(t, s.InsertTask(ctx, pending))

	open, err = s.FindOpenByTemplate(ctx, "tpl-1")
	require.NoError(t, err)
	require.NotNil(t, open)
	require.Equal(t, "t2", open.ID)
}

func TestFindLatestByTemplateNullsLast(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	tpl := newTemplate("Laundry")
	tpl.ID = "tpl-1"
	require.NoError(t, s.CreateTemplate(ctx, tpl))

	latest, err := s.FindLatestByTemplate(ctx, "tpl-1")
	require.NoError(t, err)
	require.Nil(t, latest)

	older := "2024-03-04"
	newer := "2024-03-11"
	for _, task := range []model.TaskInstance{
		{ID: "t-none", Title: "Laundry", TemplateID: strPtr("tpl-1"), Completed: true},
		{ID: "t-old", Title: "Laundry", TemplateID: strPtr("tpl-1"), DueDate: &older, Completed: true},
		{ID: "t-new", Title: "Laundry", TemplateID: strPtr("tpl-1"), DueDate: &newer, Completed: true},
	} {
		require.NoError(t, s.InsertTask(ctx, task))
	}

	latest, err = s.FindLatestByTemplate(ctx, "tpl-1")
	require.NoError(t, err)
	require.NotNil(t, latest)
	require.Equal(t, "t-new", latest.ID)
}

func TestCreateGeneratedInstance(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	tpl := newTemplate("Laundry")
	tpl.ID = "tpl-1"
	require.NoError(t, s.CreateTemplate(ctx, tpl))

	due := "2024-03-18"
	task := model.TaskInstance{Title: "Laundry", DueDate: &due}
	require.NoError(t, s.CreateGeneratedInstance(ctx, task, "tpl-1", "2024-03-18"))

	got, err := s.GetTemplateByID(ctx, "tpl-1")
	require.NoError(t, err)
	require.NotNil(t, got.LastGeneratedDate)
	require.Equal(t, "2024-03-18", *got.LastGeneratedDate)

	open, err := s.FindOpenByTemplate(ctx, "tpl-1")
	require.NoError(t, err)
	require.NotNil(t, open)
	require.Equal(t, "tpl-1", *open.TemplateID)
}

func TestCreateGeneratedInstanceNeverRegresses(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	tpl := newTemplate("Laundry")
	tpl.ID = "tpl-1"
	require.NoError(t, s.CreateTemplate(ctx, tpl))

	require.NoError(t, s.CreateGeneratedInstance(ctx,
		model.TaskInstance{Title: "Laundry"}, "tpl-1", "2024-03-18"))

	// An earlier occurrence must not move last_generated_date backwards,
	// and the failed transaction must not leave a task behind.
	err := s.CreateGeneratedInstance(ctx,
		model.TaskInstance{Title: "Laundry"}, "tpl-1", "2024-03-11")
	require.Error(t, err)

	got, err := s.GetTemplateByID(ctx, "tpl-1")
	require.NoError(t, err)
	require.Equal(t, "2024-03-18", *got.LastGeneratedDate)

	tasks, err := s.GetTasks(ctx, store.TaskFilter{TemplateID: strPtr("tpl-1")})
	require.NoError(t, err)
	require.Len(t, tasks, 1)
}

func TestCreateGeneratedInstanceUnknownTemplate(t *testing.T) {
	s := testutil.NewTestStore(t)

	err := s.CreateGeneratedInstance(context.Background(),
		model.TaskInstance{Title: "Orphan"}, "missing", "2024-03-18")
	require.Error(t, err)
}

func TestDeleteTemplateKeepsInstances(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	tpl := newTemplate("Laundry")
	tpl.ID = "tpl-1"
	require.NoError(t, s.CreateTemplate(ctx, tpl))
	require.NoError(t, s.CreateGeneratedInstance(ctx,
		model.TaskInstance{Title: "Laundry"}, "tpl-1", "2024-03-18"))
	require.NoError(t, s.DeleteTemplate(ctx, "tpl-1"))

	tasks, err := s.GetTasks(ctx, store.TaskFilter{TemplateID: strPtr("tpl-1")})
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	require.Equal(t, "tpl-1", *tasks[0].TemplateID)
}

func TestSourceRoundTrip(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateMember(ctx, model.FamilyMember{ID: "m1", Name: "Mom"}))

	src := model.CalendarSource{
		ID:         "src-1",
		Label:      "Mom's iCloud",
		Type:       model.SourceTypeCalDAVApple,
		MemberID:   "m1",
		OwnerEmail: strPtr("mom@x.com"),
		Username:   strPtr("mom@x.com"),
		Password:   strPtr("app-password"),
	}
	require.NoError(t, s.UpsertSource(ctx, src))

	sources, err := s.ListSources(ctx)
	require.NoError(t, err)
	require.Len(t, sources, 1)
	require.Equal(t, model.SourceTypeCalDAVApple, sources[0].Type)
	require.Equal(t, "mom@x.com", *sources[0].OwnerEmail)

	// Upsert with the same ID replaces.
	src.Label = "Mom's calendar"
	require.NoError(t, s.UpsertSource(ctx, src))
	sources, err = s.ListSources(ctx)
	require.NoError(t, err)
	require.Len(t, sources, 1)
	require.Equal(t, "Mom's calendar", sources[0].Label)

	require.NoError(t, s.DeleteSource(ctx, "src-1"))
	sources, err = s.ListSources(ctx)
	require.NoError(t, err)
	require.Empty(t, sources)
}

func TestMembers(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateMember(ctx, model.FamilyMember{ID: "m1", Name: "Mom", Color: "#ff0000"}))
	require.NoError(t, s.CreateMember(ctx, model.FamilyMember{ID: "m2", Name: "Dad"}))

	got, err := s.GetMemberByID(ctx, "m2")
	require.NoError(t, err)
	require.Equal(t, "Dad", got.Name)
	require.NotEmpty(t, got.Color)

	members, err := s.ListMembers(ctx)
	require.NoError(t, err)
	require.Len(t, members, 2)
}

// The engine against the real store exercises the same SQL path the daemon
// runs: open-instance guard, transactional advance, completion handoff.
func TestEngineSweepAgainstSQLite(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	tpl := newTemplate("Take out trash")
	tpl.ID = "tpl-1"
	tpl.RecurrenceDay = 0 // Monday
	require.NoError(t, s.CreateTemplate(ctx, tpl))

	// 2024-03-15 is a Friday.
	fixed := clock.Fixed{Now: time.Date(2024, time.March, 15, 8, 0, 0, 0, time.UTC)}
	eng := recurrence.NewEngine(s, fixed)

	res, err := eng.GenerateDueInstances(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, res.Created)

	// Idempotent while the instance stays open.
	res, err = eng.GenerateDueInstances(ctx)
	require.NoError(t, err)
	require.Equal(t, 0, res.Created)

	open, err := s.FindOpenByTemplate(ctx, "tpl-1")
	require.NoError(t, err)
	require.NotNil(t, open)
	require.Equal(t, "2024-03-18", *open.DueDate)
	require.NoError(t, s.CompleteTask(ctx, open.ID))

	res, err = eng.GenerateDueInstances(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, res.Created)

	next, err := s.FindOpenByTemplate(ctx, "tpl-1")
	require.NoError(t, err)
	require.NotNil(t, next)
	require.Equal(t, "2024-03-25", *next.DueDate)
}

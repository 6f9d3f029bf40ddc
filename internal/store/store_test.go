package store_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kanban/internal/kanban"
	"kanban/internal/store"
)

func newStore(t *testing.T) *store.Store {
	t.Helper()
	ctx := context.Background()
	s, err := store.Open(ctx, "sqlite", filepath.Join(t.TempDir(), "kanban.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.Migrate(ctx))
	return s
}

func ptr[T any](v T) *T { return &v }

func TestParseDialect(t *testing.T) {
	t.Parallel()

	for in, want := range map[string]store.Dialect{
		"postgres": store.Postgres, "pgx": store.Postgres, "PostgreSQL": store.Postgres,
		"sqlite": store.SQLite, "sqlite3": store.SQLite,
	} {
		got, err := store.ParseDialect(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := store.ParseDialect("mysql")
	assert.Error(t, err)
}

func TestMigrateIdempotent(t *testing.T) {
	t.Parallel()

	s := newStore(t)
	assert.NoError(t, s.Migrate(context.Background()))
}

func TestCreateAndGetBoard(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := newStore(t)

	b, err := s.CreateBoard(ctx, kanban.NewBoard{Name: "Platform", Columns: []string{"Todo", "Doing"}})
	require.NoError(t, err)
	assert.NotZero(t, b.ID)
	require.Len(t, b.Columns, 2)

	got, err := s.GetBoard(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, "Platform", got.Name)
	require.Len(t, got.Columns, 2)
	assert.Equal(t, "Todo", got.Columns[0].Name)
	assert.Equal(t, "Doing", got.Columns[1].Name)
	assert.Empty(t, got.Columns[0].Tasks)
	assert.Empty(t, got.Columns[1].Tasks)
	assert.Equal(t, b.ID, got.Columns[0].BoardID)
}

func TestGetBoardNotFound(t *testing.T) {
	t.Parallel()

	_, err := newStore(t).GetBoard(context.Background(), 42)
	var nf *kanban.NotFoundError
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, "board", nf.Entity)
	assert.Equal(t, int64(42), nf.ID)
}

func TestListBoardsOrderedByID(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := newStore(t)

	empty, err := s.ListBoards(ctx)
	require.NoError(t, err)
	assert.Empty(t, empty)

	for _, name := range []string{"b", "a", "c"} {
		_, err := s.CreateBoard(ctx, kanban.NewBoard{Name: name})
		require.NoError(t, err)
	}
	boards, err := s.ListBoards(ctx)
	require.NoError(t, err)
	require.Len(t, boards, 3)
	assert.Equal(t, "b", boards[0].Name)
	assert.Equal(t, "a", boards[1].Name)
	assert.Equal(t, "c", boards[2].Name)
	assert.Less(t, boards[0].ID, boards[1].ID)
	assert.Less(t, boards[1].ID, boards[2].ID)
}

func TestRenameBoard(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := newStore(t)
	b, err := s.CreateBoard(ctx, kanban.NewBoard{Name: "old"})
	require.NoError(t, err)

	sum, err := s.RenameBoard(ctx, b.ID, "new")
	require.NoError(t, err)
	assert.Equal(t, "new", sum.Name)

	got, err := s.GetBoard(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, "new", got.Name)

	_, err = s.RenameBoard(ctx, b.ID+100, "x")
	assert.ErrorIs(t, err, kanban.ErrNotFound)
}

func TestColumns(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := newStore(t)
	b, err := s.CreateBoard(ctx, kanban.NewBoard{Name: "board", Columns: []string{"Todo"}})
	require.NoError(t, err)

	c, err := s.CreateColumn(ctx, kanban.NewColumn{BoardID: b.ID, Name: "Done"})
	require.NoError(t, err)
	assert.Equal(t, b.ID, c.BoardID)

	cols, err := s.ListColumns(ctx, b.ID)
	require.NoError(t, err)
	require.Len(t, cols, 2)
	assert.Equal(t, "Todo", cols[0].Name)
	assert.Equal(t, "Done", cols[1].Name)

	_, err = s.CreateColumn(ctx, kanban.NewColumn{BoardID: b.ID + 1, Name: "x"})
	assert.ErrorIs(t, err, kanban.ErrNotFound)
	_, err = s.ListColumns(ctx, b.ID+1)
	assert.ErrorIs(t, err, kanban.ErrNotFound)
}

func TestCreateTaskUnknownColumn(t *testing.T) {
	t.Parallel()

	_, err := newStore(t).CreateTask(context.Background(), kanban.NewTask{ColumnID: 9, Title: "t"})
	var nf *kanban.NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "column", nf.Entity)
}

func TestCreateTaskWithSubtasks(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := newStore(t)
	b, err := s.CreateBoard(ctx, kanban.NewBoard{Name: "board", Columns: []string{"Todo"}})
	require.NoError(t, err)

	task, err := s.CreateTask(ctx, kanban.NewTask{
		ColumnID: b.Columns[0].ID, Title: "ship it", Description: "",
		Subtasks: []kanban.NewSubtask{{Title: "write"}, {Title: "review", IsCompleted: true}},
	})
	require.NoError(t, err)
	require.Len(t, task.Subtasks, 2)
	assert.Equal(t, 1, task.CompletedSubtasks())

	got, err := s.GetTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, task, got)
}

func TestUpdateTaskMovesAndUpserts(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := newStore(t)
	b, err := s.CreateBoard(ctx, kanban.NewBoard{Name: "board", Columns: []string{"Todo", "Doing"}})
	require.NoError(t, err)
	todo, doing := b.Columns[0].ID, b.Columns[1].ID

	task, err := s.CreateTask(ctx, kanban.NewTask{
		ColumnID: todo, Title: "t",
		Subtasks: []kanban.NewSubtask{{Title: "a", IsCompleted: true}, {Title: "b"}},
	})
	require.NoError(t, err)
	a, bb := task.Subtasks[0], task.Subtasks[1]

	updated, err := s.UpdateTask(ctx, kanban.TaskUpdate{
		ID: task.ID, ColumnID: doing, Title: "t2", Description: "d",
		Subtasks: []kanban.SubtaskUpsert{
			{ID: ptr(bb.ID), Title: "b2", IsCompleted: ptr(true)},
			{Title: "c"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, doing, updated.ColumnID)
	assert.Equal(t, "t2", updated.Title)
	assert.Equal(t, "d", updated.Description)
	require.Len(t, updated.Subtasks, 3)
	// a was omitted and must be untouched
	assert.Equal(t, a, updated.Subtasks[0])
	assert.Equal(t, "b2", updated.Subtasks[1].Title)
	assert.True(t, updated.Subtasks[1].IsCompleted)
	assert.Equal(t, "c", updated.Subtasks[2].Title)
	assert.False(t, updated.Subtasks[2].IsCompleted)

	board, err := s.GetBoard(ctx, b.ID)
	require.NoError(t, err)
	assert.Empty(t, board.Columns[0].Tasks)
	require.Len(t, board.Columns[1].Tasks, 1)
	assert.Equal(t, task.ID, board.Columns[1].Tasks[0].ID)
}

func TestUpdateTaskKeepsCompletionWhenOmitted(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := newStore(t)
	b, err := s.CreateBoard(ctx, kanban.NewBoard{Name: "board", Columns: []string{"Todo"}})
	require.NoError(t, err)
	task, err := s.CreateTask(ctx, kanban.NewTask{ColumnID: b.Columns[0].ID, Title: "t",
		Subtasks: []kanban.NewSubtask{{Title: "a", IsCompleted: true}}})
	require.NoError(t, err)

	updated, err := s.UpdateTask(ctx, kanban.TaskUpdate{ID: task.ID, ColumnID: b.Columns[0].ID, Title: "t",
		Subtasks: []kanban.SubtaskUpsert{{ID: ptr(task.Subtasks[0].ID), Title: "renamed"}}})
	require.NoError(t, err)
	assert.Equal(t, "renamed", updated.Subtasks[0].Title)
	assert.True(t, updated.Subtasks[0].IsCompleted)
}

func TestUpdateTaskRemoveSubtasks(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := newStore(t)
	b, err := s.CreateBoard(ctx, kanban.NewBoard{Name: "board", Columns: []string{"Todo"}})
	require.NoError(t, err)
	task, err := s.CreateTask(ctx, kanban.NewTask{ColumnID: b.Columns[0].ID, Title: "t",
		Subtasks: []kanban.NewSubtask{{Title: "a"}, {Title: "b"}}})
	require.NoError(t, err)

	updated, err := s.UpdateTask(ctx, kanban.TaskUpdate{ID: task.ID, ColumnID: b.Columns[0].ID, Title: "t",
		RemoveSubtasks: []int64{task.Subtasks[0].ID}})
	require.NoError(t, err)
	require.Len(t, updated.Subtasks, 1)
	assert.Equal(t, "b", updated.Subtasks[0].Title)
}

func TestUpdateTaskErrors(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := newStore(t)
	b1, err := s.CreateBoard(ctx, kanban.NewBoard{Name: "one", Columns: []string{"Todo"}})
	require.NoError(t, err)
	b2, err := s.CreateBoard(ctx, kanban.NewBoard{Name: "two", Columns: []string{"Todo"}})
	require.NoError(t, err)
	task, err := s.CreateTask(ctx, kanban.NewTask{ColumnID: b1.Columns[0].ID, Title: "t",
		Subtasks: []kanban.NewSubtask{{Title: "a"}}})
	require.NoError(t, err)
	other, err := s.CreateTask(ctx, kanban.NewTask{ColumnID: b2.Columns[0].ID, Title: "o",
		Subtasks: []kanban.NewSubtask{{Title: "x"}}})
	require.NoError(t, err)

	tests := []struct {
		name   string
		in     kanban.TaskUpdate
		entity string
	}{
		{"unknown task", kanban.TaskUpdate{ID: 999, ColumnID: b1.Columns[0].ID, Title: "t"}, "task"},
		{"unknown column", kanban.TaskUpdate{ID: task.ID, ColumnID: 999, Title: "t"}, "column"},
		{"foreign subtask", kanban.TaskUpdate{ID: task.ID, ColumnID: b1.Columns[0].ID, Title: "t",
			Subtasks: []kanban.SubtaskUpsert{{ID: ptr(other.Subtasks[0].ID), Title: "steal"}}}, "subtask"},
		{"remove foreign subtask", kanban.TaskUpdate{ID: task.ID, ColumnID: b1.Columns[0].ID, Title: "t",
			RemoveSubtasks: []int64{other.Subtasks[0].ID}}, "subtask"},
	}
	for _, tc := range tests {
		_, err := s.UpdateTask(ctx, tc.in)
		var nf *kanban.NotFoundError
		require.ErrorAs(t, err, &nf, tc.name)
		assert.Equal(t, tc.entity, nf.Entity, tc.name)
	}

	_, err = s.UpdateTask(ctx, kanban.TaskUpdate{ID: task.ID, ColumnID: b2.Columns[0].ID, Title: "t"})
	var ve *kanban.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, kanban.ReasonDifferentBoard, ve.Fields[0].Reason)

	// failed updates roll back
	got, err := s.GetTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, task, got)
	gotOther, err := s.GetTask(ctx, other.ID)
	require.NoError(t, err)
	assert.Equal(t, other, gotOther)
}

func TestSetSubtaskCompleted(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := newStore(t)
	b, err := s.CreateBoard(ctx, kanban.NewBoard{Name: "board", Columns: []string{"Todo"}})
	require.NoError(t, err)
	task, err := s.CreateTask(ctx, kanban.NewTask{ColumnID: b.Columns[0].ID, Title: "t",
		Subtasks: []kanban.NewSubtask{{Title: "a"}}})
	require.NoError(t, err)
	id := task.Subtasks[0].ID

	st, err := s.SetSubtaskCompleted(ctx, id, true)
	require.NoError(t, err)
	assert.True(t, st.IsCompleted)
	assert.Equal(t, task.ID, st.TaskID)

	st, err = s.SetSubtaskCompleted(ctx, id, true)
	require.NoError(t, err)
	assert.True(t, st.IsCompleted)

	_, err = s.SetSubtaskCompleted(ctx, id+1000, true)
	assert.ErrorIs(t, err, kanban.ErrNotFound)
}

func TestDeleteCascades(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := newStore(t)
	b, err := s.CreateBoard(ctx, kanban.NewBoard{Name: "board", Columns: []string{"Todo", "Doing"}})
	require.NoError(t, err)
	var tasks []kanban.Task
	for _, c := range b.Columns {
		task, err := s.CreateTask(ctx, kanban.NewTask{ColumnID: c.ID, Title: "t",
			Subtasks: []kanban.NewSubtask{{Title: "a"}}})
		require.NoError(t, err)
		tasks = append(tasks, task)
	}

	// column delete takes its tasks and subtasks
	require.NoError(t, s.DeleteColumn(ctx, b.Columns[0].ID))
	_, err = s.GetTask(ctx, tasks[0].ID)
	assert.ErrorIs(t, err, kanban.ErrNotFound)
	_, err = s.SetSubtaskCompleted(ctx, tasks[0].Subtasks[0].ID, true)
	assert.ErrorIs(t, err, kanban.ErrNotFound)

	require.NoError(t, s.DeleteBoard(ctx, b.ID))
	_, err = s.GetBoard(ctx, b.ID)
	assert.ErrorIs(t, err, kanban.ErrNotFound)
	_, err = s.GetTask(ctx, tasks[1].ID)
	assert.ErrorIs(t, err, kanban.ErrNotFound)
	_, err = s.BoardIDByColumn(ctx, b.Columns[1].ID)
	assert.ErrorIs(t, err, kanban.ErrNotFound)

	assert.ErrorIs(t, s.DeleteBoard(ctx, b.ID), kanban.ErrNotFound)
	assert.ErrorIs(t, s.DeleteTask(ctx, tasks[1].ID), kanban.ErrNotFound)
	assert.ErrorIs(t, s.DeleteColumn(ctx, b.Columns[1].ID), kanban.ErrNotFound)
}

func TestIDsNotReusedAfterDelete(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := newStore(t)
	first, err := s.CreateBoard(ctx, kanban.NewBoard{Name: "a"})
	require.NoError(t, err)
	require.NoError(t, s.DeleteBoard(ctx, first.ID))
	second, err := s.CreateBoard(ctx, kanban.NewBoard{Name: "b"})
	require.NoError(t, err)
	assert.Greater(t, second.ID, first.ID)
}

func TestBoardLookups(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := newStore(t)
	b, err := s.CreateBoard(ctx, kanban.NewBoard{Name: "board", Columns: []string{"Todo"}})
	require.NoError(t, err)
	task, err := s.CreateTask(ctx, kanban.NewTask{ColumnID: b.Columns[0].ID, Title: "t",
		Subtasks: []kanban.NewSubtask{{Title: "a"}}})
	require.NoError(t, err)

	id, err := s.BoardIDByColumn(ctx, b.Columns[0].ID)
	require.NoError(t, err)
	assert.Equal(t, b.ID, id)
	id, err = s.BoardIDByTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, b.ID, id)
	id, err = s.BoardIDBySubtask(ctx, task.Subtasks[0].ID)
	require.NoError(t, err)
	assert.Equal(t, b.ID, id)
}

func TestImportBoardAndMaxIDs(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := newStore(t)
	board := kanban.Board{ID: 10, Name: "imported", Columns: []kanban.Column{{
		ID: 20, Name: "Todo", Tasks: []kanban.Task{{
			ID: 30, Title: "t", Subtasks: []kanban.Subtask{{ID: 40, Title: "st", IsCompleted: true}},
		}},
	}}}
	require.NoError(t, s.ImportBoard(ctx, board))
	require.NoError(t, s.SyncSequences(ctx))

	maxIDs, err := s.MaxIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(10), maxIDs[kanban.KindBoard])
	assert.Equal(t, int64(20), maxIDs[kanban.KindColumn])
	assert.Equal(t, int64(30), maxIDs[kanban.KindTask])
	assert.Equal(t, int64(40), maxIDs[kanban.KindSubtask])

	got, err := s.GetBoard(ctx, 10)
	require.NoError(t, err)
	require.Len(t, got.Columns, 1)
	require.Len(t, got.Columns[0].Tasks, 1)
	assert.Equal(t, 1, got.Columns[0].Tasks[0].CompletedSubtasks())

	// runtime ids continue above imported ones
	next, err := s.CreateBoard(ctx, kanban.NewBoard{Name: "after"})
	require.NoError(t, err)
	assert.Greater(t, next.ID, int64(10))

	// a clashing id fails the whole board
	err = s.ImportBoard(ctx, kanban.Board{ID: 99, Name: "dup", Columns: []kanban.Column{{ID: 20, Name: "clash"}}})
	assert.Error(t, err)
	_, err = s.GetBoard(ctx, 99)
	assert.ErrorIs(t, err, kanban.ErrNotFound)
}

func TestMaxIDsCountsDeletedRows(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := newStore(t)
	maxIDs, err := s.MaxIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), maxIDs[kanban.KindBoard])

	_, err = s.CreateBoard(ctx, kanban.NewBoard{Name: "one"})
	require.NoError(t, err)
	two, err := s.CreateBoard(ctx, kanban.NewBoard{Name: "two", Columns: []string{"a", "b"}})
	require.NoError(t, err)
	require.NoError(t, s.DeleteBoard(ctx, two.ID))

	maxIDs, err = s.MaxIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, two.ID, maxIDs[kanban.KindBoard])
	assert.Equal(t, two.Columns[1].ID, maxIDs[kanban.KindColumn])

	require.NoError(t, s.SyncSequences(ctx))
	next, err := s.CreateBoard(ctx, kanban.NewBoard{Name: "three"})
	require.NoError(t, err)
	assert.Greater(t, next.ID, two.ID)
}

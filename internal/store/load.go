package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"kanban/internal/kanban"
)

// loadBoard reads a whole board tree with one query per level and stitches
// it together in id order.
func loadBoard(ctx context.Context, q querier, id int64) (kanban.Board, error) {
	b := kanban.Board{Columns: []kanban.Column{}}
	err := q.QueryRowContext(ctx, `select id, name from boards where id=$1`, id).Scan(&b.ID, &b.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return kanban.Board{}, kanban.NotFound("board", id)
	}
	if err != nil {
		return kanban.Board{}, fmt.Errorf("load board: %w", err)
	}

	subtasks, err := scanSubtasks(ctx, q,
		`select s.id, s.task_id, s.title, s.is_completed from subtasks s
		 join tasks t on t.id=s.task_id
		 join board_columns c on c.id=t.column_id
		 where c.board_id=$1 order by s.id`, id)
	if err != nil {
		return kanban.Board{}, err
	}

	rows, err := q.QueryContext(ctx,
		`select t.id, t.column_id, t.title, t.description from tasks t
		 join board_columns c on c.id=t.column_id
		 where c.board_id=$1 order by t.id`, id)
	if err != nil {
		return kanban.Board{}, fmt.Errorf("load tasks: %w", err)
	}
	defer rows.Close()
	tasks := map[int64][]kanban.Task{}
	for rows.Next() {
		var t kanban.Task
		if err := rows.Scan(&t.ID, &t.ColumnID, &t.Title, &t.Description); err != nil {
			return kanban.Board{}, err
		}
		t.Subtasks = orEmpty(subtasks[t.ID])
		tasks[t.ColumnID] = append(tasks[t.ColumnID], t)
	}
	if err := rows.Err(); err != nil {
		return kanban.Board{}, err
	}

	crows, err := q.QueryContext(ctx, `select id, board_id, name from board_columns where board_id=$1 order by id`, id)
	if err != nil {
		return kanban.Board{}, fmt.Errorf("load columns: %w", err)
	}
	defer crows.Close()
	for crows.Next() {
		var c kanban.Column
		if err := crows.Scan(&c.ID, &c.BoardID, &c.Name); err != nil {
			return kanban.Board{}, err
		}
		c.Tasks = orEmpty(tasks[c.ID])
		b.Columns = append(b.Columns, c)
	}
	return b, crows.Err()
}

func loadTask(ctx context.Context, q querier, id int64) (kanban.Task, error) {
	var t kanban.Task
	err := q.QueryRowContext(ctx, `select id, column_id, title, description from tasks where id=$1`, id).
		Scan(&t.ID, &t.ColumnID, &t.Title, &t.Description)
	if errors.Is(err, sql.ErrNoRows) {
		return kanban.Task{}, kanban.NotFound("task", id)
	}
	if err != nil {
		return kanban.Task{}, fmt.Errorf("load task: %w", err)
	}
	subtasks, err := scanSubtasks(ctx, q,
		`select id, task_id, title, is_completed from subtasks where task_id=$1 order by id`, id)
	if err != nil {
		return kanban.Task{}, err
	}
	t.Subtasks = orEmpty(subtasks[id])
	return t, nil
}

// scanSubtasks groups the result rows by task id.
func scanSubtasks(ctx context.Context, q querier, query string, arg int64) (map[int64][]kanban.Subtask, error) {
	rows, err := q.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("load subtasks: %w", err)
	}
	defer rows.Close()
	out := map[int64][]kanban.Subtask{}
	for rows.Next() {
		var st kanban.Subtask
		if err := rows.Scan(&st.ID, &st.TaskID, &st.Title, &st.IsCompleted); err != nil {
			return nil, err
		}
		out[st.TaskID] = append(out[st.TaskID], st)
	}
	return out, rows.Err()
}

func orEmpty[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"

	"kanban/internal/kanban"
)

type Dialect string

const (
	Postgres Dialect = "postgres"
	SQLite   Dialect = "sqlite"
)

// ParseDialect accepts the driver names people actually type.
func ParseDialect(driver string) (Dialect, error) {
	switch strings.ToLower(driver) {
	case "postgres", "postgresql", "pgx":
		return Postgres, nil
	case "sqlite", "sqlite3":
		return SQLite, nil
	}
	return "", fmt.Errorf("unsupported db driver %q", driver)
}

type Store struct {
	db      *sql.DB
	dialect Dialect
}

func New(db *sql.DB, dialect Dialect) *Store { return &Store{db: db, dialect: dialect} }

// Open connects and pings. SQLite connections get foreign keys enabled so
// that cascading deletes behave as in PostgreSQL.
func Open(ctx context.Context, driver, dsn string) (*Store, error) {
	dialect, err := ParseDialect(driver)
	if err != nil {
		return nil, err
	}
	var db *sql.DB
	switch dialect {
	case Postgres:
		db, err = sql.Open("pgx", dsn)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(30 * time.Minute)
	case SQLite:
		db, err = sql.Open("sqlite3", sqliteDSN(dsn))
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		// one writer at a time; avoids "database is locked" under load
		db.SetMaxOpenConns(1)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", dialect, err)
	}
	return New(db, dialect), nil
}

func sqliteDSN(dsn string) string {
	if strings.Contains(dsn, "_foreign_keys") || strings.Contains(dsn, "_fk=") {
		return dsn
	}
	if strings.Contains(dsn, "?") {
		return dsn + "&_foreign_keys=on"
	}
	return dsn + "?_foreign_keys=on"
}

func (s *Store) Dialect() Dialect { return s.dialect }
func (s *Store) Close() error     { return s.db.Close() }

func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *Store) Migrate(ctx context.Context) error {
	ddl := postgresSchema
	if s.dialect == SQLite {
		ddl = sqliteSchema
	}
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("migrate %s: %w", s.dialect, err)
	}
	return nil
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// inTx runs fn in a transaction, committing only if fn returns nil.
func (s *Store) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()
	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Boards

func (s *Store) ListBoards(ctx context.Context) ([]kanban.BoardSummary, error) {
	rows, err := s.db.QueryContext(ctx, `select id, name from boards order by id`)
	if err != nil {
		return nil, fmt.Errorf("list boards: %w", err)
	}
	defer rows.Close()
	out := []kanban.BoardSummary{}
	for rows.Next() {
		var b kanban.BoardSummary
		if err := rows.Scan(&b.ID, &b.Name); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (s *Store) GetBoard(ctx context.Context, id int64) (kanban.Board, error) {
	var b kanban.Board
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		var err error
		b, err = loadBoard(ctx, tx, id)
		return err
	})
	return b, err
}

func (s *Store) CreateBoard(ctx context.Context, in kanban.NewBoard) (kanban.Board, error) {
	b := kanban.Board{Name: in.Name, Columns: []kanban.Column{}}
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		if err := tx.QueryRowContext(ctx, `insert into boards(name) values($1) returning id`, in.Name).Scan(&b.ID); err != nil {
			return fmt.Errorf("insert board: %w", err)
		}
		for _, name := range in.Columns {
			c, err := insertColumn(ctx, tx, b.ID, name)
			if err != nil {
				return err
			}
			b.Columns = append(b.Columns, c)
		}
		return nil
	})
	if err != nil {
		return kanban.Board{}, err
	}
	return b, nil
}

func (s *Store) RenameBoard(ctx context.Context, id int64, name string) (kanban.BoardSummary, error) {
	res, err := s.db.ExecContext(ctx, `update boards set name=$1 where id=$2`, name, id)
	if err != nil {
		return kanban.BoardSummary{}, fmt.Errorf("rename board: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return kanban.BoardSummary{}, kanban.NotFound("board", id)
	}
	return kanban.BoardSummary{ID: id, Name: name}, nil
}

// DeleteBoard removes the board; columns, tasks and subtasks go with it
// through the foreign key cascade.
func (s *Store) DeleteBoard(ctx context.Context, id int64) error {
	return s.deleteByID(ctx, "boards", "board", id)
}

// Columns

func (s *Store) ListColumns(ctx context.Context, boardID int64) ([]kanban.ColumnSummary, error) {
	var out []kanban.ColumnSummary
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		if err := requireRow(ctx, tx, `select 1 from boards where id=$1`, "board", boardID); err != nil {
			return err
		}
		rows, err := tx.QueryContext(ctx, `select id, name from board_columns where board_id=$1 order by id`, boardID)
		if err != nil {
			return fmt.Errorf("list columns: %w", err)
		}
		defer rows.Close()
		out = []kanban.ColumnSummary{}
		for rows.Next() {
			var c kanban.ColumnSummary
			if err := rows.Scan(&c.ID, &c.Name); err != nil {
				return err
			}
			out = append(out, c)
		}
		return rows.Err()
	})
	return out, err
}

func (s *Store) CreateColumn(ctx context.Context, in kanban.NewColumn) (kanban.Column, error) {
	var c kanban.Column
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		if err := requireRow(ctx, tx, `select 1 from boards where id=$1`, "board", in.BoardID); err != nil {
			return err
		}
		var err error
		c, err = insertColumn(ctx, tx, in.BoardID, in.Name)
		return err
	})
	return c, err
}

func (s *Store) DeleteColumn(ctx context.Context, id int64) error {
	return s.deleteByID(ctx, "board_columns", "column", id)
}

func insertColumn(ctx context.Context, q querier, boardID int64, name string) (kanban.Column, error) {
	c := kanban.Column{BoardID: boardID, Name: name, Tasks: []kanban.Task{}}
	if err := q.QueryRowContext(ctx, `insert into board_columns(board_id, name) values($1,$2) returning id`, boardID, name).Scan(&c.ID); err != nil {
		return kanban.Column{}, fmt.Errorf("insert column: %w", err)
	}
	return c, nil
}

// Tasks

func (s *Store) GetTask(ctx context.Context, id int64) (kanban.Task, error) {
	var t kanban.Task
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		var err error
		t, err = loadTask(ctx, tx, id)
		return err
	})
	return t, err
}

// CreateTask inserts the task and its subtasks together; nothing is kept
// if any insert fails.
func (s *Store) CreateTask(ctx context.Context, in kanban.NewTask) (kanban.Task, error) {
	t := kanban.Task{ColumnID: in.ColumnID, Title: in.Title, Description: in.Description, Subtasks: []kanban.Subtask{}}
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		if err := requireRow(ctx, tx, `select 1 from board_columns where id=$1`, "column", in.ColumnID); err != nil {
			return err
		}
		err := tx.QueryRowContext(ctx, `insert into tasks(column_id, title, description) values($1,$2,$3) returning id`,
			in.ColumnID, in.Title, in.Description).Scan(&t.ID)
		if err != nil {
			return fmt.Errorf("insert task: %w", err)
		}
		for _, st := range in.Subtasks {
			sub, err := insertSubtask(ctx, tx, t.ID, st.Title, st.IsCompleted)
			if err != nil {
				return err
			}
			t.Subtasks = append(t.Subtasks, sub)
		}
		return nil
	})
	if err != nil {
		return kanban.Task{}, err
	}
	return t, nil
}

// UpdateTask replaces title, description and column, then reconciles
// subtasks by upsert. Subtasks not mentioned are never deleted implicitly.
func (s *Store) UpdateTask(ctx context.Context, in kanban.TaskUpdate) (kanban.Task, error) {
	var t kanban.Task
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		var curBoard int64
		err := tx.QueryRowContext(ctx,
			`select c.board_id from tasks t join board_columns c on c.id=t.column_id where t.id=$1`, in.ID).Scan(&curBoard)
		if errors.Is(err, sql.ErrNoRows) {
			return kanban.NotFound("task", in.ID)
		}
		if err != nil {
			return fmt.Errorf("load task: %w", err)
		}
		var dstBoard int64
		err = tx.QueryRowContext(ctx, `select board_id from board_columns where id=$1`, in.ColumnID).Scan(&dstBoard)
		if errors.Is(err, sql.ErrNoRows) {
			return kanban.NotFound("column", in.ColumnID)
		}
		if err != nil {
			return fmt.Errorf("load column: %w", err)
		}
		if dstBoard != curBoard {
			return &kanban.ValidationError{Fields: []kanban.FieldError{{
				Field: "columnId", Reason: kanban.ReasonDifferentBoard,
				Message: fmt.Sprintf("column %d belongs to board %d, task is on board %d", in.ColumnID, dstBoard, curBoard),
			}}}
		}

		if _, err := tx.ExecContext(ctx, `update tasks set title=$1, description=$2, column_id=$3 where id=$4`,
			in.Title, in.Description, in.ColumnID, in.ID); err != nil {
			return fmt.Errorf("update task: %w", err)
		}

		for _, sid := range in.RemoveSubtasks {
			res, err := tx.ExecContext(ctx, `delete from subtasks where id=$1 and task_id=$2`, sid, in.ID)
			if err != nil {
				return fmt.Errorf("remove subtask: %w", err)
			}
			if n, _ := res.RowsAffected(); n == 0 {
				return kanban.NotFound("subtask", sid)
			}
		}

		for _, st := range in.Subtasks {
			if st.ID == nil {
				done := st.IsCompleted != nil && *st.IsCompleted
				if _, err := insertSubtask(ctx, tx, in.ID, st.Title, done); err != nil {
					return err
				}
				continue
			}
			var res sql.Result
			if st.IsCompleted == nil {
				res, err = tx.ExecContext(ctx, `update subtasks set title=$1 where id=$2 and task_id=$3`, st.Title, *st.ID, in.ID)
			} else {
				res, err = tx.ExecContext(ctx, `update subtasks set title=$1, is_completed=$2 where id=$3 and task_id=$4`,
					st.Title, *st.IsCompleted, *st.ID, in.ID)
			}
			if err != nil {
				return fmt.Errorf("update subtask: %w", err)
			}
			if n, _ := res.RowsAffected(); n == 0 {
				return kanban.NotFound("subtask", *st.ID)
			}
		}

		t, err = loadTask(ctx, tx, in.ID)
		return err
	})
	if err != nil {
		return kanban.Task{}, err
	}
	return t, nil
}

func (s *Store) DeleteTask(ctx context.Context, id int64) error {
	return s.deleteByID(ctx, "tasks", "task", id)
}

// Subtasks

func (s *Store) SetSubtaskCompleted(ctx context.Context, id int64, completed bool) (kanban.Subtask, error) {
	var st kanban.Subtask
	err := s.db.QueryRowContext(ctx,
		`update subtasks set is_completed=$1 where id=$2 returning id, task_id, title, is_completed`, completed, id).
		Scan(&st.ID, &st.TaskID, &st.Title, &st.IsCompleted)
	if errors.Is(err, sql.ErrNoRows) {
		return kanban.Subtask{}, kanban.NotFound("subtask", id)
	}
	if err != nil {
		return kanban.Subtask{}, fmt.Errorf("set subtask completed: %w", err)
	}
	return st, nil
}

func insertSubtask(ctx context.Context, q querier, taskID int64, title string, done bool) (kanban.Subtask, error) {
	st := kanban.Subtask{TaskID: taskID, Title: title, IsCompleted: done}
	err := q.QueryRowContext(ctx, `insert into subtasks(task_id, title, is_completed) values($1,$2,$3) returning id`,
		taskID, title, done).Scan(&st.ID)
	if err != nil {
		return kanban.Subtask{}, fmt.Errorf("insert subtask: %w", err)
	}
	return st, nil
}

// Helpers for the API layer to resolve which board an event belongs to.

func (s *Store) BoardIDByColumn(ctx context.Context, columnID int64) (int64, error) {
	return s.lookupBoard(ctx, `select board_id from board_columns where id=$1`, "column", columnID)
}

func (s *Store) BoardIDByTask(ctx context.Context, taskID int64) (int64, error) {
	return s.lookupBoard(ctx,
		`select c.board_id from tasks t join board_columns c on c.id=t.column_id where t.id=$1`, "task", taskID)
}

func (s *Store) BoardIDBySubtask(ctx context.Context, subtaskID int64) (int64, error) {
	return s.lookupBoard(ctx,
		`select c.board_id from subtasks s join tasks t on t.id=s.task_id join board_columns c on c.id=t.column_id where s.id=$1`,
		"subtask", subtaskID)
}

func (s *Store) lookupBoard(ctx context.Context, query, entity string, id int64) (int64, error) {
	var boardID int64
	err := s.db.QueryRowContext(ctx, query, id).Scan(&boardID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, kanban.NotFound(entity, id)
	}
	return boardID, err
}

func (s *Store) deleteByID(ctx context.Context, table, entity string, id int64) error {
	res, err := s.db.ExecContext(ctx, `delete from `+table+` where id=$1`, id)
	if err != nil {
		return fmt.Errorf("delete %s: %w", entity, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return kanban.NotFound(entity, id)
	}
	return nil
}

func requireRow(ctx context.Context, q querier, query, entity string, id int64) error {
	var one int
	err := q.QueryRowContext(ctx, query, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return kanban.NotFound(entity, id)
	}
	if err != nil {
		return fmt.Errorf("lookup %s: %w", entity, err)
	}
	return nil
}

package store

import (
	"context"
	"database/sql"
	"fmt"

	"kanban/internal/kanban"
)

var kindTables = []struct {
	kind  kanban.Kind
	table string
}{
	{kanban.KindBoard, "boards"},
	{kanban.KindColumn, "board_columns"},
	{kanban.KindTask, "tasks"},
	{kanban.KindSubtask, "subtasks"},
}

// MaxIDs reports, per entity kind, the highest id ever issued. Rows that
// were deleted still count, so callers numbering new rows from here never
// hand out a deleted id again.
func (s *Store) MaxIDs(ctx context.Context) (map[kanban.Kind]int64, error) {
	out := make(map[kanban.Kind]int64, len(kindTables))
	for _, kt := range kindTables {
		n, err := s.highWater(ctx, kt.table)
		if err != nil {
			return nil, err
		}
		out[kt.kind] = n
	}
	return out, nil
}

// highWater is the larger of the live maximum and what the id generator has
// already handed out.
func (s *Store) highWater(ctx context.Context, table string) (int64, error) {
	var live int64
	if err := s.db.QueryRowContext(ctx, `select coalesce(max(id), 0) from `+table).Scan(&live); err != nil {
		return 0, fmt.Errorf("max id of %s: %w", table, err)
	}
	var issued int64
	switch s.dialect {
	case SQLite:
		err := s.db.QueryRowContext(ctx,
			`select coalesce((select seq from sqlite_sequence where name=$1), 0)`, table).Scan(&issued)
		if err != nil {
			return 0, fmt.Errorf("sequence of %s: %w", table, err)
		}
	case Postgres:
		seq, err := s.serialSequence(ctx, table)
		if err != nil {
			return 0, err
		}
		// before the first nextval, last_value is the start value and not yet issued
		err = s.db.QueryRowContext(ctx,
			`select case when is_called then last_value else last_value - 1 end from `+seq).Scan(&issued)
		if err != nil {
			return 0, fmt.Errorf("sequence of %s: %w", table, err)
		}
	}
	return max(live, issued), nil
}

func (s *Store) serialSequence(ctx context.Context, table string) (string, error) {
	var seq sql.NullString
	if err := s.db.QueryRowContext(ctx, `select pg_get_serial_sequence($1, 'id')`, table).Scan(&seq); err != nil {
		return "", fmt.Errorf("sequence name of %s: %w", table, err)
	}
	if !seq.Valid {
		return "", fmt.Errorf("%s.id has no sequence", table)
	}
	return seq.String, nil
}

// ImportBoard inserts a board tree whose ids were assigned up front.
func (s *Store) ImportBoard(ctx context.Context, b kanban.Board) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `insert into boards(id, name) values($1,$2)`, b.ID, b.Name); err != nil {
			return fmt.Errorf("insert board %d: %w", b.ID, err)
		}
		for _, c := range b.Columns {
			if _, err := tx.ExecContext(ctx, `insert into board_columns(id, board_id, name) values($1,$2,$3)`, c.ID, b.ID, c.Name); err != nil {
				return fmt.Errorf("insert column %d: %w", c.ID, err)
			}
			for _, t := range c.Tasks {
				if _, err := tx.ExecContext(ctx, `insert into tasks(id, column_id, title, description) values($1,$2,$3,$4)`,
					t.ID, c.ID, t.Title, t.Description); err != nil {
					return fmt.Errorf("insert task %d: %w", t.ID, err)
				}
				for _, st := range t.Subtasks {
					if _, err := tx.ExecContext(ctx, `insert into subtasks(id, task_id, title, is_completed) values($1,$2,$3,$4)`,
						st.ID, t.ID, st.Title, st.IsCompleted); err != nil {
						return fmt.Errorf("insert subtask %d: %w", st.ID, err)
					}
				}
			}
		}
		return nil
	})
}

// SyncSequences moves the PostgreSQL id sequences past explicitly inserted
// ids. A sequence only ever moves forward. SQLite autoincrement tracks the
// maximum on its own.
func (s *Store) SyncSequences(ctx context.Context) error {
	if s.dialect != Postgres {
		return nil
	}
	for _, kt := range kindTables {
		n, err := s.highWater(ctx, kt.table)
		if err != nil {
			return err
		}
		seq, err := s.serialSequence(ctx, kt.table)
		if err != nil {
			return err
		}
		if _, err := s.db.ExecContext(ctx, `select setval($1::regclass, $2, false)`, seq, n+1); err != nil {
			return fmt.Errorf("sync sequence %s: %w", kt.table, err)
		}
	}
	return nil
}

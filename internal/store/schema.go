package store

const postgresSchema = `
create table if not exists boards(
    id bigserial primary key,
    name text not null check (length(name) > 0),
    created_at timestamptz not null default now()
);
create table if not exists board_columns(
    id bigserial primary key,
    board_id bigint not null references boards(id) on delete cascade,
    name text not null check (length(name) > 0),
    created_at timestamptz not null default now()
);
create index if not exists board_columns_board_idx on board_columns(board_id);
create table if not exists tasks(
    id bigserial primary key,
    column_id bigint not null references board_columns(id) on delete cascade,
    title text not null check (length(title) > 0),
    description text not null default '',
    created_at timestamptz not null default now()
);
create index if not exists tasks_column_idx on tasks(column_id);
create table if not exists subtasks(
    id bigserial primary key,
    task_id bigint not null references tasks(id) on delete cascade,
    title text not null check (length(title) > 0),
    is_completed boolean not null default false
);
create index if not exists subtasks_task_idx on subtasks(task_id);
`

// autoincrement keeps sqlite from reusing the ids of deleted rows.
const sqliteSchema = `
create table if not exists boards(
    id integer primary key autoincrement,
    name text not null check (length(name) > 0),
    created_at timestamp not null default current_timestamp
);
create table if not exists board_columns(
    id integer primary key autoincrement,
    board_id integer not null references boards(id) on delete cascade,
    name text not null check (length(name) > 0),
    created_at timestamp not null default current_timestamp
);
create index if not exists board_columns_board_idx on board_columns(board_id);
create table if not exists tasks(
    id integer primary key autoincrement,
    column_id integer not null references board_columns(id) on delete cascade,
    title text not null check (length(title) > 0),
    description text not null default '',
    created_at timestamp not null default current_timestamp
);
create index if not exists tasks_column_idx on tasks(column_id);
create table if not exists subtasks(
    id integer primary key autoincrement,
    task_id integer not null references tasks(id) on delete cascade,
    title text not null check (length(title) > 0),
    is_completed boolean not null default 0
);
create index if not exists subtasks_task_idx on subtasks(task_id);
`

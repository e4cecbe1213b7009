package storage

import "context"

// Schema creates tables used by Store; statements are idempotent
const Schema = `
create table if not exists users (
	id          bigserial primary key,
	username    text not null unique,
	known_as    text not null default '',
	created_at  timestamptz not null default now(),
	last_active timestamptz not null default now()
);

create table if not exists messages (
	id                 bigserial primary key,
	sender_id          bigint not null references users (id) on delete cascade,
	sender_username    text not null,
	recipient_id       bigint not null references users (id) on delete cascade,
	recipient_username text not null,
	content            text not null,
	sent_at            timestamptz not null default now(),
	read_at            timestamptz,
	sender_deleted     boolean not null default false,
	recipient_deleted  boolean not null default false,
	check (sender_id <> recipient_id)
);

create index if not exists messages_recipient_idx on messages (recipient_username, sent_at desc);
create index if not exists messages_sender_idx on messages (sender_username, sent_at desc);

create table if not exists likes (
	source_id bigint not null references users (id) on delete cascade,
	target_id bigint not null references users (id) on delete cascade,
	primary key (source_id, target_id),
	check (source_id <> target_id)
);

create index if not exists likes_target_idx on likes (target_id);

create index if not exists users_last_active_idx on users (last_active desc);
`

// Migrate creates missing tables and indexes
func (s *Store) Migrate(ctx context.Context) error {
	s.logger.Info("Applying database schema")
	_, err := s.db.Exec(ctx, Schema)
	return err
}

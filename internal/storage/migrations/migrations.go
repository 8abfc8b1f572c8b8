package migrations

import (
	"context"
	"database/sql"
	"fmt"
)

// Statements are applied in order on every start; each one is idempotent.
var Statements = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id BIGSERIAL PRIMARY KEY,
		username TEXT UNIQUE NOT NULL,
		email TEXT UNIQUE NOT NULL,
		phone TEXT NOT NULL DEFAULT '',
		display_name TEXT NOT NULL DEFAULT '',
		role TEXT NOT NULL DEFAULT 'freelancer',
		password_hash TEXT NOT NULL,
		stripe_account_id TEXT NOT NULL DEFAULT '',
		payouts_enabled BOOLEAN NOT NULL DEFAULT FALSE,
		digest_opt_in BOOLEAN NOT NULL DEFAULT TRUE,
		last_digest_at TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);`,
	`CREATE INDEX IF NOT EXISTS users_stripe_account_idx ON users (stripe_account_id) WHERE stripe_account_id <> '';`,
	`CREATE TABLE IF NOT EXISTS bounties (
		id BIGSERIAL PRIMARY KEY,
		client_id BIGINT NOT NULL REFERENCES users(id),
		freelancer_id BIGINT REFERENCES users(id),
		title TEXT NOT NULL,
		description TEXT NOT NULL,
		category TEXT NOT NULL DEFAULT '',
		skills TEXT[] NOT NULL DEFAULT '{}',
		budget_cents BIGINT NOT NULL CHECK (budget_cents > 0),
		currency TEXT NOT NULL,
		deadline TIMESTAMPTZ,
		status TEXT NOT NULL DEFAULT 'DRAFT' CHECK (status IN ('DRAFT','OPEN','IN_PROGRESS','COMPLETED','CANCELLED')),
		published_at TIMESTAMPTZ,
		completed_at TIMESTAMPTZ,
		cancelled_at TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);`,
	`CREATE INDEX IF NOT EXISTS bounties_status_published_idx ON bounties (status, published_at DESC);`,
	`CREATE INDEX IF NOT EXISTS bounties_client_idx ON bounties (client_id);`,
	`CREATE TABLE IF NOT EXISTS applications (
		id BIGSERIAL PRIMARY KEY,
		bounty_id BIGINT NOT NULL REFERENCES bounties(id),
		freelancer_id BIGINT NOT NULL REFERENCES users(id),
		cover_letter TEXT NOT NULL,
		proposed_cents BIGINT NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE (bounty_id, freelancer_id)
	);`,
	`CREATE TABLE IF NOT EXISTS submissions (
		id BIGSERIAL PRIMARY KEY,
		bounty_id BIGINT NOT NULL REFERENCES bounties(id),
		freelancer_id BIGINT NOT NULL REFERENCES users(id),
		notes TEXT NOT NULL,
		attachments TEXT[] NOT NULL DEFAULT '{}',
		status TEXT NOT NULL DEFAULT 'pending',
		feedback TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		reviewed_at TIMESTAMPTZ
	);`,
	`CREATE INDEX IF NOT EXISTS submissions_bounty_idx ON submissions (bounty_id, id DESC);`,
	`CREATE TABLE IF NOT EXISTS payments (
		id BIGSERIAL PRIMARY KEY,
		bounty_id BIGINT UNIQUE NOT NULL REFERENCES bounties(id),
		client_id BIGINT NOT NULL REFERENCES users(id),
		freelancer_id BIGINT NOT NULL REFERENCES users(id),
		amount_cents BIGINT NOT NULL CHECK (amount_cents > 0),
		fee_cents BIGINT NOT NULL DEFAULT 0,
		currency TEXT NOT NULL,
		intent_id TEXT NOT NULL DEFAULT '',
		client_secret TEXT NOT NULL DEFAULT '',
		transfer_id TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'pending',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		released_at TIMESTAMPTZ
	);`,
	`CREATE INDEX IF NOT EXISTS payments_intent_idx ON payments (intent_id) WHERE intent_id <> '';`,
	`CREATE TABLE IF NOT EXISTS webhook_events (
		id TEXT PRIMARY KEY,
		type TEXT NOT NULL,
		received_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);`,
	`CREATE TABLE IF NOT EXISTS message_threads (
		id BIGSERIAL PRIMARY KEY,
		bounty_id BIGINT REFERENCES bounties(id),
		participant_a BIGINT NOT NULL REFERENCES users(id),
		participant_b BIGINT NOT NULL REFERENCES users(id),
		last_message_at TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		CHECK (participant_a < participant_b)
	);`,
	`CREATE UNIQUE INDEX IF NOT EXISTS message_threads_pair_idx ON message_threads (COALESCE(bounty_id, 0), participant_a, participant_b);`,
	`CREATE TABLE IF NOT EXISTS messages (
		id BIGSERIAL PRIMARY KEY,
		thread_id BIGINT NOT NULL REFERENCES message_threads(id),
		sender_id BIGINT NOT NULL REFERENCES users(id),
		body TEXT NOT NULL,
		read_at TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);`,
	`CREATE INDEX IF NOT EXISTS messages_thread_idx ON messages (thread_id, id DESC);`,
	`CREATE TABLE IF NOT EXISTS push_subscriptions (
		id BIGSERIAL PRIMARY KEY,
		user_id BIGINT NOT NULL REFERENCES users(id),
		endpoint TEXT UNIQUE NOT NULL,
		p256dh TEXT NOT NULL,
		auth TEXT NOT NULL,
		user_agent TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);`,
}

// Apply runs every statement against db.
func Apply(ctx context.Context, db *sql.DB) error {
	for i, stmt := range Statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply migrations: statement %d: %w", i, err)
		}
	}
	return nil
}

package crdb

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Schema creates the tables the repository reads and writes.
const Schema = `
CREATE TABLE IF NOT EXISTS offers (
	id UUID PRIMARY KEY,
	event_id UUID NOT NULL,
	offer_type TEXT NOT NULL,
	title TEXT NOT NULL DEFAULT '',
	description TEXT NOT NULL DEFAULT '',
	price_adjustment NUMERIC NOT NULL,
	min_quantity INT NOT NULL DEFAULT 1,
	max_quantity INT,
	group_size INT NOT NULL DEFAULT 0,
	is_active BOOL NOT NULL DEFAULT true,
	valid_from TIMESTAMPTZ,
	valid_until TIMESTAMPTZ,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS offers_event_idx ON offers (event_id, created_at);
CREATE TABLE IF NOT EXISTS outbox (
	id UUID PRIMARY KEY,
	aggregate_type TEXT NOT NULL,
	aggregate_id UUID NOT NULL,
	event_type TEXT NOT NULL,
	payload_json JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	published_at TIMESTAMPTZ,
	status TEXT NOT NULL DEFAULT 'NEW' CHECK (status IN ('NEW', 'PUBLISHED', 'FAILED')),
	dedupe_key TEXT NOT NULL UNIQUE
);
`

func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, Schema)
	return err
}

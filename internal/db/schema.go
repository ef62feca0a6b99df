package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

const grantsDDL = `
CREATE TABLE IF NOT EXISTS grants (
	id                   TEXT PRIMARY KEY,
	opportunity_number   TEXT UNIQUE,
	title                VARCHAR(255)   NOT NULL,
	description          VARCHAR(18000) NOT NULL,
	research_field       VARCHAR(250)   NOT NULL,
	expected_award_count BIGINT,
	eligibility          TEXT,
	provider             TEXT,
	link                 VARCHAR(2048)  NOT NULL,
	award_max_amount     BIGINT,
	award_min_amount     BIGINT,
	program_funding      BIGINT,
	point_of_contact     TEXT           NOT NULL,
	posting_date         TIMESTAMP,
	archive_date         TIMESTAMP,
	response_date        TIMESTAMP,
	last_updated_date    TIMESTAMP,
	created_at           TIMESTAMP      NOT NULL DEFAULT NOW(),
	updated_at           TIMESTAMP      NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS grants_archive_date_idx ON grants (archive_date);
`

// EnsureSchema creates the grants table if it does not exist yet.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, grantsDDL); err != nil {
		return fmt.Errorf("ensure grants schema: %w", err)
	}
	return nil
}

package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/colby-usm/GrantGuru/internal/model"
	"github.com/colby-usm/GrantGuru/internal/normalize"
)

const uniqueViolation = "23505"

const grantColumns = `id, opportunity_number, title, description, research_field,
	expected_award_count, eligibility, provider, link,
	award_max_amount, award_min_amount, program_funding, point_of_contact,
	posting_date, archive_date, response_date, last_updated_date,
	created_at, updated_at`

// PostgresStore keeps grants in the Postgres "grants" table.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore wraps an open pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) BeginTx(ctx context.Context) (Tx, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return nil, fmt.Errorf("pool.BeginTx: %w", err)
	}
	return &pgTx{tx: tx}, nil
}

func (s *PostgresStore) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM grants`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count grants: %w", err)
	}
	return n, nil
}

func (s *PostgresStore) List(ctx context.Context) ([]model.StoredRecord, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+grantColumns+` FROM grants ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("list grants: %w", err)
	}
	defer rows.Close()

	out := make([]model.StoredRecord, 0)
	for rows.Next() {
		rec, err := scanGrant(rows)
		if err != nil {
			return nil, fmt.Errorf("list grants scan: %w", err)
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

func (s *PostgresStore) PurgeArchived(ctx context.Context, before time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM grants WHERE archive_date IS NOT NULL AND archive_date < $1`,
		before.UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("purge archived: %w", err)
	}
	return tag.RowsAffected(), nil
}

type pgTx struct {
	tx pgx.Tx
}

// FindByOpportunityNumber locks the matching row for the rest of the tx.
func (t *pgTx) FindByOpportunityNumber(ctx context.Context, number string) (*model.StoredRecord, error) {
	row := t.tx.QueryRow(ctx,
		`SELECT `+grantColumns+` FROM grants WHERE opportunity_number = $1 FOR UPDATE`,
		number,
	)
	rec, err := scanGrant(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find grant %q: %w", number, err)
	}
	return rec, nil
}

func (t *pgTx) Insert(ctx context.Context, rec *model.StoredRecord) error {
	_, err := t.tx.Exec(ctx,
		`INSERT INTO grants (`+grantColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10,
		         $11, $12, $13, $14, $15, $16, $17, $18, $19)`,
		grantArgs(rec)...,
	)
	return mapWriteError("insert grant", err)
}

func (t *pgTx) Update(ctx context.Context, rec *model.StoredRecord) error {
	args := grantArgs(rec)
	args = append(args[:17:17], args[18])
	tag, err := t.tx.Exec(ctx,
		`UPDATE grants SET
		   opportunity_number = $2, title = $3, description = $4, research_field = $5,
		   expected_award_count = $6, eligibility = $7, provider = $8, link = $9,
		   award_max_amount = $10, award_min_amount = $11, program_funding = $12,
		   point_of_contact = $13, posting_date = $14, archive_date = $15,
		   response_date = $16, last_updated_date = $17, updated_at = $18
		 WHERE id = $1`,
		args...,
	)
	if err := mapWriteError("update grant", err); err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *pgTx) Commit(ctx context.Context) error   { return t.tx.Commit(ctx) }
func (t *pgTx) Rollback(ctx context.Context) error { return t.tx.Rollback(ctx) }

func grantArgs(rec *model.StoredRecord) []any {
	c := rec.CleanedRecord
	return []any{
		rec.ID, c.OpportunityNumber, c.Title, c.Description, c.ResearchField,
		c.ExpectedAwardCount, c.Eligibility, c.Provider, c.Link,
		c.AwardMaxAmount, c.AwardMinAmount, c.ProgramFunding, encodeContact(c.PointOfContact),
		normalize.ParseCanonical(c.Dates.PostingDate),
		normalize.ParseCanonical(c.Dates.ArchiveDate),
		normalize.ParseCanonical(c.Dates.ResponseDate),
		normalize.ParseCanonical(c.Dates.LastUpdatedDate),
		rec.CreatedAt.UTC(), rec.UpdatedAt.UTC(),
	}
}

func scanGrant(row pgx.Row) (*model.StoredRecord, error) {
	var (
		rec                                     model.StoredRecord
		contact                                 string
		posting, archive, response, lastUpdated *time.Time
	)
	c := &rec.CleanedRecord
	err := row.Scan(
		&rec.ID, &c.OpportunityNumber, &c.Title, &c.Description, &c.ResearchField,
		&c.ExpectedAwardCount, &c.Eligibility, &c.Provider, &c.Link,
		&c.AwardMaxAmount, &c.AwardMinAmount, &c.ProgramFunding, &contact,
		&posting, &archive, &response, &lastUpdated,
		&rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	c.PointOfContact = decodeContact(contact)
	c.Dates = model.Dates{
		PostingDate:     normalize.FormatCanonical(posting),
		ArchiveDate:     normalize.FormatCanonical(archive),
		ResponseDate:    normalize.FormatCanonical(response),
		LastUpdatedDate: normalize.FormatCanonical(lastUpdated),
	}
	return &rec, nil
}

func mapWriteError(op string, err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return fmt.Errorf("%s: %w", op, ErrConflict)
	}
	return fmt.Errorf("%s: %w", op, err)
}

package member

import (
	"context"
	stderrors "errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/paramean/targeting/internal/shared/errors"
)

// Store is the persistence the HTTP handler needs. Every mutation recomputes
// eligibility flags before it commits.
type Store interface {
	List(ctx context.Context) ([]Member, error)
	Add(ctx context.Context, in NewMember) (Member, RecalcResult, error)
	Delete(ctx context.Context, id int64) (bool, RecalcResult, error)
	Settings(ctx context.Context) (Thresholds, error)
	UpdateSettings(ctx context.Context, t Thresholds) (RecalcResult, error)
	Recalculate(ctx context.Context) (RecalcResult, error)
}

const uniqueViolation = "23505"

// Repository stores members and settings in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new member repository
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const memberColumns = `id, member_name, family_name, pmpm,
	pmpm_eligible, anchor, family_eligible, eligible, created_at`

func scanMember(row pgx.Row) (Member, error) {
	var m Member
	err := row.Scan(&m.ID, &m.Name, &m.FamilyName, &m.PMPM,
		&m.PMPMEligible, &m.Anchor, &m.FamilyEligible, &m.Eligible, &m.CreatedAt)
	return m, err
}

// List returns every member ordered by id.
func (r *Repository) List(ctx context.Context) ([]Member, error) {
	members, err := listMembers(ctx, r.pool)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list members")
	}
	return members, nil
}

// queryer is satisfied by both the pool and a transaction.
type queryer interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func listMembers(ctx context.Context, q queryer) ([]Member, error) {
	rows, err := q.Query(ctx, `SELECT `+memberColumns+` FROM members ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	members := []Member{}
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, err
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

// Add inserts a member and recalculates. A duplicate (name, family, pmpm)
// triple is rejected with a conflict and nothing is written.
func (r *Repository) Add(ctx context.Context, in NewMember) (Member, RecalcResult, error) {
	var (
		m   Member
		res RecalcResult
	)
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		var err error
		m, err = scanMember(tx.QueryRow(ctx, `
			INSERT INTO members (member_name, family_name, pmpm)
			VALUES ($1, $2, $3)
			RETURNING `+memberColumns,
			in.Name, in.FamilyName, in.PMPM,
		))
		if err != nil {
			var pgErr *pgconn.PgError
			if stderrors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
				return errors.Conflict(DuplicateMessage)
			}
			return fmt.Errorf("insert member: %w", err)
		}

		res, err = recalculate(ctx, tx)
		return err
	})
	if err != nil {
		return Member{}, RecalcResult{}, errors.Wrap(err, "failed to add member")
	}
	return m, res, nil
}

// Delete removes a member by id and recalculates. It reports whether a row
// was removed; deleting an unknown id is not an error.
func (r *Repository) Delete(ctx context.Context, id int64) (bool, RecalcResult, error) {
	var (
		deleted bool
		res     RecalcResult
	)
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `DELETE FROM members WHERE id = $1`, id)
		if err != nil {
			return fmt.Errorf("delete member: %w", err)
		}
		deleted = tag.RowsAffected() > 0

		res, err = recalculate(ctx, tx)
		return err
	})
	if err != nil {
		return false, RecalcResult{}, errors.Wrap(err, "failed to delete member")
	}
	return deleted, res, nil
}

// Settings returns the stored eligibility band.
func (r *Repository) Settings(ctx context.Context) (Thresholds, error) {
	t, ok, err := readSettings(ctx, r.pool)
	if err != nil {
		return Thresholds{}, errors.Wrap(err, "failed to read settings")
	}
	if !ok {
		return Thresholds{}, errors.NotFound("settings", "1")
	}
	return t, nil
}

type rowQueryer interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func readSettings(ctx context.Context, q rowQueryer) (Thresholds, bool, error) {
	var t Thresholds
	err := q.QueryRow(ctx, `SELECT pmpm_lower, pmpm_upper FROM settings WHERE id = 1`).Scan(&t.Lower, &t.Upper)
	if stderrors.Is(err, pgx.ErrNoRows) {
		return Thresholds{}, false, nil
	}
	if err != nil {
		return Thresholds{}, false, err
	}
	return t, true, nil
}

// UpdateSettings replaces the band and recalculates in the same transaction.
func (r *Repository) UpdateSettings(ctx context.Context, t Thresholds) (RecalcResult, error) {
	var res RecalcResult
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO settings (id, pmpm_lower, pmpm_upper, updated_at)
			VALUES (1, $1, $2, NOW())
			ON CONFLICT (id) DO UPDATE
			SET pmpm_lower = EXCLUDED.pmpm_lower,
				pmpm_upper = EXCLUDED.pmpm_upper,
				updated_at = EXCLUDED.updated_at`,
			t.Lower, t.Upper,
		)
		if err != nil {
			return fmt.Errorf("update settings: %w", err)
		}

		res, err = recalculate(ctx, tx)
		return err
	})
	if err != nil {
		return RecalcResult{}, errors.Wrap(err, "failed to update settings")
	}
	return res, nil
}

// Recalculate recomputes every member's flags on its own.
func (r *Repository) Recalculate(ctx context.Context) (RecalcResult, error) {
	var res RecalcResult
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		var err error
		res, err = recalculate(ctx, tx)
		return err
	})
	if err != nil {
		return RecalcResult{}, errors.Wrap(err, "failed to recalculate eligibility")
	}
	return res, nil
}

// recalculate reads the thresholds once, derives every member's flags and
// writes them back in one batch on tx.
func recalculate(ctx context.Context, tx pgx.Tx) (RecalcResult, error) {
	t, ok, err := readSettings(ctx, tx)
	if err != nil {
		return RecalcResult{}, fmt.Errorf("read settings: %w", err)
	}
	if !ok {
		return RecalcResult{Skipped: true}, nil
	}

	members, err := listMembers(ctx, tx)
	if err != nil {
		return RecalcResult{}, fmt.Errorf("list members: %w", err)
	}
	updated := Recalculate(members, t)

	batch := &pgx.Batch{}
	for _, m := range updated {
		batch.Queue(`
			UPDATE members
			SET pmpm_eligible = $1, anchor = $2, family_eligible = $3, eligible = $4
			WHERE id = $5`,
			m.PMPMEligible, m.Anchor, m.FamilyEligible, m.Eligible, m.ID,
		)
	}
	if batch.Len() > 0 {
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return RecalcResult{}, fmt.Errorf("write flags: %w", err)
		}
	}

	return summarize(updated), nil
}

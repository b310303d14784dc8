package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/liveshop/liveshop/internal/domain"
)

const sessionColumns = `id, title, description, product_ids, status, start_time, end_time,
	total_viewers, peak_viewers, total_reactions, total_questions,
	reactions_like, reactions_love, reactions_wow, reactions_fire,
	created_at, updated_at`

const analyticsColumns = `total_viewers, peak_viewers, total_reactions, total_questions,
	reactions_like, reactions_love, reactions_wow, reactions_fire`

// reactionColumns whitelists the per-kind counter columns. Only values from
// this map are ever interpolated into SQL.
var reactionColumns = map[domain.ReactionKind]string{
	domain.ReactionLike: "reactions_like",
	domain.ReactionLove: "reactions_love",
	domain.ReactionWow:  "reactions_wow",
	domain.ReactionFire: "reactions_fire",
}

type SessionRepo struct {
	pool *pgxpool.Pool
}

func NewSessionRepo(pool *pgxpool.Pool) *SessionRepo {
	return &SessionRepo{pool: pool}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*domain.Session, error) {
	var (
		s    domain.Session
		like, love, wow, fire int
	)
	err := row.Scan(
		&s.ID, &s.Title, &s.Description, &s.ProductIDs, &s.Status, &s.StartTime, &s.EndTime,
		&s.Analytics.TotalViewers, &s.Analytics.PeakViewers,
		&s.Analytics.TotalReactions, &s.Analytics.TotalQuestions,
		&like, &love, &wow, &fire,
		&s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	s.Analytics.ReactionBreakdown = map[domain.ReactionKind]int{
		domain.ReactionLike: like,
		domain.ReactionLove: love,
		domain.ReactionWow:  wow,
		domain.ReactionFire: fire,
	}
	return &s, nil
}

func scanAnalytics(row rowScanner) (domain.Analytics, error) {
	var (
		a    domain.Analytics
		like, love, wow, fire int
	)
	err := row.Scan(
		&a.TotalViewers, &a.PeakViewers, &a.TotalReactions, &a.TotalQuestions,
		&like, &love, &wow, &fire,
	)
	if err != nil {
		return domain.Analytics{}, err
	}
	a.ReactionBreakdown = map[domain.ReactionKind]int{
		domain.ReactionLike: like,
		domain.ReactionLove: love,
		domain.ReactionWow:  wow,
		domain.ReactionFire: fire,
	}
	return a, nil
}

func (r *SessionRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Session, error) {
	row := r.pool.QueryRow(ctx, fmt.Sprintf(`SELECT %s FROM sessions WHERE id = $1`, sessionColumns), id)
	s, err := scanSession(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return s, nil
}

func (r *SessionRepo) List(ctx context.Context, filter domain.SessionFilter) ([]domain.Session, error) {
	query := fmt.Sprintf(`SELECT %s FROM sessions`, sessionColumns)
	var args []any
	if filter.Status != nil {
		query += ` WHERE status = $1`
		args = append(args, *filter.Status)
	}
	query += ` ORDER BY start_time DESC`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []domain.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, *s)
	}
	return sessions, rows.Err()
}

func (r *SessionRepo) FindLive(ctx context.Context) (*domain.Session, error) {
	row := r.pool.QueryRow(ctx, fmt.Sprintf(`SELECT %s FROM sessions WHERE status = 'live' LIMIT 1`, sessionColumns))
	s, err := scanSession(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find live session: %w", err)
	}
	return s, nil
}

func (r *SessionRepo) Create(ctx context.Context, title, description string, productIDs []uuid.UUID, startTime time.Time) (*domain.Session, error) {
	if productIDs == nil {
		productIDs = []uuid.UUID{}
	}
	row := r.pool.QueryRow(ctx, fmt.Sprintf(`
		INSERT INTO sessions (title, description, product_ids, start_time)
		VALUES ($1, $2, $3, $4)
		RETURNING %s`, sessionColumns),
		title, description, productIDs, startTime)

	s, err := scanSession(row)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	return s, nil
}

func (r *SessionRepo) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM sessions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrSessionNotFound
	}
	return nil
}

// SetStatus transitions a session's lifecycle state. Going live ends every
// other live session first; both writes happen in one transaction so two
// near-simultaneous activations cannot both end up live.
func (r *SessionRepo) SetStatus(ctx context.Context, id uuid.UUID, status domain.SessionStatus) (*domain.Session, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if status == domain.StatusLive {
		if _, err := tx.Exec(ctx, `
			UPDATE sessions SET status = 'ended', end_time = NOW(), updated_at = NOW()
			WHERE status = 'live' AND id <> $1`, id); err != nil {
			return nil, fmt.Errorf("failed to end live sessions: %w", err)
		}
	}

	row := tx.QueryRow(ctx, fmt.Sprintf(`
		UPDATE sessions
		SET status = $2,
		    end_time = CASE
		        WHEN $2 = 'ended' THEN NOW()
		        WHEN $2 = 'live' THEN NULL
		        ELSE end_time
		    END,
		    updated_at = NOW()
		WHERE id = $1
		RETURNING %s`, sessionColumns), id, status)

	s, err := scanSession(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update session status: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return s, nil
}

// RecordViewerPeak raises both viewer counters to at least current.
// GREATEST makes the write idempotent and safe under interleaving.
func (r *SessionRepo) RecordViewerPeak(ctx context.Context, id uuid.UUID, current int) (domain.Analytics, error) {
	row := r.pool.QueryRow(ctx, fmt.Sprintf(`
		UPDATE sessions
		SET total_viewers = GREATEST(total_viewers, $2),
		    peak_viewers = GREATEST(peak_viewers, $2),
		    updated_at = NOW()
		WHERE id = $1
		RETURNING %s`, analyticsColumns), id, current)

	a, err := scanAnalytics(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Analytics{}, domain.ErrSessionNotFound
	}
	if err != nil {
		return domain.Analytics{}, fmt.Errorf("failed to record viewer peak: %w", err)
	}
	return a, nil
}

// RecordReaction atomically increments the total and, for known kinds, the
// per-kind counter. Unknown kinds only bump the total.
func (r *SessionRepo) RecordReaction(ctx context.Context, id uuid.UUID, kind domain.ReactionKind) (domain.Analytics, error) {
	set := `total_reactions = total_reactions + 1`
	if col, ok := reactionColumns[kind]; ok {
		set = fmt.Sprintf(`total_reactions = total_reactions + 1, %s = %s + 1`, col, col)
	}

	row := r.pool.QueryRow(ctx, fmt.Sprintf(`
		UPDATE sessions SET %s, updated_at = NOW()
		WHERE id = $1
		RETURNING %s`, set, analyticsColumns), id)

	a, err := scanAnalytics(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Analytics{}, domain.ErrSessionNotFound
	}
	if err != nil {
		return domain.Analytics{}, fmt.Errorf("failed to record reaction: %w", err)
	}
	return a, nil
}

func (r *SessionRepo) RecordQuestion(ctx context.Context, id uuid.UUID) (domain.Analytics, error) {
	row := r.pool.QueryRow(ctx, fmt.Sprintf(`
		UPDATE sessions SET total_questions = total_questions + 1, updated_at = NOW()
		WHERE id = $1
		RETURNING %s`, analyticsColumns), id)

	a, err := scanAnalytics(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Analytics{}, domain.ErrSessionNotFound
	}
	if err != nil {
		return domain.Analytics{}, fmt.Errorf("failed to record question: %w", err)
	}
	return a, nil
}

func (r *SessionRepo) ReplaceAnalytics(ctx context.Context, id uuid.UUID, analytics domain.Analytics) (*domain.Session, error) {
	row := r.pool.QueryRow(ctx, fmt.Sprintf(`
		UPDATE sessions
		SET total_viewers = $2, peak_viewers = $3, total_reactions = $4, total_questions = $5,
		    reactions_like = $6, reactions_love = $7, reactions_wow = $8, reactions_fire = $9,
		    updated_at = NOW()
		WHERE id = $1
		RETURNING %s`, sessionColumns),
		id,
		analytics.TotalViewers, analytics.PeakViewers,
		analytics.TotalReactions, analytics.TotalQuestions,
		analytics.ReactionBreakdown[domain.ReactionLike],
		analytics.ReactionBreakdown[domain.ReactionLove],
		analytics.ReactionBreakdown[domain.ReactionWow],
		analytics.ReactionBreakdown[domain.ReactionFire],
	)

	s, err := scanSession(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to replace analytics: %w", err)
	}
	return s, nil
}

package db

import (
	"context"
	"fmt"

	"github.com/dickeyy/pr-metrics/types"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

const schema = `
	CREATE TABLE IF NOT EXISTS pr_metrics (
		repo TEXT NOT NULL,
		number INTEGER NOT NULL,
		time_to_review DOUBLE PRECISION NOT NULL,
		comments INTEGER NOT NULL,
		review_comments INTEGER NOT NULL,
		changed_files INTEGER NOT NULL,
		additions INTEGER NOT NULL,
		deletions INTEGER NOT NULL,
		total_changes INTEGER NOT NULL,
		is_merged BOOLEAN NOT NULL,
		user_type TEXT NOT NULL,
		ci_status TEXT NOT NULL,
		replicated_code BOOLEAN NOT NULL,
		wont_fix BOOLEAN NOT NULL,
		superseded BOOLEAN NOT NULL,
		collected_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		PRIMARY KEY (repo, number)
	);
`

const upsertRecord = `
	INSERT INTO pr_metrics (
		repo, number, time_to_review, comments, review_comments, changed_files,
		additions, deletions, total_changes, is_merged, user_type, ci_status,
		replicated_code, wont_fix, superseded
	)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	ON CONFLICT (repo, number)
	DO UPDATE SET
		time_to_review = EXCLUDED.time_to_review,
		comments = EXCLUDED.comments,
		review_comments = EXCLUDED.review_comments,
		changed_files = EXCLUDED.changed_files,
		additions = EXCLUDED.additions,
		deletions = EXCLUDED.deletions,
		total_changes = EXCLUDED.total_changes,
		is_merged = EXCLUDED.is_merged,
		user_type = EXCLUDED.user_type,
		ci_status = EXCLUDED.ci_status,
		replicated_code = EXCLUDED.replicated_code,
		wont_fix = EXCLUDED.wont_fix,
		superseded = EXCLUDED.superseded,
		collected_at = now();
`

// Store mirrors the CSV table into Postgres.
type Store struct {
	pool *pgxpool.Pool
}

func Open(ctx context.Context, connString string) (*Store, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	log.Info().Msg("connected to Postgres")

	s := &Store{pool: pool}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return s, nil
}

// SaveRecords upserts every record for repo in a single batch.
func (s *Store) SaveRecords(ctx context.Context, repo string, records []types.PRRecord) error {
	if len(records) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, r := range recordArgs(repo, records) {
		batch.Queue(upsertRecord, r...)
	}
	if err := s.pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("upsert pr_metrics: %w", err)
	}
	log.Info().Str("repo", repo).Int("rows", len(records)).Msg("saved PR metrics to Postgres")
	return nil
}

func recordArgs(repo string, records []types.PRRecord) [][]any {
	out := make([][]any, 0, len(records))
	for _, r := range records {
		out = append(out, []any{
			repo, r.Number, r.TimeToReview, r.Comments, r.ReviewComments, r.ChangedFiles,
			r.Additions, r.Deletions, r.TotalChanges, r.IsMerged, string(r.UserType), string(r.CIStatus),
			r.ReplicatedCode, r.WontFix, r.Superseded,
		})
	}
	return out
}

func (s *Store) Close() {
	if s != nil && s.pool != nil {
		s.pool.Close()
	}
}

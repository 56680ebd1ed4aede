package scraper

import (
	"context"
	"fmt"
	"time"

	"github.com/dickeyy/pr-metrics/types"
	"github.com/rs/zerolog/log"
)

const DefaultLimit = 500

// Source is everything the collector needs from the hosting platform.
type Source interface {
	// ListPullRequests returns one page of pull requests in every state.
	// A nextPage of 0 means the listing is exhausted.
	ListPullRequests(ctx context.Context, page int) (prs []types.PullRequest, nextPage int, err error)
	PullRequest(ctx context.Context, number int) (types.PullRequest, error)
	Contributions(ctx context.Context, login string) (int, error)
	IssueComments(ctx context.Context, number int) ([]string, error)
	Labels(ctx context.Context, number int) ([]string, error)
	LatestCommitStatus(ctx context.Context, number int) (string, error)
	FileNames(ctx context.Context, number int) ([]string, error)
}

// outcome is the result of enriching a single pull request: a record, or
// the reason it was skipped.
type outcome struct {
	number int
	record types.PRRecord
	err    error
}

func (o outcome) skipped() bool { return o.err != nil }

// Stats counts what the last Run saw: pull requests listed, turned into
// records, and skipped after a failed lookup.
type Stats struct {
	Listed    int
	Processed int
	Skipped   int
}

// Collector turns a Source's pull requests into output records.
type Collector struct {
	src   Source
	limit int
	now   func() time.Time
	stats Stats
}

// Option configures a Collector.
type Option func(*Collector)

// WithLimit caps the number of records Run produces. Non-positive values
// keep the default.
func WithLimit(n int) Option {
	return func(c *Collector) {
		if n > 0 {
			c.limit = n
		}
	}
}

// WithClock replaces the clock used for open pull requests.
func WithClock(now func() time.Time) Option {
	return func(c *Collector) { c.now = now }
}

// New returns a Collector reading from src, capped at DefaultLimit unless
// WithLimit says otherwise.
func New(src Source, opts ...Option) *Collector {
	c := &Collector{src: src, limit: DefaultLimit, now: time.Now}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Stats reports the counters of the most recent Run.
func (c *Collector) Stats() Stats { return c.stats }

// Run walks the pull request listing page by page and returns one record per
// successfully enriched pull request, in listing order. It stops once limit
// records have been produced or the listing is exhausted. Pull requests that
// fail enrichment are logged and do not count toward the limit.
func (c *Collector) Run(ctx context.Context) ([]types.PRRecord, error) {
	c.stats = Stats{}
	records := make([]types.PRRecord, 0, c.limit)

	page := 1
	for {
		prs, next, err := c.src.ListPullRequests(ctx, page)
		if err != nil {
			return nil, fmt.Errorf("list pull requests page %d: %w", page, err)
		}
		log.Debug().Int("page", page).Int("page_count", len(prs)).Msg("fetched PR page")

		for _, pr := range prs {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			c.stats.Listed++

			out := c.collect(ctx, pr)
			if out.skipped() {
				if ctxErr := ctx.Err(); ctxErr != nil {
					return nil, ctxErr
				}
				c.stats.Skipped++
				log.Error().Int("number", out.number).Err(out.err).Msg("failed to process PR")
				continue
			}

			records = append(records, out.record)
			c.stats.Processed++
			log.Info().
				Int("number", out.number).
				Int("processed", c.stats.Processed).
				Int("limit", c.limit).
				Str("progress", fmt.Sprintf("%.2f%%", float64(c.stats.Processed)*100/float64(c.limit))).
				Msg("scraped PR")

			if c.stats.Processed == c.limit {
				c.logDone()
				return records, nil
			}
		}

		if next == 0 {
			break
		}
		page = next
	}

	c.logDone()
	return records, nil
}

func (c *Collector) logDone() {
	log.Info().
		Int("listed", c.stats.Listed).
		Int("processed", c.stats.Processed).
		Int("skipped", c.stats.Skipped).
		Msg("completed PR processing")
}

// collect runs every lookup for one pull request. Any failing step skips the
// whole pull request.
func (c *Collector) collect(ctx context.Context, listed types.PullRequest) outcome {
	number := listed.Number
	skip := func(step string, err error) outcome {
		return outcome{number: number, err: fmt.Errorf("%s: %w", step, err)}
	}

	pr, err := c.src.PullRequest(ctx, number)
	if err != nil {
		return skip("get pull request", err)
	}
	if pr.Author == "" {
		return skip("get pull request", fmt.Errorf("pull request #%d has no author", number))
	}

	reviewHours := ReviewHours(pr.CreatedAt, pr.ClosedAt, c.now())

	contributions, err := c.src.Contributions(ctx, pr.Author)
	if err != nil {
		return skip("get contributions", err)
	}

	state, err := c.src.LatestCommitStatus(ctx, number)
	if err != nil {
		return skip("get commit status", err)
	}

	files, err := c.src.FileNames(ctx, number)
	if err != nil {
		return skip("list files", err)
	}

	comments, err := c.src.IssueComments(ctx, number)
	if err != nil {
		return skip("list comments", err)
	}

	labels, err := c.src.Labels(ctx, number)
	if err != nil {
		return skip("list labels", err)
	}

	wontFixComments, supersededComments := CommentSignals(comments)
	wontFixLabels, supersededLabels := LabelSignals(labels)

	return outcome{
		number: number,
		record: types.PRRecord{
			Number:         number,
			TimeToReview:   reviewHours,
			Comments:       pr.Comments,
			ReviewComments: pr.ReviewComments,
			ChangedFiles:   pr.ChangedFiles,
			Additions:      pr.Additions,
			Deletions:      pr.Deletions,
			TotalChanges:   pr.Additions + pr.Deletions,
			IsMerged:       pr.Merged,
			UserType:       ClassifyUser(contributions),
			CIStatus:       MapCIStatus(state),
			ReplicatedCode: HasReplicatedCode(files),
			WontFix:        wontFixComments || wontFixLabels,
			Superseded:     supersededComments || supersededLabels,
		},
	}
}

package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/dickeyy/pr-metrics/types"
	"github.com/google/go-github/v74/github"
	"github.com/rs/zerolog/log"
	"github.com/shurcooL/githubv4"
	"golang.org/x/oauth2"
)

const (
	perPage              = 100
	maxServerRetries     = 3
	maxRateLimitRetries  = 3
	defaultServerWait    = 3 * time.Second
	defaultAbuseWait     = 10 * time.Second
	defaultRateLimitWait = 5 * time.Second
)

// Client reads pull request data for one repository. It satisfies
// scraper.Source.
type Client struct {
	rest  *github.Client
	gql   *githubv4.Client
	owner string
	repo  string

	serverWait    time.Duration
	rateLimitWait time.Duration

	contribMu sync.Mutex
	contrib   map[string]int
}

type Options struct {
	Token      string
	Owner      string
	Repo       string
	APIURL     string // REST base URL, e.g. https://ghe.example.com/api/v3/
	GraphQLURL string // GraphQL endpoint, e.g. https://ghe.example.com/api/graphql
	HTTPClient *http.Client
}

// NewClient builds REST and GraphQL clients sharing one authenticated
// transport.
func NewClient(ctx context.Context, opts Options) (*Client, error) {
	if opts.Owner == "" || opts.Repo == "" {
		return nil, errors.New("owner and repo are required")
	}

	hc := opts.HTTPClient
	if hc == nil {
		hc = http.DefaultClient
	}
	if opts.Token != "" {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, hc)
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: opts.Token})
		hc = oauth2.NewClient(ctx, ts)
	}

	rest := github.NewClient(hc)
	if opts.APIURL != "" {
		u, err := url.Parse(strings.TrimSuffix(opts.APIURL, "/") + "/")
		if err != nil {
			return nil, fmt.Errorf("parse api url: %w", err)
		}
		rest.BaseURL = u
	}

	gql := githubv4.NewClient(hc)
	if opts.GraphQLURL != "" {
		gql = githubv4.NewEnterpriseClient(opts.GraphQLURL, hc)
	}

	log.Info().Bool("token_present", opts.Token != "").Str("owner", opts.Owner).Str("repo", opts.Repo).Msg("GitHub client initialized")

	return &Client{
		rest:          rest,
		gql:           gql,
		owner:         opts.Owner,
		repo:          opts.Repo,
		serverWait:    defaultServerWait,
		rateLimitWait: defaultAbuseWait,
	}, nil
}

// Verify fails when the repository cannot be read with the configured
// credentials.
func (c *Client) Verify(ctx context.Context) error {
	return c.call(ctx, "get repository", 0, func() (*github.Response, error) {
		_, resp, err := c.rest.Repositories.Get(ctx, c.owner, c.repo)
		return resp, err
	})
}

func (c *Client) ListPullRequests(ctx context.Context, page int) ([]types.PullRequest, int, error) {
	opts := &github.PullRequestListOptions{
		State:       "all",
		Sort:        "created",
		Direction:   "desc",
		ListOptions: github.ListOptions{PerPage: perPage, Page: page},
	}

	var (
		prs  []*github.PullRequest
		resp *github.Response
	)
	err := c.call(ctx, "list pull requests", 0, func() (*github.Response, error) {
		var err error
		prs, resp, err = c.rest.PullRequests.List(ctx, c.owner, c.repo, opts)
		return resp, err
	})
	if err != nil {
		return nil, 0, err
	}

	if resp != nil {
		log.Debug().Str("owner", c.owner).Str("repo", c.repo).Int("page", page).Int("page_count", len(prs)).Int("rate_remaining", resp.Rate.Remaining).Time("rate_reset", resp.Rate.Reset.Time).Msg("fetched PR page")
	}

	out := make([]types.PullRequest, 0, len(prs))
	for _, pr := range prs {
		if pr == nil {
			continue
		}
		out = append(out, toPullRequest(pr))
	}

	next := 0
	if resp != nil {
		next = resp.NextPage
	}
	return out, next, nil
}

// PullRequest fetches the detail view, which carries the comment, file and
// line counts the listing omits.
func (c *Client) PullRequest(ctx context.Context, number int) (types.PullRequest, error) {
	var pr *github.PullRequest
	err := c.call(ctx, "get pull request", number, func() (*github.Response, error) {
		var (
			resp *github.Response
			err  error
		)
		pr, resp, err = c.rest.PullRequests.Get(ctx, c.owner, c.repo, number)
		return resp, err
	})
	if err != nil {
		return types.PullRequest{}, err
	}
	if pr == nil || pr.CreatedAt == nil {
		return types.PullRequest{}, fmt.Errorf("pull request #%d: missing created_at", number)
	}
	return toPullRequest(pr), nil
}

func toPullRequest(pr *github.PullRequest) types.PullRequest {
	out := types.PullRequest{
		Number:         pr.GetNumber(),
		CreatedAt:      pr.GetCreatedAt().Time,
		Comments:       pr.GetComments(),
		ReviewComments: pr.GetReviewComments(),
		ChangedFiles:   pr.GetChangedFiles(),
		Additions:      pr.GetAdditions(),
		Deletions:      pr.GetDeletions(),
		Merged:         pr.GetMerged(),
		Author:         pr.GetUser().GetLogin(),
	}
	if pr.ClosedAt != nil {
		closed := pr.ClosedAt.Time
		out.ClosedAt = &closed
	}
	return out
}

// Contributions returns login's contribution count to the repository. The
// contributor list is fetched on first success and reused; a login missing
// from it has zero contributions.
func (c *Client) Contributions(ctx context.Context, login string) (int, error) {
	c.contribMu.Lock()
	defer c.contribMu.Unlock()

	if c.contrib == nil {
		counts, err := c.listContributors(ctx)
		if err != nil {
			return 0, err
		}
		c.contrib = counts
	}
	return c.contrib[strings.ToLower(login)], nil
}

func (c *Client) listContributors(ctx context.Context) (map[string]int, error) {
	opts := &github.ListContributorsOptions{ListOptions: github.ListOptions{PerPage: perPage, Page: 1}}
	counts := make(map[string]int)
	for {
		var (
			contributors []*github.Contributor
			resp         *github.Response
		)
		err := c.call(ctx, "list contributors", 0, func() (*github.Response, error) {
			var err error
			contributors, resp, err = c.rest.Repositories.ListContributors(ctx, c.owner, c.repo, opts)
			return resp, err
		})
		if err != nil {
			return nil, err
		}
		for _, ct := range contributors {
			if ct.GetLogin() == "" {
				continue
			}
			counts[strings.ToLower(ct.GetLogin())] = ct.GetContributions()
		}
		if resp == nil || resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	log.Info().Str("owner", c.owner).Str("repo", c.repo).Int("contributors", len(counts)).Msg("loaded contributors")
	return counts, nil
}

func (c *Client) IssueComments(ctx context.Context, number int) ([]string, error) {
	opts := &github.IssueListCommentsOptions{ListOptions: github.ListOptions{PerPage: perPage, Page: 1}}
	var bodies []string
	for {
		var (
			comments []*github.IssueComment
			resp     *github.Response
		)
		err := c.call(ctx, "list issue comments", number, func() (*github.Response, error) {
			var err error
			comments, resp, err = c.rest.Issues.ListComments(ctx, c.owner, c.repo, number, opts)
			return resp, err
		})
		if err != nil {
			return nil, err
		}
		for _, cm := range comments {
			bodies = append(bodies, cm.GetBody())
		}
		if resp == nil || resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return bodies, nil
}

func (c *Client) Labels(ctx context.Context, number int) ([]string, error) {
	opts := &github.ListOptions{PerPage: perPage, Page: 1}
	var names []string
	for {
		var (
			labels []*github.Label
			resp   *github.Response
		)
		err := c.call(ctx, "list labels", number, func() (*github.Response, error) {
			var err error
			labels, resp, err = c.rest.Issues.ListLabelsByIssue(ctx, c.owner, c.repo, number, opts)
			return resp, err
		})
		if err != nil {
			return nil, err
		}
		for _, l := range labels {
			names = append(names, l.GetName())
		}
		if resp == nil || resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return names, nil
}

func (c *Client) FileNames(ctx context.Context, number int) ([]string, error) {
	opts := &github.ListOptions{PerPage: perPage, Page: 1}
	var names []string
	for {
		var (
			files []*github.CommitFile
			resp  *github.Response
		)
		err := c.call(ctx, "list files", number, func() (*github.Response, error) {
			var err error
			files, resp, err = c.rest.PullRequests.ListFiles(ctx, c.owner, c.repo, number, opts)
			return resp, err
		})
		if err != nil {
			return nil, err
		}
		for _, f := range files {
			names = append(names, f.GetFilename())
		}
		if resp == nil || resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return names, nil
}

// call runs fn, sleeping through primary and secondary rate limits and
// retrying server errors a few times. Other errors are returned as is.
func (c *Client) call(ctx context.Context, op string, number int, fn func() (*github.Response, error)) error {
	serverErrors := 0
	for {
		resp, err := fn()
		if err == nil {
			return nil
		}

		var (
			rlErr    *github.RateLimitError
			abuseErr *github.AbuseRateLimitError
			sleepFor time.Duration
		)
		switch {
		case errors.As(err, &rlErr):
			resetAt := rlErr.Rate.Reset.Time
			sleepFor = time.Until(resetAt) + time.Second
			if sleepFor < 0 {
				sleepFor = defaultRateLimitWait
			}
			log.Warn().Str("op", op).Int("number", number).Time("reset_at", resetAt).Dur("sleep_for", sleepFor).Msg("rate limit reached; sleeping")
		case errors.As(err, &abuseErr):
			sleepFor = defaultAbuseWait
			if abuseErr.RetryAfter != nil {
				sleepFor = *abuseErr.RetryAfter
			}
			log.Warn().Str("op", op).Int("number", number).Dur("sleep_for", sleepFor).Msg("abuse detection triggered; backing off")
		case resp != nil && resp.Response != nil && resp.StatusCode >= 500 && serverErrors < maxServerRetries:
			serverErrors++
			sleepFor = c.serverWait
			log.Warn().Str("op", op).Int("number", number).Int("status", resp.StatusCode).Int("attempt", serverErrors).Msg("server error; retrying")
		default:
			return fmt.Errorf("%s: %w", op, err)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(sleepFor):
		}
	}
}

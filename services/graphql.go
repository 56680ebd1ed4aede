package services

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shurcooL/githubv4"
)

type latestStatusQuery struct {
	Repository struct {
		PullRequest *struct {
			Commits struct {
				Nodes []struct {
					Commit struct {
						Oid    githubv4.GitObjectID
						Status *struct {
							State githubv4.StatusState
						}
					}
				}
			} `graphql:"commits(last: 1)"`
		} `graphql:"pullRequest(number: $number)"`
	} `graphql:"repository(owner: $owner, name: $name)"`
}

// LatestCommitStatus returns the lowercased combined status state of the
// most recent commit of a pull request. A commit nobody reported a status
// for is "pending", as the REST combined-status endpoint reports it.
func (c *Client) LatestCommitStatus(ctx context.Context, number int) (string, error) {
	var q latestStatusQuery
	vars := map[string]any{
		"owner":  githubv4.String(c.owner),
		"name":   githubv4.String(c.repo),
		"number": githubv4.Int(number),
	}
	if err := c.query(ctx, "query latest commit status", number, &q, vars); err != nil {
		return "", err
	}

	pr := q.Repository.PullRequest
	if pr == nil {
		return "", fmt.Errorf("pull request #%d not found", number)
	}
	if len(pr.Commits.Nodes) == 0 {
		return "", fmt.Errorf("pull request #%d has no commits", number)
	}

	status := pr.Commits.Nodes[len(pr.Commits.Nodes)-1].Commit.Status
	if status == nil {
		return "pending", nil
	}
	return strings.ToLower(string(status.State)), nil
}

// githubv4 reports non-200 responses only as text.
var graphqlStatusRE = regexp.MustCompile(`non-200 OK status code: (\d{3})`)

func graphqlStatus(err error) int {
	m := graphqlStatusRE.FindStringSubmatch(err.Error())
	if m == nil {
		return 0
	}
	code, _ := strconv.Atoi(m[1])
	return code
}

// graphqlRateLimited covers HTTP 429, the 403 secondary limit and the
// RATE_LIMITED error GitHub returns with a 200.
func graphqlRateLimited(err error, status int) bool {
	if status == 429 {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "rate limit") || strings.Contains(msg, "rate_limited")
}

// query is the GraphQL counterpart of call: rate limits back off and server
// errors retry, each a bounded number of times.
func (c *Client) query(ctx context.Context, op string, number int, q any, vars map[string]any) error {
	serverErrors, rateLimited := 0, 0
	for {
		err := c.gql.Query(ctx, q, vars)
		if err == nil {
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		status := graphqlStatus(err)
		var sleepFor time.Duration
		switch {
		case graphqlRateLimited(err, status) && rateLimited < maxRateLimitRetries:
			rateLimited++
			sleepFor = c.rateLimitWait
			log.Warn().Str("op", op).Int("number", number).Int("status", status).Dur("sleep_for", sleepFor).Msg("GraphQL rate limit; backing off")
		case status >= 500 && serverErrors < maxServerRetries:
			serverErrors++
			sleepFor = c.serverWait
			log.Warn().Str("op", op).Int("number", number).Int("status", status).Int("attempt", serverErrors).Msg("GraphQL server error; retrying")
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

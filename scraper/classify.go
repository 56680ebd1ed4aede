package scraper

import (
	"slices"
	"strings"
	"time"

	"github.com/dickeyy/pr-metrics/types"
)

var (
	wontFixPhrases    = []string{"won't fix", "wontfix", "will not fix", "not addressing", "won't do"}
	supersededPhrases = []string{"superseded", "replaced by", "duplicate of", "superseding"}

	wontFixTags    = []string{"wontfix", "invalid", "not fixable"}
	supersededTags = []string{"duplicate", "superseded"}
)

// ReviewHours is the time from creation to close in hours. Open pull requests
// are measured against now.
func ReviewHours(created time.Time, closed *time.Time, now time.Time) float64 {
	end := now.UTC()
	if closed != nil {
		end = closed.UTC()
	}
	hours := end.Sub(created.UTC()).Seconds() / 3600
	if hours < 0 {
		return 0
	}
	return hours
}

func ClassifyUser(contributions int) types.UserType {
	if contributions == 1 {
		return types.FirstTimer
	}
	return types.Regular
}

// MapCIStatus collapses any combined status other than success or failure
// (pending, error, expected, empty) to pending.
func MapCIStatus(state string) types.CIStatus {
	switch strings.ToLower(state) {
	case "success":
		return types.CISuccess
	case "failure":
		return types.CIFailure
	default:
		return types.CIPending
	}
}

// HasReplicatedCode reports whether a file name appears more than once.
func HasReplicatedCode(names []string) bool {
	seen := make(map[string]struct{}, len(names))
	for _, n := range names {
		if _, ok := seen[n]; ok {
			return true
		}
		seen[n] = struct{}{}
	}
	return false
}

// CommentSignals scans every comment body; one matching comment is enough
// for each outcome.
func CommentSignals(bodies []string) (wontFix, superseded bool) {
	for _, b := range bodies {
		body := strings.ToLower(b)
		if containsAny(body, wontFixPhrases) {
			wontFix = true
		}
		if containsAny(body, supersededPhrases) {
			superseded = true
		}
	}
	return wontFix, superseded
}

// LabelSignals matches whole label names, case-insensitively.
func LabelSignals(labels []string) (wontFix, superseded bool) {
	for _, l := range labels {
		name := strings.ToLower(l)
		if slices.Contains(wontFixTags, name) {
			wontFix = true
		}
		if slices.Contains(supersededTags, name) {
			superseded = true
		}
	}
	return wontFix, superseded
}

func containsAny(s string, phrases []string) bool {
	for _, p := range phrases {
		if strings.Contains(s, p) {
			return true
		}
	}
	return false
}

package scraper

import (
	"testing"
	"time"

	"github.com/dickeyy/pr-metrics/types"
	"github.com/stretchr/testify/assert"
)

func TestReviewHours(t *testing.T) {
	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	closed := created.Add(90 * time.Minute)
	now := created.Add(48 * time.Hour)

	assert.InDelta(t, 1.5, ReviewHours(created, &closed, now), 1e-9)
	assert.InDelta(t, 48.0, ReviewHours(created, nil, now), 1e-9)

	// Offsets are normalised before subtracting.
	est := time.FixedZone("EST", -5*3600)
	closedEST := time.Date(2023, 12, 31, 20, 0, 0, 0, est)
	assert.InDelta(t, 1.0, ReviewHours(created, &closedEST, now), 1e-9)

	before := created.Add(-time.Hour)
	assert.Zero(t, ReviewHours(created, &before, now))
}

func TestClassifyUser(t *testing.T) {
	assert.Equal(t, types.FirstTimer, ClassifyUser(1))
	assert.Equal(t, types.Regular, ClassifyUser(0))
	assert.Equal(t, types.Regular, ClassifyUser(2))
	assert.Equal(t, types.Regular, ClassifyUser(150))
}

func TestMapCIStatus(t *testing.T) {
	tests := map[string]types.CIStatus{
		"success":  types.CISuccess,
		"SUCCESS":  types.CISuccess,
		"failure":  types.CIFailure,
		"FAILURE":  types.CIFailure,
		"pending":  types.CIPending,
		"error":    types.CIPending,
		"expected": types.CIPending,
		"":         types.CIPending,
	}
	for input, want := range tests {
		assert.Equal(t, want, MapCIStatus(input), "state %q", input)
	}
}

func TestHasReplicatedCode(t *testing.T) {
	assert.True(t, HasReplicatedCode([]string{"a.txt", "b.txt", "a.txt"}))
	assert.False(t, HasReplicatedCode([]string{"a.txt", "b.txt"}))
	assert.False(t, HasReplicatedCode(nil))
	assert.False(t, HasReplicatedCode([]string{"dir/a.txt", "a.txt"}))
}

func TestCommentSignals(t *testing.T) {
	cases := []struct {
		name       string
		bodies     []string
		wontFix    bool
		superseded bool
	}{
		{"none", []string{"LGTM", "thanks!"}, false, false},
		{"empty", nil, false, false},
		{"wontfix upper", []string{"Marking as WONTFIX"}, true, false},
		{"won't do", []string{"We Won't Do this"}, true, false},
		{"not addressing", []string{"we are not addressing this now"}, true, false},
		{"replaced by", []string{"Replaced by #123"}, false, true},
		{"duplicate of", []string{"dup", "Duplicate of #9"}, false, true},
		{"both in one", []string{"won't fix, superseded by #10"}, true, true},
		{"both across", []string{"will not fix", "superseding this"}, true, true},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			w, s := CommentSignals(c.bodies)
			assert.Equal(t, c.wontFix, w)
			assert.Equal(t, c.superseded, s)
		})
	}
}

func TestLabelSignals(t *testing.T) {
	cases := []struct {
		name       string
		labels     []string
		wontFix    bool
		superseded bool
	}{
		{"none", []string{"bug", "enhancement"}, false, false},
		{"wontfix", []string{"WontFix"}, true, false},
		{"invalid", []string{"invalid"}, true, false},
		{"not fixable", []string{"Not Fixable"}, true, false},
		{"duplicate", []string{"duplicate"}, false, true},
		{"superseded", []string{"SUPERSEDED", "bug"}, false, true},
		{"substring does not match", []string{"not-a-duplicate"}, false, false},
		{"both", []string{"invalid", "duplicate"}, true, true},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			w, s := LabelSignals(c.labels)
			assert.Equal(t, c.wontFix, w)
			assert.Equal(t, c.superseded, s)
		})
	}
}

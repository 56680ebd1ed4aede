package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRowFollowsColumns(t *testing.T) {
	r := PRRecord{
		Number:         42,
		TimeToReview:   1.5,
		Comments:       3,
		ReviewComments: 2,
		ChangedFiles:   4,
		Additions:      10,
		Deletions:      5,
		TotalChanges:   15,
		IsMerged:       true,
		UserType:       FirstTimer,
		CIStatus:       CIFailure,
		ReplicatedCode: false,
		WontFix:        true,
		Superseded:     false,
	}

	row := r.Row()
	assert.Len(t, row, len(Columns))
	assert.Equal(t, []string{
		"42", "1.5", "3", "2", "4", "10", "5", "15",
		"True", "first_timer", "failure", "False", "True", "False",
	}, row)
}

func TestColumnsOrder(t *testing.T) {
	assert.Equal(t, "PR_Number", Columns[0])
	assert.Equal(t, "Superseded", Columns[len(Columns)-1])
	assert.Len(t, Columns, 14)
}

func TestFormatFloat(t *testing.T) {
	tests := map[float64]string{
		0:      "0.0",
		12:     "12.0",
		1.5:    "1.5",
		0.25:   "0.25",
		3456.0: "3456.0",
	}
	for input, want := range tests {
		assert.Equal(t, want, formatFloat(input), "formatFloat(%v)", input)
	}
}

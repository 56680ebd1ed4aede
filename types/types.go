package types

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// PullRequest is the upstream view of a pull request. Listing endpoints only
// fill the identifying fields; counts come from the detail call.
type PullRequest struct {
	Number         int        `json:"number"`
	CreatedAt      time.Time  `json:"created_at"`
	ClosedAt       *time.Time `json:"closed_at,omitempty"`
	Comments       int        `json:"comments"`
	ReviewComments int        `json:"review_comments"`
	ChangedFiles   int        `json:"changed_files"`
	Additions      int        `json:"additions"`
	Deletions      int        `json:"deletions"`
	Merged         bool       `json:"merged"`
	Author         string     `json:"author"`
}

type UserType string

const (
	FirstTimer UserType = "first_timer"
	Regular    UserType = "regular"
)

type CIStatus string

const (
	CISuccess CIStatus = "success"
	CIFailure CIStatus = "failure"
	CIPending CIStatus = "pending"
)

// PRRecord is one output row.
type PRRecord struct {
	Number         int      `json:"number"`
	TimeToReview   float64  `json:"time_to_review"`
	Comments       int      `json:"comments"`
	ReviewComments int      `json:"review_comments"`
	ChangedFiles   int      `json:"changed_files"`
	Additions      int      `json:"additions"`
	Deletions      int      `json:"deletions"`
	TotalChanges   int      `json:"total_changes"`
	IsMerged       bool     `json:"is_merged"`
	UserType       UserType `json:"user_type"`
	CIStatus       CIStatus `json:"ci_status"`
	ReplicatedCode bool     `json:"replicated_code"`
	WontFix        bool     `json:"wont_fix"`
	Superseded     bool     `json:"superseded"`
}

// Columns is the header of the output table. Row renders fields in this order.
var Columns = []string{
	"PR_Number", "Time_to_Review", "Comments", "Review_Comments",
	"Changed_Files", "Additions", "Deletions", "Total_Changes",
	"Is_Merged", "User_Type", "CI_Status", "Replicated_Code", "Wont_Fix", "Superseded",
}

func (r PRRecord) Row() []string {
	return []string{
		strconv.Itoa(r.Number),
		formatFloat(r.TimeToReview),
		strconv.Itoa(r.Comments),
		strconv.Itoa(r.ReviewComments),
		strconv.Itoa(r.ChangedFiles),
		strconv.Itoa(r.Additions),
		strconv.Itoa(r.Deletions),
		strconv.Itoa(r.TotalChanges),
		formatBool(r.IsMerged),
		string(r.UserType),
		string(r.CIStatus),
		formatBool(r.ReplicatedCode),
		formatBool(r.WontFix),
		formatBool(r.Superseded),
	}
}

// formatFloat writes the shortest representation, keeping a ".0" on whole
// numbers the way pandas does.
func formatFloat(f float64) string {
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if math.IsInf(f, 0) || math.IsNaN(f) || strings.Contains(s, ".") {
		return s
	}
	return s + ".0"
}

// formatBool keeps the True/False spelling the downstream analysis notebooks read.
func formatBool(b bool) string {
	if b {
		return "True"
	}
	return "False"
}

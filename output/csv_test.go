package output

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dickeyy/pr-metrics/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var records = []types.PRRecord{
	{
		Number: 1, TimeToReview: 10, ChangedFiles: 2, Additions: 10, Deletions: 4, TotalChanges: 14,
		UserType: types.FirstTimer, CIStatus: types.CIPending, ReplicatedCode: true, Superseded: true,
	},
	{
		Number: 2, TimeToReview: 0.25, ChangedFiles: 1, Additions: 3, Deletions: 3, TotalChanges: 6,
		IsMerged: true, UserType: types.Regular, CIStatus: types.CISuccess,
	},
}

const wantTable = `PR_Number,Time_to_Review,Comments,Review_Comments,Changed_Files,Additions,Deletions,Total_Changes,Is_Merged,User_Type,CI_Status,Replicated_Code,Wont_Fix,Superseded
1,10.0,0,0,2,10,4,14,False,first_timer,pending,True,False,True
2,0.25,0,0,1,3,3,6,True,regular,success,False,False,False
`

func TestWriteTable(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteTable(&buf, records))
	assert.Equal(t, wantTable, buf.String())
}

func TestWriteTableEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteTable(&buf, nil))
	assert.Equal(t, strings.Join(types.Columns, ",")+"\n", buf.String())
}

func TestWriteCSVFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pr_metrics.csv")
	require.NoError(t, os.WriteFile(path, []byte("stale"), 0o644))

	require.NoError(t, WriteCSVFile(path, records))

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, wantTable, string(got))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp file is renamed away")
}

func TestWriteCSVFileMissingDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nope", "pr_metrics.csv")
	assert.Error(t, WriteCSVFile(path, records))

	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

// Package output writes collected pull request records as a CSV table.
package output

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/dickeyy/pr-metrics/types"
)

// WriteTable writes the header row and one row per record to w.
func WriteTable(w io.Writer, records []types.PRRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(types.Columns); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}
	for _, r := range records {
		if err := cw.Write(r.Row()); err != nil {
			return fmt.Errorf("failed to write CSV record for PR %d: %w", r.Number, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteCSVFile writes the table to path atomically: the rows go to a temp
// file in the same directory which then replaces path. On error path is
// left untouched.
func WriteCSVFile(path string, records []types.PRRecord) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file for %s: %w", path, err)
	}
	tmpName := tmp.Name()
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if err = WriteTable(tmp, records); err != nil {
		return err
	}
	if err = tmp.Sync(); err != nil {
		return fmt.Errorf("failed to sync %s: %w", tmpName, err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", tmpName, err)
	}
	if err = os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("failed to move %s into place: %w", path, err)
	}
	return nil
}

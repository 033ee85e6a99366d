package columns

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

var ErrNotCSV = errors.New("only .csv files are supported")

func IsCSVPath(path string) bool {
	return strings.EqualFold(filepath.Ext(strings.TrimSpace(path)), ".csv")
}

// ReadSampleRow returns the first record of the CSV file at path. An empty
// file yields an empty row and no error.
func ReadSampleRow(path string) ([]string, error) {
	if !IsCSVPath(path) {
		return nil, ErrNotCSV
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return FirstRow(f)
}

// FirstRow parses only the first record from r.
func FirstRow(r io.Reader) ([]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	row, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return []string{}, nil
	}
	if err != nil {
		return nil, err
	}
	if len(row) > 0 {
		row[0] = strings.TrimPrefix(row[0], "\ufeff")
	}
	return row, nil
}

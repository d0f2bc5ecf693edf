// Package input loads the identifier list the collector consumes.
package input

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"
)

// LoadIdentifiers reads an identifier CSV: a header row followed by one
// identifier per row in the first column. The full list is loaded before
// the run starts; a missing or unreadable file is fatal to the run.
func LoadIdentifiers(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open identifier file: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1

	if _, err := reader.Read(); err != nil {
		if err == io.EOF {
			return nil, fmt.Errorf("identifier file %s is empty", path)
		}
		return nil, fmt.Errorf("read identifier header: %w", err)
	}

	var ids []string
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read identifier row: %w", err)
		}
		if len(row) == 0 {
			continue
		}
		id := strings.TrimSpace(row[0])
		if id == "" {
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

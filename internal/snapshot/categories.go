package snapshot

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/navada/insightlab/internal/models"
)

// SaveCategories writes the category list as a two-column CSV, atomically.
func SaveCategories(path string, cats []models.Category) error {
	var buf bytes.Buffer
	cw := csv.NewWriter(&buf)
	if err := cw.Write([]string{"tag", "label"}); err != nil {
		return err
	}
	for _, c := range cats {
		if err := cw.Write([]string{c.Tag, c.Label}); err != nil {
			return err
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("encode categories: %w", err)
	}
	return WriteAtomic(path, buf.Bytes())
}

// LoadCategories reads a file written by SaveCategories.
func LoadCategories(path string) ([]models.Category, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNoSnapshot
	}
	if err != nil {
		return nil, fmt.Errorf("open categories: %w", err)
	}
	defer f.Close()

	cr := csv.NewReader(f)
	cr.FieldsPerRecord = 2
	if _, err := cr.Read(); err != nil {
		return nil, &CorruptError{Path: path, Line: 1, Err: err}
	}

	var out []models.Category
	for line := 2; ; line++ {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, &CorruptError{Path: path, Line: line, Err: err}
		}
		out = append(out, models.Category{Tag: row[0], Label: row[1]})
	}
}

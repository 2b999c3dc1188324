package snapshot

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gofrs/flock"

	"github.com/navada/insightlab/internal/models"
)

// Columns is the fixed snapshot header.
var Columns = []string{
	"job_id", "title", "company", "location", "category", "experience_level", "work_type",
	"salary_min", "salary_max", "salary_avg", "required_skills", "description",
	"posted_date", "url", "source", "fetched_at",
}

var (
	// ErrNoSnapshot means no previous successful fetch has been persisted.
	ErrNoSnapshot = errors.New("snapshot: no snapshot on disk")
	// ErrLocked means another run holds the snapshot lock.
	ErrLocked = errors.New("snapshot: another run is in progress")
)

// CorruptError reports a snapshot that exists but cannot be trusted.
type CorruptError struct {
	Path   string
	Line   int
	Column string
	Err    error
}

func (e *CorruptError) Error() string {
	switch {
	case e.Line > 0 && e.Column != "":
		return fmt.Sprintf("snapshot %s corrupt at line %d, column %s: %v", e.Path, e.Line, e.Column, e.Err)
	case e.Line > 0:
		return fmt.Sprintf("snapshot %s corrupt at line %d: %v", e.Path, e.Line, e.Err)
	default:
		return fmt.Sprintf("snapshot %s corrupt: %v", e.Path, e.Err)
	}
}

func (e *CorruptError) Unwrap() error {
	return e.Err
}

// Store persists job records as CSV. Saves replace the file atomically so a
// reader sees either the previous snapshot or the new one.
type Store struct {
	path string
	lock *flock.Flock
}

// New returns a store for the snapshot at path.
func New(path string) *Store {
	return &Store{path: path, lock: flock.New(path + ".lock")}
}

// Path returns the snapshot location.
func (s *Store) Path() string {
	return s.path
}

// Lock takes the exclusive run lock without blocking. The returned function
// releases it.
func (s *Store) Lock() (func() error, error) {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return nil, fmt.Errorf("create snapshot dir: %w", err)
	}
	ok, err := s.lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire snapshot lock: %w", err)
	}
	if !ok {
		return nil, ErrLocked
	}
	return s.lock.Unlock, nil
}

// ModTime reports when the snapshot was last replaced.
func (s *Store) ModTime() (time.Time, error) {
	info, err := os.Stat(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return time.Time{}, ErrNoSnapshot
	}
	if err != nil {
		return time.Time{}, err
	}
	return info.ModTime(), nil
}

// Load reads every record from the snapshot.
func (s *Store) Load() ([]models.JobRecord, error) {
	f, err := os.Open(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNoSnapshot
	}
	if err != nil {
		return nil, fmt.Errorf("open snapshot: %w", err)
	}
	defer f.Close()

	records, err := Decode(f)
	if err != nil {
		var ce *CorruptError
		if errors.As(err, &ce) {
			ce.Path = s.path
		}
		return nil, err
	}
	return records, nil
}

// Save replaces the snapshot with records. Line breaks in text fields are
// stored as "\n"; CSV readers do not preserve "\r\n" inside quoted fields.
func (s *Store) Save(records []models.JobRecord) error {
	var buf bytes.Buffer
	if err := Encode(&buf, records); err != nil {
		return err
	}
	return WriteAtomic(s.path, buf.Bytes())
}

// Encode writes records as snapshot CSV.
func Encode(w io.Writer, records []models.JobRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Columns); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, rec := range records {
		if err := cw.Write(encodeRow(rec)); err != nil {
			return fmt.Errorf("write row %s: %w", rec.ID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// Decode parses snapshot CSV. Columns are matched by name; unknown columns are ignored.
func Decode(r io.Reader) ([]models.JobRecord, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, &CorruptError{Err: errors.New("missing header")}
	}
	if err != nil {
		return nil, &CorruptError{Line: 1, Err: err}
	}

	index := make(map[string]int, len(header))
	for i, name := range header {
		index[strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))] = i
	}
	for _, col := range Columns {
		if col == "salary_avg" {
			continue
		}
		if _, ok := index[col]; !ok {
			return nil, &CorruptError{Line: 1, Column: col, Err: errors.New("missing column")}
		}
	}

	var out []models.JobRecord
	for line := 2; ; line++ {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, &CorruptError{Line: line, Err: err}
		}
		rec, err := decodeRow(row, index, line)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

// WriteAtomic writes data to a temp file beside path, syncs it and renames it
// over path.
func WriteAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create dir: %w", err)
	}

	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replace %s: %w", filepath.Base(path), err)
	}
	return nil
}

func encodeRow(rec models.JobRecord) []string {
	var avg string
	if v, ok := rec.Salary(); ok && rec.SalaryMin != nil && rec.SalaryMax != nil {
		avg = formatFloat(v)
	}
	return []string{
		rec.ID,
		rec.Title,
		rec.Company,
		rec.Location,
		rec.Category,
		rec.ExperienceLevel,
		rec.WorkType,
		formatOptional(rec.SalaryMin),
		formatOptional(rec.SalaryMax),
		avg,
		joinSkills(rec.Skills),
		normalizeNewlines(rec.Description),
		formatTime(rec.PostedDate),
		rec.URL,
		rec.Source,
		formatTime(rec.FetchedAt),
	}
}

func decodeRow(row []string, index map[string]int, line int) (models.JobRecord, error) {
	get := func(col string) string {
		i, ok := index[col]
		if !ok || i >= len(row) {
			return ""
		}
		return row[i]
	}

	rec := models.JobRecord{
		ID:              get("job_id"),
		Title:           get("title"),
		Company:         get("company"),
		Location:        get("location"),
		Category:        get("category"),
		ExperienceLevel: get("experience_level"),
		WorkType:        get("work_type"),
		Skills:          splitSkills(get("required_skills")),
		Description:     get("description"),
		URL:             get("url"),
		Source:          get("source"),
	}

	var err error
	if rec.SalaryMin, err = parseOptional(get("salary_min")); err != nil {
		return rec, &CorruptError{Line: line, Column: "salary_min", Err: err}
	}
	if rec.SalaryMax, err = parseOptional(get("salary_max")); err != nil {
		return rec, &CorruptError{Line: line, Column: "salary_max", Err: err}
	}
	if rec.PostedDate, err = parseTime(get("posted_date")); err != nil {
		return rec, &CorruptError{Line: line, Column: "posted_date", Err: err}
	}
	if rec.FetchedAt, err = parseTime(get("fetched_at")); err != nil {
		return rec, &CorruptError{Line: line, Column: "fetched_at", Err: err}
	}
	return rec, nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func formatOptional(v *float64) string {
	if v == nil {
		return ""
	}
	return formatFloat(*v)
}

func parseOptional(raw string) (*float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.EqualFold(raw, "nan") {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339Nano)
}

// parseTime accepts RFC 3339 plus the space-separated layout older snapshots used.
func parseTime(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, nil
	}
	var lastErr error
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02 15:04:05.999999999-07:00", "2006-01-02 15:04:05.999999999", "2006-01-02"} {
		t, err := time.Parse(layout, raw)
		if err == nil {
			return t, nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}

func normalizeNewlines(s string) string {
	return strings.ReplaceAll(s, "\r\n", "\n")
}

// joinSkills keeps the comma-separated form when it is unambiguous and falls
// back to a JSON array when a skill contains a comma or looks like one.
func joinSkills(skills []string) string {
	for _, sk := range skills {
		if strings.Contains(sk, ",") || strings.HasPrefix(strings.TrimSpace(sk), "[") {
			data, err := json.Marshal(skills)
			if err == nil {
				return string(data)
			}
			break
		}
	}
	return strings.Join(skills, ", ")
}

func splitSkills(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	if strings.HasPrefix(raw, "[") {
		var out []string
		if err := json.Unmarshal([]byte(raw), &out); err == nil {
			return out
		}
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

package dataset

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"text/tabwriter"
)

var wordPattern = regexp.MustCompile(`\b\w+\b`)

// Shape returns the row and column counts.
func (s *Store) Shape(ctx context.Context) (rows, cols int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.refresh(ctx); err != nil {
		return 0, 0, err
	}
	return s.rows, len(s.columns), nil
}

// Columns returns the column descriptions in file order.
func (s *Store) Columns(ctx context.Context) ([]Column, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.refresh(ctx); err != nil {
		return nil, err
	}
	out := make([]Column, len(s.columns))
	copy(out, s.columns)
	return out, nil
}

type columnStats struct {
	count  int64
	unique sql.NullInt64
	top    sql.NullString
	freq   sql.NullInt64
	mean   sql.NullFloat64
	std    sql.NullFloat64
	min    sql.NullFloat64
	max    sql.NullFloat64
}

// Summary renders a describe-style table: one column per dataset column and
// one row per statistic. Statistics that do not apply print as NaN.
func (s *Store) Summary(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.refresh(ctx); err != nil {
		return "", err
	}

	stats := make([]columnStats, len(s.columns))
	for i, c := range s.columns {
		st, err := s.describe(ctx, c)
		if err != nil {
			return "", err
		}
		stats[i] = st
	}

	var buf bytes.Buffer
	tw := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', tabwriter.AlignRight)

	header := []string{""}
	for _, c := range s.columns {
		header = append(header, c.Name)
	}
	fmt.Fprintln(tw, strings.Join(header, "\t")+"\t")

	rows := []struct {
		label string
		value func(columnStats) string
	}{
		{"count", func(st columnStats) string { return strconv.FormatInt(st.count, 10) }},
		{"unique", func(st columnStats) string { return nullInt(st.unique) }},
		{"top", func(st columnStats) string { return nullString(st.top) }},
		{"freq", func(st columnStats) string { return nullInt(st.freq) }},
		{"mean", func(st columnStats) string { return nullFloat(st.mean) }},
		{"std", func(st columnStats) string { return nullFloat(st.std) }},
		{"min", func(st columnStats) string { return nullFloat(st.min) }},
		{"max", func(st columnStats) string { return nullFloat(st.max) }},
	}
	for _, r := range rows {
		line := []string{r.label}
		for _, st := range stats {
			line = append(line, r.value(st))
		}
		fmt.Fprintln(tw, strings.Join(line, "\t")+"\t")
	}

	if err := tw.Flush(); err != nil {
		return "", err
	}
	return strings.TrimRight(buf.String(), "\n"), nil
}

func (s *Store) describe(ctx context.Context, c Column) (columnStats, error) {
	col := quoteIdent(c.Name)
	var st columnStats

	if c.Numeric {
		q := `SELECT COUNT(` + col + `), AVG(` + col + `), MIN(` + col + `), MAX(` + col + `),
			AVG(` + col + ` * ` + col + `) FROM ` + tableName
		var meanSq sql.NullFloat64
		if err := s.db.QueryRowContext(ctx, q).Scan(&st.count, &st.mean, &st.min, &st.max, &meanSq); err != nil {
			return st, fmt.Errorf("failed to describe %s: %w", c.Name, err)
		}
		// Sample standard deviation, undefined for fewer than two values.
		if st.count > 1 && st.mean.Valid && meanSq.Valid {
			n := float64(st.count)
			variance := (meanSq.Float64 - st.mean.Float64*st.mean.Float64) * n / (n - 1)
			if variance < 0 {
				variance = 0
			}
			st.std = sql.NullFloat64{Float64: math.Sqrt(variance), Valid: true}
		}
		return st, nil
	}

	q := `SELECT COUNT(` + col + `), COUNT(DISTINCT ` + col + `) FROM ` + tableName
	var unique int64
	if err := s.db.QueryRowContext(ctx, q).Scan(&st.count, &unique); err != nil {
		return st, fmt.Errorf("failed to describe %s: %w", c.Name, err)
	}
	st.unique = sql.NullInt64{Int64: unique, Valid: true}
	if st.count == 0 {
		return st, nil
	}

	q = `SELECT ` + col + `, COUNT(*) AS n FROM ` + tableName + ` WHERE ` + col + ` IS NOT NULL
		GROUP BY ` + col + ` ORDER BY n DESC, MIN(rowid) ASC LIMIT 1`
	if err := s.db.QueryRowContext(ctx, q).Scan(&st.top, &st.freq); err != nil {
		return st, fmt.Errorf("failed to describe %s: %w", c.Name, err)
	}
	return st, nil
}

// Query answers a free-form question with keyword counts over the title and
// description columns.
func (s *Store) Query(ctx context.Context, question string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.refresh(ctx); err != nil {
		return "", err
	}
	for _, required := range []string{"title", "description"} {
		if !s.hasColumn(required) {
			return "", fmt.Errorf("dataset has no %q column", required)
		}
	}

	q := strings.ToLower(question)
	if strings.Contains(q, "how many") {
		if strings.Contains(q, "titles") {
			var n int64
			err := s.db.QueryRowContext(ctx, `SELECT COUNT(DISTINCT "title") FROM `+tableName).Scan(&n)
			if err != nil {
				return "", fmt.Errorf("failed to count titles: %w", err)
			}
			return fmt.Sprintf("There are %d unique titles in the dataset.", n), nil
		}
		if strings.Contains(q, "rows") || strings.Contains(q, "records") {
			return fmt.Sprintf("The dataset contains %d rows.", s.rows), nil
		}
	}

	tokens := keywords(q)
	if len(tokens) == 0 {
		return "I couldn't find any useful keywords to search.", nil
	}

	stmt, err := s.db.PrepareContext(ctx, `SELECT
		COALESCE(SUM(instr(lower(COALESCE("title", '')), ?1) > 0), 0),
		COALESCE(SUM(instr(lower(COALESCE("description", '')), ?1) > 0), 0)
		FROM `+tableName)
	if err != nil {
		return "", fmt.Errorf("failed to prepare search: %w", err)
	}
	defer stmt.Close()

	var matches []string
	for _, tok := range tokens {
		var titles, descriptions int64
		if err := stmt.QueryRowContext(ctx, tok).Scan(&titles, &descriptions); err != nil {
			return "", fmt.Errorf("failed to search %q: %w", tok, err)
		}
		if titles+descriptions > 0 {
			matches = append(matches, fmt.Sprintf("'%s' found in %d titles and %d descriptions", tok, titles, descriptions))
		}
	}
	if len(matches) == 0 {
		return "No matches found for your question keywords.", nil
	}
	return strings.Join(matches, "; "), nil
}

func (s *Store) hasColumn(name string) bool {
	for _, c := range s.columns {
		if c.Name == name {
			return true
		}
	}
	return false
}

// keywords extracts the searchable words of a lowercased question, in order
// of first appearance.
func keywords(q string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, w := range wordPattern.FindAllString(q, -1) {
		if len(w) <= 2 || stopWords[w] || seen[w] {
			continue
		}
		seen[w] = true
		out = append(out, w)
	}
	return out
}

func nullInt(v sql.NullInt64) string {
	if !v.Valid {
		return "NaN"
	}
	return strconv.FormatInt(v.Int64, 10)
}

func nullString(v sql.NullString) string {
	if !v.Valid {
		return "NaN"
	}
	return v.String
}

func nullFloat(v sql.NullFloat64) string {
	if !v.Valid {
		return "NaN"
	}
	return strconv.FormatFloat(v.Float64, 'f', 6, 64)
}

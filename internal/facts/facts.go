// Package facts loads the normalized per-category fact tables that feed the
// analytics engine.
package facts

import (
	"context"
	"math"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/pressure-cli/internal/analytics"
	"github.com/sells-group/pressure-cli/internal/fetcher"
	"github.com/sells-group/pressure-cli/internal/model"
)

const stage = "load"

// Column names of a fact table. total is accepted but always recomputed.
const (
	ColState     = "state"
	ColDistrict  = "district"
	ColMonth     = "month"
	ColAge0To5   = "age_0_5"
	ColAge5To17  = "age_5_17"
	ColAge18Plus = "age_18_plus"
	ColTotal     = "total"
)

var requiredColumns = []string{ColState, ColDistrict, ColMonth, ColAge0To5, ColAge5To17, ColAge18Plus}

// Loader resolves input locations and parses them into fact records.
type Loader struct {
	resolver *fetcher.Resolver
	sheet    string
}

// NewLoader creates a Loader. sheet selects the XLSX worksheet by name; empty
// means the first sheet.
func NewLoader(resolver *fetcher.Resolver, sheet string) *Loader {
	return &Loader{resolver: resolver, sheet: sheet}
}

// Load reads the fact table of one category from loc.
func (l *Loader) Load(ctx context.Context, c model.Category, loc string) ([]model.FactRecord, error) {
	path, err := l.resolver.Resolve(ctx, loc)
	if err != nil {
		return nil, eris.Wrapf(err, "facts: resolve %s table", c.Key())
	}
	if fetcher.IsRemote(loc) {
		defer os.Remove(path) //nolint:errcheck
	}

	rows, err := l.readRows(ctx, path)
	if err != nil {
		return nil, eris.Wrapf(err, "facts: read %s table", c.Key())
	}
	if len(rows) == 0 {
		return nil, &analytics.MissingInputError{Stage: stage, Input: c.Key() + " header"}
	}
	return Parse(c, rows[0], rows[1:])
}

func (l *Loader) readRows(ctx context.Context, path string) ([][]string, error) {
	if fetcher.Ext(path) == ".xlsx" {
		return fetcher.ReadXLSX(path, fetcher.XLSXOptions{SheetName: l.sheet, TrimSpace: true})
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrap(err, "open file")
	}
	defer f.Close() //nolint:errcheck

	rowCh, errCh := fetcher.StreamCSV(ctx, f, fetcher.CSVOptions{TrimSpace: true, Comment: '#'})
	var rows [][]string
	for row := range rowCh {
		rows = append(rows, row)
	}
	if err := <-errCh; err != nil {
		return nil, err
	}
	return rows, nil
}

// LoadAll loads every configured category concurrently. A category that fails
// to load is left out of the returned tables and its error recorded in the
// inputs; the stages that need it will report it missing.
func (l *Loader) LoadAll(ctx context.Context, locations map[model.Category]string) (model.FactTables, model.RunInputs) {
	tables := make(model.FactTables)
	inputs := model.RunInputs{
		Locations: make(map[model.Category]string),
		Rows:      make(map[model.Category]int),
		Errors:    make(map[model.Category]string),
	}

	var mu sync.Mutex
	g, gCtx := errgroup.WithContext(ctx)
	for _, c := range model.Categories {
		loc := locations[c]
		inputs.Locations[c] = loc
		if loc == "" {
			inputs.Errors[c] = "no location configured"
			zap.L().Warn("facts: no location configured", zap.String("category", c.Key()))
			continue
		}
		g.Go(func() error {
			start := time.Now()
			records, err := l.Load(gCtx, c, loc)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				inputs.Errors[c] = err.Error()
				zap.L().Error("facts: load failed",
					zap.String("category", c.Key()),
					zap.String("location", loc),
					zap.Error(err),
				)
				return nil
			}
			tables[c] = records
			inputs.Rows[c] = len(records)
			zap.L().Info("facts: table loaded",
				zap.String("category", c.Key()),
				zap.Int("rows", len(records)),
				zap.Int64("duration_ms", time.Since(start).Milliseconds()),
			)
			return nil
		})
	}
	_ = g.Wait()

	if len(inputs.Errors) == 0 {
		inputs.Errors = nil
	}
	return tables, inputs
}

// Parse converts a header and data rows into fact records. Header matching is
// case-insensitive; a missing required column or an empty table is reported
// as a MissingInputError.
func Parse(c model.Category, header []string, rows [][]string) ([]model.FactRecord, error) {
	cols := mapColumns(header)
	for _, name := range requiredColumns {
		if _, ok := cols[name]; !ok {
			return nil, &analytics.MissingInputError{Stage: stage, Input: c.Key() + " column " + name}
		}
	}

	records := make([]model.FactRecord, 0, len(rows))
	for i, row := range rows {
		if isBlank(row) {
			continue
		}
		line := i + 2 // 1-based, after the header
		rec, err := parseRow(row, cols)
		if err != nil {
			return nil, eris.Wrapf(err, "facts: %s row %d", c.Key(), line)
		}
		records = append(records, rec)
	}

	if len(records) == 0 {
		return nil, &analytics.MissingInputError{Stage: stage, Input: c.Key() + " rows"}
	}
	return records, nil
}

func parseRow(row []string, cols map[string]int) (model.FactRecord, error) {
	var rec model.FactRecord
	rec.State = getCol(row, cols, ColState)
	rec.District = getCol(row, cols, ColDistrict)
	if rec.State == "" || rec.District == "" {
		return rec, eris.New("state and district are required")
	}

	month, err := ParseMonth(getCol(row, cols, ColMonth))
	if err != nil {
		return rec, err
	}
	rec.Month = month

	bands := []struct {
		col string
		dst *int64
	}{
		{ColAge0To5, &rec.Age0To5},
		{ColAge5To17, &rec.Age5To17},
		{ColAge18Plus, &rec.Age18Plus},
	}
	for _, b := range bands {
		n, err := ParseCount(getCol(row, cols, b.col))
		if err != nil {
			return rec, eris.Wrapf(err, "column %s", b.col)
		}
		*b.dst = n
	}
	return rec, nil
}

// monthLayouts are the accepted month cell formats. Date and timestamp cells
// are truncated to their month.
var monthLayouts = []string{
	"2006-01",
	"2006-01-02",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	time.RFC3339,
}

// ParseMonth normalizes a month or date value to "YYYY-MM". The whole value
// must match one of the accepted layouts.
func ParseMonth(s string) (string, error) {
	s = strings.TrimSpace(s)
	for _, layout := range monthLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("2006-01"), nil
		}
	}
	return "", eris.Errorf("invalid month %q", s)
}

// ParseCount parses a non-negative whole count. Empty cells count as zero;
// spreadsheet floats such as "12.0" are accepted.
func ParseCount(s string) (int64, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if s == "" {
		return 0, nil
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		if n < 0 {
			return 0, eris.Errorf("negative count %q", s)
		}
		return n, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, eris.Errorf("invalid count %q", s)
	}
	if f < 0 || f != math.Trunc(f) {
		return 0, eris.Errorf("count %q is not a non-negative whole number", s)
	}
	return int64(f), nil
}

// mapColumns builds a case-insensitive column name to index map.
func mapColumns(header []string) map[string]int {
	m := make(map[string]int, len(header))
	for i, col := range header {
		m[strings.ToLower(strings.TrimSpace(col))] = i
	}
	return m
}

// getCol gets a column value by name, returning empty string if not found.
func getCol(record []string, colIdx map[string]int, name string) string {
	idx, ok := colIdx[name]
	if !ok || idx >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[idx])
}

func isBlank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

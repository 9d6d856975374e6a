package data

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/contactkeval/implied-vol/internal/logger"
	"github.com/contactkeval/implied-vol/internal/pricing"
)

// csvSource reads quote records from a delimited file on disk.
type csvSource struct {
	path  string
	comma rune
}

// NewCSVSource convenience constructor. A zero comma means ','.
func NewCSVSource(path string, comma rune) Source {
	if comma == 0 {
		comma = ','
	}
	return &csvSource{path: path, comma: comma}
}

func (s *csvSource) Name() string {
	return "csv:" + s.path
}

func (s *csvSource) Records(ctx context.Context) ([]Record, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("open input: %w", err)
	}
	defer f.Close()

	return readRecords(ctx, f, s.comma)
}

// ReadRecords parses comma separated quote records from r.
//
// Columns are located by header name (case-insensitive). "Underlying" is accepted
// for "Spot", and "Days To Expiry" (converted at 365 days per year) when
// "Years To Expiry" is absent. A missing column or unreadable header is returned
// as an error; a bad row becomes a Record with Err set.
func ReadRecords(r io.Reader) ([]Record, error) {
	return readRecords(context.Background(), r, ',')
}

type columnIndex struct {
	id, spot, strike, rate, years, days, optType, model, price int
}

func readRecords(ctx context.Context, r io.Reader, comma rune) ([]Record, error) {
	cr := csv.NewReader(r)
	cr.Comma = comma
	cr.TrimLeadingSpace = true
	// a stray quote inside a field is kept as data so the row keeps its ID
	cr.LazyQuotes = true
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("input is empty")
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	idx, err := indexHeader(header)
	if err != nil {
		return nil, err
	}

	var out []Record
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				// an unterminated quoted field only spoils this row
				out = append(out, Record{Line: perr.StartLine, Err: errors.Wrap(pricing.ErrInvalidInput, perr.Error())})
				continue
			}
			return nil, fmt.Errorf("read csv: %w", err)
		}

		line, _ := cr.FieldPos(0)
		rec := parseRow(row, idx)
		rec.Line = line
		if rec.Err != nil {
			logger.Debugf("line %d (id=%s): %v", line, rec.ID, rec.Err)
		}
		out = append(out, rec)
	}

	logger.Tracef("read %d records", len(out))
	return out, nil
}

func normalizeHeader(h string) string {
	return strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
}

func indexHeader(header []string) (columnIndex, error) {
	pos := make(map[string]int, len(header))
	for i, h := range header {
		pos[normalizeHeader(h)] = i
	}
	find := func(names ...string) int {
		for _, n := range names {
			if i, ok := pos[normalizeHeader(n)]; ok {
				return i
			}
		}
		return -1
	}

	idx := columnIndex{
		id:      find(ColumnID),
		spot:    find(ColumnSpot, columnUnderlying),
		strike:  find(ColumnStrike),
		rate:    find(ColumnRate),
		years:   find(ColumnYears),
		days:    find(columnDays),
		optType: find(ColumnOptionType),
		model:   find(ColumnModelType),
		price:   find(ColumnPrice),
	}

	required := []struct {
		name string
		i    int
	}{
		{ColumnID, idx.id},
		{ColumnSpot, idx.spot},
		{ColumnStrike, idx.strike},
		{ColumnRate, idx.rate},
		{ColumnOptionType, idx.optType},
		{ColumnModelType, idx.model},
		{ColumnPrice, idx.price},
	}
	for _, c := range required {
		if c.i < 0 {
			return idx, fmt.Errorf("missing column %q", c.name)
		}
	}
	if idx.years < 0 && idx.days < 0 {
		return idx, fmt.Errorf("missing column %q (or %q)", ColumnYears, columnDays)
	}
	return idx, nil
}

func parseRow(row []string, idx columnIndex) Record {
	field := func(i int) string {
		if i < 0 || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	rec := Record{ID: field(idx.id)}
	rec.Raw = []string{
		rec.ID,
		field(idx.spot),
		field(idx.strike),
		field(idx.rate),
		field(idx.years),
		field(idx.optType),
		field(idx.model),
		field(idx.price),
	}

	var firstErr error
	num := func(name string, i int) float64 {
		s := field(i)
		v, err := strconv.ParseFloat(s, 64)
		if err != nil && firstErr == nil {
			if s == "" {
				firstErr = errors.Wrapf(pricing.ErrInvalidInput, "%s is empty", name)
			} else {
				firstErr = errors.Wrapf(pricing.ErrInvalidInput, "%s: %q is not a number", name, s)
			}
		}
		return v
	}

	q := pricing.Quote{
		Spot:        num(ColumnSpot, idx.spot),
		Strike:      num(ColumnStrike, idx.strike),
		Rate:        num(ColumnRate, idx.rate),
		MarketPrice: num(ColumnPrice, idx.price),
	}
	if idx.years >= 0 {
		q.Expiry = num(ColumnYears, idx.years)
	} else {
		q.Expiry = num(columnDays, idx.days) / DaysPerYear
		rec.Raw[4] = FormatFloat(q.Expiry)
	}

	optType, err := pricing.ParseOptionType(field(idx.optType))
	if err != nil && firstErr == nil {
		firstErr = err
	}
	q.Type = optType

	model, err := pricing.ParseModel(field(idx.model))
	if err != nil && firstErr == nil {
		firstErr = err
	}

	rec.Quote = q
	rec.Model = model
	if firstErr == nil {
		firstErr = q.Validate()
	}
	rec.Err = firstErr
	return rec
}

// Package data turns external inputs (CSV files, Massive market data, a
// synthetic generator) into quote records for the implied volatility solver.
package data

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/contactkeval/implied-vol/internal/pricing"
)

// Canonical column names, in file order. Output files append ColumnImpliedVol.
const (
	ColumnID         = "ID"
	ColumnSpot       = "Spot"
	ColumnStrike     = "Strike"
	ColumnRate       = "Risk-Free Rate"
	ColumnYears      = "Years To Expiry"
	ColumnOptionType = "Option Type"
	ColumnModelType  = "Model Type"
	ColumnPrice      = "Market Price"
	ColumnImpliedVol = "Implied Volatility"

	// aliases accepted on input
	columnUnderlying = "Underlying"
	columnDays       = "Days To Expiry"
)

// Columns lists the input columns in their contractual order.
var Columns = []string{
	ColumnID,
	ColumnSpot,
	ColumnStrike,
	ColumnRate,
	ColumnYears,
	ColumnOptionType,
	ColumnModelType,
	ColumnPrice,
}

// DaysPerYear converts a day count into a year fraction.
const DaysPerYear = 365.0

// Record is one quote to solve, paired with the model that prices it.
// Err is set when the row could not be turned into a valid quote; the rest of
// the batch is unaffected.
type Record struct {
	ID    string
	Line  int // 1-based source line, 0 when not read from a file
	Quote pricing.Quote
	Model pricing.Model
	Raw   []string // canonical column values, echoed on output
	Err   error
}

// Source supplies records to the batch runner.
type Source interface {
	Name() string
	Records(ctx context.Context) ([]Record, error)
}

// NewRecord builds a validated record from already parsed values and fills Raw.
func NewRecord(id string, q pricing.Quote, m pricing.Model) Record {
	rec := Record{ID: id, Quote: q, Model: m}
	rec.Raw = []string{
		id,
		FormatFloat(q.Spot),
		FormatFloat(q.Strike),
		FormatFloat(q.Rate),
		FormatFloat(q.Expiry),
		q.Type.String(),
		m.String(),
		FormatFloat(q.MarketPrice),
	}
	rec.Err = q.Validate()
	return rec
}

// FormatFloat renders v with ten significant digits, the precision used in output files.
func FormatFloat(v float64) string {
	if math.IsNaN(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'g', 10, 64)
}

// YearsBetween is the ACT/365 year fraction from asOf to expiry.
func YearsBetween(asOf, expiry time.Time) float64 {
	return expiry.Sub(asOf).Hours() / (24 * DaysPerYear)
}

// OptionSymbolFromParts formats an OCC-style ticker:
// O:<root><YYMMDD><C|P><strike*1000 padded to 8 digits>
func OptionSymbolFromParts(underlying string, expiryDate time.Time, optType pricing.OptionType, strike float64) string {
	expDt := expiryDate.UTC().Format("060102")
	cp := "C"
	if optType == pricing.Put {
		cp = "P"
	}
	strikeInt := int(math.Round(strike * 1000))
	return fmt.Sprintf("O:%s%s%s%08d", strings.ToUpper(underlying), expDt, cp, strikeInt)
}

package data

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/contactkeval/implied-vol/internal/pricing"
)

const sampleCSV = `ID,Spot,Strike,Risk-Free Rate,Years To Expiry,Option Type,Model Type,Market Price
1,1.9119,2.0264,-0.0009,0.05304082192,Call,Bachelier,0.096576518
2,1.2286,1.3582,-0.0048,0.5319065753,put,BlackScholes,0.39162934
3,0.2817,0.3065,-0.0027,0.09375753425,Put,BlackScholes,0.33722994
4,-1,1,0.01,0.5,Call,BlackScholes,0.1
5,1,1,0.01,0.5,Straddle,BlackScholes,0.1
6,1,1,0.01,0.5,Call,Heston,0.1
7,abc,1,0.01,0.5,Call,BlackScholes,0.1
`

func TestReadRecords(t *testing.T) {
	recs, err := ReadRecords(strings.NewReader(sampleCSV))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(recs) != 7 {
		t.Fatalf("expected 7 records, got %d", len(recs))
	}

	first := recs[0]
	want := pricing.Quote{Spot: 1.9119, Strike: 2.0264, Rate: -0.0009, Expiry: 0.05304082192, Type: pricing.Call, MarketPrice: 0.096576518}
	if first.ID != "1" || first.Model != pricing.Bachelier || first.Quote != want || first.Err != nil {
		t.Fatalf("first record mismatch: %+v", first)
	}
	if first.Line != 2 {
		t.Fatalf("first record line = %d, want 2", first.Line)
	}
	if recs[1].Quote.Type != pricing.Put || recs[1].Model != pricing.BlackScholes {
		t.Fatalf("second record mismatch: %+v", recs[1])
	}

	// rows 4..7 are invalid but do not stop the read
	for _, rec := range recs[3:] {
		if !errors.Is(rec.Err, pricing.ErrInvalidInput) {
			t.Fatalf("record %s: expected ErrInvalidInput, got %v", rec.ID, rec.Err)
		}
	}
	if recs[6].Raw[1] != "abc" {
		t.Fatalf("raw spot not preserved: %q", recs[6].Raw[1])
	}
}

func TestReadRecordsAliases(t *testing.T) {
	in := "id , Underlying,STRIKE,risk-free rate,Days To Expiry,option type,model type,market price\n" +
		"A,100,100,0.05,73,Call,BlackScholes,5\n"

	recs, err := ReadRecords(strings.NewReader(in))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(recs) != 1 || recs[0].Err != nil {
		t.Fatalf("unexpected records: %+v", recs)
	}
	if got := recs[0].Quote.Expiry; got != 0.2 {
		t.Fatalf("expiry = %v, want 0.2", got)
	}
	if recs[0].Quote.Spot != 100 {
		t.Fatalf("spot alias not applied: %+v", recs[0].Quote)
	}
	if recs[0].Raw[4] != "0.2" {
		t.Fatalf("raw years = %q, want 0.2", recs[0].Raw[4])
	}
}

func TestReadRecordsMissingColumn(t *testing.T) {
	in := "ID,Spot,Strike,Years To Expiry,Option Type,Model Type,Market Price\n1,1,1,1,Call,Bachelier,1\n"
	_, err := ReadRecords(strings.NewReader(in))
	if err == nil || !strings.Contains(err.Error(), ColumnRate) {
		t.Fatalf("expected missing %q error, got %v", ColumnRate, err)
	}

	if _, err := ReadRecords(strings.NewReader("")); err == nil {
		t.Fatal("expected error for empty input")
	}
}

func TestReadRecordsShortRow(t *testing.T) {
	in := "ID,Spot,Strike,Risk-Free Rate,Years To Expiry,Option Type,Model Type,Market Price\n9,1,1\n"
	recs, err := ReadRecords(strings.NewReader(in))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(recs) != 1 || !errors.Is(recs[0].Err, pricing.ErrInvalidInput) {
		t.Fatalf("expected one invalid record, got %+v", recs)
	}
}

func TestCSVSourceSemicolon(t *testing.T) {
	path := filepath.Join(t.TempDir(), "in.csv")
	body := strings.ReplaceAll(sampleCSV, ",", ";")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}

	src := NewCSVSource(path, ';')
	recs, err := src.Records(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(recs) != 7 || recs[1].Quote.Strike != 1.3582 {
		t.Fatalf("unexpected records: %+v", recs[:2])
	}
	if !strings.HasPrefix(src.Name(), "csv:") {
		t.Fatalf("name = %q", src.Name())
	}

	if _, err := NewCSVSource(filepath.Join(t.TempDir(), "nope.csv"), 0).Records(context.Background()); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestReadRecordsStrayQuoteKeepsID(t *testing.T) {
	in := "ID,Spot,Strike,Risk-Free Rate,Years To Expiry,Option Type,Model Type,Market Price\n" +
		"A1,1.2286,1.3582,-0.0048,0.5319065753,Put,Black\"Scholes,0.39162934\n" +
		"A2,1.2286,1.3582,-0.0048,0.5319065753,Put,BlackScholes,0.39162934\n"

	recs, err := ReadRecords(strings.NewReader(in))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("expected 2 records, got %d", len(recs))
	}

	bad := recs[0]
	if bad.ID != "A1" || bad.Line != 2 || !errors.Is(bad.Err, pricing.ErrInvalidInput) {
		t.Fatalf("stray quote row: %+v", bad)
	}
	if bad.Raw[0] != "A1" || bad.Raw[6] != `Black"Scholes` {
		t.Fatalf("raw fields not preserved: %q", bad.Raw)
	}
	if recs[1].ID != "A2" || recs[1].Err != nil {
		t.Fatalf("following row affected: %+v", recs[1])
	}
}

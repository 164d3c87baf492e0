package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/order-tagger/internal/model"
	"github.com/Veraticus/order-tagger/internal/storage"
)

const statementOFX = `OFXHEADER:100
DATA:OFXSGML
VERSION:102
SECURITY:NONE
ENCODING:USASCII
CHARSET:1252
COMPRESSION:NONE
OLDFILEUID:NONE
NEWFILEUID:NONE

<OFX>
<SIGNONMSGSRSV1>
<SONRS>
<STATUS>
<CODE>0
<SEVERITY>INFO
</STATUS>
<DTSERVER>20240315120000[0:GMT]
<LANGUAGE>ENG
</SONRS>
</SIGNONMSGSRSV1>
<BANKMSGSRSV1>
<STMTTRNRS>
<TRNUID>1
<STATUS>
<CODE>0
<SEVERITY>INFO
</STATUS>
<STMTRS>
<CURDEF>USD
<BANKACCTFROM>
<BANKID>123456789
<ACCTID>1234567890
<ACCTTYPE>CHECKING
</BANKACCTFROM>
<BANKTRANLIST>
<DTSTART>20240301120000[0:GMT]
<DTEND>20240331120000[0:GMT]
<STMTTRN>
<TRNTYPE>DEBIT
<DTPOSTED>20240303120000[0:GMT]
<TRNAMT>-21.60
<FITID>2024030301
<NAME>AMZN Mktp US*1A2B3
</STMTTRN>
<STMTTRN>
<TRNTYPE>DEBIT
<DTPOSTED>20240306120000[0:GMT]
<TRNAMT>-16.20
<FITID>2024030601
<NAME>Amazon.com*9Z8Y
</STMTTRN>
</BANKTRANLIST>
<LEDGERBAL>
<BALAMT>1000.00
<DTASOF>20240331120000[0:GMT]
</LEDGERBAL>
</STMTRS>
</STMTTRNRS>
</BANKMSGSRSV1>
</OFX>`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestExpandFiles(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a.qfx", "")
	b := writeFile(t, dir, "b.qfx", "")
	writeFile(t, dir, "notes.txt", "")

	tests := []struct {
		name     string
		patterns []string
		want     []string
	}{
		{"glob", []string{filepath.Join(dir, "*.qfx")}, []string{a, b}},
		{"plain file", []string{a}, []string{a}},
		{"overlapping patterns", []string{a, filepath.Join(dir, "*.qfx")}, []string{a, b}},
		{"no match", []string{filepath.Join(dir, "*.ofx")}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := expandFiles(tt.patterns)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := expandFiles([]string{"[invalid"})
	assert.Error(t, err)
}

func TestImportOFX(t *testing.T) {
	dir := t.TempDir()
	first := writeFile(t, dir, "march.qfx", statementOFX)
	overlap := writeFile(t, dir, "march-again.qfx", statementOFX)
	broken := writeFile(t, dir, "broken.qfx", "not an ofx file")

	var out bytes.Buffer
	transactions := parseOFXFiles(context.Background(), &out, []string{first, broken, overlap})
	require.Len(t, transactions, 2, "repeated statements are deduplicated and broken files skipped")
	assert.Equal(t, "2024030301", transactions[0].ID)
	assert.Equal(t, model.MicroFromFloat(21.60), transactions[0].Amount)

	store, err := storage.Open(context.Background(), filepath.Join(dir, "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	out.Reset()
	require.NoError(t, saveImported(context.Background(), &out, store, transactions))
	assert.Contains(t, out.String(), "Imported 2 new transactions (0 already present)")

	out.Reset()
	require.NoError(t, saveImported(context.Background(), &out, store, transactions))
	assert.Contains(t, out.String(), "Imported 0 new transactions (2 already present)")

	stored, err := store.GetTransactions(context.Background(), time.Time{})
	require.NoError(t, err)
	assert.Len(t, stored, 2)
}

func TestPrintRuns(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, printRuns(&out, nil))
	assert.Contains(t, out.String(), "No runs recorded yet.")

	started := time.Date(2024, time.March, 10, 9, 30, 0, 0, time.UTC)
	runs := []storage.TagRun{
		{
			ID:         "run-live",
			StartedAt:  started,
			FinishedAt: started.Add(time.Second),
			Updates:    2,
			Stats:      map[string]int{model.StatOrderMatch: 2, model.StatRefundMatch: 0, model.StatNewTag: 2},
		},
		{ID: "run-dry", StartedAt: started, DryRun: true, Stats: map[string]int{}},
	}

	out.Reset()
	require.NoError(t, printRuns(&out, runs))
	output := out.String()
	assert.Contains(t, output, "run-live")
	assert.Contains(t, output, "order_match=2")
	assert.NotContains(t, output, "refund_match")
	assert.Contains(t, output, "dry-run (unfinished)")
}

func TestMatchedSummary(t *testing.T) {
	tests := []struct {
		name  string
		stats map[string]int
		want  string
	}{
		{"empty", nil, "-"},
		{"zeros hidden", map[string]int{model.StatOrderMatch: 0}, "-"},
		{"sorted", map[string]int{model.StatRefundMatch: 1, model.StatOrderMatch: 3, model.StatNewTag: 3}, "order_match=3 refund_match=1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, matchedSummary(tt.stats))
		})
	}
}

func TestPrintRunUpdates(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, printRunUpdates(&out, nil))
	assert.Contains(t, out.String(), "This run applied no updates.")

	out.Reset()
	require.NoError(t, printRunUpdates(&out, []storage.AppliedUpdate{
		{
			TransactionID:       "tx-2",
			PreviousDescription: "Amazon.com*9Z8Y",
			Description:         "Amazon.com: USB Cable, Spatula",
			Category:            "Electronics & Software",
			Splits:              2,
			Retag:               true,
		},
	}))
	output := out.String()
	assert.Contains(t, output, "retag")
	assert.Contains(t, output, "- Amazon.com*9Z8Y")
	assert.Contains(t, output, "+ Amazon.com: USB Cable, Spatula")
	assert.Contains(t, output, "splits: 2")
}

func TestPrintCategories(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, printCategories(&out, nil))
	assert.Contains(t, out.String(), "No categories found.")

	out.Reset()
	require.NoError(t, printCategories(&out, []model.Category{
		{ID: 1, Name: "Books", CreatedAt: time.Date(2024, time.January, 2, 0, 0, 0, 0, time.UTC)},
		{ID: 2, Name: "Home Supplies", CreatedAt: time.Date(2024, time.January, 2, 0, 0, 0, 0, time.UTC)},
	}))
	output := out.String()
	assert.Contains(t, output, "Books")
	assert.Contains(t, output, "Home Supplies")
	assert.Contains(t, output, "2024-01-02")
}

package sheets

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/Veraticus/order-tagger/internal/model"
	"github.com/Veraticus/order-tagger/internal/tagger"
)

func testReport() tagger.Report {
	day := time.Date(2024, 3, 3, 0, 0, 0, 0, time.UTC)
	return tagger.Report{
		DryRun: true,
		Stats:  map[string]int{"new_tag": 2, "retag": 0},
		Updates: []model.Update{
			{
				TransactionID: "tx-1",
				Description:   "Amazon.com: The Go Programming Language",
				Category:      "Books",
				Original:      model.Transaction{ID: "tx-1", Date: day, Amount: 21_600_000},
			},
			{
				TransactionID: "tx-2",
				Description:   "Amazon.com: 2 items",
				Category:      "Shopping",
				Retag:         true,
				Original:      model.Transaction{ID: "tx-2", Date: day.AddDate(0, 0, 3), Amount: 16_200_000},
				Splits: []model.Split{
					{Description: "USB Cable", Category: "Electronics", Amount: 10_800_000},
					{Description: "Spatula", Category: "Home Supplies", Amount: 5_400_000},
				},
			},
		},
		Unmatched: []tagger.UnmatchedPurchase{
			{
				Date:       day,
				Kind:       "order",
				ID:         "111-C",
				InvoiceURL: tagger.InvoiceURL("Amazon.com", "111-C"),
				Titles:     []string{"Dish Soap", "Sponge"},
				Amount:     9_990_000,
			},
		},
		History: tagger.History{
			First:         day,
			Last:          day,
			Orders:        3,
			OrdersMatched: 2,
			TotalSpend:    47_790_000,
			AverageOrder:  15_930_000,
		},
	}
}

func TestUpdateValues(t *testing.T) {
	values := updateValues(testReport())

	require.Len(t, values, 5)
	assert.Equal(t, updateHeader, values[0])
	assert.Equal(t, []any{"tx-1", "2024-03-03", 21.6, "", "Amazon.com: The Go Programming Language", "Books", false}, values[1])
	assert.Equal(t, []any{"tx-2", "2024-03-06", 16.2, "", "Amazon.com: 2 items", "Shopping", true}, values[2])
	assert.Equal(t, []any{"tx-2", "", 10.8, 1, "USB Cable", "Electronics", ""}, values[3])
	assert.Equal(t, []any{"tx-2", "", 5.4, 2, "Spatula", "Home Supplies", ""}, values[4])
}

func TestUnmatchedValues(t *testing.T) {
	values := unmatchedValues(testReport())

	require.Len(t, values, 2)
	assert.Equal(t, unmatchedHeader, values[0])
	assert.Equal(t, []any{
		"order", "111-C", "2024-03-03", 9.99, "Dish Soap; Sponge",
		"https://www.amazon.com/gp/css/summary/print.html?orderID=111-C",
	}, values[1])
}

func TestSummaryValues(t *testing.T) {
	values := summaryValues(testReport())

	assert.Equal(t, []any{"Order Tagger Report", "dry run"}, values[0])
	assert.Contains(t, values, []any{"First order", "2024-03-03"})
	assert.Contains(t, values, []any{"Orders matched", 2})
	assert.Contains(t, values, []any{"Total spend", 47.79})
	assert.Contains(t, values, []any{"Average order", 15.93})

	// Counters are sorted by name at the end
	n := len(values)
	assert.Equal(t, []any{"new_tag", 2}, values[n-2])
	assert.Equal(t, []any{"retag", 0}, values[n-1])

	empty := summaryValues(tagger.Report{})
	assert.Equal(t, []any{"Order Tagger Report", "live"}, empty[0])
	assert.Contains(t, empty, []any{"First order", ""})
}

func TestFormatRequests(t *testing.T) {
	values := tabValues(testReport())
	ids := map[string]int64{TabSummary: 0, TabUpdates: 11, TabUnmatched: 22}

	requests := formatRequests(ids, values)
	// header, freeze and resize per tab plus a currency column on two tabs
	require.Len(t, requests, 11)

	currency := 0
	for _, r := range requests {
		if r.RepeatCell != nil && r.RepeatCell.Cell.UserEnteredFormat.NumberFormat != nil {
			currency++
			if r.RepeatCell.Range.SheetId == 11 {
				assert.Equal(t, int64(2), r.RepeatCell.Range.StartColumnIndex)
				assert.Equal(t, int64(5), r.RepeatCell.Range.EndRowIndex)
			}
		}
	}
	assert.Equal(t, 2, currency)

	assert.Len(t, formatRequests(map[string]int64{TabSummary: 0}, values), 3)
}

func TestMissingTabs(t *testing.T) {
	assert.Equal(t, Tabs, missingTabs(map[string]int64{}))
	assert.Equal(t, []string{TabUnmatched}, missingTabs(map[string]int64{TabSummary: 0, TabUpdates: 1, "Sheet1": 2}))
	assert.Empty(t, missingTabs(map[string]int64{TabSummary: 0, TabUpdates: 1, TabUnmatched: 2}))
}

func TestCallbackHandler(t *testing.T) {
	tests := []struct {
		name     string
		query    string
		wantCode string
		wantErr  bool
		status   int
	}{
		{name: "code delivered", query: "?state=abc&code=xyz", wantCode: "xyz", status: http.StatusOK},
		{name: "state mismatch", query: "?state=evil&code=xyz", status: http.StatusBadRequest},
		{name: "access denied", query: "?state=abc&error=access_denied", wantErr: true, status: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			codes := make(chan string, 1)
			errs := make(chan error, 1)
			rec := httptest.NewRecorder()

			callbackHandler("abc", codes, errs).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/callback"+tt.query, nil))
			assert.Equal(t, tt.status, rec.Code)

			select {
			case code := <-codes:
				assert.Equal(t, tt.wantCode, code)
			default:
				assert.Empty(t, tt.wantCode)
			}
			select {
			case err := <-errs:
				assert.True(t, tt.wantErr)
				assert.Contains(t, err.Error(), "access_denied")
			default:
				assert.False(t, tt.wantErr)
			}
		})
	}
}

func TestTokenRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "token.json")
	require.NoError(t, SaveToken(path, &oauth2.Token{AccessToken: "a", RefreshToken: "r", TokenType: "Bearer"}))

	token, err := LoadToken(path)
	require.NoError(t, err)
	assert.Equal(t, "r", token.RefreshToken)

	_, err = LoadToken(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestMockWriter(t *testing.T) {
	m := &MockWriter{}
	_, ok := m.LastReport()
	assert.False(t, ok)

	require.NoError(t, m.WriteReport(context.Background(), testReport()))
	last, ok := m.LastReport()
	require.True(t, ok)
	assert.Len(t, last.Updates, 2)

	m.WriteFunc = func(context.Context, tagger.Report) error { return errors.New("quota") }
	assert.EqualError(t, m.WriteReport(context.Background(), tagger.Report{}), "quota")
	assert.Equal(t, 2, m.WriteCalls)
}

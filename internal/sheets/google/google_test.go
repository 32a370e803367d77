package google

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"finwise/internal/core"
	ports "finwise/internal/sheets"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

type fakeSheets struct {
	getCalls    int32
	appendCalls int32
	idColumn    [][]interface{}
	lastAppend  gsheet.ValueRange
	lastQuery   string
}

func (f *fakeSheets) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, ":append"):
			atomic.AddInt32(&f.appendCalls, 1)
			f.lastQuery = r.URL.RawQuery
			body, _ := io.ReadAll(r.Body)
			if err := json.Unmarshal(body, &f.lastAppend); err != nil {
				t.Errorf("decode append body: %v", err)
			}
			_, _ = w.Write([]byte(`{"updates": {"updatedRange": "Expenses!A7:F7", "updatedRows": 1}}`))
		case r.Method == http.MethodGet:
			atomic.AddInt32(&f.getCalls, 1)
			_ = json.NewEncoder(w).Encode(map[string]any{"range": "Expenses!F1:F10", "values": f.idColumn})
		default:
			http.NotFound(w, r)
		}
	}
}

func newTestClient(t *testing.T, f *fakeSheets) *Client {
	t.Helper()
	srv := httptest.NewServer(f.handler(t))
	t.Cleanup(srv.Close)

	svc, err := gsheet.NewService(context.Background(),
		goption.WithEndpoint(srv.URL+"/"),
		goption.WithoutAuthentication())
	if err != nil {
		t.Fatalf("create service: %v", err)
	}
	return NewWithService(svc, Config{SpreadsheetID: "sheet-id", SheetName: "Expenses"})
}

func TestExport(t *testing.T) {
	f := &fakeSheets{}
	c := newTestClient(t, f)

	row := ports.NewRow(core.Expense{
		ID: 42, Date: core.NewDate(2024, 1, 5), Category: "Transport",
		Amount: core.Money{Cents: 25000}, Description: "Uber ride",
	}, "alice")
	ref, err := c.Export(context.Background(), row)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ref != "Expenses!A7:F7" {
		t.Fatalf("unexpected ref %q", ref)
	}
	if len(f.lastAppend.Values) != 1 || len(f.lastAppend.Values[0]) != 6 {
		t.Fatalf("unexpected appended values %+v", f.lastAppend.Values)
	}
	got := f.lastAppend.Values[0]
	if got[0] != "2024-01-05" || got[1] != "alice" || got[2] != "Transport" || got[5] != "42" {
		t.Fatalf("unexpected row %v", got)
	}
	if !strings.Contains(f.lastQuery, "valueInputOption=USER_ENTERED") {
		t.Fatalf("expected USER_ENTERED, query=%s", f.lastQuery)
	}
}

func TestHasExpenseCachesIDColumn(t *testing.T) {
	f := &fakeSheets{idColumn: [][]interface{}{{"Expense ID"}, {"7"}, {}, {"not-an-id"}, {"9"}}}
	c := newTestClient(t, f)
	ctx := context.Background()

	for _, tc := range []struct {
		id   int64
		want bool
	}{{7, true}, {9, true}, {8, false}} {
		got, err := c.HasExpense(ctx, tc.id)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != tc.want {
			t.Fatalf("HasExpense(%d) = %v, want %v", tc.id, got, tc.want)
		}
	}
	if n := atomic.LoadInt32(&f.getCalls); n != 1 {
		t.Fatalf("expected one read of the id column, got %d", n)
	}

	if _, err := c.Export(ctx, ports.Row{ExpenseID: 8, Date: core.NewDate(2024, 1, 1)}); err != nil {
		t.Fatalf("export: %v", err)
	}
	if ok, _ := c.HasExpense(ctx, 8); !ok {
		t.Fatalf("exported id should be visible without re-reading the sheet")
	}
}

func TestNewValidation(t *testing.T) {
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "")
	if _, err := New(context.Background(), Config{}); err == nil || err.Error() != "missing GOOGLE_SPREADSHEET_ID" {
		t.Fatalf("expected missing spreadsheet id error, got %v", err)
	}
	_, err := New(context.Background(), Config{SpreadsheetID: "x"})
	if err == nil || !strings.Contains(err.Error(), "missing service account credentials") {
		t.Fatalf("expected missing credentials error, got %v", err)
	}
	_, err = New(context.Background(), Config{SpreadsheetID: "x", CredentialsFile: "/does/not/exist.json"})
	if err == nil || !strings.Contains(err.Error(), "read service account file") {
		t.Fatalf("expected file read error, got %v", err)
	}
}

func TestParseIDColumn(t *testing.T) {
	ids := parseIDColumn([][]interface{}{{"Expense ID"}, {" 12 "}, {float64(13)}, {"-1"}, {"0"}})
	if len(ids) != 2 {
		t.Fatalf("expected 2 ids, got %v", ids)
	}
	for _, id := range []int64{12, 13} {
		if _, ok := ids[id]; !ok {
			t.Fatalf("missing id %d", id)
		}
	}
}

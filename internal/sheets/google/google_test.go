package google

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"spendguard/internal/budget"
	"spendguard/internal/core"
)

// fakeSheets emulates the handful of Sheets endpoints the client calls.
type fakeSheets struct {
	mu       sync.Mutex
	sheets   []string
	rows     [][]any
	appends  int
	addSheet int
}

func (f *fakeSheets) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	path := r.URL.Path
	w.Header().Set("Content-Type", "application/json")
	switch {
	case r.Method == http.MethodPost && strings.HasSuffix(path, ":batchUpdate"):
		var req gsheet.BatchUpdateSpreadsheetRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		for _, rq := range req.Requests {
			if rq.AddSheet != nil {
				f.sheets = append(f.sheets, rq.AddSheet.Properties.Title)
				f.addSheet++
			}
		}
		_, _ = w.Write([]byte(`{}`))
	case r.Method == http.MethodPost && strings.HasSuffix(path, ":append"):
		var vr gsheet.ValueRange
		_ = json.NewDecoder(r.Body).Decode(&vr)
		f.rows = append(f.rows, vr.Values...)
		f.appends++
		_ = json.NewEncoder(w).Encode(map[string]any{
			"updates": map[string]any{"updatedRange": "'2025 Reports'!A2:G4"},
		})
	case r.Method == http.MethodPut && strings.Contains(path, "/values/"):
		var vr gsheet.ValueRange
		_ = json.NewDecoder(r.Body).Decode(&vr)
		f.rows = append(vr.Values, f.rows...)
		_, _ = w.Write([]byte(`{}`))
	case r.Method == http.MethodGet && strings.Contains(path, "/values/"):
		_ = json.NewEncoder(w).Encode(map[string]any{"values": f.rows})
	case r.Method == http.MethodGet:
		sheets := make([]map[string]any, 0, len(f.sheets))
		for _, s := range f.sheets {
			sheets = append(sheets, map[string]any{"properties": map[string]any{"title": s}})
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"sheets": sheets})
	default:
		http.Error(w, "unexpected "+r.Method+" "+path, http.StatusBadRequest)
	}
}

func newFakeClient(t *testing.T, fake *fakeSheets) *Client {
	t.Helper()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)
	svc, err := gsheet.NewService(context.Background(),
		goption.WithEndpoint(srv.URL+"/"),
		goption.WithHTTPClient(srv.Client()))
	require.NoError(t, err)
	return NewWithService(svc, "sid", "Reports", nil)
}

func sampleReport() budget.Report {
	return budget.Report{
		Owner: "u1", Year: 2025, Month: 4, Total: core.Money{Cents: 4200},
		PerCategory: []budget.CategorySpend{
			{Category: "food", Cap: core.Money{Cents: 5000}, HasCap: true, Spent: core.Money{Cents: 4200}},
		},
	}
}

func TestWriteReportCreatesSheetAndAppends(t *testing.T) {
	fake := &fakeSheets{}
	c := newFakeClient(t, fake)

	ref, err := c.WriteReport(context.Background(), sampleReport())
	require.NoError(t, err)
	assert.Equal(t, "'2025 Reports'!A2:G4", ref)
	assert.Equal(t, []string{"2025 Reports"}, fake.sheets)
	assert.Equal(t, 1, fake.appends)
	// header + food + total
	require.Len(t, fake.rows, 3)
	assert.Equal(t, "Period", fake.rows[0][0])
}

func TestWriteReportSkipsExportedMonth(t *testing.T) {
	fake := &fakeSheets{sheets: []string{"2025 Reports"}}
	c := newFakeClient(t, fake)
	ctx := context.Background()

	_, err := c.WriteReport(ctx, sampleReport())
	require.NoError(t, err)
	ref, err := c.WriteReport(ctx, sampleReport())
	require.NoError(t, err)

	assert.Equal(t, 1, fake.appends)
	assert.Equal(t, 0, fake.addSheet)
	assert.Equal(t, "'2025 Reports'!A2", ref)
}

func TestWriteReportRejectsBadMonth(t *testing.T) {
	c := newFakeClient(t, &fakeSheets{})
	rep := sampleReport()
	rep.Month = 0
	_, err := c.WriteReport(context.Background(), rep)
	assert.Error(t, err)
}

func TestNewRequiresCredentials(t *testing.T) {
	ctx := context.Background()

	_, err := New(ctx, Config{}, nil)
	assert.ErrorContains(t, err, "spreadsheet ID")

	_, err = New(ctx, Config{SpreadsheetID: "sid"}, nil)
	assert.ErrorContains(t, err, "missing credentials")

	_, err = New(ctx, Config{SpreadsheetID: "sid", OAuthClientJSON: []byte("invalid-json")}, nil)
	assert.ErrorContains(t, err, "oauth config")

	client := []byte(`{"installed":{"client_id":"id","client_secret":"s","auth_uri":"https://accounts.google.com/o/oauth2/auth","token_uri":"https://oauth2.googleapis.com/token","redirect_uris":["http://localhost"]}}`)
	_, err = New(ctx, Config{SpreadsheetID: "sid", OAuthClientJSON: client}, nil)
	assert.ErrorContains(t, err, "missing OAuth token")

	c, err := New(ctx, Config{SpreadsheetID: "sid", OAuthClientJSON: client, OAuthTokenJSON: []byte(`{"access_token":"t"}`)}, nil)
	require.NoError(t, err)
	assert.NotNil(t, c)
}

func TestLoadCredential(t *testing.T) {
	b, err := LoadCredential(" {} ", "/does/not/matter")
	require.NoError(t, err)
	assert.Equal(t, "{}", string(b))

	b, err = LoadCredential("", "")
	require.NoError(t, err)
	assert.Nil(t, b)

	_, err = LoadCredential("", "/definitely/missing/file.json")
	assert.Error(t, err)
}

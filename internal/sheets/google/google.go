package google

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"
	goauth "golang.org/x/oauth2/google"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"spendguard/internal/budget"
	ports "spendguard/internal/sheets"
)

// Config selects the spreadsheet and credentials. OAuth client and token
// take precedence over a service account.
type Config struct {
	SpreadsheetID string
	// SheetName is the base name; the report year is prefixed ("2025 Reports").
	SheetName string

	OAuthClientJSON    []byte
	OAuthTokenJSON     []byte
	ServiceAccountJSON []byte
}

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetBase     string
	logger        *slog.Logger

	mu    sync.Mutex
	known map[string]bool // sheets confirmed to exist
}

var _ ports.ReportWriter = (*Client)(nil)

// New creates a Sheets client from cfg.
func New(ctx context.Context, cfg Config, logger *slog.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, errors.New("missing spreadsheet ID")
	}
	svc, err := newSheetsService(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return NewWithService(svc, cfg.SpreadsheetID, cfg.SheetName, logger), nil
}

// NewWithService wraps an existing service, e.g. one pointed at a test endpoint.
func NewWithService(svc *gsheet.Service, spreadsheetID, sheetBase string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if strings.TrimSpace(sheetBase) == "" {
		sheetBase = "Reports"
	}
	return &Client{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		sheetBase:     sheetBase,
		logger:        logger,
		known:         make(map[string]bool),
	}
}

// LoadCredential returns inline when set, else the content of file. Both
// empty yields nil.
func LoadCredential(inline, file string) ([]byte, error) {
	if s := strings.TrimSpace(inline); s != "" {
		return []byte(s), nil
	}
	if f := strings.TrimSpace(file); f != "" {
		b, err := os.ReadFile(f)
		if err != nil {
			return nil, fmt.Errorf("read credential file: %w", err)
		}
		return b, nil
	}
	return nil, nil
}

func newSheetsService(ctx context.Context, cfg Config) (*gsheet.Service, error) {
	switch {
	case len(cfg.OAuthClientJSON) > 0:
		oauthCfg, err := goauth.ConfigFromJSON(cfg.OAuthClientJSON, gsheet.SpreadsheetsScope)
		if err != nil {
			return nil, fmt.Errorf("oauth config: %w", err)
		}
		if len(cfg.OAuthTokenJSON) == 0 {
			return nil, errors.New("missing OAuth token (run oauth-init first)")
		}
		var tok oauth2.Token
		if err := json.Unmarshal(cfg.OAuthTokenJSON, &tok); err != nil {
			return nil, fmt.Errorf("parse oauth token: %w", err)
		}
		// Token refreshes outlive ctx, so they run on a detached context
		// carrying the pooled transport.
		base := context.WithValue(context.Background(), oauth2.HTTPClient, newHTTPClientWithPooling())
		return gsheet.NewService(ctx, goption.WithHTTPClient(oauthCfg.Client(base, &tok)))
	case len(cfg.ServiceAccountJSON) > 0:
		return gsheet.NewService(ctx,
			goption.WithCredentialsJSON(cfg.ServiceAccountJSON),
			goption.WithScopes(gsheet.SpreadsheetsScope))
	default:
		return nil, errors.New("missing credentials (set an OAuth client and token, or a service account)")
	}
}

// newHTTPClientWithPooling creates an HTTP client tuned for the Sheets API.
func newHTTPClientWithPooling() *http.Client {
	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	transport := &http.Transport{
		DialContext:           dialer.DialContext,
		MaxIdleConns:          20,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		ForceAttemptHTTP2:     true,
	}
	return &http.Client{Transport: transport, Timeout: 60 * time.Second}
}

// a1 quotes a sheet name for A1 notation.
func a1(sheet, cells string) string {
	return "'" + strings.ReplaceAll(sheet, "'", "''") + "'!" + cells
}

// WriteReport appends rep to the sheet of its year, creating the sheet with
// a header row when missing. An owner month already present is skipped.
func (c *Client) WriteReport(ctx context.Context, rep budget.Report) (string, error) {
	if c.svc == nil {
		return "", errors.New("sheets service not initialized")
	}
	if rep.Month < 1 || rep.Month > 12 {
		return "", fmt.Errorf("invalid month: %d", rep.Month)
	}
	sheet := yearPrefixedName(c.sheetBase, rep.Year)
	if err := c.ensureSheet(ctx, sheet); err != nil {
		return "", err
	}

	existing, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, a1(sheet, "A:C")).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("read %s: %w", sheet, err)
	}
	if row, ok := parseExported(existing.Values)[exportedKey(rep.Owner, periodOf(rep.Year, rep.Month))]; ok {
		c.logger.InfoContext(ctx, "Report already exported",
			"owner", rep.Owner, "year", rep.Year, "month", rep.Month, "row", row)
		return a1(sheet, fmt.Sprintf("A%d", row)), nil
	}

	vr := &gsheet.ValueRange{Values: reportRows(rep)}
	resp, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, a1(sheet, "A:G"), vr).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("append to %s: %w", sheet, err)
	}

	ref := a1(sheet, "A:G")
	if resp.Updates != nil && resp.Updates.UpdatedRange != "" {
		ref = resp.Updates.UpdatedRange
	}
	c.logger.InfoContext(ctx, "Report exported",
		"owner", rep.Owner, "year", rep.Year, "month", rep.Month, "range", ref)
	return ref, nil
}

// ensureSheet creates sheet with a header row unless it already exists.
func (c *Client) ensureSheet(ctx context.Context, sheet string) error {
	c.mu.Lock()
	known := c.known[sheet]
	c.mu.Unlock()
	if known {
		return nil
	}

	ss, err := c.svc.Spreadsheets.Get(c.spreadsheetID).Fields("sheets.properties.title").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("get spreadsheet: %w", err)
	}
	for _, s := range ss.Sheets {
		if s.Properties != nil && s.Properties.Title == sheet {
			c.markKnown(sheet)
			return nil
		}
	}

	add := &gsheet.BatchUpdateSpreadsheetRequest{Requests: []*gsheet.Request{{
		AddSheet: &gsheet.AddSheetRequest{Properties: &gsheet.SheetProperties{Title: sheet}},
	}}}
	if _, err := c.svc.Spreadsheets.BatchUpdate(c.spreadsheetID, add).Context(ctx).Do(); err != nil {
		return fmt.Errorf("add sheet %s: %w", sheet, err)
	}
	header := &gsheet.ValueRange{Values: [][]any{reportHeader}}
	if _, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, a1(sheet, "A1:G1"), header).
		ValueInputOption("RAW").Context(ctx).Do(); err != nil {
		return fmt.Errorf("write header of %s: %w", sheet, err)
	}
	c.logger.InfoContext(ctx, "Report sheet created", "sheet", sheet)
	c.markKnown(sheet)
	return nil
}

func (c *Client) markKnown(sheet string) {
	c.mu.Lock()
	c.known[sheet] = true
	c.mu.Unlock()
}

package google

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"
	gauth "golang.org/x/oauth2/google"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"moneymanager/internal/config"
	"moneymanager/internal/core"
	"moneymanager/internal/log"
	ports "moneymanager/internal/sheets"
)

var ErrMissingCredentials = errors.New("missing google credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_OAUTH_CLIENT_* with GOOGLE_OAUTH_TOKEN_*)")

// Client mirrors the ledger into one tab of a spreadsheet.
type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetName     string
	logger        *log.Logger

	mu         sync.Mutex
	sheetReady bool
}

var _ ports.LedgerMirror = (*Client)(nil)

// Options carries the raw credential material. Service account JSON wins
// over the OAuth client/token pair when both are present.
type Options struct {
	SpreadsheetID      string
	SheetName          string
	ServiceAccountJSON []byte
	OAuthClientJSON    []byte
	OAuthTokenJSON     []byte
}

// OptionsFromConfig reads inline or file based credentials from cfg.
func OptionsFromConfig(cfg *config.Config) (Options, error) {
	opts := Options{
		SpreadsheetID: strings.TrimSpace(cfg.GoogleSpreadsheetID),
		SheetName:     strings.TrimSpace(cfg.GoogleSheetName),
	}
	var err error
	if opts.ServiceAccountJSON, err = inlineOrFile(cfg.GoogleServiceAccountJSON, cfg.GoogleServiceAccountFile); err != nil {
		return Options{}, fmt.Errorf("read service account: %w", err)
	}
	if opts.OAuthClientJSON, err = inlineOrFile(cfg.GoogleOAuthClientJSON, cfg.GoogleOAuthClientFile); err != nil {
		return Options{}, fmt.Errorf("read oauth client: %w", err)
	}
	if opts.OAuthTokenJSON, err = inlineOrFile(cfg.GoogleOAuthTokenJSON, cfg.GoogleOAuthTokenFile); err != nil {
		return Options{}, fmt.Errorf("read oauth token: %w", err)
	}
	return opts, nil
}

func inlineOrFile(inline, path string) ([]byte, error) {
	if s := strings.TrimSpace(inline); s != "" {
		return []byte(s), nil
	}
	if path = strings.TrimSpace(path); path == "" {
		return nil, nil
	}
	return os.ReadFile(path)
}

// NewClient creates a Sheets client from opts.
func NewClient(ctx context.Context, opts Options, logger *log.Logger) (*Client, error) {
	if opts.SpreadsheetID == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	if opts.SheetName == "" {
		opts.SheetName = "Ledger"
	}
	svcOpts, err := serviceOptions(ctx, opts)
	if err != nil {
		return nil, err
	}
	svc, err := gsheet.NewService(ctx, svcOpts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return newWithService(svc, opts.SpreadsheetID, opts.SheetName, logger), nil
}

func newWithService(svc *gsheet.Service, spreadsheetID, sheetName string, logger *log.Logger) *Client {
	if logger == nil {
		logger = log.Discard()
	}
	return &Client{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		sheetName:     sheetName,
		logger:        logger.WithComponent(log.ComponentSheets),
	}
}

// serviceOptions picks the authentication for the service.
func serviceOptions(ctx context.Context, opts Options) ([]goption.ClientOption, error) {
	switch {
	case len(opts.ServiceAccountJSON) > 0:
		return []goption.ClientOption{
			goption.WithCredentialsJSON(opts.ServiceAccountJSON),
			goption.WithScopes(gsheet.SpreadsheetsScope),
		}, nil
	case len(opts.OAuthClientJSON) > 0 && len(opts.OAuthTokenJSON) > 0:
		ts, err := oauthTokenSource(ctx, opts.OAuthClientJSON, opts.OAuthTokenJSON)
		if err != nil {
			return nil, err
		}
		return []goption.ClientOption{goption.WithHTTPClient(newHTTPClientWithPooling(ts))}, nil
	default:
		return nil, ErrMissingCredentials
	}
}

// oauthTokenSource refreshes the stored user token with the client config.
func oauthTokenSource(ctx context.Context, clientJSON, tokenJSON []byte) (oauth2.TokenSource, error) {
	cfg, err := gauth.ConfigFromJSON(clientJSON, gsheet.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("oauth config: %w", err)
	}
	var tok oauth2.Token
	if err := json.Unmarshal(tokenJSON, &tok); err != nil {
		return nil, fmt.Errorf("oauth token: %w", err)
	}
	if tok.AccessToken == "" && tok.RefreshToken == "" {
		return nil, errors.New("oauth token: no access or refresh token")
	}
	return cfg.TokenSource(ctx, &tok), nil
}

// newHTTPClientWithPooling signs requests with ts over a pooled transport.
func newHTTPClientWithPooling(ts oauth2.TokenSource) *http.Client {
	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	base := &http.Transport{
		DialContext:           dialer.DialContext,
		MaxIdleConns:          20,
		MaxIdleConnsPerHost:   5,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
		ForceAttemptHTTP2:     true,
	}
	return &http.Client{
		Transport: &oauth2.Transport{Source: ts, Base: base},
		Timeout:   60 * time.Second,
	}
}

// ReplaceLedger rewrites the whole tab: a header row followed by txs.
func (c *Client) ReplaceLedger(ctx context.Context, txs []core.Transaction) (string, error) {
	if c.svc == nil {
		return "", errors.New("sheets service not initialized")
	}
	if err := c.ensureSheet(ctx); err != nil {
		return "", err
	}

	clearRange := a1(c.sheetName, "A:H")
	if _, err := c.svc.Spreadsheets.Values.Clear(c.spreadsheetID, clearRange, &gsheet.ClearValuesRequest{}).
		Context(ctx).Do(); err != nil {
		return "", fmt.Errorf("clear %s: %w", clearRange, err)
	}

	rows := ledgerRows(txs)
	ref := a1(c.sheetName, fmt.Sprintf("A1:H%d", len(rows)))
	if _, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, ref, &gsheet.ValueRange{Values: rows}).
		ValueInputOption("RAW").Context(ctx).Do(); err != nil {
		return "", fmt.Errorf("update %s: %w", ref, err)
	}

	c.logger.InfoContext(ctx, "Ledger mirrored", "range", ref, log.FieldCount, len(txs))
	return ref, nil
}

// ReadLedger parses the tab back into transactions, skipping the header.
func (c *Client) ReadLedger(ctx context.Context) ([]core.Transaction, error) {
	if c.svc == nil {
		return nil, errors.New("sheets service not initialized")
	}
	if err := c.ensureSheet(ctx); err != nil {
		return nil, err
	}
	rng := a1(c.sheetName, "A2:H")
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).
		ValueRenderOption("UNFORMATTED_VALUE").Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rng, err)
	}
	return parseLedgerRows(resp.Values)
}

// ensureSheet adds the ledger tab on first use when the spreadsheet lacks it.
func (c *Client) ensureSheet(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sheetReady {
		return nil
	}

	ss, err := c.svc.Spreadsheets.Get(c.spreadsheetID).Fields("sheets.properties.title").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("get spreadsheet: %w", err)
	}
	for _, sh := range ss.Sheets {
		if sh.Properties != nil && sh.Properties.Title == c.sheetName {
			c.sheetReady = true
			return nil
		}
	}

	req := &gsheet.BatchUpdateSpreadsheetRequest{
		Requests: []*gsheet.Request{{
			AddSheet: &gsheet.AddSheetRequest{
				Properties: &gsheet.SheetProperties{Title: c.sheetName},
			},
		}},
	}
	if _, err := c.svc.Spreadsheets.BatchUpdate(c.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("add sheet %q: %w", c.sheetName, err)
	}
	c.logger.InfoContext(ctx, "Ledger sheet created", "sheet", c.sheetName)
	c.sheetReady = true
	return nil
}

// a1 quotes the sheet name so titles with spaces or quotes stay valid.
func a1(sheet, rng string) string {
	return fmt.Sprintf("'%s'!%s", strings.ReplaceAll(sheet, "'", "''"), rng)
}

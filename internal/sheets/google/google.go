// Package google reads transactions from a Google Sheets spreadsheet. The
// sheet is maintained by hand, so the adapter is read-only.
package google

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"
	googleoauth "golang.org/x/oauth2/google"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"finreport/internal/core"
	"finreport/internal/log"
	"finreport/internal/store"
)

const (
	DefaultSheetName = "Transactions"

	// Pages requested by store.FetchAll within this window share one read.
	defaultCacheDuration = 30 * time.Second
)

type Config struct {
	SpreadsheetID string
	SheetName     string
	// CredentialsJSON takes precedence over CredentialsFile. When both are
	// empty GOOGLE_APPLICATION_CREDENTIALS is used.
	CredentialsJSON string
	CredentialsFile string

	// OAuth user credentials, used when no service account is configured.
	OAuthClientJSON string
	OAuthClientFile string
	OAuthTokenFile  string
}

type valuesReader func(ctx context.Context, rng string) ([][]interface{}, error)

type Client struct {
	read      valuesReader
	sheetName string
	logger    *log.Logger

	mu                 sync.Mutex
	cachedRows         []core.Transaction
	cacheExpiresAt     time.Time
	cacheValidDuration time.Duration
	now                func() time.Time
}

var _ store.TransactionFetcher = (*Client)(nil)

func New(ctx context.Context, cfg Config) (*Client, error) {
	spreadsheetID := strings.TrimSpace(cfg.SpreadsheetID)
	if spreadsheetID == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	sheetName := strings.TrimSpace(cfg.SheetName)
	if sheetName == "" {
		sheetName = DefaultSheetName
	}

	svc, err := newSheetsService(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}

	read := func(ctx context.Context, rng string) ([][]interface{}, error) {
		resp, err := svc.Spreadsheets.Values.Get(spreadsheetID, rng).
			ValueRenderOption("UNFORMATTED_VALUE").
			DateTimeRenderOption("FORMATTED_STRING").
			Context(ctx).Do()
		if err != nil {
			return nil, err
		}
		return resp.Values, nil
	}
	return newClient(read, sheetName), nil
}

func newClient(read valuesReader, sheetName string) *Client {
	return &Client{
		read:               read,
		sheetName:          sheetName,
		logger:             log.Default(log.ComponentStorage),
		cacheValidDuration: defaultCacheDuration,
		now:                time.Now,
	}
}

// newSheetsService builds a read-only Sheets service. Service account
// credentials win; an OAuth token file minted by cmd/sheets-auth is the
// fallback for personal spreadsheets.
func newSheetsService(ctx context.Context, cfg Config) (*gsheet.Service, error) {
	credentialsJSON, err := serviceAccountJSON(cfg)
	if err != nil {
		return nil, err
	}
	if len(credentialsJSON) > 0 {
		return gsheet.NewService(ctx,
			goption.WithCredentialsJSON(credentialsJSON),
			goption.WithScopes(gsheet.SpreadsheetsReadonlyScope))
	}

	if strings.TrimSpace(cfg.OAuthTokenFile) == "" {
		return nil, errors.New("missing credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, GOOGLE_APPLICATION_CREDENTIALS or GOOGLE_OAUTH_TOKEN_FILE)")
	}
	ts, err := oauthTokenSource(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return gsheet.NewService(ctx, goption.WithTokenSource(ts))
}

func serviceAccountJSON(cfg Config) ([]byte, error) {
	if b := []byte(strings.TrimSpace(cfg.CredentialsJSON)); len(b) > 0 {
		return b, nil
	}
	path := strings.TrimSpace(cfg.CredentialsFile)
	if path == "" {
		path = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}
	if path == "" {
		return nil, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read service account file: %w", err)
	}
	return b, nil
}

// OAuthConfig parses an OAuth client (installed app) definition for
// read-only Sheets access.
func OAuthConfig(clientJSON []byte) (*oauth2.Config, error) {
	cfg, err := googleoauth.ConfigFromJSON(clientJSON, gsheet.SpreadsheetsReadonlyScope)
	if err != nil {
		return nil, fmt.Errorf("oauth client config: %w", err)
	}
	return cfg, nil
}

func oauthTokenSource(ctx context.Context, cfg Config) (oauth2.TokenSource, error) {
	clientJSON := []byte(strings.TrimSpace(cfg.OAuthClientJSON))
	if len(clientJSON) == 0 {
		if cfg.OAuthClientFile == "" {
			return nil, errors.New("GOOGLE_OAUTH_TOKEN_FILE needs GOOGLE_OAUTH_CLIENT_JSON or GOOGLE_OAUTH_CLIENT_FILE")
		}
		b, err := os.ReadFile(cfg.OAuthClientFile)
		if err != nil {
			return nil, fmt.Errorf("read oauth client file: %w", err)
		}
		clientJSON = b
	}
	oc, err := OAuthConfig(clientJSON)
	if err != nil {
		return nil, err
	}

	b, err := os.ReadFile(cfg.OAuthTokenFile)
	if err != nil {
		return nil, fmt.Errorf("read oauth token file: %w", err)
	}
	var tok oauth2.Token
	if err := json.Unmarshal(b, &tok); err != nil {
		return nil, fmt.Errorf("decode oauth token: %w", err)
	}
	if tok.RefreshToken == "" && !tok.Valid() {
		return nil, errors.New("oauth token is expired and has no refresh token; run sheets-auth again")
	}
	return oc.TokenSource(ctx, &tok), nil
}

// FetchTransactions reads the whole sheet (cached briefly), then filters and
// pages in memory. Rows that cannot be parsed are logged and skipped.
func (c *Client) FetchTransactions(ctx context.Context, userID string, filter store.Filter, page *store.Pagination) ([]core.Transaction, error) {
	rows, err := c.rows(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]core.Transaction, 0, len(rows))
	for _, tx := range rows {
		if tx.UserID != "" && tx.UserID != userID {
			continue
		}
		if !filter.Match(tx.Date) {
			continue
		}
		tx.UserID = userID
		out = append(out, tx)
	}
	return store.Paginate(out, page), nil
}

func (c *Client) rows(ctx context.Context) ([]core.Transaction, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cachedRows != nil && c.now().Before(c.cacheExpiresAt) {
		return c.cachedRows, nil
	}

	rng := fmt.Sprintf("%s!A:G", c.sheetName)
	values, err := c.read(ctx, rng)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rng, err)
	}
	txs, bad := parseTransactionRows(values, c.sheetName)
	if len(bad) > 0 {
		c.logger.WarnContext(ctx, "Skipped unreadable sheet rows",
			"sheet", c.sheetName, "rows", len(bad), "first", bad[0])
	}

	c.cachedRows = txs
	c.cacheExpiresAt = c.now().Add(c.cacheValidDuration)
	return txs, nil
}

// Invalidate drops the cached sheet contents.
func (c *Client) Invalidate() {
	c.mu.Lock()
	c.cachedRows = nil
	c.cacheExpiresAt = time.Time{}
	c.mu.Unlock()
}

package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"cashflow/internal/importer"

	goauth "golang.org/x/oauth2/google"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

var ErrMissingCredentials = errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")

// Config selects the spreadsheet and the service account used to read it.
type Config struct {
	SpreadsheetID   string
	CredentialsJSON string
	CredentialsFile string
}

// Client reads value ranges from Google Sheets. It only needs read access.
type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
}

// New creates a Sheets client authenticated with a service account.
func New(ctx context.Context, cfg Config) (*Client, error) {
	creds, err := loadCredentials(ctx, cfg.CredentialsJSON, cfg.CredentialsFile)
	if err != nil {
		return nil, err
	}
	svc, err := newSheetsService(ctx, creds)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return &Client{svc: svc, spreadsheetID: strings.TrimSpace(cfg.SpreadsheetID)}, nil
}

// loadCredentials prefers inline JSON, then the file path, then
// GOOGLE_APPLICATION_CREDENTIALS.
func loadCredentials(ctx context.Context, inline, file string) ([]byte, error) {
	inline = strings.TrimSpace(inline)
	file = strings.TrimSpace(file)
	if inline == "" && file == "" {
		file = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
		slog.DebugContext(ctx, "Checking GOOGLE_APPLICATION_CREDENTIALS", "path", file)
	}

	switch {
	case inline != "":
		slog.InfoContext(ctx, "Using inline JSON credentials")
		return []byte(inline), nil
	case file != "":
		slog.InfoContext(ctx, "Reading credentials from file", "path", file)
		b, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		return b, nil
	default:
		return nil, ErrMissingCredentials
	}
}

// newSheetsService parses the service account key up front so that a bad key
// fails at startup rather than on the first read.
func newSheetsService(ctx context.Context, credentialsJSON []byte) (*gsheet.Service, error) {
	slog.InfoContext(ctx, "Creating Google Sheets service with Service Account",
		"credentials_size", len(credentialsJSON),
		"scope", gsheet.SpreadsheetsReadonlyScope)

	creds, err := goauth.CredentialsFromJSON(ctx, credentialsJSON, gsheet.SpreadsheetsReadonlyScope)
	if err != nil {
		return nil, fmt.Errorf("parse service account credentials: %w", err)
	}
	service, err := gsheet.NewService(ctx, goption.WithCredentials(creds))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return service, nil
}

// ReadRange returns the raw values of rng. An empty spreadsheetID falls back
// to the configured one. Numbers come back unformatted so that the importer
// sees them as numeric cells.
func (c *Client) ReadRange(ctx context.Context, spreadsheetID, rng string) ([][]interface{}, error) {
	if c.svc == nil {
		return nil, errors.New("sheets service not initialized")
	}
	id := strings.TrimSpace(spreadsheetID)
	if id == "" {
		id = c.spreadsheetID
	}
	if id == "" {
		return nil, errors.New("missing spreadsheet id")
	}

	resp, err := c.svc.Spreadsheets.Values.Get(id, rng).
		ValueRenderOption("UNFORMATTED_VALUE").
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rng, err)
	}
	slog.DebugContext(ctx, "Read sheet range", "range", rng, "rows", len(resp.Values))
	return resp.Values, nil
}

// ReadMatrix reads rng and converts it into an importer matrix.
func (c *Client) ReadMatrix(ctx context.Context, spreadsheetID, rng string) (importer.Matrix, error) {
	values, err := c.ReadRange(ctx, spreadsheetID, rng)
	if err != nil {
		return nil, err
	}
	return importer.MatrixOf(trimValues(values)), nil
}

// trimValues drops trailing rows whose cells are all blank.
func trimValues(values [][]interface{}) [][]interface{} {
	end := len(values)
	for end > 0 && blankRow(values[end-1]) {
		end--
	}
	return values[:end]
}

func blankRow(row []interface{}) bool {
	for _, v := range row {
		if v == nil {
			continue
		}
		if strings.TrimSpace(fmt.Sprint(v)) != "" {
			return false
		}
	}
	return true
}

// YearRange qualifies a bare sheet name or A1 range with a year-prefixed sheet
// ("Budget!A1:N80" becomes "2025 Budget!A1:N80") unless the sheet name
// already starts with a 4-digit year.
func YearRange(rng string, year int) string {
	sheet, cells, hasCells := strings.Cut(strings.TrimSpace(rng), "!")
	sheet = strings.ReplaceAll(strings.Trim(sheet, "'"), "''", "'")
	sheet = yearPrefixedName(sheet, year)
	if strings.ContainsAny(sheet, " '") {
		sheet = "'" + strings.ReplaceAll(sheet, "'", "''") + "'"
	}
	if !hasCells {
		return sheet
	}
	return sheet + "!" + cells
}

func yearPrefixedName(base string, year int) string {
	base = strings.TrimSpace(base)
	if base == "" {
		return base
	}
	if len(base) >= 5 {
		if y, err := strconv.Atoi(base[0:4]); err == nil && base[4] == ' ' && y > 1900 && y < 3000 {
			return base
		}
	}
	return fmt.Sprintf("%d %s", year, base)
}

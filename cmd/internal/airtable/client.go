// Package airtable stores signup records in an Airtable base through its REST API.
package airtable

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	at "github.com/mehanizm/airtable"
)

const (
	// DefaultBaseURL is the Airtable REST API root.
	DefaultBaseURL = "https://api.airtable.com/v0"

	defaultTimeout = 10 * time.Second
)

// ErrConfig is returned when required credentials are missing.
var ErrConfig = errors.New("airtable: api key, base id and table are required")

// Config identifies the table and credentials.
type Config struct {
	APIKey  string
	BaseID  string
	Table   string
	BaseURL string
	Timeout time.Duration
	// RequestsPerSecond caps outgoing calls. Zero keeps the library default,
	// which stays under Airtable's 5 req/s per base.
	RequestsPerSecond int
}

// Record is a raw Airtable row.
type Record struct {
	ID          string         `json:"id,omitempty"`
	CreatedTime string         `json:"createdTime,omitempty"`
	Fields      map[string]any `json:"fields"`
}

// Client is a minimal table client: list by formula, create, patch.
type Client struct {
	table *at.Table
}

// NewClient validates cfg and returns a Client.
func NewClient(cfg Config) (*Client, error) {
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	cfg.BaseID = strings.TrimSpace(cfg.BaseID)
	cfg.Table = strings.TrimSpace(cfg.Table)
	if cfg.APIKey == "" || cfg.BaseID == "" || cfg.Table == "" {
		return nil, ErrConfig
	}
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}

	api := at.NewClient(cfg.APIKey)
	api.SetCustomClient(&http.Client{Timeout: cfg.Timeout})
	if cfg.RequestsPerSecond > 0 {
		api.SetRateLimit(cfg.RequestsPerSecond)
	}
	if err := api.SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")); err != nil {
		return nil, fmt.Errorf("airtable: %w", err)
	}

	// The library joins path segments verbatim; table names often contain spaces.
	return &Client{table: api.GetTable(url.PathEscape(cfg.BaseID), url.PathEscape(cfg.Table))}, nil
}

// List returns up to maxRecords rows matching formula.
func (c *Client) List(ctx context.Context, formula string, maxRecords int) ([]Record, error) {
	q := c.table.GetRecords().WithFilterFormula(formula)
	if maxRecords > 0 {
		q = q.MaxRecords(maxRecords)
	}
	res, err := q.DoContext(ctx)
	if err != nil {
		return nil, err
	}
	return fromRows(res.Records), nil
}

// Create inserts one row and returns it with its id.
func (c *Client) Create(ctx context.Context, fields map[string]any) (Record, error) {
	res, err := c.table.AddRecordsContext(ctx, &at.Records{
		Records: []*at.Record{{Fields: fields}},
	})
	if err != nil {
		return Record{}, err
	}
	if len(res.Records) == 0 {
		return Record{}, errors.New("airtable: create returned no records")
	}
	return fromRows(res.Records)[0], nil
}

// Update patches the given fields of one row.
func (c *Client) Update(ctx context.Context, id string, fields map[string]any) (Record, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Record{}, errors.New("airtable: empty record id")
	}
	res, err := c.table.UpdateRecordsPartialContext(ctx, &at.Records{
		Records: []*at.Record{{ID: id, Fields: fields}},
	})
	if err != nil {
		return Record{}, err
	}
	if len(res.Records) == 0 {
		return Record{}, fmt.Errorf("airtable: update %s returned no records", id)
	}
	return fromRows(res.Records)[0], nil
}

// StatusCode extracts the HTTP status of a failed Airtable call, or 0.
func StatusCode(err error) int {
	var httpErr *at.HTTPClientError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode
	}
	return 0
}

func fromRows(rows []*at.Record) []Record {
	out := make([]Record, 0, len(rows))
	for _, r := range rows {
		if r == nil {
			continue
		}
		out = append(out, Record{ID: r.ID, CreatedTime: r.CreatedTime, Fields: r.Fields})
	}
	return out
}

// quoteFormulaString renders s as an Airtable formula string literal.
func quoteFormulaString(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return `"` + s + `"`
}

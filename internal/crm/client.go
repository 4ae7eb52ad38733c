// Package crm pushes inspection results to an Airtable-style CRM.
package crm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-resty/resty/v2"

	"github.com/vbonduro/renocheck/internal/config"
)

var ErrRecordNotFound = errors.New("crm record not found")

// StatusError is a non-2xx CRM response.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("crm returned status %d: %s", e.StatusCode, e.Body)
}

// Temporary reports whether repeating the request may succeed.
func (e *StatusError) Temporary() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

type Record struct {
	ID     string         `json:"id"`
	Fields map[string]any `json:"fields"`
}

type listResponse struct {
	Records []Record `json:"records"`
}

type updateRequest struct {
	Fields   map[string]any `json:"fields"`
	Typecast bool           `json:"typecast"`
}

// Client talks to one table of one base. The table is addressed by its
// configured name only; linkage ids stored elsewhere are never used to pick
// the table.
type Client struct {
	http     *resty.Client
	baseID   string
	table    string
	keyField string
}

func NewClient(cfg *config.Config) *Client {
	client := resty.New().
		SetBaseURL(cfg.CRMBaseURL).
		SetTimeout(cfg.CRMTimeout).
		SetAuthToken(cfg.CRMAPIKey).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	return &Client{
		http:     client,
		baseID:   cfg.CRMBaseID,
		table:    cfg.CRMTable,
		keyField: cfg.CRMKeyField,
	}
}

// FindByBusinessKey returns the record whose key field equals key. When no
// exact match exists a case-insensitive substring search is tried.
func (c *Client) FindByBusinessKey(ctx context.Context, key string) (*Record, error) {
	esc := escapeFormula(key)

	rec, err := c.findOne(ctx, fmt.Sprintf("{%s}='%s'", c.keyField, esc))
	if err != nil || rec != nil {
		return rec, err
	}

	rec, err = c.findOne(ctx, fmt.Sprintf("SEARCH(LOWER('%s'), LOWER({%s}))", esc, c.keyField))
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, fmt.Errorf("no record with %s %q in %s: %w", c.keyField, key, c.table, ErrRecordNotFound)
	}
	return rec, nil
}

func (c *Client) findOne(ctx context.Context, formula string) (*Record, error) {
	var out listResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParams(map[string]string{"base": c.baseID, "table": c.table}).
		SetQueryParams(map[string]string{"filterByFormula": formula, "maxRecords": "1"}).
		SetResult(&out).
		Get("/v0/{base}/{table}")
	if err != nil {
		return nil, fmt.Errorf("failed to query crm: %w", err)
	}
	if resp.IsError() {
		return nil, &StatusError{StatusCode: resp.StatusCode(), Body: resp.String()}
	}
	if len(out.Records) == 0 {
		return nil, nil
	}
	return &out.Records[0], nil
}

// UpdateFields patches the given fields of a record. Field keys are the
// opaque field ids of the CRM.
func (c *Client) UpdateFields(ctx context.Context, recordID string, fields map[string]any) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParams(map[string]string{"base": c.baseID, "table": c.table, "record": recordID}).
		SetBody(updateRequest{Fields: fields, Typecast: true}).
		Patch("/v0/{base}/{table}/{record}")
	if err != nil {
		return fmt.Errorf("failed to update crm record: %w", err)
	}
	if resp.IsError() {
		return &StatusError{StatusCode: resp.StatusCode(), Body: resp.String()}
	}
	return nil
}

func escapeFormula(s string) string {
	return strings.NewReplacer(`\`, `\\`, `'`, `\'`).Replace(s)
}

// Package salesforce pushes reviewed intake records to Salesforce as
// sObjects over the JWT-authenticated REST API.
package salesforce

import (
	"context"
	"fmt"

	"github.com/k-capehart/go-salesforce/v3"
	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

// Client writes reviewed records to Salesforce.
type Client interface {
	// UpsertRecord writes rec and returns the sObject ID.
	UpsertRecord(ctx context.Context, rec Record) (string, error)
}

// Record is one reviewed record bound for an sObject.
type Record struct {
	SObject string
	// ExistingID is the ID returned by an earlier push of the same record.
	ExistingID string
	// MatchKey is the record key looked up when ExistingID is empty, so a
	// record already in the org is updated rather than duplicated.
	MatchKey string
	Data     map[string]any
	Fields   FieldMap
}

// ClientOption configures the Salesforce client.
type ClientOption func(*sfClient)

// WithRateLimit sets a per-second rate limit for API calls. A burst equal
// to the integer portion of rps is allowed.
func WithRateLimit(rps float64) ClientOption {
	return func(c *sfClient) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), max(int(rps), 1))
		}
	}
}

// sfClient drives a go-salesforce instance. go-salesforce does not accept a
// context, so ctx only bounds the rate limiter wait.
type sfClient struct {
	sf      *salesforce.Salesforce
	limiter *rate.Limiter
}

// NewClient wraps an authenticated go-salesforce instance.
func NewClient(sf *salesforce.Salesforce, opts ...ClientOption) Client {
	c := &sfClient{sf: sf}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *sfClient) UpsertRecord(ctx context.Context, rec Record) (string, error) {
	if rec.SObject == "" {
		return "", eris.New("sf: sObject name is required")
	}
	fields := MapFields(rec.Data, rec.Fields)
	if len(fields) == 0 {
		return "", eris.Errorf("sf: no fields to write to %s", rec.SObject)
	}

	id := rec.ExistingID
	if id == "" {
		found, err := c.findExisting(ctx, rec)
		if err != nil {
			return "", err
		}
		id = found
	}

	if id != "" {
		if err := c.update(ctx, rec.SObject, id, fields); err != nil {
			return "", err
		}
		return id, nil
	}
	return c.insert(ctx, rec.SObject, fields)
}

type idRow struct {
	ID string `json:"Id" salesforce:"Id"`
}

// findExisting returns the ID of the first sObject whose mapped match field
// equals the record's value, or "" when there is nothing to match on.
func (c *sfClient) findExisting(ctx context.Context, rec Record) (string, error) {
	field := rec.Fields[rec.MatchKey]
	value, _ := rec.Data[rec.MatchKey].(string)
	if rec.MatchKey == "" || field == "" || value == "" {
		return "", nil
	}

	if err := c.wait(ctx); err != nil {
		return "", eris.Wrap(err, "sf: rate limit")
	}
	soql := fmt.Sprintf("SELECT Id FROM %s WHERE %s = '%s' LIMIT 1", rec.SObject, field, escapeSoql(value))
	var rows []idRow
	if err := c.sf.Query(soql, &rows); err != nil {
		return "", eris.Wrap(err, fmt.Sprintf("sf: find %s by %s", rec.SObject, field))
	}
	if len(rows) == 0 {
		return "", nil
	}
	return rows[0].ID, nil
}

func (c *sfClient) insert(ctx context.Context, sObject string, fields map[string]any) (string, error) {
	if err := c.wait(ctx); err != nil {
		return "", eris.Wrap(err, "sf: rate limit")
	}
	result, err := c.sf.InsertOne(sObject, fields)
	if err != nil {
		return "", eris.Wrap(err, fmt.Sprintf("sf: insert %s", sObject))
	}
	if !result.Success {
		return "", eris.New(fmt.Sprintf("sf: insert %s failed: %v", sObject, result.Errors))
	}
	return result.Id, nil
}

func (c *sfClient) update(ctx context.Context, sObject, id string, fields map[string]any) error {
	if err := c.wait(ctx); err != nil {
		return eris.Wrap(err, "sf: rate limit")
	}
	body := make(map[string]any, len(fields)+1)
	for k, v := range fields {
		body[k] = v
	}
	body["Id"] = id
	if err := c.sf.UpdateOne(sObject, body); err != nil {
		return eris.Wrap(err, fmt.Sprintf("sf: update %s %s", sObject, id))
	}
	return nil
}

func (c *sfClient) wait(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	return c.limiter.Wait(ctx)
}

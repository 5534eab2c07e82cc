package salesforce

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	gosf "github.com/k-capehart/go-salesforce/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeOrg records the REST calls an upsert makes against a test server.
type fakeOrg struct {
	mu       sync.Mutex
	existing string
	queries  []string
	inserted map[string]any
	updated  map[string]any
	failWith int
}

func (o *fakeOrg) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	o.mu.Lock()
	defer o.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if o.failWith != 0 {
		w.WriteHeader(o.failWith)
		_ = json.NewEncoder(w).Encode([]map[string]any{{"message": "invalid field", "errorCode": "INVALID_FIELD"}})
		return
	}

	switch {
	case r.Method == http.MethodGet && strings.Contains(r.URL.Path, "/query"):
		o.queries = append(o.queries, r.URL.Query().Get("q"))
		records := []map[string]any{}
		if o.existing != "" {
			records = append(records, map[string]any{"attributes": map[string]any{"type": "Lender__c"}, "Id": o.existing})
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"totalSize": len(records), "done": true, "records": records})
	case r.Method == http.MethodPost && strings.Contains(r.URL.Path, "/sobjects/Lender__c"):
		_ = json.NewDecoder(r.Body).Decode(&o.inserted)
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]any{"id": "a01new", "success": true, "errors": []any{}})
	case r.Method == http.MethodPatch && strings.Contains(r.URL.Path, "/sobjects/Lender__c"):
		_ = json.NewDecoder(r.Body).Decode(&o.updated)
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func newOrgClient(t *testing.T, org *fakeOrg) Client {
	t.Helper()
	ts := httptest.NewServer(org)
	t.Cleanup(ts.Close)

	sf, err := gosf.Init(gosf.Creds{
		AccessToken: "test-token",
		Domain:      ts.URL,
	},
		gosf.WithValidateAuthentication(false),
		gosf.WithRoundTripper(http.DefaultTransport),
	)
	require.NoError(t, err)
	return NewClient(sf)
}

func lenderRecord() Record {
	return Record{
		SObject:  "Lender__c",
		MatchKey: "website",
		Data: map[string]any{
			"lender_name":        "O'Brien Capital",
			"website":            "https://obrien.example",
			"min_funding_amount": 5000.0,
			"products_offered":   []string{"MCA", "Term Loan"},
		},
		Fields: lenderFields,
	}
}

func TestUpsertRecord_InsertsWhenNoMatch(t *testing.T) {
	org := &fakeOrg{}
	client := newOrgClient(t, org)

	id, err := client.UpsertRecord(context.Background(), lenderRecord())
	require.NoError(t, err)
	assert.Equal(t, "a01new", id)

	require.Len(t, org.queries, 1)
	assert.Contains(t, org.queries[0], "SELECT Id FROM Lender__c WHERE Website__c = 'https://obrien.example'")
	assert.Equal(t, "O'Brien Capital", org.inserted["Name"])
	assert.Equal(t, "MCA;Term Loan", org.inserted["Products__c"])
	assert.Nil(t, org.updated)
}

func TestUpsertRecord_UpdatesMatchedWebsite(t *testing.T) {
	org := &fakeOrg{existing: "a01xx"}
	client := newOrgClient(t, org)

	id, err := client.UpsertRecord(context.Background(), lenderRecord())
	require.NoError(t, err)
	assert.Equal(t, "a01xx", id)
	assert.Nil(t, org.inserted)
	require.NotNil(t, org.updated)
	assert.InDelta(t, 5000, org.updated["Min_Funding__c"], 0.001)
}

func TestUpsertRecord_ExistingIDSkipsLookup(t *testing.T) {
	org := &fakeOrg{}
	client := newOrgClient(t, org)

	rec := lenderRecord()
	rec.ExistingID = "a01old"
	id, err := client.UpsertRecord(context.Background(), rec)
	require.NoError(t, err)
	assert.Equal(t, "a01old", id)
	assert.Empty(t, org.queries)
	assert.NotNil(t, org.updated)
}

func TestUpsertRecord_QueryError(t *testing.T) {
	client := newOrgClient(t, &fakeOrg{failWith: http.StatusBadRequest})

	_, err := client.UpsertRecord(context.Background(), lenderRecord())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sf: find Lender__c by Website__c")
}

func TestUpsertRecord_UpdateError(t *testing.T) {
	client := newOrgClient(t, &fakeOrg{failWith: http.StatusBadRequest})

	rec := lenderRecord()
	rec.ExistingID = "a01xx"
	_, err := client.UpsertRecord(context.Background(), rec)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sf: update Lender__c a01xx")
}

func TestUpsertRecord_InsertRejected(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":      "",
			"success": false,
			"errors":  []map[string]any{{"message": "required field missing"}},
		})
	}))
	defer ts.Close()

	sf, err := gosf.Init(gosf.Creds{AccessToken: "test-token", Domain: ts.URL},
		gosf.WithValidateAuthentication(false),
		gosf.WithRoundTripper(http.DefaultTransport),
	)
	require.NoError(t, err)

	rec := lenderRecord()
	rec.MatchKey = ""
	_, err = NewClient(sf).UpsertRecord(context.Background(), rec)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insert Lender__c failed")
}

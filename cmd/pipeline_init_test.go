//go:build !integration

package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/funding-intake/internal/config"
	"github.com/sells-group/funding-intake/internal/model"
	"github.com/sells-group/funding-intake/internal/resilience"
	"github.com/sells-group/funding-intake/internal/store"
)

const lenderPage = `<html><head><title>FundCo</title></head><body>
<h1>FundCo Capital</h1>
<p>We offer merchant cash advances and term loans to small businesses nationwide.
Minimum credit score 550. Funding in 24 hours.</p>
</body></html>`

const geminiLenderReply = `{"candidates":[{"content":{"parts":[{"text":"` +
	"```json\\n{\\\"lender_name\\\":\\\"FundCo\\\",\\\"products_offered\\\":[\\\"Merchant Cash Advance\\\"],\\\"min_credit_score\\\":550}\\n```" +
	`"}]},"finishReason":"STOP"}],"usageMetadata":{"promptTokenCount":100,"candidatesTokenCount":20}}`

// testConfig returns a complete configuration that fetches directly and
// stores runs in a temp SQLite file.
func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Firecrawl: config.FirecrawlConfig{MaxPages: 5, PollIntervalMS: 10, PollAttempts: 3, AgentEnabled: true, AgentPollIntervalMS: 10, AgentPollAttempts: 3},
		Proxy:     config.ProxyConfig{Endpoints: []string{"{raw}"}, MinContentChars: 20, TimeoutSecs: 5},
		Fetch:     config.FetchConfig{MaxContentChars: 15000, BreakerThreshold: 5, BreakerCooldownSecs: 30},
		Gemini:    config.ProviderConfig{Key: "test-key", FastModel: "gemini-2.5-flash", QualityModel: "gemini-2.5-pro"},
		AI:        config.AIConfig{Provider: "gemini", Temperature: 0.1, TopK: 40, TopP: 0.95, MaxOutputTokens: 1024},
		Extract:   config.ExtractConfig{NotesChars: 2000, RawNotesChars: 2000, LenderContext: 25},
		Store:     config.StoreConfig{Driver: "sqlite", DatabaseURL: filepath.Join(t.TempDir(), "intake.db")},
		Server:    config.ServerConfig{Port: 8080, RequestTimeoutSecs: 30, MaxConcurrentExtraction: 2},
		Batch:     config.BatchConfig{RatePerMinute: 6000},
		Log:       config.LogConfig{Level: "error", Format: "json"},
	}
}

// useConfig installs c as the command configuration for the test.
func useConfig(t *testing.T, c *config.Config) {
	t.Helper()
	prev := cfg
	cfg = c
	t.Cleanup(func() { cfg = prev })
}

func TestBuildSources_Order(t *testing.T) {
	c := testConfig(t)
	c.Firecrawl.Key = "fc-key"
	c.Jina.Enabled = true
	c.Proxy.Endpoints = []string{"{raw}", "https://api.allorigins.win/raw?url={url}"}

	var names []string
	for _, s := range buildSources(c, firecrawlClient(c)) {
		names = append(names, s.Name())
	}
	assert.Equal(t, []string{"firecrawl", "jina", "proxy:direct", "proxy:api.allorigins.win"}, names)
}

func TestBuildSources_ProxyOnly(t *testing.T) {
	c := testConfig(t)

	require.Nil(t, firecrawlClient(c))
	sources := buildSources(c, nil)
	require.Len(t, sources, 1)
	assert.Equal(t, "proxy:direct", sources[0].Name())
}

func TestBuildSources_UsesSharedFirecrawlClient(t *testing.T) {
	c := testConfig(t)
	c.Firecrawl.Key = "fc-key"

	// The caller owns the client; a keyed config alone does not add a source.
	sources := buildSources(c, nil)
	require.Len(t, sources, 1)
	assert.Equal(t, "proxy:direct", sources[0].Name())

	sources = buildSources(c, firecrawlClient(c))
	require.Len(t, sources, 2)
	assert.Equal(t, "firecrawl", sources[0].Name())
}

func TestBuildGenerator_MissingKey(t *testing.T) {
	c := testConfig(t)
	c.Gemini.Key = ""

	_, err := buildGenerator(c)
	require.Error(t, err)
	assert.Equal(t, resilience.KindConfiguration, resilience.KindOf(err))
}

func TestBuildGenerator_SelectsProvider(t *testing.T) {
	c := testConfig(t)
	c.AI.Provider = "perplexity"
	c.Perplexity = config.ProviderConfig{Key: "pplx", FastModel: "sonar"}

	gen, err := buildGenerator(c)
	require.NoError(t, err)
	assert.NotNil(t, gen)
}

func TestBuildPipeline_BadVocabulary(t *testing.T) {
	c := testConfig(t)
	c.Extract.VocabularyFile = filepath.Join(t.TempDir(), "missing.yaml")

	_, err := buildPipeline(c, nil, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load vocabulary")
}

func TestInitStore(t *testing.T) {
	c := testConfig(t)
	useConfig(t, c)

	st, err := initStore(context.Background())
	require.NoError(t, err)
	defer st.Close() //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
}

func TestInitStore_UnsupportedDriver(t *testing.T) {
	c := testConfig(t)
	c.Store.Driver = "mysql"
	useConfig(t, c)

	_, err := initStore(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported store driver")
}

func TestInitPipeline_ValidatesFirst(t *testing.T) {
	c := testConfig(t)
	c.Gemini.Key = ""
	useConfig(t, c)

	_, err := initPipeline(context.Background(), "lender")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "gemini.key is required")
	_, statErr := os.Stat(c.Store.DatabaseURL)
	assert.True(t, os.IsNotExist(statErr), "store must not be opened on a configuration error")
}

func TestInitApprover(t *testing.T) {
	c := testConfig(t)
	useConfig(t, c)

	st, err := openStore(context.Background())
	require.NoError(t, err)
	defer st.Close() //nolint:errcheck

	a, err := initApprover(st, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"store"}, a.Sinks())

	c.Notion.Token = "secret"
	a, err = initApprover(st, "notion")
	require.NoError(t, err)
	assert.Equal(t, []string{"notion", "store"}, a.Sinks())
}

func TestInitApprover_SalesforceKeyMissing(t *testing.T) {
	c := testConfig(t)
	c.Salesforce = config.SalesforceConfig{ClientID: "cid", Username: "u", KeyPath: filepath.Join(t.TempDir(), "none.pem")}
	useConfig(t, c)

	st, err := openStore(context.Background())
	require.NoError(t, err)
	defer st.Close() //nolint:errcheck

	_, err = initApprover(st, "salesforce")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read salesforce JWT private key")
}

func TestExtractAndPrint_Lender(t *testing.T) {
	site := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(lenderPage))
	}))
	defer site.Close()

	llm := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, "gemini-2.5-flash:generateContent")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(geminiLenderReply))
	}))
	defer llm.Close()

	c := testConfig(t)
	c.Gemini.BaseURL = llm.URL
	useConfig(t, c)

	ctx := context.Background()
	env, err := initPipeline(ctx, "lender")
	require.NoError(t, err)
	defer env.Close()

	var out, errOut bytes.Buffer
	err = extractAndPrint(ctx, env, model.ExtractionRequest{URL: site.URL, Kind: model.KindLender}, &out, &errOut)
	require.NoError(t, err)

	assert.Contains(t, out.String(), `"status": "pending_review"`)
	assert.Contains(t, out.String(), "FundCo")
	assert.Contains(t, errOut.String(), "funding-intake approve")

	runs, err := env.Store.ListRuns(ctx, store.RunFilter{})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, model.RunStatusPendingReview, runs[0].Status)
}

func TestExtractAndPrint_FetchFailure(t *testing.T) {
	site := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer site.Close()

	c := testConfig(t)
	useConfig(t, c)

	ctx := context.Background()
	env, err := initPipeline(ctx, "vendor")
	require.NoError(t, err)
	defer env.Close()

	var out, errOut bytes.Buffer
	err = extractAndPrint(ctx, env, model.ExtractionRequest{URL: site.URL, Kind: model.KindVendor}, &out, &errOut)
	require.Error(t, err)
	assert.Equal(t, resilience.KindFetch, resilience.KindOf(err))
	assert.Contains(t, out.String(), `"status": "failed"`)
	assert.Contains(t, errOut.String(), "fetch error")
}

func TestReadCustomer(t *testing.T) {
	path := filepath.Join(t.TempDir(), "customer.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"business_name":"Joe's Diner","state":"TX","credit_score":640}`), 0o600))

	c, err := readCustomer(path)
	require.NoError(t, err)
	assert.Equal(t, "Joe's Diner", c.BusinessName)
	require.NotNil(t, c.CreditScore)
	assert.Equal(t, 640, *c.CreditScore)
}

func TestReadCustomer_UnknownField(t *testing.T) {
	path := filepath.Join(t.TempDir(), "customer.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"business_name":"X","fico":700}`), 0o600))

	_, err := readCustomer(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode customer")
}

func TestReadCustomer_Missing(t *testing.T) {
	_, err := readCustomer(filepath.Join(t.TempDir(), "nope.json"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "open customer file")
}

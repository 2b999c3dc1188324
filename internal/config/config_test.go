package config_test

import (
	"errors"
	"testing"
	"time"

	"github.com/navada/insightlab/internal/config"
	"github.com/navada/insightlab/internal/models"
	"github.com/stretchr/testify/require"
)

func TestLoadFetcherDefaults(t *testing.T) {
	t.Setenv("ADZUNA_APP_ID", "id")
	t.Setenv("ADZUNA_APP_KEY", "key")
	t.Setenv("DATA_DIR", "")
	t.Setenv("SEARCH_TERMS", "")
	t.Setenv("AUX_ENDPOINTS", "")
	t.Setenv("ELASTICSEARCH_ADDR", "")
	t.Setenv("KAFKA_BROKERS", "")

	cfg, err := config.LoadFetcher()
	require.NoError(t, err)

	require.Equal(t, "data/live_uk_ai_jobs.csv", cfg.SnapshotPath)
	require.Equal(t, "data/adzuna_categories.csv", cfg.CategoriesPath)
	require.Equal(t, "data/fetch.log", cfg.FetchLogPath)
	require.Equal(t, config.DefaultSearchTerms, cfg.SearchTerms)
	require.Equal(t, 50, cfg.ResultsPerPage)
	require.Equal(t, 5, cfg.MaxPages)
	require.Equal(t, 30, cfg.MaxDaysOld)
	require.Equal(t, 10*time.Second, cfg.HTTPTimeout)
	require.Equal(t, models.AuxiliaryEndpoints, cfg.AuxEndpoints)
	require.Equal(t, 1, cfg.AuxConcurrency)
	require.True(t, cfg.RenderInline)
	require.Empty(t, cfg.ElasticsearchAddr)
	require.Empty(t, cfg.KafkaBrokers)
}

func TestLoadFetcherOverrides(t *testing.T) {
	t.Setenv("ADZUNA_APP_ID", "id")
	t.Setenv("ADZUNA_APP_KEY", "key")
	t.Setenv("DATA_DIR", "/tmp/jobs")
	t.Setenv("SEARCH_TERMS", "mlops, llm engineer ,")
	t.Setenv("AUX_ENDPOINTS", "history,Geodata,history")
	t.Setenv("AUX_CONCURRENCY", "3")
	t.Setenv("HTTP_TIMEOUT", "2s")
	t.Setenv("REQUESTS_PER_SECOND", "0.5")
	t.Setenv("RENDER_INLINE", "false")
	t.Setenv("KAFKA_BROKERS", "broker-a:29092,broker-b:29093")

	cfg, err := config.LoadFetcher()
	require.NoError(t, err)

	require.Equal(t, "/tmp/jobs/live_uk_ai_jobs.csv", cfg.SnapshotPath)
	require.Equal(t, []string{"mlops", "llm engineer"}, cfg.SearchTerms)
	require.Equal(t, []models.Endpoint{models.EndpointHistory, models.EndpointGeodata}, cfg.AuxEndpoints)
	require.Equal(t, 3, cfg.AuxConcurrency)
	require.Equal(t, 2*time.Second, cfg.HTTPTimeout)
	require.InDelta(t, 0.5, cfg.RequestsPerSecond, 1e-9)
	require.False(t, cfg.RenderInline)
	require.Len(t, cfg.KafkaBrokers, 2)
}

func TestLoadFetcherMissingCredentials(t *testing.T) {
	t.Setenv("ADZUNA_APP_ID", "id")
	t.Setenv("ADZUNA_APP_KEY", " ")

	cfg, err := config.LoadFetcher()
	require.True(t, errors.Is(err, config.ErrMissingCredentials))
	require.NotNil(t, cfg)
}

func TestLoadFetcherRejectsInvalidValues(t *testing.T) {
	cases := []struct {
		name string
		key  string
		val  string
	}{
		{name: "unknown endpoint", key: "AUX_ENDPOINTS", val: "search"},
		{name: "page size too large", key: "RESULTS_PER_PAGE", val: "51"},
		{name: "concurrency too high", key: "AUX_CONCURRENCY", val: "5"},
		{name: "zero rate", key: "REQUESTS_PER_SECOND", val: "0"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv("ADZUNA_APP_ID", "id")
			t.Setenv("ADZUNA_APP_KEY", "key")
			t.Setenv(tc.key, tc.val)

			_, err := config.LoadFetcher()
			require.Error(t, err)
			require.False(t, errors.Is(err, config.ErrMissingCredentials))
		})
	}
}

func TestLoadWorker(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", "broker-a:29092")
	t.Setenv("KAFKA_TOPIC", "")
	t.Setenv("KAFKA_CONSUMER_GROUP", "custom-group")
	t.Setenv("WORKER_DEDUPE_CAPACITY", "5")
	t.Setenv("WORKER_DEDUPE_TTL", "48h")

	cfg, err := config.LoadWorker()
	require.NoError(t, err)

	require.Equal(t, []string{"broker-a:29092"}, cfg.KafkaBrokers)
	require.Equal(t, "fetch_runs", cfg.KafkaTopic)
	require.Equal(t, "custom-group", cfg.KafkaConsumer)
	require.Equal(t, 5, cfg.DedupeCapacity)
	require.Equal(t, 48*time.Hour, cfg.DedupeTTL)
}

func TestLoadWorkerRequiresBrokers(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", "")

	_, err := config.LoadWorker()
	require.Error(t, err)
}

func TestLoadAPI(t *testing.T) {
	t.Setenv("API_BIND_ADDR", ":9090")
	t.Setenv("API_PAGE_SIZE", "15")
	t.Setenv("API_MAX_PAGE_SIZE", "200")
	t.Setenv("CHAT_PROVIDER", "Anthropic")
	t.Setenv("CHARTS_DIR", "/srv/charts")

	cfg, err := config.LoadAPI()
	require.NoError(t, err)
	require.Equal(t, ":9090", cfg.BindAddr)
	require.Equal(t, 15, cfg.DefaultPage)
	require.Equal(t, 200, cfg.MaxPage)
	require.Equal(t, "anthropic", cfg.ChatProvider)
	require.Equal(t, "/srv/charts", cfg.ChartsDir)
	require.Equal(t, 30*time.Second, cfg.ChatTimeout)
}

func TestLoadAPIRejectsUnknownProvider(t *testing.T) {
	t.Setenv("CHAT_PROVIDER", "mistral")

	_, err := config.LoadAPI()
	require.Error(t, err)
}

func TestLoadRetention(t *testing.T) {
	t.Setenv("ELASTICSEARCH_ADDR", "http://ret-es:9200")
	t.Setenv("ELASTICSEARCH_INDEX", "ret-index")
	t.Setenv("RETENTION_CRON", "12h")
	t.Setenv("RETENTION_MAX_AGE", "36h")
	t.Setenv("RETENTION_BATCH_SIZE", "123")

	cfg, err := config.LoadRetention()
	require.NoError(t, err)

	require.Equal(t, 12*time.Hour, cfg.Interval)
	require.Equal(t, 36*time.Hour, cfg.MaxAge)
	require.Equal(t, 123, cfg.BatchSize)
	require.Equal(t, "http://ret-es:9200", cfg.ElasticsearchAddr)
	require.Equal(t, "ret-index", cfg.ElasticsearchIndex)
}

func TestLoadRetentionRequiresElasticsearch(t *testing.T) {
	t.Setenv("ELASTICSEARCH_ADDR", "")

	_, err := config.LoadRetention()
	require.Error(t, err)
}

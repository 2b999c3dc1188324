package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/navada/insightlab/internal/models"
)

// ErrMissingCredentials is returned when the jobs API credentials are not set.
var ErrMissingCredentials = errors.New("ADZUNA_APP_ID and ADZUNA_APP_KEY must be set")

// DefaultSearchTerms are the AI/ML queries run against the search endpoint.
var DefaultSearchTerms = []string{
	"artificial intelligence",
	"machine learning",
	"data scientist",
	"ML engineer",
	"AI engineer",
	"deep learning",
	"NLP engineer",
	"computer vision",
}

// Common contains the file locations and optional sinks shared by every binary.
type Common struct {
	DataDir            string
	SnapshotPath       string
	CategoriesPath     string
	ChartsDir          string
	LexiconPath        string
	ElasticsearchAddr  string
	ElasticsearchIndex string
	KafkaBrokers       []string
	KafkaTopic         string
}

// Fetcher holds configuration for one fetch-and-render pass.
type Fetcher struct {
	Common
	AppID             string
	AppKey            string
	BaseURL           string
	Country           string
	SearchTerms       []string
	Where             string
	Category          string
	ResultsPerPage    int
	MaxPages          int
	MaxResults        int
	MaxDaysOld        int
	HistoryMonths     int
	HTTPTimeout       time.Duration
	RequestsPerSecond float64
	AuxEndpoints      []models.Endpoint
	AuxConcurrency    int
	FetchLogPath      string
	RenderInline      bool
}

// Worker configures the Kafka-driven chart worker.
type Worker struct {
	Common
	KafkaConsumer  string
	DedupeCapacity int
	DedupeTTL      time.Duration
}

// API describes HTTP-layer configuration.
type API struct {
	Common
	BindAddr      string
	StaticDir     string
	DefaultPage   int
	MaxPage       int
	ChatProvider  string
	ChatModel     string
	ChatTimeout   time.Duration
	OpenAIKey     string
	AnthropicKey  string
	GeminiKey     string
	ChatMaxTokens int
}

// Retention configures the index cleanup loop.
type Retention struct {
	Common
	Interval  time.Duration
	MaxAge    time.Duration
	BatchSize int
}

func loadCommon() Common {
	dataDir := getEnv("DATA_DIR", "data")
	return Common{
		DataDir:            dataDir,
		SnapshotPath:       getEnv("SNAPSHOT_PATH", filepath.Join(dataDir, "live_uk_ai_jobs.csv")),
		CategoriesPath:     getEnv("CATEGORIES_PATH", filepath.Join(dataDir, "adzuna_categories.csv")),
		ChartsDir:          getEnv("CHARTS_DIR", "charts"),
		LexiconPath:        getEnv("SENTIMENT_LEXICON_PATH", ""),
		ElasticsearchAddr:  getEnv("ELASTICSEARCH_ADDR", ""),
		ElasticsearchIndex: getEnv("ELASTICSEARCH_INDEX", "jobs"),
		KafkaBrokers:       splitAndTrim(getEnv("KAFKA_BROKERS", "")),
		KafkaTopic:         getEnv("KAFKA_TOPIC", "fetch_runs"),
	}
}

// LoadFetcher builds a Fetcher config from environment variables.
// Missing credentials are reported as ErrMissingCredentials so callers can abort early.
func LoadFetcher() (*Fetcher, error) {
	c := &Fetcher{
		Common:            loadCommon(),
		AppID:             strings.TrimSpace(os.Getenv("ADZUNA_APP_ID")),
		AppKey:            strings.TrimSpace(os.Getenv("ADZUNA_APP_KEY")),
		BaseURL:           strings.TrimRight(getEnv("ADZUNA_BASE_URL", "https://api.adzuna.com/v1/api/jobs"), "/"),
		Country:           getEnv("ADZUNA_COUNTRY", "gb"),
		SearchTerms:       splitAndTrim(getEnv("SEARCH_TERMS", strings.Join(DefaultSearchTerms, ","))),
		Where:             getEnv("SEARCH_WHERE", "uk"),
		Category:          getEnv("SEARCH_CATEGORY", ""),
		ResultsPerPage:    getInt("RESULTS_PER_PAGE", 50),
		MaxPages:          getInt("MAX_PAGES", 5),
		MaxResults:        getInt("MAX_RESULTS", 500),
		MaxDaysOld:        getInt("MAX_DAYS_OLD", 30),
		HistoryMonths:     getInt("HISTORY_MONTHS", 12),
		HTTPTimeout:       getDuration("HTTP_TIMEOUT", "10s"),
		RequestsPerSecond: getFloat("REQUESTS_PER_SECOND", 2),
		AuxConcurrency:    getInt("AUX_CONCURRENCY", 1),
		RenderInline:      getBool("RENDER_INLINE", true),
	}
	c.FetchLogPath = getEnv("FETCH_LOG_PATH", filepath.Join(c.DataDir, "fetch.log"))

	aux, err := parseEndpoints(getEnv("AUX_ENDPOINTS", joinEndpoints(models.AuxiliaryEndpoints)))
	if err != nil {
		return nil, err
	}
	c.AuxEndpoints = aux

	if len(c.SearchTerms) == 0 {
		return nil, fmt.Errorf("SEARCH_TERMS must contain at least one term")
	}
	if c.ResultsPerPage <= 0 || c.ResultsPerPage > 50 {
		return nil, fmt.Errorf("RESULTS_PER_PAGE must be within 1..50")
	}
	if c.MaxPages <= 0 {
		return nil, fmt.Errorf("MAX_PAGES must be positive")
	}
	if c.MaxResults <= 0 {
		return nil, fmt.Errorf("MAX_RESULTS must be positive")
	}
	if c.RequestsPerSecond <= 0 {
		return nil, fmt.Errorf("REQUESTS_PER_SECOND must be positive")
	}
	if c.AuxConcurrency <= 0 || c.AuxConcurrency > 4 {
		return nil, fmt.Errorf("AUX_CONCURRENCY must be within 1..4")
	}

	if c.AppID == "" || c.AppKey == "" {
		return c, ErrMissingCredentials
	}

	return c, nil
}

// LoadWorker builds a Worker config from environment variables.
func LoadWorker() (*Worker, error) {
	c := &Worker{
		Common:         loadCommon(),
		KafkaConsumer:  getEnv("KAFKA_CONSUMER_GROUP", "chart-worker"),
		DedupeCapacity: getInt("WORKER_DEDUPE_CAPACITY", 1000),
		DedupeTTL:      getDuration("WORKER_DEDUPE_TTL", "24h"),
	}

	if len(c.KafkaBrokers) == 0 {
		return nil, fmt.Errorf("KAFKA_BROKERS must contain at least one broker")
	}
	if c.DedupeCapacity <= 0 {
		return nil, fmt.Errorf("WORKER_DEDUPE_CAPACITY must be positive")
	}

	return c, nil
}

// LoadAPI builds an API config from environment variables.
func LoadAPI() (*API, error) {
	c := &API{
		Common:        loadCommon(),
		BindAddr:      getEnv("API_BIND_ADDR", "0.0.0.0:8888"),
		StaticDir:     getEnv("STATIC_DIR", "web"),
		DefaultPage:   getInt("API_PAGE_SIZE", 20),
		MaxPage:       getInt("API_MAX_PAGE_SIZE", 100),
		ChatProvider:  strings.ToLower(getEnv("CHAT_PROVIDER", "openai")),
		ChatModel:     getEnv("CHAT_MODEL", ""),
		ChatTimeout:   getDuration("CHAT_TIMEOUT", "30s"),
		OpenAIKey:     os.Getenv("OPENAI_API_KEY"),
		AnthropicKey:  os.Getenv("ANTHROPIC_API_KEY"),
		GeminiKey:     os.Getenv("GEMINI_API_KEY"),
		ChatMaxTokens: getInt("CHAT_MAX_TOKENS", 1024),
	}

	if c.DefaultPage <= 0 {
		return nil, fmt.Errorf("API_PAGE_SIZE must be positive")
	}
	if c.MaxPage <= 0 {
		return nil, fmt.Errorf("API_MAX_PAGE_SIZE must be positive")
	}
	if c.DefaultPage > c.MaxPage {
		return nil, fmt.Errorf("API_PAGE_SIZE cannot exceed API_MAX_PAGE_SIZE")
	}
	switch c.ChatProvider {
	case "openai", "anthropic", "gemini":
	default:
		return nil, fmt.Errorf("CHAT_PROVIDER must be one of openai, anthropic, gemini")
	}

	return c, nil
}

// LoadRetention builds a Retention config from environment variables.
func LoadRetention() (*Retention, error) {
	c := &Retention{
		Common:    loadCommon(),
		Interval:  getDuration("RETENTION_CRON", "24h"),
		MaxAge:    getDuration("RETENTION_MAX_AGE", "720h"),
		BatchSize: getInt("RETENTION_BATCH_SIZE", 500),
	}

	if c.ElasticsearchAddr == "" {
		return nil, fmt.Errorf("ELASTICSEARCH_ADDR is required for retention")
	}
	if c.MaxAge <= 0 {
		return nil, fmt.Errorf("RETENTION_MAX_AGE must be positive")
	}
	if c.Interval <= 0 {
		return nil, fmt.Errorf("RETENTION_CRON must be positive")
	}
	if c.BatchSize <= 0 {
		return nil, fmt.Errorf("RETENTION_BATCH_SIZE must be positive")
	}

	return c, nil
}

func parseEndpoints(raw string) ([]models.Endpoint, error) {
	known := make(map[models.Endpoint]bool, len(models.AuxiliaryEndpoints))
	for _, e := range models.AuxiliaryEndpoints {
		known[e] = true
	}

	var out []models.Endpoint
	seen := make(map[models.Endpoint]bool)
	for _, part := range splitAndTrim(raw) {
		e := models.Endpoint(strings.ToLower(part))
		if !known[e] {
			return nil, fmt.Errorf("AUX_ENDPOINTS: unknown endpoint %q", part)
		}
		if seen[e] {
			continue
		}
		seen[e] = true
		out = append(out, e)
	}
	return out, nil
}

func joinEndpoints(eps []models.Endpoint) string {
	parts := make([]string, len(eps))
	for i, e := range eps {
		parts[i] = string(e)
	}
	return strings.Join(parts, ",")
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
	}
	return fallback
}

func getFloat(key string, fallback float64) float64 {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if parsed, err := strconv.ParseFloat(v, 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if parsed, err := strconv.ParseBool(v); err == nil {
			return parsed
		}
	}
	return fallback
}

func getDuration(key, fallback string) time.Duration {
	raw := getEnv(key, fallback)
	d, err := time.ParseDuration(raw)
	if err != nil {
		fd, ferr := time.ParseDuration(fallback)
		if ferr != nil {
			panic(fmt.Sprintf("invalid fallback duration %q: %v", fallback, ferr))
		}
		return fd
	}
	return d
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

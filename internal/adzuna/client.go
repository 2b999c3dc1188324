package adzuna

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/navada/insightlab/internal/models"
)

const (
	// DefaultBaseURL is the public jobs API root; the country code is appended per call.
	DefaultBaseURL = "https://api.adzuna.com/v1/api/jobs"
	DefaultTimeout = 10 * time.Second

	maxBodyBytes = 8 << 20
)

// Options configures a Client.
type Options struct {
	BaseURL           string
	Country           string
	AppID             string
	AppKey            string
	Timeout           time.Duration
	RequestsPerSecond float64
	HTTPClient        *http.Client
	Logger            *slog.Logger
}

// Client calls the Adzuna jobs API. Every call is a single attempt bounded by
// the per-call timeout and paced by a shared limiter.
type Client struct {
	http    *http.Client
	baseURL string
	appID   string
	appKey  string
	timeout time.Duration
	limiter *rate.Limiter
	log     *slog.Logger
}

// New builds a Client. AppID and AppKey are required.
func New(opts Options) (*Client, error) {
	if strings.TrimSpace(opts.AppID) == "" || strings.TrimSpace(opts.AppKey) == "" {
		return nil, errors.New("adzuna: app id and key are required")
	}

	base := strings.TrimRight(opts.BaseURL, "/")
	if base == "" {
		base = DefaultBaseURL
	}
	country := opts.Country
	if country == "" {
		country = "gb"
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: timeout}
	}
	limit := rate.Inf
	if opts.RequestsPerSecond > 0 {
		limit = rate.Limit(opts.RequestsPerSecond)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Client{
		http:    hc,
		baseURL: base + "/" + country,
		appID:   opts.AppID,
		appKey:  opts.AppKey,
		timeout: timeout,
		limiter: rate.NewLimiter(limit, 1),
		log:     logger,
	}, nil
}

// Search runs every term through the paginated search endpoint. A term stops on
// its first empty page or failed call; the whole search stops at MaxResults.
// Failed terms are tolerated as long as some listings were returned, except for
// unauthorized responses which abort immediately.
func (c *Client) Search(ctx context.Context, q SearchQuery) ([]Result, error) {
	perPage := q.ResultsPerPage
	if perPage <= 0 {
		perPage = 50
	}
	pages := q.MaxPages
	if pages <= 0 {
		pages = 1
	}

	var (
		all     []Result
		lastErr error
	)

terms:
	for _, term := range q.Terms {
		for page := 1; page <= pages; page++ {
			params := url.Values{}
			params.Set("what", term)
			params.Set("results_per_page", strconv.Itoa(perPage))
			params.Set("sort_by", "date")
			if q.Where != "" {
				params.Set("where", q.Where)
			}
			if q.MaxDaysOld > 0 {
				params.Set("max_days_old", strconv.Itoa(q.MaxDaysOld))
			}
			if q.Category != "" {
				params.Set("category", q.Category)
			}

			var resp searchResponse
			if err := c.get(ctx, models.EndpointSearch, "search/"+strconv.Itoa(page), params, &resp); err != nil {
				if IsFatal(err) || ctx.Err() != nil {
					return nil, err
				}
				c.log.Warn("search term failed", "term", term, "page", page, "error", err)
				lastErr = err
				continue terms
			}
			if len(resp.Results) == 0 {
				continue terms
			}

			all = append(all, resp.Results...)
			if q.MaxResults > 0 && len(all) >= q.MaxResults {
				all = all[:q.MaxResults]
				break terms
			}
		}
	}

	if len(all) == 0 {
		if lastErr != nil {
			return nil, lastErr
		}
		return nil, &Error{Endpoint: models.EndpointSearch, Kind: KindEmpty}
	}
	return all, nil
}

// Histogram returns salary buckets ordered by lower bound.
func (c *Client) Histogram(ctx context.Context, q AuxQuery) ([]models.SalaryBucket, error) {
	var resp histogramResponse
	if err := c.get(ctx, models.EndpointHistogram, "histogram", q.values(false), &resp); err != nil {
		return nil, err
	}

	lowers := make([]float64, 0, len(resp.Histogram))
	counts := make(map[float64]int, len(resp.Histogram))
	for key, count := range resp.Histogram {
		lower, err := strconv.ParseFloat(key, 64)
		if err != nil {
			return nil, &Error{Endpoint: models.EndpointHistogram, Kind: KindMalformed, Cause: fmt.Errorf("bucket %q: %w", key, err)}
		}
		lowers = append(lowers, lower)
		counts[lower] = int(count)
	}
	if len(lowers) == 0 {
		return nil, &Error{Endpoint: models.EndpointHistogram, Kind: KindEmpty}
	}
	sort.Float64s(lowers)

	buckets := make([]models.SalaryBucket, len(lowers))
	for i, lower := range lowers {
		upper := lower + 10000
		switch {
		case i+1 < len(lowers):
			upper = lowers[i+1]
		case i > 0:
			upper = lower + (lower - lowers[i-1])
		}
		buckets[i] = models.SalaryBucket{Lower: lower, Upper: upper, Count: counts[lower]}
	}
	return buckets, nil
}

// TopCompanies returns the employer leaderboard in API order.
func (c *Client) TopCompanies(ctx context.Context, q AuxQuery) ([]models.CompanyCount, error) {
	var resp leaderboardResponse
	if err := c.get(ctx, models.EndpointTopCompanies, "top_companies", q.values(false), &resp); err != nil {
		return nil, err
	}

	out := make([]models.CompanyCount, 0, len(resp.Leaderboard))
	for _, row := range resp.Leaderboard {
		name := strings.TrimSpace(row.DisplayName)
		if name == "" {
			name = strings.TrimSpace(row.CanonicalName)
		}
		if name == "" {
			continue
		}
		cc := models.CompanyCount{Company: name, Count: row.Count}
		if row.AverageSalary > 0 {
			cc.AvgSalary = models.Float(row.AverageSalary)
		}
		out = append(out, cc)
	}
	if len(out) == 0 {
		return nil, &Error{Endpoint: models.EndpointTopCompanies, Kind: KindEmpty}
	}
	return out, nil
}

// Geodata returns listing counts per region.
func (c *Client) Geodata(ctx context.Context, q AuxQuery) ([]models.LocationCount, error) {
	var resp geodataResponse
	if err := c.get(ctx, models.EndpointGeodata, "geodata", q.values(false), &resp); err != nil {
		return nil, err
	}

	out := make([]models.LocationCount, 0, len(resp.Locations))
	for _, row := range resp.Locations {
		name := strings.TrimSpace(row.Location.DisplayName)
		if name == "" {
			continue
		}
		lc := models.LocationCount{Location: name, Count: row.Count}
		if row.AverageSalary > 0 {
			lc.AvgSalary = models.Float(row.AverageSalary)
		}
		out = append(out, lc)
	}
	if len(out) == 0 {
		return nil, &Error{Endpoint: models.EndpointGeodata, Kind: KindEmpty}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Count == out[j].Count {
			return out[i].Location < out[j].Location
		}
		return out[i].Count > out[j].Count
	})
	return out, nil
}

// History returns the monthly average advertised salary, oldest first.
func (c *Client) History(ctx context.Context, q AuxQuery) ([]models.HistoryPoint, error) {
	var resp historyResponse
	if err := c.get(ctx, models.EndpointHistory, "history", q.values(true), &resp); err != nil {
		return nil, err
	}

	out := make([]models.HistoryPoint, 0, len(resp.Month))
	for key, avg := range resp.Month {
		month, err := time.Parse("2006-01", key)
		if err != nil {
			return nil, &Error{Endpoint: models.EndpointHistory, Kind: KindMalformed, Cause: fmt.Errorf("month %q: %w", key, err)}
		}
		out = append(out, models.HistoryPoint{Month: month, AvgSalary: avg})
	}
	if len(out) == 0 {
		return nil, &Error{Endpoint: models.EndpointHistory, Kind: KindEmpty}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Month.Before(out[j].Month) })
	return out, nil
}

// Categories lists the category tags known to the API.
func (c *Client) Categories(ctx context.Context) ([]models.Category, error) {
	var resp categoriesResponse
	if err := c.get(ctx, models.EndpointCategories, "categories", url.Values{}, &resp); err != nil {
		return nil, err
	}

	out := make([]models.Category, 0, len(resp.Results))
	for _, cat := range resp.Results {
		if cat.Tag == "" {
			continue
		}
		out = append(out, models.Category{Tag: cat.Tag, Label: cat.Label})
	}
	if len(out) == 0 {
		return nil, &Error{Endpoint: models.EndpointCategories, Kind: KindEmpty}
	}
	return out, nil
}

func (q AuxQuery) values(withMonths bool) url.Values {
	params := url.Values{}
	if q.What != "" {
		params.Set("what", q.What)
	}
	if q.Location0 != "" {
		params.Set("location0", q.Location0)
	}
	if q.Category != "" {
		params.Set("category", q.Category)
	}
	if withMonths && q.Months > 0 {
		params.Set("months", strconv.Itoa(q.Months))
	}
	return params
}

func (c *Client) get(ctx context.Context, endpoint models.Endpoint, path string, params url.Values, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return classify(endpoint, err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	params.Set("app_id", c.appID)
	params.Set("app_key", c.appKey)
	reqURL := c.baseURL + "/" + path + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return &Error{Endpoint: endpoint, Kind: KindNetwork, Cause: err}
	}
	req.Header.Set("Accept", "application/json")

	res, err := c.http.Do(req)
	if err != nil {
		return classify(endpoint, err)
	}
	defer func() { _ = res.Body.Close() }()

	switch {
	case res.StatusCode == http.StatusUnauthorized || res.StatusCode == http.StatusForbidden:
		return &Error{Endpoint: endpoint, Kind: KindUnauthorized, Status: res.StatusCode}
	case res.StatusCode == http.StatusTooManyRequests:
		return &Error{Endpoint: endpoint, Kind: KindRateLimited, Status: res.StatusCode}
	case res.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(res.Body, 512))
		return &Error{Endpoint: endpoint, Kind: KindMalformed, Status: res.StatusCode, Cause: errors.New(strings.TrimSpace(string(body)))}
	}

	if err := json.NewDecoder(io.LimitReader(res.Body, maxBodyBytes)).Decode(out); err != nil {
		if ctx.Err() != nil {
			return classify(endpoint, ctx.Err())
		}
		return &Error{Endpoint: endpoint, Kind: KindMalformed, Status: res.StatusCode, Cause: err}
	}
	return nil
}

func classify(endpoint models.Endpoint, err error) error {
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return &Error{Endpoint: endpoint, Kind: KindTimeout, Cause: err}
	case errors.As(err, &netErr) && netErr.Timeout():
		return &Error{Endpoint: endpoint, Kind: KindTimeout, Cause: err}
	default:
		return &Error{Endpoint: endpoint, Kind: KindNetwork, Cause: err}
	}
}

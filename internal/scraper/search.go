// Package scraper talks to the Grants.gov search2 and fetchOpportunity
// endpoints: identifier discovery and per-identifier detail fetches.
package scraper

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/colby-usm/GrantGuru/internal/model"
)

const (
	DefaultSearchURL  = "https://api.grants.gov/v1/api/search2"
	DefaultDetailURL  = "https://api.grants.gov/v1/api/fetchOpportunity"
	DefaultPageSize   = 500
	MaxPageSize       = 1000
	searchTimeout     = 30 * time.Second
	maxErrorBodyBytes = 512
	userAgent         = "grantguru-ingest/1.0"
)

// Discoverer paginates the search endpoint and collects opportunity IDs.
type Discoverer struct {
	URL      string
	PageSize int
	client   *http.Client
	log      *slog.Logger
}

// NewDiscoverer constructs a Discoverer with its own HTTP client.
// A zero timeout selects 30s; pageSize is clamped to [1, 1000].
func NewDiscoverer(url string, pageSize int, timeout time.Duration) *Discoverer {
	if url == "" {
		url = DefaultSearchURL
	}
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	if timeout <= 0 {
		timeout = searchTimeout
	}
	return &Discoverer{
		URL:      url,
		PageSize: pageSize,
		client:   &http.Client{Timeout: timeout},
		log:      slog.Default().With("component", "discoverer"),
	}
}

// searchRequest mirrors the search2 request body.
type searchRequest struct {
	StartRecordNum    int    `json:"startRecordNum"`
	Rows              int    `json:"rows"`
	FundingCategories string `json:"fundingCategories,omitempty"`
	OppStatuses       string `json:"oppStatuses,omitempty"`
	Keyword           string `json:"keyword,omitempty"`
}

// searchResponse mirrors the top-level search2 response.
type searchResponse struct {
	ErrorCode int    `json:"errorcode"`
	Msg       string `json:"msg"`
	Data      struct {
		HitCount int         `json:"hitCount"`
		OppHits  []searchHit `json:"oppHits"`
	} `json:"data"`
}

type searchHit struct {
	ID flexString `json:"id"`
}

// flexString accepts either a JSON string or number.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		*f = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = flexString(n.String())
	return nil
}

// Discover returns every opportunity ID matching filter, in upstream order.
// It stops on whichever comes first: the offset reaching the declared hit
// count, or an empty page. A non-zero errorcode aborts with *UpstreamError.
func (d *Discoverer) Discover(ctx context.Context, filter model.Filter) ([]string, error) {
	req := searchRequest{
		Rows:              d.PageSize,
		FundingCategories: JoinCategories(filter.Categories),
		OppStatuses:       JoinStatuses(filter.Statuses),
		Keyword:           strings.TrimSpace(filter.Keywords),
	}

	var ids []string
	for page := 1; ; page++ {
		resp, err := d.searchPage(ctx, req)
		if err != nil {
			return ids, fmt.Errorf("page %d: %w", page, err)
		}
		if resp.ErrorCode != 0 {
			return ids, &UpstreamError{Code: resp.ErrorCode, Msg: resp.Msg}
		}

		hits := resp.Data.OppHits
		for _, h := range hits {
			if h.ID != "" {
				ids = append(ids, string(h.ID))
			}
		}
		req.StartRecordNum += len(hits)

		d.log.Debug("search page", "page", page, "hits", len(hits), "offset", req.StartRecordNum, "hitCount", resp.Data.HitCount)
		if len(hits) == 0 || req.StartRecordNum >= resp.Data.HitCount {
			break
		}
	}
	return ids, nil
}

func (d *Discoverer) searchPage(ctx context.Context, body searchRequest) (*searchResponse, error) {
	raw, status, err := postJSON(ctx, d.client, d.URL, body)
	if err != nil {
		return nil, &TransportError{Op: "search", StatusCode: status, Err: err}
	}
	var resp searchResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, &DecodeError{Op: "search", Err: err}
	}
	return &resp, nil
}

// postJSON sends body as JSON and returns the response body. Non-2xx
// statuses are returned as errors together with the status code.
func postJSON(ctx context.Context, client *http.Client, url string, body any) ([]byte, int, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, 0, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := client.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("http POST: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet := raw
		if len(snippet) > maxErrorBodyBytes {
			snippet = snippet[:maxErrorBodyBytes]
		}
		return nil, resp.StatusCode, fmt.Errorf("upstream returned %d: %s", resp.StatusCode, string(snippet))
	}
	return raw, resp.StatusCode, nil
}

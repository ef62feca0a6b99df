package scraper

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/colby-usm/GrantGuru/internal/model"
)

const detailTimeout = 10 * time.Second

// DetailFetcher fetches full opportunity records one identifier at a time.
// The client is stateless and safe to reuse sequentially across runs.
type DetailFetcher struct {
	URL    string
	client *http.Client
	log    *slog.Logger
}

// NewDetailFetcher constructs a fetcher; a zero timeout selects 10s.
func NewDetailFetcher(url string, timeout time.Duration) *DetailFetcher {
	if url == "" {
		url = DefaultDetailURL
	}
	if timeout <= 0 {
		timeout = detailTimeout
	}
	return &DetailFetcher{
		URL:    url,
		client: &http.Client{Timeout: timeout},
		log:    slog.Default().With("component", "detail-fetcher"),
	}
}

type detailRequest struct {
	OpportunityID string `json:"opportunityId"`
}

type detailResponse struct {
	Data json.RawMessage `json:"data"`
}

// Fetch issues one bounded request for id. Outcomes:
//
//   - populated data      → the data object, annotated with "id"
//   - empty body or data  → ErrNoData
//   - transport / status  → *TransportError
//   - unparseable payload → *DecodeError
func (f *DetailFetcher) Fetch(ctx context.Context, id string) (model.RawRecord, error) {
	raw, status, err := postJSON(ctx, f.client, f.URL, detailRequest{OpportunityID: id})
	if err != nil {
		return nil, &TransportError{Op: "detail", StatusCode: status, Err: err}
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, ErrNoData
	}

	var resp detailResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, &DecodeError{Op: "detail", Err: err}
	}
	data := bytes.TrimSpace(resp.Data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil, ErrNoData
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var rec model.RawRecord
	if err := dec.Decode(&rec); err != nil {
		return nil, &DecodeError{Op: "detail", Err: err}
	}
	if len(rec) == 0 {
		return nil, ErrNoData
	}

	rec["id"] = id
	f.log.Debug("fetched opportunity", "id", id, "bytes", len(raw))
	return rec, nil
}

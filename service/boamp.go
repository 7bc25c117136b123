package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"time"

	"github.com/faycaldjilali/sorabo/config"
	"github.com/faycaldjilali/sorabo/model"
	"github.com/faycaldjilali/sorabo/pkg/logger"
)

// BoampService pages through the notice listing API, newest first.
type BoampService struct {
	config     *config.BoampConfig
	retry      *config.RetryConfig
	dateColumn string
	httpClient *http.Client
}

// listingPage represents one page of the records endpoint
type listingPage struct {
	TotalCount int               `json:"total_count"`
	Results    []json.RawMessage `json:"results"`
}

// ProgressFunc receives the page offset just processed and the number of
// records accumulated so far.
type ProgressFunc func(offset, fetched int)

var dateShape = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// ValidateTargetDate checks that the value is a real YYYY-MM-DD date.
func ValidateTargetDate(targetDate string) error {
	if !dateShape.MatchString(targetDate) {
		return &model.ValidationError{Field: "target_date", Reason: "must be YYYY-MM-DD"}
	}
	if _, err := time.Parse("2006-01-02", targetDate); err != nil {
		return &model.ValidationError{Field: "target_date", Reason: "not a calendar date"}
	}
	return nil
}

func NewBoampService(cfg *config.BoampConfig, retry *config.RetryConfig, dateColumn string) *BoampService {
	return &BoampService{
		config:     cfg,
		retry:      retry,
		dateColumn: dateColumn,
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.TimeoutSec) * time.Second,
		},
	}
}

// FetchByDate collects every notice published exactly on targetDate
// (YYYY-MM-DD). Pages are ordered by publication date descending, so the
// walk stops once a page ends on an older date. A failing page truncates
// the fetch: the records gathered so far are returned together with the
// error that stopped the walk.
func (s *BoampService) FetchByDate(ctx context.Context, targetDate string, maxRecords int, progress ProgressFunc) ([]model.Record, error) {
	if err := ValidateTargetDate(targetDate); err != nil {
		return nil, err
	}
	if maxRecords <= 0 || maxRecords > s.config.MaxRecords {
		maxRecords = s.config.MaxRecords
	}

	var records []model.Record
	offset := 0

	for {
		select {
		case <-ctx.Done():
			return records, ctx.Err()
		default:
		}

		page, err := s.fetchPage(ctx, offset)
		if err != nil {
			logger.Warn(ctx, "listing fetch truncated",
				"offset", offset,
				"fetched", len(records),
				"error", err,
			)
			return records, err
		}

		if len(page.Results) == 0 {
			break
		}

		pageRecords := make([]model.Record, 0, len(page.Results))
		for _, raw := range page.Results {
			rec, err := decodeRecord(raw)
			if err != nil {
				logger.Warn(ctx, "skipping undecodable record", "offset", offset, "error", err)
				continue
			}
			pageRecords = append(pageRecords, rec)
		}

		for _, rec := range pageRecords {
			if rec.StringField(s.dateColumn) == targetDate {
				records = append(records, rec)
				if len(records) >= maxRecords {
					break
				}
			}
		}

		if progress != nil {
			progress(offset, len(records))
		}

		if len(records) >= maxRecords {
			logger.Info(ctx, "record cap reached", "max_records", maxRecords)
			break
		}

		if len(pageRecords) > 0 {
			lastDate := pageRecords[len(pageRecords)-1].StringField(s.dateColumn)
			if dateShape.MatchString(lastDate) {
				if lastDate < targetDate {
					break
				}
			} else {
				logger.Warn(ctx, "last record has unexpected date format, early stop disabled for this page",
					"value", lastDate,
				)
			}
		}

		offset += s.config.PageSize
		if offset > s.config.MaxOffset {
			logger.Warn(ctx, "offset safety cap reached", "offset", offset)
			break
		}
	}

	return records, nil
}

// fetchPage requests one page, retrying transient failures within the
// configured budget.
func (s *BoampService) fetchPage(ctx context.Context, offset int) (*listingPage, error) {
	var lastErr error
	for attempt := 1; attempt <= s.retry.MaxAttempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(s.retry.GetRetryDelay(attempt)):
			}
			logger.Debug(ctx, "retrying listing page", "offset", offset, "attempt", attempt)
		}

		page, err := s.requestPage(ctx, offset)
		if err == nil {
			return page, nil
		}
		lastErr = err

		if !isRetryable(err) {
			break
		}
	}
	return nil, lastErr
}

func (s *BoampService) requestPage(ctx context.Context, offset int) (*listingPage, error) {
	params := url.Values{}
	params.Set("order_by", s.dateColumn+" DESC")
	params.Set("limit", strconv.Itoa(s.config.PageSize))
	params.Set("offset", strconv.Itoa(offset))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.config.APIURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &model.FetchError{StatusCode: resp.StatusCode, Body: clipBody(body)}
	}

	var page listingPage
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w, body: %s", err, clipBody(body))
	}

	return &page, nil
}

// isRetryable classifies an error as transient. Transport errors and the
// usual overload statuses qualify, anything else fails the page outright.
func isRetryable(err error) bool {
	var fetchErr *model.FetchError
	if errors.As(err, &fetchErr) {
		return retryableStatus(fetchErr.StatusCode)
	}
	var dlErr *model.DownloadError
	if errors.As(err, &dlErr) && dlErr.StatusCode != 0 {
		return retryableStatus(dlErr.StatusCode)
	}
	return true
}

func retryableStatus(code int) bool {
	switch code {
	case http.StatusServiceUnavailable,
		http.StatusGatewayTimeout,
		http.StatusTooManyRequests,
		http.StatusRequestTimeout:
		return true
	}
	return false
}

// decodeRecord keeps the payload's field order alongside the values so
// the table columns can mirror the API layout. Numbers stay as their
// literals.
func decodeRecord(raw json.RawMessage) (model.Record, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return model.Record{}, err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return model.Record{}, fmt.Errorf("record is not a JSON object")
	}

	rec := model.Record{Fields: make(map[string]any)}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return model.Record{}, err
		}
		key, ok := keyTok.(string)
		if !ok {
			return model.Record{}, fmt.Errorf("unexpected key token %v", keyTok)
		}

		var value any
		if err := dec.Decode(&value); err != nil {
			return model.Record{}, err
		}

		if _, dup := rec.Fields[key]; !dup {
			rec.Keys = append(rec.Keys, key)
		}
		rec.Fields[key] = value
	}

	return rec, nil
}

func clipBody(body []byte) string {
	const max = 200
	if len(body) > max {
		return string(body[:max]) + "..."
	}
	return string(body)
}

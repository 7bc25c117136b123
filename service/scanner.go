package service

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/faycaldjilali/sorabo/config"
	"github.com/faycaldjilali/sorabo/model"
	"github.com/faycaldjilali/sorabo/pkg/logger"
)

// dateFormats are tried in order when reading a notice's publication date.
var dateFormats = []string{
	"2006-01-02",
	"02/01/2006",
	"01/02/2006",
	"02-01-2006",
	"2006/01/02",
}

// ScanProgressFunc reports how many rows have been processed so far.
type ScanProgressFunc func(processed, total int)

// ScannerService downloads the PDF behind each notice and annotates the
// table with the document text, the lot numbers it mentions and a
// mandatory-visit flag.
type ScannerService struct {
	config     *config.DocumentsConfig
	columns    *config.ColumnsConfig
	retry      *config.RetryConfig
	extractor  TextExtractor
	httpClient *http.Client
}

func NewScannerService(cfg *config.DocumentsConfig, columns *config.ColumnsConfig, retry *config.RetryConfig, extractor TextExtractor) *ScannerService {
	return &ScannerService{
		config:    cfg,
		columns:   columns,
		retry:     retry,
		extractor: extractor,
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.TimeoutSec) * time.Second,
		},
	}
}

// Scan processes rows strictly in order with a fixed delay between
// documents. Every failure lands in that row's pdf_status; the batch only
// stops early when the context is cancelled, returning the rows annotated
// so far.
func (s *ScannerService) Scan(ctx context.Context, table *model.Table, progress ScanProgressFunc) (*model.Table, error) {
	out := table.Clone()
	for _, col := range []string{
		model.ColGeneratedLink,
		model.ColPDFContent,
		model.ColPDFStatus,
		model.ColPagesExtracted,
		model.ColLots,
		model.ColMandatoryVisit,
	} {
		out.EnsureColumn(col)
	}

	total := len(out.Rows)
	for i, row := range out.Rows {
		if err := ctx.Err(); err != nil {
			return out, err
		}

		s.scanRow(ctx, row)

		if progress != nil {
			progress(i+1, total)
		}

		if i < total-1 {
			if err := sleepCtx(ctx, time.Duration(s.config.DelayMs)*time.Millisecond); err != nil {
				return out, err
			}
		}
	}
	return out, nil
}

func (s *ScannerService) scanRow(ctx context.Context, row model.Row) {
	id := strings.TrimSpace(row[s.columns.DocumentID])
	if id == "" || id == "N/A" {
		row[model.ColPDFStatus] = model.ScanSkippedNoID
		return
	}

	published, ok := parseNoticeDate(row[s.columns.Date])
	if !ok {
		logger.Warn(ctx, "unparseable publication date", "id", id, "value", row[s.columns.Date])
		row[model.ColPDFStatus] = model.ScanBadDate
		return
	}

	url := fmt.Sprintf("%s/%d/%02d/%s.pdf", s.config.BaseURL, published.Year(), int(published.Month()), id)
	row[model.ColGeneratedLink] = url

	data, err := s.download(ctx, url)
	if err != nil {
		logger.Warn(ctx, "document download failed", "url", url, "error", err)
		row[model.ColPDFStatus] = "Error: " + err.Error()
		return
	}

	pages, err := s.extractor.Extract(data)
	if err != nil {
		logger.Warn(ctx, "text extraction failed", "url", url, "error", err)
		row[model.ColPDFStatus] = "Error: " + err.Error()
		return
	}

	var content strings.Builder
	for n, page := range pages {
		fmt.Fprintf(&content, "Page %d:\n%s\n\n", n+1, page)
	}
	text := content.String()

	keywords := splitKeywords(row[s.columns.Keyword])
	row[model.ColPDFContent] = text
	row[model.ColPagesExtracted] = strconv.Itoa(len(pages))
	row[model.ColLots] = ExtractLots(text, keywords, s.config.LotWindow)
	row[model.ColMandatoryVisit] = DetectMandatoryVisit(text, keywords, s.config.VisitWindow)
	row[model.ColPDFStatus] = model.ScanSuccess
}

// parseNoticeDate tries the known date layouts in priority order.
func parseNoticeDate(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	for _, layout := range dateFormats {
		if t, err := time.Parse(layout, value); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func (s *ScannerService) download(ctx context.Context, url string) ([]byte, error) {
	var lastErr error
	for attempt := 1; attempt <= s.retry.MaxAttempts; attempt++ {
		if attempt > 1 {
			if err := sleepCtx(ctx, s.retry.GetRetryDelay(attempt)); err != nil {
				return nil, err
			}
			logger.Debug(ctx, "retrying document download", "url", url, "attempt", attempt)
		}

		data, err := s.fetchDocument(ctx, url)
		if err == nil {
			return data, nil
		}
		lastErr = err

		if !isRetryable(err) {
			break
		}
	}
	return nil, lastErr
}

func (s *ScannerService) fetchDocument(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, &model.DownloadError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &model.DownloadError{URL: url, StatusCode: resp.StatusCode}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &model.DownloadError{URL: url, Err: err}
	}
	return data, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

package handler

import (
	"context"
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/faycaldjilali/sorabo/config"
	"github.com/faycaldjilali/sorabo/middleware"
	"github.com/faycaldjilali/sorabo/model"
	"github.com/faycaldjilali/sorabo/pkg/logger"
	"github.com/faycaldjilali/sorabo/service"
)

type RunsHandler struct {
	config    *config.Config
	boamp     *service.BoampService
	extractor service.TextExtractor
	keywords  []string
	store     *service.RunStore
}

// NewRunsHandler wires the pipeline endpoints. keywords is the configured
// default list used when a filter request names none.
func NewRunsHandler(cfg *config.Config, boampSvc *service.BoampService, extractor service.TextExtractor, keywords []string) *RunsHandler {
	return &RunsHandler{
		config:    cfg,
		boamp:     boampSvc,
		extractor: extractor,
		keywords:  keywords,
		store:     service.GetRunStore(),
	}
}

type CreateRunRequest struct {
	TargetDate string `json:"target_date" binding:"required"`
	MaxRecords int    `json:"max_records"`
}

type FilterRequest struct {
	Keywords       []string `json:"keywords"`
	CustomKeywords []string `json:"custom_keywords"`
}

type DedupRequest struct {
	IDColumn      string `json:"id_column"`
	KeywordColumn string `json:"keyword_column"`
}

type ScanRequest struct {
	DelayMs    *int `json:"delay_ms"`
	TimeoutSec *int `json:"timeout_sec"`
}

// Keywords returns the configured keyword list
func (h *RunsHandler) Keywords(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"keywords": h.keywords})
}

// Create starts a run that fetches one day of notices
func (h *RunsHandler) Create(c *gin.Context) {
	var req CreateRunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}
	if err := service.ValidateTargetDate(req.TargetDate); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	run := &model.Run{
		ID:         uuid.New().String(),
		Tenant:     middleware.GetTenant(c),
		Source:     model.SourceBoamp,
		TargetDate: req.TargetDate,
		Status:     model.StatusPending,
		CreatedAt:  time.Now(),
		UpdatedAt:  time.Now(),
	}
	h.store.Save(run)

	go h.processFetch(run.ID, run.Tenant, req.TargetDate, req.MaxRecords)

	c.JSON(http.StatusOK, gin.H{
		"id":          run.ID,
		"target_date": run.TargetDate,
		"status":      run.Status,
	})
}

// processFetch pulls the day's listing and stores the normalized table
func (h *RunsHandler) processFetch(runID, tenant, targetDate string, maxRecords int) {
	ctx := logger.Attach(context.Background(), logger.RunIDKey, runID)
	ctx = logger.Attach(ctx, logger.TenantKey, tenant)

	h.store.UpdateStatus(runID, model.StatusFetching, "")

	records, fetchErr := h.boamp.FetchByDate(ctx, targetDate, maxRecords, func(offset, fetched int) {
		h.store.UpdateProgress(runID, model.Progress{Offset: offset, Fetched: fetched})
	})

	var vErr *model.ValidationError
	if errors.As(fetchErr, &vErr) {
		h.store.UpdateStatus(runID, model.StatusFailed, vErr.Error())
		return
	}

	table, err := service.Normalize(records)
	if err != nil {
		logger.Error(ctx, "normalization failed", "error", err)
		h.store.UpdateStatus(runID, model.StatusFailed, err.Error())
		return
	}

	h.store.SetStageTable(runID, model.StageRaw, table)

	// A failing page truncates the fetch but keeps what was accumulated
	if fetchErr != nil {
		logger.Warn(ctx, "fetch finished with partial results", "rows", len(table.Rows), "error", fetchErr)
		h.store.UpdateStatus(runID, model.StatusCompleted, "listing truncated: "+fetchErr.Error())
		return
	}

	logger.Info(ctx, "fetch completed", "rows", len(table.Rows))
	h.store.UpdateStatus(runID, model.StatusCompleted, "")
}

// Upload creates a run from an uploaded spreadsheet
func (h *RunsHandler) Upload(c *gin.Context) {
	tenant := middleware.GetTenant(c)

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No file provided"})
		return
	}
	defer file.Close()

	var table *model.Table
	switch ext := strings.ToLower(filepath.Ext(header.Filename)); ext {
	case ".xlsx":
		table, err = service.ReadXLSX(file)
	case ".csv":
		table, err = service.ReadCSV(file)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "Only XLSX and CSV files are allowed"})
		return
	}
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to parse file: " + err.Error()})
		return
	}

	run := &model.Run{
		ID:        uuid.New().String(),
		Tenant:    tenant,
		Source:    model.SourceUpload,
		Filename:  header.Filename,
		Status:    model.StatusCompleted,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	h.store.Save(run)
	h.store.SetStageTable(run.ID, model.StageRaw, table)

	logger.Info(c.Request.Context(), "table uploaded",
		"run_id", run.ID,
		"filename", run.Filename,
		"rows", len(table.Rows),
	)

	c.JSON(http.StatusOK, gin.H{
		"id":       run.ID,
		"filename": run.Filename,
		"rows":     len(table.Rows),
		"columns":  table.Columns,
		"status":   run.Status,
	})
}

// List returns all runs for the current tenant
func (h *RunsHandler) List(c *gin.Context) {
	runs := h.store.GetByTenant(middleware.GetTenant(c))

	// Return without tables for list view
	result := make([]gin.H, len(runs))
	for i, run := range runs {
		result[i] = gin.H{
			"id":          run.ID,
			"source":      run.Source,
			"target_date": run.TargetDate,
			"filename":    run.Filename,
			"status":      run.Status,
			"counts":      run.Counts(),
			"created_at":  run.CreatedAt.Format(time.RFC3339),
			"updated_at":  run.UpdatedAt.Format(time.RFC3339),
		}
	}

	c.JSON(http.StatusOK, gin.H{"runs": result})
}

// Get returns a single run with its stage row counts
func (h *RunsHandler) Get(c *gin.Context) {
	run := tenantRun(c, h.store)
	if run == nil {
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"run":    run,
		"counts": run.Counts(),
	})
}

// GetStatus returns the processing status of a run
func (h *RunsHandler) GetStatus(c *gin.Context) {
	run := tenantRun(c, h.store)
	if run == nil {
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"id":        run.ID,
		"status":    run.Status,
		"error_msg": run.ErrorMsg,
		"progress":  run.Progress,
		"counts":    run.Counts(),
	})
}

// Delete deletes a run
func (h *RunsHandler) Delete(c *gin.Context) {
	run := tenantRun(c, h.store)
	if run == nil {
		return
	}

	h.store.Delete(run.ID)

	c.JSON(http.StatusOK, gin.H{"message": "Run deleted"})
}

// Columns returns the raw table's column list
func (h *RunsHandler) Columns(c *gin.Context) {
	run := tenantRun(c, h.store)
	if run == nil {
		return
	}
	if run.Raw == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Run has no data yet"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"columns": run.Raw.Columns})
}

// Filter matches the raw table against keywords and stores the result
func (h *RunsHandler) Filter(c *gin.Context) {
	run := tenantRun(c, h.store)
	if run == nil {
		return
	}
	if run.Raw == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Run has no data yet"})
		return
	}

	var req FilterRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	keywords := req.Keywords
	if len(keywords) == 0 {
		keywords = h.keywords
	}
	keywords = mergeKeywords(keywords, req.CustomKeywords)
	if len(keywords) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No keywords to filter with"})
		return
	}

	h.store.UpdateStatus(run.ID, model.StatusFiltering, "")
	filtered := service.Match(run.Raw, keywords, h.config.Columns.Keyword)
	h.store.SetStageTable(run.ID, model.StageFiltered, filtered)
	h.store.SetKeywords(run.ID, keywords)
	h.store.UpdateStatus(run.ID, model.StatusCompleted, run.ErrorMsg)

	logger.Info(c.Request.Context(), "table filtered",
		"run_id", run.ID,
		"keywords", len(keywords),
		"rows", len(filtered.Rows),
	)

	c.JSON(http.StatusOK, gin.H{
		"id":       run.ID,
		"keywords": keywords,
		"rows":     len(filtered.Rows),
	})
}

// Dedup merges filtered rows sharing an identifier and stores the result
func (h *RunsHandler) Dedup(c *gin.Context) {
	run := tenantRun(c, h.store)
	if run == nil {
		return
	}
	if run.Filtered == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Run has no filtered table yet"})
		return
	}

	var req DedupRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}
	if req.IDColumn == "" {
		req.IDColumn = h.config.Columns.ID
	}
	if req.KeywordColumn == "" {
		req.KeywordColumn = h.config.Columns.Keyword
	}

	cleaned, err := service.Deduplicate(run.Filtered, req.IDColumn, req.KeywordColumn)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	h.store.SetStageTable(run.ID, model.StageCleaned, cleaned)

	logger.Info(c.Request.Context(), "table deduplicated",
		"run_id", run.ID,
		"rows_in", len(run.Filtered.Rows),
		"rows_out", len(cleaned.Rows),
	)

	c.JSON(http.StatusOK, gin.H{
		"id":   run.ID,
		"rows": len(cleaned.Rows),
	})
}

// Scan downloads and analyzes each notice's document asynchronously
func (h *RunsHandler) Scan(c *gin.Context) {
	run := tenantRun(c, h.store)
	if run == nil {
		return
	}

	input := run.Cleaned
	if input == nil {
		input = run.Filtered
	}
	if input == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Run has no filtered table yet"})
		return
	}

	var req ScanRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	docsCfg := h.config.Documents
	if req.DelayMs != nil {
		// caller override is clamped to 100-2000ms
		docsCfg.DelayMs = min(max(*req.DelayMs, 100), 2000)
	}
	if req.TimeoutSec != nil && *req.TimeoutSec > 0 {
		docsCfg.TimeoutSec = *req.TimeoutSec
	}
	scanner := service.NewScannerService(&docsCfg, &h.config.Columns, &h.config.Retry, h.extractor)

	h.store.UpdateStatus(run.ID, model.StatusScanning, "")
	go h.processScan(run.ID, run.Tenant, scanner, input)

	c.JSON(http.StatusOK, gin.H{
		"id":     run.ID,
		"status": model.StatusScanning,
		"rows":   len(input.Rows),
	})
}

// processScan runs the document scanner over the table
func (h *RunsHandler) processScan(runID, tenant string, scanner *service.ScannerService, input *model.Table) {
	ctx := logger.Attach(context.Background(), logger.RunIDKey, runID)
	ctx = logger.Attach(ctx, logger.TenantKey, tenant)

	scanned, err := scanner.Scan(ctx, input, func(processed, total int) {
		h.store.UpdateProgress(runID, model.Progress{Processed: processed, Total: total})
	})

	h.store.SetStageTable(runID, model.StageScanned, scanned)

	if err != nil {
		logger.Error(ctx, "document scan aborted", "error", err)
		h.store.UpdateStatus(runID, model.StatusFailed, err.Error())
		return
	}

	logger.Info(ctx, "document scan completed", "rows", len(scanned.Rows))
	h.store.UpdateStatus(runID, model.StatusCompleted, "")
}

// tenantRun loads the addressed run, replying 404 when it does not exist
// or belongs to another tenant.
func tenantRun(c *gin.Context, store *service.RunStore) *model.Run {
	run := store.Get(c.Param("id"))
	if run == nil || run.Tenant != middleware.GetTenant(c) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Run not found"})
		return nil
	}
	return run
}

// mergeKeywords concatenates keyword lists, trimming blanks and keeping
// the first occurrence of duplicates.
func mergeKeywords(lists ...[]string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, list := range lists {
		for _, keyword := range list {
			keyword = strings.TrimSpace(keyword)
			if keyword == "" {
				continue
			}
			if _, ok := seen[keyword]; ok {
				continue
			}
			seen[keyword] = struct{}{}
			out = append(out, keyword)
		}
	}
	return out
}

package handler

import (
	"bytes"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/faycaldjilali/sorabo/model"
	"github.com/faycaldjilali/sorabo/pkg/logger"
	"github.com/faycaldjilali/sorabo/service"
)

type ExportHandler struct {
	archive *service.ArchiveService // nil when archiving is disabled
	store   *service.RunStore
}

func NewExportHandler(archiveSvc *service.ArchiveService) *ExportHandler {
	return &ExportHandler{
		archive: archiveSvc,
		store:   service.GetRunStore(),
	}
}

// Export streams one stage of a run as xlsx, csv or json
func (h *ExportHandler) Export(c *gin.Context) {
	run := tenantRun(c, h.store)
	if run == nil {
		return
	}

	stage := c.DefaultQuery("stage", model.StageRaw)
	if !validStage(stage) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown stage"})
		return
	}
	table := run.StageTable(stage)
	if table == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Run has no " + stage + " table"})
		return
	}

	format := c.DefaultQuery("format", "xlsx")

	var buf bytes.Buffer
	var contentType string
	var err error
	switch format {
	case "xlsx":
		contentType = service.ContentTypeXLSX
		err = service.WriteXLSX(&buf, table)
	case "csv":
		contentType = service.ContentTypeCSV
		err = service.WriteCSV(&buf, table)
	case "json":
		contentType = service.ContentTypeJSON
		err = service.WriteJSON(&buf, table)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown format"})
		return
	}
	if err != nil {
		logger.Error(c.Request.Context(), "export rendering failed",
			"run_id", run.ID,
			"stage", stage,
			"format", format,
			"error", err,
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to build export"})
		return
	}

	filename := service.ExportFilename(exportDate(run), format, time.Now())
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Data(http.StatusOK, contentType, buf.Bytes())
}

// Archive uploads a stage's xlsx export to object storage and returns a
// presigned download link
func (h *ExportHandler) Archive(c *gin.Context) {
	if h.archive == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Archive storage is not configured"})
		return
	}

	run := tenantRun(c, h.store)
	if run == nil {
		return
	}

	stage := c.DefaultQuery("stage", model.StageRaw)
	if !validStage(stage) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown stage"})
		return
	}
	table := run.StageTable(stage)
	if table == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Run has no " + stage + " table"})
		return
	}

	var buf bytes.Buffer
	if err := service.WriteXLSX(&buf, table); err != nil {
		logger.Error(c.Request.Context(), "export rendering failed", "run_id", run.ID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to build export"})
		return
	}

	filename := service.ExportFilename(exportDate(run), "xlsx", time.Now())
	url, err := h.archive.ArchiveExport(c.Request.Context(), run.Tenant, filename, buf.Bytes(), service.ContentTypeXLSX)
	if err != nil {
		logger.Error(c.Request.Context(), "archive upload failed", "run_id", run.ID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to archive export: " + err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"url":      url,
		"object":   h.archive.ObjectName(run.Tenant, filename),
		"filename": filename,
	})
}

// Reformat normalizes model answers produced for exported rows
func (h *ExportHandler) Reformat(c *gin.Context) {
	var outputs []service.ModelOutput
	if err := c.ShouldBindJSON(&outputs); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"results": service.ReformatModelOutputs(outputs)})
}

func validStage(stage string) bool {
	switch stage {
	case model.StageRaw, model.StageFiltered, model.StageCleaned, model.StageScanned:
		return true
	}
	return false
}

// exportDate names the file after the fetched day, falling back to the
// run's creation day for uploads.
func exportDate(run *model.Run) string {
	if run.TargetDate != "" {
		return run.TargetDate
	}
	return run.CreatedAt.Format("2006-01-02")
}

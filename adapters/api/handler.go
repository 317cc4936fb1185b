// Package api exposes the analytics service over JSON with gin
package api

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"goinsight/app"
	"goinsight/domain/analytics"
	"goinsight/domain/core"
	"goinsight/internal/errors"
)

const (
	defaultMaxUploadBytes = 50 * 1024 * 1024
	defaultListLimit      = 50
	maxListLimit          = 500
)

var allowedExtensions = []string{".csv", ".tsv", ".txt", ".xlsx", ".xlsm"}

// Options controls uploads and local-path registration
type Options struct {
	UploadDir      string
	MaxUploadBytes int64
	// AllowLocalPaths lets JSON requests register files already on the server
	AllowLocalPaths bool
}

// Handler serves the dataset routes
type Handler struct {
	svc     *app.AnalyticsService
	options Options
	logger  *zap.Logger
}

// NewHandler creates a handler around svc
func NewHandler(svc *app.AnalyticsService, options Options, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if options.MaxUploadBytes <= 0 {
		options.MaxUploadBytes = defaultMaxUploadBytes
	}
	if options.UploadDir == "" {
		options.UploadDir = filepath.Join(os.TempDir(), "goinsight-uploads")
	}
	return &Handler{
		svc:     svc,
		options: options,
		logger:  logger.Named("api"),
	}
}

// RegisterRoutes mounts every dataset route under /api/datasets
func (h *Handler) RegisterRoutes(r gin.IRouter) {
	datasets := r.Group("/api/datasets")
	datasets.POST("", h.CreateDataset)
	datasets.GET("", h.ListDatasets)
	datasets.DELETE("/:id", h.DeleteDataset)
	datasets.GET("/:id/profile", h.GetProfile)
	datasets.POST("/:id/ask", h.Ask)
	datasets.GET("/:id/quality", h.GetQuality)
	datasets.GET("/:id/baseline", h.GetBaseline)
	datasets.GET("/:id/overview", h.GetOverview)
	datasets.POST("/:id/drilldown", h.DrillDown)
}

type registerRequest struct {
	FilePath string `json:"file_path" binding:"required"`
	FileName string `json:"file_name"`
}

type askRequest struct {
	Question string `json:"question" binding:"required"`
}

type drillDownRequest struct {
	Metric  string `json:"metric" binding:"required"`
	Outcome string `json:"outcome"`
}

// CreateDataset registers an uploaded file (multipart field "dataset") or,
// when enabled, a JSON {"file_path": ...} already present on the server
func (h *Handler) CreateDataset(c *gin.Context) {
	var fileName, path string

	if strings.HasPrefix(c.ContentType(), "multipart/") {
		var ok bool
		fileName, path, ok = h.saveUpload(c)
		if !ok {
			return
		}
	} else {
		if !h.options.AllowLocalPaths {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Upload the file as multipart field \"dataset\""})
			return
		}
		var req registerRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
			return
		}
		path = req.FilePath
		fileName = req.FileName
		if fileName == "" {
			fileName = filepath.Base(path)
		}
	}

	version, profile, err := h.svc.RegisterDataset(c.Request.Context(), fileName, path)
	if err != nil {
		h.fail(c, "register dataset", err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"version": version,
		"profile": profile,
	})
}

// saveUpload stores the multipart file under the upload directory
func (h *Handler) saveUpload(c *gin.Context) (string, string, bool) {
	header, err := c.FormFile("dataset")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No file uploaded"})
		return "", "", false
	}
	if header.Size > h.options.MaxUploadBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{
			"error": fmt.Sprintf("File size (%.1f MB) exceeds the %.0f MB limit",
				float64(header.Size)/(1024*1024), float64(h.options.MaxUploadBytes)/(1024*1024)),
		})
		return "", "", false
	}

	fileName := filepath.Base(header.Filename)
	if !hasAllowedExtension(fileName) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Only " + strings.Join(allowedExtensions, ", ") + " files are allowed",
			"code":  errors.CodeUnsupportedFormat,
		})
		return "", "", false
	}

	if err := os.MkdirAll(h.options.UploadDir, 0o755); err != nil {
		h.fail(c, "create upload directory", errors.Wrap(err, "failed to create upload directory"))
		return "", "", false
	}
	dst := filepath.Join(h.options.UploadDir, core.NewID().String()+"_"+fileName)
	if err := c.SaveUploadedFile(header, dst); err != nil {
		h.fail(c, "save upload", errors.Wrap(err, "failed to store upload"))
		return "", "", false
	}

	h.logger.Debug("upload stored",
		zap.String("file", fileName),
		zap.Int64("bytes", header.Size),
		zap.String("path", dst))
	return fileName, dst, true
}

func hasAllowedExtension(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, allowed := range allowedExtensions {
		if ext == allowed {
			return true
		}
	}
	return false
}

// ListDatasets returns versions newest first, paged by limit and offset
func (h *Handler) ListDatasets(c *gin.Context) {
	limit, err := queryInt(c, "limit", defaultListLimit)
	if err != nil || limit <= 0 || limit > maxListLimit {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("limit must be between 1 and %d", maxListLimit)})
		return
	}
	offset, err := queryInt(c, "offset", 0)
	if err != nil || offset < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "offset must be a non-negative integer"})
		return
	}

	versions, err := h.svc.ListDatasets(c.Request.Context(), limit, offset)
	if err != nil {
		h.fail(c, "list datasets", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"datasets": versions,
		"limit":    limit,
		"offset":   offset,
	})
}

func queryInt(c *gin.Context, key string, fallback int) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return fallback, nil
	}
	return strconv.Atoi(raw)
}

// DeleteDataset forgets a version
func (h *Handler) DeleteDataset(c *gin.Context) {
	id, ok := versionID(c)
	if !ok {
		return
	}
	if err := h.svc.DeleteDataset(c.Request.Context(), id); err != nil {
		h.fail(c, "delete dataset", err)
		return
	}
	c.Status(http.StatusNoContent)
}

// GetProfile returns the cached profile of a version
func (h *Handler) GetProfile(c *gin.Context) {
	id, ok := versionID(c)
	if !ok {
		return
	}
	profile, err := h.svc.Profile(c.Request.Context(), id)
	if err != nil {
		h.fail(c, "profile", err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

// Ask answers a natural-language question. A guard block is a 200 response
// carrying the violation.
func (h *Handler) Ask(c *gin.Context) {
	id, ok := versionID(c)
	if !ok {
		return
	}
	var req askRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "question is required"})
		return
	}

	resp, err := h.svc.Ask(c.Request.Context(), id, req.Question)
	if err != nil {
		h.fail(c, "ask", err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// GetQuality runs the data-quality checks
func (h *Handler) GetQuality(c *gin.Context) {
	id, ok := versionID(c)
	if !ok {
		return
	}
	result, err := h.svc.Quality(c.Request.Context(), id)
	if err != nil {
		h.fail(c, "quality", err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// GetBaseline runs the baseline template
func (h *Handler) GetBaseline(c *gin.Context) {
	id, ok := versionID(c)
	if !ok {
		return
	}
	result, err := h.svc.Baseline(c.Request.Context(), id)
	if err != nil {
		h.fail(c, "baseline", err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// GetOverview returns quality and baseline together
func (h *Handler) GetOverview(c *gin.Context) {
	id, ok := versionID(c)
	if !ok {
		return
	}
	overview, err := h.svc.Overview(c.Request.Context(), id)
	if err != nil {
		h.fail(c, "overview", err)
		return
	}
	c.JSON(http.StatusOK, overview)
}

// DrillDown runs the drill-down template for one metric
func (h *Handler) DrillDown(c *gin.Context) {
	id, ok := versionID(c)
	if !ok {
		return
	}
	var req drillDownRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "metric is required"})
		return
	}

	result, err := h.svc.DrillDown(c.Request.Context(), id, analytics.DrillDownRequest{
		MetricColumn:  req.Metric,
		OutcomeColumn: req.Outcome,
	})
	if err != nil {
		h.fail(c, "drilldown", err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func versionID(c *gin.Context) (core.DatasetVersionID, bool) {
	id, err := core.ParseDatasetVersionID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return "", false
	}
	return id, true
}

// fail writes err with the status its code maps to
func (h *Handler) fail(c *gin.Context, op string, err error) {
	status := StatusFor(err)
	fields := []zap.Field{
		zap.String("op", op),
		zap.String("code", errors.GetCode(err)),
		zap.Error(err),
	}
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed", fields...)
	} else {
		h.logger.Debug("request rejected", fields...)
	}
	c.JSON(status, gin.H{
		"error": err.Error(),
		"code":  errors.GetCode(err),
	})
}

// StatusFor maps an application error code to an HTTP status
func StatusFor(err error) int {
	switch errors.GetCode(err) {
	case errors.CodeNotFound, errors.CodeFileNotFound:
		return http.StatusNotFound
	case errors.CodeInvalidInput, errors.CodeValidationError, errors.CodeUnsupportedFormat:
		return http.StatusBadRequest
	case errors.CodeEmptyFile, errors.CodeMalformedRow, errors.CodeEmptyDataset,
		errors.CodeNoNumericColumns, errors.CodeDimensionNotFound, errors.CodeTimeColumnNotFound:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

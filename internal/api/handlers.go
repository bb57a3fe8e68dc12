package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/biomarker-insight-server/internal/domain"
)

// evaluateRequest is the payload for POST /api/v1/reports/evaluate.
type evaluateRequest struct {
	UserID       string                  `json:"user_id" binding:"required"`
	Measurements []domain.RawMeasurement `json:"measurements" binding:"required"`
	Profile      *domain.Profile         `json:"profile"`
}

// handleHealth handles health check requests
func (s *Server) handleHealth(c *gin.Context) {
	resp := gin.H{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
	}
	if snap := s.reference.Current(); snap != nil {
		resp["reference_loaded_at"] = snap.LoadedAt()
	} else {
		resp["status"] = "degraded"
	}
	if s.db != nil {
		if err := s.db.Health(c.Request.Context()); err != nil {
			resp["status"] = "degraded"
			resp["database"] = "unreachable"
		} else {
			resp["database"] = "ok"
		}
	}
	c.JSON(http.StatusOK, resp)
}

// handleEvaluateReport runs the full evaluation pipeline on one report.
func (s *Server) handleEvaluateReport(c *gin.Context) {
	var req evaluateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	evaluation, err := s.evaluator.EvaluateReport(c.Request.Context(), req.UserID, req.Measurements, req.Profile)
	if err != nil {
		s.renderError(c, err)
		return
	}

	c.JSON(http.StatusOK, evaluation)
}

// handleUserInsights runs the longitudinal analysis across a user's history.
func (s *Server) handleUserInsights(c *gin.Context) {
	if s.history == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "history storage is not configured"})
		return
	}

	userID := c.Param("id")
	analysis, err := s.evaluator.AnalyzeHistory(c.Request.Context(), userID)
	if err != nil {
		s.renderError(c, err)
		return
	}

	c.JSON(http.StatusOK, analysis)
}

// handleCodeHistory returns a user's stored observations for one biomarker,
// newest first.
func (s *Server) handleCodeHistory(c *gin.Context) {
	if s.history == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "history storage is not configured"})
		return
	}

	userID := c.Param("id")
	code := c.Param("code")

	limit := -1
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = parsed
	}

	series, err := s.history.LoadCodeHistory(c.Request.Context(), userID, code, limit)
	if err != nil {
		s.renderError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user_id": userID,
		"code":    code,
		"samples": series,
	})
}

// handleReferenceReload atomically reloads the reference tables.
func (s *Server) handleReferenceReload(c *gin.Context) {
	if err := s.reference.Reload(); err != nil {
		s.log.WithError(err).Error("Reference reload failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "reference reload failed"})
		return
	}

	snap := s.reference.Current()
	c.JSON(http.StatusOK, gin.H{
		"status":    "reloaded",
		"loaded_at": snap.LoadedAt(),
	})
}

// renderError maps pipeline errors onto HTTP status codes.
func (s *Server) renderError(c *gin.Context, err error) {
	var validationErr *domain.ValidationError

	switch {
	case errors.Is(err, domain.ErrNoMeasurements), errors.As(err, &validationErr), errors.Is(err, domain.ErrInvalidRange):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrReferenceUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	default:
		s.log.WithFields(logrus.Fields{
			"path":       c.FullPath(),
			"request_id": c.GetString("request_id"),
		}).WithError(err).Error("Request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}

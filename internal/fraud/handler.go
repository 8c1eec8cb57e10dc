package fraud

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/verigrade/verigrade/pkg/common"
	"github.com/verigrade/verigrade/pkg/pagination"
	"github.com/verigrade/verigrade/pkg/validation"
)

// Handler handles HTTP requests for transaction risk scoring
type Handler struct {
	service ServiceInterface
}

// NewHandler creates a new fraud handler
func NewHandler(service ServiceInterface) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes registers fraud routes
func (h *Handler) RegisterRoutes(router *gin.Engine) {
	h.RegisterGroupRoutes(router.Group("/api/v1"))
}

// RegisterGroupRoutes registers fraud routes on an existing router group
func (h *Handler) RegisterGroupRoutes(rg *gin.RouterGroup) {
	fraud := rg.Group("/fraud")
	{
		// Scoring
		fraud.POST("/users/:id/transactions/analyze", h.AnalyzeTransaction)
		fraud.POST("/users/:id/transactions/assess", h.AssessTransaction)

		// Per-user views
		fraud.GET("/users/:id/alerts", h.GetUserAlerts)
		fraud.GET("/users/:id/statistics", h.GetStatistics)
		fraud.GET("/users/:id/pattern", h.GetPattern)
		fraud.DELETE("/users/:id/pattern", h.InvalidatePattern)

		// Alert review
		fraud.GET("/alerts/:id", h.GetAlert)
		fraud.PUT("/alerts/:id/status", h.UpdateAlertStatus)

		fraud.GET("/rules", h.GetRules)
	}
}

// AnalyzeTransaction scores a transaction and returns the alert, or null below the alert threshold
func (h *Handler) AnalyzeTransaction(c *gin.Context) {
	userID, ok := common.ParseUUIDParam(c, "id", "user ID")
	if !ok {
		return
	}

	var txn Transaction
	if !common.BindJSON(c, &txn) {
		return
	}

	alert, err := h.service.AnalyzeTransaction(c.Request.Context(), userID, &txn)
	if common.HandleServiceError(c, err, "failed to analyze transaction") {
		return
	}

	if alert == nil {
		common.SuccessResponse(c, nil)
		return
	}
	common.CreatedResponse(c, alert)
}

// AssessTransaction returns the full scoring breakdown without raising an alert
func (h *Handler) AssessTransaction(c *gin.Context) {
	userID, ok := common.ParseUUIDParam(c, "id", "user ID")
	if !ok {
		return
	}

	var txn Transaction
	if !common.BindJSON(c, &txn) {
		return
	}

	assessment, err := h.service.Assess(c.Request.Context(), userID, &txn)
	if common.HandleServiceError(c, err, "failed to assess transaction") {
		return
	}

	common.SuccessResponse(c, assessment)
}

// GetUserAlerts lists a user's alerts
func (h *Handler) GetUserAlerts(c *gin.Context) {
	userID, ok := common.ParseUUIDParam(c, "id", "user ID")
	if !ok {
		return
	}

	params := pagination.ParseParams(c)

	alerts, total, err := h.service.GetUserAlerts(c.Request.Context(), userID, params.Limit, params.Offset)
	if common.HandleServiceError(c, err, "failed to get user alerts") {
		return
	}

	meta := pagination.BuildMeta(params.Limit, params.Offset, total)
	common.SuccessResponseWithMeta(c, alerts, meta)
}

// GetStatistics returns alert statistics for a user
func (h *Handler) GetStatistics(c *gin.Context) {
	userID, ok := common.ParseUUIDParam(c, "id", "user ID")
	if !ok {
		return
	}

	stats, err := h.service.GetStatistics(c.Request.Context(), userID)
	if common.HandleServiceError(c, err, "failed to get fraud statistics") {
		return
	}

	common.SuccessResponse(c, stats)
}

// GetPattern returns the spending baseline used to score a user's transactions
func (h *Handler) GetPattern(c *gin.Context) {
	userID, ok := common.ParseUUIDParam(c, "id", "user ID")
	if !ok {
		return
	}

	lookup, err := h.service.GetPattern(c.Request.Context(), userID)
	if common.HandleServiceError(c, err, "failed to get transaction pattern") {
		return
	}

	common.SuccessResponse(c, lookup)
}

// InvalidatePattern forces the user's pattern to be rebuilt on the next lookup
func (h *Handler) InvalidatePattern(c *gin.Context) {
	userID, ok := common.ParseUUIDParam(c, "id", "user ID")
	if !ok {
		return
	}

	if err := h.service.InvalidatePattern(c.Request.Context(), userID); common.HandleServiceError(c, err, "failed to invalidate transaction pattern") {
		return
	}

	common.SuccessResponse(c, gin.H{"message": "pattern invalidated"})
}

// GetAlert retrieves a specific fraud alert
func (h *Handler) GetAlert(c *gin.Context) {
	alertID, ok := common.ParseUUIDParam(c, "id", "alert ID")
	if !ok {
		return
	}

	alert, err := h.service.GetAlert(c.Request.Context(), alertID)
	if common.HandleServiceError(c, err, "failed to get fraud alert") {
		return
	}

	common.SuccessResponse(c, alert)
}

// UpdateAlertStatus moves an alert through the review lifecycle
func (h *Handler) UpdateAlertStatus(c *gin.Context) {
	alertID, ok := common.ParseUUIDParam(c, "id", "alert ID")
	if !ok {
		return
	}

	var req UpdateAlertStatusRequest
	if !common.BindJSON(c, &req) {
		return
	}
	if err := validation.ValidateStruct(&req); err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	alert, err := h.service.UpdateAlertStatus(c.Request.Context(), alertID, req.Status)
	if common.HandleServiceError(c, err, "failed to update fraud alert") {
		return
	}

	common.SuccessResponse(c, alert)
}

// GetRules lists the heuristics applied to transactions
func (h *Handler) GetRules(c *gin.Context) {
	common.SuccessResponse(c, h.service.Rules())
}

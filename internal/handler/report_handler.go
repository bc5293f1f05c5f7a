package handler

import (
	"net/http"
	"time"

	"medsupply/internal/middleware"
	"medsupply/internal/service"
	"medsupply/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type ReportHandler struct {
	reportService service.ReportService
	now           func() time.Time
}

func NewReportHandler(reportService service.ReportService) *ReportHandler {
	return &ReportHandler{reportService: reportService, now: time.Now}
}

func (h *ReportHandler) RegisterRoutes(router *gin.RouterGroup) {
	reports := router.Group("/api/reports")
	{
		reports.GET("/production-summary", middleware.RequireRoles(middleware.ManufacturerRoles...), h.ProductionSummary)
	}
}

// @Summary      Production summary
// @Description  Batch counts and costs by status, top selling products and low stock count for a period
// @Tags         reports
// @Produce      json
// @Param        manufacturer_id  query  string  false  "Manufacturer ID (admin only)"
// @Param        start_date       query  string  false  "Start Date (RFC3339), defaults to the first of the month"
// @Param        end_date         query  string  false  "End Date (RFC3339), defaults to now"
// @Success      200  {object}  response.Response{data=model.ProductionSummary}
// @Failure      400  {object}  response.Response  "Invalid date format"
// @Failure      403  {object}  response.Response
// @Security     BearerAuth
// @Router       /api/reports/production-summary [get]
func (h *ReportHandler) ProductionSummary(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}

	now := h.now()
	startDate := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	endDate := now
	var err error
	if raw := c.Query("start_date"); raw != "" {
		if startDate, err = time.Parse(time.RFC3339, raw); err != nil {
			c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "invalid start_date format, expected RFC3339"))
			return
		}
	}
	if raw := c.Query("end_date"); raw != "" {
		if endDate, err = time.Parse(time.RFC3339, raw); err != nil {
			c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "invalid end_date format, expected RFC3339"))
			return
		}
	}

	var mfrID uuid.UUID
	if raw := c.Query("manufacturer_id"); raw != "" {
		if mfrID, err = uuid.Parse(raw); err != nil {
			c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "invalid manufacturer_id"))
			return
		}
	}

	summary, err := h.reportService.ProductionSummary(c.Request.Context(), a, mfrID, startDate, endDate)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, summary))
}

package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5"

	"github.com/hvac_triage/backend/internal/models"
	"github.com/hvac_triage/backend/internal/region"
)

type CreateBusinessRequest struct {
	Name        string `json:"name" validate:"required"`
	PhoneNumber string `json:"phone_number" validate:"required"`
	Region      string `json:"region" validate:"omitempty,oneof=north south"`
	HoursStart  string `json:"hours_start"`
	HoursEnd    string `json:"hours_end"`
	OwnerName   string `json:"owner_name"`
	OwnerPhone  string `json:"owner_phone"`
}

// @Summary Create a business
// @Tags businesses
// @Accept json
// @Produce json
// @Success 201 {object} models.Business
// @Failure 400 {object} map[string]any
// @Router /api/businesses [post]
func (h *Handler) BusinessCreate(c *gin.Context) {
	var req CreateBusinessRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid payload", err.Error())
		return
	}
	if err := h.Validator.Struct(req); err != nil {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Validation failed", err.Error())
		return
	}

	// Region of record defaults from the owner's area code so the
	// classifier's seasonal weighting works without manual setup.
	if req.Region == "" {
		phone := req.OwnerPhone
		if phone == "" {
			phone = req.PhoneNumber
		}
		req.Region = region.Resolve(phone)
	}

	business, err := h.Store.CreateBusiness(c.Request.Context(), models.Business{
		Name:        req.Name,
		PhoneNumber: req.PhoneNumber,
		Region:      req.Region,
		HoursStart:  req.HoursStart,
		HoursEnd:    req.HoursEnd,
		OwnerName:   req.OwnerName,
		OwnerPhone:  req.OwnerPhone,
	})
	if err != nil {
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to create business", err.Error())
		return
	}
	c.JSON(http.StatusCreated, business)
}

func (h *Handler) BusinessGet(c *gin.Context) {
	business, err := h.Store.GetBusiness(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(c, http.StatusNotFound, "NOT_FOUND", "Business not found", nil)
			return
		}
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to get business", err.Error())
		return
	}
	c.JSON(http.StatusOK, business)
}

type UpdateBusinessRequest struct {
	Name       string `json:"name"`
	Region     string `json:"region" validate:"omitempty,oneof=north south"`
	HoursStart string `json:"hours_start"`
	HoursEnd   string `json:"hours_end"`
	OwnerName  string `json:"owner_name"`
	OwnerPhone string `json:"owner_phone"`
}

func (h *Handler) BusinessUpdate(c *gin.Context) {
	var req UpdateBusinessRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid payload", err.Error())
		return
	}
	if err := h.Validator.Struct(req); err != nil {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Validation failed", err.Error())
		return
	}

	ctx := c.Request.Context()
	business, err := h.Store.GetBusiness(ctx, c.Param("id"))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(c, http.StatusNotFound, "NOT_FOUND", "Business not found", nil)
			return
		}
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to get business", err.Error())
		return
	}

	if req.Name != "" {
		business.Name = req.Name
	}
	if req.Region != "" {
		business.Region = req.Region
	}
	if req.HoursStart != "" {
		business.HoursStart = req.HoursStart
	}
	if req.HoursEnd != "" {
		business.HoursEnd = req.HoursEnd
	}
	if req.OwnerName != "" {
		business.OwnerName = req.OwnerName
	}
	if req.OwnerPhone != "" {
		business.OwnerPhone = req.OwnerPhone
	}

	updated, err := h.Store.UpdateBusiness(ctx, business)
	if err != nil {
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to update business", err.Error())
		return
	}
	c.JSON(http.StatusOK, updated)
}

type CreateTechnicianRequest struct {
	Name          string `json:"name" validate:"required"`
	PhoneNumber   string `json:"phone_number" validate:"required"`
	Email         string `json:"email" validate:"omitempty,email"`
	IsOnCall      bool   `json:"is_on_call"`
	PriorityOrder int    `json:"priority_order" validate:"gte=0"`
}

// @Summary Add a technician to a business
// @Tags technicians
// @Accept json
// @Produce json
// @Success 201 {object} models.Technician
// @Router /api/businesses/{id}/technicians [post]
func (h *Handler) TechnicianCreate(c *gin.Context) {
	var req CreateTechnicianRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid payload", err.Error())
		return
	}
	if err := h.Validator.Struct(req); err != nil {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Validation failed", err.Error())
		return
	}

	tech, err := h.Store.CreateTechnician(c.Request.Context(), models.Technician{
		BusinessID:    c.Param("id"),
		Name:          req.Name,
		PhoneNumber:   req.PhoneNumber,
		Email:         req.Email,
		IsOnCall:      req.IsOnCall,
		PriorityOrder: req.PriorityOrder,
	})
	if err != nil {
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to create technician", err.Error())
		return
	}
	c.JSON(http.StatusCreated, tech)
}

func (h *Handler) TechniciansList(c *gin.Context) {
	items, err := h.Store.ListTechnicians(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to list technicians", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

func (h *Handler) CallsList(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	items, err := h.Store.ListCallsByBusiness(c.Request.Context(), c.Param("id"), limit)
	if err != nil {
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to list calls", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items, "limit": limit})
}

// @Summary Most recent call for a business
// @Tags calls
// @Produce json
// @Param id path string true "Business ID"
// @Success 200 {object} models.Call
// @Failure 404 {object} map[string]any
// @Router /api/businesses/{id}/calls/latest [get]
func (h *Handler) CallLatest(c *gin.Context) {
	items, err := h.Store.ListCallsByBusiness(c.Request.Context(), c.Param("id"), 1)
	if err != nil {
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to list calls", err.Error())
		return
	}
	if len(items) == 0 {
		writeError(c, http.StatusNotFound, "NOT_FOUND", "No calls found", nil)
		return
	}
	c.JSON(http.StatusOK, items[0])
}

func (h *Handler) CallDetails(c *gin.Context) {
	call, err := h.Store.GetCall(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(c, http.StatusNotFound, "NOT_FOUND", "Call not found", nil)
			return
		}
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to get call", err.Error())
		return
	}
	c.JSON(http.StatusOK, call)
}

// @Summary Generate the daily report for a date
// @Tags reports
// @Produce json
// @Param id path string true "Business ID"
// @Param date query string false "Report date, YYYY-MM-DD (default today)"
// @Success 200 {object} models.DailyReport
// @Router /api/businesses/{id}/reports/generate [post]
func (h *Handler) ReportGenerate(c *gin.Context) {
	day := time.Now().UTC()
	if raw := c.Query("date"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "date must be YYYY-MM-DD", err.Error())
			return
		}
		day = parsed
	}

	report, err := h.Reports.GenerateDaily(c.Request.Context(), c.Param("id"), day)
	if err != nil {
		writeError(c, http.StatusInternalServerError, "REPORT_ERROR", "Failed to generate report", err.Error())
		return
	}
	c.JSON(http.StatusOK, report)
}

func (h *Handler) ReportGet(c *gin.Context) {
	report, err := h.Store.GetDailyReport(c.Request.Context(), c.Param("id"), c.Param("date"))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(c, http.StatusNotFound, "NOT_FOUND", "Report not found", nil)
			return
		}
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to get report", err.Error())
		return
	}
	c.JSON(http.StatusOK, report)
}

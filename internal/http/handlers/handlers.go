package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/hvac_triage/backend/internal/models"
	"github.com/hvac_triage/backend/internal/service"
	"github.com/hvac_triage/backend/internal/sms"
)

// Store is the persistence surface the HTTP layer depends on, satisfied by
// *db.Store and by fakes in tests.
type Store interface {
	Ping(ctx context.Context) error

	CreateBusiness(ctx context.Context, b models.Business) (models.Business, error)
	GetBusiness(ctx context.Context, id string) (models.Business, error)
	UpdateBusiness(ctx context.Context, b models.Business) (models.Business, error)

	CreateTechnician(ctx context.Context, t models.Technician) (models.Technician, error)
	GetTechnician(ctx context.Context, id string) (models.Technician, error)
	ListTechnicians(ctx context.Context, businessID string) ([]models.Technician, error)
	OnCallTechnicians(ctx context.Context, businessID string) ([]models.Technician, error)

	CreateCall(ctx context.Context, c models.Call) (models.Call, error)
	GetCall(ctx context.Context, id string) (models.Call, error)
	GetCallByProviderID(ctx context.Context, providerCallID string) (models.Call, error)
	ListCallsByBusiness(ctx context.Context, businessID string, limit int) ([]models.Call, error)
	ListCallsByPhone(ctx context.Context, businessID, phone string) ([]models.Call, error)
	UpdateCallStatus(ctx context.Context, callID, status string) error
	SetCallPriority(ctx context.Context, callID, priority string) error
	AppendTranscript(ctx context.Context, callID, line string) error
	FinalizeCall(ctx context.Context, callID, transcript, recordingURL string, durationSeconds *int) error
	MarkAccepted(ctx context.Context, callID string, at time.Time) error

	FindPendingByPhone(ctx context.Context, phone string) (models.Notification, error)
	ClaimNotificationResponse(ctx context.Context, notificationID, responseText string) (bool, error)
	GetEscalation(ctx context.Context, notificationID string) (models.EscalationDeadline, error)
	DeleteEscalation(ctx context.Context, notificationID string) error

	GetDailyReport(ctx context.Context, businessID, reportDate string) (models.DailyReport, error)
}

type Handler struct {
	Store             Store
	Classifier        *service.Classifier
	Dispatcher        *service.Dispatcher
	Escalator         *service.Escalator
	Reports           *service.ReportService
	Sender            sms.Sender
	Validator         *validator.Validate
	Logger            zerolog.Logger
	AdminKey          string
	DefaultBusinessID string
}

func (h *Handler) Healthz(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()
	if err := h.Store.Ping(ctx); err != nil {
		writeError(c, http.StatusServiceUnavailable, "DB_UNAVAILABLE", "Database unavailable", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func writeError(c *gin.Context, status int, code string, message string, details any) {
	c.JSON(status, gin.H{
		"error": gin.H{
			"code":    code,
			"message": message,
			"details": details,
		},
	})
}

package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"

	"github.com/hvac_triage/backend/internal/models"
)

type ReportStore interface {
	ListCallsForDay(ctx context.Context, businessID string, day time.Time) ([]models.Call, error)
	UpsertDailyReport(ctx context.Context, r models.DailyReport) (models.DailyReport, error)
}

type ReportService struct {
	Store  ReportStore
	Logger zerolog.Logger
}

type callDetail struct {
	Time         time.Time `json:"time"`
	CustomerName string    `json:"customer_name,omitempty"`
	Phone        string    `json:"customer_phone,omitempty"`
	Issue        string    `json:"issue,omitempty"`
	Status       string    `json:"status"`
	AssignedTech string    `json:"assigned_tech,omitempty"`
}

type reportData struct {
	Date    string `json:"date"`
	Summary struct {
		TotalCalls     int  `json:"total_calls"`
		EmergencyCalls int  `json:"emergency_calls"`
		StandardCalls  int  `json:"standard_calls"`
		MissedCalls    int  `json:"missed_calls"`
		AvgResponse    *int `json:"avg_response_time_seconds"`
	} `json:"summary"`
	EmergencyDetails []callDetail `json:"emergency_details"`
	StandardDetails  []callDetail `json:"standard_details"`
	MissedDetails    []callDetail `json:"missed_details"`
}

// GenerateDaily builds and persists the summary for one business day.
// Response time is measured from dispatch to technician acceptance.
func (r *ReportService) GenerateDaily(ctx context.Context, businessID string, day time.Time) (models.DailyReport, error) {
	calls, err := r.Store.ListCallsForDay(ctx, businessID, day)
	if err != nil {
		return models.DailyReport{}, err
	}

	data := reportData{Date: day.UTC().Format("2006-01-02")}
	data.EmergencyDetails = []callDetail{}
	data.StandardDetails = []callDetail{}
	data.MissedDetails = []callDetail{}

	var responseTotal, responseCount int
	for _, c := range calls {
		data.Summary.TotalCalls++
		detail := callDetail{
			Time:         c.CreatedAt,
			CustomerName: c.CustomerName,
			Phone:        c.CustomerPhone,
			Issue:        c.IssueDescription,
			Status:       c.Status,
		}
		if c.AssignedTechID != nil {
			detail.AssignedTech = *c.AssignedTechID
		}

		switch c.PriorityLevel {
		case models.PriorityEmergency:
			data.Summary.EmergencyCalls++
			data.EmergencyDetails = append(data.EmergencyDetails, detail)
		case models.PriorityStandard:
			data.Summary.StandardCalls++
			data.StandardDetails = append(data.StandardDetails, detail)
		}
		if c.Status == models.CallMissed {
			data.Summary.MissedCalls++
			data.MissedDetails = append(data.MissedDetails, detail)
		}

		if c.DispatchedAt != nil && c.AcceptedAt != nil {
			responseTotal += int(c.AcceptedAt.Sub(*c.DispatchedAt).Seconds())
			responseCount++
		}
	}

	if responseCount > 0 {
		avg := responseTotal / responseCount
		data.Summary.AvgResponse = &avg
	}

	raw, err := json.Marshal(data)
	if err != nil {
		return models.DailyReport{}, err
	}

	report := models.DailyReport{
		BusinessID:             businessID,
		ReportDate:             data.Date,
		TotalCalls:             data.Summary.TotalCalls,
		EmergencyCalls:         data.Summary.EmergencyCalls,
		StandardCalls:          data.Summary.StandardCalls,
		MissedCalls:            data.Summary.MissedCalls,
		AvgResponseTimeSeconds: data.Summary.AvgResponse,
		ReportData:             raw,
	}
	return r.Store.UpsertDailyReport(ctx, report)
}

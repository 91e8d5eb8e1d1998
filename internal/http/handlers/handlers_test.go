package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/hvac_triage/backend/internal/ai"
	"github.com/hvac_triage/backend/internal/models"
	"github.com/hvac_triage/backend/internal/service"
)

const testBusinessID = "00000000-0000-0000-0000-000000000001"

// fakeStore backs the full Store interface plus the service-layer slices, so
// one fixture drives handler, dispatcher, and escalator behavior together.
type fakeStore struct {
	businesses    map[string]models.Business
	technicians   []models.Technician
	calls         map[string]models.Call
	notifications []models.Notification
	deadlines     map[string]models.EscalationDeadline
	nextID        int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		businesses: map[string]models.Business{},
		calls:      map[string]models.Call{},
		deadlines:  map[string]models.EscalationDeadline{},
	}
}

func (f *fakeStore) id(prefix string) string {
	f.nextID++
	return fmt.Sprintf("%s-%d", prefix, f.nextID)
}

func (f *fakeStore) Ping(ctx context.Context) error { return nil }

func (f *fakeStore) CreateBusiness(ctx context.Context, b models.Business) (models.Business, error) {
	b.ID = f.id("biz")
	b.CreatedAt = time.Now().UTC()
	f.businesses[b.ID] = b
	return b, nil
}

func (f *fakeStore) GetBusiness(ctx context.Context, id string) (models.Business, error) {
	b, ok := f.businesses[id]
	if !ok {
		return models.Business{}, pgx.ErrNoRows
	}
	return b, nil
}

func (f *fakeStore) UpdateBusiness(ctx context.Context, b models.Business) (models.Business, error) {
	if _, ok := f.businesses[b.ID]; !ok {
		return models.Business{}, pgx.ErrNoRows
	}
	f.businesses[b.ID] = b
	return b, nil
}

func (f *fakeStore) CreateTechnician(ctx context.Context, t models.Technician) (models.Technician, error) {
	t.ID = f.id("tech")
	t.CreatedAt = time.Now().UTC()
	f.technicians = append(f.technicians, t)
	return t, nil
}

func (f *fakeStore) GetTechnician(ctx context.Context, id string) (models.Technician, error) {
	for _, t := range f.technicians {
		if t.ID == id {
			return t, nil
		}
	}
	return models.Technician{}, pgx.ErrNoRows
}

func (f *fakeStore) ListTechnicians(ctx context.Context, businessID string) ([]models.Technician, error) {
	var out []models.Technician
	for _, t := range f.technicians {
		if t.BusinessID == businessID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (f *fakeStore) OnCallTechnicians(ctx context.Context, businessID string) ([]models.Technician, error) {
	var out []models.Technician
	for _, t := range f.technicians {
		if t.BusinessID == businessID && t.IsOnCall {
			out = append(out, t)
		}
	}
	return out, nil
}

func (f *fakeStore) CreateCall(ctx context.Context, c models.Call) (models.Call, error) {
	c.ID = f.id("call")
	if c.Status == "" {
		c.Status = models.CallReceived
	}
	c.CreatedAt = time.Now().UTC()
	f.calls[c.ID] = c
	return c, nil
}

func (f *fakeStore) GetCall(ctx context.Context, id string) (models.Call, error) {
	c, ok := f.calls[id]
	if !ok {
		return models.Call{}, pgx.ErrNoRows
	}
	return c, nil
}

func (f *fakeStore) GetCallByProviderID(ctx context.Context, providerCallID string) (models.Call, error) {
	for _, c := range f.calls {
		if c.ProviderCallID == providerCallID {
			return c, nil
		}
	}
	return models.Call{}, pgx.ErrNoRows
}

func (f *fakeStore) ListCallsByBusiness(ctx context.Context, businessID string, limit int) ([]models.Call, error) {
	var out []models.Call
	for _, c := range f.calls {
		if c.BusinessID == businessID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeStore) ListCallsByPhone(ctx context.Context, businessID, phone string) ([]models.Call, error) {
	var out []models.Call
	for _, c := range f.calls {
		if c.BusinessID == businessID && c.CustomerPhone == phone {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeStore) UpdateCallStatus(ctx context.Context, callID, status string) error {
	c, ok := f.calls[callID]
	if !ok {
		return pgx.ErrNoRows
	}
	c.Status = status
	f.calls[callID] = c
	return nil
}

func (f *fakeStore) SetCallPriority(ctx context.Context, callID, priority string) error {
	c, ok := f.calls[callID]
	if !ok {
		return pgx.ErrNoRows
	}
	c.PriorityLevel = priority
	f.calls[callID] = c
	return nil
}

func (f *fakeStore) AppendTranscript(ctx context.Context, callID, line string) error {
	c, ok := f.calls[callID]
	if !ok {
		return pgx.ErrNoRows
	}
	c.Transcript += line
	f.calls[callID] = c
	return nil
}

func (f *fakeStore) FinalizeCall(ctx context.Context, callID, transcript, recordingURL string, durationSeconds *int) error {
	c, ok := f.calls[callID]
	if !ok {
		return pgx.ErrNoRows
	}
	c.Status = models.CallCompleted
	c.RecordingURL = recordingURL
	c.DurationSeconds = durationSeconds
	if transcript != "" {
		c.Transcript = transcript
	}
	f.calls[callID] = c
	return nil
}

func (f *fakeStore) MarkDispatched(ctx context.Context, callID, techID string, at time.Time) error {
	c, ok := f.calls[callID]
	if !ok {
		return pgx.ErrNoRows
	}
	c.Status = models.CallDispatched
	c.AssignedTechID = &techID
	c.DispatchedAt = &at
	f.calls[callID] = c
	return nil
}

func (f *fakeStore) MarkAccepted(ctx context.Context, callID string, at time.Time) error {
	c, ok := f.calls[callID]
	if !ok {
		return pgx.ErrNoRows
	}
	c.Status = models.CallAccepted
	c.AcceptedAt = &at
	f.calls[callID] = c
	return nil
}

func (f *fakeStore) MarkEscalated(ctx context.Context, callID string) error {
	c, ok := f.calls[callID]
	if !ok {
		return pgx.ErrNoRows
	}
	c.Status = models.CallEscalated
	f.calls[callID] = c
	return nil
}

func (f *fakeStore) CreateNotification(ctx context.Context, n models.Notification) (models.Notification, error) {
	n.ID = f.id("notif")
	n.SentAt = time.Now().UTC()
	f.notifications = append(f.notifications, n)
	return n, nil
}

func (f *fakeStore) ClaimNotificationTimeout(ctx context.Context, notificationID string) (bool, error) {
	for i, n := range f.notifications {
		if n.ID == notificationID && n.Status == models.NotificationSent {
			f.notifications[i].Status = models.NotificationTimeout
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeStore) ClaimNotificationResponse(ctx context.Context, notificationID, responseText string) (bool, error) {
	for i, n := range f.notifications {
		if n.ID == notificationID && n.Status == models.NotificationSent {
			now := time.Now().UTC()
			f.notifications[i].Status = models.NotificationResponded
			f.notifications[i].ResponseText = responseText
			f.notifications[i].RespondedAt = &now
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeStore) FindPendingByPhone(ctx context.Context, phone string) (models.Notification, error) {
	for i := len(f.notifications) - 1; i >= 0; i-- {
		n := f.notifications[i]
		if n.RecipientPhone == phone && n.Status == models.NotificationSent {
			return n, nil
		}
	}
	return models.Notification{}, pgx.ErrNoRows
}

func (f *fakeStore) ScheduleEscalation(ctx context.Context, d models.EscalationDeadline) error {
	f.deadlines[d.NotificationID] = d
	return nil
}

func (f *fakeStore) DueEscalations(ctx context.Context, now time.Time, limit int) ([]models.EscalationDeadline, error) {
	var due []models.EscalationDeadline
	for _, d := range f.deadlines {
		if !d.DueAt.After(now) {
			due = append(due, d)
		}
	}
	return due, nil
}

func (f *fakeStore) GetEscalation(ctx context.Context, notificationID string) (models.EscalationDeadline, error) {
	d, ok := f.deadlines[notificationID]
	if !ok {
		return models.EscalationDeadline{}, pgx.ErrNoRows
	}
	return d, nil
}

func (f *fakeStore) DeleteEscalation(ctx context.Context, notificationID string) error {
	delete(f.deadlines, notificationID)
	return nil
}

func (f *fakeStore) GetDailyReport(ctx context.Context, businessID, reportDate string) (models.DailyReport, error) {
	return models.DailyReport{}, pgx.ErrNoRows
}

type fakeSender struct {
	sent []struct{ to, body string }
}

func (f *fakeSender) Send(ctx context.Context, to, body string) error {
	f.sent = append(f.sent, struct{ to, body string }{to, body})
	return nil
}

type stubJudge struct{ judgment ai.Judgment }

func (s stubJudge) JudgeTranscript(ctx context.Context, transcript, region string) (ai.Judgment, error) {
	return s.judgment, nil
}

func newTestHandler(judgment ai.Judgment) (*Handler, *fakeStore, *fakeSender) {
	store := newFakeStore()
	sender := &fakeSender{}
	dispatcher := &service.Dispatcher{Store: store, Sender: sender, Logger: zerolog.Nop(), Timeout: 5 * time.Minute}
	escalator := &service.Escalator{Store: store, Sender: sender, Dispatcher: dispatcher, Logger: zerolog.Nop(), Policy: service.PolicySingle}
	h := &Handler{
		Store:             store,
		Classifier:        &service.Classifier{Judge: stubJudge{judgment}, Logger: zerolog.Nop()},
		Dispatcher:        dispatcher,
		Escalator:         escalator,
		Sender:            sender,
		Validator:         validator.New(),
		Logger:            zerolog.Nop(),
		DefaultBusinessID: testBusinessID,
	}
	store.businesses[testBusinessID] = models.Business{
		ID:         testBusinessID,
		Name:       "Bob's HVAC",
		Region:     models.RegionSouth,
		OwnerPhone: "5559999",
	}
	return h, store, sender
}

func webhookRouter(h *Handler) *gin.Engine {
	r := gin.New()
	r.POST("/webhook/telephony", h.TelephonyWebhook)
	r.POST("/webhook/sms", h.SMSWebhook)
	r.POST("/webhook/lookup-customer", h.LookupCustomer)
	r.POST("/webhook/dispatch-emergency", h.DispatchEmergency)
	r.POST("/webhook/check-calendar", h.CheckCalendar)
	return r
}

func postJSON(t *testing.T, r *gin.Engine, path string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	req, _ := http.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestTelephonyRoundTrip(t *testing.T) {
	h, store, _ := newTestHandler(ai.Judgment{Confidence: 0.3})
	r := webhookRouter(h)

	started := map[string]any{
		"type": "call-started",
		"call": map[string]any{
			"id":       "prov-1",
			"customer": map[string]any{"number": "3055551234"},
		},
	}
	if w := postJSON(t, r, "/webhook/telephony", started); w.Code != http.StatusOK {
		t.Fatalf("call-started: %d %s", w.Code, w.Body.String())
	}

	duration := 95
	ended := map[string]any{
		"type": "call-ended",
		"call": map[string]any{
			"id":           "prov-1",
			"transcript":   "Customer: I'd like a quote for a new unit.",
			"recordingUrl": "https://recordings.example/prov-1.mp3",
			"duration":     duration,
		},
	}
	if w := postJSON(t, r, "/webhook/telephony", ended); w.Code != http.StatusOK {
		t.Fatalf("call-ended: %d %s", w.Code, w.Body.String())
	}

	if len(store.calls) != 1 {
		t.Fatalf("expected exactly one call record, got %d", len(store.calls))
	}
	var call models.Call
	for _, c := range store.calls {
		call = c
	}
	if call.Status != models.CallCompleted {
		t.Fatalf("status = %q, want completed", call.Status)
	}
	if call.RecordingURL != "https://recordings.example/prov-1.mp3" {
		t.Fatalf("recording_url = %q", call.RecordingURL)
	}
	if call.DurationSeconds == nil || *call.DurationSeconds != duration {
		t.Fatalf("duration = %v, want %d", call.DurationSeconds, duration)
	}
	if call.PriorityLevel != models.PriorityStandard {
		t.Fatalf("priority = %q, want standard for a quote request", call.PriorityLevel)
	}
}

func TestCallEndedRetroactiveCreate(t *testing.T) {
	h, store, _ := newTestHandler(ai.Judgment{Confidence: 0.3})
	r := webhookRouter(h)

	ended := map[string]any{
		"type": "call-ended",
		"call": map[string]any{
			"id":         "prov-lost-start",
			"customer":   map[string]any{"number": "3055551234"},
			"transcript": "Customer: checking on my appointment.",
		},
	}
	if w := postJSON(t, r, "/webhook/telephony", ended); w.Code != http.StatusOK {
		t.Fatalf("call-ended: %d %s", w.Code, w.Body.String())
	}
	if len(store.calls) != 1 {
		t.Fatalf("expected retroactive call record, got %d", len(store.calls))
	}
	for _, c := range store.calls {
		if c.Status != models.CallCompleted {
			t.Fatalf("status = %q, want completed", c.Status)
		}
	}
}

func TestCallEndedEmergencyDispatches(t *testing.T) {
	h, store, sender := newTestHandler(ai.Judgment{IsEmergency: true, EmergencyType: "gas", Confidence: 0.9})
	store.technicians = append(store.technicians, models.Technician{
		ID: "tech-1", BusinessID: testBusinessID, Name: "Mike Rodriguez", PhoneNumber: "5550001", IsOnCall: true,
	})
	r := webhookRouter(h)

	ended := map[string]any{
		"type": "call-ended",
		"call": map[string]any{
			"id":         "prov-2",
			"customer":   map[string]any{"number": "3055551234"},
			"transcript": "Customer: I smell gas, there's a gas leak in the basement!",
		},
	}
	if w := postJSON(t, r, "/webhook/telephony", ended); w.Code != http.StatusOK {
		t.Fatalf("call-ended: %d %s", w.Code, w.Body.String())
	}

	var call models.Call
	for _, c := range store.calls {
		call = c
	}
	if call.PriorityLevel != models.PriorityEmergency {
		t.Fatalf("priority = %q, want emergency", call.PriorityLevel)
	}
	if call.Status != models.CallDispatched {
		t.Fatalf("status = %q, want dispatched", call.Status)
	}
	if len(sender.sent) != 1 || sender.sent[0].to != "5550001" {
		t.Fatalf("sent = %+v, want one technician alert", sender.sent)
	}
	if len(store.deadlines) != 1 {
		t.Fatalf("expected an armed escalation deadline, got %d", len(store.deadlines))
	}
}

func TestTranscriptAppendsLabeledLines(t *testing.T) {
	h, store, _ := newTestHandler(ai.Judgment{})
	r := webhookRouter(h)

	postJSON(t, r, "/webhook/telephony", map[string]any{
		"type": "call-started",
		"call": map[string]any{"id": "prov-3", "customer": map[string]any{"number": "2125551234"}},
	})
	postJSON(t, r, "/webhook/telephony", map[string]any{
		"type":    "transcript",
		"call":    map[string]any{"id": "prov-3"},
		"message": map[string]any{"role": "user", "transcript": "my furnace is broken"},
	})
	postJSON(t, r, "/webhook/telephony", map[string]any{
		"type":    "transcript",
		"call":    map[string]any{"id": "prov-3"},
		"message": map[string]any{"role": "assistant", "transcript": "I can help with that"},
	})

	call, err := store.GetCallByProviderID(context.Background(), "prov-3")
	if err != nil {
		t.Fatalf("call not found: %v", err)
	}
	if !strings.Contains(call.Transcript, "Customer: my furnace is broken") {
		t.Fatalf("transcript missing customer line:\n%s", call.Transcript)
	}
	if !strings.Contains(call.Transcript, "Agent: I can help with that") {
		t.Fatalf("transcript missing agent line:\n%s", call.Transcript)
	}
}

func TestStatusUpdateMapsProviderTokens(t *testing.T) {
	h, store, _ := newTestHandler(ai.Judgment{})
	r := webhookRouter(h)

	postJSON(t, r, "/webhook/telephony", map[string]any{
		"type": "call-started",
		"call": map[string]any{"id": "prov-4", "customer": map[string]any{"number": "2125551234"}},
	})
	postJSON(t, r, "/webhook/telephony", map[string]any{
		"type":    "status-update",
		"call":    map[string]any{"id": "prov-4"},
		"message": map[string]any{"status": "forwarding"},
	})

	call, _ := store.GetCallByProviderID(context.Background(), "prov-4")
	if call.Status != models.CallInProgress {
		t.Fatalf("status = %q, want in_progress for forwarding", call.Status)
	}
}

func TestLookupCustomer(t *testing.T) {
	h, store, _ := newTestHandler(ai.Judgment{})
	r := webhookRouter(h)

	w := postJSON(t, r, "/webhook/lookup-customer", map[string]any{"phone_number": "3055551234"})
	var resp map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp["is_existing_customer"] != false {
		t.Fatalf("unknown caller: %+v", resp)
	}

	store.calls["call-x"] = models.Call{
		ID: "call-x", BusinessID: testBusinessID,
		CustomerName: "Jane Doe", CustomerPhone: "3055551234", CustomerAddress: "12 Palm St",
		Status: models.CallCompleted,
	}
	w = postJSON(t, r, "/webhook/lookup-customer", map[string]any{"phone_number": "3055551234"})
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp["is_existing_customer"] != true || resp["customer_name"] != "Jane Doe" {
		t.Fatalf("known caller: %+v", resp)
	}
}

func TestDispatchEmergencyToolNoCoverage(t *testing.T) {
	h, store, sender := newTestHandler(ai.Judgment{})
	r := webhookRouter(h)

	w := postJSON(t, r, "/webhook/dispatch-emergency", map[string]any{
		"customer_name": "Jane Doe",
		"address":       "12 Palm St",
		"issue":         "gas leak",
	})
	var resp map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp["success"] != false {
		t.Fatalf("no on-call techs should fail the dispatch: %+v", resp)
	}

	// The gap is not silent: the owner gets the escalation immediately.
	if len(sender.sent) != 1 || sender.sent[0].to != "5559999" {
		t.Fatalf("sent = %+v, want owner escalation", sender.sent)
	}
	for _, c := range store.calls {
		if c.Status != models.CallEscalated {
			t.Fatalf("call status = %q, want escalated", c.Status)
		}
	}
}

func TestDispatchEmergencyTool(t *testing.T) {
	h, store, sender := newTestHandler(ai.Judgment{})
	store.technicians = append(store.technicians, models.Technician{
		ID: "tech-1", BusinessID: testBusinessID, Name: "Mike Rodriguez", PhoneNumber: "5550001", IsOnCall: true,
	})
	r := webhookRouter(h)

	w := postJSON(t, r, "/webhook/dispatch-emergency", map[string]any{
		"customer_name": "Jane Doe",
		"address":       "12 Palm St",
		"issue":         "gas leak",
	})
	var resp map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp["success"] != true || resp["technician_name"] != "Mike Rodriguez" {
		t.Fatalf("dispatch response: %+v", resp)
	}
	if len(sender.sent) != 1 || !strings.Contains(sender.sent[0].body, "EMERGENCY CALL") {
		t.Fatalf("sent = %+v, want emergency alert", sender.sent)
	}
}

func TestCheckCalendar(t *testing.T) {
	h, _, _ := newTestHandler(ai.Judgment{})
	r := webhookRouter(h)

	w := postJSON(t, r, "/webhook/check-calendar", map[string]any{"service_type": "maintenance"})
	var resp map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	slots, ok := resp["available_slots"].([]any)
	if !ok || len(slots) != 3 {
		t.Fatalf("available_slots = %v, want 3 fixed slots", resp["available_slots"])
	}
}

func TestCallLatest(t *testing.T) {
	h, store, _ := newTestHandler(ai.Judgment{})
	r := gin.New()
	r.GET("/api/businesses/:id/calls/latest", h.CallLatest)

	req, _ := http.NewRequest(http.MethodGet, "/api/businesses/"+testBusinessID+"/calls/latest", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Fatalf("no calls yet: expected 404, got %d", w.Code)
	}

	store.calls["call-old"] = models.Call{
		ID: "call-old", BusinessID: testBusinessID, CustomerPhone: "3055551234",
		Status: models.CallCompleted, CreatedAt: time.Now().UTC().Add(-time.Hour),
	}
	store.calls["call-new"] = models.Call{
		ID: "call-new", BusinessID: testBusinessID, CustomerPhone: "3055551234",
		Status: models.CallCompleted, CreatedAt: time.Now().UTC(),
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d %s", w.Code, w.Body.String())
	}
	var call models.Call
	if err := json.Unmarshal(w.Body.Bytes(), &call); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if call.ID != "call-new" {
		t.Fatalf("latest call = %q, want call-new", call.ID)
	}
}

func postForm(t *testing.T, r *gin.Engine, path string, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	req, _ := http.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestSMSAcceptReconciles(t *testing.T) {
	h, store, sender := newTestHandler(ai.Judgment{})
	r := webhookRouter(h)

	techID := "tech-1"
	store.technicians = append(store.technicians, models.Technician{
		ID: techID, BusinessID: testBusinessID, Name: "Mike Rodriguez", PhoneNumber: "5550001", IsOnCall: true,
	})
	now := time.Now().UTC()
	store.calls["call-1"] = models.Call{
		ID: "call-1", BusinessID: testBusinessID,
		CustomerPhone: "3055551234", PriorityLevel: models.PriorityEmergency,
		Status: models.CallDispatched, AssignedTechID: &techID, DispatchedAt: &now,
	}
	n, _ := store.CreateNotification(context.Background(), models.Notification{
		CallID: "call-1", RecipientType: models.RecipientTechnician,
		RecipientPhone: "5550001", Status: models.NotificationSent,
	})
	_ = store.ScheduleEscalation(context.Background(), models.EscalationDeadline{
		NotificationID: n.ID, CallID: "call-1", BusinessID: testBusinessID,
		DueAt: now.Add(5 * time.Minute),
	})

	form := url.Values{}
	form.Set("From", "5550001")
	form.Set("Body", "ACCEPT")
	if w := postForm(t, r, "/webhook/sms", form); w.Code != http.StatusOK {
		t.Fatalf("sms webhook: %d %s", w.Code, w.Body.String())
	}

	call := store.calls["call-1"]
	if call.Status != models.CallAccepted || call.AcceptedAt == nil {
		t.Fatalf("call after accept = %+v", call)
	}
	if store.notifications[0].Status != models.NotificationResponded {
		t.Fatalf("notification status = %q, want responded", store.notifications[0].Status)
	}
	if len(store.deadlines) != 0 {
		t.Fatal("accept must clear the escalation deadline")
	}
	if len(sender.sent) != 1 || sender.sent[0].to != "3055551234" {
		t.Fatalf("sent = %+v, want customer confirmation", sender.sent)
	}
	if !strings.Contains(sender.sent[0].body, "Mike Rodriguez") {
		t.Fatalf("confirmation should name the technician:\n%s", sender.sent[0].body)
	}
}

func TestSMSRejectEscalates(t *testing.T) {
	h, store, sender := newTestHandler(ai.Judgment{})
	r := webhookRouter(h)

	techID := "tech-1"
	now := time.Now().UTC()
	store.calls["call-1"] = models.Call{
		ID: "call-1", BusinessID: testBusinessID,
		CustomerName: "Jane Doe", CustomerPhone: "3055551234",
		PriorityLevel: models.PriorityEmergency,
		Status:        models.CallDispatched, AssignedTechID: &techID, DispatchedAt: &now,
	}
	n, _ := store.CreateNotification(context.Background(), models.Notification{
		CallID: "call-1", RecipientType: models.RecipientTechnician,
		RecipientPhone: "5550001", Status: models.NotificationSent,
	})
	_ = store.ScheduleEscalation(context.Background(), models.EscalationDeadline{
		NotificationID: n.ID, CallID: "call-1", BusinessID: testBusinessID,
		DueAt: now.Add(5 * time.Minute),
	})

	form := url.Values{}
	form.Set("From", "5550001")
	form.Set("Body", "reject")
	if w := postForm(t, r, "/webhook/sms", form); w.Code != http.StatusOK {
		t.Fatalf("sms webhook: %d %s", w.Code, w.Body.String())
	}

	if store.calls["call-1"].Status != models.CallEscalated {
		t.Fatalf("call status = %q, want escalated after reject", store.calls["call-1"].Status)
	}
	if len(sender.sent) != 1 || sender.sent[0].to != "5559999" {
		t.Fatalf("sent = %+v, want owner escalation", sender.sent)
	}
	if len(store.deadlines) != 0 {
		t.Fatal("reject must clear the escalation deadline")
	}
}

func TestSMSUnknownReplyIgnored(t *testing.T) {
	h, store, sender := newTestHandler(ai.Judgment{})
	r := webhookRouter(h)

	form := url.Values{}
	form.Set("From", "5550001")
	form.Set("Body", "call me back")
	if w := postForm(t, r, "/webhook/sms", form); w.Code != http.StatusOK {
		t.Fatalf("sms webhook: %d %s", w.Code, w.Body.String())
	}
	if len(sender.sent) != 0 || len(store.notifications) != 0 {
		t.Fatal("unknown reply must not touch state")
	}
}

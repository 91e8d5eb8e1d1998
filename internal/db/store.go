package db

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hvac_triage/backend/internal/models"
)

type Store struct {
	Pool *pgxpool.Pool
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, err
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &Store{Pool: pool}, nil
}

func (s *Store) Close() {
	s.Pool.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.Pool.Ping(ctx)
}

func (s *Store) WithTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := s.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// Businesses

func (s *Store) CreateBusiness(ctx context.Context, b models.Business) (models.Business, error) {
	if b.ID == "" {
		b.ID = uuid.New().String()
	}
	b.CreatedAt = time.Now().UTC()
	_, err := s.Pool.Exec(ctx, `
		INSERT INTO businesses (id, name, phone_number, region, hours_start, hours_end, owner_name, owner_phone, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`, b.ID, b.Name, b.PhoneNumber, b.Region, b.HoursStart, b.HoursEnd, b.OwnerName, b.OwnerPhone, b.CreatedAt)
	return b, err
}

func (s *Store) GetBusiness(ctx context.Context, id string) (models.Business, error) {
	var b models.Business
	err := s.Pool.QueryRow(ctx, `
		SELECT id, name, phone_number, region, hours_start, hours_end, owner_name, owner_phone, created_at
		FROM businesses WHERE id = $1
	`, id).Scan(&b.ID, &b.Name, &b.PhoneNumber, &b.Region, &b.HoursStart, &b.HoursEnd, &b.OwnerName, &b.OwnerPhone, &b.CreatedAt)
	return b, err
}

func (s *Store) UpdateBusiness(ctx context.Context, b models.Business) (models.Business, error) {
	tag, err := s.Pool.Exec(ctx, `
		UPDATE businesses
		SET name = $1, phone_number = $2, region = $3, hours_start = $4, hours_end = $5, owner_name = $6, owner_phone = $7
		WHERE id = $8
	`, b.Name, b.PhoneNumber, b.Region, b.HoursStart, b.HoursEnd, b.OwnerName, b.OwnerPhone, b.ID)
	if err != nil {
		return models.Business{}, err
	}
	if tag.RowsAffected() == 0 {
		return models.Business{}, pgx.ErrNoRows
	}
	return s.GetBusiness(ctx, b.ID)
}

func (s *Store) ListBusinesses(ctx context.Context) ([]models.Business, error) {
	rows, err := s.Pool.Query(ctx, `
		SELECT id, name, phone_number, region, hours_start, hours_end, owner_name, owner_phone, created_at
		FROM businesses ORDER BY created_at ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Business
	for rows.Next() {
		var b models.Business
		if err := rows.Scan(&b.ID, &b.Name, &b.PhoneNumber, &b.Region, &b.HoursStart, &b.HoursEnd, &b.OwnerName, &b.OwnerPhone, &b.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// Technicians

func (s *Store) CreateTechnician(ctx context.Context, t models.Technician) (models.Technician, error) {
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	t.CreatedAt = time.Now().UTC()
	_, err := s.Pool.Exec(ctx, `
		INSERT INTO technicians (id, business_id, name, phone_number, email, is_on_call, priority_order, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, t.ID, t.BusinessID, t.Name, t.PhoneNumber, t.Email, t.IsOnCall, t.PriorityOrder, t.CreatedAt)
	return t, err
}

// OnCallTechnicians returns the dispatch roster ordered by priority, ties
// broken by insertion order.
func (s *Store) OnCallTechnicians(ctx context.Context, businessID string) ([]models.Technician, error) {
	rows, err := s.Pool.Query(ctx, `
		SELECT id, business_id, name, phone_number, email, is_on_call, priority_order, created_at
		FROM technicians
		WHERE business_id = $1 AND is_on_call
		ORDER BY priority_order ASC, created_at ASC
	`, businessID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTechnicians(rows)
}

func (s *Store) ListTechnicians(ctx context.Context, businessID string) ([]models.Technician, error) {
	rows, err := s.Pool.Query(ctx, `
		SELECT id, business_id, name, phone_number, email, is_on_call, priority_order, created_at
		FROM technicians
		WHERE business_id = $1
		ORDER BY priority_order ASC, created_at ASC
	`, businessID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTechnicians(rows)
}

func (s *Store) GetTechnician(ctx context.Context, id string) (models.Technician, error) {
	var t models.Technician
	err := s.Pool.QueryRow(ctx, `
		SELECT id, business_id, name, phone_number, email, is_on_call, priority_order, created_at
		FROM technicians WHERE id = $1
	`, id).Scan(&t.ID, &t.BusinessID, &t.Name, &t.PhoneNumber, &t.Email, &t.IsOnCall, &t.PriorityOrder, &t.CreatedAt)
	return t, err
}

func scanTechnicians(rows pgx.Rows) ([]models.Technician, error) {
	var out []models.Technician
	for rows.Next() {
		var t models.Technician
		if err := rows.Scan(&t.ID, &t.BusinessID, &t.Name, &t.PhoneNumber, &t.Email, &t.IsOnCall, &t.PriorityOrder, &t.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// Calls

const callColumns = `id, business_id, provider_call_id, customer_name, customer_phone, customer_address,
	issue_description, transcript, priority_level, status, assigned_tech_id, recording_url,
	duration_seconds, created_at, dispatched_at, accepted_at`

func scanCall(row pgx.Row) (models.Call, error) {
	var c models.Call
	err := row.Scan(&c.ID, &c.BusinessID, &c.ProviderCallID, &c.CustomerName, &c.CustomerPhone,
		&c.CustomerAddress, &c.IssueDescription, &c.Transcript, &c.PriorityLevel, &c.Status,
		&c.AssignedTechID, &c.RecordingURL, &c.DurationSeconds, &c.CreatedAt, &c.DispatchedAt, &c.AcceptedAt)
	return c, err
}

func (s *Store) CreateCall(ctx context.Context, c models.Call) (models.Call, error) {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	if c.Status == "" {
		c.Status = models.CallReceived
	}
	c.CreatedAt = time.Now().UTC()
	_, err := s.Pool.Exec(ctx, `
		INSERT INTO calls (id, business_id, provider_call_id, customer_name, customer_phone, customer_address,
			issue_description, transcript, priority_level, status, assigned_tech_id, recording_url,
			duration_seconds, created_at, dispatched_at, accepted_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)
	`, c.ID, c.BusinessID, c.ProviderCallID, c.CustomerName, c.CustomerPhone, c.CustomerAddress,
		c.IssueDescription, c.Transcript, c.PriorityLevel, c.Status, c.AssignedTechID, c.RecordingURL,
		c.DurationSeconds, c.CreatedAt, c.DispatchedAt, c.AcceptedAt)
	return c, err
}

func (s *Store) GetCall(ctx context.Context, id string) (models.Call, error) {
	return scanCall(s.Pool.QueryRow(ctx, `SELECT `+callColumns+` FROM calls WHERE id = $1`, id))
}

func (s *Store) GetCallByProviderID(ctx context.Context, providerCallID string) (models.Call, error) {
	return scanCall(s.Pool.QueryRow(ctx, `
		SELECT `+callColumns+` FROM calls WHERE provider_call_id = $1 ORDER BY created_at DESC LIMIT 1
	`, providerCallID))
}

func (s *Store) ListCallsByBusiness(ctx context.Context, businessID string, limit int) ([]models.Call, error) {
	if limit <= 0 || limit > 1000 {
		limit = 50
	}
	rows, err := s.Pool.Query(ctx, `
		SELECT `+callColumns+` FROM calls
		WHERE business_id = $1 ORDER BY created_at DESC LIMIT $2
	`, businessID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanCalls(rows)
}

// ListCallsByPhone finds prior calls from a customer, most recent first.
func (s *Store) ListCallsByPhone(ctx context.Context, businessID, phone string) ([]models.Call, error) {
	rows, err := s.Pool.Query(ctx, `
		SELECT `+callColumns+` FROM calls
		WHERE business_id = $1 AND customer_phone = $2 ORDER BY created_at DESC
	`, businessID, phone)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanCalls(rows)
}

func (s *Store) ListCallsForDay(ctx context.Context, businessID string, day time.Time) ([]models.Call, error) {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	end := start.Add(24 * time.Hour)
	rows, err := s.Pool.Query(ctx, `
		SELECT `+callColumns+` FROM calls
		WHERE business_id = $1 AND created_at >= $2 AND created_at < $3
		ORDER BY created_at ASC
	`, businessID, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanCalls(rows)
}

func scanCalls(rows pgx.Rows) ([]models.Call, error) {
	var out []models.Call
	for rows.Next() {
		c, err := scanCall(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *Store) UpdateCallStatus(ctx context.Context, callID, status string) error {
	_, err := s.Pool.Exec(ctx, `UPDATE calls SET status = $1 WHERE id = $2`, status, callID)
	return err
}

func (s *Store) SetCallPriority(ctx context.Context, callID, priority string) error {
	_, err := s.Pool.Exec(ctx, `UPDATE calls SET priority_level = $1 WHERE id = $2`, priority, callID)
	return err
}

func (s *Store) AppendTranscript(ctx context.Context, callID, line string) error {
	_, err := s.Pool.Exec(ctx, `UPDATE calls SET transcript = transcript || $1 WHERE id = $2`, line, callID)
	return err
}

// FinalizeCall records the end-of-call payload.
func (s *Store) FinalizeCall(ctx context.Context, callID, transcript, recordingURL string, durationSeconds *int) error {
	if transcript != "" {
		_, err := s.Pool.Exec(ctx, `
			UPDATE calls SET status = $1, transcript = $2, recording_url = $3, duration_seconds = $4 WHERE id = $5
		`, models.CallCompleted, transcript, recordingURL, durationSeconds, callID)
		return err
	}
	_, err := s.Pool.Exec(ctx, `
		UPDATE calls SET status = $1, recording_url = $2, duration_seconds = $3 WHERE id = $4
	`, models.CallCompleted, recordingURL, durationSeconds, callID)
	return err
}

func (s *Store) MarkDispatched(ctx context.Context, callID, techID string, at time.Time) error {
	_, err := s.Pool.Exec(ctx, `
		UPDATE calls SET status = $1, assigned_tech_id = $2, dispatched_at = $3 WHERE id = $4
	`, models.CallDispatched, techID, at, callID)
	return err
}

func (s *Store) MarkAccepted(ctx context.Context, callID string, at time.Time) error {
	_, err := s.Pool.Exec(ctx, `
		UPDATE calls SET status = $1, accepted_at = $2 WHERE id = $3
	`, models.CallAccepted, at, callID)
	return err
}

func (s *Store) MarkEscalated(ctx context.Context, callID string) error {
	return s.UpdateCallStatus(ctx, callID, models.CallEscalated)
}

// Notifications

func (s *Store) CreateNotification(ctx context.Context, n models.Notification) (models.Notification, error) {
	if n.ID == "" {
		n.ID = uuid.New().String()
	}
	if n.Status == "" {
		n.Status = models.NotificationSent
	}
	n.SentAt = time.Now().UTC()
	_, err := s.Pool.Exec(ctx, `
		INSERT INTO notifications (id, call_id, recipient_type, recipient_phone, message, status, sent_at, responded_at, response_text)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`, n.ID, n.CallID, n.RecipientType, n.RecipientPhone, n.Message, n.Status, n.SentAt, n.RespondedAt, n.ResponseText)
	return n, err
}

// ClaimNotificationTimeout flips a still-pending notification to timeout.
// The conditional update is the escalation guard: it succeeds for exactly
// one of a racing accept and timeout.
func (s *Store) ClaimNotificationTimeout(ctx context.Context, notificationID string) (bool, error) {
	tag, err := s.Pool.Exec(ctx, `
		UPDATE notifications SET status = $1 WHERE id = $2 AND status = $3
	`, models.NotificationTimeout, notificationID, models.NotificationSent)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// ClaimNotificationResponse flips a still-pending notification to responded,
// recording the reply text. Same conditional-claim shape as the timeout path.
func (s *Store) ClaimNotificationResponse(ctx context.Context, notificationID, responseText string) (bool, error) {
	tag, err := s.Pool.Exec(ctx, `
		UPDATE notifications SET status = $1, responded_at = $2, response_text = $3 WHERE id = $4 AND status = $5
	`, models.NotificationResponded, time.Now().UTC(), responseText, notificationID, models.NotificationSent)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// FindPendingByPhone locates the open technician notification for an
// inbound SMS sender, newest first.
func (s *Store) FindPendingByPhone(ctx context.Context, phone string) (models.Notification, error) {
	var n models.Notification
	err := s.Pool.QueryRow(ctx, `
		SELECT id, call_id, recipient_type, recipient_phone, message, status, sent_at, responded_at, response_text
		FROM notifications
		WHERE recipient_phone = $1 AND status = $2
		ORDER BY sent_at DESC LIMIT 1
	`, phone, models.NotificationSent).Scan(&n.ID, &n.CallID, &n.RecipientType, &n.RecipientPhone,
		&n.Message, &n.Status, &n.SentAt, &n.RespondedAt, &n.ResponseText)
	return n, err
}

// Escalation deadlines

func (s *Store) ScheduleEscalation(ctx context.Context, d models.EscalationDeadline) error {
	_, err := s.Pool.Exec(ctx, `
		INSERT INTO escalation_deadlines (notification_id, call_id, business_id, due_at, attempt)
		VALUES ($1,$2,$3,$4,$5)
		ON CONFLICT (notification_id) DO UPDATE SET due_at = EXCLUDED.due_at, attempt = EXCLUDED.attempt
	`, d.NotificationID, d.CallID, d.BusinessID, d.DueAt, d.Attempt)
	return err
}

func (s *Store) DueEscalations(ctx context.Context, now time.Time, limit int) ([]models.EscalationDeadline, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.Pool.Query(ctx, `
		SELECT notification_id, call_id, business_id, due_at, attempt
		FROM escalation_deadlines
		WHERE due_at <= $1
		ORDER BY due_at ASC LIMIT $2
	`, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.EscalationDeadline
	for rows.Next() {
		var d models.EscalationDeadline
		if err := rows.Scan(&d.NotificationID, &d.CallID, &d.BusinessID, &d.DueAt, &d.Attempt); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *Store) GetEscalation(ctx context.Context, notificationID string) (models.EscalationDeadline, error) {
	var d models.EscalationDeadline
	err := s.Pool.QueryRow(ctx, `
		SELECT notification_id, call_id, business_id, due_at, attempt
		FROM escalation_deadlines WHERE notification_id = $1
	`, notificationID).Scan(&d.NotificationID, &d.CallID, &d.BusinessID, &d.DueAt, &d.Attempt)
	return d, err
}

func (s *Store) DeleteEscalation(ctx context.Context, notificationID string) error {
	_, err := s.Pool.Exec(ctx, `DELETE FROM escalation_deadlines WHERE notification_id = $1`, notificationID)
	return err
}

// Daily reports

func (s *Store) UpsertDailyReport(ctx context.Context, r models.DailyReport) (models.DailyReport, error) {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	r.CreatedAt = time.Now().UTC()
	_, err := s.Pool.Exec(ctx, `
		INSERT INTO daily_reports (id, business_id, report_date, total_calls, emergency_calls, standard_calls,
			missed_calls, avg_response_time_seconds, report_data, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		ON CONFLICT (business_id, report_date) DO UPDATE SET
			total_calls = EXCLUDED.total_calls,
			emergency_calls = EXCLUDED.emergency_calls,
			standard_calls = EXCLUDED.standard_calls,
			missed_calls = EXCLUDED.missed_calls,
			avg_response_time_seconds = EXCLUDED.avg_response_time_seconds,
			report_data = EXCLUDED.report_data,
			created_at = EXCLUDED.created_at
	`, r.ID, r.BusinessID, r.ReportDate, r.TotalCalls, r.EmergencyCalls, r.StandardCalls,
		r.MissedCalls, r.AvgResponseTimeSeconds, r.ReportData, r.CreatedAt)
	return r, err
}

func (s *Store) GetDailyReport(ctx context.Context, businessID, reportDate string) (models.DailyReport, error) {
	var r models.DailyReport
	err := s.Pool.QueryRow(ctx, `
		SELECT id, business_id, report_date, total_calls, emergency_calls, standard_calls,
			missed_calls, avg_response_time_seconds, report_data, created_at
		FROM daily_reports WHERE business_id = $1 AND report_date = $2
	`, businessID, reportDate).Scan(&r.ID, &r.BusinessID, &r.ReportDate, &r.TotalCalls, &r.EmergencyCalls,
		&r.StandardCalls, &r.MissedCalls, &r.AvgResponseTimeSeconds, &r.ReportData, &r.CreatedAt)
	return r, err
}

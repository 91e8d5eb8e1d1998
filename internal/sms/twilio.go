package sms

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// TwilioSender posts to the Twilio Messages API.
type TwilioSender struct {
	AccountSID string
	AuthToken  string
	From       string
	Client     *http.Client
}

func (t TwilioSender) Send(ctx context.Context, to, body string) error {
	client := t.Client
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}

	form := url.Values{}
	form.Set("To", to)
	form.Set("From", t.From)
	form.Set("Body", body)

	endpoint := fmt.Sprintf("https://api.twilio.com/2010-04-01/Accounts/%s/Messages.json", t.AccountSID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(t.AccountSID, t.AuthToken)

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("sms gateway error: %s", resp.Status)
	}
	return nil
}

// LogSender records outbound messages without delivering them. Used when no
// gateway credentials are configured.
type LogSender struct {
	Logger zerolog.Logger
}

func (l LogSender) Send(ctx context.Context, to, body string) error {
	l.Logger.Info().Str("to", to).Str("body", body).Msg("sms (log only)")
	return nil
}

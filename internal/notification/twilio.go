package notification

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/fuomag9/checkpulse/internal/config"
)

const (
	twilioPhoneLength  = 10
	twilioMaxBodyChars = 1600
)

// TwilioProvider sends alerts as SMS through the Twilio REST API
type TwilioProvider struct {
	client *http.Client
}

func init() {
	RegisterProvider(&TwilioProvider{client: &http.Client{Timeout: 10 * time.Second}})
}

func (t *TwilioProvider) Name() string {
	return "twilio"
}

func (t *TwilioProvider) Send(ctx context.Context, cfg *config.NotificationConfig, msg *Message) error {
	phone := strings.TrimSpace(msg.Recipient)
	if len(phone) != twilioPhoneLength {
		return fmt.Errorf("recipient must be a %d digit phone number", twilioPhoneLength)
	}
	body := strings.TrimSpace(msg.Body)
	if n := utf8.RuneCountInString(body); n == 0 || n > twilioMaxBodyChars {
		return fmt.Errorf("message must be between 1 and %d characters", twilioMaxBodyChars)
	}

	tw := cfg.Twilio
	form := url.Values{}
	form.Set("From", tw.FromPhone)
	form.Set("To", "+1"+phone)
	form.Set("Body", body)

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json",
		strings.TrimRight(tw.BaseURL, "/"), url.PathEscape(tw.AccountSID))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(tw.AccountSID, tw.AuthToken)

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send sms: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("twilio returned status %d", resp.StatusCode)
	}

	return nil
}

func (t *TwilioProvider) Validate(cfg *config.NotificationConfig) error {
	tw := cfg.Twilio
	if tw.AccountSID == "" || tw.AuthToken == "" || tw.FromPhone == "" {
		return fmt.Errorf("account sid, auth token and from phone are required")
	}
	if tw.BaseURL == "" {
		return fmt.Errorf("base url is required")
	}
	return nil
}

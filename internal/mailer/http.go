package mailer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/go-authgate/accountgate/internal/core"

	retry "github.com/appleboy/go-httpretry"
)

var _ core.Mailer = (*HTTPMailer)(nil)

type sendRequest struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Subject string `json:"subject"`
	Text    string `json:"text"`
	Tag     string `json:"tag,omitempty"`
}

// HTTPMailer posts rendered messages to a transactional email API. Retries
// and authentication are handled by the retry client.
type HTTPMailer struct {
	retryClient *retry.Client
	apiURL      string
	from        string
}

func NewHTTPMailer(retryClient *retry.Client, apiURL, from string) *HTTPMailer {
	return &HTTPMailer{
		retryClient: retryClient,
		apiURL:      apiURL,
		from:        from,
	}
}

func (m *HTTPMailer) Send(ctx context.Context, mail core.Mail) error {
	subject, text, err := Render(mail)
	if err != nil {
		return err
	}

	payload, err := json.Marshal(sendRequest{
		From:    m.from,
		To:      mail.To,
		Subject: subject,
		Text:    text,
		Tag:     string(mail.Kind),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal mail: %w", err)
	}

	resp, err := m.retryClient.Post(
		ctx,
		m.apiURL,
		retry.WithBody("application/json", bytes.NewBuffer(payload)),
	)
	if err != nil {
		return fmt.Errorf("failed to send mail: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("mail API returned %s: %s", resp.Status, string(body))
	}
	return nil
}

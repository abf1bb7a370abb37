package sms

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dolphin-iot/dolphin-core/internal/infrastructure/config"
	"github.com/dolphin-iot/dolphin-core/internal/infrastructure/logging"
)

// defaultHTTPTimeout bounds individual SENS API calls.
const defaultHTTPTimeout = 15 * time.Second

// NCPClient sends SMS through the Naver Cloud Platform SENS API.
//
// Every request is signed with the account's secret key. After a message
// is accepted the client polls the request status until the carrier
// reports COMPLETED, bounded by MaxPollAttempts so a stuck message cannot
// pin an alert worker forever.
type NCPClient struct {
	cfg        config.NCPSMSConfig
	httpClient *http.Client
	logger     *logging.Logger
}

// NewNCPClient creates a SENS SMS client.
func NewNCPClient(cfg config.NCPSMSConfig, logger *logging.Logger) *NCPClient {
	return &NCPClient{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: defaultHTTPTimeout},
		logger:     logger.With("component", "sms", "provider", "ncp"),
	}
}

// sendResponse is the body returned for an accepted send request.
type sendResponse struct {
	RequestID   string `json:"requestId"`
	RequestTime string `json:"requestTime"`
	StatusCode  string `json:"statusCode"`
	StatusName  string `json:"statusName"`
}

// apiError is the error envelope the API gateway returns on failures.
type apiError struct {
	Error struct {
		ErrorCode string `json:"errorCode"`
		Message   string `json:"message"`
		Details   string `json:"details"`
	} `json:"error"`
}

// messageList is the body of a request-status query.
type messageList struct {
	StatusCode string    `json:"statusCode"`
	StatusName string    `json:"statusName"`
	Messages   []Message `json:"messages"`
	ItemCount  int       `json:"itemCount"`
}

// Message is one delivery record from the SENS request-status API.
type Message struct {
	RequestID    string `json:"requestId"`
	MessageID    string `json:"messageId"`
	RequestTime  string `json:"requestTime"`
	ContentType  string `json:"contentType"`
	CountryCode  string `json:"countryCode"`
	From         string `json:"from"`
	To           string `json:"to"`
	Status       string `json:"status"`
	StatusCode   string `json:"statusCode"`
	StatusName   string `json:"statusName"`
	CompleteTime string `json:"completeTime"`
	TelcoCode    string `json:"telcoCode"`
}

// TelcoName maps carrier codes to their customer-facing names.
func (m Message) TelcoName() string {
	switch m.TelcoCode {
	case "KTF":
		return "KT"
	case "LGT":
		return "U+"
	default:
		return m.TelcoCode
	}
}

// Recipient formats the delivered-to number for logging, e.g.
// "SKT +82 10-1234-5678".
func (m Message) Recipient() string {
	var b strings.Builder
	for i, c := range strings.TrimPrefix(m.To, "0") {
		if i == 2 || i == 6 {
			b.WriteByte('-')
		}
		b.WriteRune(c)
	}
	return fmt.Sprintf("%s +%s %s", m.TelcoName(), m.CountryCode, b.String())
}

// Send submits one SMS and waits for carrier completion.
//
// A rejected request is an error; an accepted request whose delivery never
// reaches COMPLETED within the poll budget is logged and treated as sent,
// because the API has taken responsibility for it.
func (c *NCPClient) Send(ctx context.Context, to, message string) error {
	uri := fmt.Sprintf("/sms/v2/services/%s/messages", c.cfg.ServiceID)

	payload := map[string]any{
		"type":        "SMS",
		"countryCode": "82",
		"from":        c.cfg.From,
		"content":     message,
		"messages":    []map[string]string{{"to": to}},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encoding sms request: %w", err)
	}

	respBody, err := c.do(ctx, http.MethodPost, uri, bytes.NewReader(body))
	if err != nil {
		return err
	}

	var accepted sendResponse
	if err := json.Unmarshal(respBody, &accepted); err == nil &&
		accepted.StatusCode == "202" && accepted.StatusName == "success" {
		return c.awaitCompletion(ctx, accepted.RequestID)
	}

	var apiErr apiError
	if err := json.Unmarshal(respBody, &apiErr); err == nil && apiErr.Error.ErrorCode != "" {
		return fmt.Errorf("sms rejected: %s - %s (%s)",
			apiErr.Error.ErrorCode, apiErr.Error.Message, apiErr.Error.Details)
	}
	return fmt.Errorf("sms rejected: unexpected response %q", respBody)
}

// awaitCompletion polls the request status until the carrier reports
// COMPLETED or the poll budget runs out.
func (c *NCPClient) awaitCompletion(ctx context.Context, requestID string) error {
	interval := time.Duration(c.cfg.PollInterval) * time.Second
	for attempt := 0; attempt < c.cfg.MaxPollAttempts; attempt++ {
		msg, err := c.messageStatus(ctx, requestID)
		if err != nil {
			return err
		}
		if msg != nil && msg.Status == "COMPLETED" {
			c.logger.Info("sms delivered",
				"message_id", msg.MessageID,
				"to", msg.Recipient(),
				"complete_time", msg.CompleteTime)
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}
	}

	c.logger.Warn("sms accepted but completion not observed", "request_id", requestID)
	return nil
}

// messageStatus fetches the first delivery record for a request id.
func (c *NCPClient) messageStatus(ctx context.Context, requestID string) (*Message, error) {
	uri := fmt.Sprintf("/sms/v2/services/%s/messages?requestId=%s", c.cfg.ServiceID, requestID)

	respBody, err := c.do(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return nil, err
	}

	var list messageList
	if err := json.Unmarshal(respBody, &list); err != nil {
		return nil, fmt.Errorf("decoding sms status: %w", err)
	}
	if list.StatusCode != "202" || list.StatusName != "success" || len(list.Messages) == 0 {
		return nil, nil
	}
	return &list.Messages[0], nil
}

// do performs one signed API call and returns the raw response body.
// The signature covers the URI including any query string.
func (c *NCPClient) do(ctx context.Context, method, uri string, body io.Reader) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.cfg.Endpoint+uri, body)
	if err != nil {
		return nil, fmt.Errorf("building sms request: %w", err)
	}

	timestamp := Timestamp()
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-ncp-apigw-timestamp", timestamp)
	req.Header.Set("x-ncp-iam-access-key", c.cfg.AccessKey)
	req.Header.Set("x-ncp-apigw-signature-v2",
		Signature(method, uri, timestamp, c.cfg.AccessKey, c.cfg.SecretKey))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling sms api: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading sms response: %w", err)
	}
	return respBody, nil
}

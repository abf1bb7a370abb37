package sms

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dolphin-iot/dolphin-core/internal/infrastructure/config"
	"github.com/dolphin-iot/dolphin-core/internal/infrastructure/logging"
)

// tokenSlack renews the access token this long before its actual expiry,
// so an in-flight send never races the expiration.
const tokenSlack = time.Minute

// BizClient sends SMS through the Bizppurio message API.
//
// Authentication is a two-step flow: the account id and secret exchange
// for a bearer token, which is cached until shortly before expiry.
type BizClient struct {
	cfg        config.BizSMSConfig
	httpClient *http.Client
	logger     *logging.Logger

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time
}

// NewBizClient creates a Bizppurio SMS client.
func NewBizClient(cfg config.BizSMSConfig, logger *logging.Logger) *BizClient {
	return &BizClient{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: defaultHTTPTimeout},
		logger:     logger.With("component", "sms", "provider", "biz"),
	}
}

type bizTokenResponse struct {
	AccessToken string `json:"accesstoken"`
	Type        string `json:"type"`
	Expired     string `json:"expired"`
}

type bizSendResponse struct {
	Code        string `json:"code"`
	Description string `json:"description"`
	RefKey      string `json:"refkey"`
}

// Send submits one SMS. The refkey ties our send to the provider's
// delivery records for later reconciliation.
func (c *BizClient) Send(ctx context.Context, to, message string) error {
	token, err := c.accessToken(ctx)
	if err != nil {
		return err
	}

	refKey := uuid.NewString()
	payload := map[string]any{
		"account": c.cfg.AccountID,
		"type":    "sms",
		"from":    c.cfg.From,
		"to":      to,
		"content": map[string]any{
			"sms": map[string]string{"message": message},
		},
		"refkey": refKey,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encoding sms request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.cfg.Endpoint+"/v3/message", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building sms request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("calling sms api: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading sms response: %w", err)
	}

	var sent bizSendResponse
	if err := json.Unmarshal(respBody, &sent); err != nil {
		return fmt.Errorf("decoding sms response: %w", err)
	}
	if sent.Code != "1000" {
		return fmt.Errorf("sms rejected: %s - %s", sent.Code, sent.Description)
	}

	c.logger.Info("sms accepted", "to", to, "refkey", refKey)
	return nil
}

// accessToken returns a valid bearer token, exchanging credentials when
// the cached one is missing or near expiry.
func (c *BizClient) accessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && time.Now().Before(c.tokenExpiry.Add(-tokenSlack)) {
		return c.token, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.cfg.Endpoint+"/v1/token", nil)
	if err != nil {
		return "", fmt.Errorf("building token request: %w", err)
	}
	creds := base64.StdEncoding.EncodeToString(
		[]byte(c.cfg.AccountID + ":" + c.cfg.SecretKey))
	req.Header.Set("Authorization", "Basic "+creds)
	req.Header.Set("Content-Type", "application/json; charset=utf-8")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("requesting token: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("token request failed: %s", resp.Status)
	}

	var tok bizTokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tok); err != nil {
		return "", fmt.Errorf("decoding token response: %w", err)
	}
	if tok.AccessToken == "" {
		return "", fmt.Errorf("token response missing access token")
	}

	ttl := 24 * time.Hour
	if secs, err := strconv.Atoi(tok.Expired); err == nil && secs > 0 {
		ttl = time.Duration(secs) * time.Second
	}

	c.token = tok.AccessToken
	c.tokenExpiry = time.Now().Add(ttl)
	return c.token, nil
}

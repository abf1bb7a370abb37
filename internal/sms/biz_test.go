package sms

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/dolphin-iot/dolphin-core/internal/infrastructure/config"
	"github.com/dolphin-iot/dolphin-core/internal/infrastructure/logging"
)

func bizTestServer(t *testing.T, tokenCalls *int, code string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/token":
			*tokenCalls++
			if !strings.HasPrefix(r.Header.Get("Authorization"), "Basic ") {
				t.Error("token request missing basic auth")
			}
			json.NewEncoder(w).Encode(map[string]string{
				"accesstoken": "tok-1",
				"type":        "Bearer",
				"expired":     "86400",
			})
		case "/v3/message":
			if r.Header.Get("Authorization") != "Bearer tok-1" {
				t.Errorf("message auth = %q", r.Header.Get("Authorization"))
			}
			var body map[string]any
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				t.Errorf("decoding message body: %v", err)
			}
			if body["type"] != "sms" || body["to"] != "01012345678" {
				t.Errorf("message body = %v", body)
			}
			if body["refkey"] == "" {
				t.Error("message body missing refkey")
			}
			json.NewEncoder(w).Encode(map[string]string{
				"code":        code,
				"description": "desc",
			})
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
}

func TestBizSend(t *testing.T) {
	tokenCalls := 0
	server := bizTestServer(t, &tokenCalls, "1000")
	defer server.Close()

	client := NewBizClient(config.BizSMSConfig{
		Endpoint:  server.URL,
		AccountID: "acct",
		SecretKey: "secret",
		From:      "0415889816",
	}, logging.Default())

	if err := client.Send(context.Background(), "01012345678", "테스트"); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if err := client.Send(context.Background(), "01012345678", "다시"); err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	// The token exchange happens once; subsequent sends reuse it.
	if tokenCalls != 1 {
		t.Errorf("token exchanged %d times, want 1", tokenCalls)
	}
}

func TestBizSend_Rejected(t *testing.T) {
	tokenCalls := 0
	server := bizTestServer(t, &tokenCalls, "3000")
	defer server.Close()

	client := NewBizClient(config.BizSMSConfig{
		Endpoint:  server.URL,
		AccountID: "acct",
		SecretKey: "secret",
		From:      "0415889816",
	}, logging.Default())

	if err := client.Send(context.Background(), "01012345678", "x"); err == nil {
		t.Error("Send() should fail on non-1000 code")
	}
}

func TestNewSender(t *testing.T) {
	log := logging.Default()

	if s, err := NewSender(config.SMSConfig{Provider: "ncp"}, log); err != nil || s == nil {
		t.Errorf("NewSender(ncp) = (%v, %v)", s, err)
	}
	if s, err := NewSender(config.SMSConfig{Provider: "biz"}, log); err != nil || s == nil {
		t.Errorf("NewSender(biz) = (%v, %v)", s, err)
	}
	if _, err := NewSender(config.SMSConfig{Provider: "carrier-pigeon"}, log); err == nil {
		t.Error("NewSender should reject unknown providers")
	}
}

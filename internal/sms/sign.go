package sms

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strconv"
	"time"
)

// Timestamp returns the current time in Unix milliseconds, as the API
// gateway expects it.
func Timestamp() string {
	return strconv.FormatInt(time.Now().UnixMilli(), 10)
}

// Signature computes the NCP API-gateway request signature: HMAC-SHA256
// over "{METHOD} {URI}\n{timestamp}\n{access_key}", base64 encoded.
// The URI must include the query string when present.
func Signature(method, uri, timestamp, accessKey, secretKey string) string {
	mac := hmac.New(sha256.New, []byte(secretKey))
	fmt.Fprintf(mac, "%s %s\n%s\n%s", method, uri, timestamp, accessKey)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"courier-booking/pkg/apperror"
)

// DefaultWebhookTolerance bounds the age of a signed webhook.
const DefaultWebhookTolerance = 5 * time.Minute

// SignPayload produces a "t=<unix>,v1=<hex hmac>" header value over
// "<unix>.<payload>".
func SignPayload(payload []byte, secret string, at time.Time) string {
	ts := strconv.FormatInt(at.Unix(), 10)
	return fmt.Sprintf("t=%s,v1=%s", ts, computeSignature(ts, payload, secret))
}

func computeSignature(ts string, payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(ts))
	mac.Write([]byte("."))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks a header produced by SignPayload.
func VerifySignature(payload []byte, header, secret string, now time.Time, tolerance time.Duration) error {
	var ts string
	var signatures []string
	for _, part := range strings.Split(header, ",") {
		key, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch key {
		case "t":
			ts = value
		case "v1":
			signatures = append(signatures, value)
		}
	}
	if ts == "" || len(signatures) == 0 {
		return apperror.New(apperror.CodeUnauthorized, "malformed webhook signature")
	}

	unix, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return apperror.New(apperror.CodeUnauthorized, "malformed webhook timestamp")
	}
	if tolerance > 0 && now.Sub(time.Unix(unix, 0)).Abs() > tolerance {
		return apperror.New(apperror.CodeUnauthorized, "webhook timestamp outside tolerance")
	}

	expected := computeSignature(ts, payload, secret)
	for _, sig := range signatures {
		if hmac.Equal([]byte(sig), []byte(expected)) {
			return nil
		}
	}
	return apperror.New(apperror.CodeUnauthorized, "webhook signature mismatch")
}

// internal/billing/signature.go
package billing

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrSignatureInvalid is returned when a webhook payload fails
// verification. The handler maps it to 401 without touching any state.
var ErrSignatureInvalid = errors.New("webhook signature invalid")

// DefaultTolerance bounds how stale a signed timestamp may be.
const DefaultTolerance = 5 * time.Minute

// ComputeSignature produces the signature header for a payload:
// "t=<unix>,v1=<hex hmac-sha256 of '<unix>.<payload>'>".
func ComputeSignature(secret string, timestamp time.Time, payload []byte) string {
	ts := timestamp.Unix()
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.", ts)
	mac.Write(payload)
	return fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}

// Verifier checks provider signatures against a shared secret.
type Verifier struct {
	secret    string
	tolerance time.Duration
	now       func() time.Time
}

func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: secret, tolerance: DefaultTolerance, now: time.Now}
}

// Verify checks the signature header against the raw payload. A header
// may carry several v1 candidates after a secret rotation; any match
// passes.
func (v *Verifier) Verify(header string, payload []byte) error {
	ts, candidates, err := parseHeader(header)
	if err != nil {
		return ErrSignatureInvalid
	}

	age := v.now().Sub(time.Unix(ts, 0))
	if age > v.tolerance || age < -v.tolerance {
		return ErrSignatureInvalid
	}

	mac := hmac.New(sha256.New, []byte(v.secret))
	fmt.Fprintf(mac, "%d.", ts)
	mac.Write(payload)
	want := mac.Sum(nil)

	for _, cand := range candidates {
		got, err := hex.DecodeString(cand)
		if err != nil {
			continue
		}
		if hmac.Equal(want, got) {
			return nil
		}
	}
	return ErrSignatureInvalid
}

func parseHeader(header string) (int64, []string, error) {
	var ts int64
	var sigs []string
	for _, part := range strings.Split(header, ",") {
		k, val, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch k {
		case "t":
			n, err := strconv.ParseInt(val, 10, 64)
			if err != nil {
				return 0, nil, fmt.Errorf("bad timestamp: %w", err)
			}
			ts = n
		case "v1":
			sigs = append(sigs, val)
		}
	}
	if ts == 0 || len(sigs) == 0 {
		return 0, nil, errors.New("header missing t or v1")
	}
	return ts, sigs, nil
}

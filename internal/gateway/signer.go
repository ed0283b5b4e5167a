package gateway

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"

	"github.com/qs-lzh/seat-booking/internal/pricing"
)

// Signer signs and verifies messages exchanged with the gateway using
// HMAC-SHA256 over the '|' separated fields.
type Signer struct {
	secret []byte
}

func NewSigner(secret string) *Signer {
	return &Signer{secret: []byte(secret)}
}

func (s *Signer) Sign(fields ...string) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(strings.Join(fields, "|")))
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify compares signature against the expected one in constant time.
func (s *Signer) Verify(signature string, fields ...string) bool {
	got, err := hex.DecodeString(strings.ToLower(signature))
	if err != nil {
		return false
	}
	want, _ := hex.DecodeString(s.Sign(fields...))
	return hmac.Equal(got, want)
}

type Outcome string

const (
	OutcomePaid   Outcome = "PAID"
	OutcomeFailed Outcome = "FAILED"
)

// Callback is a payment result notification sent by the gateway.
type Callback struct {
	GatewayRef string        `json:"gateway_ref" binding:"required"`
	Outcome    Outcome       `json:"outcome" binding:"required"`
	Amount     pricing.Money `json:"amount"`
	Reason     string        `json:"reason"`
	Signature  string        `json:"signature" binding:"required"`
}

// Fields returns the signed fields of the callback, in order.
func (c Callback) Fields() []string {
	return []string{c.GatewayRef, string(c.Outcome), strconv.FormatInt(int64(c.Amount), 10)}
}

// SignCallback fills in the signature of c.
func (s *Signer) SignCallback(c Callback) Callback {
	c.Signature = s.Sign(c.Fields()...)
	return c
}

func (s *Signer) VerifyCallback(c Callback) bool {
	return s.Verify(c.Signature, c.Fields()...)
}

package credentials

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"tixly/internal/shared/apperr"
)

const (
	// PayloadVersion is stamped on every issued credential.
	PayloadVersion = 1

	// SignatureLength is the truncated hex length of the keyed hash. Short
	// enough to fit QR payload budgets, long enough (64 bits) that forgery
	// is not practical without the secret.
	SignatureLength = 16

	// ShortcodeScheme is the compact encoding scheme for low-bandwidth QR
	// rendering: tixly://orderId/signature
	ShortcodeScheme = "tixly"
)

// Payload is the tamper-evident entry credential embedded in a QR code.
// JSON keys are single letters to keep the encoded payload small.
type Payload struct {
	OrderID   string `json:"o"`
	EventID   string `json:"e"`
	TicketID  string `json:"t"`
	TierName  string `json:"n"`
	OwnerID   string `json:"u"`
	Quantity  int    `json:"q"`
	EntryType string `json:"y"`
	IsRSVP    bool   `json:"r"`
	IssuedAt  int64  `json:"i"`
	Version   int    `json:"v"`
	Signature string `json:"s"`
}

// Shortcode returns the compact alternate encoding of the credential.
func (p *Payload) Shortcode() string {
	return fmt.Sprintf("%s://%s/%s", ShortcodeScheme, p.OrderID, p.Signature)
}

// Signer issues and verifies entry credentials with a server-held secret.
type Signer struct {
	secret []byte
	maxAge time.Duration

	// now is swappable for tests
	now func() time.Time
}

// NewSigner creates a signer. maxAge bounds how long an issued credential
// stays verifiable (the replay window).
func NewSigner(secret string, maxAge time.Duration) *Signer {
	return &Signer{
		secret: []byte(secret),
		maxAge: maxAge,
		now:    time.Now,
	}
}

// Issue builds a signed credential covering one ticket line as a unit.
// Credentials are only ever minted when an order reaches confirmed; issuing
// earlier would hand out redeemable entry for unpaid stock.
func (s *Signer) Issue(orderID, eventID, ticketID, tierName, ownerID string, quantity int, entryType string, isRSVP bool) Payload {
	issuedAt := s.now().Unix()
	return Payload{
		OrderID:   orderID,
		EventID:   eventID,
		TicketID:  ticketID,
		TierName:  tierName,
		OwnerID:   ownerID,
		Quantity:  quantity,
		EntryType: entryType,
		IsRSVP:    isRSVP,
		IssuedAt:  issuedAt,
		Version:   PayloadVersion,
		Signature: s.sign(orderID, eventID, ticketID, tierName, ownerID, quantity, entryType, issuedAt, PayloadVersion, isRSVP),
	}
}

// Verify recomputes the keyed hash from the payload's own fields and checks
// it against the carried signature. Failures are typed so the scanner can
// present a precise reason.
func (s *Signer) Verify(p Payload) error {
	if p.OrderID == "" || p.EventID == "" || p.TicketID == "" || p.OwnerID == "" ||
		p.Quantity <= 0 || p.IssuedAt <= 0 || p.Signature == "" {
		return apperr.New(apperr.KindValidation, "malformed credential payload")
	}

	expected := s.sign(p.OrderID, p.EventID, p.TicketID, p.TierName, p.OwnerID, p.Quantity, p.EntryType, p.IssuedAt, p.Version, p.IsRSVP)
	if !hmac.Equal([]byte(expected), []byte(p.Signature)) {
		return apperr.New(apperr.KindInvalidSignature, "credential signature does not match")
	}

	issued := time.Unix(p.IssuedAt, 0)
	if s.now().Sub(issued) > s.maxAge {
		return apperr.New(apperr.KindExpiredCredential, "credential has expired")
	}

	return nil
}

// ParseShortcode splits a compact credential encoding back into its order id
// and signature.
func ParseShortcode(code string) (orderID, signature string, err error) {
	prefix := ShortcodeScheme + "://"
	if !strings.HasPrefix(code, prefix) {
		return "", "", apperr.New(apperr.KindValidation, "malformed credential shortcode")
	}

	rest := strings.TrimPrefix(code, prefix)
	parts := strings.SplitN(rest, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", apperr.New(apperr.KindValidation, "malformed credential shortcode")
	}
	return parts[0], parts[1], nil
}

// sign computes the truncated keyed hash over the canonical field
// concatenation. Every payload field except the signature itself is covered,
// so flipping any of them invalidates the credential. saleKind distinguishes
// paid orders from RSVPs so a payload cannot be replayed across sale types.
func (s *Signer) sign(orderID, eventID, ticketID, tierName, ownerID string, quantity int, entryType string, issuedAt int64, version int, isRSVP bool) string {
	saleKind := "order"
	if isRSVP {
		saleKind = "rsvp"
	}

	mac := hmac.New(sha256.New, s.secret)
	fmt.Fprintf(mac, "%s|%s|%s|%s|%s|%d|%s|%d|%d|%s", orderID, eventID, ticketID, tierName, ownerID, quantity, entryType, issuedAt, version, saleKind)
	digest := hex.EncodeToString(mac.Sum(nil))
	return digest[:SignatureLength]
}

package scaffold

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// FreshnessWindowMillis bounds the accepted skew between the request
// timestamp and server time, symmetric in both directions.
const FreshnessWindowMillis = 300_000

// Rejection kinds returned by VerifyRequest.
var (
	ErrMissingFields    = fmt.Errorf("missing required fields")
	ErrExpiredRequest   = fmt.Errorf("request timestamp outside freshness window")
	ErrInvalidSignature = fmt.Errorf("invalid signature")
)

// Envelope carries the authentication fields shared by all signed
// requests.
type Envelope struct {
	SigningPublicKey string `json:"signingPublicKey"`
	TimestampMillis  int64  `json:"timestampMillis"`
	Signature        string `json:"signature"`
}

func (e *Envelope) envelope() *Envelope { return e }

// SignedRequest is implemented by every signed request type. The
// canonical byte form is what gets signed and verified; it must be
// identical on client and server.
type SignedRequest interface {
	CanonicalBytes() []byte
	Validate() error
	envelope() *Envelope
}

// canonicalWriter builds the canonical JSON form: fields in the
// documented order, compact, optional fields omitted when empty.
type canonicalWriter struct {
	buf   bytes.Buffer
	first bool
}

func newCanonicalWriter() *canonicalWriter {
	w := &canonicalWriter{first: true}
	w.buf.WriteByte('{')
	return w
}

func (w *canonicalWriter) sep() {
	if !w.first {
		w.buf.WriteByte(',')
	}
	w.first = false
}

func (w *canonicalWriter) str(key, value string) {
	w.sep()
	k, _ := json.Marshal(key)
	v, _ := json.Marshal(value)
	w.buf.Write(k)
	w.buf.WriteByte(':')
	w.buf.Write(v)
}

func (w *canonicalWriter) num(key string, value int64) {
	w.sep()
	k, _ := json.Marshal(key)
	w.buf.Write(k)
	w.buf.WriteByte(':')
	w.buf.WriteString(strconv.FormatInt(value, 10))
}

func (w *canonicalWriter) opt(key, value string) {
	if value == "" {
		return
	}
	w.str(key, value)
}

func (w *canonicalWriter) finish() []byte {
	w.buf.WriteByte('}')
	return w.buf.Bytes()
}

// RegisterRequest creates a user record for an unseen signing key.
// Canonical order: platformAddress, signingPublicKey, timestampMillis,
// externalPrincipal, username, displayName, avatarUrl.
type RegisterRequest struct {
	Envelope
	PlatformAddress   string `json:"platformAddress"`
	ExternalPrincipal string `json:"externalPrincipal,omitempty"`
	Username          string `json:"username,omitempty"`
	DisplayName       string `json:"displayName,omitempty"`
	AvatarURL         string `json:"avatarUrl,omitempty"`
}

func (r *RegisterRequest) CanonicalBytes() []byte {
	w := newCanonicalWriter()
	w.str("platformAddress", r.PlatformAddress)
	w.str("signingPublicKey", r.SigningPublicKey)
	w.num("timestampMillis", r.TimestampMillis)
	w.opt("externalPrincipal", r.ExternalPrincipal)
	w.opt("username", r.Username)
	w.opt("displayName", r.DisplayName)
	w.opt("avatarUrl", r.AvatarURL)
	return w.finish()
}

func (r *RegisterRequest) Validate() error {
	if r.PlatformAddress == "" {
		return ErrMissingFields
	}
	return nil
}

// AuthenticateRequest authenticates an existing record.
// Canonical order: platformAddress, signingPublicKey, timestampMillis.
type AuthenticateRequest struct {
	Envelope
	PlatformAddress string `json:"platformAddress"`
}

func (r *AuthenticateRequest) CanonicalBytes() []byte {
	w := newCanonicalWriter()
	w.str("platformAddress", r.PlatformAddress)
	w.str("signingPublicKey", r.SigningPublicKey)
	w.num("timestampMillis", r.TimestampMillis)
	return w.finish()
}

func (r *AuthenticateRequest) Validate() error {
	if r.PlatformAddress == "" {
		return ErrMissingFields
	}
	return nil
}

// AuthOrRegisterRequest authenticates, creating the record first when
// the deployment allows open registration.
// Canonical order: signingPublicKey, timestampMillis, username,
// displayName, avatarUrl, externalPrincipal.
type AuthOrRegisterRequest struct {
	Envelope
	Username          string `json:"username,omitempty"`
	DisplayName       string `json:"displayName,omitempty"`
	AvatarURL         string `json:"avatarUrl,omitempty"`
	ExternalPrincipal string `json:"externalPrincipal,omitempty"`
}

func (r *AuthOrRegisterRequest) CanonicalBytes() []byte {
	w := newCanonicalWriter()
	w.str("signingPublicKey", r.SigningPublicKey)
	w.num("timestampMillis", r.TimestampMillis)
	w.opt("username", r.Username)
	w.opt("displayName", r.DisplayName)
	w.opt("avatarUrl", r.AvatarURL)
	w.opt("externalPrincipal", r.ExternalPrincipal)
	return w.finish()
}

func (r *AuthOrRegisterRequest) Validate() error { return nil }

// SelfGrantRequest is a signed self-service role grant.
// Canonical order: roleName, signingPublicKey, timestampMillis.
type SelfGrantRequest struct {
	Envelope
	RoleName string `json:"roleName"`
}

func (r *SelfGrantRequest) CanonicalBytes() []byte {
	w := newCanonicalWriter()
	w.str("roleName", r.RoleName)
	w.str("signingPublicKey", r.SigningPublicKey)
	w.num("timestampMillis", r.TimestampMillis)
	return w.finish()
}

func (r *SelfGrantRequest) Validate() error {
	if r.RoleName == "" {
		return ErrMissingFields
	}
	return nil
}

// SignRequest stamps the current wall clock and the claimed key into
// the envelope and signs the canonical bytes.
func SignRequest(req SignedRequest, id Identity) error {
	env := req.envelope()
	env.SigningPublicKey = id.PublicKey
	env.TimestampMillis = time.Now().UnixMilli()
	sig, err := SignBytes(req.CanonicalBytes(), id.PrivateKey)
	if err != nil {
		return err
	}
	env.Signature = hex.EncodeToString(sig)
	return nil
}

// VerifyRequest is the server-side counterpart of SignRequest. Checks
// run in order: required fields, freshness window, signature. It does
// no I/O; callers must verify before touching storage.
func VerifyRequest(req SignedRequest, now time.Time) error {
	env := req.envelope()
	if env.SigningPublicKey == "" || env.Signature == "" || env.TimestampMillis == 0 {
		return ErrMissingFields
	}
	if err := req.Validate(); err != nil {
		return err
	}

	skew := now.UnixMilli() - env.TimestampMillis
	if skew < 0 {
		skew = -skew
	}
	if skew > FreshnessWindowMillis {
		return ErrExpiredRequest
	}

	sig, err := hex.DecodeString(env.Signature)
	if err != nil {
		return ErrInvalidSignature
	}
	if err := VerifySignature(req.CanonicalBytes(), sig, env.SigningPublicKey); err != nil {
		return ErrInvalidSignature
	}
	return nil
}

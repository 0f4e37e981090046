package domain

const (
	RequesterIdCtxKey      = "mn-requesterId"
	RequesterAddrCtxKey    = "mn-requesterAddr"
	RequesterIsAdminCtxKey = "mn-requesterIsAdmin"
)

// LookupKey selects the single identity lookup key for a deployment.
// Fallback chaining between the two is deliberately not supported.
type LookupKey string

const (
	LookupBySigningKey      LookupKey = "signingKey"
	LookupByPlatformAddress LookupKey = "platformAddress"
)

// RegistrationMode gates the auth-or-register flow.
type RegistrationMode string

const (
	RegistrationOpen  RegistrationMode = "open"
	RegistrationClose RegistrationMode = "close"
)

package params

import "time"

const (
	ServerBodyLimit          = 1048576  // 1 MiB
	VoiceBodyLimit           = 52428800 // 50 MiB, base64 audio payloads
	ServerIdleTimeout        = 30 * time.Second
	ServerReadTimeout        = 10 * time.Second
	ServerWriteTimeout       = 60 * time.Second
	HealthCheckServerAddr    = ":3001" // health check server address
	DefaultUserIdentifier    = "default"
	AnonymousUserID          = "anonymous"
	TokenExpiryBufferSeconds = 300              // refresh tokens this many seconds before they expire
	OAuthStateExpiration     = 10 * time.Minute // signed oauth state lifetime
	TokenKeyPrefix           = "tok:"           // redis row store prefix for oauth tokens
	ConversationKeyPrefix    = "conv:"          // redis row store prefix for conversations
	VoiceRateLimitMax        = 30               // voice requests per client per window
	VoiceRateLimitWindow     = 1 * time.Minute
	OutboundHTTPTimeout      = 30 * time.Second // timeout for calls to zoho, books and sibling services
	DefaultCurrency          = "USD"
)

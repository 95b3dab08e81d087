package config

const (
	DefaultHost        = "0.0.0.0"
	DefaultPort        = 8000
	DefaultEnvironment = "development"
	DefaultAPIPrefix   = "/api/v1"
	DefaultLogLevel    = "info"

	DefaultRateLimitPerMinute = 60

	DefaultMaxSchemaTables     = 20
	DefaultRowLimit            = 500
	DefaultQueryTimeoutSeconds = 60
	DefaultSessionMaxTurns     = 20
	DefaultContextTurns        = 6

	DefaultCORSMaxAge = 300
)

var DefaultCORSOrigins = []string{
	"http://localhost:3000",
	"http://localhost:8080",
}

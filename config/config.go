package config

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/parleyhq/debate-api/models"
)

// Defaults applied when the corresponding env var is unset.
const (
	DefaultJurySize        = 7
	DefaultGenerateTimeout = 90 * time.Second
	DefaultModel           = "claude-sonnet-4-20250514"
)

// Config holds the project config values
type Config struct {
	URL             string
	DatabaseName    string
	BaseURL         string
	Port            string
	JurySize        int
	DrainSecret     string
	JWTSecret       string
	AnthropicKey    string
	AnthropicModel  string
	GenerateTimeout time.Duration
	SendgridKey     string
}

// New sets up all config related services
func New() *Config {

	//setup zap logger and replace default logger
	logger := zap.NewExample()
	defer logger.Sync()
	_ = zap.ReplaceGlobals(logger)

	return &Config{
		URL:             os.Getenv("DB_URI"),
		DatabaseName:    os.Getenv("DB_NAME"),
		BaseURL:         os.Getenv("BASE_URL"),
		Port:            os.Getenv("PORT"),
		JurySize:        envInt("JURY_SIZE", DefaultJurySize),
		DrainSecret:     os.Getenv("DRAIN_SECRET"),
		JWTSecret:       os.Getenv("JWT_SECRET"),
		AnthropicKey:    os.Getenv("ANTHROPIC_API_KEY"),
		AnthropicModel:  envString("ANTHROPIC_MODEL", DefaultModel),
		GenerateTimeout: envSeconds("GENERATE_TIMEOUT_SECONDS", DefaultGenerateTimeout),
		SendgridKey:     os.Getenv("SENDGRID_API_KEY"),
	}
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		zap.S().Warnf("invalid %v value %q, using default of %v", key, v, fallback)
		return fallback
	}
	return n
}

func envSeconds(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		zap.S().Warnf("invalid %v value %q, using default of %v", key, v, fallback)
		return fallback
	}
	return time.Duration(n) * time.Second
}

// ErrorStatus is a useful function that will log, write http headers and body for a
// give message, status code and err
func ErrorStatus(message string, httpStatusCode int, w http.ResponseWriter, err error) {
	zap.S().With(err).Error(message)
	w.WriteHeader(httpStatusCode)
	b, _ := json.Marshal(models.ErrorMessageResponse{
		Response: models.MessageError{Message: message, Error: fmt.Sprintf("%v", err)},
	})
	w.Write(b)
}

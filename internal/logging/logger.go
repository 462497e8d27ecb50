// Package logging provides the structured diagnostic logger with automatic
// secret redaction. All human-readable progress goes through this logger on
// stderr; stdout is reserved for the final machine-readable result.
package logging

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Known secret field names that must be redacted in all log output. STS
// secret material (secret keys, session tokens) flows through every
// operation in this tool.
var secretFieldNames = []string{
	"secretaccesskey",
	"sessiontoken",
	"token",
	"password",
	"secret",
	"private_key",
	"privatekey",
	"credentials",
	"secret_key",
	"secretkey",
	"access_token",
	"accesstoken",
}

// NewLogger creates the stderr console logger used for operator progress.
func NewLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}

	writer := zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: time.RFC3339,
	}

	return zerolog.New(writer).
		Level(lvl).
		With().
		Timestamp().
		Str("component", "accountctl").
		Logger()
}

// NewJSONLogger creates a JSON-formatted logger for machine consumption of
// the diagnostic stream.
func NewJSONLogger(w io.Writer, level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}

	return zerolog.New(w).
		Level(lvl).
		With().
		Timestamp().
		Str("component", "accountctl").
		Logger()
}

// IsSecretField checks if a field name is a known secret field that should be redacted.
func IsSecretField(fieldName string) bool {
	lower := strings.ToLower(fieldName)
	for _, secret := range secretFieldNames {
		if strings.Contains(lower, secret) {
			return true
		}
	}
	return false
}

// RedactValue replaces a secret value with a safe placeholder containing a hash prefix.
func RedactValue(value string) string {
	if value == "" {
		return ""
	}
	h := sha256.Sum256([]byte(value))
	return "[REDACTED:sha256:" + hex.EncodeToString(h[:])[:8] + "]"
}

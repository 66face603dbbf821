package auth

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/david/opportunity-finder/internal/logger"
)

// ResolveSecret returns configured, or an ephemeral random secret when it is
// blank. Ephemeral secrets do not survive a restart.
func ResolveSecret(configured, name string, log logger.Logger) ([]byte, error) {
	if s := strings.TrimSpace(configured); s != "" {
		return []byte(s), nil
	}

	buf := make([]byte, 48)
	if _, err := rand.Read(buf); err != nil {
		return nil, fmt.Errorf("failed to generate %s fallback: %w", name, err)
	}
	if log != nil {
		log.Warn(name + " is not set; using ephemeral in-memory fallback secret")
	}
	return []byte(base64.RawURLEncoding.EncodeToString(buf)), nil
}

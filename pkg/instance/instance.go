package instance

import (
	"os"

	"github.com/angelmondragon/stowaway-backend/pkg/env"
)

// GetID returns the process instance identifier, preferring the platform dyno name.
func GetID(fallback string) string {
	if id := env.First("DYNO", "WORKER_ID"); id != "" {
		return id
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return fallback
}

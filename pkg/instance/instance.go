package instance

import "os"

// Env vars checked in order; DYNO is set by the platform, the first by operators.
var idEnvKeys = []string{"CHOPMART_INSTANCE_ID", "DYNO"}

// ID names this process in logs so concurrent workers can be told apart.
func ID() string {
	for _, key := range idEnvKeys {
		if id := os.Getenv(key); id != "" {
			return id
		}
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return "local"
}

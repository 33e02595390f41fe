package env

import (
	"fmt"
	"os"
	"strings"

	cenv "github.com/caarlos0/env/v11"
)

// Parse fills a struct tagged with `env:"..."` from the loaded .env values
// merged over the process environment.
func Parse(target any) error {
	if err := cenv.ParseWithOptions(target, cenv.Options{Environment: Merged()}); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Merged returns the process environment overlaid with the .env file values.
func Merged() map[string]string {
	merged := make(map[string]string, len(Env))
	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok {
			merged[k] = v
		}
	}
	for k, v := range Env {
		merged[k] = v
	}
	return merged
}

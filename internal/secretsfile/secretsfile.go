// Package secretsfile loads the simple KEY=VALUE secrets file (§6) that
// feeds a run's secrets mapping.
package secretsfile

import (
	"os"

	"github.com/subosito/gotenv"

	"github.com/payloadstash/payloadstash/internal/dynamic"
)

// Load parses path (lines starting with "#" are comments, blank lines are
// ignored, UTF-8) and returns it as a dynamic.Secrets mapping.
func Load(path string) (dynamic.Secrets, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	env, err := gotenv.StrictParse(f)
	if err != nil {
		return nil, err
	}
	secrets := make(dynamic.Secrets, len(env))
	for k, v := range env {
		secrets[k] = v
	}
	return secrets, nil
}

package dynamic

import (
	"fmt"
	"regexp"
	"strings"
)

// Secrets is the caller-supplied mapping of secret keys to values (§1 "a
// separately supplied secrets mapping"). A nil Secrets means no mapping was
// supplied at all, which ResolveSecret treats differently from a mapping that
// exists but omits a given key.
type Secrets map[string]string

// RedactedSentinel is substituted for any secret value when redaction is on.
const RedactedSentinel = "***REDACTED***"

// MissingSecretsError is returned when a secret reference cannot be
// resolved because no secrets mapping was supplied at all.
type MissingSecretsError struct{ Key string }

func (e *MissingSecretsError) Error() string {
	return fmt.Sprintf("secret %q referenced but no secrets mapping was supplied", e.Key)
}

// MissingKeyError is returned when a secrets mapping was supplied but does
// not contain the referenced key.
type MissingKeyError struct{ Key string }

func (e *MissingKeyError) Error() string {
	return fmt.Sprintf("secret %q not found in supplied secrets mapping", e.Key)
}

// ResolveSecret implements the Secret Resolver (§4.2): resolve(key, secrets, redact).
//
// If redact is true, the sentinel is returned unconditionally (even when
// the key is absent — the caller has already decided redaction trumps
// fatal-ness, e.g. the `validate`/`resolve` subcommands without --secrets).
// Otherwise secrets[key] is returned, or a fatal resolution error: a nil
// secrets map (no --secrets given at all) reports MissingSecretsError; a
// non-nil map that lacks the key reports MissingKeyError.
func ResolveSecret(key string, secrets Secrets, redact bool) (string, error) {
	if redact {
		return RedactedSentinel, nil
	}
	if secrets == nil {
		return "", &MissingSecretsError{Key: key}
	}
	v, ok := secrets[key]
	if !ok {
		return "", &MissingKeyError{Key: key}
	}
	return v, nil
}

// inlineSecretPattern matches `{ $secrets: KEY }` with arbitrary inner
// spacing, as found embedded inside an otherwise-plain string (§4.2 "Inline
// interpolation").
var inlineSecretPattern = regexp.MustCompile(`\{\s*\$secrets\s*:\s*([A-Za-z0-9_.\-]+)\s*\}`)

// InterpolateInline substitutes every `{ $secrets: KEY }` span found in s
// with the resolved secret value (or the redaction sentinel), returning the
// rewritten string. Any other text is left untouched.
func InterpolateInline(s string, secrets Secrets, redact bool) (string, error) {
	if !strings.Contains(s, "$secrets") {
		return s, nil
	}
	var firstErr error
	out := inlineSecretPattern.ReplaceAllStringFunc(s, func(match string) string {
		if firstErr != nil {
			return match
		}
		sub := inlineSecretPattern.FindStringSubmatch(match)
		key := sub[1]
		val, err := ResolveSecret(key, secrets, redact)
		if err != nil {
			firstErr = err
			return match
		}
		return val
	})
	if firstErr != nil {
		return "", firstErr
	}
	return out, nil
}

// Package dynamic implements the Dynamic Expander and Secret Resolver
// (§4.1, §4.2): pure functions over a template string, a named-sets
// mapping, and a secrets mapping.
package dynamic

import (
	"math/rand/v2"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Sets maps a set name to its ordered list of candidate strings, used by
// the `choice:setName` placeholder.
type Sets map[string][]string

const (
	hexCharset   = "0123456789ABCDEF"
	alnumCharset = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"
	numCharset   = "0123456789"
	alphaCharset = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"
)

// UnknownSetError is returned by Expand when `choice:setName` names a set
// that isn't present in Sets.
type UnknownSetError struct{ Name string }

func (e *UnknownSetError) Error() string { return "dynamic: unknown set " + strconv.Quote(e.Name) }

// Expand scans template left to right for `${...}` placeholders and
// substitutes each recognized form (§4.1). Unknown placeholders (unknown
// form name, or a malformed N) are emitted verbatim — no expansion, no
// error. Placeholders that reference data that must exist (`choice:setName`,
// `secrets:KEY`) return an error if that data is missing. redact governs
// any embedded `${secrets:KEY}` placeholder the same way it governs every
// other secret-resolution path in the tree (§4.2): true substitutes the
// redaction sentinel instead of the live value.
func Expand(template string, sets Sets, secrets Secrets, redact bool) (string, error) {
	var b strings.Builder
	rest := template
	for {
		start := strings.Index(rest, "${")
		if start < 0 {
			b.WriteString(rest)
			break
		}
		end := strings.IndexByte(rest[start:], '}')
		if end < 0 {
			b.WriteString(rest)
			break
		}
		end += start
		b.WriteString(rest[:start])
		inner := rest[start+2 : end]
		expanded, ok, err := expandOne(inner, sets, secrets, redact)
		if err != nil {
			return "", err
		}
		if ok {
			b.WriteString(expanded)
		} else {
			b.WriteString("${" + inner + "}")
		}
		rest = rest[end+1:]
	}
	return b.String(), nil
}

// expandOne expands a single placeholder body (the text between ${ and }).
// ok is false for an unrecognized form, meaning the caller should emit the
// placeholder verbatim rather than treat it as an error.
func expandOne(body string, sets Sets, secrets Secrets, redact bool) (string, bool, error) {
	form, param, hasParam := strings.Cut(body, ":")

	switch form {
	case "hex":
		return expandCharset(hexCharset, param, hasParam)
	case "alphanumeric":
		return expandCharset(alnumCharset, param, hasParam)
	case "numeric":
		return expandCharset(numCharset, param, hasParam)
	case "alpha":
		return expandCharset(alphaCharset, param, hasParam)
	case "uuidv4":
		if hasParam {
			return "", false, nil
		}
		return uuid.New().String(), true, nil
	case "choice":
		if !hasParam {
			return "", false, nil
		}
		candidates, ok := sets[param]
		if !ok {
			return "", false, &UnknownSetError{Name: param}
		}
		if len(candidates) == 0 {
			return "", false, &UnknownSetError{Name: param}
		}
		return candidates[rand.IntN(len(candidates))], true, nil
	case "timestamp", "@timestamp":
		fmtName := "iso_8601"
		if hasParam {
			fmtName = param
		}
		ts, ok := formatTimestamp(fmtName)
		if !ok {
			return "", false, nil
		}
		return ts, true, nil
	case "secrets":
		if !hasParam {
			return "", false, nil
		}
		val, err := ResolveSecret(param, secrets, redact)
		if err != nil {
			return "", false, err
		}
		return val, true, nil
	default:
		return "", false, nil
	}
}

func expandCharset(charset, param string, hasParam bool) (string, bool, error) {
	if !hasParam {
		return "", false, nil
	}
	n, err := strconv.Atoi(param)
	if err != nil || n < 0 {
		return "", false, nil
	}
	if n == 0 {
		return "", true, nil
	}
	b := make([]byte, n)
	for i := range b {
		b[i] = charset[rand.IntN(len(charset))]
	}
	return string(b), true, nil
}

// FormatTimestamp renders the current UTC time per the named format.
// Supported: "iso_8601" (default), "epoch_ms", "epoch_s". An unrecognized
// format name reports ok=false.
func FormatTimestamp(format string) (string, bool) {
	return formatTimestamp(format)
}

func formatTimestamp(format string) (string, bool) {
	now := time.Now().UTC()
	switch format {
	case "iso_8601":
		return now.Format(time.RFC3339), true
	case "epoch_ms":
		return strconv.FormatInt(now.UnixMilli(), 10), true
	case "epoch_s":
		return strconv.FormatInt(now.Unix(), 10), true
	default:
		return "", false
	}
}

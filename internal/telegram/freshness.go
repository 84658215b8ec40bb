package telegram

import (
	"strconv"
	"strings"
	"time"
)

// DefaultMaxAuthAge bounds how old a signed payload may be.
const DefaultMaxAuthAge = 300 * time.Second

// RequireFields fails with a FieldError for the first absent or blank name.
func RequireFields(fields map[string]string, names ...string) error {
	for _, name := range names {
		if strings.TrimSpace(fields[name]) == "" {
			return missing(name)
		}
	}
	return nil
}

// ParseAuthDate parses a seconds-since-epoch auth_date value.
func ParseAuthDate(raw string) (int64, error) {
	authDate, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return 0, missing("auth_date")
	}
	return authDate, nil
}

// CheckFreshness rejects payloads signed more than maxAge before now.
// The wall clock is trusted as is: a client clock running ahead of the
// server is not corrected for.
func CheckFreshness(authDate int64, now time.Time, maxAge time.Duration) error {
	if now.Sub(time.Unix(authDate, 0)) > maxAge {
		return ErrExpired
	}
	return nil
}

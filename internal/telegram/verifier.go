package telegram

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"sort"
	"strings"
	"time"
)

const webAppKey = "WebAppData"

// DataCheckString serializes every field except "hash" as sorted key=value
// lines. The input map is not modified.
func DataCheckString(fields map[string]string) string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		if k == "hash" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(fields[k])
	}
	return b.String()
}

// widgetSecret is SHA256(botToken), per the Login Widget scheme.
func widgetSecret(botToken string) []byte {
	sum := sha256.Sum256([]byte(botToken))
	return sum[:]
}

// miniAppSecret is HMAC-SHA256 keyed by "WebAppData" over the bot token.
func miniAppSecret(botToken string) []byte {
	mac := hmac.New(sha256.New, []byte(webAppKey))
	mac.Write([]byte(botToken))
	return mac.Sum(nil)
}

func sign(secret []byte, fields map[string]string) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(DataCheckString(fields)))
	return hex.EncodeToString(mac.Sum(nil))
}

func checkSignature(fields map[string]string, secret []byte) error {
	provided := strings.ToLower(strings.TrimSpace(fields["hash"]))
	if provided == "" {
		return missing("hash")
	}
	if !hmac.Equal([]byte(sign(secret, fields)), []byte(provided)) {
		return ErrSignatureInvalid
	}
	return nil
}

// VerifyWidget checks a Login Widget payload. An empty bot token always
// fails.
func VerifyWidget(fields map[string]string, botToken string) error {
	if botToken == "" {
		return ErrSignatureInvalid
	}
	return checkSignature(fields, widgetSecret(botToken))
}

// VerifyMiniApp checks Mini-App initData fields. An empty bot token always
// fails.
func VerifyMiniApp(fields map[string]string, botToken string) error {
	if botToken == "" {
		return ErrSignatureInvalid
	}
	return checkSignature(fields, miniAppSecret(botToken))
}

// ParseInitData flattens a url-encoded initData string. Repeated keys keep
// their first value.
func ParseInitData(raw string) (map[string]string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, missing("initData")
	}
	values, err := url.ParseQuery(raw)
	if err != nil {
		return nil, missing("initData")
	}

	fields := make(map[string]string, len(values))
	for k, v := range values {
		if len(v) > 0 {
			fields[k] = v[0]
		}
	}
	return fields, nil
}

// Verifier runs the full acceptance pipeline for the two signed transports:
// required fields, signature, then freshness.
type Verifier struct {
	botToken      string
	widgetMaxAge  time.Duration
	miniAppMaxAge time.Duration
	now           func() time.Time
}

// NewVerifier builds a Verifier. Non-positive ages fall back to
// DefaultMaxAuthAge.
func NewVerifier(botToken string, widgetMaxAge, miniAppMaxAge time.Duration) *Verifier {
	if widgetMaxAge <= 0 {
		widgetMaxAge = DefaultMaxAuthAge
	}
	if miniAppMaxAge <= 0 {
		miniAppMaxAge = DefaultMaxAuthAge
	}
	return &Verifier{
		botToken:      botToken,
		widgetMaxAge:  widgetMaxAge,
		miniAppMaxAge: miniAppMaxAge,
		now:           time.Now,
	}
}

// VerifyWidgetLogin accepts a widget callback payload and returns the
// identity it carries.
func (v *Verifier) VerifyWidgetLogin(fields map[string]string) (Identity, error) {
	if err := RequireFields(fields, "hash", "auth_date", "id"); err != nil {
		return Identity{}, err
	}
	authDate, err := ParseAuthDate(fields["auth_date"])
	if err != nil {
		return Identity{}, err
	}
	if err := VerifyWidget(fields, v.botToken); err != nil {
		return Identity{}, err
	}
	if err := CheckFreshness(authDate, v.now(), v.widgetMaxAge); err != nil {
		return Identity{}, err
	}
	return identityFromFields(fields), nil
}

// VerifyMiniAppLogin accepts a raw initData string.
func (v *Verifier) VerifyMiniAppLogin(initData string) (Identity, error) {
	fields, err := ParseInitData(initData)
	if err != nil {
		return Identity{}, err
	}
	if err := RequireFields(fields, "hash", "auth_date", "user"); err != nil {
		return Identity{}, err
	}
	authDate, err := ParseAuthDate(fields["auth_date"])
	if err != nil {
		return Identity{}, err
	}
	if err := VerifyMiniApp(fields, v.botToken); err != nil {
		return Identity{}, err
	}
	if err := CheckFreshness(authDate, v.now(), v.miniAppMaxAge); err != nil {
		return Identity{}, err
	}
	return ParseMiniAppUser(fields)
}

// Package proxyfmt formats and parses the wire representation of generated
// proxy credentials: host:port:user-country-session:password.
package proxyfmt

import (
	"errors"
	"fmt"
	"math/rand"
	"regexp"
	"strings"

	"github.com/kyralabs/proxymint/internal/country"
)

// ErrMalformed reports a proxy string that does not match the expected
// shape. Callers skip malformed entries instead of aborting bulk work.
var ErrMalformed = errors.New("proxyfmt: malformed proxy string")

// Session ids are uniform 6-digit decimals.
const (
	sessionMin = 100000
	sessionMax = 999999
)

// Host shard indexes are drawn from [1,15] inclusive.
const (
	shardMin = 1
	shardMax = 15
)

// localePrefix is prepended to country tokens that carry no prefix of
// their own.
const localePrefix = "lv_"

// shardPattern matches an embedded shard index such as "s1" in
// "b2b-s1.example.com".
var shardPattern = regexp.MustCompile(`s\d+`)

// Template holds the caller-supplied fields of one generation request.
// It is immutable for the duration of the request.
type Template struct {
	Host     string
	Port     string
	UserID   string
	Country  string
	Password string
}

// Record is one fully materialized proxy credential.
type Record struct {
	ProxyString string
	Host        string
	Port        string
	UserID      string
	CountryCode string
	SessionID   string
	Password    string
}

// Format synthesizes one proxy string from the template. The host shard and
// the session id are drawn fresh on every call; they are the randomization
// axis that makes repeated calls on the same template produce distinct
// candidates.
func Format(t Template, countryCode string) Record {
	host := shardPattern.ReplaceAllStringFunc(t.Host, func(string) string {
		return fmt.Sprintf("s%d", shardMin+rand.Intn(shardMax-shardMin+1))
	})
	session := NewSessionID()
	token := CountryToken(countryCode)

	return Record{
		ProxyString: fmt.Sprintf("%s:%s:%s-%s-%s:%s", host, t.Port, t.UserID, token, session, t.Password),
		Host:        host,
		Port:        t.Port,
		UserID:      t.UserID,
		CountryCode: canonicalCode(countryCode),
		SessionID:   session,
		Password:    t.Password,
	}
}

// CountryToken rewrites the UK alias to gb and prefixes the locale marker
// unless the token already carries an underscore-delimited prefix.
func CountryToken(code string) string {
	code = canonicalCode(code)
	if strings.Contains(code, "_") {
		return code
	}
	return localePrefix + code
}

func canonicalCode(code string) string {
	code = strings.ToLower(strings.TrimSpace(code))
	if code == "uk" {
		return "gb"
	}
	return code
}

// NewSessionID returns a uniformly random 6-digit decimal string.
func NewSessionID() string {
	return fmt.Sprintf("%d", sessionMin+rand.Intn(sessionMax-sessionMin+1))
}

// Parse splits a proxy string back into its fields. The country segment is
// passed through the country resolver, so both freshly formatted tokens
// ("lv_us") and hand-pasted variants ("us", "gb_residential") round-trip.
func Parse(s string) (Record, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 4 {
		return Record{}, fmt.Errorf("%w: want 4 colon segments, got %d", ErrMalformed, len(parts))
	}
	host, port, compound, password := parts[0], parts[1], parts[2], parts[3]
	if host == "" || port == "" || compound == "" || password == "" {
		return Record{}, fmt.Errorf("%w: empty segment", ErrMalformed)
	}

	userParts := strings.Split(compound, "-")
	if len(userParts) < 3 {
		return Record{}, fmt.Errorf("%w: user segment needs user-country-session", ErrMalformed)
	}
	userID, token, session := userParts[0], userParts[1], userParts[2]
	if userID == "" || token == "" || session == "" {
		return Record{}, fmt.Errorf("%w: empty user segment field", ErrMalformed)
	}

	code, ok := country.Resolve(token)
	if !ok {
		return Record{}, fmt.Errorf("%w: unresolvable country token %q", ErrMalformed, token)
	}

	return Record{
		ProxyString: strings.TrimSpace(s),
		Host:        host,
		Port:        port,
		UserID:      userID,
		CountryCode: code,
		SessionID:   session,
		Password:    password,
	}, nil
}

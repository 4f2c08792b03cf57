package proxyfmt

import (
	"errors"
	"regexp"
	"strconv"
	"strings"
	"testing"
)

var testTemplate = Template{
	Host:     "b2b-s1.example.com",
	Port:     "8080",
	UserID:   "abc",
	Country:  "us",
	Password: "pw",
}

func TestFormatShape(t *testing.T) {
	pattern := regexp.MustCompile(`^b2b-s(\d+)\.example\.com:8080:abc-lv_us-(\d{6}):pw$`)
	for i := 0; i < 200; i++ {
		rec := Format(testTemplate, "us")
		m := pattern.FindStringSubmatch(rec.ProxyString)
		if m == nil {
			t.Fatalf("unexpected proxy string shape: %q", rec.ProxyString)
		}
		shard, _ := strconv.Atoi(m[1])
		if shard < 1 || shard > 15 {
			t.Fatalf("shard %d out of [1,15] in %q", shard, rec.ProxyString)
		}
		session, _ := strconv.Atoi(m[2])
		if session < 100000 || session > 999999 {
			t.Fatalf("session %d out of [100000,999999] in %q", session, rec.ProxyString)
		}
		if rec.SessionID != m[2] {
			t.Fatalf("record session %q does not match string %q", rec.SessionID, m[2])
		}
		if !strings.HasPrefix(rec.Host, "b2b-s") {
			t.Fatalf("record host %q lost shard substitution", rec.Host)
		}
	}
}

func TestFormatRoundTrip(t *testing.T) {
	rec := Format(testTemplate, "us")
	parsed, err := Parse(rec.ProxyString)
	if err != nil {
		t.Fatalf("parse formatted string: %v", err)
	}
	if parsed != rec {
		t.Fatalf("round trip mismatch:\n formatted %+v\n parsed    %+v", rec, parsed)
	}
}

func TestCountryTokenRules(t *testing.T) {
	cases := []struct {
		code string
		want string
	}{
		{"us", "lv_us"},
		{"uk", "lv_gb"},
		{"gb", "lv_gb"},
		{"lv_us", "lv_us"},
		{"custom_de", "custom_de"},
	}
	for _, tc := range cases {
		if got := CountryToken(tc.code); got != tc.want {
			t.Fatalf("CountryToken(%q) = %q, want %q", tc.code, got, tc.want)
		}
	}
}

func TestFormatWithoutShardMarker(t *testing.T) {
	tpl := testTemplate
	tpl.Host = "gateway.example.com"
	rec := Format(tpl, "de")
	if rec.Host != "gateway.example.com" {
		t.Fatalf("host without shard marker changed: %q", rec.Host)
	}
	if !strings.Contains(rec.ProxyString, "-lv_de-") {
		t.Fatalf("country token missing from %q", rec.ProxyString)
	}
}

func TestParseMalformed(t *testing.T) {
	cases := []string{
		"",
		"host:port:user",
		"host:port:user:pass:extra",
		"host:port:user-only:pass",
		"host:port:abc-atlantis-123456:pass",
		":::",
		"host:port:--123456:pass",
	}
	for _, input := range cases {
		if _, err := Parse(input); !errors.Is(err, ErrMalformed) {
			t.Fatalf("Parse(%q) err = %v, want ErrMalformed", input, err)
		}
	}
}

func TestParseHandPastedVariants(t *testing.T) {
	rec, err := Parse("gw.example.com:1080:user42-gb_residential-654321:secret")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if rec.CountryCode != "gb" {
		t.Fatalf("country = %q, want gb", rec.CountryCode)
	}
	if rec.UserID != "user42" || rec.SessionID != "654321" || rec.Password != "secret" {
		t.Fatalf("unexpected fields: %+v", rec)
	}
}

package snap

import (
	"encoding/json"
	"testing"
	"time"
)

func TestPadField(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"12345", "   12345"},
		{"   12345", "   12345"},   // no duplicated padding
		{" 12345", "   12345"},     // partial padding normalized
		{"\t 12345", "   12345"},   // tabs stripped too
		{"", "   "},
	}
	for _, tc := range cases {
		if got := PadField(tc.in); got != tc.want {
			t.Errorf("PadField(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestMinifyJSONKeepsSlashes(t *testing.T) {
	out, err := MinifyJSON(map[string]string{"url": "https://example.com/a/b"})
	if err != nil {
		t.Fatal(err)
	}
	want := `{"url":"https://example.com/a/b"}`
	if string(out) != want {
		t.Fatalf("MinifyJSON = %s, want %s", out, want)
	}
}

func TestMinifyJSONCompactsRawPreservingOrder(t *testing.T) {
	raw := json.RawMessage("{\n  \"b\": 1,\n  \"a\": 2\n}")
	out, err := MinifyJSON(raw)
	if err != nil {
		t.Fatal(err)
	}
	if string(out) != `{"b":1,"a":2}` {
		t.Fatalf("MinifyJSON = %s", out)
	}
}

func TestStripSpaces(t *testing.T) {
	if got := StripSpaces("   12345 678 "); got != "12345678" {
		t.Fatalf("StripSpaces = %q", got)
	}
}

func TestParseTimestampStrict(t *testing.T) {
	if _, err := ParseTimestamp("2025-01-02T03:04:05+07:00"); err != nil {
		t.Fatalf("valid timestamp rejected: %v", err)
	}
	bad := []string{
		"",
		"2025-01-02 03:04:05",
		"2025-01-02T03:04:05Z",
		"2025-01-02T03:04:05.000+07:00",
	}
	for _, s := range bad {
		if _, err := ParseTimestamp(s); err == nil {
			t.Errorf("ParseTimestamp(%q) should fail", s)
		}
	}
}

func TestValidateExpiredDate(t *testing.T) {
	now := time.Date(2025, 1, 2, 3, 0, 0, 0, jakarta)

	if _, err := ValidateExpiredDate("2025-01-02T04:00:00+07:00", now); err != nil {
		t.Fatalf("expiry one hour ahead rejected: %v", err)
	}
	if _, err := ValidateExpiredDate("2025-01-02T03:10:00+07:00", now); err == nil {
		t.Fatal("expiry less than 15 minutes ahead must be rejected")
	}
}

func TestValidateReportDate(t *testing.T) {
	if err := ValidateReportDate("2025-01-31"); err != nil {
		t.Fatalf("valid date rejected: %v", err)
	}
	for _, s := range []string{"2025-1-31", "31-01-2025", "2025-02-30", "yesterday"} {
		if err := ValidateReportDate(s); err == nil {
			t.Errorf("ValidateReportDate(%q) should fail", s)
		}
	}
}

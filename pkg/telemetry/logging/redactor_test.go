package logging

import (
	"log/slog"
	"testing"
)

func TestRedactor_RedactString(t *testing.T) {
	r := NewRedactor()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"api key", "using sk-proj1234abcd", "using sk-***"},
		{"bearer", "Authorization: Bearer abc.def.ghi", "Authorization: Bearer ***"},
		{"email", "owner alice@example.com", "owner ***@example.com"},
		{"ipv4", "client 10.1.2.3 connected", "client 10.*.*.* connected"},
		{"password", "password=hunter2", "password=***"},
		{"clean", "nothing to see", "nothing to see"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := r.RedactString(tt.input); got != tt.want {
				t.Errorf("RedactString(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestRedactor_RedactKey(t *testing.T) {
	r := NewRedactor()

	tests := []struct {
		input string
		want  string
	}{
		{"apikey:sk-abcdef123", "apikey:sk-***"},
		{"user:bob@corp.io", "user:***@corp.io"},
		{"ip:192.168.1.20", "ip:192.*.*.*"},
		{"tenant:acme-prod-7781", "tenant:acme***"},
		{"opaque-token-value", "opaq***"},
		{"ab", "***"},
	}

	for _, tt := range tests {
		if got := r.RedactKey(tt.input); got != tt.want {
			t.Errorf("RedactKey(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestRedactor_RedactAttrFields(t *testing.T) {
	r := NewRedactor()

	for _, tc := range []struct {
		attr slog.Attr
		want string
	}{
		{slog.String("key", "tenant:acme-prod"), "tenant:acme***"},
		{slog.String("token", "abcdefgh"), "abcd***"},
		{slog.String("note", "mail bob@x.org"), "mail ***@x.org"},
	} {
		if got := r.RedactAttr(tc.attr).Value.String(); got != tc.want {
			t.Errorf("RedactAttr(%s) = %q, want %q", tc.attr.Key, got, tc.want)
		}
	}
	if a := r.RedactAttr(slog.Int("count", 3)); a.Value.Int64() != 3 {
		t.Errorf("expected non-string value unchanged, got %v", a.Value)
	}
}

func TestRedactor_RedactAttr(t *testing.T) {
	r := NewRedactor()

	group := r.RedactAttr(slog.Group("auth", slog.String("secret", "topsecret"), slog.Int("retries", 2)))
	attrs := group.Value.Group()
	if len(attrs) != 2 {
		t.Fatalf("expected 2 attrs, got %d", len(attrs))
	}
	if attrs[0].Value.String() != "tops***" {
		t.Errorf("expected nested secret redacted, got %v", attrs[0].Value)
	}
	if attrs[1].Value.Int64() != 2 {
		t.Errorf("expected int unchanged, got %v", attrs[1].Value)
	}

	if a := r.RedactAttr(slog.Int("password", 1234)); a.Value.String() != "***" {
		t.Errorf("expected non-string sensitive value masked, got %v", a.Value)
	}
}

func TestRedactAPIKey(t *testing.T) {
	if got := RedactAPIKey("sk-123456"); got != "sk-1***" {
		t.Errorf("RedactAPIKey = %q", got)
	}
}

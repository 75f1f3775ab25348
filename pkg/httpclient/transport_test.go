package httpclient

import (
	"net/url"
	"strings"
	"testing"
)

func TestSanitizeURL(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "no query params",
			in:   "https://api.example.com/v1/messages",
			want: "https://api.example.com/v1/messages",
		},
		{
			name: "gemini style key param",
			in:   "https://generativelanguage.googleapis.com/v1beta/models/gemini:generateContent?key=AIzaSyABC123",
			want: "key=%5BREDACTED%5D",
		},
		{
			name: "api_key param",
			in:   "https://api.example.com/chat?api_key=sk-secret",
			want: "api_key=%5BREDACTED%5D",
		},
		{
			name: "mixed case token",
			in:   "https://api.example.com/chat?Access_Token=abc",
			want: "Access_Token=%5BREDACTED%5D",
		},
		{
			name: "plain params untouched",
			in:   "https://api.example.com/models?page=2&limit=10",
			want: "page=2&limit=10",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u, err := url.Parse(tt.in)
			if err != nil {
				t.Fatalf("url.Parse(%q) error = %v", tt.in, err)
			}
			got := sanitizeURL(u)
			if !strings.Contains(got, tt.want) {
				t.Errorf("sanitizeURL(%q) = %q, want it to contain %q", tt.in, got, tt.want)
			}
			if strings.Contains(got, "secret") || strings.Contains(got, "AIzaSy") {
				t.Errorf("sanitizeURL(%q) = %q still contains a credential", tt.in, got)
			}
		})
	}
}

func TestSanitizeURLNil(t *testing.T) {
	if got := sanitizeURL(nil); got != "" {
		t.Errorf("sanitizeURL(nil) = %q, want empty string", got)
	}
}

func TestIsSensitiveParam(t *testing.T) {
	sensitive := []string{"key", "API_KEY", "apiKey", "x-auth-token", "client_secret", "Password"}
	for _, p := range sensitive {
		if !isSensitiveParam(p) {
			t.Errorf("isSensitiveParam(%q) = false, want true", p)
		}
	}

	benign := []string{"page", "limit", "model", "stream"}
	for _, p := range benign {
		if isSensitiveParam(p) {
			t.Errorf("isSensitiveParam(%q) = true, want false", p)
		}
	}
}

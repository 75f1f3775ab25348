package llm

import (
	"strings"
	"testing"
)

func TestCredentialsValidate(t *testing.T) {
	tests := []struct {
		name    string
		creds   Credentials
		wantErr bool
	}{
		{"api key present", &APIKeyCredentials{Key: "sk-ant-test"}, false},
		{"api key missing", &APIKeyCredentials{}, true},
		{"service account file present", &ServiceAccountCredentials{KeyFile: "/tmp/key.json"}, false},
		{"service account file missing", &ServiceAccountCredentials{}, true},
		{"aws region present", &AWSCredentials{Region: "us-east-1"}, false},
		{"aws region missing", &AWSCredentials{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.creds.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestAPIKeyCredentialsRedacted(t *testing.T) {
	creds := &APIKeyCredentials{Key: "sk-ant-REDACTED"}
	redacted := creds.Redacted()

	if strings.Contains(redacted, "verysecret") {
		t.Errorf("Redacted() leaked the key: %q", redacted)
	}
	if !strings.Contains(redacted, "sk-a") || !strings.Contains(redacted, "1234") {
		t.Errorf("Redacted() should keep identifying affixes, got %q", redacted)
	}
}

func TestMaskSecret(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"short", "*****"},
		{"12345678", "********"},
		{"sk-ant-api03-abcd", "sk-a***abcd"},
	}

	for _, tt := range tests {
		if got := maskSecret(tt.in); got != tt.want {
			t.Errorf("maskSecret(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

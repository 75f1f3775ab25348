// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package secretscmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/tombee/baton/internal/commands/shared"
)

func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	return runCommandIn(t, "", args...)
}

func runCommandIn(t *testing.T, input string, args ...string) (string, error) {
	t.Helper()
	cmd := NewCommand()
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetErr(&buf)
	cmd.SetIn(strings.NewReader(input))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

// writeConfig points the shared config path at a temp file and returns
// its path.
func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	shared.SetConfigPathForTest(path)
	t.Cleanup(func() { shared.SetConfigPathForTest("") })
	return path
}

func TestNewCommand(t *testing.T) {
	cmd := NewCommand()
	if cmd.Use != "secrets" {
		t.Errorf("expected use 'secrets', got %s", cmd.Use)
	}

	want := map[string]bool{"set": false, "get": false, "list": false, "delete": false, "migrate": false}
	for _, sub := range cmd.Commands() {
		if _, ok := want[sub.Name()]; ok {
			want[sub.Name()] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("expected subcommand %q", name)
		}
	}
}

func TestGetFromEnvMasked(t *testing.T) {
	t.Setenv("BATON_SECRET_PROVIDERS_CLAUDE_API_KEY", "sk-ant-test1234567890")

	out, err := runCommand(t, "get", "providers/claude/api_key")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "sk-a...7890") {
		t.Errorf("expected masked value, got %q", out)
	}
	if strings.Contains(out, "sk-ant-test") {
		t.Errorf("masked output leaked the value: %q", out)
	}
}

func TestGetFromEnvUnmasked(t *testing.T) {
	t.Setenv("BATON_SECRET_PROVIDERS_CLAUDE_API_KEY", "sk-ant-test1234567890")

	out, err := runCommand(t, "get", "providers/claude/api_key", "--unmask")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "sk-ant-test1234567890") {
		t.Errorf("expected full value, got %q", out)
	}
}

func TestGetMissing(t *testing.T) {
	_, err := runCommand(t, "get", "providers/nope/api_key")
	if err == nil {
		t.Fatal("expected error for missing secret")
	}
	if !strings.Contains(err.Error(), "secret") {
		t.Errorf("expected a secret lookup error, got %v", err)
	}
}

func TestListShowsEnvSecrets(t *testing.T) {
	t.Setenv("BATON_SECRET_PROVIDERS_MOCK_API_KEY", "value-123")

	out, err := runCommand(t, "list")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "providers/mock/api_key") {
		t.Errorf("expected env secret in listing, got %q", out)
	}
	if !strings.Contains(out, "env") {
		t.Errorf("expected backend name in listing, got %q", out)
	}
	if strings.Contains(out, "value-123") {
		t.Errorf("listing leaked a secret value: %q", out)
	}
}

func TestDeleteRequiresForceWhenNonInteractive(t *testing.T) {
	t.Setenv("BATON_NON_INTERACTIVE", "1")

	_, err := runCommand(t, "delete", "providers/claude/api_key")
	if err == nil {
		t.Fatal("expected error without --force")
	}
	if !strings.Contains(err.Error(), "--force") {
		t.Errorf("expected --force hint, got %v", err)
	}
}

func TestSetRejectsBadKey(t *testing.T) {
	_, err := runCommandIn(t, "value", "set", "bad key")
	if err == nil {
		t.Fatal("expected error for key with spaces")
	}
	if !strings.Contains(err.Error(), "namespace/name") {
		t.Errorf("expected key format error, got %v", err)
	}
}

func TestSetRejectsEmptyValue(t *testing.T) {
	_, err := runCommandIn(t, "", "set", "providers/claude/api_key")
	if err == nil {
		t.Fatal("expected error for empty value")
	}
	if !strings.Contains(err.Error(), "empty") {
		t.Errorf("expected empty-value error, got %v", err)
	}
}

func TestMigrateDryRun(t *testing.T) {
	path := writeConfig(t, `providers:
  claude:
    type: claude
    api_key: sk-ant-abc123def456ghi
`)
	before, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}

	out, err := runCommand(t, "migrate", "--dry-run")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "Found 1 plaintext") {
		t.Errorf("expected finding report, got %q", out)
	}
	if !strings.Contains(out, "$secret:providers/claude/api_key") {
		t.Errorf("expected proposed reference, got %q", out)
	}
	if !strings.Contains(out, "Dry run") {
		t.Errorf("expected dry run note, got %q", out)
	}

	after, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(before, after) {
		t.Error("dry run modified the config file")
	}
}

func TestMigrateNothingToDo(t *testing.T) {
	writeConfig(t, `providers:
  claude:
    type: claude
    api_key: $secret:providers/claude/api_key
`)

	out, err := runCommand(t, "migrate")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "No plaintext API keys") {
		t.Errorf("expected nothing-to-do message, got %q", out)
	}
}

func TestMigrateRefusesWithoutConfirmation(t *testing.T) {
	t.Setenv("BATON_NON_INTERACTIVE", "1")
	path := writeConfig(t, `providers:
  claude:
    type: claude
    api_key: sk-ant-abc123def456ghi
`)
	before, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}

	_, err = runCommand(t, "migrate")
	if err == nil {
		t.Fatal("expected error without --yes")
	}
	if !strings.Contains(err.Error(), "--yes") {
		t.Errorf("expected --yes hint, got %v", err)
	}

	after, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(before, after) {
		t.Error("refused migration modified the config file")
	}
}

func TestMigrateNoConfig(t *testing.T) {
	shared.SetConfigPathForTest("")
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	_, err := runCommand(t, "migrate")
	if err == nil {
		t.Fatal("expected error without a config file")
	}
	if !strings.Contains(err.Error(), "config") {
		t.Errorf("expected config error, got %v", err)
	}
}

func TestConfirm(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  bool
	}{
		{"y", "y\n", true},
		{"yes", "yes\n", true},
		{"upper_y", "Y\n", true},
		{"n", "n\n", false},
		{"empty_line", "\n", false},
		{"eof", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := NewCommand()
			var buf bytes.Buffer
			cmd.SetOut(&buf)
			cmd.SetIn(strings.NewReader(tt.input))

			got, err := confirm(cmd, "Proceed?")
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("confirm(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestMaskValue(t *testing.T) {
	if got := maskValue("short"); got != "****" {
		t.Errorf("expected **** for short values, got %q", got)
	}
	if got := maskValue("sk-ant-test1234567890"); got != "sk-a...7890" {
		t.Errorf("expected edge mask, got %q", got)
	}
}

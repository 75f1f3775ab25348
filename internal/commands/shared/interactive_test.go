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

package shared

import (
	"testing"
)

// ciEnvVars are every variable the detector inspects; tests clear them
// all so the host CI environment cannot leak into assertions.
var ciEnvVars = []string{
	"BATON_NON_INTERACTIVE",
	"CI",
	"GITHUB_ACTIONS",
	"GITLAB_CI",
	"CIRCLECI",
	"JENKINS_HOME",
}

func clearInteractiveEnv(t *testing.T) {
	t.Helper()
	for _, key := range ciEnvVars {
		t.Setenv(key, "")
	}
}

func TestIsNonInteractive_EnvVar(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"BATON_NON_INTERACTIVE=true", "BATON_NON_INTERACTIVE", "true"},
		{"BATON_NON_INTERACTIVE=1", "BATON_NON_INTERACTIVE", "1"},
		{"BATON_NON_INTERACTIVE=yes", "BATON_NON_INTERACTIVE", "yes"},
		{"CI=true", "CI", "true"},
		{"CI=1", "CI", "1"},
		{"GITHUB_ACTIONS=true", "GITHUB_ACTIONS", "true"},
		{"GITLAB_CI=true", "GITLAB_CI", "true"},
		{"CIRCLECI=true", "CIRCLECI", "true"},
		{"JENKINS_HOME set to path", "JENKINS_HOME", "/var/jenkins"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearInteractiveEnv(t)
			t.Setenv(tt.key, tt.value)

			if !IsNonInteractive() {
				t.Error("expected non-interactive")
			}
		})
	}
}

func TestIsNonInteractive_CIVarMustBeTruthy(t *testing.T) {
	clearInteractiveEnv(t)
	// CI=false should not trip CI detection; the result then depends
	// only on whether stdin is a terminal.
	t.Setenv("CI", "false")

	if isCIEnvironment() {
		t.Error("CI=false should not be detected as a CI environment")
	}
}

func TestIsNonInteractive_NoTTY(t *testing.T) {
	clearInteractiveEnv(t)

	// Under go test stdin is not a terminal, so the TTY check alone
	// makes the context non-interactive.
	if isTerminal() {
		t.Skip("stdin is a TTY in this environment")
	}
	if !IsNonInteractive() {
		t.Error("expected non-interactive when stdin is not a TTY")
	}
}

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
	"os"
	"strings"

	"golang.org/x/term"
)

// IsNonInteractive reports whether prompting would block or misbehave:
// BATON_NON_INTERACTIVE is set truthy, a CI environment is detected, or
// stdin is not a terminal. Commands with a --no-interactive flag check
// the flag before consulting this.
func IsNonInteractive() bool {
	switch strings.ToLower(os.Getenv("BATON_NON_INTERACTIVE")) {
	case "true", "1", "yes":
		return true
	}
	return isCIEnvironment() || !isTerminal()
}

// ciMarkers are set to true/1 by the common CI systems.
var ciMarkers = []string{"CI", "GITHUB_ACTIONS", "GITLAB_CI", "CIRCLECI"}

// isCIEnvironment detects a CI environment. JENKINS_HOME holds a path
// rather than a flag, so any non-empty value counts.
func isCIEnvironment() bool {
	for _, name := range ciMarkers {
		if v := os.Getenv(name); v == "true" || v == "1" {
			return true
		}
	}
	return os.Getenv("JENKINS_HOME") != ""
}

// isTerminal reports whether stdin is a terminal.
func isTerminal() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

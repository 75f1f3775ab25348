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

	"github.com/tombee/baton/internal/config"
)

// Flag state shared by every command package. The root command binds its
// persistent flags to these variables through RegisterFlagPointers.
var (
	verboseFlag bool
	quietFlag   bool
	jsonFlag    bool
	configFlag  string
)

// Version information, overwritten at build time through SetVersion.
var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

// RegisterFlagPointers exposes the flag variables for cobra binding,
// in the order verbose, quiet, json, config.
func RegisterFlagPointers() (*bool, *bool, *bool, *string) {
	return &verboseFlag, &quietFlag, &jsonFlag, &configFlag
}

// GetVerbose reports whether --verbose was given.
func GetVerbose() bool {
	return verboseFlag
}

// GetQuiet reports whether --quiet was given.
func GetQuiet() bool {
	return quietFlag
}

// GetJSON reports whether --json output was requested.
func GetJSON() bool {
	return jsonFlag
}

// ResolveConfigPath returns the --config flag value when set, otherwise
// the default config path when a file exists there. An empty result
// means built-in defaults and environment variables apply.
func ResolveConfigPath() string {
	if configFlag != "" {
		return configFlag
	}
	path, err := config.ConfigPath()
	if err != nil {
		return ""
	}
	if _, err := os.Stat(path); err != nil {
		return ""
	}
	return path
}

// SetVersion records the build version triple before any command runs.
func SetVersion(v, c, b string) {
	version = v
	commit = c
	buildDate = b
}

// GetVersion returns the version, commit, and build date.
func GetVersion() (string, string, string) {
	return version, commit, buildDate
}

// SetConfigPathForTest points config resolution at a fixture path.
func SetConfigPathForTest(path string) {
	configFlag = path
}

// SetJSONForTest toggles JSON output for tests that capture stdout.
func SetJSONForTest(enabled bool) {
	jsonFlag = enabled
}

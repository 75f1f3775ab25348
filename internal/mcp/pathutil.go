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

package mcp

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// allowedPathsEnv lists extra directories, separated like PATH, that
// MCP tools may read from in addition to the working directory.
const allowedPathsEnv = "BATON_ALLOWED_PATHS"

// ValidatePath rejects paths an MCP client must not reach: traversal
// sequences, and anything outside the working directory unless an
// allow-listed directory covers it.
func ValidatePath(path string) error {
	if path == "" {
		return fmt.Errorf("path is empty")
	}

	if strings.Contains(path, "..") {
		return fmt.Errorf("path contains directory traversal sequence (..)")
	}

	absPath, err := filepath.Abs(filepath.Clean(path))
	if err != nil {
		return fmt.Errorf("failed to resolve absolute path: %w", err)
	}

	// Symlinks are resolved so a link inside the working directory
	// cannot smuggle in a target outside it. A path that does not
	// exist yet is fine; later reads will fail on their own.
	resolvedPath, err := filepath.EvalSymlinks(absPath)
	if err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("failed to resolve symlinks: %w", err)
		}
		resolvedPath = absPath
	}

	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("failed to get current directory: %w", err)
	}

	if isPathWithinDir(resolvedPath, cwd) {
		return nil
	}

	allowedPaths := os.Getenv(allowedPathsEnv)
	if allowedPaths == "" {
		return fmt.Errorf("path is outside the current directory and %s is not set", allowedPathsEnv)
	}

	for _, allowedDir := range filepath.SplitList(allowedPaths) {
		absAllowedDir, err := filepath.Abs(allowedDir)
		if err != nil {
			continue
		}
		if isPathWithinDir(resolvedPath, absAllowedDir) {
			return nil
		}
	}

	return fmt.Errorf("path is not within the current directory or %s", allowedPathsEnv)
}

// isPathWithinDir reports whether path is dir or inside it.
func isPathWithinDir(path, dir string) bool {
	path = filepath.Clean(path)
	dir = filepath.Clean(dir)

	if !filepath.IsAbs(path) {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return false
		}
		path = absPath
	}
	if !filepath.IsAbs(dir) {
		absDir, err := filepath.Abs(dir)
		if err != nil {
			return false
		}
		dir = absDir
	}

	// The separator suffix keeps /foo from matching /foobar.
	return path == dir || strings.HasPrefix(path+string(filepath.Separator), dir+string(filepath.Separator))
}

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

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

// Terminal styles shared by every command. lipgloss degrades to plain
// text when stdout is not a terminal.
var (
	StatusOK    = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	StatusWarn  = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	StatusError = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	StatusInfo  = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))

	// Muted styles secondary text such as hints and annotations.
	Muted = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))

	// Bold emphasizes identifiers in human output.
	Bold = lipgloss.NewStyle().Bold(true)
)

// Status symbols paired with the styles above.
const (
	SymbolOK    = "✓"
	SymbolWarn  = "⚠"
	SymbolError = "✗"
	SymbolInfo  = "•"
)

// RenderOK prefixes msg with a green check.
func RenderOK(msg string) string {
	return StatusOK.Render(SymbolOK) + " " + msg
}

// RenderWarn prefixes msg with an orange warning sign.
func RenderWarn(msg string) string {
	return StatusWarn.Render(SymbolWarn) + " " + msg
}

// RenderError prefixes msg with a red cross.
func RenderError(msg string) string {
	return StatusError.Render(SymbolError) + " " + msg
}

// RenderLabel dims a label in key: value output.
func RenderLabel(label string) string {
	return Muted.Render(label)
}

// ColorEnabled reports whether output should use terminal formatting:
// stdout is a terminal, NO_COLOR is unset, and TERM is usable.
func ColorEnabled() bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	if t := os.Getenv("TERM"); t == "dumb" || t == "" {
		return false
	}
	return term.IsTerminal(int(os.Stdout.Fd()))
}

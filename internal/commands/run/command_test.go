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

package run

import (
	"bytes"
	"strings"
	"testing"
)

func TestNewCommand_Flags(t *testing.T) {
	cmd := NewCommand()

	flags := []string{
		"input",
		"input-file",
		"set",
		"provider",
		"resume",
		"watch",
		"dry-run",
		"output",
		"no-interactive",
		"help-inputs",
		"timeout",
	}
	for _, name := range flags {
		if cmd.Flags().Lookup(name) == nil {
			t.Errorf("flag --%s not registered", name)
		}
	}

	if cmd.Flags().ShorthandLookup("i") == nil {
		t.Error("shorthand -i not registered")
	}
	if cmd.Flags().ShorthandLookup("o") == nil {
		t.Error("shorthand -o not registered")
	}
}

func TestNewCommand_RequiresPipelineArg(t *testing.T) {
	cmd := NewCommand()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{})

	if err := cmd.Execute(); err == nil {
		t.Error("expected error without pipeline argument")
	}
}

func TestNewCommand_RejectsInvalidOutputFormat(t *testing.T) {
	cmd := NewCommand()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"pipeline.yaml", "--output", "xml"})

	err := cmd.Execute()
	if err == nil {
		t.Fatal("expected error for invalid output format")
	}
	if !strings.Contains(err.Error(), "invalid output format") {
		t.Errorf("error = %v", err)
	}
}

func TestNewCommand_RejectsResumeWithWatch(t *testing.T) {
	cmd := NewCommand()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"pipeline.yaml", "--resume", "latest", "--watch"})

	err := cmd.Execute()
	if err == nil {
		t.Fatal("expected error combining --resume and --watch")
	}
	if !strings.Contains(err.Error(), "cannot be combined") {
		t.Errorf("error = %v", err)
	}
}

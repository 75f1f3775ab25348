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

package cli

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/spf13/cobra"
)

func newHelpTestRoot() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "baton",
		Short: "Test root",
	}
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().String("config", "", "Path to config file")

	sampleCmd := &cobra.Command{
		Use:   "sample",
		Short: "Sample subcommand",
		Long:  "A sample subcommand for exercising help output",
		Example: `  baton sample
  baton sample --flag value`,
	}
	sampleCmd.Flags().String("flag", "", "A sample flag")
	rootCmd.AddCommand(sampleCmd)

	rootCmd.SetHelpCommand(NewHelpCommand(rootCmd))
	return rootCmd
}

func TestHelpCommandJSONListsCommands(t *testing.T) {
	rootCmd := newHelpTestRoot()

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs([]string{"help", "--json"})

	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	var resp HelpResponse
	if err := json.Unmarshal(buf.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse JSON output: %v\noutput: %s", err, buf.String())
	}

	if resp.Version != "1.0" {
		t.Errorf("expected version 1.0, got %s", resp.Version)
	}
	if !resp.Success {
		t.Error("expected success true")
	}
	if resp.DocsURL == "" {
		t.Error("expected docs_url to be set")
	}
	if len(resp.Commands) == 0 {
		t.Error("expected a commands list")
	}
	if resp.Command != nil {
		t.Errorf("expected command to be nil for the list form, got %+v", resp.Command)
	}
	if len(resp.GlobalFlags) != 2 {
		t.Errorf("expected 2 global flags, got %d", len(resp.GlobalFlags))
	}
}

func TestHelpCommandJSONSingleCommand(t *testing.T) {
	rootCmd := newHelpTestRoot()

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs([]string{"help", "sample", "--json"})

	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	var resp HelpResponse
	if err := json.Unmarshal(buf.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse JSON output: %v\noutput: %s", err, buf.String())
	}

	if resp.JSONResponse.Command != "help sample" {
		t.Errorf("expected command 'help sample', got %s", resp.JSONResponse.Command)
	}
	if resp.Command == nil {
		t.Fatal("expected command metadata, got nil")
	}
	if resp.Command.Name != "sample" {
		t.Errorf("expected command name 'sample', got %s", resp.Command.Name)
	}
	if resp.Command.Examples == "" {
		t.Error("expected examples to be populated")
	}
	if len(resp.Commands) > 0 {
		t.Errorf("expected commands to be empty for a single command, got %d", len(resp.Commands))
	}
}

func TestHelpCommandUnknown(t *testing.T) {
	rootCmd := newHelpTestRoot()

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs([]string{"help", "nosuch"})

	err := rootCmd.Execute()
	if err == nil {
		t.Fatal("expected error for unknown command")
	}
	if !strings.Contains(err.Error(), "not found") {
		t.Errorf("expected 'not found' error, got %v", err)
	}
}

func TestHelpCommandHumanOutput(t *testing.T) {
	rootCmd := newHelpTestRoot()

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs([]string{"help"})

	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	if strings.HasPrefix(strings.TrimSpace(buf.String()), "{") {
		t.Error("expected human output, got JSON")
	}
}

func TestExtractCommandMetadata(t *testing.T) {
	cmd := &cobra.Command{
		Use:     "testcmd",
		Short:   "Test command",
		Long:    "This is a longer description",
		Example: "testcmd --flag value",
		Aliases: []string{"tc"},
	}
	cmd.Flags().String("flag", "default", "A test flag")
	cmd.Flags().Bool("bool-flag", false, "A boolean flag")
	cmd.AddCommand(&cobra.Command{Use: "sub", Short: "A subcommand"})

	meta := extractCommandMetadata(cmd)

	if meta.Name != "testcmd" {
		t.Errorf("expected name 'testcmd', got %s", meta.Name)
	}
	if meta.Short != "Test command" {
		t.Errorf("expected short 'Test command', got %s", meta.Short)
	}
	if meta.Long != "This is a longer description" {
		t.Errorf("expected long description, got %s", meta.Long)
	}
	if len(meta.Aliases) != 1 {
		t.Errorf("expected 1 alias, got %d", len(meta.Aliases))
	}
	if len(meta.Flags) != 2 {
		t.Errorf("expected 2 flags, got %d", len(meta.Flags))
	}
	if len(meta.Subcommands) != 1 || meta.Subcommands[0] != "sub" {
		t.Errorf("expected subcommand 'sub', got %v", meta.Subcommands)
	}
}

func TestExtractGlobalFlags(t *testing.T) {
	rootCmd := &cobra.Command{Use: "baton"}
	rootCmd.PersistentFlags().Bool("verbose", false, "Verbose output")
	rootCmd.PersistentFlags().String("config", "", "Config file")

	flags := extractGlobalFlags(rootCmd)

	if len(flags) != 2 {
		t.Fatalf("expected 2 global flags, got %d", len(flags))
	}

	byName := map[string]FlagMetadata{}
	for _, f := range flags {
		byName[f.Name] = f
	}
	if f, ok := byName["verbose"]; !ok || f.Usage != "Verbose output" {
		t.Errorf("expected verbose flag with usage, got %+v", byName)
	}
	if _, ok := byName["config"]; !ok {
		t.Error("expected config flag")
	}
}

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

// Package secretscmd manages the credentials baton providers use.
package secretscmd

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"

	"github.com/tombee/baton/internal/commands/shared"
	"github.com/tombee/baton/internal/config"
	"github.com/tombee/baton/internal/secrets"
)

// NewCommand creates the secrets command group.
func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "secrets",
		Short: "Manage provider API keys and credentials",
		Long: `Manage the API keys and credentials baton providers use.

Secrets live in a tiered backend chain with automatic fallback:
  1. Environment variables (BATON_SECRET_*, read-only, highest priority)
  2. System keychain (macOS Keychain, Linux Secret Service, Windows
     Credential Manager)
  3. Encrypted file (AES-256-GCM, for headless machines)

Config values reference stored secrets as $secret:<key>; references are
resolved when the config loads.

Commands:
  set       Store a secret
  get       Retrieve a secret
  list      List stored secret keys
  delete    Remove a secret
  migrate   Move plaintext API keys out of the config file

Examples:
  baton secrets set providers/claude/api_key
  baton secrets get providers/claude/api_key
  baton secrets list
  baton secrets migrate --dry-run`,
	}

	cmd.AddCommand(newSetCommand())
	cmd.AddCommand(newGetCommand())
	cmd.AddCommand(newListCommand())
	cmd.AddCommand(newDeleteCommand())
	cmd.AddCommand(newMigrateCommand())

	return cmd
}

func newSetCommand() *cobra.Command {
	var backend string

	cmd := &cobra.Command{
		Use:   "set <key>",
		Short: "Store a secret",
		Long: `Store a secret in the first writable backend, or a specific one.

The value is read from a hidden prompt on a terminal, or from stdin when
piped. Keys are hierarchical, matching the $secret: references config
files use:

  baton secrets set providers/claude/api_key
  echo "sk-ant-..." | baton secrets set providers/claude/api_key
  baton secrets set providers/gemini/api_key --backend file`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSet(cmd, args[0], backend)
		},
	}

	cmd.Flags().StringVar(&backend, "backend", "", "Target backend (keychain, file)")

	return cmd
}

func runSet(cmd *cobra.Command, key, backend string) error {
	if err := validateKey(key); err != nil {
		return err
	}

	value, err := readSecretValue(cmd)
	if err != nil {
		return fmt.Errorf("failed to read secret value: %w", err)
	}
	if value == "" {
		return fmt.Errorf("secret value cannot be empty")
	}

	resolver := secrets.DefaultResolver()
	if err := resolver.Set(cmd.Context(), key, value, backend); err != nil {
		if errors.Is(err, secrets.ErrBackendUnavailable) {
			return fmt.Errorf("no writable backend available: %w (or export %s)", err, envName(key))
		}
		return fmt.Errorf("failed to store secret: %w", err)
	}

	if !shared.GetQuiet() {
		cmd.Println(shared.RenderOK(fmt.Sprintf("Stored %s in the %s backend", key, storedBackend(resolver, backend))))
	}
	return nil
}

func newGetCommand() *cobra.Command {
	var unmask bool

	cmd := &cobra.Command{
		Use:   "get <key>",
		Short: "Retrieve a secret",
		Long: `Retrieve a secret from the highest-priority backend that has it.

The value is masked unless --unmask is given.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGet(cmd, args[0], unmask)
		},
	}

	cmd.Flags().BoolVar(&unmask, "unmask", false, "Print the full value")

	return cmd
}

func runGet(cmd *cobra.Command, key string, unmask bool) error {
	value, err := secrets.DefaultResolver().Get(cmd.Context(), key)
	if err != nil {
		if errors.Is(err, secrets.ErrSecretNotFound) {
			return fmt.Errorf("secret not found: %q (store it with: baton secrets set %s)", key, key)
		}
		return fmt.Errorf("failed to get secret: %w", err)
	}

	display := value
	if !unmask {
		display = maskValue(value)
	}

	if shared.GetJSON() {
		type getResponse struct {
			shared.JSONResponse
			Key    string `json:"key"`
			Value  string `json:"value"`
			Masked bool   `json:"masked"`
		}
		return shared.EmitJSON(getResponse{
			JSONResponse: shared.NewJSONResponse("secrets get", true),
			Key:    key,
			Value:  display,
			Masked: !unmask,
		})
	}

	if unmask {
		cmd.Println(display)
	} else {
		cmd.Printf("%s %s\n", display, shared.Muted.Render("(--unmask to print the full value)"))
	}
	return nil
}

func newListCommand() *cobra.Command {
	return &cobra.Command{
		Use:           "list",
		Short:         "List stored secret keys",
		Long:          "List secret keys across all backends. Values are never shown.",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(cmd)
		},
	}
}

// secretEntry is one stored secret in list output.
type secretEntry struct {
	Key      string `json:"key"`
	Backend  string `json:"backend"`
	ReadOnly bool   `json:"read_only"`
}

func runList(cmd *cobra.Command) error {
	metadata, err := secrets.DefaultResolver().List(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to list secrets: %w", err)
	}

	entries := make([]secretEntry, 0, len(metadata))
	for _, m := range metadata {
		entries = append(entries, secretEntry{
			Key:      m.Key,
			Backend:  m.Backend,
			ReadOnly: m.ReadOnly,
		})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Key < entries[j].Key })

	if shared.GetJSON() {
		type listResponse struct {
			shared.JSONResponse
			Secrets []secretEntry `json:"secrets"`
		}
		return shared.EmitJSON(listResponse{
			JSONResponse: shared.NewJSONResponse("secrets list", true),
			Secrets: entries,
		})
	}

	if len(entries) == 0 {
		cmd.Println("No secrets stored.")
		return nil
	}

	for _, e := range entries {
		access := ""
		if e.ReadOnly {
			access = shared.Muted.Render("read-only")
		}
		cmd.Printf("%-44s %-10s %s\n", e.Key, e.Backend, access)
	}
	cmd.Printf("\n%d secret(s)\n", len(entries))
	return nil
}

func newDeleteCommand() *cobra.Command {
	var (
		backend string
		force   bool
	)

	cmd := &cobra.Command{
		Use:   "delete <key>",
		Short: "Remove a secret",
		Long: `Remove a secret from every writable backend, or from one backend.

Asks for confirmation on a terminal; --force skips it.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDelete(cmd, args[0], backend, force)
		},
	}

	cmd.Flags().StringVar(&backend, "backend", "", "Target backend (keychain, file)")
	cmd.Flags().BoolVar(&force, "force", false, "Skip the confirmation prompt")

	return cmd
}

func runDelete(cmd *cobra.Command, key, backend string, force bool) error {
	if !force {
		if shared.IsNonInteractive() {
			return fmt.Errorf("refusing to delete %q without confirmation (use --force)", key)
		}
		ok, err := confirm(cmd, fmt.Sprintf("Delete secret %q?", key))
		if err != nil {
			return err
		}
		if !ok {
			cmd.Println("Canceled.")
			return nil
		}
	}

	if err := secrets.DefaultResolver().Delete(cmd.Context(), key, backend); err != nil {
		if errors.Is(err, secrets.ErrSecretNotFound) {
			return fmt.Errorf("secret not found: %q", key)
		}
		if errors.Is(err, secrets.ErrReadOnlyBackend) {
			return fmt.Errorf("cannot delete from the read-only env backend")
		}
		return fmt.Errorf("failed to delete secret: %w", err)
	}

	if !shared.GetQuiet() {
		cmd.Println(shared.RenderOK(fmt.Sprintf("Deleted %s", key)))
	}
	return nil
}

func newMigrateCommand() *cobra.Command {
	var (
		backend string
		dryRun  bool
		yes     bool
	)

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Move plaintext API keys out of the config file",
		Long: `Move plaintext API keys from the config file into secret storage.

Scans providers.*.api_key for values that look like raw keys, stores
each one in the default writable backend, rewrites the config to use
$secret: references, and keeps a timestamped backup of the original
file next to it.

Examples:
  baton secrets migrate --dry-run
  baton secrets migrate --yes
  baton secrets migrate --backend file`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrate(cmd, backend, dryRun, yes)
		},
	}

	cmd.Flags().StringVar(&backend, "backend", "", "Target backend (keychain, file)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Preview changes without applying them")
	cmd.Flags().BoolVar(&yes, "yes", false, "Apply without confirmation")

	return cmd
}

// migrationTarget is one plaintext key found in the config file.
type migrationTarget struct {
	Provider string
	Key      string
	Value    string
}

func runMigrate(cmd *cobra.Command, backend string, dryRun, yes bool) error {
	configPath := shared.ResolveConfigPath()
	if configPath == "" {
		return fmt.Errorf("no config file found (pass --config or create one)")
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return fmt.Errorf("failed to read config: %w", err)
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}

	targets := plaintextKeys(raw)
	if len(targets) == 0 {
		cmd.Println("No plaintext API keys in config.")
		return nil
	}

	cmd.Printf("Found %d plaintext API key(s):\n\n", len(targets))
	for _, t := range targets {
		cmd.Printf("  %-12s %s -> $secret:%s\n", t.Provider, shared.Muted.Render(maskValue(t.Value)), t.Key)
	}
	cmd.Println()

	if dryRun {
		cmd.Println("Dry run, nothing changed.")
		return nil
	}

	if !yes {
		if shared.IsNonInteractive() {
			return fmt.Errorf("refusing to rewrite %s without confirmation (use --yes)", configPath)
		}
		ok, err := confirm(cmd, "Proceed with migration?")
		if err != nil {
			return err
		}
		if !ok {
			cmd.Println("Canceled.")
			return nil
		}
	}

	backupPath := configPath + ".backup." + time.Now().Format("20060102-150405")
	if err := os.WriteFile(backupPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write backup: %w", err)
	}

	resolver := secrets.DefaultResolver()
	for _, t := range targets {
		if err := resolver.Set(cmd.Context(), t.Key, t.Value, backend); err != nil {
			return fmt.Errorf("failed to store %s: %w", t.Key, err)
		}
		setProviderRef(raw, t.Provider, "$secret:"+t.Key)
	}

	updated, err := yaml.Marshal(raw)
	if err != nil {
		return fmt.Errorf("failed to render updated config: %w", err)
	}
	if err := os.WriteFile(configPath, updated, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	if !shared.GetQuiet() {
		cmd.Println(shared.RenderOK(fmt.Sprintf("Migrated %d key(s); backup at %s", len(targets), backupPath)))
	}
	return nil
}

// plaintextKeys scans a raw config document for provider API keys that
// are not $secret: references.
func plaintextKeys(raw map[string]any) []migrationTarget {
	providers, ok := raw["providers"].(map[string]any)
	if !ok {
		return nil
	}

	var targets []migrationTarget
	for name, v := range providers {
		p, ok := v.(map[string]any)
		if !ok {
			continue
		}
		apiKey, ok := p["api_key"].(string)
		if !ok || !config.LooksLikePlaintextKey(apiKey) {
			continue
		}
		targets = append(targets, migrationTarget{
			Provider: name,
			Key:      fmt.Sprintf("providers/%s/api_key", name),
			Value:    apiKey,
		})
	}

	sort.Slice(targets, func(i, j int) bool { return targets[i].Provider < targets[j].Provider })
	return targets
}

func setProviderRef(raw map[string]any, provider, ref string) {
	providers, ok := raw["providers"].(map[string]any)
	if !ok {
		return
	}
	p, ok := providers[provider].(map[string]any)
	if !ok {
		return
	}
	p["api_key"] = ref
}

// readSecretValue reads the secret from a hidden prompt on a terminal,
// or from the command input otherwise (pipes, tests).
func readSecretValue(cmd *cobra.Command) (string, error) {
	in := cmd.InOrStdin()
	if f, ok := in.(*os.File); ok {
		stat, err := f.Stat()
		if err != nil {
			return "", err
		}
		if (stat.Mode() & os.ModeCharDevice) != 0 {
			fmt.Fprint(cmd.OutOrStdout(), "Secret value (hidden): ")
			raw, err := term.ReadPassword(int(f.Fd()))
			fmt.Fprintln(cmd.OutOrStdout())
			if err != nil {
				return "", err
			}
			return string(raw), nil
		}
	}

	data, err := io.ReadAll(in)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

func confirm(cmd *cobra.Command, prompt string) (bool, error) {
	fmt.Fprintf(cmd.OutOrStdout(), "%s [y/N]: ", prompt)
	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return false, err
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes", nil
}

func validateKey(key string) error {
	if key == "" {
		return fmt.Errorf("secret key cannot be empty")
	}
	if strings.ContainsAny(key, " \\") {
		return fmt.Errorf("secret keys use namespace/name form, e.g. providers/claude/api_key")
	}
	return nil
}

// maskValue shows only the edges of a secret.
func maskValue(value string) string {
	if len(value) <= 8 {
		return "****"
	}
	return value[:4] + "..." + value[len(value)-4:]
}

// envName is the environment override for a key, e.g.
// providers/claude/api_key -> BATON_SECRET_PROVIDERS_CLAUDE_API_KEY.
func envName(key string) string {
	return "BATON_SECRET_" + strings.ToUpper(strings.ReplaceAll(key, "/", "_"))
}

// storedBackend names the backend a value landed in: the requested one,
// or the first writable in the chain.
func storedBackend(r *secrets.Resolver, requested string) string {
	if requested != "" {
		return requested
	}
	for _, b := range r.Backends() {
		if ro, ok := b.(secrets.ReadOnlyBackend); ok && ro.ReadOnly() {
			continue
		}
		return b.Name()
	}
	return "unknown"
}

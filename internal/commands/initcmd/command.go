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

// Package initcmd scaffolds new pipeline definitions.
package initcmd

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/tombee/baton/internal/commands/shared"
	"github.com/tombee/baton/internal/config"
	"github.com/tombee/baton/internal/templates"
	"github.com/tombee/baton/pkg/pipeline"
)

type initOptions struct {
	name          string
	description   string
	provider      string
	template      string
	output        string
	force         bool
	listTemplates bool
}

// NewCommand creates the init command
func NewCommand() *cobra.Command {
	opts := &initOptions{}

	cmd := &cobra.Command{
		Use:   "init [name]",
		Short: "Scaffold a new pipeline",
		Long: `Init creates a pipeline file from an embedded starter template.

Without arguments, an interactive form collects the details. In scripts,
pass --name (or the name argument) and the remaining flags:

  baton init
  baton init release-notes --provider claude
  baton init --name summarize --template summarize -o pipelines/summarize.yaml
  baton init --list-templates`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.listTemplates {
				return runListTemplates(cmd)
			}
			if len(args) > 0 {
				opts.name = args[0]
			}
			return runInit(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.name, "name", "", "pipeline name")
	cmd.Flags().StringVar(&opts.description, "description", "", "pipeline description")
	cmd.Flags().StringVar(&opts.provider, "provider", "", "provider for agent steps")
	cmd.Flags().StringVar(&opts.template, "template", "", "starter template (default blank, see --list-templates)")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output file (default <name>.yaml)")
	cmd.Flags().BoolVar(&opts.force, "force", false, "overwrite an existing file")
	cmd.Flags().BoolVar(&opts.listTemplates, "list-templates", false, "list available templates and exit")

	return cmd
}

func runInit(cmd *cobra.Command, opts *initOptions) error {
	if opts.name == "" {
		if shared.IsNonInteractive() {
			return fmt.Errorf("name is required: pass it as an argument or with --name")
		}
		if err := collectDetails(opts); err != nil {
			return err
		}
	}
	if opts.template == "" {
		opts.template = "blank"
	}

	if err := validateName(opts.name); err != nil {
		return err
	}
	if !templates.Exists(opts.template) {
		return fmt.Errorf("unknown template %q (see baton init --list-templates)", opts.template)
	}
	if opts.output == "" {
		opts.output = opts.name + ".yaml"
	}

	if _, err := os.Stat(opts.output); err == nil && !opts.force {
		return fmt.Errorf("%s already exists (use --force to overwrite)", opts.output)
	}

	scaffold, err := templates.Render(opts.template, templates.Data{
		Name:        opts.name,
		Description: opts.description,
		Provider:    opts.provider,
	})
	if err != nil {
		return fmt.Errorf("failed to render template: %w", err)
	}

	// A description with YAML metacharacters can break the document;
	// catch that before writing the file.
	if _, err := pipeline.Parse(scaffold); err != nil {
		return fmt.Errorf("generated pipeline is invalid (check the description for YAML special characters): %w", err)
	}

	if err := os.WriteFile(opts.output, scaffold, 0644); err != nil {
		return fmt.Errorf("failed to write pipeline file: %w", err)
	}

	if shared.GetJSON() {
		type initResponse struct {
			shared.JSONResponse
			Path     string `json:"path"`
			Name     string `json:"name"`
			Template string `json:"template"`
		}
		return shared.EmitJSON(initResponse{
			JSONResponse: shared.NewJSONResponse("init", true),
			Path:     opts.output,
			Name:     opts.name,
			Template: opts.template,
		})
	}

	if !shared.GetQuiet() {
		cmd.Println(shared.RenderOK(fmt.Sprintf("Created pipeline %s", opts.output)))
		cmd.Println(shared.Muted.Render(fmt.Sprintf("Run it with: baton run %s", opts.output)))
	}
	return nil
}

func runListTemplates(cmd *cobra.Command) error {
	list, err := templates.List()
	if err != nil {
		return err
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Name < list[j].Name })

	if shared.GetJSON() {
		type templateEntry struct {
			Name        string `json:"name"`
			Description string `json:"description"`
			Category    string `json:"category"`
		}
		type listResponse struct {
			shared.JSONResponse
			Templates []templateEntry `json:"templates"`
		}
		resp := listResponse{
			JSONResponse: shared.NewJSONResponse("init", true),
		}
		for _, t := range list {
			resp.Templates = append(resp.Templates, templateEntry{
				Name:        t.Name,
				Description: t.Description,
				Category:    t.Category,
			})
		}
		return shared.EmitJSON(resp)
	}

	cmd.Println(shared.Bold.Render("Available templates:"))
	for _, t := range list {
		cmd.Printf("  %-14s %-16s %s\n", t.Name, shared.Muted.Render(t.Category), t.Description)
	}
	cmd.Println()
	cmd.Println(shared.Muted.Render("Use one with: baton init <name> --template <template>"))
	return nil
}

// collectDetails runs the interactive form for anything not already set
// by flags.
func collectDetails(opts *initOptions) error {
	providerOptions := []huh.Option[string]{huh.NewOption("(pipeline default)", "")}
	for _, typ := range config.SupportedProviderTypes {
		providerOptions = append(providerOptions, huh.NewOption(typ, typ))
	}

	templateOptions, err := templateSelectOptions()
	if err != nil {
		return err
	}
	if opts.template == "" {
		opts.template = "blank"
	}

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Pipeline name").
				Description("Used as the file name and shown in run output").
				Placeholder("release-notes").
				Validate(validateName).
				Value(&opts.name),
			huh.NewInput().
				Title("Description").
				Placeholder("What does this pipeline do?").
				Value(&opts.description),
			huh.NewSelect[string]().
				Title("Starter template").
				Options(templateOptions...).
				Value(&opts.template),
			huh.NewSelect[string]().
				Title("Provider for agent steps").
				Options(providerOptions...).
				Value(&opts.provider),
		),
	)

	if err := form.Run(); err != nil {
		if err == huh.ErrUserAborted {
			os.Exit(130) // Standard exit code for SIGINT
		}
		return fmt.Errorf("form cancelled: %w", err)
	}

	outputForm := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Output file").
				Placeholder(opts.name + ".yaml").
				Value(&opts.output),
		),
	)

	if err := outputForm.Run(); err != nil {
		if err == huh.ErrUserAborted {
			os.Exit(130) // Standard exit code for SIGINT
		}
		return fmt.Errorf("form cancelled: %w", err)
	}

	return nil
}

func templateSelectOptions() ([]huh.Option[string], error) {
	list, err := templates.List()
	if err != nil {
		return nil, err
	}
	sort.Slice(list, func(i, j int) bool {
		// blank first, the rest alphabetical
		if list[i].Name == "blank" {
			return true
		}
		if list[j].Name == "blank" {
			return false
		}
		return list[i].Name < list[j].Name
	})

	opts := make([]huh.Option[string], 0, len(list))
	for _, t := range list {
		opts = append(opts, huh.NewOption(fmt.Sprintf("%s (%s)", t.Name, t.Description), t.Name))
	}
	return opts, nil
}

// validateName rejects names that would make awkward file names or
// run output.
func validateName(name string) error {
	if name == "" {
		return fmt.Errorf("pipeline name is required")
	}
	if strings.ContainsAny(name, "/\\ \t") {
		return fmt.Errorf("pipeline name must not contain spaces or path separators")
	}
	return nil
}

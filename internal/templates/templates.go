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

// Package templates holds the starter pipelines baton init scaffolds from.
package templates

import (
	"bytes"
	"embed"
	"fmt"
	"strings"
	"text/template"
)

// Starter pipelines ship inside the binary so init works offline.
//
//go:embed *.yaml
var embeddedFS embed.FS

// Template describes one embedded starter pipeline.
type Template struct {
	Name        string
	Description string
	Category    string
	FilePath    string
}

// Data carries the values substituted into a template.
type Data struct {
	Name        string
	Description string
	Provider    string
}

// catalog maps template names to display metadata. Embedded files
// missing from here fall back to generic labels in List.
var catalog = map[string]struct{ description, category string }{
	"blank":       {"Minimal pipeline with a variable step and a single agent step", "Basic"},
	"summarize":   {"Summarize text input into key points", "Text Processing"},
	"code-review": {"Review a diff for correctness and security in parallel", "Development"},
	"explain":     {"Explain code or technical concepts for a chosen audience", "Education"},
	"translate":   {"Translate text into another language", "Text Processing"},
}

// List returns every embedded template with its metadata.
func List() ([]Template, error) {
	entries, err := embeddedFS.ReadDir(".")
	if err != nil {
		return nil, fmt.Errorf("failed to read embedded templates: %w", err)
	}

	var templates []Template
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".yaml") {
			continue
		}
		name := strings.TrimSuffix(entry.Name(), ".yaml")
		meta, ok := catalog[name]
		if !ok {
			meta.description = "Pipeline template"
			meta.category = "General"
		}
		templates = append(templates, Template{
			Name:        name,
			Description: meta.description,
			Category:    meta.category,
			FilePath:    entry.Name(),
		})
	}
	return templates, nil
}

// validName rejects empty names and anything resembling a path.
func validName(name string) bool {
	return name != "" && !strings.ContainsAny(name, `/\`) && !strings.Contains(name, "..")
}

// Get returns the raw content of the named template.
func Get(name string) ([]byte, error) {
	if !validName(name) {
		return nil, fmt.Errorf("invalid template name: %q", name)
	}
	content, err := embeddedFS.ReadFile(name + ".yaml")
	if err != nil {
		return nil, fmt.Errorf("template %q not found: %w", name, err)
	}
	return content, nil
}

// Exists reports whether the named template is embedded.
func Exists(name string) bool {
	if !validName(name) {
		return false
	}
	_, err := embeddedFS.ReadFile(name + ".yaml")
	return err == nil
}

// Render substitutes data into a template. Templates use [[ ]] action
// delimiters so pipeline interpolation syntax passes through untouched.
func Render(templateName string, data Data) ([]byte, error) {
	content, err := Get(templateName)
	if err != nil {
		return nil, err
	}

	tmpl, err := template.New(templateName).Delims("[[", "]]").Parse(string(content))
	if err != nil {
		return nil, fmt.Errorf("failed to parse template %q: %w", templateName, err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("failed to render template %q: %w", templateName, err)
	}
	return buf.Bytes(), nil
}

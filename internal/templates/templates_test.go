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

package templates

import (
	"strings"
	"testing"

	"github.com/tombee/baton/pkg/pipeline"
)

func TestList(t *testing.T) {
	templates, err := List()
	if err != nil {
		t.Fatalf("List() failed: %v", err)
	}

	if len(templates) != 5 {
		t.Errorf("Expected 5 templates, got %d", len(templates))
	}

	expectedTemplates := map[string]bool{
		"blank":       false,
		"summarize":   false,
		"code-review": false,
		"explain":     false,
		"translate":   false,
	}

	for _, tmpl := range templates {
		if _, exists := expectedTemplates[tmpl.Name]; exists {
			expectedTemplates[tmpl.Name] = true
		} else {
			t.Errorf("Unexpected template found: %s", tmpl.Name)
		}

		if tmpl.Description == "" {
			t.Errorf("Template %s has empty description", tmpl.Name)
		}
		if tmpl.Category == "" {
			t.Errorf("Template %s has empty category", tmpl.Name)
		}
		if tmpl.FilePath == "" {
			t.Errorf("Template %s has empty file path", tmpl.Name)
		}
	}

	for name, found := range expectedTemplates {
		if !found {
			t.Errorf("Expected template %s not found", name)
		}
	}
}

func TestGet(t *testing.T) {
	tests := []struct {
		name        string
		template    string
		expectError bool
	}{
		{"blank template", "blank", false},
		{"summarize template", "summarize", false},
		{"unknown template", "nonexistent", true},
		{"path traversal", "../secrets", true},
		{"empty name", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			content, err := Get(tt.template)

			if tt.expectError {
				if err == nil {
					t.Errorf("Expected error for template %q, got nil", tt.template)
				}
				return
			}
			if err != nil {
				t.Errorf("Get(%q) failed: %v", tt.template, err)
			}
			if len(content) == 0 {
				t.Errorf("Get(%q) returned empty content", tt.template)
			}
		})
	}
}

func TestExists(t *testing.T) {
	tests := []struct {
		name     string
		template string
		expected bool
	}{
		{"blank exists", "blank", true},
		{"code-review exists", "code-review", true},
		{"unknown template", "nonexistent", false},
		{"empty string", "", false},
		{"path traversal", "../../etc/passwd", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Exists(tt.template); got != tt.expected {
				t.Errorf("Exists(%q) = %v, want %v", tt.template, got, tt.expected)
			}
		})
	}
}

func TestRender(t *testing.T) {
	tests := []struct {
		name         string
		templateName string
		data         Data
		expectError  bool
		checkContent func(t *testing.T, content []byte)
	}{
		{
			name:         "render blank template",
			templateName: "blank",
			data:         Data{Name: "my-pipeline"},
			checkContent: func(t *testing.T, content []byte) {
				s := string(content)
				if !strings.Contains(s, "name: my-pipeline") {
					t.Errorf("Rendered template does not contain pipeline name")
				}
				if strings.Contains(s, "[[") {
					t.Errorf("Rendered template still contains action delimiters:\n%s", s)
				}
				// Pipeline interpolation must survive rendering untouched.
				if !strings.Contains(s, "{{inputs.topic}}") {
					t.Errorf("Rendered template lost pipeline interpolation:\n%s", s)
				}
			},
		},
		{
			name:         "description and provider substituted",
			templateName: "blank",
			data:         Data{Name: "detailed", Description: "A detailed pipeline", Provider: "claude"},
			checkContent: func(t *testing.T, content []byte) {
				s := string(content)
				if !strings.Contains(s, "description: A detailed pipeline") {
					t.Errorf("Rendered template missing description:\n%s", s)
				}
				if !strings.Contains(s, "provider: claude") {
					t.Errorf("Rendered template missing provider:\n%s", s)
				}
			},
		},
		{
			name:         "omitted provider leaves no provider line",
			templateName: "blank",
			data:         Data{Name: "bare"},
			checkContent: func(t *testing.T, content []byte) {
				if strings.Contains(string(content), "provider:") {
					t.Errorf("Rendered template has stray provider line:\n%s", content)
				}
			},
		},
		{
			name:         "nonexistent template",
			templateName: "nonexistent",
			data:         Data{Name: "test"},
			expectError:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			content, err := Render(tt.templateName, tt.data)

			if tt.expectError {
				if err == nil {
					t.Errorf("Expected error for template %q, got nil", tt.templateName)
				}
				return
			}
			if err != nil {
				t.Fatalf("Render(%q) failed: %v", tt.templateName, err)
			}
			if len(content) == 0 {
				t.Errorf("Render(%q) returned empty content", tt.templateName)
			}
			if tt.checkContent != nil {
				tt.checkContent(t, content)
			}
		})
	}
}

func TestRenderedTemplatesParse(t *testing.T) {
	// Every rendered template must pass pipeline validation, with and
	// without the optional fields.
	templates := []string{"blank", "summarize", "code-review", "explain", "translate"}
	variants := map[string]Data{
		"bare":          {Name: "test-pipeline"},
		"with provider": {Name: "test-pipeline", Description: "A test", Provider: "mock"},
	}

	for _, tmpl := range templates {
		for variant, data := range variants {
			t.Run(tmpl+" "+variant, func(t *testing.T) {
				content, err := Render(tmpl, data)
				if err != nil {
					t.Fatalf("Render(%q) failed: %v", tmpl, err)
				}

				def, err := pipeline.Parse(content)
				if err != nil {
					t.Fatalf("rendered %q does not parse: %v\n%s", tmpl, err, content)
				}
				if def.Name != "test-pipeline" {
					t.Errorf("expected name test-pipeline, got %q", def.Name)
				}
				if len(def.Steps) == 0 {
					t.Errorf("rendered %q has no steps", tmpl)
				}
				if len(def.Outputs) == 0 {
					t.Errorf("rendered %q has no outputs", tmpl)
				}
			})
		}
	}
}

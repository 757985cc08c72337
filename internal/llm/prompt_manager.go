package llm

import (
	"bytes"
	"embed"
	"fmt"
	"io/fs"
	"path"
	"strings"
	"text/template"
)

//go:embed prompts/*.prompt
var promptFiles embed.FS

// ModelProvider selects a provider-specific prompt variant, e.g. "ollama".
type ModelProvider string

// PromptKey names a review task.
type PromptKey string

const (
	// DefaultProvider is the variant used when a provider has none of its own.
	DefaultProvider ModelProvider = "default"

	// CodeReviewPrompt renders the change under review with its past reviews
	// and the guide rules.
	CodeReviewPrompt PromptKey = "code_review"
	// CorrectivePrompt re-asks for schema-conforming JSON after an
	// unparseable answer.
	CorrectivePrompt PromptKey = "corrective"
)

// requiredPrompts must each ship a default variant.
var requiredPrompts = []PromptKey{CodeReviewPrompt, CorrectivePrompt}

type promptID struct {
	key      PromptKey
	provider ModelProvider
}

// PromptManager serves the embedded review and corrective templates. Files
// are named <key>_<provider>.prompt.
type PromptManager struct {
	templates map[promptID]*template.Template
}

// NewPromptManager parses every embedded template and fails if a task lacks
// its default variant.
func NewPromptManager() (*PromptManager, error) {
	return loadPrompts(promptFiles, "prompts")
}

func loadPrompts(fsys fs.FS, dir string) (*PromptManager, error) {
	names, err := fs.Glob(fsys, path.Join(dir, "*.prompt"))
	if err != nil {
		return nil, fmt.Errorf("failed to list prompt templates: %w", err)
	}

	pm := &PromptManager{templates: make(map[promptID]*template.Template, len(names))}
	for _, name := range names {
		id, err := parsePromptName(path.Base(name))
		if err != nil {
			return nil, err
		}
		body, err := fs.ReadFile(fsys, name)
		if err != nil {
			return nil, fmt.Errorf("failed to read prompt template %s: %w", name, err)
		}
		tmpl, err := template.New(string(id.key) + "_" + string(id.provider)).
			Funcs(template.FuncMap{"inc": func(i int) int { return i + 1 }}).
			Option("missingkey=error").
			Parse(string(body))
		if err != nil {
			return nil, fmt.Errorf("prompt template %s: %w", name, err)
		}
		pm.templates[id] = tmpl
	}

	for _, key := range requiredPrompts {
		if _, ok := pm.templates[promptID{key, DefaultProvider}]; !ok {
			return nil, fmt.Errorf("prompt %q has no %s template", key, DefaultProvider)
		}
	}
	return pm, nil
}

// parsePromptName splits "code_review_ollama.prompt" at the last underscore,
// so task keys may themselves contain underscores.
func parsePromptName(name string) (promptID, error) {
	base := strings.TrimSuffix(name, path.Ext(name))
	i := strings.LastIndex(base, "_")
	if i <= 0 || i == len(base)-1 {
		return promptID{}, fmt.Errorf("prompt template %s: name must be <key>_<provider>.prompt", name)
	}
	return promptID{key: PromptKey(base[:i]), provider: ModelProvider(base[i+1:])}, nil
}

// Get returns the provider's variant of key, or the default variant.
func (pm *PromptManager) Get(key PromptKey, provider ModelProvider) (*template.Template, error) {
	if tmpl, ok := pm.templates[promptID{key, provider}]; ok {
		return tmpl, nil
	}
	if tmpl, ok := pm.templates[promptID{key, DefaultProvider}]; ok {
		return tmpl, nil
	}
	return nil, fmt.Errorf("unknown prompt %q", key)
}

// Render executes the selected template with data. A field the template
// references but data lacks is an error.
func (pm *PromptManager) Render(key PromptKey, provider ModelProvider, data any) (string, error) {
	tmpl, err := pm.Get(key, provider)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render %s prompt: %w", key, err)
	}
	return buf.String(), nil
}

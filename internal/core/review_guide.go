package core

import (
	"path"
	"strings"
)

// ReviewGuide represents the structure of the optional review guide file.
type ReviewGuide struct {
	// Team style guide injected into every prompt.
	StyleGuide string `yaml:"style_guide"`

	// Custom instructions for the LLM prompt.
	CustomInstructions []string `yaml:"custom_instructions"`

	// Exclusion of entire directories by name. Example: ["dist", "vendor"]
	ExcludeDirs []string `yaml:"exclude_dirs"`

	// Exclusion of files based on their extension.
	// The leading dot is optional. Example: [".md", "lock"]
	ExcludeExts []string `yaml:"exclude_exts"`

	// Review files whose language is not recognized.
	IncludeOtherLanguages bool `yaml:"include_other_languages"`
}

// DefaultReviewGuide returns a guide with default values.
func DefaultReviewGuide() *ReviewGuide {
	return &ReviewGuide{
		CustomInstructions: []string{},
		ExcludeDirs:        []string{},
		ExcludeExts:        []string{},
	}
}

// Skips reports whether a changed file should be left out of a review.
func (g *ReviewGuide) Skips(file FileDiff) bool {
	if file.Language == LanguageOther && !g.IncludeOtherLanguages {
		return true
	}

	ext := strings.ToLower(path.Ext(file.FilePath))
	for _, e := range g.ExcludeExts {
		e = strings.ToLower(e)
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		if ext == e {
			return true
		}
	}

	dir := path.Dir(file.FilePath)
	for _, part := range strings.Split(dir, "/") {
		for _, excluded := range g.ExcludeDirs {
			if part == excluded {
				return true
			}
		}
	}
	return false
}

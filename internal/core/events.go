// Package core defines the essential interfaces and data structures that form the
// backbone of the application. These components are designed to be abstract,
// allowing for flexible and decoupled implementations of the application's logic.
package core

import (
	"fmt"
	"strings"
)

// FileDiff is one changed file of a pull request as supplied by the
// source-control collaborator.
type FileDiff struct {
	FilePath string       `json:"file_path" yaml:"file_path"`
	Patch    string       `json:"patch" yaml:"patch"`
	BaseRef  string       `json:"base_ref,omitempty" yaml:"base_ref"`
	HeadRef  string       `json:"head_ref,omitempty" yaml:"head_ref"`
	Language CodeLanguage `json:"language,omitempty" yaml:"language"`
}

// ReviewRequest is the ordered list of file changes of one pull request.
type ReviewRequest struct {
	Repository string     `json:"repository" yaml:"repository"`
	PRNumber   int        `json:"pr_number" yaml:"pr_number"`
	Files      []FileDiff `json:"files" yaml:"files"`
}

// Validate acts as an anti-corruption layer for incoming diffs. It rejects
// requests that cannot be reviewed and fills in the language of every file
// that did not declare one.
func (r *ReviewRequest) Validate() error {
	if strings.TrimSpace(r.Repository) == "" {
		return NewError(KindValidation, "validate request", fmt.Errorf("repository is required"))
	}
	if r.PRNumber <= 0 {
		return NewError(KindValidation, "validate request", fmt.Errorf("invalid pull request number: %d", r.PRNumber))
	}

	for i := range r.Files {
		f := &r.Files[i]
		if strings.TrimSpace(f.FilePath) == "" {
			return NewError(KindValidation, "validate request", fmt.Errorf("file %d has no path", i))
		}
		if f.Language == "" {
			f.Language = LanguageFromPath(f.FilePath)
		}
		if !f.Language.Valid() {
			return NewError(KindValidation, "validate request", fmt.Errorf("file %s has unknown language %q", f.FilePath, f.Language))
		}
	}
	return nil
}

package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/sevigo/precedent/internal/core"
)

var (
	ErrGuideNotFound = errors.New("review guide not found")
	ErrGuideParsing  = errors.New("review guide parsing failed")
)

// LoadReviewGuide loads the YAML review guide at path. An empty path yields
// the default guide.
func LoadReviewGuide(path string) (*core.ReviewGuide, error) {
	if path == "" {
		return core.DefaultReviewGuide(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return core.DefaultReviewGuide(), ErrGuideNotFound
		}
		return nil, fmt.Errorf("failed to read review guide: %w", err)
	}

	guide := core.DefaultReviewGuide()
	if err := yaml.Unmarshal(data, guide); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrGuideParsing, err)
	}
	return guide, nil
}

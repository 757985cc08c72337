package rag

import (
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/sevigo/precedent/internal/core"
)

type recordFile struct {
	Records []core.ReviewRecord `yaml:"records"`
}

// LoadRecords reads review records from YAML or JSON. The document is either
// a list of records or an object with a "records" list.
func LoadRecords(r io.Reader) ([]core.ReviewRecord, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read records: %w", err)
	}

	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return nil, fmt.Errorf("failed to parse records: %w", err)
	}
	if len(node.Content) == 0 {
		return nil, errors.New("records file is empty")
	}

	switch node.Content[0].Kind {
	case yaml.SequenceNode:
		var records []core.ReviewRecord
		if err := node.Content[0].Decode(&records); err != nil {
			return nil, fmt.Errorf("failed to decode records: %w", err)
		}
		return records, nil
	case yaml.MappingNode:
		var file recordFile
		if err := node.Content[0].Decode(&file); err != nil {
			return nil, fmt.Errorf("failed to decode records: %w", err)
		}
		return file.Records, nil
	default:
		return nil, errors.New("records file must hold a list or a records key")
	}
}

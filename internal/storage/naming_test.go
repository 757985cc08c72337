package storage

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCollectionName(t *testing.T) {
	tests := []struct {
		name  string
		base  string
		model string
		want  string
	}{
		{name: "ollama tag dropped", base: "code_reviews", model: "nomic-embed-text:latest", want: "code_reviews-nomic-embed-text"},
		{name: "dots stripped", base: "code_reviews", model: "text-embedding-3.small", want: "code_reviews-text-embedding-3small"},
		{name: "slashes become dashes", base: "Acme/Reviews", model: "org/model", want: "acme-reviews-org-model"},
		{name: "no model", base: "code_reviews", model: "", want: "code_reviews"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CollectionName(tt.base, tt.model))
		})
	}
}

func TestCollectionName_Truncates(t *testing.T) {
	name := CollectionName(strings.Repeat("a", 300), "hash-v1")
	assert.Len(t, name, maxCollectionNameLength)
}

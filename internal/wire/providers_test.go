package wire

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sevigo/precedent/internal/config"
	"github.com/sevigo/precedent/internal/llm"
)

func TestPromptBudget(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.RetrievalConfig
		want int
	}{
		{name: "characters by default", cfg: config.RetrievalConfig{PromptBudgetChars: 12000}, want: 12000},
		{name: "tokens override characters", cfg: config.RetrievalConfig{PromptBudgetChars: 12000, PromptBudgetTokens: 2000}, want: llm.BudgetFromTokens(2000)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, promptBudget(tt.cfg))
		})
	}
}

package routing

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEstimateCost(t *testing.T) {
	tests := []struct {
		name     string
		provider string
		model    string
		tokens   int
		want     float64
	}{
		{"free model on paid provider", "DeepSeek", "deepseek-chat:free", 100000, 0},
		{"free model on openrouter", "OpenRouter", "google/gemini-2.0-flash-thinking-exp:free", 5000, 0},
		{"longcat is zero rated", "LongCat", "gpt-4o", 1000000, 0},
		{"longcat any case", "LONGCAT", "gpt-4o", 10, 0},
		{"deepseek per 1k", "DeepSeek", "deepseek-chat", 1000, 0.0001},
		{"deepseek fractional", "Deepseek", "deepseek-coder", 2500, 0.00025},
		{"deepseek zero tokens", "DeepSeek", "deepseek-chat", 0, 0},
		{"unknown provider", "OpenRouter", "qwen/qwen-2.5-coder-32b-instruct", 5000, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, EstimateCost(tt.provider, tt.model, tt.tokens), 1e-12)
		})
	}
}

package routing

import "strings"

// deepSeekRatePer1K is the DeepSeek price in USD per 1000 tokens
const deepSeekRatePer1K = 0.0001

// EstimateCost returns the estimated USD cost of a completion. Free-tagged
// models and LongCat are zero-rated; DeepSeek is billed per 1000 tokens.
func EstimateCost(provider, model string, tokens int) float64 {
	if strings.Contains(model, ":free") {
		return 0
	}
	switch strings.ToLower(provider) {
	case "longcat":
		return 0
	case "deepseek":
		return float64(tokens) / 1000 * deepSeekRatePer1K
	default:
		return 0
	}
}

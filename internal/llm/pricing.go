package llm

// ModelPricing holds pricing info for a chat model (per 1M tokens in USD).
type ModelPricing struct {
	Provider    string
	Model       string
	InputPer1M  float64
	OutputPer1M float64
}

// PricingTable contains known judge model pricing.
// Prices last updated: 2025-12
var PricingTable = map[string]ModelPricing{
	// OpenAI
	"gpt-5.1":                {Provider: "OpenAI", Model: "gpt-5.1", InputPer1M: 1.10, OutputPer1M: 9.00},
	"gpt-5-mini":             {Provider: "OpenAI", Model: "gpt-5-mini", InputPer1M: 0.22, OutputPer1M: 1.80},
	"gpt-5-nano":             {Provider: "OpenAI", Model: "gpt-5-nano", InputPer1M: 0.04, OutputPer1M: 0.36},
	"gpt-4o":                 {Provider: "OpenAI", Model: "gpt-4o", InputPer1M: 2.50, OutputPer1M: 10.00},
	"gpt-4o-mini":            {Provider: "OpenAI", Model: "gpt-4o-mini", InputPer1M: 0.15, OutputPer1M: 0.60},
	"gpt-4o-mini-2024-07-18": {Provider: "OpenAI", Model: "gpt-4o-mini", InputPer1M: 0.15, OutputPer1M: 0.60},
	"gpt-4.1-mini":           {Provider: "OpenAI", Model: "gpt-4.1-mini", InputPer1M: 0.15, OutputPer1M: 0.60},

	// Anthropic
	"claude-opus-4.5":            {Provider: "Anthropic", Model: "claude-opus-4.5", InputPer1M: 5.00, OutputPer1M: 25.00},
	"claude-sonnet-4.5":          {Provider: "Anthropic", Model: "claude-sonnet-4.5", InputPer1M: 3.00, OutputPer1M: 15.00},
	"claude-haiku-4.5":           {Provider: "Anthropic", Model: "claude-haiku-4.5", InputPer1M: 1.00, OutputPer1M: 5.00},
	"claude-3-5-haiku-20241022":  {Provider: "Anthropic", Model: "claude-3-5-haiku", InputPer1M: 0.80, OutputPer1M: 4.00},
	"claude-3-5-sonnet-20241022": {Provider: "Anthropic", Model: "claude-3-5-sonnet", InputPer1M: 3.00, OutputPer1M: 15.00},
	"claude-3-haiku":             {Provider: "Anthropic", Model: "claude-3-haiku", InputPer1M: 0.25, OutputPer1M: 1.25},

	// Google
	"gemini-2.5-flash": {Provider: "Google", Model: "gemini-2.5-flash", InputPer1M: 0.07, OutputPer1M: 0.30},
	"gemini-1.5-pro":   {Provider: "Google", Model: "gemini-1.5-pro", InputPer1M: 1.25, OutputPer1M: 5.00},
	"gemini-1.5-flash": {Provider: "Google", Model: "gemini-1.5-flash", InputPer1M: 0.075, OutputPer1M: 0.30},
}

// EmbeddingPricingTable maps embedding models to their $ per 1M input
// tokens. Local models are free.
var EmbeddingPricingTable = map[string]float64{
	"text-embedding-3-small": 0.02,
	"text-embedding-3-large": 0.13,
	"text-embedding-004":     0.00,
	"nomic-embed-text":       0.00,
	"mxbai-embed-large":      0.00,
	"all-minilm":             0.00,
}

// GetPricing returns chat pricing for a model, or nil if unknown.
func GetPricing(model string) *ModelPricing {
	if p, ok := PricingTable[model]; ok {
		return &p
	}
	return nil
}

// ChatCost calculates the USD cost of one chat call. Unknown models cost
// zero; the ledger still books the token count.
func ChatCost(model string, inputTokens, outputTokens int) float64 {
	p := GetPricing(model)
	if p == nil {
		return 0
	}
	inputCost := float64(inputTokens) / 1_000_000 * p.InputPer1M
	outputCost := float64(outputTokens) / 1_000_000 * p.OutputPer1M
	return inputCost + outputCost
}

// EmbeddingCost calculates the USD cost of one embedding call.
func EmbeddingCost(model string, tokens int) float64 {
	price, ok := EmbeddingPricingTable[model]
	if !ok {
		return 0
	}
	return float64(tokens) / 1_000_000 * price
}

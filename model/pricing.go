package model

// Pricing describes a model's cost per 1k tokens in USD.
type Pricing struct {
	ID             string
	Label          string
	CostPer1kInput float64
	CostPer1kOut   float64
}

// PricingTable lists the known models. The first entry is the default model.
var PricingTable = []Pricing{
	{ID: "claude-sonnet-4-6", Label: "Sonnet 4.6", CostPer1kInput: 0.003, CostPer1kOut: 0.015},
	{ID: "claude-haiku-4-5-20251001", Label: "Haiku 4.5", CostPer1kInput: 0.0008, CostPer1kOut: 0.004},
	{ID: "claude-sonnet-4-5-20250929", Label: "Sonnet 4.5", CostPer1kInput: 0.003, CostPer1kOut: 0.015},
}

// DefaultModel is the model id used when the caller specifies none.
var DefaultModel = PricingTable[0].ID

// Default pricing tier applied when a model id is not in the table
// ($3 / $15 per million tokens).
const (
	fallbackInputPerM  = 3.0
	fallbackOutputPerM = 15.0
)

// Cost computes the USD cost of a completion from the model's declared
// per-unit pricing, falling back to the default tier for unknown ids.
func Cost(modelID string, inputTokens, outputTokens int64) float64 {
	for _, p := range PricingTable {
		if p.ID == modelID {
			return float64(inputTokens)*p.CostPer1kInput/1_000 +
				float64(outputTokens)*p.CostPer1kOut/1_000
		}
	}
	return float64(inputTokens)*fallbackInputPerM/1_000_000 +
		float64(outputTokens)*fallbackOutputPerM/1_000_000
}

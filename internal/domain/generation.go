/**
 * @description
 * This file defines the request and response DTOs for metered image
 * generation, plus the credit-cost table for model variants.
 */
package domain

// Credit costs per model variant. Unknown variants fall back to
// DefaultGenerationCost.
const (
	DefaultGenerationCost = 2
	PremiumGenerationCost = 6
)

var generationCosts = map[string]int{
	"google/gemini-2.5-flash-image-preview": DefaultGenerationCost,
	"google/gemini-2.5-pro-image-preview":   PremiumGenerationCost,
}

// GenerationCost returns the credit cost for a model variant.
func GenerationCost(model string) int {
	if cost, ok := generationCosts[model]; ok {
		return cost
	}
	return DefaultGenerationCost
}

// GenerateRequest is the DTO for incoming image-generation API requests.
type GenerateRequest struct {
	Image  string `json:"image"`
	Prompt string `json:"prompt"`
	Model  string `json:"model"`
}

// GenerateResult is the successful response for an image-generation request,
// including the post-debit balance so the client can update its display
// without a second round trip.
type GenerateResult struct {
	Content          string `json:"content"`
	ImageURL         string `json:"imageUrl"`
	CreditsUsed      int    `json:"creditsUsed"`
	RemainingCredits int    `json:"remainingCredits"`
}

package ai

import (
	"math"
	"strings"

	"github.com/pkoukk/tiktoken-go"
)

// Estimator predicts the token cost of a prompt before dispatch, so the
// budget check can refuse a call the provider would bill past the cap.
type Estimator interface {
	Estimate(text string) int
}

// NewEstimator returns a tiktoken-backed estimator when the model's encoding
// is known, falling back to the character heuristic otherwise.
func NewEstimator(model string) Estimator {
	tke, err := tiktoken.EncodingForModel(model)
	if err != nil {
		return HeuristicEstimator{}
	}
	return &tiktokenEstimator{encoding: tke}
}

type tiktokenEstimator struct {
	encoding *tiktoken.Tiktoken
}

func (e *tiktokenEstimator) Estimate(text string) int {
	if text == "" {
		return 0
	}
	return len(e.encoding.Encode(text, nil, nil))
}

// HeuristicEstimator approximates tokens from character count when no
// encoding is available: roughly 4 characters per token, padded 20% so the
// estimate errs toward refusing rather than overspending.
type HeuristicEstimator struct{}

func (HeuristicEstimator) Estimate(text string) int {
	collapsed := strings.Join(strings.Fields(text), " ")
	if collapsed == "" {
		return 0
	}
	return int(math.Ceil(float64(len(collapsed)) / 4 * 1.2))
}

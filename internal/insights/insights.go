// Package insights turns aggregated report numbers into short narrative
// observations using a generative model. Only aggregates ever leave the
// process: no transaction rows, titles or descriptions are sent.
package insights

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// MaxInsights is the number of observations requested from the model.
const MaxInsights = 3

var ErrInsightUnavailable = errors.New("insights unavailable")

// Generator produces narrative insights for an aggregated summary. A nil
// or empty result is valid and means "no insights".
type Generator interface {
	Generate(ctx context.Context, in Input) ([]string, error)
}

// CategoryFigure is one line of the expense breakdown handed to the model.
type CategoryFigure struct {
	Name       string  `json:"name"`
	Amount     float64 `json:"amount"`
	Percentage float64 `json:"percentage"`
}

// Input is the fixed-shape aggregate the model sees.
type Input struct {
	PeriodLabel string           `json:"periodLabel"`
	Income      float64          `json:"income"`
	Expenses    float64          `json:"expenses"`
	Balance     float64          `json:"balance"`
	SavingsRate float64          `json:"savingsRate"`
	Categories  []CategoryFigure `json:"categories"`
}

// Noop never produces insights. It is used when the model is disabled.
type Noop struct{}

func (Noop) Generate(context.Context, Input) ([]string, error) { return []string{}, nil }

// BuildPrompt renders the instruction and the aggregate as JSON.
func BuildPrompt(in Input) (string, error) {
	cats := append([]CategoryFigure(nil), in.Categories...)
	sort.SliceStable(cats, func(i, j int) bool { return cats[i].Amount > cats[j].Amount })
	in.Categories = cats

	payload, err := json.MarshalIndent(in, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal insight input: %w", err)
	}

	var b strings.Builder
	b.WriteString("You are a personal finance assistant. Analyse the spending summary below ")
	b.WriteString("for the period " + in.PeriodLabel + ".\n\n")
	b.WriteString(string(payload))
	b.WriteString("\n\nRules:\n")
	fmt.Fprintf(&b, "- Return exactly %d short, actionable insights.\n", MaxInsights)
	b.WriteString("- Each insight is one sentence and refers to the figures above.\n")
	b.WriteString("- Amounts are in the user's currency; do not convert them.\n")
	b.WriteString("Return ONLY a raw JSON array of strings.\n")
	b.WriteString("Do NOT wrap the response in code fences.\n")
	return b.String(), nil
}

// ParseInsights extracts the list of insight strings from a model reply. The
// reply may be wrapped in markdown fences or surrounded by chatter. Blank
// entries are dropped and the list is capped at MaxInsights.
func ParseInsights(raw string) ([]string, error) {
	clean := cleanModelJSON(raw)
	if clean == "" {
		return nil, fmt.Errorf("%w: empty model response", ErrInsightUnavailable)
	}

	items, err := decodeFirstArray(clean)
	if err != nil {
		return nil, fmt.Errorf("%w: decode model response: %v", ErrInsightUnavailable, err)
	}

	out := make([]string, 0, MaxInsights)
	for _, item := range items {
		if s := strings.TrimSpace(item); s != "" {
			out = append(out, s)
		}
		if len(out) == MaxInsights {
			break
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: no usable insights", ErrInsightUnavailable)
	}
	return out, nil
}

// cleanModelJSON drops surrounding whitespace and markdown fences.
func cleanModelJSON(raw string) string {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, "```") {
		idx := strings.Index(s, "\n")
		if idx == -1 {
			return ""
		}
		s = strings.TrimSpace(s[idx+1:])
	}
	if idx := strings.LastIndex(s, "```"); idx != -1 {
		s = s[:idx]
	}
	return strings.TrimSpace(s)
}

// decodeFirstArray decodes the first JSON string array in s. Decoding stops
// at the end of that array, so trailing text (even with brackets) is ignored.
func decodeFirstArray(s string) ([]string, error) {
	err := errors.New("no JSON array in response")
	for start := strings.Index(s, "["); start != -1; {
		var items []string
		if err = json.NewDecoder(strings.NewReader(s[start:])).Decode(&items); err == nil {
			return items, nil
		}
		next := strings.Index(s[start+1:], "[")
		if next == -1 {
			break
		}
		start += next + 1
	}
	return nil, err
}

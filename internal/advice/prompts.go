package advice

import (
	"fmt"
	"strings"

	"finwise/internal/core"
)

// Risk is an investor's risk profile.
type Risk string

const (
	RiskLow    Risk = "Low"
	RiskMedium Risk = "Medium"
	RiskHigh   Risk = "High"
)

// Risks lists the profiles in the order the form offers them.
var Risks = []Risk{RiskLow, RiskMedium, RiskHigh}

// ParseRisk accepts a profile name in any letter case.
func ParseRisk(s string) (Risk, error) {
	for _, r := range Risks {
		if strings.EqualFold(strings.TrimSpace(s), string(r)) {
			return r, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownRisk, s)
}

// CategoryPrompt asks for a single-word category for an expense description.
func CategoryPrompt(description string) string {
	return "Categorize this expense into one word (Food, Transport, Bills, Entertainment, Other): " + description
}

// SavingsPrompt asks for saving strategies given income and spending.
func SavingsPrompt(income, totalExpenses core.Money) string {
	return fmt.Sprintf("My monthly income is %s, my total expenses are %s. Suggest smart saving strategies.",
		income, totalExpenses)
}

// InvestmentPrompt asks for investment strategies for the given profile.
func InvestmentPrompt(income, savings core.Money, risk Risk, goals string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "I have a monthly income of %s, current savings of %s, and my risk profile is %s.\n", income, savings, risk)
	fmt.Fprintf(&b, "My financial goals are: %s.\n", strings.TrimSpace(goals))
	b.WriteString("Please suggest personalized investment strategies in simple, actionable steps.")
	return b.String()
}

// ChatPrompt returns the question to send verbatim, or ErrEmptyPrompt when
// there is nothing to ask.
func ChatPrompt(question string) (string, error) {
	q := strings.TrimSpace(question)
	if q == "" {
		return "", ErrEmptyPrompt
	}
	return q, nil
}

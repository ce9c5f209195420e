package router

import (
	"fmt"
	"strings"
)

func number(payload map[string]any, key string) (float64, bool) {
	switch v := payload[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	}
	return 0, false
}

func renderBalance(payload map[string]any) string {
	total, okTotal := number(payload, "total_unreimbursed")
	count, okCount := number(payload, "count")
	if !okTotal || !okCount {
		return "I couldn't read your unreimbursed balance from the ledger just now."
	}
	return fmt.Sprintf("Your current unreimbursed HSA balance is **$%.2f** across %d expense(s).", total, int(count))
}

func renderCharitable(payload map[string]any) string {
	total, okTotal := number(payload, "total_amount")
	count, okCount := number(payload, "total_count")
	if !okCount {
		count, okCount = number(payload, "count")
	}
	if !okTotal || !okCount {
		return "I couldn't read your charitable giving summary from the ledger just now."
	}

	reply := fmt.Sprintf("You've donated **$%.2f** across %d donation(s).", total, int(count))
	if deductible, ok := number(payload, "tax_deductible_total"); ok {
		reply += fmt.Sprintf(" $%.2f of that is tax deductible.", deductible)
	}
	return reply
}

// renderEntries lists ledger rows. It handles both expense entries
// (merchant) and donation entries (organization).
func renderEntries(payload map[string]any) string {
	raw, _ := payload["entries"].([]any)
	if len(raw) == 0 {
		return "I couldn't pull the detailed entries just now."
	}

	var b strings.Builder
	b.WriteString("Here are the details:\n")
	for _, item := range raw {
		entry, ok := item.(map[string]any)
		if !ok {
			continue
		}

		name, _ := entry["merchant"].(string)
		if name == "" {
			name, _ = entry["organization"].(string)
		}
		date, _ := entry["date"].(string)
		amount, _ := number(entry, "amount")

		line := fmt.Sprintf("- %s — %s: $%.2f", date, name, amount)
		if status, ok := entry["status"].(string); ok && status != "" {
			line += fmt.Sprintf(" (%s)", status)
		} else if deductible, ok := entry["tax_deductible"].(bool); ok {
			if deductible {
				line += " (tax deductible)"
			} else {
				line += " (not deductible)"
			}
		}
		b.WriteString(line + "\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

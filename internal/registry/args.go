package registry

import (
	"reflect"
	"strings"

	"github.com/mitchellh/mapstructure"
)

// Typed argument shapes for the builtin tools. The normalizer decodes the
// model's raw argument maps into these so downstream code never sees a
// string where a number belongs.

type AddNumbersArgs struct {
	A float64 `mapstructure:"a"`
	B float64 `mapstructure:"b"`
}

type ReadLedgerArgs struct {
	Status string `mapstructure:"status"`
	Limit  int    `mapstructure:"limit"`
}

type UpdateExpenseStatusArgs struct {
	ExpenseID string `mapstructure:"expense_id"`
	Status    string `mapstructure:"status"`
}

type CheckDuplicatesArgs struct {
	Merchant string  `mapstructure:"merchant"`
	Amount   float64 `mapstructure:"amount"`
	Date     string  `mapstructure:"date"`
}

type AppendExpenseArgs struct {
	Date        string  `mapstructure:"date"`
	Merchant    string  `mapstructure:"merchant"`
	Description string  `mapstructure:"description"`
	Amount      float64 `mapstructure:"amount"`
	Status      string  `mapstructure:"status"`
}

type CharitableSummaryArgs struct {
	Year              int  `mapstructure:"year"`
	TaxDeductibleOnly bool `mapstructure:"tax_deductible_only"`
}

type ReadCharitableArgs struct {
	Year         int    `mapstructure:"year"`
	Organization string `mapstructure:"organization"`
	Limit        int    `mapstructure:"limit"`
}

type AppendDonationArgs struct {
	Date          string  `mapstructure:"date"`
	Organization  string  `mapstructure:"organization"`
	Amount        float64 `mapstructure:"amount"`
	TaxDeductible bool    `mapstructure:"tax_deductible"`
	Description   string  `mapstructure:"description"`
}

type CheckCharitableDuplicatesArgs struct {
	Organization string  `mapstructure:"organization"`
	Amount       float64 `mapstructure:"amount"`
	Date         string  `mapstructure:"date"`
}

var argPrototypes = map[string]func() any{
	"add_numbers":                          func() any { return &AddNumbersArgs{} },
	"read_ledger_entries":                  func() any { return &ReadLedgerArgs{} },
	"update_expense_status":                func() any { return &UpdateExpenseStatusArgs{} },
	"check_for_duplicates":                 func() any { return &CheckDuplicatesArgs{} },
	"append_expense_to_ledger":             func() any { return &AppendExpenseArgs{} },
	"get_charitable_summary":               func() any { return &CharitableSummaryArgs{} },
	"read_charitable_ledger_entries":       func() any { return &ReadCharitableArgs{} },
	"append_charitable_donation_to_ledger": func() any { return &AppendDonationArgs{} },
	"check_charitable_duplicates":          func() any { return &CheckCharitableDuplicatesArgs{} },
}

// NormalizeArguments coerces a raw argument map into the tool's typed
// shape. It never fails: nil and blank-string values are dropped, unknown
// keys for known tools are dropped, values that cannot be coerced fall out,
// and unknown tools get their cleaned map passed through unchanged.
func NormalizeArguments(toolName string, raw map[string]any) map[string]any {
	cleaned := make(map[string]any, len(raw))
	for k, v := range raw {
		if v == nil {
			continue
		}
		if s, ok := v.(string); ok && strings.TrimSpace(s) == "" {
			continue
		}
		cleaned[k] = v
	}

	proto, known := argPrototypes[toolName]
	if !known {
		return cleaned
	}

	target := proto()
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           target,
		WeaklyTypedInput: true,
		DecodeHook:       boolishStringHook,
	})
	if err == nil {
		// Partial decodes are fine; fields that fail stay zero.
		_ = dec.Decode(cleaned)
	}

	var typed map[string]any
	_ = mapstructure.Decode(target, &typed)

	out := make(map[string]any, len(cleaned))
	for k := range cleaned {
		if v, ok := typed[k]; ok {
			out[k] = v
		}
	}
	return out
}

// boolishStringHook turns "yes"/"no" style strings into booleans before
// the weak decoder rejects them.
func boolishStringHook(from reflect.Type, to reflect.Type, data any) (any, error) {
	if from.Kind() != reflect.String || to.Kind() != reflect.Bool {
		return data, nil
	}
	switch strings.ToLower(strings.TrimSpace(data.(string))) {
	case "yes", "y", "true", "1", "on":
		return true, nil
	case "no", "n", "false", "0", "off":
		return false, nil
	}
	return data, nil
}

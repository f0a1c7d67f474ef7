package flags

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/pflag"
)

const (
	choiceTypeNameConstant           = "choice"
	choiceSeparatorConstant          = "|"
	choicePlaceholderTemplate        = "<%s>"
	choiceUsageEmptyTemplateConstant = "`%s`"
	choiceUsageFullTemplateConstant  = "`%s` %s"
	invalidChoiceMessageConstant     = "invalid choice"
	invalidChoiceTemplateConstant    = "%w %q, expected one of %s"
)

// ErrInvalidChoice indicates a flag value outside the registered choices.
var ErrInvalidChoice = errors.New(invalidChoiceMessageConstant)

// AddChoiceFlag registers a string flag restricted to choices. Values are matched case-insensitively
// and stored in their registered spelling. target keeps its zero value until the flag is set, so
// callers can tell an explicit choice from the configured default named in the usage text.
func AddChoiceFlag(flagSet *pflag.FlagSet, target *string, name string, defaultChoice string, choices []string, usage string) {
	if flagSet == nil || len(name) == 0 {
		return
	}
	value := &choiceFlagValue{target: target, choices: uniqueChoices(choices)}
	flagSet.Var(value, name, FormatChoiceUsage(defaultChoice, value.choices, usage))
}

// FormatChoiceUsage renders choices as a placeholder with defaultChoice upper-cased, followed by description.
func FormatChoiceUsage(defaultChoice string, choices []string, description string) string {
	normalizedDefault := strings.ToLower(strings.TrimSpace(defaultChoice))
	rendered := uniqueChoices(choices)
	for index, choice := range rendered {
		if len(normalizedDefault) > 0 && strings.ToLower(choice) == normalizedDefault {
			rendered[index] = strings.ToUpper(choice)
		}
	}
	placeholder := fmt.Sprintf(choicePlaceholderTemplate, strings.Join(rendered, choiceSeparatorConstant))

	trimmedDescription := strings.TrimSpace(description)
	if len(trimmedDescription) == 0 {
		return fmt.Sprintf(choiceUsageEmptyTemplateConstant, placeholder)
	}
	return fmt.Sprintf(choiceUsageFullTemplateConstant, placeholder, trimmedDescription)
}

// uniqueChoices trims choices and drops blanks and case-insensitive repeats, keeping the first spelling.
func uniqueChoices(choices []string) []string {
	unique := make([]string, 0, len(choices))
	seen := make(map[string]struct{}, len(choices))
	for _, choice := range choices {
		trimmed := strings.TrimSpace(choice)
		key := strings.ToLower(trimmed)
		if len(trimmed) == 0 {
			continue
		}
		if _, duplicate := seen[key]; duplicate {
			continue
		}
		seen[key] = struct{}{}
		unique = append(unique, trimmed)
	}
	return unique
}

type choiceFlagValue struct {
	target  *string
	current string
	choices []string
}

func (value *choiceFlagValue) Set(rawValue string) error {
	requested := strings.ToLower(strings.TrimSpace(rawValue))
	for _, choice := range value.choices {
		if strings.ToLower(choice) != requested {
			continue
		}
		value.current = choice
		if value.target != nil {
			*value.target = choice
		}
		return nil
	}
	return fmt.Errorf(invalidChoiceTemplateConstant, ErrInvalidChoice, rawValue, strings.Join(value.choices, choiceSeparatorConstant))
}

func (value *choiceFlagValue) String() string {
	return value.current
}

func (value *choiceFlagValue) Type() string {
	return choiceTypeNameConstant
}

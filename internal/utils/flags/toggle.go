package flags

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
)

const (
	toggleTrueCanonicalValue               = "true"
	toggleFalseCanonicalValue              = "false"
	toggleTypeNameConstant                 = "bool"
	toggleParseErrorTemplate               = "invalid toggle value %q"
	toggleArgumentTruePlaceholderConstant  = "<YES|no>"
	toggleArgumentFalsePlaceholderConstant = "<yes|NO>"
	toggleUsageEmptyTemplateConstant       = "`%s`"
	toggleUsageFullTemplateConstant        = "`%s` %s"
	longFlagPrefixConstant                 = "--"
	shortFlagPrefixConstant                = "-"
	flagValueSeparatorConstant             = "="
	argumentTerminatorConstant             = "--"
)

var toggleLiterals = map[string]bool{
	"true":  true,
	"yes":   true,
	"on":    true,
	"1":     true,
	"t":     true,
	"y":     true,
	"false": false,
	"no":    false,
	"off":   false,
	"0":     false,
	"f":     false,
	"n":     false,
}

// AddToggleFlag registers a boolean flag that accepts yes/no style values, with or without "=".
func AddToggleFlag(flagSet *pflag.FlagSet, target *bool, name string, shorthand string, defaultValue bool, usage string) {
	if flagSet == nil || len(name) == 0 {
		return
	}

	flagSet.VarP(newToggleFlagValue(defaultValue, target), name, shorthand, formatToggleUsage(usage, defaultValue))
	if registeredFlag := flagSet.Lookup(name); registeredFlag != nil {
		registeredFlag.NoOptDefVal = toggleTrueCanonicalValue
	}
}

// NormalizeToggleArguments rewrites "--flag value" into "--flag=value" for toggle flags found in flagSets,
// so an explicit value is not mistaken for a positional argument.
func NormalizeToggleArguments(arguments []string, flagSets ...*pflag.FlagSet) []string {
	if len(arguments) == 0 {
		return nil
	}

	normalized := make([]string, 0, len(arguments))
	for index := 0; index < len(arguments); index++ {
		current := arguments[index]
		if current == argumentTerminatorConstant {
			normalized = append(normalized, arguments[index:]...)
			break
		}
		if index+1 < len(arguments) && isBareToggle(current, flagSets) && !strings.HasPrefix(arguments[index+1], shortFlagPrefixConstant) {
			if _, isLiteral := toggleLiterals[strings.ToLower(strings.TrimSpace(arguments[index+1]))]; isLiteral {
				normalized = append(normalized, current+flagValueSeparatorConstant+arguments[index+1])
				index++
				continue
			}
		}
		normalized = append(normalized, current)
	}
	return normalized
}

// isBareToggle reports whether argument names a toggle flag without an inline value.
func isBareToggle(argument string, flagSets []*pflag.FlagSet) bool {
	if strings.Contains(argument, flagValueSeparatorConstant) {
		return false
	}
	var lookup func(flagSet *pflag.FlagSet) *pflag.Flag
	switch {
	case strings.HasPrefix(argument, longFlagPrefixConstant) && len(argument) > len(longFlagPrefixConstant):
		name := strings.TrimPrefix(argument, longFlagPrefixConstant)
		lookup = func(flagSet *pflag.FlagSet) *pflag.Flag { return flagSet.Lookup(name) }
	case strings.HasPrefix(argument, shortFlagPrefixConstant) && len(argument) == len(shortFlagPrefixConstant)+1:
		shorthand := strings.TrimPrefix(argument, shortFlagPrefixConstant)
		lookup = func(flagSet *pflag.FlagSet) *pflag.Flag { return flagSet.ShorthandLookup(shorthand) }
	default:
		return false
	}
	for _, flagSet := range flagSets {
		if flagSet == nil {
			continue
		}
		if matchedFlag := lookup(flagSet); matchedFlag != nil {
			_, isToggle := matchedFlag.Value.(*toggleFlagValue)
			return isToggle
		}
	}
	return false
}

func formatToggleUsage(description string, defaultValue bool) string {
	placeholder := toggleArgumentFalsePlaceholderConstant
	if defaultValue {
		placeholder = toggleArgumentTruePlaceholderConstant
	}
	trimmed := strings.TrimSpace(description)
	if len(trimmed) == 0 {
		return fmt.Sprintf(toggleUsageEmptyTemplateConstant, placeholder)
	}
	return fmt.Sprintf(toggleUsageFullTemplateConstant, placeholder, trimmed)
}

type toggleFlagValue struct {
	currentValue bool
	target       *bool
}

func newToggleFlagValue(defaultValue bool, target *bool) *toggleFlagValue {
	if target != nil {
		*target = defaultValue
	}
	return &toggleFlagValue{currentValue: defaultValue, target: target}
}

func (value *toggleFlagValue) Set(rawValue string) error {
	trimmedValue := strings.ToLower(strings.TrimSpace(rawValue))
	if len(trimmedValue) == 0 {
		trimmedValue = toggleTrueCanonicalValue
	}
	parsedValue, isLiteral := toggleLiterals[trimmedValue]
	if !isLiteral {
		return fmt.Errorf(toggleParseErrorTemplate, rawValue)
	}

	value.currentValue = parsedValue
	if value.target != nil {
		*value.target = parsedValue
	}
	return nil
}

func (value *toggleFlagValue) String() string {
	if value == nil || !value.currentValue {
		return toggleFalseCanonicalValue
	}
	return toggleTrueCanonicalValue
}

func (value *toggleFlagValue) Type() string {
	return toggleTypeNameConstant
}

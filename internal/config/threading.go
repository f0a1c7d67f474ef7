package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-viper/mapstructure/v2"
)

const (
	threadingStageNameConstant         = "stage"
	threadingUnstageNameConstant       = "unstage"
	threadingStatusListNameConstant    = "status_list"
	threadingNoneNameConstant          = "none"
	threadingSeparatorConstant         = ","
	unknownThreadingFlagMessage        = "unknown threading flag"
	unknownThreadingFlagTemplate       = "%w %q"
	unsupportedThreadingSourceTemplate = "cannot decode threading flags from %T"
)

// ErrUnknownThreadingFlag indicates an unrecognized threading flag name.
var ErrUnknownThreadingFlag = errors.New(unknownThreadingFlagMessage)

// ThreadingFlags selects which operations run on worker goroutines.
type ThreadingFlags uint8

// Threading flags.
const (
	ThreadingStage ThreadingFlags = 1 << iota
	ThreadingUnstage
	ThreadingStatusList
)

// ThreadingAll enables every threaded operation.
const ThreadingAll = ThreadingStage | ThreadingUnstage | ThreadingStatusList

var threadingFlagNames = []struct {
	flag ThreadingFlags
	name string
}{
	{ThreadingStage, threadingStageNameConstant},
	{ThreadingUnstage, threadingUnstageNameConstant},
	{ThreadingStatusList, threadingStatusListNameConstant},
}

// Has reports whether every flag in mask is enabled.
func (flags ThreadingFlags) Has(mask ThreadingFlags) bool {
	return flags&mask == mask
}

// Names lists the enabled flags in declaration order.
func (flags ThreadingFlags) Names() []string {
	names := make([]string, 0, len(threadingFlagNames))
	for _, entry := range threadingFlagNames {
		if flags.Has(entry.flag) {
			names = append(names, entry.name)
		}
	}
	return names
}

func (flags ThreadingFlags) String() string {
	names := flags.Names()
	if len(names) == 0 {
		return threadingNoneNameConstant
	}
	return strings.Join(names, threadingSeparatorConstant)
}

// ParseThreadingFlags converts flag names into ThreadingFlags. "none" and blank names are ignored.
func ParseThreadingFlags(names []string) (ThreadingFlags, error) {
	var flags ThreadingFlags
	for _, rawName := range names {
		normalizedName := strings.ToLower(strings.TrimSpace(rawName))
		if len(normalizedName) == 0 || normalizedName == threadingNoneNameConstant {
			continue
		}
		matched := false
		for _, entry := range threadingFlagNames {
			if entry.name == normalizedName {
				flags |= entry.flag
				matched = true
				break
			}
		}
		if !matched {
			return 0, fmt.Errorf(unknownThreadingFlagTemplate, ErrUnknownThreadingFlag, rawName)
		}
	}
	return flags, nil
}

// ThreadingFlagsDecodeHook decodes lists or comma-separated strings of flag names into ThreadingFlags.
func ThreadingFlagsDecodeHook() mapstructure.DecodeHookFuncType {
	targetType := reflect.TypeOf(ThreadingFlags(0))
	return func(sourceType reflect.Type, destinationType reflect.Type, data any) (any, error) {
		if destinationType != targetType {
			return data, nil
		}
		switch typedData := data.(type) {
		case ThreadingFlags:
			return typedData, nil
		case string:
			return ParseThreadingFlags(strings.Split(typedData, threadingSeparatorConstant))
		case []string:
			return ParseThreadingFlags(typedData)
		case []any:
			names := make([]string, 0, len(typedData))
			for _, element := range typedData {
				names = append(names, fmt.Sprint(element))
			}
			return ParseThreadingFlags(names)
		case nil:
			return ThreadingFlags(0), nil
		default:
			return nil, fmt.Errorf(unsupportedThreadingSourceTemplate, data)
		}
	}
}

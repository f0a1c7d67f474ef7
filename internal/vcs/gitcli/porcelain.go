package gitcli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/temirov/gixcore/internal/vcs"
)

const (
	recordSeparatorConstant          = "\x00"
	fieldSeparatorConstant           = " "
	ordinaryRecordMarkerConstant     = '1'
	renamedRecordMarkerConstant      = '2'
	unmergedRecordMarkerConstant     = 'u'
	untrackedRecordMarkerConstant    = '?'
	ignoredRecordMarkerConstant      = '!'
	headerRecordMarkerConstant       = '#'
	ordinaryRecordFieldCountConstant = 9
	renamedRecordFieldCountConstant  = 10
	unmergedRecordFieldCountConstant = 11
	statusCodeLengthConstant         = 2
	shortRecordPrefixLengthConstant  = 2
	malformedRecordTemplateConstant  = "malformed status record %q"
	missingRenameSourceMessage       = "rename record without source path"
)

var errMissingRenameSource = errors.New(missingRenameSourceMessage)

var indexStatusCodes = map[byte]vcs.StatusFlags{
	'M': vcs.StatusModifiedInIndex,
	'T': vcs.StatusTypeChangeInIndex,
	'A': vcs.StatusNewInIndex,
	'D': vcs.StatusDeletedFromIndex,
	'R': vcs.StatusRenamedInIndex,
	'C': vcs.StatusNewInIndex,
}

var workdirStatusCodes = map[byte]vcs.StatusFlags{
	'M': vcs.StatusModifiedInWorkdir,
	'T': vcs.StatusTypeChangeInWorkdir,
	'A': vcs.StatusNewInWorkdir,
	'D': vcs.StatusDeletedFromWorkdir,
	'R': vcs.StatusRenamedInWorkdir,
	'C': vcs.StatusNewInWorkdir,
}

// parsePorcelainStatus decodes `git status --porcelain=v2 -z` output.
func parsePorcelainStatus(output string) ([]vcs.StatusEntry, error) {
	records := strings.Split(output, recordSeparatorConstant)
	entries := make([]vcs.StatusEntry, 0, len(records))

	for recordIndex := 0; recordIndex < len(records); recordIndex++ {
		record := records[recordIndex]
		if len(record) == 0 {
			continue
		}

		switch record[0] {
		case headerRecordMarkerConstant:
			continue
		case ordinaryRecordMarkerConstant:
			fields := strings.SplitN(record, fieldSeparatorConstant, ordinaryRecordFieldCountConstant)
			if len(fields) != ordinaryRecordFieldCountConstant || len(fields[1]) != statusCodeLengthConstant {
				return nil, fmt.Errorf(malformedRecordTemplateConstant, record)
			}
			entries = append(entries, vcs.StatusEntry{Path: fields[8], Flags: decodeStatusCode(fields[1])})
		case renamedRecordMarkerConstant:
			fields := strings.SplitN(record, fieldSeparatorConstant, renamedRecordFieldCountConstant)
			if len(fields) != renamedRecordFieldCountConstant || len(fields[1]) != statusCodeLengthConstant {
				return nil, fmt.Errorf(malformedRecordTemplateConstant, record)
			}
			recordIndex++
			if recordIndex >= len(records) {
				return nil, errMissingRenameSource
			}
			entries = append(entries, vcs.StatusEntry{Path: fields[9], OldPath: records[recordIndex], Flags: decodeStatusCode(fields[1])})
		case unmergedRecordMarkerConstant:
			fields := strings.SplitN(record, fieldSeparatorConstant, unmergedRecordFieldCountConstant)
			if len(fields) != unmergedRecordFieldCountConstant {
				return nil, fmt.Errorf(malformedRecordTemplateConstant, record)
			}
			entries = append(entries, vcs.StatusEntry{Path: fields[10], Flags: vcs.StatusConflicted})
		case untrackedRecordMarkerConstant:
			if len(record) <= shortRecordPrefixLengthConstant {
				return nil, fmt.Errorf(malformedRecordTemplateConstant, record)
			}
			entries = append(entries, vcs.StatusEntry{Path: record[shortRecordPrefixLengthConstant:], Flags: vcs.StatusNewInWorkdir})
		case ignoredRecordMarkerConstant:
			if len(record) <= shortRecordPrefixLengthConstant {
				return nil, fmt.Errorf(malformedRecordTemplateConstant, record)
			}
			entries = append(entries, vcs.StatusEntry{Path: record[shortRecordPrefixLengthConstant:], Flags: vcs.StatusIgnored})
		default:
			return nil, fmt.Errorf(malformedRecordTemplateConstant, record)
		}
	}

	return entries, nil
}

func decodeStatusCode(statusCode string) vcs.StatusFlags {
	return indexStatusCodes[statusCode[0]] | workdirStatusCodes[statusCode[1]]
}

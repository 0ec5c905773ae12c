// Package block defines content blocks, their personalized payloads, and the
// enumerations the server uses to describe them.
package block

import "strings"

// ContentType describes how a block's content must be rendered.
type ContentType string

const (
	ContentTypeHTML   ContentType = "HTML"
	ContentTypeNative ContentType = "NATIVE"
	// ContentTypeNotDefined means the real type is only known after personalization.
	ContentTypeNotDefined ContentType = "NOT_DEFINED"
	ContentTypeUnknown    ContentType = "UNKNOWN"
)

// ParseContentType maps a server value ("html", "native", empty) to a ContentType.
// Unrecognized values yield ContentTypeUnknown.
func ParseContentType(raw string) ContentType {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "":
		return ContentTypeNotDefined
	case "html":
		return ContentTypeHTML
	case "native":
		return ContentTypeNative
	default:
		return ContentTypeUnknown
	}
}

// NormalizeContentType accepts either the enum name or the server value.
func NormalizeContentType(raw string) ContentType {
	switch v := ContentType(strings.ToUpper(strings.TrimSpace(raw))); v {
	case ContentTypeHTML, ContentTypeNative, ContentTypeNotDefined:
		return v
	}
	return ParseContentType(raw)
}

// FrequencyRule governs how often a block may be shown again.
type FrequencyRule string

const (
	FrequencyAlways                FrequencyRule = "ALWAYS"
	FrequencyOnlyOnce              FrequencyRule = "ONLY_ONCE"
	FrequencyOncePerVisit          FrequencyRule = "ONCE_PER_VISIT"
	FrequencyUntilVisitorInteracts FrequencyRule = "UNTIL_VISITOR_INTERACTS"
	FrequencyUnknown               FrequencyRule = "UNKNOWN"
)

// ParseFrequencyRule maps a server value ("only_once", ...) to a FrequencyRule.
func ParseFrequencyRule(raw string) FrequencyRule {
	switch v := FrequencyRule(strings.ToUpper(strings.TrimSpace(raw))); v {
	case FrequencyAlways, FrequencyOnlyOnce, FrequencyOncePerVisit, FrequencyUntilVisitorInteracts:
		return v
	default:
		return FrequencyUnknown
	}
}

// Status is the personalization verdict for one block and one customer.
type Status string

const (
	StatusOK         Status = "OK"
	StatusNotMatched Status = "NOT_MATCHED"
	StatusNotExist   Status = "NOT_EXIST"
	StatusUnknown    Status = "UNKNOWN"
)

// ParseStatus maps a server status to a Status.
func ParseStatus(raw string) Status {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "ok":
		return StatusOK
	case "filter_not_matched", "not_matched":
		return StatusNotMatched
	case "does_not_exist", "not_exist":
		return StatusNotExist
	default:
		return StatusUnknown
	}
}

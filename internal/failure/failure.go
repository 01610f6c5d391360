// Package failure classifies recognition engine error codes into user-facing categories.
package failure

import "strings"

// Category is the user-facing class of a recognition failure.
type Category string

const (
	StartRejected      Category = "start_rejected"
	PermissionDenied   Category = "permission_denied"
	NetworkUnavailable Category = "network_unavailable"
	NoSpeechDetected   Category = "no_speech_detected"
	Unclassified       Category = "unclassified"
)

var codeCategories = map[string]Category{
	"permission-denied":   PermissionDenied,
	"not-allowed":         PermissionDenied,
	"service-not-allowed": PermissionDenied,
	"network-failure":     NetworkUnavailable,
	"network":             NetworkUnavailable,
	"silence-timeout":     NoSpeechDetected,
	"no-speech":           NoSpeechDetected,
}

// Classify maps an engine error code to a Category. Unknown codes are Unclassified.
func Classify(code string) Category {
	if category, ok := codeCategories[strings.ToLower(strings.TrimSpace(code))]; ok {
		return category
	}
	return Unclassified
}

// Categories lists every category in display order.
func Categories() []Category {
	return []Category{StartRejected, PermissionDenied, NetworkUnavailable, NoSpeechDetected, Unclassified}
}

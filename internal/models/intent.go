package models

import (
	"fmt"
	"strconv"
	"strings"
)

// Intent is the closed set of actions the assistant can dispatch.
type Intent string

const (
	IntentCreateCourse       Intent = "create_course"
	IntentUpdateCourse       Intent = "update_course"
	IntentCreateAssignment   Intent = "create_assignment"
	IntentUpdateAssignment   Intent = "update_assignment"
	IntentDeleteAssignment   Intent = "delete_assignment"
	IntentUpdateRubric       Intent = "update_rubric"
	IntentPublishAssignment  Intent = "publish_assignment"
	IntentGetSubmissionCount Intent = "get_submission_count"
	IntentGetInfo            Intent = "get_info"
	IntentConversation       Intent = "conversation"
	IntentError              Intent = "error"
)

var knownIntents = map[Intent]struct{}{
	IntentCreateCourse:       {},
	IntentUpdateCourse:       {},
	IntentCreateAssignment:   {},
	IntentUpdateAssignment:   {},
	IntentDeleteAssignment:   {},
	IntentUpdateRubric:       {},
	IntentPublishAssignment:  {},
	IntentGetSubmissionCount: {},
	IntentGetInfo:            {},
	IntentConversation:       {},
	IntentError:              {},
}

// ParseIntent normalises a label. Unknown labels report ok=false.
func ParseIntent(raw string) (Intent, bool) {
	intent := Intent(strings.ToLower(strings.TrimSpace(raw)))
	_, ok := knownIntents[intent]
	return intent, ok
}

// Mutates reports whether the intent writes to the datastore.
func (i Intent) Mutates() bool {
	switch i {
	case IntentCreateCourse, IntentUpdateCourse, IntentCreateAssignment, IntentUpdateAssignment,
		IntentDeleteAssignment, IntentUpdateRubric, IntentPublishAssignment:
		return true
	}
	return false
}

// Verb renders the intent as words, e.g. "update assignment".
func (i Intent) Verb() string {
	return strings.ReplaceAll(string(i), "_", " ")
}

// Params are the loosely typed parameters extracted from a teacher message.
type Params map[string]interface{}

// String returns the first non-empty value among keys, stringifying numbers.
func (p Params) String(keys ...string) string {
	for _, key := range keys {
		v, ok := p[key]
		if !ok || v == nil {
			continue
		}
		var s string
		switch val := v.(type) {
		case string:
			s = val
		case float64:
			s = strconv.FormatFloat(val, 'f', -1, 64)
		case int:
			s = strconv.Itoa(val)
		case bool:
			continue
		default:
			s = fmt.Sprint(val)
		}
		if s = strings.TrimSpace(s); s != "" {
			return s
		}
	}
	return ""
}

// Float returns the first numeric value among keys. Numeric strings such as "50 pts" are accepted.
func (p Params) Float(keys ...string) (float64, bool) {
	for _, key := range keys {
		switch val := p[key].(type) {
		case float64:
			return val, true
		case int:
			return float64(val), true
		case string:
			fields := strings.Fields(val)
			if len(fields) == 0 {
				continue
			}
			if f, err := strconv.ParseFloat(fields[0], 64); err == nil {
				return f, true
			}
		}
	}
	return 0, false
}

// Bool returns the boolean value of key, accepting "true"/"yes" strings.
func (p Params) Bool(key string) bool {
	switch val := p[key].(type) {
	case bool:
		return val
	case string:
		switch strings.ToLower(strings.TrimSpace(val)) {
		case "true", "yes", "1":
			return true
		}
	}
	return false
}

// Has reports whether any of keys carries a non-empty value.
func (p Params) Has(keys ...string) bool {
	for _, key := range keys {
		if _, ok := p.Float(key); ok {
			return true
		}
		if p.String(key) != "" {
			return true
		}
		if b, ok := p[key].(bool); ok && b {
			return true
		}
	}
	return false
}

// Clone returns a shallow copy.
func (p Params) Clone() Params {
	out := make(Params, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// IntentResult is the classifier's structured reading of a message.
type IntentResult struct {
	Intent     Intent  `json:"intent"`
	Parameters Params  `json:"parameters"`
	Response   string  `json:"response"`
	Confidence float64 `json:"confidence"`
	// Fallback marks results produced without a parseable model answer.
	Fallback bool `json:"fallback,omitempty"`
}

// ActionResult is the outcome of an action handler.
type ActionResult struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// ActionOK builds a successful result.
func ActionOK(message string, data interface{}) ActionResult {
	return ActionResult{Success: true, Message: message, Data: data}
}

// ActionFail builds a failed result.
func ActionFail(message string) ActionResult {
	return ActionResult{Success: false, Message: message}
}

// BulkItemResult reports the outcome for one row of a bulk mutation.
type BulkItemResult struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

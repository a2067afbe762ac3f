package gateway

import (
	"encoding/json"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"CollabProject/tools/errs"
)

// Inbound frame types.
const (
	TypeUserMessage    = "user_message"
	TypePlanApproval   = "plan_approval"
	TypeFeedback       = "feedback"
	TypeImageUpload    = "image_upload"
	TypeSwitchRoom     = "switch_room"
	TypeCursorPosition = "cursor_position"
	TypePing           = "ping"
)

// Outbound frame types. Every outbound frame carries a server-assigned
// timestamp in unix milliseconds.
const (
	TypeConnectionEstablished = "connection_established"
	TypeMemberJoined          = "member_joined"
	TypePlanDecision          = "plan_decision"
	TypeCursorUpdate          = "cursor_update"
	TypeRoomSwitched          = "room_switched"
	TypePong                  = "pong"
	TypeRateLimited           = "rate_limited"
	TypeError                 = "error"
)

// Frame is one parsed inbound message: the type plus every other field.
type Frame struct {
	Type   string
	Fields map[string]any
}

// ParseFrame decodes raw JSON into a Frame. The type field is required
// and must be a string.
func ParseFrame(raw []byte) (*Frame, error) {
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, errs.ErrFrameMalformed.WrapMsg("unmarshal", "err", err)
	}
	t, ok := m["type"].(string)
	if !ok || t == "" {
		return nil, errs.ErrMissingField.WrapMsg("type is required")
	}
	delete(m, "type")
	return &Frame{Type: t, Fields: m}, nil
}

// Outbound builds a server-to-client frame. The timestamp is always
// server-assigned; any timestamp a client sent is discarded.
func Outbound(typ string, fields map[string]any) []byte {
	m := make(map[string]any, len(fields)+2)
	for k, v := range fields {
		m[k] = v
	}
	m["type"] = typ
	m["timestamp"] = time.Now().UnixMilli()
	b, err := json.Marshal(m)
	if err != nil {
		// fields are built server-side from plain types; this cannot fail
		return []byte(`{"type":"error"}`)
	}
	return b
}

// ErrorFrame builds the error frame for a coded failure.
func ErrorFrame(err error) []byte {
	code := errs.Code(err, errs.ServerInternalError)
	msg := "internal error"
	var ce *errs.CodeError
	if errors.As(err, &ce) {
		msg = ce.Msg
	}
	return Outbound(TypeError, map[string]any{"code": code, "message": msg})
}

var (
	idPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)
	hex24     = regexp.MustCompile(`^[0-9a-fA-F]{24}$`)
)

// ValidID accepts conservative identifiers: alphanumeric with hyphen or
// underscore up to 64 chars, a 24-hex object id, or a UUID.
func ValidID(s string) bool {
	if s == "" {
		return false
	}
	if idPattern.MatchString(s) || hex24.MatchString(s) {
		return true
	}
	// uuid.Parse also takes urn: and braced variants; only the canonical
	// hyphenated form is allowed through.
	if len(s) == 36 {
		if _, err := uuid.Parse(s); err == nil {
			return true
		}
	}
	return false
}

// Control-operator substrings that must never reach downstream stores.
var disallowedOperators = []string{"$where", "$function", "$accumulator", "mapReduce"}

// ContainsOperatorInjection walks the decoded payload looking for
// structured-query operator shapes: keys starting with '$', keys with
// dots, or known dangerous operator substrings inside string values.
func ContainsOperatorInjection(fields map[string]any) bool {
	return scanValue(fields, 0)
}

func scanValue(v any, depth int) bool {
	if depth > 16 {
		return true // absurd nesting is itself suspicious
	}
	switch x := v.(type) {
	case map[string]any:
		for k, vv := range x {
			if strings.HasPrefix(k, "$") || strings.Contains(k, ".") {
				return true
			}
			if scanValue(vv, depth+1) {
				return true
			}
		}
	case []any:
		for _, vv := range x {
			if scanValue(vv, depth+1) {
				return true
			}
		}
	case string:
		for _, op := range disallowedOperators {
			if strings.Contains(x, op) {
				return true
			}
		}
	}
	return false
}

package homework

import (
	"strings"

	"github.com/cockroachdb/errors"
)

const (
	KeyHomeworks   = "homeworks"
	KeyCurrentDate = "current_date"
)

// Extract checks the decoded API payload and returns its submissions,
// most recent first. An empty list is a normal outcome.
func Extract(payload any) ([]any, error) {
	obj, ok := payload.(map[string]any)
	if !ok {
		return nil, errors.Wrapf(ErrMalformedResponse, "expected a JSON object, got %s", typeName(payload))
	}

	_, hasHomeworks := obj[KeyHomeworks]
	_, hasCurrentDate := obj[KeyCurrentDate]
	if !(hasHomeworks && hasCurrentDate) {
		var missing []string
		if !hasHomeworks {
			missing = append(missing, KeyHomeworks)
		}
		if !hasCurrentDate {
			missing = append(missing, KeyCurrentDate)
		}
		err := errors.Wrapf(ErrMissingKeys, "response lacks %s", strings.Join(missing, ", "))
		return nil, errors.Mark(err, ErrMalformedResponse)
	}

	list, ok := obj[KeyHomeworks].([]any)
	if !ok {
		return nil, errors.Wrapf(ErrMalformedResponse, "%s is %s, not a list", KeyHomeworks, typeName(obj[KeyHomeworks]))
	}
	return list, nil
}

func typeName(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case map[string]any:
		return "object"
	case []any:
		return "list"
	case string:
		return "string"
	case float64, int, int64:
		return "number"
	case bool:
		return "bool"
	default:
		return "unknown"
	}
}

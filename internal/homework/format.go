package homework

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

const (
	FieldName   = "homework_name"
	FieldStatus = "status"
)

// FormatStatus turns one submission record into the chat notification text.
func FormatStatus(record any) (string, error) {
	obj, ok := record.(map[string]any)
	if !ok {
		return "", errors.Wrapf(ErrMalformedResponse, "submission is %s, not an object", typeName(record))
	}

	name, ok := obj[FieldName]
	if !ok {
		return "", errors.Wrap(ErrMissingField, FieldName)
	}
	raw, ok := obj[FieldStatus]
	if !ok {
		return "", errors.Wrap(ErrMissingField, FieldStatus)
	}

	code, _ := raw.(string)
	verdict, ok := Verdict(Status(code))
	if !ok {
		return "", errors.Wrapf(ErrUnknownStatus, "status %v", raw)
	}
	return fmt.Sprintf(`Changed status of review for "%s". %s`, fmt.Sprint(name), verdict), nil
}

package homework

import (
	"encoding/json"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, raw string) any {
	t.Helper()
	var v any
	require.NoError(t, json.Unmarshal([]byte(raw), &v))
	return v
}

func TestCatalogIsTotal(t *testing.T) {
	t.Parallel()
	require.Len(t, Statuses(), 3)
	for _, s := range Statuses() {
		v, ok := Verdict(s)
		require.True(t, ok, "status %s", s)
		require.NotEmpty(t, v, "status %s", s)
	}
	_, ok := Verdict("weird")
	require.False(t, ok)
}

func TestExtract(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		raw     string
		wantLen int
		wantErr error
	}{
		{name: "empty list", raw: `{"current_date": 1000, "homeworks": []}`, wantLen: 0},
		{name: "two records", raw: `{"current_date": 1000, "homeworks": [{"homework_name":"a","status":"approved"},{"homework_name":"b","status":"rejected"}]}`, wantLen: 2},
		{name: "top level list", raw: `[1, 2]`, wantErr: ErrMalformedResponse},
		{name: "top level null", raw: `null`, wantErr: ErrMalformedResponse},
		{name: "missing homeworks", raw: `{"current_date": 1000}`, wantErr: ErrMissingKeys},
		{name: "missing current_date", raw: `{"homeworks": []}`, wantErr: ErrMissingKeys},
		{name: "missing both", raw: `{}`, wantErr: ErrMissingKeys},
		{name: "homeworks not a list", raw: `{"current_date": 1000, "homeworks": {"a": 1}}`, wantErr: ErrMalformedResponse},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := Extract(decode(t, tt.raw))
			if tt.wantErr != nil {
				require.Error(t, err)
				require.True(t, errors.Is(err, tt.wantErr), "err = %v, want %v", err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			require.Len(t, got, tt.wantLen)
		})
	}
}

func TestExtractShapeErrorsAreMalformed(t *testing.T) {
	t.Parallel()
	for _, raw := range []string{`{"current_date": 1}`, `"text"`, `42`} {
		_, err := Extract(decode(t, raw))
		require.True(t, errors.Is(err, ErrMalformedResponse), "raw %s: %v", raw, err)
	}
}

func TestExtractNamesEveryMissingKey(t *testing.T) {
	t.Parallel()
	_, err := Extract(map[string]any{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), KeyHomeworks)
	assert.Contains(t, err.Error(), KeyCurrentDate)
}

func TestExtractReturnsListUnmodified(t *testing.T) {
	t.Parallel()
	list := []any{map[string]any{"homework_name": "x", "status": "approved"}}
	got, err := Extract(map[string]any{"current_date": 1.0, "homeworks": list})
	require.NoError(t, err)
	require.Equal(t, list, got)
}

func TestFormatStatusKnown(t *testing.T) {
	t.Parallel()
	for _, s := range Statuses() {
		verdict, _ := Verdict(s)
		got, err := FormatStatus(map[string]any{"homework_name": "proj1", "status": string(s)})
		require.NoError(t, err)
		require.Equal(t, `Changed status of review for "proj1". `+verdict, got)
		require.Contains(t, got, "proj1")
		require.Contains(t, got, verdict)
	}
}

func TestFormatStatusErrors(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		record  any
		wantErr error
	}{
		{name: "missing name", record: map[string]any{"status": "approved"}, wantErr: ErrMissingField},
		{name: "missing status", record: map[string]any{"homework_name": "p"}, wantErr: ErrMissingField},
		{name: "unknown status", record: map[string]any{"homework_name": "p", "status": "weird"}, wantErr: ErrUnknownStatus},
		{name: "non-string status", record: map[string]any{"homework_name": "p", "status": 3.0}, wantErr: ErrUnknownStatus},
		{name: "not an object", record: "approved", wantErr: ErrMalformedResponse},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := FormatStatus(tt.record)
			require.True(t, errors.Is(err, tt.wantErr), "err = %v, want %v", err, tt.wantErr)
		})
	}
}

func TestFormatStatusNamesMissingField(t *testing.T) {
	t.Parallel()
	_, err := FormatStatus(map[string]any{"status": "approved"})
	require.ErrorContains(t, err, FieldName)
	_, err = FormatStatus(map[string]any{"homework_name": "p"})
	require.ErrorContains(t, err, FieldStatus)
	_, err = FormatStatus(map[string]any{"homework_name": "p", "status": "weird"})
	require.ErrorContains(t, err, "weird")
}

func TestFormatStatusIsIdempotent(t *testing.T) {
	t.Parallel()
	rec := map[string]any{"homework_name": "proj1", "status": "reviewing"}
	a, err := FormatStatus(rec)
	require.NoError(t, err)
	b, err := FormatStatus(rec)
	require.NoError(t, err)
	require.Equal(t, a, b)
	require.Equal(t, map[string]any{"homework_name": "proj1", "status": "reviewing"}, rec)
}

package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeRef(t *testing.T) {
	tests := []struct {
		name    string
		kind    EntityKind
		ref     string
		want    string
		wantErr bool
	}{
		{name: "short form", kind: KindProject, ref: "P1", want: "project:P1"},
		{name: "prefixed form", kind: KindProject, ref: "project:P1", want: "project:P1"},
		{name: "trims spaces", kind: KindSubdocument, ref: " S1 ", want: "subdocument:S1"},
		{name: "unknown prefix is part of id", kind: KindProject, ref: "legacy:42", want: "project:legacy:42"},
		{name: "wrong kind prefix", kind: KindProject, ref: "statement:P1", wantErr: true},
		{name: "empty", kind: KindProject, ref: "", wantErr: true},
		{name: "prefix without id", kind: KindProject, ref: "project:", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeRef(tt.kind, tt.ref)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrMalformedReference)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSplitRef(t *testing.T) {
	kind, id, err := SplitRef("measurement:M-7")
	require.NoError(t, err)
	assert.Equal(t, KindMeasurement, kind)
	assert.Equal(t, "M-7", id)

	_, _, err = SplitRef("M-7")
	assert.ErrorIs(t, err, ErrMalformedReference)

	_, _, err = SplitRef("invoice:1")
	assert.ErrorIs(t, err, ErrUnknownEntityKind)
}

func TestNormalizePayloadRefs(t *testing.T) {
	t.Run("short references are prefixed", func(t *testing.T) {
		out, err := NormalizePayloadRefs(KindMeasurement, json.RawMessage(`{"projectId":"P1","subdocumentId":"subdocument:S2","quantity":12.5}`))
		require.NoError(t, err)
		assert.JSONEq(t, `{"projectId":"project:P1","subdocumentId":"subdocument:S2","quantity":12.5}`, string(out))
	})

	t.Run("already canonical payload is returned untouched", func(t *testing.T) {
		in := json.RawMessage(`{"projectId": "project:P1", "name": "x"}`)
		out, err := NormalizePayloadRefs(KindStatement, in)
		require.NoError(t, err)
		assert.Equal(t, string(in), string(out))
	})

	t.Run("kind without references", func(t *testing.T) {
		in := json.RawMessage(`{"name":"p"}`)
		out, err := NormalizePayloadRefs(KindProject, in)
		require.NoError(t, err)
		assert.Equal(t, string(in), string(out))
	})

	t.Run("null payload", func(t *testing.T) {
		out, err := NormalizePayloadRefs(KindAttachment, json.RawMessage(`null`))
		require.NoError(t, err)
		assert.Equal(t, "null", string(out))
	})

	t.Run("wrong kind reference", func(t *testing.T) {
		_, err := NormalizePayloadRefs(KindSubdocument, json.RawMessage(`{"projectId":"statement:X"}`))
		assert.ErrorIs(t, err, ErrMalformedReference)
	})

	t.Run("non string reference", func(t *testing.T) {
		_, err := NormalizePayloadRefs(KindSubdocument, json.RawMessage(`{"projectId":17}`))
		assert.ErrorIs(t, err, ErrMalformedReference)
	})

	t.Run("payload is not an object", func(t *testing.T) {
		_, err := NormalizePayloadRefs(KindSubdocument, json.RawMessage(`[1,2]`))
		assert.Error(t, err)
	})

	t.Run("large numbers keep precision", func(t *testing.T) {
		out, err := NormalizePayloadRefs(KindStatement, json.RawMessage(`{"projectId":"P1","total":12345678901234567890}`))
		require.NoError(t, err)
		assert.Contains(t, string(out), "12345678901234567890")
	})
}

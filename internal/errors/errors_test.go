package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindString(t *testing.T) {
	t.Parallel()

	tests := []struct {
		kind Kind
		want string
	}{
		{KindUnknown, "unknown"},
		{KindConfig, "configuration"},
		{KindParse, "parse"},
		{KindGit, "git"},
		{KindStore, "store"},
		{KindNotes, "notes"},
		{KindAI, "ai"},
		{KindValidation, "validation"},
		{KindNotFound, "not_found"},
		{KindTimeout, "timeout"},
		{KindCanceled, "canceled"},
		{KindInternal, "internal"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.kind.String())
	}
}

func TestErrorFormatting(t *testing.T) {
	t.Parallel()

	cause := stderrors.New("disk full")

	tests := []struct {
		name string
		err  *Error
		want string
	}{
		{
			name: "op and cause",
			err:  Wrap(cause, KindStore, "store.AppendEvents", "insert failed"),
			want: "store.AppendEvents: insert failed: disk full",
		},
		{
			name: "op without cause",
			err:  Git("git.Open", "not a repository"),
			want: "git.Open: not a repository",
		},
		{
			name: "message only",
			err:  &Error{Message: "boom"},
			want: "boom",
		},
		{
			name: "message with cause",
			err:  &Error{Message: "boom", Err: cause},
			want: "boom: disk full",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestUnwrap(t *testing.T) {
	t.Parallel()

	cause := stderrors.New("root cause")
	err := NotesWrap(cause, "notes.Write", "git notes add failed")

	require.ErrorIs(t, err, cause)
	assert.Equal(t, cause, stderrors.Unwrap(err))
}

func TestIsMatchesByKind(t *testing.T) {
	t.Parallel()

	err := Parse("parser.Python", "bad indent")

	// Sentinel without Op matches by kind alone.
	assert.ErrorIs(t, err, &Error{Kind: KindParse})
	assert.NotErrorIs(t, err, &Error{Kind: KindGit})

	// With Op set, both kind and op must match.
	assert.ErrorIs(t, err, &Error{Kind: KindParse, Op: "parser.Python"})
	assert.NotErrorIs(t, err, &Error{Kind: KindParse, Op: "parser.PHP"})
}

func TestGetKind(t *testing.T) {
	t.Parallel()

	assert.Equal(t, KindStore, GetKind(Store("op", "msg")))
	assert.Equal(t, KindUnknown, GetKind(stderrors.New("plain")))
	assert.Equal(t, KindAI, GetKind(fmt.Errorf("wrapped: %w", AI("op", "msg"))))
	assert.True(t, IsKind(Timeout("op", "deadline"), KindTimeout))
	assert.False(t, IsKind(nil, KindTimeout))
}

func TestConstructors(t *testing.T) {
	t.Parallel()

	cause := stderrors.New("cause")

	tests := []struct {
		err  *Error
		kind Kind
	}{
		{Config("op", "m"), KindConfig},
		{ConfigWrap(cause, "op", "m"), KindConfig},
		{Parse("op", "m"), KindParse},
		{ParseWrap(cause, "op", "m"), KindParse},
		{Git("op", "m"), KindGit},
		{GitWrap(cause, "op", "m"), KindGit},
		{Store("op", "m"), KindStore},
		{StoreWrap(cause, "op", "m"), KindStore},
		{Notes("op", "m"), KindNotes},
		{NotesWrap(cause, "op", "m"), KindNotes},
		{AI("op", "m"), KindAI},
		{AIWrap(cause, "op", "m"), KindAI},
		{Validation("op", "m"), KindValidation},
		{NotFound("op", "m"), KindNotFound},
		{Timeout("op", "m"), KindTimeout},
		{Newf(KindInternal, "op", "n=%d", 7), KindInternal},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.kind, tt.err.Kind)
	}
}

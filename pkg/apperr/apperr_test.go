package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindValidation, KindOf(Validation("bad %s", "input")))
	assert.Equal(t, KindNotFound, KindOf(fmt.Errorf("load: %w", NotFound("company not found"))))
	assert.Equal(t, KindInternal, KindOf(errors.New("boom")))
	assert.Equal(t, KindInternal, KindOf(nil))
}

func TestWrapKeepsClassifiedErrors(t *testing.T) {
	conflict := Conflict("duplicate").WithCode(CodeDuplicate)
	require.Same(t, conflict, Wrap(conflict, "ignored"))

	wrapped := Wrap(errors.New("connection reset"), "load company")
	assert.Equal(t, KindInternal, KindOf(wrapped))
	assert.Equal(t, "load company: connection reset", wrapped.Error())
	assert.Nil(t, Wrap(nil, "noop"))
}

func TestIsMatchesKindAndCode(t *testing.T) {
	err := fmt.Errorf("verify: %w", Validation("code expired").WithCode(CodeOTPExpired))

	assert.True(t, errors.Is(err, &Error{Kind: KindValidation}))
	assert.True(t, errors.Is(err, &Error{Kind: KindValidation, Code: CodeOTPExpired}))
	assert.False(t, errors.Is(err, &Error{Kind: KindValidation, Code: CodeInvalidCode}))
	assert.False(t, errors.Is(err, &Error{Kind: KindConflict}))
	assert.Equal(t, CodeOTPExpired, CodeOf(err))
}

package models

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorFormatting(t *testing.T) {
	err := NewError(KindNotFound, "host %s not registered", "h1")
	assert.Equal(t, "not_found: host h1 not registered", err.Error())

	remote := RemoteCommandError(1, "no such image", "compose up failed")
	assert.Equal(t, "remote_command_error: compose up failed: no such image", remote.Error())
	assert.Equal(t, 1, remote.ExitCode)
}

func TestWrapErrorPreservesCause(t *testing.T) {
	cause := errors.New("dial tcp: connection refused")
	err := WrapError(KindHostUnreachable, cause, "ssh connection to host %s failed", "h1")

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, KindHostUnreachable, KindOf(err))
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindTimeout, KindOf(NewError(KindTimeout, "deadline")))

	// A typed error deeper in a chain is still found.
	wrapped := fmt.Errorf("dispatch: %w", NewError(KindConflict, "duplicate project"))
	assert.Equal(t, KindConflict, KindOf(wrapped))

	// Untyped errors originate below the executors and classify as
	// unreachable.
	assert.Equal(t, KindHostUnreachable, KindOf(errors.New("boom")))
}

func TestIsKind(t *testing.T) {
	err := NewError(KindCancelled, "caller went away")
	assert.True(t, IsKind(err, KindCancelled))
	assert.False(t, IsKind(err, KindTimeout))
}

func TestOKResult(t *testing.T) {
	res := OKResult("stack_up", map[string]string{"project": "shop"})
	assert.True(t, res.Success)
	assert.Equal(t, "stack_up", res.Operation)
	assert.Empty(t, res.ErrorKind)
}

func TestFailResultTyped(t *testing.T) {
	err := RemoteCommandError(125, "port is already allocated", "compose up failed")
	res := FailResult("stack_up", err)

	assert.False(t, res.Success)
	assert.Equal(t, KindRemoteCommand, res.ErrorKind)
	assert.Equal(t, "compose up failed: port is already allocated", res.Detail)
}

func TestFailResultUntyped(t *testing.T) {
	res := FailResult("list_containers", errors.New("boom"))

	require.False(t, res.Success)
	assert.Equal(t, KindHostUnreachable, res.ErrorKind)
	assert.Equal(t, "boom", res.Detail)
}

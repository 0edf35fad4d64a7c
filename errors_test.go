package sda

import (
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestErrorMatching(t *testing.T) {
	err := ErrSchemeMismatch.WithContext("index", 3).WithDetails("share %d", 3)
	require.ErrorIs(t, err, ErrSchemeMismatch)
	require.NotErrorIs(t, err, ErrInvalidScheme)
	require.Equal(t, "[scheme:SCHEME_MISMATCH] operand is not suitable for the scheme: share 3", err.Error())
	require.Equal(t, map[string]interface{}{"index": 3}, GetErrorContext(err))

	// derived errors never mutate the sentinel
	require.Empty(t, ErrSchemeMismatch.Context)
	require.Empty(t, ErrSchemeMismatch.Details)

	wrapped := fmt.Errorf("combine: %w", err)
	require.ErrorIs(t, wrapped, ErrSchemeMismatch)
	require.True(t, IsErrorCategory(wrapped, ErrorCategoryScheme))
	require.False(t, IsErrorCategory(wrapped, ErrorCategorySharing))
}

func TestErrorCause(t *testing.T) {
	err := ErrStorageUnavailable.WithCause(io.ErrUnexpectedEOF)
	require.ErrorIs(t, err, ErrStorageUnavailable)
	require.ErrorIs(t, err, io.ErrUnexpectedEOF)
	require.True(t, IsRetriable(err))

	var sdaErr *Error
	require.True(t, errors.As(err, &sdaErr))
	require.Equal(t, ErrorCategoryKeystore, sdaErr.Category)
}

func TestRetriable(t *testing.T) {
	retriable := []*Error{ErrStorageUnavailable, ErrRandomnessUnavailable}
	for _, err := range retriable {
		require.True(t, IsRetriable(err), err.Code)
	}

	permanent := []*Error{
		ErrDuplicateKey, ErrKeyNotFound, ErrInvalidScheme, ErrSchemeMismatch,
		ErrInvalidThreshold, ErrDuplicateShareIndex, ErrInsufficientShares,
		ErrDecryptionFailed, ErrUntrustedKey, ErrInvalidKey, ErrCommitteeTooSmall,
	}
	for _, err := range permanent {
		require.False(t, IsRetriable(err), err.Code)
	}

	require.False(t, IsRetriable(errors.New("plain")))
	require.Nil(t, GetErrorContext(errors.New("plain")))
}

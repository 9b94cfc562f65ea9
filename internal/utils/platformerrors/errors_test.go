package platformerrors

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type conflictErr struct{}

func (conflictErr) Error() string        { return "conflict" }
func (conflictErr) ErrorType() ErrorType { return ErrorTypeConflict }

func TestAsError(t *testing.T) {
	ctx := WithRequestID(context.Background(), "req-1")

	t.Run("nil error stays nil", func(t *testing.T) {
		assert.Nil(t, AsError(ctx, LayerRepository, nil, "ignored"))
	})

	t.Run("repository errors become database errors", func(t *testing.T) {
		err := AsError(ctx, LayerRepository, errors.New("connection reset"), "failed to lock conversation")
		require.NotNil(t, err)
		assert.Equal(t, ErrorTypeDatabaseError, err.Type)
		assert.Equal(t, "req-1", err.RequestID)
		assert.True(t, IsErrorType(err, ErrorTypeDatabaseError))
	})

	t.Run("wrapping keeps the inner type and uuid", func(t *testing.T) {
		inner := NewError(ctx, LayerDomain, ErrorTypeNotFound, "gone", nil, "abc")
		outer := AsError(ctx, LayerHandler, inner, "lookup")
		assert.Equal(t, ErrorTypeNotFound, outer.Type)
		assert.Equal(t, "abc", outer.UUID)
		assert.Equal(t, "lookup: gone", outer.Message)
		assert.ErrorIs(t, outer, inner)
	})
}

func TestTypeOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorType
	}{
		{name: "typed domain error", err: conflictErr{}, want: ErrorTypeConflict},
		{name: "platform error", err: NewError(context.Background(), LayerRepository, ErrorTypeDatabaseError, "x", nil, ""), want: ErrorTypeDatabaseError},
		{name: "plain error", err: errors.New("boom"), want: ErrorTypeInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, TypeOf(tt.err))
		})
	}
}

func TestErrorTypeToHTTPStatus(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, ErrorTypeToHTTPStatus(ErrorTypeNotFound))
	assert.Equal(t, http.StatusConflict, ErrorTypeToHTTPStatus(ErrorTypeConflict))
	assert.Equal(t, http.StatusServiceUnavailable, ErrorTypeToHTTPStatus(ErrorTypeUnavailable))
	assert.Equal(t, http.StatusInternalServerError, ErrorTypeToHTTPStatus(ErrorTypeDatabaseError))
}

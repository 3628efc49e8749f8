package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf_ThroughWrapping(t *testing.T) {
	cause := errors.New("disk full")
	err := fmt.Errorf("append: %w", Persistence("Failed to save content data", cause))

	assert.Equal(t, KindPersistence, KindOf(err))
	assert.Equal(t, "Failed to save content data", Message(err))
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "append: Failed to save content data: disk full", err.Error())
}

func TestKindOf_PlainError(t *testing.T) {
	err := errors.New("boom")

	assert.Equal(t, KindInternal, KindOf(err))
	assert.Equal(t, "Internal server error", Message(err))
}

func TestHTTPStatus(t *testing.T) {
	tests := map[Kind]int{
		KindValidation:       http.StatusBadRequest,
		KindUnsupportedMedia: http.StatusBadRequest,
		KindIndexOutOfRange:  http.StatusBadRequest,
		KindNotFound:         http.StatusNotFound,
		KindUnauthorized:     http.StatusUnauthorized,
		KindPersistence:      http.StatusInternalServerError,
		KindInternal:         http.StatusInternalServerError,
	}
	for kind, want := range tests {
		assert.Equal(t, want, HTTPStatus(kind), string(kind))
	}
}

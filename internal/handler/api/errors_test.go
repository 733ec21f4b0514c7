package api

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	models "SpinPull/internal/domain/models"
)

func TestToAppError(t *testing.T) {
	cases := []struct {
		err    error
		status int
		field  string
	}{
		{models.NewValidationError("number", "out of range"), http.StatusBadRequest, "number"},
		{fmt.Errorf("ingest: %w", models.ErrValidation), http.StatusBadRequest, ""},
		{fmt.Errorf("prediction x: %w", models.ErrNotFound), http.StatusNotFound, ""},
		{models.ErrAlreadyVerified, http.StatusConflict, ""},
		{fmt.Errorf("commit: %w", models.ErrStoreUnavailable), http.StatusServiceUnavailable, ""},
		{models.ErrDeadlineExceeded, http.StatusServiceUnavailable, ""},
		{&models.InvariantError{What: "group_6 size"}, http.StatusInternalServerError, ""},
		{errors.New("boom"), http.StatusInternalServerError, ""},
	}
	for _, tc := range cases {
		got := toAppError(tc.err)
		assert.Equal(t, tc.status, got.Status, tc.err.Error())
		assert.Equal(t, tc.field, got.Field)
		assert.ErrorIs(t, got, tc.err)
	}

	assert.Equal(t, "internal error", toAppError(errors.New("dial tcp 10.0.0.1: refused")).Message)
}

package apperrors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindAndStatus(t *testing.T) {
	tests := []struct {
		err    error
		kind   Kind
		status int
	}{
		{Validation(InvalidAttribute, "invalid attribute: %s", "Bogus"), KindValidation, http.StatusBadRequest},
		{NotFoundf(ClubNotFound, "club does not exist"), KindNotFound, http.StatusNotFound},
		{Conflict(AlreadyExists, "hiker already exists"), KindConflict, http.StatusConflict},
		{Inconsistent("no club for hiker"), KindInconsistent, http.StatusInternalServerError},
		{IO(Unavailable, errors.New("broken pipe"), "database unavailable"), KindIO, http.StatusInternalServerError},
		{errors.New("anything else"), KindIO, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.kind, KindOf(tt.err), tt.err.Error())
		assert.Equal(t, tt.status, HTTPStatus(tt.err), tt.err.Error())
	}
}

func TestWrappedErrorsKeepTheirClassification(t *testing.T) {
	err := fmt.Errorf("insert hiker: %w", NotFoundf(ClubNotFound, "club does not exist"))

	assert.Equal(t, KindNotFound, KindOf(err))
	assert.Equal(t, ClubNotFound, CodeOf(err))
	assert.True(t, errors.Is(err, &Error{Code: ClubNotFound}))
	assert.True(t, errors.Is(err, &Error{Kind: KindNotFound}))
	assert.False(t, errors.Is(err, &Error{Code: AlreadyExists}))
	assert.True(t, IsBusiness(err))
}

func TestMessageDoesNotLeakDriverErrors(t *testing.T) {
	err := IO(Unavailable, errors.New("pq: password authentication failed"), "database unavailable")
	assert.Equal(t, "database unavailable", Message(err))
	assert.Contains(t, err.Error(), "password authentication failed")
	assert.Equal(t, "internal server error", Message(errors.New("boom")))
	assert.False(t, IsBusiness(err))
}

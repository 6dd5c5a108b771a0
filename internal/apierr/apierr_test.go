// ABOUTME: Tests for typed API errors
// ABOUTME: Covers kind detection through wrapping, status mapping and detail redaction

package apierr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"unauthorized", Unauthorized("no session"), http.StatusUnauthorized},
		{"forbidden", Forbidden("nope"), http.StatusForbidden},
		{"not found", NotFound("missing"), http.StatusNotFound},
		{"validation", Validation("bad id"), http.StatusUnprocessableEntity},
		{"configuration", Configuration("dup"), http.StatusInternalServerError},
		{"plain", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Status(tt.err))
		})
	}
}

func TestKindSurvivesWrapping(t *testing.T) {
	err := fmt.Errorf("loading row: %w", NotFoundf("user %d not found", 7))

	assert.True(t, IsNotFound(err))
	assert.False(t, IsValidation(err))
	assert.Equal(t, "user 7 not found", Detail(err))
}

func TestDetailHidesInternalErrors(t *testing.T) {
	err := Wrap(KindInternal, errors.New("disk on fire"), "query failed")

	assert.Equal(t, InternalDetail, Detail(err))
	assert.Equal(t, InternalDetail, Detail(errors.New("raw")))
	assert.Equal(t, InternalDetail, Detail(Configurationf("model %q registered twice", "user")))
	assert.Contains(t, err.Error(), "disk on fire")
	assert.ErrorIs(t, err, err.Err)
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "validation", KindValidation.String())
	assert.Equal(t, "internal", Kind(99).String())
}

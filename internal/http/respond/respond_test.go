package respond

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hongminglow/bountyboard/internal/marketplace"
)

func TestJSONMarksSuccess(t *testing.T) {
	rec := httptest.NewRecorder()
	JSON(rec, http.StatusCreated, "created", map[string]int{"id": 7})

	var env Envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	assert.True(t, env.Success)
	assert.Equal(t, http.StatusCreated, env.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
}

func TestFailMapsKinds(t *testing.T) {
	cases := map[marketplace.Kind]int{
		marketplace.KindInvalid:      http.StatusBadRequest,
		marketplace.KindUnauthorized: http.StatusUnauthorized,
		marketplace.KindForbidden:    http.StatusForbidden,
		marketplace.KindNotFound:     http.StatusNotFound,
		marketplace.KindConflict:     http.StatusConflict,
		marketplace.KindUnavailable:  http.StatusServiceUnavailable,
	}
	for kind, status := range cases {
		rec := httptest.NewRecorder()
		err := fmt.Errorf("wrapped: %w", &marketplace.Error{Kind: kind, Message: "nope", Err: errors.New("detail")})
		Fail(rec, httptest.NewRequest(http.MethodGet, "/", nil), err)

		var env Envelope
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
		assert.Equal(t, status, rec.Code, kind)
		assert.False(t, env.Success)
		assert.Equal(t, "nope", env.Message)
	}
}

func TestFailHidesInternalErrors(t *testing.T) {
	rec := httptest.NewRecorder()
	Fail(rec, httptest.NewRequest(http.MethodGet, "/", nil), errors.New("pq: connection refused"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "connection refused")
}

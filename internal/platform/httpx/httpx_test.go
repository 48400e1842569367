package httpx

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sampleRequest struct {
	ProductID int64  `json:"product_id" validate:"required,gt=0"`
	Currency  string `json:"currency" validate:"required,len=3"`
}

func TestDecodeAndValidate(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"product_id":0,"currency":"BR"}`))
	var body sampleRequest
	err := DecodeAndValidate(req, &body)
	require.Error(t, err)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.ErrorIs(t, err, ErrValidation)
	fields := verr.Fields()
	assert.Equal(t, "is required", fields["ProductID"])
	assert.Equal(t, "must have length 3", fields["Currency"])
}

func TestDecodeAndValidateMalformedBody(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{`))
	var body sampleRequest
	err := DecodeAndValidate(req, &body)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestRespondErrorMapsKinds(t *testing.T) {
	cases := []struct {
		err  error
		code int
	}{
		{Wrap(ErrNotFound, errors.New("order 4 not found")), http.StatusNotFound},
		{Errorf(ErrConflict, "draft locked"), http.StatusConflict},
		{Wrap(ErrValidation, errors.New("bad")), http.StatusBadRequest},
		{Wrap(ErrUnavailable, errors.New("fiscal down")), http.StatusBadGateway},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		rr := httptest.NewRecorder()
		RespondError(rr, tc.err)
		assert.Equal(t, tc.code, rr.Code, tc.err.Error())

		var problem ProblemDetail
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &problem))
		assert.Equal(t, tc.code, problem.Status)
	}
}

func TestRespondErrorHidesInternalDetail(t *testing.T) {
	rr := httptest.NewRecorder()
	RespondError(rr, errors.New("pq: connection refused"))

	assert.NotContains(t, rr.Body.String(), "connection refused")
}

func TestWrapKeepsCause(t *testing.T) {
	cause := errors.New("cause")
	err := Wrap(ErrConflict, cause)
	assert.ErrorIs(t, err, cause)
	assert.ErrorIs(t, err, ErrConflict)
	assert.Equal(t, "cause", err.Error())
	assert.Nil(t, Wrap(ErrConflict, nil))
}

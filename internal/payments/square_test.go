package payments

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	pkgerrors "github.com/buildrelay/procurement-backend/pkg/errors"
)

func TestDomainCodeForStatus(t *testing.T) {
	cases := []struct {
		status int
		want   pkgerrors.Code
	}{
		{http.StatusPaymentRequired, pkgerrors.CodePaymentDeclined},
		{http.StatusConflict, pkgerrors.CodeConflict},
		{http.StatusBadRequest, pkgerrors.CodeValidation},
		{http.StatusUnprocessableEntity, pkgerrors.CodeValidation},
		{http.StatusNotFound, pkgerrors.CodeValidation},
		{http.StatusInternalServerError, pkgerrors.CodeDependency},
		{http.StatusBadGateway, pkgerrors.CodeDependency},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, domainCodeForStatus(tc.status), "status %d", tc.status)
	}
}

func TestMapSquareErrorPlainFailure(t *testing.T) {
	err := mapSquareError(errors.New("connection reset"))
	typed := pkgerrors.As(err)
	if assert.NotNil(t, typed) {
		assert.Equal(t, pkgerrors.CodeDependency, typed.Code())
		assert.True(t, pkgerrors.Retryable(err))
	}
}

func TestMapSquareErrorNil(t *testing.T) {
	assert.NoError(t, mapSquareError(nil))
}

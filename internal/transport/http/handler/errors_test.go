package handler

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/dept-site-api/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestHTTPError(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{domain.ErrNotFound, http.StatusNotFound},
		{domain.ErrCodeNotFound, http.StatusNotFound},
		{domain.ErrConflict, http.StatusConflict},
		{domain.ErrUnauthorized, http.StatusUnauthorized},
		{domain.ErrCodeMismatch, http.StatusBadRequest},
		{domain.ErrBadRequest, http.StatusBadRequest},
		{domain.ErrCodeExpired, http.StatusGone},
		{domain.ErrCodeNotVerified, http.StatusForbidden},
		{domain.ErrForbidden, http.StatusForbidden},
		{domain.ErrDelivery, http.StatusBadGateway},
		{domain.ErrEmptyCode, http.StatusInternalServerError},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, httpError(fmt.Errorf("wrapped: %w", c.err)), c.err.Error())
	}
}

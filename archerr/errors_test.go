package archerr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConstructorsUnwrapToSentinels(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		sentinel error
		code     string
	}{
		{"configuration", Configuration("lag %d", -1), ErrConfiguration, CodeConfiguration},
		{"parameter", InvalidParameter("nu=%g", 1.5), ErrInvalidParameter, CodeInvalidParameter},
		{"history", InsufficientHistory("origin %d", 0), ErrInsufficientHistory, CodeInsufficientHistory},
		{"forecast", UnsupportedForecast("analytic"), ErrUnsupportedForecast, CodeUnsupportedForecast},
		{"shape", ShapeMismatch("rows %d", 3), ErrShapeMismatch, CodeShapeMismatch},
		{"numerical", Numerical("sigma2[%d]=%g", 4, -1.0), ErrNumerical, CodeNumerical},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.err, tt.sentinel)
			assert.Equal(t, tt.code, GetCode(tt.err))
		})
	}
}

func TestWrapKeepsCode(t *testing.T) {
	base := InvalidParameter("omega must be positive")
	wrapped := Wrapf(base, "fix %s", "GARCH")

	assert.ErrorIs(t, wrapped, ErrInvalidParameter)
	assert.Equal(t, CodeInvalidParameter, GetCode(wrapped))
	assert.Equal(t, "fix GARCH: omega must be positive", wrapped.Error())

	plain := Wrap(fmt.Errorf("disk"), "load")
	assert.Equal(t, CodeInternal, GetCode(plain))
	assert.Nil(t, Wrap(nil, "nothing"))
	assert.Equal(t, "UNKNOWN", GetCode(errors.New("x")))
}

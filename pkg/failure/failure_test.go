package failure_test

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/pseudomuto/snowkeeper/pkg/failure"
	"github.com/stretchr/testify/require"
)

func TestKindOf(t *testing.T) {
	base := errors.New("boom")

	tests := []struct {
		name string
		err  error
		kind failure.Kind
	}{
		{name: "configuration", err: failure.Configuration(base), kind: failure.KindConfiguration},
		{name: "resolution", err: failure.Resolution(base), kind: failure.KindResolution},
		{name: "application", err: failure.Application("/a/V_x.sql", base), kind: failure.KindApplication},
		{name: "resize", err: failure.Resize(base), kind: failure.KindResize},
		{name: "wrapped", err: errors.Wrap(failure.Resize(base), "outer"), kind: failure.KindResize},
		{name: "plain", err: base, kind: failure.KindUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.kind, failure.KindOf(tt.err))
		})
	}
}

func TestApplicationErrorIncludesPath(t *testing.T) {
	err := failure.Application("/repo/coEDW/V_create.sql", errors.New("syntax error"))
	require.Contains(t, err.Error(), "/repo/coEDW/V_create.sql")
	require.Contains(t, err.Error(), "syntax error")
	require.Equal(t, "syntax error", errors.Cause(err).Error())
}

func TestFirstClassificationWins(t *testing.T) {
	err := failure.Configuration(failure.Resolution(errors.New("x")))
	require.Equal(t, failure.KindResolution, failure.KindOf(err))
}

func TestNilPassesThrough(t *testing.T) {
	require.NoError(t, failure.Application("p", nil))
}

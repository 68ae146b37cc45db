package logging

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNew(t *testing.T) {
	t.Parallel()

	cases := map[string]struct {
		opts Options
		want zapcore.Level
	}{
		"development default": {opts: Options{Development: true}, want: zapcore.InfoLevel},
		"production default":  {opts: Options{}, want: zapcore.InfoLevel},
		"debug":               {opts: Options{Development: true, Level: "debug"}, want: zapcore.DebugLevel},
		"warn":                {opts: Options{Level: "WARN"}, want: zapcore.WarnLevel},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			logger, err := New(tc.opts)
			require.NoError(t, err)
			require.True(t, logger.Core().Enabled(tc.want))
			require.False(t, logger.Core().Enabled(tc.want-1))
		})
	}
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	t.Parallel()

	_, err := New(Options{Level: "chatty"})
	require.ErrorContains(t, err, "parse log level")
}

// Not parallel: swaps the package-level logger.
func TestInitLoggerReplacesGlobal(t *testing.T) {
	before := L
	t.Cleanup(func() { L = before })

	require.NoError(t, InitLogger(Options{}))
	require.NotSame(t, before, L)

	require.Error(t, InitLogger(Options{Level: "chatty"}))
}

package logging

import (
	"bytes"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		level     string
		debug     bool
		wantLevel logrus.Level
		wantErr   bool
	}{
		"empty defaults to info": {
			level:     "",
			wantLevel: logrus.InfoLevel,
		},
		"warn": {
			level:     "warn",
			wantLevel: logrus.WarnLevel,
		},
		"debug flag wins over level": {
			level:     "error",
			debug:     true,
			wantLevel: logrus.DebugLevel,
		},
		"invalid level": {
			level:   "chatty",
			wantErr: true,
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			logger, err := New(&bytes.Buffer{}, tc.level, tc.debug)
			if tc.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), "invalid log level")
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tc.wantLevel, logger.GetLevel())
		})
	}
}

func TestNew_WritesWithoutTimestamp(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	logger, err := New(&buf, "info", false)
	require.NoError(t, err)

	logger.WithField("instance_id", "i-1").Info("starting bastion")

	assert.Contains(t, buf.String(), "starting bastion")
	assert.Contains(t, buf.String(), "instance_id=i-1")
	assert.NotContains(t, buf.String(), "time=")
}

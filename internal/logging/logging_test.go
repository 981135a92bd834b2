package logging

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNew_FiltersByLevel(t *testing.T) {
	var buf bytes.Buffer
	log, err := New("warn", &buf)
	require.NoError(t, err)
	log.Info("hidden")
	log.Warn("shown")
	require.NotContains(t, buf.String(), "hidden")
	require.Contains(t, buf.String(), "shown")
	require.Contains(t, buf.String(), "polecat")
}

func TestNew_RejectsUnknownLevel(t *testing.T) {
	_, err := New("loud", &bytes.Buffer{})
	require.ErrorContains(t, err, "invalid log level")
}

package portutil

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robertjbass/spindb/internal/errs"
)

func listenAndGetPort(t *testing.T) (net.Listener, int) {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	return l, l.Addr().(*net.TCPAddr).Port
}

func TestIsAvailableReportsFalseForBoundPort(t *testing.T) {
	l, port := listenAndGetPort(t)
	defer l.Close()

	assert.False(t, IsAvailable(port))
}

func TestFindAvailableSkipsOwnedPreferredPort(t *testing.T) {
	l, port := listenAndGetPort(t)
	defer l.Close()

	got, err := FindAvailable(port, Range{Lo: port + 1, Hi: port + 50}, nil)
	require.NoError(t, err)
	assert.NotEqual(t, port, got)
	assert.GreaterOrEqual(t, got, port+1)
}

func TestFindAvailableSkipsCatalogOwnedPorts(t *testing.T) {
	owned := func(p int) bool { return p == 6000 || p == 6001 }

	got, err := FindAvailable(0, Range{Lo: 6000, Hi: 6005}, owned)
	require.NoError(t, err)
	assert.Equal(t, 6002, got)
}

func TestFindAvailableFailsWhenRangeExhausted(t *testing.T) {
	owned := func(p int) bool { return true }

	_, err := FindAvailable(0, Range{Lo: 7000, Hi: 7002}, owned)
	require.Error(t, err)

	var e *errs.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, errs.KindNoPortsAvailable, e.Kind)
}

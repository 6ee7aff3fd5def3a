package freeport_test

import (
	"net"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cboone/sikulibridge/internal/freeport"
)

func TestAllocateReturnsBindablePort(t *testing.T) {
	for i := 0; i < 10; i++ {
		port, err := freeport.Allocate()
		require.NoError(t, err)
		assert.True(t, port > 0 && port <= 65535, "port %d out of range", port)

		ln, err := net.Listen("tcp", net.JoinHostPort(freeport.Host, strconv.Itoa(port)))
		require.NoError(t, err, "port %d should be bindable right after allocation", port)
		require.NoError(t, ln.Close())
	}
}

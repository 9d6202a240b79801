package client

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/srodi/pstat/pkg/server"
	"github.com/srodi/pstat/pkg/types"
)

const endpoint = "http://pstat.test:9464"

func newMocked(t *testing.T) *Client {
	t.Helper()
	c := New(endpoint+"/", time.Second)
	httpmock.ActivateNonDefault(c.HTTP)
	t.Cleanup(httpmock.DeactivateAndReset)
	return c
}

func TestPinfo(t *testing.T) {
	c := newMocked(t)
	var ps types.PStat
	ps.InUse[5], ps.PID[5], ps.HTicks[5] = 1, 77, 12
	responder, err := httpmock.NewJsonResponder(http.StatusOK, &ps)
	require.NoError(t, err)
	httpmock.RegisterResponder(http.MethodGet, endpoint+server.PinfoPath, responder)

	got, err := c.Pinfo(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ps, *got)
	assert.Equal(t, 1, httpmock.GetTotalCallCount())
}

func TestProcs(t *testing.T) {
	c := newMocked(t)
	httpmock.RegisterResponder(http.MethodGet, endpoint+server.ProcsPath,
		httpmock.NewStringResponder(http.StatusOK, `{"active": 9}`))

	n, err := c.Procs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(9), n)
}

func TestErrorStatus(t *testing.T) {
	c := newMocked(t)
	httpmock.RegisterResponder(http.MethodGet, endpoint+server.ProcsPath,
		httpmock.NewStringResponder(http.StatusServiceUnavailable, "busy"))

	_, err := c.Procs(context.Background())
	assert.ErrorContains(t, err, "unexpected status 503")
}

func TestBadBody(t *testing.T) {
	c := newMocked(t)
	httpmock.RegisterResponder(http.MethodGet, endpoint+server.PinfoPath,
		httpmock.NewStringResponder(http.StatusOK, "not json"))

	_, err := c.Pinfo(context.Background())
	assert.ErrorContains(t, err, "decoding "+server.PinfoPath)
}

func TestTransportError(t *testing.T) {
	c := newMocked(t)
	_, err := c.Pinfo(context.Background())
	assert.ErrorContains(t, err, "GET "+server.PinfoPath)
}

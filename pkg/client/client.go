package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/srodi/pstat/pkg/server"
	"github.com/srodi/pstat/pkg/types"
)

// Client reads snapshots from a remote pstat server.
type Client struct {
	HTTP     *http.Client
	Endpoint string
}

// New returns a client for the server at endpoint, e.g. http://host:9464.
func New(endpoint string, timeout time.Duration) *Client {
	hClient := &http.Client{}
	if timeout > 0 {
		hClient.Timeout = timeout
	}
	return &Client{
		HTTP:     hClient,
		Endpoint: strings.TrimRight(endpoint, "/"),
	}
}

// Pinfo fetches the server's current snapshot.
func (c *Client) Pinfo(ctx context.Context) (*types.PStat, error) {
	var ps types.PStat
	if err := c.get(ctx, server.PinfoPath, &ps); err != nil {
		return nil, err
	}
	return &ps, nil
}

// Procs fetches the server's live process count.
func (c *Client) Procs(ctx context.Context) (int32, error) {
	var out server.ProcsResponse
	if err := c.get(ctx, server.ProcsPath, &out); err != nil {
		return 0, err
	}
	return out.Active, nil
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.Endpoint+path, nil)
	if err != nil {
		return errors.Wrap(err, "failed to build request")
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return errors.Wrapf(err, "GET %s", path)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GET %s: unexpected status %d", path, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrapf(err, "decoding %s", path)
	}
	return nil
}

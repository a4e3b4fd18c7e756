package gcmd

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/tv42/httpunix"
)

const (
	unixLocation = "gordering"

	httpTimeout = 5 * time.Second
)

// debugClient talks to a node's debug HTTP server
// over either a unix socket or TCP.
type debugClient struct {
	c    *http.Client
	base string
}

func addDebugClientFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("socket", "", "unix socket of the node's debug HTTP server")
	f.String("addr", "", "TCP address of the node's debug HTTP server")
}

func newDebugClient(cmd *cobra.Command) (*debugClient, error) {
	v, err := newViper(cmd)
	if err != nil {
		return nil, err
	}

	socket := v.GetString("socket")
	addr := v.GetString("addr")

	switch {
	case socket != "" && addr != "":
		return nil, errors.New("--socket and --addr are mutually exclusive")

	case socket != "":
		u := &httpunix.Transport{
			DialTimeout:           100 * time.Millisecond,
			RequestTimeout:        httpTimeout,
			ResponseHeaderTimeout: httpTimeout,
		}
		u.RegisterLocation(unixLocation, socket)
		return &debugClient{
			c:    &http.Client{Transport: u},
			base: httpunix.Scheme + "://" + unixLocation,
		}, nil

	case addr != "":
		if !strings.Contains(addr, "://") {
			addr = "http://" + addr
		}
		return &debugClient{
			c:    &http.Client{Timeout: httpTimeout},
			base: strings.TrimSuffix(addr, "/"),
		}, nil

	default:
		return nil, errors.New("one of --socket or --addr is required")
	}
}

func (d *debugClient) getJSON(cmd *cobra.Command, path string, out any) error {
	req, err := http.NewRequestWithContext(cmd.Context(), http.MethodGet, d.base+path, nil)
	if err != nil {
		return err
	}
	return d.do(req, out)
}

func (d *debugClient) postJSON(cmd *cobra.Command, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(cmd.Context(), http.MethodPost, d.base+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return d.do(req, out)
}

func (d *debugClient) do(req *http.Request, out any) error {
	resp, err := d.c.Do(req)
	if err != nil {
		return fmt.Errorf("request to %s failed: %w", req.URL.Path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf(
			"request to %s failed with status %d: %s",
			req.URL.Path, resp.StatusCode, strings.TrimSpace(string(msg)),
		)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response from %s: %w", req.URL.Path, err)
	}
	return nil
}

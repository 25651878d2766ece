package storage

import (
	"encoding/json"
	"net"
	"time"

	"github.com/jmgilman/go/errors"
)

// Client implements Backend over a Unix socket served by Serve.
type Client struct {
	socketPath  string
	dialTimeout time.Duration
}

func NewClient(socketPath string) *Client {
	return &Client{socketPath: socketPath, dialTimeout: 500 * time.Millisecond}
}

func (c *Client) withConn(fn func(conn net.Conn) error) error {
	conn, err := net.DialTimeout("unix", c.socketPath, c.dialTimeout)
	if err != nil {
		return errors.WithContext(errors.Wrap(err, errors.CodeNetwork, "storage: dial cache daemon"), "socket", c.socketPath)
	}
	defer conn.Close()
	return fn(conn)
}

// do sends one request and decodes the matching response.
func (c *Client) do(req Request) (Response, error) {
	var resp Response
	err := c.withConn(func(conn net.Conn) error {
		if err := json.NewEncoder(conn).Encode(&req); err != nil {
			return errors.Wrap(err, errors.CodeNetwork, "storage: send request")
		}
		if err := json.NewDecoder(conn).Decode(&resp); err != nil {
			return errors.Wrap(err, errors.CodeNetwork, "storage: read response")
		}
		return nil
	})
	return resp, err
}

// remoteError rebuilds a daemon-side failure.
func remoteError(resp Response, name string) error {
	if errors.ErrorCode(resp.Code) == errors.CodeNotFound {
		return notFound(name)
	}
	code := errors.ErrorCode(resp.Code)
	if code == "" {
		code = errors.CodeUnknown
	}
	return errors.WithContext(errors.New(code, resp.Error), "name", name)
}

func (c *Client) Get(name string) ([]byte, error) {
	resp, err := c.do(Request{Op: opGet, Name: name})
	if err != nil {
		return nil, err
	}
	if !resp.OK {
		return nil, remoteError(resp, name)
	}
	return append([]byte{}, resp.Data...), nil
}

func (c *Client) Put(name string, data []byte) error {
	resp, err := c.do(Request{Op: opPut, Name: name, Data: data})
	if err != nil {
		return err
	}
	if !resp.OK {
		return remoteError(resp, name)
	}
	return nil
}

func (c *Client) Delete(name string) error {
	resp, err := c.do(Request{Op: opDelete, Name: name})
	if err != nil {
		return err
	}
	if !resp.OK {
		return remoteError(resp, name)
	}
	return nil
}

// Ping reports whether a daemon is accepting connections on the socket.
func (c *Client) Ping() error {
	return c.withConn(func(net.Conn) error { return nil })
}

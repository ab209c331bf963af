package ipc

import (
	"errors"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"time"
)

// Client provides RPC access to the daemon.
type Client struct {
	conn   net.Conn
	client *rpc.Client
}

// Dial connects to the IPC server at the given socket path.
func Dial(path string) (*Client, error) {
	conn, err := net.DialTimeout("unix", path, 2*time.Second)
	if err != nil {
		return nil, err
	}
	rpcClient := rpc.NewClientWithCodec(jsonrpc.NewClientCodec(conn))
	return &Client{conn: conn, client: rpcClient}, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	if c.client != nil {
		_ = c.client.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// Send enqueues a media file for upload.
func (c *Client) Send(req SendRequest) (*SendResponse, error) {
	var resp SendResponse
	if err := c.client.Call("Clipper.Send", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Ping checks that the daemon is reachable.
func (c *Client) Ping() error {
	var resp PingResponse
	if err := c.client.Call("Clipper.Ping", PingRequest{}, &resp); err != nil {
		return err
	}
	if !resp.Pong {
		return errors.New("daemon did not acknowledge ping")
	}
	return nil
}

// Trigger requests an immediate drain pass.
func (c *Client) Trigger() (*TriggerResponse, error) {
	var resp TriggerResponse
	if err := c.client.Call("Clipper.Trigger", TriggerRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Stop requests the daemon to stop processing.
func (c *Client) Stop() (*StopResponse, error) {
	var resp StopResponse
	if err := c.client.Call("Clipper.Stop", StopRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Status retrieves the daemon status.
func (c *Client) Status() (*StatusResponse, error) {
	var resp StatusResponse
	if err := c.client.Call("Clipper.Status", StatusRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// QueueList returns all queue items in delivery order.
func (c *Client) QueueList() (*QueueListResponse, error) {
	var resp QueueListResponse
	if err := c.client.Call("Clipper.QueueList", QueueListRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// QueueClear removes all items from the queue.
func (c *Client) QueueClear() (*QueueClearResponse, error) {
	var resp QueueClearResponse
	if err := c.client.Call("Clipper.QueueClear", QueueClearRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// HistoryList returns history entries newest first.
func (c *Client) HistoryList(limit int) (*HistoryListResponse, error) {
	var resp HistoryListResponse
	if err := c.client.Call("Clipper.HistoryList", HistoryListRequest{Limit: limit}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// HistoryClear removes all history entries.
func (c *Client) HistoryClear() (*HistoryClearResponse, error) {
	var resp HistoryClearResponse
	if err := c.client.Call("Clipper.HistoryClear", HistoryClearRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Contacts returns the recipient directory.
func (c *Client) Contacts() (*ContactsResponse, error) {
	var resp ContactsResponse
	if err := c.client.Call("Clipper.Contacts", ContactsRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ContactsReload re-reads the recipient directory from disk.
func (c *Client) ContactsReload() (*ContactsReloadResponse, error) {
	var resp ContactsReloadResponse
	if err := c.client.Call("Clipper.ContactsReload", ContactsReloadRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// TestNotification triggers a notification test via the daemon.
func (c *Client) TestNotification() (*TestNotificationResponse, error) {
	var resp TestNotificationResponse
	if err := c.client.Call("Clipper.TestNotification", TestNotificationRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

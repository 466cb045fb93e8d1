package ipc

import (
	"context"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"time"
)

const dialTimeout = 2 * time.Second

// Client provides RPC access to the daemon.
type Client struct {
	conn   net.Conn
	client *rpc.Client
}

// Dial connects to the IPC server at the given socket path.
func Dial(path string) (*Client, error) {
	conn, err := net.DialTimeout("unix", path, dialTimeout)
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

// call invokes method and gives up when ctx ends. An abandoned call still
// completes on the server.
func (c *Client) call(ctx context.Context, method string, req, resp any) error {
	if ctx == nil {
		ctx = context.Background()
	}
	pending := c.client.Go(ServiceName+"."+method, req, resp, make(chan *rpc.Call, 1))
	select {
	case done := <-pending.Done:
		return done.Error
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Status retrieves the daemon status.
func (c *Client) Status(ctx context.Context) (*StatusResponse, error) {
	var resp StatusResponse
	if err := c.call(ctx, "Status", StatusRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// QueueAdd enqueues files and optionally starts processing.
func (c *Client) QueueAdd(ctx context.Context, paths []string, process bool) (*QueueAddResponse, error) {
	var resp QueueAddResponse
	if err := c.call(ctx, "QueueAdd", QueueAddRequest{Paths: paths, Process: process}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// QueueList returns jobs optionally filtered by statuses.
func (c *Client) QueueList(ctx context.Context, statuses []string) (*QueueListResponse, error) {
	var resp QueueListResponse
	if err := c.call(ctx, "QueueList", QueueListRequest{Statuses: statuses}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ListJobs returns every job. It satisfies queue.Lister via queue.ListerFunc.
func (c *Client) ListJobs(ctx context.Context) ([]Job, error) {
	resp, err := c.QueueList(ctx, nil)
	if err != nil {
		return nil, err
	}
	return resp.Jobs, nil
}

// QueueShow returns one job.
func (c *Client) QueueShow(ctx context.Context, id string) (*QueueShowResponse, error) {
	var resp QueueShowResponse
	if err := c.call(ctx, "QueueShow", QueueShowRequest{ID: id}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// QueueProcess starts the worker.
func (c *Client) QueueProcess(ctx context.Context) (*QueueProcessResponse, error) {
	var resp QueueProcessResponse
	if err := c.call(ctx, "QueueProcess", QueueProcessRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// QueueCancel aborts the in-flight job.
func (c *Client) QueueCancel(ctx context.Context) (*QueueCancelResponse, error) {
	var resp QueueCancelResponse
	if err := c.call(ctx, "QueueCancel", QueueCancelRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// QueueRemove removes one job.
func (c *Client) QueueRemove(ctx context.Context, id string) (*QueueRemoveResponse, error) {
	var resp QueueRemoveResponse
	if err := c.call(ctx, "QueueRemove", QueueRemoveRequest{ID: id}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// QueueClear removes completed jobs.
func (c *Client) QueueClear(ctx context.Context) (*QueueClearResponse, error) {
	var resp QueueClearResponse
	if err := c.call(ctx, "QueueClear", QueueClearRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// WatchAdd registers a watch folder.
func (c *Client) WatchAdd(ctx context.Context, req WatchAddRequest) (*WatchAddResponse, error) {
	var resp WatchAddResponse
	if err := c.call(ctx, "WatchAdd", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// WatchRemove deletes a watch folder.
func (c *Client) WatchRemove(ctx context.Context, id string) (*WatchRemoveResponse, error) {
	var resp WatchRemoveResponse
	if err := c.call(ctx, "WatchRemove", WatchRemoveRequest{ID: id}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// WatchUpdate changes a watch folder's settings.
func (c *Client) WatchUpdate(ctx context.Context, req WatchUpdateRequest) (*WatchUpdateResponse, error) {
	var resp WatchUpdateResponse
	if err := c.call(ctx, "WatchUpdate", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// WatchList returns folder configs.
func (c *Client) WatchList(ctx context.Context) (*WatchListResponse, error) {
	var resp WatchListResponse
	if err := c.call(ctx, "WatchList", WatchListRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// WatchStatus returns per-folder state.
func (c *Client) WatchStatus(ctx context.Context) (*WatchStatusResponse, error) {
	var resp WatchStatusResponse
	if err := c.call(ctx, "WatchStatus", WatchStatusRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Export serializes a completed job.
func (c *Client) Export(ctx context.Context, req ExportRequest) (*ExportResponse, error) {
	var resp ExportResponse
	if err := c.call(ctx, "Export", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Events pulls bus events after req.Since.
func (c *Client) Events(ctx context.Context, req EventsRequest) (*EventsResponse, error) {
	var resp EventsResponse
	if err := c.call(ctx, "Events", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Extensions lists supported media extensions.
func (c *Client) Extensions(ctx context.Context) (*ExtensionsResponse, error) {
	var resp ExtensionsResponse
	if err := c.call(ctx, "Extensions", ExtensionsRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// TestNotification triggers a notification test via the daemon.
func (c *Client) TestNotification(ctx context.Context) (*TestNotificationResponse, error) {
	var resp TestNotificationResponse
	if err := c.call(ctx, "TestNotification", TestNotificationRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

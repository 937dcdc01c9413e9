package ipc

import (
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

// Status retrieves the daemon status.
func (c *Client) Status() (*StatusResponse, error) {
	var resp StatusResponse
	if err := c.client.Call("Gavel.Status", StatusRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// PipelineStart launches a pipeline run.
func (c *Client) PipelineStart(req PipelineStartRequest) (*PipelineStartResponse, error) {
	var resp PipelineStartResponse
	if err := c.client.Call("Gavel.PipelineStart", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// PipelineStop requests a graceful stop of the active run.
func (c *Client) PipelineStop() (*PipelineControlResponse, error) {
	var resp PipelineControlResponse
	if err := c.client.Call("Gavel.PipelineStop", PipelineControlRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// PipelinePause suspends the active run.
func (c *Client) PipelinePause() (*PipelineControlResponse, error) {
	var resp PipelineControlResponse
	if err := c.client.Call("Gavel.PipelinePause", PipelineControlRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// PipelineResume continues a paused run.
func (c *Client) PipelineResume() (*PipelineControlResponse, error) {
	var resp PipelineControlResponse
	if err := c.client.Call("Gavel.PipelineResume", PipelineControlRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// HearingList retrieves hearings matching the filter.
func (c *Client) HearingList(req HearingListRequest) (*HearingListResponse, error) {
	var resp HearingListResponse
	if err := c.client.Call("Gavel.HearingList", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// HearingDescribe retrieves a single hearing.
func (c *Client) HearingDescribe(id int64) (*HearingResponse, error) {
	var resp HearingResponse
	if err := c.client.Call("Gavel.HearingDescribe", HearingRequest{ID: id}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// HearingRetry resets an errored hearing back to pending.
func (c *Client) HearingRetry(id int64) (*HearingResponse, error) {
	var resp HearingResponse
	if err := c.client.Call("Gavel.HearingRetry", HearingRequest{ID: id}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// HearingRetryAll resets every errored hearing.
func (c *Client) HearingRetryAll() (*HearingRetryAllResponse, error) {
	var resp HearingRetryAllResponse
	if err := c.client.Call("Gavel.HearingRetryAll", HearingRetryAllRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// HearingSkip excludes a hearing from further processing.
func (c *Client) HearingSkip(id int64) (*HearingResponse, error) {
	var resp HearingResponse
	if err := c.client.Call("Gavel.HearingSkip", HearingRequest{ID: id}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// HearingRestore returns a skipped hearing to its pre-skip state.
func (c *Client) HearingRestore(id int64) (*HearingResponse, error) {
	var resp HearingResponse
	if err := c.client.Call("Gavel.HearingRestore", HearingRequest{ID: id}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// RunList retrieves pipeline run history.
func (c *Client) RunList(limit int) (*RunListResponse, error) {
	var resp RunListResponse
	if err := c.client.Call("Gavel.RunList", RunListRequest{Limit: limit}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ReviewList retrieves pending review candidates.
func (c *Client) ReviewList(req ReviewListRequest) (*ReviewListResponse, error) {
	var resp ReviewListResponse
	if err := c.client.Call("Gavel.ReviewList", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ReviewDescribe retrieves one candidate.
func (c *Client) ReviewDescribe(id int64) (*ReviewDescribeResponse, error) {
	var resp ReviewDescribeResponse
	if err := c.client.Call("Gavel.ReviewDescribe", ReviewDescribeRequest{ID: id}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ReviewAct applies a reviewer decision to one candidate.
func (c *Client) ReviewAct(req ReviewActRequest) (*ReviewActResponse, error) {
	var resp ReviewActResponse
	if err := c.client.Call("Gavel.ReviewAct", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ReviewBulk applies a batch decision to one hearing's candidates.
func (c *Client) ReviewBulk(req ReviewBulkRequest) (*ReviewBulkResponse, error) {
	var resp ReviewBulkResponse
	if err := c.client.Call("Gavel.ReviewBulk", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ReviewHearings summarizes hearings awaiting review.
func (c *Client) ReviewHearings() (*ReviewHearingsResponse, error) {
	var resp ReviewHearingsResponse
	if err := c.client.Call("Gavel.ReviewHearings", ReviewHearingsRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ScheduleList retrieves stored schedules.
func (c *Client) ScheduleList() (*ScheduleListResponse, error) {
	var resp ScheduleListResponse
	if err := c.client.Call("Gavel.ScheduleList", ScheduleListRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ScheduleCreate stores a new schedule.
func (c *Client) ScheduleCreate(req ScheduleCreateRequest) (*ScheduleResponse, error) {
	var resp ScheduleResponse
	if err := c.client.Call("Gavel.ScheduleCreate", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ScheduleUpdate changes an existing schedule.
func (c *Client) ScheduleUpdate(req ScheduleUpdateRequest) (*ScheduleResponse, error) {
	var resp ScheduleResponse
	if err := c.client.Call("Gavel.ScheduleUpdate", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ScheduleEnable toggles a schedule.
func (c *Client) ScheduleEnable(id int64, enabled bool) (*ScheduleEnableResponse, error) {
	var resp ScheduleEnableResponse
	if err := c.client.Call("Gavel.ScheduleEnable", ScheduleEnableRequest{ID: id, Enabled: enabled}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ScheduleDelete removes a schedule.
func (c *Client) ScheduleDelete(id int64) (*ScheduleDeleteResponse, error) {
	var resp ScheduleDeleteResponse
	if err := c.client.Call("Gavel.ScheduleDelete", ScheduleDeleteRequest{ID: id}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

package ipc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"os"
	"sync"

	"log/slog"

	"gavel/internal/api"
	"gavel/internal/daemon"
	"gavel/internal/logging"
	"gavel/internal/workers"
)

// Server exposes daemon control via JSON-RPC over a Unix domain socket.
type Server struct {
	path      string
	daemon    *daemon.Daemon
	logger    *slog.Logger
	listener  net.Listener
	rpcServer *rpc.Server

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewServer configures the IPC server at the given socket path.
func NewServer(ctx context.Context, path string, d *daemon.Daemon, logger *slog.Logger) (*Server, error) {
	if d == nil {
		return nil, errors.New("ipc server requires daemon")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	if err := os.RemoveAll(path); err != nil {
		return nil, fmt.Errorf("remove existing socket: %w", err)
	}

	listener, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen on socket: %w", err)
	}

	rpcServer := rpc.NewServer()
	srv := &service{daemon: d, logger: logger, ctx: ctx}
	if err := rpcServer.RegisterName("Gavel", srv); err != nil {
		listener.Close()
		return nil, fmt.Errorf("register rpc service: %w", err)
	}

	serverCtx, cancel := context.WithCancel(ctx)
	return &Server{
		path:      path,
		daemon:    d,
		logger:    logger,
		listener:  listener,
		rpcServer: rpcServer,
		ctx:       serverCtx,
		cancel:    cancel,
	}, nil
}

// Serve starts accepting RPC connections until the context is canceled.
func (s *Server) Serve() {
	s.logger.Debug("IPC server listening", logging.String("socket", s.path))
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			conn, err := s.listener.Accept()
			if err != nil {
				select {
				case <-s.ctx.Done():
					return
				default:
				}
				s.logger.Warn("accept failed", logging.Error(err))
				continue
			}
			s.wg.Add(1)
			go func(c net.Conn) {
				defer s.wg.Done()
				s.rpcServer.ServeCodec(jsonrpc.NewServerCodec(c))
			}(conn)
		}
	}()
}

// Close stops the server and removes the socket file.
func (s *Server) Close() {
	s.cancel()
	if s.listener != nil {
		_ = s.listener.Close()
	}
	s.wg.Wait()
	if err := os.RemoveAll(s.path); err != nil {
		s.logger.Warn("failed to remove socket",
			logging.String("socket", s.path),
			logging.Error(err))
	}
}

type service struct {
	daemon *daemon.Daemon
	logger *slog.Logger
	ctx    context.Context
}

func (s *service) log() *slog.Logger {
	if s.logger == nil {
		return logging.NewNop()
	}
	return s.logger.With(logging.String("component", "ipc"))
}

func (s *service) Status(_ StatusRequest, resp *StatusResponse) error {
	resp.Status = s.daemon.Status(s.ctx)
	return nil
}

func (s *service) PipelineStart(req PipelineStartRequest, resp *PipelineStartResponse) error {
	run, err := s.daemon.Pipeline().Start(s.ctx, req.Options)
	if err != nil {
		resp.Started = false
		resp.Message = err.Error()
		return nil
	}
	resp.Started = true
	resp.Run = run
	s.log().Info("pipeline started via IPC", logging.Int64("run_id", run.ID))
	return nil
}

func (s *service) PipelineStop(_ PipelineControlRequest, resp *PipelineControlResponse) error {
	return controlResult(resp, s.daemon.Pipeline().Stop())
}

func (s *service) PipelinePause(_ PipelineControlRequest, resp *PipelineControlResponse) error {
	return controlResult(resp, s.daemon.Pipeline().Pause())
}

func (s *service) PipelineResume(_ PipelineControlRequest, resp *PipelineControlResponse) error {
	return controlResult(resp, s.daemon.Pipeline().Resume())
}

func controlResult(resp *PipelineControlResponse, err error) error {
	if err != nil {
		resp.OK = false
		resp.Message = err.Error()
		return nil
	}
	resp.OK = true
	return nil
}

func (s *service) HearingList(req HearingListRequest, resp *HearingListResponse) error {
	items, err := s.daemon.Hearings().List(s.ctx, api.HearingFilter{
		Stage:     req.Stage,
		Status:    req.Status,
		StateCode: req.State,
		Limit:     req.Limit,
	})
	if err != nil {
		return err
	}
	resp.Items = items
	return nil
}

func (s *service) HearingDescribe(req HearingRequest, resp *HearingResponse) error {
	item, err := s.daemon.Hearings().Describe(s.ctx, req.ID)
	if err != nil {
		return err
	}
	if item == nil {
		return fmt.Errorf("%w: hearing %d", workers.ErrNotFound, req.ID)
	}
	resp.Item = *item
	return nil
}

func (s *service) HearingRetry(req HearingRequest, resp *HearingResponse) error {
	if err := s.daemon.Hearings().Retry(s.ctx, req.ID); err != nil {
		return err
	}
	return s.HearingDescribe(req, resp)
}

func (s *service) HearingRetryAll(_ HearingRetryAllRequest, resp *HearingRetryAllResponse) error {
	updated, err := s.daemon.Hearings().RetryAll(s.ctx)
	if err != nil {
		return err
	}
	resp.Updated = updated
	return nil
}

func (s *service) HearingSkip(req HearingRequest, resp *HearingResponse) error {
	if err := s.daemon.Hearings().Skip(s.ctx, req.ID); err != nil {
		return err
	}
	return s.HearingDescribe(req, resp)
}

func (s *service) HearingRestore(req HearingRequest, resp *HearingResponse) error {
	if err := s.daemon.Hearings().Restore(s.ctx, req.ID); err != nil {
		return err
	}
	return s.HearingDescribe(req, resp)
}

func (s *service) RunList(req RunListRequest, resp *RunListResponse) error {
	runs, err := s.daemon.Pipeline().Runs(s.ctx, req.Limit)
	if err != nil {
		return err
	}
	resp.Runs = runs
	return nil
}

func (s *service) ReviewList(req ReviewListRequest, resp *ReviewListResponse) error {
	candidates, err := s.daemon.Review().Pending(s.ctx, req.EntityType, req.Limit)
	if err != nil {
		return err
	}
	resp.Candidates = candidates
	return nil
}

func (s *service) ReviewDescribe(req ReviewDescribeRequest, resp *ReviewDescribeResponse) error {
	candidate, err := s.daemon.Review().Describe(s.ctx, req.ID)
	if err != nil {
		return err
	}
	if candidate == nil {
		return fmt.Errorf("%w: candidate %d", workers.ErrNotFound, req.ID)
	}
	resp.Candidate = *candidate
	return nil
}

func (s *service) ReviewAct(req ReviewActRequest, resp *ReviewActResponse) error {
	candidate, err := s.daemon.Review().Act(s.ctx, req.ID, req.Action)
	if err != nil {
		return err
	}
	resp.Candidate = *candidate
	return nil
}

func (s *service) ReviewBulk(req ReviewBulkRequest, resp *ReviewBulkResponse) error {
	resolved, err := s.daemon.Review().Bulk(s.ctx, req.Request)
	if err != nil {
		return err
	}
	resp.Resolved = resolved
	return nil
}

func (s *service) ReviewHearings(_ ReviewHearingsRequest, resp *ReviewHearingsResponse) error {
	summaries, err := s.daemon.Review().Hearings(s.ctx)
	if err != nil {
		return err
	}
	resp.Hearings = summaries
	return nil
}

func (s *service) ScheduleList(_ ScheduleListRequest, resp *ScheduleListResponse) error {
	schedules, err := s.daemon.Schedules().List(s.ctx)
	if err != nil {
		return err
	}
	resp.Schedules = schedules
	return nil
}

func (s *service) ScheduleCreate(req ScheduleCreateRequest, resp *ScheduleResponse) error {
	schedule, err := s.daemon.Schedules().Create(s.ctx, req.Schedule)
	if err != nil {
		return err
	}
	resp.Schedule = *schedule
	return nil
}

func (s *service) ScheduleUpdate(req ScheduleUpdateRequest, resp *ScheduleResponse) error {
	schedule, err := s.daemon.Schedules().Update(s.ctx, req.ID, req.Schedule)
	if err != nil {
		return err
	}
	resp.Schedule = *schedule
	return nil
}

func (s *service) ScheduleEnable(req ScheduleEnableRequest, resp *ScheduleEnableResponse) error {
	if err := s.daemon.Schedules().SetEnabled(s.ctx, req.ID, req.Enabled); err != nil {
		return err
	}
	resp.Enabled = req.Enabled
	return nil
}

func (s *service) ScheduleDelete(req ScheduleDeleteRequest, resp *ScheduleDeleteResponse) error {
	if err := s.daemon.Schedules().Delete(s.ctx, req.ID); err != nil {
		return err
	}
	resp.Deleted = true
	return nil
}

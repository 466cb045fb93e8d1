package ipc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"filescribe/internal/daemon"
	"filescribe/internal/logging"
	"filescribe/internal/queue"
	"filescribe/internal/services"
	"filescribe/internal/watch"
)

// ServiceName is the JSON-RPC receiver name.
const ServiceName = "Filescribe"

const maxEventWait = 30 * time.Second

// Server exposes daemon control via JSON-RPC over a Unix domain socket.
type Server struct {
	path      string
	logger    *slog.Logger
	listener  net.Listener
	rpcServer *rpc.Server

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	connMu sync.Mutex
	conns  map[net.Conn]struct{}
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

	serverCtx, cancel := context.WithCancel(ctx)
	rpcServer := rpc.NewServer()
	srv := &service{daemon: d, logger: logging.NewComponentLogger(logger, "ipc"), ctx: serverCtx}
	if err := rpcServer.RegisterName(ServiceName, srv); err != nil {
		cancel()
		listener.Close()
		return nil, fmt.Errorf("register rpc service: %w", err)
	}

	return &Server{
		path:      path,
		logger:    logger,
		listener:  listener,
		rpcServer: rpcServer,
		ctx:       serverCtx,
		cancel:    cancel,
		conns:     make(map[net.Conn]struct{}),
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
				if errors.Is(err, net.ErrClosed) {
					return
				}
				s.logger.Warn("accept failed",
					logging.Error(err),
					logging.String(logging.FieldEventType, "ipc_accept_failed"),
					logging.String(logging.FieldImpact, "IPC clients may fail to connect"),
					logging.String(logging.FieldErrorHint, "check socket permissions and restart the daemon if needed"))
				continue
			}
			s.track(conn, true)
			s.wg.Add(1)
			go func(c net.Conn) {
				defer s.wg.Done()
				defer s.track(c, false)
				s.rpcServer.ServeCodec(jsonrpc.NewServerCodec(c))
			}(conn)
		}
	}()
}

// Close stops the server, drops open connections and removes the socket file.
func (s *Server) Close() {
	s.cancel()
	if s.listener != nil {
		_ = s.listener.Close()
	}
	s.connMu.Lock()
	for conn := range s.conns {
		_ = conn.Close()
	}
	s.connMu.Unlock()
	s.wg.Wait()
	if err := os.RemoveAll(s.path); err != nil {
		s.logger.Warn("failed to remove socket",
			logging.String("socket", s.path),
			logging.Error(err),
			logging.String(logging.FieldEventType, "ipc_socket_cleanup_failed"),
			logging.String(logging.FieldImpact, "stale IPC socket may block future starts"),
			logging.String(logging.FieldErrorHint, "remove the socket file manually"))
	}
}

func (s *Server) track(conn net.Conn, add bool) {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	if add {
		s.conns[conn] = struct{}{}
		return
	}
	delete(s.conns, conn)
}

type service struct {
	daemon *daemon.Daemon
	logger *slog.Logger
	ctx    context.Context
}

// requestLogger tags log lines from one mutating call with a correlation id.
func (s *service) requestLogger(method string) *slog.Logger {
	ctx := services.WithRequestID(s.ctx, uuid.NewString())
	return logging.WithContext(ctx, s.logger).With(logging.Args(logging.String("rpc", method))...)
}

func (s *service) Status(_ StatusRequest, resp *StatusResponse) error {
	status := s.daemon.Status()
	resp.Running = status.Running
	resp.PID = status.PID
	resp.StartedAt = status.StartedAt
	resp.Queue = toQueueStats(status.Queue)
	resp.Folders = status.Folders
	resp.LastSequence = status.LastSequence
	resp.DatabasePath = status.DatabasePath
	resp.LockPath = status.LockPath
	resp.SocketPath = status.SocketPath
	return nil
}

func (s *service) QueueAdd(req QueueAddRequest, resp *QueueAddResponse) error {
	logger := s.requestLogger("QueueAdd")
	logger.Debug("queue add requested", logging.Int("path_count", len(req.Paths)))
	jobs, err := s.daemon.Queue().Enqueue(req.Paths)
	if err != nil {
		return err
	}
	resp.Jobs = jobs
	if req.Process && len(jobs) > 0 {
		s.daemon.Queue().ProcessAll()
		resp.Started = s.daemon.Queue().Running()
	}
	logger.Info("jobs queued via IPC",
		logging.String(logging.FieldEventType, "queue_add"),
		logging.Int("job_count", len(jobs)))
	return nil
}

func (s *service) QueueList(req QueueListRequest, resp *QueueListResponse) error {
	statuses := make([]queue.Status, 0, len(req.Statuses))
	for _, raw := range req.Statuses {
		parsed, ok := queue.ParseStatus(raw)
		if !ok {
			return services.Wrap(services.ErrValidation, "ipc", "queue list", fmt.Sprintf("unknown status %q", raw), nil)
		}
		statuses = append(statuses, parsed)
	}
	resp.Jobs = s.daemon.ListJobs(statuses)
	if resp.Jobs == nil {
		resp.Jobs = []Job{}
	}
	return nil
}

func (s *service) QueueShow(req QueueShowRequest, resp *QueueShowResponse) error {
	id := strings.TrimSpace(req.ID)
	job, ok := s.daemon.Queue().Job(id)
	if !ok {
		return services.Wrap(services.ErrNotFound, "ipc", "queue show", "job "+id, nil)
	}
	resp.Job = job
	return nil
}

func (s *service) QueueProcess(_ QueueProcessRequest, resp *QueueProcessResponse) error {
	logger := s.requestLogger("QueueProcess")
	s.daemon.Queue().ProcessAll()
	summary := s.daemon.Queue().Summary()
	resp.Running = summary.Running
	resp.Queued = summary.Counts[queue.StatusQueued]
	logger.Info("queue processing requested",
		logging.String(logging.FieldEventType, "queue_process"),
		logging.Int("queued", resp.Queued))
	return nil
}

func (s *service) QueueCancel(_ QueueCancelRequest, resp *QueueCancelResponse) error {
	if err := s.daemon.Queue().Cancel(); err != nil {
		if errors.Is(err, queue.ErrNothingProcessing) {
			resp.Message = "nothing is processing"
			return nil
		}
		return err
	}
	resp.Cancelled = true
	resp.Message = "cancellation requested"
	s.requestLogger("QueueCancel").Info("queue cancel requested", logging.String(logging.FieldEventType, "queue_cancel"))
	return nil
}

func (s *service) QueueRemove(req QueueRemoveRequest, resp *QueueRemoveResponse) error {
	if err := s.daemon.Queue().RemoveJob(strings.TrimSpace(req.ID)); err != nil {
		return err
	}
	resp.Removed = true
	return nil
}

func (s *service) QueueClear(_ QueueClearRequest, resp *QueueClearResponse) error {
	resp.Removed = s.daemon.Queue().ClearCompleted()
	s.requestLogger("QueueClear").Info("completed jobs cleared",
		logging.String(logging.FieldEventType, "queue_clear_completed"),
		logging.Int("removed_count", resp.Removed))
	return nil
}

func (s *service) WatchAdd(req WatchAddRequest, resp *WatchAddResponse) error {
	svc := s.daemon.Watch()
	cfg, err := svc.AddFolderWith(s.ctx, req.Path, watch.AddOptions{
		Recursive:   req.Recursive,
		AutoProcess: req.AutoProcess,
	})
	if err != nil {
		return err
	}
	resp.Folder = cfg
	for _, status := range svc.Status() {
		if status.FolderID == cfg.ID {
			resp.Status = status
			break
		}
	}
	return nil
}

func (s *service) WatchRemove(req WatchRemoveRequest, resp *WatchRemoveResponse) error {
	if err := s.daemon.Watch().RemoveFolder(s.ctx, strings.TrimSpace(req.ID)); err != nil {
		return err
	}
	resp.Removed = true
	return nil
}

func (s *service) WatchUpdate(req WatchUpdateRequest, resp *WatchUpdateResponse) error {
	svc := s.daemon.Watch()
	id := strings.TrimSpace(req.ID)
	cfg, ok := svc.Folder(id)
	if !ok {
		return services.Wrap(services.ErrNotFound, "ipc", "watch update", "folder "+id, nil)
	}
	if req.Path != nil {
		cfg.Path = *req.Path
	}
	if req.Enabled != nil {
		cfg.Enabled = *req.Enabled
	}
	if req.Recursive != nil {
		cfg.Recursive = *req.Recursive
	}
	if req.AutoProcess != nil {
		cfg.AutoProcess = *req.AutoProcess
	}
	updated, err := svc.UpdateFolder(s.ctx, cfg)
	if err != nil {
		return err
	}
	resp.Folder = updated
	return nil
}

func (s *service) WatchList(_ WatchListRequest, resp *WatchListResponse) error {
	resp.Folders = s.daemon.Watch().Folders()
	return nil
}

func (s *service) WatchStatus(_ WatchStatusRequest, resp *WatchStatusResponse) error {
	resp.Statuses = s.daemon.Watch().Status()
	return nil
}

func (s *service) Export(req ExportRequest, resp *ExportResponse) error {
	result, err := s.daemon.Export(daemon.ExportRequest{
		JobID:    req.JobID,
		Format:   req.Format,
		Dir:      req.Dir,
		FileName: req.FileName,
		Inline:   req.Inline,
	})
	if err != nil {
		return err
	}
	resp.Path = result.Path
	resp.Format = string(result.Format)
	resp.Content = string(result.Content)
	return nil
}

func (s *service) Events(req EventsRequest, resp *EventsResponse) error {
	bus := s.daemon.Bus()
	resp.Covered = bus.Covers(req.Since)

	wait := time.Duration(req.WaitMillis) * time.Millisecond
	if wait > maxEventWait {
		wait = maxEventWait
	}
	ctx := s.ctx
	if wait > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(s.ctx, wait)
		defer cancel()
	}
	evts, next, err := bus.Fetch(ctx, req.Since, req.Limit, wait > 0)
	if err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	resp.Events = evts
	resp.Next = next
	resp.LastSequence = bus.LastSequence()
	return nil
}

func (s *service) Extensions(_ ExtensionsRequest, resp *ExtensionsResponse) error {
	resp.Extensions = s.daemon.Extensions()
	return nil
}

func (s *service) TestNotification(_ TestNotificationRequest, resp *TestNotificationResponse) error {
	sent, message, err := s.daemon.TestNotification(s.ctx)
	resp.Sent = sent
	resp.Message = message
	return err
}

func toQueueStats(summary queue.Summary) QueueStats {
	stats := QueueStats{
		Total:           summary.Total,
		Counts:          make(map[string]int, len(summary.Counts)),
		ProcessingJobID: summary.ProcessingJobID,
		Running:         summary.Running,
	}
	for status, count := range summary.Counts {
		stats.Counts[string(status)] = count
	}
	return stats
}

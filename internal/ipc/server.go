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
	"sync"

	"inkwell/internal/daemon"
	"inkwell/internal/logging"
)

// serviceName is the JSON-RPC namespace clients call into.
const serviceName = "Inkwell"

// Server exposes daemon control via JSON-RPC over a Unix domain socket.
type Server struct {
	path      string
	logger    *slog.Logger
	listener  net.Listener
	rpcServer *rpc.Server

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewServer configures the IPC server at the given socket path. requestStop
// is invoked when a client asks the daemon process to exit.
func NewServer(ctx context.Context, path string, d *daemon.Daemon, requestStop func(), logger *slog.Logger) (*Server, error) {
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
	svc := &service{
		daemon:      d,
		requestStop: requestStop,
		logger:      logging.NewComponentLogger(logger, "ipc"),
		ctx:         serverCtx,
	}
	if err := rpcServer.RegisterName(serviceName, svc); err != nil {
		cancel()
		listener.Close()
		return nil, fmt.Errorf("register rpc service: %w", err)
	}

	return &Server{
		path:      path,
		logger:    logging.NewComponentLogger(logger, "ipc"),
		listener:  listener,
		rpcServer: rpcServer,
		ctx:       serverCtx,
		cancel:    cancel,
	}, nil
}

// Serve accepts RPC connections until Close or context cancellation.
func (s *Server) Serve() {
	s.logger.Debug("ipc server listening", logging.String("socket", s.path))
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
			logging.String("socket", s.path), logging.Error(err))
	}
}

type service struct {
	daemon      *daemon.Daemon
	requestStop func()
	logger      *slog.Logger
	ctx         context.Context
}

func (s *service) Status(_ StatusRequest, resp *StatusResponse) error {
	resp.Status = s.daemon.Status(s.ctx)
	return nil
}

func (s *service) List(_ ListRequest, resp *ListResponse) error {
	resp.Active, resp.Recent = s.daemon.Missions()
	return nil
}

func (s *service) Add(req AddRequest, resp *AddResponse) error {
	if req.Path == "" {
		return errors.New("add requires a path")
	}
	if req.Dir {
		added, err := s.daemon.AddDir(s.ctx, req.Path, req.TargetDir)
		if err != nil {
			return err
		}
		resp.Added = added
		return nil
	}
	id, err := s.daemon.Add(s.ctx, req.Path, req.TargetDir)
	if err != nil {
		return err
	}
	resp.MissionID = id
	resp.Added = 1
	return nil
}

func (s *service) Cancel(req CancelRequest, resp *CancelResponse) error {
	if req.ID <= 0 {
		return fmt.Errorf("invalid mission id %d", req.ID)
	}
	if err := s.daemon.Cancel(s.ctx, req.ID); err != nil {
		return err
	}
	resp.Canceled = true
	return nil
}

func (s *service) Watch(req WatchRequest, resp *WatchResponse) error {
	if req.Dir == "" {
		return errors.New("watch requires a directory")
	}
	if req.Remove {
		removed, err := s.daemon.Unwatch(s.ctx, req.Dir)
		if err != nil {
			return err
		}
		resp.Changed = removed
	} else {
		if err := s.daemon.Watch(s.ctx, req.Dir); err != nil {
			return err
		}
		resp.Changed = true
	}
	resp.Watched = s.daemon.Status(s.ctx).Watched
	return nil
}

func (s *service) Stop(_ StopRequest, resp *StopResponse) error {
	s.logger.Info("shutdown requested via ipc")
	if s.requestStop != nil {
		s.requestStop()
	}
	resp.Stopped = true
	return nil
}

/*
 * // Copyright 2020 Insolar Network Ltd.
 * // All rights reserved.
 * // This material is licensed under the Insolar License version 1.0,
 * // available at https://github.com/insolar/assured-ledger/blob/master/LICENSE.md.
 */

package ncmploader

import (
	"context"
	"net"
	"sync"
	"sync/atomic"

	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/encoding"
	"google.golang.org/grpc/status"
)

const (
	jsonCodecName      = "json"
	loaderServiceName  = "ncmpload.Loader"
	runMethod          = "/" + loaderServiceName + "/Run"
	shutdownNodeMethod = "/" + loaderServiceName + "/ShutdownNode"
)

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

// jsonCodec lets nodes exchange plain structs without generated messages
type jsonCodec struct{}

func (jsonCodec) Marshal(v interface{}) ([]byte, error) {
	return jsoniter.Marshal(v)
}

func (jsonCodec) Unmarshal(data []byte, v interface{}) error {
	return jsoniter.Unmarshal(data, v)
}

func (jsonCodec) Name() string {
	return jsonCodecName
}

type RunConfigRequest struct {
	Config RunnerConfig `json:"config"`
}

type ResultsResponse struct {
	Results []AttackResult `json:"results"`
}

// ShutdownNodeRequest cancels the run of one scenario, every run when Scenario is empty
type ShutdownNodeRequest struct {
	Scenario string `json:"scenario"`
}

type ShutdownNodeResponse struct{}

// LoaderServer node service
type LoaderServer interface {
	Run(req *RunConfigRequest, srv grpc.ServerStream) error
	ShutdownNode(ctx context.Context, req *ShutdownNodeRequest) (*ShutdownNodeResponse, error)
}

func runHandler(srv interface{}, stream grpc.ServerStream) error {
	req := new(RunConfigRequest)
	if err := stream.RecvMsg(req); err != nil {
		return err
	}
	return srv.(LoaderServer).Run(req, stream)
}

func shutdownNodeHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(ShutdownNodeRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(LoaderServer).ShutdownNode(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: shutdownNodeMethod,
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(LoaderServer).ShutdownNode(ctx, req.(*ShutdownNodeRequest))
	}
	return interceptor(ctx, in, info, handler)
}

var loaderServiceDesc = grpc.ServiceDesc{
	ServiceName: loaderServiceName,
	HandlerType: (*LoaderServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "ShutdownNode",
			Handler:    shutdownNodeHandler,
		},
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "Run",
			Handler:       runHandler,
			ServerStreams: true,
		},
	},
}

type server struct {
	addr string
	data interface{}
	mu   sync.Mutex
	// runs cancel funcs of running scenarios by name
	runs map[string]context.CancelFunc
	L    *Logger
}

func (r *Runner) streamResults(srv grpc.ServerStream) {
	for chunk := range r.OutResults {
		if err := srv.SendMsg(&ResultsResponse{Results: chunk}); err != nil {
			r.L.Error(err)
		}
		// send last tick batch and shutdown, other nodes will be cancelled by client
		if r.Cfg.FailOnFirstError && atomic.LoadInt64(&r.Failed) == 1 {
			r.CancelFunc()
		}
	}
}

// Run starts Runner and stream Results back to cluster client
func (s *server) Run(req *RunConfigRequest, srv grpc.ServerStream) error {
	name := req.Config.Name
	s.mu.Lock()
	if _, ok := s.runs[name]; ok {
		s.mu.Unlock()
		return status.Errorf(codes.Unavailable, errNodeIsBusy, s.addr, name)
	}
	ctx, cancel := context.WithCancel(srv.Context())
	s.runs[name] = cancel
	s.mu.Unlock()
	defer func() {
		cancel()
		s.mu.Lock()
		delete(s.runs, name)
		s.mu.Unlock()
	}()

	cfg := req.Config
	if cfg.ReportOptions == nil {
		cfg.ReportOptions = &ReportOptions{}
	}
	cfg.ReportOptions.Stream = true
	cfg.HandleSignals = false
	atk, err := AttackerFromString(cfg.Exec)
	if err != nil {
		return status.Error(codes.InvalidArgument, err.Error())
	}
	r, err := NewRunner(&cfg, atk, s.data)
	if err != nil {
		return status.Error(codes.InvalidArgument, err.Error())
	}
	cfgJson, _ := jsoniter.MarshalIndent(cfg, "", "    ")
	s.L.Infof("running task: %s", cfgJson)
	runErr := make(chan error, 1)
	go func() {
		_, err := r.Run(ctx)
		runErr <- err
	}()
	r.streamResults(srv)
	return <-runErr
}

func (s *server) ShutdownNode(_ context.Context, req *ShutdownNodeRequest) (*ShutdownNodeResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for name, cancel := range s.runs {
		if req.Scenario == "" || req.Scenario == name {
			cancel()
		}
	}
	return &ShutdownNodeResponse{}, nil
}

// RunService starts load node, data is passed to every runner as TestData
func RunService(addr string, data interface{}, l *Logger) (*grpc.Server, error) {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to listen %s", addr)
	}
	s := grpc.NewServer()
	s.RegisterService(&loaderServiceDesc, &server{
		addr: addr,
		data: data,
		runs: make(map[string]context.CancelFunc),
		L:    l.With("node", addr),
	})
	l.Infof("running node on: %s", addr)
	go func() {
		if err := s.Serve(lis); err != nil {
			l.Errorf("failed to serve: %v", err)
		}
	}()
	return s, nil
}

package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/joseph-ayodele/invoice-intake/internal/agent"
	"github.com/joseph-ayodele/invoice-intake/internal/common"
)

// ToolServiceName is the fully qualified gRPC service name.
const ToolServiceName = "invoiceintake.v1.ToolService"

// Request and response keys.
const (
	KeyInput  = "input"
	KeyResult = "result"
	KeyTools  = "tools"
)

// ToolServiceServer exposes the dispatcher tools over gRPC. Every message
// is a google.protobuf.Struct.
type ToolServiceServer interface {
	ListTools(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	UpdateFlag(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	PushInvoice(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	SendRejection(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	FetchPeers(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

// RawDispatcher runs one tool call from lenient input.
type RawDispatcher interface {
	DispatchRaw(ctx context.Context, tool, input string) (string, error)
}

type ToolService struct {
	dispatcher RawDispatcher
	logger     *slog.Logger
}

func NewToolService(d RawDispatcher, logger *slog.Logger) *ToolService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ToolService{dispatcher: d, logger: logger}
}

func (s *ToolService) ListTools(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	b, err := json.Marshal(map[string]any{KeyTools: agent.Tools()})
	if err != nil {
		return nil, common.ToStatus(err)
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, common.ToStatus(err)
	}
	out, err := structpb.NewStruct(m)
	if err != nil {
		return nil, common.ToStatus(err)
	}
	return out, nil
}

func (s *ToolService) UpdateFlag(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	return s.call(ctx, agent.ToolUpdateFlag, req)
}

func (s *ToolService) PushInvoice(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	return s.call(ctx, agent.ToolPushInvoice, req)
}

func (s *ToolService) SendRejection(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	return s.call(ctx, agent.ToolSendRejection, req)
}

func (s *ToolService) FetchPeers(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	return s.call(ctx, agent.ToolFetchPeers, req)
}

func (s *ToolService) call(ctx context.Context, tool string, req *structpb.Struct) (*structpb.Struct, error) {
	input, err := toolInput(req)
	if err != nil {
		s.logger.Warn("server.tool.bad_request", "tool", tool, "error", err)
		return nil, common.ToStatus(err)
	}
	result, err := s.dispatcher.DispatchRaw(ctx, tool, input)
	if err != nil {
		return nil, common.ToStatus(err)
	}
	return structpb.NewStruct(map[string]any{KeyResult: result})
}

// toolInput returns the lenient "input" string when present, otherwise the
// structured fields re-encoded as JSON.
func toolInput(req *structpb.Struct) (string, error) {
	if req == nil || len(req.GetFields()) == 0 {
		return "", fmt.Errorf("%w: empty request", common.ErrInvalidInput)
	}
	if v, ok := req.GetFields()[KeyInput]; ok && len(req.GetFields()) == 1 {
		if sv, ok := v.GetKind().(*structpb.Value_StringValue); ok {
			return strings.TrimSpace(sv.StringValue), nil
		}
		return "", fmt.Errorf("%w: %q must be a string", common.ErrInvalidInput, KeyInput)
	}
	b, err := json.Marshal(req.AsMap())
	if err != nil {
		return "", fmt.Errorf("%w: %v", common.ErrInvalidInput, err)
	}
	return string(b), nil
}

// RegisterToolServiceServer registers srv under ToolServiceName.
func RegisterToolServiceServer(s grpc.ServiceRegistrar, srv ToolServiceServer) {
	s.RegisterService(&toolServiceDesc, srv)
}

type toolMethod func(srv ToolServiceServer, ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)

func unaryHandler(name string, m toolMethod) grpc.MethodDesc {
	full := "/" + ToolServiceName + "/" + name
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return m(srv.(ToolServiceServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: full}
			handler := func(ctx context.Context, req any) (any, error) {
				return m(srv.(ToolServiceServer), ctx, req.(*structpb.Struct))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

var toolServiceDesc = grpc.ServiceDesc{
	ServiceName: ToolServiceName,
	HandlerType: (*ToolServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unaryHandler("ListTools", ToolServiceServer.ListTools),
		unaryHandler("UpdateFlag", ToolServiceServer.UpdateFlag),
		unaryHandler("PushInvoice", ToolServiceServer.PushInvoice),
		unaryHandler("SendRejection", ToolServiceServer.SendRejection),
		unaryHandler("FetchPeers", ToolServiceServer.FetchPeers),
	},
	Streams: []grpc.StreamDesc{},
}

// ToolClient calls a remote ToolService.
type ToolClient struct {
	cc grpc.ClientConnInterface
}

func NewToolClient(cc grpc.ClientConnInterface) *ToolClient {
	return &ToolClient{cc: cc}
}

// Call invokes method with req and returns the response struct.
func (c *ToolClient) Call(ctx context.Context, method string, req *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, "/"+ToolServiceName+"/"+method, req, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

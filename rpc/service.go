package rpc

import (
	"context"
	"encoding/json"

	"google.golang.org/grpc"
)

const (
	ServiceName  = "enrichment.Enrichment"
	EnrichMethod = "/enrichment.Enrichment/Enrich"
)

// EnrichRequest asks for the enrichment of one address.
type EnrichRequest struct {
	IP          string `json:"ip"`
	MarkingRefs string `json:"marking_refs,omitempty"`
	EntityID    string `json:"entity_id,omitempty"`
}

// EnrichResponse carries details and bundle as raw JSON.
type EnrichResponse struct {
	IP      string          `json:"ip"`
	Labels  []string        `json:"labels"`
	Note    string          `json:"note"`
	Details json.RawMessage `json:"details,omitempty"`
	Bundle  json.RawMessage `json:"bundle,omitempty"`
}

// EnrichmentServer is implemented by the service.
type EnrichmentServer interface {
	Enrich(ctx context.Context, req *EnrichRequest) (*EnrichResponse, error)
}

// RegisterEnrichmentServer registers srv with s.
func RegisterEnrichmentServer(s grpc.ServiceRegistrar, srv EnrichmentServer) {
	s.RegisterService(&serviceDesc, srv)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*EnrichmentServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Enrich",
			Handler:    enrichHandler,
		},
	},
	Streams: []grpc.StreamDesc{},
}

func enrichHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(EnrichRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(EnrichmentServer).Enrich(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: EnrichMethod,
	}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(EnrichmentServer).Enrich(ctx, req.(*EnrichRequest))
	}
	return interceptor(ctx, in, info, handler)
}

// EnrichmentClient calls the Enrichment service.
type EnrichmentClient struct {
	cc grpc.ClientConnInterface
}

// NewEnrichmentClient returns a client using cc.
func NewEnrichmentClient(cc grpc.ClientConnInterface) *EnrichmentClient {
	return &EnrichmentClient{cc: cc}
}

// Enrich calls the service with the JSON codec.
func (c *EnrichmentClient) Enrich(ctx context.Context, in *EnrichRequest, opts ...grpc.CallOption) (*EnrichResponse, error) {
	out := new(EnrichResponse)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	if err := c.cc.Invoke(ctx, EnrichMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

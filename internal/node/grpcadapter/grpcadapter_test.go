package grpcadapter

import (
	"context"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/test/bufconn"

	"github.com/catalogsync/replicator/internal/catalog"
	"github.com/catalogsync/replicator/internal/node"
)

// fakeService implements just enough of serviceName's methods, over the
// same JSON codec the Adapter dials with, to exercise Invoke end to end
// without protoc-generated stubs on either side of the wire.
type fakeService struct {
	existsVal bool
	lastSave  *wireMetadata
}

func (f *fakeService) handleExists(ctx context.Context, dec func(interface{}) error) (interface{}, error) {
	var req existsRequest
	if err := dec(&req); err != nil {
		return nil, err
	}
	return &existsResponse{Exists: f.existsVal}, nil
}

func (f *fakeService) handleCreateRequest(ctx context.Context, dec func(interface{}) error) (interface{}, error) {
	var req wireMetadata
	if err := dec(&req); err != nil {
		return nil, err
	}
	f.lastSave = &req
	return &boolResponse{OK: true}, nil
}

func serviceDesc(svc *fakeService) grpc.ServiceDesc {
	return grpc.ServiceDesc{
		ServiceName: serviceName,
		HandlerType: (*interface{})(nil),
		Methods: []grpc.MethodDesc{
			{
				MethodName: "Exists",
				Handler: func(_ interface{}, ctx context.Context, dec func(interface{}) error, _ grpc.UnaryServerInterceptor) (interface{}, error) {
					return svc.handleExists(ctx, dec)
				},
			},
			{
				MethodName: "CreateRequest",
				Handler: func(_ interface{}, ctx context.Context, dec func(interface{}) error, _ grpc.UnaryServerInterceptor) (interface{}, error) {
					return svc.handleCreateRequest(ctx, dec)
				},
			},
		},
	}
}

func dialTestServer(t *testing.T, svc *fakeService) *Adapter {
	t.Helper()

	lis := bufconn.Listen(1024 * 1024)
	server := grpc.NewServer()
	desc := serviceDesc(svc)
	server.RegisterService(&desc, svc)
	go func() {
		_ = server.Serve(lis)
	}()
	t.Cleanup(server.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(context.Context, string) (net.Conn, error) { return lis.Dial() }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(jsonCodec{}.Name())),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	return &Adapter{name: "test", conn: conn}
}

func TestExistsRoundTrip(t *testing.T) {
	svc := &fakeService{existsVal: true}
	a := dialTestServer(t, svc)

	exists, err := a.Exists(context.Background(), &catalog.Metadata{ID: "m1"})
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestCreateRequestRoundTrip(t *testing.T) {
	svc := &fakeService{}
	a := dialTestServer(t, svc)

	ok, err := a.CreateRequest(context.Background(), &catalog.Metadata{ID: "m1"})
	require.NoError(t, err)
	assert.True(t, ok)
	require.NotNil(t, svc.lastSave)
	assert.Equal(t, "m1", svc.lastSave.ID)
}

func TestResourceMethodsAreUnimplemented(t *testing.T) {
	a := &Adapter{name: "test"}

	_, err := a.ReadResource(context.Background(), node.ReadResourceRequest{})
	assert.Error(t, err)

	_, err = a.CreateResource(context.Background(), &catalog.Metadata{}, nil)
	assert.Error(t, err)

	_, err = a.UpdateResource(context.Background(), &catalog.Metadata{}, nil)
	assert.Error(t, err)
}

// Package grpcadapter is an alternate NodeAdapter transport for
// catalog-to-catalog calls within a single trust domain, using
// google.golang.org/grpc directly (with a JSON wire codec rather than
// protoc-generated stubs — this reference adapter is intentionally
// codegen-free) and github.com/grpc-ecosystem/go-grpc-middleware for a
// retry interceptor; no logging interceptor is installed. The wire
// protocol, like httpadapter's, is
// this adapter's own concern; the core only ever sees node.Adapter.
package grpcadapter

import (
	"context"
	"time"

	grpc_retry "github.com/grpc-ecosystem/go-grpc-middleware/retry"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/encoding"
	"google.golang.org/grpc/health/grpc_health_v1"

	"github.com/catalogsync/replicator/internal/catalog"
	"github.com/catalogsync/replicator/internal/node"
)

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

const serviceName = "catalogsync.NodeService"

// Config configures an Adapter.
type Config struct {
	SystemName string
	Target     string // dial target, e.g. "catalog-node:9443"
	MaxRetries uint
	Log        *logrus.Entry
}

// Adapter is a gRPC-backed node.Adapter.
type Adapter struct {
	name string
	conn *grpc.ClientConn
	log  *logrus.Entry
}

// Dial establishes the ClientConn and wraps it as a node.Adapter.
func Dial(cfg Config) (*Adapter, error) {
	retryOpts := []grpc_retry.CallOption{
		grpc_retry.WithMax(cfg.MaxRetries),
		grpc_retry.WithBackoff(grpc_retry.BackoffLinear(100 * time.Millisecond)),
		grpc_retry.WithCodes(codes.Unavailable, codes.DeadlineExceeded),
	}

	conn, err := grpc.NewClient(cfg.Target,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(jsonCodec{}.Name())),
		grpc.WithChainUnaryInterceptor(grpc_retry.UnaryClientInterceptor(retryOpts...)),
	)
	if err != nil {
		return nil, errors.Wrapf(err, "dialing %s", cfg.Target)
	}
	return &Adapter{name: cfg.SystemName, conn: conn, log: cfg.Log}, nil
}

// Close releases the underlying connection.
func (a *Adapter) Close() error { return a.conn.Close() }

func (a *Adapter) SystemName() string { return a.name }

func (a *Adapter) IsAvailable(ctx context.Context) bool {
	client := grpc_health_v1.NewHealthClient(a.conn)
	resp, err := client.Check(ctx, &grpc_health_v1.HealthCheckRequest{})
	if err != nil {
		return false
	}
	return resp.Status == grpc_health_v1.HealthCheckResponse_SERVING
}

type wireMetadata struct {
	ID               string    `json:"id"`
	MetadataModified time.Time `json:"metadataModified"`
	ResourceURI      string    `json:"resourceUri,omitempty"`
	ResourceModified time.Time `json:"resourceModified,omitempty"`
	ResourceSize     int64     `json:"resourceSize,omitempty"`
	MetadataSize     int64     `json:"metadataSize,omitempty"`
	IsDeleted        bool      `json:"isDeleted"`
	Tags             []string  `json:"tags,omitempty"`
	Lineage          []string  `json:"lineage,omitempty"`
}

func toWire(m *catalog.Metadata) *wireMetadata {
	tags := make([]string, 0, len(m.Tags))
	for t := range m.Tags {
		tags = append(tags, t)
	}
	return &wireMetadata{
		ID: m.ID, MetadataModified: m.MetadataModified, ResourceURI: m.ResourceURI,
		ResourceModified: m.ResourceModified, ResourceSize: m.ResourceSize,
		MetadataSize: m.MetadataSize, IsDeleted: m.IsDeleted, Tags: tags, Lineage: m.Lineage,
	}
}

func fromWire(w *wireMetadata) *catalog.Metadata {
	m := &catalog.Metadata{
		ID: w.ID, MetadataModified: w.MetadataModified, ResourceURI: w.ResourceURI,
		ResourceModified: w.ResourceModified, ResourceSize: w.ResourceSize,
		MetadataSize: w.MetadataSize, IsDeleted: w.IsDeleted,
		Lineage: append([]string(nil), w.Lineage...),
	}
	for _, t := range w.Tags {
		m.AddTag(t)
	}
	return m
}

type existsRequest struct {
	ID string `json:"id"`
}

type existsResponse struct {
	Exists bool `json:"exists"`
}

type boolResponse struct {
	OK bool `json:"ok"`
}

type queryRequest struct {
	Query         string   `json:"query"`
	ExcludeAt     []string `json:"excludeAt"`
	FailedIDs     []string `json:"failedIds"`
	ModifiedAfter *int64   `json:"modifiedAfter,omitempty"`
}

type queryResponse struct {
	Records []*wireMetadata `json:"records"`
}

func (a *Adapter) invoke(ctx context.Context, method string, req, resp interface{}) error {
	fullMethod := "/" + serviceName + "/" + method
	if err := a.conn.Invoke(ctx, fullMethod, req, resp); err != nil {
		return errors.Wrapf(err, "calling %s", fullMethod)
	}
	return nil
}

func (a *Adapter) Query(ctx context.Context, req node.QueryRequest) (node.MetadataSequence, error) {
	wireReq := queryRequest{Query: req.Query, ExcludeAt: req.ExcludeAt, FailedIDs: req.FailedIDs}
	if req.ModifiedAfter != nil {
		ms := req.ModifiedAfter.UnixMilli()
		wireReq.ModifiedAfter = &ms
	}

	var resp queryResponse
	if err := a.invoke(ctx, "Query", &wireReq, &resp); err != nil {
		return nil, err
	}

	records := make([]*catalog.Metadata, 0, len(resp.Records))
	for _, w := range resp.Records {
		records = append(records, fromWire(w))
	}
	return &sliceSequence{records: records}, nil
}

func (a *Adapter) Exists(ctx context.Context, metadata *catalog.Metadata) (bool, error) {
	var resp existsResponse
	if err := a.invoke(ctx, "Exists", &existsRequest{ID: metadata.ID}, &resp); err != nil {
		return false, err
	}
	return resp.Exists, nil
}

func (a *Adapter) ReadResource(ctx context.Context, req node.ReadResourceRequest) (*node.ResourceResponse, error) {
	return nil, errors.New("grpcadapter: streaming resource reads are not implemented by this reference transport; pair with internal/resourceblob for binary payloads")
}

func (a *Adapter) CreateRequest(ctx context.Context, metadata *catalog.Metadata) (bool, error) {
	var resp boolResponse
	if err := a.invoke(ctx, "CreateRequest", toWire(metadata), &resp); err != nil {
		return false, err
	}
	return resp.OK, nil
}

func (a *Adapter) UpdateRequest(ctx context.Context, metadata *catalog.Metadata) (bool, error) {
	var resp boolResponse
	if err := a.invoke(ctx, "UpdateRequest", toWire(metadata), &resp); err != nil {
		return false, err
	}
	return resp.OK, nil
}

func (a *Adapter) DeleteRequest(ctx context.Context, metadata *catalog.Metadata) (bool, error) {
	var resp boolResponse
	if err := a.invoke(ctx, "DeleteRequest", &existsRequest{ID: metadata.ID}, &resp); err != nil {
		return false, err
	}
	return resp.OK, nil
}

func (a *Adapter) CreateResource(ctx context.Context, metadata *catalog.Metadata, resource *node.ResourceResponse) (bool, error) {
	return false, errors.New("grpcadapter: resource transfer is not implemented by this reference transport; pair with internal/resourceblob for binary payloads")
}

func (a *Adapter) UpdateResource(ctx context.Context, metadata *catalog.Metadata, resource *node.ResourceResponse) (bool, error) {
	return false, errors.New("grpcadapter: resource transfer is not implemented by this reference transport; pair with internal/resourceblob for binary payloads")
}

type sliceSequence struct {
	records []*catalog.Metadata
	pos     int
}

func (s *sliceSequence) Next(context.Context) (*catalog.Metadata, bool, error) {
	if s.pos >= len(s.records) {
		return nil, false, nil
	}
	m := s.records[s.pos]
	s.pos++
	return m, true, nil
}

func (s *sliceSequence) Close() error { return nil }

// Package httpadapter is a reference NodeAdapter implementation that
// speaks to a catalog node over plain REST, with bounded retry via
// github.com/hashicorp/go-retryablehttp. The wire protocol is an adapter
// concern, not a core one (spec.md §4.3); this package exists so the
// module has a runnable default rather than leaving NodeAdapter
// unimplemented.
package httpadapter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/catalogsync/replicator/internal/catalog"
	"github.com/catalogsync/replicator/internal/node"
)

// Adapter is a REST-backed node.Adapter.
type Adapter struct {
	name    string
	baseURL string
	client  *retryablehttp.Client
}

// Config configures an Adapter.
type Config struct {
	SystemName string
	BaseURL    string
	MaxRetries int
	Log        *logrus.Entry
}

// New constructs an HTTP-backed node.Adapter.
func New(cfg Config) *Adapter {
	client := retryablehttp.NewClient()
	client.RetryMax = cfg.MaxRetries
	if cfg.Log != nil {
		client.Logger = retryableLogAdapter{cfg.Log}
	} else {
		client.Logger = nil
	}
	return &Adapter{name: cfg.SystemName, baseURL: cfg.BaseURL, client: client}
}

func (a *Adapter) SystemName() string { return a.name }

func (a *Adapter) IsAvailable(ctx context.Context) bool {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodHead, a.baseURL, nil)
	if err != nil {
		return false
	}
	resp, err := a.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode < http.StatusInternalServerError
}

// wireMetadata is the JSON shape exchanged with the remote catalog. It is
// intentionally separate from catalog.Metadata: the wire format is this
// adapter's concern, not the core's.
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

func toWire(m *catalog.Metadata) wireMetadata {
	tags := make([]string, 0, len(m.Tags))
	for t := range m.Tags {
		tags = append(tags, t)
	}
	return wireMetadata{
		ID:               m.ID,
		MetadataModified: m.MetadataModified,
		ResourceURI:      m.ResourceURI,
		ResourceModified: m.ResourceModified,
		ResourceSize:     m.ResourceSize,
		MetadataSize:     m.MetadataSize,
		IsDeleted:        m.IsDeleted,
		Tags:             tags,
		Lineage:          m.Lineage,
	}
}

func fromWire(w wireMetadata) *catalog.Metadata {
	m := &catalog.Metadata{
		ID:               w.ID,
		MetadataModified: w.MetadataModified,
		ResourceURI:      w.ResourceURI,
		ResourceModified: w.ResourceModified,
		ResourceSize:     w.ResourceSize,
		MetadataSize:     w.MetadataSize,
		IsDeleted:        w.IsDeleted,
		Lineage:          append([]string(nil), w.Lineage...),
	}
	for _, t := range w.Tags {
		m.AddTag(t)
	}
	return m
}

type queryResponse struct {
	Records []wireMetadata `json:"records"`
}

func (a *Adapter) Query(ctx context.Context, req node.QueryRequest) (node.MetadataSequence, error) {
	q := url.Values{}
	q.Set("query", req.Query)
	for _, ex := range req.ExcludeAt {
		q.Add("excludeAt", ex)
	}
	for _, id := range req.FailedIDs {
		q.Add("retry", id)
	}
	if req.ModifiedAfter != nil {
		q.Set("modifiedAfter", req.ModifiedAfter.Format(time.RFC3339Nano))
	}

	var out queryResponse
	if err := a.doJSON(ctx, http.MethodGet, "/records?"+q.Encode(), nil, &out); err != nil {
		return nil, errors.Wrap(err, "querying records")
	}

	records := make([]*catalog.Metadata, 0, len(out.Records))
	for _, w := range out.Records {
		records = append(records, fromWire(w))
	}
	return &sliceSequence{records: records}, nil
}

func (a *Adapter) Exists(ctx context.Context, metadata *catalog.Metadata) (bool, error) {
	path := fmt.Sprintf("/records/%s", url.PathEscape(metadata.ID))
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodHead, a.baseURL+path, nil)
	if err != nil {
		return false, errors.Wrap(err, "building exists request")
	}
	resp, err := a.client.Do(req)
	if err != nil {
		return false, errors.Wrap(err, "checking record existence")
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK, nil
}

func (a *Adapter) ReadResource(ctx context.Context, req node.ReadResourceRequest) (*node.ResourceResponse, error) {
	r, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, req.Metadata.ResourceURI, nil)
	if err != nil {
		return nil, errors.Wrap(err, "building resource read request")
	}
	resp, err := a.client.Do(r)
	if err != nil {
		return nil, errors.Wrap(err, "reading resource")
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, errors.Errorf("reading resource: unexpected status %d", resp.StatusCode)
	}
	return &node.ResourceResponse{Body: resp.Body, Size: resp.ContentLength}, nil
}

func (a *Adapter) CreateRequest(ctx context.Context, metadata *catalog.Metadata) (bool, error) {
	return a.putJSONRecord(ctx, http.MethodPost, "/records", toWire(metadata))
}

func (a *Adapter) UpdateRequest(ctx context.Context, metadata *catalog.Metadata) (bool, error) {
	path := fmt.Sprintf("/records/%s", url.PathEscape(metadata.ID))
	return a.putJSONRecord(ctx, http.MethodPut, path, toWire(metadata))
}

func (a *Adapter) DeleteRequest(ctx context.Context, metadata *catalog.Metadata) (bool, error) {
	path := fmt.Sprintf("/records/%s", url.PathEscape(metadata.ID))
	return a.putJSONRecord(ctx, http.MethodDelete, path, nil)
}

func (a *Adapter) CreateResource(ctx context.Context, metadata *catalog.Metadata, resource *node.ResourceResponse) (bool, error) {
	return a.putResource(ctx, http.MethodPost, metadata, resource)
}

func (a *Adapter) UpdateResource(ctx context.Context, metadata *catalog.Metadata, resource *node.ResourceResponse) (bool, error) {
	return a.putResource(ctx, http.MethodPut, metadata, resource)
}

func (a *Adapter) putResource(ctx context.Context, method string, metadata *catalog.Metadata, resource *node.ResourceResponse) (bool, error) {
	defer resource.Body.Close()

	path := fmt.Sprintf("/records/%s/resource", url.PathEscape(metadata.ID))
	req, err := retryablehttp.NewRequestWithContext(ctx, method, a.baseURL+path, resource.Body)
	if err != nil {
		return false, errors.Wrap(err, "building resource write request")
	}
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := a.client.Do(req)
	if err != nil {
		return false, errors.Wrap(err, "writing resource")
	}
	defer resp.Body.Close()
	return resp.StatusCode >= 200 && resp.StatusCode < 300, nil
}

func (a *Adapter) putJSONRecord(ctx context.Context, method, path string, body interface{}) (bool, error) {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return false, errors.Wrap(err, "encoding request body")
		}
		reader = bytes.NewReader(buf)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, method, a.baseURL+path, reader)
	if err != nil {
		return false, errors.Wrap(err, "building request")
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return false, errors.Wrap(err, "performing request")
	}
	defer resp.Body.Close()
	return resp.StatusCode >= 200 && resp.StatusCode < 300, nil
}

func (a *Adapter) doJSON(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return errors.Wrap(err, "encoding request body")
		}
		reader = bytes.NewReader(buf)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, method, a.baseURL+path, reader)
	if err != nil {
		return errors.Wrap(err, "building request")
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return errors.Wrap(err, "performing request")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return errors.Errorf("unexpected status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
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

// retryableLogAdapter bridges retryablehttp's minimal logger interface to
// logrus, the teacher's logging dependency.
type retryableLogAdapter struct{ log *logrus.Entry }

func (l retryableLogAdapter) Printf(format string, args ...interface{}) {
	l.log.Debugf(format, args...)
}

package httpadapter_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/catalogsync/replicator/internal/catalog"
	"github.com/catalogsync/replicator/internal/node"
	"github.com/catalogsync/replicator/internal/node/httpadapter"
)

func newAdapter(url string) *httpadapter.Adapter {
	return httpadapter.New(httpadapter.Config{
		SystemName: "test",
		BaseURL:    url,
		MaxRetries: 0,
		Log:        logrus.NewEntry(logrus.New()),
	})
}

func TestQueryDecodesRecords(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/records", r.URL.Path)
		assert.Equal(t, "type:document", r.URL.Query().Get("query"))
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"records": []map[string]interface{}{
				{"id": "m1", "metadataModified": time.Now().Format(time.RFC3339Nano)},
			},
		})
	}))
	defer srv.Close()

	a := newAdapter(srv.URL)
	seq, err := a.Query(context.Background(), node.QueryRequest{Query: "type:document"})
	require.NoError(t, err)
	defer seq.Close()

	m, ok, err := seq.Next(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "m1", m.ID)

	_, ok, err = seq.Next(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestExistsReflectsStatusCode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/records/present" {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	a := newAdapter(srv.URL)

	exists, err := a.Exists(context.Background(), &catalog.Metadata{ID: "present"})
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = a.Exists(context.Background(), &catalog.Metadata{ID: "absent"})
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestCreateRequestSendsJSONBody(t *testing.T) {
	var gotBody map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	a := newAdapter(srv.URL)
	ok, err := a.CreateRequest(context.Background(), &catalog.Metadata{ID: "m1"})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "m1", gotBody["id"])
}

func TestUpdateResourceStreamsBody(t *testing.T) {
	var gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/records/m1/resource", r.URL.Path)
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	a := newAdapter(srv.URL)
	ok, err := a.UpdateResource(context.Background(), &catalog.Metadata{ID: "m1"}, &node.ResourceResponse{
		Body: io.NopCloser(newStringReader("payload")),
	})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "payload", gotBody)
}

func TestIsAvailableFalseOnServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	a := newAdapter(srv.URL)
	assert.False(t, a.IsAvailable(context.Background()))
}

func newStringReader(s string) io.Reader {
	return &stringReaderCloser{s: s}
}

type stringReaderCloser struct {
	s   string
	pos int
}

func (r *stringReaderCloser) Read(p []byte) (int, error) {
	if r.pos >= len(r.s) {
		return 0, io.EOF
	}
	n := copy(p, r.s[r.pos:])
	r.pos += n
	return n, nil
}

package objectclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/markdave123-py/newsdesk/internal/config"
)

type fakeS3 struct {
	mu       sync.Mutex
	requests []string
	types    map[string]string
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, r.Method+" "+r.URL.Path)

	switch r.Method {
	case http.MethodPut:
		f.types[r.URL.Path] = r.Header.Get("Content-Type")
		w.Header().Set("ETag", `"etag"`)
		w.WriteHeader(http.StatusOK)
	case http.MethodDelete:
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func newTestS3(t *testing.T) (*S3Client, *fakeS3) {
	t.Helper()
	fake := &fakeS3{types: map[string]string{}}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	cfg := &config.Config{
		AwsAccessKey: "test",
		AwsSecretKey: "test",
		AwsRegion:    "us-east-1",
		AwsEndpoint:  srv.URL + "/",
		BucketName:   "newsdesk",
	}
	client, err := NewS3Client(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	return client.(*S3Client), fake
}

func TestS3Client_UploadUsesPathStyleEndpoint(t *testing.T) {
	c, fake := newTestS3(t)

	url, err := c.UploadFile(context.Background(), "ingestion-runs/r1.json", strings.NewReader(`{"runId":"r1"}`), "application/json")
	require.NoError(t, err)

	assert.True(t, strings.HasSuffix(url, "/newsdesk/ingestion-runs/r1.json"), url)
	assert.NotContains(t, url, "//newsdesk")
	assert.Equal(t, "application/json", fake.types["/newsdesk/ingestion-runs/r1.json"])
}

func TestS3Client_ArchiveRemoveDeletesObject(t *testing.T) {
	c, fake := newTestS3(t)

	require.NoError(t, NewArchive(c).Remove(context.Background(), "r2"))
	assert.Contains(t, fake.requests, "DELETE /newsdesk/ingestion-runs/r2.json")
}

func TestNewS3Client_RequiresSettings(t *testing.T) {
	_, err := NewS3Client(context.Background(), &config.Config{AwsRegion: "us-east-1", BucketName: "b"}, zap.NewNop())
	assert.Error(t, err)

	_, err = NewS3Client(context.Background(), &config.Config{AwsAccessKey: "a", AwsSecretKey: "s", AwsRegion: "us-east-1"}, zap.NewNop())
	assert.Error(t, err)
}

package objectstore

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeS3 answers the handful of S3 calls the store makes.
type fakeS3 struct {
	mu      sync.Mutex
	buckets map[string]bool
	objects map[string][]byte
	types   map[string]string
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	parts := strings.SplitN(strings.TrimPrefix(r.URL.Path, "/"), "/", 2)
	bucket := parts[0]
	switch {
	case len(parts) == 1 && r.Method == http.MethodHead:
		if !f.buckets[bucket] {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	case len(parts) == 1 && r.Method == http.MethodPut:
		f.buckets[bucket] = true
		w.WriteHeader(http.StatusOK)
	case len(parts) == 2 && r.Method == http.MethodPut:
		data, _ := io.ReadAll(r.Body)
		f.objects[r.URL.Path] = data
		f.types[r.URL.Path] = r.Header.Get("Content-Type")
		w.Header().Set("ETag", `"d41d8cd98f00b204e9800998ecf8427e"`)
		w.WriteHeader(http.StatusOK)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func newFakeStore(t *testing.T, f *fakeS3) *Store {
	t.Helper()
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)

	s, err := New(context.Background(), Config{
		Endpoint:   strings.TrimPrefix(srv.URL, "http://"),
		AccessKey:  "access",
		SecretKey:  "secret",
		Bucket:     "uploads",
		Region:     "us-east-1",
		PresignTTL: time.Hour,
	})
	require.NoError(t, err)
	return s
}

func TestNew_CreatesMissingBucket(t *testing.T) {
	f := &fakeS3{buckets: map[string]bool{}, objects: map[string][]byte{}, types: map[string]string{}}
	newFakeStore(t, f)
	assert.True(t, f.buckets["uploads"])
}

func TestPut(t *testing.T) {
	f := &fakeS3{buckets: map[string]bool{"uploads": true}, objects: map[string][]byte{}, types: map[string]string{}}
	s := newFakeStore(t, f)

	link, err := s.Put(context.Background(), "uploads/u1/a.png", []byte("png-bytes"), "image/png")
	require.NoError(t, err)

	assert.Equal(t, []byte("png-bytes"), f.objects["/uploads/uploads/u1/a.png"])
	assert.Equal(t, "image/png", f.types["/uploads/uploads/u1/a.png"])
	assert.Contains(t, link, "/uploads/uploads/u1/a.png")
	assert.Contains(t, link, "X-Amz-Signature=")
	assert.Contains(t, link, "X-Amz-Expires=3600")
}

func TestUploadKey(t *testing.T) {
	a := UploadKey("u1", ".jpg")
	b := UploadKey("u1", ".jpg")
	assert.True(t, strings.HasPrefix(a, "uploads/u1/"), a)
	assert.True(t, strings.HasSuffix(a, ".jpg"), a)
	assert.NotEqual(t, a, b)
}

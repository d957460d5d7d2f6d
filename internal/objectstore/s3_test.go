package objectstore

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestClient points an S3Client at an httptest server instead of AWS,
// the same style of endpoint override the teacher's reference stack
// (opentofu-opentofu's S3 backend tests) uses to exercise SDK call shapes
// without network access.
func newTestClient(t *testing.T, handler http.HandlerFunc) *S3Client {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := aws.Config{
		Region:      "us-east-1",
		Credentials: credentials.NewStaticCredentialsProvider("id", "secret", ""),
	}

	api := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(srv.URL)
		o.UsePathStyle = true
	})

	return &S3Client{api: api, bucket: "test-bucket"}
}

func TestList_ParsesContentsAndStripsETagQuotes(t *testing.T) {
	body := `<?xml version="1.0" encoding="UTF-8"?>
<ListBucketResult>
  <Name>test-bucket</Name>
  <Contents>
    <Key>projects/42/songs/7/kick.wav</Key>
    <ETag>&quot;abc123&quot;</ETag>
    <Size>1024</Size>
  </Contents>
</ListBucketResult>`

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/xml")
		fmt.Fprint(w, body)
	})

	objs, err := client.List(context.Background(), "projects/42/songs/7/")
	require.NoError(t, err)
	require.Len(t, objs, 1)
	assert.Equal(t, "projects/42/songs/7/kick.wav", objs[0].Key)
	assert.Equal(t, "abc123", objs[0].ETag)
	assert.Equal(t, int64(1024), objs[0].Size)
}

func TestUpload_SendsFileBody(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.wav")
	require.NoError(t, os.WriteFile(path, []byte("payload"), 0o600))

	var gotMethod string

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		w.WriteHeader(http.StatusOK)
	})

	err := client.Upload(context.Background(), path, "songs/7/a.wav")
	require.NoError(t, err)
	assert.Equal(t, http.MethodPut, gotMethod)
}

func TestDownload_WritesResponseBodyAndCreatesParentDirs(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("audio-bytes"))
	})

	dir := t.TempDir()
	dest := filepath.Join(dir, "nested", "track.wav")

	err := client.Download(context.Background(), "songs/7/track.wav", dest)
	require.NoError(t, err)

	got, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "audio-bytes", string(got))
}

func TestDelete_MissingKeyIsNotAnError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/xml")
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `<?xml version="1.0"?><Error><Code>NoSuchKey</Code><Message>missing</Message></Error>`)
	})

	err := client.Delete(context.Background(), "songs/7/gone.wav")
	assert.NoError(t, err)
}

func TestCopy_IssuesCopyRequest(t *testing.T) {
	var gotHeader string

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotHeader = r.Header.Get("X-Amz-Copy-Source")
		w.Header().Set("Content-Type", "application/xml")
		fmt.Fprint(w, `<?xml version="1.0"?><CopyObjectResult></CopyObjectResult>`)
	})

	err := client.Copy(context.Background(), "songs/7/a.wav", "songs/8/a.wav")
	require.NoError(t, err)
	assert.NotEmpty(t, gotHeader)
}

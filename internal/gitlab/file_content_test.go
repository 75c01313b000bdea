package gitlab

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/redhat-data-and-ai/glmr/internal/errors"
)

func TestClient_DownloadRawFile_Success(t *testing.T) {
	content := "name: test-product\nowner: data\n"

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/v4/projects/123456/repository/files/path%2Fto%2Ffile.txt/raw", r.URL.EscapedPath())
		assert.Equal(t, "main", r.URL.Query().Get("ref"))
		assert.Equal(t, "test-token", r.Header.Get("PRIVATE-TOKEN"))

		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte(content))
	}))
	defer server.Close()

	data, err := newTestClient(server.URL).DownloadRawFile(context.Background(), "123456", "path/to/file.txt", "main")

	require.NoError(t, err)
	assert.Equal(t, content, string(data))
}

func TestClient_DownloadRawFile_NamespacedProject(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v4/projects/group%2Fproject/repository/files/README.md/raw", r.URL.EscapedPath())
		_, _ = w.Write([]byte("# readme"))
	}))
	defer server.Close()

	data, err := newTestClient(server.URL).DownloadRawFile(context.Background(), "group/project", "README.md", "develop")
	require.NoError(t, err)
	assert.Equal(t, "# readme", string(data))
}

func TestClient_DownloadRawFile_NotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"message":"404 File Not Found"}`))
	}))
	defer server.Close()

	data, err := newTestClient(server.URL).DownloadRawFile(context.Background(), "1", "missing.txt", "main")

	assert.Nil(t, data)
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrGitLabNotFound))
	assert.Contains(t, err.Error(), "HTTP 404")
}

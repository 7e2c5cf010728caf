package service_test

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/CZERTAINLY/fossrun/internal/model"
	"github.com/CZERTAINLY/fossrun/internal/service"

	"github.com/stretchr/testify/require"
)

func TestWriteUploader(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	u := service.NewWriteUploader(&buf)
	require.NoError(t, u.Upload(t.Context(), []byte(`{"success":true}`+"\n")))
	require.Equal(t, `{"success":true}`+"\n", buf.String())
}

func TestOSRootUploader(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	u, err := service.NewOSRootUploader(dir)
	require.NoError(t, err)

	for range 3 {
		require.NoError(t, u.Upload(t.Context(), []byte("{}\n")))
	}
	matches, err := filepath.Glob(filepath.Join(dir, "fossrun-*.json"))
	require.NoError(t, err)
	require.Len(t, matches, 3)
	b, err := os.ReadFile(matches[0])
	require.NoError(t, err)
	require.Equal(t, "{}\n", string(b))

	require.NoError(t, u.Close())
	require.Error(t, u.Close())
	require.Error(t, u.Upload(t.Context(), []byte("{}")))

	_, err = service.NewOSRootUploader(filepath.Join(dir, "missing"))
	require.Error(t, err)
}

func TestRepositoryUploader(t *testing.T) {
	t.Parallel()

	var testCases = []struct {
		scenario    string
		status      int
		contentType string
		body        string
		then        string
	}{
		{
			scenario:    "created",
			status:      http.StatusCreated,
			contentType: "application/json",
			body:        `{"id":"42"}`,
		},
		{
			scenario:    "conflict",
			status:      http.StatusConflict,
			contentType: "application/problem+json",
			body:        `{"detail":"already exists"}`,
			then:        "status code: 409, detail: already exists",
		},
		{
			scenario:    "missing id",
			status:      http.StatusOK,
			contentType: "application/json",
			body:        `{}`,
			then:        "received unexpected body",
		},
		{
			scenario:    "server error",
			status:      http.StatusInternalServerError,
			contentType: "text/plain",
			body:        "oops",
			then:        "unknown error, status: 500, body: oops",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.scenario, func(t *testing.T) {
			t.Parallel()
			var got []byte
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodPost || r.URL.Path != "/api/v1/results" {
					http.NotFound(w, r)
					return
				}
				got, _ = io.ReadAll(r.Body)
				w.Header().Set("Content-Type", tc.contentType)
				w.WriteHeader(tc.status)
				_, _ = io.WriteString(w, tc.body)
			}))
			t.Cleanup(srv.Close)

			u, err := service.NewRepositoryUploader(srv.URL)
			require.NoError(t, err)
			err = u.Upload(t.Context(), []byte(`{"success":true}`))
			if tc.then == "" {
				require.NoError(t, err)
			} else {
				require.EqualError(t, err, tc.then)
			}
			require.Equal(t, `{"success":true}`, string(got))
		})
	}

	t.Run("invalid url", func(t *testing.T) {
		t.Parallel()
		for _, url := range []string{"localhost", "http://localhost/api", "://"} {
			_, err := service.NewRepositoryUploader(url)
			require.Errorf(t, err, url)
		}
	})
}

func TestObjectStoreUploader(t *testing.T) {
	t.Parallel()

	t.Run("validation", func(t *testing.T) {
		t.Parallel()
		valid := model.ObjectStore{
			Endpoint:  "localhost:9000",
			AccessKey: "access",
			SecretKey: "secret",
			Bucket:    "results",
		}
		_, err := service.NewObjectStoreUploader(valid)
		require.NoError(t, err)

		var testCases = []struct {
			scenario string
			given    func(model.ObjectStore) model.ObjectStore
			then     string
		}{
			{"no endpoint", func(c model.ObjectStore) model.ObjectStore { c.Endpoint = " "; return c }, "endpoint is required"},
			{"scheme", func(c model.ObjectStore) model.ObjectStore { c.Endpoint = "http://localhost:9000"; return c }, `endpoint must not include scheme: "http://localhost:9000"`},
			{"no access key", func(c model.ObjectStore) model.ObjectStore { c.AccessKey = ""; return c }, "access key is required"},
			{"no secret key", func(c model.ObjectStore) model.ObjectStore { c.SecretKey = ""; return c }, "secret key is required"},
			{"no bucket", func(c model.ObjectStore) model.ObjectStore { c.Bucket = ""; return c }, "bucket is required"},
		}
		for _, tc := range testCases {
			_, err := service.NewObjectStoreUploader(tc.given(valid))
			require.EqualErrorf(t, err, tc.then, tc.scenario)
		}
	})

	t.Run("put", func(t *testing.T) {
		t.Parallel()
		var mx sync.Mutex
		var paths []string
		var bodies []string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPut {
				w.WriteHeader(http.StatusNotImplemented)
				return
			}
			b, _ := io.ReadAll(r.Body)
			mx.Lock()
			paths = append(paths, r.URL.Path)
			bodies = append(bodies, string(b))
			mx.Unlock()
			w.Header().Set("ETag", `"d41d8cd98f00b204e9800998ecf8427e"`)
			w.WriteHeader(http.StatusOK)
		}))
		t.Cleanup(srv.Close)

		u, err := service.NewObjectStoreUploader(model.ObjectStore{
			Endpoint:  strings.TrimPrefix(srv.URL, "http://"),
			AccessKey: "access",
			SecretKey: "secret",
			Bucket:    "results",
		})
		require.NoError(t, err)
		require.NoError(t, u.Upload(t.Context(), []byte(`{"success":true}`)))

		mx.Lock()
		defer mx.Unlock()
		require.Len(t, paths, 1)
		require.True(t, strings.HasPrefix(paths[0], "/results/fossrun/"), paths[0])
		require.True(t, strings.HasSuffix(paths[0], ".json"), paths[0])
		require.Len(t, bodies, 1)
		require.Contains(t, bodies[0], `{"success":true}`)
	})
}

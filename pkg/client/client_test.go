package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/molforge/fragelab/pkg/types/common"
	fragtypes "github.com/molforge/fragelab/pkg/types/fragment"
	runtypes "github.com/molforge/fragelab/pkg/types/run"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c, err := NewClient(srv.URL,
		WithRetryMax(2),
		WithRetryWait(time.Millisecond, 5*time.Millisecond))
	require.NoError(t, err)
	return c, srv
}

func writeData(t *testing.T, w http.ResponseWriter, status int, data any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	require.NoError(t, json.NewEncoder(w).Encode(common.NewSuccessResponse(data)))
}

func writeError(t *testing.T, w http.ResponseWriter, status int, code, msg string) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	require.NoError(t, json.NewEncoder(w).Encode(common.NewErrorResponse(code, msg)))
}

func TestNewClient_Validation(t *testing.T) {
	_, err := NewClient("")
	assert.Error(t, err)

	_, err = NewClient("ftp://somewhere")
	assert.Error(t, err)

	c, err := NewClient("http://localhost:8080/")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080", c.baseURL)
}

func TestFragments_List(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/fragments", r.URL.Path)
		assert.NotEmpty(t, r.Header.Get("X-Request-ID"))
		writeData(t, w, http.StatusOK, []fragtypes.Info{
			{Name: "F1", Formula: "CH4", HeavyAtoms: 1, MolWeight: 16.04},
		})
	}))

	infos, err := c.Fragments().List(context.Background())
	require.NoError(t, err)
	require.Len(t, infos, 1)
	assert.Equal(t, "F1", infos[0].Name)
}

func TestFragments_Resolve(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req fragtypes.ResolveRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "link", req.Mode)
		writeData(t, w, http.StatusOK, fragtypes.ResolveResponse{
			Mode: "link", Names: []string{"F1", "F3"}, Key: "link:F1-F3", Filename: "F1-F3.sdf",
		})
	}))

	resp, err := c.Fragments().Resolve(context.Background(), fragtypes.ResolveRequest{
		Mode: "link", Names: []string{"F3", "F1"},
	})
	require.NoError(t, err)
	assert.Equal(t, "F1-F3.sdf", resp.Filename)
}

func TestAPIError_Typed(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(t, w, http.StatusNotFound, "SEL_003", "fragment F9 is not in the library")
	}))

	_, err := c.Fragments().Resolve(context.Background(), fragtypes.ResolveRequest{
		Mode: "grow", Names: []string{"F9"},
	})
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.True(t, apiErr.IsNotFound())
	assert.Equal(t, "SEL_003", apiErr.Code)
	assert.Equal(t, "fragment F9 is not in the library", apiErr.Message)
}

func TestClientErrorsAreNotRetried(t *testing.T) {
	var calls int32
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		writeError(t, w, http.StatusBadRequest, "SEL_001", "grow takes exactly one fragment")
	}))

	_, err := c.Runs().Create(context.Background(), runtypes.CreateRequest{Mode: "grow"})
	require.Error(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestServerErrorsAreRetried(t *testing.T) {
	var calls int32
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			writeError(t, w, http.StatusInternalServerError, "COMMON_001", "transient")
			return
		}
		writeData(t, w, http.StatusOK, runtypes.Run{ID: "r1", Status: runtypes.StatusCompleted})
	}))

	got, err := c.Runs().Get(context.Background(), "r1")
	require.NoError(t, err)
	assert.Equal(t, "r1", got.ID)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestRateLimitHonorsRetryAfter(t *testing.T) {
	var calls int32
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.Header().Set("Retry-After", "0")
			writeError(t, w, http.StatusTooManyRequests, "COMMON_006", "too many requests")
			return
		}
		writeData(t, w, http.StatusOK, []runtypes.SimilarHit{{ID: "r1:0", Name: "cand-a"}})
	}))

	hits, err := c.Similarity().Search(context.Background(), runtypes.SimilarRequest{TopK: 1})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestRetriesExhaustedReturnLastError(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(t, w, http.StatusServiceUnavailable, "COMMON_007", "draining")
	}))

	_, err := c.Runs().Get(context.Background(), "r1")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.True(t, apiErr.IsServerError())
}

func TestWaitForCompletion(t *testing.T) {
	var calls int32
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		status := runtypes.StatusRunning
		if atomic.AddInt32(&calls, 1) >= 3 {
			status = runtypes.StatusCompleted
		}
		writeData(t, w, http.StatusOK, runtypes.Run{ID: "r1", Status: status})
	}))

	got, err := c.Runs().WaitForCompletion(context.Background(), "r1", time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, runtypes.StatusCompleted, got.Status)
}

func TestWaitForCompletion_ContextCancelled(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeData(t, w, http.StatusOK, runtypes.Run{ID: "r1", Status: runtypes.StatusRunning})
	}))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := c.Runs().WaitForCompletion(ctx, "r1", 5*time.Millisecond)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

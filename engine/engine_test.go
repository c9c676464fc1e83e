package engine

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	iface "PoseSilhouette/interface"
)

type fakeServer struct {
	mu        sync.Mutex
	created   []createModelRequest
	deleted   []string
	lastBody  []byte
	lastWidth string
	response  any
	status    int
	// delays applied before answering create and estimate calls
	createDelay   time.Duration
	estimateDelay time.Duration
}

func newFakeServer(t *testing.T) (*fakeServer, *httptest.Server) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	fs := &fakeServer{status: http.StatusOK}
	r := gin.New()
	r.POST("/v1/models", func(c *gin.Context) {
		var req createModelRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		fs.mu.Lock()
		fs.created = append(fs.created, req)
		delay := fs.createDelay
		fs.mu.Unlock()
		time.Sleep(delay)
		c.JSON(http.StatusOK, gin.H{"id": "movenet-1"})
	})
	r.POST("/v1/models/:id/estimate", func(c *gin.Context) {
		if c.Param("id") != "movenet-1" {
			c.JSON(http.StatusNotFound, gin.H{"error": "model not found"})
			return
		}
		body, _ := io.ReadAll(c.Request.Body)
		fs.mu.Lock()
		delay := fs.estimateDelay
		fs.mu.Unlock()
		time.Sleep(delay)
		fs.mu.Lock()
		defer fs.mu.Unlock()
		fs.lastBody = body
		fs.lastWidth = c.GetHeader("X-Frame-Width")
		c.JSON(fs.status, fs.response)
	})
	r.DELETE("/v1/models/:id", func(c *gin.Context) {
		fs.mu.Lock()
		fs.deleted = append(fs.deleted, c.Param("id"))
		fs.mu.Unlock()
		c.Status(http.StatusNoContent)
	})
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return fs, srv
}

func (fs *fakeServer) respond(status int, body any) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.status = status
	fs.response = body
}

func (fs *fakeServer) locked(fn func()) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fn()
}

var moveNet = iface.ModelConfig{Variant: ModelMoveNet, Backend: BackendCPU}

func TestDetector_All(t *testing.T) {
	fs, srv := newFakeServer(t)
	fs.respond(http.StatusOK, gin.H{"poses": []gin.H{{
		"score": 0.8,
		"keypoints": []gin.H{
			{"name": "nose", "x": 50, "y": 60, "score": 0.9},
			{"name": "left_eye", "x": 45, "y": 55, "score": 0.4},
		},
	}}})
	d := New(srv.URL, time.Second, nil)
	frame := iface.Frame{Data: []byte{0xff, 0xd8, 0xff}, Width: 640, Height: 480}

	t.Run("Test Estimate Before Load", func(t *testing.T) {
		_, err := d.EstimatePoses(context.Background(), frame)
		assert.ErrorIs(t, err, ErrModelNotLoaded)
	})

	t.Run("Test LoadModel", func(t *testing.T) {
		require.NoError(t, d.LoadModel(context.Background(), moveNet))
		cfg := d.CheckConfig()
		assert.Equal(t, IDLE, cfg.State)
		assert.Equal(t, "movenet-1", cfg.ModelID)
		assert.Equal(t, moveNet, cfg.Model)
		fs.locked(func() {
			assert.Equal(t, []createModelRequest{{Variant: "MoveNet", Backend: "cpu"}}, fs.created)
		})
	})

	t.Run("Test EstimatePoses", func(t *testing.T) {
		poses, err := d.EstimatePoses(context.Background(), frame)
		require.NoError(t, err)
		require.Len(t, poses, 1)
		assert.Equal(t, 0.8, poses[0].Score)
		assert.Equal(t, iface.Keypoint{Name: "nose", X: 50, Y: 60, Score: 0.9}, poses[0].Keypoints[0])
		fs.locked(func() {
			assert.Equal(t, frame.Data, fs.lastBody)
			assert.Equal(t, "640", fs.lastWidth)
		})
	})

	t.Run("Test Destroy", func(t *testing.T) {
		require.NoError(t, d.Close())
		fs.locked(func() { assert.Equal(t, []string{"movenet-1"}, fs.deleted) })
		assert.Equal(t, UNREGISTERED, d.CheckConfig().State)
		_, err := d.EstimatePoses(context.Background(), frame)
		assert.ErrorIs(t, err, ErrNotRegistered)
		require.NoError(t, d.Close())
		fs.locked(func() { assert.Len(t, fs.deleted, 1) })
	})
}

func TestDetectorRejectsUnsupportedModel(t *testing.T) {
	_, srv := newFakeServer(t)
	d := New(srv.URL, time.Second, nil)
	err := d.LoadModel(context.Background(), iface.ModelConfig{Variant: "BlazePose", Backend: BackendCPU})
	assert.ErrorIs(t, err, ErrUnsupportedModel)
	err = d.LoadModel(context.Background(), iface.ModelConfig{Variant: ModelMoveNet, Backend: "webgl"})
	assert.ErrorIs(t, err, ErrUnsupportedModel)
}

func TestDetectorServerErrors(t *testing.T) {
	fs, srv := newFakeServer(t)
	d, err := Factory{Endpoint: srv.URL, Timeout: time.Second}.Create(context.Background(), moveNet)
	require.NoError(t, err)
	frame := iface.Frame{Data: []byte{1}}

	fs.respond(http.StatusInternalServerError, gin.H{"error": "inference crashed"})
	_, err = d.EstimatePoses(context.Background(), frame)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "inference crashed")

	fs.respond(http.StatusOK, gin.H{"poses": []gin.H{{"keypoints": []gin.H{{"name": "nose", "score": 1.7}}}}})
	_, err = d.EstimatePoses(context.Background(), frame)
	assert.ErrorIs(t, err, ErrMalformedResult)

	_, err = d.EstimatePoses(context.Background(), iface.Frame{})
	assert.Error(t, err)
}

func TestFactoryUnreachable(t *testing.T) {
	_, srv := newFakeServer(t)
	url := srv.URL
	srv.Close()
	_, err := Factory{Endpoint: url, Timeout: 200 * time.Millisecond}.Create(context.Background(), moveNet)
	assert.Error(t, err)
}

func TestDetectorTimeoutBoundsEstimateOnly(t *testing.T) {
	fs, srv := newFakeServer(t)
	fs.locked(func() { fs.createDelay = 300 * time.Millisecond })
	fs.respond(http.StatusOK, gin.H{"poses": []gin.H{}})

	d, err := Factory{Endpoint: srv.URL, Timeout: 100 * time.Millisecond}.Create(context.Background(), moveNet)
	require.NoError(t, err, "a slow model load must not hit the request timeout")
	assert.Equal(t, IDLE, d.(*Detector).CheckConfig().State)

	frame := iface.Frame{Data: []byte{1}}
	fs.locked(func() { fs.estimateDelay = 300 * time.Millisecond })
	_, err = d.EstimatePoses(context.Background(), frame)
	assert.Error(t, err)

	fs.locked(func() { fs.estimateDelay = 0 })
	ps, err := d.EstimatePoses(context.Background(), frame)
	require.NoError(t, err)
	assert.Empty(t, ps)
}

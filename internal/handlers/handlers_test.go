package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Brownie44l1/cvae-api/internal/cvae"
	"github.com/Brownie44l1/cvae-api/internal/store"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeGenerator struct {
	state  cvae.State
	labels []string
	latent [cvae.LatentDim]float32
	err    error
}

func (g *fakeGenerator) State() cvae.State { return g.state }

func (g *fakeGenerator) Labels() ([]string, error) {
	if g.state != cvae.Ready {
		return nil, cvae.ErrNotReady
	}
	return g.labels, nil
}

func (g *fakeGenerator) Latent() [cvae.LatentDim]float32 { return g.latent }

func (g *fakeGenerator) SetLatentDim(index int, value float32) {
	for i := index; i >= 0 && i < cvae.LatentDim; i += 2 {
		g.latent[i] = value
	}
}

func (g *fakeGenerator) Generate(_ context.Context, label string) (*cvae.Image, error) {
	if g.err != nil {
		return nil, g.err
	}
	if g.state != cvae.Ready {
		return nil, cvae.ErrNotReady
	}
	for _, l := range g.labels {
		if l == label {
			return &cvae.Image{
				Label:  label,
				Src:    "data:image/png;base64,AAAA",
				PNG:    []byte("\x89PNG"),
				Raws:   make([]byte, 2*2*4),
				Width:  2,
				Height: 2,
			}, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", cvae.ErrUnknownLabel, label)
}

type memUploader struct {
	uploads []store.UploadParams
}

func (u *memUploader) Upload(_ context.Context, params store.UploadParams) (string, error) {
	u.uploads = append(u.uploads, params)
	return "mem://" + params.Name, nil
}

func newEngine(h *Handler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/health", h.Health)
	r.GET("/labels", h.Labels)
	r.GET("/latent", h.GetLatent)
	r.PUT("/latent", h.SetLatent)
	r.POST("/generate", h.Generate)
	r.GET("/generate/:label", h.GenerateImage)
	return r
}

func do(t *testing.T, r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func ready() *fakeGenerator {
	return &fakeGenerator{state: cvae.Ready, labels: []string{"shirt", "shoes", "bag"}}
}

func TestHealth(t *testing.T) {
	r := newEngine(NewHandler(&fakeGenerator{state: cvae.Loading}, nil))
	w := do(t, r, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status": "healthy", "state": "loading"}`, w.Body.String())
}

func TestLabels(t *testing.T) {
	r := newEngine(NewHandler(ready(), nil))
	w := do(t, r, http.MethodGet, "/labels", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"labels": ["shirt", "shoes", "bag"]}`, w.Body.String())

	r = newEngine(NewHandler(&fakeGenerator{state: cvae.Unready}, nil))
	w = do(t, r, http.MethodGet, "/labels", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestLatent(t *testing.T) {
	r := newEngine(NewHandler(ready(), nil))

	w := do(t, r, http.MethodPut, "/latent", `{"index": 1, "value": 0.5}`)
	require.Equal(t, http.StatusOK, w.Code)

	var resp LatentResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Latent, cvae.LatentDim)
	assert.Zero(t, resp.Latent[0])
	assert.Equal(t, float32(0.5), resp.Latent[1])
	assert.Equal(t, float32(0.5), resp.Latent[15])

	w = do(t, r, http.MethodGet, "/latent", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, float32(0.5), resp.Latent[3])

	w = do(t, r, http.MethodPut, "/latent", `{"index": 0, "value": 0}`)
	assert.Equal(t, http.StatusOK, w.Code)

	for _, body := range []string{`{"value": 1}`, `{"index": 2}`, `nope`} {
		w = do(t, r, http.MethodPut, "/latent", body)
		assert.Equal(t, http.StatusBadRequest, w.Code, body)
	}
}

func TestGenerate(t *testing.T) {
	uploader := &memUploader{}
	r := newEngine(NewHandler(ready(), uploader))

	w := do(t, r, http.MethodPost, "/generate", `{"label": "bag"}`)
	require.Equal(t, http.StatusOK, w.Code)

	var resp GenerateResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "bag", resp.Label)
	assert.Equal(t, "data:image/png;base64,AAAA", resp.Src)
	assert.Equal(t, 2, resp.Width)

	require.Len(t, uploader.uploads, 1)
	up := uploader.uploads[0]
	assert.Equal(t, "mem://"+up.Name, resp.URL)
	assert.Regexp(t, `^bag/[0-9a-f-]{36}\.png$`, up.Name)
	assert.Equal(t, "image/png", up.ContentType)
	assert.Equal(t, "bag", up.Metadata["label"])
}

func TestGenerateWithoutStore(t *testing.T) {
	r := newEngine(NewHandler(ready(), nil))
	w := do(t, r, http.MethodPost, "/generate", `{"label": "shirt"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), `"url"`)
}

func TestGenerateErrors(t *testing.T) {
	tests := []struct {
		name      string
		generator *fakeGenerator
		body      string
		want      int
	}{
		{name: "missing label", generator: ready(), body: `{}`, want: http.StatusBadRequest},
		{name: "unknown label", generator: ready(), body: `{"label": "hat"}`, want: http.StatusNotFound},
		{name: "not ready", generator: &fakeGenerator{state: cvae.Loading}, body: `{"label": "bag"}`, want: http.StatusServiceUnavailable},
		{name: "runtime failure", generator: &fakeGenerator{state: cvae.Ready, err: errors.New("boom")}, body: `{"label": "bag"}`, want: http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newEngine(NewHandler(tt.generator, nil))
			w := do(t, r, http.MethodPost, "/generate", tt.body)
			assert.Equal(t, tt.want, w.Code)
		})
	}
}

func TestGenerateImage(t *testing.T) {
	r := newEngine(NewHandler(ready(), nil))

	w := do(t, r, http.MethodGet, "/generate/shoes", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
	assert.Equal(t, []byte("\x89PNG"), w.Body.Bytes())

	w = do(t, r, http.MethodGet, "/generate/Shoes", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/Brownie44l1/cvae-api/internal/cvae"
	"github.com/Brownie44l1/cvae-api/internal/log"
	"github.com/Brownie44l1/cvae-api/internal/store"
	sentrygin "github.com/getsentry/sentry-go/gin"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Generator is the part of *cvae.CVAE the handlers use.
type Generator interface {
	State() cvae.State
	Labels() ([]string, error)
	Latent() [cvae.LatentDim]float32
	SetLatentDim(index int, value float32)
	Generate(ctx context.Context, label string) (*cvae.Image, error)
}

type Handler struct {
	generator Generator
	uploader  store.Uploader
}

// NewHandler returns handlers for generator. uploader may be nil.
func NewHandler(generator Generator, uploader store.Uploader) *Handler {
	return &Handler{
		generator: generator,
		uploader:  uploader,
	}
}

type LatentRequest struct {
	Index *int     `json:"index" binding:"required"`
	Value *float32 `json:"value" binding:"required"`
}

type LatentResponse struct {
	Latent []float32 `json:"latent"`
}

type GenerateRequest struct {
	Label string `json:"label" binding:"required"`
}

type GenerateResponse struct {
	Label  string `json:"label"`
	Src    string `json:"src"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
	URL    string `json:"url,omitempty"`
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"state":  h.generator.State().String(),
	})
}

func (h *Handler) Labels(c *gin.Context) {
	labels, err := h.generator.Labels()
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"labels": labels})
}

func (h *Handler) GetLatent(c *gin.Context) {
	latent := h.generator.Latent()
	c.JSON(http.StatusOK, LatentResponse{Latent: latent[:]})
}

func (h *Handler) SetLatent(c *gin.Context) {
	var req LatentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON: index and value are required"})
		return
	}

	h.generator.SetLatentDim(*req.Index, *req.Value)
	latent := h.generator.Latent()
	c.JSON(http.StatusOK, LatentResponse{Latent: latent[:]})
}

func (h *Handler) Generate(c *gin.Context) {
	var req GenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON: label is required"})
		return
	}

	img, err := h.generator.Generate(c.Request.Context(), req.Label)
	if err != nil {
		h.writeError(c, err)
		return
	}

	resp := GenerateResponse{
		Label:  img.Label,
		Src:    img.Src,
		Width:  img.Width,
		Height: img.Height,
	}
	if h.uploader != nil {
		resp.URL, err = h.uploader.Upload(c.Request.Context(), store.UploadParams{
			Name:        img.Label + "/" + uuid.NewString() + ".png",
			Data:        img.PNG,
			ContentType: "image/png",
			Metadata:    map[string]string{"label": img.Label},
		})
		if err != nil {
			h.writeError(c, err)
			return
		}
	}
	c.JSON(http.StatusOK, resp)
}

// GenerateImage serves the generated PNG for the :label path parameter.
func (h *Handler) GenerateImage(c *gin.Context) {
	img, err := h.generator.Generate(c.Request.Context(), c.Param("label"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.Data(http.StatusOK, "image/png", img.PNG)
}

func (h *Handler) writeError(c *gin.Context, err error) {
	logger := log.FromContextOrDiscard(c.Request.Context())

	switch {
	case errors.Is(err, cvae.ErrUnknownLabel):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, cvae.ErrNotReady):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	default:
		logger.Error("generation failed", "error", err)
		if hub := sentrygin.GetHubFromContext(c); hub != nil {
			hub.CaptureException(err)
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Generation failed"})
	}
}

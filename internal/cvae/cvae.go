// Package cvae drives a pre-trained conditional generator: it loads the model
// named by a descriptor, encodes a label and a latent vector, runs the
// prediction and exports the result as a displayable image.
package cvae

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/Brownie44l1/cvae-api/internal/log"
	"github.com/Brownie44l1/cvae-api/internal/model"
	"github.com/Brownie44l1/cvae-api/internal/pixels"
	"github.com/Brownie44l1/cvae-api/internal/render"
	"github.com/samber/lo"
)

// LatentDim is the length of the latent vector the generator consumes.
const LatentDim = 16

var (
	ErrNotReady       = errors.New("model is not ready")
	ErrAlreadyLoaded  = errors.New("model already loaded")
	ErrUnknownLabel   = errors.New("unknown label")
	ErrBadOutputShape = errors.New("unexpected output shape")
	ErrLatentLength   = errors.New("latent vector must have 16 values")
	ErrClosed         = errors.New("model closed")
)

// Image is a single generated image.
type Image struct {
	Label  string
	Src    string
	Raws   []byte
	PNG    []byte
	Width  int
	Height int
	// Handle is the injected renderer's output, nil without a renderer.
	Handle any
}

type Option func(*CVAE)

func WithRenderer(r render.Renderer) Option {
	return func(c *CVAE) { c.renderer = r }
}

func WithFetcher(f *model.Fetcher) Option {
	return func(c *CVAE) { c.fetcher = f }
}

type CVAE struct {
	descriptorURI string
	fetcher       *model.Fetcher
	runtime       model.Runtime
	renderer      render.Renderer

	mu          sync.Mutex
	state       State
	err         error
	labels      []string
	latent      [LatentDim]float32
	labelVector []float32
	predictor   model.Predictor
}

// New returns an unloaded CVAE for the descriptor at descriptorURI.
func New(descriptorURI string, runtime model.Runtime, opts ...Option) *CVAE {
	c := &CVAE{
		descriptorURI: descriptorURI,
		runtime:       runtime,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.fetcher == nil {
		c.fetcher = model.NewFetcher(nil)
	}
	return c
}

// Load fetches the descriptor and loads its model. It may only be called once.
func (c *CVAE) Load(ctx context.Context) error {
	c.mu.Lock()
	if c.state != Unready {
		state := c.state
		c.mu.Unlock()
		return fmt.Errorf("%w (state %s)", ErrAlreadyLoaded, state)
	}
	c.state = Loading
	c.mu.Unlock()

	logger := log.FromContextOrDiscard(ctx).With("descriptor", c.descriptorURI)
	logger.Info("loading cvae")

	desc, predictor, err := c.load(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != Loading {
		// Closed while loading.
		if predictor != nil {
			if cerr := predictor.Close(); cerr != nil {
				logger.Error("failed to release model loaded after close", "error", cerr)
			}
		}
		return ErrClosed
	}
	if err != nil {
		logger.Error("failed to load cvae", "error", err)
		c.state = Failed
		c.err = err
		return err
	}
	c.labels = desc.Labels
	c.labelVector = make([]float32, len(desc.Labels)+1)
	c.predictor = predictor
	c.state = Ready
	logger.Info("cvae ready", "labels", desc.Labels)
	return nil
}

func (c *CVAE) load(ctx context.Context) (*model.Descriptor, model.Predictor, error) {
	desc, err := c.fetcher.FetchDescriptor(ctx, c.descriptorURI)
	if err != nil {
		return nil, nil, err
	}
	predictor, err := c.runtime.Load(ctx, desc)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load model %s: %w", desc.Model, err)
	}
	return desc, predictor, nil
}

// LoadAsync runs Load on its own goroutine and reports the result to callback.
func (c *CVAE) LoadAsync(ctx context.Context, callback func(*CVAE, error)) {
	go func() {
		err := c.Load(ctx)
		if callback != nil {
			callback(c, err)
		}
	}()
}

func (c *CVAE) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Err returns the error that moved the CVAE to Failed.
func (c *CVAE) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

func (c *CVAE) Labels() ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.checkReady(); err != nil {
		return nil, err
	}
	return append([]string(nil), c.labels...), nil
}

// SetLatentDim sets index and every second element after it to value.
// Indices outside [0, LatentDim) set nothing.
func (c *CVAE) SetLatentDim(index int, value float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if index < 0 {
		return
	}
	for i := index; i < LatentDim; i += 2 {
		c.latent[i] = value
	}
}

func (c *CVAE) SetLatent(values []float32) error {
	if len(values) != LatentDim {
		return fmt.Errorf("%w, got %d", ErrLatentLength, len(values))
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	copy(c.latent[:], values)
	return nil
}

func (c *CVAE) Latent() [LatentDim]float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.latent
}

// Generate synthesizes an image for label from the current latent vector.
// Labels match exactly and case-sensitively.
func (c *CVAE) Generate(ctx context.Context, label string) (*Image, error) {
	logger := log.FromContextOrDiscard(ctx).With("label", label)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.checkReady(); err != nil {
		return nil, err
	}

	cursor := lo.IndexOf(c.labels, label)
	if cursor < 0 {
		logger.Warn("wrong input of the label", "labels", c.labels)
		return nil, fmt.Errorf("%w: %q", ErrUnknownLabel, label)
	}

	clear(c.labelVector)
	c.labelVector[cursor+1] = 1

	latent := model.NewTensor(append([]float32(nil), c.latent[:]...), 1, LatentDim)
	onehot := model.NewTensor(append([]float32(nil), c.labelVector...), 1, int64(len(c.labelVector)))

	logger.Debug("running prediction", "latent", c.latent)
	out, err := c.predictor.Predict(ctx, latent, onehot)
	if err != nil {
		return nil, fmt.Errorf("prediction failed: %w", err)
	}

	height, width, channels, err := dropBatch(out)
	if err != nil {
		return nil, err
	}

	raws, err := pixels.ToRGBA(out.Data, height, width, channels)
	if err != nil {
		return nil, err
	}
	img := pixels.NewImage(raws, width, height)
	data, err := pixels.EncodePNG(img)
	if err != nil {
		return nil, err
	}

	result := &Image{
		Label:  label,
		Src:    pixels.DataURI(data),
		Raws:   raws,
		PNG:    data,
		Width:  width,
		Height: height,
	}
	if c.renderer != nil {
		result.Handle, err = c.renderer.Render(ctx, img)
		if err != nil {
			return nil, fmt.Errorf("failed to render image: %w", err)
		}
	}

	logger.Info("generated image", "width", width, "height", height)
	return result, nil
}

// Close releases the loaded model. The CVAE cannot be used afterwards.
func (c *CVAE) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == Failed && errors.Is(c.err, ErrClosed) {
		return nil
	}
	var err error
	if c.predictor != nil {
		err = c.predictor.Close()
		c.predictor = nil
	}
	c.state = Failed
	c.err = ErrClosed
	return err
}

// Shutdown lets the injector release the model.
func (c *CVAE) Shutdown() error {
	return c.Close()
}

func (c *CVAE) checkReady() error {
	if c.state == Ready {
		return nil
	}
	if c.err != nil {
		return fmt.Errorf("%w (state %s): %w", ErrNotReady, c.state, c.err)
	}
	return fmt.Errorf("%w (state %s)", ErrNotReady, c.state)
}

// dropBatch checks out is a single (1, H, W, C) image.
func dropBatch(out model.Tensor) (height, width, channels int, err error) {
	if len(out.Shape) != 4 || out.Shape[0] != 1 {
		return 0, 0, 0, fmt.Errorf("%w: %v", ErrBadOutputShape, out.Shape)
	}
	if out.Size() != int64(len(out.Data)) {
		return 0, 0, 0, fmt.Errorf("%w: shape %v holds %d values, got %d",
			ErrBadOutputShape, out.Shape, out.Size(), len(out.Data))
	}
	return int(out.Shape[1]), int(out.Shape[2]), int(out.Shape[3]), nil
}

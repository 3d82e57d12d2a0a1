package model

import "context"

const (
	DefaultLatentInput = "latent"
	DefaultLabelInput  = "label"
	DefaultOutput      = "output"
)

// Descriptor names a model artifact and the ordered label set it was trained on.
type Descriptor struct {
	Model       string   `json:"model"`
	Labels      []string `json:"labels"`
	Inputs      []string `json:"inputs,omitempty"`
	Output      string   `json:"output,omitempty"`
	OutputShape []int64  `json:"output_shape,omitempty"`
}

// InputNames returns the latent and label input names, in that order.
func (d *Descriptor) InputNames() []string {
	if len(d.Inputs) == 2 {
		return d.Inputs
	}
	return []string{DefaultLatentInput, DefaultLabelInput}
}

func (d *Descriptor) OutputName() string {
	if d.Output != "" {
		return d.Output
	}
	return DefaultOutput
}

// Tensor is a dense float32 tensor in row-major order.
type Tensor struct {
	Shape []int64
	Data  []float32
}

func NewTensor(data []float32, shape ...int64) Tensor {
	return Tensor{Shape: shape, Data: data}
}

// Size is the element count implied by the shape.
func (t Tensor) Size() int64 {
	if len(t.Shape) == 0 {
		return 0
	}
	n := int64(1)
	for _, d := range t.Shape {
		n *= d
	}
	return n
}

// Predictor is a loaded model. It is treated as a black box.
type Predictor interface {
	Predict(ctx context.Context, latent, label Tensor) (Tensor, error)
	Close() error
}

// Runtime loads the artifact named by a descriptor into a Predictor.
type Runtime interface {
	Load(ctx context.Context, desc *Descriptor) (Predictor, error)
}

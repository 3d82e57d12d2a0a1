package model

import (
	"context"
	"fmt"

	"github.com/Brownie44l1/cvae-api/internal/log"
	ort "github.com/yalue/onnxruntime_go"
)

// ONNXRuntime loads generator artifacts exported to ONNX.
type ONNXRuntime struct {
	fetcher *Fetcher
}

func NewONNXRuntime(fetcher *Fetcher, libraryPath string) (*ONNXRuntime, error) {
	if libraryPath != "" {
		ort.SetSharedLibraryPath(libraryPath)
	}
	if !ort.IsInitialized() {
		if err := ort.InitializeEnvironment(); err != nil {
			return nil, fmt.Errorf("failed to initialize ONNX environment: %w", err)
		}
	}
	return &ONNXRuntime{fetcher: fetcher}, nil
}

func (r *ONNXRuntime) Load(ctx context.Context, desc *Descriptor) (Predictor, error) {
	logger := log.FromContextOrDiscard(ctx).With("model", desc.Model)
	logger.Info("loading onnx model")

	data, err := r.fetcher.Fetch(ctx, desc.Model)
	if err != nil {
		return nil, err
	}

	outputShape := desc.OutputShape
	if len(outputShape) == 0 {
		outputShape, err = declaredOutputShape(data, desc.OutputName())
		if err != nil {
			return nil, err
		}
	}

	session, err := ort.NewDynamicAdvancedSessionWithONNXData(data,
		desc.InputNames(), []string{desc.OutputName()}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create ONNX session: %w", err)
	}

	logger.Info("onnx model loaded", "inputs", desc.InputNames(), "output", desc.OutputName(), "output_shape", outputShape)
	return &onnxPredictor{
		session:     session,
		outputShape: ort.NewShape(outputShape...),
	}, nil
}

func (r *ONNXRuntime) Shutdown() error {
	if !ort.IsInitialized() {
		return nil
	}
	return ort.DestroyEnvironment()
}

// declaredOutputShape reads the named output's dimensions from the artifact.
// Dynamic dimensions are pinned to 1.
func declaredOutputShape(data []byte, name string) ([]int64, error) {
	_, outputs, err := ort.GetInputOutputInfoWithONNXData(data)
	if err != nil {
		return nil, fmt.Errorf("failed to read model outputs: %w", err)
	}
	for _, info := range outputs {
		if info.Name != name {
			continue
		}
		shape := make([]int64, len(info.Dimensions))
		for i, d := range info.Dimensions {
			shape[i] = max(d, 1)
		}
		return shape, nil
	}
	return nil, fmt.Errorf("model has no output named %q", name)
}

type onnxPredictor struct {
	session     *ort.DynamicAdvancedSession
	outputShape ort.Shape
}

func (p *onnxPredictor) Predict(_ context.Context, latent, label Tensor) (Tensor, error) {
	latentTensor, err := ort.NewTensor(ort.NewShape(latent.Shape...), latent.Data)
	if err != nil {
		return Tensor{}, fmt.Errorf("failed to create latent tensor: %w", err)
	}
	defer latentTensor.Destroy()

	labelTensor, err := ort.NewTensor(ort.NewShape(label.Shape...), label.Data)
	if err != nil {
		return Tensor{}, fmt.Errorf("failed to create label tensor: %w", err)
	}
	defer labelTensor.Destroy()

	outputTensor, err := ort.NewEmptyTensor[float32](p.outputShape)
	if err != nil {
		return Tensor{}, fmt.Errorf("failed to create output tensor: %w", err)
	}
	defer outputTensor.Destroy()

	if err := p.session.Run([]ort.ArbitraryTensor{latentTensor, labelTensor}, []ort.ArbitraryTensor{outputTensor}); err != nil {
		return Tensor{}, fmt.Errorf("inference failed: %w", err)
	}

	out := outputTensor.GetData()
	return Tensor{
		Shape: append([]int64(nil), p.outputShape...),
		Data:  append([]float32(nil), out...),
	}, nil
}

func (p *onnxPredictor) Close() error {
	if p.session == nil {
		return nil
	}
	err := p.session.Destroy()
	p.session = nil
	return err
}

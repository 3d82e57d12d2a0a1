package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/Brownie44l1/cvae-api/internal/config"
	"github.com/Brownie44l1/cvae-api/internal/cvae"
	"github.com/Brownie44l1/cvae-api/internal/log"
	"github.com/Brownie44l1/cvae-api/internal/model"
	"github.com/Brownie44l1/cvae-api/internal/store"
	"github.com/joho/godotenv"
	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	descriptor := flag.String("descriptor", cfg.DescriptorURI, "model descriptor path or URL")
	labelList := flag.String("labels", "", "comma separated labels to generate, default all")
	latentList := flag.String("latent", "", "comma separated latent vector of 16 values")
	out := flag.String("out", cfg.StoreDir, "output directory")
	flag.Parse()

	logger := log.New(os.Stderr, log.LevelFor(cfg.Environment))
	ctx := log.NewContext(context.Background(), logger)

	if err := run(ctx, cfg, *descriptor, *labelList, *latentList, *out); err != nil {
		logger.Error("generate failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, descriptor, labelList, latentList, out string) error {
	fetcher := model.NewFetcher(nil)
	runtime, err := model.NewONNXRuntime(fetcher, cfg.ONNXLibraryPath)
	if err != nil {
		return err
	}
	defer runtime.Shutdown()

	generator := cvae.New(descriptor, runtime, cvae.WithFetcher(fetcher))
	if err := generator.Load(ctx); err != nil {
		return err
	}
	defer generator.Close()

	if latentList != "" {
		latent, err := parseLatent(latentList)
		if err != nil {
			return err
		}
		if err := generator.SetLatent(latent); err != nil {
			return err
		}
	}

	labels, err := generator.Labels()
	if err != nil {
		return err
	}
	if labelList != "" {
		labels = parseLabels(labelList)
	}

	images := make([]*cvae.Image, 0, len(labels))
	for _, label := range labels {
		img, err := generator.Generate(ctx, label)
		if err != nil {
			return err
		}
		images = append(images, img)
	}

	return writeAll(ctx, &store.FileUploader{Dir: out}, images)
}

// writeAll persists the images concurrently.
func writeAll(ctx context.Context, uploader store.Uploader, images []*cvae.Image) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, img := range images {
		g.Go(func() error {
			_, err := uploader.Upload(gctx, store.UploadParams{
				Name:        img.Label + ".png",
				Data:        img.PNG,
				ContentType: "image/png",
			})
			return err
		})
	}
	return g.Wait()
}

// parseLabels splits a comma list, dropping repeats so each output file has
// a single writer.
func parseLabels(s string) []string {
	return lo.Uniq(lo.Map(strings.Split(s, ","), func(l string, _ int) string {
		return strings.TrimSpace(l)
	}))
}

func parseLatent(s string) ([]float32, error) {
	parts := strings.Split(s, ",")
	if len(parts) != cvae.LatentDim {
		return nil, fmt.Errorf("%w, got %d", cvae.ErrLatentLength, len(parts))
	}
	latent := make([]float32, len(parts))
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 32)
		if err != nil {
			return nil, fmt.Errorf("latent value %d: %w", i, err)
		}
		latent[i] = float32(v)
	}
	return latent, nil
}

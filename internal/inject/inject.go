package inject

import (
	"context"
	"fmt"
	"net/http"

	"github.com/Brownie44l1/cvae-api/internal/api"
	"github.com/Brownie44l1/cvae-api/internal/config"
	"github.com/Brownie44l1/cvae-api/internal/cvae"
	"github.com/Brownie44l1/cvae-api/internal/handlers"
	"github.com/Brownie44l1/cvae-api/internal/log"
	"github.com/Brownie44l1/cvae-api/internal/model"
	"github.com/Brownie44l1/cvae-api/internal/render"
	"github.com/Brownie44l1/cvae-api/internal/store"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gin-gonic/gin"
	"github.com/samber/do"
)

func Setup(ctx context.Context, cfg *config.Config) *do.Injector {
	logger := log.FromContextOrDiscard(ctx)

	injector := do.NewWithOpts(&do.InjectorOpts{
		Logf: func(format string, args ...any) {
			logger.Debug(fmt.Sprintf(format, args...))
		},
	})
	do.ProvideValue[*config.Config](injector, cfg)
	do.ProvideValue[*http.Client](injector, http.DefaultClient)

	do.Provide[aws.Config](injector, func(i *do.Injector) (aws.Config, error) {
		return awsconfig.LoadDefaultConfig(ctx)
	})
	do.Provide[*s3.Client](injector, func(i *do.Injector) (*s3.Client, error) {
		return s3.NewFromConfig(do.MustInvoke[aws.Config](i)), nil
	})

	do.Provide[*model.Fetcher](injector, func(i *do.Injector) (*model.Fetcher, error) {
		return model.NewFetcher(do.MustInvoke[*http.Client](i)), nil
	})
	do.Provide[model.Runtime](injector, func(i *do.Injector) (model.Runtime, error) {
		return model.NewONNXRuntime(do.MustInvoke[*model.Fetcher](i), cfg.ONNXLibraryPath)
	})
	do.Provide[store.Uploader](injector, NewUploader)
	do.Provide[*cvae.CVAE](injector, func(i *do.Injector) (*cvae.CVAE, error) {
		opts := []cvae.Option{cvae.WithFetcher(do.MustInvoke[*model.Fetcher](i))}
		if cfg.DisplaySize > 0 {
			opts = append(opts, cvae.WithRenderer(render.NewScaleRenderer(cfg.DisplaySize)))
		}
		return cvae.New(cfg.DescriptorURI, do.MustInvoke[model.Runtime](i), opts...), nil
	})
	do.Provide[*handlers.Handler](injector, func(i *do.Injector) (*handlers.Handler, error) {
		return handlers.NewHandler(do.MustInvoke[*cvae.CVAE](i), do.MustInvoke[store.Uploader](i)), nil
	})
	do.Provide[*gin.Engine](injector, func(i *do.Injector) (*gin.Engine, error) {
		return api.SetupRouter(logger, do.MustInvoke[*handlers.Handler](i)), nil
	})

	return injector
}

// NewUploader picks the store backend named by the configuration. It returns
// a nil Uploader when generated images are not persisted.
func NewUploader(i *do.Injector) (store.Uploader, error) {
	cfg := do.MustInvoke[*config.Config](i)
	switch cfg.StoreBackend {
	case "", "none":
		return nil, nil
	case "file":
		return &store.FileUploader{Dir: cfg.StoreDir}, nil
	case "s3":
		if cfg.Bucket == "" {
			return nil, fmt.Errorf("BUCKET is required for the s3 store")
		}
		return &store.S3Uploader{Client: do.MustInvoke[*s3.Client](i), Bucket: cfg.Bucket}, nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}

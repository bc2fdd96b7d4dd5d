package client

import (
	"context"

	"github.com/menta2k/vision-overlay/pkg/types"
)

// VisionClient is a vision-model backend able to label an image.
type VisionClient interface {
	SimpleQuery(ctx context.Context, model, prompt, imgB64 string) (string, error)
	Classify(ctx context.Context, model, prompt, imgB64 string) ([]types.Detection, error)
}

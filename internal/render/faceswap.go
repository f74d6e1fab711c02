package render

import (
	"context"
	"encoding/base64"
	"fmt"

	"server/internal/domain"
)

// FaceSwap composites the identity from the source image onto the base
// template video using the serverless face-swap pod.
type FaceSwap struct {
	client *PodClient
}

func NewFaceSwap(client *PodClient) *FaceSwap {
	return &FaceSwap{client: client}
}

type faceSwapInput struct {
	Task        string `json:"task"`
	JobID       string `json:"job_id"`
	ImageBase64 string `json:"image_base64"`
	ImageMIME   string `json:"image_mime"`
	VideoBase64 string `json:"video_base64"`
}

func (f *FaceSwap) Render(ctx context.Context, req Request) (*Result, error) {
	if len(req.SourceImage) == 0 {
		return nil, fmt.Errorf("face swap: %w: source image", domain.ErrMissingArtifact)
	}
	if len(req.BaseVideo) == 0 {
		return nil, fmt.Errorf("face swap: %w: base video", domain.ErrMissingArtifact)
	}
	video, thumb, err := f.client.RunSync(ctx, "faceswap", faceSwapInput{
		Task:        "faceswap",
		JobID:       req.JobID,
		ImageBase64: base64.StdEncoding.EncodeToString(req.SourceImage),
		ImageMIME:   req.SourceMIME,
		VideoBase64: base64.StdEncoding.EncodeToString(req.BaseVideo),
	})
	if err != nil {
		return nil, err
	}
	if len(video) == 0 {
		return nil, fmt.Errorf("face swap: %w", domain.ErrEmptyOutput)
	}
	return &Result{Video: video, Thumb: thumb}, nil
}

var _ Capability = (*FaceSwap)(nil)

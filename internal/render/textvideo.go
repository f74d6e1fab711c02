package render

import (
	"context"
	"encoding/base64"
	"fmt"

	"server/internal/domain"
)

// TextToVideo generates a video directly from the prompt, conditioned on
// the uploaded image. Used when a job has no base template video.
type TextToVideo struct {
	client *PodClient
}

func NewTextToVideo(client *PodClient) *TextToVideo {
	return &TextToVideo{client: client}
}

type textToVideoInput struct {
	Task        string `json:"task"`
	JobID       string `json:"job_id"`
	Prompt      string `json:"prompt"`
	ImageBase64 string `json:"image_base64,omitempty"`
	ImageMIME   string `json:"image_mime,omitempty"`
}

func (t *TextToVideo) Render(ctx context.Context, req Request) (*Result, error) {
	if len(req.SourceImage) == 0 {
		return nil, fmt.Errorf("text-to-video: %w: source image", domain.ErrMissingArtifact)
	}
	video, thumb, err := t.client.RunSync(ctx, "text2video", textToVideoInput{
		Task:        "text2video",
		JobID:       req.JobID,
		Prompt:      req.Prompt,
		ImageBase64: base64.StdEncoding.EncodeToString(req.SourceImage),
		ImageMIME:   req.SourceMIME,
	})
	if err != nil {
		return nil, err
	}
	if len(video) == 0 {
		return nil, fmt.Errorf("text-to-video: %w", domain.ErrEmptyOutput)
	}
	return &Result{Video: video, Thumb: thumb}, nil
}

var _ Capability = (*TextToVideo)(nil)

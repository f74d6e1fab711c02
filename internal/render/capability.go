package render

import (
	"context"

	"server/internal/domain"
)

// Request carries the resolved inputs for one render. BaseVideo is the
// template the user's face is composited onto; when nil the capability is
// expected to generate the video from the prompt alone.
type Request struct {
	JobID       string
	SourceImage []byte
	SourceMIME  string
	BaseVideo   []byte
	Prompt      string
}

// Result is the produced media. Video must be non-empty; Thumb is optional.
type Result struct {
	Video []byte
	Thumb []byte
}

// Capability is one way of turning a request into a rendered video. The
// set of implementations is closed: face swap onto a template, and direct
// prompt-to-video.
type Capability interface {
	Render(ctx context.Context, req Request) (*Result, error)
}

// Selector picks the capability matching the shape of a request.
type Selector struct {
	FaceSwap Capability
	Text     Capability
}

// For returns the capability for the given request: face swap when a base
// video is present, prompt-to-video otherwise.
func (s Selector) For(req Request) (Capability, error) {
	if len(req.BaseVideo) > 0 {
		if s.FaceSwap == nil {
			return nil, domain.ErrProviderFailure
		}
		return s.FaceSwap, nil
	}
	if s.Text == nil {
		return nil, domain.ErrProviderFailure
	}
	return s.Text, nil
}

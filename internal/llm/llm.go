// Package llm talks to the chat completion and image generation provider.
package llm

import "context"

// Request is one chat completion call.
type Request struct {
	System      string
	Prompt      string
	Temperature float32 // 0 uses the configured default
	JSON        bool    // ask for a JSON object when the deployment supports it
}

// Completer returns the model's text for a prompt, or a typed *errors.StandardError.
type Completer interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// ImageGenerator returns a base64-encoded PNG for a prompt.
type ImageGenerator interface {
	GenerateImage(ctx context.Context, prompt string) (string, error)
}

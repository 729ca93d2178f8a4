// Package synth renders settled upstream batches into the OpenAI-shaped
// response bodies: the images JSON body, the one-shot chat completion and
// the incremental SSE chat stream.
package synth

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/hung319/magicstudio2api/internal/executor"
	"github.com/hung319/magicstudio2api/internal/models"
)

// Images renders a batch into the images-API response. All-rejected batches
// become a single bad-gateway error; rejected slots in a partially
// successful batch are dropped silently.
func Images(batch models.BatchResult, now time.Time) (models.ImageResponse, error) {
	if batch.Exhausted() {
		return models.ImageResponse{}, executor.NewAPIError(fiber.StatusBadGateway, upstreamFailureMessage(batch))
	}

	fulfilled := batch.Fulfilled()
	data := make([]models.ImageData, 0, len(fulfilled))
	for _, b64 := range fulfilled {
		data = append(data, models.ImageData{B64JSON: b64})
	}

	return models.ImageResponse{Created: now, Data: data}, nil
}

// ChatCompletion renders a single settled outcome into a chat completion
// whose assistant message carries the image as an inline Markdown reference.
func ChatCompletion(outcome models.CallOutcome, model string, now time.Time) (models.ChatResponse, error) {
	if !outcome.OK() {
		return models.ChatResponse{}, executor.NewAPIError(fiber.StatusBadGateway, "upstream image generation failed: "+outcome.Reason)
	}

	return models.ChatResponse{
		ID:      "chatcmpl-" + uuid.NewString(),
		Created: now,
		Model:   model,
		Choices: []models.ChatChoice{
			{
				Index: 0,
				Message: models.ChatMessage{
					Role:    "assistant",
					Content: MarkdownImage(outcome.B64JSON),
				},
				FinishReason: "stop",
			},
		},
		Usage: models.Usage{},
	}, nil
}

// MarkdownImage wraps a base64 payload as an inline Markdown image reference.
func MarkdownImage(b64 string) string {
	return "![](data:image/png;base64," + b64 + ")"
}

func upstreamFailureMessage(batch models.BatchResult) string {
	if reason := batch.FirstReason(); reason != "" {
		return "upstream image generation failed: " + reason
	}
	return "upstream image generation failed"
}

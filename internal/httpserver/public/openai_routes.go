package public

import (
	"bufio"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/hung319/magicstudio2api/internal/app"
	"github.com/hung319/magicstudio2api/internal/executor"
	"github.com/hung319/magicstudio2api/internal/httpserver/httputil"
	"github.com/hung319/magicstudio2api/internal/models"
	"github.com/hung319/magicstudio2api/internal/synth"
)

type openAIHandler struct {
	container *app.Container
	executor  *executor.Executor
}

type openAIModel struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	OwnedBy string `json:"owned_by"`
	Created int64  `json:"created"`
}

type openAIModelList struct {
	Object string        `json:"object"`
	Data   []openAIModel `json:"data"`
}

func (h *openAIHandler) listModels(c *fiber.Ctx) error {
	known := h.container.Config.Models.Known
	now := time.Now().Unix()

	list := make([]openAIModel, 0, len(known))
	for _, name := range known {
		list = append(list, openAIModel{
			ID:      name,
			Object:  "model",
			OwnedBy: "magicstudio",
			Created: now,
		})
	}

	return c.JSON(openAIModelList{
		Object: "list",
		Data:   list,
	})
}

type openAIImageRequest struct {
	Prompt         string `json:"prompt"`
	N              int    `json:"n,omitempty"`
	ResponseFormat string `json:"response_format,omitempty"`
}

type openAIImageData struct {
	B64JSON string `json:"b64_json"`
}

type openAIImageResponse struct {
	Created int64             `json:"created"`
	Data    []openAIImageData `json:"data"`
}

func (h *openAIHandler) imageGenerations(c *fiber.Ctx) error {
	var req openAIImageRequest
	if err := c.BodyParser(&req); err != nil {
		return httputil.WriteError(c, fiber.StatusBadRequest, "invalid request body")
	}
	req.Prompt = strings.TrimSpace(req.Prompt)
	if req.Prompt == "" {
		return httputil.WriteError(c, fiber.StatusBadRequest, "prompt is required")
	}

	n := req.N
	if n <= 0 {
		n = 1
	}
	if n > 10 {
		return httputil.WriteError(c, fiber.StatusBadRequest, "n must be between 1 and 10")
	}

	ctx := c.UserContext()
	batch := h.executor.Execute(ctx, req.Prompt, n)

	resp, err := synth.Images(batch, time.Now())
	if err != nil {
		if status, msg, ok := executor.AsAPIError(err); ok {
			return httputil.WriteError(c, status, msg)
		}
		return httputil.WriteError(c, fiber.StatusInternalServerError, err.Error())
	}

	return c.JSON(convertImageResponse(resp))
}

type openAIChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIChatRequest struct {
	Model    string              `json:"model"`
	Messages []openAIChatMessage `json:"messages"`
	Stream   bool                `json:"stream,omitempty"`
}

type openAIChatChoice struct {
	Index        int               `json:"index"`
	Message      openAIChatMessage `json:"message"`
	FinishReason string            `json:"finish_reason"`
}

type openAIUsage struct {
	PromptTokens     int32 `json:"prompt_tokens"`
	CompletionTokens int32 `json:"completion_tokens"`
	TotalTokens      int32 `json:"total_tokens"`
}

type openAIChatResponse struct {
	ID      string             `json:"id"`
	Object  string             `json:"object"`
	Created int64              `json:"created"`
	Model   string             `json:"model"`
	Choices []openAIChatChoice `json:"choices"`
	Usage   openAIUsage        `json:"usage"`
}

func (h *openAIHandler) chatCompletions(c *fiber.Ctx) error {
	var req openAIChatRequest
	if err := c.BodyParser(&req); err != nil {
		return httputil.WriteError(c, fiber.StatusBadRequest, "invalid request body")
	}
	if len(req.Messages) == 0 {
		return httputil.WriteError(c, fiber.StatusBadRequest, "messages are required")
	}

	prompt := lastUserPrompt(req.Messages)
	if prompt == "" {
		return httputil.WriteError(c, fiber.StatusBadRequest, "no user message found")
	}

	model := strings.TrimSpace(req.Model)
	if model == "" {
		model = h.container.Config.Models.Default
	}

	if req.Stream {
		return h.streamChat(c, model, prompt)
	}

	ctx := c.UserContext()
	batch := h.executor.Execute(ctx, prompt, 1)

	resp, err := synth.ChatCompletion(batch[0], model, time.Now())
	if err != nil {
		if status, msg, ok := executor.AsAPIError(err); ok {
			return httputil.WriteError(c, status, msg)
		}
		return httputil.WriteError(c, fiber.StatusInternalServerError, err.Error())
	}

	return c.JSON(convertChatResponse(resp))
}

func (h *openAIHandler) streamChat(c *fiber.Ctx, model, prompt string) error {
	ctx := c.UserContext()

	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")

	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		stream := synth.NewChatStream(w, model)
		stream.Run(ctx, h.executor, prompt)
	})

	return nil
}

// lastUserPrompt returns the content of the most recent user-authored
// message, or "" when none exists.
func lastUserPrompt(messages []openAIChatMessage) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if strings.EqualFold(messages[i].Role, "user") {
			return strings.TrimSpace(messages[i].Content)
		}
	}
	return ""
}

func convertChatResponse(resp models.ChatResponse) openAIChatResponse {
	choices := make([]openAIChatChoice, 0, len(resp.Choices))
	for _, choice := range resp.Choices {
		choices = append(choices, openAIChatChoice{
			Index: choice.Index,
			Message: openAIChatMessage{
				Role:    choice.Message.Role,
				Content: choice.Message.Content,
			},
			FinishReason: choice.FinishReason,
		})
	}

	return openAIChatResponse{
		ID:      resp.ID,
		Object:  "chat.completion",
		Created: resp.Created.Unix(),
		Model:   resp.Model,
		Choices: choices,
		Usage: openAIUsage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}
}

func convertImageResponse(resp models.ImageResponse) openAIImageResponse {
	data := make([]openAIImageData, 0, len(resp.Data))
	for _, item := range resp.Data {
		data = append(data, openAIImageData{B64JSON: item.B64JSON})
	}

	created := resp.Created.Unix()
	if created < 0 {
		created = 0
	}

	return openAIImageResponse{
		Created: created,
		Data:    data,
	}
}

package public

import (
	"github.com/gofiber/fiber/v2"

	"github.com/hung319/magicstudio2api/internal/app"
)

// Register wires up the OpenAI-compatible public API routes.
func Register(app *fiber.App, container *app.Container) {
	group := app.Group("/v1", apiKeyAuth(container))
	handler := &openAIHandler{container: container, executor: container.Executor}
	group.Get("/models", handler.listModels)
	group.Post("/chat/completions", handler.chatCompletions)
	group.Post("/images/generations", handler.imageGenerations)
}

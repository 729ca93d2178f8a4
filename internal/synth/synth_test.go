package synth

import (
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/hung319/magicstudio2api/internal/executor"
	"github.com/hung319/magicstudio2api/internal/models"
)

func TestImagesAllRejected(t *testing.T) {
	batch := models.BatchResult{
		models.Rejected("upstream status 500: oops"),
		models.Rejected("upstream status 503: busy"),
	}

	_, err := Images(batch, time.Now())
	if err == nil {
		t.Fatal("expected error for exhausted batch")
	}
	status, msg, ok := executor.AsAPIError(err)
	if !ok {
		t.Fatalf("expected apiError, got %v", err)
	}
	if status != fiber.StatusBadGateway {
		t.Fatalf("expected 502, got %d", status)
	}
	if !strings.Contains(msg, "upstream status 500") {
		t.Fatalf("message should carry the first rejection reason: %q", msg)
	}
}

func TestImagesPartialSuccessDropsRejected(t *testing.T) {
	now := time.Unix(1756000000, 0)
	batch := models.BatchResult{
		models.Fulfilled("aaa"),
		models.Rejected("transport reset"),
		models.Fulfilled("bbb"),
	}

	resp, err := Images(batch, now)
	if err != nil {
		t.Fatalf("partial success must not error: %v", err)
	}
	if !resp.Created.Equal(now) {
		t.Fatalf("unexpected created time: %v", resp.Created)
	}
	if len(resp.Data) != 2 {
		t.Fatalf("expected 2 images, got %d", len(resp.Data))
	}
	if resp.Data[0].B64JSON != "aaa" || resp.Data[1].B64JSON != "bbb" {
		t.Fatalf("fulfilled payloads out of batch order: %+v", resp.Data)
	}
}

func TestChatCompletionFulfilled(t *testing.T) {
	now := time.Unix(1756000000, 0)
	resp, err := ChatCompletion(models.Fulfilled("QUJD"), "magicstudio-ai-art", now)
	if err != nil {
		t.Fatalf("chat completion: %v", err)
	}

	if !strings.HasPrefix(resp.ID, "chatcmpl-") {
		t.Fatalf("unexpected id: %q", resp.ID)
	}
	if resp.Model != "magicstudio-ai-art" {
		t.Fatalf("unexpected model: %q", resp.Model)
	}
	if len(resp.Choices) != 1 {
		t.Fatalf("expected one choice, got %d", len(resp.Choices))
	}
	choice := resp.Choices[0]
	if choice.Message.Role != "assistant" {
		t.Fatalf("unexpected role: %q", choice.Message.Role)
	}
	if choice.Message.Content != "![](data:image/png;base64,QUJD)" {
		t.Fatalf("unexpected content: %q", choice.Message.Content)
	}
	if choice.FinishReason != "stop" {
		t.Fatalf("unexpected finish reason: %q", choice.FinishReason)
	}
	if resp.Usage != (models.Usage{}) {
		t.Fatalf("usage must be zero-valued: %+v", resp.Usage)
	}
}

func TestChatCompletionRejected(t *testing.T) {
	_, err := ChatCompletion(models.Rejected("connection refused"), "m", time.Now())
	if err == nil {
		t.Fatal("expected error for rejected outcome")
	}
	status, msg, ok := executor.AsAPIError(err)
	if !ok || status != fiber.StatusBadGateway {
		t.Fatalf("expected 502 apiError, got %v", err)
	}
	if !strings.Contains(msg, "connection refused") {
		t.Fatalf("message should carry the reason: %q", msg)
	}
}

func TestMarkdownImage(t *testing.T) {
	if got := MarkdownImage("Zm9v"); got != "![](data:image/png;base64,Zm9v)" {
		t.Fatalf("unexpected markdown wrapper: %q", got)
	}
}

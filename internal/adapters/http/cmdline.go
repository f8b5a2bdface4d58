package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/melih/lighthouse-dock/internal/core/cmdline"
)

// CmdlineHandler exposes the command line codec so a form can edit a
// container command as one line of text.
type CmdlineHandler struct{}

func NewCmdlineHandler() *CmdlineHandler {
	return &CmdlineHandler{}
}

type QuoteRequest struct {
	Words []string `json:"words"`
}

type UnquoteRequest struct {
	Text string `json:"text"`
}

func (h *CmdlineHandler) Quote(c *fiber.Ctx) error {
	var req QuoteRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	return c.JSON(fiber.Map{"text": cmdline.Quote(req.Words)})
}

func (h *CmdlineHandler) Unquote(c *fiber.Ctx) error {
	var req UnquoteRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	words := cmdline.Unquote(req.Text)
	if words == nil {
		words = []string{}
	}
	return c.JSON(fiber.Map{"words": words})
}

package handler

import (
	"strconv"

	"go-inventory-ledger/internal/model"
	"go-inventory-ledger/internal/service"

	"github.com/gofiber/fiber/v2"
)

type ActivityHandler struct {
	service service.ActivityService
}

func NewActivityHandler(s service.ActivityService) *ActivityHandler {
	return &ActivityHandler{service: s}
}

type activityItem struct {
	model.ActivityLogEntry
	Description string `json:"description"`
}

func (h *ActivityHandler) GetActivity(c *fiber.Ctx) error {
	limit := service.DefaultActivityLimit
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			return c.Status(400).JSON(fiber.Map{"error": "Invalid limit"})
		}
		limit = parsed
	}

	entries, err := h.service.ListActivity(c.Context(), limit)
	if err != nil {
		return c.Status(statusForError(err)).JSON(fiber.Map{"error": "Internal Server Error"})
	}

	items := make([]activityItem, len(entries))
	for i, entry := range entries {
		items[i] = activityItem{
			ActivityLogEntry: entry,
			Description:      service.Describe(entry),
		}
	}
	return c.JSON(items)
}

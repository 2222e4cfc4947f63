package web

import (
	"github.com/gofiber/fiber/v2"

	"github.com/teslashibe/facemoji/internal/log"
	"github.com/teslashibe/facemoji/pkg/camera"
	"github.com/teslashibe/facemoji/pkg/expression"
)

// ExpressionInfo is one row of the emoji table.
type ExpressionInfo struct {
	Name  string `json:"name"`
	Emoji string `json:"emoji"`
}

func (s *Server) handleStatus(c *fiber.Ctx) error {
	return c.JSON(s.State())
}

func (s *Server) handleExpressions(c *fiber.Ctx) error {
	names := expression.Names()
	out := make([]ExpressionInfo, 0, len(names))
	for _, name := range names {
		e, _ := expression.Emoji(name)
		out = append(out, ExpressionInfo{Name: name, Emoji: e})
	}
	return c.JSON(out)
}

func (s *Server) handleGetCamera(c *fiber.Ctx) error {
	if s.camera == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": camera.ErrUnavailable.Error(),
		})
	}
	return c.JSON(fiber.Map{
		"config":  s.camera.GetConfigJSON(),
		"presets": camera.PresetNames(),
	})
}

func (s *Server) handleSetCamera(c *fiber.Ctx) error {
	if s.camera == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": camera.ErrUnavailable.Error(),
		})
	}

	var params map[string]interface{}
	if err := c.BodyParser(&params); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid JSON body",
		})
	}

	if err := s.camera.UpdateConfig(params); err != nil {
		log.Warn("camera config rejected", "error", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	log.Info("camera config updated", "config", s.camera.GetConfig())
	return c.JSON(fiber.Map{
		"config": s.camera.GetConfigJSON(),
	})
}

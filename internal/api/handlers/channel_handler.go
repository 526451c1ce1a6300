package handlers

import (
	"fmt"
	"log/slog"
	"strconv"

	"github.com/gofiber/fiber/v2"
	config "github.com/maheshrc27/crosspost/configs"
	"github.com/maheshrc27/crosspost/internal/models"
	"github.com/maheshrc27/crosspost/internal/service"
	"github.com/maheshrc27/crosspost/pkg/utils"
)

type ChannelHandler struct {
	s   service.ChannelService
	cfg config.Config
}

func NewChannelHandler(s service.ChannelService, cfg config.Config) *ChannelHandler {
	return &ChannelHandler{s: s, cfg: cfg}
}

// AddChannel redirects to the platform's consent screen. The caller is identified by the
// session cookie since this route is opened by the browser directly.
func (h *ChannelHandler) AddChannel(c *fiber.Ctx) error {
	platform, err := models.ParsePlatform(c.Params("platform"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	var userID int64
	if token := c.Cookies(h.cfg.CookieName); token != "" {
		if claims, err := utils.ValidateToken(h.cfg.SecretKey, token); err == nil {
			userID, _ = strconv.ParseInt(claims.UserID, 10, 64)
		}
	}

	authURL, err := h.s.AuthURL(c.Context(), platform, userID)
	if err != nil {
		return sendError(c, err)
	}
	return c.Redirect(authURL, fiber.StatusTemporaryRedirect)
}

func (h *ChannelHandler) CallbackHandler(c *fiber.Ctx) error {
	platform, err := models.ParsePlatform(c.Params("platform"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	if _, err := h.s.Callback(c.Context(), platform, c.Query("code"), c.Query("state")); err != nil {
		slog.Info(err.Error())
		return sendError(c, err)
	}

	redirectURL := fmt.Sprintf("%s/dashboard/channels", h.cfg.FrontendURL)
	return c.Redirect(redirectURL, fiber.StatusTemporaryRedirect)
}

func (h *ChannelHandler) ListChannels(c *fiber.Ctx) error {
	channels, err := h.s.List(c.Context(), GetUserID(c))
	if err != nil {
		return sendError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(channels)
}

func (h *ChannelHandler) DeactivateChannel(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return sendError(c, err)
	}

	if err := h.s.Deactivate(c.Context(), id); err != nil {
		return sendError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

package handlers

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/maheshrc27/crosspost/internal/models"
	"github.com/maheshrc27/crosspost/internal/service"
	"github.com/maheshrc27/crosspost/internal/storage"
)

func GetUserID(c *fiber.Ctx) int64 {
	raw, _ := c.Locals("user_id").(string)
	userID, _ := strconv.ParseInt(raw, 10, 64)
	return userID
}

func paramID(c *fiber.Ctx, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Params(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, fiber.NewError(fiber.StatusBadRequest, "invalid "+name)
	}
	return id, nil
}

// errorStatus maps service errors onto HTTP status codes.
func errorStatus(err error) int {
	var fe *fiber.Error
	var ce *service.CredentialError
	switch {
	case errors.As(err, &fe):
		return fe.Code
	case errors.Is(err, service.ErrPostNotFound),
		errors.Is(err, service.ErrTargetNotFound),
		errors.Is(err, service.ErrChannelNotFound),
		errors.Is(err, service.ErrVideoNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, service.ErrNoTargets),
		errors.Is(err, service.ErrChannelUnavailable),
		errors.Is(err, service.ErrDuplicateChannel),
		errors.Is(err, service.ErrInvalidState),
		errors.Is(err, service.ErrUnsupportedPlatform),
		errors.Is(err, models.ErrConflictingSchedule),
		errors.Is(err, models.ErrInvalidOverrides):
		return fiber.StatusBadRequest
	case errors.Is(err, service.ErrUnsupportedFileType):
		return fiber.StatusUnsupportedMediaType
	case errors.As(err, &ce):
		return fiber.StatusBadGateway
	case errors.Is(err, storage.ErrVideoMissing):
		return fiber.StatusNotFound
	}
	return fiber.StatusInternalServerError
}

func sendError(c *fiber.Ctx, err error) error {
	return c.Status(errorStatus(err)).JSON(fiber.Map{
		"error": err.Error(),
	})
}

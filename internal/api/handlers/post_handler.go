package handlers

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/maheshrc27/crosspost/internal/models"
	"github.com/maheshrc27/crosspost/internal/repository"
	"github.com/maheshrc27/crosspost/internal/service"
	"github.com/maheshrc27/crosspost/internal/transfer"
)

type PostHandler struct {
	s service.PostService
	p service.PublishService
}

func NewPostHandler(posts service.PostService, publisher service.PublishService) *PostHandler {
	return &PostHandler{s: posts, p: publisher}
}

func (h *PostHandler) CreatePost(c *fiber.Ctx) error {
	var pc transfer.PostCreation
	if err := c.BodyParser(&pc); err != nil {
		slog.Info(err.Error())
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unable to parse body",
		})
	}

	post, err := h.s.Create(c.Context(), GetUserID(c), &pc)
	if err != nil {
		return sendError(c, err)
	}

	if c.QueryBool("publish") {
		post, err = h.p.Publish(c.Context(), post.ID, 0)
		if err != nil {
			return sendError(c, err)
		}
	}

	return c.Status(fiber.StatusCreated).JSON(transfer.NewPostView(post))
}

func (h *PostHandler) ListPosts(c *fiber.Ctx) error {
	posts, err := h.s.List(c.Context(), repository.PostFilter{
		Status:      models.Status(c.Query("status")),
		CreatedByID: GetUserID(c),
		Limit:       c.QueryInt("limit", 50),
		Offset:      c.QueryInt("offset", 0),
	})
	if err != nil {
		return sendError(c, err)
	}

	views := make([]transfer.PostView, 0, len(posts))
	for _, p := range posts {
		views = append(views, transfer.NewPostView(p))
	}
	return c.Status(fiber.StatusOK).JSON(views)
}

func (h *PostHandler) GetPost(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return sendError(c, err)
	}

	post, err := h.s.Get(c.Context(), id)
	if err != nil {
		return sendError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(transfer.NewPostView(post))
}

func (h *PostHandler) RemovePost(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return sendError(c, err)
	}

	if err := h.s.Remove(c.Context(), id); err != nil {
		return sendError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// PublishPost attempts the post's eligible targets now, or only ?target_id= when given.
func (h *PostHandler) PublishPost(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return sendError(c, err)
	}

	post, err := h.p.Publish(c.Context(), id, int64(c.QueryInt("target_id", 0)))
	if err != nil {
		return sendError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(transfer.NewPostView(post))
}

func (h *PostHandler) PublishTarget(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return sendError(c, err)
	}

	tgt, err := h.p.PublishSingleTarget(c.Context(), id)
	if err != nil {
		return sendError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(tgt)
}

package controllers

import (
	"context"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/RevenueLedger/app/models"
	"github.com/ManuelReschke/RevenueLedger/internal/pkg/streams"
)

// StreamService is satisfied by *streams.Service.
type StreamService interface {
	Create(ctx context.Context, in streams.CreateInput) (*models.RevenueStream, error)
	Get(ctx context.Context, id uint64) (*models.RevenueStream, error)
	List(ctx context.Context, offset, limit int) ([]models.RevenueStream, error)
	Update(ctx context.Context, id uint64, in streams.UpdateInput) (*models.RevenueStream, error)
	Summary(ctx context.Context, currency string) (*streams.Summary, error)
}

type RevenueStreamController struct {
	streams StreamService
}

func NewRevenueStreamController(s StreamService) *RevenueStreamController {
	return &RevenueStreamController{streams: s}
}

func (r *RevenueStreamController) HandleCreateStream(c *fiber.Ctx) error {
	var in streams.CreateInput
	if err := c.BodyParser(&in); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	stream, err := r.streams.Create(c.UserContext(), in)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(stream)
}

func (r *RevenueStreamController) HandleListStreams(c *fiber.Ctx) error {
	offset, _ := strconv.Atoi(c.Query("offset", "0"))
	limit, _ := strconv.Atoi(c.Query("limit", "50"))
	if offset < 0 {
		offset = 0
	}
	if limit < 1 || limit > 200 {
		limit = 50
	}

	items, err := r.streams.List(c.UserContext(), offset, limit)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"items": items, "offset": offset, "limit": limit})
}

func (r *RevenueStreamController) HandleGetStream(c *fiber.Ctx) error {
	id, err := streamID(c)
	if err != nil {
		return err
	}

	stream, err := r.streams.Get(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.JSON(stream)
}

func (r *RevenueStreamController) HandleUpdateStream(c *fiber.Ctx) error {
	id, err := streamID(c)
	if err != nil {
		return err
	}
	var in streams.UpdateInput
	if err := c.BodyParser(&in); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	stream, err := r.streams.Update(c.UserContext(), id, in)
	if err != nil {
		return err
	}
	return c.JSON(stream)
}

func (r *RevenueStreamController) HandleStreamSummary(c *fiber.Ctx) error {
	summary, err := r.streams.Summary(c.UserContext(), c.Query("currency"))
	if err != nil {
		return err
	}
	return c.JSON(summary)
}

func streamID(c *fiber.Ctx) (uint64, error) {
	id, err := strconv.ParseUint(c.Params("stream_id"), 10, 64)
	if err != nil || id == 0 {
		return 0, fiber.NewError(fiber.StatusBadRequest, "invalid stream_id")
	}
	return id, nil
}

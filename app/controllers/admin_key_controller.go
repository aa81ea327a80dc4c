package controllers

import (
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/RevenueLedger/internal/pkg/apikey"
)

var validate = validator.New()

type createKeyRequest struct {
	Label      string `json:"label" validate:"max=100"`
	Email      string `json:"email" validate:"omitempty,email,max=200"`
	Tier       string `json:"tier" validate:"omitempty,oneof=free paid"`
	DailyLimit *int   `json:"daily_limit" validate:"omitempty,gte=0,lte=1000000"`
}

type AdminKeyController struct {
	issuer *apikey.Issuer
}

func NewAdminKeyController(issuer *apikey.Issuer) *AdminKeyController {
	return &AdminKeyController{issuer: issuer}
}

// HandleCreateKey issues a key. The raw key appears in this response only.
func (a *AdminKeyController) HandleCreateKey(c *fiber.Ctx) error {
	var req createKeyRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}
	}
	if err := validate.Struct(req); err != nil {
		return err
	}

	var opts []apikey.IssueOption
	if req.Tier != "" {
		opts = append(opts, apikey.WithTier(req.Tier))
	}
	if req.DailyLimit != nil {
		opts = append(opts, apikey.WithDailyLimit(*req.DailyLimit))
	}

	issued, err := a.issuer.Issue(c.UserContext(), req.Label, req.Email, opts...)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"key_id":      issued.Key.KeyID,
		"api_key":     issued.RawKey,
		"prefix":      issued.Key.Prefix,
		"label":       issued.Key.Label,
		"email":       issued.Key.Email,
		"tier":        issued.Key.Tier,
		"daily_limit": issued.Key.DailyLimit,
		"emailed":     issued.Emailed,
		"created_at":  formatTime(issued.Key.CreatedAt),
		"warning":     "Store this key securely. It will not be shown again.",
	})
}

func (a *AdminKeyController) HandleRevokeKey(c *fiber.Ctx) error {
	keyID := c.Params("key_id")
	if err := a.issuer.Revoke(c.UserContext(), keyID); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"key_id": keyID, "status": "revoked"})
}

func (a *AdminKeyController) HandleListKeys(c *fiber.Ctx) error {
	offset, _ := strconv.Atoi(c.Query("offset", "0"))
	limit, _ := strconv.Atoi(c.Query("limit", "50"))
	if offset < 0 {
		offset = 0
	}
	if limit < 1 || limit > 200 {
		limit = 50
	}

	keys, err := a.issuer.List(c.UserContext(), offset, limit)
	if err != nil {
		return err
	}
	items := make([]fiber.Map, 0, len(keys))
	for _, k := range keys {
		items = append(items, fiber.Map{
			"key_id":       k.KeyID,
			"prefix":       k.Prefix,
			"label":        k.Label,
			"status":       k.Status,
			"tier":         k.Tier,
			"daily_limit":  k.DailyLimit,
			"created_at":   formatTime(k.CreatedAt),
			"revoked_at":   formatTimePtr(k.RevokedAt),
			"last_used_at": formatTimePtr(k.LastUsedAt),
		})
	}
	return c.JSON(fiber.Map{"items": items, "offset": offset, "limit": limit})
}

package controllers

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/RevenueLedger/app/models"
	"github.com/ManuelReschke/RevenueLedger/internal/pkg/dashboard"
	"github.com/ManuelReschke/RevenueLedger/internal/pkg/ledger"
)

// ReportingService is satisfied by *dashboard.Aggregator.
type ReportingService interface {
	BuildDashboard(ctx context.Context, q dashboard.Query) (*dashboard.View, error)
	Summary(ctx context.Context, filter ledger.Filter) (*ledger.Aggregate, error)
	Transactions(ctx context.Context, r ledger.TimeRange, page ledger.Page) (*ledger.TransactionPage, error)
	TransactionRollup(ctx context.Context, r ledger.TimeRange) (*dashboard.Rollup, error)
	Event(ctx context.Context, eventID string) (*models.PaymentEvent, error)
}

type RevenueController struct {
	reporting ReportingService
}

func NewRevenueController(reporting ReportingService) *RevenueController {
	return &RevenueController{reporting: reporting}
}

func (r *RevenueController) HandleDashboard(c *fiber.Ctx) error {
	filter, err := parseFilter(c)
	if err != nil {
		return err
	}
	page, err := parsePage(c)
	if err != nil {
		return err
	}

	view, err := r.reporting.BuildDashboard(c.UserContext(), dashboard.Query{
		Range:    filter.TimeRange,
		Currency: filter.Currency,
		Bucket:   filter.Bucket,
		Page:     page,
	})
	if err != nil {
		return err
	}
	return c.JSON(view)
}

func (r *RevenueController) HandleSummary(c *fiber.Ctx) error {
	filter, err := parseFilter(c)
	if err != nil {
		return err
	}

	agg, err := r.reporting.Summary(c.UserContext(), filter)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"from":     formatTime(filter.From),
		"to":       formatTime(filter.To),
		"currency": strings.ToUpper(filter.Currency),
		"summary":  agg,
	})
}

func (r *RevenueController) HandleTransactions(c *fiber.Ctx) error {
	tr, err := parseTimeRange(c)
	if err != nil {
		return err
	}
	page, err := parsePage(c)
	if err != nil {
		return err
	}

	out, err := r.reporting.Transactions(c.UserContext(), tr, page)
	if err != nil {
		return err
	}
	if page.Cursor != "" {
		return c.JSON(out)
	}

	// Later pages skip the rollup; it does not depend on the cursor.
	rollup, err := r.reporting.TransactionRollup(c.UserContext(), tr)
	if err != nil {
		return err
	}
	return c.JSON(transactionsResponse{TransactionPage: out, Rollup: rollup})
}

type transactionsResponse struct {
	*ledger.TransactionPage
	Rollup *dashboard.Rollup `json:"rollup"`
}

func (r *RevenueController) HandleGetEvent(c *fiber.Ctx) error {
	id := strings.TrimSpace(c.Params("event_id"))
	if id == "" {
		return fiber.NewError(fiber.StatusBadRequest, "event_id is required")
	}

	ev, err := r.reporting.Event(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.JSON(ev)
}

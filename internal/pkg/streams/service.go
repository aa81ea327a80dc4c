// Package streams keeps the catalogue of revenue streams: planned or running
// income sources with their current and potential monthly revenue.
package streams

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/ManuelReschke/RevenueLedger/app/models"
	"github.com/ManuelReschke/RevenueLedger/app/repository"
)

var (
	ErrNotFound       = errors.New("streams: stream not found")
	ErrInvalidRequest = errors.New("streams: invalid request")
	ErrUnavailable    = errors.New("streams: storage unavailable")
)

var validate = validator.New()

// CreateInput describes a new stream. Amounts are in minor units of Currency
// and capped at one million in major units.
type CreateInput struct {
	Name             string  `json:"name" validate:"required,max=200"`
	Category         string  `json:"category" validate:"required,oneof=api product service consulting"`
	Currency         string  `json:"currency" validate:"required,len=3,alpha"`
	MonthlyRevenue   int64   `json:"monthly_revenue" validate:"gte=0,lte=100000000"`
	PotentialMonthly int64   `json:"potential_monthly" validate:"gte=0,lte=100000000"`
	GrowthRate       float64 `json:"growth_rate" validate:"gte=-100,lte=10000"`
	Notes            string  `json:"notes" validate:"max=1000"`
}

// UpdateInput changes only the fields that are set. Name, category and
// currency are fixed once a stream exists.
type UpdateInput struct {
	MonthlyRevenue   *int64   `json:"monthly_revenue" validate:"omitempty,gte=0,lte=100000000"`
	PotentialMonthly *int64   `json:"potential_monthly" validate:"omitempty,gte=0,lte=100000000"`
	GrowthRate       *float64 `json:"growth_rate" validate:"omitempty,gte=-100,lte=10000"`
	Notes            *string  `json:"notes" validate:"omitempty,max=1000"`
}

func (u UpdateInput) empty() bool {
	return u.MonthlyRevenue == nil && u.PotentialMonthly == nil && u.GrowthRate == nil && u.Notes == nil
}

// Totals sums streams. RevenueGap is potential minus current monthly revenue;
// AvgGrowthRate is the plain mean over streams.
type Totals struct {
	Currency              string  `json:"currency,omitempty"`
	TotalStreams          int64   `json:"total_streams"`
	TotalMonthlyRevenue   int64   `json:"total_monthly_revenue"`
	TotalPotentialRevenue int64   `json:"total_potential_revenue"`
	AvgGrowthRate         float64 `json:"avg_growth_rate"`
	RevenueGap            int64   `json:"revenue_gap"`
}

// Summary carries overall totals and the same figures per currency. The
// overall amounts add minor units across currencies, so they are only
// meaningful when a single currency is in use or a currency filter is set.
type Summary struct {
	Totals
	ByCurrency []Totals `json:"by_currency"`
}

type Service struct {
	repo repository.RevenueStreamRepository
}

func NewService(repo repository.RevenueStreamRepository) *Service {
	return &Service{repo: repo}
}

func (s *Service) Create(ctx context.Context, in CreateInput) (*models.RevenueStream, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Category = strings.ToLower(strings.TrimSpace(in.Category))
	in.Currency = strings.ToUpper(strings.TrimSpace(in.Currency))
	in.Notes = strings.TrimSpace(in.Notes)
	if err := validate.Struct(in); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}

	stream := &models.RevenueStream{
		Name:             in.Name,
		Category:         in.Category,
		Currency:         in.Currency,
		MonthlyRevenue:   in.MonthlyRevenue,
		PotentialMonthly: in.PotentialMonthly,
		GrowthRate:       in.GrowthRate,
		Notes:            in.Notes,
	}
	if err := s.repo.Create(ctx, stream); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	log.Infof("[Streams] created stream %d (%s, %s)", stream.ID, stream.Category, stream.Currency)
	return stream, nil
}

func (s *Service) Get(ctx context.Context, id uint64) (*models.RevenueStream, error) {
	stream, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, s.lookupErr(err)
	}
	return stream, nil
}

func (s *Service) List(ctx context.Context, offset, limit int) ([]models.RevenueStream, error) {
	out, err := s.repo.List(ctx, offset, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return out, nil
}

// Update applies in and returns the stored stream.
func (s *Service) Update(ctx context.Context, id uint64, in UpdateInput) (*models.RevenueStream, error) {
	if in.empty() {
		return nil, fmt.Errorf("%w: no fields to update", ErrInvalidRequest)
	}
	if err := validate.Struct(in); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}

	fields := map[string]any{}
	if in.MonthlyRevenue != nil {
		fields["monthly_revenue"] = *in.MonthlyRevenue
	}
	if in.PotentialMonthly != nil {
		fields["potential_monthly"] = *in.PotentialMonthly
	}
	if in.GrowthRate != nil {
		fields["growth_rate"] = *in.GrowthRate
	}
	if in.Notes != nil {
		fields["notes"] = strings.TrimSpace(*in.Notes)
	}
	if err := s.repo.Update(ctx, id, fields); err != nil {
		return nil, s.lookupErr(err)
	}
	log.Infof("[Streams] updated stream %d", id)
	return s.Get(ctx, id)
}

// Summary totals all streams, or only those in currency when it is set.
func (s *Service) Summary(ctx context.Context, currency string) (*Summary, error) {
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if currency != "" {
		if err := validate.Var(currency, "len=3,alpha"); err != nil {
			return nil, fmt.Errorf("%w: invalid currency", ErrInvalidRequest)
		}
	}
	rows, err := s.repo.TotalsByCurrency(ctx, currency)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}

	out := &Summary{ByCurrency: make([]Totals, 0, len(rows))}
	var growthSum float64
	for _, r := range rows {
		out.ByCurrency = append(out.ByCurrency, totals(r.Currency, r.Streams, r.MonthlyRevenue, r.PotentialMonthly, r.GrowthRateSum))
		out.TotalStreams += r.Streams
		out.TotalMonthlyRevenue += r.MonthlyRevenue
		out.TotalPotentialRevenue += r.PotentialMonthly
		growthSum += r.GrowthRateSum
	}
	out.Totals = totals(currency, out.TotalStreams, out.TotalMonthlyRevenue, out.TotalPotentialRevenue, growthSum)
	return out, nil
}

func totals(currency string, n, monthly, potential int64, growthSum float64) Totals {
	t := Totals{
		Currency:              currency,
		TotalStreams:          n,
		TotalMonthlyRevenue:   monthly,
		TotalPotentialRevenue: potential,
		RevenueGap:            potential - monthly,
	}
	if n > 0 {
		t.AvgGrowthRate = growthSum / float64(n)
	}
	return t
}

func (s *Service) lookupErr(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return fmt.Errorf("%w: %w", ErrUnavailable, err)
}

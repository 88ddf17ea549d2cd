package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"frontdesk/internal/billing"
	"frontdesk/internal/domain"
	"frontdesk/internal/models"

	"github.com/rs/zerolog"
)

// InvoiceService owns billing state: a cache of invoices, their derived
// totals, and the paid-revenue aggregate. It follows the same optimistic
// contract as the desk service: local apply first, remote call second, no
// rollback on failure, Refresh as the repair path.
type InvoiceService struct {
	store      domain.RemoteStore
	revenue    *billing.RevenueTracker
	reconciler domain.ReconcileScheduler
	logger     *zerolog.Logger

	mu       sync.Mutex
	invoices map[int64]models.Invoice
}

// NewInvoiceService wires the service. reconciler may be nil in tests.
func NewInvoiceService(remote domain.RemoteStore, revenue *billing.RevenueTracker, reconciler domain.ReconcileScheduler, logger *zerolog.Logger) *InvoiceService {
	return &InvoiceService{
		store:      remote,
		revenue:    revenue,
		reconciler: reconciler,
		logger:     logger,
		invoices:   make(map[int64]models.Invoice),
	}
}

// SetScheduler attaches the reconcile scheduler after construction; the
// reconciler itself depends on Refresh, so the two are wired in two steps.
func (s *InvoiceService) SetScheduler(reconciler domain.ReconcileScheduler) {
	s.reconciler = reconciler
}

// CreateInvoice opens a bill for a stay. Totals are derived before the
// invoice is ever visible.
func (s *InvoiceService) CreateInvoice(ctx context.Context, inv models.Invoice) (*models.Invoice, error) {
	if inv.Status == "" {
		inv.Status = models.InvoicePending
	}
	now := time.Now()
	inv.CreatedAt = now
	inv.UpdatedAt = now
	billing.Recalculate(&inv)

	if _, err := s.store.CreateInvoice(ctx, &inv); err != nil {
		return nil, fmt.Errorf("%w: create invoice: %v", domain.ErrRemoteWriteFailed, err)
	}

	s.mu.Lock()
	s.invoices[inv.ID] = inv
	s.mu.Unlock()
	return &inv, nil
}

// GetInvoice returns a cached invoice.
func (s *InvoiceService) GetInvoice(id int64) (*models.Invoice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	inv, ok := s.invoices[id]
	if !ok {
		return nil, fmt.Errorf("%w: invoice %d", domain.ErrNotFound, id)
	}
	return &inv, nil
}

// ListInvoices returns all cached invoices.
func (s *InvoiceService) ListInvoices() []models.Invoice {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Invoice, 0, len(s.invoices))
	for _, inv := range s.invoices {
		out = append(out, inv)
	}
	return out
}

// AddServiceItem appends a billable extra and recomputes the totals
// atomically. Paid invoices are immutable.
func (s *InvoiceService) AddServiceItem(ctx context.Context, id int64, item models.ServiceItem) (*models.Invoice, error) {
	return s.edit(ctx, id, func(inv *models.Invoice) {
		inv.Services = append(inv.Services, item)
	})
}

// RemoveServiceItem drops the extra at index and recomputes totals.
func (s *InvoiceService) RemoveServiceItem(ctx context.Context, id int64, index int) (*models.Invoice, error) {
	var outOfRange bool
	inv, err := s.edit(ctx, id, func(inv *models.Invoice) {
		if index < 0 || index >= len(inv.Services) {
			outOfRange = true
			return
		}
		inv.Services = append(inv.Services[:index], inv.Services[index+1:]...)
	})
	if err != nil {
		return nil, err
	}
	if outOfRange {
		return nil, fmt.Errorf("%w: service item %d on invoice %d", domain.ErrNotFound, index, id)
	}
	return inv, nil
}

// SetRoomRate changes the nightly rate and recomputes totals.
func (s *InvoiceService) SetRoomRate(ctx context.Context, id int64, rate float64) (*models.Invoice, error) {
	return s.edit(ctx, id, func(inv *models.Invoice) {
		inv.RoomRate = rate
	})
}

func (s *InvoiceService) edit(ctx context.Context, id int64, apply func(*models.Invoice)) (*models.Invoice, error) {
	s.mu.Lock()
	inv, ok := s.invoices[id]
	if !ok {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: invoice %d", domain.ErrNotFound, id)
	}
	if inv.Status != models.InvoicePending {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: invoice %d is %s and cannot be edited", domain.ErrInvalidTransition, id, inv.Status)
	}

	inv.Services = append([]models.ServiceItem(nil), inv.Services...)
	apply(&inv)
	billing.Recalculate(&inv)
	inv.UpdatedAt = time.Now()
	s.invoices[id] = inv
	s.mu.Unlock()

	if err := s.store.UpdateInvoice(ctx, inv); err != nil {
		s.scheduleRefresh("invoice edit")
		return &inv, fmt.Errorf("%w: update invoice %d: %v", domain.ErrRemoteWriteFailed, id, err)
	}
	return &inv, nil
}

// SetStatus moves the invoice through its payment machine and adjusts the
// revenue aggregate per the transition rule: into paid adds the total, out
// of paid subtracts it.
func (s *InvoiceService) SetStatus(ctx context.Context, id int64, to models.InvoiceStatus) (*models.Invoice, error) {
	s.mu.Lock()
	inv, ok := s.invoices[id]
	if !ok {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: invoice %d", domain.ErrNotFound, id)
	}
	from := inv.Status
	if err := billing.ValidateStatusTransition(from, to); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	inv.Status = to
	inv.UpdatedAt = time.Now()
	s.invoices[id] = inv
	s.mu.Unlock()

	s.revenue.ApplyTransition(from, to, inv.TotalAmount)

	if err := s.store.UpdateInvoice(ctx, inv); err != nil {
		s.scheduleRefresh("invoice status")
		return &inv, fmt.Errorf("%w: update invoice %d: %v", domain.ErrRemoteWriteFailed, id, err)
	}
	return &inv, nil
}

// Revenue returns the current paid-revenue aggregate.
func (s *InvoiceService) Revenue() float64 {
	return s.revenue.Total()
}

// UpdateRevenueStats patches the displayed aggregate directly: with reset
// the figure is replaced, otherwise shifted. Exposed for UI surfaces that
// carry their own correction flows.
func (s *InvoiceService) UpdateRevenueStats(amount float64, reset bool) float64 {
	if reset {
		s.revenue.Reset(amount)
		return amount
	}
	return s.revenue.Add(amount)
}

// Refresh replaces the cache from the remote store and re-derives the
// revenue aggregate from the authoritative paid set. Used as the
// reconciler's post-apply hook, so invoice state converges together with
// rooms and reservations.
func (s *InvoiceService) Refresh(ctx context.Context) error {
	invoices, err := s.store.ListInvoices(ctx)
	if err != nil {
		return fmt.Errorf("refresh invoices: %w", err)
	}

	s.mu.Lock()
	s.invoices = make(map[int64]models.Invoice, len(invoices))
	for _, inv := range invoices {
		s.invoices[inv.ID] = inv
	}
	s.mu.Unlock()

	s.revenue.Reset(billing.SumPaid(invoices))
	return nil
}

func (s *InvoiceService) scheduleRefresh(reason string) {
	if s.reconciler != nil {
		s.reconciler.Schedule(reason)
	}
}

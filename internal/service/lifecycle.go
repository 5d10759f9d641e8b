package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/dentlab/api/internal/database"
	"github.com/dentlab/api/internal/events"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// MarkPaid records payment of a pending order. Admin only.
func (s *OrderService) MarkPaid(ctx context.Context, p Principal, orderID uuid.UUID) (database.Order, error) {
	if !p.IsAdmin() {
		return database.Order{}, ErrAccessDenied
	}
	order, err := s.lifecycle.MarkOrderPaid(ctx, orderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.Order{}, s.transitionError(ctx, orderID, ErrAlreadyPaid)
		}
		return database.Order{}, fmt.Errorf("mark order paid: %w", err)
	}
	s.publish(ctx, events.OrderPaid, order)
	return order, nil
}

// Cancel withdraws a pending order. Clinics may cancel only their own orders.
func (s *OrderService) Cancel(ctx context.Context, p Principal, orderID uuid.UUID) (database.Order, error) {
	current, err := s.lifecycle.GetOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.Order{}, ErrOrderNotFound
		}
		return database.Order{}, fmt.Errorf("get order: %w", err)
	}
	if !p.Scope().Allows(current.ClinicID) {
		return database.Order{}, ErrAccessDenied
	}

	order, err := s.lifecycle.CancelOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.Order{}, s.transitionError(ctx, orderID, ErrCannotCancelPaid)
		}
		return database.Order{}, fmt.Errorf("cancel order: %w", err)
	}
	s.publish(ctx, events.OrderCancelled, order)
	return order, nil
}

// transitionError explains why a compare-and-set from pending matched no row.
func (s *OrderService) transitionError(ctx context.Context, orderID uuid.UUID, whenPaid error) error {
	order, err := s.lifecycle.GetOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrOrderNotFound
		}
		return fmt.Errorf("get order: %w", err)
	}
	switch order.Status {
	case database.OrderStatusPaid:
		return whenPaid
	case database.OrderStatusCancelled:
		return ErrInvalidTransition
	}
	// Still pending: the row changed between the update and this read.
	return ErrInvalidTransition
}

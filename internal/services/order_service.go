package services

import (
	"context"
	"errors"

	"storefront/internal/apperrors"
	"storefront/internal/models"
	"storefront/internal/repositories"
)

// OrderService serves read access to orders for customers and admins.
// Orders are only ever written by CheckoutService.
type OrderService struct {
	orderRepo repositories.OrderRepository
}

// NewOrderService creates a new OrderService.
func NewOrderService(orderRepo repositories.OrderRepository) *OrderService {
	return &OrderService{
		orderRepo: orderRepo,
	}
}

// GetAllOrders retrieves all orders, newest first.
func (s *OrderService) GetAllOrders(ctx context.Context) ([]models.Order, error) {
	orders, err := s.orderRepo.GetAll(ctx)
	if err != nil {
		return nil, apperrors.Persistence("could not retrieve orders", err)
	}
	return orders, nil
}

// GetOrderByID retrieves a single order by its ID.
func (s *OrderService) GetOrderByID(ctx context.Context, id string) (*models.Order, error) {
	order, err := s.orderRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, apperrors.NotFound("order not found")
		}
		return nil, apperrors.Persistence("could not retrieve order", err)
	}
	return order, nil
}

// GetUserOrders retrieves the orders of one customer, newest first.
func (s *OrderService) GetUserOrders(ctx context.Context, userID string) ([]models.Order, error) {
	orders, err := s.orderRepo.GetByUser(ctx, userID)
	if err != nil {
		return nil, apperrors.Persistence("could not retrieve orders", err)
	}
	return orders, nil
}

// GetUserOrder returns one of the customer's orders. Orders of other
// customers are reported as not found.
func (s *OrderService) GetUserOrder(ctx context.Context, userID, id string) (*models.Order, error) {
	order, err := s.GetOrderByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if order.UserID != userID {
		return nil, apperrors.NotFound("order not found")
	}
	return order, nil
}

// GetUserOrderByTxRef returns the customer's order behind a transaction
// reference. Orders of other customers are reported as not found.
func (s *OrderService) GetUserOrderByTxRef(ctx context.Context, userID, txRef string) (*models.Order, error) {
	order, err := s.orderRepo.GetByTxRef(ctx, txRef)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, apperrors.NotFound("order not found")
		}
		return nil, apperrors.Persistence("could not retrieve order", err)
	}
	if order.UserID != userID {
		return nil, apperrors.NotFound("order not found")
	}
	return order, nil
}

// GetUserStats summarises a customer's order history.
func (s *OrderService) GetUserStats(ctx context.Context, userID string) (*models.OrderStats, error) {
	stats, err := s.orderRepo.StatsForUser(ctx, userID)
	if err != nil {
		return nil, apperrors.Persistence("could not compute order stats", err)
	}
	return stats, nil
}

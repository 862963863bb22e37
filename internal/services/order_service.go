package services

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"go.uber.org/zap"

	"storefront-backend/internal/models"
)

// CSVHeader is the header row of the order export
var CSVHeader = []string{"OrderID", "Date", "CustomerName", "Email", "Phone", "Address", "Total", "Items"}

// OrderService turns verified payment callbacks into orders and serves the
// admin order console
type OrderService struct {
	orders    OrderStore
	payments  *PaymentService
	publisher EventPublisher
	notifier  OrderNotifier
	logger    *zap.Logger
	now       func() time.Time
}

// NewOrderService creates a new order service. publisher and notifier may
// be nil.
func NewOrderService(orders OrderStore, payments *PaymentService, publisher EventPublisher, notifier OrderNotifier, logger *zap.Logger) *OrderService {
	return &OrderService{
		orders:    orders,
		payments:  payments,
		publisher: publisher,
		notifier:  notifier,
		logger:    logger,
		now:       time.Now,
	}
}

// CapturePayment verifies the gateway signature and only then persists the
// order. A rejected signature is final and nothing is written.
func (s *OrderService) CapturePayment(ctx context.Context, req *models.CaptureRequest) (*models.Order, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	if !s.payments.VerifyCallback(req.GatewayOrderID, req.PaymentID, req.Signature) {
		s.logger.Warn("payment signature rejected",
			zap.String("gateway_order_id", req.GatewayOrderID),
			zap.String("payment_id", req.PaymentID),
			zap.String("client_ip", req.ClientIP),
		)
		return nil, models.NewError(models.ErrSignatureInvalid, "Invalid signature", nil)
	}

	details := req.OrderDetails
	items := make([]models.OrderItem, len(details.Items))
	copy(items, details.Items)

	order := &models.Order{
		OrderID:       req.GatewayOrderID,
		Date:          s.now().UTC(),
		User:          details.User,
		Total:         *details.Total,
		Items:         items,
		PaymentStatus: models.PaymentStatusConfirmed,
		GatewayRef: models.GatewayRef{
			OrderID:   req.GatewayOrderID,
			PaymentID: req.PaymentID,
			Signature: req.Signature,
		},
		ShippingStatus: models.ShippingPending,
	}

	if err := s.orders.Create(ctx, order); err != nil {
		if errors.Is(err, models.ErrConflict) {
			s.logger.Warn("duplicate payment capture", zap.String("gateway_order_id", req.GatewayOrderID))
		} else {
			s.logger.Error("failed to persist order", zap.String("order_id", order.OrderID), zap.Error(err))
		}
		return nil, err
	}

	s.logger.Info("order confirmed",
		zap.String("order_id", order.OrderID),
		zap.Int("items", len(order.Items)),
		zap.Stringer("total", order.Total),
	)

	publish(ctx, s.publisher, s.logger, NewEvent(EventOrderConfirmed, order.OrderID, order))
	if s.notifier != nil {
		s.notifier.PublishOrder(order)
	}
	return order, nil
}

// GetOrder retrieves a single order
func (s *OrderService) GetOrder(ctx context.Context, orderID string) (*models.Order, error) {
	return s.orders.Get(ctx, orderID)
}

// ListOrders returns one page of orders, newest first
func (s *OrderService) ListOrders(ctx context.Context, q models.OrderQuery) (*models.OrderPage, error) {
	q.Normalize()
	orders, total, err := s.orders.List(ctx, q)
	if err != nil {
		return nil, err
	}
	return &models.OrderPage{
		Orders:      orders,
		TotalPages:  models.TotalPages(total, q.Limit),
		CurrentPage: q.Page,
		TotalOrders: total,
	}, nil
}

// UpdateShipping changes the shipping status and tracking of an order
func (s *OrderService) UpdateShipping(ctx context.Context, orderID string, update models.ShippingUpdate) (*models.Order, error) {
	status, err := models.ParseShippingStatus(update.Status)
	if err != nil {
		return nil, err
	}
	if update.Tracking != nil {
		update.Tracking.Carrier = strings.TrimSpace(update.Tracking.Carrier)
		update.Tracking.Number = strings.TrimSpace(update.Tracking.Number)
		if update.Tracking.Carrier == "" && update.Tracking.Number == "" {
			update.Tracking = nil
		}
	}

	order, err := s.orders.UpdateShipping(ctx, orderID, status, update.Tracking)
	if err != nil {
		return nil, err
	}
	s.logger.Info("order shipping updated", zap.String("order_id", orderID), zap.String("status", string(status)))
	return order, nil
}

// ExportCSV writes every order as CSV. Fields containing a comma, quote or
// newline are quoted with doubled inner quotes.
func (s *OrderService) ExportCSV(ctx context.Context, w io.Writer) error {
	orders, err := s.orders.All(ctx)
	if err != nil {
		return err
	}

	writer := csv.NewWriter(w)
	if err := writer.Write(CSVHeader); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}
	for _, o := range orders {
		if err := writer.Write(orderRecord(o)); err != nil {
			return fmt.Errorf("failed to write csv row: %w", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("failed to flush csv: %w", err)
	}
	return nil
}

func orderRecord(o *models.Order) []string {
	items := make([]string, len(o.Items))
	for i, item := range o.Items {
		items[i] = fmt.Sprintf("%s x%d", item.Name, item.Quantity)
	}
	return []string{
		o.OrderID,
		o.Date.UTC().Format(time.RFC3339),
		o.User.FullName(),
		o.User.Email,
		o.User.Phone,
		o.User.FullAddress(),
		o.Total.StringFixed(2),
		strings.Join(items, "; "),
	}
}

package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"storefront-backend/internal/utils"
)

// PaymentStatus of an order
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusConfirmed PaymentStatus = "confirmed"
)

// ShippingStatus of an order
type ShippingStatus string

const (
	ShippingPending   ShippingStatus = "Pending"
	ShippingShipped   ShippingStatus = "Shipped"
	ShippingDelivered ShippingStatus = "Delivered"
	ShippingCancelled ShippingStatus = "Cancelled"
)

// ParseShippingStatus accepts a known shipping status, case-insensitively
func ParseShippingStatus(s string) (ShippingStatus, error) {
	for _, status := range []ShippingStatus{ShippingPending, ShippingShipped, ShippingDelivered, ShippingCancelled} {
		if strings.EqualFold(strings.TrimSpace(s), string(status)) {
			return status, nil
		}
	}
	return "", Validationf("Invalid shipping status: %s", s)
}

// Customer is the buyer recorded on an order
type Customer struct {
	Firstname  string `json:"firstname"`
	Lastname   string `json:"lastname"`
	Email      string `json:"email"`
	Phone      string `json:"phone"`
	Address    string `json:"address"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postalCode"`
	Country    string `json:"country"`
}

// FullName returns "firstname lastname"
func (c Customer) FullName() string {
	return strings.TrimSpace(c.Firstname + " " + c.Lastname)
}

// FullAddress joins the non-empty address parts
func (c Customer) FullAddress() string {
	var parts []string
	for _, p := range []string{c.Address, c.City, c.State, c.PostalCode, c.Country} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}

// OrderItem is a product line captured at purchase time
type OrderItem struct {
	ProductRef int             `json:"productRef"`
	Name       string          `json:"name"`
	Quantity   int             `json:"quantity"`
	Price      decimal.Decimal `json:"price"`
}

// GatewayRef is the payment gateway's proof of payment
type GatewayRef struct {
	OrderID   string `json:"orderId"`
	PaymentID string `json:"paymentId"`
	Signature string `json:"signature"`
}

// Tracking is the carrier reference of a shipped order
type Tracking struct {
	Carrier string `json:"carrier"`
	Number  string `json:"number"`
}

// Order is a confirmed purchase. Only ShippingStatus and Tracking change
// after creation.
type Order struct {
	OrderID        string          `json:"orderId"`
	Date           time.Time       `json:"date"`
	User           Customer        `json:"user"`
	Total          decimal.Decimal `json:"total"`
	Items          []OrderItem     `json:"items"`
	PaymentStatus  PaymentStatus   `json:"paymentStatus"`
	GatewayRef     GatewayRef      `json:"gatewayRef"`
	ShippingStatus ShippingStatus  `json:"shippingStatus"`
	Tracking       *Tracking       `json:"tracking,omitempty"`
}

// OrderDetails is the client-supplied part of a capture request
type OrderDetails struct {
	User  Customer         `json:"user"`
	Items []OrderItem      `json:"items"`
	Total *decimal.Decimal `json:"total"`
}

// Validate checks the shape of the order details and normalizes the
// customer email so stored orders compare by address
func (d *OrderDetails) Validate() error {
	if strings.TrimSpace(d.User.Firstname) == "" || strings.TrimSpace(d.User.Lastname) == "" {
		return Validationf("Customer first and last name are required")
	}
	d.User.Email = utils.NormalizeEmail(d.User.Email)
	if strings.TrimSpace(d.User.Email) == "" {
		return Validationf("Customer email is required")
	}
	if !utils.IsValidEmail(d.User.Email) {
		return Validationf("Customer email is invalid")
	}
	if strings.TrimSpace(d.User.Phone) == "" {
		return Validationf("Customer phone is required")
	}
	if d.Total == nil {
		return Validationf("Order total is required")
	}
	if d.Total.IsNegative() {
		return Validationf("Order total must not be negative")
	}
	if len(d.Items) == 0 {
		return Validationf("Order must contain at least one item")
	}
	for i, item := range d.Items {
		if item.ProductRef <= 0 {
			return Validationf("Item %d has an invalid product reference", i+1)
		}
		if item.Quantity < 1 {
			return Validationf("Item %d quantity must be at least 1", i+1)
		}
		if item.Price.IsNegative() {
			return Validationf("Item %d price must not be negative", i+1)
		}
	}
	return nil
}

// OrderQuery selects a page of orders for the admin console
type OrderQuery struct {
	ShippingStatus ShippingStatus
	Page           int
	Limit          int
}

// Normalize clamps paging to its bounds
func (q *OrderQuery) Normalize() {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Limit < 1 {
		q.Limit = 20
	}
	if q.Limit > MaxPageSize {
		q.Limit = MaxPageSize
	}
}

// OrderPage is one page of orders
type OrderPage struct {
	Orders      []*Order `json:"orders"`
	TotalPages  int      `json:"totalPages"`
	CurrentPage int      `json:"currentPage"`
	TotalOrders int      `json:"totalOrders"`
}

// CaptureRequest is the payment callback forwarded by the client after the
// gateway checkout completes
type CaptureRequest struct {
	GatewayOrderID string        `json:"gatewayOrderId"`
	PaymentID      string        `json:"paymentId"`
	Signature      string        `json:"signature"`
	OrderDetails   *OrderDetails `json:"orderDetails"`

	// ClientIP is recorded for security logging only
	ClientIP string `json:"-"`
}

// Validate requires every top-level field and a well-formed order
func (r *CaptureRequest) Validate() error {
	if strings.TrimSpace(r.GatewayOrderID) == "" || strings.TrimSpace(r.PaymentID) == "" ||
		strings.TrimSpace(r.Signature) == "" || r.OrderDetails == nil {
		return Validationf("gatewayOrderId, paymentId, signature and orderDetails are required")
	}
	return r.OrderDetails.Validate()
}

// ShippingUpdate changes the fulfilment state of an order
type ShippingUpdate struct {
	Status   string    `json:"status"`
	Tracking *Tracking `json:"tracking,omitempty"`
}

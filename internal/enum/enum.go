package enum

// ── Order state machine (Postgres enum order_status) ──

const (
	OrderStatusPending   = "pending"
	OrderStatusPaid      = "paid"
	OrderStatusCancelled = "cancelled"
)

// ── Principal roles (Postgres enum user_role) ──

const (
	RoleAdmin  = "admin"
	RoleClinic = "clinic"
)

// ValidOrderStatus reports whether s names an order status.
func ValidOrderStatus(s string) bool {
	switch s {
	case OrderStatusPending, OrderStatusPaid, OrderStatusCancelled:
		return true
	}
	return false
}

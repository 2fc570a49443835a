package messages

import "time"

// OrderStatusChanged is published after a status transition has been committed.
// Key on the wire is the tracking code, so all changes of one order stay in one partition.
type OrderStatusChanged struct {
	EventID      string    `json:"event_id"`
	OrderID      int64     `json:"order_id"`
	TrackingCode string    `json:"tracking_code"`
	FromStatus   string    `json:"from_status"`
	ToStatus     string    `json:"to_status"`
	Location     string    `json:"location"`
	Notes        string    `json:"notes,omitempty"`
	ActingUserID *int64    `json:"acting_user_id,omitempty"`
	OccurredAt   time.Time `json:"occurred_at"`
}

package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusPending        Status = "pending"
	StatusInTransit      Status = "in_transit"
	StatusOutForDelivery Status = "out_for_delivery"
	StatusDelivered      Status = "delivered"
	StatusCancelled      Status = "cancelled"
)

var Statuses = []Status{
	StatusPending,
	StatusInTransit,
	StatusOutForDelivery,
	StatusDelivered,
	StatusCancelled,
}

func (s Status) Valid() bool {
	for _, v := range Statuses {
		if s == v {
			return true
		}
	}
	return false
}

// Terminal statuses accept no further transitions.
func (s Status) Terminal() bool {
	return s == StatusDelivered || s == StatusCancelled
}

type ServiceClass string

const (
	ServiceStandard      ServiceClass = "standard"
	ServiceExpress       ServiceClass = "express"
	ServiceOvernight     ServiceClass = "overnight"
	ServiceInternational ServiceClass = "international"
)

var serviceTransitDays = map[ServiceClass]int{
	ServiceStandard:      3,
	ServiceExpress:       1,
	ServiceOvernight:     1,
	ServiceInternational: 7,
}

func (c ServiceClass) Valid() bool {
	_, ok := serviceTransitDays[c]
	return ok
}

// EstimatedDelivery returns the calendar date (UTC midnight) the order is expected on
// when it is created at now.
func (c ServiceClass) EstimatedDelivery(now time.Time) time.Time {
	days, ok := serviceTransitDays[c]
	if !ok {
		days = serviceTransitDays[ServiceStandard]
	}
	y, m, d := now.UTC().Date()
	return time.Date(y, m, d+days, 0, 0, 0, 0, time.UTC)
}

type Party struct {
	Name    string `json:"name"`
	Address string `json:"address"`
	Phone   string `json:"phone,omitempty"`
	Email   string `json:"email,omitempty"`
}

type Order struct {
	ID           int64  `json:"id"`
	TrackingCode string `json:"tracking_code"`

	Sender    Party `json:"sender"`
	Recipient Party `json:"recipient"`

	Weight              decimal.Decimal `json:"package_weight"`
	Dimensions          string          `json:"package_dimensions,omitempty"`
	ServiceClass        ServiceClass    `json:"service_class"`
	SpecialInstructions string          `json:"special_instructions,omitempty"`

	Status                Status     `json:"status"`
	CurrentLocation       string     `json:"current_location"`
	EstimatedDeliveryDate time.Time  `json:"estimated_delivery_date"`
	ActualDeliveryDate    *time.Time `json:"actual_delivery_date,omitempty"`

	UserID *int64 `json:"user_id,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type TrackingEvent struct {
	ID           int64     `json:"id"`
	OrderID      int64     `json:"order_id"`
	Status       Status    `json:"status"`
	Location     string    `json:"location"`
	Notes        string    `json:"notes,omitempty"`
	ActingUserID *int64    `json:"acting_user_id,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// OrderInput is what a customer submits; everything else on Order is server-assigned.
type OrderInput struct {
	Sender              Party
	Recipient           Party
	Weight              decimal.Decimal
	Dimensions          string
	ServiceClass        ServiceClass
	SpecialInstructions string
}

type OrderFilter struct {
	Status *Status
	Search string
}

type OrderStats struct {
	Total          int64 `json:"total"`
	Pending        int64 `json:"pending"`
	InTransit      int64 `json:"in_transit"`
	OutForDelivery int64 `json:"out_for_delivery"`
	Delivered      int64 `json:"delivered"`
	Cancelled      int64 `json:"cancelled"`
}

// Actor is the caller identity handed in by the authorization gate.
type Actor struct {
	UserID     *int64
	Privileged bool
}

// SystemActor is used for transitions that no user performed (scanner feeds).
func SystemActor() Actor {
	return Actor{Privileged: true}
}

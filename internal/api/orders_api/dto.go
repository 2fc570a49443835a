package orders_api

import (
	"encoding/json"
	"time"

	"github.com/BearBump/LogiTrack/internal/models"
	"github.com/BearBump/LogiTrack/internal/services/tracking"
	"github.com/shopspring/decimal"
)

const dateLayout = "2006-01-02"

type envelope struct {
	Success bool                `json:"success"`
	Data    any                 `json:"data,omitempty"`
	Error   string              `json:"error,omitempty"`
	Details []models.FieldError `json:"details,omitempty"`
}

type createOrderRequest struct {
	SenderName          string          `json:"sender_name"`
	SenderAddress       string          `json:"sender_address"`
	SenderPhone         string          `json:"sender_phone"`
	SenderEmail         string          `json:"sender_email"`
	RecipientName       string          `json:"recipient_name"`
	RecipientAddress    string          `json:"recipient_address"`
	RecipientPhone      string          `json:"recipient_phone"`
	RecipientEmail      string          `json:"recipient_email"`
	PackageWeight       json.RawMessage `json:"package_weight"`
	PackageDimensions   string          `json:"package_dimensions"`
	ServiceClass        string          `json:"service_class"`
	SpecialInstructions string          `json:"special_instructions"`
}

// weight accepts 1.5 and "1.5". Anything else yields zero, which validation
// reports under package_weight.
func (r createOrderRequest) weight() decimal.Decimal {
	var w decimal.Decimal
	if len(r.PackageWeight) == 0 || w.UnmarshalJSON(r.PackageWeight) != nil {
		return decimal.Zero
	}
	return w
}

func (r createOrderRequest) toInput() models.OrderInput {
	return models.OrderInput{
		Sender: models.Party{
			Name: r.SenderName, Address: r.SenderAddress, Phone: r.SenderPhone, Email: r.SenderEmail,
		},
		Recipient: models.Party{
			Name: r.RecipientName, Address: r.RecipientAddress, Phone: r.RecipientPhone, Email: r.RecipientEmail,
		},
		Weight:              r.weight(),
		Dimensions:          r.PackageDimensions,
		ServiceClass:        models.ServiceClass(r.ServiceClass),
		SpecialInstructions: r.SpecialInstructions,
	}
}

type createOrderResponse struct {
	ID                    int64         `json:"id"`
	TrackingCode          string        `json:"tracking_code"`
	EstimatedDeliveryDate string        `json:"estimated_delivery_date"`
	Status                models.Status `json:"status"`
}

type updateStatusRequest struct {
	Status   string `json:"status"`
	Location string `json:"location"`
	Notes    string `json:"notes"`
}

type timelineEntry struct {
	Status    models.Status `json:"status"`
	Location  string        `json:"location"`
	Notes     string        `json:"notes,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
}

type trackResponse struct {
	TrackingCode          string          `json:"tracking_code"`
	SenderName            string          `json:"sender_name"`
	SenderAddress         string          `json:"sender_address"`
	RecipientName         string          `json:"recipient_name"`
	RecipientAddress      string          `json:"recipient_address"`
	PackageWeight         decimal.Decimal `json:"package_weight"`
	ServiceClass          string          `json:"service_class"`
	Status                models.Status   `json:"status"`
	CurrentLocation       string          `json:"current_location"`
	EstimatedDeliveryDate string          `json:"estimated_delivery_date"`
	ActualDeliveryDate    *time.Time      `json:"actual_delivery_date,omitempty"`
	SpecialInstructions   string          `json:"special_instructions,omitempty"`
	Timeline              []timelineEntry `json:"timeline"`
}

func toTrackResponse(s *tracking.Snapshot) trackResponse {
	o := s.Order
	out := trackResponse{
		TrackingCode:          o.TrackingCode,
		SenderName:            o.Sender.Name,
		SenderAddress:         o.Sender.Address,
		RecipientName:         o.Recipient.Name,
		RecipientAddress:      o.Recipient.Address,
		PackageWeight:         o.Weight,
		ServiceClass:          string(o.ServiceClass),
		Status:                o.Status,
		CurrentLocation:       o.CurrentLocation,
		EstimatedDeliveryDate: o.EstimatedDeliveryDate.Format(dateLayout),
		ActualDeliveryDate:    o.ActualDeliveryDate,
		SpecialInstructions:   o.SpecialInstructions,
		Timeline:              make([]timelineEntry, 0, len(s.Events)),
	}
	for _, e := range s.Events {
		out.Timeline = append(out.Timeline, timelineEntry{
			Status:    e.Status,
			Location:  e.Location,
			Notes:     e.Notes,
			Timestamp: e.CreatedAt,
		})
	}
	return out
}

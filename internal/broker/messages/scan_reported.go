package messages

import "time"

// ScanReported is what hub scanners send when a parcel passes a checkpoint.
type ScanReported struct {
	TrackingCode string    `json:"tracking_code"`
	Status       string    `json:"status"`
	Location     string    `json:"location"`
	Notes        string    `json:"notes,omitempty"`
	ScannedAt    time.Time `json:"scanned_at"`
}

// internal/domain/entity/flight.go
package entity

import (
	"time"

	"kiosk-flight-service/pkg/shortcode"
)

// Flight is a group of golfers booked on one tee time. ShortCode is the
// number staff type at the kiosk to select it.
type Flight struct {
	ID        string    `json:"id" bson:"_id,omitempty"`
	Name      string    `json:"name" bson:"name"`
	TeeTime   time.Time `json:"teeTime" bson:"teeTime"`
	Players   []string  `json:"players" bson:"players"`
	ShortCode *string   `json:"shortCode,omitempty" bson:"shortCode,omitempty"` // unique when set
	CreatedAt time.Time `json:"createdAt" bson:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt" bson:"updatedAt"`
}

// Code returns the stored short code or "" when none is set
func (f *Flight) Code() string {
	if f.ShortCode == nil {
		return ""
	}
	return *f.ShortCode
}

// HasValidCode reports whether the flight holds a well-formed short code.
// Empty or malformed stored values count as missing.
func (f *Flight) HasValidCode() bool {
	return shortcode.Valid(f.Code())
}

// SetCode assigns code to the flight
func (f *Flight) SetCode(code string) {
	f.ShortCode = &code
}

// BackfillSummary reports the outcome of a backfill run
type BackfillSummary struct {
	AlreadyHadCode int      `json:"alreadyHadCode"`
	NewlyAssigned  int      `json:"newlyAssigned"`
	Failed         int      `json:"failed"`
	FailedIDs      []string `json:"failedIds,omitempty"`
}

// Total returns the number of flights visited
func (s BackfillSummary) Total() int {
	return s.AlreadyHadCode + s.NewlyAssigned + s.Failed
}

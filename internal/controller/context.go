package controller

import (
	"github.com/google/uuid"
)

const (
	roomIDParam    = "room-id"
	patientIDParam = "patient-id"
)

// generateTimeBasedId returns a UUIDv7, so ids sort by creation time.
func (c controller) generateTimeBasedId() string {
	return uuid.Must(uuid.NewV7()).String()
}

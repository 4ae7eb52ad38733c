package domain

import "time"

type InspectionStatus string

const (
	InspectionInProgress InspectionStatus = "in_progress"
	InspectionCompleted  InspectionStatus = "completed"
)

// Property is the slice of the property record the checklist needs. UniqueID
// is the business key shared with the CRM.
type Property struct {
	ID          string
	UniqueID    string
	Address     string
	Bedrooms    int
	Bathrooms   int
	HasElevator bool
	CreatedAt   time.Time
}

type Inspection struct {
	ID             string
	PropertyID     string
	InspectionType string
	Status         InspectionStatus
	CreatedBy      string
	CompletedBy    string
	CompletedAt    *time.Time
	HasElevator    bool
	PublicLinkID   string
	CreatedAt      time.Time
}

type Zone struct {
	ID           string
	InspectionID string
	ZoneType     string
	ZoneName     string
}

// Element is one reportable field of a zone. ElementName is unique per zone.
// Quantity is set for item rows and Exists for the furniture row only.
type Element struct {
	ID          string
	ZoneID      string
	ElementName string
	Condition   string
	Notes       string
	ImageURLs   []string
	VideoURLs   []string
	Quantity    *int
	Exists      *bool
}

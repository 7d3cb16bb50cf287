package eventsapi

// Event is one event record as returned by the backend.
type Event struct {
	EventID       string   `json:"event_id" validate:"required,uuid"`
	EventName     string   `json:"event_name"`
	EventDatetime string   `json:"event_datetime"`
	EventEndtime  string   `json:"event_endtime"`
	EventLocation *string  `json:"event_location,omitempty"`
	Description   *string  `json:"description,omitempty"`
	PictureURL    *string  `json:"picture_url,omitempty"`
	Capacity      *float64 `json:"capacity,omitempty"`
	PriceField    *float64 `json:"price_field,omitempty"`
	UserID        string   `json:"user_id" validate:"required,uuid"`
	CategoryID    string   `json:"category_id" validate:"required,uuid"`
	CreatedAt     string   `json:"created_at,omitempty"`
	UpdatedAt     string   `json:"updated_at,omitempty"`
}

// Location returns the raw event_location value, "" when absent.
func (e Event) Location() string {
	if e.EventLocation == nil {
		return ""
	}
	return *e.EventLocation
}

type EventList struct {
	Items  []Event `json:"items" validate:"dive"`
	Total  int     `json:"total" validate:"min=0"`
	Offset int     `json:"offset" validate:"min=0"`
	Limit  int     `json:"limit" validate:"gt=0"`
}

type ListParams struct {
	Filters []string
	Offset  *int
	Limit   *int
}

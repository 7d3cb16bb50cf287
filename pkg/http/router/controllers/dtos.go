package controllers

import (
	"github.com/lintang-b-s/eventradar/pkg/discovery"
	"github.com/lintang-b-s/eventradar/pkg/geo"
	"github.com/lintang-b-s/eventradar/pkg/http/usecases"
	"github.com/lintang-b-s/eventradar/pkg/locationcodec"
)

type nearbyRequest struct {
	Lat   *float64 `validate:"omitempty,min=-90,max=90"`
	Lon   *float64 `validate:"omitempty,min=-180,max=180"`
	Limit int      `validate:"min=1,max=100"`
}

type withinRequest struct {
	MinLat float64 `validate:"min=-90,max=90"`
	MinLon float64 `validate:"min=-180,max=180"`
	MaxLat float64 `validate:"min=-90,max=90,gtefield=MinLat"`
	MaxLon float64 `validate:"min=-180,max=180"`
}

type aroundRequest struct {
	Lat      float64 `validate:"min=-90,max=90"`
	Lon      float64 `validate:"min=-180,max=180"`
	RadiusKm float64 `validate:"gt=0,lte=500"`
}

// wsMessage is sent by websocket clients: a position or the reason none is available.
type wsMessage struct {
	Lat   *float64 `json:"lat" validate:"omitempty,min=-90,max=90"`
	Lon   *float64 `json:"lon" validate:"omitempty,min=-180,max=180"`
	Limit int      `json:"limit" validate:"omitempty,min=1,max=100"`
	Error string   `json:"error"`
}

type eventPointResponse struct {
	EventID       string         `json:"event_id"`
	EventName     string         `json:"event_name"`
	EventDatetime string         `json:"event_datetime"`
	EventEndtime  string         `json:"event_endtime"`
	CategoryID    string         `json:"category_id"`
	PictureURL    *string        `json:"picture_url,omitempty"`
	PriceField    *float64       `json:"price_field,omitempty"`
	LocationLabel string         `json:"location_label"`
	Address       string         `json:"address"`
	Coordinates   geo.Coordinate `json:"coordinates"`
	DistanceKm    *float64       `json:"distance_km"`
	DistanceLabel string         `json:"distance_label"`
}

func NewEventPointResponse(p discovery.EventPoint) eventPointResponse {
	label := p.LocationLabel
	if label == "" {
		label = discovery.LocationToBeAnnounced
	}
	return eventPointResponse{
		EventID:       p.EventID,
		EventName:     p.EventName,
		EventDatetime: p.EventDatetime,
		EventEndtime:  p.EventEndtime,
		CategoryID:    p.CategoryID,
		PictureURL:    p.PictureURL,
		PriceField:    p.PriceField,
		LocationLabel: label,
		Address:       locationcodec.DisplayText(p.Location()),
		Coordinates:   p.Coordinates,
		DistanceKm:    p.DistanceKm,
		DistanceLabel: discovery.FormatDistance(p.DistanceKm),
	}
}

func NewEventPointsResponse(points []discovery.EventPoint) []eventPointResponse {
	out := make([]eventPointResponse, 0, len(points))
	for _, p := range points {
		out = append(out, NewEventPointResponse(p))
	}
	return out
}

type nearbyResponse struct {
	Events         []eventPointResponse `json:"events"`
	Selected       *eventPointResponse  `json:"selected"`
	Path           string               `json:"path"`
	GeocodeStatus  discovery.AsyncState `json:"geocode_status"`
	LocationStatus discovery.AsyncState `json:"location_status"`
}

func NewNearbyResponse(res usecases.NearbyResult) nearbyResponse {
	resp := nearbyResponse{
		Events:         NewEventPointsResponse(res.Points),
		Path:           res.Path,
		GeocodeStatus:  res.Geocode,
		LocationStatus: res.Location,
	}
	if res.Selected != nil {
		selected := NewEventPointResponse(*res.Selected)
		resp.Selected = &selected
	}
	return resp
}

type errorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

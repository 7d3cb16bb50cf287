package controllers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/julienschmidt/httprouter"
	"github.com/lintang-b-s/eventradar/pkg/discovery"
	"github.com/lintang-b-s/eventradar/pkg/geo"
	helper "github.com/lintang-b-s/eventradar/pkg/http/router/routerhelper"
	"github.com/lintang-b-s/eventradar/pkg/http/usecases"
	"go.uber.org/zap"
)

type discoveryAPI struct {
	discoveryService DiscoveryService
	nearbyLimit      int
	log              *zap.Logger
}

func New(discoveryService DiscoveryService, nearbyLimit int, log *zap.Logger) *discoveryAPI {
	if nearbyLimit <= 0 {
		nearbyLimit = discovery.NearbyLimit
	}
	return &discoveryAPI{
		discoveryService: discoveryService,
		nearbyLimit:      nearbyLimit,
		log:              log,
	}
}

func (api *discoveryAPI) Routes(group *helper.RouteGroup) {
	group.GET("/events/nearby", api.nearby)
	group.GET("/events/within", api.within)
	group.GET("/events/around", api.around)
}

// nearby
//
//	@Summary		events nearest to the viewer
//	@Description	resolves event locations and returns up to limit events ordered by distance. Without lat/lon the events keep backend order.
//	@Tags			events
//	@Param			lat				query	number	false	"viewer latitude"
//	@Param			lon				query	number	false	"viewer longitude"
//	@Param			limit			query	int		false	"max events"
//	@Param			filter			query	string	false	"backend filter expression, repeatable"
//	@Param			location_error	query	string	false	"why the client has no position"
//	@Produce		application/json
//	@Success		200	{object}	nearbyResponse
//	@Failure		400	{object}	errorResponse
//	@Failure		502	{object}	errorResponse
//	@Router			/events/nearby [get]
func (api *discoveryAPI) nearby(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var (
		request nearbyRequest
		err     error
	)
	query := r.URL.Query()

	request.Lat, err = parseOptionalFloatParam(query.Get("lat"), "lat")
	if err != nil {
		api.BadRequestResponse(w, r, err)
		return
	}
	request.Lon, err = parseOptionalFloatParam(query.Get("lon"), "lon")
	if err != nil {
		api.BadRequestResponse(w, r, err)
		return
	}
	if (request.Lat == nil) != (request.Lon == nil) {
		api.BadRequestResponse(w, r, errors.New("lat and lon must be given together"))
		return
	}
	request.Limit, err = parseIntDefault(query.Get("limit"), api.nearbyLimit)
	if err != nil {
		api.BadRequestResponse(w, r, errors.New("limit must be a valid int"))
		return
	}
	if err := validateStruct(request); err != nil {
		api.BadRequestResponse(w, r, err)
		return
	}

	q := usecases.NearbyQuery{
		Limit:   request.Limit,
		Filters: query["filter"],
	}
	if request.Lat != nil {
		origin := geo.NewCoordinate(*request.Lat, *request.Lon)
		q.Origin = &origin
	} else if msg := strings.TrimSpace(query.Get("location_error")); msg != "" {
		q.LocationErr = errors.New(msg)
	}

	res, err := api.discoveryService.Nearby(r.Context(), q)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			api.log.Debug("nearby request cancelled", zap.String("path", r.URL.Path))
			return
		}
		api.getStatusCode(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, envelope{"data": NewNearbyResponse(*res)}, nil); err != nil {
		api.ServerErrorResponse(w, r, err)
	}
}

// within
//
//	@Summary		events inside a map viewport
//	@Tags			events
//	@Param			min_lat	query	number	true	"south edge"
//	@Param			min_lon	query	number	true	"west edge"
//	@Param			max_lat	query	number	true	"north edge"
//	@Param			max_lon	query	number	true	"east edge, less than min_lon when the viewport crosses the antimeridian"
//	@Param			filter	query	string	false	"filter expression of the nearby request to search, repeatable"
//	@Produce		application/json
//	@Success		200	{array}		eventPointResponse
//	@Failure		400	{object}	errorResponse
//	@Router			/events/within [get]
func (api *discoveryAPI) within(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var (
		request withinRequest
		err     error
	)
	query := r.URL.Query()

	request.MinLat, err = parseFloatParam(query.Get("min_lat"), "min_lat")
	if err != nil {
		api.BadRequestResponse(w, r, err)
		return
	}
	request.MinLon, err = parseFloatParam(query.Get("min_lon"), "min_lon")
	if err != nil {
		api.BadRequestResponse(w, r, err)
		return
	}
	request.MaxLat, err = parseFloatParam(query.Get("max_lat"), "max_lat")
	if err != nil {
		api.BadRequestResponse(w, r, err)
		return
	}
	request.MaxLon, err = parseFloatParam(query.Get("max_lon"), "max_lon")
	if err != nil {
		api.BadRequestResponse(w, r, err)
		return
	}
	if err := validateStruct(request); err != nil {
		api.BadRequestResponse(w, r, err)
		return
	}

	points, err := api.discoveryService.Within(query["filter"], request.MinLat, request.MinLon,
		request.MaxLat, request.MaxLon)
	if err != nil {
		api.getStatusCode(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, envelope{"data": NewEventPointsResponse(points)}, nil); err != nil {
		api.ServerErrorResponse(w, r, err)
	}
}

// around
//
//	@Summary		events within a radius
//	@Tags			events
//	@Param			lat			query	number	true	"center latitude"
//	@Param			lon			query	number	true	"center longitude"
//	@Param			radius_km	query	number	false	"radius in km, defaults to 150"
//	@Param			filter		query	string	false	"filter expression of the nearby request to search, repeatable"
//	@Produce		application/json
//	@Success		200	{array}		eventPointResponse
//	@Failure		400	{object}	errorResponse
//	@Router			/events/around [get]
func (api *discoveryAPI) around(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var (
		request aroundRequest
		err     error
	)
	query := r.URL.Query()

	request.Lat, err = parseFloatParam(query.Get("lat"), "lat")
	if err != nil {
		api.BadRequestResponse(w, r, err)
		return
	}
	request.Lon, err = parseFloatParam(query.Get("lon"), "lon")
	if err != nil {
		api.BadRequestResponse(w, r, err)
		return
	}
	request.RadiusKm = discovery.MaxDistanceKm
	if raw := query.Get("radius_km"); raw != "" {
		request.RadiusKm, err = parseFloatParam(raw, "radius_km")
		if err != nil {
			api.BadRequestResponse(w, r, err)
			return
		}
	}
	if err := validateStruct(request); err != nil {
		api.BadRequestResponse(w, r, err)
		return
	}

	points, err := api.discoveryService.WithinRadius(query["filter"], geo.NewCoordinate(request.Lat, request.Lon),
		request.RadiusKm)
	if err != nil {
		api.getStatusCode(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, envelope{"data": NewEventPointsResponse(points)}, nil); err != nil {
		api.ServerErrorResponse(w, r, err)
	}
}

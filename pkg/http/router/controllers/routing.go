package controllers

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	enTranslations "github.com/go-playground/validator/v10/translations/en"
	"github.com/julienschmidt/httprouter"
	helper "github.com/lintang-b-s/roadgraph/pkg/http/router/routerhelper"
	"github.com/lintang-b-s/roadgraph/pkg/util"
	"go.uber.org/zap"
)

type routingAPI struct {
	routingService RoutingService
	log            *zap.Logger
	queryTimeout   time.Duration

	validate *validator.Validate
	trans    ut.Translator
}

// New returns the routing controller, every query runs under queryTimeout when it is positive.
func New(routingService RoutingService, queryTimeout time.Duration, log *zap.Logger) *routingAPI {
	english := en.New()
	uni := ut.New(english, english)
	trans, _ := uni.GetTranslator("en")
	validate := validator.New()
	_ = enTranslations.RegisterDefaultTranslations(validate, trans)

	return &routingAPI{
		routingService: routingService,
		log:            log,
		queryTimeout:   queryTimeout,
		validate:       validate,
		trans:          trans,
	}
}

func (api *routingAPI) Routes(group *helper.RouteGroup) {
	group.GET("/route", api.shortestPath)
	group.GET("/closest", api.closest)
}

func (api *routingAPI) queryContext(r *http.Request) (context.Context, context.CancelFunc) {
	if api.queryTimeout <= 0 {
		return context.WithCancel(r.Context())
	}
	return context.WithTimeout(r.Context(), api.queryTimeout)
}

func parseFloatParam(query url.Values, name string, dst *float64) error {
	v, err := util.StringToFloat64(query.Get(name))
	if err != nil {
		return fmt.Errorf("%s is required and must be a valid float", name)
	}
	*dst = v
	return nil
}

func (api *routingAPI) validateRequest(request any) error {
	if err := api.validate.Struct(request); err != nil {
		vv := translateError(err, api.trans)
		vvString := make([]string, 0, len(vv))
		for _, v := range vv {
			vvString = append(vvString, v.Error())
		}
		return fmt.Errorf("validation error: %v", vvString)
	}
	return nil
}

func (api *routingAPI) shortestPath(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
	var request shortestPathRequest

	query := r.URL.Query()
	for _, param := range []struct {
		name string
		dst  *float64
	}{
		{"origin_lat", &request.OriginLat},
		{"origin_lon", &request.OriginLon},
		{"destination_lat", &request.DestinationLat},
		{"destination_lon", &request.DestinationLon},
	} {
		if err := parseFloatParam(query, param.name, param.dst); err != nil {
			api.BadRequestResponse(w, r, err)
			return
		}
	}
	if err := api.validateRequest(request); err != nil {
		api.BadRequestResponse(w, r, err)
		return
	}

	ctx, cancel := api.queryContext(r)
	defer cancel()
	route, err := api.routingService.ShortestPath(ctx, request.OriginLat, request.OriginLon,
		request.DestinationLat, request.DestinationLon)
	if err != nil {
		api.getStatusCode(w, r, err)
		return
	}

	if err := api.writeJSON(w, http.StatusOK, envelope{"data": NewShortestPathResponse(route)}, nil); err != nil {
		api.ServerErrorResponse(w, r, err)
	}
}

func (api *routingAPI) closest(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
	var request closestRequest

	query := r.URL.Query()
	if err := parseFloatParam(query, "lat", &request.Lat); err != nil {
		api.BadRequestResponse(w, r, err)
		return
	}
	if err := parseFloatParam(query, "lon", &request.Lon); err != nil {
		api.BadRequestResponse(w, r, err)
		return
	}
	if err := api.validateRequest(request); err != nil {
		api.BadRequestResponse(w, r, err)
		return
	}

	ctx, cancel := api.queryContext(r)
	defer cancel()
	c, dist, err := api.routingService.Closest(ctx, request.Lat, request.Lon)
	if err != nil {
		api.getStatusCode(w, r, err)
		return
	}

	if err := api.writeJSON(w, http.StatusOK, envelope{"data": NewClosestResponse(c, dist)}, nil); err != nil {
		api.ServerErrorResponse(w, r, err)
	}
}

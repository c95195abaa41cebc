package gateway

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kbukum/bookingplatform/discovery"
	apperrors "github.com/kbukum/bookingplatform/errors"
	"github.com/kbukum/bookingplatform/logger"
	"github.com/kbukum/bookingplatform/server"
)

// Option configures a Gateway.
type Option func(*Gateway)

// WithRoutes replaces the default route table.
func WithRoutes(routes ...Route) Option {
	return func(g *Gateway) { g.routes = routes }
}

// WithDiscoveryDebug exposes GET /debug/discovery/:service, which returns
// the raw registry records for a service.
func WithDiscoveryDebug(lookup discovery.Lookup, sel discovery.Selector) Option {
	return func(g *Gateway) {
		g.lookup = lookup
		g.selector = sel
	}
}

// Gateway is the HTTP surface in front of the upstream services.
type Gateway struct {
	fwd      *Forwarder
	log      *logger.Logger
	routes   []Route
	lookup   discovery.Lookup
	selector discovery.Selector
}

// New creates a Gateway serving DefaultRoutes unless WithRoutes is given.
func New(fwd *Forwarder, log *logger.Logger, opts ...Option) *Gateway {
	g := &Gateway{fwd: fwd, log: log.WithComponent("gateway"), routes: DefaultRoutes()}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Routes returns the route table.
func (g *Gateway) Routes() []Route { return g.routes }

// Register adds every route to r.
func (g *Gateway) Register(r gin.IRoutes) {
	for _, rt := range g.routes {
		r.Handle(rt.Method, rt.Path, g.handler(rt))
	}
	if g.lookup != nil {
		r.GET("/debug/discovery/:service", g.debugDiscovery)
	}
}

func (g *Gateway) handler(rt Route) gin.HandlerFunc {
	return func(c *gin.Context) {
		payload, err := buildPayload(c, rt)
		if err != nil {
			server.RespondWithError(c, err)
			return
		}
		resp, err := g.fwd.Forward(c.Request.Context(), Request{
			Service: rt.Service,
			Method:  rt.RPC,
			Payload: payload,
			Policy:  rt.Policy,
		})
		if err != nil {
			server.RespondWithError(c, err)
			return
		}
		server.RespondJSON(c, rt.successStatus(), resp.Payload)
	}
}

// buildPayload forwards a body untouched unless path parameters have to be
// merged into it. Routes without a body get path and query parameters as
// a flat JSON object of strings.
func buildPayload(c *gin.Context, rt Route) ([]byte, error) {
	fields := make(map[string]json.RawMessage)

	if rt.Body {
		raw, err := c.GetRawData()
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				return nil, apperrors.New(apperrors.ErrCodeInvalidInput, "Request body too large.", http.StatusRequestEntityTooLarge)
			}
			return nil, apperrors.Validation("Request body could not be read.")
		}
		raw = bytes.TrimSpace(raw)
		if len(raw) == 0 {
			raw = []byte("{}")
		}
		if len(c.Params) == 0 {
			if !json.Valid(raw) {
				return nil, apperrors.Validation("Request body must be valid JSON.")
			}
			return raw, nil
		}
		if err := json.Unmarshal(raw, &fields); err != nil {
			return nil, apperrors.Validation("Request body must be a JSON object.")
		}
	} else {
		for key, values := range c.Request.URL.Query() {
			if len(values) > 0 {
				fields[key] = quote(values[0])
			}
		}
	}

	for _, p := range c.Params {
		fields[p.Key] = quote(p.Value)
	}
	return json.Marshal(fields)
}

func quote(s string) json.RawMessage {
	b, _ := json.Marshal(s)
	return b
}

func (g *Gateway) debugDiscovery(c *gin.Context) {
	name := c.Param("service")
	records, err := g.lookup.LookupHealthy(c.Request.Context(), name)
	if err != nil {
		switch {
		case errors.Is(err, discovery.ErrServiceNotFound):
			server.RespondWithError(c, apperrors.NotFound("service", name))
		default:
			g.log.Warn("Discovery debug lookup failed", logger.ErrorFields("lookup", err))
			server.RespondWithError(c, apperrors.DependencyUnavailable().WithCause(err))
		}
		return
	}

	selected, selErr := g.selector.Select(records)
	body := gin.H{
		"service": name,
		"records": records,
		"healthy": len(g.selector.Healthy(records)),
	}
	if selErr == nil {
		body["selected"] = selected.Address()
	}
	c.JSON(http.StatusOK, body)
}

package resolver

import (
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectoinject"
	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/arbor/pkg/cursor"
	resolverpkg "github.com/Ramsey-B/arbor/pkg/resolver"
	"github.com/Ramsey-B/arbor/pkg/utils"
)

// Defaults are the per-branch limits applied when a query parameter is
// absent. An explicitly supplied parameter is always validated instead.
type Defaults struct {
	Ancestors   int
	Children    int
	Generations int
	Events      int
}

// Handler handles the resolver query API endpoints
type Handler struct {
	service  *resolverpkg.Service
	defaults Defaults
	logger   ectologger.Logger
}

// NewHandler creates a new resolver handler
func NewHandler(service *resolverpkg.Service, defaults Defaults, logger ectologger.Logger) *Handler {
	return &Handler{
		service:  service,
		defaults: defaults,
		logger:   logger,
	}
}

// Register registers the resolver routes
func (h *Handler) Register(g *echo.Group) {
	g.GET("/:id", h.GetTree)
	g.GET("/:id/ancestry", h.GetAncestry)
	g.GET("/:id/children", h.GetChildren)
	g.GET("/:id/events", h.GetRelatedEvents)
}

func (h *Handler) requireService(c echo.Context) (*resolverpkg.Service, error) {
	// Prefer explicitly provided service (useful for tests), but fall back to
	// DI-from-context, the standard pattern used elsewhere in the meadow
	// services.
	if h != nil && h.service != nil {
		return h.service, nil
	}

	ctx := c.Request().Context()
	_, svc, err := ectoinject.GetContext[*resolverpkg.Service](ctx)
	if err != nil || svc == nil {
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "resolver service unavailable")
	}
	return svc, nil
}

// valueOr returns the supplied parameter or the default when it was absent.
func valueOr(param *int, fallback int) int {
	if param == nil {
		return fallback
	}
	return *param
}

// AncestryQuery is the query string for the ancestry endpoint
type AncestryQuery struct {
	Ancestors        *int   `query:"ancestors" validate:"omitempty,min=1,max=2000"`
	LegacyEndpointID string `query:"legacyEndpointID"`
}

// GetAncestry walks parent links upward from an origin process
// @Summary Get process ancestry
// @Description Walk parent links upward from an origin process, bounded by the requested count
// @Tags Resolver
// @Produce json
// @Param id path string true "Entity ID"
// @Param ancestors query int false "Maximum ancestors to return (1-2000)"
// @Param legacyEndpointID query string false "Legacy endpoint ID (selects the legacy event schema)"
// @Success 200 {object} models.AncestryResponse
// @Failure 400 {object} httperror.HTTPError
// @Failure 500 {object} httperror.HTTPError
// @Router /api/v1/resolver/{id}/ancestry [get]
func (h *Handler) GetAncestry(c echo.Context) error {
	ctx := c.Request().Context()

	svc, err := h.requireService(c)
	if err != nil {
		return err
	}

	query, err := utils.BindRequest[AncestryQuery](c)
	if err != nil {
		return err
	}

	resp, err := svc.Ancestry(ctx, c.Param("id"), valueOr(query.Ancestors, h.defaults.Ancestors), query.LegacyEndpointID)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, resp)
}

// ChildrenQuery is the query string for the children endpoint
type ChildrenQuery struct {
	Children         *int   `query:"children" validate:"omitempty,min=1,max=2000"`
	Generations      *int   `query:"generations" validate:"omitempty,min=1,max=2000"`
	AfterChild       string `query:"afterChild"`
	LegacyEndpointID string `query:"legacyEndpointID"`
}

// GetChildren walks child links downward from an origin process
// @Summary Get process children
// @Description Walk child links downward, breadth-first by generation, with per-node pagination
// @Tags Resolver
// @Produce json
// @Param id path string true "Entity ID"
// @Param children query int false "Maximum children per node (1-2000)"
// @Param generations query int false "Maximum generations to descend (1-2000)"
// @Param afterChild query string false "Continuation cursor for the origin's child scan"
// @Param legacyEndpointID query string false "Legacy endpoint ID (selects the legacy event schema)"
// @Success 200 {object} models.ChildrenResponse
// @Failure 400 {object} httperror.HTTPError
// @Failure 500 {object} httperror.HTTPError
// @Router /api/v1/resolver/{id}/children [get]
func (h *Handler) GetChildren(c echo.Context) error {
	ctx := c.Request().Context()

	svc, err := h.requireService(c)
	if err != nil {
		return err
	}

	query, err := utils.BindRequest[ChildrenQuery](c)
	if err != nil {
		return err
	}

	resp, err := svc.Children(
		ctx,
		c.Param("id"),
		valueOr(query.Children, h.defaults.Children),
		valueOr(query.Generations, h.defaults.Generations),
		cursor.Decode(query.AfterChild),
		query.LegacyEndpointID,
	)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, resp)
}

// EventsQuery is the query string for the related-events endpoint
type EventsQuery struct {
	Events           *int   `query:"events" validate:"omitempty,min=1,max=2000"`
	AfterEvent       string `query:"afterEvent"`
	LegacyEndpointID string `query:"legacyEndpointID"`
}

// GetRelatedEvents pages through an entity's non-lifecycle events
// @Summary Get related events
// @Description Page through the non-lifecycle events associated with one process
// @Tags Resolver
// @Produce json
// @Param id path string true "Entity ID"
// @Param events query int false "Page size (1-2000)"
// @Param afterEvent query string false "Continuation cursor"
// @Param legacyEndpointID query string false "Legacy endpoint ID (selects the legacy event schema)"
// @Success 200 {object} models.EventsResponse
// @Failure 400 {object} httperror.HTTPError
// @Failure 500 {object} httperror.HTTPError
// @Router /api/v1/resolver/{id}/events [get]
func (h *Handler) GetRelatedEvents(c echo.Context) error {
	ctx := c.Request().Context()

	svc, err := h.requireService(c)
	if err != nil {
		return err
	}

	query, err := utils.BindRequest[EventsQuery](c)
	if err != nil {
		return err
	}

	resp, err := svc.RelatedEvents(
		ctx,
		c.Param("id"),
		valueOr(query.Events, h.defaults.Events),
		cursor.Decode(query.AfterEvent),
		query.LegacyEndpointID,
	)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, resp)
}

// TreeQuery is the query string for the combined tree endpoint
type TreeQuery struct {
	Ancestors        *int   `query:"ancestors" validate:"omitempty,min=1,max=2000"`
	Children         *int   `query:"children" validate:"omitempty,min=1,max=2000"`
	Generations      *int   `query:"generations" validate:"omitempty,min=1,max=2000"`
	Events           *int   `query:"events" validate:"omitempty,min=1,max=2000"`
	LegacyEndpointID string `query:"legacyEndpointID"`
}

// GetTree returns the combined resolver tree for an origin process
// @Summary Get resolver tree
// @Description Compose ancestry, children, related events and stats for one process
// @Tags Resolver
// @Produce json
// @Param id path string true "Entity ID"
// @Param ancestors query int false "Maximum ancestors to return (1-2000)"
// @Param children query int false "Maximum children per node (1-2000)"
// @Param generations query int false "Maximum generations to descend (1-2000)"
// @Param events query int false "Related-events page size (1-2000)"
// @Param legacyEndpointID query string false "Legacy endpoint ID (selects the legacy event schema)"
// @Success 200 {object} models.ResolverTree
// @Failure 400 {object} httperror.HTTPError
// @Failure 500 {object} httperror.HTTPError
// @Router /api/v1/resolver/{id} [get]
func (h *Handler) GetTree(c echo.Context) error {
	ctx := c.Request().Context()

	svc, err := h.requireService(c)
	if err != nil {
		return err
	}

	query, err := utils.BindRequest[TreeQuery](c)
	if err != nil {
		return err
	}

	params := resolverpkg.TreeParams{
		Ancestors:   valueOr(query.Ancestors, h.defaults.Ancestors),
		Children:    valueOr(query.Children, h.defaults.Children),
		Generations: valueOr(query.Generations, h.defaults.Generations),
		Events:      valueOr(query.Events, h.defaults.Events),
	}

	resp, err := svc.Tree(ctx, c.Param("id"), params, query.LegacyEndpointID)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, resp)
}

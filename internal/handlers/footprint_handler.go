package handlers

import (
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	apierrors "github.com/tbroekhuis/grondplan/internal/errors"
	"github.com/tbroekhuis/grondplan/internal/geometry"
	"github.com/tbroekhuis/grondplan/internal/middleware"
	"github.com/tbroekhuis/grondplan/internal/models"
	"github.com/tbroekhuis/grondplan/internal/services"
)

// FootprintHandler handles footprint-related HTTP requests.
type FootprintHandler struct {
	service services.FootprintService
}

// NewFootprintHandler creates a new FootprintHandler instance.
func NewFootprintHandler(service services.FootprintService) *FootprintHandler {
	return &FootprintHandler{
		service: service,
	}
}

// FootprintRequest is the request body for creating or updating a
// footprint, shaped as a GeoJSON Feature.
type FootprintRequest struct {
	Type       string            `json:"type" binding:"required,oneof=Feature"`
	Geometry   *geometry.Polygon `json:"geometry"`
	Properties models.Attributes `json:"properties"`
}

// Feature is a footprint rendered as a GeoJSON Feature.
type Feature struct {
	Type       string            `json:"type"`
	ID         string            `json:"id"`
	Bbox       [4]float64        `json:"bbox"`
	Geometry   geometry.Polygon  `json:"geometry"`
	Properties models.Attributes `json:"properties"`
	CreatedAt  string            `json:"created_at"`
	UpdatedAt  string            `json:"updated_at"`
}

// Link is a pagination link in the RFC 8288 style used by OGC API Features.
type Link struct {
	Href string `json:"href"`
	Rel  string `json:"rel"`
	Type string `json:"type"`
}

// FeatureCollection is a page of footprints rendered as a GeoJSON
// FeatureCollection with paging metadata.
type FeatureCollection struct {
	Type           string    `json:"type"`
	Features       []Feature `json:"features"`
	NumberMatched  int       `json:"numberMatched"`
	NumberReturned int       `json:"numberReturned"`
	Limit          int       `json:"limit"`
	Offset         int       `json:"offset"`
	Links          []Link    `json:"links"`
}

// CollectionsResponse lists the available collections.
type CollectionsResponse struct {
	Collections []CollectionSummary `json:"collections"`
}

// CollectionSummary describes one collection and its footprint count.
type CollectionSummary struct {
	ID    string `json:"id"`
	Count int    `json:"count"`
	Links []Link `json:"links"`
}

const geoJSONMediaType = "application/geo+json"

// Create handles POST /api/v1/footprints. The body is a GeoJSON Feature
// whose geometry must be a single-ring polygon.
func (h *FootprintHandler) Create(c *gin.Context) {
	var req FootprintRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		if validationErrors, ok := err.(validator.ValidationErrors); ok {
			apierrors.ValidationError(c, validationErrors)
			return
		}
		apierrors.BadRequest(c, "Invalid request body: "+err.Error(), nil)
		return
	}
	if req.Geometry == nil {
		apierrors.BadRequest(c, "Feature geometry is required", nil)
		return
	}

	fp, err := h.service.CreateFootprint(c.Request.Context(), req.Geometry.Ring, req.Properties)
	if err != nil {
		apierrors.FromServiceError(c, err, "Failed to create footprint")
		return
	}

	if log := middleware.GetLogger(c); log != nil {
		log.Info("Created footprint", map[string]interface{}{
			"footprint_id": fp.ID,
		})
	}

	c.Header("Location", "/api/v1/footprints/"+fp.ID)
	c.JSON(http.StatusCreated, mapFootprintToFeature(fp))
}

// Get handles GET /api/v1/footprints/:id.
func (h *FootprintHandler) Get(c *gin.Context) {
	fp, err := h.service.GetFootprint(c.Request.Context(), c.Param("id"))
	if err != nil {
		apierrors.FromServiceError(c, err, "Failed to get footprint")
		return
	}

	c.JSON(http.StatusOK, mapFootprintToFeature(fp))
}

// Update handles PUT /api/v1/footprints/:id. The body is a full GeoJSON
// Feature; both geometry and properties are replaced.
func (h *FootprintHandler) Update(c *gin.Context) {
	var req FootprintRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		if validationErrors, ok := err.(validator.ValidationErrors); ok {
			apierrors.ValidationError(c, validationErrors)
			return
		}
		apierrors.BadRequest(c, "Invalid request body: "+err.Error(), nil)
		return
	}
	if req.Geometry == nil {
		apierrors.BadRequest(c, "Feature geometry is required", nil)
		return
	}
	if req.Properties == nil {
		req.Properties = models.Attributes{}
	}

	fp, err := h.service.UpdateFootprint(c.Request.Context(), c.Param("id"), req.Geometry.Ring, req.Properties)
	if err != nil {
		apierrors.FromServiceError(c, err, "Failed to update footprint")
		return
	}

	c.JSON(http.StatusOK, mapFootprintToFeature(fp))
}

// Patch handles PATCH /api/v1/footprints/:id. Missing parts of the body
// leave the stored values unchanged.
func (h *FootprintHandler) Patch(c *gin.Context) {
	var req FootprintRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		if validationErrors, ok := err.(validator.ValidationErrors); ok {
			apierrors.ValidationError(c, validationErrors)
			return
		}
		apierrors.BadRequest(c, "Invalid request body: "+err.Error(), nil)
		return
	}

	var ring geometry.Ring
	if req.Geometry != nil {
		ring = req.Geometry.Ring
	}

	fp, err := h.service.UpdateFootprint(c.Request.Context(), c.Param("id"), ring, req.Properties)
	if err != nil {
		apierrors.FromServiceError(c, err, "Failed to update footprint")
		return
	}

	c.JSON(http.StatusOK, mapFootprintToFeature(fp))
}

// Delete handles DELETE /api/v1/footprints/:id.
func (h *FootprintHandler) Delete(c *gin.Context) {
	id := c.Param("id")
	if err := h.service.DeleteFootprint(c.Request.Context(), id); err != nil {
		apierrors.FromServiceError(c, err, "Failed to delete footprint")
		return
	}

	if log := middleware.GetLogger(c); log != nil {
		log.Info("Deleted footprint", map[string]interface{}{
			"footprint_id": id,
		})
	}

	c.Status(http.StatusNoContent)
}

// QueryBbox handles GET /api/v1/footprints/bbox. The box is given as
// minx/miny/maxx/maxy query parameters in the RD New coordinate system,
// mode selects intersects (default) or contains semantics.
func (h *FootprintHandler) QueryBbox(c *gin.Context) {
	box, ok := bindBoundingBox(c)
	if !ok {
		return
	}

	limit, offset, ok := bindPagination(c)
	if !ok {
		return
	}
	mode := c.Query("mode")

	page, err := h.service.QueryBoundingBox(c.Request.Context(), box, mode, limit, offset)
	if err != nil {
		apierrors.FromServiceError(c, err, "Failed to query footprints")
		return
	}

	if log := middleware.GetLogger(c); log != nil {
		log.Info("Served bounding box query", map[string]interface{}{
			"bbox":            box.String(),
			"mode":            mode,
			"number_matched":  page.NumberMatched,
			"number_returned": page.NumberReturned,
		})
	}

	c.Header("Content-Type", geoJSONMediaType)
	c.JSON(http.StatusOK, mapPageToFeatureCollection(c, page))
}

// ListCollections handles GET /api/v1/collections. Collections are the
// distinct values of the configured grouping attribute, ordered by
// footprint count descending.
func (h *FootprintHandler) ListCollections(c *gin.Context) {
	collections, err := h.service.ListCollections(c.Request.Context())
	if err != nil {
		apierrors.FromServiceError(c, err, "Failed to list collections")
		return
	}

	response := CollectionsResponse{
		Collections: make([]CollectionSummary, 0, len(collections)),
	}
	for _, col := range collections {
		response.Collections = append(response.Collections, CollectionSummary{
			ID:    col.ID,
			Count: col.Count,
			Links: []Link{{
				Href: "/api/v1/collections/" + url.PathEscape(col.ID) + "/items",
				Rel:  "items",
				Type: geoJSONMediaType,
			}},
		})
	}

	c.JSON(http.StatusOK, response)
}

// CollectionItems handles GET /api/v1/collections/:collection/items.
func (h *FootprintHandler) CollectionItems(c *gin.Context) {
	limit, offset, ok := bindPagination(c)
	if !ok {
		return
	}

	page, err := h.service.CollectionItems(c.Request.Context(), c.Param("collection"), limit, offset)
	if err != nil {
		apierrors.FromServiceError(c, err, "Failed to list collection items")
		return
	}

	c.Header("Content-Type", geoJSONMediaType)
	c.JSON(http.StatusOK, mapPageToFeatureCollection(c, page))
}

// CollectionItem handles GET /api/v1/collections/:collection/items/:id.
func (h *FootprintHandler) CollectionItem(c *gin.Context) {
	fp, err := h.service.CollectionItem(c.Request.Context(), c.Param("collection"), c.Param("id"))
	if err != nil {
		apierrors.FromServiceError(c, err, "Failed to get collection item")
		return
	}

	c.Header("Content-Type", geoJSONMediaType)
	c.JSON(http.StatusOK, mapFootprintToFeature(fp))
}

// bindBoundingBox parses the minx/miny/maxx/maxy query parameters. On
// failure it writes a 400 response and returns ok=false.
func bindBoundingBox(c *gin.Context) (geometry.BoundingBox, bool) {
	var box geometry.BoundingBox

	coords := []struct {
		name string
		dst  *float64
	}{
		{"minx", &box.MinX},
		{"miny", &box.MinY},
		{"maxx", &box.MaxX},
		{"maxy", &box.MaxY},
	}

	for _, coord := range coords {
		raw, exists := c.GetQuery(coord.name)
		if !exists {
			apierrors.BadRequest(c, "Missing bounding box parameter", map[string]interface{}{
				"parameter": coord.name,
			})
			return box, false
		}
		value, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			apierrors.BadRequest(c, "Invalid bounding box parameter", map[string]interface{}{
				"parameter": coord.name,
				"value":     raw,
			})
			return box, false
		}
		*coord.dst = value
	}

	return box, true
}

// bindPagination parses the limit and offset query parameters, leaving
// range enforcement to the service layer.
func bindPagination(c *gin.Context) (limit, offset int, ok bool) {
	for _, p := range []struct {
		name string
		dst  *int
	}{
		{"limit", &limit},
		{"offset", &offset},
	} {
		raw, exists := c.GetQuery(p.name)
		if !exists {
			continue
		}
		value, err := strconv.Atoi(raw)
		if err != nil {
			apierrors.BadRequest(c, "Invalid pagination parameter", map[string]interface{}{
				"parameter": p.name,
				"value":     raw,
			})
			return 0, 0, false
		}
		*p.dst = value
	}

	return limit, offset, true
}

// mapFootprintToFeature maps a footprint model to its GeoJSON Feature DTO.
func mapFootprintToFeature(fp *models.Footprint) Feature {
	bounds := fp.Bounds()

	props := fp.Attributes
	if props == nil {
		props = models.Attributes{}
	}

	return Feature{
		Type:       "Feature",
		ID:         fp.ID,
		Bbox:       [4]float64{bounds.MinX, bounds.MinY, bounds.MaxX, bounds.MaxY},
		Geometry:   geometry.Polygon{Ring: fp.Ring},
		Properties: props,
		CreatedAt:  fp.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:  fp.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

// mapPageToFeatureCollection maps a service page to a GeoJSON
// FeatureCollection, deriving self/next/prev links from the request URL.
func mapPageToFeatureCollection(c *gin.Context, page *services.Page) FeatureCollection {
	features := make([]Feature, 0, len(page.Footprints))
	for _, fp := range page.Footprints {
		features = append(features, mapFootprintToFeature(fp))
	}

	return FeatureCollection{
		Type:           "FeatureCollection",
		Features:       features,
		NumberMatched:  page.NumberMatched,
		NumberReturned: page.NumberReturned,
		Limit:          page.Limit,
		Offset:         page.Offset,
		Links:          paginationLinks(c.Request.URL, page),
	}
}

// paginationLinks builds self/next/prev links for a page. next appears
// only when more matches remain past this page, prev only when the page
// has a non-zero offset.
func paginationLinks(u *url.URL, page *services.Page) []Link {
	links := []Link{
		{Href: pageHref(u, page.Limit, page.Offset), Rel: "self", Type: geoJSONMediaType},
	}

	if page.Offset+page.NumberReturned < page.NumberMatched {
		links = append(links, Link{
			Href: pageHref(u, page.Limit, page.Offset+page.Limit),
			Rel:  "next",
			Type: geoJSONMediaType,
		})
	}

	if page.Offset > 0 {
		prev := page.Offset - page.Limit
		if prev < 0 {
			prev = 0
		}
		links = append(links, Link{
			Href: pageHref(u, page.Limit, prev),
			Rel:  "prev",
			Type: geoJSONMediaType,
		})
	}

	return links
}

func pageHref(u *url.URL, limit, offset int) string {
	q := u.Query()
	q.Set("limit", strconv.Itoa(limit))
	q.Set("offset", strconv.Itoa(offset))

	href := *u
	href.RawQuery = q.Encode()
	return href.String()
}

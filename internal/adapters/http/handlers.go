package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/campusaid/aidmap/internal/core/domain"
	"github.com/campusaid/aidmap/internal/core/usecases"
)

const (
	defaultPageLimit = 50
	maxPageLimit     = 200
)

// ListRequestsHandler returns a page of requests visible to the user.
func ListRequestsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		offset := c.QueryInt("offset", 0)
		limit := c.QueryInt("limit", defaultPageLimit)
		if offset < 0 {
			offset = 0
		}
		if limit <= 0 || limit > maxPageLimit {
			limit = defaultPageLimit
		}

		ownership, err := queryOwnership(c)
		if err != nil {
			return errBadRequest(c, err.Error())
		}
		bounds, err := queryBounds(c)
		if err != nil {
			return errBadRequest(c, err.Error())
		}

		reqs, err := deps.Requests.List(c.UserContext(), usecases.ListRequestsInput{
			UserID:     c.Query("user_id"),
			Ownership:  ownership,
			Bounds:     bounds,
			ActiveOnly: c.QueryBool("active", false),
			Limit:      limit,
			Offset:     offset,
		})
		if err != nil {
			return errFromService(c, err)
		}
		if reqs == nil {
			reqs = []domain.Request{}
		}

		pg := Pagination{Offset: offset, Limit: limit, Count: len(reqs), More: len(reqs) == limit}
		SetLinkHeaders(c, pg)
		return c.JSON(PaginatedResponse{Data: reqs, Pagination: pg})
	}
}

// GetRequestHandler returns a single request by ID.
func GetRequestHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		req, err := deps.Requests.Get(c.UserContext(), c.Params("id"))
		if err != nil {
			return errFromService(c, err)
		}
		return c.JSON(req)
	}
}

// CreateRequestHandler opens a new request.
func CreateRequestHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var in usecases.CreateRequestInput
		if err := c.BodyParser(&in); err != nil {
			return errBadRequest(c, "invalid request body")
		}

		req, err := deps.Requests.Create(c.UserContext(), in)
		if err != nil {
			return errFromService(c, err)
		}

		c.Location("/v1/requests/" + req.ID)
		return c.Status(fiber.StatusCreated).JSON(req)
	}
}

// CancelRequestHandler cancels a request on behalf of its creator.
func CancelRequestHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := c.Query("user_id")
		if userID == "" {
			return errBadRequest(c, "user_id is required")
		}

		req, err := deps.Requests.Cancel(c.UserContext(), c.Params("id"), userID)
		if err != nil {
			return errFromService(c, err)
		}
		return c.JSON(req)
	}
}

// ClustersHandler groups the visible requests into map markers for one
// camera state.
func ClustersHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		zoom, err := queryZoom(c)
		if err != nil {
			return errBadRequest(c, err.Error())
		}
		bounds, err := queryBounds(c)
		if err != nil {
			return errBadRequest(c, err.Error())
		}
		current, err := queryPoint(c, "lat", "lon")
		if err != nil {
			return errBadRequest(c, err.Error())
		}
		ownership, err := queryOwnership(c)
		if err != nil {
			return errBadRequest(c, err.Error())
		}

		view, err := deps.Map.Clusters(c.UserContext(), usecases.ClusterQuery{
			Zoom:            zoom,
			Bounds:          bounds,
			CurrentLocation: current,
			UserID:          c.Query("user_id"),
			Ownership:       ownership,
		})
		if err != nil {
			return errFromService(c, err)
		}
		return c.JSON(view)
	}
}

// FocusHandler returns where the camera should move. It answers 204 when
// the user turned automatic zoom off.
func FocusHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		pref, err := queryPreference(c)
		if err != nil {
			return errBadRequest(c, err.Error())
		}
		current, err := queryPoint(c, "lat", "lon")
		if err != nil {
			return errBadRequest(c, err.Error())
		}
		ownership, err := queryOwnership(c)
		if err != nil {
			return errBadRequest(c, err.Error())
		}

		target, err := deps.Map.Focus(c.UserContext(), usecases.FocusQuery{
			Preference:      pref,
			CurrentLocation: current,
			UserID:          c.Query("user_id"),
			Ownership:       ownership,
		})
		if err != nil {
			return errFromService(c, err)
		}
		if target == nil {
			return c.SendStatus(fiber.StatusNoContent)
		}
		return c.JSON(target)
	}
}

// RadiusHandler reports the clustering radii for a zoom level.
func RadiusHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		zoom, err := queryZoom(c)
		if err != nil {
			return errBadRequest(c, err.Error())
		}
		c.Set("Cache-Control", "public, max-age=3600")
		return c.JSON(deps.Map.Radius(zoom))
	}
}

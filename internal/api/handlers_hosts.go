package api

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"evalgo.org/dockhand/models"
)

// listHosts handles GET /api/v1/hosts
func (s *Server) listHosts(c echo.Context) error {
	filters := make(map[string]interface{})

	if transport := c.QueryParam("transport"); transport != "" {
		filters["transport"] = transport
	}
	if name := c.QueryParam("name"); name != "" {
		filters["name"] = name
	}

	limit, offset := parsePagination(c)

	hosts, err := s.storage.ListHosts(c.Request().Context(), filters)
	if err != nil {
		return err
	}

	total := len(hosts)
	hosts = paginateSlice(hosts, limit, offset)

	return c.JSON(http.StatusOK, PaginatedHostsResponse{
		Count:  len(hosts),
		Total:  total,
		Limit:  limit,
		Offset: offset,
		Hosts:  hosts,
	})
}

// getHost handles GET /api/v1/hosts/:id
func (s *Server) getHost(c echo.Context) error {
	host, err := s.storage.GetHost(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, host)
}

// createHost handles POST /api/v1/hosts
func (s *Server) createHost(c echo.Context) error {
	var host models.Host

	if err := c.Bind(&host); err != nil {
		return BadRequestError("invalid request body", err.Error())
	}

	if result := s.validator.ValidateHostStruct(&host); !result.Valid {
		fieldErrors := make(map[string]string, len(result.Errors))
		for _, ve := range result.Errors {
			fieldErrors[ve.Field] = ve.Message
		}
		return ValidationFailedError("host validation failed", fieldErrors)
	}

	if existing, err := s.storage.FindHostByName(c.Request().Context(), host.Name); err != nil {
		return err
	} else if existing != nil {
		return models.NewError(models.KindConflict,
			"host name %s is already taken by %s", host.Name, existing.ID)
	}

	if host.ID == "" {
		host.ID = generateID("host", host.Name)
	}
	host.Kind = models.DocKindHost
	host.CreatedAt = time.Now().UTC()

	if err := s.storage.SaveHost(c.Request().Context(), &host); err != nil {
		return err
	}

	s.broadcastEvent(EventHostAdded, host)

	return c.JSON(http.StatusCreated, host)
}

// updateHost handles PUT /api/v1/hosts/:id
func (s *Server) updateHost(c echo.Context) error {
	id := c.Param("id")

	existing, err := s.storage.GetHost(c.Request().Context(), id)
	if err != nil {
		return err
	}

	var host models.Host
	if err := c.Bind(&host); err != nil {
		return BadRequestError("invalid request body", err.Error())
	}

	host.ID = existing.ID
	host.Rev = existing.Rev
	host.Kind = models.DocKindHost
	host.CreatedAt = existing.CreatedAt

	if result := s.validator.ValidateHostStruct(&host); !result.Valid {
		fieldErrors := make(map[string]string, len(result.Errors))
		for _, ve := range result.Errors {
			fieldErrors[ve.Field] = ve.Message
		}
		return ValidationFailedError("host validation failed", fieldErrors)
	}

	if err := s.storage.SaveHost(c.Request().Context(), &host); err != nil {
		return err
	}

	// Transport parameters may have changed; drop any pooled connection.
	s.pool.Invalidate(id)

	s.broadcastEvent(EventHostUpdated, host)

	return c.JSON(http.StatusOK, host)
}

// deleteHost handles DELETE /api/v1/hosts/:id. A host with registered
// stacks cannot be deleted; remove the stacks first.
func (s *Server) deleteHost(c echo.Context) error {
	id := c.Param("id")
	ctx := c.Request().Context()

	host, err := s.storage.GetHost(ctx, id)
	if err != nil {
		return err
	}

	stacks, err := s.storage.ListStacksByHost(ctx, id)
	if err != nil {
		return err
	}
	if len(stacks) > 0 {
		return models.NewError(models.KindConflict,
			"host %s still has %d registered stack(s)", id, len(stacks))
	}

	if err := s.storage.DeleteHost(ctx, host.ID, host.Rev); err != nil {
		return err
	}

	s.pool.Invalidate(id)

	s.broadcastEvent(EventHostRemoved, map[string]string{"id": id})

	return c.JSON(http.StatusOK, MessageResponse{
		Message: "host deleted",
		ID:      id,
	})
}

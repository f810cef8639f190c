package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// createStackRequest is the body of POST /api/v1/hosts/:id/stacks.
type createStackRequest struct {
	Project    string `json:"project"`
	Definition string `json:"definition"`
}

// createStack handles POST /api/v1/hosts/:id/stacks. It registers the stack
// without starting anything; bringing it up is an explicit /up call.
func (s *Server) createStack(c echo.Context) error {
	hostID := c.Param("id")

	var req createStackRequest
	if err := c.Bind(&req); err != nil {
		return BadRequestError("invalid request body", err.Error())
	}

	stack, err := s.composeExec.Create(c.Request().Context(), hostID, req.Project, req.Definition)
	if err != nil {
		return err
	}

	s.broadcastEvent(EventStackAdded, stack)

	return c.JSON(http.StatusCreated, stack)
}

// listHostStacks handles GET /api/v1/hosts/:id/stacks
func (s *Server) listHostStacks(c echo.Context) error {
	hostID := c.Param("id")
	ctx := c.Request().Context()

	// Unknown hosts report NotFound, not an empty list.
	if _, err := s.storage.GetHost(ctx, hostID); err != nil {
		return err
	}

	stacks, err := s.storage.ListStacksByHost(ctx, hostID)
	if err != nil {
		return err
	}

	limit, offset := parsePagination(c)
	total := len(stacks)
	stacks = paginateSlice(stacks, limit, offset)

	return c.JSON(http.StatusOK, PaginatedStacksResponse{
		Count:  len(stacks),
		Total:  total,
		Limit:  limit,
		Offset: offset,
		Stacks: stacks,
	})
}

// listStacks handles GET /api/v1/stacks
func (s *Server) listStacks(c echo.Context) error {
	filters := make(map[string]interface{})

	if state := c.QueryParam("state"); state != "" {
		filters["state"] = state
	}
	if hostID := c.QueryParam("hostId"); hostID != "" {
		filters["hostId"] = hostID
	}

	stacks, err := s.storage.ListStacks(c.Request().Context(), filters)
	if err != nil {
		return err
	}

	limit, offset := parsePagination(c)
	total := len(stacks)
	stacks = paginateSlice(stacks, limit, offset)

	return c.JSON(http.StatusOK, PaginatedStacksResponse{
		Count:  len(stacks),
		Total:  total,
		Limit:  limit,
		Offset: offset,
		Stacks: stacks,
	})
}

// getStack handles GET /api/v1/stacks/:id
func (s *Server) getStack(c echo.Context) error {
	stack, err := s.storage.LoadStack(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, stack)
}

// deleteStack handles DELETE /api/v1/stacks/:id. Only the record goes away;
// callers wanting teardown issue /down first.
func (s *Server) deleteStack(c echo.Context) error {
	id := c.Param("id")
	ctx := c.Request().Context()

	stack, err := s.storage.LoadStack(ctx, id)
	if err != nil {
		return err
	}

	if err := s.storage.DeleteStack(ctx, stack.ID, stack.Rev); err != nil {
		return err
	}

	s.broadcastEvent(EventStackRemoved, map[string]string{"id": id, "project": stack.Project})

	return c.JSON(http.StatusOK, MessageResponse{
		Message: "stack deleted",
		ID:      id,
	})
}

// stackUp handles POST /api/v1/stacks/:id/up
func (s *Server) stackUp(c echo.Context) error {
	result, err := s.composeExec.Up(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}

	s.broadcastEvent(EventStackStateChange, result)

	return c.JSON(http.StatusOK, result)
}

// stackDown handles POST /api/v1/stacks/:id/down
func (s *Server) stackDown(c echo.Context) error {
	result, err := s.composeExec.Down(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}

	s.broadcastEvent(EventStackStateChange, result)

	return c.JSON(http.StatusOK, result)
}

// stackRestartService handles POST /api/v1/stacks/:id/restart?service=name
func (s *Server) stackRestartService(c echo.Context) error {
	service := c.QueryParam("service")
	if service == "" {
		return BadRequestError("missing service parameter", "restart requires ?service=<name>")
	}

	result, err := s.composeExec.RestartService(c.Request().Context(), c.Param("id"), service)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, result)
}

// stackPS handles GET /api/v1/stacks/:id/ps
func (s *Server) stackPS(c echo.Context) error {
	id := c.Param("id")

	containers, err := s.composeExec.PS(c.Request().Context(), id)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, StackPSResponse{
		Count:      len(containers),
		StackID:    id,
		Containers: containers,
	})
}

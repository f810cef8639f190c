package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// listContainers handles GET /api/v1/hosts/:id/containers
func (s *Server) listContainers(c echo.Context) error {
	hostID := c.Param("id")

	containers, err := s.dockerExec.ListContainers(c.Request().Context(), hostID)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, ContainersResponse{
		Count:      len(containers),
		HostID:     hostID,
		Containers: containers,
	})
}

// containerStatus handles GET /api/v1/hosts/:id/containers/:cid/status
func (s *Server) containerStatus(c echo.Context) error {
	status, err := s.dockerExec.ContainerStatus(c.Request().Context(), c.Param("id"), c.Param("cid"))
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, status)
}

// startContainer handles POST /api/v1/hosts/:id/containers/:cid/start
func (s *Server) startContainer(c echo.Context) error {
	hostID := c.Param("id")
	containerID := c.Param("cid")

	result, err := s.dockerExec.StartContainer(c.Request().Context(), hostID, containerID)
	if err != nil {
		return err
	}

	s.broadcastEvent(EventContainerStarted, map[string]string{
		"hostId":      hostID,
		"containerId": containerID,
	})

	return c.JSON(http.StatusOK, result)
}

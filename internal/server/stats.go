package server

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/surgidocs/opreport-tracker/internal/common"
)

func (s *Server) handleStats(c echo.Context) error {
	f, err := listFilterFromQuery(c)
	if err != nil {
		return err
	}
	sum, err := s.stats.Compute(c.Request().Context(), f)
	if err != nil {
		s.logger.Error("api.stats_failed", "error", err)
		return common.InternalError("compute stats")
	}
	return c.JSON(http.StatusOK, sum)
}

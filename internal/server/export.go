package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/surgidocs/opreport-tracker/internal/common"
)

func (s *Server) handleExportCSV(c echo.Context) error {
	f, err := listFilterFromQuery(c)
	if err != nil {
		return err
	}
	data, err := s.exports.ExportCSV(c.Request().Context(), f)
	if err != nil {
		s.logger.Error("api.export_csv_failed", "error", err)
		return common.InternalError("export csv")
	}
	c.Response().Header().Set(echo.HeaderContentDisposition, exportFilename("csv"))
	return c.Blob(http.StatusOK, "text/csv; charset=utf-8", data)
}

func (s *Server) handleExportXLSX(c echo.Context) error {
	f, err := listFilterFromQuery(c)
	if err != nil {
		return err
	}
	data, err := s.exports.ExportXLSX(c.Request().Context(), f)
	if err != nil {
		s.logger.Error("api.export_xlsx_failed", "error", err)
		return common.InternalError("export xlsx")
	}
	c.Response().Header().Set(echo.HeaderContentDisposition, exportFilename("xlsx"))
	return c.Blob(http.StatusOK,
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", data)
}

func exportFilename(ext string) string {
	return fmt.Sprintf(`attachment; filename="operationen-%s.%s"`,
		time.Now().UTC().Format("2006-01-02"), ext)
}

package server

import (
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/surgidocs/opreport-tracker/constants"
	"github.com/surgidocs/opreport-tracker/internal/blob"
	"github.com/surgidocs/opreport-tracker/internal/common"
	"github.com/surgidocs/opreport-tracker/internal/completeness"
	"github.com/surgidocs/opreport-tracker/internal/entity"
	"github.com/surgidocs/opreport-tracker/internal/pipeline"
	"github.com/surgidocs/opreport-tracker/internal/reconcile"
	"github.com/surgidocs/opreport-tracker/internal/repository"
)

type operationResponse struct {
	Operation     *entity.Operation `json:"operation"`
	MissingFields []string          `json:"missing_fields"`
}

func (s *Server) handleUpload(c echo.Context) error {
	form, err := c.MultipartForm()
	if err != nil {
		return common.InvalidArgumentError("multipart form required")
	}
	fileHeaders := form.File["files"]
	if len(fileHeaders) == 0 {
		return common.InvalidArgumentError("at least one file is required")
	}
	if len(fileHeaders) > constants.MaxUploadFiles {
		return common.InvalidArgumentErrorf("at most %d files per submission", constants.MaxUploadFiles)
	}

	opID := strings.TrimSpace(c.FormValue("op_id"))
	date := strings.TrimSpace(c.FormValue("date"))
	patientID := strings.TrimSpace(c.FormValue("patient_id"))

	v := common.NewValidator()
	if opID != "" {
		v.Field("op_id", opID, common.OpID)
	}
	if date != "" {
		v.Field("date", date, common.DateYMD)
	}
	if err := common.ValidateAndReturnError(v); err != nil {
		return err
	}

	var files []pipeline.UploadFile
	for _, fh := range fileHeaders {
		ext := constants.NormalizeExt(filepath.Ext(fh.Filename))
		_, extOK := constants.AllowedExtensions[ext]
		if !constants.IsAllowedContentType(fh.Header.Get("Content-Type")) && !extOK {
			return common.InvalidArgumentErrorf("unsupported file type: %s", fh.Filename)
		}
		f, err := fh.Open()
		if err != nil {
			return common.InternalError("read upload")
		}
		data, err := io.ReadAll(f)
		_ = f.Close()
		if err != nil {
			return common.InternalError("read upload")
		}
		files = append(files, pipeline.UploadFile{
			OriginalName: fh.Filename,
			ContentType:  fh.Header.Get("Content-Type"),
			Data:         data,
		})
	}

	persisted, missing, err := s.proc.Process(c.Request().Context(), pipeline.Submission{
		Files:     files,
		OpID:      opID,
		Date:      date,
		PatientID: patientID,
	})
	if err != nil {
		s.logger.Error("api.upload_failed", "error", err)
		return common.InternalError("process submission")
	}
	return c.JSON(http.StatusCreated, operationResponse{Operation: persisted, MissingFields: missing})
}

func (s *Server) handleList(c echo.Context) error {
	f, err := listFilterFromQuery(c)
	if err != nil {
		return err
	}
	ops, err := s.repo.List(c.Request().Context(), f)
	if err != nil {
		return common.InternalError("list operations")
	}
	resp := make([]operationResponse, 0, len(ops))
	for _, op := range ops {
		resp = append(resp, operationResponse{
			Operation:     op,
			MissingFields: completeness.Evaluate(op),
		})
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) handleGet(c echo.Context) error {
	op, err := s.getOperation(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, op)
}

// patchRequest mirrors reconcile.Patch with wire names. patient_id is
// the raw identifier; it is pseudonymized before storage.
type patchRequest struct {
	Date           *string            `json:"date"`
	Diagnosis      *string            `json:"diagnosis"`
	AnesthesiaType *string            `json:"anesthesia_type"`
	Positioning    *string            `json:"positioning"`
	Team           []string           `json:"team"`
	Narrative      *string            `json:"narrative"`
	Pathology      *string            `json:"pathology_finding"`
	DurationMin    *int               `json:"duration_min"`
	BloodLossML    *int               `json:"blood_loss_ml"`
	Materials      []entity.Material  `json:"materials"`
	TimePhases     []entity.TimePhase `json:"time_phases"`
	PatientID      *string            `json:"patient_id"`
}

func (s *Server) handlePatch(c echo.Context) error {
	op, err := s.getOperation(c)
	if err != nil {
		return err
	}

	var req patchRequest
	if err := c.Bind(&req); err != nil {
		return common.InvalidArgumentError("malformed patch body")
	}
	v := common.NewValidator()
	if req.Date != nil {
		v.Field("date", *req.Date, common.DateYMD)
	}
	if err := common.ValidateAndReturnError(v); err != nil {
		return err
	}

	updated, missing, err := s.rec.Edit(c.Request().Context(), op, reconcile.Patch{
		Date:           req.Date,
		Diagnosis:      req.Diagnosis,
		AnesthesiaType: req.AnesthesiaType,
		Positioning:    req.Positioning,
		Team:           req.Team,
		Narrative:      req.Narrative,
		Pathology:      req.Pathology,
		DurationMin:    req.DurationMin,
		BloodLossML:    req.BloodLossML,
		Materials:      req.Materials,
		TimePhases:     req.TimePhases,
		RawPatientID:   req.PatientID,
	})
	if err != nil {
		s.logger.Error("api.patch_failed", "id", op.ID, "error", err)
		return common.InternalError("update operation")
	}
	return c.JSON(http.StatusOK, operationResponse{Operation: updated, MissingFields: missing})
}

func (s *Server) handleDelete(c echo.Context) error {
	op, err := s.getOperation(c)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(c.Request().Context(), op.ID); err != nil {
		return common.InternalError("delete operation")
	}
	if s.media != nil {
		infos, err := s.media.List(c.Request().Context(), op.OpID+"/")
		if err == nil {
			for _, info := range infos {
				_, _ = s.media.Delete(c.Request().Context(), info.Key)
			}
		}
	}
	s.logger.Info("api.operation_deleted", "id", op.ID, "op_id", op.OpID)
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleMedia(c echo.Context) error {
	op, err := s.getOperation(c)
	if err != nil {
		return err
	}
	page, err := strconv.Atoi(c.Param("page"))
	if err != nil {
		return common.InvalidArgumentError("page must be a number")
	}
	var media *entity.MediaFile
	for i := range op.Media {
		if op.Media[i].Page == page {
			media = &op.Media[i]
			break
		}
	}
	if media == nil || media.StoredName == "" {
		return common.NotFoundError("no media for page")
	}
	info, rc, err := s.media.Get(c.Request().Context(), media.StoredName)
	if err != nil {
		if errors.Is(err, blob.ErrNotFound) {
			return common.NotFoundError("media blob missing")
		}
		return common.InternalError("read media")
	}
	defer func() { _ = rc.Close() }()

	contentType := info.ContentType
	if contentType == "" {
		contentType = echo.MIMEOctetStream
	}
	return c.Stream(http.StatusOK, contentType, rc)
}

func (s *Server) getOperation(c echo.Context) (*entity.Operation, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return nil, common.InvalidArgumentError("invalid operation id")
	}
	op, err := s.repo.GetByID(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, common.NotFoundError("operation not found")
		}
		return nil, common.InternalError("load operation")
	}
	return op, nil
}

func listFilterFromQuery(c echo.Context) (repository.ListFilter, error) {
	var f repository.ListFilter
	if from := c.QueryParam("from"); from != "" {
		d, err := time.ParseInLocation("2006-01-02", from, time.UTC)
		if err != nil {
			return f, common.InvalidArgumentError("from must be a YYYY-MM-DD date")
		}
		f.From = &d
	}
	if to := c.QueryParam("to"); to != "" {
		d, err := time.ParseInLocation("2006-01-02", to, time.UTC)
		if err != nil {
			return f, common.InvalidArgumentError("to must be a YYYY-MM-DD date")
		}
		f.To = &d
	}
	if complete := c.QueryParam("complete"); complete != "" {
		b, err := strconv.ParseBool(complete)
		if err != nil {
			return f, common.InvalidArgumentError("complete must be true or false")
		}
		f.Complete = &b
	}
	return f, nil
}

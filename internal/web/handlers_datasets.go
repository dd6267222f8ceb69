package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/JonMunkholm/qrtrack/internal/core"
	"github.com/JonMunkholm/qrtrack/internal/logging"
	"github.com/go-chi/chi/v5"
)

// importDefinition is the "definition" form field of an import request.
type importDefinition struct {
	ProgramName    string             `json:"programName"`
	Description    string             `json:"description"`
	StandardFields []string           `json:"standardFields"`
	CustomFields   []core.CustomField `json:"customFields"`
	FieldMapping   map[string]string  `json:"fieldMapping"`
}

func (s *Server) handleListDatasets(w http.ResponseWriter, r *http.Request) {
	list, err := s.service.Records.Datasets(r.Context(), actor(r).OrgID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	if list == nil {
		list = []core.Dataset{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleGetDataset(w http.ResponseWriter, r *http.Request) {
	ds, err := s.service.Records.Dataset(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ds)
}

// handleImport builds a dataset from a multipart CSV upload outside the
// wizard. The "definition" field carries the program name and fields.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	maxSize := s.cfg.Import.MaxFileSize
	r.Body = http.MaxBytesReader(w, r.Body, maxSize)

	if err := r.ParseMultipartForm(maxSize); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			badRequest(w, r, "file", fmt.Sprintf("file too large (max %d bytes)", maxSize))
			return
		}
		badRequest(w, r, "file", "invalid csv form: "+err.Error())
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	var def importDefinition
	if err := json.Unmarshal([]byte(r.FormValue("definition")), &def); err != nil {
		badRequest(w, r, "definition", "invalid definition: "+err.Error())
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		badRequest(w, r, "file", "no file provided")
		return
	}
	defer file.Close()

	upload, err := core.ReadUpload(file, header.Filename, 0)
	if err != nil {
		badRequest(w, r, "file", err.Error())
		return
	}

	a := actor(r)
	ctx := WithRequestMetadata(r.Context(), r)
	res, err := s.service.Builder.Build(ctx, core.BuildRequest{
		ProgramName:    def.ProgramName,
		OrganizationID: a.OrgID,
		CreatedBy:      a.UserID,
		Description:    def.Description,
		Upload:         *upload,
		FieldMapping:   def.FieldMapping,
		StandardFields: def.StandardFields,
		CustomFields:   def.CustomFields,
	})
	if err != nil {
		respondError(w, r, err)
		return
	}

	logging.FromContext(r.Context()).Info("dataset imported",
		"dataset_id", res.DatasetID,
		"file", header.Filename,
		"created", res.RecordsCreated,
		"skipped", res.RecordsSkipped,
	)
	writeJSON(w, http.StatusCreated, res)
}

// handleExport streams a dataset as CSV.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	ds, err := s.service.Records.Dataset(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf(`attachment; filename="%s"`, s.service.Exporter.ExportFilename(ds)))

	if err := s.service.Exporter.ExportCSV(r.Context(), ds.ID, w); err != nil {
		// Headers are sent; the client sees a truncated file.
		logging.FromContext(r.Context()).Error("export failed",
			"dataset_id", ds.ID,
			"error", err,
		)
	}
}

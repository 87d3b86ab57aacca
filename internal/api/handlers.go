package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"

	"surveyd/internal/calc"
	"surveyd/internal/config"
	"surveyd/internal/dataset"
	"surveyd/internal/models"
	"surveyd/internal/profile"
	"surveyd/internal/state"
)

const MaxFileSize = 100 * 1024 * 1024 // 100MB

type Handler struct {
	Registry *state.Registry
	Log      *slog.Logger

	// dbMu guards db: ConnectDB swaps it while table requests read it.
	dbMu sync.Mutex
	db   *dataset.PostgresSource
}

func NewHandler(registry *state.Registry, log *slog.Logger) *Handler {
	return &Handler{Registry: registry, Log: log}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/health", h.HealthCheck)

	r.Post("/api/datasets", h.UploadDataset)
	r.Get("/api/datasets", h.ListDatasets)
	r.Get("/api/datasets/{id}", h.GetDataset)
	r.Delete("/api/datasets/{id}", h.DeleteDataset)
	r.Get("/api/datasets/{id}/columns", h.GetColumns)
	r.Put("/api/datasets/{id}/config", h.PutConfig)
	r.Get("/api/datasets/{id}/questions", h.GetQuestions)
	r.Get("/api/datasets/{id}/categories", h.GetCategories)
	r.Get("/api/datasets/{id}/percentages", h.GetPercentages)
	r.Get("/api/datasets/{id}/profile", h.GetProfile)

	r.Post("/api/db/connect", h.ConnectDB)
	r.Get("/api/db/tables", h.ListTables)
	r.Post("/api/db/load", h.LoadTable)
}

func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	w.Write([]byte("OK"))
}

// UploadDataset accepts a multipart "file" field holding a CSV, Stata .dta,
// or SAS .sas7bdat file and registers it under a fresh dataset id.
func (h *Handler) UploadDataset(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(MaxFileSize); err != nil {
		h.writeError(w, http.StatusBadRequest, fmt.Errorf("parse upload: %w", err))
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		h.writeError(w, http.StatusBadRequest, fmt.Errorf("missing file field: %w", err))
		return
	}
	defer file.Close()

	var ds *dataset.Dataset
	switch strings.ToLower(filepath.Ext(header.Filename)) {
	case ".csv":
		name := strings.TrimSuffix(header.Filename, filepath.Ext(header.Filename))
		ds, err = dataset.LoadCSV(file, name)
	case ".dta", ".sas7bdat":
		// The stat-file reader needs a seeker; buffer the upload.
		var buf bytes.Buffer
		if _, err = io.Copy(&buf, file); err == nil {
			ds, err = dataset.LoadStatFile(bytes.NewReader(buf.Bytes()), header.Filename)
		}
	default:
		err = fmt.Errorf("unsupported file type %q", filepath.Ext(header.Filename))
	}
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}

	entry := h.Registry.Add(ds, config.Default())
	h.Log.Info("dataset loaded", "id", entry.ID, "name", ds.Name,
		"rows", ds.Rows(), "columns", len(ds.Columns))
	h.writeJSON(w, http.StatusCreated, datasetInfo(entry))
}

func (h *Handler) ListDatasets(w http.ResponseWriter, r *http.Request) {
	ids := h.Registry.IDs()
	infos := make([]models.DatasetInfo, 0, len(ids))
	for _, id := range ids {
		if entry, err := h.Registry.Get(id); err == nil {
			infos = append(infos, datasetInfo(entry))
		}
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"datasets": infos})
}

func (h *Handler) GetDataset(w http.ResponseWriter, r *http.Request) {
	entry, ok := h.entry(w, r)
	if !ok {
		return
	}
	h.writeJSON(w, http.StatusOK, datasetInfo(entry))
}

func (h *Handler) DeleteDataset(w http.ResponseWriter, r *http.Request) {
	h.Registry.Remove(chi.URLParam(r, "id"))
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) GetColumns(w http.ResponseWriter, r *http.Request) {
	entry, ok := h.entry(w, r)
	if !ok {
		return
	}
	cols := make([]models.ColumnInfo, len(entry.Dataset.Columns))
	for i, c := range entry.Dataset.Columns {
		cols[i] = columnInfo(c.Desc)
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"columns": cols})
}

// PutConfig replaces the dataset's analysis config. The body is the YAML
// config document; derived questions and categories are recomputed on next
// access.
func (h *Handler) PutConfig(w http.ResponseWriter, r *http.Request) {
	entry, ok := h.entry(w, r)
	if !ok {
		return
	}
	raw, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}
	cfg, err := config.Parse(raw)
	if err != nil {
		h.writeError(w, http.StatusUnprocessableEntity, err)
		return
	}
	entry.SetConfig(cfg)
	h.Log.Info("config updated", "id", entry.ID)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) GetQuestions(w http.ResponseWriter, r *http.Request) {
	entry, ok := h.entry(w, r)
	if !ok {
		return
	}
	res := entry.Questions()
	h.writeJSON(w, http.StatusOK, models.QuestionsResponse{
		DatasetID: entry.ID,
		Questions: res.Questions,
		ByColumn:  res.ByColumn,
		Problems:  errorStrings(res.Problems),
	})
}

func (h *Handler) GetCategories(w http.ResponseWriter, r *http.Request) {
	entry, ok := h.entry(w, r)
	if !ok {
		return
	}
	res := entry.Categories()
	infos := make([]models.CategoryInfo, len(res.Categories))
	for i, cat := range res.Categories {
		info := models.CategoryInfo{
			Name:   cat.Name,
			Kind:   cat.Kind,
			Group:  cat.Group,
			Levels: cat.Levels,
		}
		for row := range cat.Member {
			if cat.Member[row] {
				info.Members++
			}
			if cat.Known[row] {
				info.Known++
			}
		}
		infos[i] = info
	}
	h.writeJSON(w, http.StatusOK, models.CategoriesResponse{
		DatasetID:  entry.ID,
		Categories: infos,
		Problems:   errorStrings(res.Problems),
	})
}

func (h *Handler) GetPercentages(w http.ResponseWriter, r *http.Request) {
	entry, ok := h.entry(w, r)
	if !ok {
		return
	}
	opts := calc.Options{Weighted: r.URL.Query().Get("weighted") == "1"}
	table := calc.Percentages(entry.Dataset, entry.Config(), entry.Questions(), entry.Categories(), opts)
	h.writeJSON(w, http.StatusOK, table)
}

// GetProfile returns the per-column data quality report.
func (h *Handler) GetProfile(w http.ResponseWriter, r *http.Request) {
	entry, ok := h.entry(w, r)
	if !ok {
		return
	}
	h.writeJSON(w, http.StatusOK, profile.Profile(entry.Dataset, entry.Config()))
}

// ConnectDB establishes the PostgreSQL connection used by LoadTable.
func (h *Handler) ConnectDB(w http.ResponseWriter, r *http.Request) {
	var req models.ConnectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, fmt.Errorf("invalid JSON: %w", err))
		return
	}

	src := &dataset.PostgresSource{}
	if err := src.Connect(dataset.SourceConfig{
		Host: req.Host, Port: req.Port, User: req.User,
		Password: req.Password, DBName: req.DBName, SSLMode: req.SSLMode,
	}); err != nil {
		h.writeError(w, http.StatusInternalServerError, fmt.Errorf("connect: %w", err))
		return
	}

	h.setDatabase(src)
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "connected"})
}

func (h *Handler) ListTables(w http.ResponseWriter, r *http.Request) {
	db := h.database()
	if db == nil {
		h.writeError(w, http.StatusBadRequest, fmt.Errorf("no database connection"))
		return
	}
	tables, err := db.ListTables()
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"tables": tables})
}

// LoadTable reads a whole response table into a new dataset.
func (h *Handler) LoadTable(w http.ResponseWriter, r *http.Request) {
	db := h.database()
	if db == nil {
		h.writeError(w, http.StatusBadRequest, fmt.Errorf("no database connection"))
		return
	}
	var req models.LoadTableRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, fmt.Errorf("invalid JSON: %w", err))
		return
	}
	ds, err := db.LoadTable(req.Table)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}
	entry := h.Registry.Add(ds, config.Default())
	h.Log.Info("table loaded", "id", entry.ID, "table", req.Table, "rows", ds.Rows())
	h.writeJSON(w, http.StatusCreated, datasetInfo(entry))
}

// ============================================================================
// Helpers
// ============================================================================

// setDatabase swaps the active connection, closing the previous one.
func (h *Handler) setDatabase(src *dataset.PostgresSource) {
	h.dbMu.Lock()
	defer h.dbMu.Unlock()
	if h.db != nil {
		h.db.Close()
	}
	h.db = src
}

func (h *Handler) database() *dataset.PostgresSource {
	h.dbMu.Lock()
	defer h.dbMu.Unlock()
	return h.db
}

func (h *Handler) entry(w http.ResponseWriter, r *http.Request) (*state.Entry, bool) {
	entry, err := h.Registry.Get(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, http.StatusNotFound, err)
		return nil, false
	}
	return entry, true
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.Log.Error("write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, err error) {
	h.Log.Warn("request failed", "status", status, "error", err)
	h.writeJSON(w, status, models.ErrorResponse{Error: err.Error()})
}

func errorStrings(errs []error) []string {
	if len(errs) == 0 {
		return nil
	}
	out := make([]string, len(errs))
	for i, err := range errs {
		out[i] = err.Error()
	}
	return out
}

func datasetInfo(entry *state.Entry) models.DatasetInfo {
	return models.DatasetInfo{
		ID:      entry.ID,
		Name:    entry.Dataset.Name,
		Rows:    entry.Dataset.Rows(),
		Columns: len(entry.Dataset.Columns),
	}
}

func columnInfo(d dataset.Descriptor) models.ColumnInfo {
	info := models.ColumnInfo{
		Name:  d.Name,
		Kind:  d.Kind.String(),
		Label: d.Label,
	}
	if len(d.ValueLabels) > 0 {
		info.ValueLabels = make(map[string]string, len(d.ValueLabels))
		for v, lab := range d.ValueLabels {
			info.ValueLabels[fmt.Sprintf("%g", v)] = lab
		}
	}
	for code := range d.MissingCodes {
		info.MissingCodes = append(info.MissingCodes, code)
	}
	return info
}

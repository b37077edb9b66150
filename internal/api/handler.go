package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/opensource-finance/kestrel/internal/batch"
	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/export"
	"github.com/opensource-finance/kestrel/internal/ingest"
	"github.com/opensource-finance/kestrel/internal/metrics"
	"github.com/opensource-finance/kestrel/internal/report"
	"github.com/opensource-finance/kestrel/internal/rules"
	"github.com/opensource-finance/kestrel/internal/store"
)

// Handler holds dependencies for API handlers.
type Handler struct {
	store     *store.ResultStore
	bus       domain.EventBus
	engine    *rules.Engine
	loader    *rules.Loader
	processor *batch.Processor
	version   string

	maxBodyBytes int64
	maxInline    int
}

// NewHandler creates a new API handler. loader may be nil when the rule set
// comes from compiled-in defaults only.
func NewHandler(st *store.ResultStore, bus domain.EventBus, engine *rules.Engine, loader *rules.Loader, processor *batch.Processor, cfg domain.Config, version string) *Handler {
	return &Handler{
		store:        st,
		bus:          bus,
		engine:       engine,
		loader:       loader,
		processor:    processor,
		version:      version,
		maxBodyBytes: int64(cfg.MaxBodyMB) << 20,
		maxInline:    cfg.MaxInlineRecords,
	}
}

// BatchRequest is the JSON request body for POST /v1/batches.
type BatchRequest struct {
	Records []domain.Record `json:"records"`
}

// BatchResponse is the response for POST /v1/batches and GET /v1/batches/{id}.
// Records are elided above the inline cap; the export endpoint returns them
// all.
type BatchResponse struct {
	BatchID    string              `json:"batchId"`
	CreatedAt  time.Time           `json:"createdAt"`
	Summary    domain.BatchSummary `json:"summary"`
	Narrative  string              `json:"narrative"`
	DurationMs int64               `json:"durationMs"`

	Records       []domain.ScoredRecord `json:"records,omitempty"`
	RecordsElided bool                  `json:"recordsElided,omitempty"`
}

// ScoreRecord handles POST /v1/score: scores a single record. Absent fields
// contribute nothing, so a partial record is accepted.
func (h *Handler) ScoreRecord(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodyBytes)

	var rec domain.Record
	if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	scored := h.engine.Snapshot().ScoreRecord(rec)
	writeJSON(w, http.StatusOK, scored)
}

// ScoreBatch handles POST /v1/batches: accepts a JSON record list or a CSV
// body, scores it, stores the result, and publishes scoring events.
func (h *Handler) ScoreBatch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodyBytes)

	b, err := h.readBatch(r)
	if err != nil {
		if errors.Is(err, domain.ErrMissingColumns) {
			metrics.ValidationFailures.Inc()
			writeJSON(w, http.StatusUnprocessableEntity, map[string]string{
				"error": err.Error(),
			})
			return
		}
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": err.Error(),
		})
		return
	}

	result, err := h.processor.Process(ctx, b)
	if err != nil {
		slog.Error("batch processing failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "batch processing failed",
		})
		return
	}
	result.Narrative = report.Narrative(&result.Summary)

	h.store.Put(result)
	h.publishEvents(ctx, result)

	metrics.BatchesScored.Inc()
	metrics.RecordsScored.Add(float64(result.Summary.TotalRecords))
	for _, c := range result.Summary.CategoryCounts {
		metrics.RecordsByCategory.WithLabelValues(c.Name).Add(float64(c.Count))
	}
	metrics.BatchDuration.Observe(float64(result.DurationMs))

	slog.Info("batch scored",
		"batch_id", result.ID,
		"records", result.Summary.TotalRecords,
		"high_risk", result.Summary.CategoryCountFor(result.Summary.HighestCategory),
		"mean_score", result.Summary.MeanScore,
		"duration_ms", result.DurationMs,
	)

	writeJSON(w, http.StatusOK, h.batchResponse(result))
}

// GetBatch handles GET /v1/batches/{id}.
func (h *Handler) GetBatch(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	result, ok := h.store.Get(id)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "batch not found",
		})
		return
	}

	writeJSON(w, http.StatusOK, h.batchResponse(result))
}

// ExportBatch handles GET /v1/batches/{id}/export: the scored batch as a CSV
// download.
func (h *Handler) ExportBatch(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	result, ok := h.store.Get(id)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "batch not found",
		})
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="scored_%s.csv"`, id))
	if err := export.WriteCSV(w, result); err != nil {
		slog.Error("failed to write export", "batch_id", id, "error", err)
	}
}

// GetRules returns the active rule set.
func (h *Handler) GetRules(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.engine.RuleSet())
}

// ReloadRules forces a re-read of the rules file into the engine. A failed
// load keeps the previous rule set.
func (h *Handler) ReloadRules(w http.ResponseWriter, r *http.Request) {
	if h.loader == nil {
		writeJSON(w, http.StatusConflict, map[string]string{
			"error": "no rules file configured",
		})
		return
	}

	rs, err := h.loader.Reload()
	if err != nil {
		slog.Error("rules reload failed", "path", h.loader.Path(), "error", err)
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "reload failed: " + err.Error(),
		})
		return
	}

	if err := h.engine.Reload(rs); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "reload failed: " + err.Error(),
		})
		return
	}

	slog.Info("rules reloaded", "path", h.loader.Path())
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "rules reloaded successfully",
		"rules":   rs,
	})
}

// Health returns server health status.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := "healthy"

	if h.bus != nil {
		if err := h.bus.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":  status,
		"version": h.version,
	})
}

// Ready returns whether the server is ready to accept traffic.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"ready": "true",
	})
}

// readBatch parses the request body by content type: CSV bodies go through
// the CSV reader, everything else is treated as JSON.
func (h *Handler) readBatch(r *http.Request) (*domain.Batch, error) {
	mediaType := r.Header.Get("Content-Type")
	if mt, _, err := mime.ParseMediaType(mediaType); err == nil {
		mediaType = mt
	}

	switch mediaType {
	case "text/csv", "application/csv":
		return ingest.ReadCSV(r.Body)
	default:
		var req BatchRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return nil, fmt.Errorf("invalid JSON request body")
		}
		return ingest.FromRecords(req.Records)
	}
}

func (h *Handler) batchResponse(result *domain.BatchResult) BatchResponse {
	resp := BatchResponse{
		BatchID:    result.ID,
		CreatedAt:  result.CreatedAt,
		Summary:    result.Summary,
		Narrative:  result.Narrative,
		DurationMs: result.DurationMs,
	}
	if h.maxInline > 0 && len(result.Records) > h.maxInline {
		resp.RecordsElided = true
	} else {
		resp.Records = result.Records
	}
	return resp
}

// publishEvents emits the batch event plus one alert per highest-category
// record. Publish failures are logged, never surfaced to the client.
func (h *Handler) publishEvents(ctx context.Context, result *domain.BatchResult) {
	if h.bus == nil {
		return
	}

	highest := result.Summary.HighestCategory
	event := domain.BatchScoredEvent{
		BatchID:      result.ID,
		TotalRecords: result.Summary.TotalRecords,
		HighRisk:     result.Summary.CategoryCountFor(highest),
		MeanScore:    result.Summary.MeanScore,
		DurationMs:   result.DurationMs,
	}
	payload, _ := json.Marshal(event)
	if err := h.bus.Publish(ctx, domain.TopicBatchScored, payload); err != nil {
		slog.Error("failed to publish batch event", "batch_id", result.ID, "error", err)
	}

	for _, rec := range result.Records {
		if rec.Category != highest {
			continue
		}
		alert := domain.HighRiskAlertEvent{
			BatchID:  result.ID,
			TxnID:    rec.Record.TxnID(),
			Score:    rec.Score,
			Category: rec.Category,
			Corridor: corridorOf(rec.Record),
		}
		payload, _ := json.Marshal(alert)
		if err := h.bus.Publish(ctx, domain.TopicHighRiskAlert, payload); err != nil {
			slog.Error("failed to publish alert", "txn_id", alert.TxnID, "error", err)
		}
	}
}

func corridorOf(rec domain.Record) string {
	sender := strings.ToUpper(strings.TrimSpace(rec.Field(domain.ColSenderCountry)))
	receiver := strings.ToUpper(strings.TrimSpace(rec.Field(domain.ColReceiverCountry)))
	return sender + ">" + receiver
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

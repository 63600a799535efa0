package rest

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/kuroweb/crawlflare/internal/contextkeys"
	"github.com/kuroweb/crawlflare/internal/core/domain"
	"github.com/kuroweb/crawlflare/internal/core/port"
	"github.com/kuroweb/crawlflare/internal/core/port/usecases_port"
)

// Pinger reports whether a backing service is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type CrawlHandlers struct {
	requestCrawlUC usecases_port.RequestCrawlPort
	resultsUC      usecases_port.ResultsPort
	validator      *Validator
	db             Pinger
}

// NewCrawlHandlers wires the handlers. db may be nil, in which case the
// health check only reports the process as alive.
func NewCrawlHandlers(requestCrawlUC usecases_port.RequestCrawlPort, resultsUC usecases_port.ResultsPort, db Pinger) *CrawlHandlers {
	return &CrawlHandlers{
		requestCrawlUC: requestCrawlUC,
		resultsUC:      resultsUC,
		validator:      NewValidator(),
		db:             db,
	}
}

// HandleExecuteCrawl enqueues a list crawl for one product, or for every
// enabled setting when the body carries no product id.
func (h *CrawlHandlers) HandleExecuteCrawl(w http.ResponseWriter, r *http.Request) {
	logger := contextkeys.LoggerFromContext(r.Context()).WithFields(port.Fields{"handler": "ExecuteCrawl"})

	var req ExecuteCrawlRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		logger.Warn("Failed to decode request body", port.Fields{"error": err.Error()})
		WriteJSONError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := h.validator.Validate(req); err != nil {
		WriteJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	if req.ProductID == nil {
		n, err := h.requestCrawlUC.RequestAllEnabled(r.Context())
		if err != nil {
			logger.Error("Failed to enqueue crawls for enabled settings", err, port.Fields{"enqueued": n})
			WriteJSONError(w, http.StatusInternalServerError, "Failed to enqueue crawl jobs")
			return
		}
		RespondWithJSON(w, http.StatusAccepted, ExecuteCrawlResponse{Enqueued: n})
		return
	}

	productID := *req.ProductID
	err := h.requestCrawlUC.RequestProduct(r.Context(), productID)
	switch {
	case err == nil:
		RespondWithJSON(w, http.StatusAccepted, ExecuteCrawlResponse{Enqueued: 1, ProductID: &productID})
	case errors.Is(err, domain.ErrProductNotFound):
		WriteJSONError(w, http.StatusNotFound, "Product not found")
	case errors.Is(err, domain.ErrCrawlSettingNotFound), errors.Is(err, domain.ErrCrawlDisabled):
		WriteJSONError(w, http.StatusNotFound, "Crawl setting not found or disabled")
	default:
		logger.Error("Failed to enqueue crawl", err, port.Fields{"product_id": productID})
		WriteJSONError(w, http.StatusInternalServerError, "Failed to enqueue crawl job")
	}
}

func (h *CrawlHandlers) HandleListResults(w http.ResponseWriter, r *http.Request) {
	logger := contextkeys.LoggerFromContext(r.Context()).WithFields(port.Fields{"handler": "ListResults"})

	params, ok := h.pathParams(w, r)
	if !ok {
		return
	}

	rows, err := h.resultsUC.ListByProduct(r.Context(), params.ProductID)
	if err != nil {
		if errors.Is(err, domain.ErrProductNotFound) {
			WriteJSONError(w, http.StatusNotFound, "Product not found")
			return
		}
		logger.Error("Failed to list results", err, port.Fields{"product_id": params.ProductID})
		WriteJSONError(w, http.StatusInternalServerError, "Failed to retrieve results")
		return
	}

	data := make([]ResultResponse, len(rows))
	for i, row := range rows {
		data[i] = toResultResponse(row)
	}
	RespondWithJSON(w, http.StatusOK, ResultsResponse{ProductID: params.ProductID, Total: len(data), Data: data})
}

func (h *CrawlHandlers) HandleGetResult(w http.ResponseWriter, r *http.Request) {
	logger := contextkeys.LoggerFromContext(r.Context()).WithFields(port.Fields{"handler": "GetResult"})

	params, ok := h.pathParams(w, r)
	if !ok {
		return
	}

	row, err := h.resultsUC.GetByExternalID(r.Context(), params.ProductID, params.ExternalID)
	if err != nil {
		if errors.Is(err, domain.ErrListingNotFound) {
			WriteJSONError(w, http.StatusNotFound, "Result not found")
			return
		}
		logger.Error("Failed to get result", err, port.Fields{"product_id": params.ProductID, "external_id": params.ExternalID})
		WriteJSONError(w, http.StatusInternalServerError, "Failed to retrieve result")
		return
	}
	RespondWithJSON(w, http.StatusOK, toResultResponse(row))
}

func (h *CrawlHandlers) HandlePurgeResults(w http.ResponseWriter, r *http.Request) {
	logger := contextkeys.LoggerFromContext(r.Context()).WithFields(port.Fields{"handler": "PurgeResults"})

	params, ok := h.pathParams(w, r)
	if !ok {
		return
	}

	n, err := h.resultsUC.PurgeProduct(r.Context(), params.ProductID)
	if err != nil {
		if errors.Is(err, domain.ErrProductNotFound) {
			WriteJSONError(w, http.StatusNotFound, "Product not found")
			return
		}
		logger.Error("Failed to purge results", err, port.Fields{"product_id": params.ProductID})
		WriteJSONError(w, http.StatusInternalServerError, "Failed to delete results")
		return
	}
	RespondWithJSON(w, http.StatusOK, PurgeResponse{ProductID: params.ProductID, Deleted: n})
}

func (h *CrawlHandlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	if h.db != nil {
		if err := h.db.Ping(r.Context()); err != nil {
			contextkeys.LoggerFromContext(r.Context()).Warn("Health check failed", port.Fields{"error": err.Error()})
			WriteJSONError(w, http.StatusServiceUnavailable, "database unavailable")
			return
		}
	}
	RespondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// pathParams parses and validates the URL parameters. On failure the error
// response is already written.
func (h *CrawlHandlers) pathParams(w http.ResponseWriter, r *http.Request) (resultPathParams, bool) {
	raw := chi.URLParam(r, "productId")
	productID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		WriteJSONError(w, http.StatusBadRequest, "Invalid product ID in URL")
		return resultPathParams{}, false
	}

	params := resultPathParams{ProductID: productID, ExternalID: chi.URLParam(r, "externalId")}
	if err := h.validator.Validate(params); err != nil {
		WriteJSONError(w, http.StatusBadRequest, err.Error())
		return resultPathParams{}, false
	}
	return params, true
}

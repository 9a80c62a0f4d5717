// Package transactions is the route table mounted under /api/transactions.
// Documents are stored as given; no fields are validated or interpreted.
package transactions

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"txserver/api"
	"txserver/storage"

	"github.com/gorilla/mux"
	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"
)

// Store is the persistence the route table needs
type Store interface {
	List(ctx context.Context, limit, offset int64) ([]bson.M, error)
	Count(ctx context.Context) (int64, error)
	Get(ctx context.Context, id string) (bson.M, error)
	Create(ctx context.Context, doc bson.M) (string, error)
	Replace(ctx context.Context, id string, doc bson.M) error
	Delete(ctx context.Context, id string) error
}

// CreatedResponse is returned by POST /
type CreatedResponse struct {
	ID string `json:"id"`
}

// Handler serves the transaction routes relative to its mount point
type Handler struct {
	router *mux.Router
	store  Store
	logger *zap.SugaredLogger
}

// NewHandler builds the route table
func NewHandler(store Store, logger *zap.SugaredLogger) *Handler {
	h := &Handler{
		router: mux.NewRouter(),
		store:  store,
		logger: logger,
	}

	h.router.HandleFunc("/", h.list).Methods(http.MethodGet)
	h.router.HandleFunc("/", h.create).Methods(http.MethodPost)
	h.router.HandleFunc("/{id}", h.get).Methods(http.MethodGet)
	h.router.HandleFunc("/{id}", h.replace).Methods(http.MethodPut)
	h.router.HandleFunc("/{id}", h.delete).Methods(http.MethodDelete)
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.router.ServeHTTP(w, r)
}

// list returns one page of documents, newest first
func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	params := api.ParsePaginationParams(r, api.DefaultPageLimit, api.MaxPageLimit)

	docs, err := h.store.List(r.Context(), int64(params.Limit), params.Offset())
	if err != nil {
		h.respondStoreError(w, r, "Failed to list transactions", err)
		return
	}
	total, err := h.store.Count(r.Context())
	if err != nil {
		h.respondStoreError(w, r, "Failed to count transactions", err)
		return
	}

	api.RespondJSON(w, api.NewPaginationResponse(docs, total, params), http.StatusOK, h.logger)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	doc, err := h.store.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.respondStoreError(w, r, "Failed to get transaction", err)
		return
	}
	api.RespondJSON(w, doc, http.StatusOK, h.logger)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	doc, ok := h.decodeDocument(w, r)
	if !ok {
		return
	}

	id, err := h.store.Create(r.Context(), doc)
	if err != nil {
		h.respondStoreError(w, r, "Failed to create transaction", err)
		return
	}

	api.LogWithRequestID(r.Context(), h.logger).Infow("Transaction created", "id", id)
	api.RespondJSON(w, CreatedResponse{ID: id}, http.StatusCreated, h.logger)
}

func (h *Handler) replace(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	doc, ok := h.decodeDocument(w, r)
	if !ok {
		return
	}

	if err := h.store.Replace(r.Context(), id, doc); err != nil {
		h.respondStoreError(w, r, "Failed to replace transaction", err)
		return
	}

	doc["_id"] = id
	api.RespondJSON(w, doc, http.StatusOK, h.logger)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Delete(r.Context(), mux.Vars(r)["id"]); err != nil {
		h.respondStoreError(w, r, "Failed to delete transaction", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// decodeDocument reads the body parsed by the JSON middleware. The body must
// be a JSON object.
func (h *Handler) decodeDocument(w http.ResponseWriter, r *http.Request) (bson.M, bool) {
	raw, ok := api.JSONBody(r.Context())
	if !ok {
		api.RespondError(w, r, http.StatusBadRequest, "Request body must be a JSON object", nil, h.logger)
		return nil, false
	}

	var doc map[string]interface{}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil || doc == nil {
		api.RespondError(w, r, http.StatusBadRequest, "Request body must be a JSON object", err, h.logger)
		return nil, false
	}
	return normalizeNumbers(doc).(bson.M), true
}

// normalizeNumbers converts decoded JSON into BSON-friendly values: objects
// become bson.M and numbers become int64 when integral, float64 otherwise
func normalizeNumbers(v interface{}) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		m := make(bson.M, len(val))
		for k, item := range val {
			m[k] = normalizeNumbers(item)
		}
		return m
	case []interface{}:
		for i, item := range val {
			val[i] = normalizeNumbers(item)
		}
		return bson.A(val)
	case json.Number:
		if n, err := val.Int64(); err == nil {
			return n
		}
		f, _ := val.Float64()
		return f
	default:
		return v
	}
}

// respondStoreError maps storage errors to status codes
func (h *Handler) respondStoreError(w http.ResponseWriter, r *http.Request, message string, err error) {
	switch {
	case errors.Is(err, storage.ErrStoreNotReady):
		api.RespondError(w, r, http.StatusServiceUnavailable, "service unavailable", err, h.logger)
	case errors.Is(err, storage.ErrInvalidID):
		api.RespondError(w, r, http.StatusBadRequest, "Invalid transaction id", err, h.logger)
	case errors.Is(err, storage.ErrNotFound):
		api.RespondError(w, r, http.StatusNotFound, "Transaction not found", err, h.logger)
	case errors.Is(err, context.DeadlineExceeded):
		api.RespondError(w, r, http.StatusGatewayTimeout, message, err, h.logger)
	default:
		api.RespondError(w, r, http.StatusInternalServerError, message, err, h.logger)
	}
}

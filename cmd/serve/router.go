package serve

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	canImpl "go.miragespace.co/can/can"
	"go.miragespace.co/can/metrics"
	"go.miragespace.co/can/spec/can"

	"github.com/go-chi/chi/v5"
	"kon.nect.sh/httprate"
)

func Router(o *canImpl.Overlay, limit int) http.Handler {
	r := chi.NewRouter()
	r.Use(httprate.LimitAll(limit, time.Second))

	r.Get("/stats", o.StatsHandler)
	r.Get("/graph", o.GraphHandler)
	r.Get("/metrics", metrics.MetricsHandler)
	r.Get("/nodes", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, o.Nodes())
	})
	r.Get("/nodes/{id}", func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
		if err != nil {
			http.Error(w, "invalid node id", http.StatusBadRequest)
			return
		}
		info, err := o.Node(id)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, info)
	})
	r.Get("/lookup", func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()
		key := query.Get("key")
		if key == "" {
			http.Error(w, "missing key", http.StatusBadRequest)
			return
		}
		id := can.ContentID(key)
		if query.Has("payload") {
			_, payload, err := o.Fetch(r.Context(), id)
			if err != nil {
				writeError(w, err)
				return
			}
			w.Header().Set("content-type", "application/octet-stream")
			w.Write(payload)
			return
		}
		ref, err := o.Lookup(id)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, lookupResponse{
			Key:        key,
			Ref:        ref,
			Caretakers: o.Locate(id),
		})
	})
	return r
}

type lookupResponse struct {
	Key        string       `json:"key"`
	Ref        can.Ref      `json:"ref"`
	Caretakers []can.NodeID `json:"caretakers"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("content-type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, can.ErrNodeNotFound), errors.Is(err, can.ErrContentNotFound):
		status = http.StatusNotFound
	}
	http.Error(w, err.Error(), status)
}

package web

import (
	"encoding/json"
	"fmt"
	"github.com/gorilla/mux"
	"github.com/hauke96/sigolo/v2"
	"net/http"
	"oqc/extent"
	"oqc/feature"
	"oqc/fetch"
	ownIo "oqc/io"
	"strconv"
	"strings"
)

func StartServer(port string, service *fetch.Service) {
	r := initRouter(service)
	sigolo.Infof("Start server on port %s", port)
	err := http.ListenAndServe(":"+port, r)
	sigolo.FatalCheck(err)
}

func initRouter(service *fetch.Service) *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/query/{kind}", func(writer http.ResponseWriter, request *http.Request) {
		writer.Header().Set("Access-Control-Allow-Origin", "*")

		kind, err := feature.KindFromString(mux.Vars(request)["kind"])
		if err != nil {
			writeError(writer, http.StatusBadRequest, "Unknown feature kind", err)
			return
		}

		e, err := extentFromRequest(request)
		if err != nil {
			writeError(writer, http.StatusBadRequest, "Invalid bbox", err)
			return
		}

		sigolo.Infof("Query %s within %s", kind, e)

		items, fromCache, err := service.ResolveItems(request.Context(), kind, e)
		if err != nil {
			writeError(writer, http.StatusBadGateway, "Error resolving query", err)
			return
		}

		sigolo.Debugf("Found %d items (fromCache=%v)", len(items), fromCache)

		err = ownIo.WriteItemsAsGeoJson(items, writer)
		if err != nil {
			writeError(writer, http.StatusInternalServerError, "Error writing query result", err)
			return
		}
	}).Methods(http.MethodPost)

	r.HandleFunc("/cache/stats", func(writer http.ResponseWriter, request *http.Request) {
		writeJson(writer, service.Registry().GetStats())
	}).Methods(http.MethodGet)

	r.HandleFunc("/cache/cleanup", func(writer http.ResponseWriter, request *http.Request) {
		removed := service.Registry().CleanupAllExpired()
		sigolo.Infof("Cleanup removed %d expired cache entries", removed)
		writeJson(writer, map[string]int{"removed": removed})
	}).Methods(http.MethodPost)

	r.HandleFunc("/cache/clear", func(writer http.ResponseWriter, request *http.Request) {
		service.Registry().ClearAll()
		sigolo.Info("Cleared all caches")
		writer.WriteHeader(http.StatusNoContent)
	}).Methods(http.MethodPost)

	r.HandleFunc("/cache/prewarm", func(writer http.ResponseWriter, request *http.Request) {
		e, err := extentFromRequest(request)
		if err != nil {
			writeError(writer, http.StatusBadRequest, "Invalid bbox", err)
			return
		}
		warmed := service.Registry().PreWarm(e)
		sigolo.Infof("Pre-warmed %d cache entries for %s", warmed, e)
		writeJson(writer, map[string]int{"warmed": warmed})
	}).Methods(http.MethodPost)

	return r
}

// extentFromRequest parses the "bbox" query parameter of the form "minLon,minLat,maxLon,maxLat".
func extentFromRequest(request *http.Request) (extent.Extent, error) {
	var bounds [4]float64

	parts := strings.Split(request.URL.Query().Get("bbox"), ",")
	if len(parts) != 4 {
		return extent.Extent{}, fmt.Errorf("bbox must have the form minLon,minLat,maxLon,maxLat")
	}

	for i, part := range parts {
		value, err := strconv.ParseFloat(part, 64)
		if err != nil {
			return extent.Extent{}, fmt.Errorf("bbox value %q is not a number", part)
		}
		bounds[i] = value
	}

	return extent.New(bounds[0], bounds[1], bounds[2], bounds[3]), nil
}

func writeJson(writer http.ResponseWriter, payload any) {
	writer.Header().Set("Content-Type", "application/json")
	err := json.NewEncoder(writer).Encode(payload)
	if err != nil {
		sigolo.Errorf("Error writing JSON response: %+v", err)
	}
}

func writeError(writer http.ResponseWriter, status int, message string, err error) {
	sigolo.Errorf("%s: %+v", message, err)
	writer.WriteHeader(status)
	_, err = writer.Write([]byte(fmt.Sprintf("%s: %+v", message, err)))
	if err != nil {
		sigolo.Errorf("Error writing error response: %+v", err)
	}
}

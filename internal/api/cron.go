package api

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/burka/podpulse/internal/catalog"
	"github.com/burka/podpulse/internal/quota"
)

// ResetCounters handles POST /internal/cron/reset-counters for the external
// scheduler. The caller must present CRON_SECRET as a bearer token; an empty
// secret disables the endpoint.
func ResetCounters(resetter *quota.Resetter, secret string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !validBearer(r.Header.Get("Authorization"), secret) {
			WriteError(w, ErrUnauthorized, http.StatusUnauthorized, CodeUnauthorized)
			return
		}

		result, err := resetter.Run(r.Context())
		if err != nil {
			slog.Error("counter reset failed", "error", err)
			WriteError(w, fmt.Errorf("counter reset failed"), http.StatusInternalServerError, CodeInternal)
			return
		}

		_ = WriteJSON(w, ResetResponse{ResetCount: result.ResetCount, Ran: result.Ran}, http.StatusOK)
	}
}

// CollectCharts handles POST /internal/cron/collect-charts. It is guarded
// by CRON_SECRET like ResetCounters. Genres whose feed fails are listed in
// the response; the run fails with 502 only when no genre could be fetched.
func CollectCharts(collector ChartCollector, secret string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !validBearer(r.Header.Get("Authorization"), secret) {
			WriteError(w, ErrUnauthorized, http.StatusUnauthorized, CodeUnauthorized)
			return
		}

		result, err := collector.Collect(r.Context())
		switch {
		case errors.Is(err, catalog.ErrNothingCollected):
			slog.Error("chart collection fetched nothing", "failed", result.Failed)
			WriteError(w, err, http.StatusBadGateway, CodeUpstream)
			return
		case err != nil:
			slog.Error("chart collection failed", "inserted", result.Inserted, "error", err)
			WriteError(w, fmt.Errorf("chart collection failed"), http.StatusInternalServerError, CodeInternal)
			return
		}

		failed := result.Failed
		if failed == nil {
			failed = []string{}
		}
		slog.Info("charts collected", "inserted", result.Inserted, "genres", result.Genres, "failed", len(failed))
		_ = WriteJSON(w, CollectResponse{Inserted: result.Inserted, Genres: result.Genres, Failed: failed}, http.StatusOK)
	}
}

func validBearer(header, secret string) bool {
	if secret == "" {
		return false
	}
	const bearerPrefix = "Bearer "
	if !strings.HasPrefix(header, bearerPrefix) {
		return false
	}
	token := strings.TrimPrefix(header, bearerPrefix)
	return subtle.ConstantTimeCompare([]byte(token), []byte(secret)) == 1
}

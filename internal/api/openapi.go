package api

import (
	"fmt"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/go-chi/chi/v5"
	"gopkg.in/yaml.v3"
)

// handleOpenAPIJSON serves the OpenAPI spec as JSON.
func handleOpenAPIJSON(api huma.API) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if api == nil {
			http.Error(w, "OpenAPI spec not available", http.StatusServiceUnavailable)
			return
		}
		spec, err := api.OpenAPI().MarshalJSON()
		if err != nil {
			http.Error(w, fmt.Sprintf("failed to generate OpenAPI spec: %v", err), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(spec)
	}
}

// handleOpenAPIYAML serves the OpenAPI spec as YAML.
func handleOpenAPIYAML(api huma.API) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if api == nil {
			http.Error(w, "OpenAPI spec not available", http.StatusServiceUnavailable)
			return
		}
		yamlBytes, err := yaml.Marshal(api.OpenAPI())
		if err != nil {
			http.Error(w, fmt.Sprintf("failed to generate OpenAPI spec: %v", err), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/x-yaml")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(yamlBytes)
	}
}

// GenerateOpenAPISpec generates the OpenAPI specification without creating a full server.
// This is useful for SDK generation and documentation without a database connection.
// Handlers are registered on empty services and never invoked.
func GenerateOpenAPISpec() ([]byte, error) {
	humaAPI := newHumaAPI(chi.NewRouter())

	registerOperations(humaAPI, &Services{
		Account:  &AccountService{},
		Podcasts: &PodcastService{},
		Analyses: &AnalysisService{},
		Charts:   &ChartService{},
		Search:   &SearchService{},
		Export:   &ExportService{},
		Billing:  &BillingService{},
	}, nil)

	return humaAPI.OpenAPI().MarshalJSON()
}

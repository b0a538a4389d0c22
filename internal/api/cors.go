package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/cors"
)

// CORSFromOrigins builds go-chi/cors middleware from a comma-separated
// origin list; empty allows all origins (spec.md's illustrative read API
// is expected to be browser-facing).
func CORSFromOrigins(originsCSV string) func(http.Handler) http.Handler {
	var origins []string
	if originsCSV == "" {
		origins = []string{"*"}
	} else {
		for _, o := range strings.Split(originsCSV, ",") {
			if s := strings.TrimSpace(o); s != "" {
				origins = append(origins, s)
			}
		}
	}

	return cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: false,
		MaxAge:           300,
	})
}

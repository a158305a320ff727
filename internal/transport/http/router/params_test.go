package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

func chiParam(r *http.Request, key string) string { return chi.URLParam(r, key) }

package controllers

import (
	"net/http"

	"github.com/angelmondragon/gallery-backend/api/middleware"
	"github.com/angelmondragon/gallery-backend/api/responses"
)

func PublicPing() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responses.WriteSuccess(w, map[string]string{"scope": "public", "status": "ok"})
	}
}

func AdminPing() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payload := map[string]string{"scope": "admin", "status": "ok"}
		if operator, ok := middleware.OperatorFromContext(r.Context()); ok {
			payload["operator"] = operator
		}
		responses.WriteSuccess(w, payload)
	}
}

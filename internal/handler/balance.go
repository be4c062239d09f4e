package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"reconciler/internal/service"
)

func GetBalanceHandler(svc *service.ReconciliationService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		balance, err := svc.Balance(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, balance)
	}
}

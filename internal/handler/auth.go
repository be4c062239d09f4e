package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"reconciler/internal/model"
	"reconciler/internal/service"
)

func LoginHandler(authSvc *service.AuthService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req credentialsRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}

		op, err := authSvc.Authenticate(r.Context(), req.Login, req.Password)
		if err != nil {
			if errors.Is(err, service.ErrInvalidCredentials) {
				http.Error(w, "invalid login or password", http.StatusUnauthorized)
				return
			}
			writeError(w, r, err)
			return
		}

		issueToken(w, r, authSvc, op)
	}
}

func issueToken(w http.ResponseWriter, r *http.Request, authSvc *service.AuthService, op *model.Operator) {
	token, err := authSvc.IssueToken(op)
	if err != nil {
		writeError(w, r, err)
		return
	}

	w.Header().Set("Authorization", "Bearer "+token)
	writeJSON(w, http.StatusOK, tokenResponse{Token: token})
}

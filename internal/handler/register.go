package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"reconciler/internal/service"
)

type credentialsRequest struct {
	Login    string `json:"login"`
	Password string `json:"password"`
}

type tokenResponse struct {
	Token string `json:"token"`
}

func RegisterHandler(authSvc *service.AuthService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req credentialsRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}

		op, err := authSvc.Register(r.Context(), req.Login, req.Password)
		if err != nil {
			switch {
			case errors.Is(err, service.ErrCredentialsRequired):
				http.Error(w, "login and password required", http.StatusBadRequest)
			case errors.Is(err, service.ErrLoginTaken):
				http.Error(w, "login already exists", http.StatusConflict)
			default:
				writeError(w, r, err)
			}
			return
		}

		issueToken(w, r, authSvc, op)
	}
}

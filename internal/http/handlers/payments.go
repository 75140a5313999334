package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"attachly/internal/apperr"
	middlewarex "attachly/internal/http/middleware"
	"attachly/internal/services/application"
)

type payReq struct {
	Phone string `json:"phone"`
	Email string `json:"email"`
}

type payResp struct {
	Reference       string `json:"reference"`
	Amount          int64  `json:"amount"`
	Currency        string `json:"currency"`
	PaymentLink     string `json:"paymentLink,omitempty"`
	CustomerMessage string `json:"customerMessage,omitempty"`
}

// InitiatePayment starts a charge for the caller's application. The provider
// call gets a short bounded context of its own.
func InitiatePayment(svc *application.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := middlewarex.UserID(r.Context())
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		id, err := pathID(r, "id")
		if err != nil {
			writeErr(w, err)
			return
		}

		var in payReq
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			writeErr(w, apperr.New(apperr.KindValidation, "bad json"))
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 20*time.Second)
		defer cancel()

		init, err := svc.InitiatePayment(ctx, userID, id, in.Phone, in.Email)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, payResp{
			Reference:       init.Reference,
			Amount:          init.Amount,
			Currency:        init.Currency,
			PaymentLink:     init.PaymentLink,
			CustomerMessage: init.CustomerMessage,
		})
	}
}

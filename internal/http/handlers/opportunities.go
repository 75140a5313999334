package handlers

import (
	"net/http"

	"attachly/internal/store/repositories"
)

func ListOpportunities(opps repositories.OpportunityRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		activeOnly := r.URL.Query().Get("all") == ""
		list, err := opps.List(r.Context(), activeOnly)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, viewOpportunities(list))
	}
}

func GetOpportunity(opps repositories.OpportunityRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r, "id")
		if err != nil {
			writeErr(w, err)
			return
		}
		o, err := opps.FindByID(r.Context(), id)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, viewOpportunity(o))
	}
}

package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"attachly/internal/apperr"
	"attachly/internal/domain/opportunity"
	"attachly/internal/services/application"
	"attachly/internal/store/repositories"
)

type opportunityReq struct {
	Title          string    `json:"title"`
	Company        string    `json:"company"`
	Description    string    `json:"description"`
	Type           string    `json:"type"`
	ApplicationFee int64     `json:"applicationFee"`
	Deadline       time.Time `json:"deadline"`
	Active         *bool     `json:"active"`
}

func (in *opportunityReq) validate() error {
	if in.Title == "" {
		return apperr.New(apperr.KindValidation, "title is required")
	}
	if !opportunity.ValidType(opportunity.Type(in.Type)) {
		return apperr.New(apperr.KindValidation, "type must be internship or attachment")
	}
	if in.ApplicationFee < 0 {
		return apperr.New(apperr.KindValidation, "applicationFee cannot be negative")
	}
	return nil
}

func CreateOpportunity(opps repositories.OpportunityRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in opportunityReq
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			writeErr(w, apperr.New(apperr.KindValidation, "bad json"))
			return
		}
		if err := in.validate(); err != nil {
			writeErr(w, err)
			return
		}
		o := &opportunity.Opportunity{
			Title:          in.Title,
			Company:        in.Company,
			Description:    in.Description,
			Type:           opportunity.Type(in.Type),
			ApplicationFee: in.ApplicationFee,
			Deadline:       in.Deadline,
			Active:         in.Active == nil || *in.Active,
		}
		if err := opps.Create(r.Context(), o); err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, viewOpportunity(o))
	}
}

func UpdateOpportunity(opps repositories.OpportunityRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r, "id")
		if err != nil {
			writeErr(w, err)
			return
		}
		var in opportunityReq
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			writeErr(w, apperr.New(apperr.KindValidation, "bad json"))
			return
		}
		if err := in.validate(); err != nil {
			writeErr(w, err)
			return
		}
		o, err := opps.FindByID(r.Context(), id)
		if err != nil {
			writeErr(w, err)
			return
		}
		o.Title = in.Title
		o.Company = in.Company
		o.Description = in.Description
		o.Type = opportunity.Type(in.Type)
		o.ApplicationFee = in.ApplicationFee
		o.Deadline = in.Deadline
		if in.Active != nil {
			o.Active = *in.Active
		}
		if err := opps.Update(r.Context(), o); err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, viewOpportunity(o))
	}
}

func ListOpportunityApplications(svc *application.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r, "id")
		if err != nil {
			writeErr(w, err)
			return
		}
		apps, err := svc.ListByOpportunity(r.Context(), id)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, viewApplications(apps))
	}
}

type statusReq struct {
	Status string `json:"status"`
}

// SetApplicationStatus moves an application through review. The transition
// rules live on the domain type; this endpoint cannot confirm payments.
func SetApplicationStatus(svc *application.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r, "id")
		if err != nil {
			writeErr(w, err)
			return
		}
		var in statusReq
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			writeErr(w, apperr.New(apperr.KindValidation, "bad json"))
			return
		}
		app, err := svc.AdminSetStatus(r.Context(), id, in.Status)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, viewApplication(app))
	}
}

package handlers

import (
	"time"

	domain "attachly/internal/domain/application"
	"attachly/internal/domain/opportunity"
)

type applicationView struct {
	ID            int64     `json:"id"`
	OpportunityID int64     `json:"opportunityId"`
	ResumeURL     string    `json:"resumeUrl"`
	LetterURL     string    `json:"letterUrl,omitempty"`
	CoverLetter   string    `json:"coverLetter,omitempty"`
	Status        string    `json:"status"`
	AmountPaid    int64     `json:"amountPaid,omitempty"`
	TransactionID string    `json:"transactionId,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

func viewApplication(a *domain.Application) applicationView {
	return applicationView{
		ID:            a.ID,
		OpportunityID: a.OpportunityID,
		ResumeURL:     a.ResumeURL,
		LetterURL:     a.LetterURL,
		CoverLetter:   a.CoverLetter,
		Status:        string(a.Status),
		AmountPaid:    a.AmountPaid,
		TransactionID: a.TransactionID,
		CreatedAt:     a.CreatedAt,
		UpdatedAt:     a.UpdatedAt,
	}
}

func viewApplications(apps []*domain.Application) []applicationView {
	out := make([]applicationView, 0, len(apps))
	for _, a := range apps {
		out = append(out, viewApplication(a))
	}
	return out
}

type opportunityView struct {
	ID             int64      `json:"id"`
	Title          string     `json:"title"`
	Company        string     `json:"company"`
	Description    string     `json:"description,omitempty"`
	Type           string     `json:"type"`
	ApplicationFee int64      `json:"applicationFee"`
	Deadline       *time.Time `json:"deadline,omitempty"`
	Active         bool       `json:"active"`
	CreatedAt      time.Time  `json:"createdAt"`
}

func viewOpportunity(o *opportunity.Opportunity) opportunityView {
	v := opportunityView{
		ID:             o.ID,
		Title:          o.Title,
		Company:        o.Company,
		Description:    o.Description,
		Type:           string(o.Type),
		ApplicationFee: o.Fee(),
		Active:         o.Active,
		CreatedAt:      o.CreatedAt,
	}
	if !o.Deadline.IsZero() {
		v.Deadline = &o.Deadline
	}
	return v
}

func viewOpportunities(opps []*opportunity.Opportunity) []opportunityView {
	out := make([]opportunityView, 0, len(opps))
	for _, o := range opps {
		out = append(out, viewOpportunity(o))
	}
	return out
}

// Package application owns the application lifecycle: creation, the payment
// gate, withdrawal and administrative review transitions.
package application

import (
	"context"
	"errors"
	"fmt"

	"attachly/internal/apperr"
	domain "attachly/internal/domain/application"
	"attachly/internal/provider"
	"attachly/internal/reference"
	"attachly/internal/storage"
	"attachly/internal/store/repositories"

	"github.com/rs/zerolog/log"
)

const currency = "KES"

type Service struct {
	apps    repositories.ApplicationRepository
	opps    repositories.OpportunityRepository
	uploads storage.Uploader
	pay     provider.Provider
}

func NewService(
	apps repositories.ApplicationRepository,
	opps repositories.OpportunityRepository,
	uploads storage.Uploader,
	pay provider.Provider,
) *Service {
	return &Service{apps: apps, opps: opps, uploads: uploads, pay: pay}
}

// ApplyInput carries the buffered uploads and fields of a submission.
type ApplyInput struct {
	OpportunityID int64
	Resume        []byte
	ResumeName    string
	Letter        []byte
	LetterName    string
	CoverLetter   string
}

// Apply creates an application in pending_payment, or reuses the caller's
// existing one when it is still awaiting payment. Uploads complete before
// the record is touched.
func (s *Service) Apply(ctx context.Context, userID int64, in ApplyInput) (*domain.Application, error) {
	if len(in.Resume) == 0 {
		return nil, apperr.New(apperr.KindValidation, "Resume is required")
	}

	opp, err := s.opps.FindByID(ctx, in.OpportunityID)
	if err != nil {
		return nil, err
	}
	if opp.RequiresLetter() && len(in.Letter) == 0 {
		return nil, apperr.New(apperr.KindValidation, "Recommendation letter is required for attachments")
	}

	existing, err := s.apps.FindByUserAndOpportunity(ctx, userID, in.OpportunityID)
	switch {
	case err == nil && existing.Status == domain.StatusPendingPayment:
		// Reuse rather than duplicate: overwrite the documents and drop any
		// outstanding payment attempt.
		resumeURL, letterURL, err := s.uploadDocuments(ctx, in)
		if err != nil {
			return nil, err
		}
		if err := s.apps.ReplaceDocuments(ctx, existing.ID, resumeURL, letterURL, in.CoverLetter); err != nil {
			return nil, err
		}
		return s.apps.FindByID(ctx, existing.ID)
	case err == nil:
		return nil, apperr.New(apperr.KindConflict, "already applied")
	case !apperr.Is(err, apperr.KindNotFound):
		return nil, err
	}

	resumeURL, letterURL, err := s.uploadDocuments(ctx, in)
	if err != nil {
		return nil, err
	}

	app := &domain.Application{
		UserID:        userID,
		OpportunityID: in.OpportunityID,
		ResumeURL:     resumeURL,
		LetterURL:     letterURL,
		CoverLetter:   in.CoverLetter,
		Status:        domain.StatusPendingPayment,
	}
	if err := s.apps.Create(ctx, app); err != nil {
		return nil, err
	}

	log.Info().
		Int64("application_id", app.ID).
		Int64("user_id", userID).
		Int64("opportunity_id", in.OpportunityID).
		Msg("application created")
	return app, nil
}

func (s *Service) uploadDocuments(ctx context.Context, in ApplyInput) (resumeURL, letterURL string, err error) {
	resumeURL, err = s.uploads.Upload(ctx, in.Resume, "resumes", in.ResumeName)
	if err != nil {
		return "", "", apperr.Wrap(apperr.KindInternal, "resume upload failed", err)
	}
	if len(in.Letter) > 0 {
		letterURL, err = s.uploads.Upload(ctx, in.Letter, "letters", in.LetterName)
		if err != nil {
			return "", "", apperr.Wrap(apperr.KindInternal, "recommendation letter upload failed", err)
		}
	}
	return resumeURL, letterURL, nil
}

// PaymentInit is what the client needs to complete a charge out-of-band.
type PaymentInit struct {
	Reference       string `json:"reference"`
	Amount          int64  `json:"amount"`
	Currency        string `json:"currency"`
	PaymentLink     string `json:"payment_link,omitempty"`
	CustomerMessage string `json:"customer_message,omitempty"`
}

// InitiatePayment starts (or restarts) a payment attempt. Re-initiation is
// idempotent at the resource level: the application is reused, a fresh
// reference supersedes the outstanding one, and confirmations carrying the
// superseded reference will no longer match.
func (s *Service) InitiatePayment(ctx context.Context, userID, appID int64, phone, email string) (*PaymentInit, error) {
	app, err := s.apps.FindByID(ctx, appID)
	if err != nil {
		return nil, err
	}
	if app.UserID != userID {
		return nil, apperr.New(apperr.KindForbidden, "application belongs to another user")
	}
	if app.IsSettled() {
		return nil, apperr.New(apperr.KindValidation, "application is not awaiting payment")
	}

	opp, err := s.opps.FindByID(ctx, app.OpportunityID)
	if err != nil {
		return nil, err
	}

	// Persist the reference before calling out: the confirmation can race
	// the provider response, and an unmatched callback is dropped for good.
	ref := reference.Build(app.ID)
	if err := s.apps.SetPaymentRef(ctx, app.ID, ref); err != nil {
		return nil, err
	}

	resp, err := s.pay.Initiate(ctx, provider.ChargeRequest{
		Reference:   ref,
		Amount:      opp.Fee(),
		Currency:    currency,
		Phone:       phone,
		Email:       email,
		Description: fmt.Sprintf("Application fee: %s", opp.Title),
	})
	if err != nil {
		// The application stays in pending_payment; the payer retries.
		return nil, mapProviderErr(err)
	}

	// The provider's id is the only correlation handle on callbacks that
	// omit our reference (Daraja failures). Losing it degrades failure
	// handling but the charge is already in flight, so don't fail the call.
	if resp.ProviderRef != "" {
		if err := s.apps.SetProviderRef(ctx, app.ID, resp.ProviderRef); err != nil {
			log.Error().Err(err).
				Int64("application_id", app.ID).
				Str("provider_ref", resp.ProviderRef).
				Msg("provider ref not persisted")
		}
	}

	log.Info().
		Int64("application_id", app.ID).
		Str("reference", ref).
		Int64("amount", opp.Fee()).
		Str("provider", s.pay.Name()).
		Msg("payment initiated")

	return &PaymentInit{
		Reference:       ref,
		Amount:          opp.Fee(),
		Currency:        currency,
		PaymentLink:     resp.PaymentLink,
		CustomerMessage: resp.CustomerMessage,
	}, nil
}

// ConfirmPayment applies a payment outcome delivered by webhook. Unknown
// references, settled applications and superseded attempts are silently
// ignored; only transient store failures come back as errors so the caller
// can retry.
func (s *Service) ConfirmPayment(ctx context.Context, evt provider.CallbackEvent) error {
	app, err := s.resolveCallback(ctx, evt)
	if err != nil {
		return err
	}
	if app == nil {
		return nil
	}
	// Events that arrived without our token (Daraja failures) resolved via
	// the provider ref; guard the write with the outstanding token instead.
	ref := evt.Reference
	if ref == "" {
		ref = app.PaymentRef
	}
	if app.IsSettled() {
		// Duplicate delivery of an already-settled event, or a stale retry.
		log.Info().
			Int64("application_id", app.ID).
			Str("reference", evt.Reference).
			Str("status", string(app.Status)).
			Msg("callback for settled application; ignored")
		return nil
	}

	if evt.Kind == provider.CallbackChargeFailed {
		cleared, err := s.apps.ClearPaymentRef(ctx, app.ID, ref)
		if err != nil {
			return err
		}
		log.Info().
			Int64("application_id", app.ID).
			Str("reference", evt.Reference).
			Bool("cleared", cleared).
			Msg("payment attempt failed; token cleared for retry")
		return nil
	}

	confirmed, err := s.apps.ConfirmPayment(ctx, app.ID, ref, evt.Amount, evt.TransactionID)
	if err != nil {
		return err
	}
	if !confirmed {
		// Superseded reference or a racing delivery that lost; either way
		// the no-op is the correct outcome.
		log.Info().
			Int64("application_id", app.ID).
			Str("reference", evt.Reference).
			Msg("confirmation did not match outstanding attempt; ignored")
		return nil
	}

	log.Info().
		Int64("application_id", app.ID).
		Str("reference", evt.Reference).
		Int64("amount", evt.Amount).
		Str("transaction_id", evt.TransactionID).
		Msg("application submitted")
	return nil
}

// resolveCallback locates the application a callback belongs to, by our
// reference when the payload carries it, otherwise by the provider's own
// id. A nil, nil return means the event resolves to nothing and is dropped.
func (s *Service) resolveCallback(ctx context.Context, evt provider.CallbackEvent) (*domain.Application, error) {
	if appID, ok := reference.Parse(evt.Reference); ok {
		app, err := s.apps.FindByID(ctx, appID)
		if apperr.Is(err, apperr.KindNotFound) {
			log.Warn().Str("reference", evt.Reference).Msg("callback for unknown application; ignored")
			return nil, nil
		}
		return app, err
	}
	if evt.ProviderRef != "" {
		app, err := s.apps.FindByProviderRef(ctx, evt.ProviderRef)
		if apperr.Is(err, apperr.KindNotFound) {
			log.Warn().Str("provider_ref", evt.ProviderRef).Msg("callback provider ref matches no outstanding attempt; ignored")
			return nil, nil
		}
		return app, err
	}
	log.Warn().Str("reference", evt.Reference).Msg("callback carries no usable correlation handle; ignored")
	return nil, nil
}

// UpdateCoverLetter edits the cover letter while payment is outstanding.
func (s *Service) UpdateCoverLetter(ctx context.Context, userID, appID int64, coverLetter string) (*domain.Application, error) {
	app, err := s.apps.FindByID(ctx, appID)
	if err != nil {
		return nil, err
	}
	if app.UserID != userID {
		return nil, apperr.New(apperr.KindForbidden, "application belongs to another user")
	}
	if !app.CanEditCoverLetter() {
		return nil, apperr.New(apperr.KindValidation, "cover letter can no longer be edited")
	}
	if err := s.apps.UpdateCoverLetter(ctx, app.ID, coverLetter); err != nil {
		return nil, err
	}
	app.CoverLetter = coverLetter
	return app, nil
}

// Withdraw deletes the caller's application while it is still theirs to
// remove.
func (s *Service) Withdraw(ctx context.Context, userID, appID int64) error {
	app, err := s.apps.FindByID(ctx, appID)
	if err != nil {
		return err
	}
	if app.UserID != userID {
		return apperr.New(apperr.KindForbidden, "application belongs to another user")
	}
	if !app.CanWithdraw() {
		return apperr.New(apperr.KindValidation, fmt.Sprintf("application in %s cannot be withdrawn", app.Status))
	}
	if err := s.apps.Delete(ctx, app.ID); err != nil {
		return err
	}
	log.Info().Int64("application_id", app.ID).Int64("user_id", userID).Msg("application withdrawn")
	return nil
}

// AdminSetStatus advances an application through review. Payment fields are
// never touched here.
func (s *Service) AdminSetStatus(ctx context.Context, appID int64, raw string) (*domain.Application, error) {
	status, err := domain.ParseStatus(raw)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindValidation, err.Error(), err)
	}

	app, err := s.apps.FindByID(ctx, appID)
	if err != nil {
		return nil, err
	}
	if !app.CanAdminSet(status) {
		return nil, apperr.New(apperr.KindValidation,
			fmt.Sprintf("cannot change status from %s to %s", app.Status, status))
	}
	if err := s.apps.UpdateStatus(ctx, app.ID, status); err != nil {
		return nil, err
	}
	app.Status = status
	return app, nil
}

// Get returns the caller's application.
func (s *Service) Get(ctx context.Context, userID, appID int64) (*domain.Application, error) {
	app, err := s.apps.FindByID(ctx, appID)
	if err != nil {
		return nil, err
	}
	if app.UserID != userID {
		return nil, apperr.New(apperr.KindForbidden, "application belongs to another user")
	}
	return app, nil
}

func (s *Service) ListByUser(ctx context.Context, userID int64) ([]*domain.Application, error) {
	return s.apps.ListByUser(ctx, userID)
}

func (s *Service) ListByOpportunity(ctx context.Context, opportunityID int64) ([]*domain.Application, error) {
	return s.apps.ListByOpportunity(ctx, opportunityID)
}

func mapProviderErr(err error) error {
	var pe *provider.Error
	if errors.As(err, &pe) {
		switch pe.Code {
		case provider.ErrInvalidPhone:
			return apperr.Wrap(apperr.KindValidation, pe.Message, err)
		case provider.ErrAuthFailed, provider.ErrUnavailable:
			return apperr.Wrap(apperr.KindProvider,
				"payment service is unavailable - try again shortly or use a different payment method", err)
		default:
			return apperr.Wrap(apperr.KindProvider, pe.Message, err)
		}
	}
	return apperr.Wrap(apperr.KindProvider, "payment could not be initiated - try again shortly", err)
}

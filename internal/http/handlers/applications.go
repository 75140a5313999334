package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"attachly/internal/apperr"
	middlewarex "attachly/internal/http/middleware"
	"attachly/internal/services/application"
)

const maxUploadBytes = 10 << 20

// CreateApplication accepts a multipart submission: opportunity_id,
// resume (file, required), letter (file, required for attachments) and
// cover_letter (text).
func CreateApplication(svc *application.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := middlewarex.UserID(r.Context())
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
		if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
			writeErr(w, apperr.New(apperr.KindValidation, "expected multipart form data"))
			return
		}

		oppID, err := strconv.ParseInt(r.FormValue("opportunity_id"), 10, 64)
		if err != nil || oppID <= 0 {
			writeErr(w, apperr.New(apperr.KindValidation, "opportunity_id is required"))
			return
		}

		in := application.ApplyInput{
			OpportunityID: oppID,
			CoverLetter:   r.FormValue("cover_letter"),
		}
		if in.Resume, in.ResumeName, err = formFile(r, "resume"); err != nil {
			writeErr(w, err)
			return
		}
		if in.Letter, in.LetterName, err = formFile(r, "letter"); err != nil {
			writeErr(w, err)
			return
		}

		app, err := svc.Apply(r.Context(), userID, in)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, viewApplication(app))
	}
}

// formFile reads an optional multipart file part into memory. Absence is
// not an error here; the service decides which documents are mandatory.
func formFile(r *http.Request, field string) ([]byte, string, error) {
	f, hdr, err := r.FormFile(field)
	if err == http.ErrMissingFile {
		return nil, "", nil
	}
	if err != nil {
		return nil, "", apperr.New(apperr.KindValidation, "invalid "+field+" upload")
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, "", apperr.Wrap(apperr.KindInternal, "reading "+field+" upload", err)
	}
	return data, hdr.Filename, nil
}

func GetApplication(svc *application.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, _ := middlewarex.UserID(r.Context())
		id, err := pathID(r, "id")
		if err != nil {
			writeErr(w, err)
			return
		}
		app, err := svc.Get(r.Context(), userID, id)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, viewApplication(app))
	}
}

func ListMyApplications(svc *application.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, _ := middlewarex.UserID(r.Context())
		apps, err := svc.ListByUser(r.Context(), userID)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, viewApplications(apps))
	}
}

type coverLetterReq struct {
	CoverLetter string `json:"coverLetter"`
}

func UpdateCoverLetter(svc *application.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, _ := middlewarex.UserID(r.Context())
		id, err := pathID(r, "id")
		if err != nil {
			writeErr(w, err)
			return
		}
		var in coverLetterReq
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			writeErr(w, apperr.New(apperr.KindValidation, "bad json"))
			return
		}
		app, err := svc.UpdateCoverLetter(r.Context(), userID, id, in.CoverLetter)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, viewApplication(app))
	}
}

func WithdrawApplication(svc *application.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, _ := middlewarex.UserID(r.Context())
		id, err := pathID(r, "id")
		if err != nil {
			writeErr(w, err)
			return
		}
		if err := svc.Withdraw(r.Context(), userID, id); err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "withdrawn"})
	}
}

func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.New(apperr.KindValidation, "invalid "+name)
	}
	return id, nil
}

package handler

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/sakif/postvault/internal/apperror"
	"github.com/sakif/postvault/internal/service"
)

// multipartOverhead is the slack allowed above MaxUploadSize for the
// multipart boundaries and headers.
const multipartOverhead = 64 << 10

// AccountHandler serves the signed-in user's own account.
// Every route is behind RequireAuth.
type AccountHandler struct {
	account AccountService
	logger  *slog.Logger
}

func NewAccountHandler(account AccountService, logger *slog.Logger) *AccountHandler {
	return &AccountHandler{account: account, logger: logger}
}

type usernameRequest struct {
	Username string `json:"username"`
}

// HandleMe returns the current user.
//
// HTTP: GET /me
//
// The frontend calls this on load to learn who is logged in.
func (h *AccountHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	userID, err := sessionUser(r)
	if err != nil {
		writeError(w, err)
		return
	}

	user, err := h.account.Me(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// HandleUpdate renames the current user.
//
// HTTP: PATCH /me
// REQUEST BODY: {"username": "new_name"}
func (h *AccountHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	userID, err := sessionUser(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var in usernameRequest
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, err)
		return
	}

	user, err := h.account.UpdateUsername(r.Context(), userID, in.Username)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// HandleAvatar uploads a new avatar.
//
// HTTP: POST /me/image (multipart/form-data, field "file")
func (h *AccountHandler) HandleAvatar(w http.ResponseWriter, r *http.Request) {
	userID, err := sessionUser(r)
	if err != nil {
		writeError(w, err)
		return
	}

	data, contentType, err := readImage(w, r)
	if err != nil {
		writeError(w, err)
		return
	}

	user, err := h.account.UpdateAvatar(r.Context(), userID, data, contentType)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// UploadHandler stores images for post covers.
type UploadHandler struct {
	uploads UploadService
	logger  *slog.Logger
}

func NewUploadHandler(uploads UploadService, logger *slog.Logger) *UploadHandler {
	return &UploadHandler{uploads: uploads, logger: logger}
}

// UploadResponse is the body of a successful upload.
type UploadResponse struct {
	URL string `json:"url"`
}

// HandleUpload stores one image and returns its public URL.
//
// HTTP: POST /uploads (multipart/form-data, field "file")
// RESPONSE: 201 {"url": "https://..."}
//
// A 502 means the image host failed. Nothing is retried; the client may
// publish the post without an image.
func (h *UploadHandler) HandleUpload(w http.ResponseWriter, r *http.Request) {
	data, contentType, err := readImage(w, r)
	if err != nil {
		writeError(w, err)
		return
	}

	url, err := h.uploads.Upload(r.Context(), data, contentType)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, UploadResponse{URL: url})
}

// readImage reads the "file" field of a multipart request.
//
// CONTENT SNIFFING:
// The Content-Type the client sends is ignored. http.DetectContentType
// looks at the first 512 bytes, so a script renamed to cat.png is reported
// as text and rejected by the service.
func readImage(w http.ResponseWriter, r *http.Request) ([]byte, string, error) {
	r.Body = http.MaxBytesReader(w, r.Body, service.MaxUploadSize+multipartOverhead)

	file, _, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, "", tooLargeError()
		}
		return nil, "", apperror.ValidationFailed("file", "a multipart \"file\" field is required")
	}
	defer file.Close()

	// Read one byte past the limit so the service can tell "exactly 5 MiB"
	// from "more than 5 MiB".
	data, err := io.ReadAll(io.LimitReader(file, service.MaxUploadSize+1))
	if err != nil {
		return nil, "", fmt.Errorf("reading upload: %w", err)
	}
	if len(data) > service.MaxUploadSize {
		return nil, "", tooLargeError()
	}

	return data, http.DetectContentType(data), nil
}

func tooLargeError() error {
	return apperror.ValidationFailed("file",
		fmt.Sprintf("image must be %d MiB or smaller", service.MaxUploadSize>>20))
}

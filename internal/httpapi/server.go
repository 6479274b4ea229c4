package httpapi

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/AdityaRanjanp/LumenPass/internal/lumenpass/scanner"
	"github.com/AdityaRanjanp/LumenPass/internal/lumenpass/service"
	"github.com/AdityaRanjanp/LumenPass/internal/lumenpass/store"
	"github.com/AdityaRanjanp/LumenPass/internal/lumenpass/types"
)

// maxRequestBody caps JSON bodies on the admin endpoints.
const maxRequestBody = 4096

// maxScanBody caps scan submissions, which may carry a base64 PNG for
// server-side decoding.
const maxScanBody = 1 << 20

type Dependencies struct {
	Logger *log.Logger
	Addr   string

	Issuer   *service.IssuerService
	Verifier *service.VerifyService
	Attempts store.ScanAttemptStore

	// ImageDecoder enables server-side decoding of uploaded scan
	// images.  Optional; clients can always submit pre-decoded
	// payloads.
	ImageDecoder scanner.FrameDecoder

	// Admin token verification: bcrypt hash preferred, plain token as
	// dev fallback.
	AdminTokenHash []byte
	AdminToken     string

	QRImageSize int
}

type Server struct {
	httpServer   *http.Server
	logger       *log.Logger
	issuer       *service.IssuerService
	verifier     *service.VerifyService
	attempts     store.ScanAttemptStore
	imageDecoder scanner.FrameDecoder
	qrImageSize  int
}

func NewServer(d Dependencies) *Server {
	mux := http.NewServeMux()

	s := &Server{
		logger:       d.Logger,
		issuer:       d.Issuer,
		verifier:     d.Verifier,
		attempts:     d.Attempts,
		imageDecoder: d.ImageDecoder,
		qrImageSize:  d.QRImageSize,
	}

	admin := func(h http.HandlerFunc) http.Handler {
		return adminAuth(d.AdminTokenHash, d.AdminToken, h)
	}

	mux.HandleFunc("GET /v1/healthz", s.handleHealthz)
	mux.HandleFunc("POST /v1/scan", s.handleScan)
	mux.Handle("POST /v1/issue", admin(s.handleIssue))
	mux.Handle("POST /v1/revoke", admin(s.handleRevoke))
	mux.Handle("GET /v1/attempts", admin(s.handleAttempts))
	mux.Handle("GET /v1/credentials", admin(s.handleCredentials))
	mux.Handle("GET /v1/credentials/{id}", admin(s.handleCredential))
	mux.Handle("GET /v1/qr/{id}", admin(s.handleQRImage))

	handler := loggingMiddleware(d.Logger, mux)

	s.httpServer = &http.Server{
		Addr:              d.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	return s
}

func (s *Server) Handler() http.Handler { return s.httpServer.Handler }

func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) handleIssue(w http.ResponseWriter, r *http.Request) {
	var req types.IssueRequest
	if !decodeBody(w, r, maxRequestBody, &req) {
		return
	}

	issued, err := s.issuer.Issue(r.Context(), service.IssueParams{
		Subject: req.Subject,
		Contact: req.Contact,
		Purpose: req.Purpose,
		TTL:     time.Duration(req.TTLSeconds) * time.Second,
	})
	if err != nil {
		if errors.Is(err, service.ErrInvalidSubject) {
			writeError(w, http.StatusBadRequest, "invalid_subject", err.Error())
			return
		}
		s.logger.Printf("issue error: %v", err)
		writeError(w, http.StatusServiceUnavailable, "system_unavailable", "could not issue credential, retry")
		return
	}

	rec := issued.Record
	writeJSON(w, http.StatusOK, types.IssueResponse{
		CredentialID: rec.ID,
		Subject:      rec.Subject,
		QRPayload:    issued.Payload,
		QRImageURL:   "/v1/qr/" + rec.ID + ".png",
		IssuedAt:     rec.IssuedAt.Format(time.RFC3339Nano),
		ExpiresAt:    rec.ExpiresAt.Format(time.RFC3339Nano),
	})
}

func (s *Server) handleRevoke(w http.ResponseWriter, r *http.Request) {
	var req types.RevokeRequest
	if !decodeBody(w, r, maxRequestBody, &req) {
		return
	}
	if strings.TrimSpace(req.CredentialID) == "" {
		writeError(w, http.StatusBadRequest, "invalid_credential_id", "credential_id is required")
		return
	}

	result, err := s.issuer.Revoke(r.Context(), req.CredentialID)
	if err != nil {
		s.logger.Printf("revoke error: %v", err)
		writeError(w, http.StatusServiceUnavailable, "system_unavailable", "could not revoke credential, retry")
		return
	}

	writeJSON(w, http.StatusOK, types.RevokeResponse{
		CredentialID: req.CredentialID,
		Status:       revokeStatus(result),
	})
}

func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	var req types.ScanRequest
	if !decodeBody(w, r, maxScanBody, &req) {
		return
	}

	payload := req.Payload
	if payload == "" {
		if req.ImagePNG == "" {
			writeError(w, http.StatusBadRequest, "missing_payload", "payload or image_png is required")
			return
		}
		if s.imageDecoder == nil {
			writeError(w, http.StatusNotImplemented, "image_decode_unavailable", "server-side image decoding is not configured")
			return
		}

		img, err := base64.StdEncoding.DecodeString(req.ImagePNG)
		if err != nil {
			writeError(w, http.StatusBadRequest, "bad_image", "image_png is not valid base64")
			return
		}
		payload, err = s.imageDecoder.DecodePayload(img)
		if err != nil {
			if errors.Is(err, scanner.ErrNoCode) {
				writeError(w, http.StatusUnprocessableEntity, "no_qr_found", "no QR code detected in image")
				return
			}
			s.logger.Printf("image decode error: %v", err)
			writeError(w, http.StatusBadRequest, "bad_image", "could not decode image")
			return
		}
	}

	resp, err := s.verifier.Verify(r.Context(), service.Submission{
		Payload: payload,
		Source:  store.SourceMobileUpload,
	})
	if err != nil {
		s.logger.Printf("scan error: %v", err)
		writeError(w, http.StatusServiceUnavailable, "system_unavailable", "could not evaluate scan, retry")
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleAttempts(w http.ResponseWriter, r *http.Request) {
	var since *time.Time
	if v := r.URL.Query().Get("since"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "bad_since", "since must be RFC3339")
			return
		}
		u := t.UTC()
		since = &u
	}

	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "bad_limit", "limit must be a positive integer")
			return
		}
		limit = n
	}

	recs, err := s.attempts.List(r.Context(), since, limit)
	if err != nil {
		s.logger.Printf("attempts error: %v", err)
		writeError(w, http.StatusServiceUnavailable, "system_unavailable", "could not read audit log, retry")
		return
	}

	views := make([]types.AttemptView, 0, len(recs))
	for _, rec := range recs {
		views = append(views, attemptView(rec))
	}
	writeJSON(w, http.StatusOK, types.AttemptsResponse{Attempts: views})
}

func (s *Server) handleCredentials(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "bad_limit", "limit must be a positive integer")
			return
		}
		limit = n
	}

	recs, contacts, purposes, err := s.issuer.Credentials(r.Context(), limit)
	if err != nil {
		s.logger.Printf("credentials error: %v", err)
		writeError(w, http.StatusServiceUnavailable, "system_unavailable", "could not list credentials, retry")
		return
	}

	views := make([]types.CredentialView, 0, len(recs))
	for i, rec := range recs {
		views = append(views, credentialView(rec, contacts[i], purposes[i]))
	}
	writeJSON(w, http.StatusOK, types.CredentialsResponse{Credentials: views})
}

func (s *Server) handleCredential(w http.ResponseWriter, r *http.Request) {
	rec, contact, purpose, err := s.issuer.Credential(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, service.ErrUnknownCredential) {
			writeError(w, http.StatusNotFound, "not_found", "credential not found")
			return
		}
		s.logger.Printf("credential error: %v", err)
		writeError(w, http.StatusServiceUnavailable, "system_unavailable", "could not read credential, retry")
		return
	}

	writeJSON(w, http.StatusOK, credentialView(rec, contact, purpose))
}

func (s *Server) handleQRImage(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSuffix(r.PathValue("id"), ".png")

	img, err := s.issuer.QRImage(r.Context(), id, s.qrImageSize)
	if err != nil {
		if errors.Is(err, service.ErrUnknownCredential) {
			writeError(w, http.StatusNotFound, "not_found", "credential not found")
			return
		}
		s.logger.Printf("qr image error: %v", err)
		writeError(w, http.StatusServiceUnavailable, "system_unavailable", "could not render qr image, retry")
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(img)
}

// decodeBody decodes a JSON request body with strict fields and a size
// cap, writing the error response itself on failure.
func decodeBody(w http.ResponseWriter, r *http.Request, limit int64, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, limit))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "bad_json", "invalid JSON body")
		return false
	}
	return true
}

func revokeStatus(result store.RevokeResult) string {
	switch result {
	case store.RevokeOK:
		return "revoked"
	case store.RevokeAlreadyRevoked:
		return "already_revoked"
	case store.RevokeAlreadyConsumed:
		return "already_consumed"
	default:
		return "not_found"
	}
}

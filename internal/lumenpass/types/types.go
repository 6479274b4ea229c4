package types

type IssueRequest struct {
	Subject    string `json:"subject"`
	Contact    string `json:"contact,omitempty"`
	Purpose    string `json:"purpose,omitempty"`
	TTLSeconds int    `json:"ttl_s,omitempty"`
}

type IssueResponse struct {
	CredentialID string `json:"credential_id"`
	Subject      string `json:"subject"`
	QRPayload    string `json:"qr_payload"`
	QRImageURL   string `json:"qr_image_url"`
	IssuedAt     string `json:"issued_at"`
	ExpiresAt    string `json:"expires_at"`
}

type RevokeRequest struct {
	CredentialID string `json:"credential_id"`
}

type RevokeResponse struct {
	CredentialID string `json:"credential_id"`
	Status       string `json:"status"` // revoked | already_revoked | already_consumed | not_found
}

// ScanRequest carries either a pre-decoded payload string (from a
// browser/mobile client that ran the QR decode itself) or a base64 PNG
// for server-side decoding.
type ScanRequest struct {
	Payload  string `json:"payload,omitempty"`
	ImagePNG string `json:"image_png,omitempty"`
}

type ScanResponse struct {
	Outcome   string `json:"outcome"` // admitted | denied
	Reason    string `json:"reason,omitempty"`
	Subject   string `json:"subject,omitempty"`
	ScannedAt string `json:"scanned_at"`
}

// CredentialView is the decrypted admin-facing projection of a
// credential.  Contact and purpose are decrypted for display only;
// nothing here ever reaches the visitor-facing scan path.
type CredentialView struct {
	CredentialID string `json:"credential_id"`
	Subject      string `json:"subject"`
	Contact      string `json:"contact,omitempty"`
	Purpose      string `json:"purpose,omitempty"`
	IssuedAt     string `json:"issued_at"`
	ExpiresAt    string `json:"expires_at"`
	Status       string `json:"status"`
	ConsumedAt   string `json:"consumed_at,omitempty"`
	RevokedAt    string `json:"revoked_at,omitempty"`
	ArchivedAt   string `json:"archived_at,omitempty"`
}

type AttemptView struct {
	Seq          int64  `json:"seq"`
	CredentialID string `json:"credential_id,omitempty"`
	Subject      string `json:"subject,omitempty"`
	Source       string `json:"source"`
	At           string `json:"at"`
	Admitted     bool   `json:"admitted"`
	Reason       string `json:"reason,omitempty"`
	PayloadHash  string `json:"payload_hash,omitempty"` // hex
}

type AttemptsResponse struct {
	Attempts []AttemptView `json:"attempts"`
}

type CredentialsResponse struct {
	Credentials []CredentialView `json:"credentials"`
}

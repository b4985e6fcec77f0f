package api

// TokenResponse represents the credential returned to the coaching client
type TokenResponse struct {
	Token     string `json:"token"`
	ProjectID string `json:"projectId,omitempty"`
	Note      string `json:"note,omitempty"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Details string `json:"details,omitempty"`
}

// Error codes returned by the token endpoint
const (
	ErrorCodeServerMisconfigured = "server_misconfigured"
	ErrorCodeMissingToken        = "missing_token"
	ErrorCodeInvalidToken        = "invalid_token"
	ErrorCodeInvalidRole         = "invalid_role"
)

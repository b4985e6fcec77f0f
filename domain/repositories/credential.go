package repositories

import "context"

// Credential is a short-lived secret used to authenticate the agent socket
type Credential struct {
	Token     string `json:"token"`
	ProjectID string `json:"projectId,omitempty"`
}

// CredentialIssuer obtains a credential for a new session
type CredentialIssuer interface {
	Issue(ctx context.Context) (Credential, error)
}

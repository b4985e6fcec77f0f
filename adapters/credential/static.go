package credential

import (
	"context"
	"fmt"

	"github.com/satriahrh/voicecoach/domain"
	"github.com/satriahrh/voicecoach/domain/repositories"
)

// StaticIssuer hands out a fixed API key, for running without a token service
type StaticIssuer struct {
	credential repositories.Credential
}

func NewStaticIssuer(apiKey, projectID string) *StaticIssuer {
	return &StaticIssuer{credential: repositories.Credential{Token: apiKey, ProjectID: projectID}}
}

func (s *StaticIssuer) Issue(ctx context.Context) (repositories.Credential, error) {
	if s.credential.Token == "" {
		return repositories.Credential{}, fmt.Errorf("%w: no API key configured", domain.ErrServerMisconfigured)
	}
	return s.credential, nil
}

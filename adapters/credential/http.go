package credential

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/satriahrh/voicecoach/domain"
	"github.com/satriahrh/voicecoach/domain/repositories"
)

type tokenResponse struct {
	Token     string `json:"token"`
	ProjectID string `json:"projectId"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Details string `json:"details"`
}

// HTTPIssuer fetches credentials from the token service
type HTTPIssuer struct {
	client        *resty.Client
	url           string
	operatorToken string
	logger        *zap.Logger
}

// NewHTTPIssuer creates an issuer posting to url. operatorToken is sent as a
// bearer token when non-empty.
func NewHTTPIssuer(url, operatorToken string, timeout time.Duration, logger *zap.Logger) *HTTPIssuer {
	client := resty.New().
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")

	return &HTTPIssuer{
		client:        client,
		url:           url,
		operatorToken: operatorToken,
		logger:        logger,
	}
}

func (i *HTTPIssuer) Issue(ctx context.Context) (repositories.Credential, error) {
	req := i.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetResult(&tokenResponse{}).
		SetError(&errorResponse{})
	if i.operatorToken != "" {
		req.SetAuthToken(i.operatorToken)
	}

	resp, err := req.Post(i.url)
	if err != nil {
		i.logger.Error("Credential request failed", zap.String("url", i.url), zap.Error(err))
		return repositories.Credential{}, fmt.Errorf("%w: %v", domain.ErrNetworkFailure, err)
	}

	if resp.IsError() {
		detail := resp.Status()
		if e, ok := resp.Error().(*errorResponse); ok && e.Error != "" {
			detail = fmt.Sprintf("%s: %s %s", e.Error, e.Message, e.Details)
		}
		i.logger.Error("Credential request rejected",
			zap.Int("status", resp.StatusCode()),
			zap.String("detail", detail))

		if resp.StatusCode() >= http.StatusInternalServerError {
			return repositories.Credential{}, fmt.Errorf("%w: %s", domain.ErrServerMisconfigured, detail)
		}
		return repositories.Credential{}, fmt.Errorf("%w: %s", domain.ErrCredentialRejected, detail)
	}

	result, ok := resp.Result().(*tokenResponse)
	if !ok || result.Token == "" {
		return repositories.Credential{}, fmt.Errorf("%w: response carried no token", domain.ErrServerMisconfigured)
	}

	return repositories.Credential{Token: result.Token, ProjectID: result.ProjectID}, nil
}

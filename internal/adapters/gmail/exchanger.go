package gmail

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mikey/deadline-triage/internal/core"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gmailapi "google.golang.org/api/gmail/v1"
)

// Exchanger trades authorization codes with Google's token endpoint
type Exchanger struct {
	config *oauth2.Config
	logger *zap.Logger
}

// NewExchanger creates an exchanger for an installed-app client. The redirect
// URI is left empty to match codes issued to mobile clients.
func NewExchanger(clientID, clientSecret string, logger *zap.Logger) *Exchanger {
	return &Exchanger{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Endpoint:     google.Endpoint,
			Scopes:       []string{gmailapi.GmailReadonlyScope},
		},
		logger: logger,
	}
}

// Exchange returns the token response fields the client needs
func (e *Exchanger) Exchange(ctx context.Context, code string) (map[string]interface{}, error) {
	if e.config.ClientID == "" || e.config.ClientSecret == "" {
		return nil, fmt.Errorf("google oauth client credentials: %w", core.ErrNotConfigured)
	}
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, fmt.Errorf("missing authorization code: %w", core.ErrExchangeFailed)
	}

	token, err := e.config.Exchange(ctx, code)
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) {
			status := 0
			if retrieveErr.Response != nil {
				status = retrieveErr.Response.StatusCode
			}
			e.logger.Warn("Authorization code rejected",
				zap.Int("status", status),
				zap.String("error_code", retrieveErr.ErrorCode))
			return nil, fmt.Errorf("failed to exchange code: %w: %w", core.ErrExchangeFailed, err)
		}
		return nil, fmt.Errorf("failed to exchange code: %w: %w", core.ErrUpstreamUnavailable, err)
	}

	resp := map[string]interface{}{
		"access_token": token.AccessToken,
		"token_type":   token.Type(),
	}
	if token.RefreshToken != "" {
		resp["refresh_token"] = token.RefreshToken
	}
	if !token.Expiry.IsZero() {
		resp["expiry"] = token.Expiry.UTC().Format(time.RFC3339)
	}
	for _, key := range []string{"expires_in", "id_token", "scope"} {
		if v := token.Extra(key); v != nil {
			resp[key] = v
		}
	}
	return resp, nil
}

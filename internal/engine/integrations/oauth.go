package integrations

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	pkgerrors "fieldhub/internal/pkg/errors"
	"fieldhub/internal/platform/models"
)

const oauthStateTTL = 10 * time.Minute

type AuthorizationURL struct {
	URL   string `json:"url"`
	State string `json:"state"`
}

// InitiateOAuth builds the provider authorization URL. The state parameter
// is a short-lived signed token binding the callback to this integration.
func (s *Service) InitiateOAuth(integrationID string) Result {
	integration, err := s.integrations.GetByID(integrationID)
	if err != nil {
		return fail(pkgerrors.ErrCodeOAuth, err.Error())
	}
	if integration == nil || integration.Disabled() {
		return failNotFound(pkgerrors.ErrCodeOAuth, "integration not found")
	}

	app, configured := s.oauthCfg.Providers[integration.Provider]
	if !configured {
		return failInvalid(pkgerrors.ErrCodeOAuth, "no oauth app configured for provider "+integration.Provider)
	}

	state, err := s.signState(integrationID, integration.Provider)
	if err != nil {
		return fail(pkgerrors.ErrCodeOAuth, err.Error())
	}

	query := url.Values{}
	query.Set("response_type", "code")
	query.Set("client_id", app.ClientID)
	query.Set("redirect_uri", app.RedirectURL)
	query.Set("state", state)
	if len(app.Scopes) > 0 {
		query.Set("scope", strings.Join(app.Scopes, " "))
	}

	return ok(&AuthorizationURL{URL: app.AuthURL + "?" + query.Encode(), State: state})
}

// CompleteOAuth exchanges the authorization code for tokens and persists
// them on the integration the state token points at.
func (s *Service) CompleteOAuth(code, state string) Result {
	integrationID, provider, err := s.parseState(state)
	if err != nil {
		return failInvalid(pkgerrors.ErrCodeOAuth, "invalid state: "+err.Error())
	}

	integration, err := s.integrations.GetByID(integrationID)
	if err != nil {
		return fail(pkgerrors.ErrCodeOAuth, err.Error())
	}
	if integration == nil || integration.Disabled() {
		return failNotFound(pkgerrors.ErrCodeOAuth, "integration not found")
	}
	if integration.Provider != provider {
		return failInvalid(pkgerrors.ErrCodeOAuth, "state does not match integration provider")
	}

	app := s.oauthCfg.Providers[provider]
	tokens, err := s.exchangeToken(app.TokenURL, url.Values{
		"grant_type":    {"authorization_code"},
		"code":          {code},
		"client_id":     {app.ClientID},
		"client_secret": {app.ClientSecret},
		"redirect_uri":  {app.RedirectURL},
	})
	if err != nil {
		s.appendLog(integrationID, models.LogLevelError, "oauth", "token exchange failed: "+err.Error())
		return fail(pkgerrors.ErrCodeOAuth, err.Error())
	}

	integration.Credentials.AccessToken = tokens.AccessToken
	if tokens.RefreshToken != "" {
		integration.Credentials.RefreshToken = tokens.RefreshToken
	}
	if tokens.ExpiresIn > 0 {
		expiry := time.Now().Add(time.Duration(tokens.ExpiresIn) * time.Second).Unix()
		integration.Credentials.TokenExpiresAt = &expiry
	}
	if err := s.secrets.Seal(&integration.Credentials); err != nil {
		return fail(pkgerrors.ErrCodeOAuth, "failed to seal credentials")
	}
	integration.Status = models.IntegrationStatusActive

	if err := s.integrations.Update(integration); err != nil {
		return fail(pkgerrors.ErrCodeOAuth, err.Error())
	}

	s.appendLog(integrationID, models.LogLevelInfo, "oauth", "oauth connection established")
	return ok(integration)
}

// RefreshToken renews the access token using the stored refresh token.
// Meant to run before expiry; the worker calls it proactively.
func (s *Service) RefreshToken(integrationID string) Result {
	integration, err := s.integrations.GetByID(integrationID)
	if err != nil {
		return fail(pkgerrors.ErrCodeRefresh, err.Error())
	}
	if integration == nil || integration.Disabled() {
		return failNotFound(pkgerrors.ErrCodeRefresh, "integration not found")
	}
	if integration.Credentials.RefreshToken == "" {
		return failInvalid(pkgerrors.ErrCodeRefresh, "integration has no refresh token")
	}

	app, configured := s.oauthCfg.Providers[integration.Provider]
	if !configured {
		return failInvalid(pkgerrors.ErrCodeRefresh, "no oauth app configured for provider "+integration.Provider)
	}

	tokens, err := s.exchangeToken(app.TokenURL, url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {integration.Credentials.RefreshToken},
		"client_id":     {app.ClientID},
		"client_secret": {app.ClientSecret},
	})
	if err != nil {
		s.integrations.UpdateStatus(integrationID, models.IntegrationStatusError, "token refresh failed")
		s.appendLog(integrationID, models.LogLevelError, "oauth", "token refresh failed: "+err.Error())
		return fail(pkgerrors.ErrCodeRefresh, err.Error())
	}

	integration.Credentials.AccessToken = tokens.AccessToken
	if tokens.RefreshToken != "" {
		integration.Credentials.RefreshToken = tokens.RefreshToken
	}
	if tokens.ExpiresIn > 0 {
		expiry := time.Now().Add(time.Duration(tokens.ExpiresIn) * time.Second).Unix()
		integration.Credentials.TokenExpiresAt = &expiry
	}
	if err := s.secrets.Seal(&integration.Credentials); err != nil {
		return fail(pkgerrors.ErrCodeRefresh, "failed to seal credentials")
	}

	if err := s.integrations.Update(integration); err != nil {
		return fail(pkgerrors.ErrCodeRefresh, err.Error())
	}

	s.appendLog(integrationID, models.LogLevelInfo, "oauth", "access token refreshed")
	return ok(integration)
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
}

func (s *Service) exchangeToken(tokenURL string, form url.Values) (*tokenResponse, error) {
	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.PostForm(tokenURL, form)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("token endpoint returned HTTP %d", resp.StatusCode)
	}

	var tokens tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tokens); err != nil {
		return nil, fmt.Errorf("malformed token response: %w", err)
	}
	if tokens.AccessToken == "" {
		return nil, fmt.Errorf("token response missing access_token")
	}
	return &tokens, nil
}

func (s *Service) signState(integrationID, provider string) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":      integrationID,
		"provider": provider,
		"jti":      uuid.New().String(),
		"exp":      time.Now().Add(oauthStateTTL).Unix(),
	})
	return token.SignedString([]byte(s.oauthCfg.StateSecret))
}

func (s *Service) parseState(state string) (integrationID, provider string, err error) {
	token, err := jwt.Parse(state, func(t *jwt.Token) (interface{}, error) {
		return []byte(s.oauthCfg.StateSecret), nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		return "", "", err
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", "", fmt.Errorf("unexpected claims type")
	}

	integrationID, _ = claims["sub"].(string)
	provider, _ = claims["provider"].(string)
	if integrationID == "" || provider == "" {
		return "", "", fmt.Errorf("state missing subject or provider")
	}
	return integrationID, provider, nil
}

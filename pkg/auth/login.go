package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"igtail/pkg/config"
	errs "igtail/pkg/errors"
	"igtail/pkg/logger"
	"igtail/pkg/models"
)

const (
	loginPath        = "/api/v1/web/accounts/login/ajax/"
	loginNoncePath   = "/api/v1/web/accounts/request_one_tap_login_nonce/"
	oneTapLoginPath  = "/api/v1/web/accounts/one_tap_web_login/"
	instagramAjax    = "1010801225"
	viewportWidth    = "1728"
	maxDiagnosticLen = 4096
)

// Baseline cookies the web client carries before it has a session.
var baselineCookies = map[string]string{
	"datr":    "blCgZXM302jOB7BO4tR4nZqY",
	"mid":     "ZaBXswAEAAGylo7iozvu4FDXWmPn",
	"ig_nrcb": "1",
}

// LoginService performs the web login handshake.
type LoginService struct {
	client    *http.Client
	cfg       config.InstagramConfig
	timeout   time.Duration
	encryptor *Encryptor
	csrf      *sharedDataSource
	deviceID  string
	logger    logger.Logger
}

// NewLoginService builds a LoginService whose requests, including key and token
// lookups, go through client.
func NewLoginService(client *http.Client, cfg config.InstagramConfig, httpCfg config.HTTPConfig, log logger.Logger) *LoginService {
	if log == nil {
		log = logger.WithComponent("auth")
	}
	return &LoginService{
		client:    client,
		cfg:       cfg,
		timeout:   httpCfg.LoginTimeout,
		encryptor: NewEncryptor(client, cfg, log),
		csrf: &sharedDataSource{
			client:      client,
			primaryURL:  cfg.SharedDataURL,
			fallbackURL: cfg.SharedDataFallbackURL,
			userAgent:   cfg.UserAgent,
			logger:      log,
		},
		deviceID: strings.ToUpper(uuid.NewString()),
		logger:   log,
	}
}

// CSRFToken fetches a fresh anti-forgery token. The primary endpoint must
// answer 200 with a JSON content type; otherwise the mirror is tried once.
func (s *LoginService) CSRFToken(ctx context.Context) (string, error) {
	data, err := s.csrf.load(ctx, true, func(d *sharedData) error {
		if d.Config.CSRFToken == "" {
			return errors.New("csrf_token missing")
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("fetch csrf token: %w", err)
	}
	return data.Config.CSRFToken, nil
}

// Login signs in with username and password. A rejected login or any non-200
// answer is a *errs.SignInError; transport failures come back as *errs.Error.
func (s *LoginService) Login(ctx context.Context, username, password string) (models.ShortUser, models.SessionCredentials, error) {
	var user models.ShortUser
	var creds models.SessionCredentials

	if username == "" || password == "" {
		return user, creds, &errs.SignInError{Message: "username and password are required"}
	}
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	encrypted, err := s.encryptor.Encrypt(ctx, password)
	if err != nil {
		return user, creds, err
	}

	form := url.Values{}
	form.Set("username", username)
	form.Set("enc_password", encrypted)
	form.Set("optIntoOneTap", "false")
	form.Set("queryParams", "{}")
	form.Set("trustedDeviceRecords", "{}")

	resp, body, err := s.post(ctx, loginPath, form, "")
	if err != nil {
		return user, creds, err
	}

	if resp.StatusCode != http.StatusOK {
		return user, creds, signInError("unexpected login response", resp, body)
	}
	if err := json.Unmarshal(body, &user); err != nil {
		return user, creds, signInError("undecodable login response", resp, body)
	}
	if !user.Authenticated {
		return user, creds, signInError("not authenticated, maybe wrong password", resp, body)
	}

	creds.SessionID = cookieValue(resp, "sessionid")
	creds.CSRFToken = cookieValue(resp, "csrftoken")
	if creds.SessionID == "" {
		return user, creds, signInError("login response carried no session cookie", resp, body)
	}

	s.logger.InfoWithFields("Logged in", map[string]interface{}{
		"account": username,
		"user_id": user.UserID,
	})
	return user, creds, nil
}

// RequestLoginNonce asks for a one-tap login nonce bound to sessionID.
func (s *LoginService) RequestLoginNonce(ctx context.Context, sessionID string) (string, error) {
	resp, body, err := s.post(ctx, loginNoncePath, url.Values{}, sessionID)
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK || !isJSON(resp) {
		return "", signInError("login nonce request rejected", resp, body)
	}

	var payload struct {
		LoginNonce string `json:"login_nonce"`
	}
	if err := json.Unmarshal(body, &payload); err != nil || payload.LoginNonce == "" {
		return "", signInError("login nonce missing", resp, body)
	}
	return payload.LoginNonce, nil
}

// ReissueSession trades an existing session for a fresh one through one-tap
// login. An empty nonce is requested first. It returns the new nonce and
// session id; either may be empty if the platform omitted it.
func (s *LoginService) ReissueSession(ctx context.Context, sessionID, userID, nonce string) (string, string, error) {
	if nonce == "" {
		var err error
		if nonce, err = s.RequestLoginNonce(ctx, sessionID); err != nil {
			return "", "", err
		}
	}

	form := url.Values{}
	form.Set("login_nonce", nonce)
	form.Set("queryParams", "{}")
	form.Set("trustedDeviceRecords", "{}")
	form.Set("user_id", userID)

	resp, body, err := s.post(ctx, oneTapLoginPath, form, sessionID)
	if err != nil {
		return "", "", err
	}
	if resp.StatusCode != http.StatusOK || !isJSON(resp) {
		return "", "", signInError("session reissue rejected", resp, body)
	}

	var payload struct {
		Authenticated bool   `json:"authenticated"`
		LoginNonce    string `json:"login_nonce"`
	}
	if err := json.Unmarshal(body, &payload); err != nil || !payload.Authenticated {
		return "", "", signInError("session reissue not authenticated", resp, body)
	}

	newSession := cookieValue(resp, "sessionid")
	if payload.LoginNonce == "" && newSession == "" {
		return "", "", signInError("session reissue returned nothing", resp, body)
	}
	return payload.LoginNonce, newSession, nil
}

// post sends a form with the baseline headers, a fresh csrf token and,
// when sessionID is set, the session cookie.
func (s *LoginService) post(ctx context.Context, path string, form url.Values, sessionID string) (*http.Response, []byte, error) {
	token, err := s.CSRFToken(ctx)
	if err != nil {
		return nil, nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(s.cfg.BaseURL, "/")+path, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, nil, fmt.Errorf("build request: %w", err)
	}
	s.applyHeaders(req, token)
	s.applyCookies(req, token, sessionID)

	start := time.Now()
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, nil, errs.NewNetworkError(err)
	}
	defer resp.Body.Close()
	logger.LogHTTPRequest(s.logger, req.Method, req.URL.String(), resp.StatusCode, time.Since(start))

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, nil, errs.NewNetworkError(err)
	}
	return resp, body, nil
}

func (s *LoginService) applyHeaders(req *http.Request, csrfToken string) {
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", s.cfg.UserAgent)
	req.Header.Set("X-Ig-App-Id", s.cfg.AppID)
	req.Header.Set("X-Instagram-Ajax", instagramAjax)
	req.Header.Set("X-Requested-With", "XMLHttpRequest")
	req.Header.Set("Origin", strings.TrimRight(s.cfg.BaseURL, "/"))
	req.Header.Set("Viewport-Width", viewportWidth)
	req.Header.Set("dpr", "1")
	req.Header.Set("X-Csrftoken", csrfToken)
}

func (s *LoginService) applyCookies(req *http.Request, csrfToken, sessionID string) {
	req.AddCookie(&http.Cookie{Name: "ig_did", Value: s.deviceID})
	for _, name := range []string{"datr", "mid", "ig_nrcb"} {
		req.AddCookie(&http.Cookie{Name: name, Value: baselineCookies[name]})
	}
	req.AddCookie(&http.Cookie{Name: "csrftoken", Value: csrfToken})
	if sessionID != "" {
		req.AddCookie(&http.Cookie{Name: "sessionid", Value: sessionID})
	}
}

// cookieValue returns the percent-decoded value of the named response cookie.
func cookieValue(resp *http.Response, name string) string {
	for _, c := range resp.Cookies() {
		if c.Name != name {
			continue
		}
		if v, err := url.PathUnescape(c.Value); err == nil {
			return v
		}
		return c.Value
	}
	return ""
}

func isJSON(resp *http.Response) bool {
	mt, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	return mt == "application/json"
}

func signInError(msg string, resp *http.Response, body []byte) *errs.SignInError {
	if len(body) > maxDiagnosticLen {
		body = body[:maxDiagnosticLen]
	}
	return &errs.SignInError{Message: msg, StatusCode: resp.StatusCode, Body: string(body)}
}

package camera

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/yourusername/reolink-bridge/internal/core"
	"go.uber.org/zap"
)

// Client talks to a Reolink camera's CGI API. It manages the token
// session transparently: commands re-login when the token lease has run
// out. Every call is a single request/response round trip with no
// retries.
type Client struct {
	url      string
	host     string
	username string
	password string
	channel  int

	httpClient *http.Client
	logger     *zap.Logger

	token       string
	tokenExpiry time.Time
}

// ClientConfig holds the settings for a Client.
type ClientConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	Channel  int
	Timeout  time.Duration
	Logger   *zap.Logger
}

// NewClient creates a camera client. No network traffic happens until
// the first command.
func NewClient(config ClientConfig) *Client {
	timeout := config.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		url:        fmt.Sprintf("http://%s:%d/cgi-bin/api.cgi", config.Host, config.Port),
		host:       config.Host,
		username:   config.Username,
		password:   config.Password,
		channel:    config.Channel,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// sessionActive reports whether the current token is still usable.
func (c *Client) sessionActive() bool {
	return c.token != "" && time.Now().Before(c.tokenExpiry)
}

// Login opens a token session. Safe to call with an active session.
func (c *Client) Login(ctx context.Context) error {
	if c.sessionActive() {
		return nil
	}

	c.logger.Debug("Logging in to camera",
		zap.String("host", c.host),
		zap.String("username", c.username),
	)

	body := []command{{
		Cmd:    "Login",
		Action: 0,
		Param:  loginParam{User: loginUser{UserName: c.username, Password: c.password}},
	}}

	responses, err := c.post(ctx, body, url.Values{"cmd": {"Login"}, "token": {"null"}})
	if err != nil {
		return err
	}

	resp, err := firstResponse(responses, "Login")
	if err != nil {
		return err
	}

	if resp.Code != 0 {
		return fmt.Errorf("%w: login code %d: %s", core.ErrAuthentication, resp.Code, resp.errorDetail())
	}

	var value tokenValue
	if err := json.Unmarshal(resp.Value, &value); err != nil {
		return fmt.Errorf("%w: failed to decode login token: %v", core.ErrProtocol, err)
	}

	c.token = value.Token.Name
	c.tokenExpiry = time.Now().Add(time.Duration(value.Token.LeaseTime) * time.Second)

	c.logger.Debug("Camera login successful",
		zap.String("host", c.host),
		zap.Time("token_expiry", c.tokenExpiry),
	)

	return nil
}

// Logout closes the token session.
func (c *Client) Logout(ctx context.Context) error {
	if c.token == "" {
		return nil
	}

	body := []command{{Cmd: "Logout", Action: 0, Param: struct{}{}}}

	_, err := c.post(ctx, body, url.Values{"cmd": {"Logout"}})

	c.token = ""
	c.tokenExpiry = time.Time{}

	return err
}

// send runs a command batch, logging in first when needed.
func (c *Client) send(ctx context.Context, body []command) ([]commandResponse, error) {
	if err := c.Login(ctx); err != nil {
		return nil, err
	}

	params := url.Values{}
	if len(body) == 1 {
		params.Set("cmd", body[0].Cmd)
	}

	return c.post(ctx, body, params)
}

// post performs one CGI round trip and maps failures onto the shared
// error taxonomy.
func (c *Client) post(ctx context.Context, body []command, params url.Values) ([]commandResponse, error) {
	if c.token != "" {
		params.Set("token", c.token)
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	requestURL := c.url
	if encoded := params.Encode(); encoded != "" {
		requestURL += "?" + encoded
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, requestURL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrDeviceUnreachable, err)
	}
	defer resp.Body.Close()

	responseBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response: %v", core.ErrDeviceUnreachable, err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", core.ErrProtocol, resp.StatusCode)
	}

	var responses []commandResponse
	if err := json.Unmarshal(responseBody, &responses); err != nil {
		return nil, fmt.Errorf("%w: failed to decode response: %v", core.ErrProtocol, err)
	}

	return responses, nil
}

// firstResponse finds the response for a command in a batch.
func firstResponse(responses []commandResponse, cmd string) (commandResponse, error) {
	for _, resp := range responses {
		if resp.Cmd == cmd {
			return resp, nil
		}
	}
	return commandResponse{}, fmt.Errorf("%w: no response for %s", core.ErrProtocol, cmd)
}

// check maps a non-zero command response onto the error taxonomy.
func (r commandResponse) check() error {
	if r.Code == 0 && r.Error == nil {
		return nil
	}

	detail := r.errorDetail()
	if strings.Contains(strings.ToLower(detail), "login") ||
		strings.Contains(strings.ToLower(detail), "password") {
		return fmt.Errorf("%w: %s: %s", core.ErrAuthentication, r.Cmd, detail)
	}

	return fmt.Errorf("%w: %s: code %d: %s", core.ErrProtocol, r.Cmd, r.Code, detail)
}

func (r commandResponse) errorDetail() string {
	if r.Error == nil {
		return ""
	}
	return fmt.Sprintf("rspCode %d: %s", r.Error.RspCode, r.Error.Detail)
}

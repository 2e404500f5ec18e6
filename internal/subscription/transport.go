package subscription

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/yourusername/reolink-bridge/internal/core"
	"go.uber.org/zap"
)

// Transport performs the three lease-affecting calls against the camera's
// ONVIF event service. Each call is one network round trip; retry policy
// belongs to the caller.
type Transport struct {
	endpoint  string
	username  string
	password  string
	leaseTerm time.Duration
	client    *http.Client
	logger    *zap.Logger
}

// TransportConfig holds the settings for a Transport.
type TransportConfig struct {
	// Host and OnvifPort locate the camera's event service.
	Host      string
	OnvifPort int
	Username  string
	Password  string
	// LeaseTerm is the termination time requested on subscribe and renew.
	LeaseTerm time.Duration
	// Timeout bounds every round trip. A camera that does not answer in
	// time is reported as unreachable.
	Timeout time.Duration
	Logger  *zap.Logger
}

// NewTransport creates a transport for one camera.
func NewTransport(config TransportConfig) *Transport {
	timeout := config.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	leaseTerm := config.LeaseTerm
	if leaseTerm == 0 {
		leaseTerm = 15 * time.Minute
	}

	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Transport{
		endpoint:  fmt.Sprintf("http://%s:%d/onvif/event_service", config.Host, config.OnvifPort),
		username:  config.Username,
		password:  config.Password,
		leaseTerm: leaseTerm,
		client:    &http.Client{Timeout: timeout},
		logger:    logger,
	}
}

// Subscribe asks the camera to push event notifications to webhookURL.
// It returns the device-issued subscription manager address (an opaque
// reference required by Renew and Unsubscribe) and the granted lease.
func (t *Transport) Subscribe(ctx context.Context, webhookURL string) (string, Lease, error) {
	body, err := renderSOAP(subscribeTemplate, soapRequest{
		Security:        newSecurityToken(t.username, t.password, time.Now()),
		Address:         webhookURL,
		TerminationTime: terminationTimeValue(t.leaseTerm),
	})
	if err != nil {
		return "", Lease{}, err
	}

	startedAt := time.Now()

	response, err := t.send(ctx, t.endpoint, subscribeAction, body)
	if err != nil {
		return "", Lease{}, err
	}

	ref, ok := extractElement(response, "Address")
	if !ok {
		return "", Lease{}, fmt.Errorf("%w: subscribe response missing subscription reference", core.ErrProtocol)
	}

	lease, err := t.parseLease(response, startedAt)
	if err != nil {
		return "", Lease{}, fmt.Errorf("subscribe: %w", err)
	}

	t.logger.Debug("Subscribed to camera events",
		zap.String("webhook_url", webhookURL),
		zap.Duration("lease_duration", lease.Duration),
	)

	return ref, lease, nil
}

// Renew extends the lease behind the given subscription reference. The
// reference is passed through untouched; only the device interprets it.
func (t *Transport) Renew(ctx context.Context, ref string) (Lease, error) {
	body, err := renderSOAP(renewTemplate, soapRequest{
		Security:        newSecurityToken(t.username, t.password, time.Now()),
		To:              ref,
		TerminationTime: terminationTimeValue(t.leaseTerm),
	})
	if err != nil {
		return Lease{}, err
	}

	startedAt := time.Now()

	response, err := t.send(ctx, ref, renewAction, body)
	if err != nil {
		return Lease{}, err
	}

	lease, err := t.parseLease(response, startedAt)
	if err != nil {
		return Lease{}, fmt.Errorf("renew: %w", err)
	}

	t.logger.Debug("Renewed camera event subscription",
		zap.Duration("lease_duration", lease.Duration),
	)

	return lease, nil
}

// Unsubscribe tears down the device-side lease. Best effort: callers
// reset their local state regardless of the outcome.
func (t *Transport) Unsubscribe(ctx context.Context, ref string) error {
	body, err := renderSOAP(unsubscribeTemplate, soapRequest{
		Security: newSecurityToken(t.username, t.password, time.Now()),
		To:       ref,
	})
	if err != nil {
		return err
	}

	if _, err := t.send(ctx, ref, unsubscribeAction, body); err != nil {
		return err
	}

	t.logger.Debug("Unsubscribed from camera events")

	return nil
}

// send performs one SOAP round trip and maps failures onto the shared
// error taxonomy.
func (t *Transport) send(ctx context.Context, url, action string, body []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", soapContentType)
	req.Header.Set("SOAPAction", action)

	resp, err := t.client.Do(req)
	if err != nil {
		// Connection refused, DNS failure, timeout: all unreachable.
		return nil, fmt.Errorf("%w: %v", core.ErrDeviceUnreachable, err)
	}
	defer resp.Body.Close()

	responseBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response: %v", core.ErrDeviceUnreachable, err)
	}

	t.logger.Debug("Camera event service response",
		zap.String("url", url),
		zap.Int("status", resp.StatusCode),
	)

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, fmt.Errorf("%w: status %d", core.ErrAuthentication, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		if isAuthFault(responseBody) {
			return nil, fmt.Errorf("%w: status %d", core.ErrAuthentication, resp.StatusCode)
		}
		return nil, fmt.Errorf("%w: status %d", core.ErrProtocol, resp.StatusCode)
	}

	return responseBody, nil
}

// parseLease computes the granted lease from the CurrentTime and
// TerminationTime elements. Both are read on the camera's clock so any
// drift against local time cancels out.
func (t *Transport) parseLease(response []byte, startedAt time.Time) (Lease, error) {
	current, ok := extractTime(response, "CurrentTime")
	if !ok {
		return Lease{}, fmt.Errorf("%w: response missing CurrentTime", core.ErrProtocol)
	}

	termination, ok := extractTime(response, "TerminationTime")
	if !ok {
		return Lease{}, fmt.Errorf("%w: response missing TerminationTime", core.ErrProtocol)
	}

	duration := termination.Sub(current)
	if duration <= 0 {
		// Some firmware repeats the initial termination time in renew
		// responses, which makes the window look already spent. The
		// device still extends the lease by the requested term.
		duration = t.leaseTerm
	}

	return Lease{StartedAt: startedAt, Duration: duration}, nil
}

// isAuthFault checks a SOAP fault body for a credential rejection.
func isAuthFault(body []byte) bool {
	s := string(body)
	return strings.Contains(s, "NotAuthorized") || strings.Contains(s, "Unauthorized")
}

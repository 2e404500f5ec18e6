package camera

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yourusername/reolink-bridge/internal/core"
)

// fakeCamera speaks just enough of the CGI dialect for client tests.
type fakeCamera struct {
	t *testing.T
	// responses maps a command name to its canned response entry.
	responses map[string]string
	// requests records every received command batch.
	requests [][]map[string]any
	// rejectLogin makes Login answer with a credential error.
	rejectLogin bool
}

func (f *fakeCamera) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var batch []map[string]any
		require.NoError(f.t, json.NewDecoder(r.Body).Decode(&batch))
		f.requests = append(f.requests, batch)

		var entries []string
		for _, cmd := range batch {
			name, _ := cmd["cmd"].(string)
			switch {
			case name == "Login" && f.rejectLogin:
				entries = append(entries, `{"cmd":"Login","code":1,"error":{"rspCode":-7,"detail":"login failed"}}`)
			case name == "Login":
				entries = append(entries, `{"cmd":"Login","code":0,"value":{"Token":{"leaseTime":3600,"name":"token123"}}}`)
			case name == "Logout":
				entries = append(entries, `{"cmd":"Logout","code":0,"value":{"rspCode":200}}`)
			default:
				resp, ok := f.responses[name]
				if !ok {
					resp = fmt.Sprintf(`{"cmd":"%s","code":1,"error":{"rspCode":-9,"detail":"ability error"}}`, name)
				}
				entries = append(entries, resp)
			}
		}

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, "[")
		for i, e := range entries {
			if i > 0 {
				fmt.Fprint(w, ",")
			}
			fmt.Fprint(w, e)
		}
		fmt.Fprint(w, "]")
	}
}

func newTestClient(t *testing.T, fake *fakeCamera) (*Client, *httptest.Server) {
	t.Helper()

	server := httptest.NewServer(fake.handler())
	t.Cleanup(server.Close)

	u, err := url.Parse(server.URL)
	require.NoError(t, err)

	var port int
	_, err = fmt.Sscanf(u.Port(), "%d", &port)
	require.NoError(t, err)

	client := NewClient(ClientConfig{
		Host:     u.Hostname(),
		Port:     port,
		Username: "admin",
		Password: "secret",
		Channel:  0,
		Timeout:  2 * time.Second,
	})

	return client, server
}

func TestLoginStoresToken(t *testing.T) {
	fake := &fakeCamera{t: t}
	client, _ := newTestClient(t, fake)

	require.NoError(t, client.Login(context.Background()))

	assert.Equal(t, "token123", client.token)
	assert.True(t, client.sessionActive())

	// A second login with an active session does not hit the device.
	require.NoError(t, client.Login(context.Background()))
	assert.Len(t, fake.requests, 1)
}

func TestLoginRejected(t *testing.T) {
	fake := &fakeCamera{t: t, rejectLogin: true}
	client, _ := newTestClient(t, fake)

	err := client.Login(context.Background())
	assert.ErrorIs(t, err, core.ErrAuthentication)
	assert.False(t, client.sessionActive())
}

func TestLoginUnreachable(t *testing.T) {
	fake := &fakeCamera{t: t}
	client, server := newTestClient(t, fake)
	server.Close()

	err := client.Login(context.Background())
	assert.ErrorIs(t, err, core.ErrDeviceUnreachable)
}

func TestGetStates(t *testing.T) {
	fake := &fakeCamera{t: t, responses: map[string]string{
		"GetFtp":      `{"cmd":"GetFtp","code":0,"value":{"Ftp":{"schedule":{"enable":1}}}}`,
		"GetEnc":      `{"cmd":"GetEnc","code":0,"value":{"Enc":{"audio":0}}}`,
		"GetEmail":    `{"cmd":"GetEmail","code":0,"value":{"Email":{"schedule":{"enable":0}}}}`,
		"GetIsp":      `{"cmd":"GetIsp","code":0,"value":{"Isp":{"dayNight":"Auto"}}}`,
		"GetIrLights": `{"cmd":"GetIrLights","code":0,"value":{"IrLights":{"channel":0,"state":"Auto"}}}`,
		"GetWhiteLed": `{"cmd":"GetWhiteLed","code":0,"value":{"WhiteLed":{"channel":0,"state":1,"mode":1}}}`,
		"GetRec":      `{"cmd":"GetRec","code":0,"value":{"Rec":{"schedule":{"enable":1}}}}`,
		"GetAlarm":    `{"cmd":"GetAlarm","code":0,"value":{"Alarm":{"enable":1}}}`,
	}}
	client, _ := newTestClient(t, fake)

	states, err := client.GetStates(context.Background())
	require.NoError(t, err)

	assert.True(t, states.FTP)
	assert.False(t, states.Audio)
	assert.False(t, states.Email)
	assert.Equal(t, "Auto", states.DayNight)
	assert.Equal(t, "Auto", states.IrLights)
	assert.True(t, states.Spotlight)
	assert.True(t, states.Recording)
	assert.True(t, states.MotionDetection)
}

func TestGetStatesSkipsUnsupportedFeatures(t *testing.T) {
	// A model without a spotlight answers GetWhiteLed with an ability
	// error; the rest of the batch still maps.
	fake := &fakeCamera{t: t, responses: map[string]string{
		"GetIrLights": `{"cmd":"GetIrLights","code":0,"value":{"IrLights":{"channel":0,"state":"Off"}}}`,
	}}
	client, _ := newTestClient(t, fake)

	states, err := client.GetStates(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "Off", states.IrLights)
	assert.False(t, states.Spotlight)
}

func TestGetSettings(t *testing.T) {
	fake := &fakeCamera{t: t, responses: map[string]string{
		"GetDevInfo":   `{"cmd":"GetDevInfo","code":0,"value":{"DevInfo":{"name":"yard","model":"RLC-510A","serial":"0123","firmVer":"v3.0.0","channelNum":1}}}`,
		"GetLocalLink": `{"cmd":"GetLocalLink","code":0,"value":{"LocalLink":{"mac":"ec:71:db:00:00:01"}}}`,
		"GetNetPort":   `{"cmd":"GetNetPort","code":0,"value":{"NetPort":{"httpPort":80,"rtspPort":554,"rtmpPort":1935,"onvifPort":8000}}}`,
		"GetUser":      `{"cmd":"GetUser","code":0,"value":{"User":[{"userName":"admin","level":"admin"}]}}`,
	}}
	client, _ := newTestClient(t, fake)

	settings, err := client.GetSettings(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "yard", settings.DeviceInfo.Name)
	assert.Equal(t, "RLC-510A", settings.DeviceInfo.Model)
	assert.Equal(t, "ec:71:db:00:00:01", settings.MacAddress)
	assert.Equal(t, 8000, settings.Ports.OnvifPort)
	require.Len(t, settings.Users, 1)
	assert.Equal(t, "admin", settings.Users[0].Level)
}

func TestGetNetPorts(t *testing.T) {
	fake := &fakeCamera{t: t, responses: map[string]string{
		"GetNetPort": `{"cmd":"GetNetPort","code":0,"value":{"NetPort":{"httpPort":80,"onvifPort":8000}}}`,
	}}
	client, _ := newTestClient(t, fake)

	ports, err := client.GetNetPorts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 8000, ports.OnvifPort)
}

func TestGetMotionState(t *testing.T) {
	fake := &fakeCamera{t: t, responses: map[string]string{
		"GetMdState": `{"cmd":"GetMdState","code":0,"value":{"state":1}}`,
	}}
	client, _ := newTestClient(t, fake)

	motion, err := client.GetMotionState(context.Background())
	require.NoError(t, err)
	assert.True(t, motion)
}

func TestSetIrLights(t *testing.T) {
	fake := &fakeCamera{t: t, responses: map[string]string{
		"SetIrLights": `{"cmd":"SetIrLights","code":0,"value":{"rspCode":200}}`,
	}}
	client, _ := newTestClient(t, fake)

	require.NoError(t, client.SetIrLights(context.Background(), false))

	// Second batch (after login) carries the Off state.
	last := fake.requests[len(fake.requests)-1]
	require.Len(t, last, 1)
	assert.Equal(t, "SetIrLights", last[0]["cmd"])

	param := last[0]["param"].(map[string]any)
	irLights := param["IrLights"].(map[string]any)
	assert.Equal(t, "Off", irLights["state"])
}

func TestSetSpotlightRejectedRspCode(t *testing.T) {
	fake := &fakeCamera{t: t, responses: map[string]string{
		"SetWhiteLed": `{"cmd":"SetWhiteLed","code":0,"value":{"rspCode":-1}}`,
	}}
	client, _ := newTestClient(t, fake)

	err := client.SetSpotlight(context.Background(), true)
	assert.ErrorIs(t, err, core.ErrProtocol)
}

func TestPlaySiren(t *testing.T) {
	fake := &fakeCamera{t: t, responses: map[string]string{
		"AudioAlarmPlay": `{"cmd":"AudioAlarmPlay","code":0,"value":{"rspCode":200}}`,
	}}
	client, _ := newTestClient(t, fake)

	require.NoError(t, client.PlaySiren(context.Background(), 3))

	last := fake.requests[len(fake.requests)-1]
	param := last[0]["param"].(map[string]any)
	assert.Equal(t, "times", param["alarm_mode"])
	assert.Equal(t, float64(3), param["times"])
}

func TestCommandsAutoLogin(t *testing.T) {
	fake := &fakeCamera{t: t, responses: map[string]string{
		"GetMdState": `{"cmd":"GetMdState","code":0,"value":{"state":0}}`,
	}}
	client, _ := newTestClient(t, fake)

	_, err := client.GetMotionState(context.Background())
	require.NoError(t, err)

	// First request is the implicit login, second the command itself.
	require.Len(t, fake.requests, 2)
	assert.Equal(t, "Login", fake.requests[0][0]["cmd"])
	assert.Equal(t, "GetMdState", fake.requests[1][0]["cmd"])
}

func TestProtocolErrorOnGarbage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<html>not json</html>")
	}))
	t.Cleanup(server.Close)

	u, err := url.Parse(server.URL)
	require.NoError(t, err)
	var port int
	_, err = fmt.Sscanf(u.Port(), "%d", &port)
	require.NoError(t, err)

	client := NewClient(ClientConfig{
		Host:     u.Hostname(),
		Port:     port,
		Username: "admin",
		Password: "secret",
		Timeout:  2 * time.Second,
	})

	assert.ErrorIs(t, client.Login(context.Background()), core.ErrProtocol)
}

func TestLogoutClearsToken(t *testing.T) {
	fake := &fakeCamera{t: t}
	client, _ := newTestClient(t, fake)

	require.NoError(t, client.Login(context.Background()))
	require.NoError(t, client.Logout(context.Background()))

	assert.False(t, client.sessionActive())
	assert.Empty(t, client.token)
}

package camera

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/yourusername/reolink-bridge/internal/core"
	"go.uber.org/zap"
)

// GetStates fetches the switchable-feature snapshot in one batch.
// Commands a camera model does not support come back with a non-zero
// code and are skipped, so the snapshot only carries what the device
// actually reported.
func (c *Client) GetStates(ctx context.Context) (States, error) {
	body := []command{
		{Cmd: "GetFtp", Action: 1, Param: channelParam{Channel: c.channel}},
		{Cmd: "GetEnc", Action: 1, Param: channelParam{Channel: c.channel}},
		{Cmd: "GetEmail", Action: 1, Param: channelParam{Channel: c.channel}},
		{Cmd: "GetIsp", Action: 1, Param: channelParam{Channel: c.channel}},
		{Cmd: "GetIrLights", Action: 1, Param: channelParam{Channel: c.channel}},
		{Cmd: "GetWhiteLed", Action: 1, Param: channelParam{Channel: c.channel}},
		{Cmd: "GetRec", Action: 1, Param: channelParam{Channel: c.channel}},
		{Cmd: "GetAlarm", Action: 1, Param: map[string]any{
			"Alarm": map[string]any{"channel": c.channel, "type": "md"},
		}},
	}

	responses, err := c.send(ctx, body)
	if err != nil {
		return States{}, fmt.Errorf("get states: %w", err)
	}

	var states States
	for _, resp := range responses {
		if resp.Code != 0 {
			// Ability error: the model lacks this feature.
			continue
		}

		switch resp.Cmd {
		case "GetFtp":
			var v ftpValue
			if json.Unmarshal(resp.Value, &v) == nil {
				states.FTP = v.Ftp.Schedule.Enable == 1
			}
		case "GetEnc":
			var v encValue
			if json.Unmarshal(resp.Value, &v) == nil {
				states.Audio = v.Enc.Audio == 1
			}
		case "GetEmail":
			var v emailValue
			if json.Unmarshal(resp.Value, &v) == nil {
				states.Email = v.Email.Schedule.Enable == 1
			}
		case "GetIsp":
			var v ispValue
			if json.Unmarshal(resp.Value, &v) == nil {
				states.DayNight = v.Isp.DayNight
			}
		case "GetIrLights":
			var v irLightsValue
			if json.Unmarshal(resp.Value, &v) == nil {
				states.IrLights = v.IrLights.State
			}
		case "GetWhiteLed":
			var v whiteLedValue
			if json.Unmarshal(resp.Value, &v) == nil {
				states.Spotlight = v.WhiteLed.State == 1
			}
		case "GetRec":
			var v recValue
			if json.Unmarshal(resp.Value, &v) == nil {
				states.Recording = v.Rec.Schedule.Enable == 1
			}
		case "GetAlarm":
			var v alarmValue
			if json.Unmarshal(resp.Value, &v) == nil {
				states.MotionDetection = v.Alarm.Enable == 1
			}
		}
	}

	return states, nil
}

// GetSettings fetches the device-level snapshot in one batch.
func (c *Client) GetSettings(ctx context.Context) (Settings, error) {
	body := []command{
		{Cmd: "GetDevInfo", Action: 1, Param: channelParam{Channel: c.channel}},
		{Cmd: "GetLocalLink", Action: 1, Param: channelParam{Channel: c.channel}},
		{Cmd: "GetNetPort", Action: 1, Param: channelParam{Channel: c.channel}},
		{Cmd: "GetUser", Action: 1, Param: channelParam{Channel: c.channel}},
	}

	responses, err := c.send(ctx, body)
	if err != nil {
		return Settings{}, fmt.Errorf("get settings: %w", err)
	}

	var settings Settings
	for _, resp := range responses {
		if resp.Code != 0 {
			continue
		}

		switch resp.Cmd {
		case "GetDevInfo":
			var v devInfoValue
			if json.Unmarshal(resp.Value, &v) == nil {
				settings.DeviceInfo = v.DevInfo
			}
		case "GetLocalLink":
			var v localLinkValue
			if json.Unmarshal(resp.Value, &v) == nil {
				settings.MacAddress = v.LocalLink.Mac
			}
		case "GetNetPort":
			var v netPortValue
			if json.Unmarshal(resp.Value, &v) == nil {
				settings.Ports = v.NetPort
			}
		case "GetUser":
			var v userValue
			if json.Unmarshal(resp.Value, &v) == nil {
				settings.Users = v.User
			}
		}
	}

	return settings, nil
}

// GetNetPorts returns the camera's service ports. The ONVIF port feeds
// the event subscription endpoint.
func (c *Client) GetNetPorts(ctx context.Context) (NetPorts, error) {
	resp, err := c.command(ctx, "GetNetPort", 1, channelParam{Channel: c.channel})
	if err != nil {
		return NetPorts{}, err
	}

	var v netPortValue
	if err := json.Unmarshal(resp.Value, &v); err != nil {
		return NetPorts{}, fmt.Errorf("%w: failed to decode NetPort: %v", core.ErrProtocol, err)
	}

	return v.NetPort, nil
}

// GetMotionState polls the motion detection state.
func (c *Client) GetMotionState(ctx context.Context) (bool, error) {
	resp, err := c.command(ctx, "GetMdState", 0, channelParam{Channel: c.channel})
	if err != nil {
		return false, err
	}

	var v mdStateValue
	if err := json.Unmarshal(resp.Value, &v); err != nil {
		return false, fmt.Errorf("%w: failed to decode MdState: %v", core.ErrProtocol, err)
	}

	return v.State == 1, nil
}

// GetIrLights fetches the current infrared light configuration.
func (c *Client) GetIrLights(ctx context.Context) (IrLights, error) {
	resp, err := c.command(ctx, "GetIrLights", 1, channelParam{Channel: c.channel})
	if err != nil {
		return IrLights{}, err
	}

	var v irLightsValue
	if err := json.Unmarshal(resp.Value, &v); err != nil {
		return IrLights{}, fmt.Errorf("%w: failed to decode IrLights: %v", core.ErrProtocol, err)
	}

	return v.IrLights, nil
}

// SetIrLights switches the infrared lights between automatic and off.
func (c *Client) SetIrLights(ctx context.Context, enable bool) error {
	state := "Off"
	if enable {
		state = "Auto"
	}

	return c.setCommand(ctx, "SetIrLights", irLightsValue{
		IrLights: IrLights{Channel: c.channel, State: state},
	})
}

// GetSpotlight fetches the current spotlight (white LED) configuration.
func (c *Client) GetSpotlight(ctx context.Context) (WhiteLed, error) {
	resp, err := c.command(ctx, "GetWhiteLed", 1, channelParam{Channel: c.channel})
	if err != nil {
		return WhiteLed{}, err
	}

	var v whiteLedValue
	if err := json.Unmarshal(resp.Value, &v); err != nil {
		return WhiteLed{}, fmt.Errorf("%w: failed to decode WhiteLed: %v", core.ErrProtocol, err)
	}

	return v.WhiteLed, nil
}

// SetSpotlight turns the spotlight on or off.
func (c *Client) SetSpotlight(ctx context.Context, enable bool) error {
	state := 0
	if enable {
		state = 1
	}

	return c.setCommand(ctx, "SetWhiteLed", whiteLedValue{
		WhiteLed: WhiteLed{Channel: c.channel, State: state},
	})
}

// PlaySiren triggers the siren for the given number of alarm cycles.
func (c *Client) PlaySiren(ctx context.Context, times int) error {
	if times <= 0 {
		times = 1
	}

	return c.setCommand(ctx, "AudioAlarmPlay", map[string]any{
		"alarm_mode": "times",
		"times":      times,
		"channel":    c.channel,
	})
}

// StopSiren stops a running siren.
func (c *Client) StopSiren(ctx context.Context) error {
	return c.setCommand(ctx, "AudioAlarmPlay", map[string]any{
		"alarm_mode":    "manul",
		"manual_switch": 0,
		"channel":       c.channel,
	})
}

// SetFtp enables or disables FTP upload.
func (c *Client) SetFtp(ctx context.Context, enable bool) error {
	return c.setSchedule(ctx, "SetFtp", "Ftp", enable)
}

// SetEmail enables or disables email notification.
func (c *Client) SetEmail(ctx context.Context, enable bool) error {
	return c.setSchedule(ctx, "SetEmail", "Email", enable)
}

// SetRecording enables or disables recording.
func (c *Client) SetRecording(ctx context.Context, enable bool) error {
	return c.setSchedule(ctx, "SetRec", "Rec", enable)
}

// SetMotionDetection enables or disables motion detection.
func (c *Client) SetMotionDetection(ctx context.Context, enable bool) error {
	value := 0
	if enable {
		value = 1
	}

	return c.setCommand(ctx, "SetAlarm", map[string]any{
		"Alarm": map[string]any{
			"channel": c.channel,
			"type":    "md",
			"enable":  value,
		},
	})
}

// PTZ sends a pan/tilt/zoom operation. Supported operations include
// Left, Right, Up, Down, ZoomInc, ZoomDec, ToPos, Auto and Stop.
func (c *Client) PTZ(ctx context.Context, op string, speed, preset int) error {
	param := map[string]any{
		"channel": c.channel,
		"op":      op,
	}
	if speed > 0 {
		param["speed"] = speed
	}
	if preset > 0 {
		param["id"] = preset
	}

	return c.setCommand(ctx, "PtzCtrl", param)
}

// Snapshot grabs a still image from the camera.
func (c *Client) Snapshot(ctx context.Context) ([]byte, error) {
	if err := c.Login(ctx); err != nil {
		return nil, err
	}

	params := url.Values{
		"cmd":     {"Snap"},
		"channel": {fmt.Sprintf("%d", c.channel)},
		"token":   {c.token},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrDeviceUnreachable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: snapshot status %d", core.ErrProtocol, resp.StatusCode)
	}

	image, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read snapshot: %v", core.ErrDeviceUnreachable, err)
	}

	if len(image) == 0 {
		return nil, fmt.Errorf("%w: empty snapshot", core.ErrProtocol)
	}

	return image, nil
}

// command runs a single Get-style command and returns its response.
func (c *Client) command(ctx context.Context, cmd string, action int, param any) (commandResponse, error) {
	responses, err := c.send(ctx, []command{{Cmd: cmd, Action: action, Param: param}})
	if err != nil {
		return commandResponse{}, fmt.Errorf("%s: %w", cmd, err)
	}

	resp, err := firstResponse(responses, cmd)
	if err != nil {
		return commandResponse{}, err
	}

	if err := resp.check(); err != nil {
		return commandResponse{}, err
	}

	return resp, nil
}

// setCommand runs a Set-style command and verifies the rspCode.
func (c *Client) setCommand(ctx context.Context, cmd string, param any) error {
	c.logger.Debug("Sending camera command",
		zap.String("host", c.host),
		zap.String("cmd", cmd),
	)

	resp, err := c.command(ctx, cmd, 0, param)
	if err != nil {
		return err
	}

	var v rspCodeValue
	if err := json.Unmarshal(resp.Value, &v); err != nil {
		return fmt.Errorf("%w: %s: failed to decode rspCode: %v", core.ErrProtocol, cmd, err)
	}

	if v.RspCode != 200 {
		return fmt.Errorf("%w: %s: rspCode %d", core.ErrProtocol, cmd, v.RspCode)
	}

	return nil
}

// setSchedule toggles a feature that the camera models as a schedule
// enable flag.
func (c *Client) setSchedule(ctx context.Context, cmd, key string, enable bool) error {
	value := 0
	if enable {
		value = 1
	}

	return c.setCommand(ctx, cmd, map[string]any{
		key: map[string]any{
			"channel":  c.channel,
			"schedule": map[string]any{"enable": value},
		},
	})
}

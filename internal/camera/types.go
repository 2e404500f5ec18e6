package camera

import "encoding/json"

// command is one entry in a CGI request batch.
type command struct {
	Cmd    string `json:"cmd"`
	Action int    `json:"action"`
	Param  any    `json:"param"`
}

// commandResponse is one entry in a CGI response batch.
type commandResponse struct {
	Cmd   string          `json:"cmd"`
	Code  int             `json:"code"`
	Value json.RawMessage `json:"value"`
	Error *commandError   `json:"error"`
}

type commandError struct {
	RspCode int    `json:"rspCode"`
	Detail  string `json:"detail"`
}

// channelParam is the parameter most Get commands take.
type channelParam struct {
	Channel int `json:"channel"`
}

type loginParam struct {
	User loginUser `json:"User"`
}

type loginUser struct {
	UserName string `json:"userName"`
	Password string `json:"password"`
}

type tokenValue struct {
	Token struct {
		Name      string `json:"name"`
		LeaseTime int    `json:"leaseTime"`
	} `json:"Token"`
}

// IrLights is the infrared light configuration. State is "Auto" or "Off".
type IrLights struct {
	Channel int    `json:"channel"`
	State   string `json:"state"`
}

// WhiteLed is the spotlight configuration.
type WhiteLed struct {
	Channel int `json:"channel"`
	State   int `json:"state"`
	Mode    int `json:"mode"`
	Bright  int `json:"bright"`
}

// NetPorts are the service ports the camera exposes. OnvifPort is where
// the event subscription service listens.
type NetPorts struct {
	HTTPPort  int `json:"httpPort"`
	HTTPSPort int `json:"httpsPort"`
	RTSPPort  int `json:"rtspPort"`
	RTMPPort  int `json:"rtmpPort"`
	OnvifPort int `json:"onvifPort"`
}

// DeviceInfo identifies the camera.
type DeviceInfo struct {
	Name            string `json:"name"`
	Model           string `json:"model"`
	Serial          string `json:"serial"`
	FirmwareVersion string `json:"firmVer"`
	HardwareVersion string `json:"hardVer"`
	ChannelNum      int    `json:"channelNum"`
}

// User is one account on the camera.
type User struct {
	UserName string `json:"userName"`
	Level    string `json:"level"`
}

// States is the switchable-feature snapshot returned by GetStates.
type States struct {
	FTP             bool
	Email           bool
	Audio           bool
	Recording       bool
	MotionDetection bool
	DayNight        string
	IrLights        string
	Spotlight       bool
}

// Settings is the device-level snapshot returned by GetSettings.
type Settings struct {
	DeviceInfo DeviceInfo
	MacAddress string
	Ports      NetPorts
	Users      []User
}

// Feature-specific value envelopes for decoding command responses.

type irLightsValue struct {
	IrLights IrLights `json:"IrLights"`
}

type whiteLedValue struct {
	WhiteLed WhiteLed `json:"WhiteLed"`
}

type netPortValue struct {
	NetPort NetPorts `json:"NetPort"`
}

type devInfoValue struct {
	DevInfo DeviceInfo `json:"DevInfo"`
}

type localLinkValue struct {
	LocalLink struct {
		Mac string `json:"mac"`
	} `json:"LocalLink"`
}

type userValue struct {
	User []User `json:"User"`
}

type scheduleValue struct {
	Schedule struct {
		Enable int `json:"enable"`
	} `json:"schedule"`
}

type ftpValue struct {
	Ftp scheduleValue `json:"Ftp"`
}

type emailValue struct {
	Email scheduleValue `json:"Email"`
}

type recValue struct {
	Rec scheduleValue `json:"Rec"`
}

type encValue struct {
	Enc struct {
		Audio int `json:"audio"`
	} `json:"Enc"`
}

type ispValue struct {
	Isp struct {
		DayNight string `json:"dayNight"`
	} `json:"Isp"`
}

type alarmValue struct {
	Alarm struct {
		Enable int `json:"enable"`
	} `json:"Alarm"`
}

type mdStateValue struct {
	State int `json:"state"`
}

type rspCodeValue struct {
	RspCode int `json:"rspCode"`
}

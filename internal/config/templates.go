package config

import (
	"fmt"
	"os"
	"strings"
)

func Template(kind string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "controller", "":
		return controllerTemplate, nil
	case "device", "simulator":
		return deviceTemplate, nil
	default:
		return "", fmt.Errorf("unknown config kind: %s", kind)
	}
}

func WriteTemplate(path, kind string, overwrite bool) error {
	template, err := Template(kind)
	if err != nil {
		return err
	}
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	return os.WriteFile(path, []byte(template), 0o600)
}

const controllerTemplate = `[layout]
panels = 10
pixels_per_panel = 64
split_panel = 5

[limits]
max_datagram_bytes = 1472

[firmware]
luminance = 255
easing_mode = "LINEAR"
show_test_frame = false
enable_calibration = false

[controller]
name = "pixelctl"
http_addr = ":8080"
cors_origins = ["http://localhost:3000"]
targets = ["blinkenleds-1", "blinkenleds-2"]
# auth_token = "change-me"
listen_addr = ":0"
port = 2342
resend_interval = "5s"
stale_after = "30s"
log_limit = 128

[controller.backoff]
initial_delay = "1s"
multiplier = 2.0
max_delay = "1m"
jitter = true
`

const deviceTemplate = `[layout]
panels = 10
pixels_per_panel = 64
split_panel = 5

[device]
listen_addr = ":2342"
ordered = true
panel_index = 1
build_time = "pixelctl-sim"
info_interval = "5s"
`

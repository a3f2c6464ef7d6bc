// Command media-control is a mudra plugin that presses media keys and
// changes the output volume on macOS via AppleScript.
//
// System Events has no media keys: play/pause, next and previous press the
// F8, F9 and F7 function keys that carry the media symbols. Players that do
// not treat those function keys as media commands need the keyboard plugin
// and a plain keystroke instead.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
)

// defaultDelta is the volume step used when the request carries none.
const defaultDelta = 10

// Request represents the input from the plugin executor.
type Request struct {
	Action  string          `json:"action"`
	Gesture string          `json:"gesture"`
	Mode    string          `json:"mode,omitempty"`
	Config  json.RawMessage `json:"config,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// Response represents the output to the plugin executor.
type Response struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// VolumeParams carries the volume step for volume-up and volume-down.
type VolumeParams struct {
	Delta int `json:"delta"`
}

// mediaKeys maps media actions to the System Events key codes of the
// function keys that carry the media symbols.
var mediaKeys = map[string]int{
	"media-play-pause": 100,
	"media-next":       101,
	"media-prev":       98,
}

func main() {
	var req Request
	if err := json.NewDecoder(os.Stdin).Decode(&req); err != nil {
		writeResponse(Response{Error: fmt.Sprintf("failed to decode request: %v", err)})
		return
	}

	if err := handle(req); err != nil {
		writeResponse(Response{Error: fmt.Sprintf("action %s failed: %v", req.Action, err)})
		return
	}

	data, _ := json.Marshal(map[string]string{"action": req.Action, "gesture": req.Gesture})
	writeResponse(Response{Success: true, Data: data})
}

func handle(req Request) error {
	script, err := buildScript(req)
	if err != nil {
		return err
	}
	return runAppleScript(script)
}

// buildScript returns the AppleScript that performs req.
func buildScript(req Request) (string, error) {
	if code, ok := mediaKeys[req.Action]; ok {
		return fmt.Sprintf("tell application \"System Events\"\n\tkey code %d\nend tell", code), nil
	}

	switch req.Action {
	case "volume-up", "volume-down":
		delta, err := volumeDelta(req.Params)
		if err != nil {
			return "", err
		}
		if req.Action == "volume-down" {
			delta = -delta
		}
		return fmt.Sprintf(
			"set volume output volume ((output volume of (get volume settings)) + %d)", delta), nil
	case "volume-mute":
		return `set volume output muted (not (output muted of (get volume settings)))`, nil
	}

	return "", fmt.Errorf("unknown action: %s", req.Action)
}

// volumeDelta reads the step from params, defaulting to defaultDelta.
func volumeDelta(params json.RawMessage) (int, error) {
	p := VolumeParams{Delta: defaultDelta}
	if len(params) > 0 {
		if err := json.Unmarshal(params, &p); err != nil {
			return 0, fmt.Errorf("failed to parse params: %w", err)
		}
	}
	if p.Delta < 1 || p.Delta > 100 {
		return 0, fmt.Errorf("delta must be within 1..100, got %d", p.Delta)
	}
	return p.Delta, nil
}

func writeResponse(resp Response) {
	json.NewEncoder(os.Stdout).Encode(resp)
}

// runAppleScript executes an AppleScript command and returns any error.
func runAppleScript(script string) error {
	cmd := exec.Command("osascript", "-e", script)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%w: %s", err, string(output))
	}
	return nil
}

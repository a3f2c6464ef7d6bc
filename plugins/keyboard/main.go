// Command keyboard is a mudra plugin that types keys and shortcuts on macOS
// via AppleScript.
package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

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

// KeystrokeParams defines parameters for keystroke and shortcut actions.
type KeystrokeParams struct {
	Key       string   `json:"key"`
	Modifiers []string `json:"modifiers"` // command, option, control, shift
}

// modifierMap maps user-friendly modifier names to AppleScript equivalents.
var modifierMap = map[string]string{
	"command": "command down",
	"cmd":     "command down",
	"option":  "option down",
	"alt":     "option down",
	"control": "control down",
	"ctrl":    "control down",
	"shift":   "shift down",
}

// keyCodes holds the keys that keystroke cannot type by name.
var keyCodes = map[string]int{
	"space":  49,
	"return": 36,
	"enter":  36,
	"tab":    48,
	"escape": 53,
	"esc":    53,
	"left":   123,
	"right":  124,
	"down":   125,
	"up":     126,
}

var errNoKey = errors.New("key is required")

func main() {
	var req Request
	if err := json.NewDecoder(os.Stdin).Decode(&req); err != nil {
		writeResponse(Response{Error: fmt.Sprintf("failed to decode request: %v", err)})
		return
	}

	script, err := buildScript(req)
	if err == nil {
		err = runAppleScript(script)
	}
	if err != nil {
		writeResponse(Response{Error: fmt.Sprintf("action %s failed: %v", req.Action, err)})
		return
	}

	data, _ := json.Marshal(map[string]string{"action": req.Action, "gesture": req.Gesture, "mode": req.Mode})
	writeResponse(Response{Success: true, Data: data})
}

// buildScript validates the request and returns the AppleScript to run.
func buildScript(req Request) (string, error) {
	switch req.Action {
	case "keystroke", "shortcut":
	default:
		return "", fmt.Errorf("unknown action: %s", req.Action)
	}

	var p KeystrokeParams
	if len(req.Params) > 0 {
		if err := json.Unmarshal(req.Params, &p); err != nil {
			return "", fmt.Errorf("failed to parse params: %w", err)
		}
	}
	if p.Key == "" {
		return "", errNoKey
	}
	if req.Action == "shortcut" && len(p.Modifiers) == 0 {
		return "", fmt.Errorf("shortcut needs at least one modifier")
	}

	return buildKeystrokeScript(p.Key, p.Modifiers)
}

// buildKeystrokeScript generates an AppleScript for the given key and modifiers.
func buildKeystrokeScript(key string, modifiers []string) (string, error) {
	var press string
	if code, ok := keyCodes[strings.ToLower(key)]; ok {
		press = fmt.Sprintf("key code %d", code)
	} else {
		press = fmt.Sprintf("keystroke %s", quote(key))
	}

	var appleModifiers []string
	for _, mod := range modifiers {
		appleMod, ok := modifierMap[strings.ToLower(mod)]
		if !ok {
			return "", fmt.Errorf("unknown modifier: %s", mod)
		}
		appleModifiers = append(appleModifiers, appleMod)
	}

	if len(appleModifiers) == 0 {
		return fmt.Sprintf(`tell application "System Events" to %s`, press), nil
	}
	return fmt.Sprintf(`tell application "System Events" to %s using {%s}`,
		press, strings.Join(appleModifiers, ", ")), nil
}

// quote renders s as an AppleScript string literal.
func quote(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return `"` + s + `"`
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

package plugin

import (
	"context"
	"encoding/json"
	"log"

	"github.com/ayusman/mudra/internal/gesture"
)

// Action fires a plugin action for a gesture. It satisfies dispatch.Action.
// The plugin runs in the background so a slow plugin never stalls the frame
// loop; failures are logged and do not affect gesture state.
type Action struct {
	Executor *Executor
	Plugin   *Plugin
	Name     string // plugin action name, e.g. "volume-up"
	Config   json.RawMessage
	Params   json.RawMessage
	Mode     func() string // reports the active mode for the request, optional
}

// Fire starts the plugin call and returns immediately.
func (a *Action) Fire(label gesture.Label) {
	req := &Request{
		Action:  a.Name,
		Gesture: label.String(),
		Config:  a.Config,
		Params:  a.Params,
	}
	if a.Mode != nil {
		req.Mode = a.Mode()
	}

	a.Executor.Go(func(ctx context.Context) {
		resp, err := a.Executor.Execute(ctx, a.Plugin, req)
		if err != nil {
			log.Printf("Plugin %s/%s failed: %v", a.Plugin.Manifest.Name, a.Name, err)
			return
		}
		if !resp.Success {
			log.Printf("Plugin %s/%s reported error: %s", a.Plugin.Manifest.Name, a.Name, resp.Error)
		}
	})
}

package app

import (
	"net/http"
)

func (app *Application) GetHealth(w http.ResponseWriter, r *http.Request) {
	resp := HealthcheckResponse{
		Status: "UP",
		SystemInfo: SystemInfo{
			Version:     version,
			Environment: app.config.Env,
			Store:       app.config.Store,
		},
	}

	if p, ok := app.events.(interface{ Connected() bool }); ok {
		resp.SystemInfo.Events = "connected"
		if !p.Connected() {
			resp.SystemInfo.Events = "disconnected"
		}
	}

	err := app.writeJSON(w, http.StatusOK, resp, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

package server

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"studioflow/internal/app"
	"studioflow/internal/integrations"
)

type HealthResponse struct {
	Status      string          `json:"status" example:"ok"`
	Timestamp   string          `json:"timestamp" format:"date-time"`
	Environment string          `json:"environment"`
	Generation  bool            `json:"generation" doc:"Whether decision units can reach a generation backend"`
	Simulated   map[string]bool `json:"simulated" doc:"Integrations answering with simulated data"`
}

func registerHealth(api huma.API, rt *app.Runtime) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Liveness and integration mode",
		Tags:        []string{"system"},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body HealthResponse `json:"body"`
	}, error) {
		_, codeSim := rt.CodeHost.(integrations.SimulatedCodeHost)
		_, calSim := rt.Calendar.(integrations.SimulatedCalendar)
		_, ticketSim := rt.Ticketing.(integrations.SimulatedTicketing)
		return &struct {
			Body HealthResponse `json:"body"`
		}{Body: HealthResponse{
			Status:      "ok",
			Timestamp:   rt.Engine.Now().UTC().Format(time.RFC3339),
			Environment: rt.Config.Env,
			Generation:  rt.Config.Generation.Configured(),
			Simulated: map[string]bool{
				"github":   codeSim,
				"calendar": calSim,
				"clickup":  ticketSim,
				"telegram": rt.Telegram.Simulated(),
				"whatsapp": rt.WhatsApp.Simulated(),
			},
		}}, nil
	})
}

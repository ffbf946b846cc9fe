package weather

import (
	"context"

	"github.com/tjfontaine/mcp-chat/internal/domain"
	"github.com/tjfontaine/mcp-chat/internal/tools"
)

type alertsParams struct {
	State string `json:"state" jsonschema_description:"Two-letter US state code (e.g. CA, NY)"`
}

type forecastParams struct {
	Latitude  float64 `json:"latitude" jsonschema_description:"Latitude of the location"`
	Longitude float64 `json:"longitude" jsonschema_description:"Longitude of the location"`
}

// Tools returns get_alerts and get_forecast bound to c.
func Tools(c *Client) []tools.Tool {
	return []tools.Tool{
		{
			Descriptor: domain.ToolDescriptor{
				Name:        "get_alerts",
				Description: "Get weather alerts for a US state.",
				InputSchema: tools.SchemaFor[alertsParams](),
			},
			Handler: tools.InvocableFunc(func(ctx context.Context, args map[string]any) (any, error) {
				var p alertsParams
				if err := tools.DecodeArgs(args, &p); err != nil {
					return nil, err
				}
				return c.Alerts(ctx, p.State)
			}),
		},
		{
			Descriptor: domain.ToolDescriptor{
				Name:        "get_forecast",
				Description: "Get weather forecast for a location in the United States.",
				InputSchema: tools.SchemaFor[forecastParams](),
			},
			Handler: tools.InvocableFunc(func(ctx context.Context, args map[string]any) (any, error) {
				var p forecastParams
				if err := tools.DecodeArgs(args, &p); err != nil {
					return nil, err
				}
				return c.Forecast(ctx, p.Latitude, p.Longitude)
			}),
		},
	}
}

package mathexpr

import (
	"context"
	"strings"

	"github.com/tjfontaine/mcp-chat/internal/domain"
	"github.com/tjfontaine/mcp-chat/internal/tools"
)

// ToolName is the name the calculator is registered under.
const ToolName = "calculate_expression"

type params struct {
	Expression string `json:"expression" jsonschema_description:"A math expression, e.g. 2 + 2 * 3 or sqrt(81)"`
}

// Tool returns the calculator tool.
func Tool() tools.Tool {
	return tools.Tool{
		Descriptor: domain.ToolDescriptor{
			Name: ToolName,
			Description: "Safely evaluate a math expression such as \"2 + 2 * 3\" or \"sqrt(81)\". " +
				"Supports + - * / % and ^ (or **), parentheses, the constants pi and e, and the functions " +
				strings.Join(Functions(), ", ") + ".",
			InputSchema: tools.SchemaFor[params](),
		},
		Handler: tools.InvocableFunc(func(ctx context.Context, args map[string]any) (any, error) {
			var p params
			if err := tools.DecodeArgs(args, &p); err != nil {
				return nil, err
			}
			return Eval(p.Expression)
		}),
	}
}

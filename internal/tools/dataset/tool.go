package dataset

import (
	"context"
	"fmt"
	"strings"

	"github.com/tjfontaine/mcp-chat/internal/domain"
	"github.com/tjfontaine/mcp-chat/internal/tools"
)

type analyzeParams struct {
	Action string `json:"action,omitempty" jsonschema:"enum=shape,enum=columns,enum=summary,default=summary" jsonschema_description:"Type of analysis: shape, summary, or columns"`
}

type queryParams struct {
	Question string `json:"question" jsonschema_description:"Natural language question about the dataset"`
}

// Tools returns analyze_dataset and query_dataset backed by s.
func Tools(s *Store) []tools.Tool {
	return []tools.Tool{
		{
			Descriptor: domain.ToolDescriptor{
				Name:        "analyze_dataset",
				Description: "Analyze a CSV dataset and return insights. Actions: shape, columns, summary.",
				InputSchema: tools.SchemaFor[analyzeParams](),
			},
			Handler: tools.InvocableFunc(func(ctx context.Context, args map[string]any) (any, error) {
				var p analyzeParams
				if err := tools.DecodeArgs(args, &p); err != nil {
					return nil, err
				}
				return s.Analyze(ctx, p.Action)
			}),
		},
		{
			Descriptor: domain.ToolDescriptor{
				Name:        "query_dataset",
				Description: "Answer natural language questions about the dataset using its title and description columns.",
				InputSchema: tools.SchemaFor[queryParams](),
			},
			Handler: tools.InvocableFunc(func(ctx context.Context, args map[string]any) (any, error) {
				var p queryParams
				if err := tools.DecodeArgs(args, &p); err != nil {
					return nil, err
				}
				return s.Query(ctx, p.Question)
			}),
		},
	}
}

// Analyze dispatches one of the analyze_dataset actions. An empty action
// means summary.
func (s *Store) Analyze(ctx context.Context, action string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(action)) {
	case "", "summary":
		return s.Summary(ctx)
	case "shape":
		rows, cols, err := s.Shape(ctx)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("The dataset has %d rows and %d columns.", rows, cols), nil
	case "columns":
		cols, err := s.Columns(ctx)
		if err != nil {
			return "", err
		}
		names := make([]string, len(cols))
		for i, c := range cols {
			names[i] = c.Name
		}
		return "The dataset contains the following columns:\n- " + strings.Join(names, "\n- "), nil
	default:
		return "", fmt.Errorf("unsupported action %q: use 'shape', 'columns', or 'summary'", action)
	}
}

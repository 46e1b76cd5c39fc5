// Package bot hosts the per-session assistant: the dialogue engine, the
// tool dispatcher and the room transport.
package bot

import (
	"encoding/json"
	"fmt"
	"strings"

	openaigo "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/packages/param"
	"github.com/openai/openai-go/v3/shared"
	"github.com/santhosh-tekuri/jsonschema/v6"
)

// The closed set of tools the dialogue engine may call.
const (
	ToolGetCurrentDate    = "get_current_date"
	ToolMakeReservation   = "make_calendar_reservation"
	ToolUpdateReservation = "update_calendar_reservation"
)

// toolSchemas is the single source of truth for tool parameters: the
// same JSON schema is declared to the model and compiled into the
// validator the dispatcher runs before decoding arguments.
var toolSchemas = map[string]string{
	ToolGetCurrentDate: `{
		"type": "object",
		"properties": {},
		"required": []
	}`,
	ToolMakeReservation: `{
		"type": "object",
		"properties": {
			"summary": {
				"type": "string",
				"description": "Title of the calendar event"
			},
			"start_time": {
				"type": "string",
				"description": "Start time of the event in ISO format (YYYY-MM-DDTHH:MM:SS)"
			},
			"duration_minutes": {
				"type": "integer",
				"description": "Duration of the event in minutes",
				"default": 30
			},
			"description": {
				"type": "string",
				"description": "Detailed description of the event"
			},
			"location": {
				"type": "string",
				"description": "Physical or virtual location of the event"
			},
			"attendees": {
				"type": "array",
				"items": {"type": "string"},
				"description": "List of email addresses for attendees"
			}
		},
		"required": ["summary", "start_time"]
	}`,
	ToolUpdateReservation: `{
		"type": "object",
		"properties": {
			"event_id": {
				"type": "string",
				"description": "ID of the calendar event to update"
			},
			"summary": {
				"type": "string",
				"description": "Title of the calendar event"
			},
			"start_time": {
				"type": "string",
				"description": "Start time of the event in ISO format (YYYY-MM-DDTHH:MM:SS)"
			},
			"duration_minutes": {
				"type": "integer",
				"description": "Duration of the event in minutes"
			},
			"description": {
				"type": "string",
				"description": "Detailed description of the event"
			},
			"location": {
				"type": "string",
				"description": "Physical or virtual location of the event"
			},
			"attendees": {
				"type": "array",
				"items": {"type": "string"},
				"description": "List of email addresses for attendees"
			}
		},
		"required": ["event_id"]
	}`,
}

var toolDescriptions = map[string]string{
	ToolGetCurrentDate:    "Retrieve the current date and time.",
	ToolMakeReservation:   "Create a reservation on Google Calendar with specified details.",
	ToolUpdateReservation: "Update a reservation on Google Calendar with specified details.",
}

// compileToolSchemas builds one validator per tool.
func compileToolSchemas() (map[string]*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	for name, raw := range toolSchemas {
		doc, err := jsonschema.UnmarshalJSON(strings.NewReader(raw))
		if err != nil {
			return nil, fmt.Errorf("tool %s: parse schema: %w", name, err)
		}
		if err := compiler.AddResource(name+".json", doc); err != nil {
			return nil, fmt.Errorf("tool %s: add schema: %w", name, err)
		}
	}

	validators := make(map[string]*jsonschema.Schema, len(toolSchemas))
	for name := range toolSchemas {
		sch, err := compiler.Compile(name + ".json")
		if err != nil {
			return nil, fmt.Errorf("tool %s: compile schema: %w", name, err)
		}
		validators[name] = sch
	}
	return validators, nil
}

// openaiTools declares the tool set to the chat completion API.
func openaiTools() ([]openaigo.ChatCompletionToolUnionParam, error) {
	names := []string{ToolGetCurrentDate, ToolMakeReservation, ToolUpdateReservation}
	tools := make([]openaigo.ChatCompletionToolUnionParam, 0, len(names))
	for _, name := range names {
		var params shared.FunctionParameters
		if err := unmarshalSchema(toolSchemas[name], &params); err != nil {
			return nil, fmt.Errorf("tool %s: %w", name, err)
		}
		tools = append(tools, openaigo.ChatCompletionFunctionTool(shared.FunctionDefinitionParam{
			Name:        name,
			Description: param.NewOpt(toolDescriptions[name]),
			Parameters:  params,
		}))
	}
	return tools, nil
}

func unmarshalSchema(raw string, out *shared.FunctionParameters) error {
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return fmt.Errorf("parse schema: %w", err)
	}
	return nil
}

package gemini

import (
	"encoding/json"
	"strconv"
	"strings"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"

	"grannypad/internal/todo"
)

const taskItemSchema = `{
  "type": "object",
  "required": ["text"],
  "properties": {
    "id": {"type": ["string", "number", "null"]},
    "text": {"type": "string", "pattern": "\\S"},
    "completed": {"type": "boolean"},
    "dueDate": {"type": ["string", "null"]}
  }
}`

var itemSchema = jsonschema.MustCompileString("task_item.json", taskItemSchema)

type taskPayload struct {
	ID        json.RawMessage `json:"id"`
	Text      string          `json:"text"`
	Completed bool            `json:"completed"`
	DueDate   *string         `json:"dueDate"`
}

// ParseTasks turns a model response into tasks. Anything that is not a JSON
// array yields no tasks; array elements that fail the item schema are
// dropped. It never reports an error: a bad payload means "nothing found".
func ParseTasks(raw string) []todo.Task {
	body := stripCodeFence(raw)
	if body == "" {
		return nil
	}
	var elements []json.RawMessage
	if err := json.Unmarshal([]byte(body), &elements); err != nil {
		return nil
	}

	tasks := make([]todo.Task, 0, len(elements))
	for _, el := range elements {
		var generic any
		if err := json.Unmarshal(el, &generic); err != nil {
			continue
		}
		if err := itemSchema.Validate(generic); err != nil {
			continue
		}
		var p taskPayload
		if err := json.Unmarshal(el, &p); err != nil {
			continue
		}
		task := todo.Task{
			ID:   payloadID(p.ID),
			Text: strings.TrimSpace(p.Text),
		}
		if p.DueDate != nil {
			task.Due = todo.ParseDate(*p.DueDate)
		}
		tasks = append(tasks, task)
	}
	return tasks
}

// payloadID renders a string or numeric id. Anything else comes back blank
// so the store assigns one.
func payloadID(raw json.RawMessage) string {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return ""
	}
	switch id := v.(type) {
	case string:
		return strings.TrimSpace(id)
	case float64:
		return strconv.FormatFloat(id, 'f', -1, 64)
	default:
		return ""
	}
}

// stripCodeFence removes ```json fences some responses are wrapped in.
func stripCodeFence(content string) string {
	trimmed := strings.TrimSpace(content)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	body := strings.TrimLeft(trimmed[3:], " \t\r\n")
	if len(body) >= 4 && strings.EqualFold(body[:4], "json") {
		body = strings.TrimLeft(body[4:], " \t\r\n")
	}
	if idx := strings.LastIndex(body, "```"); idx >= 0 {
		body = body[:idx]
	}
	return strings.TrimSpace(body)
}

func snippet(content string) string {
	clean := strings.Join(strings.Fields(content), " ")
	const limit = 160
	runes := []rune(clean)
	if len(runes) > limit {
		clean = string(runes[:limit]) + "..."
	}
	if clean == "" {
		return "<empty>"
	}
	return clean
}

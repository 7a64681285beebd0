package completions

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// API selects the request body shape.
type API string

const (
	// APICompletions sends a plain "prompt" body (POST /v1/completions).
	APICompletions API = "completions"
	// APIChat sends a single user message (POST /v1/chat/completions).
	APIChat API = "chat"
)

// ParseAPI maps a user-supplied name onto an API.
func ParseAPI(s string) (API, error) {
	switch API(strings.ToLower(strings.TrimSpace(s))) {
	case "", APICompletions:
		return APICompletions, nil
	case APIChat:
		return APIChat, nil
	default:
		return "", fmt.Errorf("unknown api %q (want completions or chat)", s)
	}
}

// Message is one chat turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request is the JSON body posted to the endpoint.
type Request struct {
	Model       string    `json:"model,omitempty"`
	Prompt      string    `json:"prompt,omitempty"`
	Messages    []Message `json:"messages,omitempty"`
	MaxTokens   int       `json:"max_tokens"`
	Temperature float64   `json:"temperature"`
}

// NewRequest builds the body for the given API. An empty model is omitted.
func NewRequest(api API, model, prompt string, maxTokens int, temperature float64) Request {
	req := Request{
		Model:       model,
		MaxTokens:   maxTokens,
		Temperature: temperature,
	}
	if api == APIChat {
		req.Messages = []Message{{Role: "user", Content: prompt}}
	} else {
		req.Prompt = prompt
	}
	return req
}

// Count is a token count that may arrive as a JSON number or a numeric
// string. Valid is false when the field was absent, null, not numeric, or
// outside the int32 range.
type Count struct {
	Value int
	Valid bool
}

// UnmarshalJSON never fails: values it cannot read leave the Count invalid.
func (c *Count) UnmarshalJSON(b []byte) error {
	*c = Count{}
	b = bytes.TrimSpace(b)
	if len(b) == 0 || isNull(b) {
		return nil
	}
	raw := string(b)
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return nil
		}
		raw = strings.TrimSpace(s)
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) || math.Abs(f) > math.MaxInt32 {
		return nil
	}
	c.Value = int(f)
	c.Valid = true
	return nil
}

// Text is an optional string field. Non-string values leave it invalid.
type Text struct {
	Value string
	Valid bool
}

// UnmarshalJSON never fails: values that are not strings leave Text invalid.
func (t *Text) UnmarshalJSON(b []byte) error {
	*t = Text{}
	if isNull(b) {
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return nil
	}
	t.Value = s
	t.Valid = true
	return nil
}

func isNull(b []byte) bool {
	return bytes.Equal(bytes.TrimSpace(b), []byte("null"))
}

// Usage is the optional token accounting block.
type Usage struct {
	PromptTokens     Count `json:"prompt_tokens"`
	CompletionTokens Count `json:"completion_tokens"`
	TotalTokens      Count `json:"total_tokens"`
}

// ChoiceMessage holds the chat-style completion content.
type ChoiceMessage struct {
	Content Text `json:"content"`
}

// Choice is one generated alternative.
type Choice struct {
	Text    Text
	Message *ChoiceMessage
}

// UnmarshalJSON never fails: a choice that is not an object, or a message
// that is not an object, is left empty.
func (c *Choice) UnmarshalJSON(b []byte) error {
	*c = Choice{}
	var raw struct {
		Text    Text            `json:"text"`
		Message json.RawMessage `json:"message"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return nil
	}
	c.Text = raw.Text
	if len(raw.Message) > 0 && !isNull(raw.Message) {
		var m ChoiceMessage
		if json.Unmarshal(raw.Message, &m) == nil {
			c.Message = &m
		}
	}
	return nil
}

// Response is the part of a completions response the benchmark reads. Every
// other field of the body is ignored.
type Response struct {
	Choices []Choice
	Usage   *Usage
}

// ErrMalformedResponse is returned by Decode for bodies that are not a JSON object.
var ErrMalformedResponse = errors.New("malformed response body")

// Decode parses a response body. Only a body that is not a JSON object is
// malformed; choices or usage of an unexpected shape are treated as absent.
func Decode(body []byte) (*Response, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, ErrMalformedResponse
	}
	var top map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &top); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	resp := &Response{}
	if raw, ok := top["choices"]; ok {
		var choices []Choice
		if json.Unmarshal(raw, &choices) == nil {
			resp.Choices = choices
		}
	}
	if raw, ok := top["usage"]; ok && !isNull(raw) {
		var u Usage
		if json.Unmarshal(raw, &u) == nil {
			resp.Usage = &u
		}
	}
	return resp, nil
}

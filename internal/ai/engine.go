package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/qri-io/jsonschema"
)

// Pitch is the submission content handed to the model.
type Pitch struct {
	CompanyName string
	OneLiner    string
	Description string
	Industry    string
	Stage       string
	LookingFor  []string
}

// Analysis is the structured assessment we require from the model. Anything
// that fails schema validation is discarded rather than shown to the board.
type Analysis struct {
	Summary     string   `json:"summary"`
	Strengths   []string `json:"strengths"`
	Risks       []string `json:"risks"`
	Specialties []string `json:"suggested_specialties"`
	Confidence  *float64 `json:"confidence,omitempty"`

	Raw string `json:"-"`
}

const analysisSchema = `{
	"type": "object",
	"required": ["summary", "strengths", "risks", "suggested_specialties"],
	"properties": {
		"summary": {"type": "string", "minLength": 1},
		"strengths": {"type": "array", "items": {"type": "string"}},
		"risks": {"type": "array", "items": {"type": "string"}},
		"suggested_specialties": {"type": "array", "items": {"type": "string"}},
		"confidence": {"type": "number", "minimum": 0, "maximum": 1}
	}
}`

type Engine struct {
	client *Client
	model  string
	schema *jsonschema.Schema
}

func NewEngine(client *Client, model string) (*Engine, error) {
	rs := &jsonschema.Schema{}
	if err := json.Unmarshal([]byte(analysisSchema), rs); err != nil {
		return nil, fmt.Errorf("parse analysis schema: %w", err)
	}
	return &Engine{client: client, model: model, schema: rs}, nil
}

// AnalyzeSubmission asks the model for a first-pass read of the pitch and
// validates the response before returning it.
func (e *Engine) AnalyzeSubmission(ctx context.Context, pitch Pitch) (*Analysis, error) {
	out, err := e.client.Generate(ctx, e.model, buildPrompt(pitch))
	if err != nil {
		return nil, fmt.Errorf("generate: %w", err)
	}

	analysis, err := ParseAnalysis(out)
	if err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}

	raw := extractJSON(out)
	verrs, err := e.schema.ValidateBytes(ctx, []byte(raw))
	if err != nil {
		return nil, fmt.Errorf("schema validate: %w", err)
	}
	if len(verrs) > 0 {
		var sb strings.Builder
		for _, v := range verrs {
			sb.WriteString(v.Message)
			sb.WriteString("; ")
		}
		return nil, fmt.Errorf("response does not match schema: %s", sb.String())
	}

	analysis.Raw = out
	return analysis, nil
}

func buildPrompt(pitch Pitch) string {
	var sb strings.Builder
	sb.WriteString("You are assisting a startup review board. Assess the pitch below and respond with ONLY a JSON object with keys ")
	sb.WriteString(`"summary" (string), "strengths" (array of strings), "risks" (array of strings), "suggested_specialties" (array of strings naming what kind of advisor would help), and optionally "confidence" (0 to 1).`)
	sb.WriteString("\n\nCompany: ")
	sb.WriteString(pitch.CompanyName)
	sb.WriteString("\nOne-liner: ")
	sb.WriteString(pitch.OneLiner)
	sb.WriteString("\nIndustry: ")
	sb.WriteString(pitch.Industry)
	sb.WriteString("\nStage: ")
	sb.WriteString(pitch.Stage)
	if len(pitch.LookingFor) > 0 {
		sb.WriteString("\nLooking for: ")
		sb.WriteString(strings.Join(pitch.LookingFor, ", "))
	}
	sb.WriteString("\nDescription:\n")
	sb.WriteString(pitch.Description)
	return sb.String()
}

// ParseAnalysis extracts a JSON object from arbitrary model output and
// unmarshals it. Model output often wraps JSON in prose or markdown fences.
func ParseAnalysis(s string) (*Analysis, error) {
	if strings.TrimSpace(s) == "" {
		return nil, errors.New("empty response")
	}

	j := extractJSON(s)
	if j == "" {
		return nil, errors.New("no JSON object found in response")
	}

	var a Analysis
	if err := json.Unmarshal([]byte(j), &a); err != nil {
		return nil, fmt.Errorf("json unmarshal: %w", err)
	}
	if a.Strengths == nil {
		a.Strengths = []string{}
	}
	if a.Risks == nil {
		a.Risks = []string{}
	}
	if a.Specialties == nil {
		a.Specialties = []string{}
	}
	return &a, nil
}

// extractJSON returns the substring from the first '{' to the last '}'.
func extractJSON(s string) string {
	first := strings.Index(s, "{")
	last := strings.LastIndex(s, "}")
	if first == -1 || last == -1 || last < first {
		return ""
	}
	return s[first : last+1]
}

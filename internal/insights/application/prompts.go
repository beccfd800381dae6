package application

import (
	"bytes"
	"encoding/json"
	"errors"
	"text/template"

	insights "greengauge/internal/insights/domain"
)

// SampleRows is how many snapshot rows a prompt carries.
const SampleRows = 10

const DefaultInsightsTemplate = `Provide a detailed analysis of the energy usage data for the "{{.Device}}" device.
Based on the data, suggest ways to reduce costs and improve efficiency. Summarize usage patterns,
identify peak usage times, and recommend optimal usage schedules to minimize energy consumption and costs.
The data provided is a sample of the full dataset, and contains key information for analysis:
{{.Sample}}`

const DefaultQuestionTemplate = `Using the energy usage data for the "{{.Device}}" device provided below, answer the following question:
"{{.Question}}"
Data sample: {{.Sample}}`

// PromptData provides fields for rendering prompts.
type PromptData struct {
	Device   string
	Question string
	Sample   string
}

// Prompts renders the insights and question prompts.
type Prompts struct {
	insights *template.Template
	question *template.Template
}

// NewPrompts parses both templates, falling back to the defaults.
func NewPrompts(insightsTpl, questionTpl string) (*Prompts, error) {
	if insightsTpl == "" {
		insightsTpl = DefaultInsightsTemplate
	}
	if questionTpl == "" {
		questionTpl = DefaultQuestionTemplate
	}
	parsedInsights, err := template.New("insights-prompt").Parse(insightsTpl)
	if err != nil {
		return nil, err
	}
	parsedQuestion, err := template.New("question-prompt").Parse(questionTpl)
	if err != nil {
		return nil, err
	}
	return &Prompts{insights: parsedInsights, question: parsedQuestion}, nil
}

// Insights renders the analysis prompt.
func (p *Prompts) Insights(device string, rows []insights.Row) (string, error) {
	return p.render(p.insights, device, "", rows)
}

// Question renders the question prompt.
func (p *Prompts) Question(device, question string, rows []insights.Row) (string, error) {
	return p.render(p.question, device, question, rows)
}

func (p *Prompts) render(tpl *template.Template, device, question string, rows []insights.Row) (string, error) {
	if p == nil || tpl == nil {
		return "", errors.New("insights prompt: nil template")
	}
	sample, err := SampleJSON(rows)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := tpl.Execute(&buf, PromptData{Device: device, Question: question, Sample: sample}); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// SampleJSON encodes the first SampleRows rows.
func SampleJSON(rows []insights.Row) (string, error) {
	if len(rows) > SampleRows {
		rows = rows[:SampleRows]
	}
	if rows == nil {
		rows = []insights.Row{}
	}
	payload, err := json.Marshal(rows)
	if err != nil {
		return "", err
	}
	return string(payload), nil
}

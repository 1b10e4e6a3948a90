// Package templategen produces project templates from a chat-completion
// service, falling back to a built-in set whenever the service cannot help.
package templategen

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dalemusser/questhub/internal/app/system/metrics"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Difficulties accepted by Generate.
const (
	Beginner     = "beginner"
	Intermediate = "intermediate"
	Advanced     = "advanced"
)

// Difficulties is the list of valid difficulty values.
var Difficulties = []string{Beginner, Intermediate, Advanced}

// Where a template came from.
const (
	SourceGenerated = "generated"
	SourceBuiltin   = "builtin"
)

//go:embed builtin.yaml
var builtinYAML []byte

// Request describes the template a teacher wants.
type Request struct {
	Topic      string `json:"topic" validate:"required,max=200" label:"topic"`
	Difficulty string `json:"difficulty" validate:"required,oneof=beginner intermediate advanced" label:"difficulty"`
	GradeLevel string `json:"grade_level" validate:"max=50" label:"grade level"`
}

// TaskTemplate is one suggested task.
type TaskTemplate struct {
	Title       string `json:"title" yaml:"title"`
	Description string `json:"description" yaml:"description"`
}

// Template is a project outline.
type Template struct {
	Title       string         `json:"title" yaml:"title"`
	Description string         `json:"description" yaml:"description"`
	Tasks       []TaskTemplate `json:"tasks" yaml:"tasks"`
}

func (t Template) valid() bool {
	if strings.TrimSpace(t.Title) == "" || len(t.Tasks) == 0 {
		return false
	}
	for _, task := range t.Tasks {
		if strings.TrimSpace(task.Title) == "" {
			return false
		}
	}
	return true
}

// Config points the generator at an OpenAI-compatible endpoint.
type Config struct {
	Endpoint string // base URL, e.g. https://api.openai.com/v1
	APIKey   string
	Model    string
	Timeout  time.Duration
}

// Generator produces templates. The zero Endpoint disables the remote call.
type Generator struct {
	cfg      Config
	http     *http.Client
	log      *zap.Logger
	builtins map[string]Template
}

// New loads the built-in templates and prepares the HTTP client.
func New(cfg Config, logger *zap.Logger) (*Generator, error) {
	builtins := map[string]Template{}
	if err := yaml.Unmarshal(builtinYAML, &builtins); err != nil {
		return nil, fmt.Errorf("parse built-in templates: %w", err)
	}
	for _, d := range Difficulties {
		if !builtins[d].valid() {
			return nil, fmt.Errorf("built-in template %q is missing or empty", d)
		}
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	cfg.Endpoint = strings.TrimRight(cfg.Endpoint, "/")
	return &Generator{
		cfg:      cfg,
		http:     &http.Client{Timeout: cfg.Timeout},
		log:      logger,
		builtins: builtins,
	}, nil
}

// Builtin returns the built-in template for req with the topic filled in.
// Unknown difficulties get the beginner template.
func (g *Generator) Builtin(req Request) Template {
	base, ok := g.builtins[strings.ToLower(strings.TrimSpace(req.Difficulty))]
	if !ok {
		base = g.builtins[Beginner]
	}
	topic := strings.TrimSpace(req.Topic)
	if topic == "" {
		topic = "your topic"
	}
	grade := strings.TrimSpace(req.GradeLevel)
	if grade == "" {
		grade = "all"
	}
	rep := strings.NewReplacer("{topic}", topic, "{grade}", grade)

	out := Template{
		Title:       rep.Replace(base.Title),
		Description: rep.Replace(base.Description),
		Tasks:       make([]TaskTemplate, len(base.Tasks)),
	}
	for i, t := range base.Tasks {
		out.Tasks[i] = TaskTemplate{Title: rep.Replace(t.Title), Description: rep.Replace(t.Description)}
	}
	return out
}

// Generate asks the remote service for a template and falls back to the
// built-in one on any failure. It never returns an error.
func (g *Generator) Generate(ctx context.Context, req Request) (Template, string) {
	if g.cfg.Endpoint == "" {
		return g.fallback(req, "unconfigured", nil)
	}
	t, reason, err := g.remote(ctx, req)
	if err != nil {
		return g.fallback(req, reason, err)
	}
	return t, SourceGenerated
}

func (g *Generator) fallback(req Request, reason string, err error) (Template, string) {
	metrics.TemplateFallbacks.WithLabelValues(reason).Inc()
	if err != nil {
		g.log.Warn("template generation failed; using built-in template",
			zap.String("reason", reason),
			zap.String("difficulty", req.Difficulty),
			zap.Error(err))
	}
	return g.Builtin(req), SourceBuiltin
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string            `json:"model"`
	Messages       []chatMessage     `json:"messages"`
	Temperature    float64           `json:"temperature"`
	ResponseFormat map[string]string `json:"response_format,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

const systemPrompt = `You design project-based learning units. Reply with a single JSON object ` +
	`{"title": string, "description": string, "tasks": [{"title": string, "description": string}]} ` +
	`with 4 to 8 tasks and no other text.`

func (g *Generator) remote(ctx context.Context, req Request) (Template, string, error) {
	user := fmt.Sprintf("Topic: %s\nDifficulty: %s\nGrade level: %s",
		strings.TrimSpace(req.Topic), req.Difficulty, strings.TrimSpace(req.GradeLevel))
	body, err := json.Marshal(chatRequest{
		Model: g.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: user},
		},
		Temperature:    0.7,
		ResponseFormat: map[string]string{"type": "json_object"},
	})
	if err != nil {
		return Template{}, "request", err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.cfg.Endpoint+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return Template{}, "request", err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if g.cfg.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+g.cfg.APIKey)
	}

	resp, err := g.http.Do(httpReq)
	if err != nil {
		return Template{}, "request", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return Template{}, "status", fmt.Errorf("generator returned %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var cr chatResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&cr); err != nil {
		return Template{}, "decode", err
	}
	if len(cr.Choices) == 0 {
		return Template{}, "decode", errors.New("no choices in response")
	}

	var t Template
	if err := json.Unmarshal([]byte(stripFences(cr.Choices[0].Message.Content)), &t); err != nil {
		return Template{}, "decode", err
	}
	if !t.valid() {
		return Template{}, "invalid", errors.New("template has no title or tasks")
	}
	return t, "", nil
}

// stripFences removes a surrounding ``` block some models add.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	}
	return strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "```"))
}

// Package advice answers free-form care questions with Claude, grounded on
// the plant's current care plan and species profile.
package advice

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rotisserie/eris"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/sells-group/plantcare/internal/config"
	"github.com/sells-group/plantcare/internal/model"
	"github.com/sells-group/plantcare/internal/resilience"
	"github.com/sells-group/plantcare/internal/rules"
	"github.com/sells-group/plantcare/internal/store"
	"github.com/sells-group/plantcare/internal/tracing"
	"github.com/sells-group/plantcare/pkg/anthropic"
)

// MaxQuestionLen bounds a question in characters.
const MaxQuestionLen = 2000

var (
	// ErrInvalidInput is returned for empty or oversized questions and
	// ownership mismatches.
	ErrInvalidInput = eris.New("advice: invalid input")
	// ErrPlantNotFound is returned when the plant does not exist.
	ErrPlantNotFound = eris.New("advice: plant not found")
	// ErrEmptyAnswer is returned when the model replies without text.
	ErrEmptyAnswer = eris.New("advice: empty answer")
)

// Store is the read access advice needs.
type Store interface {
	GetPlant(ctx context.Context, plantID string) (*model.Plant, error)
	LatestPlan(ctx context.Context, plantID string) (*model.CarePlan, error)
}

// Request is one question about a plant.
type Request struct {
	PlantID  string `json:"plant_id"`
	UserID   string `json:"user_id"`
	Question string `json:"question"`
}

// Answer is the model's reply plus the documents it drew on.
type Answer struct {
	PlantID   string               `json:"plant_id"`
	Text      string               `json:"answer"`
	Citations []string             `json:"citations"`
	Model     string               `json:"model"`
	Usage     anthropic.TokenUsage `json:"usage"`
}

// Service answers care questions.
type Service struct {
	client  anthropic.Client
	store   Store
	catalog *rules.Catalog
	cfg     config.AnthropicConfig
	breaker *resilience.CircuitBreaker
	retry   resilience.RetryConfig
	nowFunc func() time.Time
}

// NewService creates an advice service. breakers may be nil, in which case
// the service gets a private breaker.
func NewService(client anthropic.Client, st Store, catalog *rules.Catalog, breakers *resilience.ServiceBreakers, cfg config.AnthropicConfig) (*Service, error) {
	var errs []string
	if cfg.Model == "" {
		errs = append(errs, "anthropic.model is required")
	}
	if cfg.MaxTokens <= 0 {
		errs = append(errs, "anthropic.max_tokens must be > 0")
	}
	if cfg.TopK <= 0 {
		errs = append(errs, "anthropic.top_k must be > 0")
	}
	if len(errs) > 0 {
		return nil, eris.Errorf("advice: config validation failed: %s", strings.Join(errs, "; "))
	}
	if catalog == nil {
		c, err := rules.NewCatalog(rules.BuiltinProfiles())
		if err != nil {
			return nil, eris.Wrap(err, "advice: builtin catalog")
		}
		catalog = c
	}

	var cb *resilience.CircuitBreaker
	if breakers != nil {
		cb = breakers.Get(resilience.ServiceAnthropic)
	} else {
		cbCfg := resilience.DefaultCircuitBreakerConfig()
		cbCfg.Name = resilience.ServiceAnthropic
		cb = resilience.NewCircuitBreaker(cbCfg)
	}
	retry := resilience.DefaultRetryConfig()
	retry.OnRetry = resilience.RetryLogger(resilience.ServiceAnthropic, "advice")
	return &Service{
		client:  client,
		store:   st,
		catalog: catalog,
		cfg:     cfg,
		breaker: cb,
		retry:   retry,
		nowFunc: time.Now,
	}, nil
}

const systemPrompt = `You are a houseplant care assistant. Answer the owner's question using only the numbered context documents provided with it.
Cite every document you rely on by writing its id in square brackets, for example [plan-schedule].
If the documents do not answer the question, say so and give general, conservative advice.
Keep answers under 150 words and never contradict the current schedule without saying why.`

// Ask answers one question about a plant.
func (s *Service) Ask(ctx context.Context, req Request) (*Answer, error) {
	q := strings.TrimSpace(req.Question)
	if req.PlantID == "" || q == "" {
		return nil, eris.Wrap(ErrInvalidInput, "plant_id and question are required")
	}
	if utf8.RuneCountInString(q) > MaxQuestionLen {
		return nil, eris.Wrapf(ErrInvalidInput, "question longer than %d characters", MaxQuestionLen)
	}

	ctx, span := tracing.StartSpan(ctx, "advice.ask", attribute.String("plant_id", req.PlantID))
	answer, err := s.ask(ctx, req.PlantID, req.UserID, q)
	span.End(err)
	return answer, err
}

func (s *Service) ask(ctx context.Context, plantID, userID, question string) (*Answer, error) {
	log := zap.L().With(zap.String("plant_id", plantID))

	plant, err := s.store.GetPlant(ctx, plantID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, eris.Wrapf(ErrPlantNotFound, "plant %s", plantID)
	}
	if err != nil {
		return nil, eris.Wrap(err, "advice: load plant")
	}
	if userID != "" && plant.UserID != userID {
		return nil, eris.Wrapf(ErrInvalidInput, "plant %s does not belong to user %s", plantID, userID)
	}

	plan, err := s.store.LatestPlan(ctx, plantID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		plan = nil
	case err != nil:
		return nil, eris.Wrap(err, "advice: load plan")
	case !plan.CurrentAt(s.nowFunc()):
		plan = nil
	}

	profile, _ := s.catalog.Resolve(plant.Species)
	docs := Rank(question, Documents(plant, plan, profile), s.cfg.TopK)

	msgReq := anthropic.MessageRequest{
		Model:     s.cfg.Model,
		MaxTokens: int64(s.cfg.MaxTokens),
		System:    []anthropic.SystemBlock{{Text: systemPrompt, Cacheable: true}},
		Messages:  []anthropic.Message{{Role: "user", Content: userPrompt(plant, plan == nil, docs, question)}},
	}
	resp, err := resilience.Call(ctx, s.breaker, s.retry, func(ctx context.Context) (*anthropic.MessageResponse, error) {
		return s.client.CreateMessage(ctx, msgReq)
	})
	if err != nil {
		return nil, eris.Wrap(err, "advice: ask model")
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return nil, eris.Wrapf(ErrEmptyAnswer, "stop reason %q", resp.StopReason)
	}
	modelName := resp.Model
	if modelName == "" {
		modelName = s.cfg.Model
	}
	resp.Usage.LogCost(modelName, "advice")
	log.Debug("advice: answered", zap.Int("documents", len(docs)), zap.Bool("has_plan", plan != nil))

	return &Answer{
		PlantID:   plantID,
		Text:      text,
		Citations: citations(text, docs),
		Model:     modelName,
		Usage:     resp.Usage,
	}, nil
}

func userPrompt(plant *model.Plant, noPlan bool, docs []Document, question string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Plant: %s (%s), pot %.0f cm, ", plant.Name, plant.Species, plant.PotSizeCM)
	if plant.Indoor {
		b.WriteString("indoors.\n")
	} else {
		b.WriteString("outdoors.\n")
	}
	if noPlan {
		b.WriteString("There is no current care plan for this plant.\n")
	}
	b.WriteString("\n<documents>\n")
	for _, d := range docs {
		fmt.Fprintf(&b, "[%s] %s\n%s\n\n", d.ID, d.Title, d.Text)
	}
	b.WriteString("</documents>\n\nQuestion: ")
	b.WriteString(question)
	return b.String()
}

var citationRe = regexp.MustCompile(`\[([a-z0-9_\-]+)\]`)

// citations returns the ids of supplied documents referenced in text, in
// order of first mention. Unknown ids are ignored.
func citations(text string, docs []Document) []string {
	known := make(map[string]bool, len(docs))
	for _, d := range docs {
		known[d.ID] = true
	}
	out := []string{}
	seen := make(map[string]bool)
	for _, m := range citationRe.FindAllStringSubmatch(text, -1) {
		id := m[1]
		if known[id] && !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

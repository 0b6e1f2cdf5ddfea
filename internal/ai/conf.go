package ai

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/modfin/ashle/internal/db"
	"github.com/modfin/ashle/internal/sanitize"
	"github.com/modfin/bellman/models/embed"
	"github.com/modfin/bellman/models/gen"
	"github.com/modfin/bellman/prompt"
	"github.com/modfin/clix"
	"github.com/modfin/henry/mapz"
	"github.com/modfin/henry/slicez"
	"github.com/urfave/cli/v3"
)

// Generation holds the sampling parameters sent with every question.
type Generation struct {
	Temperature      float64
	TopP             float64
	MaxTokens        int
	FrequencyPenalty float64
}

type Conf struct {
	credentials APICredentials
	conn        *sql.DB
	Dao         *db.Queries
	Proxy       *Proxy

	EmbedModel embed.Model
	LLMModel   gen.Model
	Generation Generation

	Policy       sanitize.Policy
	HistoryTurns int

	limits map[string]int
}

// splitModel parses "provider/model", bellman models keep their second slash.
func splitModel(s string) (string, string) {
	provider, name, _ := strings.Cut(s, "/")
	return provider, name
}

// parseLimits reads "label:n" pairs; a bare "n" applies to every label.
func parseLimits(limits []string) map[string]int {
	return slicez.Associate(limits, func(lim string) (key string, value int) {
		label, strlimit, found := strings.Cut(lim, ":")
		if !found {
			strlimit = label
			label = "%"
		}
		limit, err := strconv.Atoi(strlimit)
		if err != nil {
			slog.Default().Warn("failed to parse limit, defaulting to 5", "limit", lim, "err", err)
			limit = 5
		}
		return label, limit
	})
}

// LoadPolicy builds the sanitizer policy from the policy file and any flags
// set on the command line, flags taking precedence.
func LoadPolicy(cmd *cli.Command) (sanitize.Policy, error) {
	policy, err := sanitize.LoadPolicy(cmd.String("policy"))
	if err != nil {
		return sanitize.Policy{}, err
	}
	if cmd.IsSet("separator") {
		policy.Separator = cmd.String("separator")
	}
	if cmd.IsSet("threshold") {
		policy.Threshold = int(cmd.Int("threshold"))
	}
	if cmd.IsSet("keyword") {
		policy.Keywords = cmd.StringSlice("keyword")
	}
	if cmd.IsSet("fallback") {
		policy.Fallback = cmd.String("fallback")
	}
	return policy, policy.Validate()
}

func LoadConf(ctx context.Context, cmd *cli.Command) (*Conf, error) {
	var err error
	var conf Conf

	conf.credentials = clix.ParseCommand[APICredentials](cmd)
	conf.Proxy, err = NewProxy(conf.credentials, slog.Default())
	if err != nil {
		return nil, fmt.Errorf("failed to create Proxy: %w", err)
	}

	conf.Policy, err = LoadPolicy(cmd)
	if err != nil {
		return nil, fmt.Errorf("failed to load policy: %w", err)
	}

	conf.conn, conf.Dao, err = db.Open(ctx, cmd.String("db"))
	if err != nil {
		return nil, fmt.Errorf("failed to open database file, %s: %w", "file://"+cmd.String("db"), err)
	}

	provider, modelName := splitModel(cmd.String("embed-model"))
	slog.Default().Debug("embed model", "provider", provider, "model", modelName)
	conf.EmbedModel = embed.Model{Provider: provider, Name: modelName}

	provider, modelName = splitModel(cmd.String("llm-model"))
	slog.Default().Debug("llm model", "provider", provider, "model", modelName)
	conf.LLMModel = gen.Model{Provider: provider, Name: modelName}

	conf.Generation = Generation{
		Temperature:      cmd.Float("temperature"),
		TopP:             cmd.Float("top-p"),
		MaxTokens:        int(cmd.Int("max-tokens")),
		FrequencyPenalty: cmd.Float("frequency-penalty"),
	}

	conf.HistoryTurns = int(cmd.Int("history-turns"))
	conf.limits = parseLimits(cmd.StringSlice("limit"))

	return &conf, nil
}

func (c *Conf) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

// Bot wires the configured model, knowledge base and policy together.
// Retrieval is only enabled when --limit was given.
func (c *Conf) Bot() *Bot {
	b := &Bot{
		Generate:     c.generate,
		Sanitizer:    sanitize.New(c.Policy),
		Separator:    c.Policy.Separator,
		HistoryTurns: c.HistoryTurns,
		Logger:       slog.Default(),
	}
	if len(c.limits) > 0 {
		b.Retrieve = c.Search
	}
	return b
}

func (c *Conf) generate(ctx context.Context, system string, prompts []prompt.Prompt) (string, error) {
	llm, err := c.Proxy.Gen(c.LLMModel)
	if err != nil {
		return "", fmt.Errorf("failed to create llm: %w", err)
	}

	res, err := llm.
		WithContext(ctx).
		System(system).
		Temperature(c.Generation.Temperature).
		TopP(c.Generation.TopP).
		MaxTokens(c.Generation.MaxTokens).
		FrequencyPenalty(c.Generation.FrequencyPenalty).
		Prompt(prompts...)
	if err != nil {
		return "", err
	}

	slog.Default().Debug("generated",
		"input-tokens", res.Metadata.InputTokens,
		"output-tokens", res.Metadata.OutputTokens,
	)
	return res.AsText()
}

// Embed returns the embedding of text using the configured embed model.
// Queries and documents are embedded differently by some providers.
func (c *Conf) Embed(ctx context.Context, text string, query bool) ([]float64, error) {
	model := c.EmbedModel
	if query {
		model.Type = embed.TypeQuery
	}

	resp, err := c.Proxy.Embed(embed.Request{
		Ctx:   ctx,
		Model: model,
		Text:  text,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to embed: %w", err)
	}
	return resp.AsFloat64(), nil
}

// Search finds passages for question, up to the configured limit per label.
func (c *Conf) Search(ctx context.Context, question string) ([]db.Passage, error) {
	vector, err := c.Embed(ctx, question, true)
	if err != nil {
		return nil, err
	}
	return searchLabels(ctx, c.Dao, vector, c.limits)
}

// searchLabels runs one KNN query per label. Any failed query fails the
// search, so an answer is never grounded on a partial result.
func searchLabels(ctx context.Context, dao *db.Queries, vector []float64, limits map[string]int) ([]db.Passage, error) {
	var errs []error
	passages := slicez.FlatMap(mapz.Entries(limits), func(e mapz.Entry[string, int]) []db.Passage {
		found, err := dao.KNN(ctx, vector, e.Key, e.Value)
		if err != nil {
			errs = append(errs, fmt.Errorf("label %s: %w", e.Key, err))
		}
		return found
	})
	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("failed to query database for passages: %w", err)
	}

	return slicez.UniqBy(passages, func(p db.Passage) int {
		return p.ID
	}), nil
}

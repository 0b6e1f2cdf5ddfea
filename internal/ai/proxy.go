package ai

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/modfin/bellman"
	"github.com/modfin/bellman/models/embed"
	"github.com/modfin/bellman/models/gen"
	"github.com/modfin/bellman/services/anthropic"
	"github.com/modfin/bellman/services/openai"
	"github.com/modfin/bellman/services/vertexai"
	"github.com/modfin/bellman/services/voyageai"
)

type APICredentials struct {
	BellmanURL     string `cli:"bellman-url"`
	BellmanKeyName string `cli:"bellman-key-name"`
	BellmanKey     string `cli:"bellman-key"`

	VertexAICredential string `cli:"vertexai-credential"`
	VertexAIProject    string `cli:"vertexai-project"`
	VertexAIRegion     string `cli:"vertexai-region"`

	OpenAIKey    string `cli:"openai-key"`
	AnthropicKey string `cli:"anthropic-key"`
	VoyageAIKey  string `cli:"voyageai-key"`
}

// NewProxy registers a client for every provider that has credentials.
func NewProxy(credentials APICredentials, logger *slog.Logger) (*Proxy, error) {
	proxy := newProxy(logger)

	if credentials.AnthropicKey != "" {
		proxy.RegisterGen(anthropic.New(credentials.AnthropicKey))
	}

	if credentials.OpenAIKey != "" {
		client := openai.New(credentials.OpenAIKey)
		proxy.RegisterGen(client)
		proxy.RegisterEmbeder(client)
	}

	if credentials.VertexAIRegion != "" && credentials.VertexAIProject != "" {
		client, err := vertexai.New(vertexai.GoogleConfig{
			Project:    credentials.VertexAIProject,
			Region:     credentials.VertexAIRegion,
			Credential: credentials.VertexAICredential,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create vertexai client: %w", err)
		}
		proxy.RegisterGen(client)
		proxy.RegisterEmbeder(client)
	}

	if credentials.VoyageAIKey != "" {
		proxy.RegisterEmbeder(voyageai.New(credentials.VoyageAIKey))
	}

	if credentials.BellmanKey != "" && credentials.BellmanURL != "" {
		client := bellman.New(credentials.BellmanURL, bellman.Key{
			Name:  credentials.BellmanKeyName,
			Token: credentials.BellmanKey,
		})
		proxy.RegisterGen(client)
		proxy.RegisterEmbeder(client)
	}

	return proxy, nil
}

var ErrNoModelProvided = errors.New("no model was provided")
var ErrClientNotFound = errors.New("client not found")

type Proxy struct {
	logger   *slog.Logger
	embeders map[string]embed.Embeder
	gens     map[string]gen.Gen
}

func newProxy(logger *slog.Logger) *Proxy {
	if logger == nil {
		logger = slog.Default()
	}
	return &Proxy{
		logger:   logger,
		embeders: map[string]embed.Embeder{},
		gens:     map[string]gen.Gen{},
	}
}

func (p *Proxy) RegisterEmbeder(embeder embed.Embeder) {
	p.embeders[embeder.Provider()] = embeder
	p.logger.Debug("adding embed provider", "provider", embeder.Provider())
}

func (p *Proxy) RegisterGen(llm gen.Gen) {
	p.gens[llm.Provider()] = llm
	p.logger.Debug("adding llm provider", "provider", llm.Provider())
}

// Providers lists the registered generation providers, sorted.
func (p *Proxy) Providers() []string {
	var names []string
	for name := range p.gens {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// resolve unwraps bellman model names, which carry the upstream provider as
// "provider/model".
func resolve(provider, name string) (string, string, error) {
	if provider == bellman.Provider {
		upstream, model, found := strings.Cut(name, "/")
		if !found {
			return "", "", fmt.Errorf("invalid bellman model name '%s', %w", name, ErrNoModelProvided)
		}
		provider, name = upstream, model
	}
	if name == "" {
		return "", "", fmt.Errorf("model name is not set, %w", ErrNoModelProvided)
	}
	return provider, name, nil
}

func (p *Proxy) Embed(req embed.Request) (*embed.Response, error) {
	client, ok := p.embeders[req.Model.Provider]
	if !ok || client == nil {
		return nil, fmt.Errorf("no client registerd for provider '%s', %w", req.Model.Provider, ErrClientNotFound)
	}

	var err error
	req.Model.Provider, req.Model.Name, err = resolve(req.Model.Provider, req.Model.Name)
	if err != nil {
		return nil, err
	}
	return client.Embed(req)
}

func (p *Proxy) Gen(mod gen.Model) (*gen.Generator, error) {
	client, ok := p.gens[mod.Provider]
	if !ok || client == nil {
		return nil, fmt.Errorf("no client registerd for provider '%s', %w", mod.Provider, ErrClientNotFound)
	}

	var err error
	mod.Provider, mod.Name, err = resolve(mod.Provider, mod.Name)
	if err != nil {
		return nil, err
	}
	return client.Generator(gen.WithModel(mod)), nil
}

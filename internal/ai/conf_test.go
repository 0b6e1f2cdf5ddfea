package ai

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/modfin/ashle/internal/db"
	"github.com/modfin/ashle/internal/sanitize"
	"github.com/modfin/bellman/models/embed"
	"github.com/modfin/bellman/models/gen"
	"github.com/modfin/bellman/prompt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v3"
)

type fakePrompter struct {
	request gen.Request
	reply   string
}

func (f *fakePrompter) SetRequest(request gen.Request) {
	f.request = request
}

func (f *fakePrompter) Prompt(...prompt.Prompt) (*gen.Response, error) {
	return &gen.Response{Texts: []string{f.reply}}, nil
}

type fakeGen struct {
	prompter *fakePrompter
}

func (f fakeGen) Provider() string { return "Fake" }

func (f fakeGen) Generator(options ...gen.Option) *gen.Generator {
	g := &gen.Generator{Prompter: f.prompter}
	for _, opt := range options {
		g = opt(g)
	}
	return g
}

type fakeEmbeder struct{}

func (fakeEmbeder) Provider() string { return "Fake" }

func (fakeEmbeder) Embed(embed.Request) (*embed.Response, error) {
	return &embed.Response{Embedding: []float64{1, 0, 0}}, nil
}

func TestConf_Generate(t *testing.T) {
	prompter := &fakePrompter{reply: "<|sep|> Rest."}
	proxy := newProxy(nil)
	proxy.RegisterGen(fakeGen{prompter: prompter})

	c := &Conf{
		Proxy:      proxy,
		LLMModel:   gen.Model{Provider: "Fake", Name: "small"},
		Generation: Generation{Temperature: 0.7, TopP: 0.95, MaxTokens: 150, FrequencyPenalty: 0.3},
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	text, err := c.generate(ctx, SystemPrompt, []prompt.Prompt{prompt.AsUser("Q: hi <|sep|>")})
	require.NoError(t, err)
	assert.Equal(t, "<|sep|> Rest.", text)

	req := prompter.request
	assert.Equal(t, ctx, req.Context, "caller context reaches the provider")
	assert.Equal(t, "small", req.Model.Name)
	require.NotNil(t, req.FrequencyPenalty)
	assert.Equal(t, 0.3, *req.FrequencyPenalty)
	require.NotNil(t, req.MaxTokens)
	assert.Equal(t, 150, *req.MaxTokens)
}

func TestConf_Search_ClosedDatabase(t *testing.T) {
	ctx := context.Background()
	conn, dao, err := db.Open(ctx, filepath.Join(t.TempDir(), "ashle.db"))
	require.NoError(t, err)
	require.NoError(t, conn.Close())

	proxy := newProxy(nil)
	proxy.RegisterEmbeder(fakeEmbeder{})
	c := &Conf{
		Dao:        dao,
		Proxy:      proxy,
		EmbedModel: embed.Model{Provider: "Fake", Name: "small"},
		limits:     map[string]int{"%": 3, "srhr": 2},
	}

	passages, err := c.Search(ctx, "what is PCOS?")
	require.Error(t, err)
	assert.Nil(t, passages)
}

func TestSearchLabels(t *testing.T) {
	ctx := context.Background()
	conn, dao, err := db.Open(ctx, filepath.Join(t.TempDir(), "ashle.db"))
	require.NoError(t, err)
	defer conn.Close()

	_, err = dao.AddPassage(ctx, "srhr", "pcos.md", "PCOS is a hormonal disorder.", "Fake/small", []float64{1, 0, 0})
	require.NoError(t, err)
	_, err = dao.AddPassage(ctx, "other", "water.md", "Drink water.", "Fake/small", []float64{0, 1, 0})
	require.NoError(t, err)

	passages, err := searchLabels(ctx, dao, []float64{1, 0, 0}, map[string]int{"%": 2, "srhr": 1})
	require.NoError(t, err)
	assert.Len(t, passages, 2, "passages found under several labels are returned once")
}

// runPolicy runs a command carrying the policy flags and returns what
// LoadPolicy made of args.
func runPolicy(t *testing.T, args ...string) (sanitize.Policy, error) {
	t.Helper()

	var policy sanitize.Policy
	var loadErr error
	cmd := &cli.Command{
		Name: "ashle",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "policy"},
			&cli.StringFlag{Name: "separator"},
			&cli.IntFlag{Name: "threshold"},
			&cli.StringSliceFlag{Name: "keyword"},
			&cli.StringFlag{Name: "fallback"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			policy, loadErr = LoadPolicy(cmd)
			return nil
		},
	}
	require.NoError(t, cmd.Run(context.Background(), append([]string{"ashle"}, args...)))
	return policy, loadErr
}

func writePolicy(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "policy.yaml")
	err := os.WriteFile(path, []byte("separator: \"###\"\nthreshold: 2\nkeywords: [gene, protein]\n"), 0o644)
	require.NoError(t, err)
	return path
}

func TestLoadPolicy(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		policy, err := runPolicy(t)
		require.NoError(t, err)
		assert.Equal(t, sanitize.DefaultPolicy(), policy)
	})

	t.Run("file over defaults", func(t *testing.T) {
		policy, err := runPolicy(t, "--policy", writePolicy(t))
		require.NoError(t, err)
		assert.Equal(t, "###", policy.Separator)
		assert.Equal(t, 2, policy.Threshold)
		assert.Equal(t, []string{"gene", "protein"}, policy.Keywords)
		assert.Equal(t, sanitize.DefaultFallback, policy.Fallback)
	})

	t.Run("flags over file", func(t *testing.T) {
		policy, err := runPolicy(t,
			"--policy", writePolicy(t),
			"--separator", "<|sep|>",
			"--threshold", "7",
			"--keyword", "cortisol",
			"--keyword", "adrenal",
			"--fallback", "Ask a nurse.",
		)
		require.NoError(t, err)
		assert.Equal(t, sanitize.Policy{
			Separator: "<|sep|>",
			Keywords:  []string{"cortisol", "adrenal"},
			Threshold: 7,
			Fallback:  "Ask a nurse.",
		}, policy)
	})

	t.Run("zero threshold flag is kept", func(t *testing.T) {
		policy, err := runPolicy(t, "--policy", writePolicy(t), "--threshold", "0")
		require.NoError(t, err)
		assert.Equal(t, 0, policy.Threshold)
	})

	t.Run("negative threshold flag", func(t *testing.T) {
		_, err := runPolicy(t, "--threshold=-1")
		require.ErrorIs(t, err, sanitize.ErrNegativeThreshold)
	})
}

func TestLoadConf_InvalidPolicy(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ashle.db")

	var loadErr error
	cmd := &cli.Command{
		Name: "ashle",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "db"},
			&cli.StringFlag{Name: "policy"},
			&cli.IntFlag{Name: "threshold"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			conf, err := LoadConf(ctx, cmd)
			if err == nil {
				conf.Close()
			}
			loadErr = err
			return nil
		},
	}
	require.NoError(t, cmd.Run(context.Background(), []string{"ashle", "--db", path, "--threshold=-1"}))

	require.ErrorIs(t, loadErr, sanitize.ErrNegativeThreshold)
	assert.NoFileExists(t, path, "database is not opened for an invalid policy")
}

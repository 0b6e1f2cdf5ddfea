package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/modfin/ashle/internal/ai"
	"github.com/modfin/ashle/internal/chat"
	"github.com/modfin/ashle/internal/db"
	"github.com/modfin/ashle/internal/sanitize"
	"github.com/urfave/cli/v3"
)

var conversationFlag = &cli.StringFlag{
	Name:    "conversation",
	Usage:   "conversation id to continue, or 'latest'",
	Sources: cli.EnvVars("ASHLE_CONVERSATION"),
}

var explainFlag = &cli.BoolFlag{
	Name:  "explain",
	Usage: "print every stage of the sanitizer",
}

var addCommand = &cli.Command{
	Name:      "add",
	Usage:     "add files to the knowledge base",
	ArgsUsage: "<file>...",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:    "label",
			Usage:   "the label for the passages",
			Value:   "default",
			Sources: cli.EnvVars("ASHLE_LABEL"),
		},
	},
	Action: func(ctx context.Context, cmd *cli.Command) error {
		cfg, err := ai.LoadConf(ctx, cmd)
		if err != nil {
			return err
		}
		defer cfg.Close()

		label := cmd.String("label")
		for _, f := range cmd.Args().Slice() {
			logger := slog.Default().With("file", f, "label", label)

			data, err := os.ReadFile(f)
			if err != nil {
				return fmt.Errorf("failed to read file %s: %w", f, err)
			}
			name := filepath.Clean(f)
			content := string(data)

			dirty, err := cfg.Dao.DirtyPassage(ctx, label, name, content)
			if err != nil {
				return fmt.Errorf("failed to check if passage is dirty: %w", err)
			}
			if !dirty {
				logger.Debug("skipping unchanged passage")
				continue
			}

			logger.Debug("embedding file", "len", len(content))
			vector, err := cfg.Embed(ctx, content, false)
			if err != nil {
				return err
			}

			p, err := cfg.Dao.AddPassage(ctx, label, name, content, cfg.EmbedModel.Provider+"/"+cfg.EmbedModel.Name, vector)
			if err != nil {
				return fmt.Errorf("failed to add passage: %w", err)
			}
			logger.Info("added passage", "id", p.ID)
		}
		return nil
	},
}

var searchCommand = &cli.Command{
	Name:      "search",
	Usage:     "search the knowledge base",
	ArgsUsage: "<text> | --vector <json array>",
	Flags: []cli.Flag{
		&cli.IntFlag{
			Name:  "top",
			Usage: "the maximum number of passages to return",
			Value: 5,
		},
		&cli.StringFlag{
			Name:  "label",
			Usage: "label pattern, as in sql LIKE",
			Value: "%",
		},
		&cli.StringFlag{
			Name:  "vector",
			Usage: "search with a JSON array embedding instead of embedding the text",
		},
	},
	Action: func(ctx context.Context, cmd *cli.Command) error {
		cfg, err := ai.LoadConf(ctx, cmd)
		if err != nil {
			return err
		}
		defer cfg.Close()

		label, top := cmd.String("label"), int(cmd.Int("top"))

		var passages []db.Passage
		if cmd.IsSet("vector") {
			passages, err = cfg.Dao.KNNJSON(ctx, cmd.String("vector"), label, top)
		} else {
			var vector []float64
			vector, err = cfg.Embed(ctx, strings.Join(cmd.Args().Slice(), " "), true)
			if err != nil {
				return err
			}
			passages, err = cfg.Dao.KNN(ctx, vector, label, top)
		}
		if err != nil {
			return fmt.Errorf("failed to query database: %w", err)
		}
		for _, p := range passages {
			fmt.Fprintf(cmd.Root().Writer, "============ %s: %s ============\n%s\n", p.Label, p.Name, p.Content)
		}
		return nil
	},
}

// openLog resumes the conversation named by --conversation, or starts a new one.
func openLog(ctx context.Context, dao *db.Queries, id string) (chat.Log, error) {
	switch id {
	case "":
		return chat.New(), nil
	case "latest":
		latest, err := dao.LatestConversation(ctx)
		if errors.Is(err, db.ErrConversationNotFound) {
			return chat.New(), nil
		}
		if err != nil {
			return chat.Log{}, err
		}
		id = latest
	}
	return dao.LoadLog(ctx, id)
}

func printBanner(w io.Writer, log chat.Log) {
	fmt.Fprintln(w, ai.CautionNote)
	fmt.Fprintf(w, "conversation %s, ask any health related or SRHR question\n", log.ID)
}

func printReply(w io.Writer, reply ai.Reply, explain bool) {
	fmt.Fprintln(w, reply.Answer)
	if explain {
		printResult(w, reply.Result)
	}
}

func printResult(w io.Writer, res sanitize.Result) {
	data, _ := json.MarshalIndent(res, "", "  ")
	fmt.Fprintln(w, string(data))
}

var askCommand = &cli.Command{
	Name:      "ask",
	Usage:     "ask a single question",
	ArgsUsage: "<question>",
	Flags:     []cli.Flag{conversationFlag, explainFlag},
	Action: func(ctx context.Context, cmd *cli.Command) error {
		cfg, err := ai.LoadConf(ctx, cmd)
		if err != nil {
			return err
		}
		defer cfg.Close()

		log, err := openLog(ctx, cfg.Dao, cmd.String("conversation"))
		if err != nil {
			return fmt.Errorf("failed to open conversation: %w", err)
		}

		log, reply, err := cfg.Bot().Ask(ctx, log, strings.Join(cmd.Args().Slice(), " "))
		if err != nil {
			return err
		}
		if err := cfg.Dao.SaveLog(ctx, log); err != nil {
			return fmt.Errorf("failed to save conversation: %w", err)
		}

		printReply(os.Stdout, reply, cmd.Bool("explain"))
		slog.Default().Debug("conversation", "id", log.ID, "turns", log.Len())
		return nil
	},
}

var chatCommand = &cli.Command{
	Name:  "chat",
	Usage: "chat on stdin, one question per line, /quit to leave",
	Flags: []cli.Flag{conversationFlag, explainFlag},
	Action: func(ctx context.Context, cmd *cli.Command) error {
		cfg, err := ai.LoadConf(ctx, cmd)
		if err != nil {
			return err
		}
		defer cfg.Close()

		log, err := openLog(ctx, cfg.Dao, cmd.String("conversation"))
		if err != nil {
			return fmt.Errorf("failed to open conversation: %w", err)
		}
		bot := cfg.Bot()

		printBanner(os.Stderr, log)
		scanner := bufio.NewScanner(os.Stdin)
		for {
			fmt.Fprint(os.Stderr, "you> ")
			if !scanner.Scan() {
				break
			}
			line := strings.TrimSpace(scanner.Text())
			if line == "/quit" {
				break
			}
			if line == "" {
				continue
			}

			var reply ai.Reply
			log, reply, err = bot.Ask(ctx, log, line)
			if err != nil {
				slog.Default().Error("failed to answer", "err", err)
				continue
			}
			if err := cfg.Dao.SaveLog(ctx, log); err != nil {
				return fmt.Errorf("failed to save conversation: %w", err)
			}
			printReply(os.Stdout, reply, cmd.Bool("explain"))
		}
		return scanner.Err()
	},
}

var historyCommand = &cli.Command{
	Name:  "history",
	Usage: "print a stored conversation",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  "conversation",
			Usage: "conversation id",
			Value: "latest",
		},
		&cli.BoolFlag{
			Name:  "list",
			Usage: "list conversations instead",
		},
	},
	Action: func(ctx context.Context, cmd *cli.Command) error {
		conn, dao, err := db.Open(ctx, cmd.String("db"))
		if err != nil {
			return fmt.Errorf("failed to open database file, %s: %w", "file://"+cmd.String("db"), err)
		}
		defer conn.Close()

		if cmd.Bool("list") {
			convs, err := dao.ListConversations(ctx)
			if err != nil {
				return err
			}
			for _, c := range convs {
				fmt.Printf("%s\t%s\t%d turns\n", c.ID, c.CreatedAt.Format("2006-01-02 15:04"), c.Turns)
			}
			return nil
		}

		log, err := openLog(ctx, dao, cmd.String("conversation"))
		if err != nil {
			return err
		}
		for _, t := range log.Turns {
			marker := ""
			if t.Flagged {
				marker = " (replaced)"
			}
			fmt.Printf("[%s] %s%s: %s\n", t.CreatedAt.Format("15:04:05"), t.Role, marker, t.Text)
		}
		return nil
	},
}

var batchCommand = &cli.Command{
	Name:  "batch",
	Usage: "answer every question in a csv file",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "in", Required: true},
		&cli.StringFlag{Name: "out", Required: true},
		&cli.StringFlag{Name: "delimiter", Value: "\\t"},
		&cli.BoolFlag{Name: "with-headers"},
		&cli.IntFlag{Name: "column", Usage: "index of the question column"},
	},
	Action: func(ctx context.Context, cmd *cli.Command) error {
		cfg, err := ai.LoadConf(ctx, cmd)
		if err != nil {
			return err
		}
		defer cfg.Close()

		in, err := os.Open(cmd.String("in"))
		if err != nil {
			return fmt.Errorf("failed to open input file: %w", err)
		}
		defer in.Close()

		out, err := os.Create(cmd.String("out"))
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer out.Close()

		return ai.Batch(ctx, cfg.Bot(), in, out, ai.BatchOptions{
			Delimiter:   cmd.String("delimiter"),
			WithHeaders: cmd.Bool("with-headers"),
			Column:      int(cmd.Int("column")),
		})
	},
}

var sanitizeCommand = &cli.Command{
	Name:      "sanitize",
	Usage:     "run the sanitizer on generated text from a file or stdin",
	ArgsUsage: "[file]",
	Flags:     []cli.Flag{explainFlag},
	Action: func(ctx context.Context, cmd *cli.Command) error {
		policy, err := ai.LoadPolicy(cmd)
		if err != nil {
			return err
		}

		var in io.Reader = os.Stdin
		if f := cmd.Args().First(); f != "" && f != "-" {
			file, err := os.Open(f)
			if err != nil {
				return fmt.Errorf("failed to open %s: %w", f, err)
			}
			defer file.Close()
			in = file
		}

		raw, err := io.ReadAll(in)
		if err != nil {
			return fmt.Errorf("failed to read input: %w", err)
		}

		res := sanitize.New(policy).Apply(string(raw))
		fmt.Println(res.Answer)
		if cmd.Bool("explain") {
			printResult(os.Stdout, res)
		}
		return nil
	},
}

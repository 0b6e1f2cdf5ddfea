package ai

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"time"

	"github.com/modfin/ashle/internal/chat"
)

type BatchOptions struct {
	Delimiter   string
	WithHeaders bool

	// Column holds the question, counted from 0.
	Column int
}

// comma maps the delimiter flag to a csv separator, tab when unset.
func (o BatchOptions) comma() rune {
	switch o.Delimiter {
	case "", "\\t":
		return '\t'
	default:
		return []rune(o.Delimiter)[0]
	}
}

// Batch answers one question per row of in and writes each row to out with
// the answer and a flagged column appended. Every row is its own conversation.
func Batch(ctx context.Context, bot *Bot, in io.Reader, out io.Writer, opts BatchOptions) error {
	csvin := csv.NewReader(in)
	csvin.LazyQuotes = true
	csvin.FieldsPerRecord = -1
	csvin.Comma = opts.comma()

	csvout := csv.NewWriter(out)
	csvout.Comma = csvin.Comma
	defer csvout.Flush()

	var flagged int
	var row int
	for {
		start := time.Now()

		record, err := csvin.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read row %d: %w", row+1, err)
		}
		row++

		if row == 1 && opts.WithHeaders {
			if err := csvout.Write(append(record, "answer", "flagged")); err != nil {
				return err
			}
			continue
		}

		if opts.Column >= len(record) {
			return fmt.Errorf("row %d has %d columns, question column is %d", row, len(record), opts.Column)
		}

		_, reply, err := bot.Ask(ctx, chat.New(), record[opts.Column])
		if errors.Is(err, ErrEmptyQuestion) {
			slog.Default().Warn("skipping row without question", "row", row)
			continue
		}
		if err != nil {
			return fmt.Errorf("failed to answer row %d: %w", row, err)
		}
		if reply.Result.Flagged {
			flagged++
		}

		err = csvout.Write(append(record, reply.Answer, strconv.FormatBool(reply.Result.Flagged)))
		if err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
		csvout.Flush()

		slog.Default().Debug("batch",
			"row", row,
			"flagged", reply.Result.Flagged,
			"flagged-total", flagged,
			"took", time.Since(start),
		)
	}

	return csvout.Error()
}

package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/go-telegram/bot/models"
	"github.com/jehaby/teleboy"
	sqldb "github.com/jehaby/teleboy/internal/db"
	"github.com/spf13/cobra"
)

func newRootCmd(a *app) *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:          "teleboy",
		Short:        "Send messages through a Telegram bot and list the chats it has seen",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			path := configPath
			if path == "" {
				path = a.cfg.ConfigPath
			}
			return a.setup(path)
		},
	}
	cmd.PersistentFlags().StringVar(&configPath, "config", "", "YAML config file (default teleboy.yaml or teleboy.yml)")

	cmd.AddCommand(
		newUpdatesCmd(a),
		newChatsCmd(a),
		newSendCmd(a),
		newHistoryCmd(a),
	)
	return cmd
}

func newUpdatesCmd(a *app) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "updates",
		Short: "Print the raw getUpdates response",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.client()
			if err != nil {
				return err
			}
			raw, err := c.FetchUpdates(cmd.Context())
			if err != nil {
				return err
			}
			if out != "" {
				if err := os.WriteFile(out, raw, 0o644); err != nil {
					return fmt.Errorf("write %s: %w", out, err)
				}
				slog.Info("updates written", "path", out, "bytes", len(raw))
				return nil
			}
			_, err = fmt.Fprintln(a.out, string(raw))
			return err
		},
	}
	cmd.Flags().StringVar(&out, "out", "", "Write the response to this file instead of stdout")
	return cmd
}

func newChatsCmd(a *app) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "chats",
		Short: "List chats found in pending updates",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if format != "text" && format != "json" {
				return fmt.Errorf("invalid format: %s (must be 'text' or 'json')", format)
			}
			c, err := a.client()
			if err != nil {
				return err
			}
			return writeChats(a.out, c.ListChats(cmd.Context()), format)
		},
	}
	cmd.Flags().StringVar(&format, "format", "text", "Output format: text or json")
	return cmd
}

func writeChats(w io.Writer, dir teleboy.ChatDirectory, format string) error {
	if format == "json" {
		out := make(map[string]string, len(dir))
		for id, label := range dir {
			out[strconv.FormatInt(id, 10)] = label
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}
	for _, id := range dir.IDs() {
		if _, err := fmt.Fprintf(w, "%d\t%s\n", id, dir[id]); err != nil {
			return err
		}
	}
	return nil
}

func newSendCmd(a *app) *cobra.Command {
	var (
		chats     []string
		topic     string
		parseMode string
	)
	cmd := &cobra.Command{
		Use:   "send [text...]",
		Short: "Send a message to one or more chats (text from args or stdin)",
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := readText(args, a.in)
			if err != nil {
				return err
			}
			targets := resolveTargets(chats, a.file.Chats)
			if len(targets) == 0 {
				return fmt.Errorf("no chats given: use --chat or list chats in the config file")
			}
			c, err := a.client()
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("topic") && !cmd.Flags().Changed("parse-mode") {
				return c.SendToChats(cmd.Context(), text, targets)
			}
			var opts []teleboy.SendOption
			if cmd.Flags().Changed("topic") {
				opts = append(opts, teleboy.WithTopic(topic))
			}
			if cmd.Flags().Changed("parse-mode") {
				opts = append(opts, teleboy.WithParseMode(models.ParseMode(parseMode)))
			}
			var errs []error
			for _, id := range targets {
				if err := c.SendMessage(cmd.Context(), id, text, opts...); err != nil {
					errs = append(errs, err)
				}
			}
			return errors.Join(errs...)
		},
	}
	cmd.Flags().StringSliceVar(&chats, "chat", nil, "Target chat id (repeatable)")
	cmd.Flags().StringVar(&topic, "topic", "", "Forum topic (message_thread_id)")
	cmd.Flags().StringVar(&parseMode, "parse-mode", string(models.ParseModeMarkdown), "MarkdownV2, Markdown, HTML or empty")
	return cmd
}

// resolveTargets prefers explicit chats over the configured ones.
func resolveTargets(flagChats, fileChats []string) []string {
	src := flagChats
	if len(src) == 0 {
		src = fileChats
	}
	out := make([]string, 0, len(src))
	for _, c := range src {
		if c = strings.TrimSpace(c); c != "" {
			out = append(out, c)
		}
	}
	return out
}

func readText(args []string, in io.Reader) (string, error) {
	if len(args) > 0 {
		return strings.Join(args, " "), nil
	}
	b, err := io.ReadAll(in)
	if err != nil {
		return "", fmt.Errorf("read stdin: %w", err)
	}
	text := strings.TrimRight(string(b), "\n")
	if text == "" {
		return "", fmt.Errorf("message text is required")
	}
	return text, nil
}

func newHistoryCmd(a *app) *cobra.Command {
	var (
		chat    string
		limit   int64
		summary bool
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recently dispatched messages from the journal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.queries == nil {
				return fmt.Errorf("journal disabled: set TELEBOY_JOURNAL_DSN")
			}
			if summary {
				counts, err := a.queries.CountDispatchesByStatus(cmd.Context())
				if err != nil {
					return err
				}
				for _, c := range counts {
					if _, err := fmt.Fprintf(a.out, "%s\t%d\n", c.Status, c.Count); err != nil {
						return err
					}
				}
				return nil
			}
			params := sqldb.ListRecentDispatchesParams{Limit: limit}
			if chat != "" {
				params.ChatID = &chat
			}
			rows, err := a.queries.ListRecentDispatches(cmd.Context(), params)
			if err != nil {
				return err
			}
			return writeHistory(a.out, rows)
		},
	}
	cmd.Flags().StringVar(&chat, "chat", "", "Only show this chat")
	cmd.Flags().Int64Var(&limit, "limit", 20, "Maximum rows")
	cmd.Flags().BoolVar(&summary, "summary", false, "Print the number of dispatches per status instead")
	return cmd
}

func writeHistory(w io.Writer, rows []sqldb.Dispatch) error {
	for _, r := range rows {
		line := fmt.Sprintf("%s\t%s\t%d/%d\t%d\t%s",
			r.CreatedAt.Format("2006-01-02 15:04:05"), r.ChatID, r.Part, r.Parts, r.Length, r.Status)
		if r.Error != nil {
			line += "\t" + *r.Error
		}
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

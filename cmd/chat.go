package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"kataba/internal/chat"
	"kataba/internal/completion"
	"kataba/internal/conversations"
	"kataba/internal/guest"
	"kataba/pkg/db"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Talk to Kataba in the terminal",
	Long: "Starts an interactive conversation. Without --owner the session runs in guest mode " +
		"and the guest message limit applies. With --owner the conversation is saved for that user.",
	RunE: runChat,
}

func init() {
	chatCmd.Flags().Int64("owner", 0, "id of the user to chat as; the conversation is saved for them")
	chatCmd.Flags().Bool("private", false, "store placeholders instead of message content")
}

func runChat(cmd *cobra.Command, _ []string) error {
	cfg := loadConfig()
	logrus.SetOutput(os.Stderr)

	provider := newProvider(cfg)
	if provider == nil {
		return completion.ErrNotConfigured
	}

	ownerID, _ := cmd.Flags().GetInt64("owner")
	private, _ := cmd.Flags().GetBool("private")

	opts := []chat.Option{chat.WithCompletionTimeout(cfg.CompletionTimeout), chat.WithPersistTimeout(cfg.PersistTimeout)}
	var (
		caller chat.Caller
		store  chat.Persister
	)
	if ownerID > 0 {
		database, err := db.NewDB(cfg)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer database.Close()
		if err := db.Migrate(cmd.Context(), database); err != nil {
			return err
		}
		store = conversations.NewService(conversations.NewRepository(database))
		caller = chat.Authenticated{OwnerID: ownerID}
		opts = append(opts, chat.WithAutoCreate(private))
	} else {
		caller = chat.Guest{Quota: guest.NewTracker(cfg.MaxGuestMessages)}
	}

	session := chat.NewSession(provider, store, opts...)

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "Kataba is listening. Type a message, or /quit to leave.")

	scanner := bufio.NewScanner(cmd.InOrStdin())
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			break
		}
		text := strings.TrimSpace(scanner.Text())
		if text == "/quit" || text == "/exit" {
			break
		}

		reply, err := session.Submit(cmd.Context(), text, caller)
		switch {
		case errors.Is(err, chat.ErrEmptyMessage):
			continue
		case err != nil && reply == nil:
			return err
		}

		fmt.Fprintf(out, "\n%s\n\n", reply.Content)
		if g, ok := caller.(chat.Guest); ok && !reply.Status.ReachedLimit {
			fmt.Fprintf(out, "(%d free messages left)\n", g.Quota.Remaining())
		}
		if reply.Status.ReachedLimit && reply.Content == chat.LimitMessage {
			break
		}
	}

	session.Wait()
	if id := session.ConversationID(); id != "" {
		fmt.Fprintf(out, "Conversation saved as %s\n", id)
	}
	return scanner.Err()
}

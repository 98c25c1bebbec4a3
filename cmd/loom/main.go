// Package main provides the loom CLI entry point.
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/richinex/loom/chat"
	"github.com/richinex/loom/config"
	"github.com/richinex/loom/llm"
	"github.com/richinex/loom/storage"
	"github.com/richinex/loom/tools"
	"github.com/spf13/cobra"
)

var (
	// Global flags
	provider string
	verbose  bool
)

func main() {
	// Load .env file if present (ignore "file not found" errors)
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			fmt.Fprintf(os.Stderr, "Warning: failed to load .env file: %v\n", err)
		}
	}

	rootCmd := &cobra.Command{
		Use:   "loom",
		Short: "Streaming chat sessions over normalized provider streams",
		Long: `A CLI for streaming chat sessions against LLM providers.

Provider streams (OpenAI, Anthropic, DeepSeek, Gemini) are normalized
into one event model: ordered tokens, sealed tool-call batches, and
token usage, regardless of vendor chunk shape.`,
	}

	rootCmd.PersistentFlags().StringVarP(&provider, "provider", "p", "openai", "LLM provider (openai, anthropic, deepseek, gemini)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Show verbose output (usage, tool batches)")

	rootCmd.AddCommand(askCmd())
	rootCmd.AddCommand(chatCmd())
	rootCmd.AddCommand(providersCmd())
	rootCmd.AddCommand(toolsCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func askCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ask [prompt]",
		Short: "Send a single prompt and stream the reply",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			session, settings, err := buildSession()
			if err != nil {
				return err
			}

			ctx := context.Background()
			resp, err := session.Send(ctx, args[0])
			if err != nil {
				return err
			}
			resp, err = driveToolRounds(ctx, session, resp, settings.Chat.MaxToolRounds)
			if err != nil {
				return err
			}
			fmt.Println()
			return nil
		},
	}
}

func chatCmd() *cobra.Command {
	var sessionID string
	var dbPath string

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive chat session",
		Long: `Start an interactive chat session with streaming output.

With --session, history is persisted to SQLite and restored on the
next run. Type "exit" or "quit" to leave.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			session, settings, err := buildSession()
			if err != nil {
				return err
			}

			ctx := context.Background()

			var store storage.ConversationStorage
			if sessionID != "" {
				path := dbPath
				if path == "" {
					path = settings.Chat.HistoryDB
				}
				if path == "" {
					path = ".loom/loom.db"
				}
				sqlite, err := storage.OpenSqlite(path)
				if err != nil {
					return err
				}
				defer sqlite.Close()
				store = sqlite

				history, err := store.Load(ctx, sessionID)
				if err != nil {
					return err
				}
				if len(history) > 0 {
					conv := chat.NewConversation()
					for _, msg := range history {
						conv.Append(msg)
					}
					session.WithConversation(conv)
					fmt.Printf("Restored %d messages for session %s\n", len(history), sessionID)
				}
			}

			fmt.Printf("loom chat (%s). Type 'exit' to quit.\n", settings.LLM.Provider)
			scanner := bufio.NewScanner(os.Stdin)
			for {
				fmt.Print("> ")
				if !scanner.Scan() {
					break
				}
				line := strings.TrimSpace(scanner.Text())
				if line == "" {
					continue
				}
				if line == "exit" || line == "quit" {
					break
				}

				resp, err := session.Send(ctx, line)
				if err != nil {
					fmt.Fprintf(os.Stderr, "error: %v\n", err)
					continue
				}
				if _, err := driveToolRounds(ctx, session, resp, settings.Chat.MaxToolRounds); err != nil {
					fmt.Fprintf(os.Stderr, "error: %v\n", err)
					continue
				}
				fmt.Println()

				if store != nil {
					if err := store.Save(ctx, sessionID, session.Conversation().Messages()); err != nil {
						fmt.Fprintf(os.Stderr, "warning: failed to save session: %v\n", err)
					}
				}
			}
			return scanner.Err()
		},
	}

	cmd.Flags().StringVar(&sessionID, "session", "", "Session ID for conversation persistence")
	cmd.Flags().StringVar(&dbPath, "db", "", "Database path for storage (default from CHAT_HISTORY_DB)")

	return cmd
}

func providersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "providers",
		Short: "List supported providers",
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, name := range config.SupportedProviders() {
				model, err := config.ModelFor(name)
				if err != nil {
					return err
				}
				pt, err := llm.ParseProviderType(name)
				if err != nil {
					return err
				}
				fmt.Printf("%-10s model=%s key=%s\n", name, model, pt.EnvVar())
			}
			return nil
		},
	}
}

func toolsCmd() *cobra.Command {
	var verboseTools bool

	cmd := &cobra.Command{
		Use:   "tools",
		Short: "List available tools",
		RunE: func(cmd *cobra.Command, args []string) error {
			registry := defaultRegistry()
			for _, def := range registry.Definitions() {
				fmt.Printf("%s - %s\n", def.Name, def.Description)
				if verboseTools {
					fmt.Printf("  parameters: %v\n", def.Parameters)
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&verboseTools, "verbose", "V", false, "Show tool parameters")

	return cmd
}

// buildSession wires a session from flags and environment: provider,
// streaming hooks, and the default tool registry.
func buildSession() (*chat.Session, config.Settings, error) {
	settings, err := config.New(provider)
	if err != nil {
		return nil, config.Settings{}, err
	}

	providerType, err := llm.ParseProviderType(settings.LLM.Provider)
	if err != nil {
		return nil, config.Settings{}, err
	}

	p, err := llm.NewProviderBuilder(providerType).
		Model(settings.LLM.Model).
		MaxTokens(settings.LLM.MaxTokens).
		Temperature(float32(settings.LLM.Temperature)).
		FromEnv()
	if err != nil {
		return nil, config.Settings{}, err
	}

	registry := defaultRegistry()

	hooks := chat.Hooks{
		OnToken: func(token string) {
			fmt.Print(token)
		},
	}
	if verbose {
		hooks.OnRoleResolved = func(role llm.Role) {
			fmt.Fprintf(os.Stderr, "[role: %s]\n", role)
		}
		hooks.OnToolCalls = func(calls []llm.ToolCall) {
			for _, call := range calls {
				fmt.Fprintf(os.Stderr, "\n[tool call: %s(%s)]\n", call.Name, call.Arguments)
			}
		}
		hooks.OnUsage = func(usage llm.Usage) {
			fmt.Fprintf(os.Stderr, "\n[usage: prompt=%d completion=%d]\n", usage.PromptTokens, usage.CompletionTokens)
		}
	}

	session := chat.NewSession(p).
		WithHooks(hooks).
		WithTools(registry.Definitions()).
		WithToolHandler(registry.Handler())

	return session, settings, nil
}

// driveToolRounds continues the turn while the model keeps requesting
// tools, up to the configured round limit.
func driveToolRounds(ctx context.Context, session *chat.Session, resp *chat.RichResponse, maxRounds int) (*chat.RichResponse, error) {
	for round := 0; len(resp.ToolCalls()) > 0; round++ {
		if round >= maxRounds {
			return resp, fmt.Errorf("tool round limit reached (%d)", maxRounds)
		}
		next, err := session.Continue(ctx)
		if err != nil {
			return resp, err
		}
		resp = next
	}
	return resp, nil
}

func defaultRegistry() *tools.Registry {
	registry := tools.NewRegistry()
	// Registration only fails on duplicate names.
	_ = registry.Register(tools.NewHTTPTool(30))
	return registry
}

package main

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"github.com/suPer8Hu/kinfolk/internal/ai"
	"github.com/suPer8Hu/kinfolk/internal/chat"
	"github.com/suPer8Hu/kinfolk/internal/common"
)

func newToolsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tools",
		Short: "List the assistant's tools",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()
			for _, t := range a.Tools.Tools() {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", t.Name, t.Description)
			}
			return nil
		},
	}
	cmd.AddCommand(newToolCallCmd())
	return cmd
}

func newToolCallCmd() *cobra.Command {
	var rawArgs string
	cmd := &cobra.Command{
		Use:   "call <tool>",
		Short: "Run one tool the way the assistant would",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			callArgs := map[string]any{}
			if rawArgs != "" {
				if err := json.Unmarshal([]byte(rawArgs), &callArgs); err != nil {
					return fmt.Errorf("--args must be a JSON object: %w", err)
				}
			}
			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			out := a.Dispatcher.Execute(cmd.Context(), ai.ToolCall{ID: args[0] + "-" + common.MustULID(), Name: args[0], Args: callArgs})
			fmt.Fprintln(cmd.OutOrStdout(), out)
			return nil
		},
	}
	cmd.Flags().StringVar(&rawArgs, "args", "", "Tool arguments as a JSON object")
	return cmd
}

func newChatCmd() *cobra.Command {
	var profile, sessionID string
	var ephemeral bool
	cmd := &cobra.Command{
		Use:   "chat [message]",
		Short: "Talk to the assistant; without a message, read lines from stdin",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			var store chat.Store
			if ephemeral {
				store = chat.NewMemoryStore()
			}
			orch := a.Orchestrator(store)

			if sessionID == "" {
				sess, err := orch.CreateSession(cmd.Context(), profile)
				if err != nil {
					return err
				}
				sessionID = sess.SessionID
				log.Info().Str("session_id", sessionID).Str("model", sess.Model).Msg("session started")
			}

			out := cmd.OutOrStdout()
			send := func(text string) error {
				turn, err := orch.Submit(cmd.Context(), sessionID, text)
				if err != nil {
					return err
				}
				for _, m := range turn.Messages {
					if m.Role == ai.RoleTool {
						log.Debug().Str("tool", m.ToolName).Str("result", m.Content).Msg("tool result")
					}
				}
				if turn.Reply != nil {
					fmt.Fprintln(out, turn.Reply.Content)
				}
				return nil
			}

			if len(args) > 0 {
				return send(strings.Join(args, " "))
			}
			return chatLoop(cmd.InOrStdin(), out, send)
		},
	}
	cmd.Flags().StringVar(&profile, "profile", "", "AI profile name (default profile when empty)")
	cmd.Flags().StringVar(&sessionID, "session", "", "Continue an existing session")
	cmd.Flags().BoolVar(&ephemeral, "ephemeral", false, "Keep the conversation in memory only")
	return cmd
}

func chatLoop(in io.Reader, out io.Writer, send func(string) error) error {
	sc := bufio.NewScanner(in)
	fmt.Fprint(out, "> ")
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		switch line {
		case "":
		case "/quit", "/exit":
			return nil
		default:
			if err := send(line); err != nil {
				fmt.Fprintln(out, "error:", err)
			}
		}
		fmt.Fprint(out, "> ")
	}
	return sc.Err()
}

func newModelsCmd() *cobra.Command {
	var profile string
	var test bool
	cmd := &cobra.Command{
		Use:   "models",
		Short: "List the models a profile's server offers",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			if profile == "" {
				profile = "default"
			}
			cfg, ok := a.Config.Profiles[profile]
			if !ok {
				return fmt.Errorf("unknown ai profile %q (have %s)", profile, strings.Join(a.Config.ProfileNames(), ", "))
			}
			if test {
				_, msg := a.Backend.TestConnection(cmd.Context(), cfg)
				fmt.Fprintln(cmd.OutOrStdout(), msg)
				return nil
			}
			names, err := a.Backend.Models(cmd.Context(), cfg)
			if err != nil {
				return errors.New(ai.Diagnose(cfg, err))
			}
			for _, n := range names {
				fmt.Fprintln(cmd.OutOrStdout(), n)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&profile, "profile", "", "AI profile name")
	cmd.Flags().BoolVar(&test, "test", false, "Only test the connection")
	return cmd
}

package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/user/gopherlog/internal/metacmd"
	"github.com/user/gopherlog/internal/types"
)

func init() {
	rootCmd.AddCommand(sessionCmd)
	sessionCmd.AddCommand(sessionNewCmd, sessionContinueCmd, sessionListCmd, sessionShowCmd, sessionUseCmd)
}

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Manage sessions of the working directory",
}

var sessionNewCmd = &cobra.Command{
	Use:   "new",
	Short: "Start a new session and make it current",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		defer setupLogging(cfg)()
		wd, err := resolveWorkDir()
		if err != nil {
			return err
		}

		sess, err := openStores(cfg).sessions.Create(context.Background(), wd)
		if err != nil {
			return fmt.Errorf("create session: %w", err)
		}
		fmt.Fprintln(os.Stdout, sess.ID)
		return nil
	},
}

var sessionContinueCmd = &cobra.Command{
	Use:   "continue",
	Short: "Print the current session of the working directory",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		defer setupLogging(cfg)()
		wd, err := resolveWorkDir()
		if err != nil {
			return err
		}

		sess, ok, err := openStores(cfg).sessions.Continue(context.Background(), wd)
		if err != nil {
			return err
		}
		if !ok {
			fmt.Println("No session to continue.")
			return nil
		}
		fmt.Fprintf(os.Stdout, "%s\t%s\n", sess.ID, sess.HistoryFile)
		return nil
	},
}

var sessionListCmd = &cobra.Command{
	Use:   "list",
	Short: "List sessions, most recent first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		defer setupLogging(cfg)()
		wd, err := resolveWorkDir()
		if err != nil {
			return err
		}

		list, err := openStores(cfg).catalog.List(context.Background(), wd)
		if err != nil {
			return fmt.Errorf("list sessions: %w", err)
		}
		if len(list) == 0 {
			fmt.Println("No sessions found.")
			return nil
		}

		now := time.Now()
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "\tID\tMODIFIED\tMESSAGES\tCHECKPOINTS\tSIZE\tPREVIEW")
		for _, s := range list {
			marker := ""
			if s.IsCurrent {
				marker = "→"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%s\t%s\n",
				marker,
				s.ID,
				metacmd.RelativeTime(s.ModifiedAt, now),
				s.MessageCount,
				s.CheckpointCount,
				humanize.Bytes(uint64(s.Size)),
				s.Preview,
			)
		}
		return w.Flush()
	},
}

var sessionShowCmd = &cobra.Command{
	Use:   "show [id]",
	Short: "Replay a session (default: the current one)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		defer setupLogging(cfg)()
		wd, err := resolveWorkDir()
		if err != nil {
			return err
		}
		var id string
		if len(args) == 1 {
			id = args[0]
		}

		ctx := context.Background()
		st := openStores(cfg)
		sess, log, err := st.openLog(ctx, wd, id)
		if err != nil {
			return err
		}
		summary := st.catalog.Summarize(ctx, sess.HistoryFile)
		history := log.History()

		fmt.Fprintf(os.Stdout, "Session:     %s\n", sess.ID)
		fmt.Fprintf(os.Stdout, "File:        %s (%s)\n", sess.HistoryFile, humanize.Bytes(uint64(summary.Size)))
		fmt.Fprintf(os.Stdout, "Modified:    %s\n", humanize.Time(summary.ModifiedAt))
		fmt.Fprintf(os.Stdout, "Messages:    %d\n", summary.MessageCount)
		fmt.Fprintf(os.Stdout, "Checkpoints: %d\n", log.NCheckpoints())
		if engine := tokenEngine(cfg); engine != nil {
			fmt.Fprintf(os.Stdout, "Tokens:      %s / %s\n",
				humanize.Comma(int64(engine.CountHistory(history))),
				humanize.Comma(int64(engine.MaxTokens())))
		}
		fmt.Println()
		metacmd.RenderHistory(os.Stdout, history)
		return nil
	},
}

var sessionUseCmd = &cobra.Command{
	Use:   "use <id>",
	Short: "Make a session the current one",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		defer setupLogging(cfg)()
		wd, err := resolveWorkDir()
		if err != nil {
			return err
		}
		id, err := types.ParseSessionID(args[0])
		if err != nil {
			return err
		}

		sess, err := openStores(cfg).sessions.Load(context.Background(), wd, id)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "Switched to session %s\n", sess.ID)
		return nil
	},
}

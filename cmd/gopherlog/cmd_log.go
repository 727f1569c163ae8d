package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/user/gopherlog/internal/types"
)

var logSessionID string

func init() {
	rootCmd.AddCommand(logCmd)
	logCmd.PersistentFlags().StringVarP(&logSessionID, "session", "s", "", "session id (default: the current session)")
	logCmd.AddCommand(logAppendCmd, logCheckpointCmd, logRevertCmd)
}

var logCmd = &cobra.Command{
	Use:   "log",
	Short: "Write to a session log",
}

var logAppendCmd = &cobra.Command{
	Use:   "append <user|assistant|tool|system> <text...>",
	Short: "Append a message",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		role := types.Role(args[0])
		switch role {
		case types.RoleUser, types.RoleAssistant, types.RoleTool, types.RoleSystem:
		default:
			return fmt.Errorf("unknown role %q", args[0])
		}

		cfg := loadConfig()
		defer setupLogging(cfg)()
		wd, err := resolveWorkDir()
		if err != nil {
			return err
		}

		ctx := context.Background()
		_, log, err := openStores(cfg).openLog(ctx, wd, logSessionID)
		if err != nil {
			return err
		}
		msg := types.Message{Role: role, Content: types.PlainText(strings.Join(args[1:], " "))}
		return log.AppendMessage(ctx, msg)
	},
}

var logCheckpointCmd = &cobra.Command{
	Use:   "checkpoint",
	Short: "Append a checkpoint marker",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		defer setupLogging(cfg)()
		wd, err := resolveWorkDir()
		if err != nil {
			return err
		}

		ctx := context.Background()
		_, log, err := openStores(cfg).openLog(ctx, wd, logSessionID)
		if err != nil {
			return err
		}
		id := log.NCheckpoints()
		if err := log.Checkpoint(ctx); err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "Checkpoint %d\n", id)
		return nil
	},
}

var logRevertCmd = &cobra.Command{
	Use:   "revert <checkpoint>",
	Short: "Revert the session to just before a checkpoint, keeping a backup",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		n, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid checkpoint %q: %w", args[0], err)
		}

		cfg := loadConfig()
		defer setupLogging(cfg)()
		wd, err := resolveWorkDir()
		if err != nil {
			return err
		}

		ctx := context.Background()
		_, log, err := openStores(cfg).openLog(ctx, wd, logSessionID)
		if err != nil {
			return err
		}
		if log.NCheckpoints() == 0 {
			fmt.Println("Context is empty.")
			return nil
		}
		backup, err := log.RevertTo(ctx, n)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "Reverted to checkpoint %d, previous log kept at %s\n", n, backup)
		return nil
	},
}

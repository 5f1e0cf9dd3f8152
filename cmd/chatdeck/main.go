package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"chatdeck/internal/config"
	"chatdeck/internal/store"
	"chatdeck/internal/tui"
)

const (
	version = "0.3.0"
	repoURL = "https://github.com/chatdeck/chatdeck"
)

func loadConfig(cmd *cobra.Command) (config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		path = config.DefaultConfigPath()
	}
	cfg, err := config.LoadConfig(path)
	if err != nil {
		return config.Config{}, err
	}
	if workspace, _ := cmd.Flags().GetString("workspace"); workspace != "" {
		cfg.Workspace = workspace
	}
	if cfg.Workspace == "" {
		wd, err := os.Getwd()
		if err != nil {
			return config.Config{}, fmt.Errorf("resolve workspace: %w", err)
		}
		cfg.Workspace = wd
	}
	if backend, _ := cmd.Flags().GetString("backend"); backend != "" {
		cfg.BackendCommand = backend
	}
	return cfg, nil
}

func main() {
	root := &cobra.Command{
		Use:     "chatdeck",
		Short:   "Terminal chat client for agentic coding backends",
		Long:    "chatdeck runs conversations against a local agent backend: prompt history,\ntool-call approvals, multiple parallel sessions and resumable chats.\n\nFor more information, visit: " + repoURL,
		Version: version,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			return tui.Run(cfg)
		},
	}

	root.PersistentFlags().String("config", "", "Path to config file")
	root.PersistentFlags().StringP("workspace", "w", "", "Workspace directory (defaults to cwd)")
	root.Flags().String("backend", "", "Backend command (overrides config)")

	sessionsCmd := &cobra.Command{
		Use:   "sessions",
		Short: "List saved sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			root := cfg.DataRoot
			if root == "" {
				root = store.DefaultDataRoot()
			}
			st, err := store.NewSQLiteStore(root)
			if err != nil {
				return err
			}
			defer st.Close()

			limit, _ := cmd.Flags().GetInt("limit")
			summaries, err := st.ListSessions(limit)
			if err != nil {
				return err
			}
			if len(summaries) == 0 {
				fmt.Println("no saved sessions")
				return nil
			}
			for _, sum := range summaries {
				title := sum.Record.Title
				if title == "" {
					title = "(untitled)"
				}
				fmt.Printf("%s  %-40s  %4d lines  %s\n",
					sum.Record.ID, title, sum.LineCount,
					sum.LastActivity.Local().Format("2006-01-02 15:04"))
			}
			return nil
		},
	}
	sessionsCmd.Flags().Int("limit", 20, "Maximum sessions to list")
	root.AddCommand(sessionsCmd)

	deleteCmd := &cobra.Command{
		Use:   "delete [session-id]",
		Short: "Delete a saved session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			root := cfg.DataRoot
			if root == "" {
				root = store.DefaultDataRoot()
			}
			st, err := store.NewSQLiteStore(root)
			if err != nil {
				return err
			}
			defer st.Close()
			if err := st.DeleteSession(args[0]); err != nil {
				return err
			}
			fmt.Println("deleted", args[0])
			return nil
		},
	}
	root.AddCommand(deleteCmd)

	configCmd := &cobra.Command{
		Use:   "init-config",
		Short: "Write a default config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, _ := cmd.Flags().GetString("config")
			if path == "" {
				path = config.DefaultConfigPath()
			}
			if _, err := os.Stat(path); err == nil {
				return fmt.Errorf("config already exists at %s", path)
			}
			if err := config.SaveConfig(config.DefaultConfig(), path); err != nil {
				return err
			}
			fmt.Println("wrote", path)
			return nil
		},
	}
	root.AddCommand(configCmd)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

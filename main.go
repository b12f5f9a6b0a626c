// loom TUI - a terminal chat client for OpenAI-compatible endpoints.
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/loom-tui/internal/agent"
	"github.com/jeranaias/loom-tui/internal/cloud"
	"github.com/jeranaias/loom-tui/internal/config"
	"github.com/jeranaias/loom-tui/internal/model"
	"github.com/jeranaias/loom-tui/internal/parts"
	"github.com/jeranaias/loom-tui/internal/request"
	"github.com/jeranaias/loom-tui/internal/storage"
	"github.com/jeranaias/loom-tui/internal/tools"
	"github.com/jeranaias/loom-tui/internal/ui/chat"
)

// Version information (set at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

type cliOptions struct {
	configPath string
	modelID    string
	resume     bool
	sessions   bool
	search     string
	deleteID   string
}

func main() {
	var opts cliOptions
	flag.StringVar(&opts.configPath, "config", config.DefaultPath(), "config file path")
	flag.StringVar(&opts.modelID, "model", "", "override the default model id")
	flag.BoolVar(&opts.resume, "resume", false, "continue the most recent stored conversation")
	flag.BoolVar(&opts.sessions, "sessions", false, "list stored conversations and exit")
	flag.StringVar(&opts.search, "search", "", "list stored conversations matching a query and exit")
	flag.StringVar(&opts.deleteID, "delete", "", "delete a stored conversation by id and exit")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("loom %s (%s, built %s)\n", Version, GitCommit, BuildDate)
		return
	}

	if err := run(opts); err != nil {
		fmt.Fprintln(os.Stderr, "loom:", err)
		os.Exit(1)
	}
}

// printMetas renders conversation listings for the session subcommands.
func printMetas(metas []model.ConversationMeta) {
	if len(metas) == 0 {
		fmt.Println("no conversations")
		return
	}
	for _, m := range metas {
		fmt.Printf("%s  %s  [%s]  %d messages  %s\n",
			m.ID, m.UpdatedAt.Format("2006-01-02 15:04"), m.Model, m.MessageCount, m.Title)
	}
}

// runSessionCommand handles the list/search/delete flags, which operate on
// local storage only and never touch the endpoint.
func runSessionCommand(store *storage.Store, opts cliOptions) error {
	switch {
	case opts.sessions:
		metas, err := store.List()
		if err != nil {
			return err
		}
		printMetas(metas)
	case opts.search != "":
		metas, err := store.Search(opts.search)
		if err != nil {
			return err
		}
		printMetas(metas)
	case opts.deleteID != "":
		if err := store.Delete(opts.deleteID); err != nil {
			return err
		}
		fmt.Println("deleted", opts.deleteID)
	}
	return nil
}

func run(opts cliOptions) error {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}
	if opts.modelID != "" {
		cfg.DefaultModel = opts.modelID
	}

	store, err := storage.Open(filepath.Join(filepath.Dir(opts.configPath), "loom.db"))
	if err != nil {
		return err
	}
	defer store.Close()

	if opts.sessions || opts.search != "" || opts.deleteID != "" {
		return runSessionCommand(store, opts)
	}

	if cfg.Endpoint.APIKey == "" {
		return config.ErrNoAPIKey
	}

	var resume *model.Conversation
	if opts.resume {
		metas, err := store.List()
		if err != nil {
			return err
		}
		if len(metas) > 0 {
			resume, err = store.LoadConversation(metas[0].ID)
			if err != nil {
				return err
			}
		}
	}

	registry := tools.NewRegistry()
	if cfg.Tools.Enabled {
		registry.RegisterBuiltins(cfg.Tools.WorkDir)
		if len(cfg.Tools.Allowed) == 0 {
			cfg.Tools.Allowed = registry.Names()
		}
	}

	catalog := config.NewCatalog(cfg.Models)
	client := cloud.NewClient(cloud.Options{
		BaseURL:           cfg.Endpoint.BaseURL,
		APIKey:            cfg.Endpoint.APIKey,
		MaxRetries:        cfg.Endpoint.MaxRetries,
		RequestsPerMinute: cfg.Endpoint.RequestsPerMinute,
	})
	formatter := request.NewFormatter(catalog, registry)

	view := chat.New(chat.Deps{
		Config: cfg,
		Store:  store,
		Resume: resume,
		NewRunner: func(onUpdate func([]parts.Part)) *agent.Runner {
			return agent.NewRunner(client, formatter, registry, agent.RunnerOptions{
				MaxIterations: cfg.MaxToolIterations,
				OnUpdate:      onUpdate,
				Persister:     store,
			})
		},
	})

	program := tea.NewProgram(view, tea.WithAltScreen())

	watcher, err := config.Watch(opts.configPath,
		func(next *config.Config) { program.Send(chat.ConfigReloadedMsg{Config: next}) },
		func(error) {})
	if err == nil {
		defer watcher.Close()
	}

	_, err = program.Run()
	return err
}

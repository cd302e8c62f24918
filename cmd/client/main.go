// Package main runs the interactive PicTag terminal client.
package main

import (
	"cmp"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/atinyakov/PicTag/internal/client/analyze"
	"github.com/atinyakov/PicTag/internal/client/api"
	"github.com/atinyakov/PicTag/internal/client/app"
	"github.com/atinyakov/PicTag/internal/client/gateway"
	"github.com/atinyakov/PicTag/internal/client/generate"
	"github.com/atinyakov/PicTag/internal/client/history"
	"github.com/atinyakov/PicTag/internal/client/identity"
	"github.com/atinyakov/PicTag/internal/client/session"
	"github.com/atinyakov/PicTag/internal/client/storage"
	"github.com/atinyakov/PicTag/internal/client/ui"
	"github.com/atinyakov/PicTag/internal/logger"
)

var (
	version   string
	buildDate string
)

// refreshInterval is how often the credential's expiry is checked.
const refreshInterval = time.Minute

// main parses command-line flags, restores the saved session and runs the shell.
func main() {
	var (
		baseURL     string
		caFile      string
		sessionFile string
		logFile     string
		logLevel    string
		downloads   string
		showVer     bool
	)

	flag.StringVar(&baseURL, "url", "https://localhost:8080", "server base URL")
	flag.StringVar(&caFile, "ca", "", "path to CA cert (system roots when empty)")
	flag.StringVar(&sessionFile, "session", storage.DefaultSessionFile, "path to the saved session")
	flag.StringVar(&logFile, "log", "pictag-client.log", "path to the client log")
	flag.StringVar(&logLevel, "log-level", "info", "log level")
	flag.StringVar(&downloads, "downloads", ".", "directory for downloaded images")
	flag.BoolVar(&showVer, "version", false, "show build version and date")
	flag.Parse()

	if showVer {
		fmt.Printf("PicTag Client\nVersion: %s\nBuild Date: %s\n", cmp.Or(version, "N/A"), cmp.Or(buildDate, "N/A"))
		return
	}

	// stderr belongs to the shell, so the log goes to a file.
	l := logger.New()
	if err := l.InitWithOutput(logLevel, logFile); err != nil {
		fmt.Fprintln(os.Stderr, "failed to init logger:", err)
		os.Exit(1)
	}
	log := l.Log
	defer func() { _ = log.Sync() }()

	httpClient, err := storage.NewHTTPClient(caFile)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	auth := identity.NewClient(baseURL, httpClient, storage.NewLocalStorage(sessionFile), log)
	state := session.New()
	go state.Run(ctx, auth.Changes())

	prompter := storage.NewPrompter(os.Stdin, os.Stdout)
	term := ui.NewTerminal(os.Stdout, prompter)
	client := api.New(baseURL, httpClient)

	shell := app.New(state,
		gateway.New(auth, term, log),
		analyze.New(state, client, term, log),
		history.New(state, client, term, log),
		generate.New(state, client, term, log, downloads),
		term,
		prompter,
		os.Stdout,
		log,
	)
	go shell.Watch(ctx)

	if err := auth.Restore(ctx); err != nil {
		log.Warn("restoring session failed", zap.Error(err))
	}
	auth.StartAutoRefresh(ctx, refreshInterval)

	fmt.Println("PicTag: type 'help' for a list of commands.")
	shell.Run(ctx, prompter.Scanner(), term.Prompt)
}

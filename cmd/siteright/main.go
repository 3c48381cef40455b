package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/Richiestixx/SiteRightApp/pkg/logger"
)

var buildVersion = "dev"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	cmd := os.Args[1]
	args := os.Args[2:]

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var err error
	switch cmd {
	case "session":
		err = commandSession(ctx, args)
	case "project":
		err = commandProject(ctx, args)
	case "log":
		err = commandLog(ctx, args)
	case "report":
		err = commandReport(ctx, args)
	case "reels":
		err = commandReels(ctx, args)
	case "version", "--version", "-v":
		printVersion()
		return
	case "help", "-h", "--help":
		printUsage()
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", cmd)
		printUsage()
		os.Exit(1)
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func cliLogger(verbose bool) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return logger.NewWithWriter(os.Stderr, "siteright", level)
}

func printUsage() {
	fmt.Printf("siteright CLI %s\n\n", buildVersion)
	fmt.Print(`Usage:
	siteright session [--api http://localhost:4000]
	siteright project list
	siteright project create --name <name>
	siteright project watch
	siteright log list --project <project-id>
	siteright log add --project <project-id> --notes <text> [--priority High|Medium|Low] [--category General|...] [--assignee name] [--photo path]... [--video path]...
	siteright log complete --project <project-id> --log <log-id> [--notes text] [--expected-version N]
	siteright log transcribe --project <project-id> --log <log-id>
	siteright log watch --project <project-id>
	siteright report --project <project-id> [--html out.html]
	siteright reels --project <project-id>
	siteright version
`)
}

func printVersion() {
	fmt.Println(strings.TrimSpace(buildVersion))
}

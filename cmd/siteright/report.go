package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Richiestixx/SiteRightApp/internal/report"
	"github.com/Richiestixx/SiteRightApp/internal/viewstate"
)

func commandReport(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("report", flag.ExitOnError)
	projectID := fs.String("project", "", "Project ID")
	htmlOut := fs.String("html", "", "Write the server-rendered HTML report to this file instead of a PDF")
	verbose := fs.Bool("v", false, "Verbose logging")
	fs.Parse(args)

	a, err := connect(ctx, "", *verbose)
	if err != nil {
		return err
	}

	if *htmlOut != "" || strings.TrimSpace(a.env.RendererURL) == "" {
		if *projectID == "" {
			return errors.New("--project is required")
		}
		target := *htmlOut
		if target == "" {
			project, err := a.client.GetProject(ctx, a.id.Token, *projectID)
			if err != nil {
				return err
			}
			target = filepath.Join(a.env.ReportDir, strings.TrimSuffix(report.FileName(project.Name), ".pdf")+".html")
		}
		markup, err := a.client.ReportHTML(ctx, a.id.Token, *projectID)
		if err != nil {
			return err
		}
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return err
		}
		if err := os.WriteFile(target, []byte(markup), 0o644); err != nil {
			return err
		}
		fmt.Printf("report written: %s\n", target)
		return nil
	}

	renderer := report.NewGotenbergRenderer(a.env.RendererURL, a.env.RendererTimeout)
	exporter := report.NewExporter(renderer, report.DirSharer{Dir: a.env.ReportDir}, a.log)
	view, err := openProject(ctx, a, *projectID, viewstate.WithExporter(exporter))
	if err != nil {
		return err
	}
	defer view.Close()

	if _, err := awaitSnapshot(ctx, view); err != nil {
		return err
	}
	uri, err := view.Report(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("report shared: %s\n", uri)
	return nil
}

func commandReels(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("reels", flag.ExitOnError)
	projectID := fs.String("project", "", "Project ID")
	verbose := fs.Bool("v", false, "Verbose logging")
	fs.Parse(args)

	a, err := connect(ctx, "", *verbose)
	if err != nil {
		return err
	}
	view, err := openProject(ctx, a, *projectID)
	if err != nil {
		return err
	}
	defer view.Close()

	if _, err := awaitSnapshot(ctx, view); err != nil {
		return err
	}
	reels := view.Reels()
	if len(reels) == 0 {
		fmt.Println("no videos in this project")
		return nil
	}
	for i, reel := range reels {
		fmt.Printf("%d/%d\t%s\t%s\n\t%s\n", i+1, len(reels), reel.LogID, reel.VideoURI, strings.ReplaceAll(reel.Notes, "\n", " "))
	}
	return nil
}

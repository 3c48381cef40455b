package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"strings"
	"time"

	"github.com/Richiestixx/SiteRightApp/internal/domain"
	"github.com/Richiestixx/SiteRightApp/internal/viewstate"
)

func commandSession(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("session", flag.ExitOnError)
	apiBase := fs.String("api", "", "API base URL (default http://localhost:4000)")
	verbose := fs.Bool("v", false, "Verbose logging")
	fs.Parse(args)

	a, err := connect(ctx, *apiBase, *verbose)
	if err != nil {
		return err
	}
	fmt.Printf("signed in as %s (app %s)\n", a.id.UserID, a.id.AppID)
	return nil
}

func commandProject(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errors.New("usage: siteright project [list|create|watch]")
	}
	switch args[0] {
	case "list":
		return projectList(ctx, args[1:])
	case "create":
		return projectCreate(ctx, args[1:])
	case "watch":
		return projectWatch(ctx, args[1:])
	default:
		return fmt.Errorf("unknown project command: %s", args[0])
	}
}

func projectList(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("project list", flag.ExitOnError)
	verbose := fs.Bool("v", false, "Verbose logging")
	fs.Parse(args)

	a, err := connect(ctx, "", *verbose)
	if err != nil {
		return err
	}
	projects, err := a.client.ListProjects(ctx, a.id.Token)
	if err != nil {
		return err
	}
	for _, line := range projectLines(projects) {
		fmt.Println(line)
	}
	return nil
}

func projectCreate(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("project create", flag.ExitOnError)
	name := fs.String("name", "", "Project name")
	verbose := fs.Bool("v", false, "Verbose logging")
	fs.Parse(args)

	if strings.TrimSpace(*name) == "" {
		return errors.New("--name is required")
	}
	a, err := connect(ctx, "", *verbose)
	if err != nil {
		return err
	}
	list, err := viewstate.OpenProjectList(ctx, a.store, a.log)
	if err != nil {
		return err
	}
	defer list.Close()

	list.SetInput(*name)
	createCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	project, err := list.Create(createCtx)
	if err != nil {
		return err
	}
	fmt.Printf("project created: %s (%s)\n", project.ID, project.Name)
	return nil
}

func projectWatch(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("project watch", flag.ExitOnError)
	verbose := fs.Bool("v", false, "Verbose logging")
	fs.Parse(args)

	a, err := connect(ctx, "", *verbose)
	if err != nil {
		return err
	}
	list, err := viewstate.OpenProjectList(ctx, a.store, a.log)
	if err != nil {
		return err
	}
	defer list.Close()

	return runWatch(ctx, watchSource{
		Title:   "Projects",
		Changes: list.Changes(),
		Snapshot: func() (viewstate.Phase, error, []watchRow) {
			state := list.State()
			return state.Phase, state.Err, plainRows(projectLines(state.Items))
		},
	})
}

func plainRows(lines []string) []watchRow {
	rows := make([]watchRow, len(lines))
	for i, line := range lines {
		rows[i] = watchRow{Text: line}
	}
	return rows
}

func projectLines(projects []domain.Project) []string {
	lines := make([]string, 0, len(projects))
	for _, p := range projects {
		lines = append(lines, fmt.Sprintf("%s\t%s\t%s", p.ID, p.Name, p.CreatedAt.Local().Format(time.RFC3339)))
	}
	return lines
}

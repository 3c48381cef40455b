package repository

import (
	"errors"
	"testing"
)

func TestPathStrings(t *testing.T) {
	scope := Scope{AppID: "app", UserID: "u1"}
	if got := scope.ProjectsPath().String(); got != "artifacts/app/users/u1/projects" {
		t.Fatalf("unexpected projects path %s", got)
	}
	if got := scope.LogsPath("p1").String(); got != "artifacts/app/users/u1/projects/p1/logs" {
		t.Fatalf("unexpected logs path %s", got)
	}
	if got := scope.LogPath("p1", "l1"); got != "artifacts/app/users/u1/projects/p1/logs/l1" {
		t.Fatalf("unexpected log path %s", got)
	}
}

func TestParsePathRoundTrip(t *testing.T) {
	scope := Scope{AppID: "app", UserID: "u1"}
	for _, p := range []Path{scope.ProjectsPath(), scope.LogsPath("p1")} {
		parsed, err := ParsePath(p.String())
		if err != nil {
			t.Fatalf("parse %s: %v", p, err)
		}
		if parsed != p {
			t.Fatalf("round trip mismatch: %+v != %+v", parsed, p)
		}
	}
}

func TestParsePathRejectsUnknownShapes(t *testing.T) {
	for _, raw := range []string{
		"",
		"artifacts/app/users/u1",
		"artifacts/app/users/u1/projects/p1",
		"artifacts/app/users/u1/projects/p1/comments",
		"artifacts//users/u1/projects",
		"docs/app/users/u1/projects",
	} {
		if _, err := ParsePath(raw); !errors.Is(err, ErrInvalidArgument) {
			t.Fatalf("expected ErrInvalidArgument for %q, got %v", raw, err)
		}
	}
}

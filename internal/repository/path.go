package repository

import (
	"fmt"
	"strings"
)

// Scope is the owner of a set of collections: one user inside one app.
type Scope struct {
	AppID  string
	UserID string
}

// Valid reports whether both halves of the scope are present.
func (s Scope) Valid() bool {
	return strings.TrimSpace(s.AppID) != "" && strings.TrimSpace(s.UserID) != ""
}

func (s Scope) userPath() string {
	return "artifacts/" + s.AppID + "/users/" + s.UserID
}

// ProjectsPath addresses the project collection of the scope.
func (s Scope) ProjectsPath() Path {
	return Path{Scope: s, Collection: CollectionProjects}
}

// LogsPath addresses the log collection of one project.
func (s Scope) LogsPath(projectID string) Path {
	return Path{Scope: s, Collection: CollectionLogs, ProjectID: projectID}
}

// LogPath addresses a single log document.
func (s Scope) LogPath(projectID, logID string) string {
	return s.LogsPath(projectID).String() + "/" + logID
}

// Collection names a subscribable collection kind.
type Collection string

const (
	CollectionProjects Collection = "projects"
	CollectionLogs     Collection = "logs"
)

// Path identifies a collection, for example
// artifacts/{appId}/users/{userId}/projects/{projectId}/logs.
type Path struct {
	Scope      Scope
	Collection Collection
	ProjectID  string
}

func (p Path) String() string {
	switch p.Collection {
	case CollectionLogs:
		return p.Scope.userPath() + "/projects/" + p.ProjectID + "/logs"
	default:
		return p.Scope.userPath() + "/projects"
	}
}

// ParsePath reverses Path.String.
func ParsePath(raw string) (Path, error) {
	parts := strings.Split(strings.Trim(raw, "/"), "/")
	for _, part := range parts {
		if part == "" {
			return Path{}, fmt.Errorf("%w: malformed path %q", ErrInvalidArgument, raw)
		}
	}
	if len(parts) < 5 || parts[0] != "artifacts" || parts[2] != "users" || parts[4] != "projects" {
		return Path{}, fmt.Errorf("%w: unknown path %q", ErrInvalidArgument, raw)
	}
	scope := Scope{AppID: parts[1], UserID: parts[3]}
	switch len(parts) {
	case 5:
		return scope.ProjectsPath(), nil
	case 7:
		if parts[6] == "logs" {
			return scope.LogsPath(parts[5]), nil
		}
	}
	return Path{}, fmt.Errorf("%w: unknown path %q", ErrInvalidArgument, raw)
}

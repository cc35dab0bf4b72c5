package gcloud

import (
	"context"
	"errors"
	"fmt"
	"strings"

	resourcemanager "cloud.google.com/go/resourcemanager/apiv3"
	"cloud.google.com/go/resourcemanager/apiv3/resourcemanagerpb"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/journai/journai-ops/internal/command"
)

// ErrProjectNotFound means the project does not exist or is not visible to the caller.
var ErrProjectNotFound = errors.New("project not found")

// Project identifies a GCP project.
type Project struct {
	ID     string
	Number string
}

// ProjectFinder looks up an existing project.
type ProjectFinder interface {
	FindProject(ctx context.Context, projectID string) (Project, error)
}

// CLIProjectFinder uses `gcloud projects describe`.
type CLIProjectFinder struct {
	exec command.Executor
}

// NewCLIProjectFinder returns a finder that shells out to gcloud.
func NewCLIProjectFinder(exec command.Executor) *CLIProjectFinder {
	return &CLIProjectFinder{exec: exec}
}

// FindProject returns ErrProjectNotFound when gcloud reports the project missing.
func (f *CLIProjectFinder) FindProject(ctx context.Context, projectID string) (Project, error) {
	res, err := f.exec.Run(ctx, command.New(Binary,
		"projects", "describe", projectID,
		"--format=value(projectNumber)",
	))
	if err != nil {
		if IsNotFound(err) || IsPermissionDenied(err) {
			return Project{}, fmt.Errorf("%w: %s", ErrProjectNotFound, projectID)
		}
		return Project{}, err
	}
	return Project{ID: projectID, Number: res.Line()}, nil
}

// ProjectsAPI is the subset of the Resource Manager client used here.
type ProjectsAPI interface {
	GetProject(ctx context.Context, name string) (*resourcemanagerpb.Project, error)
	Close() error
}

type defaultProjectsClient struct {
	client *resourcemanager.ProjectsClient
}

func (c *defaultProjectsClient) GetProject(ctx context.Context, name string) (*resourcemanagerpb.Project, error) {
	return c.client.GetProject(ctx, &resourcemanagerpb.GetProjectRequest{Name: name})
}

func (c *defaultProjectsClient) Close() error {
	return c.client.Close()
}

// ResourceManagerFinder queries the Resource Manager API directly using
// application default credentials.
type ResourceManagerFinder struct {
	api ProjectsAPI
}

// NewResourceManagerFinder dials the Resource Manager API.
func NewResourceManagerFinder(ctx context.Context) (*ResourceManagerFinder, error) {
	client, err := resourcemanager.NewProjectsClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCP projects client: %w", err)
	}
	return &ResourceManagerFinder{api: &defaultProjectsClient{client: client}}, nil
}

// NewResourceManagerFinderWithAPI wraps an existing client.
func NewResourceManagerFinderWithAPI(api ProjectsAPI) *ResourceManagerFinder {
	return &ResourceManagerFinder{api: api}
}

// FindProject maps NotFound, and PermissionDenied for invisible projects, to ErrProjectNotFound.
func (f *ResourceManagerFinder) FindProject(ctx context.Context, projectID string) (Project, error) {
	project, err := f.api.GetProject(ctx, "projects/"+projectID)
	if err != nil {
		//nolint:exhaustive // only NotFound and PermissionDenied mean "absent"
		switch status.Code(err) {
		case codes.NotFound:
			return Project{}, fmt.Errorf("%w: %s", ErrProjectNotFound, projectID)
		case codes.PermissionDenied:
			if strings.Contains(err.Error(), "or it may not exist") {
				return Project{}, fmt.Errorf("%w: %s", ErrProjectNotFound, projectID)
			}
		}
		return Project{}, fmt.Errorf("failed to get project: %w", err)
	}

	return Project{
		ID:     project.GetProjectId(),
		Number: strings.TrimPrefix(project.GetName(), "projects/"),
	}, nil
}

// Close releases the underlying client.
func (f *ResourceManagerFinder) Close() error {
	return f.api.Close()
}

package authz

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"taskboard/api/internal/store"
)

type fakeProjects struct {
	getProject func(ctx context.Context, projectID string) (store.Project, error)
}

func (f *fakeProjects) GetProject(ctx context.Context, projectID string) (store.Project, error) {
	return f.getProject(ctx, projectID)
}

func TestAuthorize(t *testing.T) {
	project := store.Project{
		ID:            "prj_1",
		Name:          "launch",
		OwnerID:       "usr_owner",
		Collaborators: []string{"usr_collab_a", "usr_collab_b"},
	}
	storeErr := errors.New("connection reset")

	tests := []struct {
		name       string
		getErr     error
		actorID    string
		authorized bool
		reason     Reason
		wantErr    error
	}{
		{name: "owner", actorID: "usr_owner", authorized: true},
		{name: "collaborator", actorID: "usr_collab_b", authorized: true},
		{name: "outsider", actorID: "usr_stranger", reason: ReasonNotAuthorized},
		{name: "empty actor", actorID: "", reason: ReasonNotAuthorized},
		{name: "absent project", getErr: sql.ErrNoRows, actorID: "usr_owner", reason: ReasonProjectNotFound},
		{name: "store failure", getErr: storeErr, actorID: "usr_owner", wantErr: storeErr},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			engine := NewEngine(&fakeProjects{
				getProject: func(ctx context.Context, projectID string) (store.Project, error) {
					if tc.getErr != nil {
						return store.Project{}, tc.getErr
					}
					return project, nil
				},
			})
			decision, err := engine.Authorize(context.Background(), project.ID, tc.actorID)
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("Authorize error = %v, want %v", err, tc.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Authorize: %v", err)
			}
			if decision.Authorized != tc.authorized {
				t.Fatalf("Authorized = %v, want %v", decision.Authorized, tc.authorized)
			}
			if decision.Reason != tc.reason {
				t.Fatalf("Reason = %q, want %q", decision.Reason, tc.reason)
			}
			if tc.authorized && decision.Project.ID != project.ID {
				t.Fatalf("Project.ID = %q, want %q", decision.Project.ID, project.ID)
			}
		})
	}
}

package service_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"melange-connection-backend/internal/domain"
	"melange-connection-backend/internal/repository"
	"melange-connection-backend/internal/service"
)

func TestAssignRole(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name          string
		mentorFor     []int32
		adminFor      []int32
		role          domain.Role
		wantMentorFor []int32
		wantAdminFor  []int32
		wantChanged   bool
	}{
		{"Mentor from nothing", nil, nil, domain.RoleMentor, []int32{10}, nil, true},
		{"Admin implies mentor", nil, nil, domain.RoleOrgAdmin, []int32{10}, []int32{10}, true},
		{"Mentor again", []int32{10}, nil, domain.RoleMentor, []int32{10}, nil, false},
		{"Admin again", []int32{10}, []int32{10}, domain.RoleOrgAdmin, []int32{10}, []int32{10}, false},
		{"Mentor demotes admin", []int32{10, 20}, []int32{10}, domain.RoleMentor, []int32{10, 20}, []int32{}, true},
		{"Mentor upgraded to admin", []int32{20, 10}, []int32{20}, domain.RoleOrgAdmin, []int32{20, 10}, []int32{20, 10}, true},
		{"Other organizations untouched", []int32{20}, []int32{20}, domain.RoleMentor, []int32{20, 10}, []int32{20}, true},
		{"None clears", []int32{10, 20}, []int32{10}, domain.RoleNone, []int32{20}, []int32{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMemStore()
			store.addProfile(domain.Profile{ID: 1, Status: domain.ProfileStatusActive, MentorFor: tt.mentorFor, AdminFor: tt.adminFor})

			var changed bool
			err := store.WithinTx(ctx, func(ctx context.Context, repos *repository.Repositories) error {
				var err error
				changed, err = service.AssignRoleByID(ctx, repos, 1, 10, tt.role)
				return err
			})
			require.NoError(t, err)
			assert.Equal(t, tt.wantChanged, changed)

			p := store.profile(1)
			assert.ElementsMatch(t, tt.wantMentorFor, p.MentorFor)
			assert.ElementsMatch(t, tt.wantAdminFor, p.AdminFor)
			for _, id := range p.AdminFor {
				assert.Contains(t, p.MentorFor, id, "admin must also be mentor")
			}
		})
	}
}

func TestAssignRole_Twice(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	store.addProfile(domain.Profile{ID: 1, Status: domain.ProfileStatusActive})
	repos := store.Repos()

	profile, err := repos.Profiles.GetForUpdate(ctx, 1)
	require.NoError(t, err)

	changed, err := service.AssignRole(ctx, repos, profile, 10, domain.RoleOrgAdmin)
	require.NoError(t, err)
	assert.True(t, changed)
	changed, err = service.AssignRole(ctx, repos, profile, 10, domain.RoleOrgAdmin)
	require.NoError(t, err)
	assert.False(t, changed)

	assert.Equal(t, []int32{10}, store.profile(1).MentorFor)
	assert.Equal(t, []int32{10}, store.profile(1).AdminFor)
}

func TestAssignRole_UnknownRole(t *testing.T) {
	store := newMemStore()
	store.addProfile(domain.Profile{ID: 1})
	profile := store.profile(1)

	_, err := service.AssignRole(context.Background(), store.Repos(), &profile, 10, domain.Role("OWNER"))
	assert.True(t, domain.IsValidation(err))
}

func TestClearRoleByID(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	store.addProfile(domain.Profile{ID: 1, MentorFor: []int32{10}, AdminFor: []int32{10}})

	changed, err := service.ClearRoleByID(ctx, store.Repos(), 1, 10)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Empty(t, store.profile(1).MentorFor)
	assert.Empty(t, store.profile(1).AdminFor)

	changed, err = service.ClearRoleByID(ctx, store.Repos(), 1, 10)
	require.NoError(t, err)
	assert.False(t, changed)

	_, err = service.ClearRoleByID(ctx, store.Repos(), 2, 10)
	assert.True(t, domain.IsNotFound(err))
}

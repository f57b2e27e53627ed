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

func TestOutboxNotifier_Recipients(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	org := &domain.Organization{ID: orgID, Name: "Melange Org", Status: domain.OrganizationStatusAccepted}
	store.addOrg(*org)
	store.addProfile(domain.Profile{ID: 2, Email: "a@example.com", Status: domain.ProfileStatusActive, NotifyConnectionUpdates: true, MentorFor: []int32{orgID}, AdminFor: []int32{orgID}})
	store.addProfile(domain.Profile{ID: 3, Email: "b@example.com", Status: domain.ProfileStatusActive, NotifyConnectionUpdates: false, MentorFor: []int32{orgID}, AdminFor: []int32{orgID}})
	store.addProfile(domain.Profile{ID: 4, Email: "c@example.com", Status: domain.ProfileStatusInvalid, NotifyConnectionUpdates: true, MentorFor: []int32{orgID}, AdminFor: []int32{orgID}})
	store.addProfile(domain.Profile{ID: 5, Email: "d@example.com", Status: domain.ProfileStatusActive, NotifyConnectionUpdates: true, MentorFor: []int32{orgID}, AdminFor: []int32{orgID}})

	notifier := service.NewOutboxNotifier("Summer of Code", "https://melange.example.com", "")
	enqueue := func(profile *domain.Profile, actor domain.Side) {
		ev := service.ConnectionEvent{
			Connection:   &domain.Connection{ID: 42, ProfileID: profile.ID, OrganizationID: orgID},
			Profile:      profile,
			Organization: org,
			Actor:        actor,
		}
		require.NoError(t, store.WithinTx(ctx, func(ctx context.Context, repos *repository.Repositories) error {
			return notifier.MessagePosted(ctx, repos, ev, "hello")
		}))
	}

	t.Run("Org side gets opted-in active admins other than the profile", func(t *testing.T) {
		profile := store.profile(5)
		enqueue(&profile, domain.SideUser)

		notes := store.notificationsOf(domain.NotificationNewMessage)
		require.Len(t, notes, 1)
		assert.Equal(t, []string{"a@example.com"}, notes[0].Recipients)
		require.NotNil(t, notes[0].ConnectionID)
		assert.Equal(t, int32(42), *notes[0].ConnectionID)
		assert.Contains(t, notes[0].Body, "hello")
		assert.Contains(t, notes[0].Body, "https://melange.example.com/connections/42")
	})

	t.Run("Each admin gets a row of their own", func(t *testing.T) {
		store.addProfile(domain.Profile{ID: 7, Email: "e@example.com", Status: domain.ProfileStatusActive, NotifyConnectionUpdates: true, MentorFor: []int32{orgID}, AdminFor: []int32{orgID}})
		before := len(store.notificationsOf(domain.NotificationNewMessage))
		profile := store.profile(5)
		enqueue(&profile, domain.SideUser)

		notes := store.notificationsOf(domain.NotificationNewMessage)[before:]
		require.Len(t, notes, 2)
		var got []string
		for _, n := range notes {
			require.Len(t, n.Recipients, 1)
			got = append(got, n.Recipients[0])
			assert.Equal(t, notes[0].Body, n.Body)
		}
		assert.ElementsMatch(t, []string{"a@example.com", "e@example.com"}, got)
	})

	t.Run("User who opted out gets nothing", func(t *testing.T) {
		profile := &domain.Profile{ID: 6, Name: "Quiet", Email: "quiet@example.com", NotifyConnectionUpdates: false}
		before := len(store.notificationsOf(domain.NotificationNewMessage))
		enqueue(profile, domain.SideOrg)
		assert.Len(t, store.notificationsOf(domain.NotificationNewMessage), before)
	})
}

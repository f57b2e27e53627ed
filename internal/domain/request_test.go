package domain

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoleSelectionRequest(t *testing.T) {
	t.Run("Message is sanitised", func(t *testing.T) {
		role, msg, err := RoleSelectionRequest{Role: "ROLE", Message: " <b>Yes</b><script>x</script> "}.UserSelection(500)
		require.NoError(t, err)
		assert.Equal(t, UserRoleRole, role)
		assert.Equal(t, "<b>Yes</b>", msg)
	})

	t.Run("Blank message is dropped", func(t *testing.T) {
		for _, content := range []string{"", "   ", "<p> </p>", "<p>&nbsp;</p>"} {
			_, msg, err := RoleSelectionRequest{Role: "ROLE", Message: content}.UserSelection(500)
			require.NoError(t, err, "content %q", content)
			assert.Empty(t, msg, "content %q", content)
		}
	})

	t.Run("Overlong message is rejected", func(t *testing.T) {
		_, _, err := RoleSelectionRequest{Role: "ROLE", Message: strings.Repeat("x", 5000)}.UserSelection(500)
		var verr *ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, "message", verr.Field)

		_, _, err = RoleSelectionRequest{Role: "MENTOR_ROLE", Message: strings.Repeat("x", 501)}.OrgSelection(500)
		assert.ErrorAs(t, err, &verr)

		_, msg, err := RoleSelectionRequest{Role: "MENTOR_ROLE", Message: strings.Repeat("x", 5000)}.OrgSelection(0)
		require.NoError(t, err)
		assert.Len(t, msg, 5000)
	})

	t.Run("Unknown role", func(t *testing.T) {
		_, _, err := RoleSelectionRequest{Role: "ORG_ADMIN_ROLE"}.UserSelection(500)
		assert.True(t, IsValidation(err))
		_, _, err = RoleSelectionRequest{Role: "ROLE"}.OrgSelection(500)
		assert.True(t, IsValidation(err))
	})
}

func TestCleanMessage(t *testing.T) {
	_, err := CleanMessage("content", "<p> </p>", 500)
	assert.True(t, IsValidation(err))

	clean, err := CleanMessage("content", "héllo", 5)
	require.NoError(t, err)
	assert.Equal(t, "héllo", clean)

	_, err = CleanMessage("content", "héllo!", 5)
	assert.True(t, IsValidation(err))
}

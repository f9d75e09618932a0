package services

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskflow/internal/authz"
	"taskflow/internal/models"
)

func TestRegisterAndLoginPM(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	in := RegisterPMInput{Name: "Ada", Email: "Ada@Example.com", Mobile: "555", Password: "secret1"}
	res, err := env.identity.RegisterPM(ctx, in, pngUpload("ada.png"))
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", res.PM.Email)
	assert.True(t, strings.HasPrefix(res.PM.PMCode, "PM"))
	assert.Equal(t, "/files/profiles/ada.png", res.PM.ProfilePic)
	assert.NotEqual(t, "secret1", res.PM.PasswordHash)

	claims, err := authz.ParseToken([]byte("test"), res.Token)
	require.NoError(t, err)
	assert.Equal(t, res.PM.ID, claims.UserID)
	assert.Equal(t, authz.RolePM, claims.Role)

	t.Run("duplicate email", func(t *testing.T) {
		in.Email = "ADA@example.com"
		_, err := env.identity.RegisterPM(ctx, in, pngUpload("x.png"))
		assert.ErrorIs(t, err, ErrDuplicate)
	})

	t.Run("validation", func(t *testing.T) {
		_, err := env.identity.RegisterPM(ctx, RegisterPMInput{Name: "B", Email: "b@example.com", Mobile: "1", Password: "123"}, pngUpload("b.png"))
		assert.ErrorIs(t, err, ErrValidation)
		_, err = env.identity.RegisterPM(ctx, RegisterPMInput{Name: "B", Email: "b@example.com", Mobile: "1", Password: "123456"}, nil)
		assert.ErrorIs(t, err, ErrValidation)
		_, err = env.identity.RegisterPM(ctx, RegisterPMInput{Name: "B", Email: "not-an-email", Mobile: "1", Password: "123456"}, pngUpload("b.png"))
		assert.ErrorIs(t, err, ErrValidation)
	})

	t.Run("login", func(t *testing.T) {
		_, err := env.identity.LoginPM(ctx, "ada@example.com", "wrong!")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
		_, err = env.identity.LoginPM(ctx, "nobody@example.com", "secret1")
		assert.ErrorIs(t, err, ErrNotFound)
		got, err := env.identity.LoginPM(ctx, " ADA@example.com", "secret1")
		require.NoError(t, err)
		assert.Equal(t, res.PM.ID, got.PM.ID)
	})
}

func TestEmployees(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	tm := env.seedTeam(t, "a")
	other := env.seedTeam(t, "b")

	t.Run("credentials email is queued", func(t *testing.T) {
		var found bool
		for _, m := range env.store.OutboxMessages() {
			var p models.EmailPayload
			require.NoError(t, json.Unmarshal(m.Payload, &p))
			if p.To == tm.dev.Email {
				found = true
				assert.Contains(t, p.HTML, "D-a")
				assert.Contains(t, p.HTML, "devpass")
				assert.Contains(t, p.HTML, "http://localhost/login")
			}
		}
		assert.True(t, found)
		assert.GreaterOrEqual(t, env.trigger.n, 4)
	})

	t.Run("same emp id may hold both roles", func(t *testing.T) {
		_, err := env.identity.CreateEmployee(ctx, tm.pm.ID, CreateEmployeeInput{
			EmpID: "D-a", Password: "another", Role: models.RoleTester, Email: "dual@example.com",
		})
		require.NoError(t, err)
		_, err = env.identity.CreateEmployee(ctx, tm.pm.ID, CreateEmployeeInput{
			EmpID: "D-a", Password: "another", Role: models.RoleDeveloper, Email: "dual2@example.com",
		})
		assert.ErrorIs(t, err, ErrDuplicate)
		_, err = env.identity.CreateEmployee(ctx, tm.pm.ID, CreateEmployeeInput{
			EmpID: "Z", Password: "another", Role: models.RoleDeveloper, Email: tm.dev.Email,
		})
		assert.ErrorIs(t, err, ErrDuplicate)
	})

	t.Run("employee login", func(t *testing.T) {
		res, err := env.identity.LoginEmployee(ctx, "D-a", "devpass", models.RoleDeveloper)
		require.NoError(t, err)
		claims, err := authz.ParseToken([]byte("test"), res.Token)
		require.NoError(t, err)
		assert.Equal(t, tm.dev.ID, claims.UserID)
		assert.Equal(t, authz.RoleDeveloper, claims.Role)

		_, err = env.identity.LoginEmployee(ctx, "D-a", "devpass", models.RoleTester)
		assert.ErrorIs(t, err, ErrInvalidCredentials)
		_, err = env.identity.LoginEmployee(ctx, "nobody", "devpass", models.RoleDeveloper)
		assert.ErrorIs(t, err, ErrInvalidCredentials)
		_, err = env.identity.LoginEmployee(ctx, "D-a", "devpass", "Manager")
		assert.ErrorIs(t, err, ErrValidation)
	})

	t.Run("inactive account", func(t *testing.T) {
		_, err := env.identity.UpdateEmployeeStatus(ctx, other.pm.ID, tm.dev.ID, models.EmployeeInactive)
		assert.ErrorIs(t, err, ErrForbidden)

		_, err = env.identity.UpdateEmployeeStatus(ctx, tm.pm.ID, tm.dev.ID, models.EmployeeInactive)
		require.NoError(t, err)
		_, err = env.identity.LoginEmployee(ctx, "D-a", "devpass", models.RoleDeveloper)
		assert.ErrorIs(t, err, ErrInactiveAccount)

		active, err := env.identity.ListActiveByRole(ctx, tm.pm.ID, models.RoleDeveloper)
		require.NoError(t, err)
		assert.Empty(t, active)

		_, err = env.identity.UpdateEmployeeStatus(ctx, tm.pm.ID, tm.dev.ID, models.EmployeeActive)
		require.NoError(t, err)
	})

	t.Run("profile update ignores blanks", func(t *testing.T) {
		name, blank := "Grace", "  "
		emp, err := env.identity.UpdateEmployeeProfile(ctx, tm.test.ID, UpdateProfileInput{Name: &name, Mobile: &blank}, pngUpload("g.png"))
		require.NoError(t, err)
		assert.Equal(t, "Grace", emp.Name)
		assert.Equal(t, "N/A", emp.Mobile)
		assert.Equal(t, "/files/profiles/g.png", emp.ProfilePhoto)
	})

	t.Run("referenced employee cannot be deleted", func(t *testing.T) {
		env.newTask(t, tm, env.newProject(t, tm, 1).ID, "T")
		err := env.identity.DeleteEmployee(ctx, tm.pm.ID, tm.dev.ID)
		assert.ErrorIs(t, err, ErrConflict)

		spare, err := env.identity.CreateEmployee(ctx, tm.pm.ID, CreateEmployeeInput{
			EmpID: "spare", Password: "spare1", Role: models.RoleDeveloper, Email: "spare@example.com",
		})
		require.NoError(t, err)
		assert.ErrorIs(t, env.identity.DeleteEmployee(ctx, other.pm.ID, spare.ID), ErrForbidden)
		require.NoError(t, env.identity.DeleteEmployee(ctx, tm.pm.ID, spare.ID))
		_, err = env.identity.GetEmployee(ctx, spare.ID)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("listing is per PM", func(t *testing.T) {
		mine, err := env.identity.ListEmployees(ctx, other.pm.ID)
		require.NoError(t, err)
		assert.Len(t, mine, 2)
	})
}

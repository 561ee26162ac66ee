package service

import (
	"context"
	"testing"

	"smartfarm-backend/internal/config"
	"smartfarm-backend/internal/domain"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testJWTSecret = "unit-test-secret"

func newAuthFixture(t *testing.T) (*AuthService, *fakeUsersRepo, *domain.User) {
	t.Helper()
	users := newFakeUsersRepo()
	farms := newFakeFarmsRepo()
	farms.put(&domain.Farm{FarmID: "farm-reg", Name: "East Field", Location: "east", Size: 5, SizeUnit: "hectares"})
	mail := NewMailClient(config.MailConfig{}, zap.NewNop())
	svc := NewAuthService(users, farms, mail, config.JWTConfig{Secret: testJWTSecret, ExpireHours: 24}, zap.NewNop())

	hash, err := domain.HashPassword("Secr3tPass!")
	require.NoError(t, err)
	user := users.put(&domain.User{
		Username:     "jane.doe",
		Email:        "jane@test.local",
		PasswordHash: hash,
		FirstName:    "Jane",
		LastName:     "Doe",
		Role:         domain.RoleFarmOwner,
		IsActive:     true,
	})
	return svc, users, user
}

func TestLogin(t *testing.T) {
	ctx := context.Background()

	t.Run("valid credentials issue a parsable token", func(t *testing.T) {
		svc, _, user := newAuthFixture(t)
		resp, err := svc.Login(ctx, &LoginRequest{Username: "jane.doe", Password: "Secr3tPass!"})
		require.NoError(t, err)
		require.NotEmpty(t, resp.Token)
		require.Equal(t, user.UserID, resp.User.UserID)

		claims := &AuthClaims{}
		_, err = jwt.ParseWithClaims(resp.Token, claims, func(token *jwt.Token) (interface{}, error) {
			return []byte(testJWTSecret), nil
		})
		require.NoError(t, err)
		require.Equal(t, user.UserID, claims.UserID)
		require.Equal(t, string(domain.RoleFarmOwner), claims.Role)
	})

	t.Run("wrong password", func(t *testing.T) {
		svc, _, _ := newAuthFixture(t)
		_, err := svc.Login(ctx, &LoginRequest{Username: "jane.doe", Password: "nope"})
		require.Error(t, err)
		require.EqualError(t, err, "invalid username or password")
	})

	t.Run("unknown user gets the same message", func(t *testing.T) {
		svc, _, _ := newAuthFixture(t)
		_, err := svc.Login(ctx, &LoginRequest{Username: "ghost", Password: "whatever"})
		require.Error(t, err)
		require.EqualError(t, err, "invalid username or password")
	})

	t.Run("deactivated account", func(t *testing.T) {
		svc, users, user := newAuthFixture(t)
		require.NoError(t, users.SetActive(ctx, user.UserID, false))
		_, err := svc.Login(ctx, &LoginRequest{Username: "jane.doe", Password: "Secr3tPass!"})
		require.EqualError(t, err, "account is deactivated")
	})
}

func TestRegister(t *testing.T) {
	ctx := context.Background()

	valid := func() *RegisterRequest {
		return &RegisterRequest{
			Username:  "new.worker",
			Email:     "New.Worker@test.local",
			Password:  "Secr3tPass!",
			FirstName: "New",
			LastName:  "Worker",
			Role:      "worker",
			FarmID:    "farm-reg",
		}
	}

	t.Run("worker registers and can log in", func(t *testing.T) {
		svc, users, _ := newAuthFixture(t)
		resp, err := svc.Register(ctx, valid())
		require.NoError(t, err)
		require.Equal(t, string(domain.RoleWorker), resp.User.Role)
		require.Equal(t, "new.worker@test.local", resp.User.Email)
		require.Equal(t, "farm-reg", resp.User.AssignedFarmID)

		created, err := users.GetUser(ctx, resp.User.UserID)
		require.NoError(t, err)
		require.True(t, created.IsActive)

		_, err = svc.Login(ctx, &LoginRequest{Username: "new.worker", Password: "Secr3tPass!"})
		require.NoError(t, err)
	})

	t.Run("privileged roles are not self-service", func(t *testing.T) {
		svc, _, _ := newAuthFixture(t)
		var verr *domain.ValidationError
		for _, role := range []string{"SYSTEM_ADMIN", "FARM_OWNER", ""} {
			req := valid()
			req.Role = role
			_, err := svc.Register(ctx, req)
			require.ErrorAs(t, err, &verr, "role %q", role)
		}
	})

	t.Run("short password", func(t *testing.T) {
		svc, _, _ := newAuthFixture(t)
		req := valid()
		req.Password = "short"
		var verr *domain.ValidationError
		_, err := svc.Register(ctx, req)
		require.ErrorAs(t, err, &verr)
	})

	t.Run("unknown farm", func(t *testing.T) {
		svc, _, _ := newAuthFixture(t)
		req := valid()
		req.FarmID = "farm-missing"
		var verr *domain.ValidationError
		_, err := svc.Register(ctx, req)
		require.ErrorAs(t, err, &verr)
	})

	t.Run("duplicate username", func(t *testing.T) {
		svc, _, _ := newAuthFixture(t)
		_, err := svc.Register(ctx, valid())
		require.NoError(t, err)
		req := valid()
		req.Email = "other@test.local"
		var verr *domain.ValidationError
		_, err = svc.Register(ctx, req)
		require.ErrorAs(t, err, &verr)
	})
}

func TestChangePassword(t *testing.T) {
	ctx := context.Background()

	t.Run("success clears must-change flag and new password works", func(t *testing.T) {
		svc, users, user := newAuthFixture(t)
		require.NoError(t, users.UpdatePassword(ctx, user.UserID, user.PasswordHash, true))

		err := svc.ChangePassword(ctx, user.UserID, &ChangePasswordRequest{
			CurrentPassword: "Secr3tPass!",
			NewPassword:     "NewSecr3t!",
			ConfirmPassword: "NewSecr3t!",
		})
		require.NoError(t, err)

		updated, err := users.GetUser(ctx, user.UserID)
		require.NoError(t, err)
		require.False(t, updated.MustChangePassword)

		_, err = svc.Login(ctx, &LoginRequest{Username: "jane.doe", Password: "NewSecr3t!"})
		require.NoError(t, err)
	})

	t.Run("rejects short password", func(t *testing.T) {
		svc, _, user := newAuthFixture(t)
		err := svc.ChangePassword(ctx, user.UserID, &ChangePasswordRequest{
			CurrentPassword: "Secr3tPass!",
			NewPassword:     "short",
			ConfirmPassword: "short",
		})
		var verr *domain.ValidationError
		require.ErrorAs(t, err, &verr)
	})

	t.Run("rejects mismatched confirmation", func(t *testing.T) {
		svc, _, user := newAuthFixture(t)
		err := svc.ChangePassword(ctx, user.UserID, &ChangePasswordRequest{
			CurrentPassword: "Secr3tPass!",
			NewPassword:     "NewSecr3t!",
			ConfirmPassword: "Different!",
		})
		var verr *domain.ValidationError
		require.ErrorAs(t, err, &verr)
	})

	t.Run("rejects wrong current password", func(t *testing.T) {
		svc, _, user := newAuthFixture(t)
		err := svc.ChangePassword(ctx, user.UserID, &ChangePasswordRequest{
			CurrentPassword: "wrong",
			NewPassword:     "NewSecr3t!",
			ConfirmPassword: "NewSecr3t!",
		})
		require.EqualError(t, err, "current password is incorrect")
	})
}

package service

import (
	"context"
	"testing"

	"smartfarm-backend/internal/config"
	"smartfarm-backend/internal/domain"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type notificationFixture struct {
	users *fakeUsersRepo
	svc   *NotificationService

	admin      *domain.User
	supervisor *domain.User
	worker     *domain.User
	owner      *domain.User
}

func newNotificationFixture(t *testing.T) *notificationFixture {
	t.Helper()
	users := newFakeUsersRepo()
	mail := NewMailClient(config.MailConfig{}, zap.NewNop())
	svc := NewNotificationService(newFakeKV(), users, mail, config.MailConfig{FromAddress: "noreply@test.local"}, zap.NewNop())

	fx := &notificationFixture{users: users, svc: svc}
	fx.admin = users.put(&domain.User{Username: "admin", Email: "admin@test.local", Role: domain.RoleSystemAdmin, IsActive: true})
	fx.supervisor = users.put(&domain.User{Username: "sup", Email: "sup@test.local", Role: domain.RoleSupervisor, IsActive: true})
	fx.worker = users.put(&domain.User{Username: "worker", Email: "worker@test.local", Role: domain.RoleWorker, IsActive: true})
	fx.owner = users.put(&domain.User{Username: "owner", Email: "owner@test.local", Role: domain.RoleFarmOwner, IsActive: true})
	return fx
}

func TestNotificationHistoryRoundTrip(t *testing.T) {
	ctx := context.Background()
	fx := newNotificationFixture(t)

	fx.svc.Push(ctx, fx.worker.UserID, &Notification{Type: "task", Title: "first", Body: "b1"})
	fx.svc.Push(ctx, fx.worker.UserID, &Notification{Type: "task", Title: "second", Body: "b2"})

	items, err := fx.svc.History(ctx, fx.worker.UserID, 0)
	require.NoError(t, err)
	require.Len(t, items, 2)
	// 新通知在前
	require.Equal(t, "second", items[0].Title)
	require.NotEmpty(t, items[0].NotificationID)
	require.NotEmpty(t, items[0].CreatedAt)

	require.NoError(t, fx.svc.Clear(ctx, fx.worker.UserID))
	items, err = fx.svc.History(ctx, fx.worker.UserID, 0)
	require.NoError(t, err)
	require.Empty(t, items)
}

func TestSendNotification(t *testing.T) {
	ctx := context.Background()

	t.Run("supervisor sends to workers and feeds their streams", func(t *testing.T) {
		fx := newNotificationFixture(t)
		err := fx.svc.Send(ctx, fx.supervisor.UserID, &SendNotificationRequest{
			Type:         "both",
			RecipientIDs: []string{fx.worker.UserID},
			Subject:      "Storm warning",
			Message:      "Secure the greenhouses before 6pm",
		})
		require.NoError(t, err)

		items, err := fx.svc.History(ctx, fx.worker.UserID, 0)
		require.NoError(t, err)
		require.Len(t, items, 1)
		require.Equal(t, "Storm warning", items[0].Title)
	})

	t.Run("worker and owner cannot send", func(t *testing.T) {
		fx := newNotificationFixture(t)
		req := &SendNotificationRequest{
			Type: "email", RecipientIDs: []string{fx.worker.UserID},
			Subject: "s", Message: "m",
		}
		require.ErrorIs(t, fx.svc.Send(ctx, fx.worker.UserID, req), domain.ErrPermissionDenied)
		require.ErrorIs(t, fx.svc.Send(ctx, fx.owner.UserID, req), domain.ErrPermissionDenied)
	})

	t.Run("validation", func(t *testing.T) {
		fx := newNotificationFixture(t)
		var verr *domain.ValidationError

		err := fx.svc.Send(ctx, fx.admin.UserID, &SendNotificationRequest{
			Type: "pigeon", RecipientIDs: []string{fx.worker.UserID}, Subject: "s", Message: "m",
		})
		require.ErrorAs(t, err, &verr)

		err = fx.svc.Send(ctx, fx.admin.UserID, &SendNotificationRequest{
			Type: "email", Subject: "s", Message: "m",
		})
		require.ErrorAs(t, err, &verr)

		err = fx.svc.Send(ctx, fx.admin.UserID, &SendNotificationRequest{
			Type: "email", RecipientIDs: []string{fx.worker.UserID},
		})
		require.ErrorAs(t, err, &verr)
	})
}

func TestNotificationConfig(t *testing.T) {
	ctx := context.Background()
	fx := newNotificationFixture(t)

	cfg, err := fx.svc.Config(ctx, fx.admin.UserID)
	require.NoError(t, err)
	require.Equal(t, "noreply@test.local", cfg.FromAddress)
	require.False(t, cfg.SmsEnabled)

	_, err = fx.svc.Config(ctx, fx.supervisor.UserID)
	require.ErrorIs(t, err, domain.ErrPermissionDenied)

	require.ErrorIs(t, fx.svc.UpdateConfig(ctx, fx.owner.UserID, nil), domain.ErrPermissionDenied)
	require.NoError(t, fx.svc.UpdateConfig(ctx, fx.admin.UserID, []byte(`{"email_enabled":false}`)))
}

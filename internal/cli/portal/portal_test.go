package portal

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gridsight-dev/gridsight/internal/cli/api"
	"github.com/gridsight-dev/gridsight/internal/cli/apitest"
	"github.com/gridsight-dev/gridsight/internal/cli/client"
	"github.com/gridsight-dev/gridsight/internal/cli/events"
	"github.com/gridsight-dev/gridsight/internal/cli/session"
)

type fixture struct {
	server  *apitest.Server
	store   *session.MemoryStore
	bus     *events.Bus
	service *Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	server := apitest.NewServer()
	t.Cleanup(server.Close)

	store := session.NewMemory()
	bus := events.New()
	c, err := client.New(client.Options{BaseURL: server.URL, Sessions: store, Bus: bus})
	require.NoError(t, err)

	return &fixture{
		server:  server,
		store:   store,
		bus:     bus,
		service: New(api.New(c), store),
	}
}

func (f *fixture) loginAs(t *testing.T, userType session.UserType, username string) {
	t.Helper()
	token := f.server.IssueToken(string(userType), username)
	require.NoError(t, f.store.Save(context.Background(), session.Session{Token: token, UserType: userType}))
}

func TestHashPassword(t *testing.T) {
	assert.Equal(t, "8c6976e5b5410415bde908bd4dee15dfb167a9c873fc4bb8a81f6f2ab448a918", HashPassword("admin"))
	assert.Equal(t, apitest.Hash("secret"), HashPassword("secret"))
}

func TestLogin(t *testing.T) {
	tests := []struct {
		name     string
		creds    Credentials
		wantRole session.UserType
	}{
		{
			name:     "admin",
			creds:    Credentials{Username: "admin", Password: "admin123", UserType: session.UserTypeAdmin},
			wantRole: session.UserTypeAdmin,
		},
		{
			name:     "user",
			creds:    Credentials{Username: "alice", Password: "alice123", UserType: session.UserTypeUser},
			wantRole: session.UserTypeUser,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()

			result, err := f.service.Login(ctx, tt.creds)
			require.NoError(t, err)
			assert.NotEmpty(t, result.Token)
			assert.Equal(t, tt.creds.Username, result.Username)

			sess, err := f.store.Load(ctx)
			require.NoError(t, err)
			assert.Equal(t, result.Token, sess.Token)
			assert.Equal(t, tt.wantRole, sess.UserType)
		})
	}
}

func TestLogin_QuotaFields(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	user, err := f.service.Login(ctx, Credentials{Username: "alice", Password: "alice123", UserType: session.UserTypeUser})
	require.NoError(t, err)
	require.NotNil(t, user.ImageLimit)
	assert.Equal(t, 10, *user.ImageLimit)

	admin, err := f.service.Login(ctx, Credentials{Username: "admin", Password: "admin123", UserType: session.UserTypeAdmin})
	require.NoError(t, err)
	assert.Nil(t, admin.ImageLimit)
}

func TestLogin_WrongPassword(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.service.Login(ctx, Credentials{Username: "alice", Password: "nope", UserType: session.UserTypeUser})
	require.Error(t, err)

	var appErr *api.ApplicationError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "用户名或密码错误", appErr.Message)

	sess, err := f.store.Load(ctx)
	require.NoError(t, err)
	assert.False(t, sess.Authenticated())
}

func TestLogin_Anonymous(t *testing.T) {
	f := newFixture(t)

	_, err := f.service.Login(context.Background(), Credentials{Username: "alice", Password: "alice123", UserType: session.UserTypeUser})
	require.NoError(t, err)

	req := f.server.LastRequest()
	require.NotNil(t, req)
	assert.Equal(t, "/api/auth/login", req.URL.Path)
	assert.Empty(t, req.Header.Get("Authorization"))
}

func TestLogin_Validation(t *testing.T) {
	tests := []struct {
		name  string
		creds Credentials
	}{
		{name: "missing username", creds: Credentials{Password: "x", UserType: session.UserTypeUser}},
		{name: "missing password", creds: Credentials{Username: "alice", UserType: session.UserTypeUser}},
		{name: "bad role", creds: Credentials{Username: "alice", Password: "x", UserType: "root"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			_, err := f.service.Login(context.Background(), tt.creds)

			var verrs validator.ValidationErrors
			require.ErrorAs(t, err, &verrs)
			assert.Empty(t, f.server.Requests())
		})
	}
}

func TestLogout(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.loginAs(t, session.UserTypeUser, "alice")

	require.NoError(t, f.service.Logout(ctx))

	sess, err := f.store.Load(ctx)
	require.NoError(t, err)
	assert.False(t, sess.Authenticated())
}

func TestRegister(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	msg, err := f.service.Register(ctx, Registration{Username: "bob", Password: "bob12345"})
	require.NoError(t, err)
	assert.Equal(t, "注册成功", msg)

	_, err = f.service.Register(ctx, Registration{Username: "bob", Password: "bob12345"})
	var appErr *api.ApplicationError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "用户名已存在", appErr.Message)

	_, err = f.service.Login(ctx, Credentials{Username: "bob", Password: "bob12345", UserType: session.UserTypeUser})
	require.NoError(t, err)
}

func TestRegister_Validation(t *testing.T) {
	f := newFixture(t)

	_, err := f.service.Register(context.Background(), Registration{Username: "b", Password: "123"})
	require.Error(t, err)
	assert.Empty(t, f.server.Requests())
}

func TestChangePassword(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.loginAs(t, session.UserTypeUser, "alice")

	_, err := f.service.ChangePassword(ctx, PasswordChange{OldPassword: "alice123", NewPassword: "alice123", UserType: session.UserTypeUser})
	require.Error(t, err, "new password must differ")

	_, err = f.service.ChangePassword(ctx, PasswordChange{OldPassword: "wrong", NewPassword: "newpass1", UserType: session.UserTypeUser})
	var appErr *api.ApplicationError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "旧密码不正确", appErr.Message)

	msg, err := f.service.ChangePassword(ctx, PasswordChange{OldPassword: "alice123", NewPassword: "newpass1", UserType: session.UserTypeUser})
	require.NoError(t, err)
	assert.Equal(t, "密码修改成功", msg)

	_, err = f.service.Login(ctx, Credentials{Username: "alice", Password: "newpass1", UserType: session.UserTypeUser})
	require.NoError(t, err)
}

func TestInfo(t *testing.T) {
	f := newFixture(t)
	f.loginAs(t, session.UserTypeUser, "alice")

	info, err := f.service.Info(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "alice", info.Username)
	assert.Equal(t, 10, info.ImageLimit)
	assert.Equal(t, 3, info.ImageUsed)

	req := f.server.LastRequest()
	assert.Contains(t, req.Header.Get("Authorization"), "Bearer token-alice-")
}

func TestCheckPermissions(t *testing.T) {
	f := newFixture(t)
	f.loginAs(t, session.UserTypeUser, "alice")

	perms, err := f.service.CheckPermissions(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "alice", perms.Username)
	assert.Equal(t, 0, perms.RealtimePermission)
}

func TestLogs_Pagination(t *testing.T) {
	f := newFixture(t)
	f.loginAs(t, session.UserTypeUser, "alice")

	page, err := f.service.Logs(context.Background(), PageQuery{Page: 2, Limit: 20})
	require.NoError(t, err)
	assert.Len(t, page.Items, 2)
	assert.Equal(t, 2, page.Total)
	assert.Equal(t, 2, page.Page)
	assert.Equal(t, 20, page.Limit)
	assert.Equal(t, ClassBatch, page.Items[0].Class)

	req := f.server.LastRequest()
	assert.Equal(t, "2", req.URL.Query().Get("page"))
	assert.Equal(t, "20", req.URL.Query().Get("limit"))
}

func TestLogs_InvalidPage(t *testing.T) {
	f := newFixture(t)
	_, err := f.service.Logs(context.Background(), PageQuery{Limit: 1000})
	require.Error(t, err)
	assert.Empty(t, f.server.Requests())
}

func TestExpiredSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.loginAs(t, session.UserTypeUser, "alice")

	expired := make(chan events.AuthExpired, 1)
	require.NoError(t, f.bus.OnAuthExpired(func(ev events.AuthExpired) { expired <- ev }))

	f.server.ExpireAll()
	_, err := f.service.Info(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, client.ErrAuthExpired))

	var appErr *api.ApplicationError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "认证失败，请重新登录", appErr.Message)

	sess, err := f.store.Load(ctx)
	require.NoError(t, err)
	assert.False(t, sess.Authenticated())

	select {
	case ev := <-expired:
		assert.Equal(t, "GET", ev.Method)
	case <-time.After(time.Second):
		t.Fatal("no auth expired event")
	}
}

func TestUserCannotCallAdmin(t *testing.T) {
	f := newFixture(t)
	f.loginAs(t, session.UserTypeUser, "alice")

	_, err := f.service.Users(context.Background(), PageQuery{})
	assert.ErrorIs(t, err, client.ErrAuthExpired)
}

func TestBannedUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.server.AddAccount(apitest.Account{Username: "mallory", PasswordHash: apitest.Hash("x"), UserType: "user", Banned: true})
	f.loginAs(t, session.UserTypeUser, "mallory")

	_, err := f.service.Info(ctx)
	require.Error(t, err)
	assert.False(t, errors.Is(err, client.ErrAuthExpired))

	sess, err := f.store.Load(ctx)
	require.NoError(t, err)
	assert.True(t, sess.Authenticated(), "403 keeps the session")
}

func TestAdminUsers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.loginAs(t, session.UserTypeAdmin, "admin")

	id, err := f.service.CreateUser(ctx, NewUser{Username: "carol", Password: "carol123", ImageLimit: Unlimited, BatchLimit: 3, RealtimePermission: 1})
	require.NoError(t, err)
	assert.Positive(t, id)

	page, err := f.service.Users(ctx, PageQuery{})
	require.NoError(t, err)
	require.Len(t, page.Items, 2)
	assert.Equal(t, "carol", page.Items[0].Username)
	assert.Equal(t, Unlimited, page.Items[0].ImageLimit)

	limit := 50
	msg, err := f.service.UpdateUser(ctx, id, UserUpdate{BatchLimit: &limit})
	require.NoError(t, err)
	assert.Equal(t, "用户信息更新成功", msg)

	delta := -60
	_, err = f.service.AdjustLimits(ctx, id, LimitDelta{BatchDelta: &delta, ImageDelta: &delta})
	require.NoError(t, err)

	page, err = f.service.Users(ctx, PageQuery{})
	require.NoError(t, err)
	assert.Equal(t, 0, page.Items[0].BatchLimit)
	assert.Equal(t, Unlimited, page.Items[0].ImageLimit)

	msg, err = f.service.SetBanned(ctx, id, true)
	require.NoError(t, err)
	assert.Equal(t, "封禁用户成功", msg)

	_, err = f.service.DeleteUser(ctx, id)
	require.NoError(t, err)

	_, err = f.service.DeleteUser(ctx, id)
	var appErr *api.ApplicationError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "用户不存在", appErr.Message)
}

func TestAdminUsers_EmptyChanges(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.service.UpdateUser(ctx, 1, UserUpdate{})
	require.Error(t, err)
	_, err = f.service.AdjustLimits(ctx, 1, LimitDelta{})
	require.Error(t, err)

	bad := 5
	_, err = f.service.UpdateUser(ctx, 1, UserUpdate{RealtimePermission: &bad})
	require.Error(t, err)

	_, err = f.service.CreateUser(ctx, NewUser{Username: "dave", Password: "dave123", ImageLimit: -2})
	require.Error(t, err)

	assert.Empty(t, f.server.Requests())
}

func TestAdminLogs(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.loginAs(t, session.UserTypeAdmin, "admin")

	logs, err := f.service.AdminLogs(ctx, PageQuery{})
	require.NoError(t, err)
	require.Len(t, logs.Items, 1)
	assert.Equal(t, "admin", logs.Items[0].AdminUsername)

	all, err := f.service.AllUserLogs(ctx, PageQuery{})
	require.NoError(t, err)
	require.Len(t, all.Items, 1)
	assert.Equal(t, "alice", all.Items[0].Username)

	one, err := f.service.UserLogs(ctx, all.Items[0].UserID, PageQuery{})
	require.NoError(t, err)
	assert.Len(t, one.Items, 1)
}

func TestStatistics(t *testing.T) {
	f := newFixture(t)
	f.loginAs(t, session.UserTypeAdmin, "admin")

	stats, err := f.service.Statistics(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.UserCount)
	assert.Equal(t, 4, stats.TodayOperations.TotalTraffic)
	require.Len(t, stats.TrendData, 1)
	assert.Equal(t, ClassImage, stats.TrendData[0].Class)
}

func TestProgress(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.server.SetTask("t1", map[string]any{
		"current_file_index": 2,
		"total_files":        5,
		"current_file_name":  "b.jpg",
		"overall_progress":   40.0,
		"stage":              "processing",
	})

	p, err := f.service.Progress(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, 5, p.TotalFiles)
	assert.Equal(t, "b.jpg", p.CurrentFileName)
	assert.False(t, p.Finished())

	_, err = f.service.Progress(ctx, "missing")
	var appErr *api.ApplicationError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "任务不存在或已过期", appErr.Message)
}

func TestCancel(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.server.SetTask("t1", map[string]any{"stage": "processing"})

	msg, err := f.service.Cancel(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, "任务 t1 已取消", msg)

	p, err := f.service.Progress(ctx, "t1")
	require.NoError(t, err)
	assert.True(t, p.Finished())
}

func TestWatchProgress(t *testing.T) {
	f := newFixture(t)
	f.server.SetTask("t1", map[string]any{"stage": "completed", "overall_progress": 100.0})

	var seen []TaskProgress
	p, err := f.service.WatchProgress(context.Background(), "t1", 10*time.Millisecond, func(p TaskProgress) {
		seen = append(seen, p)
	})
	require.NoError(t, err)
	assert.Equal(t, "completed", p.Stage)
	assert.Len(t, seen, 1)
}

func TestWatchProgress_Cancelled(t *testing.T) {
	f := newFixture(t)
	f.server.SetTask("t1", map[string]any{"stage": "processing"})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := f.service.WatchProgress(ctx, "t1", 10*time.Millisecond, func(TaskProgress) {})
	require.Error(t, err)
}

func TestWatchProgress_NonPositiveInterval(t *testing.T) {
	f := newFixture(t)
	f.server.SetTask("t1", map[string]any{"stage": "processing"})

	for _, every := range []time.Duration{0, -time.Second} {
		var p *TaskProgress
		var err error
		assert.NotPanics(t, func() {
			p, err = f.service.WatchProgress(context.Background(), "t1", every, func(TaskProgress) {
				t.Error("no reading expected")
			})
		})
		assert.ErrorIs(t, err, ErrInvalidInterval)
		assert.Nil(t, p)
	}
	assert.Empty(t, f.server.Requests(), "interval is checked before polling")
}

func TestFinished(t *testing.T) {
	for stage, want := range map[string]bool{
		"completed": true, "cancelled": true, "failed": true, "error": true,
		"processing": false, "": false, "initializing": false,
	} {
		assert.Equal(t, want, TaskProgress{Stage: stage}.Finished(), stage)
	}
}

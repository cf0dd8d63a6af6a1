package portal

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gridsight-dev/gridsight/internal/cli/api"
	"github.com/gridsight-dev/gridsight/internal/cli/apitest"
	"github.com/gridsight-dev/gridsight/internal/cli/client"
	"github.com/gridsight-dev/gridsight/internal/cli/session"
)

func (f *fixture) loginNew(t *testing.T, a apitest.Account) {
	t.Helper()
	a.UserType = "user"
	a.PasswordHash = apitest.Hash("secret123")
	f.server.AddAccount(a)
	f.loginAs(t, session.UserTypeUser, a.Username)
}

func upload(name, content string) Upload {
	return Upload{Name: name, Size: int64(len(content)), Content: strings.NewReader(content)}
}

func TestPredict(t *testing.T) {
	f := newFixture(t)
	f.loginAs(t, session.UserTypeUser, "alice")

	p, err := f.service.Predict(context.Background(), upload("photos/tower.JPG", "jpeg bytes"))
	require.NoError(t, err)

	assert.Equal(t, "tower.JPG", p.Filename)
	assert.Equal(t, 9, p.RemainingLimit)
	assert.Equal(t, 2, p.Result.DetectedObjects)
	require.Len(t, p.Result.Predictions, 2)
	assert.Equal(t, "绝缘子", p.Result.Predictions[0].AssetCategory)
	assert.False(t, p.Result.Predictions[0].Defective())
	assert.True(t, p.Result.Predictions[1].Defective())
	assert.Equal(t, []int{10, 20, 110, 220}, p.Result.Predictions[0].BBox)

	req := f.server.LastRequest()
	assert.True(t, strings.HasPrefix(req.Header.Get("Content-Type"), "multipart/form-data"))
	assert.True(t, strings.HasPrefix(req.Header.Get("Authorization"), "Bearer "))
}

func TestPredict_UnlimitedQuota(t *testing.T) {
	f := newFixture(t)
	f.loginNew(t, apitest.Account{Username: "unlimited", ImageLimit: Unlimited})

	p, err := f.service.Predict(context.Background(), upload("a.png", "png"))
	require.NoError(t, err)
	assert.Equal(t, Unlimited, p.RemainingLimit)
}

func TestPredict_QuotaExhausted(t *testing.T) {
	f := newFixture(t)
	f.loginNew(t, apitest.Account{Username: "spent", ImageLimit: 0})

	_, err := f.service.Predict(context.Background(), upload("a.png", "png"))

	var appErr *api.ApplicationError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "图片识别次数已用完，请联系管理员增加次数", appErr.Message)

	var statusErr *client.StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusForbidden, statusErr.StatusCode)

	sess, err := f.store.Load(context.Background())
	require.NoError(t, err)
	assert.True(t, sess.Authenticated(), "a quota error keeps the session")
}

func TestPredict_RejectsNonImage(t *testing.T) {
	f := newFixture(t)
	f.loginAs(t, session.UserTypeUser, "alice")

	for _, name := range []string{"clip.mp4", "notes.txt", "noextension"} {
		_, err := f.service.Predict(context.Background(), upload(name, "x"))
		assert.ErrorIs(t, err, ErrUnsupportedFile, name)
	}
	assert.Empty(t, f.server.Requests())
}

func TestBatch_FollowTaskToCompletion(t *testing.T) {
	f := newFixture(t)
	f.loginAs(t, session.UserTypeUser, "alice")
	ctx := context.Background()

	start, err := f.service.Batch(ctx, []Upload{upload("a.jpg", "image"), upload("b.mp4", "video")})
	require.NoError(t, err)
	require.NotEmpty(t, start.TaskID)
	assert.Contains(t, start.Message, "批量处理已开始")
	assert.Greater(t, start.RequiredQuota, 0.0)
	assert.Less(t, start.RemainingQuota, 5.0)

	p, err := f.service.Progress(ctx, start.TaskID)
	require.NoError(t, err)
	assert.Equal(t, "processing", p.Stage)
	assert.Equal(t, 2, p.TotalFiles)

	f.server.FinishTask(start.TaskID)
	p, err = f.service.WatchProgress(ctx, start.TaskID, 10*time.Millisecond, func(TaskProgress) {})
	require.NoError(t, err)
	assert.Equal(t, "completed", p.Stage)
	require.Len(t, p.ProcessedFiles, 2)
	assert.Equal(t, "image", p.ProcessedFiles[0].FileType)
	assert.Equal(t, "video", p.ProcessedFiles[1].FileType)
	assert.Equal(t, 5, p.ProcessedFiles[1].DetectedObjects)
}

func TestBatch_CheckedBeforeUpload(t *testing.T) {
	f := newFixture(t)
	f.loginAs(t, session.UserTypeUser, "alice")

	tooMany := make([]Upload, MaxBatchFiles+1)
	for i := range tooMany {
		tooMany[i] = upload("a.jpg", "x")
	}

	tests := []struct {
		name    string
		uploads []Upload
		wantErr error
	}{
		{name: "empty", uploads: nil, wantErr: ErrNothingToUpload},
		{name: "too many", uploads: tooMany, wantErr: ErrTooManyFiles},
		{name: "unsupported", uploads: []Upload{upload("a.jpg", "x"), upload("notes.txt", "x")}, wantErr: ErrUnsupportedFile},
		{name: "too large", uploads: []Upload{{Name: "big.mp4", Size: MaxBatchBytes + 1, Content: strings.NewReader("")}}, wantErr: ErrBatchTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.service.Batch(context.Background(), tt.uploads)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
	assert.Empty(t, f.server.Requests())
}

func TestBatch_QuotaExceeded(t *testing.T) {
	f := newFixture(t)
	f.loginNew(t, apitest.Account{Username: "nobatch", BatchLimit: 0})

	_, err := f.service.Batch(context.Background(), []Upload{upload("a.jpg", "image")})
	assert.ErrorContains(t, err, "流量不足")
}

func TestRequireRealtime(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.loginAs(t, session.UserTypeUser, "alice")
	assert.ErrorIs(t, f.service.RequireRealtime(ctx), ErrRealtimeDenied)

	f.loginNew(t, apitest.Account{Username: "live", RealtimePermission: 1})
	assert.NoError(t, f.service.RequireRealtime(ctx))
}

func TestRealtimeDetect(t *testing.T) {
	f := newFixture(t)
	f.loginNew(t, apitest.Account{Username: "live", RealtimePermission: 1})

	rec, err := f.service.RealtimeDetect(context.Background(), upload("frame.jpg", "jpeg"))
	require.NoError(t, err)
	assert.Equal(t, 2, rec.DetectedObjects)
	require.Len(t, rec.Predictions, 2)
	assert.Equal(t, "绝缘子", rec.Predictions[0].AssetCategory)
	assert.Equal(t, "防震锤", rec.Predictions[1].AssetCategory)
	assert.InDelta(t, 0.66, rec.Predictions[1].Center.X, 1e-9)
}

func TestRealtimeDetect_WithoutPermission(t *testing.T) {
	f := newFixture(t)
	f.loginAs(t, session.UserTypeUser, "alice")

	_, err := f.service.RealtimeDetect(context.Background(), upload("frame.jpg", "jpeg"))
	assert.EqualError(t, err, "您没有实时检测权限")
}

func TestRealtimeAnnotate(t *testing.T) {
	f := newFixture(t)
	f.loginNew(t, apitest.Account{Username: "live", RealtimePermission: 1})

	rec, err := f.service.RealtimeAnnotate(context.Background(), upload("frame.png", "png"))
	require.NoError(t, err)

	img, err := DecodeAnnotatedImage(rec.AnnotatedImage)
	require.NoError(t, err)
	assert.Equal(t, apitest.AnnotatedPNG, img)
}

func TestDecodeAnnotatedImage_Invalid(t *testing.T) {
	_, err := DecodeAnnotatedImage("data:image/jpeg;base64,AAAA")
	assert.Error(t, err)

	_, err = DecodeAnnotatedImage("data:image/png;base64,%%%")
	assert.Error(t, err)
}

func TestLogRealtime(t *testing.T) {
	f := newFixture(t)
	f.loginNew(t, apitest.Account{Username: "live", RealtimePermission: 1})
	ctx := context.Background()

	msg, err := f.service.LogRealtime(ctx, RealtimeUsage{Duration: 30})
	require.NoError(t, err)
	assert.Equal(t, "使用记录已保存", msg)

	logs := f.server.RealtimeLogs()
	require.Len(t, logs, 1)
	assert.Equal(t, 30, logs[0].Duration)

	_, err = f.service.LogRealtime(ctx, RealtimeUsage{Quantity: -1})
	assert.ErrorContains(t, err, "invalid input")
	assert.Len(t, f.server.RealtimeLogs(), 1)
}

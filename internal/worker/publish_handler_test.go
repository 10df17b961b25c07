package worker

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"phFolio/internal/block"
	"phFolio/internal/layout"
	"phFolio/internal/notify"
	"phFolio/internal/render"
	"phFolio/internal/tasks"
)

type fakeRenderer struct {
	err error
}

func (f fakeRenderer) Render(_ context.Context, _ uint, device layout.Device) (render.Page, error) {
	if f.err != nil {
		return render.Page{}, f.err
	}
	b := block.Block{
		ID:      "b1",
		Kind:    block.KindText,
		Payload: block.TextPayload{Variant: "heading", Text: block.LocalizedText{EN: "Hi"}},
	}
	p := layout.Placement{BlockID: "b1", W: 2, H: 1}
	return render.Render(device, layout.DefaultProfile(device), []block.Block{b}, layout.List{p}), nil
}

type fakeUploader struct {
	objects map[string][]byte
	err     error
}

func (f *fakeUploader) PutJSON(_ context.Context, name string, body []byte) error {
	if f.err != nil {
		return f.err
	}
	if f.objects == nil {
		f.objects = map[string][]byte{}
	}
	f.objects[name] = body
	return nil
}

type fakeNotifier struct {
	messages []notify.Message
}

func (f *fakeNotifier) Publish(_ context.Context, _ string, message interface{}) *redis.IntCmd {
	var msg notify.Message
	if data, ok := message.([]byte); ok {
		_ = json.Unmarshal(data, &msg)
	}
	f.messages = append(f.messages, msg)
	return redis.NewIntResult(1, nil)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestPublishTaskHandler_UploadsEveryDevice(t *testing.T) {
	uploader := &fakeUploader{}
	notifier := &fakeNotifier{}
	h := NewPublishTaskHandler(fakeRenderer{}, uploader, notifier, quietLogger())

	task, err := tasks.NewPagePublishTask(7, "corr-1")
	require.NoError(t, err)
	require.NoError(t, h.ProcessTask(context.Background(), task))

	require.Len(t, uploader.objects, 2)
	body, ok := uploader.objects["published-pages/7/mobile.json"]
	require.True(t, ok)
	var page render.Page
	require.NoError(t, json.Unmarshal(body, &page))
	assert.Equal(t, layout.Mobile, page.Device)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "b1", page.Items[0].Block.ID)

	require.Len(t, notifier.messages, 1)
	assert.Equal(t, notify.TypePagePublished, notifier.messages[0].Type)
	assert.Equal(t, notify.StatusCompleted, notifier.messages[0].Status)
	assert.Equal(t, "corr-1", notifier.messages[0].CorrelationID)
	assert.Equal(t, []string{"desktop", "mobile"}, notifier.messages[0].Devices)
}

func TestPublishTaskHandler_ReturnsErrorForRetry(t *testing.T) {
	boom := errors.New("minio unavailable")
	notifier := &fakeNotifier{}
	h := NewPublishTaskHandler(fakeRenderer{}, &fakeUploader{err: boom}, notifier, quietLogger())

	task, err := tasks.NewPagePublishTask(7, "corr-2")
	require.NoError(t, err)

	err = h.ProcessTask(context.Background(), task)
	require.ErrorIs(t, err, boom)
	assert.Empty(t, notifier.messages, "error notification is only sent on the final attempt")
}

func TestPublishTaskHandler_RenderError(t *testing.T) {
	boom := errors.New("db down")
	h := NewPublishTaskHandler(fakeRenderer{err: boom}, &fakeUploader{}, &fakeNotifier{}, quietLogger())

	task, err := tasks.NewPagePublishTask(7, "")
	require.NoError(t, err)
	assert.ErrorIs(t, h.ProcessTask(context.Background(), task), boom)
}

func TestPublishTaskHandler_BadPayloadSkipsRetry(t *testing.T) {
	h := NewPublishTaskHandler(fakeRenderer{}, &fakeUploader{}, &fakeNotifier{}, quietLogger())

	err := h.ProcessTask(context.Background(), asynq.NewTask(tasks.TypePagePublish, []byte("{")))
	assert.ErrorIs(t, err, asynq.SkipRetry)

	err = h.ProcessTask(context.Background(), asynq.NewTask(tasks.TypePagePublish, []byte(`{"account_id":0}`)))
	assert.NoError(t, err)
}

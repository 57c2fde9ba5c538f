package notify

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vrsandeep/mango-shelf/internal/chapter"
	"github.com/vrsandeep/mango-shelf/internal/models"
	"github.com/vrsandeep/mango-shelf/internal/websocket"
)

type recordingSink struct {
	name     string
	err      error
	payloads [][]byte
}

func (s *recordingSink) Name() string { return s.name }

func (s *recordingSink) Send(_ context.Context, _ Notification, payload []byte) error {
	s.payloads = append(s.payloads, payload)
	return s.err
}

type fakePublisher struct {
	subject string
	data    []byte
	flushed bool
	err     error
}

func (p *fakePublisher) Publish(subject string, data []byte) error {
	p.subject, p.data = subject, data
	return p.err
}

func (p *fakePublisher) Flush() error {
	p.flushed = true
	return nil
}

func testEmitter(sinks ...Sink) *Emitter {
	e := NewEmitter(sinks...)
	e.newID = func() string { return "id-1" }
	e.now = func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }
	return e
}

func testBookmark() *models.Bookmark {
	return &models.Bookmark{ID: 7, Title: "Series", SourceURL: "https://mangadex.org/title/abc", Website: "mangadex.org"}
}

func TestEncodeShape(t *testing.T) {
	e := testEmitter()
	report := models.ChangeReport{
		NewDuplicates: []chapter.Number{5},
		UpdatedChapters: []models.UpdateEvent{{
			Number: 10.5, OldURL: "u-old", NewURLs: chapter.NewURLSet("u-new"),
			Kind: models.UpdateURLChanged, DetectedAt: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		}},
	}

	n, payload, err := e.Encode(testBookmark(), report)
	require.NoError(t, err)
	assert.Equal(t, "Mangadex", n.SiteName)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(payload, &decoded))
	assert.Equal(t, "id-1", decoded["id"])
	assert.Equal(t, TypeChapterChanges, decoded["type"])
	assert.Equal(t, float64(7), decoded["bookmark_id"])
	assert.Equal(t, []any{float64(5)}, decoded["new_duplicates"])
	assert.Equal(t, []any{}, decoded["removed_from_remote"], "empty lists are encoded as []")

	updates := decoded["updated_chapters"].([]any)
	require.Len(t, updates, 1)
	first := updates[0].(map[string]any)
	assert.Equal(t, 10.5, first["number"])
	assert.Equal(t, []any{"u-new"}, first["new_urls"])
	assert.Equal(t, "url_changed", first["kind"])
}

func TestEmitSkipsEmptyReport(t *testing.T) {
	sink := &recordingSink{name: "rec"}
	e := testEmitter(sink)
	require.NoError(t, e.Emit(context.Background(), testBookmark(), models.ChangeReport{}))
	assert.Empty(t, sink.payloads)
}

func TestEmitPublishesToAllSinksAndJoinsErrors(t *testing.T) {
	failing := &recordingSink{name: "broken", err: errors.New("boom")}
	ok := &recordingSink{name: "rec"}
	e := testEmitter(failing, ok)

	err := e.Emit(context.Background(), testBookmark(), models.ChangeReport{RemovedFromRemoteNumbers: []chapter.Number{3}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken sink: boom")
	assert.Len(t, failing.payloads, 1)
	assert.Len(t, ok.payloads, 1, "a failing sink must not stop the others")
}

func TestNATSSinkPublishesPayload(t *testing.T) {
	pub := &fakePublisher{}
	e := testEmitter(NewNATSSink(pub, "mango.chapters"))

	require.NoError(t, e.Emit(context.Background(), testBookmark(), models.ChangeReport{NewDuplicates: []chapter.Number{1}}))
	assert.Equal(t, "mango.chapters", pub.subject)
	assert.True(t, pub.flushed)
	assert.Contains(t, string(pub.data), `"type":"chapter_changes"`)
}

func TestNATSSinkPublishError(t *testing.T) {
	pub := &fakePublisher{err: errors.New("disconnected")}
	sink := NewNATSSink(pub, "s")
	err := sink.Send(context.Background(), Notification{ID: "x"}, []byte("{}"))
	assert.ErrorContains(t, err, "disconnected")
	assert.False(t, pub.flushed)
}

func TestHubSinkAndLogSink(t *testing.T) {
	hub := websocket.NewHub()
	e := testEmitter(NewHubSink(hub), LogSink{})
	assert.NoError(t, e.Emit(context.Background(), testBookmark(), models.ChangeReport{NewDuplicates: []chapter.Number{2}}))
}

func TestSiteName(t *testing.T) {
	assert.Equal(t, "Weebcentral", SiteName("weebcentral.com"))
	assert.Equal(t, "", SiteName(""))
}

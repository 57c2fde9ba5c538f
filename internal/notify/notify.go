// Package notify turns a reconciliation's change report into the external
// notification shape and fans it out to the configured sinks.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/vrsandeep/mango-shelf/internal/chapter"
	"github.com/vrsandeep/mango-shelf/internal/models"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// TypeChapterChanges is the notification type of a change report.
const TypeChapterChanges = "chapter_changes"

// Notification is what subscribers receive.
type Notification struct {
	ID                string               `json:"id"`
	Type              string               `json:"type"`
	BookmarkID        int64                `json:"bookmark_id"`
	Title             string               `json:"title"`
	SourceURL         string               `json:"source_url"`
	Website           string               `json:"website"`
	SiteName          string               `json:"site_name"`
	NewDuplicates     []chapter.Number     `json:"new_duplicates"`
	UpdatedChapters   []models.UpdateEvent `json:"updated_chapters"`
	RemovedFromRemote []chapter.Number     `json:"removed_from_remote"`
	CreatedAt         time.Time            `json:"created_at"`
}

// Sink delivers an encoded notification somewhere.
type Sink interface {
	Name() string
	Send(ctx context.Context, n Notification, payload []byte) error
}

// Emitter encodes change reports and publishes them to every sink.
type Emitter struct {
	sinks []Sink
	newID func() string
	now   func() time.Time
}

// NewEmitter creates an emitter publishing to sinks in order.
func NewEmitter(sinks ...Sink) *Emitter {
	return &Emitter{
		sinks: sinks,
		newID: func() string { return uuid.NewString() },
		now:   time.Now,
	}
}

// AddSink registers another sink.
func (e *Emitter) AddSink(s Sink) {
	e.sinks = append(e.sinks, s)
}

// Encode builds the notification for report. It is a pure transform apart
// from the generated id and timestamp.
func (e *Emitter) Encode(b *models.Bookmark, report models.ChangeReport) (Notification, []byte, error) {
	n := Notification{
		ID:                e.newID(),
		Type:              TypeChapterChanges,
		BookmarkID:        b.ID,
		Title:             b.Title,
		SourceURL:         b.SourceURL,
		Website:           b.Website,
		SiteName:          SiteName(b.Website),
		NewDuplicates:     nonNil(report.NewDuplicates),
		UpdatedChapters:   report.UpdatedChapters,
		RemovedFromRemote: nonNil(report.RemovedFromRemoteNumbers),
		CreatedAt:         e.now().UTC(),
	}
	if n.UpdatedChapters == nil {
		n.UpdatedChapters = []models.UpdateEvent{}
	}
	payload, err := json.Marshal(n)
	if err != nil {
		return Notification{}, nil, fmt.Errorf("encode notification for bookmark %d: %w", b.ID, err)
	}
	return n, payload, nil
}

// Emit publishes report to every sink. Empty reports are not published.
// A failing sink does not stop the others; their errors are joined.
func (e *Emitter) Emit(ctx context.Context, b *models.Bookmark, report models.ChangeReport) error {
	if report.IsEmpty() {
		return nil
	}
	n, payload, err := e.Encode(b, report)
	if err != nil {
		return err
	}
	var errs []error
	for _, s := range e.sinks {
		if err := s.Send(ctx, n, payload); err != nil {
			errs = append(errs, fmt.Errorf("%s sink: %w", s.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// SiteName turns a website identifier like "mangadex.org" into a display
// name like "Mangadex".
func SiteName(website string) string {
	label, _, _ := strings.Cut(website, ".")
	if label == "" {
		return ""
	}
	return cases.Title(language.Und).String(label)
}

func nonNil(numbers []chapter.Number) []chapter.Number {
	if numbers == nil {
		return []chapter.Number{}
	}
	return numbers
}

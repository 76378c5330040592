// notes.go - Admin annotations on calendar dates.
//
// Notes share the date-keyed store shape with bookings but never touch
// accounting. They follow the same empty-record contract: clearing the last
// note removes the date key.
package leave

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Notebook manages date-keyed admin annotations.
type Notebook struct {
	Store Store
}

func NewNotebook(store Store) *Notebook {
	return &Notebook{Store: store}
}

// Add appends a note to date and returns it. Empty text is rejected.
func (n *Notebook) Add(ctx context.Context, date Date, text, by string) (Note, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Note{}, &FieldError{Field: "text", Reason: "must not be empty"}
	}

	notes, err := n.Store.GetNotes(ctx, date)
	if err != nil {
		return Note{}, err
	}
	note := Note{
		ID:   uuid.NewString(),
		Text: text,
		By:   by,
		At:   time.Now().UnixMilli(),
	}
	notes = append(notes, note)
	if err := n.Store.PutNotes(ctx, date, notes); err != nil {
		return Note{}, err
	}
	return note, nil
}

// Clear removes all notes for date.
func (n *Notebook) Clear(ctx context.Context, date Date) error {
	return n.Store.PutNotes(ctx, date, nil)
}

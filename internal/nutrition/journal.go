package nutrition

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"example.com/coach/internal/domain"
)

const tempIDPrefix = "tmp-"

// Journal is the visible food log of one user for one day. Appends show up
// immediately under a temporary id and are rolled back if the write fails.
type Journal struct {
	mu      sync.Mutex
	repo    domain.FoodRepository
	userID  string
	day     time.Time
	entries []domain.FoodLog
}

// NewJournal constructs an empty Journal for userID.
func NewJournal(repo domain.FoodRepository, userID string) *Journal {
	return &Journal{repo: repo, userID: userID}
}

// Refresh replaces the visible entries with the stored ones for day.
func (j *Journal) Refresh(ctx context.Context, day time.Time) error {
	entries, err := j.repo.ListFood(ctx, j.userID, day)
	if err != nil {
		return err
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	j.day = domain.CalendarDay(day)
	j.entries = entries
	return nil
}

// Entries returns a copy of the visible entries, newest first.
func (j *Journal) Entries() []domain.FoodLog {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]domain.FoodLog(nil), j.entries...)
}

// Totals sums the visible entries.
func (j *Journal) Totals() Macros {
	return DailyTotals(j.Entries())
}

// Log prepends entry under a temporary id, writes it, then swaps in the stored
// record. On failure the temporary entry is removed and the error returned.
func (j *Journal) Log(ctx context.Context, entry domain.FoodLog) (domain.FoodLog, error) {
	entry.UserID = j.userID
	if entry.Date.IsZero() {
		entry.Date = time.Now().UTC()
	}
	entry.Date = domain.CalendarDay(entry.Date)

	temp := entry
	temp.ID = tempIDPrefix + uuid.NewString()

	j.mu.Lock()
	visible := j.day.IsZero() || j.day.Equal(entry.Date)
	if visible {
		j.entries = append([]domain.FoodLog{temp}, j.entries...)
	}
	j.mu.Unlock()

	saved, err := j.repo.InsertFood(ctx, entry)

	j.mu.Lock()
	defer j.mu.Unlock()
	for i, e := range j.entries {
		if e.ID != temp.ID {
			continue
		}
		if err != nil {
			j.entries = append(j.entries[:i:i], j.entries[i+1:]...)
		} else {
			j.entries[i] = saved
		}
		break
	}
	if err != nil {
		log.WithError(err).WithField("user_id", j.userID).Warn("nutrition: food log write failed, rolled back")
		return domain.FoodLog{}, err
	}
	return saved, nil
}

// Remove hides the entry immediately and deletes it. A failed delete puts the
// entry back where it was.
func (j *Journal) Remove(ctx context.Context, id string) error {
	j.mu.Lock()
	idx := -1
	var removed domain.FoodLog
	for i, e := range j.entries {
		if e.ID == id {
			idx, removed = i, e
			j.entries = append(j.entries[:i:i], j.entries[i+1:]...)
			break
		}
	}
	j.mu.Unlock()

	if err := j.repo.DeleteFood(ctx, j.userID, id); err != nil {
		if idx >= 0 {
			j.mu.Lock()
			if idx > len(j.entries) {
				idx = len(j.entries)
			}
			j.entries = append(j.entries[:idx:idx], append([]domain.FoodLog{removed}, j.entries[idx:]...)...)
			j.mu.Unlock()
		}
		return err
	}
	return nil
}

// DailyTotals sums calories and macros over entries.
func DailyTotals(entries []domain.FoodLog) Macros {
	var total Macros
	for _, e := range entries {
		total = total.Add(Macros{Calories: e.Calories, Protein: e.Protein, Fat: e.Fat, Carbs: e.Carbs})
	}
	return total
}

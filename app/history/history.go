// Package history merges the per-type history collections into a single
// activity feed that can be searched, filtered, sorted and grouped by day.
package history

import (
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/theChefEngineer/ai-tool-app-sub001/app/models"
)

// All disables a type or status filter.
const All = "all"

const titleRunes = 50

// Sort keys.
const (
	SortDate   = "date"
	SortType   = "type"
	SortStatus = "status"
)

// Query selects and orders feed items. Zero values mean no search, no
// filters, newest first.
type Query struct {
	Search string
	Type   string
	Status string
	SortBy string
	Order  string
}

// Item is one feed row.
type Item struct {
	ID           string             `json:"id"`
	Type         models.HistoryType `json:"type"`
	Title        string             `json:"title"`
	OriginalText string             `json:"originalText"`
	ResultText   string             `json:"resultText"`
	Status       string             `json:"status"`
	Timestamp    time.Time          `json:"timestamp"`
	Meta         map[string]string  `json:"meta,omitempty"`
}

// Group is a run of items that fall on one calendar day.
type Group struct {
	Key   string `json:"date"`
	Items []Item `json:"items"`
}

// Aggregate builds the unified feed from the three collections and applies q.
func Aggregate(paraphrases []models.ParaphraseEntry, summaries []models.SummaryEntry, translations []models.TranslationEntry, q Query) []Item {
	items := make([]Item, 0, len(paraphrases)+len(summaries)+len(translations))
	for _, p := range paraphrases {
		items = append(items, Item{
			ID:           p.ID,
			Type:         models.HistoryParaphrase,
			Title:        title("Paraphrase", p.OriginalText),
			OriginalText: p.OriginalText,
			ResultText:   p.ParaphrasedText,
			Status:       statusOrDefault(p.Status),
			Timestamp:    p.Timestamp,
			Meta:         meta("mode", p.Mode),
		})
	}
	for _, s := range summaries {
		items = append(items, Item{
			ID:           s.ID,
			Type:         models.HistorySummary,
			Title:        title("Summary", s.OriginalText),
			OriginalText: s.OriginalText,
			ResultText:   s.Summary,
			Status:       statusOrDefault(s.Status),
			Timestamp:    s.Timestamp,
			Meta:         meta("length", s.Length),
		})
	}
	for _, t := range translations {
		items = append(items, Item{
			ID:           t.ID,
			Type:         models.HistoryTranslation,
			Title:        "Translation " + t.SourceLanguage + " → " + t.TargetLanguage,
			OriginalText: t.SourceText,
			ResultText:   t.TranslatedText,
			Status:       statusOrDefault(t.Status),
			Timestamp:    t.Timestamp,
			Meta:         meta("sourceLanguage", t.SourceLanguage, "targetLanguage", t.TargetLanguage),
		})
	}
	return Apply(items, q)
}

// Apply filters and sorts an already unified list. The input slice is not
// modified.
func Apply(items []Item, q Query) []Item {
	needle := strings.ToLower(strings.TrimSpace(q.Search))
	out := make([]Item, 0, len(items))
	for _, it := range items {
		if !matchesFilter(string(it.Type), q.Type) || !matchesFilter(it.Status, q.Status) {
			continue
		}
		if needle != "" && !containsFold(it, needle) {
			continue
		}
		out = append(out, it)
	}

	desc := !strings.EqualFold(q.Order, "asc")
	sort.SliceStable(out, func(i, j int) bool {
		c := compare(out[i], out[j], q.SortBy)
		if desc {
			c = -c
		}
		return c < 0
	})
	return out
}

// GroupByDay splits items into calendar-day groups in loc. Groups appear in
// the order their first item appears and items keep their order.
func GroupByDay(items []Item, loc *time.Location) []Group {
	if loc == nil {
		loc = time.Local
	}
	var groups []Group
	index := map[string]int{}
	for _, it := range items {
		key := it.Timestamp.In(loc).Format(models.DateLayout)
		i, ok := index[key]
		if !ok {
			i = len(groups)
			index[key] = i
			groups = append(groups, Group{Key: key})
		}
		groups[i].Items = append(groups[i].Items, it)
	}
	return groups
}

// Stats counts items per type.
func Stats(items []Item) map[models.HistoryType]int {
	stats := map[models.HistoryType]int{
		models.HistoryParaphrase:  0,
		models.HistorySummary:     0,
		models.HistoryTranslation: 0,
	}
	for _, it := range items {
		stats[it.Type]++
	}
	return stats
}

// Split sorts stored rows into the three typed collections.
func Split(entries []models.HistoryEntry) ([]models.ParaphraseEntry, []models.SummaryEntry, []models.TranslationEntry) {
	var (
		paraphrases  []models.ParaphraseEntry
		summaries    []models.SummaryEntry
		translations []models.TranslationEntry
	)
	for _, e := range entries {
		switch e.Type {
		case models.HistoryParaphrase:
			paraphrases = append(paraphrases, e.Paraphrase())
		case models.HistorySummary:
			summaries = append(summaries, e.Summary())
		case models.HistoryTranslation:
			translations = append(translations, e.Translation())
		}
	}
	return paraphrases, summaries, translations
}

func compare(a, b Item, by string) int {
	switch by {
	case SortType:
		return strings.Compare(string(a.Type), string(b.Type))
	case SortStatus:
		return strings.Compare(a.Status, b.Status)
	default:
		switch d := a.Timestamp.Sub(b.Timestamp); {
		case d < 0:
			return -1
		case d > 0:
			return 1
		}
		return 0
	}
}

func matchesFilter(value, filter string) bool {
	return filter == "" || filter == All || value == filter
}

func containsFold(it Item, needle string) bool {
	return strings.Contains(strings.ToLower(it.Title), needle) ||
		strings.Contains(strings.ToLower(it.OriginalText), needle) ||
		strings.Contains(strings.ToLower(it.ResultText), needle)
}

func statusOrDefault(s string) string {
	if s == "" {
		return models.HistoryStatusCompleted
	}
	return s
}

// title is the label plus the start of the text, cut on a rune boundary.
func title(label, text string) string {
	text = strings.Join(strings.Fields(text), " ")
	if text == "" {
		return label
	}
	if utf8.RuneCountInString(text) > titleRunes {
		r := []rune(text)
		text = string(r[:titleRunes]) + "…"
	}
	return label + ": " + text
}

func meta(kv ...string) map[string]string {
	m := map[string]string{}
	for i := 0; i+1 < len(kv); i += 2 {
		if kv[i+1] != "" {
			m[kv[i]] = kv[i+1]
		}
	}
	if len(m) == 0 {
		return nil
	}
	return m
}

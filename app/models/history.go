package models

import "time"

// HistoryType identifies which AI operation produced an entry.
type HistoryType string

const (
	HistoryParaphrase  HistoryType = "paraphrase"
	HistorySummary     HistoryType = "summary"
	HistoryTranslation HistoryType = "translation"
)

// HistoryStatusCompleted is the only status entries are created with today.
const HistoryStatusCompleted = "completed"

// Valid reports whether t is one of the recorded history types.
func (t HistoryType) Valid() bool {
	switch t {
	case HistoryParaphrase, HistorySummary, HistoryTranslation:
		return true
	}
	return false
}

// HistoryEntry is the stored row for any completed operation. Mode holds the
// paraphrase mode or summary length; the language fields are only set for
// translations. Quality is the operation's own metric (similarity,
// compression ratio or confidence).
type HistoryEntry struct {
	ID             string      `db:"id" json:"id"`
	UserID         string      `db:"user_id" json:"-"`
	Type           HistoryType `db:"entry_type" json:"type"`
	OriginalText   string      `db:"original_text" json:"originalText"`
	ResultText     string      `db:"result_text" json:"resultText"`
	Mode           string      `db:"mode" json:"mode,omitempty"`
	SourceLanguage string      `db:"source_language" json:"sourceLanguage,omitempty"`
	TargetLanguage string      `db:"target_language" json:"targetLanguage,omitempty"`
	Quality        float64     `db:"quality" json:"quality"`
	Status         string      `db:"status" json:"status"`
	CreatedAt      time.Time   `db:"created_at" json:"timestamp"`
}

// ParaphraseEntry is a completed paraphrase.
type ParaphraseEntry struct {
	ID              string    `json:"id"`
	OriginalText    string    `json:"originalText"`
	ParaphrasedText string    `json:"paraphrasedText"`
	Mode            string    `json:"mode"`
	Similarity      float64   `json:"similarity"`
	Status          string    `json:"status,omitempty"`
	Timestamp       time.Time `json:"timestamp"`
}

// SummaryEntry is a completed summary.
type SummaryEntry struct {
	ID               string    `json:"id"`
	OriginalText     string    `json:"originalText"`
	Summary          string    `json:"summary"`
	Length           string    `json:"length"`
	CompressionRatio float64   `json:"compressionRatio"`
	Status           string    `json:"status,omitempty"`
	Timestamp        time.Time `json:"timestamp"`
}

// TranslationEntry is a completed translation.
type TranslationEntry struct {
	ID             string    `json:"id"`
	SourceText     string    `json:"sourceText"`
	TranslatedText string    `json:"translatedText"`
	SourceLanguage string    `json:"sourceLanguage"`
	TargetLanguage string    `json:"targetLanguage"`
	Confidence     float64   `json:"confidence"`
	Status         string    `json:"status,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}

// Paraphrase converts a stored row into its typed variant.
func (e HistoryEntry) Paraphrase() ParaphraseEntry {
	return ParaphraseEntry{
		ID:              e.ID,
		OriginalText:    e.OriginalText,
		ParaphrasedText: e.ResultText,
		Mode:            e.Mode,
		Similarity:      e.Quality,
		Status:          e.Status,
		Timestamp:       e.CreatedAt,
	}
}

func (e HistoryEntry) Summary() SummaryEntry {
	return SummaryEntry{
		ID:               e.ID,
		OriginalText:     e.OriginalText,
		Summary:          e.ResultText,
		Length:           e.Mode,
		CompressionRatio: e.Quality,
		Status:           e.Status,
		Timestamp:        e.CreatedAt,
	}
}

func (e HistoryEntry) Translation() TranslationEntry {
	return TranslationEntry{
		ID:             e.ID,
		SourceText:     e.OriginalText,
		TranslatedText: e.ResultText,
		SourceLanguage: e.SourceLanguage,
		TargetLanguage: e.TargetLanguage,
		Confidence:     e.Quality,
		Status:         e.Status,
		Timestamp:      e.CreatedAt,
	}
}

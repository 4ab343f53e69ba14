package telemetry

import (
	"fmt"
	"log/slog"
)

// BookmarkType identifies the type of bookmark.
type BookmarkType string

const (
	BookmarkFirstPoint   BookmarkType = "first_point"
	BookmarkNewRecord    BookmarkType = "new_record"
	BookmarkBreakthrough BookmarkType = "breakthrough"
	BookmarkCollapse     BookmarkType = "collapse"
	BookmarkPlateau      BookmarkType = "plateau"
)

// plateauGenerations is how many generations without a new record trigger
// a plateau bookmark.
const plateauGenerations = 5

// Bookmark represents an automatically triggered bookmark.
type Bookmark struct {
	Type        BookmarkType `csv:"type"`
	Generation  int          `csv:"generation"`
	Description string       `csv:"description"`
}

// LogBookmark logs the bookmark using slog.
func (b Bookmark) LogBookmark() {
	slog.Info("bookmark",
		"type", string(b.Type),
		"generation", b.Generation,
		"description", b.Description,
	)
}

// BookmarkDetector detects interesting moments in a training run.
type BookmarkDetector struct {
	// Rolling history (circular buffer)
	history     []GenerationStats
	historySize int
	historyIdx  int
	historyFull bool

	// State tracking
	record         int  // best fitness seen so far
	scored         bool // any genome has scored
	recentMeanPeak float64
	sinceRecord    int
}

// NewBookmarkDetector creates a detector with the given history size.
func NewBookmarkDetector(historySize int) *BookmarkDetector {
	if historySize < 3 {
		historySize = 3
	}
	return &BookmarkDetector{
		history:     make([]GenerationStats, historySize),
		historySize: historySize,
	}
}

// Check analyzes the latest generation and returns any triggered bookmarks.
func (bd *BookmarkDetector) Check(stats GenerationStats) []Bookmark {
	var bookmarks []Bookmark

	if !bd.scored && stats.Best > 0 {
		bd.scored = true
		bookmarks = append(bookmarks, Bookmark{
			Type:        BookmarkFirstPoint,
			Generation:  stats.Generation,
			Description: fmt.Sprintf("First points scored: best %d", stats.Best),
		})
	}

	if b := bd.checkBreakthrough(stats); b != nil {
		bookmarks = append(bookmarks, *b)
	}
	if b := bd.checkCollapse(stats); b != nil {
		bookmarks = append(bookmarks, *b)
	}

	if stats.Best > bd.record {
		if bd.record > 0 {
			bookmarks = append(bookmarks, Bookmark{
				Type:        BookmarkNewRecord,
				Generation:  stats.Generation,
				Description: fmt.Sprintf("Best fitness %d beats previous record %d", stats.Best, bd.record),
			})
		}
		bd.record = stats.Best
		bd.sinceRecord = 0
	} else if bd.record > 0 {
		bd.sinceRecord++
		if bd.sinceRecord == plateauGenerations { // trigger exactly once per plateau
			bookmarks = append(bookmarks, Bookmark{
				Type:        BookmarkPlateau,
				Generation:  stats.Generation,
				Description: fmt.Sprintf("No improvement on record %d for %d generations", bd.record, plateauGenerations),
			})
		}
	}

	bd.addToHistory(stats)
	if stats.Mean > bd.recentMeanPeak {
		bd.recentMeanPeak = stats.Mean
	}

	return bookmarks
}

func (bd *BookmarkDetector) addToHistory(stats GenerationStats) {
	bd.history[bd.historyIdx] = stats
	bd.historyIdx = (bd.historyIdx + 1) % bd.historySize
	if bd.historyIdx == 0 {
		bd.historyFull = true
	}
}

func (bd *BookmarkDetector) getHistory() []GenerationStats {
	if bd.historyFull {
		return bd.history
	}
	return bd.history[:bd.historyIdx]
}

// checkBreakthrough: best fitness > 2x the rolling average of best fitness.
func (bd *BookmarkDetector) checkBreakthrough(stats GenerationStats) *Bookmark {
	history := bd.getHistory()
	if len(history) < 3 {
		return nil
	}

	var total int
	for _, h := range history {
		total += h.Best
	}
	avg := float64(total) / float64(len(history))
	if avg == 0 || stats.Best < 3 {
		return nil
	}

	if float64(stats.Best) > avg*2.0 {
		return &Bookmark{
			Type:        BookmarkBreakthrough,
			Generation:  stats.Generation,
			Description: fmt.Sprintf("Best %d is %.1fx rolling average (%.1f)", stats.Best, float64(stats.Best)/avg, avg),
		}
	}
	return nil
}

// checkCollapse: mean fitness dropped more than half from its recent peak.
func (bd *BookmarkDetector) checkCollapse(stats GenerationStats) *Bookmark {
	if bd.recentMeanPeak < 2 {
		return nil
	}

	drop := 1.0 - stats.Mean/bd.recentMeanPeak
	if drop > 0.5 {
		oldPeak := bd.recentMeanPeak
		bd.recentMeanPeak = stats.Mean

		return &Bookmark{
			Type:        BookmarkCollapse,
			Generation:  stats.Generation,
			Description: fmt.Sprintf("Mean fitness fell %.0f%% from peak %.1f to %.1f", drop*100, oldPeak, stats.Mean),
		}
	}
	return nil
}

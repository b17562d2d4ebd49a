package catalog

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/meltforce/liftlog/internal/models"
)

// CountMessage describes a search result for display. The unfiltered default
// view reads differently so users know they are seeing a sample.
func CountMessage(resp *models.SearchResponse) string {
	shown := len(resp.Exercises)
	if !resp.Filtered {
		return fmt.Sprintf("Showing %s of %s exercises. Use the filters to find more.",
			humanize.Comma(int64(shown)), humanize.Comma(int64(resp.Count)))
	}
	switch {
	case resp.Count == 0:
		return "No exercises match your filters."
	case resp.HasMore:
		return fmt.Sprintf("Found %s exercises matching your filters (showing first %s).",
			humanize.Comma(int64(resp.Count)), humanize.Comma(int64(shown)))
	case resp.Count == 1:
		return "Found 1 exercise matching your filters."
	}
	return fmt.Sprintf("Found %s exercises matching your filters.", humanize.Comma(int64(resp.Count)))
}

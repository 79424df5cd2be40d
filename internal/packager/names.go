package packager

import (
	"fmt"

	"github.com/Belphemur/DualMux/internal/models"
	"github.com/Belphemur/DualMux/internal/mux"
)

// AssignNames returns one archive entry name per selection, in order.
// A name already taken gets the natural key appended, then a counter.
func AssignNames(selections []models.Selection) []string {
	used := make(map[string]bool, len(selections))
	names := make([]string, len(selections))

	for i, sel := range selections {
		name := mux.FileName(sel.Title)
		if used[name] {
			name = mux.FileName(fmt.Sprintf("%s [%s]", sel.Title, sel.NaturalKey))
		}
		for n := 2; used[name]; n++ {
			name = mux.FileName(fmt.Sprintf("%s [%s] (%d)", sel.Title, sel.NaturalKey, n))
		}
		used[name] = true
		names[i] = name
	}
	return names
}

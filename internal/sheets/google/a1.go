package google

import "strings"

// a1 builds an A1 range on tab. Tab names are always quoted since exported
// tabs contain spaces; embedded quotes are doubled.
func a1(tab, cells string) string {
	return "'" + strings.ReplaceAll(tab, "'", "''") + "'!" + cells
}

package memory

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"moneyboard/internal/core"
	ports "moneyboard/internal/sheets"
)

var _ ports.LedgerExporter = (*Exporter)(nil)

// Exporter keeps exported tabs in memory for tests.
type Exporter struct {
	mu      sync.Mutex
	tabs    map[string][][]any
	exports int
}

func New() *Exporter {
	return &Exporter{tabs: make(map[string][][]any)}
}

// ExportMonth replaces the owner's tab for the view's month.
func (e *Exporter) ExportMonth(_ context.Context, owner string, view core.MonthView) (string, error) {
	if owner == "" {
		return "", fmt.Errorf("export month: %w", core.ErrNotAuthenticated)
	}
	rows := ports.Rows(view)
	name := ports.TabName(owner, view.Month)

	e.mu.Lock()
	defer e.mu.Unlock()
	e.tabs[name] = rows
	e.exports++
	return fmt.Sprintf("mem:%s!A1:F%d", name, len(rows)), nil
}

// Tab returns a copy of the rows last written to name.
func (e *Exporter) Tab(name string) ([][]any, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	rows, ok := e.tabs[name]
	return slices.Clone(rows), ok
}

// Tabs lists the tab names in sorted order.
func (e *Exporter) Tabs() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	names := make([]string, 0, len(e.tabs))
	for name := range e.tabs {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Exports counts ExportMonth calls.
func (e *Exporter) Exports() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.exports
}

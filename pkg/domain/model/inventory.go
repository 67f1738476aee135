package model

import "time"

type InventoryEntry struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	Path    string `json:"path"`
	State   string `json:"state"`
	HTMLURL string `json:"url"`
}

// Inventory is the exported list of workflows of a repository grouped by category.
type Inventory struct {
	GeneratedAt    time.Time                      `json:"generated_at"`
	Repository     string                         `json:"repository"`
	TotalWorkflows int                            `json:"total_workflows"`
	Categories     map[Category][]*InventoryEntry `json:"categories"`
}

func NewInventory(repo Repository, workflows []*Workflow, now time.Time) *Inventory {
	inv := &Inventory{
		GeneratedAt:    now.UTC(),
		Repository:     repo.FullName(),
		TotalWorkflows: len(workflows),
		Categories:     make(map[Category][]*InventoryEntry),
	}
	for _, wf := range workflows {
		category := wf.Category
		if category == "" {
			category = Categorize(wf.Name)
		}
		inv.Categories[category] = append(inv.Categories[category], &InventoryEntry{
			ID:      wf.ID,
			Name:    wf.Name,
			Path:    wf.Path,
			State:   wf.State,
			HTMLURL: wf.HTMLURL,
		})
	}
	return inv
}

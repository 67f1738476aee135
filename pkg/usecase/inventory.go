package usecase

import (
	"context"
	"encoding/json"
	"os"
	"time"

	"github.com/m-mizutani/cistat/pkg/domain/interfaces"
	"github.com/m-mizutani/cistat/pkg/domain/model"
	"github.com/m-mizutani/goerr/v2"
)

type InventoryService struct {
	lister interfaces.WorkflowLister
	now    func() time.Time
}

func NewInventoryService(lister interfaces.WorkflowLister) *InventoryService {
	return &InventoryService{lister: lister, now: time.Now}
}

// Build lists every workflow of repo, including excluded and disabled ones.
func (s *InventoryService) Build(ctx context.Context, repo model.Repository) (*model.Inventory, error) {
	workflows, err := s.lister.ListWorkflows(ctx, repo)
	if err != nil {
		return nil, err
	}
	return model.NewInventory(repo, workflows, s.now()), nil
}

// Export writes the inventory to path as indented JSON.
func (s *InventoryService) Export(inv *model.Inventory, path string) error {
	data, err := json.MarshalIndent(inv, "", "  ")
	if err != nil {
		return goerr.Wrap(err, "failed to marshal inventory")
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return goerr.Wrap(err, "failed to write inventory", goerr.V("path", path))
	}
	return nil
}

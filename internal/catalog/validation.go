package catalog

import (
	"errors"
	"strings"
)

func (s *Service) validateItem(item Item) error {
	if strings.TrimSpace(item.Code) == "" {
		return errors.New("catalog: item code is required")
	}
	if strings.TrimSpace(item.Name) == "" {
		return errors.New("catalog: item name is required")
	}
	if item.MinimumStockLevel < 0 {
		return errors.New("catalog: minimum stock level must be >= 0")
	}
	return nil
}

func (s *Service) validateWarehouse(w Warehouse) error {
	if strings.TrimSpace(w.Code) == "" {
		return errors.New("catalog: warehouse code is required")
	}
	if strings.TrimSpace(w.Name) == "" {
		return errors.New("catalog: warehouse name is required")
	}
	return nil
}

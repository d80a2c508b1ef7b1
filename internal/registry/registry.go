// Package registry persists order and execution records for audit and
// replay. Each order is one JSON file under a date-partitioned directory
// tree; terminal records never change once written. The registry is a pure I/O
// boundary with no business logic, written by a single simulation run at a
// time (concurrent runs use disjoint root directories).
package registry

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"tradesim/internal/domain"
)

// OrderRegistry stores one JSON file per order at
//
//	<root>/YYYY/MM/DD/<order_id>.json
//
// where the date is the UTC date of the order's creation. Money fields keep
// exact decimal precision on disk (serialized as decimal strings).
type OrderRegistry struct {
	root string
	log  *slog.Logger

	// Path index built lazily so LoadOrder avoids a full tree walk for
	// orders saved by this process.
	paths map[string]string
}

// ListFilter narrows ListOrders results. Zero values match everything.
type ListFilter struct {
	Symbol string
	Status domain.OrderStatus
	Since  time.Time
	Limit  int
}

// NewOrderRegistry creates a registry rooted at dir, creating it if needed.
func NewOrderRegistry(dir string, log *slog.Logger) (*OrderRegistry, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating registry root: %w", err)
	}
	return &OrderRegistry{
		root:  dir,
		log:   log,
		paths: make(map[string]string),
	}, nil
}

// SaveOrder writes the order record. The write is atomic (temp file +
// rename) so a reader never observes a partially written record.
func (r *OrderRegistry) SaveOrder(order *domain.Order) error {
	if order == nil || order.ID == "" {
		return fmt.Errorf("save order: order must have an ID")
	}
	path := r.orderPath(order)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating partition for order %s: %w", order.ID, err)
	}

	data, err := json.MarshalIndent(order, "", "  ")
	if err != nil {
		return fmt.Errorf("marshalling order %s: %w", order.ID, err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing order %s: %w", order.ID, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("committing order %s: %w", order.ID, err)
	}

	r.paths[order.ID] = path
	return nil
}

// LoadOrder reads a single order by ID. Orders saved by other processes are
// found by scanning the partition tree.
func (r *OrderRegistry) LoadOrder(orderID string) (*domain.Order, error) {
	if path, ok := r.paths[orderID]; ok {
		return readOrderFile(path)
	}

	var found string
	err := filepath.WalkDir(r.root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && d.Name() == orderID+".json" {
			found = path
			return filepath.SkipAll
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scanning registry for order %s: %w", orderID, err)
	}
	if found == "" {
		return nil, fmt.Errorf("order %s not found in registry", orderID)
	}
	r.paths[orderID] = found
	return readOrderFile(found)
}

// ListOrders walks the partition tree and returns orders matching the
// filter, in path (date, then ID) order. Unparsable files — e.g. a torn
// write from a crashed run — are skipped with a warning.
func (r *OrderRegistry) ListOrders(filter ListFilter) ([]*domain.Order, error) {
	var orders []*domain.Order
	err := filepath.WalkDir(r.root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), ".json") {
			return nil
		}
		order, rerr := readOrderFile(path)
		if rerr != nil {
			r.log.Warn("skipping unreadable order record", "path", path, "error", rerr)
			return nil
		}
		if !matches(order, filter) {
			return nil
		}
		orders = append(orders, order)
		if filter.Limit > 0 && len(orders) >= filter.Limit {
			return filepath.SkipAll
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing orders: %w", err)
	}
	return orders, nil
}

// GetExecutions returns the execution records of one order.
func (r *OrderRegistry) GetExecutions(orderID string) ([]domain.OrderExecution, error) {
	order, err := r.LoadOrder(orderID)
	if err != nil {
		return nil, err
	}
	return order.Executions, nil
}

func matches(order *domain.Order, f ListFilter) bool {
	if f.Symbol != "" && order.Symbol != f.Symbol {
		return false
	}
	if f.Status != "" && order.Status != f.Status {
		return false
	}
	if !f.Since.IsZero() && order.CreatedAt.Before(f.Since) {
		return false
	}
	return true
}

func (r *OrderRegistry) orderPath(order *domain.Order) string {
	d := order.CreatedAt.UTC()
	return filepath.Join(r.root,
		fmt.Sprintf("%04d", d.Year()),
		fmt.Sprintf("%02d", d.Month()),
		fmt.Sprintf("%02d", d.Day()),
		order.ID+".json")
}

func readOrderFile(path string) (*domain.Order, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	var order domain.Order
	if err := json.Unmarshal(data, &order); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return &order, nil
}

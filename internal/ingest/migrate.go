// Package ingest migrates the legacy flat-file wishlist into the store. It
// runs once at boot, when the file still exists.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/mvdbosch/bookwish/internal/logger"
	"github.com/mvdbosch/bookwish/internal/model"
)

// lineRe matches the legacy `author - "title"` line format.
var lineRe = regexp.MustCompile(`^(.*?)\s*-\s*"(.+)"\s*$`)

// Store is the store contract the migration needs.
type Store interface {
	CreateItem(ctx context.Context, item model.Item) error
}

// MigrateFromFile imports items from the legacy wishlist file, then backs the
// file up as path+".backup" and removes the original so the migration runs
// only once. A missing file is not an error. Returns the number of items
// created; duplicates and unparsable lines are skipped.
func MigrateFromFile(ctx context.Context, path string, store Store, log logger.Logger) (int, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", path, err)
	}

	migrated := 0
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		m := lineRe.FindStringSubmatch(line)
		if m == nil {
			log.Warn("skipping invalid wishlist line", logger.String("line", line))
			continue
		}

		item, err := model.NewItem(uuid.New().String(), strings.TrimSpace(m[1]), strings.TrimSpace(m[2]), model.ViaMigration)
		if err != nil {
			log.Warn("skipping invalid wishlist line", logger.String("line", line))
			continue
		}

		switch err := store.CreateItem(ctx, item); {
		case errors.Is(err, model.ErrDuplicate):
			log.Info("already on wishlist", logger.String("line", line))
		case err != nil:
			return migrated, fmt.Errorf("migrate %q: %w", line, err)
		default:
			migrated++
		}
	}

	if err := os.WriteFile(path+".backup", data, 0o644); err != nil {
		return migrated, fmt.Errorf("write backup: %w", err)
	}
	if err := os.Remove(path); err != nil {
		return migrated, fmt.Errorf("remove %s: %w", path, err)
	}

	log.Info("legacy wishlist migrated",
		logger.Int("count", migrated),
		logger.String("backup", path+".backup"))
	return migrated, nil
}

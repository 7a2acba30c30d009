package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// BackupStamp formats t as UTC ISO-8601 with ':' and '.' replaced by '-',
// e.g. 2024-05-01T10-20-30-123Z.
func BackupStamp(t time.Time) string {
	s := t.UTC().Format("2006-01-02T15:04:05.000Z")
	return strings.NewReplacer(":", "-", ".", "-").Replace(s)
}

func backupName(coll Collection, stamp string) string {
	return string(coll) + "_" + stamp + ".json"
}

// Backup writes one <collection>_<stamp>.json per collection into dir and
// returns the written paths. It takes no locks, so a concurrent write may
// or may not be captured. The file driver copies its files verbatim; other
// drivers export through All. Empty collections are skipped.
func Backup(ctx context.Context, st Store, dir string, now time.Time) ([]string, error) {
	if st == nil {
		return nil, ErrDisabled
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	stamp := BackupStamp(now)

	if f, ok := st.(*fileStore); ok {
		return f.backupFiles(dir, stamp)
	}

	var out []string
	for _, coll := range Collections {
		m, err := st.All(ctx, coll)
		if err != nil {
			return out, fmt.Errorf("backup %s: %w", coll, err)
		}
		if len(m) == 0 {
			continue
		}
		b, err := json.MarshalIndent(m, "", "  ")
		if err != nil {
			return out, err
		}
		dst := filepath.Join(dir, backupName(coll, stamp))
		if err := os.WriteFile(dst, b, 0o600); err != nil {
			return out, err
		}
		out = append(out, dst)
	}
	return out, nil
}

// PruneBackups keeps the newest keep backup sets in dir and removes the
// rest. A set is every file sharing one stamp. keep <= 0 keeps everything.
func PruneBackups(dir string, keep int) (int, error) {
	if keep <= 0 {
		return 0, nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, nil
		}
		return 0, err
	}

	sets := map[string][]string{}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		stamp, ok := stampOf(e.Name())
		if !ok {
			continue
		}
		sets[stamp] = append(sets[stamp], e.Name())
	}
	stamps := make([]string, 0, len(sets))
	for s := range sets {
		stamps = append(stamps, s)
	}
	// Stamps are fixed-width UTC, so lexical order is chronological.
	sort.Sort(sort.Reverse(sort.StringSlice(stamps)))

	removed := 0
	for _, s := range stamps[min(keep, len(stamps)):] {
		for _, name := range sets[s] {
			if err := os.Remove(filepath.Join(dir, name)); err != nil && !errors.Is(err, os.ErrNotExist) {
				return removed, err
			}
			removed++
		}
	}
	return removed, nil
}

func stampOf(name string) (string, bool) {
	if !strings.HasSuffix(name, ".json") {
		return "", false
	}
	for _, coll := range Collections {
		prefix := string(coll) + "_"
		if strings.HasPrefix(name, prefix) {
			return strings.TrimSuffix(strings.TrimPrefix(name, prefix), ".json"), true
		}
	}
	return "", false
}

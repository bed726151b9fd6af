package credentials

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
)

// KeyListSeparator separates credentials in environment lists.
const KeyListSeparator = "|"

// ParseKeyList splits a separator-delimited list, trimming whitespace and
// dropping empty entries.
func ParseKeyList(s string) []string {
	var keys []string
	for _, part := range strings.Split(s, KeyListSeparator) {
		if key := strings.TrimSpace(part); key != "" {
			keys = append(keys, key)
		}
	}
	return keys
}

// KeySet is a set of credentials to register and a set to mark removed.
type KeySet struct {
	Add    []string
	Remove []string
}

// Merge returns the union of both sets, preserving order.
func (k KeySet) Merge(other KeySet) KeySet {
	return KeySet{
		Add:    append(append([]string(nil), k.Add...), other.Add...),
		Remove: append(append([]string(nil), k.Remove...), other.Remove...),
	}
}

// BootstrapResult reports what Bootstrap changed.
type BootstrapResult struct {
	// Added is the number of newly registered credentials.
	Added int

	// Removed is the number of existing credentials marked removed.
	Removed int
}

// Bootstrap registers keys.Add and then soft-deletes keys.Remove. Existing
// credentials keep their counters and removal never deletes a row.
func Bootstrap(ctx context.Context, store Store, keys KeySet) (BootstrapResult, error) {
	var result BootstrapResult

	for _, id := range keys.Add {
		created, err := store.InsertIfAbsent(ctx, id)
		if err != nil {
			return result, fmt.Errorf("register credential: %w", err)
		}
		if created {
			result.Added++
		}
	}

	for _, id := range keys.Remove {
		found, err := store.SetRemoved(ctx, id, true)
		if err != nil {
			return result, fmt.Errorf("remove credential: %w", err)
		}
		if found {
			result.Removed++
		}
	}

	slog.InfoContext(ctx, "credential bootstrap applied",
		"component", "credentials.bootstrap",
		"requested_add", len(keys.Add),
		"added", result.Added,
		"requested_remove", len(keys.Remove),
		"removed", result.Removed,
	)

	return result, nil
}

// LoadKeysFile reads a keys file: one credential per line, blank lines and
// lines starting with '#' ignored, a leading '-' marks the credential for
// removal.
func LoadKeysFile(path string) (KeySet, error) {
	// #nosec G304 - operator-configured path
	f, err := os.Open(path)
	if err != nil {
		return KeySet{}, fmt.Errorf("open keys file %q: %w", path, err)
	}
	defer f.Close()

	var keys KeySet
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if strings.HasPrefix(line, "-") {
			if id := strings.TrimSpace(line[1:]); id != "" {
				keys.Remove = append(keys.Remove, id)
			}
			continue
		}
		keys.Add = append(keys.Add, line)
	}
	if err := scanner.Err(); err != nil {
		return KeySet{}, fmt.Errorf("read keys file %q: %w", path, err)
	}

	return keys, nil
}

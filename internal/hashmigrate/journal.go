package hashmigrate

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"

	"atelier/internal/fileutil"
	"atelier/internal/fingerprint"
)

type journal struct {
	From  fingerprint.Algorithm `json:"from"`
	To    fingerprint.Algorithm `json:"to"`
	Pairs map[string]string     `json:"pairs"`
}

func readJournal(path string, from, to fingerprint.Algorithm) (map[string]string, error) {
	if path == "" {
		return nil, nil
	}
	raw, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read journal: %w", err)
	}
	var j journal
	if err := json.Unmarshal(raw, &j); err != nil {
		return nil, fmt.Errorf("parse journal %s: %w", path, err)
	}
	if j.From != from || j.To != to {
		return nil, nil
	}
	return j.Pairs, nil
}

func writeJournal(path string, from, to fingerprint.Algorithm, pairs map[string]string) error {
	if path == "" {
		return nil
	}
	data, err := json.MarshalIndent(journal{From: from, To: to, Pairs: pairs}, "", "    ")
	if err != nil {
		return fmt.Errorf("encode journal: %w", err)
	}
	if err := fileutil.WriteFileAtomic(path, data, 0o644); err != nil {
		return fmt.Errorf("write journal: %w", err)
	}
	return nil
}

func removeJournal(path string) error {
	if path == "" {
		return nil
	}
	_, err := fileutil.RemoveIfExists(path)
	return err
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

package syncer

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/skaphos/forksync/internal/model"
)

// metadataHeader precedes the key=value record so the file is
// recognizably generated.
const metadataHeader = "# This file is generated by forksync.\n" +
	"# Do not edit manually; re-run `forksync sync` instead.\n"

// WriteMetadata persists the sync record, unconditionally overwriting
// any previous one. Always safe to rewrite, so no idempotency check.
func WriteMetadata(path string, meta model.SyncMetadata) error {
	body := fmt.Sprintf("%supstream_tag=%s\nupstream_rev=%s\nsynced_at_utc=%s\n",
		metadataHeader,
		meta.UpstreamTag,
		meta.UpstreamRev,
		meta.SyncedAt.UTC().Format(time.RFC3339),
	)
	return os.WriteFile(path, []byte(body), 0o644)
}

// ReadMetadata parses a sync record written by WriteMetadata. Comment
// lines and unknown keys are ignored.
func ReadMetadata(path string) (*model.SyncMetadata, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var meta model.SyncMetadata
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		switch key {
		case "upstream_tag":
			meta.UpstreamTag = value
		case "upstream_rev":
			meta.UpstreamRev = value
		case "synced_at_utc":
			at, err := time.Parse(time.RFC3339, value)
			if err != nil {
				return nil, fmt.Errorf("parse synced_at_utc: %w", err)
			}
			meta.SyncedAt = at
		}
	}
	if meta.UpstreamTag == "" && meta.UpstreamRev == "" {
		return nil, fmt.Errorf("%s: no sync metadata found", path)
	}
	return &meta, nil
}

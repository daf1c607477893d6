package storage

import (
	"fmt"
	"strings"
)

// ArtifactKind identifies one of the four payload types captured per step.
type ArtifactKind string

const (
	KindHTML       ArtifactKind = "html"
	KindScreenshot ArtifactKind = "screenshot"
	KindAction     ArtifactKind = "action"
	KindMetadata   ArtifactKind = "metadata"
)

// Standard file names for stored step artifacts. These are part of the
// on-disk/in-bucket layout and must not change, or previously captured data
// becomes unreachable.
const (
	htmlFilename       = "observation.html"
	screenshotFilename = "screenshot.png"
	actionFilename     = "action.json"
	metadataFilename   = "metadata.json"
)

// Kinds lists all artifact kinds in their canonical order.
var Kinds = []ArtifactKind{KindHTML, KindScreenshot, KindAction, KindMetadata}

var kindFilenames = map[ArtifactKind]string{
	KindHTML:       htmlFilename,
	KindScreenshot: screenshotFilename,
	KindAction:     actionFilename,
	KindMetadata:   metadataFilename,
}

// Key maps a (sessionID, stepID, kind) triple to its backend key. The mapping
// is pure: identical inputs always produce the identical key, and no two
// distinct triples collide as long as the IDs pass ValidateID.
func Key(sessionID, stepID string, kind ArtifactKind) string {
	return sessionID + "/" + stepID + "/" + kindFilenames[kind]
}

// ValidateID checks that a session or step ID is safe to use as a key
// segment. It rejects empty strings, path separators, and traversal
// sequences.
func ValidateID(id string) error {
	if id == "" {
		return fmt.Errorf("identifier cannot be empty: %w", ErrInvalidID)
	}
	if strings.ContainsAny(id, `/\`) || strings.Contains(id, "..") {
		return fmt.Errorf("identifier %q: %w", id, ErrInvalidID)
	}
	return nil
}

// contentTypeForKey returns the MIME type recorded alongside remote objects.
func contentTypeForKey(key string) string {
	switch {
	case strings.HasSuffix(key, ".html"):
		return "text/html"
	case strings.HasSuffix(key, ".png"):
		return "image/png"
	case strings.HasSuffix(key, ".json"):
		return "application/json"
	default:
		return "application/octet-stream"
	}
}

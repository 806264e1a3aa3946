package ingestion

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/andreyxaxa/catalog-ingest/internal/dto"
)

var (
	primaryPattern   = regexp.MustCompile(`^([^_]+)_primary\.\w+$`)
	secondaryPattern = regexp.MustCompile(`^([^_]+)_([^_]+)_(\d+)\.\w+$`)
)

// ParseFileName decodes the media naming convention:
//
//	<externalId>_primary.<ext>
//	<externalId>_<colorGroup>_<ordinal>.<ext>
//
// Anything else reports ok == false.
func ParseFileName(name string) (dto.MediaDescriptor, bool) {
	ext := strings.TrimPrefix(filepath.Ext(name), ".")

	if m := primaryPattern.FindStringSubmatch(name); m != nil {
		return dto.MediaDescriptor{
			ExternalID: m[1],
			Primary:    true,
			Ext:        ext,
		}, true
	}

	if m := secondaryPattern.FindStringSubmatch(name); m != nil {
		ordinal, err := strconv.Atoi(m[3])
		if err != nil {
			// too many digits for an int
			return dto.MediaDescriptor{}, false
		}

		return dto.MediaDescriptor{
			ExternalID: m[1],
			ColorGroup: m[2],
			Ordinal:    ordinal,
			Ext:        ext,
		}, true
	}

	return dto.MediaDescriptor{}, false
}

// EncodeFileName is the inverse of ParseFileName.
func EncodeFileName(d dto.MediaDescriptor) string {
	if d.Primary {
		return fmt.Sprintf("%s_primary.%s", d.ExternalID, d.Ext)
	}

	return fmt.Sprintf("%s_%s_%d.%s", d.ExternalID, d.ColorGroup, d.Ordinal, d.Ext)
}

// externalIDKey folds an external id for case-insensitive matching.
func externalIDKey(id string) string {
	return strings.ToLower(id)
}

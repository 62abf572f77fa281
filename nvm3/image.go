package nvm3

import (
	"sort"

	"github.com/rs/zerolog"

	"github.com/zollek/nvm3/internal/orderedmap"
	"github.com/zollek/nvm3/nvm3errors"
)

// LiveObjects is the compacted key-to-object mapping for one region,
// iterated in first-insertion order of the compacted log.
type LiveObjects = orderedmap.Map[Object]

// NewLiveObjects returns an empty LiveObjects, ready for EncodeImage.
func NewLiveObjects() *LiveObjects {
	return orderedmap.New[Object]()
}

// Image is the decoded result of ParseImage: both regions' pages in ring order,
// and both regions' compacted live object maps.
type Image struct {
	ApplicationPages   []Page
	ProtocolPages      []Page
	ApplicationObjects *LiveObjects
	ProtocolObjects    *LiveObjects
	// Diagnostics collects non-fatal compaction findings (orphaned
	// fragments, truncated fragment chains) across both regions.
	Diagnostics []*nvm3errors.Error
}

// ParseImage decodes a full NVM3 image buffer: page discovery, region
// partitioning, ring-order sorting, and compaction of both regions. When
// verbose is true, page and region discovery is traced via zerolog at debug
// level.
func ParseImage(buffer []byte, verbose bool) (*Image, error) {
	logger := newTraceLogger(verbose)

	var appPages, protoPages []Page
	offset := 0
	for offset < len(buffer) {
		page, consumed, err := ReadPage(buffer, offset)
		if err != nil {
			return nil, nvm3errors.Wrapf(err, "parsing page at offset %#x", offset)
		}
		logger.Debug().
			Int("offset", offset).
			Uint32("eraseCount", page.Header.EraseCount).
			Str("status", page.Header.Status.String()).
			Int("objects", len(page.Objects)).
			Msg("decoded page")

		if offset < ApplicationRegionSize {
			appPages = append(appPages, page)
		} else {
			protoPages = append(protoPages, page)
		}
		offset += consumed
	}

	sortPagesByRingOrder(appPages)
	sortPagesByRingOrder(protoPages)

	appObjects, appDiag, err := Compact(flattenObjects(appPages))
	if err != nil {
		return nil, nvm3errors.Wrap(err, "compacting application region")
	}
	protoObjects, protoDiag, err := Compact(flattenObjects(protoPages))
	if err != nil {
		return nil, nvm3errors.Wrap(err, "compacting protocol region")
	}

	diagnostics := append(appDiag, protoDiag...)
	for _, d := range diagnostics {
		logger.Debug().Str("kind", d.Kind.String()).Uint32("key", d.Key).Msg("compaction diagnostic")
	}

	return &Image{
		ApplicationPages:   appPages,
		ProtocolPages:      protoPages,
		ApplicationObjects: appObjects,
		ProtocolObjects:    protoObjects,
		Diagnostics:        diagnostics,
	}, nil
}

// sortPagesByRingOrder sorts pages in place by ascending erase count,
// breaking ties by ascending original byte offset. This reconstructs the
// logical write order of a wear-leveled ring whose physical start page
// rotates as pages are erased; offset-only ordering would silently reorder
// writes.
func sortPagesByRingOrder(pages []Page) {
	sort.SliceStable(pages, func(i, j int) bool {
		if pages[i].Header.EraseCount != pages[j].Header.EraseCount {
			return pages[i].Header.EraseCount < pages[j].Header.EraseCount
		}
		return pages[i].Offset < pages[j].Offset
	})
}

func flattenObjects(pages []Page) []RawObject {
	var total int
	for _, p := range pages {
		total += len(p.Objects)
	}
	out := make([]RawObject, 0, total)
	for _, p := range pages {
		out = append(out, p.Objects...)
	}
	return out
}

func newTraceLogger(verbose bool) zerolog.Logger {
	level := zerolog.Disabled
	if verbose {
		level = zerolog.DebugLevel
	}
	return zerolog.New(zerolog.NewConsoleWriter()).Level(level).With().Timestamp().Str("component", "nvm3").Logger()
}

package sync

import (
	"log"
	"sort"

	"vinylshop/internal/domain"
	"vinylshop/internal/gateway"
)

// adoption pairs an orphaned local record with the remote listing it should
// take over.
type adoption struct {
	record  domain.Record
	listing gateway.Listing
}

// resolveOrphans matches local records that lost (or never had) a listing id
// against remote listings no local record claims, by release id. A relist on
// the marketplace changes the listing id but keeps the release id, so this
// recovers identity without any string matching. When several unclaimed
// listings share the release id the lowest listing id wins, so repeated runs
// resolve identically; the ambiguity is logged for review.
//
// Adopted listings are removed from unclaimed so they are not also created.
func resolveOrphans(orphans []domain.Record, unclaimed map[int64]gateway.Listing, logger *log.Logger) []adoption {
	if len(orphans) == 0 || len(unclaimed) == 0 {
		return nil
	}

	sorted := make([]domain.Record, len(orphans))
	copy(sorted, orphans)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	var adoptions []adoption
	for _, rec := range sorted {
		var candidates []int64
		for id, l := range unclaimed {
			if l.ReleaseID == rec.ReleaseID {
				candidates = append(candidates, id)
			}
		}
		if len(candidates) == 0 {
			continue
		}
		sort.Slice(candidates, func(i, j int) bool { return candidates[i] < candidates[j] })
		if len(candidates) > 1 {
			logger.Printf("sync: ambiguous listing match for record %s (release %d): candidates %v, adopting %d",
				rec.ID, rec.ReleaseID, candidates, candidates[0])
		}

		chosen := unclaimed[candidates[0]]
		adoptions = append(adoptions, adoption{record: rec, listing: chosen})
		delete(unclaimed, candidates[0])
	}
	return adoptions
}

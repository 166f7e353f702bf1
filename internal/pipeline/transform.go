package pipeline

import (
	"time"

	"github.com/couchcryptid/field-readiness-service/internal/domain"
	"github.com/couchcryptid/field-readiness-service/internal/fleet"
)

// RollForwardActor is recorded as UpdatedBy on roll-forward writes.
const RollForwardActor = "rollforward"

// RollForwardStates converts fleet runs into truth writes. Runs that applied
// no new weather day, or ran without weather, are left untouched so their
// existing truth and provenance survive.
func RollForwardStates(runs []fleet.FieldRun, now time.Time) []domain.StorageState {
	states := make([]domain.StorageState, 0, len(runs))
	for _, fr := range runs {
		if fr.Degraded || len(fr.Run.Trace) == 0 {
			continue
		}
		states = append(states, domain.StorageState{
			FieldID:      fr.Field.ID,
			StorageFinal: fr.Run.StorageFinal,
			AsOfDate:     fr.Run.AsOfDate,
			SmaxAtSave:   fr.Run.Factors.Smax,
			Source:       domain.SourceDailyRollForward,
			UpdatedAt:    now.UTC(),
			UpdatedBy:    RollForwardActor,
		}.Normalize())
	}
	return states
}

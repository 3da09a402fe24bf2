package memory

import (
	"maps"

	"github.com/khanghh/kbooks/model"
)

// MergeContext applies update on top of existing. Entities and preferences are
// merged key by key, the last function fields are replaced when set.
func MergeContext(existing model.SessionContext, update *model.SessionContext) model.SessionContext {
	if update == nil {
		return existing
	}
	merged := existing
	if update.Entities != nil {
		merged.Entities = mergeMap(existing.Entities, update.Entities)
	}
	if update.Preferences != nil {
		merged.Preferences = mergeMap(existing.Preferences, update.Preferences)
	}
	if update.LastFunction != "" {
		merged.LastFunction = update.LastFunction
	}
	if update.LastArguments != nil {
		merged.LastArguments = update.LastArguments
	}
	if update.LastResult != nil {
		merged.LastResult = update.LastResult
	}
	return merged
}

func mergeMap(dst, src map[string]string) map[string]string {
	out := make(map[string]string, len(dst)+len(src))
	maps.Copy(out, dst)
	maps.Copy(out, src)
	return out
}

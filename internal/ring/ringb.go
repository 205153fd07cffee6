package ring

import (
	"strings"

	"github.com/vampirenirmal/storyweave/internal/domain"
)

// BuildRingB derives the scene-local layer from the plan and beats,
// resolving cast names against the character roster and filtering
// continuity locks down to the ones this scene can violate.
func BuildRingB(plan domain.ScenePlan, beats domain.SceneBeats, roster []domain.Character, stateOverrides map[string]string, locks []domain.Lock) domain.RingB {
	moodTags := plan.Setting.MoodTags
	if moodTags == nil {
		moodTags = []string{}
	}

	beatList := beats.Beats
	if beatList == nil {
		beatList = []domain.Beat{}
	}

	return domain.RingB{
		SceneGoal: plan.Goal,
		Setting: domain.RingSetting{
			Location: domain.Location{
				ID:          plan.Setting.LocationID,
				Name:        plan.Setting.LocationID,
				Constraints: []string{},
			},
			Time:     plan.Setting.Time,
			MoodTags: moodTags,
		},
		Cast:            ResolveCast(plan.Cast, roster, stateOverrides),
		Beats:           beatList,
		ContinuityLocks: relevantLocks(locks, plan.Cast, plan.Setting.LocationID),
	}
}

// ResolveCast maps plan cast names to full character records. A name
// with no roster match still appears in the cast as a stub, so the
// writer knows who is present even without a bible entry. Chapter state
// overrides replace the roster's current_state when present.
func ResolveCast(names []string, roster []domain.Character, stateOverrides map[string]string) []domain.Character {
	cast := make([]domain.Character, 0, len(names))
	for _, name := range names {
		entry, ok := domain.FindCharacter(roster, name)
		if !ok {
			cast = append(cast, domain.Character{
				ID:        name,
				Name:      name,
				VoiceTics: []string{},
				WantsNow:  []string{},
				Taboos:    []string{},
			})
			continue
		}
		if state, ok := stateOverrides[entry.ID]; ok {
			entry.CurrentState = state
		}
		cast = append(cast, entry)
	}
	return cast
}

// relevantLocks keeps locks whose statement mentions a cast member or
// the scene location. With no keywords to match against, every lock is
// kept: better an oversized packet than a missed constraint.
func relevantLocks(locks []domain.Lock, cast []string, locationID string) []domain.Lock {
	keywords := make([]string, 0, len(cast)+1)
	for _, name := range cast {
		keywords = append(keywords, strings.ToLower(name))
	}
	if locationID != "" {
		keywords = append(keywords, strings.ToLower(locationID))
	}

	selected := make([]domain.Lock, 0, len(locks))
	for _, lock := range locks {
		if len(keywords) == 0 {
			selected = append(selected, lock)
			continue
		}
		statement := strings.ToLower(lock.Statement)
		for _, keyword := range keywords {
			if strings.Contains(statement, keyword) {
				selected = append(selected, lock)
				break
			}
		}
	}
	return selected
}

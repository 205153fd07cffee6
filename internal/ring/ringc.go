package ring

import (
	"strings"

	"github.com/vampirenirmal/storyweave/internal/artifact"
	"github.com/vampirenirmal/storyweave/internal/domain"
)

// BuildRingC derives the cross-scene memory layer. Facts and glossary
// terms are filtered against the scene's Ring B so the packet carries
// only memory the scene can actually use. Unlike lock filtering, an
// empty keyword set admits nothing: stale facts are worse than none.
//
// open_threads stays empty until scene outcomes are tracked across
// runs; the field is part of the packet shape so downstream consumers
// do not have to change when it fills in.
func BuildRingC(priorSummary string, facts []string, glossary []domain.GlossaryEntry, ringB domain.RingB) domain.RingC {
	if priorSummary == "" {
		priorSummary = "N/A"
	}
	return domain.RingC{
		PriorSceneSummary: priorSummary,
		OpenThreads:       []string{},
		RelevantFacts:     relevantFacts(facts, ringB),
		Glossary:          relevantGlossary(glossary, ringB),
	}
}

func relevantFacts(facts []string, ringB domain.RingB) []string {
	keywords := make([]string, 0, len(ringB.Cast)+1)
	for _, c := range ringB.Cast {
		keywords = append(keywords, strings.ToLower(c.Name))
	}
	if id := ringB.Setting.Location.ID; id != "" {
		keywords = append(keywords, strings.ToLower(id))
	}

	selected := make([]string, 0, len(facts))
	for _, fact := range facts {
		statement := strings.ToLower(fact)
		for _, keyword := range keywords {
			if strings.Contains(statement, keyword) {
				selected = append(selected, fact)
				break
			}
		}
	}
	return selected
}

// relevantGlossary keeps terms that appear anywhere in the serialized
// Ring B, so a term mentioned in a beat description or a lock statement
// gets its definition carried along.
func relevantGlossary(glossary []domain.GlossaryEntry, ringB domain.RingB) []domain.GlossaryEntry {
	if len(glossary) == 0 {
		return []domain.GlossaryEntry{}
	}
	canon, err := artifact.CanonicalJSON(ringB)
	if err != nil {
		return []domain.GlossaryEntry{}
	}
	blob := strings.ToLower(string(canon))

	selected := make([]domain.GlossaryEntry, 0, len(glossary))
	for _, entry := range glossary {
		if strings.Contains(blob, strings.ToLower(entry.Term)) {
			selected = append(selected, entry)
		}
	}
	return selected
}

package pipeline

import (
	"github.com/rotisserie/eris"

	"github.com/sells-group/watchlog/internal/artifact"
)

// Stage names in execution order.
const (
	StageScrape   = "scrape"
	StageExtract  = "extract"
	StageDedup    = "dedup"
	StageEnrich   = "enrich"
	StageClassify = "classify"
)

// Stages lists every stage in execution order.
var Stages = []string{StageScrape, StageExtract, StageDedup, StageEnrich, StageClassify}

var outputs = map[string]string{
	StageScrape:   artifact.RawFile,
	StageExtract:  artifact.IdentityFile,
	StageDedup:    artifact.UniqueFile,
	StageEnrich:   artifact.EnrichedFile,
	StageClassify: artifact.CategorizedFile,
}

// Output returns the artifact file name a stage writes.
func Output(stage string) string {
	return outputs[stage]
}

// Upstream returns the stage whose artifact stage reads, or "" for scrape.
func Upstream(stage string) string {
	for i, s := range Stages {
		if s == stage && i > 0 {
			return Stages[i-1]
		}
	}
	return ""
}

// Range returns the stages from..to inclusive. Empty bounds default to the
// first and last stage.
func Range(from, to string) ([]string, error) {
	if from == "" {
		from = Stages[0]
	}
	if to == "" {
		to = Stages[len(Stages)-1]
	}
	fi, ti := indexOf(from), indexOf(to)
	if fi < 0 {
		return nil, eris.Errorf("pipeline: unknown stage %q", from)
	}
	if ti < 0 {
		return nil, eris.Errorf("pipeline: unknown stage %q", to)
	}
	if fi > ti {
		return nil, eris.Errorf("pipeline: stage %q comes after %q", from, to)
	}
	return Stages[fi : ti+1], nil
}

func indexOf(stage string) int {
	for i, s := range Stages {
		if s == stage {
			return i
		}
	}
	return -1
}

package matching

import (
	"context"
	"fmt"
	"runtime"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/standardbeagle/pricematch/internal/corrections"
	"github.com/standardbeagle/pricematch/internal/debug"
	perrors "github.com/standardbeagle/pricematch/internal/errors"
	"github.com/standardbeagle/pricematch/internal/types"
)

// Reranker is the semantic stage. *rerank.Adapter implements it.
type Reranker interface {
	Rerank(ctx context.Context, item types.WorkItem, candidates []types.MatchCandidate) (*types.Verdict, bool)
	MaxCandidates() int
}

// ResolverConfig holds the engine thresholds
type ResolverConfig struct {
	Weights         Weights
	MaxAlternatives int
	AutoThreshold   float64 // status auto at or above
	SemanticSkip    float64 // lexical top at or above never reranks
	SemanticAccept  float64 // minimum verdict confidence

	LearningEnabled bool
	MinFrequency    int
	SemanticEnabled bool

	Workers int // 0 = runtime.NumCPU()
}

// DefaultResolverConfig returns the tuned defaults with both optional
// stages switched on.
func DefaultResolverConfig() ResolverConfig {
	return ResolverConfig{
		Weights:         DefaultWeights(),
		MaxAlternatives: types.DefaultMaxAlternatives,
		AutoThreshold:   types.DefaultAutoThreshold,
		SemanticSkip:    types.DefaultSemanticSkip,
		SemanticAccept:  types.DefaultSemanticAccept,
		LearningEnabled: true,
		MinFrequency:    types.DefaultMinCorrectionFreq,
		SemanticEnabled: true,
	}
}

// Resolver picks one catalog entry per work item. Safe for concurrent use;
// the catalog passed to Resolve is treated as read-only.
type Resolver struct {
	cfg      ResolverConfig
	ranker   *Ranker
	learned  *LearnedLookup
	reranker Reranker
	newID    func() string
}

// NewResolver wires the stages together. A nil store disables learning and
// a nil reranker disables the semantic stage.
func NewResolver(cfg ResolverConfig, ranker *Ranker, store corrections.Store, reranker Reranker) *Resolver {
	if ranker == nil {
		ranker = NewRanker(nil, cfg.Weights)
	}
	if store == nil {
		cfg.LearningEnabled = false
	}
	if reranker == nil {
		cfg.SemanticEnabled = false
	}
	if cfg.MaxAlternatives < 0 {
		cfg.MaxAlternatives = 0
	}
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}
	return &Resolver{
		cfg:      cfg,
		ranker:   ranker,
		learned:  NewLearnedLookup(store, cfg.MinFrequency),
		reranker: reranker,
		newID:    uuid.NewString,
	}
}

// Config returns the effective configuration
func (r *Resolver) Config() ResolverConfig {
	return r.cfg
}

type job struct {
	room string
	item types.WorkItem
}

// Resolve produces one record per work item, in room then item order. An
// empty catalog yields no records. A catalog entry with an empty or
// duplicate code fails the whole call with a CatalogError. If ctx ends
// early the records finished so far are returned with ctx.Err().
func (r *Resolver) Resolve(ctx context.Context, survey types.Survey, catalog []types.CatalogEntry) ([]types.MatchRecord, error) {
	index, err := indexCatalog(catalog)
	if err != nil {
		return nil, err
	}
	if len(catalog) == 0 {
		debug.LogMatch("empty catalog, %d items left unmatched", survey.ItemCount())
		return []types.MatchRecord{}, nil
	}

	jobs := make([]job, 0, survey.ItemCount())
	for _, room := range survey.Rooms {
		for _, item := range room.Items {
			jobs = append(jobs, job{room: room.Name, item: item})
		}
	}

	results := make([]*types.MatchRecord, len(jobs))
	var g errgroup.Group
	g.SetLimit(r.cfg.Workers)
	for i, j := range jobs {
		if ctx.Err() != nil {
			break
		}
		i, j := i, j
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			results[i] = r.resolveItem(ctx, j, catalog, index)
			return nil
		})
	}
	_ = g.Wait()

	records := make([]types.MatchRecord, 0, len(jobs))
	for _, rec := range results {
		if rec != nil {
			records = append(records, *rec)
		}
	}

	if err := ctx.Err(); err != nil {
		debug.LogMatch("resolve interrupted after %d/%d items: %v", len(records), len(jobs), err)
		return records, err
	}
	return records, nil
}

func indexCatalog(catalog []types.CatalogEntry) (map[string]int, error) {
	index := make(map[string]int, len(catalog))
	for i, entry := range catalog {
		if entry.Code == "" {
			return nil, perrors.NewCatalogError(i, "", "empty code")
		}
		if prev, dup := index[entry.Code]; dup {
			return nil, perrors.NewCatalogError(i, entry.Code, fmt.Sprintf("duplicate code, first seen at entry %d", prev))
		}
		index[entry.Code] = i
	}
	return index, nil
}

// rankDepth is deep enough for the alternatives plus the chosen entry, and
// for a full reranker shortlist.
func (r *Resolver) rankDepth() int {
	depth := r.cfg.MaxAlternatives + 1
	if r.cfg.SemanticEnabled {
		if k := r.reranker.MaxCandidates(); k > depth {
			depth = k
		}
	}
	return depth
}

func (r *Resolver) resolveItem(ctx context.Context, j job, catalog []types.CatalogEntry, index map[string]int) *types.MatchRecord {
	item := j.item
	ranked := r.ranker.Rank(item, catalog, r.rankDepth())

	if r.cfg.LearningEnabled {
		if c := r.learned.Lookup(ctx, item); c != nil {
			if pos, ok := index[c.Code]; ok {
				hit := r.ranker.Score(item, catalog[pos])
				rec := r.newRecord(j, hit, 1.0, types.MatchTypeLearned, "")
				rec.Alternatives = r.alternatives(ranked, hit.Entry.Code)
				return rec
			}
			debug.LogLearn("learned code %s not in catalog, ignoring", c.Code)
		}
	}

	if len(ranked) == 0 {
		return nil
	}

	chosen := ranked[0]
	confidence := chosen.Score
	matchType := types.MatchTypeLexical
	rationale := ""

	if r.cfg.SemanticEnabled && len(ranked) >= 2 && chosen.Score < r.cfg.SemanticSkip {
		if v, ok := r.reranker.Rerank(ctx, item, ranked); ok {
			switch {
			case v.Index < 0 || v.Index >= len(ranked):
				debug.LogMatch("verdict index %d out of range for %q", v.Index, item.Description)
			case v.Confidence < r.cfg.SemanticAccept:
				debug.LogMatch("verdict %.2f below accept threshold for %q, keeping lexical", v.Confidence, item.Description)
			default:
				chosen = ranked[v.Index]
				confidence = v.Confidence
				matchType = types.MatchTypeSemantic
				rationale = v.Rationale
			}
		}
	}

	rec := r.newRecord(j, chosen, confidence, matchType, rationale)
	rec.Alternatives = r.alternatives(ranked, chosen.Entry.Code)
	debug.LogMatch("%q -> %s (%s, %.2f)", item.Description, chosen.Entry.Code, matchType, confidence)
	return rec
}

func (r *Resolver) newRecord(j job, c types.MatchCandidate, confidence float64, mt types.MatchType, rationale string) *types.MatchRecord {
	return &types.MatchRecord{
		ID:         r.newID(),
		Room:       j.room,
		Item:       j.item,
		Match:      types.SnapshotEntry(c.Entry),
		Confidence: confidence,
		TextScore:  c.TextScore,
		UnitScore:  c.UnitScore,
		MatchType:  mt,
		Rationale:  rationale,
		Status:     types.StatusFor(confidence, r.cfg.AutoThreshold),
	}
}

// alternatives returns the ranked candidates other than chosen, in rank
// order, at most MaxAlternatives.
func (r *Resolver) alternatives(ranked []types.MatchCandidate, chosen string) []types.Alternative {
	alts := make([]types.Alternative, 0, r.cfg.MaxAlternatives)
	for _, c := range ranked {
		if len(alts) >= r.cfg.MaxAlternatives {
			break
		}
		if c.Entry.Code == chosen {
			continue
		}
		alts = append(alts, types.AlternativeFrom(c))
	}
	return alts
}

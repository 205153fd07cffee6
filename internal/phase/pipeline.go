package phase

import (
	"context"
	"slices"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/vampirenirmal/storyweave/internal/artifact"
	"github.com/vampirenirmal/storyweave/internal/ring"
)

// Pipeline drives the per-scene stages (beats, context, draft,
// continuity) for many scenes with bounded concurrency. Scenes mostly
// write disjoint artifacts, with one cross-scene edge: scene N's context
// packet summarizes scene N-1's draft. Run holds scene N's context stage
// until scene N-1's draft has landed whenever both are in the run set;
// within one scene the stages stay strictly ordered.
type Pipeline struct {
	env     Env
	builder *ring.Builder
	workers int
}

type PipelineOption func(*Pipeline)

// WithSceneWorkers sets how many scenes run concurrently.
func WithSceneWorkers(n int) PipelineOption {
	return func(p *Pipeline) {
		if n > 0 {
			p.workers = n
		}
	}
}

func NewPipeline(env Env, builder *ring.Builder, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{env: env, builder: builder, workers: 1}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// RunParams configures one pipeline run across a set of scenes.
type RunParams struct {
	SceneIDs    []int
	Budget      int
	Resolution  artifact.Resolution
	Include     ring.Include
	Length      string
	TargetWords int
	CheckInput  string
	Force       bool
	RunID       string
}

// SceneRun reports what happened for one scene. Cached reports which
// stages were skipped because their artifacts already existed.
type SceneRun struct {
	SceneID int      `json:"scene_id"`
	Cached  []string `json:"cached,omitempty"`
}

// Run processes every scene in params.SceneIDs. The first stage error
// cancels the remaining scenes; completed scene artifacts stay on disk.
func (p *Pipeline) Run(ctx context.Context, params RunParams) ([]SceneRun, error) {
	if len(params.SceneIDs) == 0 {
		return []SceneRun{}, nil
	}

	p.env.logger().Info("pipeline starting",
		"scene_count", len(params.SceneIDs),
		"workers", p.workers,
		"run_id", params.RunID)

	var mu sync.Mutex
	runs := make([]SceneRun, 0, len(params.SceneIDs))

	// Ascending submission order keeps the prior-draft wait deadlock-free
	// under SetLimit: a waiting scene's predecessor always already holds
	// a worker slot or has finished. Duplicates run once.
	sceneIDs := append([]int(nil), params.SceneIDs...)
	sort.Ints(sceneIDs)
	sceneIDs = slices.Compact(sceneIDs)

	// draftReady[N] closes once scene N's draft is on disk, so scene N+1
	// can pick up its prior-scene summary instead of racing the writer.
	draftReady := make(map[int]chan struct{}, len(sceneIDs))
	for _, sceneID := range sceneIDs {
		draftReady[sceneID] = make(chan struct{})
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)

	for _, sceneID := range sceneIDs {
		sceneID := sceneID
		g.Go(func() error {
			run, err := p.runScene(ctx, sceneID, params, draftReady)
			if err != nil {
				p.env.logger().Error("scene pipeline failed",
					"scene_id", sceneID,
					"error", err)
				return err
			}
			mu.Lock()
			runs = append(runs, run)
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(runs, func(i, j int) bool { return runs[i].SceneID < runs[j].SceneID })
	p.env.logger().Info("pipeline finished", "scene_count", len(runs))
	return runs, nil
}

func (p *Pipeline) runScene(ctx context.Context, sceneID int, params RunParams, draftReady map[int]chan struct{}) (SceneRun, error) {
	run := SceneRun{SceneID: sceneID}

	beats, err := PlanBeats(ctx, p.env, sceneID, params.Force, params.RunID)
	if err != nil {
		return run, err
	}
	if beats == nil {
		run.Cached = append(run.Cached, "beats")
	}

	// The context packet summarizes the previous scene's draft, so wait
	// for it when that scene belongs to this run. A cancelled group
	// unblocks the wait.
	if prior, ok := draftReady[sceneID-1]; ok {
		select {
		case <-prior:
		case <-ctx.Done():
			return run, ctx.Err()
		}
	}

	built, err := p.builder.Build(ctx, ring.Params{
		SceneID:    sceneID,
		Budget:     params.Budget,
		Resolution: params.Resolution,
		Include:    params.Include,
		RunID:      params.RunID,
		Force:      params.Force,
	})
	if err != nil {
		return run, err
	}
	if built == nil {
		run.Cached = append(run.Cached, "context")
	}

	draft, err := WriteScene(ctx, p.env, WriteParams{
		SceneID:     sceneID,
		Length:      params.Length,
		TargetWords: params.TargetWords,
		Force:       params.Force,
		RunID:       params.RunID,
	})
	if err != nil {
		return run, err
	}
	if draft == nil {
		run.Cached = append(run.Cached, "draft")
	}
	close(draftReady[sceneID])

	checkInput := params.CheckInput
	if checkInput == "" {
		checkInput = "draft"
	}
	checked, err := CheckContinuity(ctx, p.env, sceneID, checkInput, params.Force, params.RunID)
	if err != nil {
		return run, err
	}
	if checked == nil {
		run.Cached = append(run.Cached, "continuity")
	}

	return run, nil
}

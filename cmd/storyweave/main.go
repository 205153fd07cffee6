// Command storyweave drives the story pipeline: seed resolution,
// spine/scene/beat planning, context packet assembly, prose drafting,
// and continuity checking, with every stage persisting artifacts under
// a workspace root.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/vampirenirmal/storyweave/internal/agent"
	"github.com/vampirenirmal/storyweave/internal/artifact"
	"github.com/vampirenirmal/storyweave/internal/config"
	"github.com/vampirenirmal/storyweave/internal/domain"
	"github.com/vampirenirmal/storyweave/internal/generate"
	"github.com/vampirenirmal/storyweave/internal/phase"
	"github.com/vampirenirmal/storyweave/internal/ring"
	"github.com/vampirenirmal/storyweave/internal/schema"
)

type app struct {
	root    string
	runID   string
	jsonOut bool

	cfg    *config.Config
	logger *slog.Logger
}

func (a *app) layout() artifact.Layout {
	return artifact.NewLayout(a.root)
}

// emit prints a machine-readable result for --json consumers.
func (a *app) emit(cmd *cobra.Command, payload any) error {
	data, err := artifact.CanonicalJSON(payload)
	if err != nil {
		return err
	}
	_, err = cmd.OutOrStdout().Write(data)
	return err
}

// env builds the full stage environment, including the backend client.
// Only commands that may call the model pay its cost.
func (a *app) env(ctx context.Context) (phase.Env, error) {
	client, err := agent.NewClient(ctx, a.cfg.BaseURL, a.cfg.APIKey, a.cfg.Model, a.cfg.Backend,
		agent.WithTimeout(time.Duration(a.cfg.TimeoutSeconds)*time.Second),
		agent.WithRateLimit(a.cfg.Limits.RequestsPerMinute, a.cfg.Limits.BurstSize),
		agent.WithLogger(a.logger),
	)
	if err != nil {
		return phase.Env{}, err
	}
	schemas := schema.NewValidator()
	return phase.Env{
		Layout:   a.layout(),
		Client:   client,
		Protocol: generate.NewProtocol(client, schemas, a.logger),
		Schemas:  schemas,
		Logger:   a.logger,
	}, nil
}

func (a *app) builder(env phase.Env) *ring.Builder {
	return ring.NewBuilder(env.Layout, env.Client, env.Protocol, env.Schemas, a.logger)
}

func main() {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:           "storyweave",
		Short:         "Artifact-driven story generation pipeline",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			a.cfg = cfg

			level := slog.LevelInfo
			if cfg.Debug {
				level = slog.LevelDebug
			}
			a.logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
			slog.SetDefault(a.logger)

			if a.runID == "" {
				a.runID = uuid.NewString()
			}
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVar(&a.root, "root", ".", "workspace root directory")
	rootCmd.PersistentFlags().StringVar(&a.runID, "run-id", "", "run identifier recorded in artifact metadata (default: random UUID)")
	rootCmd.PersistentFlags().BoolVar(&a.jsonOut, "json", false, "print the produced artifact as JSON")

	rootCmd.AddCommand(
		newInitCmd(a),
		newSeedCmd(a),
		newPlanCmd(a),
		newBuildContextCmd(a),
		newWriteCmd(a),
		newCheckCmd(a),
		newRunCmd(a),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newInitCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create the workspace skeleton and default artifacts",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := phase.InitWorkspace(a.layout()); err != nil {
				return err
			}
			if a.jsonOut {
				return a.emit(cmd, map[string]any{"root": a.layout().Root})
			}
			fmt.Fprintln(cmd.OutOrStdout(), "workspace initialized at", a.layout().Root)
			return nil
		},
	}
}

func newSeedCmd(a *app) *cobra.Command {
	seedCmd := &cobra.Command{
		Use:   "seed",
		Short: "Seed management",
	}

	var force bool
	applyCmd := &cobra.Command{
		Use:   "apply",
		Short: "Merge seed overrides into the resolved inputs",
		RunE: func(cmd *cobra.Command, _ []string) error {
			env := phase.Env{Layout: a.layout(), Schemas: schema.NewValidator(), Logger: a.logger}
			result, err := phase.ApplySeeds(env, force)
			if err != nil {
				return err
			}
			if a.jsonOut {
				return a.emit(cmd, map[string]any{
					"seeds_used":        result.SeedsUsed,
					"changed_keys":      result.ChangedKeys,
					"plot_changed_keys": result.PlotChangedKeys,
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "seeds applied: %d seed(s), %d changed key(s)\n",
				len(result.SeedsUsed), len(result.ChangedKeys))
			return nil
		},
	}
	applyCmd.Flags().BoolVar(&force, "force", false, "overwrite existing resolved inputs")

	seedCmd.AddCommand(applyCmd)
	return seedCmd
}

func newPlanCmd(a *app) *cobra.Command {
	planCmd := &cobra.Command{
		Use:   "plan",
		Short: "Planning stages",
	}

	var spineForce bool
	spineCmd := &cobra.Command{
		Use:   "spine",
		Short: "Generate the act/chapter/scene skeleton",
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, err := a.env(cmd.Context())
			if err != nil {
				return err
			}
			result, err := phase.PlanSpine(cmd.Context(), env, spineForce, a.runID)
			if err != nil {
				return err
			}
			if result == nil {
				fmt.Fprintln(cmd.OutOrStdout(), "spine already exists (use --force to regenerate)")
				return nil
			}
			if a.jsonOut {
				return a.emit(cmd, result.Spine)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "spine written to", env.Layout.PlotSpine())
			return nil
		},
	}
	spineCmd.Flags().BoolVar(&spineForce, "force", false, "regenerate even if the spine exists")

	var scenesChapter int
	var scenesForce bool
	scenesCmd := &cobra.Command{
		Use:   "scenes",
		Short: "Generate the scenes index and per-scene plans",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if scenesChapter < 0 {
				return fmt.Errorf("--chapter must be >= 0")
			}
			env, err := a.env(cmd.Context())
			if err != nil {
				return err
			}
			result, err := phase.PlanScenes(cmd.Context(), env, scenesChapter, scenesForce, a.runID)
			if err != nil {
				return err
			}
			if result == nil {
				fmt.Fprintln(cmd.OutOrStdout(), "scene plans already exist (use --force to regenerate)")
				return nil
			}
			if a.jsonOut {
				return a.emit(cmd, map[string]any{"index": result.Index, "plans": result.Plans})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "planned %d scene(s), index written to %s\n",
				len(result.Plans), env.Layout.ScenesIndex())
			return nil
		},
	}
	scenesCmd.Flags().IntVar(&scenesChapter, "chapter", 0, "limit planning to one chapter (0 = whole story)")
	scenesCmd.Flags().BoolVar(&scenesForce, "force", false, "regenerate existing plans")

	var beatsScene int
	var beatsForce bool
	beatsCmd := &cobra.Command{
		Use:   "beats",
		Short: "Generate the beat list for one scene",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if beatsScene < 1 {
				return fmt.Errorf("--scene must be >= 1")
			}
			env, err := a.env(cmd.Context())
			if err != nil {
				return err
			}
			result, err := phase.PlanBeats(cmd.Context(), env, beatsScene, beatsForce, a.runID)
			if err != nil {
				return err
			}
			if result == nil {
				fmt.Fprintln(cmd.OutOrStdout(), "beats already exist (use --force to regenerate)")
				return nil
			}
			if a.jsonOut {
				return a.emit(cmd, result.Beats)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "beats written to", env.Layout.SceneBeats(beatsScene))
			return nil
		},
	}
	beatsCmd.Flags().IntVar(&beatsScene, "scene", 0, "scene id")
	beatsCmd.Flags().BoolVar(&beatsForce, "force", false, "regenerate existing beats")
	_ = beatsCmd.MarkFlagRequired("scene")

	planCmd.AddCommand(spineCmd, scenesCmd, beatsCmd)
	return planCmd
}

func newBuildContextCmd(a *app) *cobra.Command {
	var (
		scene      int
		budget     int
		resolution string
		include    string
		force      bool
	)
	cmd := &cobra.Command{
		Use:   "build-context",
		Short: "Assemble the layered context packet for one scene",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if scene < 1 {
				return fmt.Errorf("--scene must be >= 1")
			}
			if budget < 1000 {
				return fmt.Errorf("--budget must be >= 1000")
			}
			res := artifact.Resolution(resolution)
			if !res.Valid() {
				return fmt.Errorf("--resolution must be one of auto, tiny, medium, full")
			}
			inc := ring.Include(include)
			if !inc.Valid() {
				return fmt.Errorf("--include must be one of all, ringA, ringB, ringC")
			}

			env, err := a.env(cmd.Context())
			if err != nil {
				return err
			}
			result, err := a.builder(env).Build(cmd.Context(), ring.Params{
				SceneID:    scene,
				Budget:     budget,
				Resolution: res,
				Include:    inc,
				RunID:      a.runID,
				Force:      force,
			})
			if err != nil {
				return err
			}
			if result == nil {
				fmt.Fprintln(cmd.OutOrStdout(), "context packet already exists (use --force to rebuild)")
				return nil
			}
			if a.jsonOut {
				return a.emit(cmd, result.Packet)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "context packet written to", result.Path)
			return nil
		},
	}
	cmd.Flags().IntVar(&scene, "scene", 0, "scene id")
	cmd.Flags().IntVar(&budget, "budget", 4000, "token budget recorded in the packet")
	cmd.Flags().StringVar(&resolution, "resolution", "auto", "resolution tier: auto, tiny, medium, full")
	cmd.Flags().StringVar(&include, "include", "all", "ring ablation: all, ringA, ringB, ringC")
	cmd.Flags().BoolVar(&force, "force", false, "rebuild even if the packet exists")
	_ = cmd.MarkFlagRequired("scene")
	return cmd
}

func newWriteCmd(a *app) *cobra.Command {
	writeCmd := &cobra.Command{
		Use:   "write",
		Short: "Prose generation",
	}

	var (
		scene       int
		length      string
		targetWords int
		force       bool
	)
	sceneCmd := &cobra.Command{
		Use:   "scene",
		Short: "Draft prose for one scene from its context packet",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if scene < 1 {
				return fmt.Errorf("--scene must be >= 1")
			}
			if targetWords == 0 {
				if _, ok := phase.LengthPresets[length]; !ok {
					return fmt.Errorf("--length must be one of short, medium, long")
				}
			}
			env, err := a.env(cmd.Context())
			if err != nil {
				return err
			}
			result, err := phase.WriteScene(cmd.Context(), env, phase.WriteParams{
				SceneID:     scene,
				Length:      length,
				TargetWords: targetWords,
				Force:       force,
				RunID:       a.runID,
			})
			if err != nil {
				return err
			}
			if result == nil {
				fmt.Fprintln(cmd.OutOrStdout(), "draft already exists (use --force to rewrite)")
				return nil
			}
			if a.jsonOut {
				return a.emit(cmd, map[string]any{"path": result.Path, "meta": result.Meta})
			}
			fmt.Fprintln(cmd.OutOrStdout(), "draft written to", result.Path)
			return nil
		},
	}
	sceneCmd.Flags().IntVar(&scene, "scene", 0, "scene id")
	sceneCmd.Flags().StringVar(&length, "length", "medium", "length preset: short, medium, long")
	sceneCmd.Flags().IntVar(&targetWords, "target-words", 0, "explicit word target (overrides --length)")
	sceneCmd.Flags().BoolVar(&force, "force", false, "rewrite an existing draft")
	_ = sceneCmd.MarkFlagRequired("scene")

	writeCmd.AddCommand(sceneCmd)
	return writeCmd
}

func newCheckCmd(a *app) *cobra.Command {
	checkCmd := &cobra.Command{
		Use:   "check",
		Short: "Continuity checking",
	}

	var (
		scene int
		input string
		force bool
	)
	continuityCmd := &cobra.Command{
		Use:   "continuity",
		Short: "Audit a scene's prose against its context packet",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if scene < 1 {
				return fmt.Errorf("--scene must be >= 1")
			}
			if input != "draft" && input != "final" {
				return fmt.Errorf("--input must be draft or final")
			}
			env, err := a.env(cmd.Context())
			if err != nil {
				return err
			}
			result, err := phase.CheckContinuity(cmd.Context(), env, scene, input, force, a.runID)
			if err != nil {
				return err
			}
			if result == nil {
				fmt.Fprintln(cmd.OutOrStdout(), "continuity artifacts already exist (use --force to recheck)")
				return nil
			}
			if a.jsonOut {
				return a.emit(cmd, map[string]any{"report": result.Report, "patch": result.Patch})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "report written to %s\npatch written to %s\n",
				result.ReportPath, result.PatchPath)
			return nil
		},
	}
	continuityCmd.Flags().IntVar(&scene, "scene", 0, "scene id")
	continuityCmd.Flags().StringVar(&input, "input", "draft", "prose to audit: draft or final")
	continuityCmd.Flags().BoolVar(&force, "force", false, "recheck even if report and patch exist")
	_ = continuityCmd.MarkFlagRequired("scene")

	checkCmd.AddCommand(continuityCmd)
	return checkCmd
}

func newRunCmd(a *app) *cobra.Command {
	var (
		chapter     int
		workers     int
		budget      int
		resolution  string
		include     string
		length      string
		targetWords int
		input       string
		force       bool
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the full pipeline: spine, scene plans, then every scene through beats, context, draft, and continuity",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if workers < 1 {
				return fmt.Errorf("--workers must be >= 1")
			}
			if budget < 1000 {
				return fmt.Errorf("--budget must be >= 1000")
			}
			res := artifact.Resolution(resolution)
			if !res.Valid() {
				return fmt.Errorf("--resolution must be one of auto, tiny, medium, full")
			}
			inc := ring.Include(include)
			if !inc.Valid() {
				return fmt.Errorf("--include must be one of all, ringA, ringB, ringC")
			}
			if input != "draft" && input != "final" {
				return fmt.Errorf("--input must be draft or final")
			}

			ctx := cmd.Context()
			env, err := a.env(ctx)
			if err != nil {
				return err
			}

			if _, err := phase.PlanSpine(ctx, env, false, a.runID); err != nil {
				return err
			}
			if _, err := phase.PlanScenes(ctx, env, chapter, false, a.runID); err != nil {
				return err
			}

			sceneIDs, err := runTargets(env.Layout, chapter)
			if err != nil {
				return err
			}

			pipeline := phase.NewPipeline(env, a.builder(env), phase.WithSceneWorkers(workers))
			runs, err := pipeline.Run(ctx, phase.RunParams{
				SceneIDs:    sceneIDs,
				Budget:      budget,
				Resolution:  res,
				Include:     inc,
				Length:      length,
				TargetWords: targetWords,
				CheckInput:  input,
				Force:       force,
				RunID:       a.runID,
			})
			if err != nil {
				return err
			}
			if a.jsonOut {
				return a.emit(cmd, runs)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "pipeline complete: %d scene(s)\n", len(runs))
			return nil
		},
	}
	cmd.Flags().IntVar(&chapter, "chapter", 0, "limit the run to one chapter (0 = whole story)")
	cmd.Flags().IntVar(&workers, "workers", 2, "scenes processed concurrently")
	cmd.Flags().IntVar(&budget, "budget", 4000, "context packet token budget")
	cmd.Flags().StringVar(&resolution, "resolution", "auto", "resolution tier: auto, tiny, medium, full")
	cmd.Flags().StringVar(&include, "include", "all", "ring ablation: all, ringA, ringB, ringC")
	cmd.Flags().StringVar(&length, "length", "medium", "length preset: short, medium, long")
	cmd.Flags().IntVar(&targetWords, "target-words", 0, "explicit word target (overrides --length)")
	cmd.Flags().StringVar(&input, "input", "draft", "prose to audit: draft or final")
	cmd.Flags().BoolVar(&force, "force", false, "regenerate existing scene artifacts")
	return cmd
}

// runTargets reads the spine to find which scenes the run covers.
func runTargets(layout artifact.Layout, chapter int) ([]int, error) {
	var spine domain.PlotSpine
	if err := artifact.ReadJSON(layout.PlotSpine(), &spine); err != nil {
		return nil, err
	}
	byChapter, _ := phase.SceneChapters(spine)

	var sceneIDs []int
	for chapterNo, ids := range byChapter {
		if chapter > 0 && chapterNo != chapter {
			continue
		}
		sceneIDs = append(sceneIDs, ids...)
	}
	if len(sceneIDs) == 0 {
		return nil, fmt.Errorf("no scenes found in spine for chapter %d", chapter)
	}
	sort.Ints(sceneIDs)
	return sceneIDs, nil
}

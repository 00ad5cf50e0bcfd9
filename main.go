/*
Gridmdp solves small grid-world Markov decision processes two ways: value iteration over
the full transition model of a robot whose moves slip sideways, and tabular q-learning
from sampled episodes. Each is swept over a hyper-parameter in parallel (discount factors
for planning, move success probabilities for learning), the results are logged and charted,
and one learned policy is played back by a robot on a live web page.
*/

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"gridmdp/models"
	"gridmdp/persistence"
	"gridmdp/playback"
	"gridmdp/reinforcement"
	"gridmdp/report"
	"gridmdp/server"
)

var (
	dbg        *bool
	serve      *bool
	host       *string
	port       *string
	configPath *string
	storePath  *string
	outDir     *string
	stepDelay  *time.Duration
)

func init() {
	dbg = flag.Bool("debug", false, "debug mode: train on the tiny 2x2 grid")
	serve = flag.Bool("serve", true, "serve the playback page after training")
	host = flag.String("host", "", "The host ip")
	port = flag.String("port", "8080", "The host port")
	configPath = flag.String("config", "./config.yaml", "training config; defaults are used if it does not exist")
	storePath = flag.String("store", "./tables.json", "json file or postgres:// connection string for trained tables")
	outDir = flag.String("out", "./out", "directory for results logs and charts")
	stepDelay = flag.Duration("step-delay", 500*time.Millisecond, "time between robot moves on the page")
}

// trained is the table shown on the page.
type trained struct {
	grid *models.GridWorld
	q    *models.QTable
}

func loadConfig() (*reinforcement.TrainingConfig, error) {
	if _, err := os.Stat(*configPath); errors.Is(err, os.ErrNotExist) {
		log.Println("no config at", *configPath, "using defaults")
		return reinforcement.DefaultConfig(), nil
	}
	return reinforcement.FromYaml(*configPath)
}

func layouts(cfg *reinforcement.TrainingConfig) (planning, learning *models.GridWorld, err error) {
	planningLayout, learningLayout := models.PlanningLayout, models.LearningLayout
	if *dbg {
		planningLayout, learningLayout = models.TinyLayout, models.TinyLayout
	}
	if planning, err = cfg.Grid(planningLayout, models.PlanningRewards); err != nil {
		return
	}
	learning, err = cfg.Grid(learningLayout, models.LearningRewards)
	return
}

func runApp() (err error) {
	var algConfig *reinforcement.TrainingConfig
	if algConfig, err = loadConfig(); err != nil {
		return
	}

	appCtx, appCancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer appCancel()

	trainingCtx, trainingCancel, err := algConfig.WithTrainingDeadline(appCtx)
	if err != nil {
		return
	}
	defer trainingCancel()

	if err = os.MkdirAll(*outDir, 0755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	var store persistence.Store
	if store, err = persistence.NewStore(*storePath); err != nil {
		return
	}
	defer store.Close()

	planningGrid, learningGrid, err := layouts(algConfig)
	if err != nil {
		return
	}

	var shown *trained
	kind := algConfig.Kind()
	if kind == reinforcement.KIND_VALUE_ITERATION || kind == reinforcement.KIND_BOTH {
		if shown, err = runValueIteration(trainingCtx, algConfig, planningGrid, store); err != nil {
			return
		}
	}
	if kind == reinforcement.KIND_Q_LEARNING || kind == reinforcement.KIND_BOTH {
		var learned *trained
		if learned, err = runQLearning(trainingCtx, algConfig, learningGrid, store); err != nil {
			return
		}
		if shown == nil {
			shown = learned
		}
	}
	if shown == nil {
		return fmt.Errorf("algorithm kind %q: %w", kind, models.ErrConfiguration)
	}

	if !*serve {
		return
	}
	return servePlayback(appCtx, algConfig.Seed, shown)
}

func runValueIteration(
	ctx context.Context,
	cfg *reinforcement.TrainingConfig,
	grid *models.GridWorld,
	store persistence.Store,
) (*trained, error) {
	configs := make([]reinforcement.ValueIterationConfig, 0, len(cfg.DiscountFactors))
	for _, discount := range cfg.DiscountFactors {
		configs = append(configs, cfg.ValueIterationConfig(discount))
	}

	results, err := reinforcement.RunValueIterationSweep(ctx, grid, cfg.SlipModel(), configs)
	if err != nil {
		return nil, fmt.Errorf("value iteration: %w", err)
	}

	models.ShowGrid(grid)
	policies := make([]models.Policy, len(results))
	for i, result := range results {
		fmt.Printf("Value iteration, discount %.2f, %d sweeps, last delta %.3g\n",
			result.Discount, result.Sweeps, result.Deltas[len(result.Deltas)-1])
		models.ShowPolicy(grid, result.Policy)
		models.ShowMaxValues(grid, result.Q)
		policies[i] = result.Policy

		if err = store.SaveTable(&persistence.TableRecord{
			Name:      fmt.Sprintf("%s-%.2f", reinforcement.KIND_VALUE_ITERATION, result.Discount),
			Algorithm: reinforcement.KIND_VALUE_ITERATION,
			Param:     result.Discount,
			Layout:    grid.Layout(),
			Q:         result.Q,
			Policy:    result.Policy,
		}); err != nil {
			return nil, err
		}
	}

	// Compare the policies by following each with a robot.
	rewards, err := playback.RunSimulations(ctx, grid, policies, playback.DEFAULT_STEPS, cfg.Seed)
	if err != nil {
		return nil, fmt.Errorf("simulate: %w", err)
	}
	series := make([]report.Series, len(rewards))
	for i, run := range rewards {
		series[i] = report.Series{
			Name:   fmt.Sprintf("Discount = %.2f", results[i].Discount),
			Values: playback.Cumulative(run),
		}
	}
	if err = writeChart("robot_rewards.html", report.ChartSpec{
		Title:  "Cumulative reward following the max policy",
		XLabel: "Step",
		YLabel: "Cumulative Reward",
		Stride: 1,
	}, series); err != nil {
		return nil, err
	}

	return &trained{grid: grid, q: results[0].Q}, nil
}

func runQLearning(
	ctx context.Context,
	cfg *reinforcement.TrainingConfig,
	grid *models.GridWorld,
	store persistence.Store,
) (*trained, error) {
	configs := make([]reinforcement.QLearningConfig, 0, len(cfg.SuccessProbabilities))
	for _, p := range cfg.SuccessProbabilities {
		configs = append(configs, cfg.QLearningConfig(p))
	}

	var mu sync.Mutex
	progress := func(run int, ep *reinforcement.EpisodeResult) {
		if ep.Episode%1000 != 0 {
			return
		}
		mu.Lock()
		defer mu.Unlock()
		fmt.Printf("P = %.1f ", configs[run].SuccessProb)
		report.WriteEpisodeSummary(os.Stdout, ep)
	}

	results, err := reinforcement.RunQLearningSweep(ctx, grid, configs, cfg.Seed, progress)
	if err != nil {
		return nil, fmt.Errorf("q-learning: %w", err)
	}

	rewardSeries := make([]report.Series, len(results))
	stepSeries := make([]report.Series, len(results))
	for i, result := range results {
		label := fmt.Sprintf("P = %.1f", result.SuccessProb)
		fmt.Printf("Q-learning, success probability %.1f\n", result.SuccessProb)
		models.ShowPolicy(grid, result.Policy)
		models.ShowMaxValues(grid, result.Q)

		if err = writeResults(resultsLogName(result.SuccessProb), result.Episodes); err != nil {
			return nil, err
		}
		if err = store.SaveTable(&persistence.TableRecord{
			Name:      fmt.Sprintf("%s-%.2f", reinforcement.KIND_Q_LEARNING, result.SuccessProb),
			Algorithm: reinforcement.KIND_Q_LEARNING,
			Param:     result.SuccessProb,
			Layout:    grid.Layout(),
			Q:         result.Q,
			Policy:    result.Policy,
		}); err != nil {
			return nil, err
		}
		rewardSeries[i] = report.RewardSeries(label, result.Episodes)
		stepSeries[i] = report.StepSeries(label, result.Episodes)
	}

	if err = writeChart("rewards.html", report.ChartSpec{
		Title:  "Reward per episode",
		XLabel: "Episode",
		YLabel: "Total Reward",
		Stride: report.DOWNSAMPLE_STRIDE,
	}, rewardSeries); err != nil {
		return nil, err
	}
	if err = writeChart("steps.html", report.ChartSpec{
		Title:  "Steps to goal per episode",
		XLabel: "Episode",
		YLabel: "Steps",
		Stride: report.DOWNSAMPLE_STRIDE,
	}, stepSeries); err != nil {
		return nil, err
	}

	last := results[len(results)-1]
	return &trained{grid: grid, q: last.Q}, nil
}

// resultsLogName spells out the success probability in full, so distinct probabilities never share a log.
func resultsLogName(successProb float64) string {
	return "results_p" + strconv.FormatFloat(successProb, 'f', -1, 64) + ".txt"
}

func writeResults(name string, episodes []reinforcement.EpisodeResult) (err error) {
	var f *os.File
	if f, err = os.Create(filepath.Join(*outDir, name)); err != nil {
		return fmt.Errorf("create results: %w", err)
	}
	defer func() {
		if closeErr := f.Close(); err == nil {
			err = closeErr
		}
	}()
	return report.WriteResultsLog(f, episodes)
}

func writeChart(name string, spec report.ChartSpec, series []report.Series) (err error) {
	var f *os.File
	if f, err = os.Create(filepath.Join(*outDir, name)); err != nil {
		return fmt.Errorf("create chart: %w", err)
	}
	defer func() {
		if closeErr := f.Close(); err == nil {
			err = closeErr
		}
	}()
	return report.RenderChart(f, spec, series...)
}

// servePlayback runs a robot along the table's policy and serves it until interrupted.
func servePlayback(ctx context.Context, seed int64, shown *trained) (err error) {
	var robot *playback.Robot
	if robot, err = playback.NewRobot(shown.grid, shown.q.Policy(), rand.New(rand.NewSource(seed))); err != nil {
		return
	}
	initial := robot.Snapshot()
	snapshots := robot.Run(ctx.Done(), *stepDelay, 0)

	var srv *server.Server
	if srv, err = server.NewServer(
		ctx,
		*host+":"+*port,
		shown.grid,
		shown.q,
		initial,
		snapshots,
		*outDir,
	); err != nil {
		return
	}

	err = srv.Serve(ctx)
	return
}

func main() {
	flag.Parse()
	if err := runApp(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

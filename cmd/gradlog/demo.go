package main

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"gradlog/internal/config"
	"gradlog/internal/data"
	"gradlog/internal/dist"
	"gradlog/internal/loggers"
	"gradlog/internal/loop"
	"gradlog/internal/progress"
)

var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Run a bounded synthetic training loop and log its metrics",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDemo(cmd.Context())
	},
}

// demoModel is a stand-in model that only tracks train/eval mode, which
// is all the loop helpers need from a module.
type demoModel struct {
	training bool
}

func (m *demoModel) Train(mode bool) { m.training = mode }
func (m *demoModel) Training() bool { return m.training }

func buildLogger() (loggers.MetricLogger, error) {
	switch cfg.Backend {
	case config.BackendTensorBoard:
		return loggers.NewTensorBoardLogger(cfg.LogDir)
	case config.BackendSQLite:
		return loggers.NewSQLiteLogger(cfg.HistoryDB, cfg.RunName)
	case config.BackendBoth:
		tb, err := loggers.NewTensorBoardLogger(cfg.LogDir)
		if err != nil {
			return nil, err
		}
		sq, err := loggers.NewSQLiteLogger(cfg.HistoryDB, cfg.RunName)
		if err != nil {
			tb.Close()
			return nil, err
		}
		return loggers.Tee(tb, sq), nil
	}
	return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
}

func runDemo(ctx context.Context) error {
	logger.Info("starting demo loop",
		zap.Int("rank", dist.Rank()),
		zap.Int("world_size", dist.WorldSize()),
		zap.String("backend", cfg.Backend))

	metrics, err := buildLogger()
	if err != nil {
		return err
	}
	defer metrics.Close()

	rng := rand.New(rand.NewSource(cfg.Loop.Seed))
	dataset := make(data.SliceDataset, cfg.Loop.DatasetSize)
	for i := range dataset {
		x := rng.Float64()
		dataset[i] = data.Sample{Features: []float64{x}, Target: math.Sin(x)}
	}

	sampler, err := data.NewDistributedSampler(
		dataset.Len(), dist.WorldSize(), dist.Rank(), true, cfg.Loop.Seed)
	if err != nil {
		return err
	}
	loader, err := data.NewDataLoader(dataset, cfg.Loop.BatchSize, sampler)
	if err != nil {
		return err
	}

	model := &demoModel{}
	modules := map[string]loop.Module{"model": model}

	trainStep := func(ctx context.Context, batch data.Batch) float64 {
		// Synthetic loss that decays with progress and wobbles with the
		// batch contents.
		var sum float64
		for _, s := range batch {
			sum += math.Abs(s.Target - s.Features[0])
		}
		return sum / float64(len(batch))
	}
	if loop.StepRequiresIterator(trainStep) {
		return fmt.Errorf("demo step function should consume single batches")
	}

	p := progress.New()
	for !loop.IsDone(p, cfg.Loop.MaxEpochs, cfg.Loop.MaxSteps) {
		if err := ctx.Err(); err != nil {
			return err
		}

		epoch := int(p.NumEpochsCompleted())
		loop.MaybeSetDistributedSamplerEpoch(loader, epoch)
		prior := loop.SetModuleTrainingMode(modules, true)

		var epochLoss float64
		it := loader.Iter()
		for !loop.IsEpochDone(p, cfg.Loop.MaxStepsPerEpoch, cfg.Loop.MaxSteps) {
			batch, ok := it.Next()
			if !ok {
				break
			}
			step := p.NumStepsCompleted()
			decay := 1.0 / (1.0 + float64(step)*0.1)
			loss := trainStep(ctx, batch) * decay
			epochLoss = loss

			if err := metrics.Log("train/loss", loss, step); err != nil {
				return err
			}
			p.IncrementStep()
		}

		loop.ResetModuleTrainingMode(modules, prior)

		evalLoss := evaluate(ctx, modules, loader, trainStep)
		step := p.NumStepsCompleted()
		if sl, ok := metrics.(loggers.ScalarsLogger); ok {
			wallTime := float64(time.Now().UnixNano()) / 1e9
			if err := sl.LogScalars("loss", map[string]float64{
				"train": epochLoss,
				"eval":  evalLoss,
			}, step, wallTime); err != nil {
				return err
			}
		}
		if err := metrics.LogText("epoch", fmt.Sprintf("epoch %d complete", epoch), step); err != nil {
			return err
		}

		p.IncrementEpoch()
		logger.Info("epoch complete",
			zap.Int("epoch", epoch),
			zap.Int64("steps", p.NumStepsCompleted()),
			zap.Float64("train_loss", epochLoss),
			zap.Float64("eval_loss", evalLoss))
	}

	logger.Info("demo loop finished", zap.String("progress", p.String()))
	return nil
}

// evaluate runs one eval pass with modules in eval mode, restoring
// their prior modes afterwards.
func evaluate(ctx context.Context, modules map[string]loop.Module, loader *data.DataLoader, step func(context.Context, data.Batch) float64) float64 {
	prior := loop.SetModuleTrainingMode(modules, false)
	defer loop.ResetModuleTrainingMode(modules, prior)

	var total float64
	var batches int
	it := loader.Iter()
	for {
		batch, ok := it.Next()
		if !ok {
			break
		}
		total += step(ctx, batch)
		batches++
	}
	if batches == 0 {
		return 0
	}
	return total / float64(batches)
}

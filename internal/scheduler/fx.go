package scheduler

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("scheduler",
	fx.Provide(ProvideConfig),
	fx.Provide(New),
	fx.Invoke(Start),
)

// Start hooks the scheduler into the application lifecycle according to its
// mode. In loop mode, stop waits for the in-flight job to observe
// cancellation.
func Start(lc fx.Lifecycle, sched *Scheduler) {
	switch sched.cfg.Mode {
	case ModeOnce:
		lc.Append(fx.Hook{
			OnStart: func(ctx context.Context) error {
				if err := sched.RunOnce(ctx); err != nil {
					sched.log.Warn("scheduler run failed", zap.Error(err))
				}
				return nil
			},
		})
	case ModeLoop:
		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan struct{})

		lc.Append(fx.Hook{
			OnStart: func(context.Context) error {
				go func() {
					defer close(done)
					sched.RunForever(ctx)
				}()
				return nil
			},
			OnStop: func(stopCtx context.Context) error {
				cancel()
				select {
				case <-done:
					return nil
				case <-stopCtx.Done():
					return stopCtx.Err()
				}
			},
		})
	default:
		sched.log.Info("scheduler disabled", zap.String("mode", string(sched.cfg.Mode)))
	}
}

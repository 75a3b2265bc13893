package remediation

import (
	"context"

	"go.uber.org/zap"
)

// defaultPrimitives only record the attempt; no effect is confirmed
func defaultPrimitives(logger *zap.Logger) map[string]Primitive {
	attempt := func(name string) Primitive {
		return func(ctx context.Context, target string) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			logger.Info("remediation attempted", zap.String("action", name), zap.String("target", target))
			return nil
		}
	}
	return map[string]Primitive{
		ActionOffload:         attempt(ActionOffload),
		ActionIsolateEndpoint: attempt(ActionIsolateEndpoint),
		ActionRerouteTraffic:  attempt(ActionRerouteTraffic),
		ActionScaleUp:         attempt(ActionScaleUp),
	}
}

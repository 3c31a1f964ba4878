package notify

import (
	"context"

	"plantrack/internal/model"
	"plantrack/pkg/logx"
)

// LogSink records deliveries in the log. It is the default sink for
// deployments where the surrounding service owns the real transport.
type LogSink struct {
	Log logx.Logger
}

func (s LogSink) Deliver(_ context.Context, n model.Notification) error {
	s.Log.Info("notification",
		logx.Int64("id", n.ID),
		logx.String("cause", string(n.Cause)),
		logx.String("action", n.ActionID),
		logx.String("action_plan", n.ActionPlanID))
	return nil
}

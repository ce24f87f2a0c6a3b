package checker

import (
	"context"
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/NordCoder/Pricewatch/internal/domain/kafka"
	kafkax "github.com/NordCoder/Pricewatch/internal/repository/kafka"
	"github.com/NordCoder/Pricewatch/internal/services/tracker"
)

var (
	mMsgs = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pricewatch_checker_messages_consumed_total", Help: "Check requests consumed",
	})
	mErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pricewatch_checker_errors_total", Help: "Check requests that failed",
	})
)

type Checker interface {
	CheckItem(ctx context.Context, id string) (tracker.ItemResult, error)
	CheckUser(ctx context.Context, userID string) (tracker.CycleReport, error)
}

type subscriber interface {
	Consume(ctx context.Context, h kafkax.Handler) error
}

// Controller turns check requests from Kafka into out-of-cycle checks.
type Controller struct {
	Log *zap.Logger
	Sub subscriber
	UC  Checker
}

func (c *Controller) Run(ctx context.Context) error {
	handler := kafkax.ProtoHandler(
		func() *structpb.Struct { return &structpb.Struct{} },
		func(ctx context.Context, _ []byte, msg *structpb.Struct) error {
			mMsgs.Inc()
			req, err := kafkax.CheckRequestFromStruct(msg)
			if err != nil {
				mErrors.Inc()
				c.Log.Warn("invalid check request", zap.Error(err))
				return nil
			}
			return c.Handle(ctx, req)
		},
	)
	if err := c.Sub.Consume(ctx, handler); err != nil && !errors.Is(err, context.Canceled) {
		c.Log.Warn("kafka consume", zap.Error(err))
		return err
	}
	return ctx.Err()
}

func (c *Controller) Handle(ctx context.Context, req kafka.CheckRequest) error {
	if req.ItemID != "" {
		res, err := c.UC.CheckItem(ctx, req.ItemID)
		switch {
		case errors.Is(err, tracker.ErrItemNotEligible):
			c.Log.Debug("check request for ineligible item", zap.String("item_id", req.ItemID))
			return nil
		case err != nil:
			mErrors.Inc()
			return err
		}
		c.Log.Debug("check-request", zap.String("item_id", req.ItemID), zap.String("outcome", string(res.Outcome)))
		return nil
	}
	rep, err := c.UC.CheckUser(ctx, req.UserID)
	if err != nil {
		mErrors.Inc()
		return err
	}
	c.Log.Debug("check-request", zap.String("user_id", req.UserID), zap.Int("items", rep.Total))
	return nil
}

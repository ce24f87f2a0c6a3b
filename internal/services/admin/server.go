package admin

import (
	"context"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/NordCoder/Pricewatch/internal/domain/alert"
	"github.com/NordCoder/Pricewatch/internal/repository/postgres"
	"github.com/NordCoder/Pricewatch/internal/services/scheduler"
	"github.com/NordCoder/Pricewatch/internal/services/tracker"
)

const ServiceName = "pricewatch.admin.v1.Admin"

// AdminServer is the admin RPC surface. Payloads are structpb structs.
type AdminServer interface {
	StartScheduler(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	StopScheduler(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	GetStatus(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	RunCycle(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	CheckItem(context.Context, *structpb.Struct) (*structpb.Struct, error)
	CheckUser(context.Context, *structpb.Struct) (*structpb.Struct, error)
	DismissAlert(context.Context, *structpb.Struct) (*structpb.Struct, error)
	MarkAlertRead(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*AdminServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("StartScheduler", newEmpty, AdminServer.StartScheduler),
		unary("StopScheduler", newEmpty, AdminServer.StopScheduler),
		unary("GetStatus", newEmpty, AdminServer.GetStatus),
		unary("RunCycle", newEmpty, AdminServer.RunCycle),
		unary("CheckItem", newStruct, AdminServer.CheckItem),
		unary("CheckUser", newStruct, AdminServer.CheckUser),
		unary("DismissAlert", newStruct, AdminServer.DismissAlert),
		unary("MarkAlertRead", newStruct, AdminServer.MarkAlertRead),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "pricewatch/admin/v1/admin.proto",
}

func Register(s grpc.ServiceRegistrar, srv AdminServer) { s.RegisterService(&ServiceDesc, srv) }

func newEmpty() *emptypb.Empty { return &emptypb.Empty{} }
func newStruct() *structpb.Struct { return &structpb.Struct{} }

func unary[Req proto.Message](name string, newReq func() Req, call func(AdminServer, context.Context, Req) (*structpb.Struct, error)) grpc.MethodDesc {
	full := "/" + ServiceName + "/" + name
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, ic grpc.UnaryServerInterceptor) (any, error) {
			in := newReq()
			if err := dec(in); err != nil {
				return nil, err
			}
			h := func(ctx context.Context, req any) (any, error) {
				return call(srv.(AdminServer), ctx, req.(Req))
			}
			if ic == nil {
				return h(ctx, in)
			}
			return ic(ctx, in, &grpc.UnaryServerInfo{Server: srv, FullMethod: full}, h)
		},
	}
}

var _ AdminServer = (*Server)(nil)

type Server struct {
	uc       *Usecase
	validate *validator.Validate
}

func NewServer(uc *Usecase) *Server {
	return &Server{uc: uc, validate: validator.New()}
}

type itemRequest struct {
	ItemID string `validate:"required"`
}

type userRequest struct {
	UserID string `validate:"required"`
}

type alertRequest struct {
	AlertID string `validate:"required"`
	Read    bool
}

func (s *Server) StartScheduler(_ context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	st, err := s.uc.StartScheduler()
	started := err == nil
	if err != nil && !errors.Is(err, ErrAlreadyRunning) {
		return nil, toStatus(err)
	}
	out := statusMap(st)
	out["started"] = started
	return structpb.NewStruct(out)
}

func (s *Server) StopScheduler(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	st, err := s.uc.StopScheduler(ctx)
	if err != nil {
		return nil, toStatus(err)
	}
	return structpb.NewStruct(statusMap(st))
}

func (s *Server) GetStatus(_ context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	return structpb.NewStruct(statusMap(s.uc.Status()))
}

func (s *Server) RunCycle(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	return structpb.NewStruct(reportMap(s.uc.RunCycle(ctx)))
}

func (s *Server) CheckItem(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	req := itemRequest{ItemID: stringField(in, "item_id")}
	if err := s.validate.Struct(req); err != nil {
		return nil, status.Error(codes.InvalidArgument, "item_id is required")
	}
	res, err := s.uc.CheckItem(ctx, req.ItemID)
	if err != nil {
		return nil, toStatus(err)
	}
	return structpb.NewStruct(itemResultMap(res))
}

func (s *Server) CheckUser(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	req := userRequest{UserID: stringField(in, "user_id")}
	if err := s.validate.Struct(req); err != nil {
		return nil, status.Error(codes.InvalidArgument, "user_id is required")
	}
	rep, err := s.uc.CheckUser(ctx, req.UserID)
	if err != nil {
		return nil, toStatus(err)
	}
	return structpb.NewStruct(reportMap(rep))
}

func (s *Server) DismissAlert(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	req := alertRequest{AlertID: stringField(in, "alert_id")}
	if err := s.validate.Struct(req); err != nil {
		return nil, status.Error(codes.InvalidArgument, "alert_id is required")
	}
	a, err := s.uc.DismissAlert(ctx, req.AlertID)
	if err != nil {
		return nil, toStatus(err)
	}
	return structpb.NewStruct(alertMap(a))
}

// MarkAlertRead marks read unless the request carries read=false.
func (s *Server) MarkAlertRead(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	req := alertRequest{AlertID: stringField(in, "alert_id"), Read: true}
	if v, ok := in.GetFields()["read"]; ok {
		req.Read = v.GetBoolValue()
	}
	if err := s.validate.Struct(req); err != nil {
		return nil, status.Error(codes.InvalidArgument, "alert_id is required")
	}
	a, err := s.uc.MarkAlertRead(ctx, req.AlertID, req.Read)
	if err != nil {
		return nil, toStatus(err)
	}
	return structpb.NewStruct(alertMap(a))
}

func toStatus(err error) error {
	switch {
	case errors.Is(err, postgres.ErrNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, tracker.ErrItemNotEligible), errors.Is(err, alert.ErrInvalidTransition), errors.Is(err, alert.ErrAlreadyResolved):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	}
	return status.Error(codes.Internal, err.Error())
}

func stringField(in *structpb.Struct, key string) string {
	return in.GetFields()[key].GetStringValue()
}

func ts(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func statusMap(st scheduler.Status) map[string]any {
	out := map[string]any{
		"is_running":    st.IsRunning,
		"last_cycle_at": ts(st.LastCycleAt),
		"cycles":        st.Cycles,
		"interval":      st.Interval.String(),
		"batch_size":    st.BatchSize,
		"concurrency":   st.Concurrency,
	}
	if st.LastReport != nil {
		out["last_report"] = reportMap(*st.LastReport)
	}
	return out
}

func reportMap(r tracker.CycleReport) map[string]any {
	errs := make([]any, 0, len(r.Errors))
	for _, e := range r.Errors {
		errs = append(errs, map[string]any{
			"item_id": e.ItemID,
			"stage":   string(e.Stage),
			"error":   e.Err.Error(),
		})
	}
	return map[string]any{
		"started_at":     ts(r.StartedAt),
		"duration":       r.Duration.String(),
		"total":          r.Total,
		"successful":     r.Successful,
		"updated":        r.Updated,
		"unchanged":      r.Unchanged,
		"errored":        r.Errored,
		"alerts_created": r.AlertsCreated,
		"batches":        r.Batches,
		"aborted":        r.Aborted,
		"errors":         errs,
	}
}

func itemResultMap(res tracker.ItemResult) map[string]any {
	out := map[string]any{
		"item_id": res.ItemID,
		"outcome": string(res.Outcome),
		"price":   res.Price,
		"source":  res.Source,
	}
	if res.Err != nil {
		out["stage"] = string(res.Stage)
		out["error"] = res.Err.Error()
	}
	if res.Alert != nil {
		out["alert"] = alertMap(res.Alert)
	}
	return out
}

func alertMap(a *alert.Alert) map[string]any {
	snap := map[string]any{
		"previous_price":  a.Snapshot.PreviousPrice,
		"current_price":   a.Snapshot.CurrentPrice,
		"drop_amount":     a.Snapshot.DropAmount,
		"drop_percentage": a.Snapshot.DropPercentage,
	}
	if a.Snapshot.TargetPrice != nil {
		snap["target_price"] = *a.Snapshot.TargetPrice
	}
	return map[string]any{
		"id":          a.ID,
		"user_id":     a.UserID,
		"item_id":     a.ItemID,
		"type":        string(a.Type),
		"priority":    string(a.Priority),
		"status":      string(a.Status),
		"read":        a.Read,
		"snapshot":    snap,
		"created_at":  ts(a.CreatedAt),
		"expires_at":  ts(a.ExpiresAt),
		"resolved_at": ts(a.ResolvedAt),
		"email":       channelMap(a.Email),
		"push":        channelMap(a.Push),
	}
}

func channelMap(st alert.ChannelState) map[string]any {
	return map[string]any{
		"sent":       st.Sent,
		"sent_at":    ts(st.SentAt),
		"attempts":   st.Attempts,
		"last_error": st.LastError,
	}
}

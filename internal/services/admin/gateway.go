package admin

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/grpc-ecosystem/grpc-gateway/v2/runtime"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

type route struct {
	method, path string
	call         func(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
}

// NewGateway maps the admin HTTP routes onto srv in process.
func NewGateway(srv AdminServer) (*runtime.ServeMux, error) {
	mux := runtime.NewServeMux()
	marshaler := &runtime.JSONPb{}
	empty := func(f func(context.Context, *emptypb.Empty) (*structpb.Struct, error)) func(context.Context, *structpb.Struct) (*structpb.Struct, error) {
		return func(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) { return f(ctx, &emptypb.Empty{}) }
	}

	routes := []route{
		{http.MethodPost, "/v1/scheduler/start", empty(srv.StartScheduler)},
		{http.MethodPost, "/v1/scheduler/stop", empty(srv.StopScheduler)},
		{http.MethodPost, "/v1/scheduler/run", empty(srv.RunCycle)},
		{http.MethodGet, "/v1/scheduler/status", empty(srv.GetStatus)},
		{http.MethodPost, "/v1/items/{item_id}/check", srv.CheckItem},
		{http.MethodPost, "/v1/users/{user_id}/check", srv.CheckUser},
		{http.MethodPost, "/v1/alerts/{alert_id}/dismiss", srv.DismissAlert},
		{http.MethodPost, "/v1/alerts/{alert_id}/read", srv.MarkAlertRead},
	}
	for _, rt := range routes {
		call := rt.call
		err := mux.HandlePath(rt.method, rt.path, func(w http.ResponseWriter, r *http.Request, params map[string]string) {
			in, err := decodeBody(marshaler, r)
			if err != nil {
				runtime.HTTPError(r.Context(), mux, marshaler, w, r, err)
				return
			}
			for k, v := range params {
				in.Fields[k] = structpb.NewStringValue(v)
			}
			out, err := call(r.Context(), in)
			if err != nil {
				runtime.HTTPError(r.Context(), mux, marshaler, w, r, err)
				return
			}
			b, err := marshaler.Marshal(out)
			if err != nil {
				runtime.HTTPError(r.Context(), mux, marshaler, w, r, err)
				return
			}
			w.Header().Set("Content-Type", marshaler.ContentType(out))
			_, _ = w.Write(b)
		})
		if err != nil {
			return nil, err
		}
	}
	return mux, nil
}

// decodeBody reads an optional JSON object body; params from the path win.
func decodeBody(m runtime.Marshaler, r *http.Request) (*structpb.Struct, error) {
	in := &structpb.Struct{Fields: map[string]*structpb.Value{}}
	if r.Body == nil || r.Method == http.MethodGet {
		return in, nil
	}
	if err := m.NewDecoder(r.Body).Decode(in); err != nil && !errors.Is(err, io.EOF) {
		return nil, status.Error(codes.InvalidArgument, "body must be a JSON object")
	}
	if in.Fields == nil {
		in.Fields = map[string]*structpb.Value{}
	}
	return in, nil
}

package main

import (
	"net"

	grpcprometheus "github.com/grpc-ecosystem/go-grpc-prometheus"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/reflection"

	config "github.com/NordCoder/Pricewatch/internal/config/tracker"
	"github.com/NordCoder/Pricewatch/internal/obs"
	"github.com/NordCoder/Pricewatch/internal/services/admin"
)

func buildGRPCServer(cfg *config.Config, srv *admin.Server, auth *admin.Auth) (*grpc.Server, net.Listener, error) {
	s := grpc.NewServer(obs.GRPCServerOpts(auth.UnaryInterceptor())...)
	admin.Register(s, srv)
	reflection.Register(s)
	grpcprometheus.Register(s)

	ln, err := net.Listen("tcp", cfg.Admin.GRPCAddr)
	if err != nil {
		return nil, nil, err
	}
	return s, ln, nil
}

func serveGRPC(s *grpc.Server, ln net.Listener, logger *zap.Logger) error {
	logger.Info("grpc listening", zap.String("addr", ln.Addr().String()))
	return s.Serve(ln)
}

package interceptor

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"melange-connection-backend/internal/security"
)

func TestAuthInterceptor_Unary(t *testing.T) {
	tokens := security.NewTokenManager("test-secret", time.Hour)
	unary := NewAuthInterceptor(tokens).Unary()

	var seen context.Context
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		seen = ctx
		return "ok", nil
	}

	t.Run("Public method skips authentication", func(t *testing.T) {
		resp, err := unary(context.Background(), nil, &grpc.UnaryServerInfo{FullMethod: "/grpc.health.v1.Health/Check"}, handler)
		require.NoError(t, err)
		assert.Equal(t, "ok", resp)
	})

	t.Run("Missing metadata", func(t *testing.T) {
		_, err := unary(context.Background(), nil, &grpc.UnaryServerInfo{FullMethod: "/melange.Connections/Get"}, handler)
		assert.Equal(t, codes.Unauthenticated, status.Code(err))
	})

	t.Run("Missing token", func(t *testing.T) {
		ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs("x-other", "1"))
		_, err := unary(ctx, nil, &grpc.UnaryServerInfo{FullMethod: "/melange.Connections/Get"}, handler)
		assert.Equal(t, codes.Unauthenticated, status.Code(err))
	})

	t.Run("Invalid token", func(t *testing.T) {
		ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs("authorization", "Bearer nonsense"))
		_, err := unary(ctx, nil, &grpc.UnaryServerInfo{FullMethod: "/melange.Connections/Get"}, handler)
		assert.Equal(t, codes.Unauthenticated, status.Code(err))
	})

	t.Run("Valid token overrides a forged profile id", func(t *testing.T) {
		token, err := tokens.GenerateAccessToken(7, "jane@example.com")
		require.NoError(t, err)
		ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs(
			"authorization", "Bearer "+token,
			"profile-id", "99",
		))

		_, err = unary(ctx, nil, &grpc.UnaryServerInfo{FullMethod: "/melange.Connections/Get"}, handler)
		require.NoError(t, err)
		md, ok := metadata.FromIncomingContext(seen)
		require.True(t, ok)
		assert.Equal(t, []string{"7"}, md.Get("profile-id"))
	})
}

type fakeStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (f *fakeStream) Context() context.Context {
	return f.ctx
}

func TestAuthInterceptor_Stream(t *testing.T) {
	tokens := security.NewTokenManager("test-secret", time.Hour)
	stream := NewAuthInterceptor(tokens).Stream()

	var seen context.Context
	handler := func(srv interface{}, ss grpc.ServerStream) error {
		seen = ss.Context()
		return nil
	}

	err := stream(nil, &fakeStream{ctx: context.Background()}, &grpc.StreamServerInfo{FullMethod: "/grpc.health.v1.Health/Watch"}, handler)
	assert.NoError(t, err)

	err = stream(nil, &fakeStream{ctx: context.Background()}, &grpc.StreamServerInfo{FullMethod: "/grpc.reflection.v1.ServerReflection/ServerReflectionInfo"}, handler)
	assert.Equal(t, codes.Unauthenticated, status.Code(err))

	token, err := tokens.GenerateAccessToken(3, "admin@example.com")
	require.NoError(t, err)
	ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs("authorization", "bearer "+token))
	err = stream(nil, &fakeStream{ctx: ctx}, &grpc.StreamServerInfo{FullMethod: "/grpc.reflection.v1.ServerReflection/ServerReflectionInfo"}, handler)
	require.NoError(t, err)
	md, _ := metadata.FromIncomingContext(seen)
	assert.Equal(t, []string{"3"}, md.Get("profile-id"))
}

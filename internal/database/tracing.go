package database

import (
	"context"
	"net"

	"github.com/getsentry/sentry-go"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
)

// PostgresSentryTracer records every pgx query as a Sentry span.
type PostgresSentryTracer struct{}

var _ pgx.QueryTracer = (*PostgresSentryTracer)(nil)

func (t *PostgresSentryTracer) TraceQueryStart(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryStartData) context.Context {
	span := sentry.StartSpan(ctx, "db.sql.query", sentry.WithDescription(data.SQL))
	span.SetData("db.system", "postgresql")
	return span.Context()
}

func (t *PostgresSentryTracer) TraceQueryEnd(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryEndData) {
	span := sentry.SpanFromContext(ctx)
	if span == nil {
		return
	}
	if data.Err != nil && data.Err != pgx.ErrNoRows {
		span.Status = sentry.SpanStatusInternalError
	} else {
		span.Status = sentry.SpanStatusOK
	}
	span.Finish()
}

// RedisSentryHook records redis commands as Sentry spans.
type RedisSentryHook struct{}

var _ redis.Hook = (*RedisSentryHook)(nil)

func (RedisSentryHook) DialHook(next redis.DialHook) redis.DialHook {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		return next(ctx, network, addr)
	}
}

func (RedisSentryHook) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		span := sentry.StartSpan(ctx, "db.redis", sentry.WithDescription(cmd.Name()))
		defer span.Finish()

		err := next(span.Context(), cmd)
		if err != nil && err != redis.Nil {
			span.Status = sentry.SpanStatusInternalError
		}
		return err
	}
}

func (RedisSentryHook) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []redis.Cmder) error {
		span := sentry.StartSpan(ctx, "db.redis.pipeline")
		defer span.Finish()
		span.SetData("db.redis.commands", len(cmds))
		return next(span.Context(), cmds)
	}
}

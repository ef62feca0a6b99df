// Package grpcserver implements the IngestService gRPC server.
//
// It delegates all work to the scheduler, store and purger and handles
// only the gRPC transport concerns: metadata extraction, authorization,
// error mapping, and conversion between domain values and Struct messages.
package grpcserver

import (
	"context"
	"errors"
	"fmt"
	"math"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/colby-usm/GrantGuru/internal/access"
	"github.com/colby-usm/GrantGuru/internal/ingest"
	"github.com/colby-usm/GrantGuru/internal/model"
	"github.com/colby-usm/GrantGuru/internal/scheduler"
	"github.com/colby-usm/GrantGuru/internal/scraper"
)

// Triggerer runs one ingestion on demand.
type Triggerer interface {
	Trigger(ctx context.Context, filter model.Filter, lookbackDays *int) (ingest.Report, error)
}

// Counter reports how many grants are stored.
type Counter interface {
	Count(ctx context.Context) (int64, error)
}

// Purger removes expired grants.
type Purger interface {
	Purge(ctx context.Context) (int64, error)
}

// Defaults fill request fields the caller leaves out.
type Defaults struct {
	Filter       model.Filter
	LookbackDays *int
}

// Server implements IngestServer.
type Server struct {
	trigger  Triggerer
	counter  Counter
	purger   Purger
	defaults Defaults
}

// NewServer constructs a gRPC Server.
func NewServer(t Triggerer, c Counter, p Purger, d Defaults) *Server {
	return &Server{trigger: t, counter: c, purger: p, defaults: d}
}

// ValidationError wraps a user-facing validation message.
type ValidationError struct{ Msg string }

func (e *ValidationError) Error() string { return e.Msg }

// ─── RPC implementations ──────────────────────────────────────────────────────

// TriggerIngest runs one ingestion. Optional request fields: categories,
// statuses (string lists), keywords (string), lookback_days (number; a
// negative value disables the window). Requires ADMIN.
func (s *Server) TriggerIngest(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if err := authorize(ctx, access.ActionCreate); err != nil {
		return nil, err
	}

	filter, lookback, err := s.parseTrigger(req)
	if err != nil {
		return nil, toGRPCError(err)
	}

	rep, err := s.trigger.Trigger(ctx, filter, lookback)
	if err != nil {
		return nil, toGRPCError(err)
	}
	return reportToStruct(rep)
}

// GrantCount returns {"count": n}. Any role may read grants.
func (s *Server) GrantCount(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	if err := authorize(ctx, access.ActionRead); err != nil {
		return nil, err
	}
	n, err := s.counter.Count(ctx)
	if err != nil {
		return nil, toGRPCError(err)
	}
	return structpb.NewStruct(map[string]any{"count": n})
}

// PurgeArchived deletes expired grants and returns {"removed": n}. Requires ADMIN.
func (s *Server) PurgeArchived(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	if err := authorize(ctx, access.ActionDelete); err != nil {
		return nil, err
	}
	n, err := s.purger.Purge(ctx)
	if err != nil {
		return nil, toGRPCError(err)
	}
	return structpb.NewStruct(map[string]any{"removed": n})
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

// callerFromCtx extracts the x-user-id and x-user-role values forwarded by
// the gateway via gRPC metadata.
func callerFromCtx(ctx context.Context) (string, access.Role, error) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return "", "", status.Error(codes.Unauthenticated, "missing metadata")
	}
	ids := md.Get("x-user-id")
	if len(ids) == 0 || ids[0] == "" {
		return "", "", status.Error(codes.Unauthenticated, "missing x-user-id metadata")
	}
	roles := md.Get("x-user-role")
	if len(roles) == 0 {
		return "", "", status.Error(codes.Unauthenticated, "missing x-user-role metadata")
	}
	role, err := access.ParseRole(roles[0])
	if err != nil {
		return "", "", status.Error(codes.Unauthenticated, err.Error())
	}
	return ids[0], role, nil
}

func authorize(ctx context.Context, action access.Action) error {
	userID, role, err := callerFromCtx(ctx)
	if err != nil {
		return err
	}
	if err := access.Require(role, action, access.EntityGrants, userID, ""); err != nil {
		return toGRPCError(err)
	}
	return nil
}

func (s *Server) parseTrigger(req *structpb.Struct) (model.Filter, *int, error) {
	filter := s.defaults.Filter
	lookback := s.defaults.LookbackDays
	fields := req.GetFields()

	if v, ok := fields["categories"]; ok {
		list, err := stringList("categories", v)
		if err != nil {
			return filter, nil, err
		}
		filter.Categories = list
	}
	if v, ok := fields["statuses"]; ok {
		list, err := stringList("statuses", v)
		if err != nil {
			return filter, nil, err
		}
		filter.Statuses = list
	}
	if v, ok := fields["keywords"]; ok {
		sv, isString := v.GetKind().(*structpb.Value_StringValue)
		if !isString {
			return filter, nil, &ValidationError{Msg: "keywords must be a string"}
		}
		filter.Keywords = sv.StringValue
	}
	if v, ok := fields["lookback_days"]; ok {
		nv, isNumber := v.GetKind().(*structpb.Value_NumberValue)
		if !isNumber || nv.NumberValue != math.Trunc(nv.NumberValue) || math.Abs(nv.NumberValue) > math.MaxInt32 {
			return filter, nil, &ValidationError{Msg: "lookback_days must be an integer"}
		}
		if nv.NumberValue < 0 {
			lookback = nil
		} else {
			days := int(nv.NumberValue)
			lookback = &days
		}
	}
	return filter, lookback, nil
}

func stringList(name string, v *structpb.Value) ([]string, error) {
	lv, ok := v.GetKind().(*structpb.Value_ListValue)
	if !ok {
		return nil, &ValidationError{Msg: fmt.Sprintf("%s must be a list of strings", name)}
	}
	out := make([]string, 0, len(lv.ListValue.GetValues()))
	for _, item := range lv.ListValue.GetValues() {
		sv, ok := item.GetKind().(*structpb.Value_StringValue)
		if !ok {
			return nil, &ValidationError{Msg: fmt.Sprintf("%s must be a list of strings", name)}
		}
		out = append(out, sv.StringValue)
	}
	return out, nil
}

// toGRPCError maps domain errors to gRPC status errors.
func toGRPCError(err error) error {
	var ve *ValidationError
	var upstream *scraper.UpstreamError
	var transport *scraper.TransportError
	switch {
	case errors.As(err, &ve):
		return status.Error(codes.InvalidArgument, ve.Msg)
	case errors.Is(err, access.ErrForbidden):
		return status.Error(codes.PermissionDenied, err.Error())
	case errors.Is(err, scheduler.ErrAlreadyRunning):
		return status.Error(codes.Aborted, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.As(err, &upstream), errors.As(err, &transport):
		return status.Error(codes.Unavailable, err.Error())
	}
	return status.Error(codes.Internal, "internal server error")
}

// reportToStruct converts an ingest.Report to its Struct representation.
func reportToStruct(r ingest.Report) (*structpb.Struct, error) {
	failedIDs := make([]any, 0, len(r.FailedIDs))
	for _, id := range r.FailedIDs {
		failedIDs = append(failedIDs, id)
	}
	return structpb.NewStruct(map[string]any{
		"discovered":  r.Discovered,
		"fetched":     r.Fetched,
		"failed":      r.Failed,
		"failed_ids":  failedIDs,
		"cleaned":     r.Cleaned,
		"filtered":    r.Filtered,
		"applied":     r.Applied,
		"inserted":    r.Inserted,
		"updated":     r.Updated,
		"stage":       string(r.Stage),
		"duration_ms": r.Duration.Milliseconds(),
	})
}

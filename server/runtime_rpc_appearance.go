package server

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/gofrs/uuid/v5"
	"github.com/heroiclabs/nakama-common/runtime"
	"github.com/samber/lo"
	"google.golang.org/grpc/codes"
)

const (
	StatusInvalidArgument = int(codes.InvalidArgument)
	StatusInternalError   = int(codes.Internal)
	StatusUnauthenticated = int(codes.Unauthenticated)
)

type AppearanceGetRequest struct {
	UserID string `json:"user_id"`
}

type AppearanceWearableResponse struct {
	Type    WearableType `json:"type"`
	ItemID  string       `json:"item_id"`
	AssetID string       `json:"asset_id"`
}

type AppearanceGetResponse struct {
	Found        bool                         `json:"found"`
	UserID       string                       `json:"user_id"`
	Serial       int64                        `json:"serial"`
	Wearables    []AppearanceWearableResponse `json:"wearables"`
	VisualParams []int                        `json:"visual_params"`
}

func (r *AppearanceGetResponse) String() string {
	b, _ := json.Marshal(r)
	return string(b)
}

func NewAppearanceGetResponse(found bool, a *Appearance) *AppearanceGetResponse {
	return &AppearanceGetResponse{
		Found:  found,
		UserID: a.UserID.String(),
		Serial: a.Serial,
		Wearables: lo.Map(a.Wearables[:], func(w Wearable, i int) AppearanceWearableResponse {
			return AppearanceWearableResponse{
				Type:    WearableType(i),
				ItemID:  w.ItemID.String(),
				AssetID: w.AssetID.String(),
			}
		}),
		VisualParams: lo.Map(a.VisualParams[:], func(p byte, _ int) int { return int(p) }),
	}
}

// GetAppearanceRPC resolves the appearance of the requested user, or of the
// caller when no user is given.
func (s *AppearanceService) GetAppearanceRPC(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
	request := &AppearanceGetRequest{}
	if payload != "" {
		if err := json.Unmarshal([]byte(payload), request); err != nil {
			return "", runtime.NewError("invalid request payload", StatusInvalidArgument)
		}
	}

	if request.UserID == "" {
		callerID, ok := ctx.Value(runtime.RUNTIME_CTX_USER_ID).(string)
		if !ok || callerID == "" {
			return "", runtime.NewError("No user ID in context", StatusUnauthenticated)
		}
		request.UserID = callerID
	}

	userID, err := uuid.FromString(request.UserID)
	if err != nil || userID.IsNil() {
		return "", runtime.NewError("invalid user ID", StatusInvalidArgument)
	}

	found, appearance := s.ResolveAppearance(ctx, userID)
	return NewAppearanceGetResponse(found, appearance).String(), nil
}

type NowWearingRequest struct {
	Wearables []WornItem `json:"wearables"`
}

type NowWearingResponse struct {
	Result string `json:"result"`
}

// NowWearingRPC delivers the caller's now-wearing report for their session.
func (s *AppearanceService) NowWearingRPC(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
	sessionID, _, err := sessionFromContext(ctx)
	if err != nil {
		return "", runtime.NewError(err.Error(), StatusUnauthenticated)
	}

	request := &NowWearingRequest{}
	if err := json.Unmarshal([]byte(payload), request); err != nil {
		return "", runtime.NewError("invalid request payload", StatusInvalidArgument)
	}

	outcome := s.NowWearing(ctx, sessionID, request.Wearables)

	data, err := json.Marshal(&NowWearingResponse{Result: outcome.String()})
	if err != nil {
		return "", runtime.NewError("failed to marshal response", StatusInternalError)
	}
	return string(data), nil
}

package server

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/gofrs/uuid/v5"
	"github.com/heroiclabs/nakama-common/runtime"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sessionContext(userID, sessionID uuid.UUID) context.Context {
	ctx := context.WithValue(context.Background(), runtime.RUNTIME_CTX_USER_ID, userID.String())
	return context.WithValue(ctx, runtime.RUNTIME_CTX_SESSION_ID, sessionID.String())
}

func requireRuntimeErrorCode(t *testing.T, err error, code int) {
	t.Helper()
	require.Error(t, err)
	var rErr *runtime.Error
	require.ErrorAs(t, err, &rErr)
	assert.Equal(t, code, rErr.Code)
}

func TestGetAppearanceRPC(t *testing.T) {
	f := newAppearanceFixture(t, nil)
	p := f.joinParticipant(t)
	other := newTestUUID(t)
	ctx := sessionContext(p.userID, p.sessionID)

	tests := []struct {
		name      string
		payload   string
		wantUser  uuid.UUID
		wantFound bool
	}{
		{"caller", "", p.userID, true},
		{"caller with empty request", "{}", p.userID, true},
		{"other user without record", `{"user_id":"` + other.String() + `"}`, other, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := f.service.GetAppearanceRPC(ctx, nil, nil, nil, tt.payload)
			require.NoError(t, err)

			var response AppearanceGetResponse
			require.NoError(t, json.Unmarshal([]byte(out), &response))
			assert.Equal(t, tt.wantFound, response.Found)
			assert.Equal(t, tt.wantUser.String(), response.UserID)
			require.Len(t, response.Wearables, WearableSlotCount)
			assert.Equal(t, WearableSkirt, response.Wearables[12].Type)
			require.Len(t, response.VisualParams, VisualParamCount)
			assert.Equal(t, 100, response.VisualParams[0])
		})
	}
}

func TestGetAppearanceRPCErrors(t *testing.T) {
	f := newAppearanceFixture(t, nil)

	_, err := f.service.GetAppearanceRPC(context.Background(), nil, nil, nil, "")
	requireRuntimeErrorCode(t, err, StatusUnauthenticated)

	_, err = f.service.GetAppearanceRPC(context.Background(), nil, nil, nil, "{")
	requireRuntimeErrorCode(t, err, StatusInvalidArgument)

	_, err = f.service.GetAppearanceRPC(context.Background(), nil, nil, nil, `{"user_id":"nope"}`)
	requireRuntimeErrorCode(t, err, StatusInvalidArgument)
}

func TestNowWearingRPC(t *testing.T) {
	f := newAppearanceFixture(t, nil)
	hair := newInventoryItem(t, WearableHair)
	userID, sessionID := newTestUUID(t), newTestUUID(t)
	f.addParticipant(userID, hair)
	ctx := sessionContext(userID, sessionID)

	payload := `{"wearables":[{"type":2,"item_id":"` + hair.ID.String() + `"},{"type":40,"item_id":"` + hair.ID.String() + `"}]}`

	out, err := f.service.NowWearingRPC(ctx, nil, nil, nil, payload)
	require.NoError(t, err)
	assert.JSONEq(t, `{"result":"ignored"}`, out)

	f.service.sessionStartEvent(ctx, nil, nil)

	out, err = f.service.NowWearingRPC(ctx, nil, nil, nil, payload)
	require.NoError(t, err)
	assert.JSONEq(t, `{"result":"applied"}`, out)

	presence, ok := f.presences.GetPresence(sessionID)
	require.True(t, ok)
	assert.Equal(t, hair.AssetID, presence.CurrentAppearance().Wearables[WearableHair].AssetID)

	f.service.sessionEndEvent(ctx, nil, nil)
	_, ok = f.presences.GetPresence(sessionID)
	assert.False(t, ok)
}

func TestNowWearingRPCErrors(t *testing.T) {
	f := newAppearanceFixture(t, nil)

	_, err := f.service.NowWearingRPC(context.Background(), nil, nil, nil, `{"wearables":[]}`)
	requireRuntimeErrorCode(t, err, StatusUnauthenticated)

	ctx := context.WithValue(context.Background(), runtime.RUNTIME_CTX_USER_ID, newTestUUID(t).String())
	_, err = f.service.NowWearingRPC(ctx, nil, nil, nil, `{"wearables":[]}`)
	requireRuntimeErrorCode(t, err, StatusUnauthenticated)

	_, err = f.service.NowWearingRPC(sessionContext(newTestUUID(t), newTestUUID(t)), nil, nil, nil, "not json")
	requireRuntimeErrorCode(t, err, StatusInvalidArgument)
}

func TestSessionFromContext(t *testing.T) {
	userID, sessionID := newTestUUID(t), newTestUUID(t)

	gotSession, gotUser, err := sessionFromContext(sessionContext(userID, sessionID))
	require.NoError(t, err)
	assert.Equal(t, sessionID, gotSession)
	assert.Equal(t, userID, gotUser)

	_, _, err = sessionFromContext(context.Background())
	assert.ErrorIs(t, err, ErrNoUserInContext)

	ctx := context.WithValue(context.Background(), runtime.RUNTIME_CTX_USER_ID, userID.String())
	_, _, err = sessionFromContext(ctx)
	assert.ErrorIs(t, err, ErrNoSessionInContext)
}

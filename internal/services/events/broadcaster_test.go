package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/jwebster45206/novel-engine/pkg/battle"
	"github.com/jwebster45206/novel-engine/pkg/content"
	"github.com/jwebster45206/novel-engine/pkg/state"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupBroadcaster(t *testing.T) (*Broadcaster, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	return NewBroadcaster(client, logger), client
}

func receive(t *testing.T, sub *redis.PubSub) Event {
	t.Helper()
	select {
	case msg := <-sub.Channel():
		var ev Event
		require.NoError(t, json.Unmarshal([]byte(msg.Payload), &ev))
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return Event{}
	}
}

func subscribe(t *testing.T, client *redis.Client, sessionID uuid.UUID) *redis.PubSub {
	t.Helper()
	ctx := context.Background()
	sub := client.Subscribe(ctx, Channel(sessionID))
	t.Cleanup(func() { _ = sub.Close() })
	// Wait for the subscription to be confirmed before publishing.
	_, err := sub.Receive(ctx)
	require.NoError(t, err)
	return sub
}

func TestBroadcaster_SceneChanged(t *testing.T) {
	b, client := setupBroadcaster(t)
	sessionID := uuid.New()
	sub := subscribe(t, client, sessionID)

	err := b.PublishSceneChanged(context.Background(), sessionID, state.SceneChange{
		SceneID:    "linux_path",
		Title:      "Act II",
		Atmosphere: content.AtmosphereLinux,
		Track:      "linux",
		Mode:       state.ModeDialogue,
		Reason:     state.ReasonChoice,
	})
	require.NoError(t, err)

	ev := receive(t, sub)
	assert.Equal(t, EventTypeSceneChanged, ev.Type)
	assert.Equal(t, sessionID.String(), ev.SessionID)
	assert.Equal(t, "linux_path", ev.Data["scene_id"])
	assert.Equal(t, "linux", ev.Data["track"])
	assert.Equal(t, "choice", ev.Data["reason"])
}

func TestBroadcaster_BattleEvents(t *testing.T) {
	b, client := setupBroadcaster(t)
	sessionID := uuid.New()
	sub := subscribe(t, client, sessionID)
	ctx := context.Background()

	step := content.AttackStep{Side: content.SideAlly, Name: "Open Source Strike", Damage: 30}
	require.NoError(t, b.PublishBattlePhase(ctx, sessionID, battle.PhaseResult{
		Step:   &step,
		Phase:  4,
		Health: battle.Health{Ally: 75, Enemy: 45},
	}))
	require.NoError(t, b.PublishBattleCompleted(ctx, sessionID, "final_battle", battle.OutcomeVictory))
	require.NoError(t, b.PublishSessionReset(ctx, sessionID))

	phase := receive(t, sub)
	assert.Equal(t, EventTypeBattlePhase, phase.Type)
	assert.Equal(t, "Open Source Strike", phase.Data["attack"])
	assert.EqualValues(t, 45, phase.Data["enemy_hp"])

	done := receive(t, sub)
	assert.Equal(t, EventTypeBattleCompleted, done.Type)
	assert.Equal(t, "victory", done.Data["outcome"])

	reset := receive(t, sub)
	assert.Equal(t, EventTypeSessionReset, reset.Type)
}

func TestChannel(t *testing.T) {
	id := uuid.MustParse("7f0b6b2a-4c1e-4f55-9b1a-0c7c2b6f1e11")
	assert.Equal(t, "novel-events:7f0b6b2a-4c1e-4f55-9b1a-0c7c2b6f1e11", Channel(id))
}

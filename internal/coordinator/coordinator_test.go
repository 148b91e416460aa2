package coordinator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bingoduel/backend/internal/apperror"
	"bingoduel/backend/internal/hub"
	"bingoduel/backend/internal/models"
	"bingoduel/backend/internal/repository"
	"bingoduel/backend/internal/room"
)

const wait = 2 * time.Second

func TestCoordinatorsFollowSharedRoom(t *testing.T) {
	ctx := context.Background()
	svc := room.NewService(repository.NewInMemoryRoomStore(), hub.NewHub(), room.Options{TurnTimeLimit: 30 * time.Second})

	ada := New(svc, "p1", Options{})
	defer ada.Close()
	grace := New(svc, "p2", Options{})
	defer grace.Close()

	require.NoError(t, ada.Create(ctx, "Ada"))
	require.NoError(t, grace.Join(ctx, ada.Code(), "Grace"))

	require.Eventually(t, func() bool {
		r := ada.Room()
		return r != nil && r.Status == models.StatusPlaying
	}, wait, 5*time.Millisecond)
	assert.True(t, ada.IsMyTurn())
	assert.False(t, grace.IsMyTurn())
	assert.Equal(t, "p1", ada.MyPlayer().ID)
	assert.Equal(t, "p2", ada.OtherPlayer().ID)
	assert.Equal(t, "p2", grace.MyPlayer().ID)
	assert.Positive(t, ada.TimeLeft())

	require.NoError(t, ada.Call(ctx, 37))
	require.Eventually(t, func() bool {
		return grace.IsMyTurn()
	}, wait, 5*time.Millisecond)
	assert.Equal(t, []int{37}, grace.Room().CalledNumbers)

	err := grace.Call(ctx, 37)
	assert.ErrorIs(t, err, apperror.ErrAlreadyCalled)
	assert.Contains(t, grace.Err(), "already called")
	assert.False(t, grace.View().Pending)
	assert.Equal(t, []int{37}, grace.Room().CalledNumbers)

	require.NoError(t, grace.Mark(ctx, 37))
	assert.Empty(t, grace.Err())
	assert.Equal(t, []int{37}, grace.MyPlayer().MarkedNumbers)

	require.NoError(t, ada.Leave(ctx))
	require.Eventually(t, func() bool {
		return grace.Room() == nil
	}, wait, 5*time.Millisecond)
}

func TestCoordinatorReportsJoinErrors(t *testing.T) {
	ctx := context.Background()
	svc := room.NewService(repository.NewInMemoryRoomStore(), hub.NewHub(), room.Options{})

	c := New(svc, "p1", Options{})
	err := c.Join(ctx, "NOPE", "Ada")
	assert.ErrorIs(t, err, apperror.ErrRoomNotFound)
	assert.Contains(t, c.Err(), "room not found")
	assert.Nil(t, c.Room())

	err = c.Mark(ctx, 4)
	assert.ErrorIs(t, err, apperror.ErrRoomNotFound)
}

// scriptedAPI hands the test the subscription callback and lets it decide
// when a mark completes.
type scriptedAPI struct {
	RoomAPI
	onChange func(*models.GameRoom)
	release  chan struct{}
	markErr  error
	marked   *models.GameRoom
}

func (s *scriptedAPI) Subscribe(_ context.Context, _ string, onChange func(*models.GameRoom)) (func(), error) {
	s.onChange = onChange
	return func() {}, nil
}

func (s *scriptedAPI) MarkNumber(context.Context, string, string, int) (*models.GameRoom, error) {
	<-s.release
	return s.marked, s.markErr
}

func snapshot(version int64, called ...int) *models.GameRoom {
	return &models.GameRoom{
		ID:            "ROOM1",
		Version:       version,
		Status:        models.StatusPlaying,
		CurrentTurn:   "p1",
		CalledNumbers: called,
		Creator:       &models.Player{ID: "p1", MarkedNumbers: []int{}},
		Opponent:      &models.Player{ID: "p2", MarkedNumbers: []int{}},
	}
}

func TestStaleSnapshotsAreIgnored(t *testing.T) {
	api := &scriptedAPI{}
	c := New(api, "p1", Options{})
	require.NoError(t, c.Attach(context.Background(), "room1"))

	api.onChange(snapshot(3, 5, 6))
	api.onChange(snapshot(2, 5))
	assert.Equal(t, int64(3), c.Confirmed().Version)
	assert.Equal(t, []int{5, 6}, c.Room().CalledNumbers)

	other := snapshot(9)
	other.ID = "OTHER"
	api.onChange(other)
	assert.Equal(t, int64(3), c.Confirmed().Version)

	api.onChange(nil)
	assert.Nil(t, c.Room())
}

func TestDeletionOfPreviousRoomIsIgnored(t *testing.T) {
	api := &scriptedAPI{}
	c := New(api, "p1", Options{})
	require.NoError(t, c.Attach(context.Background(), "ROOM1"))
	previous := api.onChange
	previous(snapshot(1))

	require.NoError(t, c.Attach(context.Background(), "ROOM2"))
	next := snapshot(1)
	next.ID = "ROOM2"
	api.onChange(next)

	previous(nil)
	require.NotNil(t, c.Room())
	assert.Equal(t, "ROOM2", c.Room().ID)

	api.onChange(nil)
	assert.Nil(t, c.Room())
}

func TestOverlayShowsUntilConfirmed(t *testing.T) {
	api := &scriptedAPI{release: make(chan struct{})}
	views := make(chan View, 16)
	c := New(api, "p1", Options{OnChange: func(v View) { views <- v }})
	require.NoError(t, c.Attach(context.Background(), "ROOM1"))
	api.onChange(snapshot(1, 5))

	confirmed := snapshot(2, 5)
	confirmed.Creator.MarkedNumbers = []int{5}
	api.marked = confirmed

	done := make(chan error, 1)
	go func() { done <- c.Mark(context.Background(), 5) }()

	require.Eventually(t, func() bool { return c.View().Pending }, wait, time.Millisecond)
	assert.Equal(t, []int{5}, c.MyPlayer().MarkedNumbers)
	assert.Empty(t, c.Confirmed().Creator.MarkedNumbers)

	close(api.release)
	require.NoError(t, <-done)
	assert.False(t, c.View().Pending)
	assert.Equal(t, int64(2), c.Confirmed().Version)
	assert.Equal(t, []int{5}, c.MyPlayer().MarkedNumbers)
	assert.NotEmpty(t, views)
}

func TestOverlayDroppedOnFailure(t *testing.T) {
	api := &scriptedAPI{release: make(chan struct{}), markErr: apperror.ErrStoreUnavailable}
	close(api.release)
	c := New(api, "p1", Options{})
	require.NoError(t, c.Attach(context.Background(), "ROOM1"))
	api.onChange(snapshot(1, 5))

	err := c.Mark(context.Background(), 5)
	assert.ErrorIs(t, err, apperror.ErrStoreUnavailable)
	assert.False(t, c.View().Pending)
	assert.Empty(t, c.MyPlayer().MarkedNumbers)
	assert.Equal(t, "store unavailable", c.Err())
}

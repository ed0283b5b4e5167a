package cache

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleSeatMap() *SeatMap {
	return &SeatMap{
		ShowtimeID: 7,
		Seats: []SeatState{
			{SeatID: 1, Row: "A", Column: 1, Type: "STANDARD", Price: 100_000, Status: SeatAvailable},
			{SeatID: 2, Row: "A", Column: 2, Type: "VIP", Price: 150_000, Status: SeatHeld},
		},
	}
}

func TestGetSeatMap_Miss(t *testing.T) {
	client, mock := redismock.NewClientMock()
	c := NewRedisCacheFromClient(client)

	mock.ExpectGet("showtime:7:seatmap").RedisNil()

	seatMap, ok, err := c.GetSeatMap(context.Background(), 7)

	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, seatMap)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetSeatMap_Hit(t *testing.T) {
	client, mock := redismock.NewClientMock()
	c := NewRedisCacheFromClient(client)
	payload, err := json.Marshal(sampleSeatMap())
	require.NoError(t, err)

	mock.ExpectGet("showtime:7:seatmap").SetVal(string(payload))

	seatMap, ok, err := c.GetSeatMap(context.Background(), 7)

	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, sampleSeatMap(), seatMap)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetSeatMap_RedisError(t *testing.T) {
	client, mock := redismock.NewClientMock()
	c := NewRedisCacheFromClient(client)

	mock.ExpectGet("showtime:7:seatmap").SetErr(errors.New("connection refused"))

	_, ok, err := c.GetSeatMap(context.Background(), 7)

	assert.Error(t, err)
	assert.False(t, ok)
}

func TestSeatMapVersion(t *testing.T) {
	client, mock := redismock.NewClientMock()
	c := NewRedisCacheFromClient(client)

	mock.ExpectGet("showtime:7:seatmap:version").RedisNil()
	mock.ExpectGet("showtime:7:seatmap:version").SetVal("4")

	v, err := c.SeatMapVersion(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, int64(0), v)

	v, err = c.SeatMapVersion(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, int64(4), v)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPutSeatMap(t *testing.T) {
	tests := []struct {
		name   string
		result int64
		stored bool
	}{
		{"version unchanged", 1, true},
		{"invalidated while loading", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, mock := redismock.NewClientMock()
			c := NewRedisCacheFromClient(client)
			seatMap := sampleSeatMap()
			payload, err := json.Marshal(seatMap)
			require.NoError(t, err)

			mock.ExpectEvalSha(
				populateSeatMapScript.Hash(),
				[]string{"showtime:7:seatmap:version", "showtime:7:seatmap"},
				int64(3), string(payload), SeatMapTTL.Milliseconds(),
			).SetVal(tt.result)

			stored, err := c.PutSeatMap(context.Background(), 7, 3, seatMap)

			require.NoError(t, err)
			assert.Equal(t, tt.stored, stored)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestInvalidateSeatMap(t *testing.T) {
	client, mock := redismock.NewClientMock()
	c := NewRedisCacheFromClient(client)

	mock.ExpectEvalSha(
		invalidateSeatMapScript.Hash(),
		[]string{"showtime:7:seatmap:version", "showtime:7:seatmap"},
	).SetVal(int64(5))

	require.NoError(t, c.InvalidateSeatMap(context.Background(), 7))
	assert.NoError(t, mock.ExpectationsWereMet())
}

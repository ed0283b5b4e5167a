package cache

import (
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// key names definition
// key names in lua script should follow these formats
const (
	SeatMapKey        = "showtime:%d:seatmap"         // cached seat map of a showtime, '%d' is showtime id
	SeatMapVersionKey = "showtime:%d:seatmap:version" // bumped on every change of the showtime's seats, '%d' is showtime id
)

// SeatMapTTL bounds how stale a seat map may get when a claim expires
// without anyone sweeping it.
const SeatMapTTL = 15 * time.Second

func MakeSeatMapKey(showtimeID uint) string {
	return fmt.Sprintf(SeatMapKey, showtimeID)
}

func MakeSeatMapVersionKey(showtimeID uint) string {
	return fmt.Sprintf(SeatMapVersionKey, showtimeID)
}

type SeatStatus string

const (
	SeatAvailable SeatStatus = "AVAILABLE"
	SeatHeld      SeatStatus = "HELD"
	SeatSold      SeatStatus = "SOLD"
)

// struct definitions
// the data put into redis should follow the struct
type SeatMap struct {
	ShowtimeID uint        `json:"showtime_id"`
	Seats      []SeatState `json:"seats"`
}

type SeatState struct {
	SeatID uint       `json:"seat_id"`
	Row    string     `json:"row"`
	Column int        `json:"column"`
	Type   string     `json:"type"`
	Price  int64      `json:"price"`
	Status SeatStatus `json:"status"`
}

// lua scripts
var populateSeatMapScript = redis.NewScript(`
	-- KEYS[1] = showtime:{showtime_id}:seatmap:version
	-- KEYS[2] = showtime:{showtime_id}:seatmap

	-- ARGV[1] = version read before the seat map was loaded
	-- ARGV[2] = seat map payload
	-- ARGV[3] = ttl in milliseconds

	local current = tonumber(redis.call("GET", KEYS[1]) or "0")
	if current ~= tonumber(ARGV[1]) then
		return 0  -- seats changed while loading, drop the stale map
	end

	redis.call("SET", KEYS[2], ARGV[2], "PX", ARGV[3])
	return 1
`)

var invalidateSeatMapScript = redis.NewScript(`
	-- KEYS[1] = showtime:{showtime_id}:seatmap:version
	-- KEYS[2] = showtime:{showtime_id}:seatmap

	local version = redis.call("INCR", KEYS[1])
	redis.call("DEL", KEYS[2])
	return version
`)

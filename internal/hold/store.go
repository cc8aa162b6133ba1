package hold

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/cinema-ticket-booking/internal/config"
	"github.com/iliyamo/cinema-ticket-booking/internal/model"
)

// Key layout, kept stable for operational inspection:
//
//	hold:showtime:{showtimeID}:{seatID} -> holderID   (TTL = hold duration)
//	hold:user:{holderID}:showtime:{showtimeID} -> SET of seat IDs
//
// The per-seat key is the single source of truth; the per-user set is a
// reverse index used to release all of a user's holds at once and to cap
// how many seats one user may hold per showtime.  Index members can go
// stale when a hold key expires; every reader tolerates that and the
// acquire script sweeps stale members before counting against the cap.

func holdKey(showtimeID, seatID uint64) string {
	return fmt.Sprintf("hold:showtime:%d:%d", showtimeID, seatID)
}

func holdKeyPrefix(showtimeID uint64) string {
	return fmt.Sprintf("hold:showtime:%d:", showtimeID)
}

func userIndexKey(holderID, showtimeID uint64) string {
	return fmt.Sprintf("hold:user:%d:showtime:%d", holderID, showtimeID)
}

// AcquireOutcome is the result of a conditional hold write.
type AcquireOutcome int

const (
	// OutcomeAcquired means the seat was free and is now held by the caller.
	OutcomeAcquired AcquireOutcome = iota
	// OutcomeRenewed means the caller already held the seat; the TTL was reset.
	OutcomeRenewed
	// OutcomeConflict means a live hold by a different user exists.
	OutcomeConflict
	// OutcomeCapExceeded means the caller is at the per-showtime hold cap.
	OutcomeCapExceeded
)

// acquireScript performs the whole acquire step atomically: same-holder
// renewal, conflict detection, cap enforcement (with stale index sweep) and
// the conditional write itself.  Two concurrent acquires for the same seat
// therefore race safely – exactly one observes the key absent.
//
// KEYS[1] = hold key, KEYS[2] = user index key
// ARGV[1] = holder ID, ARGV[2] = TTL millis, ARGV[3] = cap (0 = unlimited),
// ARGV[4] = seat ID, ARGV[5] = hold key prefix for this showtime
//
// Reply: {0=acquired | 1=renewed | 2=conflict | 3=cap, current holder}
var acquireScript = redis.NewScript(`
    local cur = redis.call('GET', KEYS[1])
    if cur == ARGV[1] then
        redis.call('PEXPIRE', KEYS[1], ARGV[2])
        redis.call('SADD', KEYS[2], ARGV[4])
        redis.call('PEXPIRE', KEYS[2], ARGV[2])
        return {1, cur}
    end
    if cur then
        return {2, cur}
    end
    local cap = tonumber(ARGV[3])
    if cap > 0 then
        local live = 0
        for _, sid in ipairs(redis.call('SMEMBERS', KEYS[2])) do
            if redis.call('EXISTS', ARGV[5] .. sid) == 1 then
                live = live + 1
            else
                redis.call('SREM', KEYS[2], sid)
            end
        end
        if live >= cap then
            return {3, ''}
        end
    end
    redis.call('SET', KEYS[1], ARGV[1], 'PX', ARGV[2])
    redis.call('SADD', KEYS[2], ARGV[4])
    redis.call('PEXPIRE', KEYS[2], ARGV[2])
    return {0, ''}
`)

// releaseScript deletes a hold only when it is owned by the caller.
//
// KEYS[1] = hold key, KEYS[2] = user index key
// ARGV[1] = holder ID, ARGV[2] = seat ID
//
// Reply: 1 when a hold was deleted, 0 otherwise.
var releaseScript = redis.NewScript(`
    if redis.call('GET', KEYS[1]) ~= ARGV[1] then
        return 0
    end
    redis.call('DEL', KEYS[1])
    redis.call('SREM', KEYS[2], ARGV[2])
    return 1
`)

// releaseAllScript walks the user's reverse index and deletes every hold
// still owned by the user, then drops the index itself.
//
// KEYS[1] = user index key
// ARGV[1] = holder ID, ARGV[2] = hold key prefix for this showtime
//
// Reply: array of released seat IDs.
var releaseAllScript = redis.NewScript(`
    local released = {}
    for _, sid in ipairs(redis.call('SMEMBERS', KEYS[1])) do
        local k = ARGV[2] .. sid
        if redis.call('GET', k) == ARGV[1] then
            redis.call('DEL', k)
            released[#released + 1] = sid
        end
    end
    redis.call('DEL', KEYS[1])
    return released
`)

// Store is the Redis-backed hold store.  All operations are single network
// round trips; expiry is passive (Redis TTL removes lapsed holds without
// application intervention).  Store errors propagate to the caller after a
// single attempt – an unreachable hold store must fail the operation, never
// silently allow a double-booking.
type Store struct {
	rdb *redis.Client
	ttl time.Duration
	cap int
}

// NewStore builds a Store over the given client using the hold settings.
func NewStore(rdb *redis.Client, cfg config.HoldConfig) *Store {
	return &Store{rdb: rdb, ttl: cfg.TTL, cap: cfg.MaxSeatsPerUser}
}

// TTL returns the configured hold duration.
func (s *Store) TTL() time.Duration { return s.ttl }

// Acquire attempts to take (or renew) the hold on one seat.  On
// OutcomeAcquired and OutcomeRenewed the returned SeatHold carries the new
// expiry.  On OutcomeConflict the returned holder identifies the current
// owner.
func (s *Store) Acquire(ctx context.Context, showtimeID, seatID, holderID uint64) (AcquireOutcome, *model.SeatHold, error) {
	keys := []string{holdKey(showtimeID, seatID), userIndexKey(holderID, showtimeID)}
	argv := []interface{}{
		strconv.FormatUint(holderID, 10),
		s.ttl.Milliseconds(),
		s.cap,
		strconv.FormatUint(seatID, 10),
		holdKeyPrefix(showtimeID),
	}
	res, err := acquireScript.Run(ctx, s.rdb, keys, argv...).Result()
	if err != nil {
		return 0, nil, fmt.Errorf("hold acquire showtime=%d seat=%d: %w", showtimeID, seatID, err)
	}
	arr, ok := res.([]interface{})
	if !ok || len(arr) != 2 {
		return 0, nil, fmt.Errorf("hold acquire showtime=%d seat=%d: unexpected script reply %#v", showtimeID, seatID, res)
	}
	code, _ := arr[0].(int64)
	switch AcquireOutcome(code) {
	case OutcomeAcquired, OutcomeRenewed:
		h := &model.SeatHold{
			ShowtimeID: showtimeID,
			SeatID:     seatID,
			HolderID:   holderID,
			ExpiresAt:  time.Now().UTC().Add(s.ttl),
		}
		return AcquireOutcome(code), h, nil
	case OutcomeConflict:
		holder, _ := arr[1].(string)
		hid, _ := strconv.ParseUint(holder, 10, 64)
		return OutcomeConflict, &model.SeatHold{ShowtimeID: showtimeID, SeatID: seatID, HolderID: hid}, nil
	case OutcomeCapExceeded:
		return OutcomeCapExceeded, nil, nil
	}
	return 0, nil, fmt.Errorf("hold acquire showtime=%d seat=%d: unknown outcome %d", showtimeID, seatID, code)
}

// Release deletes the hold on one seat when owned by holderID.  It reports
// false (and no error) when no hold exists or the seat is held by someone
// else – releasing is a no-op in both cases.
func (s *Store) Release(ctx context.Context, showtimeID, seatID, holderID uint64) (bool, error) {
	keys := []string{holdKey(showtimeID, seatID), userIndexKey(holderID, showtimeID)}
	n, err := releaseScript.Run(ctx, s.rdb, keys,
		strconv.FormatUint(holderID, 10), strconv.FormatUint(seatID, 10)).Int()
	if err != nil {
		return false, fmt.Errorf("hold release showtime=%d seat=%d: %w", showtimeID, seatID, err)
	}
	return n == 1, nil
}

// ReleaseAll deletes every hold the user owns on the showtime and returns
// the seat IDs that were actually released.
func (s *Store) ReleaseAll(ctx context.Context, showtimeID, holderID uint64) ([]uint64, error) {
	res, err := releaseAllScript.Run(ctx, s.rdb, []string{userIndexKey(holderID, showtimeID)},
		strconv.FormatUint(holderID, 10), holdKeyPrefix(showtimeID)).Result()
	if err != nil {
		return nil, fmt.Errorf("hold release-all showtime=%d holder=%d: %w", showtimeID, holderID, err)
	}
	arr, _ := res.([]interface{})
	released := make([]uint64, 0, len(arr))
	for _, v := range arr {
		if str, ok := v.(string); ok {
			if sid, err := strconv.ParseUint(str, 10, 64); err == nil {
				released = append(released, sid)
			}
		}
	}
	return released, nil
}

// HoldersFor returns the current holder of each requested seat that has a
// live hold.  Seats without a hold are absent from the result.
func (s *Store) HoldersFor(ctx context.Context, showtimeID uint64, seatIDs []uint64) (map[uint64]uint64, error) {
	if len(seatIDs) == 0 {
		return map[uint64]uint64{}, nil
	}
	keys := make([]string, len(seatIDs))
	for i, sid := range seatIDs {
		keys[i] = holdKey(showtimeID, sid)
	}
	vals, err := s.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("hold lookup showtime=%d: %w", showtimeID, err)
	}
	holders := make(map[uint64]uint64, len(seatIDs))
	for i, v := range vals {
		str, ok := v.(string)
		if !ok {
			continue // no live hold for this seat
		}
		if hid, err := strconv.ParseUint(str, 10, 64); err == nil {
			holders[seatIDs[i]] = hid
		}
	}
	return holders, nil
}

// ListHeld scans all live holds of a showtime and returns them with their
// holder and expiry.  Used to render seat-map state to newly connecting
// clients; a hold that expires mid-scan is simply omitted.
func (s *Store) ListHeld(ctx context.Context, showtimeID uint64) ([]model.SeatHold, error) {
	prefix := holdKeyPrefix(showtimeID)
	var (
		cursor uint64
		holds  []model.SeatHold
	)
	now := time.Now().UTC()
	for {
		keys, next, err := s.rdb.Scan(ctx, cursor, prefix+"*", 100).Result()
		if err != nil {
			return nil, fmt.Errorf("hold scan showtime=%d: %w", showtimeID, err)
		}
		for _, key := range keys {
			sid, err := strconv.ParseUint(strings.TrimPrefix(key, prefix), 10, 64)
			if err != nil {
				continue
			}
			pipe := s.rdb.Pipeline()
			getCmd := pipe.Get(ctx, key)
			ttlCmd := pipe.PTTL(ctx, key)
			if _, err := pipe.Exec(ctx); err != nil {
				if err == redis.Nil {
					continue // expired between scan and read
				}
				return nil, fmt.Errorf("hold read showtime=%d seat=%d: %w", showtimeID, sid, err)
			}
			hid, err := strconv.ParseUint(getCmd.Val(), 10, 64)
			if err != nil {
				continue
			}
			ttl := ttlCmd.Val()
			if ttl <= 0 {
				continue
			}
			holds = append(holds, model.SeatHold{
				ShowtimeID: showtimeID,
				SeatID:     sid,
				HolderID:   hid,
				ExpiresAt:  now.Add(ttl),
			})
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	return holds, nil
}

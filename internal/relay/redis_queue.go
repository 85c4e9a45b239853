package relay

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const relayKeyPrefix = "questy:relay:"

// KEYS: pending list, current, stop. ARGV: ttl in ms.
const nextScript = `
if redis.call("EXISTS", KEYS[3]) == 1 then
  return {"stop", ""}
end
local current = redis.call("GET", KEYS[2])
if current then
  return {"question", current}
end
local popped = redis.call("LPOP", KEYS[1])
if popped then
  redis.call("SET", KEYS[2], popped, "PX", ARGV[1])
  return {"question", popped}
end
return {"empty", ""}
`

// KEYS: current. ARGV: answered question.
const answeredScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`

// RedisQueue shares queues between relay replicas and survives restarts.
type RedisQueue struct {
	client   *redis.Client
	ttl      time.Duration
	next     *redis.Script
	answered *redis.Script
}

func NewRedisQueue(client *redis.Client, ttl time.Duration) *RedisQueue {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisQueue{
		client:   client,
		ttl:      ttl,
		next:     redis.NewScript(nextScript),
		answered: redis.NewScript(answeredScript),
	}
}

func (q *RedisQueue) keys(studentID string) (pending, current, stop string) {
	base := relayKeyPrefix + studentID
	return base + ":pending", base + ":current", base + ":stop"
}

// Open clears a stop flag left from an earlier interview.
func (q *RedisQueue) Open(ctx context.Context, studentID string) error {
	_, _, stop := q.keys(studentID)
	return q.client.Del(ctx, stop).Err()
}

func (q *RedisQueue) Push(ctx context.Context, studentID, question string) error {
	pending, _, _ := q.keys(studentID)
	pipe := q.client.TxPipeline()
	pipe.RPush(ctx, pending, question)
	pipe.Expire(ctx, pending, q.ttl)
	_, err := pipe.Exec(ctx)
	return err
}

func (q *RedisQueue) Stop(ctx context.Context, studentID string) error {
	_, _, stop := q.keys(studentID)
	return q.client.Set(ctx, stop, "1", q.ttl).Err()
}

func (q *RedisQueue) Next(ctx context.Context, studentID string) (Next, error) {
	pending, current, stop := q.keys(studentID)
	res, err := q.next.Run(ctx, q.client, []string{pending, current, stop}, q.ttl.Milliseconds()).StringSlice()
	if err != nil {
		return Next{}, err
	}
	if len(res) != 2 {
		return Next{}, nil
	}
	switch res[0] {
	case "stop":
		return Next{Stop: true}, nil
	case "question":
		return Next{Question: res[1]}, nil
	}
	return Next{}, nil
}

func (q *RedisQueue) Answered(ctx context.Context, studentID, question string) error {
	_, current, _ := q.keys(studentID)
	return q.answered.Run(ctx, q.client, []string{current}, question).Err()
}

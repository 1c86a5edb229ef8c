package redisstore

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"

	"github.com/ThunderboltDev/Resound/internal/thread"
)

// Store fans appended turns out over redis pub/sub so that open live
// streams see them regardless of which server instance wrote the turn.
type Store struct {
	rdb *redis.Client
}

func NewStore(addr, password string, db int) *Store {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return &Store{rdb: rdb}
}

func (s *Store) Close() error {
	return s.rdb.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

func channelFor(threadID string) string {
	return "thread:" + threadID
}

func (s *Store) PublishTurn(ctx context.Context, threadID string, t *thread.Turn) error {
	body, err := json.Marshal(t)
	if err != nil {
		return err
	}
	return s.rdb.Publish(ctx, channelFor(threadID), body).Err()
}

// SubscribeThread returns a channel of turns appended to the thread and a
// cancel function that tears the subscription down. Messages that fail to
// decode are dropped.
func (s *Store) SubscribeThread(ctx context.Context, threadID string) (<-chan *thread.Turn, func(), error) {
	sub := s.rdb.Subscribe(ctx, channelFor(threadID))
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, nil, err
	}

	out := make(chan *thread.Turn, 16)
	go func() {
		defer close(out)
		for msg := range sub.Channel() {
			var t thread.Turn
			if err := json.Unmarshal([]byte(msg.Payload), &t); err != nil {
				continue
			}
			select {
			case out <- &t:
			case <-ctx.Done():
				return
			}
		}
	}()

	cancel := func() { _ = sub.Close() }
	return out, cancel, nil
}

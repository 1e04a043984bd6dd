package store

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const maxUpdateAttempts = 10

var ErrUpdateConflict = errors.New("list changed concurrently, giving up")

// RedisStore keeps lists as json strings and announces changes on a pub/sub
// channel per key, so every instance serving a session sees the update. One
// pattern subscription per store feeds all local subscribers.
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	Log    logrus.FieldLogger

	subs   fanout
	mu     sync.Mutex
	pubsub *redis.PubSub
}

func NewRedisStore(client *redis.Client, prefix string, ttl time.Duration) *RedisStore {
	return &RedisStore{
		client: client,
		prefix: prefix,
		ttl:    ttl,
		Log:    logrus.StandardLogger(),
	}
}

func (s *RedisStore) Client() *redis.Client {
	return s.client
}

func (s *RedisStore) key(key string) string {
	return s.prefix + key
}

func (s *RedisStore) channel(key string) string {
	return s.prefix + "changes:" + key
}

type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func (s *RedisStore) read(ctx context.Context, c getter, key string) (List, error) {
	data, err := c.Get(ctx, s.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return List{}, nil
	}
	if err != nil {
		return nil, err
	}
	list := List{}
	err = sonic.Unmarshal(data, &list)
	return list, err
}

func (s *RedisStore) write(ctx context.Context, pipe redis.Pipeliner, key string, data []byte) {
	pipe.Set(ctx, s.key(key), data, s.ttl)
	pipe.Publish(ctx, s.channel(key), data)
}

func (s *RedisStore) Get(ctx context.Context, key string) (List, error) {
	return s.read(ctx, s.client, key)
}

func (s *RedisStore) Put(ctx context.Context, key string, list List) error {
	if list == nil {
		list = List{}
	}
	data, err := sonic.Marshal(list)
	if err != nil {
		return err
	}
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		s.write(ctx, pipe, key, data)
		return nil
	})
	return err
}

// Update runs fn inside a WATCH on the key and retries when another writer
// got there first.
func (s *RedisStore) Update(ctx context.Context, key string, fn func(List) List) (List, error) {
	var next List
	txf := func(tx *redis.Tx) error {
		current, err := s.read(ctx, tx, key)
		if err != nil {
			return err
		}
		next = fn(current)
		if next == nil {
			next = List{}
		}
		data, err := sonic.Marshal(next)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			s.write(ctx, pipe, key, data)
			return nil
		})
		return err
	}
	for attempt := 0; attempt < maxUpdateAttempts; attempt++ {
		err := s.client.Watch(ctx, txf, s.key(key))
		if errors.Is(err, redis.TxFailedErr) {
			s.Log.Debugf("retrying update of %s, attempt %d", key, attempt+1)
			continue
		}
		if err != nil {
			return nil, err
		}
		return next, nil
	}
	return nil, ErrUpdateConflict
}

// Subscribe registers fn for changes of key. The first subscriber starts the
// shared pattern subscription.
func (s *RedisStore) Subscribe(key string, fn func(List)) func() {
	unsubscribe, first := s.subs.add(key, fn)
	if first {
		s.listen()
	}
	return unsubscribe
}

func (s *RedisStore) listen() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pubsub != nil {
		return
	}
	s.pubsub = s.client.PSubscribe(context.Background(), s.channel("*"))
	ch := s.pubsub.Channel()
	go func() {
		for msg := range ch {
			s.dispatch(msg)
		}
	}()
}

func (s *RedisStore) dispatch(msg *redis.Message) {
	key, ok := strings.CutPrefix(msg.Channel, s.channel(""))
	if !ok {
		return
	}
	list := List{}
	if err := sonic.UnmarshalString(msg.Payload, &list); err != nil {
		s.Log.Warnf("bad list update on %s: %v", msg.Channel, err)
		return
	}
	s.subs.publish(key, list)
}

// Close stops the pattern subscription. The client is owned by the caller.
func (s *RedisStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pubsub == nil {
		return nil
	}
	err := s.pubsub.Close()
	s.pubsub = nil
	return err
}

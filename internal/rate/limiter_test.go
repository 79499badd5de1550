package rate

import (
	"context"
	"errors"
	"testing"
	"time"

	rdb "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRedis implementa lo que usa RedisLimiter: TxPipeline con INCR, EXPIREAT y TTL.
type fakeRedis struct {
	rdb.Cmdable

	now     func() time.Time
	hits    map[string]int64
	expires map[string]time.Time
	execErr error
	ops     []string
}

func newFakeRedis(now func() time.Time) *fakeRedis {
	return &fakeRedis{now: now, hits: map[string]int64{}, expires: map[string]time.Time{}}
}

func (f *fakeRedis) TxPipeline() rdb.Pipeliner { return &fakePipe{r: f} }

type fakePipe struct {
	rdb.Pipeliner

	r      *fakeRedis
	queued []func()
	cmds   []rdb.Cmder
}

func (p *fakePipe) Incr(ctx context.Context, key string) *rdb.IntCmd {
	cmd := rdb.NewIntCmd(ctx, "incr", key)
	p.queue(cmd, func() {
		p.r.hits[key]++
		cmd.SetVal(p.r.hits[key])
	})
	return cmd
}

func (p *fakePipe) ExpireAt(ctx context.Context, key string, tm time.Time) *rdb.BoolCmd {
	cmd := rdb.NewBoolCmd(ctx, "expireat", key, tm.Unix())
	p.queue(cmd, func() {
		p.r.expires[key] = tm
		cmd.SetVal(true)
	})
	return cmd
}

func (p *fakePipe) TTL(ctx context.Context, key string) *rdb.DurationCmd {
	cmd := rdb.NewDurationCmd(ctx, time.Second, "ttl", key)
	p.queue(cmd, func() {
		exp, ok := p.r.expires[key]
		if !ok {
			cmd.SetVal(-1)
			return
		}
		cmd.SetVal(exp.Sub(p.r.now()).Truncate(time.Second))
	})
	return cmd
}

func (p *fakePipe) Exec(context.Context) ([]rdb.Cmder, error) {
	if p.r.execErr != nil {
		return nil, p.r.execErr
	}
	for i, fn := range p.queued {
		p.r.ops = append(p.r.ops, p.cmds[i].Name())
		fn()
	}
	return p.cmds, nil
}

func (p *fakePipe) queue(cmd rdb.Cmder, fn func()) {
	p.cmds = append(p.cmds, cmd)
	p.queued = append(p.queued, fn)
}

func TestRedisLimiter_FixedWindow(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 10, 0, time.UTC)
	clock := func() time.Time { return now }
	fr := newFakeRedis(clock)
	l := NewRedisLimiter(fr, "", 2, time.Minute)
	l.now = clock
	ctx := context.Background()

	res, err := l.Allow(ctx, "10.0.0.1 /x")
	require.NoError(t, err)
	assert.True(t, res.Allowed)
	assert.EqualValues(t, 1, res.Remaining)
	assert.Equal(t, 50*time.Second, res.WindowTTL)
	assert.Equal(t, []string{"incr", "expireat", "ttl"}, fr.ops)

	res, err = l.Allow(ctx, "10.0.0.1 /x")
	require.NoError(t, err)
	assert.True(t, res.Allowed)
	assert.EqualValues(t, 0, res.Remaining)

	res, err = l.Allow(ctx, "10.0.0.1 /x")
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.EqualValues(t, 3, res.CurrentHits)
	assert.Equal(t, 50*time.Second, res.RetryAfter)

	// la clave lleva el inicio de la ventana y no tiene espacios
	want := "rl:10.0.0.1_/x:" + "1777636800"
	assert.Contains(t, fr.hits, want)
	assert.Equal(t, now.Truncate(time.Minute).Add(time.Minute), fr.expires[want])

	// ventana siguiente: contador nuevo
	now = now.Add(time.Minute)
	res, err = l.Allow(ctx, "10.0.0.1 /x")
	require.NoError(t, err)
	assert.True(t, res.Allowed)
	assert.EqualValues(t, 1, res.CurrentHits)
}

func TestRedisLimiter_ExecError(t *testing.T) {
	fr := newFakeRedis(time.Now)
	fr.execErr = errors.New("connection refused")
	l := NewRedisLimiter(fr, "rl:", 2, time.Minute)

	_, err := l.Allow(context.Background(), "k")
	require.Error(t, err)
}

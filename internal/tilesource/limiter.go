package tilesource

import (
	"context"
	"sync"
	"time"
)

// HostLimiter タイルサーバーのホストごとに1秒あたりのリクエスト数を制限する
type HostLimiter struct {
	interval time.Duration
	hosts    map[string]*hostQueue
	mu       sync.Mutex
}

// hostQueue 特定ホスト宛てのリクエスト待ち行列
type hostQueue struct {
	requests chan *limitedCall
	ticker   *time.Ticker
	done     chan struct{}
}

type limitedCall struct {
	ctx  context.Context
	fn   func() error
	errc chan error
}

// NewHostLimiter rps <= 0 の場合は 10 req/s
func NewHostLimiter(rps int) *HostLimiter {
	if rps <= 0 {
		rps = 10
	}
	return &HostLimiter{
		interval: time.Second / time.Duration(rps),
		hosts:    make(map[string]*hostQueue),
	}
}

// Do fn を host の順番待ちに入れ、自分の番で実行する
func (l *HostLimiter) Do(ctx context.Context, host string, fn func() error) error {
	q := l.queue(host)
	call := &limitedCall{ctx: ctx, fn: fn, errc: make(chan error, 1)}

	select {
	case q.requests <- call:
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-call.errc:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *HostLimiter) queue(host string) *hostQueue {
	l.mu.Lock()
	defer l.mu.Unlock()

	if q, ok := l.hosts[host]; ok {
		return q
	}
	q := &hostQueue{
		requests: make(chan *limitedCall, 256),
		ticker:   time.NewTicker(l.interval),
		done:     make(chan struct{}),
	}
	l.hosts[host] = q
	go q.run()
	return q
}

// run tick ごとに1件ずつ取り出して実行する。
// fn は別ゴルーチンで走らせ、遅いレスポンスが次の枠を塞がないようにする
func (q *hostQueue) run() {
	for {
		select {
		case <-q.ticker.C:
			select {
			case call := <-q.requests:
				if err := call.ctx.Err(); err != nil {
					call.errc <- err
					continue
				}
				go func(c *limitedCall) { c.errc <- c.fn() }(call)
			default:
			}
		case <-q.done:
			q.ticker.Stop()
			return
		}
	}
}

// Close すべてのホストのワーカーを止める
func (l *HostLimiter) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, q := range l.hosts {
		close(q.done)
	}
	l.hosts = make(map[string]*hostQueue)
}

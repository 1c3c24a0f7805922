package worker

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/any-hub/esw-index/internal/cache"
	"github.com/any-hub/esw-index/internal/logging"
)

// State 对应 worker 生命周期阶段。
type State int32

const (
	StateParsed State = iota
	StateInstalling
	StateInstalled
	StateActivating
	StateActivated
	StateRedundant
)

func (s State) String() string {
	switch s {
	case StateParsed:
		return "parsed"
	case StateInstalling:
		return "installing"
	case StateInstalled:
		return "installed"
	case StateActivating:
		return "activating"
	case StateActivated:
		return "activated"
	case StateRedundant:
		return "redundant"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// ErrInvalidState 表示生命周期方法调用顺序不正确。
var ErrInvalidState = errors.New("worker: invalid lifecycle state")

// Dependencies 汇总 Worker 的外部协作者。Storage 与 Fetcher 必填。
type Dependencies struct {
	Storage  cache.Storage
	Fetcher  Fetcher
	Matcher  ScopeMatcher
	Cleanup  CleanupFunc
	Logger   *logrus.Logger
	Observer Observer
}

// Worker 串联 install → activate → fetch 三个阶段。
type Worker struct {
	opts        Options
	logger      *logrus.Logger
	classifier  *Classifier
	primer      *Primer
	generations *Generations
	engine      *Engine

	state atomic.Int32
}

// New 构造处于 parsed 状态的 Worker。
func New(opts Options, deps Dependencies) (*Worker, error) {
	if deps.Storage == nil {
		return nil, errors.New("cache storage is required")
	}
	if deps.Fetcher == nil {
		return nil, errors.New("fetcher is required")
	}
	if opts.Origin == nil {
		return nil, errors.New("origin is required")
	}
	if opts.Version == "" {
		return nil, errors.New("version is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = logging.Discard()
	}

	return &Worker{
		opts:        opts,
		logger:      logger,
		classifier:  NewClassifier(opts, deps.Matcher),
		primer:      NewPrimer(opts, deps.Storage, deps.Fetcher),
		generations: NewGenerations(opts, deps.Storage, deps.Cleanup),
		engine:      NewEngine(opts, deps.Storage, deps.Fetcher, logger, deps.Observer),
	}, nil
}

// Options 返回 Worker 使用的只读配置副本。
func (w *Worker) Options() Options {
	return w.opts
}

// State 返回当前生命周期阶段。
func (w *Worker) State() State {
	return State(w.state.Load())
}

// Generation 返回当前代际缓存名称。
func (w *Worker) Generation() string {
	return w.generations.Current()
}

// Install 预热入口文档，完成前不返回；失败时 Worker 进入 redundant，不会再被激活。
func (w *Worker) Install(ctx context.Context) error {
	if !w.state.CompareAndSwap(int32(StateParsed), int32(StateInstalling)) {
		return fmt.Errorf("%w: install from %s", ErrInvalidState, w.State())
	}
	started := time.Now()
	fields := w.lifecycleFields("install")

	if err := w.primer.Install(ctx); err != nil {
		w.state.Store(int32(StateRedundant))
		fields["elapsed_ms"] = time.Since(started).Milliseconds()
		w.logger.WithError(err).WithFields(fields).Error("install_failed")
		return err
	}

	w.state.Store(int32(StateInstalled))
	fields["elapsed_ms"] = time.Since(started).Milliseconds()
	w.logger.WithFields(fields).Info("install_complete")
	return nil
}

// Activate 清理旧代际缓存，完成前 HandleFetch 不会拦截任何请求。
func (w *Worker) Activate(ctx context.Context) error {
	if !w.state.CompareAndSwap(int32(StateInstalled), int32(StateActivating)) {
		return fmt.Errorf("%w: activate from %s", ErrInvalidState, w.State())
	}
	started := time.Now()
	fields := w.lifecycleFields("activate")

	if err := w.generations.Activate(ctx); err != nil {
		w.state.Store(int32(StateRedundant))
		fields["elapsed_ms"] = time.Since(started).Milliseconds()
		w.logger.WithError(err).WithFields(fields).Error("activate_failed")
		return err
	}

	w.state.Store(int32(StateActivated))
	fields["elapsed_ms"] = time.Since(started).Milliseconds()
	w.logger.WithFields(fields).Info("activate_complete")
	return nil
}

// Start 依次执行 Install 与 Activate。
func (w *Worker) Start(ctx context.Context) error {
	if err := w.Install(ctx); err != nil {
		return err
	}
	return w.Activate(ctx)
}

// HandleFetch 返回 handled=false 时调用方应按默认方式（直连上游）处理请求。
// handled=true 且 err != nil 表示入口文档不可用，拦截的导航失败。
func (w *Worker) HandleFetch(ctx context.Context, req Request) (*cache.Response, bool, error) {
	if w.State() != StateActivated {
		return nil, false, nil
	}
	if !w.classifier.Eligible(req) {
		return nil, false, nil
	}
	resp, err := w.engine.Respond(ctx, req)
	return resp, true, err
}

// Close 等待后台缓存写入完成。
func (w *Worker) Close() {
	w.engine.Wait()
}

func (w *Worker) lifecycleFields(action string) logrus.Fields {
	return logrus.Fields{
		"action":     action,
		"generation": w.generations.Current(),
		"version":    w.opts.Version,
		"entry":      w.opts.EntryDocumentURL(),
	}
}

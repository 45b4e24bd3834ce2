package index

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/aihub/wpredisearch/internal/hooks"
	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"
)

// DefaultCLIBatchSize 命令行全量索引的默认每批数量
const DefaultCLIBatchSize = 50

// IndexOptions 全量索引参数
type IndexOptions struct {
	// 先删除并重建索引
	Setup     bool
	BatchSize int
	Offset    int
	PostTypes []string
	// 指定 ID 时每批数量等于 ID 个数
	PostIDs     []uint64
	WriteToDisk bool
}

// IndexReport 全量索引汇总
type IndexReport struct {
	Indexed    int
	FoundPosts int
	Failed     []*RecordError
	Elapsed    time.Duration
}

// Err 汇总所有失败记录，没有失败时返回 nil
func (r *IndexReport) Err() error {
	var result *multierror.Error
	for _, f := range r.Failed {
		result = multierror.Append(result, f)
	}
	return result.ErrorOrNil()
}

// Runner 在一个进程内循环执行批量索引直到游标耗尽
type Runner struct {
	manager  *Manager
	batch    *BatchIndexer
	cursors  CursorStore
	preparer *Preparer
	hooks    *hooks.Registry
	lock     *ReindexLock
	out      io.Writer
	logger   *zap.Logger
}

// NewRunner 创建全量索引执行器，lock 为 nil 时不加锁
func NewRunner(manager *Manager, batch *BatchIndexer, cursors CursorStore, preparer *Preparer, h *hooks.Registry, lock *ReindexLock, out io.Writer, logger *zap.Logger) *Runner {
	if out == nil {
		out = io.Discard
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if h == nil {
		h = hooks.NewRegistry()
	}
	return &Runner{
		manager:  manager,
		batch:    batch,
		cursors:  cursors,
		preparer: preparer,
		hooks:    h,
		lock:     lock,
		out:      out,
		logger:   logger,
	}
}

// IndexAll 全量索引。每批之后清理作者缓存并把扩展点恢复到开始时的状态，
// 避免长时间运行时内存持续增长。
func (r *Runner) IndexAll(ctx context.Context, opts IndexOptions) (*IndexReport, error) {
	start := time.Now()
	report := &IndexReport{}

	if r.lock != nil {
		if err := r.lock.Acquire(ctx); err != nil {
			return nil, err
		}
		defer func() {
			if err := r.lock.Release(context.Background()); err != nil {
				r.logger.Warn("failed to release reindex lock", zap.Error(err))
			}
		}()
	}

	if opts.Setup {
		if _, err := r.manager.CreateIndex(ctx); err != nil {
			return nil, err
		}
	}

	batchOpts := BatchOptions{
		BatchSize: opts.BatchSize,
		PostTypes: opts.PostTypes,
		PostIDs:   opts.PostIDs,
	}
	if batchOpts.BatchSize <= 0 {
		batchOpts.BatchSize = DefaultCLIBatchSize
	}
	if len(opts.PostIDs) > 0 {
		batchOpts.BatchSize = len(opts.PostIDs)
	}

	if err := r.cursors.Save(ctx, Cursor{Offset: opts.Offset}); err != nil {
		return nil, err
	}

	restore := r.hooks.Snapshot()
	defer restore()

	for {
		if err := ctx.Err(); err != nil {
			report.Elapsed = time.Since(start)
			return report, err
		}

		res, err := r.batch.RunBatchWith(ctx, batchOpts)
		if res != nil {
			report.Indexed += res.Indexed
			report.Failed = append(report.Failed, res.Failed...)
			report.FoundPosts = res.Cursor.FoundPosts
		}
		if err != nil {
			report.Elapsed = time.Since(start)
			return report, err
		}

		if res.PageSize == 0 {
			break
		}
		fmt.Fprintf(r.out, "Processed %d/%d entries. . .\n", res.From+res.PageSize, res.Cursor.FoundPosts)

		if res.Cursor.Done() {
			break
		}
		r.preparer.Reset()
		restore()

		if r.lock != nil {
			if err := r.lock.Refresh(ctx); err != nil {
				report.Elapsed = time.Since(start)
				return report, err
			}
		}
	}

	if opts.WriteToDisk || r.manager.cfg.WriteToDisk {
		if err := r.manager.WriteToDisk(ctx); err != nil {
			r.logger.Warn("write to disk failed", zap.Error(err))
		}
	}

	report.Elapsed = time.Since(start)
	r.logger.Info("full index completed",
		zap.Int("indexed", report.Indexed),
		zap.Int("failed", len(report.Failed)),
		zap.Int("found_posts", report.FoundPosts),
		zap.Duration("elapsed", report.Elapsed),
	)
	return report, nil
}

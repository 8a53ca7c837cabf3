package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/John-Robertt/ratingscout/internal/batch"
	"github.com/John-Robertt/ratingscout/internal/config"
	"github.com/John-Robertt/ratingscout/internal/domain"
	"github.com/John-Robertt/ratingscout/internal/infra/fsx"
	"github.com/John-Robertt/ratingscout/internal/sheet"
)

type runOptions struct {
	out         string
	strategy    string
	retries     int
	sourceB     bool
	concurrency int
}

func newRunCommand(root *rootFlags) *cobra.Command {
	var opts runOptions

	cmd := &cobra.Command{
		Use:   "run <queries.xlsx|queries.csv>",
		Short: "批量查询并生成 xlsx 报告",
		Long: `读取查询表格（电影：Movie_name/Director_name；剧集：Season_name/Episode_number/Director_name），
逐行查询分级信息并写出报告。

stdout 为 TTY 时打印摘要表格；否则 stdout 只输出一个 BatchReport JSON（日志/进度走 stderr）。`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f := cmd.Flags()
			cli := config.CLIArgs{
				Input:          args[0],
				ConfigPath:     root.configPath,
				Strategy:       opts.strategy,
				StrategySet:    f.Changed("strategy"),
				Retries:        opts.retries,
				RetriesSet:     f.Changed("retries"),
				SourceB:        opts.sourceB,
				SourceBSet:     f.Changed("source-b"),
				Concurrency:    opts.concurrency,
				ConcurrencySet: f.Changed("concurrency"),
			}
			return runBatch(cmd.Context(), cmd.OutOrStdout(), cmd.ErrOrStderr(), cli, opts.out)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.out, "out", "o", "", "报告输出路径（默认 <输入文件名>_report.xlsx，与输入同目录）")
	f.StringVar(&opts.strategy, "strategy", config.DefaultStrategy, "标题匹配策略：sequence|token_set")
	f.IntVar(&opts.retries, "retries", config.DefaultMaxRetries, "单个 source 调用的最大尝试次数（1..5）")
	f.BoolVar(&opts.sourceB, "source-b", true, "Source A 未命中时是否回退到 FVLB")
	f.IntVar(&opts.concurrency, "concurrency", config.DefaultConcurrency, "并发查询数（1..8）")
	return cmd
}

func runBatch(ctx context.Context, stdout, stderr io.Writer, cli config.CLIArgs, out string) error {
	eff, err := loadConfig(cli)
	if err != nil {
		return err
	}
	logger, err := newLogger(eff, stderr)
	if err != nil {
		return err
	}

	rows, mode, err := sheet.ReadQueries(eff.Input)
	if err != nil {
		return fmt.Errorf("读取输入表格失败：%w", err)
	}

	outPath, err := reportPath(eff.Input, out)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return fmt.Errorf("创建输出目录失败：%w", err)
	}

	// 同一份报告同一时间只允许一个进程写入。
	lockPath := outPath + ".lock"
	lock := flock.New(lockPath)
	ok, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("获取报告锁失败：%w", err)
	}
	if !ok {
		return fmt.Errorf("另一个 ratingscout 进程正在写入 %s", outPath)
	}
	defer func() {
		_ = lock.Unlock()
		_ = os.Remove(lockPath)
	}()

	engine, err := buildEngine(eff, logger)
	if err != nil {
		return err
	}

	var obs batch.Observer
	if isTerminal(stderr) {
		obs = newProgressUI(stderr, eff, outPath)
	}

	report := newRunner(eff, engine, obs).Run(ctx, rows)
	report.RunID = uuid.NewString()
	report.Input = eff.Input
	report.Mode = string(mode)

	data, err := sheet.EncodeReport(report)
	if err != nil {
		return fmt.Errorf("生成报告失败：%w", err)
	}
	if err := fsx.WriteFile(outPath, data); err != nil {
		return fmt.Errorf("写入报告失败：%w", err)
	}

	return emitReport(stdout, stderr, report, outPath)
}

// reportPath 计算报告路径；out 为空时放在输入文件旁。
func reportPath(input, out string) (string, error) {
	if p := strings.TrimSpace(out); p != "" {
		abs, err := filepath.Abs(p)
		if err != nil {
			return "", err
		}
		return abs, nil
	}
	stem := strings.TrimSuffix(filepath.Base(input), filepath.Ext(input))
	return filepath.Join(filepath.Dir(input), stem+"_report.xlsx"), nil
}

// emitReport 输出最终结果。
// stdout 为 TTY：打印摘要表格；否则 stdout 只输出一个 BatchReport JSON，摘要行写到 stderr。
func emitReport(stdout, stderr io.Writer, report domain.BatchReport, outPath string) error {
	if isTerminal(stdout) {
		fmt.Fprintln(stdout, renderSummary(report, outPath))
		if pending := renderPending(report); pending != "" {
			fmt.Fprintln(stdout, pending)
		}
		return nil
	}

	if err := json.NewEncoder(stdout).Encode(report); err != nil {
		return err
	}
	s := report.Summary
	fmt.Fprintf(stderr, "完成：found=%d ambiguous=%d not_found=%d invalid=%d report=%s\n",
		s.Found, s.Ambiguous, s.NotFound, s.Invalid, outPath,
	)
	return nil
}

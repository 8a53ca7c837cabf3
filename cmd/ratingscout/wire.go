package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"golang.org/x/time/rate"

	"github.com/John-Robertt/ratingscout/internal/batch"
	"github.com/John-Robertt/ratingscout/internal/config"
	"github.com/John-Robertt/ratingscout/internal/infra/httpx"
	"github.com/John-Robertt/ratingscout/internal/logging"
	"github.com/John-Robertt/ratingscout/internal/matcher"
	"github.com/John-Robertt/ratingscout/internal/provider"
	"github.com/John-Robertt/ratingscout/internal/provider/classoffice"
	"github.com/John-Robertt/ratingscout/internal/provider/fvlb"
	"github.com/John-Robertt/ratingscout/internal/resolve"
)

// loadConfig 先加载 cwd/.env（不覆盖已有环境变量），再读取并合并配置。
func loadConfig(cli config.CLIArgs) (config.EffectiveConfig, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return config.EffectiveConfig{}, fmt.Errorf("读取当前目录失败：%w", err)
	}
	if err := config.LoadDotEnv(cwd); err != nil {
		return config.EffectiveConfig{}, fmt.Errorf("读取 .env 失败：%w", err)
	}
	return config.LoadEffective(cwd, cli)
}

func newLogger(eff config.EffectiveConfig, w io.Writer) (*slog.Logger, error) {
	return logging.New(logging.Options{Level: eff.LogLevel, Format: eff.LogFormat, Writer: w})
}

// buildEngine 按生效配置组装 HTTP client、source 回退链与匹配策略。
func buildEngine(eff config.EffectiveConfig, logger *slog.Logger) (*resolve.Engine, error) {
	client, err := httpx.NewClient(httpx.Options{
		ProxyURL:         eff.ProxyURL,
		Timeout:          eff.FetchTimeout,
		PerHostPerMinute: eff.HostRatePerMinute,
	})
	if err != nil {
		return nil, fmt.Errorf("初始化 HTTP client 失败：%w", err)
	}

	reg, err := provider.NewRegistry(
		classoffice.Source{BaseURL: eff.ClassOffice.BaseURL, Client: client},
		fvlb.Source{BaseURL: eff.FVLB.BaseURL, Client: client},
	)
	if err != nil {
		return nil, fmt.Errorf("初始化 source registry 失败：%w", err)
	}
	sources, err := reg.Order(eff.EnabledSources())
	if err != nil {
		return nil, err
	}

	strategy, err := matcher.New(eff.Strategy, eff.SimilarityThreshold, eff.TokenThreshold)
	if err != nil {
		return nil, err
	}

	return &resolve.Engine{
		Sources:      sources,
		Matcher:      strategy,
		Codes:        eff.RatingCodes,
		Retry:        resolve.RetryPolicy{MaxAttempts: eff.MaxRetries, Backoff: eff.RetryBackoff},
		FetchTimeout: eff.FetchTimeout,
		SecondaryKey: eff.SecondaryKey,
		Logger:       logger,
	}, nil
}

func newRunner(eff config.EffectiveConfig, engine batch.Resolver, obs batch.Observer) batch.Runner {
	r := batch.Runner{
		Resolver:   engine,
		Workers:    eff.Concurrency,
		PauseEvery: eff.PauseEvery,
		PauseFor:   eff.PauseFor,
		Observer:   obs,
	}
	if eff.RatePerMinute > 0 {
		r.Pace = rate.NewLimiter(rate.Every(time.Minute/time.Duration(eff.RatePerMinute)), 1)
	}
	return r
}

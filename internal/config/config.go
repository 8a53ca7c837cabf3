package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"

	"github.com/John-Robertt/ratingscout/internal/domain"
)

const (
	// ErrCodeNotFound 表示 --config 指定的配置文件不存在。
	ErrCodeNotFound = "config_not_found"
	// ErrCodeInvalid 表示配置文件无法读取/解析，或合并后的字段不合法。
	ErrCodeInvalid = "config_invalid"
)

const (
	FileName    = "ratingscout.toml"
	EnvProxyURL = "RATINGSCOUT_PROXY_URL"
)

// 内置默认值（CLI 与配置文件都未指定时）。
const (
	DefaultStrategy            = "sequence"
	DefaultSimilarityThreshold = 0.85
	DefaultTokenThreshold      = 80
	DefaultMaxRetries          = 1
	DefaultRetryBackoff        = 5 * time.Second
	DefaultFetchTimeout        = 30 * time.Second
	DefaultConcurrency         = 1
	DefaultPauseEvery          = 10
	DefaultPauseFor            = 60 * time.Second
	DefaultLogLevel            = "info"
	DefaultLogFormat           = "console"
)

// CLIArgs 只包含 CLI 暴露的入口，并保留“是否显式指定”的信息。
// 这能保证覆盖优先级可实现：例如 --source-b=false 必须能覆盖 sources.fvlb.enabled=true。
type CLIArgs struct {
	Input      string
	ConfigPath string

	Strategy    string
	StrategySet bool

	Retries    int
	RetriesSet bool

	SourceB    bool
	SourceBSet bool

	Concurrency    int
	ConcurrencySet bool
}

// FileConfig 对应 ratingscout.toml 的解析结构。指针字段用于区分“未填写”与零值。
type FileConfig struct {
	Strategy            string   `toml:"strategy"`
	SimilarityThreshold *float64 `toml:"similarity_threshold"`
	TokenThreshold      *int     `toml:"token_threshold"`
	MaxRetries          *int     `toml:"max_retries"`
	RetryBackoff        string   `toml:"retry_backoff"`
	FetchTimeout        string   `toml:"fetch_timeout"`
	Concurrency         *int     `toml:"concurrency"`
	PauseEvery          *int     `toml:"pause_every"`
	PauseFor            string   `toml:"pause_for"`
	RatePerMinute       int      `toml:"rate_per_minute"`
	HostRatePerMinute   int      `toml:"host_rate_per_minute"`
	SecondaryKey        *bool    `toml:"secondary_key"`

	Sources SourcesConfig `toml:"sources"`
	Proxy   ProxyConfig   `toml:"proxy"`
	Log     LogConfig     `toml:"log"`

	RatingCodes map[string]string `toml:"rating_codes"`
	LabelCodes  map[string]string `toml:"label_codes"`
}

type SourcesConfig struct {
	ClassOffice SourceConfig `toml:"classoffice"`
	FVLB        SourceConfig `toml:"fvlb"`
}

type SourceConfig struct {
	Enabled *bool  `toml:"enabled"`
	BaseURL string `toml:"base_url"`
}

type ProxyConfig struct {
	URL string `toml:"url"`
}

type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// SourceSettings 是单个 source 合并后的设置。
type SourceSettings struct {
	Enabled bool   `name:"enabled"`
	BaseURL string `name:"base_url" validate:"omitempty,http_url"`
}

// EffectiveConfig 是合并并校验后的最终配置（实现层直接消费，不再做二次默认/优先级判断）。
type EffectiveConfig struct {
	Input      string `name:"input"`
	ConfigPath string `name:"config"`

	Strategy            string        `name:"strategy" validate:"oneof=sequence token_set"`
	SimilarityThreshold float64       `name:"similarity_threshold" validate:"gt=0,lte=1"`
	TokenThreshold      int           `name:"token_threshold" validate:"min=1,max=100"`
	MaxRetries          int           `name:"max_retries" validate:"min=1,max=5"`
	RetryBackoff        time.Duration `name:"retry_backoff" validate:"gte=0"`
	FetchTimeout        time.Duration `name:"fetch_timeout" validate:"gt=0"`
	Concurrency         int           `name:"concurrency" validate:"min=1,max=8"`
	PauseEvery          int           `name:"pause_every" validate:"gte=0"`
	PauseFor            time.Duration `name:"pause_for" validate:"gte=0"`
	RatePerMinute       int           `name:"rate_per_minute" validate:"gte=0"`
	HostRatePerMinute   int           `name:"host_rate_per_minute" validate:"gte=0"`
	SecondaryKey        bool          `name:"secondary_key"`

	ClassOffice SourceSettings `name:"sources.classoffice"`
	FVLB        SourceSettings `name:"sources.fvlb"`

	ProxyURL string `name:"proxy.url" validate:"omitempty,url"`

	RatingCodes domain.RatingCodeMap `validate:"-"`

	LogLevel  string `name:"log.level" validate:"oneof=debug info warn error"`
	LogFormat string `name:"log.format" validate:"oneof=console json"`
}

// EnabledSources 返回被启用的 source 名（顺序无意义，回退顺序由 provider.Registry 决定）。
func (c EffectiveConfig) EnabledSources() []string {
	var out []string
	if c.ClassOffice.Enabled {
		out = append(out, "classoffice")
	}
	if c.FVLB.Enabled {
		out = append(out, "fvlb")
	}
	return out
}

// Error 是配置阶段的结构化错误（带 error_code）。
type Error struct {
	Code string
	Path string
	Err  error
}

func (e *Error) Error() string {
	switch e.Code {
	case ErrCodeNotFound:
		return fmt.Sprintf("%s：未找到配置文件 %q", e.Code, e.Path)
	case ErrCodeInvalid:
		if e.Err != nil {
			return fmt.Sprintf("%s：配置文件 %q 无效：%v", e.Code, e.Path, e.Err)
		}
		return fmt.Sprintf("%s：配置文件 %q 无效", e.Code, e.Path)
	default:
		if e.Err != nil {
			return fmt.Sprintf("%s：%v", e.Code, e.Err)
		}
		return e.Code
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Code 从 error 中提取 error_code；若不是 *Error 则返回空串。
func Code(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// LoadDotEnv 读取 dir/.env（不存在不算错误）；已存在的环境变量不会被覆盖。
func LoadDotEnv(dir string) error {
	p := filepath.Join(dir, ".env")
	if _, err := os.Stat(p); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return godotenv.Load(p)
}

// LoadEffective 发现并读取配置文件，然后与 CLI 参数合并为最终配置。
//
// 发现规则（固定）：
// 1) CLI 提供 --config：必须存在
// 2) 否则依次尝试 <输入文件所在目录>/ratingscout.toml、<cwd>/ratingscout.toml（均可选）
//
// 覆盖优先级（固定）：
// - strategy / max_retries / concurrency / sources.fvlb.enabled：CLI > config > 默认
// - proxy.url：环境变量 RATINGSCOUT_PROXY_URL > config
// - 其他字段：仅由 config 控制（CLI 不暴露）
func LoadEffective(cwd string, cli CLIArgs) (EffectiveConfig, error) {
	cwdAbs, err := filepath.Abs(cwd)
	if err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cwd, Err: err}
	}

	var (
		cfgPath string
		fc      FileConfig
	)
	if strings.TrimSpace(cli.ConfigPath) != "" {
		cfgPath = absCleanFrom(cwdAbs, cli.ConfigPath)
		var exists bool
		fc, exists, err = readFileConfig(cfgPath)
		if err != nil {
			return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: err}
		}
		if !exists {
			return EffectiveConfig{}, &Error{Code: ErrCodeNotFound, Path: cfgPath, Err: os.ErrNotExist}
		}
	} else {
		var candidates []string
		if strings.TrimSpace(cli.Input) != "" {
			candidates = append(candidates, filepath.Join(filepath.Dir(absCleanFrom(cwdAbs, cli.Input)), FileName))
		}
		candidates = append(candidates, filepath.Join(cwdAbs, FileName))
		for _, p := range candidates {
			c, exists, rerr := readFileConfig(p)
			if rerr != nil {
				return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: p, Err: rerr}
			}
			if exists {
				cfgPath, fc = p, c
				break
			}
		}
	}

	eff, err := merge(cwdAbs, cli, fc, cfgPath)
	if err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: err}
	}
	return eff, nil
}

func merge(cwdAbs string, cli CLIArgs, fc FileConfig, cfgPath string) (EffectiveConfig, error) {
	eff := EffectiveConfig{
		ConfigPath:          cfgPath,
		Strategy:            DefaultStrategy,
		SimilarityThreshold: DefaultSimilarityThreshold,
		TokenThreshold:      DefaultTokenThreshold,
		MaxRetries:          DefaultMaxRetries,
		RetryBackoff:        DefaultRetryBackoff,
		FetchTimeout:        DefaultFetchTimeout,
		Concurrency:         DefaultConcurrency,
		PauseEvery:          DefaultPauseEvery,
		PauseFor:            DefaultPauseFor,
		RatePerMinute:       fc.RatePerMinute,
		HostRatePerMinute:   fc.HostRatePerMinute,
		SecondaryKey:        true,
		ClassOffice:         SourceSettings{Enabled: true, BaseURL: strings.TrimSpace(fc.Sources.ClassOffice.BaseURL)},
		FVLB:                SourceSettings{Enabled: true, BaseURL: strings.TrimSpace(fc.Sources.FVLB.BaseURL)},
		ProxyURL:            strings.TrimSpace(fc.Proxy.URL),
		LogLevel:            DefaultLogLevel,
		LogFormat:           DefaultLogFormat,
	}
	if strings.TrimSpace(cli.Input) != "" {
		eff.Input = absCleanFrom(cwdAbs, cli.Input)
	}

	// strategy：CLI > config > 默认
	if cli.StrategySet {
		eff.Strategy = strings.ToLower(strings.TrimSpace(cli.Strategy))
	} else if s := strings.TrimSpace(fc.Strategy); s != "" {
		eff.Strategy = strings.ToLower(s)
	}

	// max_retries：CLI > config > 默认
	if cli.RetriesSet {
		eff.MaxRetries = cli.Retries
	} else if fc.MaxRetries != nil {
		eff.MaxRetries = *fc.MaxRetries
	}

	// concurrency：CLI > config > 默认
	if cli.ConcurrencySet {
		eff.Concurrency = cli.Concurrency
	} else if fc.Concurrency != nil {
		eff.Concurrency = *fc.Concurrency
	}

	// sources.fvlb.enabled：CLI --source-b > config > 默认 true
	if fc.Sources.ClassOffice.Enabled != nil {
		eff.ClassOffice.Enabled = *fc.Sources.ClassOffice.Enabled
	}
	if cli.SourceBSet {
		eff.FVLB.Enabled = cli.SourceB
	} else if fc.Sources.FVLB.Enabled != nil {
		eff.FVLB.Enabled = *fc.Sources.FVLB.Enabled
	}

	if fc.SimilarityThreshold != nil {
		eff.SimilarityThreshold = *fc.SimilarityThreshold
	}
	if fc.TokenThreshold != nil {
		eff.TokenThreshold = *fc.TokenThreshold
	}
	if fc.PauseEvery != nil {
		eff.PauseEvery = *fc.PauseEvery
	}
	if fc.SecondaryKey != nil {
		eff.SecondaryKey = *fc.SecondaryKey
	}

	for _, d := range []struct {
		key string
		raw string
		dst *time.Duration
	}{
		{"retry_backoff", fc.RetryBackoff, &eff.RetryBackoff},
		{"fetch_timeout", fc.FetchTimeout, &eff.FetchTimeout},
		{"pause_for", fc.PauseFor, &eff.PauseFor},
	} {
		if strings.TrimSpace(d.raw) == "" {
			continue
		}
		v, err := time.ParseDuration(strings.TrimSpace(d.raw))
		if err != nil {
			return EffectiveConfig{}, fmt.Errorf("%s 无效：%w", d.key, err)
		}
		*d.dst = v
	}

	if v := strings.TrimSpace(os.Getenv(EnvProxyURL)); v != "" {
		eff.ProxyURL = v
	}
	if l := strings.TrimSpace(fc.Log.Level); l != "" {
		eff.LogLevel = strings.ToLower(l)
	}
	if f := strings.TrimSpace(fc.Log.Format); f != "" {
		eff.LogFormat = strings.ToLower(f)
	}

	eff.RatingCodes = domain.DefaultRatingCodes().WithOverrides(fc.RatingCodes, fc.LabelCodes)

	if err := validate.Struct(eff); err != nil {
		return EffectiveConfig{}, friendly(err)
	}
	if !eff.ClassOffice.Enabled && !eff.FVLB.Enabled {
		return EffectiveConfig{}, errors.New("sources.classoffice 与 sources.fvlb 不能同时禁用")
	}
	return eff, nil
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// 错误信息使用配置键名（name tag）。
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		if n := fld.Tag.Get("name"); n != "" {
			return n
		}
		return fld.Name
	})
	return v
}

// friendly 把 validator 的错误转换为按配置键描述的单行错误。
func friendly(err error) error {
	var ves validator.ValidationErrors
	if !errors.As(err, &ves) {
		return err
	}
	msgs := make([]string, 0, len(ves))
	for _, fe := range ves {
		key := fe.Namespace()
		if i := strings.Index(key, "."); i >= 0 {
			key = key[i+1:]
		}
		switch fe.Tag() {
		case "oneof":
			msgs = append(msgs, fmt.Sprintf("%s 只能是 [%s]，实际是 %v", key, fe.Param(), fe.Value()))
		case "url", "http_url":
			msgs = append(msgs, fmt.Sprintf("%s 不是合法 URL：%v", key, fe.Value()))
		default:
			msgs = append(msgs, fmt.Sprintf("%s 超出范围（%s=%s）：%v", key, fe.Tag(), fe.Param(), fe.Value()))
		}
	}
	return errors.New(strings.Join(msgs, "；"))
}

// absCleanFrom 以 base 为基准，把 p 变为 clean + absolute。
// - p 若已是绝对路径：直接 Clean
// - p 若是相对路径：Join(base, p) 后 Clean
func absCleanFrom(base, p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return ""
	}
	p = filepath.Clean(p)
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Clean(filepath.Join(base, p))
}

// readFileConfig 读取并解析 TOML 配置文件（未知键报错）。
// 返回值 exists 表示该文件是否存在（不存在不算错误）。
func readFileConfig(path string) (fc FileConfig, exists bool, err error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return FileConfig{}, false, nil
		}
		return FileConfig{}, false, err
	}
	defer f.Close()

	dec := toml.NewDecoder(f)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&fc); err != nil {
		return FileConfig{}, true, err
	}
	return fc, true, nil
}

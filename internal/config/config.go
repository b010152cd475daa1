package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type AppConfig struct {
	Host      string `mapstructure:"host"`
	Port      int    `mapstructure:"port"`
	LogLevel  string `mapstructure:"log_level"`
	StaticDir string `mapstructure:"static_dir"`

	// 每局游戏的角色数量，设计值为 6
	RosterSize         int           `mapstructure:"roster_size"`
	SessionIdleTimeout time.Duration `mapstructure:"session_idle_timeout"`

	Oracle OracleConfig `mapstructure:"oracle"`
	Pacing PacingConfig `mapstructure:"pacing"`
}

// OracleConfig 描述如何连接叙事生成服务（LLM）
type OracleConfig struct {
	Provider string        `mapstructure:"provider"`
	APIKey   string        `mapstructure:"api_key"`
	Model    string        `mapstructure:"model"`
	BaseURL  string        `mapstructure:"base_url"`
	Timeout  time.Duration `mapstructure:"timeout"`
	Language string        `mapstructure:"language"`
}

// ProviderConfig 转换为 llm.Provider 初始化所需的键值配置
func (oc OracleConfig) ProviderConfig() map[string]string {
	return map[string]string{
		"api_key":       oc.APIKey,
		"default_model": oc.Model,
		"base_url":      oc.BaseURL,
	}
}

// PacingConfig 是各阶段之间的节奏延迟
type PacingConfig struct {
	SetupDwell   time.Duration `mapstructure:"setup_dwell"`
	DayIntro     time.Duration `mapstructure:"day_intro"`
	VoteReveal   time.Duration `mapstructure:"vote_reveal"`
	VoteFarewell time.Duration `mapstructure:"vote_farewell"`
	VoteResult   time.Duration `mapstructure:"vote_result"`
	Night        time.Duration `mapstructure:"night"`
}

const envPrefix = "OFFICE_VILLAIN"

var cfg *AppConfig

func GetConfig() *AppConfig {
	if cfg == nil {
		cfg = InitConfig()
	}

	return cfg
}

func InitConfig() *AppConfig {
	config, err := Load(".")
	if err != nil {
		panic(fmt.Errorf("加载配置失败: %w", err))
	}

	cfg = config

	return config
}

// Load 从 dir 下的 app_config.json 读取配置，环境变量优先，配置文件可以不存在
func Load(dir string) (*AppConfig, error) {
	// .env 是可选的，只用来放置密钥
	_ = godotenv.Load()

	v := viper.New()

	v.SetConfigName("app_config")
	v.SetConfigType("json")
	v.AddConfigPath(dir)

	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
	}

	var config AppConfig

	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	// 兼容常见的密钥变量名
	if config.Oracle.APIKey == "" {
		config.Oracle.APIKey = v.GetString("gemini_api_key")
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("host", "0.0.0.0")
	v.SetDefault("port", 8080)
	v.SetDefault("log_level", "info")
	v.SetDefault("static_dir", "./office-villain-fe")
	v.SetDefault("roster_size", 6)
	v.SetDefault("session_idle_timeout", 30*time.Minute)

	v.SetDefault("oracle.provider", "google")
	v.SetDefault("oracle.api_key", "")
	v.SetDefault("oracle.model", "gemini-2.5-flash")
	v.SetDefault("oracle.base_url", "")
	v.SetDefault("oracle.timeout", 30*time.Second)
	v.SetDefault("oracle.language", "English")

	v.SetDefault("pacing.setup_dwell", 2*time.Second)
	v.SetDefault("pacing.day_intro", 2*time.Second)
	v.SetDefault("pacing.vote_reveal", 3*time.Second)
	v.SetDefault("pacing.vote_farewell", 3*time.Second)
	v.SetDefault("pacing.vote_result", 3*time.Second)
	v.SetDefault("pacing.night", 4*time.Second)

	// GEMINI_API_KEY 不带前缀
	_ = v.BindEnv("gemini_api_key", "GEMINI_API_KEY")
}

// Validate 检查启动所必需的配置，缺失时进程不应继续启动
func (c *AppConfig) Validate() error {
	if c.Oracle.Provider == "" {
		return fmt.Errorf("未配置 oracle.provider")
	}

	if c.Oracle.APIKey == "" {
		return fmt.Errorf("未配置 oracle.api_key（或环境变量 %s_ORACLE_API_KEY / GEMINI_API_KEY）", envPrefix)
	}

	if c.RosterSize < 3 {
		return fmt.Errorf("roster_size 至少为 3，当前为 %d", c.RosterSize)
	}

	return nil
}

package tracker_config

import (
	"time"

	pginfra "github.com/NordCoder/Pricewatch/internal/repository/postgres"
)

type AppCfg struct {
	Name    string `mapstructure:"name" validate:"required"`
	Env     string `mapstructure:"env"`
	Version string `mapstructure:"version"`
}

type LogFileCfg struct {
	Path       string `mapstructure:"path"`
	MaxSizeMB  int    `mapstructure:"max_size_mb" validate:"gte=0"`
	MaxBackups int    `mapstructure:"max_backups" validate:"gte=0"`
	MaxAgeDays int    `mapstructure:"max_age_days" validate:"gte=0"`
	Compress   bool   `mapstructure:"compress"`
}

type LogCfg struct {
	Level  string     `mapstructure:"level" validate:"oneof=debug info warn error"`
	Pretty bool       `mapstructure:"pretty"`
	File   LogFileCfg `mapstructure:"file"`
}

type OTELCfg struct {
	Enable      bool    `mapstructure:"enable"`
	Endpoint    string  `mapstructure:"otlp_endpoint" validate:"required_if=Enable true"`
	ServiceName string  `mapstructure:"service_name"`
	SampleRatio float64 `mapstructure:"sample_ratio" validate:"gte=0,lte=1"`
}

type StorageCfg struct {
	Driver string `mapstructure:"driver" validate:"oneof=postgres memory"`
}

type KafkaCfg struct {
	Enable         bool          `mapstructure:"enable"`
	Brokers        []string      `mapstructure:"brokers" validate:"required_if=Enable true"`
	AlertsTopic    string        `mapstructure:"alerts_topic" validate:"required_if=Enable true"`
	ChecksTopic    string        `mapstructure:"checks_topic" validate:"required_if=Enable true"`
	ChecksGroup    string        `mapstructure:"checks_group"`
	CreateTopics   bool          `mapstructure:"create_topics"`
	Partitions     int           `mapstructure:"partitions" validate:"gte=0"`
	Replication    int           `mapstructure:"replication" validate:"gte=0"`
	BatchTimeout   time.Duration `mapstructure:"batch_timeout"`
	HandlerTimeout time.Duration `mapstructure:"handler_timeout"`
}

// Topics lists every topic the tracker reads or writes.
func (k KafkaCfg) Topics() []string {
	return []string{k.AlertsTopic, k.ChecksTopic}
}

type OutboxCfg struct {
	Tick          time.Duration `mapstructure:"tick" validate:"gt=0"`
	Batch         int           `mapstructure:"batch" validate:"gt=0"`
	InProgressTTL time.Duration `mapstructure:"in_progress_ttl" validate:"gt=0"`
}

type SchedCfg struct {
	Interval      time.Duration `mapstructure:"interval" validate:"gt=0"`
	BatchSize     int           `mapstructure:"batch_size" validate:"gt=0"`
	Concurrency   int           `mapstructure:"concurrency" validate:"gt=0"`
	BatchDelay    time.Duration `mapstructure:"batch_delay" validate:"gte=0"`
	MaxDuePerTier int           `mapstructure:"max_due_per_tier" validate:"gt=0"`
	AutoStart     bool          `mapstructure:"auto_start"`
	StopTimeout   time.Duration `mapstructure:"stop_timeout" validate:"gt=0"`
}

type AlertsCfg struct {
	MaxAttempts  int           `mapstructure:"max_attempts" validate:"gt=0"`
	TTL          time.Duration `mapstructure:"ttl" validate:"gt=0"`
	RetryBackoff time.Duration `mapstructure:"retry_backoff" validate:"gte=0"`
}

type SweeperCfg struct {
	Interval time.Duration `mapstructure:"interval" validate:"gt=0"`
	Batch    int           `mapstructure:"batch" validate:"gt=0"`
}

// SelectorCfg names the CSS selector holding the price on one retailer domain.
type SelectorCfg struct {
	Domain string `mapstructure:"domain" validate:"required"`
	CSS    string `mapstructure:"css" validate:"required"`
}

type FetchCfg struct {
	Timeout   time.Duration `mapstructure:"timeout" validate:"gt=0"`
	UserAgent string        `mapstructure:"user_agent"`
	Selectors []SelectorCfg `mapstructure:"selectors" validate:"dive"`

	// Fake swaps the HTTP fetcher for the deterministic one.
	Fake bool `mapstructure:"fake"`
}

type SMTPCfg struct {
	Host       string `mapstructure:"host"`
	Port       int    `mapstructure:"port" validate:"gte=0,lte=65535"`
	From       string `mapstructure:"from" validate:"omitempty,email"`
	User       string `mapstructure:"user"`
	Password   string `mapstructure:"password"`
	UseTLS     bool   `mapstructure:"use_tls"`
	SubjPrefix string `mapstructure:"subj_prefix"`
}

type TelegramCfg struct {
	Token string `mapstructure:"token"`
}

type AdminCfg struct {
	GRPCAddr  string `mapstructure:"grpc_addr" validate:"required"`
	HTTPAddr  string `mapstructure:"http_addr" validate:"required"`
	JWTSecret string `mapstructure:"jwt_secret"`
}

type Server struct {
	MetricsAddr string `mapstructure:"metrics_addr" validate:"required"`
}

type Config struct {
	App      AppCfg         `mapstructure:"app"`
	Log      LogCfg         `mapstructure:"log"`
	OTEL     OTELCfg        `mapstructure:"otel"`
	DB       pginfra.Config `mapstructure:"db"`
	Storage  StorageCfg     `mapstructure:"storage"`
	Kafka    KafkaCfg       `mapstructure:"kafka"`
	Outbox   OutboxCfg      `mapstructure:"outbox"`
	Sched    SchedCfg       `mapstructure:"sched"`
	Alerts   AlertsCfg      `mapstructure:"alerts"`
	Sweeper  SweeperCfg     `mapstructure:"sweeper"`
	Fetch    FetchCfg       `mapstructure:"fetch"`
	SMTP     SMTPCfg        `mapstructure:"smtp"`
	Telegram TelegramCfg    `mapstructure:"telegram"`
	Admin    AdminCfg       `mapstructure:"admin"`
	Server   Server         `mapstructure:"server"`
}

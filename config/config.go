package config

import (
	"reflect"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config 应用配置，按模块拆分
type Config struct {
	// Server 权威服务端
	Server ServerConfig `mapstructure:"server"`
	// Log 日志
	Log LogConfig `mapstructure:"log"`
	// Game 模拟参数
	Game GameConfig `mapstructure:"game"`
	// Client 无头客户端
	Client ClientConfig `mapstructure:"client"`
}

type ServerConfig struct {
	// Addr 监听地址
	Addr string `mapstructure:"addr" default:"127.0.0.1:1155"`
	// DefaultRoom 未指定 room 参数时进入的房间
	DefaultRoom string `mapstructure:"default_room" default:"room-1"`
	// AllowedOrigins 逗号分隔，"*" 表示全部允许
	AllowedOrigins string `mapstructure:"allowed_origins" default:"*"`
	// SendQueueSize 每个连接的下行队列长度，满则丢弃
	SendQueueSize int `mapstructure:"send_queue_size" default:"256"`
	// MessagesPerSecond / MessageBurst 每个连接的上行限流
	MessagesPerSecond float64 `mapstructure:"messages_per_second" default:"120"`
	MessageBurst      int     `mapstructure:"message_burst" default:"240"`
}

type LogConfig struct {
	Level string `mapstructure:"level" default:"info"`
	// Format console 或 json
	Format string `mapstructure:"format" default:"console"`
	// File 日志文件（滚动），为空则不写文件
	File string `mapstructure:"file" default:"app.log"`
	// Console 同时输出到 stderr
	Console bool `mapstructure:"console" default:"true"`
}

type GameConfig struct {
	TicksPerSecond  float64 `mapstructure:"ticks_per_second" default:"20"`
	MaxCatchUpTicks int     `mapstructure:"max_catch_up_ticks" default:"100"`
}

type ClientConfig struct {
	URL string `mapstructure:"url" default:"ws://127.0.0.1:1155/ws"`
	FPS int    `mapstructure:"fps" default:"60"`
}

// Origins 解析 AllowedOrigins
func (c ServerConfig) Origins() []string {
	var out []string
	for _, o := range strings.Split(c.AllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

// Load 读取 .env（可选）与环境变量，例如 SERVER_ADDR -> server.addr
func Load(path string) (*Config, error) {
	envPath := path + "/.env"
	if path == "." || path == "" {
		envPath = ".env"
	}
	// 文件不存在时忽略（生产环境直接用环境变量）
	_ = godotenv.Overload(envPath)

	v := viper.New()
	bindValues(v, Config{}, "")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// bindValues 递归读取 mapstructure 与 default 标签，为每个键注册默认值
func bindValues(v *viper.Viper, iface any, prefix string) {
	t := reflect.TypeOf(iface)
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		tag := field.Tag.Get("mapstructure")
		if tag == "" {
			continue
		}
		key := tag
		if prefix != "" {
			key = prefix + "." + tag
		}
		if field.Type.Kind() == reflect.Struct {
			bindValues(v, reflect.New(field.Type).Elem().Interface(), key)
			continue
		}
		// 即使为空也要设置，AutomaticEnv 才能识别该键
		v.SetDefault(key, field.Tag.Get("default"))
	}
}

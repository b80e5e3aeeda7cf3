package config

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/model"

	"github.com/zhouzirui/folio-assist/backend/internal/widget"
)

const (
	ProviderOpenAI = "openai"
	ProviderArk    = "ark"

	DefaultEndpoint = "https://api.openai.com/v1/chat/completions"
	DefaultModel    = "gpt-3.5-turbo"
)

// Config 聚合整个服务的配置项。
type Config struct {
	Server   ServerConfig
	Widget   WidgetConfig
	Ark      ArkConfig
	Settings SettingsConfig
	Log      LogConfig
}

// Load 从配置文件（可选）和环境变量加载配置，环境变量优先。
func Load(path string) (*Config, error) {
	file, err := readFile(path)
	if err != nil {
		return nil, err
	}

	server, err := loadServerConfig(file.Server)
	if err != nil {
		return nil, err
	}

	widget, err := loadWidgetConfig(file.Completion)
	if err != nil {
		return nil, err
	}

	settings, err := loadSettingsConfig(file.Widget)
	if err != nil {
		return nil, err
	}

	return &Config{
		Server:   server,
		Widget:   widget,
		Ark:      loadArkConfig(),
		Settings: settings,
		Log:      LogConfig{Level: getEnvOrDefault("LOG_LEVEL", firstNonEmpty(file.Log.Level, "info")), Pretty: file.Log.Pretty},
	}, nil
}

// ServerConfig 描述 HTTP 服务配置。
type ServerConfig struct {
	Addr           string
	AllowedOrigins []string
}

// loadServerConfig 解析服务器监听地址。
func loadServerConfig(file fileServer) (ServerConfig, error) {
	port := getEnvOrDefault("PORT", firstNonEmpty(file.Port, "8080"))

	origins := file.AllowedOrigins
	if raw := strings.TrimSpace(os.Getenv("CORS_ALLOWED_ORIGINS")); raw != "" {
		origins = splitList(raw)
	}

	if strings.Contains(port, ":") {
		// 允许用户直接传入 ":8080" 或 "127.0.0.1:8080"。
		return ServerConfig{Addr: port, AllowedOrigins: origins}, nil
	}

	if strings.Contains(port, " ") {
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	}

	return ServerConfig{Addr: ":" + port, AllowedOrigins: origins}, nil
}

// WidgetConfig is the completion collaborator the chat widget talks to. It is
// immutable once loaded.
type WidgetConfig struct {
	Provider   string
	Endpoint   string
	Model      string
	Credential Secret
	Timeout    time.Duration
}

// Enabled reports whether a credential is available for the selected provider.
func (c WidgetConfig) Enabled() bool {
	return c.Endpoint != "" && c.Model != "" && !c.Credential.Empty()
}

func loadWidgetConfig(file fileCompletion) (WidgetConfig, error) {
	provider := strings.ToLower(getEnvOrDefault("COMPLETION_PROVIDER", firstNonEmpty(file.Provider, ProviderOpenAI)))
	if provider != ProviderOpenAI && provider != ProviderArk {
		return WidgetConfig{}, fmt.Errorf("invalid COMPLETION_PROVIDER value %q", provider)
	}

	endpoint := getEnvOrDefault("COMPLETION_ENDPOINT", firstNonEmpty(file.Endpoint, DefaultEndpoint))
	parsed, err := url.Parse(endpoint)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return WidgetConfig{}, fmt.Errorf("invalid COMPLETION_ENDPOINT value %q", endpoint)
	}

	timeoutSeconds := 60
	if file.TimeoutSeconds > 0 {
		timeoutSeconds = file.TimeoutSeconds
	}
	override, err := parseOptionalIntEnv("COMPLETION_TIMEOUT")
	if err != nil {
		return WidgetConfig{}, err
	}
	if override != nil {
		timeoutSeconds = *override
	}
	if timeoutSeconds < 0 {
		return WidgetConfig{}, fmt.Errorf("invalid COMPLETION_TIMEOUT value %d", timeoutSeconds)
	}

	return WidgetConfig{
		Provider:   provider,
		Endpoint:   endpoint,
		Model:      getEnvOrDefault("COMPLETION_MODEL", firstNonEmpty(file.Model, DefaultModel)),
		Credential: Secret(strings.TrimSpace(os.Getenv("COMPLETION_API_KEY"))),
		Timeout:    time.Duration(timeoutSeconds) * time.Second,
	}, nil
}

// ArkConfig 描述火山方舟模型配置，仅在 COMPLETION_PROVIDER=ark 时使用。
type ArkConfig struct {
	APIKey    Secret
	AccessKey string
	SecretKey Secret
	Model     string
	BaseURL   string
	Region    string
}

// Enabled 表示是否提供了必需的密钥。
func (c ArkConfig) Enabled() bool {
	return c.Model != "" && (!c.APIKey.Empty() || (c.AccessKey != "" && !c.SecretKey.Empty()))
}

// NewChatModel 使用配置创建一个模型实例。
func (c ArkConfig) NewChatModel(ctx context.Context) (model.BaseChatModel, error) {
	if !c.Enabled() {
		return nil, fmt.Errorf("Ark 凭证或模型配置缺失，至少提供 ARK_API_KEY + ARK_MODEL 或 AK/SK 组合")
	}

	return ark.NewChatModel(ctx, &ark.ChatModelConfig{
		BaseURL:   c.BaseURL,
		Region:    c.Region,
		APIKey:    c.APIKey.Reveal(),
		AccessKey: c.AccessKey,
		SecretKey: c.SecretKey.Reveal(),
		Model:     c.Model,
	})
}

func loadArkConfig() ArkConfig {
	return ArkConfig{
		APIKey:    Secret(strings.TrimSpace(os.Getenv("ARK_API_KEY"))),
		AccessKey: strings.TrimSpace(os.Getenv("ARK_ACCESS_KEY")),
		SecretKey: Secret(strings.TrimSpace(os.Getenv("ARK_SECRET_KEY"))),
		Model:     getEnvOrDefault("ARK_MODEL", strings.TrimSpace(os.Getenv("Model"))),
		BaseURL:   getEnvOrDefault("ARK_BASE_URL", "https://ark.cn-beijing.volces.com/api/v3"),
		Region:    getEnvOrDefault("ARK_REGION", "cn-beijing"),
	}
}

// SettingsConfig 描述聊天组件的交互参数。
type SettingsConfig struct {
	ThinkingDelay   time.Duration
	PlaceholderText string
	FallbackText    string
	SubmitKey       string
	DesktopMinWidth int
	InputInitHeight int
}

func loadSettingsConfig(file fileWidget) (SettingsConfig, error) {
	delayMS := 600
	if file.ThinkingDelayMS != nil {
		delayMS = *file.ThinkingDelayMS
	}
	if override, err := parseOptionalIntEnv("WIDGET_THINKING_DELAY_MS"); err != nil {
		return SettingsConfig{}, err
	} else if override != nil {
		delayMS = *override
	}
	if delayMS < 0 {
		delayMS = 0
	}

	minWidth := 800
	if file.DesktopMinWidth > 0 {
		minWidth = file.DesktopMinWidth
	}
	if override, err := parseOptionalIntEnv("WIDGET_DESKTOP_MIN_WIDTH"); err != nil {
		return SettingsConfig{}, err
	} else if override != nil {
		minWidth = *override
	}

	initHeight := 55
	if file.InputInitHeight > 0 {
		initHeight = file.InputInitHeight
	}
	if override, err := parseOptionalIntEnv("WIDGET_INPUT_HEIGHT"); err != nil {
		return SettingsConfig{}, err
	} else if override != nil {
		initHeight = *override
	}

	return SettingsConfig{
		ThinkingDelay:   time.Duration(delayMS) * time.Millisecond,
		PlaceholderText: getEnvOrDefault("WIDGET_PLACEHOLDER", firstNonEmpty(file.PlaceholderText, "Thinking...")),
		FallbackText:    getEnvOrDefault("WIDGET_FALLBACK", firstNonEmpty(file.FallbackText, "SORRY!,We are not available right now. Please try again.")),
		SubmitKey:       firstNonEmpty(file.SubmitKey, "Enter"),
		DesktopMinWidth: minWidth,
		InputInitHeight: initHeight,
	}, nil
}

// WidgetSettings converts the loaded values into widget settings.
func (c SettingsConfig) WidgetSettings() widget.Settings {
	return widget.Settings{
		ThinkingDelay:   c.ThinkingDelay,
		PlaceholderText: c.PlaceholderText,
		FallbackText:    c.FallbackText,
		SubmitKey:       c.SubmitKey,
		DesktopMinWidth: c.DesktopMinWidth,
		InputInitHeight: c.InputInitHeight,
	}
}

// LogConfig 描述日志输出。
type LogConfig struct {
	Level  string
	Pretty bool
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			return trimmed
		}
	}
	return ""
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func parseOptionalIntEnv(key string) (*int, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.Atoi(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}

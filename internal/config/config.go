package config

import (
	"time"

	"ap-ppt-video/internal/domain"
)

const (
	DefaultResolution       = domain.Resolution2K
	DefaultBucket           = "5-10"
	DefaultStyleID          = "gradient-glass"
	DefaultImageModel       = "gemini-3-pro-image-preview"
	DefaultVisionModel      = "gemini-3-flash-preview"
	DefaultKlingModel       = "kling-v2-6"
	DefaultKlingMode        = "pro"
	DefaultAspectRatio      = "16:9"
	DefaultHoldDuration     = 2 * time.Second
	DefaultTransitionLength = 5 * time.Second

	// DefaultImageConcurrency 画像側のワーカープール上限。
	DefaultImageConcurrency = 4
	// DefaultVideoConcurrency Kling API の同時実行制限 (3) に合わせた既定値。
	DefaultVideoConcurrency = 3
	// DefaultImageMaxAttempts transient エラーに対する画像ジョブの試行上限。
	DefaultImageMaxAttempts = 3
	// DefaultVideoMaxAttempts 動画生成は高コストなため画像より低い上限にします。
	DefaultVideoMaxAttempts = 2

	DefaultVideoPollInterval = 5 * time.Second
	// DefaultVideoJobTimeout 動画1本あたりの生成完了待ちタイムアウト。
	DefaultVideoJobTimeout = 5 * time.Minute
	DefaultHTTPTimeout     = 60 * time.Second
	DefaultComposeTimeout  = 5 * time.Minute

	DefaultOutputFPS        = 24
	DefaultOutputResolution = "1920x1080"

	// SignedURLExpiration 生成された動画を確認する時間を考慮した有効期限
	SignedURLExpiration = 1 * time.Hour
)

// Config は環境変数から読み込まれたアプリケーションの全設定を保持します。
type Config struct {
	ServiceURL      string
	Port            string
	ShutdownTimeout time.Duration

	// Generation defaults
	OutputBaseDir string
	StylesDir     string
	StyleID       string
	Bucket        string
	Resolution    domain.Resolution

	// Providers
	GeminiAPIKey      string
	GeminiImageModel  string
	GeminiVisionModel string
	KlingAccessKey    string
	KlingSecretKey    string
	KlingModel        string
	KlingMode         string

	// Stage tuning
	ImageConcurrency  int
	VideoConcurrency  int
	ImageMaxAttempts  int
	VideoMaxAttempts  int
	VideoPollInterval time.Duration
	VideoJobTimeout   time.Duration

	// Composition
	FFmpegPath         string
	HoldDuration       time.Duration
	TransitionDuration time.Duration
	OutputFPS          int
	OutputResolution   string

	// Async dispatch (Cloud Tasks)。ProjectID が空の場合はプロセス内実行に
	// フォールバックします。
	ProjectID           string
	LocationID          string
	QueueID             string
	TaskAudienceURL     string
	ServiceAccountEmail string

	// Notification / mirroring
	SlackWebhookURL string
	GCSOutputBucket string
}

// LoadConfig は環境変数から設定を読み込み、Config 構造体を生成します。
func LoadConfig() *Config {
	serviceURL := getEnv("SERVICE_URL", "http://localhost:8080")

	return &Config{
		ServiceURL:      serviceURL,
		Port:            getEnv("PORT", "8080"),
		ShutdownTimeout: 15 * time.Second,

		OutputBaseDir: getEnv("OUTPUT_BASE_DIR", "outputs"),
		StylesDir:     getEnv("STYLES_DIR", "styles"),
		StyleID:       getEnv("STYLE_ID", DefaultStyleID),
		Bucket:        getEnv("SLIDE_BUCKET", DefaultBucket),
		Resolution:    domain.Resolution(getEnv("RESOLUTION", string(DefaultResolution))),

		GeminiAPIKey:      getEnv("GEMINI_API_KEY", ""),
		GeminiImageModel:  getEnv("GEMINI_IMAGE_MODEL", DefaultImageModel),
		GeminiVisionModel: getEnv("GEMINI_VISION_MODEL", DefaultVisionModel),
		KlingAccessKey:    getEnv("KLING_ACCESS_KEY", ""),
		KlingSecretKey:    getEnv("KLING_SECRET_KEY", ""),
		KlingModel:        getEnv("KLING_MODEL", DefaultKlingModel),
		KlingMode:         getEnv("KLING_MODE", DefaultKlingMode),

		ImageConcurrency:  getEnvInt("IMAGE_CONCURRENCY", DefaultImageConcurrency),
		VideoConcurrency:  getEnvInt("VIDEO_CONCURRENCY", DefaultVideoConcurrency),
		ImageMaxAttempts:  getEnvInt("IMAGE_MAX_ATTEMPTS", DefaultImageMaxAttempts),
		VideoMaxAttempts:  getEnvInt("VIDEO_MAX_ATTEMPTS", DefaultVideoMaxAttempts),
		VideoPollInterval: getEnvDuration("VIDEO_POLL_INTERVAL", DefaultVideoPollInterval),
		VideoJobTimeout:   getEnvDuration("VIDEO_JOB_TIMEOUT", DefaultVideoJobTimeout),

		FFmpegPath:         getEnv("FFMPEG_PATH", "ffmpeg"),
		HoldDuration:       getEnvDuration("HOLD_DURATION", DefaultHoldDuration),
		TransitionDuration: getEnvDuration("TRANSITION_DURATION", DefaultTransitionLength),
		OutputFPS:          getEnvInt("OUTPUT_FPS", DefaultOutputFPS),
		OutputResolution:   getEnv("OUTPUT_VIDEO_RESOLUTION", DefaultOutputResolution),

		ProjectID:           getEnv("GCP_PROJECT_ID", ""),
		LocationID:          getEnv("GCP_LOCATION_ID", "asia-northeast1"),
		QueueID:             getEnv("CLOUD_TASKS_QUEUE_ID", "ppt-video-queue"),
		TaskAudienceURL:     getEnv("TASK_AUDIENCE_URL", serviceURL),
		ServiceAccountEmail: getEnv("SERVICE_ACCOUNT_EMAIL", ""),

		SlackWebhookURL: getEnv("SLACK_WEBHOOK_URL", ""),
		GCSOutputBucket: getEnv("GCS_OUTPUT_BUCKET", ""),
	}
}

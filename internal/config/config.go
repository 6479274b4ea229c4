package config

import (
	"os"
	"strconv"
	"strings"
)

type Config struct {
	HTTPAddr string

	Env    string // "dev" | "prod"
	DBPath string // e.g. "./data/lumenpass.db"

	// Server-held secrets, generated on first run if absent.
	TokenKeyPath string // HMAC key for QR payloads
	DataKeyPath  string // AES key for sealed visitor fields

	// Admin token: a bcrypt hash for prod, or a plain token for dev.
	AdminTokenHash string
	AdminToken     string

	DefaultTTLMinutes int
	MaxTTLMinutes     int
	QRImageSize       int

	// Credential archival
	ArchiveRetentionDays int // 0 = never archive
	ArchiveIntervalHours int
}

// devAdminToken is the dev-only fallback when no token is configured.
const devAdminToken = "admin123"

func FromEnv() Config {
	env := strings.ToLower(getenvDefault("LUMENPASS_ENV", "dev"))
	if env != "dev" && env != "prod" {
		// fail-soft: treat unknown as dev
		env = "dev"
	}

	adminToken := os.Getenv("LUMENPASS_ADMIN_TOKEN")
	adminTokenHash := os.Getenv("LUMENPASS_ADMIN_TOKEN_HASH")
	if adminToken == "" && adminTokenHash == "" && env == "dev" {
		adminToken = devAdminToken
	}

	return Config{
		HTTPAddr: getenvDefault("LUMENPASS_HTTP_ADDR", ":8080"),
		Env:      env,
		DBPath:   getenvDefault("LUMENPASS_DB_PATH", "./data/lumenpass.db"),

		TokenKeyPath: getenvDefault("LUMENPASS_TOKEN_KEY_PATH", "./data/.token.key"),
		DataKeyPath:  getenvDefault("LUMENPASS_DATA_KEY_PATH", "./data/.data.key"),

		AdminTokenHash: adminTokenHash,
		AdminToken:     adminToken,

		DefaultTTLMinutes: getenvInt("LUMENPASS_DEFAULT_TTL_MINUTES", 60),
		MaxTTLMinutes:     getenvInt("LUMENPASS_MAX_TTL_MINUTES", 1440),
		QRImageSize:       getenvInt("LUMENPASS_QR_IMAGE_SIZE", 256),

		ArchiveRetentionDays: getenvInt("LUMENPASS_ARCHIVE_RETENTION_DAYS", 30),
		ArchiveIntervalHours: getenvInt("LUMENPASS_ARCHIVE_INTERVAL_HOURS", 6),
	}
}

// UsingDevAdminToken reports whether the insecure dev fallback token is
// in effect, so startup can warn loudly.
func (c Config) UsingDevAdminToken() bool {
	return c.AdminTokenHash == "" && c.AdminToken == devAdminToken
}

func getenvDefault(key, def string) string {
	v := os.Getenv(key)
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}

func getenvInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def
	}
	return n
}

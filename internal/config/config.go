package config

import (
	"encoding/base64"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"github.com/example/court-booker/internal/domain/booking"
)

// Config carries everything a single booking run needs. Values come from
// the environment, optionally seeded from a .env file (ENV_FILE or ./.env).
type Config struct {
	BaseURL  string
	Username string
	// Password is the plaintext site password. Empty when PasswordEnc is
	// set; the CLI decrypts it with CredEncKey before the run.
	Password    string
	PasswordEnc string
	CredEncKey  []byte

	Request booking.Request

	Headless bool
	LogLevel string
	DebugDir string

	// SMS notification side-channel
	SMSEnabled  bool
	SMSPhone    string
	SMSRegion   string
	SMSSenderID string
}

func FromEnv() (Config, error) {
	// Best-effort: a missing .env is fine, the environment may be complete.
	if path := strings.TrimSpace(os.Getenv("ENV_FILE")); path != "" {
		_ = godotenv.Load(path)
	} else {
		_ = godotenv.Load()
	}

	cfg := Config{
		BaseURL:     strings.TrimSpace(os.Getenv("TENNIS_CLUB_URL")),
		Username:    strings.TrimSpace(os.Getenv("CLUB_USERNAME")),
		Password:    os.Getenv("CLUB_PASSWORD"),
		PasswordEnc: strings.TrimSpace(os.Getenv("CLUB_PASSWORD_ENC")),
		Headless:    boolEnv("HEADLESS", false),
		LogLevel:    getenv("LOG_LEVEL", "info"),
		DebugDir:    getenv("DEBUG_DIR", "debug"),
		SMSEnabled:  boolEnv("ENABLE_SMS_NOTIFICATIONS", true),
		SMSPhone:    strings.TrimSpace(os.Getenv("SMS_PHONE_NUMBER")),
		SMSRegion:   getenv("AWS_REGION", "us-west-2"),
		SMSSenderID: getenv("SMS_SENDER_ID", "TennisBot"),
	}

	if cfg.BaseURL == "" {
		return cfg, fmt.Errorf("TENNIS_CLUB_URL is required")
	}
	if cfg.Username == "" {
		return cfg, fmt.Errorf("CLUB_USERNAME is required")
	}
	if cfg.Password == "" && cfg.PasswordEnc == "" {
		return cfg, fmt.Errorf("CLUB_PASSWORD or CLUB_PASSWORD_ENC is required")
	}
	if cfg.PasswordEnc != "" {
		key := strings.TrimSpace(os.Getenv("CRED_ENC_KEY"))
		if key == "" {
			return cfg, fmt.Errorf("CRED_ENC_KEY is required when CLUB_PASSWORD_ENC is set (base64)")
		}
		var err error
		cfg.CredEncKey, err = decodeB64(key)
		if err != nil {
			return cfg, fmt.Errorf("CRED_ENC_KEY: %w", err)
		}
		if len(cfg.CredEncKey) != 32 {
			return cfg, fmt.Errorf("CRED_ENC_KEY must decode to 32 bytes (got %d)", len(cfg.CredEncKey))
		}
	}

	daysAhead, err := intEnv("BOOKING_DAYS_AHEAD", 7)
	if err != nil {
		return cfg, err
	}
	duration, err := intEnv("DURATION_MINUTES", 60)
	if err != nil {
		return cfg, err
	}

	courtsRaw := strings.TrimSpace(os.Getenv("PREFERRED_COURTS"))
	if courtsRaw == "" {
		courtsRaw = getenv("PREFERRED_COURT", "1")
	}

	cfg.Request = booking.Request{
		PreferredCourts: booking.ParseCourts(courtsRaw),
		PreferredTime:   getenv("PREFERRED_TIME", "18:00"),
		DaysAhead:       daysAhead,
		DurationMinutes: duration,
		Players:         playerNames(),
	}
	if err := cfg.Request.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func playerNames() []string {
	var out []string
	for _, key := range []string{"PLAYER1_NAME", "PLAYER2_NAME", "PLAYER3_NAME"} {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func getenv(k, def string) string {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def
	}
	return v
}

func boolEnv(k string, def bool) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(k)))
	if v == "" {
		return def
	}
	switch v {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

func intEnv(k string, def int) (int, error) {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", k, err)
	}
	return n, nil
}

func decodeB64(s string) ([]byte, error) {
	if b, err := base64.StdEncoding.DecodeString(s); err == nil {
		return b, nil
	}
	return base64.RawStdEncoding.DecodeString(s)
}

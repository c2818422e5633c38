package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	BotToken       string
	ProjectID      string
	AffiliateTag   string
	Channel        string
	AdminUsernames []string
	DebugPing      bool
	ScrapeInterval time.Duration
	RetentionDays  int
	MinDiscountPct int
	// SendRate is the global outbound message rate in messages per second.
	// Telegram caps bots at roughly 30/s across all chats.
	SendRate  float64
	SendBurst int
}

func Load() (*Config, error) {
	botToken := os.Getenv("TELEGRAM_BOT_TOKEN")
	if botToken == "" {
		return nil, fmt.Errorf("TELEGRAM_BOT_TOKEN environment variable is required but not set")
	}

	projectID := os.Getenv("GOOGLE_CLOUD_PROJECT")
	if projectID == "" {
		return nil, fmt.Errorf("GOOGLE_CLOUD_PROJECT environment variable is required but not set")
	}

	affiliateTag := os.Getenv("AMZN_AFFILIATE_TAG")
	if affiliateTag == "" {
		affiliateTag = "amznerrorsca-20"
	}

	channel := os.Getenv("TELEGRAM_CHANNEL")
	if channel == "" {
		channel = "AmznErrorsCA"
	}
	if !strings.HasPrefix(channel, "@") {
		channel = "@" + channel
	}

	var admins []string
	for _, name := range strings.Split(os.Getenv("ADMIN_USERNAMES"), ",") {
		name = strings.TrimSpace(strings.TrimPrefix(name, "@"))
		if name != "" {
			admins = append(admins, name)
		}
	}
	if len(admins) == 0 {
		slog.Warn("ADMIN_USERNAMES not set, manual scrape trigger is disabled")
	}

	debugPing := strings.EqualFold(os.Getenv("DEBUG_PING"), "true")

	scrapeIntervalStr := os.Getenv("SCRAPE_INTERVAL")
	if scrapeIntervalStr == "" {
		scrapeIntervalStr = "1h"
	}
	scrapeInterval, err := time.ParseDuration(scrapeIntervalStr)
	if err != nil {
		return nil, fmt.Errorf("invalid SCRAPE_INTERVAL %q: %w", scrapeIntervalStr, err)
	}

	retentionDays := 30
	if v := os.Getenv("RETENTION_DAYS"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed <= 0 {
			return nil, fmt.Errorf("invalid RETENTION_DAYS %q", v)
		}
		retentionDays = parsed
	}

	minDiscount := 90
	if v := os.Getenv("MIN_DISCOUNT_PCT"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 1 || parsed > 99 {
			return nil, fmt.Errorf("invalid MIN_DISCOUNT_PCT %q", v)
		}
		minDiscount = parsed
	}

	sendRate := 25.0
	if v := os.Getenv("SEND_RATE"); v != "" {
		parsed, err := strconv.ParseFloat(v, 64)
		if err != nil || parsed <= 0 {
			return nil, fmt.Errorf("invalid SEND_RATE %q", v)
		}
		sendRate = parsed
	}

	return &Config{
		BotToken:       botToken,
		ProjectID:      projectID,
		AffiliateTag:   affiliateTag,
		Channel:        channel,
		AdminUsernames: admins,
		DebugPing:      debugPing,
		ScrapeInterval: scrapeInterval,
		RetentionDays:  retentionDays,
		MinDiscountPct: minDiscount,
		SendRate:       sendRate,
		SendBurst:      1,
	}, nil
}

// IsAdmin reports whether the given Telegram username is on the admin
// allow-list. Matching is case-insensitive, as Telegram usernames are.
func (c *Config) IsAdmin(username string) bool {
	for _, admin := range c.AdminUsernames {
		if strings.EqualFold(admin, username) {
			return true
		}
	}
	return false
}

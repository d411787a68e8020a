package main

import (
	"context"
	"fmt"

	"safeher/internal/config"
	"safeher/internal/services"
	"safeher/pkg/cache"
	"safeher/pkg/logger"
	"safeher/pkg/sms"
)

// buildAlertChannels picks the channel for personal contacts and the one for police
// and helplines.
func buildAlertChannels(ctx context.Context, cfg *config.Config) (services.AlertChannel, services.AlertChannel, error) {
	simulated := services.NewSimulatedChannel(cfg.Safety.DispatchDelay)

	var twilio *sms.TwilioProvider
	if t := cfg.SMS.Twilio; t != nil && t.AccountSID != "" && t.AuthToken != "" {
		twilio = sms.NewTwilioProvider(t.AccountSID, t.AuthToken, t.FromNumber)
	}

	smsChannel := func() (services.AlertChannel, error) {
		switch cfg.SMS.Provider {
		case "sns":
			provider, err := sms.NewAWSSNSProvider(ctx, cfg.SMS.AWS.Region, cfg.SMS.DefaultFrom)
			if err != nil {
				return nil, err
			}
			return services.NewSMSChannel(provider, cfg.SMS.DefaultFrom), nil
		case "twilio":
			if twilio == nil {
				return nil, fmt.Errorf("twilio credentials are not configured")
			}
			return services.NewSMSChannel(twilio, cfg.SMS.Twilio.FromNumber), nil
		default:
			return nil, fmt.Errorf("unknown sms provider %q", cfg.SMS.Provider)
		}
	}

	var contact services.AlertChannel = simulated
	if cfg.Safety.ContactChannel == services.ChannelSMS {
		ch, err := smsChannel()
		if err != nil {
			return nil, nil, fmt.Errorf("contact channel: %w", err)
		}
		contact = ch
	}

	var authority services.AlertChannel = simulated
	switch cfg.Safety.AuthorityChannel {
	case services.ChannelSMS:
		ch, err := smsChannel()
		if err != nil {
			return nil, nil, fmt.Errorf("authority channel: %w", err)
		}
		authority = ch
	case services.ChannelCall:
		if twilio == nil {
			return nil, nil, fmt.Errorf("authority channel: calls need twilio credentials")
		}
		authority = services.NewCallChannel(twilio, cfg.SMS.Twilio.FromNumber)
	}

	return contact, authority, nil
}

// buildDispatchGuard uses Redis when enabled and reachable, the in-process guard
// otherwise.
func buildDispatchGuard(ctx context.Context, cfg *config.Config, log *logger.Logger) (services.DispatchGuard, func()) {
	if !cfg.Redis.Enabled {
		return services.NewLocalDispatchGuard(), func() {}
	}

	rc, err := cache.NewRedisCache(ctx, &cache.RedisConfig{
		Host:         cfg.Redis.Host,
		Port:         cfg.Redis.Port,
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
		DialTimeout:  cfg.Redis.DialTimeout,
		ReadTimeout:  cfg.Redis.ReadTimeout,
		WriteTimeout: cfg.Redis.WriteTimeout,
	})
	if err != nil {
		log.WithError(err).Warn("Redis unavailable, using in-process dispatch guard")
		return services.NewLocalDispatchGuard(), func() {}
	}

	return services.NewRedisDispatchGuard(rc, cfg.Redis.LockTTL, log), func() {
		if err := rc.Close(); err != nil {
			log.WithError(err).Warn("Failed to close redis")
		}
	}
}

package featureflags

import (
	"context"

	"loyaltydesk/pkg/config"

	flagsmith "github.com/Flagsmith/flagsmith-go-client/v2"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("featureflags", fx.Provide(ProvideFeatureFlag))

const FlagOpenRegistration = "open_registration"

type FeatureFlag interface {
	// OpenRegistration reports whether unmatched identities may self-provision
	// a restaurant. Falls back to the config default when no flag backend is
	// configured or the flag cannot be evaluated.
	OpenRegistration(ctx context.Context, identifier string) bool
}

type featureflag struct {
	client   *flagsmith.Client
	fallback bool
}

type FeatureParams struct {
	fx.In
	Config *config.Config
}

func ProvideFeatureFlag(p FeatureParams) FeatureFlag {
	if p.Config.Flagsmith.ApiKey == "" {
		return &featureflag{fallback: p.Config.Loyalty.OpenRegistration}
	}

	opts := []flagsmith.Option{
		flagsmith.WithBaseURL(p.Config.Flagsmith.Addr),
		flagsmith.WithAnalytics(),
	}

	return &featureflag{
		client:   flagsmith.NewClient(p.Config.Flagsmith.ApiKey, opts...),
		fallback: p.Config.Loyalty.OpenRegistration,
	}
}

func (s *featureflag) OpenRegistration(ctx context.Context, identifier string) bool {
	if s.client == nil {
		return s.fallback
	}

	flags, err := s.client.GetIdentityFlags(identifier, nil)
	if err != nil {
		zap.L().Warn("failed to evaluate feature flags, using fallback", zap.Error(err))
		return s.fallback
	}

	enabled, err := flags.IsFeatureEnabled(FlagOpenRegistration)
	if err != nil {
		return s.fallback
	}

	return enabled
}

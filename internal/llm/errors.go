package llm

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"

	"github.com/sevigo/precedent/internal/core"
)

// quotaFirst runs before the default matchers because providers report an
// exhausted quota with a 429 status, which would otherwise read as a
// retryable rate limit.
var quotaFirst = llms.ErrorMatcher{
	Match: func(err error) bool {
		s := strings.ToLower(err.Error())
		return strings.Contains(s, "insufficient_quota") ||
			strings.Contains(s, "exceeded your current quota") ||
			strings.Contains(s, "quota exceeded") ||
			strings.Contains(s, "resource_exhausted")
	},
	Code: llms.ErrCodeQuotaExceeded,
}

func errorMapper(provider string) *llms.ErrorMapper {
	var m *llms.ErrorMapper
	if provider == "openai" {
		m = llms.OpenAIErrorMapper()
	} else {
		m = llms.NewErrorMapper(provider)
	}
	return m.AddMatcher(quotaFirst)
}

// ClassifyProviderError maps a raw backend error onto the core taxonomy.
// Errors that are already classified pass through unchanged.
func ClassifyProviderError(provider, op string, err error) error {
	if err == nil {
		return nil
	}
	var classified *core.Error
	if errors.As(err, &classified) {
		return err
	}

	mapped := errorMapper(provider).Map(err)
	var llmErr *llms.Error
	if !errors.As(mapped, &llmErr) {
		return core.NewError(core.KindTransientProvider, op, fmt.Errorf("%w: %w", core.ErrProviderUnavailable, err))
	}

	switch llmErr.Code {
	case llms.ErrCodeCanceled:
		return core.NewError(core.KindTransientProvider, op, mapped)
	case llms.ErrCodeTimeout:
		return core.NewError(core.KindTransientProvider, op, fmt.Errorf("%w: %w", core.ErrProviderTimeout, mapped))
	case llms.ErrCodeRateLimit:
		return core.NewError(core.KindTransientProvider, op, fmt.Errorf("%w: %w", core.ErrProviderRateLimited, mapped))
	case llms.ErrCodeProviderUnavailable, llms.ErrCodeUnknown:
		return core.NewError(core.KindTransientProvider, op, fmt.Errorf("%w: %w", core.ErrProviderUnavailable, mapped))
	case llms.ErrCodeQuotaExceeded:
		return core.NewError(core.KindFatalProvider, op, fmt.Errorf("%w: %w", core.ErrProviderQuotaExceeded, mapped))
	case llms.ErrCodeAuthentication:
		return core.NewError(core.KindFatalProvider, op, fmt.Errorf("%w: %w", core.ErrProviderAuth, mapped))
	default:
		return core.NewError(core.KindFatalProvider, op, fmt.Errorf("%w: %w", core.ErrProviderRejected, mapped))
	}
}

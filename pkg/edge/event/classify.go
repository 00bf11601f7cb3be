package event

import (
	"log/slog"
	"strings"
)

// matches reports whether the envelope carries the given type and source.
// Type and source comparisons are case-insensitive.
func matches(e *Envelope, eventType, source string) bool {
	return e != nil &&
		strings.EqualFold(e.eventType, eventType) &&
		strings.EqualFold(e.source, source)
}

// IsExperienceRequest reports whether the envelope is an outbound
// experience request, regardless of payload contents.
func IsExperienceRequest(e *Envelope) bool {
	return matches(e, TypeExperience, SourceRequestContent)
}

// IsResponseContent reports whether the envelope carries a response
// fragment for an earlier experience request.
func IsResponseContent(e *Envelope) bool {
	return matches(e, TypeExperience, SourceResponseContent)
}

// IsErrorResponse reports whether the envelope carries an error response
// for an earlier experience request.
func IsErrorResponse(e *Envelope) bool {
	return matches(e, TypeExperience, SourceErrorResponse)
}

// IsContentComplete reports whether the envelope is the terminal signal
// closing the response stream of an experience request.
func IsContentComplete(e *Envelope) bool {
	return matches(e, TypeExperience, SourceContentComplete)
}

// IsConsentUpdate reports whether the envelope is a consent update request.
func IsConsentUpdate(e *Envelope) bool {
	return matches(e, TypeExperience, SourceUpdateConsent)
}

// IsConsentPreferencesUpdated reports whether the envelope is a consent
// preferences change notification.
func IsConsentPreferencesUpdated(e *Envelope) bool {
	return matches(e, TypeConsent, SourceResponseContent)
}

// IsIdentityResetComplete reports whether the envelope signals that an
// identity reset has finished.
func IsIdentityResetComplete(e *Envelope) bool {
	return matches(e, TypeIdentity, SourceResetComplete)
}

// IsLocationHintQuery reports whether the envelope is a get-location-hint
// request: identity request source plus a locationHint key whose value is
// boolean true. A missing key or a non-boolean value does not match.
func IsLocationHintQuery(e *Envelope) bool {
	if !matches(e, TypeExperience, SourceRequestIdentity) {
		return false
	}
	isHint, ok := e.data[KeyLocationHint].(bool)
	return ok && isHint
}

// IsLocationHintUpdate reports whether the envelope is a set-location-hint
// request. The locationHint key must be present; its value is not inspected
// here because an empty value means "clear the hint".
func IsLocationHintUpdate(e *Envelope) bool {
	if !matches(e, TypeExperience, SourceUpdateIdentity) {
		return false
	}
	_, ok := e.data[KeyLocationHint]
	return ok
}

// IsEmpty reports whether the envelope is nil or carries no payload data.
func IsEmpty(e *Envelope) bool {
	return e == nil || len(e.data) == 0
}

// IsStateChangeFor reports whether the envelope notifies a shared-state
// change for the given owner. A missing or non-string owner field in the
// payload does not match.
func IsStateChangeFor(owner string, e *Envelope) bool {
	if owner == "" || e == nil {
		return false
	}
	stateOwner, ok := e.data[KeyStateOwner].(string)
	return ok && stateOwner == owner
}

// configKeys is the allow-list of string-valued configuration keys copied
// by ExtractConfiguration.
var configKeys = []string{
	ConfigKeyDatastreamID,
	ConfigKeyEnvironment,
	ConfigKeyDomain,
}

// ExtractConfiguration copies the known configuration keys out of a
// shared-state payload. Only keys holding a non-empty string are copied;
// keys present with a different type are reported in dropped and logged at
// debug level. The caller never sees an error.
func ExtractConfiguration(shared map[string]any, logger *slog.Logger) (cfg map[string]any, dropped []string) {
	cfg = make(map[string]any)

	for _, key := range configKeys {
		v, ok := shared[key]
		if !ok {
			continue
		}
		s, ok := v.(string)
		if !ok {
			dropped = append(dropped, key)
			if logger != nil {
				logger.Debug("configuration key has unexpected type, expected string",
					slog.String("key", key),
				)
			}
			continue
		}
		if s != "" {
			cfg[key] = s
		}
	}

	return cfg, dropped
}

// IntegrationID extracts the integration id from an assurance shared-state
// payload. Returns false if the key is absent or not a string.
func IntegrationID(shared map[string]any) (string, bool) {
	id, ok := shared[IntegrationIDKey].(string)
	if !ok || id == "" {
		return "", false
	}
	return id, true
}

package config

import (
	"fmt"
	"hash/fnv"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

// FeatureFlags manages feature toggles and gradual rollouts. Learners
// are bucketed by a hash of their ID, so a rollout percentage yields a
// stable cohort rather than per-request randomness.
type FeatureFlags struct {
	mu sync.RWMutex

	features map[string]*Feature

	// Override rules (for testing/debugging)
	learnerOverrides map[string]map[string]bool // learnerID -> feature -> enabled
}

// Feature represents a single feature flag.
type Feature struct {
	Name        string
	Description string
	Enabled     bool

	// Rollout percentage (0-100)
	RolloutPercent int

	// Time-based activation
	EnabledFrom  *time.Time
	EnabledUntil *time.Time
}

// FeatureContext provides context for feature flag evaluation.
type FeatureContext struct {
	LearnerID string
	IsAdmin   bool
}

// Predefined feature flag names.
const (
	// === Session Runtime Features ===
	FeaturePresenceDetection = "session.presence_detection" // webcam presence pausing
	FeatureBreakScheduler    = "session.break_scheduler"    // scheduled breaks
	FeatureVisibilityPause   = "session.visibility_pause"   // pause on hidden tab

	// === Gamification Features ===
	FeatureGamificationStreaks = "gamification.streaks"     // daily streaks
	FeatureGamificationXPBonus = "gamification.xp_bonus"    // focus/goal XP bonuses
	FeatureLeaderboard         = "gamification.leaderboard" // public XP ranking

	// === Sync Features ===
	FeatureSyncGateway = "sync.gateway" // push snapshots to the backend

	// === Digest Features ===
	FeatureDailyDigest = "digest.daily"        // end of day summary
	FeatureStreakWatch = "digest.streak_watch" // evening streak reminders
)

// LoadFeatureFlags loads feature flags from environment variables.
func LoadFeatureFlags() *FeatureFlags {
	ff := &FeatureFlags{
		features:         make(map[string]*Feature),
		learnerOverrides: make(map[string]map[string]bool),
	}

	ff.initializeDefaults()
	ff.loadFromEnvironment()

	return ff
}

// initializeDefaults sets up all features with default values.
func (ff *FeatureFlags) initializeDefaults() {
	defaultsOn := []struct {
		name, description string
	}{
		{FeaturePresenceDetection, "Webcam presence detection pausing"},
		{FeatureBreakScheduler, "Scheduled in-session breaks"},
		{FeatureVisibilityPause, "Pause when the study tab loses visibility"},
		{FeatureGamificationStreaks, "Daily study streaks"},
		{FeatureGamificationXPBonus, "Bonus XP for high focus and reached goals"},
		{FeatureLeaderboard, "Public XP leaderboard"},
		{FeatureSyncGateway, "Snapshot push to the backend collector"},
		{FeatureDailyDigest, "End of day study digest"},
	}
	for _, f := range defaultsOn {
		ff.features[f.name] = &Feature{
			Name:           f.name,
			Description:    f.description,
			Enabled:        true,
			RolloutPercent: 100,
		}
	}

	// Streak reminders start as a partial rollout.
	ff.features[FeatureStreakWatch] = &Feature{
		Name:           FeatureStreakWatch,
		Description:    "Evening reminders for streaks about to expire",
		Enabled:        true,
		RolloutPercent: 50,
	}
}

// loadFromEnvironment applies FEATURE_* environment overrides.
// FEATURE_SESSION_PRESENCE_DETECTION=false disables the flag;
// FEATURE_SESSION_PRESENCE_DETECTION_ROLLOUT=25 sets the rollout.
func (ff *FeatureFlags) loadFromEnvironment() {
	for name, feature := range ff.features {
		envKey := featureNameToEnvKey(name)

		if val := os.Getenv(envKey); val != "" {
			if enabled, err := strconv.ParseBool(val); err == nil {
				feature.Enabled = enabled
			}
		}

		if val := os.Getenv(envKey + "_ROLLOUT"); val != "" {
			if pct, err := strconv.Atoi(val); err == nil && pct >= 0 && pct <= 100 {
				feature.RolloutPercent = pct
			}
		}
	}
}

// featureNameToEnvKey converts "session.presence_detection" to
// "FEATURE_SESSION_PRESENCE_DETECTION".
func featureNameToEnvKey(name string) string {
	key := strings.ToUpper(strings.ReplaceAll(name, ".", "_"))
	return "FEATURE_" + key
}

// IsEnabled evaluates a feature flag for the given context.
func (ff *FeatureFlags) IsEnabled(featureName string, ctx *FeatureContext) bool {
	ff.mu.RLock()
	defer ff.mu.RUnlock()

	// Per-learner overrides win over everything.
	if ctx != nil && ctx.LearnerID != "" {
		if overrides, ok := ff.learnerOverrides[ctx.LearnerID]; ok {
			if enabled, ok := overrides[featureName]; ok {
				return enabled
			}
		}
	}

	feature, exists := ff.features[featureName]
	if !exists {
		return false
	}

	if !feature.Enabled {
		return false
	}

	// Admins see everything that is enabled.
	if ctx != nil && ctx.IsAdmin {
		return true
	}

	now := time.Now()
	if feature.EnabledFrom != nil && now.Before(*feature.EnabledFrom) {
		return false
	}
	if feature.EnabledUntil != nil && now.After(*feature.EnabledUntil) {
		return false
	}

	if feature.RolloutPercent >= 100 {
		return true
	}
	if feature.RolloutPercent <= 0 {
		return false
	}
	if ctx == nil || ctx.LearnerID == "" {
		return false
	}

	return ff.isInRollout(ctx.LearnerID, featureName, feature.RolloutPercent)
}

// isInRollout deterministically buckets a learner into the rollout.
func (ff *FeatureFlags) isInRollout(learnerID, featureName string, percent int) bool {
	h := fnv.New32a()
	h.Write([]byte(learnerID))
	h.Write([]byte(featureName))
	bucket := h.Sum32() % 100
	return int(bucket) < percent
}

// SetLearnerOverride forces a feature on or off for one learner.
func (ff *FeatureFlags) SetLearnerOverride(learnerID, featureName string, enabled bool) {
	ff.mu.Lock()
	defer ff.mu.Unlock()

	if _, ok := ff.learnerOverrides[learnerID]; !ok {
		ff.learnerOverrides[learnerID] = make(map[string]bool)
	}
	ff.learnerOverrides[learnerID][featureName] = enabled
}

// ClearLearnerOverrides removes all overrides for one learner.
func (ff *FeatureFlags) ClearLearnerOverrides(learnerID string) {
	ff.mu.Lock()
	defer ff.mu.Unlock()
	delete(ff.learnerOverrides, learnerID)
}

// SetRolloutPercent changes the rollout percentage of a feature.
func (ff *FeatureFlags) SetRolloutPercent(featureName string, percent int) error {
	if percent < 0 || percent > 100 {
		return &FeatureFlagError{Message: fmt.Sprintf("rollout percent must be 0-100, got %d", percent)}
	}

	ff.mu.Lock()
	defer ff.mu.Unlock()

	feature, exists := ff.features[featureName]
	if !exists {
		return &FeatureFlagError{Message: fmt.Sprintf("unknown feature: %s", featureName)}
	}

	feature.RolloutPercent = percent
	return nil
}

// EnableFeature enables a feature globally.
func (ff *FeatureFlags) EnableFeature(featureName string) error {
	return ff.setEnabled(featureName, true)
}

// DisableFeature disables a feature globally.
func (ff *FeatureFlags) DisableFeature(featureName string) error {
	return ff.setEnabled(featureName, false)
}

func (ff *FeatureFlags) setEnabled(featureName string, enabled bool) error {
	ff.mu.Lock()
	defer ff.mu.Unlock()

	feature, exists := ff.features[featureName]
	if !exists {
		return &FeatureFlagError{Message: fmt.Sprintf("unknown feature: %s", featureName)}
	}

	feature.Enabled = enabled
	return nil
}

// GetAllFeatures returns a copy of all registered features.
func (ff *FeatureFlags) GetAllFeatures() map[string]*Feature {
	ff.mu.RLock()
	defer ff.mu.RUnlock()

	out := make(map[string]*Feature, len(ff.features))
	for name, f := range ff.features {
		copied := *f
		out[name] = &copied
	}
	return out
}

// FeatureFlagError represents a feature flag operation error.
type FeatureFlagError struct {
	Message string
}

func (e *FeatureFlagError) Error() string {
	return e.Message
}

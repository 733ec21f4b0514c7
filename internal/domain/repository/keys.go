package repository

import (
	"strconv"

	"SpinPull/internal/domain/wheel"
)

// Store key namespace. Every key is flat text with ":" separators.
const (
	KeyHistory        = "roulette:history"
	KeyLatest         = "roulette:latest"
	KeyTotalSpins     = "roulette:total_spins"
	KeyTimeline       = "roulette:timeline"
	KeySessionCurrent = "roulette:sessions:current"

	KeyCurrentStreak = "analytics:current_streak"
	KeyStreakColors  = "analytics:patterns:streaks"

	KeyFeaturesCurrent = "ml:features:current"
	KeyFeaturesHistory = "ml:features:history"

	KeyPending   = "ai:pending_predictions"
	KeyGameStats = "ai:game_stats"

	// PatternPredictions and friends are used by purge.
	PatternPredictions = "prediction:*"
	PatternResults     = "result:*"
	PatternGroupStats  = "ai:group_stats:*"
)

func ColorKey(c wheel.Color) string { return "roulette:colors:" + string(c) }

func MetadataKey(entryID string) string { return "roulette:metadata:" + entryID }

func SessionKey(id string) string { return "roulette:sessions:" + id }

func SectorKey(s wheel.Sector) string { return "analytics:patterns:sectors:" + string(s) }

func GapsKey(n int) string { return "analytics:patterns:gaps:" + strconv.Itoa(n) }

func LastPositionKey(n int) string { return "analytics:last_position:" + strconv.Itoa(n) }

func RollingKey(window string) string { return "analytics:rolling:" + window }

func PredictionKey(id string) string { return "prediction:" + id }

func GroupStatsKey(group string) string { return "ai:group_stats:" + group }

func ResultKey(id string) string { return "result:" + id }

func LockKey(session string) string { return "roulette:lock:" + session }

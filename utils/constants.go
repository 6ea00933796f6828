package utils

import (
	"time"
)

// Autopilot defaults used when configuration leaves a value unset
const (
	// DefaultRunInterval is how often the scheduler sweeps automated campaigns
	DefaultRunInterval = 15 * time.Minute

	// DefaultInterSendInterval is the pause between two deliveries of one drain
	DefaultInterSendInterval = 2 * time.Second

	// DefaultCallTimeout bounds a single collaborator call (rank, generate, deliver)
	DefaultCallTimeout = 30 * time.Second

	// DefaultRunTimeout bounds a whole campaign run
	DefaultRunTimeout = 30 * time.Minute

	// DefaultDrainBatch caps how many queued messages one drain loads
	DefaultDrainBatch = 500

	// DefaultSequenceBatch caps how many due progress rows one pass loads
	DefaultSequenceBatch = 1000
)

// CORS and security constants
const (
	// CORSMaxAge is the maximum age for CORS preflight requests (24 hours)
	CORSMaxAge = 86400
)

// Cache key layouts
const (
	CampaignRunLockKeyFmt  = "autopilot:campaign:%d:lock"
	SuppressionCacheKeyFmt = "autopilot:suppression:%s"
)

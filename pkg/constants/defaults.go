// Package constants defines the cross-cutting tunables referenced throughout
// the node runtime: Kademlia parameters, quotas, timing windows, and wire
// identifiers (§3, §4, §6, §21-equivalent defaults).
package constants

import "time"

// Kademlia parameters (§3, §GLOSSARY).
const (
	// KBucketSize is K, the maximum number of live entries per k-bucket.
	KBucketSize = 20

	// Alpha is the lookup concurrency parameter for DHT RPCs.
	Alpha = 3

	// NumBuckets is the number of k-buckets in the routing table, one per
	// possible position of the highest set bit of a 256-bit XOR distance.
	NumBuckets = 256
)

// NodeInfo eviction thresholds (§3).
const (
	// MaxConsecutiveFailures is F_max: the failure count at or above which
	// a stale bucket head becomes evictable.
	MaxConsecutiveFailures = 5

	// StaleAfter is T_stale: how long since last_seen before a peer with
	// MaxConsecutiveFailures failures becomes evictable.
	StaleAfter = 3600 * time.Second
)

// DHT storage quotas (§3, §4.3).
const (
	// MaxStorageBytes is the total byte quota across all stored DHT entries.
	MaxStorageBytes = 100 * 1024 * 1024

	// MaxStorageKeys is the total key-count quota for DHT storage.
	MaxStorageKeys = 10_000

	// MaxValueSize is the maximum size of a single stored DHT value.
	MaxValueSize = 1024 * 1024
)

// Message and frame limits (§3, §4.1).
const (
	// MaxPayloadSize bounds a message's opaque payload.
	MaxPayloadSize = 1024 * 1024

	// MaxFrameSize bounds a serialized frame (payload + header slack).
	MaxFrameSize = MaxPayloadSize + 256

	// MaxClockSkew (T_drift) bounds the accepted drift between a message's
	// asserted timestamp and the receiver's clock.
	MaxClockSkew = 300 * time.Second
)

// Dedup / rate limiting (§4.4).
const (
	DedupCacheSize = 10_000
	DedupTTL       = 3600 * time.Second

	RateLimitWindow = 60 * time.Second

	DefaultPerNodeRateLimit = 60
	DefaultGlobalRateLimit  = 6000
)

// Priority queue (§3, §4.4).
const (
	PriorityQueueCapacityPerBand = 1000
)

// Reputation (§4.3).
const (
	// ReputationFloor is the threshold below which a peer is de-prioritized
	// in find_closest_nodes responses, though never removed.
	ReputationFloor = 0.2

	// ReputationDecayInterval is how often reputation relaxes toward the
	// neutral value absent fresh observations.
	ReputationDecayInterval = 10 * time.Minute

	// ReputationNeutral is the value reputation decays toward.
	ReputationNeutral = 0.5
)

// Failover / heartbeat (§4.7).
const (
	FailoverHysteresis       = 30 * time.Second
	DHTRPCTimeout            = 10 * time.Second
	DefaultHeartbeatInterval = 15 * time.Second

	// DefaultRetryAttempts is how many consecutive send failures on the
	// primary adapter trigger a failover.
	DefaultRetryAttempts = 3

	// DefaultLatencyThresholdMultiplier bounds how far measured latency may
	// exceed an adapter's typical latency before it is considered degraded.
	DefaultLatencyThresholdMultiplier = 3.0

	// DefaultLossThreshold is the fraction of lost sends past which an
	// adapter is considered degraded.
	DefaultLossThreshold = 0.2
)

// Protocol identification (§4.1, §6).
const (
	ProtocolVersion = 1
)

// Transport defaults (§4.5).
const (
	// DefaultQUICPort is the UDP port the Ethernet-range QUIC adapter binds
	// absent an explicit configuration override.
	DefaultQUICPort = 27487

	// QUICIdleTimeout bounds how long a QUIC connection may sit idle before
	// the peer closes it.
	QUICIdleTimeout = 5 * time.Minute

	// QUICKeepAlive is the interval at which idle QUIC connections are
	// kept alive.
	QUICKeepAlive = 30 * time.Second

	// QUICALPN is the ALPN protocol identifier negotiated on every QUIC
	// connection this node establishes or accepts.
	QUICALPN = "myriadmesh/1"
)

// FrameMagic is the 4-byte "MYRD" magic identifying a MyriadMesh frame.
var FrameMagic = [4]byte{'M', 'Y', 'R', 'D'}

// Metrics (§3, §4.6).
const (
	// MetricsEMAAlpha is the exponential-moving-average smoothing factor
	// used for adapter latency/bandwidth/reliability tracking.
	MetricsEMAAlpha = 0.2
)

// Routing defaults (§6).
const (
	DefaultMaxHops        = 32
	DefaultMessageTTLDays = 7
)

// Shutdown grace period (§5).
const ShutdownGracePeriod = 5 * time.Second

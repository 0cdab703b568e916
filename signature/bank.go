// Package signature implements the cache of previously-seen scenes: a
// weighted descriptor matcher, EMA-based descriptor adaptation, and a
// confidence formula that blends match tightness, persistence, false
// alarms and historical risk. Read-only calls (Confidence, Len) take only
// a shared lock; Match, Register and Feedback take the exclusive lock.
// In the engine only Lane 2 calls into the bank.
package signature

import (
	"math"
	"sort"
	"sync"

	"github.com/orionlabs/sensing-core/types"
)

// Config holds the bank's tunables, named in spec §4.5/§6.
type Config struct {
	Capacity           int
	MatchThreshold     float32 // default 0.30
	AdaptMinConfidence float32 // default 0.60
	AdaptRate          float32 // tunable EMA learning rate, see DESIGN.md Open Question 3
	TraceCap           float32
	ForgettingPeriod   float64 // seconds; drives persistence-trace decay
	GrowthFactor       float32 // undefined by spec; neutral default of 1

	// descriptor weights, must sum to 1
	WeightStructural float32
	WeightSemantic   float32
	WeightContext    float32
	WeightMotion     float32
}

// DefaultConfig returns the weights and thresholds named in §4.5.
func DefaultConfig() Config {
	return Config{
		Capacity:           256,
		MatchThreshold:     0.30,
		AdaptMinConfidence: 0.60,
		AdaptRate:          0.20,
		TraceCap:           1.0,
		ForgettingPeriod:   60.0,
		GrowthFactor:       1.0,
		WeightStructural:   0.5,
		WeightSemantic:     0.3,
		WeightContext:      0.1,
		WeightMotion:       0.1,
	}
}

// Descriptors bundles the four normalized descriptor vectors a scene is
// matched on.
type Descriptors struct {
	Structural []float32
	Semantic   []float32
	Context    []float32
	Motion     []float32
}

// signature is one registered scene. Fields are only ever mutated while
// holding Bank's exclusive lock.
type signature struct {
	id               int
	desc             Descriptors
	firstSeen        float64
	lastSeen         float64
	occurrenceCount  uint64
	persistenceTrace float32
	historicalRisk   float32
	falseAlarmRate   float32
	refractoryUntil  float64
	avgLuminance     float32
}

// Bank is the flat store of registered signatures.
type Bank struct {
	mu     sync.RWMutex
	cfg    Config
	byID   map[int]*signature
	order  []int // insertion order, for deterministic pruning iteration
	nextID int
}

// NewBank constructs an empty Bank.
func NewBank(cfg Config) *Bank {
	return &Bank{
		cfg:  cfg,
		byID: make(map[int]*signature),
	}
}

func l2distance(weights [4]float32, a, b Descriptors) (float32, float32) {
	structDist := euclid(a.Structural, b.Structural)
	semDist := euclid(a.Semantic, b.Semantic)
	ctxDist := euclid(a.Context, b.Context)
	motDist := euclid(a.Motion, b.Motion)
	total := weights[0]*structDist + weights[1]*semDist + weights[2]*ctxDist + weights[3]*motDist
	return total, structDist
}

func euclid(a, b []float32) float32 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var sum float64
	for i := 0; i < n; i++ {
		d := float64(a[i] - b[i])
		sum += d * d
	}
	return float32(math.Sqrt(sum))
}

func normalize(v []float32) {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return
	}
	norm := float32(math.Sqrt(sum))
	for i := range v {
		v[i] /= norm
	}
}

// Match finds the closest registered signature to query, returning a
// SignatureMatch. now is a monotonic seconds timestamp used for
// refractory windows and recency bookkeeping. On a match it folds the
// observation in: bumps occurrence/persistence, and — when confident
// enough — nudges the signature's descriptors toward the query.
func (b *Bank) Match(query Descriptors, now float64) types.SignatureMatch {
	b.mu.Lock()
	defer b.mu.Unlock()

	weights := [4]float32{b.cfg.WeightStructural, b.cfg.WeightSemantic, b.cfg.WeightContext, b.cfg.WeightMotion}

	var best *signature
	var bestDist, bestStructDist float32 = math.MaxFloat32, 0

	for _, id := range b.order {
		s, ok := b.byID[id]
		if !ok {
			continue
		}
		if now < s.refractoryUntil {
			continue
		}
		dist, structDist := l2distance(weights, query, s.desc)
		if dist < bestDist {
			bestDist, bestStructDist, best = dist, structDist, s
		}
	}

	if best == nil || bestDist >= b.cfg.MatchThreshold {
		return types.SignatureMatch{Matched: false}
	}

	best.occurrenceCount++
	best.lastSeen = now
	// exponential decay of the persistence trace, then a capped bump.
	decay := float32(math.Exp(-1.0 / b.cfg.ForgettingPeriod))
	best.persistenceTrace *= decay
	best.persistenceTrace += 1
	if best.persistenceTrace > b.cfg.TraceCap {
		best.persistenceTrace = b.cfg.TraceCap
	}

	rawConfidence := float32(math.Exp(float64(-bestDist / b.cfg.MatchThreshold)))
	if rawConfidence >= b.cfg.AdaptMinConfidence {
		rate := b.cfg.AdaptRate * rawConfidence
		adapt(best.desc.Structural, query.Structural, rate)
		adapt(best.desc.Semantic, query.Semantic, rate)
		adapt(best.desc.Context, query.Context, rate)
		adapt(best.desc.Motion, query.Motion, rate)
		normalize(best.desc.Structural)
		normalize(best.desc.Semantic)
		normalize(best.desc.Context)
		normalize(best.desc.Motion)
	}

	conf := b.computeConfidenceLocked(best, bestDist, bestStructDist)

	return types.SignatureMatch{
		Matched:            true,
		ID:                 best.id,
		Distance:           bestDist,
		Confidence:         conf,
		StructuralDistance: bestStructDist,
	}
}

func adapt(dst, src []float32, rate float32) {
	n := len(dst)
	if len(src) < n {
		n = len(src)
	}
	for i := 0; i < n; i++ {
		dst[i] += rate * (src[i] - dst[i])
	}
}

// computeConfidenceLocked implements §4.5's confidence formula:
// f = 0.7·exp(-2·d_struct/θ) + 0.3·exp(-d/θ)
// F = min(1, trace/trace_cap)
// Q = 1 - false_alarm_rate, R = historical_risk
// conf = clamp(f·F·Q·(1-R)·growth_factor, 0, 1)
func (b *Bank) computeConfidenceLocked(s *signature, dist, structDist float32) float32 {
	theta := b.cfg.MatchThreshold
	f := 0.7*float32(math.Exp(float64(-2*structDist/theta))) + 0.3*float32(math.Exp(float64(-dist/theta)))
	F := s.persistenceTrace / b.cfg.TraceCap
	if F > 1 {
		F = 1
	}
	Q := 1 - s.falseAlarmRate
	R := s.historicalRisk
	conf := f * F * Q * (1 - R) * b.cfg.GrowthFactor
	if conf < 0 {
		conf = 0
	}
	if conf > 1 {
		conf = 1
	}
	return conf
}

// Confidence recomputes the confidence of an already-registered
// signature without performing a match, taking only the shared lock.
// The engine's lanes do not call it: Lane 1 and Lane 3 read the
// confidence Lane 2 published in its SignatureMatch.
func (b *Bank) Confidence(id int) (float32, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	s, ok := b.byID[id]
	if !ok {
		return 0, false
	}
	return b.computeConfidenceLocked(s, 0, 0), true
}

// Register adds a brand-new signature built from desc, pruning the bank
// first if it is already at capacity.
func (b *Bank) Register(desc Descriptors, now float64, avgLuminance float32) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.order) >= b.cfg.Capacity {
		b.pruneLocked()
	}

	id := b.nextID
	b.nextID++
	s := &signature{
		id:           id,
		desc:         desc,
		firstSeen:    now,
		lastSeen:     now,
		avgLuminance: avgLuminance,
	}
	b.byID[id] = s
	b.order = append(b.order, id)
	return id
}

// Feedback lets Lane 3 report back whether a run against this signature
// turned out to be a false alarm, feeding the bank's false_alarm_rate.
func (b *Bank) Feedback(id int, wasFalseAlarm bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	s, ok := b.byID[id]
	if !ok {
		return
	}
	target := float32(0)
	if wasFalseAlarm {
		target = 1
	}
	s.falseAlarmRate += 0.1 * (target - s.falseAlarmRate)
}

// pruneLocked removes the lowest-value 10% of signatures, ranked by
// recency · familiarity · (risk + 0.1), per §4.5's capacity policy. The
// caller must hold the write lock.
func (b *Bank) pruneLocked() {
	n := len(b.order)
	if n == 0 {
		return
	}
	type scored struct {
		id    int
		value float64
	}
	now := 0.0
	for _, id := range b.order {
		if s := b.byID[id]; s.lastSeen > now {
			now = s.lastSeen
		}
	}
	scores := make([]scored, 0, n)
	for _, id := range b.order {
		s := b.byID[id]
		recency := 1.0 / (1.0 + (now - s.lastSeen))
		familiarity := float64(s.occurrenceCount) / (1.0 + float64(s.occurrenceCount))
		value := recency * familiarity * (float64(s.historicalRisk) + 0.1)
		scores = append(scores, scored{id: id, value: value})
	}
	sort.Slice(scores, func(i, j int) bool { return scores[i].value < scores[j].value })

	toRemove := n / 10
	if toRemove == 0 {
		toRemove = 1
	}
	remove := make(map[int]bool, toRemove)
	for i := 0; i < toRemove && i < len(scores); i++ {
		remove[scores[i].id] = true
	}

	newOrder := make([]int, 0, n-len(remove))
	for _, id := range b.order {
		if remove[id] {
			delete(b.byID, id)
			continue
		}
		newOrder = append(newOrder, id)
	}
	b.order = newOrder
}

// Len reports the number of currently registered signatures.
func (b *Bank) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.order)
}

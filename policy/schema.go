package policy

import (
	"math"
	"time"

	"github.com/aponysus/hostkit/classify"
)

type JitterKind string

const (
	JitterNone  JitterKind = "none"
	JitterFull  JitterKind = "full"
	JitterEqual JitterKind = "equal"
)

// BackoffKind selects how the wait between attempts is computed.
type BackoffKind string

const (
	// BackoffFixed walks the Delays schedule in order.
	BackoffFixed BackoffKind = "fixed"
	// BackoffExponential grows InitialBackoff by BackoffMultiplier up to MaxBackoff.
	BackoffExponential BackoffKind = "exponential"
)

// RetryPolicy bounds how often, how patiently, and on which failures an
// operation is retried.
type RetryPolicy struct {
	MaxAttempts int         `json:"max_attempts" yaml:"max_attempts"`
	Backoff     BackoffKind `json:"backoff" yaml:"backoff"`

	// Delays is the fixed schedule: Delays[n-1] is waited before retry n.
	Delays []time.Duration `json:"delays,omitempty" yaml:"delays,omitempty"`

	InitialBackoff    time.Duration `json:"initial_backoff,omitempty" yaml:"initial_backoff,omitempty"`
	MaxBackoff        time.Duration `json:"max_backoff,omitempty" yaml:"max_backoff,omitempty"`
	BackoffMultiplier float64       `json:"backoff_multiplier,omitempty" yaml:"backoff_multiplier,omitempty"`
	Jitter            JitterKind    `json:"jitter" yaml:"jitter"`

	OverallTimeout time.Duration `json:"overall_timeout,omitempty" yaml:"overall_timeout,omitempty"`

	// RetryOn lists the error kinds that are retried. Used when ClassifierName is empty.
	RetryOn        []classify.ErrorKind `json:"retry_on,omitempty" yaml:"retry_on,omitempty"`
	ClassifierName string               `json:"classifier_name,omitempty" yaml:"classifier_name,omitempty"`
}

// Delay returns the wait before retry n (n >= 1, i.e. before attempt n+1).
func (p RetryPolicy) Delay(n int) time.Duration {
	if n < 1 {
		return 0
	}
	if p.Backoff == BackoffExponential || (p.Backoff == "" && len(p.Delays) == 0) {
		d := float64(p.InitialBackoff) * math.Pow(p.multiplier(), float64(n-1))
		if d > float64(math.MaxInt64) {
			d = float64(math.MaxInt64)
		}
		next := time.Duration(d)
		if p.MaxBackoff > 0 && next > p.MaxBackoff {
			return p.MaxBackoff
		}
		return next
	}
	if len(p.Delays) == 0 {
		return 0
	}
	if n > len(p.Delays) {
		return p.Delays[len(p.Delays)-1]
	}
	return p.Delays[n-1]
}

func (p RetryPolicy) multiplier() float64 {
	if p.BackoffMultiplier < 1 {
		return 1
	}
	return p.BackoffMultiplier
}

func (p RetryPolicy) clone() RetryPolicy {
	out := p
	if p.Delays != nil {
		out.Delays = append([]time.Duration(nil), p.Delays...)
	}
	if p.RetryOn != nil {
		out.RetryOn = append([]classify.ErrorKind(nil), p.RetryOn...)
	}
	return out
}

type PolicySource string

const (
	PolicySourceUnknown PolicySource = "unknown"
	PolicySourceStatic  PolicySource = "static"
	PolicySourceConfig  PolicySource = "config"
	PolicySourceDefault PolicySource = "default"
)

type NormalizationInfo struct {
	Changed       bool     `json:"-"`
	ChangedFields []string `json:"-"`
}

type Metadata struct {
	Source        PolicySource      `json:"-"`
	Normalization NormalizationInfo `json:"-"`
}

type EffectivePolicy struct {
	Key   PolicyKey   `json:"key"`
	ID    string      `json:"id,omitempty"`
	Retry RetryPolicy `json:"retry"`

	Meta Metadata `json:"-"`
}

// IsZero reports whether p carries no configuration at all.
func (p EffectivePolicy) IsZero() bool {
	r := p.Retry
	return p.Key == (PolicyKey{}) &&
		p.ID == "" &&
		r.MaxAttempts == 0 &&
		r.Backoff == "" &&
		len(r.Delays) == 0 &&
		r.InitialBackoff == 0 &&
		r.MaxBackoff == 0 &&
		r.BackoffMultiplier == 0 &&
		r.Jitter == "" &&
		r.OverallTimeout == 0 &&
		len(r.RetryOn) == 0 &&
		r.ClassifierName == ""
}

// Default migration schedule: three retries after 3s, 5s and 8s.
var defaultDelays = []time.Duration{3 * time.Second, 5 * time.Second, 8 * time.Second}

// DefaultRetryPolicy is the schedule used for schema migration: four attempts,
// fixed waits of 3s, 5s and 8s, retrying transient storage failures only.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: len(defaultDelays) + 1,
		Backoff:     BackoffFixed,
		Delays:      append([]time.Duration(nil), defaultDelays...),
		Jitter:      JitterNone,
		RetryOn:     []classify.ErrorKind{classify.KindTransientStorage},
	}
}

func DefaultPolicyFor(key PolicyKey) EffectivePolicy {
	return EffectivePolicy{
		Key:   key,
		Retry: DefaultRetryPolicy(),
		Meta: Metadata{
			Source: PolicySourceDefault,
		},
	}
}

const (
	maxRetryAttempts = 10

	minBackoffFloor      = 1 * time.Millisecond
	maxBackoffCeiling    = 5 * time.Minute
	minTimeoutFloor      = 1 * time.Millisecond
	maxBackoffMultiplier = 10.0
)

func (p EffectivePolicy) Normalize() (EffectivePolicy, error) {
	normalized := p
	normalized.Retry = p.Retry.clone()
	normalized.Meta.Normalization.ChangedFields = append([]string(nil), p.Meta.Normalization.ChangedFields...)
	norm := &normalized.Meta.Normalization
	r := &normalized.Retry

	markChanged := func(field string) {
		norm.Changed = true
		for _, f := range norm.ChangedFields {
			if f == field {
				return
			}
		}
		norm.ChangedFields = append(norm.ChangedFields, field)
	}

	switch r.Backoff {
	case "":
		if len(r.Delays) > 0 {
			r.Backoff = BackoffFixed
		} else {
			r.Backoff = BackoffExponential
		}
		markChanged("retry.backoff")
	case BackoffFixed, BackoffExponential:
	default:
		return EffectivePolicy{}, &NormalizeError{Field: "retry.backoff", Value: string(r.Backoff)}
	}

	if r.MaxAttempts == 0 {
		if r.Backoff == BackoffFixed && len(r.Delays) > 0 {
			r.MaxAttempts = len(r.Delays) + 1
		} else {
			r.MaxAttempts = 3
		}
		markChanged("retry.max_attempts")
	}
	if r.MaxAttempts < 1 {
		r.MaxAttempts = 1
		markChanged("retry.max_attempts")
	} else if r.MaxAttempts > maxRetryAttempts {
		r.MaxAttempts = maxRetryAttempts
		markChanged("retry.max_attempts")
	}

	if r.Backoff == BackoffFixed {
		normalizeDelays(r, markChanged)
	} else {
		normalizeExponential(r, markChanged)
	}

	switch r.Jitter {
	case "":
		r.Jitter = JitterNone
		markChanged("retry.jitter")
	case JitterNone, JitterFull, JitterEqual:
	default:
		return EffectivePolicy{}, &NormalizeError{Field: "retry.jitter", Value: string(r.Jitter)}
	}

	if r.OverallTimeout < 0 {
		r.OverallTimeout = 0
		markChanged("retry.overall_timeout")
	}
	if r.OverallTimeout > 0 && r.OverallTimeout < minTimeoutFloor {
		r.OverallTimeout = minTimeoutFloor
		markChanged("retry.overall_timeout")
	}

	if len(r.RetryOn) > 0 {
		seen := make(map[classify.ErrorKind]struct{}, len(r.RetryOn))
		kinds := r.RetryOn[:0]
		for _, k := range r.RetryOn {
			parsed, ok := classify.ParseErrorKind(string(k))
			if !ok {
				return EffectivePolicy{}, &NormalizeError{Field: "retry.retry_on", Value: string(k)}
			}
			if _, dup := seen[parsed]; dup {
				markChanged("retry.retry_on")
				continue
			}
			seen[parsed] = struct{}{}
			kinds = append(kinds, parsed)
		}
		r.RetryOn = kinds
	}

	return normalized, nil
}

// normalizeDelays makes len(Delays) == MaxAttempts-1, padding with the last
// delay and clamping each entry to [0, maxBackoffCeiling].
func normalizeDelays(r *RetryPolicy, markChanged func(string)) {
	want := r.MaxAttempts - 1
	for i, d := range r.Delays {
		if d < 0 {
			r.Delays[i] = 0
			markChanged("retry.delays")
		} else if d > maxBackoffCeiling {
			r.Delays[i] = maxBackoffCeiling
			markChanged("retry.delays")
		}
	}
	if len(r.Delays) > want {
		r.Delays = r.Delays[:want]
		markChanged("retry.delays")
	}
	if len(r.Delays) < want {
		fill := r.InitialBackoff
		if len(r.Delays) > 0 {
			fill = r.Delays[len(r.Delays)-1]
		}
		for len(r.Delays) < want {
			r.Delays = append(r.Delays, fill)
		}
		markChanged("retry.delays")
	}
}

func normalizeExponential(r *RetryPolicy, markChanged func(string)) {
	if r.InitialBackoff <= 0 {
		r.InitialBackoff = 100 * time.Millisecond
		markChanged("retry.initial_backoff")
	}
	if r.InitialBackoff < minBackoffFloor {
		r.InitialBackoff = minBackoffFloor
		markChanged("retry.initial_backoff")
	}

	if r.MaxBackoff <= 0 {
		r.MaxBackoff = 10 * time.Second
		markChanged("retry.max_backoff")
	}
	if r.MaxBackoff > maxBackoffCeiling {
		r.MaxBackoff = maxBackoffCeiling
		markChanged("retry.max_backoff")
	}
	if r.MaxBackoff < r.InitialBackoff {
		r.MaxBackoff = r.InitialBackoff
		markChanged("retry.max_backoff")
	}

	if r.BackoffMultiplier == 0 {
		r.BackoffMultiplier = 2
		markChanged("retry.backoff_multiplier")
	}
	if r.BackoffMultiplier < 1 {
		r.BackoffMultiplier = 1
		markChanged("retry.backoff_multiplier")
	} else if r.BackoffMultiplier > maxBackoffMultiplier {
		r.BackoffMultiplier = maxBackoffMultiplier
		markChanged("retry.backoff_multiplier")
	}
}

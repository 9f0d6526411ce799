package usecase

import "time"

// Metrics receives run counters. Implemented by the prometheus registry in
// observability; nil-safe through NoopMetrics.
type Metrics interface {
	SnapshotsSaved(sport, provider string, inserted, openings int)
	ProviderFailure(provider, sport, reason string)
	ProviderFallback(sport string)
	RecordsSkipped(provider, sport string, n int)
	StoreWriteFailure(sport string)
	PickGraded(sport string, outcome string)
	PickUnsettleable(reason string)
	JobDuration(job string, d time.Duration)
}

type NoopMetrics struct{}

func (NoopMetrics) SnapshotsSaved(string, string, int, int) {}
func (NoopMetrics) ProviderFailure(string, string, string)  {}
func (NoopMetrics) ProviderFallback(string)                 {}
func (NoopMetrics) RecordsSkipped(string, string, int)      {}
func (NoopMetrics) StoreWriteFailure(string)                {}
func (NoopMetrics) PickGraded(string, string)               {}
func (NoopMetrics) PickUnsettleable(string)                 {}
func (NoopMetrics) JobDuration(string, time.Duration)       {}

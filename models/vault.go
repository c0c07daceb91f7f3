package models

import "time"

// VaultParticipant is a capital contributor to the pooled vault. Rows are
// never deleted: a full withdrawal zeroes the deposit and flips Active so
// the distribution history stays auditable.
type VaultParticipant struct {
	ParticipantID      string    `json:"participantId"`
	DepositAmount      float64   `json:"depositAmount"`
	DepositTime        time.Time `json:"depositTime"`
	BaselineVaultValue float64   `json:"baselineVaultValue"`
	ProfitShareRate    float64   `json:"profitShareRate"`
	CumulativeProfit   float64   `json:"cumulativeProfit"`
	Active             bool      `json:"active"`
}

// AgeDays is the participant's deposit age at the given instant.
func (p *VaultParticipant) AgeDays(now time.Time) float64 {
	return now.Sub(p.DepositTime).Hours() / 24
}

// ValuePoint is one sample of total vault value.
type ValuePoint struct {
	Time  time.Time `json:"time"`
	Value float64   `json:"value"`
}

// HealthSample is one real-time monitoring reading: the marked-to-market
// vault value and the fraction of it committed to resting grid orders.
// Append-only, so the value series survives restarts.
type HealthSample struct {
	Time        time.Time `json:"time"`
	TotalValue  float64   `json:"totalValue"`
	Utilization float64   `json:"utilization"`
}

// PerformanceSnapshot is the daily analytics record, upserted by date.
type PerformanceSnapshot struct {
	Date          string  `json:"date"` // 2006-01-02
	TotalValue    float64 `json:"totalValue"`
	DailyReturn   float64 `json:"dailyReturn"`
	WeeklyReturn  float64 `json:"weeklyReturn"`
	MonthlyReturn float64 `json:"monthlyReturn"`
	SharpeRatio   float64 `json:"sharpeRatio"`
	MaxDrawdown   float64 `json:"maxDrawdown"`
	WinRate       float64 `json:"winRate"`
	BestAsset     string  `json:"bestAsset"`
	Timestamp     int64   `json:"timestamp"`
}

// BenchmarkComparison relates the vault's return to reference indices for
// one date. Beta is a configured constant, not regressed.
type BenchmarkComparison struct {
	Date        string  `json:"date"`
	VaultReturn float64 `json:"vaultReturn"`
	BTCReturn   float64 `json:"btcReturn"`
	ETHReturn   float64 `json:"ethReturn"`
	Alpha       float64 `json:"alpha"`
	Beta        float64 `json:"beta"`
	Timestamp   int64   `json:"timestamp"`
}

// DrawdownEvent is a recorded peak-to-trough decline of at least 10%.
type DrawdownEvent struct {
	StartDate    string  `json:"startDate"`
	TroughDate   string  `json:"troughDate"`
	RecoveryDate string  `json:"recoveryDate"`
	Depth        float64 `json:"depth"`
	DurationDays float64 `json:"durationDays"`
}

// ProfitDistribution is one participant's share of a distribution run.
// Append-only.
type ProfitDistribution struct {
	RunID            string  `json:"runId"`
	ParticipantID    string  `json:"participantId"`
	Amount           float64 `json:"amount"`
	VaultPerformance float64 `json:"vaultPerformance"`
	WeightFactor     float64 `json:"weightFactor"`
	Timestamp        int64   `json:"timestamp"`
}

package database

import "gorm.io/gorm"

type Participant struct {
	gorm.Model
	ParticipantID      string  `json:"participantId" gorm:"uniqueIndex:idx_participant_id;size:200"`
	DepositAmount      float64 `json:"depositAmount"`
	DepositTime        int64   `json:"depositTime"`
	BaselineVaultValue float64 `json:"baselineVaultValue"`
	ProfitShareRate    float64 `json:"profitShareRate"`
	CumulativeProfit   float64 `json:"cumulativeProfit"`
	Active             bool    `json:"active"`
}

type Snapshot struct {
	gorm.Model
	Date          string  `json:"date" gorm:"uniqueIndex:idx_snapshot_date;size:20"`
	TotalValue    float64 `json:"totalValue"`
	DailyReturn   float64 `json:"dailyReturn"`
	WeeklyReturn  float64 `json:"weeklyReturn"`
	MonthlyReturn float64 `json:"monthlyReturn"`
	SharpeRatio   float64 `json:"sharpeRatio"`
	MaxDrawdown   float64 `json:"maxDrawdown"`
	WinRate       float64 `json:"winRate"`
	BestAsset     string  `json:"bestAsset" gorm:"size:50"`
	Timestamp     int64   `json:"timestamp"`
}

type Benchmark struct {
	gorm.Model
	Date        string  `json:"date" gorm:"uniqueIndex:idx_benchmark_date;size:20"`
	VaultReturn float64 `json:"vaultReturn"`
	BTCReturn   float64 `json:"btcReturn"`
	ETHReturn   float64 `json:"ethReturn"`
	Alpha       float64 `json:"alpha"`
	Beta        float64 `json:"beta"`
	Timestamp   int64   `json:"timestamp"`
}

type DrawdownEvent struct {
	gorm.Model
	StartDate    string  `json:"startDate" gorm:"uniqueIndex:idx_drawdown_start;size:20"`
	TroughDate   string  `json:"troughDate" gorm:"size:20"`
	RecoveryDate string  `json:"recoveryDate" gorm:"size:20"`
	Depth        float64 `json:"depth"`
	DurationDays float64 `json:"durationDays"`
}

type HealthSample struct {
	gorm.Model
	TotalValue  float64 `json:"totalValue"`
	Utilization float64 `json:"utilization"`
	Timestamp   int64   `json:"timestamp" gorm:"index:idx_health_timestamp"`
}

type Distribution struct {
	gorm.Model
	RunID            string  `json:"runId" gorm:"index:idx_run_id;size:200"`
	ParticipantID    string  `json:"participantId" gorm:"index:idx_dist_participant;size:200"`
	Amount           float64 `json:"amount"`
	VaultPerformance float64 `json:"vaultPerformance"`
	WeightFactor     float64 `json:"weightFactor"`
	Timestamp        int64   `json:"timestamp"`
}

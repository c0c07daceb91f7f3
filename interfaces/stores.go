package interfaces

import (
	"gitlab.com/acastano/gridvault/models"
)

// GridStore persists grid configurations and their orders.
type GridStore interface {
	SaveGrid(grid *models.GridStrategy) error
	SaveGridOrder(order *models.GridOrder) error
	LoadActiveGrids() ([]models.GridStrategy, error)
	LoadFilledOrders() ([]models.GridOrder, error)
}

// VaultStore persists participants, analytics records and distribution
// history. SaveDistributionRun applies one run atomically: either every
// distribution row and every cumulative-profit update lands, or none do.
type VaultStore interface {
	SaveParticipant(participant *models.VaultParticipant) error
	LoadParticipants() ([]models.VaultParticipant, error)
	SaveSnapshot(snapshot *models.PerformanceSnapshot) error
	LoadSnapshots(limit int) ([]models.PerformanceSnapshot, error)
	SaveBenchmark(comparison *models.BenchmarkComparison) error
	SaveDrawdownEvent(event *models.DrawdownEvent) error
	SaveDistributionRun(runID string, rows []models.ProfitDistribution, cumulativeUpdates map[string]float64) error
	LoadDistributions(participantID string) ([]models.ProfitDistribution, error)
	SaveHealthSample(sample *models.HealthSample) error
	LoadHealthSamples(limit int) ([]models.HealthSample, error)
}

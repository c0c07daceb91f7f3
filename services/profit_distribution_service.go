package services

import (
	"context"
	"fmt"
	"math"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"gitlab.com/acastano/gridvault/helpers"
	"gitlab.com/acastano/gridvault/interfaces"
	"gitlab.com/acastano/gridvault/models"
)

// DistributionPolicy selects the weighting scheme for a profit run.
type DistributionPolicy string

const (
	PolicyProRata      DistributionPolicy = "PRO_RATA"
	PolicyTimeWeighted DistributionPolicy = "TIME_WEIGHTED"
	PolicyLoyaltyTier  DistributionPolicy = "LOYALTY_TIER"

	// MaxTimeFactor caps the time-weighted bonus at double weight.
	MaxTimeFactor = 2.0

	defaultKeeperShareRate = 0.10
)

// Loyalty tiers, highest threshold met wins. Below 30 days the factor is 1.0.
var loyaltyTiers = []struct {
	days   float64
	factor float64
}{
	{365, 1.35},
	{180, 1.2},
	{90, 1.1},
	{30, 1.0},
}

// TierFactor returns the loyalty multiplier for a deposit age.
func TierFactor(ageDays float64) float64 {
	for _, tier := range loyaltyTiers {
		if ageDays >= tier.days {
			return tier.factor
		}
	}
	return 1.0
}

// TimeFactor grows linearly with deposit age and saturates at 2x.
func TimeFactor(ageDays float64) float64 {
	return math.Min(MaxTimeFactor, 1+ageDays/30)
}

// ProfitDistributionService splits realized profit across vault
// participants. A run commits atomically through the store: all rows and
// cumulative-profit updates land together or not at all.
type ProfitDistributionService struct {
	mutex sync.Mutex
	store interfaces.VaultStore

	keeperShareRate float64
}

func NewProfitDistributionService(store interfaces.VaultStore) *ProfitDistributionService {
	keeperShareRate := defaultKeeperShareRate
	if raw := os.Getenv("keeperShareRate"); raw != "" {
		if parsed, err := strconv.ParseFloat(raw, 64); err == nil && parsed >= 0 && parsed < 1 {
			keeperShareRate = parsed
		}
	}

	return &ProfitDistributionService{
		store:           store,
		keeperShareRate: keeperShareRate,
	}
}

// Distribute runs one profit split under the given policy and returns the
// per-participant amounts keyed by participant id.
func (distributionService *ProfitDistributionService) Distribute(ctx context.Context,
	policy DistributionPolicy, profitPool float64, now time.Time) (map[string]float64, models.OperationResult) {

	distributionService.mutex.Lock()
	defer distributionService.mutex.Unlock()

	if profitPool <= 0 {
		return nil, models.ErrorResult("%v: profit pool must be positive", models.ErrInvalidParameter)
	}

	participants, err := distributionService.store.LoadParticipants()
	if err != nil {
		return nil, models.ErrorResult("loading participants: %v", err)
	}

	weights := make(map[string]float64)
	weightSum := 0.0
	for i := range participants {
		participant := &participants[i]
		if !participant.Active || participant.DepositAmount <= 0 {
			continue
		}

		weight, err := policyWeight(policy, participant, now)
		if err != nil {
			return nil, models.ErrorResult("%v", err)
		}
		weights[participant.ParticipantID] = weight
		weightSum += weight
	}

	if weightSum == 0 {
		return nil, models.ErrorResult("%v: no active participants with deposits", models.ErrNotFound)
	}

	keeperShare := profitPool * distributionService.keeperShareRate
	pool := profitPool - keeperShare

	runID := uuid.New().String()
	shares := make(map[string]float64)
	cumulativeUpdates := make(map[string]float64)
	var rows []models.ProfitDistribution
	distributed := 0.0

	for i := range participants {
		participant := &participants[i]
		weight, ok := weights[participant.ParticipantID]
		if !ok || weight == 0 {
			continue
		}

		share := pool * weight / weightSum
		if share == 0 {
			continue
		}

		shares[participant.ParticipantID] = share
		cumulativeUpdates[participant.ParticipantID] = participant.CumulativeProfit + share
		distributed += share
		rows = append(rows, models.ProfitDistribution{
			RunID:            runID,
			ParticipantID:    participant.ParticipantID,
			Amount:           share,
			VaultPerformance: profitPool,
			WeightFactor:     weight / weightSum,
			Timestamp:        now.Unix(),
		})
	}

	if math.Abs(distributed+keeperShare-profitPool) > 1e-6*profitPool {
		return nil, models.ErrorResult("distribution does not reconcile: %.8f + %.8f != %.8f",
			distributed, keeperShare, profitPool)
	}

	if err := distributionService.store.SaveDistributionRun(runID, rows, cumulativeUpdates); err != nil {
		return nil, models.ErrorResult("persisting distribution run: %v", err)
	}

	helpers.Logger.Infoln(fmt.Sprintf("💰 Distributed %.4f to %d participants (%s), keeper %.4f",
		distributed, len(rows), policy, keeperShare))
	return shares, models.SuccessResult(
		"run %s: %.4f distributed to %d participants under %s, keeper share %.4f",
		runID, distributed, len(rows), policy, keeperShare)
}

func policyWeight(policy DistributionPolicy, participant *models.VaultParticipant, now time.Time) (float64, error) {
	ageDays := participant.AgeDays(now)
	switch policy {
	case PolicyProRata:
		return participant.DepositAmount, nil
	case PolicyTimeWeighted:
		return participant.DepositAmount * TimeFactor(ageDays), nil
	case PolicyLoyaltyTier:
		return participant.DepositAmount * TierFactor(ageDays), nil
	default:
		return 0, fmt.Errorf("%w: unknown policy %q", models.ErrInvalidParameter, policy)
	}
}

// RecordDeposit creates the participant on first deposit and tops up an
// existing one. Re-depositing does not reset the original deposit time.
func (distributionService *ProfitDistributionService) RecordDeposit(participantID string,
	amount float64, vaultValue float64, now time.Time) models.OperationResult {

	distributionService.mutex.Lock()
	defer distributionService.mutex.Unlock()

	if amount <= 0 {
		return models.ErrorResult("%v: deposit must be positive", models.ErrInvalidParameter)
	}

	participants, err := distributionService.store.LoadParticipants()
	if err != nil {
		return models.ErrorResult("loading participants: %v", err)
	}

	var participant *models.VaultParticipant
	for i := range participants {
		if participants[i].ParticipantID == participantID {
			participant = &participants[i]
			break
		}
	}

	if participant == nil {
		participant = &models.VaultParticipant{
			ParticipantID:      participantID,
			DepositAmount:      amount,
			DepositTime:        now,
			BaselineVaultValue: vaultValue,
			ProfitShareRate:    1.0,
			Active:             true,
		}
	} else {
		participant.DepositAmount += amount
		participant.Active = true
		if participant.DepositTime.IsZero() {
			participant.DepositTime = now
		}
	}

	if err := distributionService.store.SaveParticipant(participant); err != nil {
		return models.ErrorResult("persisting participant: %v", err)
	}
	return models.SuccessResult("deposit of %.4f recorded for %s (total %.4f)",
		amount, participantID, participant.DepositAmount)
}

// RecordWithdrawal reduces the deposit; a full withdrawal zeroes it and
// marks the participant inactive while keeping the row for audit.
func (distributionService *ProfitDistributionService) RecordWithdrawal(participantID string,
	amount float64) models.OperationResult {

	distributionService.mutex.Lock()
	defer distributionService.mutex.Unlock()

	if amount <= 0 {
		return models.ErrorResult("%v: withdrawal must be positive", models.ErrInvalidParameter)
	}

	participants, err := distributionService.store.LoadParticipants()
	if err != nil {
		return models.ErrorResult("loading participants: %v", err)
	}

	var participant *models.VaultParticipant
	for i := range participants {
		if participants[i].ParticipantID == participantID {
			participant = &participants[i]
			break
		}
	}
	if participant == nil {
		return models.ErrorResult("%v: participant %s", models.ErrNotFound, participantID)
	}
	if amount > participant.DepositAmount {
		return models.ErrorResult("%v: withdrawal %.4f exceeds deposit %.4f",
			models.ErrInsufficientBalance, amount, participant.DepositAmount)
	}

	participant.DepositAmount -= amount
	if participant.DepositAmount == 0 {
		participant.Active = false
	}

	if err := distributionService.store.SaveParticipant(participant); err != nil {
		return models.ErrorResult("persisting participant: %v", err)
	}
	return models.SuccessResult("withdrawal of %.4f recorded for %s (remaining %.4f)",
		amount, participantID, participant.DepositAmount)
}

package database

import (
	"time"

	database "gitlab.com/acastano/gridvault/database/models"
	"gitlab.com/acastano/gridvault/models"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type DBService struct {
	DB *gorm.DB
}

func NewDBService(dbHost string, dbPort string, dbName string, dbUser string, dbPass string) (*DBService, error) {
	dsn := dbUser + ":" + dbPass + "@tcp(" + dbHost + ":" + dbPort + ")/" + dbName + "?charset=utf8mb4&parseTime=True&loc=Local"
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	dbs := &DBService{
		DB: db,
	}

	err = dbs.DB.AutoMigrate(&database.Grid{}, &database.GridOrder{}, &database.Participant{},
		&database.Snapshot{}, &database.Benchmark{}, &database.DrawdownEvent{}, &database.Distribution{},
		&database.HealthSample{})
	if err != nil {
		return nil, err
	}

	return dbs, nil
}

// SaveGrid upserts by grid id.
func (dbs *DBService) SaveGrid(grid *models.GridStrategy) error {
	dbGrid := database.Grid{
		GridID:          grid.ID,
		Pair:            grid.Pair,
		CenterPrice:     grid.CenterPrice,
		Spacing:         grid.Spacing,
		Levels:          grid.Levels,
		SizePerLevel:    grid.SizePerLevel,
		LiquidityFactor: grid.LiquidityFactor,
		LiquidityScaled: grid.LiquidityScaled,
		Status:          database.GridStatusType(grid.Status),
	}

	return dbs.DB.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "grid_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"center_price", "spacing", "levels",
			"size_per_level", "liquidity_factor", "liquidity_scaled", "status"}),
	}).Create(&dbGrid).Error
}

// SaveGridOrder upserts by (grid, side, level): an auto-adjust replaces the
// order at a level rather than stacking a second row.
func (dbs *DBService) SaveGridOrder(order *models.GridOrder) error {
	dbOrder := database.GridOrder{
		GridID:     order.GridID,
		Pair:       order.Pair,
		Side:       database.OrderSideType(order.Side),
		LevelIndex: order.LevelIndex,
		Price:      order.Price,
		Size:       order.Size,
		Status:     database.OrderStatusType(order.Status),
		OrderRef:   order.OrderRef,
		TxRef:      order.TxRef,
	}

	return dbs.DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "grid_id"}, {Name: "side"}, {Name: "level_index"}},
		DoUpdates: clause.AssignmentColumns([]string{"price", "size", "status", "order_ref", "tx_ref"}),
	}).Create(&dbOrder).Error
}

func (dbs *DBService) LoadActiveGrids() ([]models.GridStrategy, error) {
	var dbGrids []database.Grid
	err := dbs.DB.Where("status = ?", string(models.GridStatusActive)).Find(&dbGrids).Error
	if err != nil {
		return nil, err
	}

	var grids []models.GridStrategy
	for _, dbGrid := range dbGrids {
		grids = append(grids, models.GridStrategy{
			ID:              dbGrid.GridID,
			Pair:            dbGrid.Pair,
			CenterPrice:     dbGrid.CenterPrice,
			Spacing:         dbGrid.Spacing,
			Levels:          dbGrid.Levels,
			SizePerLevel:    dbGrid.SizePerLevel,
			LiquidityFactor: dbGrid.LiquidityFactor,
			LiquidityScaled: dbGrid.LiquidityScaled,
			Status:          models.GridStatus(dbGrid.Status),
			CreatedAt:       dbGrid.CreatedAt,
		})
	}
	return grids, nil
}

// LoadFilledOrders returns every persisted fill, including those whose
// grid has since been stopped or replaced.
func (dbs *DBService) LoadFilledOrders() ([]models.GridOrder, error) {
	var dbOrders []database.GridOrder
	err := dbs.DB.Where("status = ?", string(models.OrderStatusFilled)).Find(&dbOrders).Error
	if err != nil {
		return nil, err
	}

	var orders []models.GridOrder
	for _, dbOrder := range dbOrders {
		orders = append(orders, models.GridOrder{
			GridID:     dbOrder.GridID,
			Pair:       dbOrder.Pair,
			Side:       models.OrderSide(dbOrder.Side),
			LevelIndex: dbOrder.LevelIndex,
			Price:      dbOrder.Price,
			Size:       dbOrder.Size,
			Status:     models.OrderStatus(dbOrder.Status),
			OrderRef:   dbOrder.OrderRef,
			TxRef:      dbOrder.TxRef,
			CreatedAt:  dbOrder.CreatedAt,
		})
	}
	return orders, nil
}

func (dbs *DBService) SaveParticipant(participant *models.VaultParticipant) error {
	dbParticipant := database.Participant{
		ParticipantID:      participant.ParticipantID,
		DepositAmount:      participant.DepositAmount,
		DepositTime:        participant.DepositTime.Unix(),
		BaselineVaultValue: participant.BaselineVaultValue,
		ProfitShareRate:    participant.ProfitShareRate,
		CumulativeProfit:   participant.CumulativeProfit,
		Active:             participant.Active,
	}

	return dbs.DB.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "participant_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"deposit_amount", "deposit_time",
			"baseline_vault_value", "profit_share_rate", "cumulative_profit", "active"}),
	}).Create(&dbParticipant).Error
}

func (dbs *DBService) LoadParticipants() ([]models.VaultParticipant, error) {
	var dbParticipants []database.Participant
	err := dbs.DB.Find(&dbParticipants).Error
	if err != nil {
		return nil, err
	}

	var participants []models.VaultParticipant
	for _, dbParticipant := range dbParticipants {
		participants = append(participants, models.VaultParticipant{
			ParticipantID:      dbParticipant.ParticipantID,
			DepositAmount:      dbParticipant.DepositAmount,
			DepositTime:        time.Unix(dbParticipant.DepositTime, 0),
			BaselineVaultValue: dbParticipant.BaselineVaultValue,
			ProfitShareRate:    dbParticipant.ProfitShareRate,
			CumulativeProfit:   dbParticipant.CumulativeProfit,
			Active:             dbParticipant.Active,
		})
	}
	return participants, nil
}

// SaveSnapshot upserts by date, so re-running analytics within the same day
// rewrites the row instead of duplicating it.
func (dbs *DBService) SaveSnapshot(snapshot *models.PerformanceSnapshot) error {
	dbSnapshot := database.Snapshot{
		Date:          snapshot.Date,
		TotalValue:    snapshot.TotalValue,
		DailyReturn:   snapshot.DailyReturn,
		WeeklyReturn:  snapshot.WeeklyReturn,
		MonthlyReturn: snapshot.MonthlyReturn,
		SharpeRatio:   snapshot.SharpeRatio,
		MaxDrawdown:   snapshot.MaxDrawdown,
		WinRate:       snapshot.WinRate,
		BestAsset:     snapshot.BestAsset,
		Timestamp:     snapshot.Timestamp,
	}

	return dbs.DB.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "date"}},
		DoUpdates: clause.AssignmentColumns([]string{"total_value", "daily_return", "weekly_return",
			"monthly_return", "sharpe_ratio", "max_drawdown", "win_rate", "best_asset", "timestamp"}),
	}).Create(&dbSnapshot).Error
}

func (dbs *DBService) LoadSnapshots(limit int) ([]models.PerformanceSnapshot, error) {
	var dbSnapshots []database.Snapshot
	query := dbs.DB.Order("date desc")
	if limit > 0 {
		query = query.Limit(limit)
	}
	err := query.Find(&dbSnapshots).Error
	if err != nil {
		return nil, err
	}

	var snapshots []models.PerformanceSnapshot
	for _, dbSnapshot := range dbSnapshots {
		snapshots = append(snapshots, models.PerformanceSnapshot{
			Date:          dbSnapshot.Date,
			TotalValue:    dbSnapshot.TotalValue,
			DailyReturn:   dbSnapshot.DailyReturn,
			WeeklyReturn:  dbSnapshot.WeeklyReturn,
			MonthlyReturn: dbSnapshot.MonthlyReturn,
			SharpeRatio:   dbSnapshot.SharpeRatio,
			MaxDrawdown:   dbSnapshot.MaxDrawdown,
			WinRate:       dbSnapshot.WinRate,
			BestAsset:     dbSnapshot.BestAsset,
			Timestamp:     dbSnapshot.Timestamp,
		})
	}
	return snapshots, nil
}

func (dbs *DBService) SaveBenchmark(comparison *models.BenchmarkComparison) error {
	dbBenchmark := database.Benchmark{
		Date:        comparison.Date,
		VaultReturn: comparison.VaultReturn,
		BTCReturn:   comparison.BTCReturn,
		ETHReturn:   comparison.ETHReturn,
		Alpha:       comparison.Alpha,
		Beta:        comparison.Beta,
		Timestamp:   comparison.Timestamp,
	}

	return dbs.DB.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "date"}},
		DoUpdates: clause.AssignmentColumns([]string{"vault_return", "btc_return", "eth_return",
			"alpha", "beta", "timestamp"}),
	}).Create(&dbBenchmark).Error
}

func (dbs *DBService) SaveDrawdownEvent(event *models.DrawdownEvent) error {
	dbEvent := database.DrawdownEvent{
		StartDate:    event.StartDate,
		TroughDate:   event.TroughDate,
		RecoveryDate: event.RecoveryDate,
		Depth:        event.Depth,
		DurationDays: event.DurationDays,
	}

	return dbs.DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "start_date"}},
		DoUpdates: clause.AssignmentColumns([]string{"trough_date", "recovery_date", "depth", "duration_days"}),
	}).Create(&dbEvent).Error
}

// SaveDistributionRun writes the run's rows and the participants' cumulative
// profit updates in one transaction.
func (dbs *DBService) SaveDistributionRun(runID string, rows []models.ProfitDistribution,
	cumulativeUpdates map[string]float64) error {

	return dbs.DB.Transaction(func(tx *gorm.DB) error {
		for _, row := range rows {
			dbRow := database.Distribution{
				RunID:            runID,
				ParticipantID:    row.ParticipantID,
				Amount:           row.Amount,
				VaultPerformance: row.VaultPerformance,
				WeightFactor:     row.WeightFactor,
				Timestamp:        row.Timestamp,
			}
			if err := tx.Create(&dbRow).Error; err != nil {
				return err
			}
		}

		for participantID, cumulative := range cumulativeUpdates {
			err := tx.Model(&database.Participant{}).
				Where("participant_id = ?", participantID).
				Update("cumulative_profit", cumulative).Error
			if err != nil {
				return err
			}
		}

		return nil
	})
}

// SaveHealthSample appends one real-time monitoring row.
func (dbs *DBService) SaveHealthSample(sample *models.HealthSample) error {
	dbSample := database.HealthSample{
		TotalValue:  sample.TotalValue,
		Utilization: sample.Utilization,
		Timestamp:   sample.Time.Unix(),
	}
	return dbs.DB.Create(&dbSample).Error
}

// LoadHealthSamples returns the most recent samples, oldest first.
func (dbs *DBService) LoadHealthSamples(limit int) ([]models.HealthSample, error) {
	var dbSamples []database.HealthSample
	query := dbs.DB.Order("timestamp desc")
	if limit > 0 {
		query = query.Limit(limit)
	}
	err := query.Find(&dbSamples).Error
	if err != nil {
		return nil, err
	}

	var samples []models.HealthSample
	for i := len(dbSamples) - 1; i >= 0; i-- {
		dbSample := dbSamples[i]
		samples = append(samples, models.HealthSample{
			Time:        time.Unix(dbSample.Timestamp, 0),
			TotalValue:  dbSample.TotalValue,
			Utilization: dbSample.Utilization,
		})
	}
	return samples, nil
}

func (dbs *DBService) LoadDistributions(participantID string) ([]models.ProfitDistribution, error) {
	var dbRows []database.Distribution
	err := dbs.DB.Where("participant_id = ?", participantID).Order("timestamp asc").Find(&dbRows).Error
	if err != nil {
		return nil, err
	}

	var rows []models.ProfitDistribution
	for _, dbRow := range dbRows {
		rows = append(rows, models.ProfitDistribution{
			RunID:            dbRow.RunID,
			ParticipantID:    dbRow.ParticipantID,
			Amount:           dbRow.Amount,
			VaultPerformance: dbRow.VaultPerformance,
			WeightFactor:     dbRow.WeightFactor,
			Timestamp:        dbRow.Timestamp,
		})
	}
	return rows, nil
}
